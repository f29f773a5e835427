// Package kafka publishes every creation as an event. It is write-only:
// the feed has to be served by a downstream consumer.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/osvaldoandrade/pixelq/internal/tracing"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
)

// Config holds Kafka-specific configuration
type Config struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic,omitempty"`
}

// Plugin implements PluginPersistence on a Kafka topic
type Plugin struct {
	producer sarama.SyncProducer
	topic    string
	closed   atomic.Bool
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := persistence.DecodeConfig(config.Config, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka persistence: brokers are required")
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return newPlugin(p, cfg.Topic), nil
}

func newPlugin(p sarama.SyncProducer, topic string) *Plugin {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "pixelq.creations"
	}
	return &Plugin{producer: p, topic: topic}
}

func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{plugin: p}
}

func (p *Plugin) Health(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("kafka persistence: producer closed")
	}
	return nil
}

func (p *Plugin) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.producer.Close()
}

func init() {
	persistence.RegisterProvider("kafka", NewPlugin)
}

type creationStorage struct {
	plugin *Plugin
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	if s.plugin.closed.Load() {
		return errors.New("kafka persistence: producer closed")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.plugin.topic,
		Key:   sarama.StringEncoder(c.ID),
		Value: sarama.ByteEncoder(data),
	}
	traceParent, traceState := tracing.TraceContextStrings(ctx)
	if traceParent != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte("traceparent"), Value: []byte(traceParent)})
	}
	if traceState != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte("tracestate"), Value: []byte(traceState)})
	}

	if _, _, err := s.plugin.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish creation: %w", err)
	}
	return nil
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	return nil, persistence.ErrNotSupported
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	return 0, persistence.ErrNotSupported
}
