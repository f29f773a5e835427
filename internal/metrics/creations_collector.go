package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// CreationCounter is the read side a creation store exposes to the collector.
type CreationCounter interface {
	Count(ctx context.Context, filter domain.CreationFilter) (int64, error)
}

type creationsCollector struct {
	store  CreationCounter
	logger *slog.Logger

	storedDesc *prometheus.Desc
}

func newCreationsCollector(store CreationCounter, logger *slog.Logger) *creationsCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &creationsCollector{
		store:  store,
		logger: logger,
		storedDesc: prometheus.NewDesc(
			"pixelq_creations_stored",
			"Current number of stored creations by publish flag.",
			[]string{"publish"},
			nil,
		),
	}
}

func (c *creationsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storedDesc
}

func (c *creationsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.store == nil {
		return
	}

	// Keep store reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	total, err := c.store.Count(ctx, domain.CreationFilter{})
	if err != nil {
		c.logger.Warn("prometheus creations collector failed", "err", err)
		return
	}
	published, err := c.store.Count(ctx, domain.CreationFilter{PublishedOnly: true})
	if err != nil {
		c.logger.Warn("prometheus creations collector failed", "err", err)
		return
	}

	emitGauge(ch, c.storedDesc, float64(published), strconv.FormatBool(true))
	emitGauge(ch, c.storedDesc, float64(total-published), strconv.FormatBool(false))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerCreationsCollectorOnce sync.Once

// RegisterCreationsCollector exports stored creation counts. Stores that
// cannot count (write-only sinks) should not be registered.
func RegisterCreationsCollector(store CreationCounter, logger *slog.Logger) {
	registerCreationsCollectorOnce.Do(func() {
		prometheus.MustRegister(newCreationsCollector(store, logger))
	})
}
