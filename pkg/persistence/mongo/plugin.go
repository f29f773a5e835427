package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds MongoDB-specific configuration
type Config struct {
	URI             string `json:"uri"`
	Database        string `json:"database"`
	Collection      string `json:"collection,omitempty"`
	ConnectTimeoutS int    `json:"connectTimeoutSeconds,omitempty"`
}

// Plugin implements PluginPersistence on a MongoDB collection
type Plugin struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := persistence.DecodeConfig(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.URI == "" {
		return nil, errors.New("mongo persistence: uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo persistence: database is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "creations"
	}
	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return &Plugin{client: client, coll: coll}, nil
}

func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{coll: p.coll}
}

func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

func (p *Plugin) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Disconnect(ctx)
}

func init() {
	persistence.RegisterProvider("mongo", NewPlugin)
}

type creationStorage struct {
	coll *mongo.Collection
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return persistence.ErrAlreadyExists
		}
		return fmt.Errorf("mongo insert creation: %w", err)
	}
	return nil
}

func filterDoc(f domain.CreationFilter) bson.M {
	doc := bson.M{}
	if f.UserID != "" {
		doc["userId"] = f.UserID
	}
	if f.PublishedOnly {
		doc["publish"] = true
	}
	return doc
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(filter.Limit))
	cur, err := s.coll.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find creations: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]domain.Creation, 0, filter.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
		out[i].UpdatedAt = out[i].UpdatedAt.UTC()
	}
	return out, nil
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filterDoc(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo count creations: %w", err)
	}
	return n, nil
}
