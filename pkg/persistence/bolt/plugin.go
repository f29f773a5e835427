package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
	bolt "go.etcd.io/bbolt"
)

var (
	creationsBucket = []byte("creations")
	byTimeBucket    = []byte("creations_by_time")
)

// Config holds bbolt-specific configuration
type Config struct {
	Path string `json:"path"`
}

// Plugin implements PluginPersistence on an embedded bbolt file
type Plugin struct {
	db *bolt.DB
}

// NewPlugin opens (or creates) the bolt file and its buckets
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := persistence.DecodeConfig(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.New("bolt persistence: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt persistence: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open %s: %w", cfg.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(creationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(byTimeBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Plugin{db: db}, nil
}

func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{db: p.db}
}

// Health reads the bucket to prove the file is open
func (p *Plugin) Health(ctx context.Context) error {
	return p.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(creationsBucket) == nil {
			return errors.New("bolt persistence: creations bucket missing")
		}
		return nil
	})
}

func (p *Plugin) Close() error {
	return p.db.Close()
}

func init() {
	persistence.RegisterProvider("bolt", NewPlugin)
}

type creationStorage struct {
	db *bolt.DB
}

// timeKey sorts by creation time, then id.
func timeKey(c domain.Creation) []byte {
	k := make([]byte, 8, 8+len(c.ID))
	binary.BigEndian.PutUint64(k, uint64(c.CreatedAt.UnixNano()))
	return append(k, c.ID...)
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(creationsBucket)
		if b.Get([]byte(c.ID)) != nil {
			return persistence.ErrAlreadyExists
		}
		if err := b.Put([]byte(c.ID), data); err != nil {
			return err
		}
		return tx.Bucket(byTimeBucket).Put(timeKey(c), []byte(c.ID))
	})
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	out := make([]domain.Creation, 0, filter.Limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(creationsBucket)
		c := tx.Bucket(byTimeBucket).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			v := records.Get(id)
			if v == nil {
				continue
			}
			var rec domain.Creation
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal creation %s: %w", id, err)
			}
			if !filter.Matches(rec) {
				continue
			}
			out = append(out, rec)
			if len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(creationsBucket)
		if !filter.PublishedOnly && filter.UserID == "" {
			n = int64(b.Stats().KeyN)
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec domain.Creation
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if filter.Matches(rec) {
				n++
			}
			return nil
		})
	})
	return n, err
}
