package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// CreationRepository stores creations in a hash with time-ordered indexes:
// everything, published, and per owner (all and published).
type CreationRepository interface {
	Append(ctx context.Context, c domain.Creation) error
	List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error)
	Count(ctx context.Context, filter domain.CreationFilter) (int64, error)
}

type creationRedisRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewCreationRepository(rdb *redis.Client, prefix string) CreationRepository {
	if prefix == "" {
		prefix = "pixelq"
	}
	return &creationRedisRepo{rdb: rdb, prefix: prefix}
}

func (r *creationRedisRepo) keyCreationsHash() string { return r.prefix + ":creations" }
func (r *creationRedisRepo) keyByTime() string        { return r.prefix + ":creations:by_time" }
func (r *creationRedisRepo) keyPublished() string     { return r.prefix + ":creations:published" }
func (r *creationRedisRepo) keyByUser(userID string) string {
	return r.prefix + ":creations:user:{" + userID + "}"
}
func (r *creationRedisRepo) keyUserPublished(userID string) string {
	return r.keyByUser(userID) + ":published"
}

func (r *creationRedisRepo) index(filter domain.CreationFilter) string {
	switch {
	case filter.UserID != "" && filter.PublishedOnly:
		return r.keyUserPublished(filter.UserID)
	case filter.UserID != "":
		return r.keyByUser(filter.UserID)
	case filter.PublishedOnly:
		return r.keyPublished()
	}
	return r.keyByTime()
}

func (r *creationRedisRepo) Append(ctx context.Context, c domain.Creation) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal creation: %w", err)
	}
	ok, err := r.rdb.HSetNX(ctx, r.keyCreationsHash(), c.ID, string(b)).Result()
	if err != nil {
		return fmt.Errorf("redis HSETNX creation: %w", err)
	}
	if !ok {
		return persistence.ErrAlreadyExists
	}
	score := float64(c.CreatedAt.UnixMilli())
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		z := &redis.Z{Score: score, Member: c.ID}
		pipe.ZAdd(ctx, r.keyByTime(), z)
		pipe.ZAdd(ctx, r.keyByUser(c.UserID), z)
		if c.Publish {
			pipe.ZAdd(ctx, r.keyPublished(), z)
			pipe.ZAdd(ctx, r.keyUserPublished(c.UserID), z)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ZADD creation index: %w", err)
	}
	return nil
}

func (r *creationRedisRepo) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	ids, err := r.rdb.ZRevRange(ctx, r.index(filter), 0, int64(filter.Limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZREVRANGE creations: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Creation{}, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.keyCreationsHash(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGET creations: %w", err)
	}
	out := make([]domain.Creation, 0, len(vals))
	for _, v := range vals {
		js, ok := v.(string)
		if !ok || js == "" {
			continue
		}
		var c domain.Creation
		if err := json.Unmarshal([]byte(js), &c); err != nil {
			return nil, fmt.Errorf("unmarshal creation: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *creationRedisRepo) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	n, err := r.rdb.ZCard(ctx, r.index(filter)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ZCARD creations: %w", err)
	}
	return n, nil
}
