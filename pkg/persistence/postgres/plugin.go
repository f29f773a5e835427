package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS creations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	publish BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
ALTER TABLE creations ADD COLUMN IF NOT EXISTS user_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_creations_created_at ON creations (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_creations_user_created ON creations (user_id, created_at DESC);
`

// Config holds Postgres-specific configuration
type Config struct {
	DSN             string `json:"dsn"`
	MaxConns        int32  `json:"maxConns,omitempty"`
	ConnectTimeoutS int    `json:"connectTimeoutSeconds,omitempty"`
}

// Plugin implements PluginPersistence on a pgx connection pool
type Plugin struct {
	pool *pgxpool.Pool
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := persistence.DecodeConfig(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres persistence: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres persistence: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Plugin{pool: pool}, nil
}

func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{pool: p.pool}
}

func (p *Plugin) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Plugin) Close() error {
	p.pool.Close()
	return nil
}

func init() {
	persistence.RegisterProvider("postgres", NewPlugin)
}

type creationStorage struct {
	pool *pgxpool.Pool
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO creations (id, user_id, prompt, content, type, publish, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.UserID, c.Prompt, c.Content, string(c.Type), c.Publish, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres insert creation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrAlreadyExists
	}
	return nil
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, prompt, content, type, publish, created_at, updated_at
		FROM creations
		WHERE ($1 = '' OR user_id = $1) AND ($2 = FALSE OR publish = TRUE)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, filter.UserID, filter.PublishedOnly, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres list creations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Creation, 0, filter.Limit)
	for rows.Next() {
		var c domain.Creation
		var typ string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Prompt, &c.Content, &typ, &c.Publish, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Type = domain.CreationType(typ)
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM creations WHERE ($1 = '' OR user_id = $1) AND ($2 = FALSE OR publish = TRUE)`,
		filter.UserID, filter.PublishedOnly,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres count creations: %w", err)
	}
	return n, nil
}
