package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS creations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	publish INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_creations_created_at ON creations(created_at);
CREATE INDEX IF NOT EXISTS idx_creations_user_created ON creations(user_id, created_at);
`

// Config holds SQLite-specific configuration
type Config struct {
	Path string `json:"path"`
}

// Plugin implements PluginPersistence on an embedded SQLite file
type Plugin struct {
	db *sql.DB
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := persistence.DecodeConfig(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.New("sqlite persistence: path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Plugin{db: db}, nil
}

func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{db: p.db}
}

func (p *Plugin) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Plugin) Close() error {
	return p.db.Close()
}

func init() {
	persistence.RegisterProvider("sqlite", NewPlugin)
}

type creationStorage struct {
	db *sql.DB
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO creations (id, user_id, prompt, content, type, publish, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		c.ID, c.UserID, c.Prompt, c.Content, string(c.Type), c.Publish, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert creation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrAlreadyExists
	}
	return nil
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	where, args := whereClause(filter)
	query := `SELECT id, user_id, prompt, content, type, publish, created_at, updated_at FROM creations` + where
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite list creations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Creation, 0, filter.Limit)
	for rows.Next() {
		var c domain.Creation
		var typ string
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Prompt, &c.Content, &typ, &c.Publish, &created, &updated); err != nil {
			return nil, err
		}
		c.Type = domain.CreationType(typ)
		c.CreatedAt = time.Unix(0, created).UTC()
		c.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	where, args := whereClause(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM creations`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count creations: %w", err)
	}
	return n, nil
}

func whereClause(filter domain.CreationFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.PublishedOnly {
		conds = append(conds, "publish = ?")
		args = append(args, true)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
