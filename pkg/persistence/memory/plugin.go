package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
)

// Plugin implements PluginPersistence for in-memory storage
// This is primarily for development and tests; records vanish on restart
type Plugin struct {
	mu        sync.RWMutex
	creations []domain.Creation
	ids       map[string]struct{}
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	return &Plugin{ids: make(map[string]struct{})}, nil
}

// CreationStorage returns the creation storage implementation
func (p *Plugin) CreationStorage() persistence.CreationStorage {
	return &creationStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

type creationStorage struct {
	plugin *Plugin
}

func (s *creationStorage) Append(ctx context.Context, c domain.Creation) error {
	p := s.plugin
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[c.ID]; ok {
		return persistence.ErrAlreadyExists
	}
	p.ids[c.ID] = struct{}{}
	p.creations = append(p.creations, c)
	return nil
}

func (s *creationStorage) List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error) {
	filter = filter.Normalize()
	p := s.plugin
	p.mu.RLock()
	matched := make([]domain.Creation, 0, len(p.creations))
	for _, c := range p.creations {
		if filter.Matches(c) {
			matched = append(matched, c)
		}
	}
	p.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *creationStorage) Count(ctx context.Context, filter domain.CreationFilter) (int64, error) {
	p := s.plugin
	p.mu.RLock()
	defer p.mu.RUnlock()
	var n int64
	for _, c := range p.creations {
		if filter.Matches(c) {
			n++
		}
	}
	return n, nil
}
