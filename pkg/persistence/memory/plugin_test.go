package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
	"github.com/osvaldoandrade/pixelq/pkg/persistence/persistencetest"
)

func newTestPlugin(t *testing.T) persistence.PluginPersistence {
	t.Helper()
	p, err := persistence.NewPersistence(persistence.ProviderConfig{Type: "memory"}, persistence.PluginConfig{})
	if err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestCreationStorage(t *testing.T) {
	persistencetest.RunCreationStorage(t, newTestPlugin(t).CreationStorage())
}

func TestHealth(t *testing.T) {
	if err := newTestPlugin(t).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestConcurrentAppend(t *testing.T) {
	store := newTestPlugin(t).CreationStorage()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(context.Background(), domain.NewCreation("u-1", "p", "https://x", false, time.Now()))
		}()
	}
	wg.Wait()

	n, err := store.Count(context.Background(), domain.CreationFilter{})
	if err != nil || n != 50 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}
