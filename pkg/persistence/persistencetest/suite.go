// Package persistencetest holds the behaviour every CreationStorage backend
// must share.
package persistencetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
)

// RunCreationStorage exercises append, ordering, owner and publish
// filtering, and counting against an empty store.
func RunCreationStorage(t *testing.T, store persistence.CreationStorage) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domain.NewCreation("alice", "Colorize image", "https://img/1.png", false, base)
	second := domain.NewCreation("bob", "Remove background from image", "https://img/2.png", true, base.Add(time.Minute))
	third := domain.NewCreation("alice", "Enhance image", "https://img/3.png", true, base.Add(2*time.Minute))
	hidden := domain.NewCreation("bob", "Colorize image", "https://img/4.png", false, base.Add(3*time.Minute))

	for _, c := range []domain.Creation{first, second, third, hidden} {
		if err := store.Append(ctx, c); err != nil {
			t.Fatalf("Append(%s): %v", c.ID, err)
		}
	}

	if err := store.Append(ctx, first); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("duplicate Append err = %v, want ErrAlreadyExists", err)
	}

	all, err := store.List(ctx, domain.CreationFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List returned %d creations, want 4", len(all))
	}
	if all[0].ID != hidden.ID || all[1].ID != third.ID || all[2].ID != second.ID || all[3].ID != first.ID {
		t.Errorf("List not newest first: %s %s %s %s", all[0].Content, all[1].Content, all[2].Content, all[3].Content)
	}
	if all[3].Content != first.Content || all[3].UserID != "alice" || all[3].Type != domain.CreationImage || all[3].Publish {
		t.Errorf("record not round-tripped: %+v", all[3])
	}
	if !all[3].CreatedAt.Equal(first.CreatedAt) || !all[3].UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("timestamps not round-tripped: got %v want %v", all[3].CreatedAt, first.CreatedAt)
	}

	own, err := store.List(ctx, domain.CreationFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("List owner: %v", err)
	}
	if len(own) != 2 || own[0].ID != third.ID || own[1].ID != first.ID {
		t.Errorf("owner list = %+v", own)
	}
	ownPublished, err := store.List(ctx, domain.CreationFilter{UserID: "bob", PublishedOnly: true})
	if err != nil {
		t.Fatalf("List owner published: %v", err)
	}
	if len(ownPublished) != 1 || ownPublished[0].ID != second.ID {
		t.Errorf("owner published list = %+v", ownPublished)
	}

	published, err := store.List(ctx, domain.CreationFilter{PublishedOnly: true})
	if err != nil {
		t.Fatalf("List published: %v", err)
	}
	if len(published) != 2 || published[0].ID != third.ID || published[1].ID != second.ID {
		t.Errorf("published = %d records", len(published))
	}

	limited, err := store.List(ctx, domain.CreationFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != hidden.ID {
		t.Errorf("limited = %+v", limited)
	}

	n, err := store.Count(ctx, domain.CreationFilter{})
	if err != nil || n != 4 {
		t.Errorf("Count = %d, %v", n, err)
	}
	n, err = store.Count(ctx, domain.CreationFilter{PublishedOnly: true})
	if err != nil || n != 2 {
		t.Errorf("Count published = %d, %v", n, err)
	}
	n, err = store.Count(ctx, domain.CreationFilter{UserID: "bob"})
	if err != nil || n != 2 {
		t.Errorf("Count owner = %d, %v", n, err)
	}
}
