package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

var (
	// ErrNotSupported is returned by write-only backends for read operations.
	ErrNotSupported = errors.New("not supported")

	// ErrAlreadyExists is returned when a creation id is appended twice.
	ErrAlreadyExists = errors.New("already exists")
)

// PluginPersistence is the contract every storage backend implements.
type PluginPersistence interface {
	// CreationStorage returns the creation sink.
	CreationStorage() CreationStorage

	// Health checks if the persistence backend is reachable.
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend.
	Close() error
}

// CreationStorage is an append-only record of successful AI creations.
// Records are never updated once appended.
type CreationStorage interface {
	// Append stores c. Appending an id that already exists fails with ErrAlreadyExists.
	Append(ctx context.Context, c domain.Creation) error

	// List returns creations newest first.
	List(ctx context.Context, filter domain.CreationFilter) ([]domain.Creation, error)

	// Count returns the number of stored creations matching filter. Limit is ignored.
	Count(ctx context.Context, filter domain.CreationFilter) (int64, error)
}
