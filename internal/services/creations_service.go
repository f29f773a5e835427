package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/metrics"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
)

const persistTimeout = 5 * time.Second

// CreationWriter appends creation records. Failures are logged and counted,
// never surfaced: the caller already holds a confirmed artifact.
type CreationWriter struct {
	store  persistence.CreationStorage
	logger *slog.Logger
	now    func() time.Time
}

func NewCreationWriter(store persistence.CreationStorage, logger *slog.Logger, now func() time.Time) *CreationWriter {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &CreationWriter{store: store, logger: logger, now: now}
}

// Write stores a creation owned by userID.
func (w *CreationWriter) Write(ctx context.Context, userID, prompt, content string, publish bool) {
	if w == nil {
		return
	}
	c := domain.NewCreation(userID, prompt, content, publish, w.now())
	// the artifact exists even if the caller hung up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := w.store.Append(ctx, c); err != nil {
		metrics.CreationsWrittenTotal.WithLabelValues(string(c.Type), "error").Inc()
		w.logger.Warn("creation not persisted", "creation_id", c.ID, "err", err)
		return
	}
	metrics.CreationsWrittenTotal.WithLabelValues(string(c.Type), "ok").Inc()
	w.logger.Debug("creation persisted", "creation_id", c.ID, "user_id", userID, "publish", publish)
}

// ErrFeedUnavailable is returned when the configured store cannot be read.
var ErrFeedUnavailable = errors.New("creations feed unavailable")

// CreationsService reads the feed for a viewer. Without PublishedOnly the
// viewer sees only their own creations; with it, everyone's published ones.
type CreationsService interface {
	List(ctx context.Context, viewer string, filter domain.CreationFilter) ([]domain.Creation, error)
}

type creationsService struct {
	store persistence.CreationStorage
}

func NewCreationsService(store persistence.CreationStorage) CreationsService {
	return &creationsService{store: store}
}

func (s *creationsService) List(ctx context.Context, viewer string, filter domain.CreationFilter) ([]domain.Creation, error) {
	if s.store == nil {
		return nil, ErrFeedUnavailable
	}
	filter.UserID = ""
	if !filter.PublishedOnly {
		viewer = strings.TrimSpace(viewer)
		if viewer == "" {
			return nil, fmt.Errorf("%w: listing private creations needs a signed-in owner", domain.ErrInvalidRequest)
		}
		filter.UserID = viewer
	}
	out, err := s.store.List(ctx, filter.Normalize())
	if errors.Is(err, persistence.ErrNotSupported) {
		return nil, errors.Join(ErrFeedUnavailable, err)
	}
	if out == nil && err == nil {
		out = []domain.Creation{}
	}
	return out, err
}
