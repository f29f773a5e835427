// Package polling drives a vendor task handle to a terminal status and
// extracts the resulting artifact.
package polling

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/backoff"
	"github.com/osvaldoandrade/pixelq/internal/metrics"
	"github.com/osvaldoandrade/pixelq/internal/tracing"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusFetcher performs a single status query for a handle.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, spec domain.FeatureSpec, handle domain.TaskHandle) (domain.TaskStatus, error)
}

type State string

const (
	StatePolling  State = "POLLING"
	StateDone     State = "DONE"
	StateTimedOut State = "TIMED_OUT"
	StateFailed   State = "FAILED"
)

// Result is the terminal state of one poll loop. Status holds only the most
// recent vendor answer.
type Result struct {
	State    State
	Status   domain.TaskStatus
	Attempts int
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Poller)

// WithSleep replaces the inter-poll wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// Poller holds no per-task state; one Poller can serve concurrent Poll calls.
type Poller struct {
	fetcher StatusFetcher
	logger  *slog.Logger
	sleep   SleepFunc
}

func NewPoller(fetcher StatusFetcher, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{fetcher: fetcher, logger: logger, sleep: sleepOrDone}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries the status endpoint until the task is DONE or FAILED, the
// attempt budget is spent, or ctx is done. A budget of N yields at most N
// queries and N-1 waits. Fetch errors are not retried.
func (p *Poller) Poll(ctx context.Context, spec domain.FeatureSpec, handle domain.TaskHandle) (Result, error) {
	maxAttempts := spec.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	feature := string(spec.Feature)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ctx, span := tracing.Tracer().Start(ctx, "vendor.poll")
	defer span.End()
	span.SetAttributes(
		attribute.String("pixelq.feature", feature),
		attribute.String("pixelq.task_id", handle.TaskID),
		attribute.Int("pixelq.max_attempts", maxAttempts),
	)

	res := Result{State: StatePolling}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res.State = StateFailed
			span.SetStatus(codes.Error, "canceled")
			return res, fmt.Errorf("%w: polling %s after %d attempts: %v", domain.ErrCanceled, handle.TaskID, res.Attempts, err)
		}

		status, err := p.fetcher.FetchStatus(ctx, spec, handle)
		res.Attempts = attempt
		if err != nil {
			metrics.VendorPollsTotal.WithLabelValues(feature, "error").Inc()
			res.State = StateFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, "status query failed")
			span.SetAttributes(attribute.Int("pixelq.attempts", res.Attempts))
			return res, err
		}
		res.Status = status
		metrics.VendorPollsTotal.WithLabelValues(feature, string(status.State)).Inc()

		switch status.State {
		case domain.StateDone:
			res.State = StateDone
			span.SetAttributes(attribute.Int("pixelq.attempts", res.Attempts))
			return res, nil
		case domain.StateFailed:
			res.State = StateFailed
			span.SetStatus(codes.Error, "vendor failed")
			return res, fmt.Errorf("%w: task %s reported state %s", domain.ErrVendorFailed, handle.TaskID, status.RawState)
		}

		if attempt >= maxAttempts {
			res.State = StateTimedOut
			span.SetStatus(codes.Error, "timed out")
			span.SetAttributes(attribute.Int("pixelq.attempts", res.Attempts))
			return res, fmt.Errorf("%w: task %s not done after %d attempts", domain.ErrPollTimeout, handle.TaskID, attempt)
		}

		delay := backoff.Compute(spec.BackoffPolicy, spec.Interval, spec.MaxInterval, attempt-1, rng)
		p.logger.Debug("vendor task pending",
			"feature", feature,
			"task_id", handle.TaskID,
			"attempt", attempt,
			"state", status.State,
			"raw_state", status.RawState,
			"next_in", delay,
		)
		if err := p.sleep(ctx, delay); err != nil {
			res.State = StateFailed
			span.SetStatus(codes.Error, "canceled")
			return res, fmt.Errorf("%w: polling %s after %d attempts: %v", domain.ErrCanceled, handle.TaskID, res.Attempts, err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
