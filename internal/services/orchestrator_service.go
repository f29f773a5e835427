package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/metrics"
	"github.com/osvaldoandrade/pixelq/internal/polling"
	"github.com/osvaldoandrade/pixelq/internal/tracing"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VendorClient is the subset of the vendor task client the orchestrator drives.
type VendorClient interface {
	CreateTask(ctx context.Context, spec domain.FeatureSpec, req domain.TaskRequest) (domain.TaskHandle, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

type Poller interface {
	Poll(ctx context.Context, spec domain.FeatureSpec, handle domain.TaskHandle) (polling.Result, error)
}

// Orchestrator runs one asynchronous vendor feature end to end and always
// answers with exactly one Outcome.
type Orchestrator interface {
	Run(ctx context.Context, feature domain.Feature, req domain.TaskRequest, opts ...RunOption) domain.Outcome
	Spec(feature domain.Feature) (domain.FeatureSpec, bool)
}

type runOptions struct {
	publish bool
	prompt  string
	owner   string
}

type RunOption func(*runOptions)

// WithPublish marks the stored creation as public.
func WithPublish(publish bool) RunOption {
	return func(o *runOptions) { o.publish = publish }
}

// WithOwner records the caller's subject on the stored creation.
func WithOwner(userID string) RunOption {
	return func(o *runOptions) { o.owner = userID }
}

// WithPrompt overrides the feature's default creation prompt.
func WithPrompt(prompt string) RunOption {
	return func(o *runOptions) { o.prompt = prompt }
}

type orchestrator struct {
	client VendorClient
	poller Poller
	specs  map[domain.Feature]domain.FeatureSpec
	writer *CreationWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewOrchestrator(client VendorClient, poller Poller, specs map[domain.Feature]domain.FeatureSpec, writer *CreationWriter, logger *slog.Logger, now func() time.Time) Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	copied := make(map[domain.Feature]domain.FeatureSpec, len(specs))
	for f, s := range specs {
		copied[f] = s
	}
	return &orchestrator{client: client, poller: poller, specs: copied, writer: writer, logger: logger, now: now}
}

func (o *orchestrator) Spec(feature domain.Feature) (domain.FeatureSpec, bool) {
	s, ok := o.specs[feature]
	return s, ok
}

func (o *orchestrator) Run(ctx context.Context, feature domain.Feature, req domain.TaskRequest, opts ...RunOption) domain.Outcome {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	start := o.now()

	spec, ok := o.specs[feature]
	if !ok {
		out := domain.Failed(fmt.Errorf("%w: feature %q is not configured", domain.ErrInvalidRequest, feature))
		o.record(feature, start, out, nil)
		return out
	}

	ctx, span := tracing.Tracer().Start(ctx, "feature.run",
		trace.WithAttributes(attribute.String("pixelq.feature", string(feature))),
	)
	defer span.End()

	out, err := o.run(ctx, spec, req, ro)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(out.ErrorKind))
	}
	o.record(feature, start, out, err)
	return out
}

func (o *orchestrator) run(ctx context.Context, spec domain.FeatureSpec, req domain.TaskRequest, ro runOptions) (domain.Outcome, error) {
	handle, err := o.client.CreateTask(ctx, spec, req)
	if err != nil {
		return domain.Failed(err), err
	}
	metrics.VendorTasksCreatedTotal.WithLabelValues(string(spec.Feature)).Inc()
	o.logger.Info("vendor task created", "feature", spec.Feature, "task_id", handle.TaskID)

	res, err := o.poller.Poll(ctx, spec, handle)
	if err != nil {
		return domain.Failed(err), err
	}

	_, extractSpan := tracing.Tracer().Start(ctx, "result.extract")
	artifact, err := polling.Extract(spec, res.Status)
	if err != nil {
		extractSpan.SetStatus(codes.Error, err.Error())
		extractSpan.End()
		return domain.Failed(err), err
	}
	extractSpan.End()

	out := domain.Succeeded(artifact)
	if spec.FetchText {
		text, err := o.client.Download(ctx, artifact)
		if err != nil {
			o.logger.Warn("artifact text download failed", "feature", spec.Feature, "task_id", handle.TaskID, "err", err)
		} else {
			out.Text = string(text)
		}
	}

	if spec.Persist && o.writer != nil {
		prompt := ro.prompt
		if prompt == "" {
			prompt = spec.Prompt
		}
		o.writer.Write(ctx, ro.owner, prompt, artifact, ro.publish)
	}
	return out, nil
}

func (o *orchestrator) record(feature domain.Feature, start time.Time, out domain.Outcome, err error) {
	label := outcomeLabel(out)
	metrics.OutcomesTotal.WithLabelValues(string(feature), label).Inc()
	metrics.TaskLatencySeconds.WithLabelValues(string(feature), label).Observe(o.now().Sub(start).Seconds())
	if out.Success {
		o.logger.Info("feature succeeded", "feature", feature, "artifact", out.Artifact)
		return
	}
	o.logger.Warn("feature failed", "feature", feature, "error_kind", out.ErrorKind, "err", err)
}

func outcomeLabel(out domain.Outcome) string {
	if out.Success {
		return "success"
	}
	return string(out.ErrorKind)
}
