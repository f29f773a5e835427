package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/metrics"
	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

const (
	MsgGenerationFailed = "Image generation failed."
	MsgMissingObject    = "Missing object to remove."
	MsgNoImage          = "No image file provided."

	PromptRemoveBackground = "Remove background from image"
)

const (
	opGenerate         = "GENERATE"
	opRemoveBackground = "REMOVE_BACKGROUND"
	opRemoveObject     = "REMOVE_OBJECT"
)

// Studio runs the synchronous editing features that need no vendor polling.
// owner is the caller's subject, stored on the resulting creation.
type Studio interface {
	GenerateImage(ctx context.Context, owner, prompt string, publish bool) domain.Outcome
	RemoveBackground(ctx context.Context, owner string, img domain.Image) domain.Outcome
	RemoveObject(ctx context.Context, owner string, img domain.Image, object string) domain.Outcome
}

type studio struct {
	generator providers.ImageGenerator
	host      providers.ImageHost
	writer    *CreationWriter
	logger    *slog.Logger
	now       func() time.Time
}

func NewStudio(generator providers.ImageGenerator, host providers.ImageHost, writer *CreationWriter, logger *slog.Logger, now func() time.Time) Studio {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &studio{generator: generator, host: host, writer: writer, logger: logger, now: now}
}

func (s *studio) GenerateImage(ctx context.Context, owner, prompt string, publish bool) domain.Outcome {
	start := s.now()
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s.finish(opGenerate, start, domain.FailedWithMessage(domain.ErrInvalidRequest, "Prompt is required."), domain.ErrInvalidRequest)
	}
	if s.generator == nil {
		err := fmt.Errorf("%w: text-to-image is not configured", domain.ErrVendorUnreachable)
		return s.finish(opGenerate, start, domain.FailedWithMessage(err, MsgGenerationFailed), err)
	}

	img, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return s.finish(opGenerate, start, domain.FailedWithMessage(err, MsgGenerationFailed), err)
	}
	hosted, err := s.host.Upload(ctx, img, "")
	if err != nil {
		return s.finish(opGenerate, start, domain.FailedWithMessage(hostError(err), MsgGenerationFailed), err)
	}
	s.writer.Write(ctx, owner, prompt, hosted.URL, publish)
	return s.finish(opGenerate, start, domain.Succeeded(hosted.URL), nil)
}

func (s *studio) RemoveBackground(ctx context.Context, owner string, img domain.Image) domain.Outcome {
	start := s.now()
	if len(img.Data) == 0 {
		return s.finish(opRemoveBackground, start, domain.FailedWithMessage(domain.ErrInvalidRequest, MsgNoImage), domain.ErrInvalidRequest)
	}
	hosted, err := s.host.Upload(ctx, img, providers.BackgroundRemoval)
	if err != nil {
		return s.finish(opRemoveBackground, start, domain.FailedWithMessage(hostError(err), MsgGenerationFailed), err)
	}
	s.writer.Write(ctx, owner, PromptRemoveBackground, hosted.URL, false)
	return s.finish(opRemoveBackground, start, domain.Succeeded(hosted.URL), nil)
}

func (s *studio) RemoveObject(ctx context.Context, owner string, img domain.Image, object string) domain.Outcome {
	start := s.now()
	object = strings.TrimSpace(object)
	if object == "" {
		return s.finish(opRemoveObject, start, domain.FailedWithMessage(domain.ErrInvalidRequest, MsgMissingObject), domain.ErrInvalidRequest)
	}
	if len(img.Data) == 0 {
		return s.finish(opRemoveObject, start, domain.FailedWithMessage(domain.ErrInvalidRequest, MsgNoImage), domain.ErrInvalidRequest)
	}
	transformation, err := providers.GenerativeRemove(object)
	if err != nil {
		return s.finish(opRemoveObject, start, domain.FailedWithMessage(err, "Object name contains unsupported characters."), err)
	}

	hosted, err := s.host.Upload(ctx, img, "")
	if err != nil {
		return s.finish(opRemoveObject, start, domain.FailedWithMessage(hostError(err), MsgGenerationFailed), err)
	}
	u, err := s.host.TransformedURL(hosted.PublicID, transformation)
	if err != nil {
		return s.finish(opRemoveObject, start, domain.FailedWithMessage(hostError(err), MsgGenerationFailed), err)
	}
	s.writer.Write(ctx, owner, fmt.Sprintf("Removed %s from image", object), u, false)
	return s.finish(opRemoveObject, start, domain.Succeeded(u), nil)
}

// hostError classifies image host failures as an unreachable vendor unless
// the context ended first.
func hostError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(domain.ErrVendorUnreachable, err)
}

func (s *studio) finish(op string, start time.Time, out domain.Outcome, err error) domain.Outcome {
	label := outcomeLabel(out)
	metrics.OutcomesTotal.WithLabelValues(op, label).Inc()
	metrics.TaskLatencySeconds.WithLabelValues(op, label).Observe(s.now().Sub(start).Seconds())
	if out.Success {
		s.logger.Info("edit succeeded", "operation", op, "artifact", out.Artifact)
	} else {
		s.logger.Warn("edit failed", "operation", op, "error_kind", out.ErrorKind, "err", err)
	}
	return out
}
