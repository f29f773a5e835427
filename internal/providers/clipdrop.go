package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/tracing"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxGeneratedBytes = 20 << 20

// ImageGenerator turns a prompt into image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.Image, error)
}

type ClipdropOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type clipdrop struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewClipdrop(opts ClipdropOptions) (ImageGenerator, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("clipdrop: base url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &clipdrop{baseURL: base, apiKey: opts.APIKey, http: hc, logger: logger}, nil
}

func (c *clipdrop) Generate(ctx context.Context, prompt string) (domain.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.Image{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest)
	}

	ctx, span := tracing.Tracer().Start(ctx, "clipdrop.text_to_image")
	defer span.End()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return domain.Image{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-image/v1", &body)
	if err != nil {
		return domain.Image{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		if ctx.Err() != nil {
			return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrCanceled, err)
		}
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrVendorUnreachable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratedBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrVendorUnreachable, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := clipdropError(data)
		c.logger.Warn("clipdrop rejected prompt", "status", resp.StatusCode, "error", msg)
		span.SetStatus(codes.Error, msg)
		if resp.StatusCode >= 500 {
			return domain.Image{}, fmt.Errorf("%w: clipdrop status %d", domain.ErrVendorUnreachable, resp.StatusCode)
		}
		return domain.Image{}, fmt.Errorf("%w: clipdrop status %d: %s", domain.ErrTaskCreationRejected, resp.StatusCode, msg)
	}
	if len(data) > maxGeneratedBytes {
		return domain.Image{}, fmt.Errorf("%w: generated image too large", domain.ErrMalformedResponse)
	}
	if len(data) == 0 {
		return domain.Image{}, fmt.Errorf("%w: empty image", domain.ErrArtifactMissing)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return domain.Image{Data: data, FileName: "generated.png", MIMEType: mime}, nil
}

func clipdropError(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
