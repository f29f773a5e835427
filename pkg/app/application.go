package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/metrics"
	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/polling"
	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/internal/ratelimit"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/internal/vendor"
	"github.com/osvaldoandrade/pixelq/pkg/auth"
	"github.com/osvaldoandrade/pixelq/pkg/config"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type Application struct {
	Config       *config.Config
	Engine       *gin.Engine
	Logger       *slog.Logger
	Redis        *redis.Client
	Persistence  persistence.PluginPersistence
	Orchestrator services.Orchestrator
	Studio       services.Studio
	Creations    services.CreationsService
	Validator    auth.Validator
	RateLimiter  ratelimit.Limiter
	Normalizer   providers.Normalizer
	ImageHost    providers.ImageHost
	Generator    providers.ImageGenerator

	// TracingShutdown flushes the trace exporter; set by the server entrypoint.
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithValidator sets a custom bearer token validator
func WithValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.Validator = validator
		return nil
	}
}

// WithPersistence replaces the configured creation sink
func WithPersistence(p persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Persistence = p
		return nil
	}
}

// WithImageHost replaces the configured image host
func WithImageHost(h providers.ImageHost) ApplicationOption {
	return func(app *Application) error {
		app.ImageHost = h
		return nil
	}
}

// WithImageGenerator replaces the text-to-image provider
func WithImageGenerator(g providers.ImageGenerator) ApplicationOption {
	return func(app *Application) error {
		app.Generator = g
		return nil
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "pixelq", "env", cfg.Env)
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient)

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggerMiddleware(logger))

	app := &Application{
		Config:      cfg,
		Engine:      engine,
		Logger:      logger,
		Redis:       redisClient,
		RateLimiter: limiter,
		Normalizer: providers.Normalizer{
			MaxBytes:     cfg.Upload.MaxBytes,
			MaxDimension: cfg.Upload.MaxImageDimension,
		},
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Validator == nil {
		raw, err := cfg.AuthProvider.RawConfig()
		if err != nil {
			return nil, err
		}
		validator, err := auth.NewValidator(auth.ProviderConfig{Type: cfg.AuthProvider.Type, Config: raw})
		if err != nil {
			return nil, fmt.Errorf("auth provider: %w", err)
		}
		app.Validator = validator
	}

	if app.Persistence == nil {
		p, err := newPersistence(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.Persistence = p
	}
	store := app.Persistence.CreationStorage()
	if readable(store) {
		metrics.RegisterCreationsCollector(store, logger)
	}

	if app.ImageHost == nil {
		host, err := newImageHost(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.ImageHost = host
	}
	if app.Generator == nil && strings.TrimSpace(cfg.Clipdrop.APIKey) != "" {
		gen, err := providers.NewClipdrop(providers.ClipdropOptions{
			BaseURL:    cfg.Clipdrop.BaseURL,
			APIKey:     cfg.Clipdrop.APIKey,
			HTTPClient: &http.Client{Timeout: time.Duration(cfg.Clipdrop.TimeoutSeconds) * time.Second},
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		app.Generator = gen
	}

	client, err := vendor.NewClient(vendor.Options{
		BaseURL:          cfg.Vendor.BaseURL,
		APIKey:           cfg.Vendor.APIKey,
		APIKeyHeader:     cfg.Vendor.APIKeyHeader,
		HTTPClient:       &http.Client{Timeout: time.Duration(cfg.Vendor.TimeoutSeconds) * time.Second},
		MaxResponseBytes: cfg.Vendor.MaxResponseBytes,
		MaxDownloadBytes: cfg.Vendor.MaxDownloadBytes,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	specs, err := cfg.FeatureSpecs()
	if err != nil {
		return nil, err
	}

	writer := services.NewCreationWriter(store, logger, time.Now)
	poller := polling.NewPoller(client, logger)
	app.Orchestrator = services.NewOrchestrator(client, poller, specs, writer, logger, time.Now)
	app.Studio = services.NewStudio(app.Generator, app.ImageHost, writer, logger, time.Now)
	app.Creations = services.NewCreationsService(store)

	return app, nil
}

func newPersistence(cfg *config.Config, logger *slog.Logger) (persistence.PluginPersistence, error) {
	pc := cfg.Persistence
	if pc.Type == "redis" {
		// the redis sink shares the rate limiter's server unless told otherwise
		merged := map[string]any{"addr": cfg.RedisAddr, "password": cfg.RedisPassword}
		for k, v := range pc.Config {
			merged[k] = v
		}
		pc.Config = merged
	}
	raw, err := pc.RawConfig()
	if err != nil {
		return nil, err
	}
	p, err := persistence.NewPersistence(
		persistence.ProviderConfig{Type: pc.Type, Config: raw},
		persistence.PluginConfig{Logger: logger},
	)
	if err != nil {
		return nil, fmt.Errorf("persistence %q (registered: %s): %w", pc.Type, strings.Join(persistence.ListProviders(), ", "), err)
	}
	return p, nil
}

func newImageHost(cfg *config.Config, logger *slog.Logger) (providers.ImageHost, error) {
	if cfg.ImageHost == "cloudinary" {
		return providers.NewCloudinaryHost(providers.CloudinaryOptions{
			URL:       cfg.Cloudinary.URL,
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
			Folder:    cfg.Cloudinary.Folder,
			Logger:    logger,
		})
	}
	return providers.NewLocalHost(cfg.LocalArtifactsDir, cfg.PublicBaseURL), nil
}

// readable reports whether store answers reads. Write-only sinks are left
// out of the collector and the feed answers 501 for them.
func readable(store persistence.CreationStorage) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := store.Count(ctx, domain.CreationFilter{})
	return !errors.Is(err, persistence.ErrNotSupported)
}
