package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/tracing"
	"github.com/osvaldoandrade/pixelq/pkg/app"
	_ "github.com/osvaldoandrade/pixelq/pkg/auth/jwks"   // Register JWKS auth provider
	_ "github.com/osvaldoandrade/pixelq/pkg/auth/static" // Register static token auth provider (dev/local)
	"github.com/osvaldoandrade/pixelq/pkg/config"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/bolt"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/kafka"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/memory"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/mongo"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/postgres"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/redis"
	_ "github.com/osvaldoandrade/pixelq/pkg/persistence/sqlite"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfgPath := getenv("PIXELQ_CONFIG_PATH", "")

	cfg, err := config.LoadConfigOptional(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] invalid config:", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] init app:", err)
		os.Exit(1)
	}
	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, application.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] tracing:", err)
		os.Exit(1)
	}
	application.TracingShutdown = shutdownTracing
	app.SetupMappings(application)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		application.Logger.Info("pixelq listening", "addr", addr, "persistence", cfg.Persistence.Type, "image_host", cfg.ImageHost)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "[ERROR] http server:", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// In-flight polls may run for a minute; give them a bounded chance to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	if err := application.Persistence.Close(); err != nil {
		application.Logger.Warn("persistence close", "err", err)
	}
	_ = application.Redis.Close()

	// Best-effort flush of trace exporter (if enabled).
	if application.TracingShutdown != nil {
		_ = application.TracingShutdown(ctx)
	}
}
