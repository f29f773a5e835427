package app

import (
	"github.com/osvaldoandrade/pixelq/internal/controllers"
	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	cfg := app.Config
	health := controllers.NewHealthController(app.Persistence)
	app.Engine.GET("/", health.Live)
	app.Engine.GET("/healthz", health.Ready)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.ImageHost == "local" && cfg.PublicBaseURL != "" {
		app.Engine.Static("/artifacts", cfg.LocalArtifactsDir)
	}

	api := app.Engine.Group("/api/ai",
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
		middleware.AuthMiddleware(app.Validator),
	)
	{
		api.GET("/creations", controllers.NewCreationsController(app.Creations).Handle)

		ai := api.Group("",
			middleware.RequirePremium(cfg.PremiumRequired(), cfg.IsDev()),
			middleware.RateLimitAI(app.RateLimiter, cfg),
		)
		ai.POST("/ocr-image", controllers.NewFeatureController(app.Orchestrator, domain.FeatureOCR, app.Normalizer).Handle)
		ai.POST("/colorize-image", controllers.NewFeatureController(app.Orchestrator, domain.FeatureColorize, app.Normalizer).Handle)
		ai.POST("/enhance-image", controllers.NewFeatureController(app.Orchestrator, domain.FeatureEnhance, app.Normalizer).Handle)
		ai.POST("/generate-image", controllers.NewGenerateImageController(app.Studio).Handle)
		ai.POST("/remove-image-background", controllers.NewRemoveBackgroundController(app.Studio, app.Normalizer).Handle)
		ai.POST("/remove-image-object", controllers.NewRemoveObjectController(app.Studio, app.Normalizer).Handle)
	}
}
