package controllers

import (
	"strings"

	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
)

// featureController serves the polled vendor features: ocr, colorize and enhance.
type featureController struct {
	orch    services.Orchestrator
	feature domain.Feature
	images  imageReader
}

func NewFeatureController(orch services.Orchestrator, feature domain.Feature, normalizer providers.Normalizer) *featureController {
	return &featureController{orch: orch, feature: feature, images: imageReader{normalizer: normalizer}}
}

func (h *featureController) Handle(c *gin.Context) {
	img, err := h.images.read(c, "image")
	if err != nil {
		writeOutcome(c, domain.FailedWithMessage(err, msgBadImage))
		return
	}
	if len(img.Data) == 0 {
		writeOutcome(c, noImage)
		return
	}

	params := map[string]string{}
	if h.feature == domain.FeatureOCR {
		if f := strings.TrimSpace(c.PostForm("format")); f != "" {
			params["format"] = f
		}
	}
	opts := []services.RunOption{
		services.WithPublish(formBool(c, "publish")),
		services.WithOwner(middleware.SubjectFrom(c)),
	}
	if p := strings.TrimSpace(c.PostForm("prompt")); p != "" {
		opts = append(opts, services.WithPrompt(p))
	}

	writeOutcome(c, h.orch.Run(c.Request.Context(), h.feature, taskRequest(img, params), opts...))
}
