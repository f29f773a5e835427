package controllers

import (
	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
)

type removeBackgroundController struct {
	studio services.Studio
	images imageReader
}

func NewRemoveBackgroundController(studio services.Studio, normalizer providers.Normalizer) *removeBackgroundController {
	return &removeBackgroundController{studio: studio, images: imageReader{normalizer: normalizer}}
}

func (h *removeBackgroundController) Handle(c *gin.Context) {
	img, err := h.images.read(c, "image")
	if err != nil {
		writeOutcome(c, domain.FailedWithMessage(err, msgBadImage))
		return
	}
	writeOutcome(c, h.studio.RemoveBackground(c.Request.Context(), middleware.SubjectFrom(c), img))
}
