package controllers

import (
	"strings"

	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
)

type removeObjectController struct {
	studio services.Studio
	images imageReader
}

func NewRemoveObjectController(studio services.Studio, normalizer providers.Normalizer) *removeObjectController {
	return &removeObjectController{studio: studio, images: imageReader{normalizer: normalizer}}
}

func (h *removeObjectController) Handle(c *gin.Context) {
	object := c.PostForm("object")
	img, err := h.images.read(c, "image")
	// a missing object is reported before anything about the image
	if err != nil && strings.TrimSpace(object) != "" {
		writeOutcome(c, domain.FailedWithMessage(err, msgBadImage))
		return
	}
	writeOutcome(c, h.studio.RemoveObject(c.Request.Context(), middleware.SubjectFrom(c), img, object))
}
