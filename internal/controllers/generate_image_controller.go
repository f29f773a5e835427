package controllers

import (
	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/services"

	"github.com/gin-gonic/gin"
)

type generateImageController struct{ studio services.Studio }

func NewGenerateImageController(studio services.Studio) *generateImageController {
	return &generateImageController{studio: studio}
}

type generateReq struct {
	Prompt  string `json:"prompt"`
	Publish bool   `json:"publish"`
}

func (h *generateImageController) Handle(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeOutcome(c, invalid("Invalid request body."))
		return
	}
	writeOutcome(c, h.studio.GenerateImage(c.Request.Context(), middleware.SubjectFrom(c), req.Prompt, req.Publish))
}
