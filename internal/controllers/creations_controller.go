package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/pixelq/internal/middleware"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
)

type creationsController struct{ svc services.CreationsService }

func NewCreationsController(svc services.CreationsService) *creationsController {
	return &creationsController{svc: svc}
}

func (h *creationsController) Handle(c *gin.Context) {
	var filter domain.CreationFilter
	if v := strings.TrimSpace(c.Query("published")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "published must be true or false"})
			return
		}
		filter.PublishedOnly = b
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}

	out, err := h.svc.List(c.Request.Context(), middleware.SubjectFrom(c), filter)
	if errors.Is(err, domain.ErrInvalidRequest) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}
	if errors.Is(err, services.ErrFeedUnavailable) {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "message": "Creations feed is not available on this deployment."})
		return
	}
	if err != nil {
		middleware.LoggerFrom(c).Error("list creations failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not load creations."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "creations": out})
}
