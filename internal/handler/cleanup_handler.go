package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencourse/media-api/internal/service"
	"github.com/opencourse/media-api/pkg/response"
)

type cleanupRunner interface {
	Sweep(ctx context.Context) service.SweepSummary
}

// CleanupHandler exposes the on-demand storage reclamation endpoint.
type CleanupHandler struct {
	service cleanupRunner
}

// NewCleanupHandler constructs the handler.
func NewCleanupHandler(service cleanupRunner) *CleanupHandler {
	return &CleanupHandler{service: service}
}

// Run godoc
// @Summary Run a cleanup sweep immediately
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/cleanup [post]
func (h *CleanupHandler) Run(c *gin.Context) {
	summary := h.service.Sweep(c.Request.Context())
	response.JSON(c, http.StatusOK, summary, nil)
}
