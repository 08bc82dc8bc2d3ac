package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/pkg/infra/app"
)

// HealthHandler reports process liveness plus a snapshot of the pipeline:
// which providers are wired and how many chunks the store holds.
type HealthHandler struct {
	service   *biz.Service
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(service *biz.Service) *HealthHandler {
	return &HealthHandler{service: service, startedAt: time.Now()}
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	resp := gin.H{
		"status":             "ok",
		"version":            app.VersionInfo().GitVersion,
		"uptime":             time.Since(h.startedAt).String(),
		"embedding_provider": h.service.EmbedderName(),
		"chat_provider":      h.service.ChatProviderName(),
	}

	if n, err := h.service.ChunkCount(c.Request.Context()); err != nil {
		resp["status"] = "degraded"
	} else {
		resp["indexed_chunks"] = n
	}

	c.JSON(http.StatusOK, resp)
}
