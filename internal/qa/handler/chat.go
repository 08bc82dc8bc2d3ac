// Package handler provides the HTTP handlers of the QA service.
package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/internal/pkg/httputils"
	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// ChatHandler answers questions over the indexed corpus.
type ChatHandler struct {
	service *biz.Service
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service *biz.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// quotaResponse is the fixed wire shape clients depend on when the
// model quota is exhausted. It bypasses the standard envelope.
type quotaResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after,omitempty"`
	QuotaLimit *int   `json:"quota_limit,omitempty"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req biz.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithCause(err), nil)
		return
	}

	result, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		var quota *llm.QuotaError
		if stderrors.As(err, &quota) {
			writeQuotaExceeded(c, quota)
			return
		}
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, result)
}

func writeQuotaExceeded(c *gin.Context, quota *llm.QuotaError) {
	resp := quotaResponse{
		Error:   "quota_exceeded",
		Message: quota.Message,
	}
	if quota.RetryAfter > 0 {
		v := quota.RetryAfter
		resp.RetryAfter = &v
	}
	if quota.QuotaLimit > 0 {
		v := quota.QuotaLimit
		resp.QuotaLimit = &v
	}
	c.JSON(http.StatusTooManyRequests, resp)
}
