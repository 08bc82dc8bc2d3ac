package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/internal/pkg/httputils"
	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// EvaluationHandler scores answers for grounding quality.
type EvaluationHandler struct {
	service *biz.Service
}

// NewEvaluationHandler creates an evaluation handler.
func NewEvaluationHandler(service *biz.Service) *EvaluationHandler {
	return &EvaluationHandler{service: service}
}

// Evaluate handles POST /api/evaluation.
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	var req biz.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithCause(err), nil)
		return
	}

	report, err := h.service.Evaluate(c.Request.Context(), &req)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, report)
}
