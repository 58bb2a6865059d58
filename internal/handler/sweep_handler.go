package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/response"
)

type sweepService interface {
	Run(ctx context.Context, actor models.Actor) (*models.SweepResult, error)
	LastResult() (*models.SweepResult, bool)
}

// SweepHandler triggers the missed deadline sweep on demand.
type SweepHandler struct {
	service sweepService
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(service sweepService) *SweepHandler {
	return &SweepHandler{service: service}
}

// Run godoc
// @Summary Run the missed deadline sweep
// @Description Fails every student with an overdue, unapproved document who holds no grade yet.
// @Tags Sweeps
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sweeps [post]
func (h *SweepHandler) Run(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweep service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Run(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Last godoc
// @Summary Get the result of the most recent sweep in this process
// @Tags Sweeps
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sweeps/last [get]
func (h *SweepHandler) Last(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweep service not configured"))
		return
	}
	result, ok := h.service.LastResult()
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no sweep has run yet"))
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
