package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/response"
)

type progressService interface {
	Board(ctx context.Context, actor models.Actor, cohort string) ([]models.StudentProgress, error)
}

// ProgressHandler serves the supervisor progress board.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Board godoc
// @Summary Slot statuses and grades for every student
// @Tags Progress
// @Produce json
// @Param cohort query string false "Restrict to one cohort"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) Board(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "progress service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	board, err := h.service.Board(c.Request.Context(), actor, strings.TrimSpace(c.Query("cohort")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil, map[string]interface{}{"students": len(board)})
}
