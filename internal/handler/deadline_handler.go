package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/response"
)

type deadlineService interface {
	Set(ctx context.Context, actor models.Actor, docType models.DocumentType, req dto.SetDeadlineRequest) (*models.Deadline, error)
	List(ctx context.Context) ([]models.Deadline, error)
}

// DeadlineHandler manages the deadline registry.
type DeadlineHandler struct {
	service deadlineService
}

// NewDeadlineHandler constructs the handler.
func NewDeadlineHandler(service deadlineService) *DeadlineHandler {
	return &DeadlineHandler{service: service}
}

// Set godoc
// @Summary Set the deadline of a document type
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param documentType path string true "Document type"
// @Param payload body dto.SetDeadlineRequest true "Due date and optional cohort"
// @Success 200 {object} response.Envelope
// @Router /deadlines/{documentType} [put]
func (h *DeadlineHandler) Set(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "deadline service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SetDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deadline payload"))
		return
	}
	deadline, err := h.service.Set(c.Request.Context(), actor, documentTypeParam(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadline, nil)
}

// List godoc
// @Summary List active deadlines
// @Tags Deadlines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /deadlines [get]
func (h *DeadlineHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "deadline service not configured"))
		return
	}
	deadlines, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadlines, nil)
}
