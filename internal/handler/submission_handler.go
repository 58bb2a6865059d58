package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, fileID string) (*models.Submission, error)
	Approve(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error)
	Slots(ctx context.Context, actor models.Actor, studentID int64) ([]models.Slot, error)
	Slot(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType) (*models.Slot, error)
	History(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType) ([]models.Submission, error)
}

type revisionService interface {
	RequestRevision(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error)
	ReopenApproved(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error)
}

// SubmissionHandler exposes the document slot workflow.
type SubmissionHandler struct {
	submissions submissionService
	revisions   revisionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions submissionService, revisions revisionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, revisions: revisions}
}

// Submit godoc
// @Summary Submit a document into a slot
// @Tags Submissions
// @Accept json
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "PROPOSAL, DESIGN_DOCUMENT, TEST_DOCUMENT or THESIS"
// @Param payload body dto.SubmitRequest true "Uploaded file reference"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType} [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	sub, err := h.submissions.Submit(c.Request.Context(), actor, studentID, documentTypeParam(c), req.FileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Approve godoc
// @Summary Approve the pending submission of a slot
// @Tags Submissions
// @Accept json
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "Document type"
// @Param payload body dto.ReviewRequest false "Reviewer note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType}/approve [post]
func (h *SubmissionHandler) Approve(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	actor, studentID, note, ok := h.reviewInput(c)
	if !ok {
		return
	}
	sub, err := h.submissions.Approve(c.Request.Context(), actor, studentID, documentTypeParam(c), note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// RequestRevision godoc
// @Summary Reject a pending upload or send an approved document back for revision
// @Tags Submissions
// @Accept json
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "Document type"
// @Param payload body dto.ReviewRequest false "Reviewer note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType}/revision [post]
func (h *SubmissionHandler) RequestRevision(c *gin.Context) {
	if h.revisions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "revision service not configured"))
		return
	}
	actor, studentID, note, ok := h.reviewInput(c)
	if !ok {
		return
	}
	sub, err := h.revisions.RequestRevision(c.Request.Context(), actor, studentID, documentTypeParam(c), note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Reopen godoc
// @Summary Reopen an approved document after a failing grade
// @Tags Submissions
// @Accept json
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "Document type"
// @Param payload body dto.ReviewRequest false "Reviewer note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType}/reopen [post]
func (h *SubmissionHandler) Reopen(c *gin.Context) {
	if h.revisions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "revision service not configured"))
		return
	}
	actor, studentID, note, ok := h.reviewInput(c)
	if !ok {
		return
	}
	sub, err := h.revisions.ReopenApproved(c.Request.Context(), actor, studentID, documentTypeParam(c), note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// List godoc
// @Summary List the four document slots of a student
// @Tags Submissions
// @Produce json
// @Param studentID path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentID}/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.submissions.Slots(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SlotListResponse{StudentID: studentID, Slots: slots}, nil)
}

// Get godoc
// @Summary Get one document slot
// @Tags Submissions
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "Document type"
// @Success 200 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	slot, err := h.submissions.Slot(c.Request.Context(), actor, studentID, documentTypeParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// History godoc
// @Summary List every attempt for a slot, newest first
// @Tags Submissions
// @Produce json
// @Param studentID path int true "Student ID"
// @Param documentType path string true "Document type"
// @Success 200 {object} response.Envelope
// @Router /students/{studentID}/submissions/{documentType}/history [get]
func (h *SubmissionHandler) History(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.submissions.History(c.Request.Context(), actor, studentID, documentTypeParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// reviewInput reads the actor, path student and optional note. It writes the
// error response itself and reports false when the request cannot proceed.
func (h *SubmissionHandler) reviewInput(c *gin.Context) (models.Actor, int64, *string, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, 0, nil, false
	}
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return models.Actor{}, 0, nil, false
	}
	var req dto.ReviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
			return models.Actor{}, 0, nil, false
		}
	}
	var note *string
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = &trimmed
	}
	return actor, studentID, note, true
}
