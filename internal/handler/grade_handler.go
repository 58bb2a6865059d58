package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/service"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/response"
)

type gradingService interface {
	Grade(ctx context.Context, actor models.Actor, studentID int64, scores []int) (*models.Grade, error)
	Get(ctx context.Context, actor models.Actor, studentID int64) (*models.Grade, error)
	History(ctx context.Context, actor models.Actor, studentID int64) ([]models.Grade, error)
}

type gradeSheetExporter interface {
	GradeSheet(ctx context.Context, actor models.Actor, format, cohort string) (*service.ExportFile, error)
}

// GradeHandler exposes rubric grading and the grade sheet export.
type GradeHandler struct {
	grading  gradingService
	exporter gradeSheetExporter
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(grading gradingService, exporter gradeSheetExporter) *GradeHandler {
	return &GradeHandler{grading: grading, exporter: exporter}
}

// Grade godoc
// @Summary Grade a student with the six-criterion rubric
// @Description Replaces any existing grade, including a missed-deadline F.
// @Tags Grades
// @Accept json
// @Produce json
// @Param studentID path int true "Student ID"
// @Param payload body dto.GradeRequest true "Six scores between 1 and 5"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{studentID}/grade [post]
func (h *GradeHandler) Grade(c *gin.Context) {
	if h.grading == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "grading service not configured"))
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
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grade payload"))
		return
	}
	grade, err := h.grading.Grade(c.Request.Context(), actor, studentID, req.Rubric)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Get godoc
// @Summary Get the current grade of a student
// @Tags Grades
// @Produce json
// @Param studentID path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{studentID}/grade [get]
func (h *GradeHandler) Get(c *gin.Context) {
	if h.grading == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "grading service not configured"))
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
	grade, err := h.grading.Get(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// History godoc
// @Summary List every grade ever recorded for a student
// @Tags Grades
// @Produce json
// @Param studentID path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentID}/grade/history [get]
func (h *GradeHandler) History(c *gin.Context) {
	if h.grading == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "grading service not configured"))
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
	history, err := h.grading.History(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Export godoc
// @Summary Download the grade sheet
// @Tags Grades
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Param cohort query string false "Restrict to one cohort"
// @Success 200 {file} binary
// @Router /grades/export [get]
func (h *GradeHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export query"))
		return
	}
	file, err := h.exporter.GradeSheet(c.Request.Context(), actor, query.Format, query.Cohort)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}
