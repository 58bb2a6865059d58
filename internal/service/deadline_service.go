package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

type deadlineStore interface {
	ListActive(ctx context.Context) ([]models.Deadline, error)
	Set(ctx context.Context, deadline *models.Deadline) (*models.Deadline, error)
}

// DeadlineService manages the deadline registry read by the sweeper.
type DeadlineService struct {
	repo      deadlineStore
	cache     progressCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDeadlineService constructs the service.
func NewDeadlineService(repo deadlineStore, cache progressCache, validate *validator.Validate, logger *zap.Logger) *DeadlineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DeadlineService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Set replaces the active deadline for the document type and cohort.
func (s *DeadlineService) Set(ctx context.Context, actor models.Actor, docType models.DocumentType, req dto.SetDeadlineRequest) (*models.Deadline, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	docType, err := parseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}

	deadline := &models.Deadline{
		DocumentType: docType,
		DueDate:      req.DueDate.UTC(),
		CreatedBy:    actor.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if cohort := strings.TrimSpace(req.Cohort); cohort != "" {
		deadline.Cohort = &cohort
	}

	previous, err := s.repo.Set(ctx, deadline)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set deadline")
	}

	fields := []zap.Field{
		zap.String("document_type", string(docType)),
		zap.Time("due_date", deadline.DueDate),
		zap.Int64("admin_id", actor.ID),
	}
	if deadline.Cohort != nil {
		fields = append(fields, zap.String("cohort", *deadline.Cohort))
	}
	if previous != nil {
		fields = append(fields, zap.String("superseded_id", previous.ID))
	}
	s.logger.Info("deadline set", fields...)
	invalidateProgress(ctx, s.cache)
	return deadline, nil
}

// List returns the active deadlines. Every authenticated role may read them.
func (s *DeadlineService) List(ctx context.Context) ([]models.Deadline, error) {
	deadlines, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadlines")
	}
	if deadlines == nil {
		deadlines = []models.Deadline{}
	}
	return deadlines, nil
}
