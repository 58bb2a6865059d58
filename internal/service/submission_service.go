package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetCurrent(ctx context.Context, studentID int64, docType models.DocumentType) (*models.Submission, error)
	ListCurrent(ctx context.Context, studentIDs []int64) ([]models.Submission, error)
	History(ctx context.Context, studentID int64, docType models.DocumentType) ([]models.Submission, error)
}

type slotTransitioner interface {
	Transition(ctx context.Context, params repository.TransitionParams) (*models.Submission, error)
}

type submissionRepository interface {
	submissionStore
	slotTransitioner
}

// SubmissionService drives the approval state machine of each
// (student, document type) slot.
type SubmissionService struct {
	repo     submissionRepository
	students studentLookup
	notifier Notifier
	cache    progressCache
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// SubmissionServiceOption configures optional collaborators.
type SubmissionServiceOption func(*SubmissionService)

// WithSubmissionNotifier sets the notification dispatcher.
func WithSubmissionNotifier(notifier Notifier) SubmissionServiceOption {
	return func(s *SubmissionService) { s.notifier = notifier }
}

// WithSubmissionCache sets the cache invalidated after slot changes.
func WithSubmissionCache(cache progressCache) SubmissionServiceOption {
	return func(s *SubmissionService) { s.cache = cache }
}

// WithSubmissionMetrics sets the metrics sink.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionServiceOption {
	return func(s *SubmissionService) { s.metrics = metrics }
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionRepository, students studentLookup, logger *zap.Logger, opts ...SubmissionServiceOption) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SubmissionService{repo: repo, students: students, validate: validator.New(), logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit uploads a document into an empty slot or one awaiting revision.
func (s *SubmissionService) Submit(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, fileID string) (*models.Submission, error) {
	if actor.Role != models.RoleStudent || actor.ID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student may submit their own documents")
	}
	docType, err := parseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	fileID = strings.TrimSpace(fileID)
	if err := s.validate.Var(fileID, "required,max=255"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file_id is required and must be at most 255 characters")
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}

	sub := &models.Submission{
		StudentID:    studentID,
		DocumentType: docType,
		FileID:       fileID,
		SubmittedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrSlotOccupied) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s already has a submission pending or approved", docType.Label()))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	s.logger.Info("submission received",
		zap.Int64("student_id", studentID),
		zap.String("document_type", string(docType)),
		zap.String("submission_id", sub.ID),
	)
	s.metrics.RecordSubmission(docType)
	invalidateProgress(ctx, s.cache)
	return sub, nil
}

// Approve accepts the pending submission of a slot.
func (s *SubmissionService) Approve(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	if err := requireRole(actor, models.ReviewerRoles...); err != nil {
		return nil, err
	}
	docType, err := parseDocumentType(docType)
	if err != nil {
		return nil, err
	}

	sub, err := transitionSlot(ctx, s.repo, s.students, repository.TransitionParams{
		StudentID:    studentID,
		DocumentType: docType,
		From:         []models.ApprovalStatus{models.StatusPendingApproval},
		To:           models.StatusApproved,
		ReviewedBy:   actor.ID,
		ReviewedAt:   s.now().UTC(),
		Note:         note,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("submission approved",
		zap.Int64("student_id", studentID),
		zap.String("document_type", string(docType)),
		zap.Int64("reviewer_id", actor.ID),
	)
	s.metrics.RecordTransition(docType, models.StatusApproved)
	invalidateProgress(ctx, s.cache)
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: studentID,
			Type:        models.NotificationSubmissionApproved,
			Title:       fmt.Sprintf("%s approved", docType.Label()),
			Message:     fmt.Sprintf("Your %s submission has been approved.", docType.Label()),
		})
	}
	return sub, nil
}

// Slots returns the current state of every document slot for the student.
func (s *SubmissionService) Slots(ctx context.Context, actor models.Actor, studentID int64) ([]models.Slot, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	current, err := s.repo.ListCurrent(ctx, []int64{studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	return buildSlots(studentID, current), nil
}

// Slot returns the state of one slot. An empty slot reports NO_SUBMISSION.
func (s *SubmissionService) Slot(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType) (*models.Slot, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	docType, err := parseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	slot := &models.Slot{StudentID: studentID, DocumentType: docType, Status: models.StatusNoSubmission}
	sub, err := s.repo.GetCurrent(ctx, studentID, docType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slot, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	slot.Status = sub.ApprovalStatus
	slot.Current = sub
	return slot, nil
}

// History returns every attempt for a slot, newest first.
func (s *SubmissionService) History(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType) ([]models.Submission, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	docType, err := parseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, studentID, docType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission history")
	}
	return history, nil
}

// transitionSlot applies a guarded transition and classifies a miss as
// NotFound for unknown students or InvalidTransition otherwise.
func transitionSlot(ctx context.Context, repo slotTransitioner, students studentLookup, params repository.TransitionParams) (*models.Submission, error) {
	sub, err := repo.Transition(ctx, params)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	if err := ensureStudent(ctx, students, params.StudentID); err != nil {
		return nil, err
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("%s cannot move to %s from its current status", params.DocumentType.Label(), params.To))
}

func buildSlots(studentID int64, current []models.Submission) []models.Slot {
	byType := make(map[models.DocumentType]models.Submission, len(current))
	for _, sub := range current {
		if sub.StudentID == studentID {
			byType[sub.DocumentType] = sub
		}
	}
	slots := make([]models.Slot, 0, len(models.DocumentTypes))
	for _, docType := range models.DocumentTypes {
		slot := models.Slot{StudentID: studentID, DocumentType: docType, Status: models.StatusNoSubmission}
		if sub, ok := byType[docType]; ok {
			sub := sub
			slot.Status = sub.ApprovalStatus
			slot.Current = &sub
		}
		slots = append(slots, slot)
	}
	return slots
}
