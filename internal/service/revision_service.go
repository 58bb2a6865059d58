package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
)

// RevisionService moves a slot to REVISION_REQUESTED so the student can upload again.
type RevisionService struct {
	repo     slotTransitioner
	students studentLookup
	notifier Notifier
	cache    progressCache
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRevisionService constructs the service. notifier, cache and metrics may be nil.
func NewRevisionService(repo slotTransitioner, students studentLookup, notifier Notifier, cache progressCache, metrics *MetricsService, logger *zap.Logger) *RevisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionService{
		repo:     repo,
		students: students,
		notifier: notifier,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestRevision rejects a pending upload or reopens an approved one.
// NO_SUBMISSION and REVISION_REQUESTED slots are rejected with an invalid transition.
func (s *RevisionService) RequestRevision(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	return s.moveToRevision(ctx, actor, studentID, docType, note, models.StatusPendingApproval, models.StatusApproved)
}

// ReopenApproved reopens a slot whose current submission is APPROVED, typically
// after a failing grade. Any other status is an invalid transition.
func (s *RevisionService) ReopenApproved(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	return s.moveToRevision(ctx, actor, studentID, docType, note, models.StatusApproved)
}

func (s *RevisionService) moveToRevision(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string, from ...models.ApprovalStatus) (*models.Submission, error) {
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
		From:         from,
		To:           models.StatusRevisionRequested,
		ReviewedBy:   actor.ID,
		ReviewedAt:   s.now().UTC(),
		Note:         note,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("revision requested",
		zap.Int64("student_id", studentID),
		zap.String("document_type", string(docType)),
		zap.Int64("reviewer_id", actor.ID),
	)
	s.metrics.RecordTransition(docType, models.StatusRevisionRequested)
	invalidateProgress(ctx, s.cache)
	if s.notifier != nil {
		message := fmt.Sprintf("A revision of your %s has been requested.", docType.Label())
		if note != nil && strings.TrimSpace(*note) != "" {
			message = fmt.Sprintf("%s Reviewer note: %s", message, strings.TrimSpace(*note))
		}
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: studentID,
			Type:        models.NotificationRevisionRequested,
			Title:       fmt.Sprintf("%s revision requested", docType.Label()),
			Message:     message,
		})
	}
	return sub, nil
}
