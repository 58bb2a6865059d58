package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

const (
	minRubricScore = 1
	maxRubricScore = 5
)

var letterThresholds = []struct {
	min    float64
	letter models.Letter
}{
	{4.5, models.LetterA},
	{3.5, models.LetterB},
	{2.5, models.LetterC},
	{1.5, models.LetterD},
}

// ValidateRubric checks that exactly six scores are present and each lies in [1,5].
func ValidateRubric(scores []int) (models.Rubric, error) {
	var rubric models.Rubric
	if len(scores) != models.RubricSize {
		return rubric, appErrors.Clone(appErrors.ErrRubricOutOfRange, fmt.Sprintf("rubric requires exactly %d scores", models.RubricSize))
	}
	for i, score := range scores {
		if score < minRubricScore || score > maxRubricScore {
			return rubric, appErrors.Clone(appErrors.ErrRubricOutOfRange, fmt.Sprintf("rubric score %d is %d, must be between %d and %d", i+1, score, minRubricScore, maxRubricScore))
		}
		rubric[i] = score
	}
	return rubric, nil
}

// ComputeLetter returns the average and letter for a validated rubric.
func ComputeLetter(rubric models.Rubric) (models.Letter, float64) {
	avg := float64(rubric.Sum()) / float64(models.RubricSize)
	for _, threshold := range letterThresholds {
		if avg >= threshold.min {
			return threshold.letter, avg
		}
	}
	return models.LetterF, avg
}

type gradeStore interface {
	Get(ctx context.Context, studentID int64) (*models.Grade, error)
	History(ctx context.Context, studentID int64) ([]models.Grade, error)
	Save(ctx context.Context, grade *models.Grade) error
}

// GradingService assigns rubric grades. A manual grade always replaces the
// previous one, including a missed-deadline F.
type GradingService struct {
	grades   gradeStore
	students studentLookup
	notifier Notifier
	cache    progressCache
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// GradingServiceOption configures optional collaborators.
type GradingServiceOption func(*GradingService)

// WithGradingNotifier sets the notification dispatcher.
func WithGradingNotifier(notifier Notifier) GradingServiceOption {
	return func(s *GradingService) { s.notifier = notifier }
}

// WithGradingCache sets the cache invalidated after each grade.
func WithGradingCache(cache progressCache) GradingServiceOption {
	return func(s *GradingService) { s.cache = cache }
}

// WithGradingMetrics sets the metrics sink.
func WithGradingMetrics(metrics *MetricsService) GradingServiceOption {
	return func(s *GradingService) { s.metrics = metrics }
}

// NewGradingService constructs the service.
func NewGradingService(grades gradeStore, students studentLookup, logger *zap.Logger, opts ...GradingServiceOption) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &GradingService{grades: grades, students: students, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Grade validates the rubric, derives the letter and stores it as the student's grade.
// Nothing is written when any score is invalid.
func (s *GradingService) Grade(ctx context.Context, actor models.Actor, studentID int64, scores []int) (*models.Grade, error) {
	if err := requireRole(actor, models.ReviewerRoles...); err != nil {
		return nil, err
	}
	rubric, err := ValidateRubric(scores)
	if err != nil {
		return nil, err
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}

	letter, avg := ComputeLetter(rubric)
	grade := &models.Grade{
		StudentID: studentID,
		Rubric:    &rubric,
		Average:   &avg,
		Letter:    letter,
		Reason:    models.GradeReasonRubric,
		GradedBy:  actor.ID,
		GradedAt:  s.now().UTC(),
	}
	if err := s.grades.Save(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	s.logger.Info("grade assigned",
		zap.Int64("student_id", studentID),
		zap.String("letter", string(letter)),
		zap.Float64("average", avg),
		zap.Int64("graded_by", actor.ID),
		zap.Int("version", grade.Version),
	)
	s.metrics.RecordGrade(letter, grade.Reason)
	invalidateProgress(ctx, s.cache)
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: studentID,
			Type:        models.NotificationGradeAssigned,
			Title:       "Final grade assigned",
			Message:     fmt.Sprintf("Your thesis has been graded %s (average %.2f).", letter, avg),
		})
	}
	return grade, nil
}

// Get returns the student's current grade.
func (s *GradingService) Get(ctx context.Context, actor models.Actor, studentID int64) (*models.Grade, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	grade, err := s.grades.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no grade")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// History returns every grade version recorded for the student, newest first.
func (s *GradingService) History(ctx context.Context, actor models.Actor, studentID int64) ([]models.Grade, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	if err := ensureStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	history, err := s.grades.History(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade history")
	}
	return history, nil
}
