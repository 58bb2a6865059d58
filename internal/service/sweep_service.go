package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

const (
	sweepLockKey      = "sweep:missed-deadline"
	defaultSweepBatch = 200
	defaultSweepLock  = 10 * time.Minute
)

type overdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, after repository.OverdueCursor, limit int) ([]models.OverdueSlot, error)
}

type absentGradeWriter interface {
	CreateIfAbsent(ctx context.Context, grade *models.Grade) error
}

type sweepLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// SweepConfig tunes the missed deadline sweep.
type SweepConfig struct {
	BatchSize int
	LockTTL   time.Duration
}

// SweepService fails every student who missed a deadline, at most once. A
// student who already holds any grade is left untouched.
type SweepService struct {
	overdue  overdueLister
	grades   absentGradeWriter
	locker   sweepLocker
	notifier Notifier
	cache    progressCache
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      SweepConfig
	now      func() time.Time

	runMu   sync.Mutex
	stateMu sync.RWMutex
	last    *models.SweepResult
}

// SweepServiceOption configures optional collaborators.
type SweepServiceOption func(*SweepService)

// WithSweepLocker coordinates runs across processes.
func WithSweepLocker(locker sweepLocker) SweepServiceOption {
	return func(s *SweepService) { s.locker = locker }
}

// WithSweepNotifier sets the notification dispatcher.
func WithSweepNotifier(notifier Notifier) SweepServiceOption {
	return func(s *SweepService) { s.notifier = notifier }
}

// WithSweepCache sets the cache invalidated after a run that graded anyone.
func WithSweepCache(cache progressCache) SweepServiceOption {
	return func(s *SweepService) { s.cache = cache }
}

// WithSweepMetrics sets the metrics sink.
func WithSweepMetrics(metrics *MetricsService) SweepServiceOption {
	return func(s *SweepService) { s.metrics = metrics }
}

// NewSweepService constructs the sweeper.
func NewSweepService(overdue overdueLister, grades absentGradeWriter, cfg SweepConfig, logger *zap.Logger, opts ...SweepServiceOption) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultSweepLock
	}
	svc := &SweepService{overdue: overdue, grades: grades, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

type overdueStudent struct {
	id   int64
	docs []models.DocumentType
}

// Run performs one sweep. Overlapping runs are rejected with SWEEP_IN_PROGRESS.
// Cancelling ctx stops the sweep between students; students already processed
// keep their grade and the result is marked interrupted.
func (s *SweepService) Run(ctx context.Context, actor models.Actor) (*models.SweepResult, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleCommittee, models.RoleSystem); err != nil {
		return nil, err
	}
	if !s.runMu.TryLock() {
		return nil, appErrors.ErrSweepInProgress
	}
	defer s.runMu.Unlock()

	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to acquire sweep lock")
		}
		if !ok {
			return nil, appErrors.ErrSweepInProgress
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.locker.ReleaseLock(releaseCtx, sweepLockKey, token); err != nil {
				s.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	now := s.now().UTC()
	result := &models.SweepResult{StartedAt: now}
	err := s.sweep(ctx, actor, now, result)
	result.FinishedAt = s.now().UTC()
	s.remember(result)

	outcome := "completed"
	switch {
	case err != nil:
		outcome = "failed"
	case result.Interrupted:
		outcome = "interrupted"
	}
	s.metrics.RecordSweep(outcome, result)
	if result.AffectedCount > 0 {
		invalidateProgress(context.WithoutCancel(ctx), s.cache)
	}

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.Int("affected", result.AffectedCount),
		zap.Int("overdue_pairs", result.OverduePairs),
		zap.Int("skipped", result.SkippedStudents),
		zap.Int("failed", result.FailedStudents),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
		zap.Int64("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)),
	}
	if err != nil {
		s.logger.Error("deadline sweep aborted", append(fields, zap.Error(err))...)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deadline sweep aborted")
	}
	s.logger.Info("deadline sweep finished", fields...)
	return result, nil
}

func (s *SweepService) sweep(ctx context.Context, actor models.Actor, now time.Time, result *models.SweepResult) error {
	var (
		cursor  repository.OverdueCursor
		pending *overdueStudent
	)
	for {
		if ctx.Err() != nil {
			result.Interrupted = true
			return nil
		}
		page, err := s.overdue.ListOverdue(ctx, now, cursor, s.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				result.Interrupted = true
				return nil
			}
			return err
		}
		for _, slot := range page {
			result.OverduePairs++
			if pending != nil && pending.id != slot.StudentID {
				if !s.process(ctx, actor, pending, result) {
					return nil
				}
				pending = nil
			}
			if pending == nil {
				pending = &overdueStudent{id: slot.StudentID}
			}
			pending.docs = append(pending.docs, slot.DocumentType)
		}
		if len(page) < s.cfg.BatchSize {
			break
		}
		last := page[len(page)-1]
		cursor = repository.OverdueCursor{StudentID: last.StudentID, DocumentType: last.DocumentType}
	}
	if pending != nil {
		s.process(ctx, actor, pending, result)
	}
	return nil
}

// process grades one student and reports whether the sweep should continue.
func (s *SweepService) process(ctx context.Context, actor models.Actor, student *overdueStudent, result *models.SweepResult) bool {
	if ctx.Err() != nil {
		result.Interrupted = true
		return false
	}

	grade := &models.Grade{
		StudentID: student.id,
		Letter:    models.LetterF,
		Reason:    models.GradeReasonMissedDeadline,
		GradedBy:  actor.ID,
		GradedAt:  s.now().UTC(),
	}
	err := s.grades.CreateIfAbsent(ctx, grade)
	switch {
	case err == nil:
		result.AffectedCount++
		s.metrics.RecordGrade(grade.Letter, grade.Reason)
		s.notifyMissed(ctx, student)
	case errors.Is(err, repository.ErrGradeExists):
		result.SkippedStudents++
	case ctx.Err() != nil:
		result.Interrupted = true
		return false
	default:
		result.FailedStudents++
		s.logger.Warn("sweep failed to grade student",
			zap.Int64("student_id", student.id),
			zap.Error(err),
		)
	}
	return true
}

func (s *SweepService) notifyMissed(ctx context.Context, student *overdueStudent) {
	if s.notifier == nil {
		return
	}
	labels := make([]string, 0, len(student.docs))
	for _, doc := range student.docs {
		labels = append(labels, doc.Label())
	}
	s.notifier.Notify(ctx, models.Notification{
		RecipientID: student.id,
		Type:        models.NotificationDeadlineMissed,
		Title:       "Deadline missed",
		Message:     fmt.Sprintf("The deadline passed without an approved %s. A failing grade has been recorded.", strings.Join(labels, ", ")),
	})
}

func (s *SweepService) remember(result *models.SweepResult) {
	copied := *result
	s.stateMu.Lock()
	s.last = &copied
	s.stateMu.Unlock()
}

// LastResult returns the outcome of the most recent run in this process.
func (s *SweepService) LastResult() (*models.SweepResult, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	copied := *s.last
	return &copied, true
}

// Start runs the sweep every interval until ctx is cancelled.
func (s *SweepService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("deadline sweeper scheduled", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx, models.SystemActor()); err != nil {
				if appErrors.Is(err, appErrors.ErrSweepInProgress) {
					s.logger.Info("scheduled sweep skipped, another run in progress")
					continue
				}
				s.logger.Error("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
