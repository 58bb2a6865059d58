package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

const progressChunk = 500

type rosterReader interface {
	List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, error)
}

type currentSubmissionReader interface {
	ListCurrent(ctx context.Context, studentIDs []int64) ([]models.Submission, error)
}

type currentGradeReader interface {
	ListCurrent(ctx context.Context, studentIDs []int64) (map[int64]models.Grade, error)
}

type boardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ProgressService assembles the read-only progress board. It never grades;
// missed deadlines show up only after the sweeper has run.
type ProgressService struct {
	students    rosterReader
	submissions currentSubmissionReader
	grades      currentGradeReader
	cache       boardCache
	ttl         time.Duration
	logger      *zap.Logger
}

// NewProgressService constructs the service. cache may be nil.
func NewProgressService(students rosterReader, submissions currentSubmissionReader, grades currentGradeReader, cache boardCache, ttl time.Duration, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{students: students, submissions: submissions, grades: grades, cache: cache, ttl: ttl, logger: logger}
}

// Board returns every student's slots and grade, optionally for one cohort.
func (s *ProgressService) Board(ctx context.Context, actor models.Actor, cohort string) ([]models.StudentProgress, error) {
	if err := requireRole(actor, models.RoleSupervisor, models.RoleCommittee, models.RoleAdmin); err != nil {
		return nil, err
	}

	key := progressKey(cohort)
	if s.cache != nil {
		var cached []models.StudentProgress
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	board, err := s.build(ctx, cohort)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build progress board")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, board, s.ttl)
	}
	return board, nil
}

func (s *ProgressService) build(ctx context.Context, cohort string) ([]models.StudentProgress, error) {
	board := make([]models.StudentProgress, 0)
	var afterID int64
	for {
		students, err := s.students.List(ctx, repository.StudentFilter{Cohort: cohort, AfterID: afterID, Limit: progressChunk})
		if err != nil {
			return nil, err
		}
		if len(students) == 0 {
			break
		}
		ids := make([]int64, len(students))
		for i, st := range students {
			ids[i] = st.ID
		}
		current, err := s.submissions.ListCurrent(ctx, ids)
		if err != nil {
			return nil, err
		}
		grades, err := s.grades.ListCurrent(ctx, ids)
		if err != nil {
			return nil, err
		}

		byStudent := make(map[int64][]models.Submission, len(students))
		for _, sub := range current {
			byStudent[sub.StudentID] = append(byStudent[sub.StudentID], sub)
		}
		for _, st := range students {
			row := models.StudentProgress{
				StudentID: st.ID,
				Cohort:    st.Cohort,
				Slots:     buildSlots(st.ID, byStudent[st.ID]),
			}
			if grade, ok := grades[st.ID]; ok {
				grade := grade
				row.Grade = &grade
			}
			board = append(board, row)
		}

		if len(students) < progressChunk {
			break
		}
		afterID = students[len(students)-1].ID
	}
	return board, nil
}

func progressKey(cohort string) string {
	if cohort == "" {
		cohort = "all"
	}
	return fmt.Sprintf("progress:board:%s", cohort)
}
