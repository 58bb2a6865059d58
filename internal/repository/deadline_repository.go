package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

const deadlineColumns = `id, document_type, cohort, due_date, active, created_by, created_at, superseded_at`

// OverdueCursor is the keyset position used when paging through overdue slots.
type OverdueCursor struct {
	StudentID    int64
	DocumentType models.DocumentType
}

// IsZero reports whether the cursor points at the first page.
func (c OverdueCursor) IsZero() bool {
	return c.StudentID == 0 && c.DocumentType == ""
}

// DeadlineRepository stores per document type deadlines. A cohort deadline
// takes precedence over the global one for students of that cohort.
type DeadlineRepository struct {
	db *sqlx.DB
}

// NewDeadlineRepository constructs the repository.
func NewDeadlineRepository(db *sqlx.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

// ListActive returns all active deadlines ordered by document type then cohort.
func (r *DeadlineRepository) ListActive(ctx context.Context) ([]models.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE active ORDER BY document_type, cohort NULLS FIRST`
	var deadlines []models.Deadline
	if err := r.db.SelectContext(ctx, &deadlines, query); err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return deadlines, nil
}

// Set activates a new deadline for the (document type, cohort) scope and
// supersedes the previous one. The previous deadline is returned when present.
func (r *DeadlineRepository) Set(ctx context.Context, deadline *models.Deadline) (previous *models.Deadline, err error) {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = now
	}
	deadline.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deadline transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cohort := ""
	if deadline.Cohort != nil {
		cohort = *deadline.Cohort
	}

	var current models.Deadline
	lockQuery := `SELECT ` + deadlineColumns + ` FROM deadlines
	WHERE document_type = $1 AND COALESCE(cohort, '') = $2 AND active FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, deadline.DocumentType, cohort); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lock active deadline: %w", err)
		}
		err = nil
	} else {
		const supersedeQuery = `UPDATE deadlines SET active = FALSE, superseded_at = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, supersedeQuery, current.ID, now); err != nil {
			return nil, fmt.Errorf("supersede deadline: %w", err)
		}
		current.Active = false
		current.SupersededAt = &now
		previous = &current
	}

	insertQuery := `INSERT INTO deadlines (` + deadlineColumns + `)
	VALUES (:id, :document_type, :cohort, :due_date, :active, :created_by, :created_at, :superseded_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, deadline); err != nil {
		return nil, fmt.Errorf("insert deadline: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deadline: %w", err)
	}
	return previous, nil
}

// ListOverdue returns up to limit slots whose effective deadline is before now
// and whose current submission is not approved, ordered by (student, document type)
// and strictly after the cursor. A zero cursor starts at the first slot. Students that already hold a grade are not
// filtered here; the caller decides what to do with them.
func (r *DeadlineRepository) ListOverdue(ctx context.Context, now time.Time, after OverdueCursor, limit int) ([]models.OverdueSlot, error) {
	const query = `SELECT s.id AS student_id, d.document_type, d.due_date
	FROM students s
	JOIN deadlines d ON d.active AND (
		d.cohort = s.cohort
		OR (d.cohort IS NULL AND NOT EXISTS (
			SELECT 1 FROM deadlines dc
			WHERE dc.active AND dc.document_type = d.document_type AND dc.cohort = s.cohort)))
	WHERE d.due_date < $1
		AND ($2 OR (s.id, d.document_type) > ($3, $4))
		AND NOT EXISTS (
			SELECT 1 FROM submissions sub
			WHERE sub.student_id = s.id
				AND sub.document_type = d.document_type
				AND sub.is_current
				AND sub.approval_status = 'APPROVED')
	ORDER BY s.id, d.document_type
	LIMIT $5`
	var slots []models.OverdueSlot
	if err := r.db.SelectContext(ctx, &slots, query, now, after.IsZero(), after.StudentID, string(after.DocumentType), limit); err != nil {
		return nil, fmt.Errorf("list overdue slots: %w", err)
	}
	return slots, nil
}
