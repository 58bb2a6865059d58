package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

var (
	// ErrSlotOccupied is returned when the current submission of a slot does not accept a new upload.
	ErrSlotOccupied = errors.New("slot has an outstanding submission")
)

const uniqueViolation = "23505"

const submissionColumns = `id, student_id, document_type, file_id, submitted_at, approval_status, is_current, reviewed_by, reviewed_at, note`

// SubmissionRepository persists submission attempts. Prior attempts are never
// deleted; exactly one row per slot carries is_current.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// GetCurrent returns the current submission of a slot or sql.ErrNoRows.
func (r *SubmissionRepository) GetCurrent(ctx context.Context, studentID int64, docType models.DocumentType) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	WHERE student_id = $1 AND document_type = $2 AND is_current`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, studentID, docType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get current submission: %w", err)
	}
	return &sub, nil
}

// ListCurrent returns the current submissions of the given students.
func (r *SubmissionRepository) ListCurrent(ctx context.Context, studentIDs []int64) ([]models.Submission, error) {
	if len(studentIDs) == 0 {
		return []models.Submission{}, nil
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions
	WHERE is_current AND student_id = ANY($1)
	ORDER BY student_id, document_type`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list current submissions: %w", err)
	}
	return subs, nil
}

// History returns every attempt for a slot, newest first.
func (r *SubmissionRepository) History(ctx context.Context, studentID int64, docType models.DocumentType) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	WHERE student_id = $1 AND document_type = $2
	ORDER BY submitted_at DESC, id DESC`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, studentID, docType); err != nil {
		return nil, fmt.Errorf("list submission history: %w", err)
	}
	return subs, nil
}

// Create stores a new current submission for the slot. The existing current
// row is locked and demoted in the same transaction; if it does not accept a
// new upload the call fails with ErrSlotOccupied. Two racing creates on an
// empty slot are resolved by the partial unique index on is_current.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) (err error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	sub.ApprovalStatus = models.StatusPendingApproval
	sub.IsCurrent = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current struct {
		ID     string                `db:"id"`
		Status models.ApprovalStatus `db:"approval_status"`
	}
	const lockQuery = `SELECT id, approval_status FROM submissions
	WHERE student_id = $1 AND document_type = $2 AND is_current FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, sub.StudentID, sub.DocumentType); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock current submission: %w", err)
		}
		err = nil
	} else {
		if !current.Status.AcceptsSubmission() {
			err = ErrSlotOccupied
			return err
		}
		const demoteQuery = `UPDATE submissions SET is_current = FALSE WHERE id = $1`
		if _, err = tx.ExecContext(ctx, demoteQuery, current.ID); err != nil {
			return fmt.Errorf("demote previous submission: %w", err)
		}
	}

	const insertQuery = `INSERT INTO submissions (` + submissionColumns + `)
	VALUES (:id, :student_id, :document_type, :file_id, :submitted_at, :approval_status, :is_current, :reviewed_by, :reviewed_at, :note)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, sub); err != nil {
		if isUniqueViolation(err) {
			err = ErrSlotOccupied
			return err
		}
		return fmt.Errorf("insert submission: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// TransitionParams describes a guarded status change of a slot's current submission.
type TransitionParams struct {
	StudentID    int64
	DocumentType models.DocumentType
	From         []models.ApprovalStatus
	To           models.ApprovalStatus
	ReviewedBy   int64
	ReviewedAt   time.Time
	Note         *string
}

// Transition moves the current submission to params.To only if its status is one
// of params.From. It returns sql.ErrNoRows when no current submission matches.
func (r *SubmissionRepository) Transition(ctx context.Context, params TransitionParams) (*models.Submission, error) {
	from := make([]string, len(params.From))
	for i, status := range params.From {
		from[i] = string(status)
	}
	query := `UPDATE submissions
	SET approval_status = $1, reviewed_by = $2, reviewed_at = $3, note = COALESCE($4, note)
	WHERE student_id = $5 AND document_type = $6 AND is_current AND approval_status = ANY($7)
	RETURNING ` + submissionColumns
	var sub models.Submission
	err := r.db.GetContext(ctx, &sub, query,
		params.To,
		params.ReviewedBy,
		params.ReviewedAt,
		params.Note,
		params.StudentID,
		params.DocumentType,
		pq.Array(from),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition submission: %w", err)
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
