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

// ErrGradeExists is returned by CreateIfAbsent when the student already holds a grade.
var ErrGradeExists = errors.New("grade already exists")

const gradeColumns = `record_id, student_id, rubric_1, rubric_2, rubric_3, rubric_4, rubric_5, rubric_6, average, letter, reason, graded_by, graded_at, version`

type gradeRow struct {
	RecordID  string             `db:"record_id"`
	StudentID int64              `db:"student_id"`
	Rubric1   sql.NullInt16      `db:"rubric_1"`
	Rubric2   sql.NullInt16      `db:"rubric_2"`
	Rubric3   sql.NullInt16      `db:"rubric_3"`
	Rubric4   sql.NullInt16      `db:"rubric_4"`
	Rubric5   sql.NullInt16      `db:"rubric_5"`
	Rubric6   sql.NullInt16      `db:"rubric_6"`
	Average   sql.NullFloat64    `db:"average"`
	Letter    models.Letter      `db:"letter"`
	Reason    models.GradeReason `db:"reason"`
	GradedBy  int64              `db:"graded_by"`
	GradedAt  time.Time          `db:"graded_at"`
	Version   int                `db:"version"`
}

func newGradeRow(g *models.Grade) gradeRow {
	row := gradeRow{
		RecordID:  g.RecordID,
		StudentID: g.StudentID,
		Letter:    g.Letter,
		Reason:    g.Reason,
		GradedBy:  g.GradedBy,
		GradedAt:  g.GradedAt,
		Version:   g.Version,
	}
	if g.Rubric != nil {
		scores := []*sql.NullInt16{&row.Rubric1, &row.Rubric2, &row.Rubric3, &row.Rubric4, &row.Rubric5, &row.Rubric6}
		for i, score := range g.Rubric {
			*scores[i] = sql.NullInt16{Int16: int16(score), Valid: true}
		}
	}
	if g.Average != nil {
		row.Average = sql.NullFloat64{Float64: *g.Average, Valid: true}
	}
	return row
}

func (row gradeRow) toModel() models.Grade {
	g := models.Grade{
		RecordID:  row.RecordID,
		StudentID: row.StudentID,
		Letter:    row.Letter,
		Reason:    row.Reason,
		GradedBy:  row.GradedBy,
		GradedAt:  row.GradedAt,
		Version:   row.Version,
	}
	scores := []sql.NullInt16{row.Rubric1, row.Rubric2, row.Rubric3, row.Rubric4, row.Rubric5, row.Rubric6}
	if scores[0].Valid {
		var rubric models.Rubric
		for i, score := range scores {
			rubric[i] = int(score.Int16)
		}
		g.Rubric = &rubric
	}
	if row.Average.Valid {
		avg := row.Average.Float64
		g.Average = &avg
	}
	return g
}

// GradeRepository stores the current grade per student plus an append-only record log.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Get returns the current grade or sql.ErrNoRows.
func (r *GradeRepository) Get(ctx context.Context, studentID int64) (*models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE student_id = $1`
	var row gradeRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	g := row.toModel()
	return &g, nil
}

// ListCurrent returns the current grades of the given students keyed by id.
func (r *GradeRepository) ListCurrent(ctx context.Context, studentIDs []int64) (map[int64]models.Grade, error) {
	result := make(map[int64]models.Grade, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE student_id = ANY($1)`
	var rows []gradeRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	for _, row := range rows {
		result[row.StudentID] = row.toModel()
	}
	return result, nil
}

// History returns every recorded grade for the student, newest first.
func (r *GradeRepository) History(ctx context.Context, studentID int64) ([]models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grade_records WHERE student_id = $1 ORDER BY version DESC`
	var rows []gradeRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list grade history: %w", err)
	}
	grades := make([]models.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.toModel())
	}
	return grades, nil
}

// Save replaces the current grade unconditionally and appends the new version
// to the record log.
func (r *GradeRepository) Save(ctx context.Context, g *models.Grade) (err error) {
	prepareGrade(g)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := newGradeRow(g)
	query := `INSERT INTO grades (` + gradeColumns + `)
	VALUES (:record_id, :student_id, :rubric_1, :rubric_2, :rubric_3, :rubric_4, :rubric_5, :rubric_6, :average, :letter, :reason, :graded_by, :graded_at, 1)
	ON CONFLICT (student_id) DO UPDATE SET
		record_id = EXCLUDED.record_id,
		rubric_1 = EXCLUDED.rubric_1,
		rubric_2 = EXCLUDED.rubric_2,
		rubric_3 = EXCLUDED.rubric_3,
		rubric_4 = EXCLUDED.rubric_4,
		rubric_5 = EXCLUDED.rubric_5,
		rubric_6 = EXCLUDED.rubric_6,
		average = EXCLUDED.average,
		letter = EXCLUDED.letter,
		reason = EXCLUDED.reason,
		graded_by = EXCLUDED.graded_by,
		graded_at = EXCLUDED.graded_at,
		version = grades.version + 1
	RETURNING version`
	named, args, err := tx.BindNamed(query, row)
	if err != nil {
		return fmt.Errorf("bind grade upsert: %w", err)
	}
	if err = tx.GetContext(ctx, &g.Version, named, args...); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}

	row.Version = g.Version
	if err = appendRecord(ctx, tx, row); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grade: %w", err)
	}
	return nil
}

// CreateIfAbsent stores g only when the student has no grade yet. The check and
// the write are one statement, so concurrent callers cannot both succeed.
func (r *GradeRepository) CreateIfAbsent(ctx context.Context, g *models.Grade) (err error) {
	prepareGrade(g)
	g.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := newGradeRow(g)
	query := `INSERT INTO grades (` + gradeColumns + `)
	VALUES (:record_id, :student_id, :rubric_1, :rubric_2, :rubric_3, :rubric_4, :rubric_5, :rubric_6, :average, :letter, :reason, :graded_by, :graded_at, :version)
	ON CONFLICT (student_id) DO NOTHING`
	res, err := tx.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("insert grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("grade rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrGradeExists
		return err
	}

	if err = appendRecord(ctx, tx, row); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grade: %w", err)
	}
	return nil
}

func appendRecord(ctx context.Context, tx *sqlx.Tx, row gradeRow) error {
	query := `INSERT INTO grade_records (` + gradeColumns + `)
	VALUES (:record_id, :student_id, :rubric_1, :rubric_2, :rubric_3, :rubric_4, :rubric_5, :rubric_6, :average, :letter, :reason, :graded_by, :graded_at, :version)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("append grade record: %w", err)
	}
	return nil
}

func prepareGrade(g *models.Grade) {
	if g.RecordID == "" {
		g.RecordID = uuid.NewString()
	}
	if g.GradedAt.IsZero() {
		g.GradedAt = time.Now().UTC()
	}
}
