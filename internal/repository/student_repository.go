package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

// StudentFilter narrows roster listings.
type StudentFilter struct {
	Cohort  string
	AfterID int64
	Limit   int
}

// StudentRepository reads the student roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Get returns a single student or sql.ErrNoRows.
func (r *StudentRepository) Get(ctx context.Context, id int64) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT id, cohort FROM students WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// Exists reports whether the student is on the roster.
func (r *StudentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	return exists, nil
}

// List returns students ordered by id, optionally restricted to a cohort.
func (r *StudentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	conditions := []string{"id > $1"}
	args := []interface{}{filter.AfterID}
	if filter.Cohort != "" {
		args = append(args, filter.Cohort)
		conditions = append(conditions, fmt.Sprintf("cohort = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT id, cohort FROM students WHERE %s ORDER BY id", strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
