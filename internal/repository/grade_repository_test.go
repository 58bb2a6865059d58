package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

var gradeRowColumns = []string{"record_id", "student_id", "rubric_1", "rubric_2", "rubric_3", "rubric_4", "rubric_5", "rubric_6", "average", "letter", "reason", "graded_by", "graded_at", "version"}

func TestGradeRepositorySaveBumpsVersionAndAppendsRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rubric := models.Rubric{4, 4, 4, 4, 4, 3}
	avg := 23.0 / 6.0
	grade := &models.Grade{StudentID: 7, Rubric: &rubric, Average: &avg, Letter: models.LetterB, Reason: models.GradeReasonRubric, GradedBy: 42}
	require.NoError(t, repo.Save(context.Background(), grade))
	require.Equal(t, 2, grade.Version)
	require.NotEmpty(t, grade.RecordID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateIfAbsentInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grade := &models.Grade{StudentID: 7, Letter: models.LetterF, Reason: models.GradeReasonMissedDeadline}
	require.NoError(t, repo.CreateIfAbsent(context.Background(), grade))
	require.Equal(t, 1, grade.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateIfAbsentKeepsExistingGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreateIfAbsent(context.Background(), &models.Grade{StudentID: 7, Letter: models.LetterF, Reason: models.GradeReasonMissedDeadline})
	require.ErrorIs(t, err, ErrGradeExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryGetMissedDeadlineGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM grades WHERE student_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(gradeRowColumns).
			AddRow("rec-1", int64(7), nil, nil, nil, nil, nil, nil, nil, "F", "MISSED_DEADLINE", int64(0), now, 1))

	grade, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Nil(t, grade.Rubric)
	require.Nil(t, grade.Average)
	require.Equal(t, models.LetterF, grade.Letter)
	require.Equal(t, models.GradeReasonMissedDeadline, grade.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grades")).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 99)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGradeRepositoryHistoryDecodesRubric(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_records WHERE student_id = $1 ORDER BY version DESC")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(gradeRowColumns).
			AddRow("rec-2", int64(7), 5, 5, 5, 5, 5, 5, "5.000", "A", "RUBRIC", int64(42), now, 2).
			AddRow("rec-1", int64(7), 3, 3, 3, 3, 3, 3, "3.000", "C", "RUBRIC", int64(42), now.Add(-time.Hour), 1))

	history, err := repo.History(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.Rubric{5, 5, 5, 5, 5, 5}, *history[0].Rubric)
	require.InDelta(t, 3.0, *history[1].Average, 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}
