package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

func TestProgressBoardAndGradeSheet(t *testing.T) {
	ctx := context.Background()
	students := newMemStudents(1, 2)
	repo := &memSubmissions{}
	grades := newMemGrades()
	subs := NewSubmissionService(repo, students, nil)
	_, err := subs.Submit(ctx, models.Actor{ID: 1, Role: models.RoleStudent}, 1, models.DocumentProposal, "f")
	require.NoError(t, err)
	_, err = subs.Approve(ctx, supervisor, 1, models.DocumentProposal, nil)
	require.NoError(t, err)
	require.NoError(t, grades.CreateIfAbsent(ctx, &models.Grade{StudentID: 2, Letter: models.LetterF, Reason: models.GradeReasonMissedDeadline}))

	progress := NewProgressService(students, repo, grades, nil, 0, nil)
	board, err := progress.Board(ctx, committee, "")
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, models.StatusApproved, board[0].Slots[0].Status)
	require.Equal(t, models.StatusNoSubmission, board[0].Slots[3].Status)
	require.Nil(t, board[0].Grade)
	require.Equal(t, models.LetterF, board[1].Grade.Letter)

	_, err = progress.Board(ctx, student7, "")
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	exporter := NewExportService(progress, nil)
	file, err := exporter.GradeSheet(ctx, committee, "csv", "")
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	require.True(t, strings.HasPrefix(file.Filename, "grade-sheet-"))
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))
	content := string(file.Data)
	require.Contains(t, content, "Student ID,Cohort,Proposal,Design Document,Test Document,Thesis,Average,Letter,Reason")
	require.Contains(t, content, "2,,NO_SUBMISSION,NO_SUBMISSION,NO_SUBMISSION,NO_SUBMISSION,,F,MISSED_DEADLINE")

	_, err = exporter.GradeSheet(ctx, committee, "docx", "")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = exporter.GradeSheet(ctx, supervisor, "csv", "")
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
