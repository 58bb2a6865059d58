package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

var notificationRowColumns = []string{"id", "recipient_id", "type", "title", "message", "created_at", "read", "read_at"}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	n := &models.Notification{RecipientID: 7, Type: models.NotificationSubmissionApproved, Title: "Approved", Message: "ok", Read: true}
	require.NoError(t, repo.Create(context.Background(), n))
	require.NotEmpty(t, n.ID)
	require.False(t, n.Read)
	require.False(t, n.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListWithCursor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	cursorAt := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE recipient_id = $1 AND NOT read AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4")).
		WithArgs(int64(7), cursorAt, "n-9", 10).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns).
			AddRow("n-8", int64(7), "GRADE_ASSIGNED", "Grade", "A", cursorAt.Add(-time.Minute), false, nil))

	items, err := repo.List(context.Background(), models.NotificationFilter{
		RecipientID: 7,
		UnreadOnly:  true,
		Before:      &models.NotificationCursor{CreatedAt: cursorAt, ID: "n-9"},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "n-8", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE")).
		WithArgs("n-1", int64(7), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE")).
		WithArgs("n-1", int64(7), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkRead(context.Background(), "n-1", 7, at)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkRead(context.Background(), "n-1", 7, at)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkAllReadAndCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("WHERE recipient_id = $1 AND NOT read")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	updated, err := repo.MarkAllRead(context.Background(), 7, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), updated)

	count, err := repo.CountUnread(context.Background(), 7)
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
