package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/jobs"
)

type stubPublisher struct {
	published []models.Notification
	err       error
}

func (s *stubPublisher) Publish(n models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, n)
	return nil
}

func newNotificationFixture() (*NotificationService, *memNotifications) {
	store := &memNotifications{}
	svc := NewNotificationService(store, nil)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc, store
}

func TestNotifyIsBestEffort(t *testing.T) {
	store := &memNotifications{createErr: errBoom}
	publisher := &stubPublisher{}
	svc := NewNotificationService(store, nil, WithNotificationPublisher(publisher), WithNotificationMetrics(NewMetricsService()))

	require.NotPanics(t, func() {
		svc.Notify(context.Background(), models.Notification{RecipientID: 7, Type: models.NotificationGradeAssigned})
	})
	require.Empty(t, publisher.published)
}

func TestNotifyPublishesStoredRecord(t *testing.T) {
	store := &memNotifications{}
	publisher := &stubPublisher{}
	svc := NewNotificationService(store, nil, WithNotificationPublisher(publisher))

	svc.Notify(context.Background(), models.Notification{RecipientID: 7, Type: models.NotificationSubmissionApproved, Title: "Proposal approved"})
	require.Len(t, publisher.published, 1)
	require.NotEmpty(t, publisher.published[0].ID)
	require.Equal(t, store.items[0].ID, publisher.published[0].ID)

	publisher.err = errBoom
	svc.Notify(context.Background(), models.Notification{RecipientID: 7, Type: models.NotificationGradeAssigned})
	require.Len(t, store.items, 2)
}

func TestNotificationListNewestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newNotificationFixture()
	for i := 0; i < 5; i++ {
		svc.Notify(ctx, models.Notification{RecipientID: 7, Type: models.NotificationGradeAssigned, Title: string(rune('a' + i))})
	}
	svc.Notify(ctx, models.Notification{RecipientID: 8, Type: models.NotificationGradeAssigned})

	first, err := svc.List(ctx, student7, dto.NotificationQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.Equal(t, "e", first.Items[0].Title)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, student7, dto.NotificationQuery{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.Equal(t, "b", second.Items[0].Title)
	require.Empty(t, second.NextCursor)

	_, err = svc.List(ctx, student7, dto.NotificationQuery{Cursor: "%%%"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestNotificationReadState(t *testing.T) {
	ctx := context.Background()
	svc, store := newNotificationFixture()
	svc.Notify(ctx, models.Notification{RecipientID: 7, Type: models.NotificationSubmissionApproved})
	svc.Notify(ctx, models.Notification{RecipientID: 7, Type: models.NotificationRevisionRequested})
	svc.Notify(ctx, models.Notification{RecipientID: 8, Type: models.NotificationDeadlineMissed})

	count, err := svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	firstID := store.items[0].ID
	require.NoError(t, svc.MarkRead(ctx, student7, firstID))
	require.NoError(t, svc.MarkRead(ctx, student7, firstID))

	count, err = svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	otherID := store.items[2].ID
	err = svc.MarkRead(ctx, student7, otherID)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	err = svc.MarkRead(ctx, student7, "missing")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	err = svc.MarkRead(ctx, student7, uuid.NewString())
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	unread, err := svc.List(ctx, student7, dto.NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)

	updated, err := svc.MarkAllRead(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	count, err = svc.UnreadCount(ctx, models.Actor{ID: 8, Role: models.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// interleavedNotifications runs onCount once, after the first unread count
// has been read from the store and before it is returned.
type interleavedNotifications struct {
	*memNotifications
	onCount func()
}

func (m *interleavedNotifications) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	count, err := m.memNotifications.CountUnread(ctx, recipientID)
	if hook := m.onCount; hook != nil {
		m.onCount = nil
		hook()
	}
	return count, err
}

func TestUnreadCountIgnoresCountReadBeforeWrite(t *testing.T) {
	ctx := context.Background()
	store := &interleavedNotifications{memNotifications: &memNotifications{}}
	cache := NewCacheService(newMemCacheRepo(), nil, CacheOptions{Enabled: true, Namespace: "thesis"}, nil)
	svc := NewNotificationService(store, nil, WithNotificationCache(cache))

	svc.Notify(ctx, models.Notification{RecipientID: 7, Type: models.NotificationSubmissionApproved})
	store.onCount = func() {
		svc.Notify(ctx, models.Notification{RecipientID: 7, Type: models.NotificationGradeAssigned})
	}

	count, err := svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(ctx, student7, store.items[0].ID))
	count, err = svc.UnreadCount(ctx, student7)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMarkReadMalformedIDIsNotFound(t *testing.T) {
	svc, store := newNotificationFixture()
	svc.Notify(context.Background(), models.Notification{RecipientID: 7, Type: models.NotificationGradeAssigned})

	err := svc.MarkRead(context.Background(), student7, "not-a-uuid")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.False(t, store.items[0].Read)
}

func TestNotificationCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 123, time.UTC)
	cursor, err := DecodeNotificationCursor(EncodeNotificationCursor(models.NotificationCursor{CreatedAt: at, ID: "n-1"}))
	require.NoError(t, err)
	require.True(t, at.Equal(cursor.CreatedAt))
	require.Equal(t, "n-1", cursor.ID)
}

type stubSender struct {
	keys []string
	err  error
}

func (s *stubSender) Send(ctx context.Context, key string, message interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	return nil
}

func TestNotificationPublisherHandleKeysByRecipient(t *testing.T) {
	sender := &stubSender{}
	publisher := NewNotificationPublisher(sender, nil, nil)

	err := publisher.Handle(context.Background(), jobs.Job{ID: "n-1", Payload: NotificationEvent{ID: "n-1", RecipientID: 7}})
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, sender.keys)

	require.Error(t, publisher.Publish(models.Notification{ID: "n-2"}))
}
