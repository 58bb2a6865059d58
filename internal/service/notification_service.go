package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 100
	unreadCountTTL          = 30 * time.Second
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, recipientID int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int, error)
}

type notificationPublisher interface {
	Publish(n models.Notification) error
}

type countCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// NotificationService stores notifications and serves each recipient's inbox.
// Notify never returns an error; a failed notification is logged and counted.
type NotificationService struct {
	store     notificationStore
	publisher notificationPublisher
	cache     countCache
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NotificationServiceOption configures optional collaborators.
type NotificationServiceOption func(*NotificationService)

// WithNotificationPublisher forwards stored notifications to the broker.
func WithNotificationPublisher(publisher notificationPublisher) NotificationServiceOption {
	return func(s *NotificationService) { s.publisher = publisher }
}

// WithNotificationCache caches unread counts under a per-recipient generation
// that every write bumps, so a count read before a write is never served after it.
func WithNotificationCache(cache countCache) NotificationServiceOption {
	return func(s *NotificationService) { s.cache = cache }
}

// WithNotificationMetrics sets the metrics sink.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) { s.metrics = metrics }
}

// NewNotificationService constructs the service.
func NewNotificationService(store notificationStore, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Notify stores an unread notification for the recipient and hands it to the publisher.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	n.ID = ""
	n.CreatedAt = s.now().UTC()
	if err := s.store.Create(ctx, &n); err != nil {
		s.logger.Warn("failed to store notification",
			zap.Int64("recipient_id", n.RecipientID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		s.metrics.RecordNotificationFailure("store")
		return
	}
	s.forgetUnread(ctx, n.RecipientID)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(n); err != nil {
		s.logger.Warn("failed to enqueue notification delivery",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
		s.metrics.RecordNotificationFailure("enqueue")
	}
}

// List returns the actor's notifications, most recent first.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, query dto.NotificationQuery) (*dto.NotificationPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	if limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	filter := models.NotificationFilter{RecipientID: actor.ID, UnreadOnly: query.UnreadOnly, Limit: limit + 1}
	if query.Cursor != "" {
		cursor, err := DecodeNotificationCursor(query.Cursor)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cursor")
		}
		filter.Before = cursor
	}

	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}

	page := &dto.NotificationPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeNotificationCursor(models.NotificationCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Items == nil {
		page.Items = []models.Notification{}
	}
	return page, nil
}

// MarkRead flags one of the actor's notifications as read. Marking an already
// read notification succeeds without changes.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	changed, err := s.store.MarkRead(ctx, id, actor.ID, s.now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if changed {
		s.forgetUnread(ctx, actor.ID)
		return nil
	}

	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.RecipientID != actor.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags every unread notification of the actor and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	updated, err := s.store.MarkAllRead(ctx, actor.ID, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.forgetUnread(ctx, actor.ID)
	return updated, nil
}

// UnreadCount returns how many of the actor's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	key := s.unreadCountKey(ctx, actor.ID)
	if key != "" {
		var cached int
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}
	count, err := s.store.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	if key != "" {
		_ = s.cache.Set(ctx, key, count, unreadCountTTL)
	}
	return count, nil
}

// unreadCountKey returns the cache key for the recipient's current generation,
// or "" when the count must not be cached.
func (s *NotificationService) unreadCountKey(ctx context.Context, recipientID int64) string {
	if s.cache == nil {
		return ""
	}
	var generation int64
	if _, err := s.cache.Get(ctx, unreadGenerationKey(recipientID), &generation); err != nil {
		return ""
	}
	return fmt.Sprintf("notifications:unread:%d:%d", recipientID, generation)
}

func (s *NotificationService) forgetUnread(ctx context.Context, recipientID int64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, unreadGenerationKey(recipientID)); err != nil {
		s.logger.Warn("failed to bump unread count generation",
			zap.Int64("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}

func unreadGenerationKey(recipientID int64) string {
	return fmt.Sprintf("notifications:unread-gen:%d", recipientID)
}

// EncodeNotificationCursor renders an opaque page cursor.
func EncodeNotificationCursor(cursor models.NotificationCursor) string {
	raw := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeNotificationCursor parses a cursor produced by EncodeNotificationCursor.
func DecodeNotificationCursor(raw string) (*models.NotificationCursor, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, err
	}
	return &models.NotificationCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: parts[1]}, nil
}
