package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/pkg/jobs"
)

const notificationJobType = "notification.deliver"

type messageSender interface {
	Send(ctx context.Context, key string, message interface{}) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationEvent is the broker payload for a stored notification.
type NotificationEvent struct {
	ID          string                  `json:"id"`
	RecipientID int64                   `json:"recipient_id"`
	Type        models.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NotificationPublisher forwards stored notifications to the message broker
// through the background job queue, keyed by recipient.
type NotificationPublisher struct {
	sender  messageSender
	queue   jobQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationPublisher constructs a publisher. Call Bind with the queue
// created from its Handle method before publishing.
func NewNotificationPublisher(sender messageSender, metrics *MetricsService, logger *zap.Logger) *NotificationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationPublisher{sender: sender, metrics: metrics, logger: logger}
}

// Bind attaches the queue that runs delivery jobs.
func (p *NotificationPublisher) Bind(queue jobQueue) {
	p.queue = queue
}

// Publish schedules delivery of a stored notification.
func (p *NotificationPublisher) Publish(n models.Notification) error {
	if p.queue == nil {
		return fmt.Errorf("notification publisher has no queue")
	}
	return p.queue.Enqueue(jobs.Job{
		ID:   n.ID,
		Type: notificationJobType,
		Payload: NotificationEvent{
			ID:          n.ID,
			RecipientID: n.RecipientID,
			Type:        n.Type,
			Title:       n.Title,
			Message:     n.Message,
			CreatedAt:   n.CreatedAt,
		},
	})
}

// Handle is the queue handler that writes one notification to the broker.
func (p *NotificationPublisher) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(NotificationEvent)
	if !ok {
		p.logger.Error("unexpected notification job payload", zap.String("job_id", job.ID))
		return nil
	}
	return p.sender.Send(ctx, strconv.FormatInt(event.RecipientID, 10), event)
}

// GiveUp records a delivery that exhausted its retries. The stored record is kept.
func (p *NotificationPublisher) GiveUp(job jobs.Job, err error) {
	p.logger.Warn("notification delivery abandoned",
		zap.String("notification_id", job.ID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
	p.metrics.RecordNotificationFailure("deliver")
}
