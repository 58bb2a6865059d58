package models

import "time"

// NotificationType classifies notification-worthy transitions.
type NotificationType string

const (
	NotificationSubmissionApproved NotificationType = "SUBMISSION_APPROVED"
	NotificationRevisionRequested  NotificationType = "REVISION_REQUESTED"
	NotificationGradeAssigned      NotificationType = "GRADE_ASSIGNED"
	NotificationDeadlineMissed     NotificationType = "DEADLINE_MISSED"
)

// Notification is an immutable message record; only Read changes after creation.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID int64            `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	Read        bool             `db:"read" json:"read"`
	ReadAt      *time.Time       `db:"read_at" json:"read_at,omitempty"`
}

// NotificationFilter pages through a recipient's notifications newest first.
type NotificationFilter struct {
	RecipientID int64
	UnreadOnly  bool
	Before      *NotificationCursor
	Limit       int
}

// NotificationCursor is the keyset position of the last item of a page.
type NotificationCursor struct {
	CreatedAt time.Time
	ID        string
}
