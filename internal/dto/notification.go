package dto

import "github.com/noah-isme/thesis-progress-api/internal/models"

// NotificationQuery mirrors listing parameters.
type NotificationQuery struct {
	UnreadOnly bool   `form:"unread"`
	Cursor     string `form:"cursor"`
	Limit      int    `form:"limit"`
}

// NotificationPage is one page of notifications, newest first.
type NotificationPage struct {
	Items      []models.Notification `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// UnreadCountResponse reports the unread badge value.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications changed state.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
