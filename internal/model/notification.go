package model

import "time"

// NotificationType categorises admin notifications.
type NotificationType string

const (
	NotificationExamSubmitted      NotificationType = "EXAM_SUBMITTED"
	NotificationIntegrityViolation NotificationType = "INTEGRITY_VIOLATION"
)

// Notification is a message pushed to an admin's notification badge.
type Notification struct {
	ID        int64            `json:"id"`
	AdminID   int              `json:"admin_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationPush is the message published on an admin's channel.
type NotificationPush struct {
	Notification Notification `json:"notification"`
	Unread       int64        `json:"unread"`
}
