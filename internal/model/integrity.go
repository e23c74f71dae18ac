package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityEvent records why a session was forced to submit.
type IntegrityEvent struct {
	ID           int64     `json:"id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	Reason       string    `json:"reason"`
	Detail       string    `json:"detail,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}
