package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is an authored set of questions that candidates are assigned to.
type Exam struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ExamPayload is the Redis-cached payload served by start-ui.
type ExamPayload struct {
	ExamID    uuid.UUID  `json:"examId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// StartUIResponse is the body of GET /exam/start-ui.
type StartUIResponse struct {
	Exam ExamPayload `json:"exam"`
}
