package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus tracks a candidate's progress through one exam.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentStarted   AssignmentStatus = "STARTED"
	AssignmentSubmitted AssignmentStatus = "SUBMITTED"
)

// Assignment binds a candidate to an exam through an opaque token.
type Assignment struct {
	ID          uuid.UUID        `json:"id"`
	Token       string           `json:"-"`
	CandidateID int              `json:"candidate_id"`
	ExamID      uuid.UUID        `json:"exam_id"`
	Status      AssignmentStatus `json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// Candidate is a job applicant taking exams.
type Candidate struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateTokenRequest is the body of verify-token and start-exam.
type CandidateTokenRequest struct {
	Token string `json:"token" binding:"required,min=8,max=128,exam_token"`
}

// StartExamResponse summarises the exam a candidate is about to take.
type StartExamResponse struct {
	ExamID        uuid.UUID `json:"examId"`
	Title         string    `json:"title"`
	QuestionCount int       `json:"questionCount"`
	CandidateName string    `json:"candidateName"`
}

// TokenQuery carries the candidate token in the query string.
type TokenQuery struct {
	Token string `form:"token" binding:"required,min=8,max=128,exam_token"`
}
