package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionType distinguishes an explicit submit from a forced one.
type SubmissionType string

const (
	SubmissionManual SubmissionType = "MANUAL"
	SubmissionAuto   SubmissionType = "AUTO"
)

// ResponseRecord is one answered question in a submission.
type ResponseRecord struct {
	QuestionID     int    `json:"questionId" binding:"required"`
	SelectedOption string `json:"selectedOption"`
}

// Submission is the body of POST /exam/submit-exam.
type Submission struct {
	Token            string           `json:"token" binding:"required,min=8,max=128,exam_token"`
	Responses        []ResponseRecord `json:"responses" binding:"dive"`
	SkippedQuestions []int            `json:"skippedQuestions"`
	SubmissionType   SubmissionType   `json:"submissionType" binding:"required,oneof=MANUAL AUTO"`
	// Reason names the integrity trigger for AUTO submissions.
	Reason string `json:"reason,omitempty" binding:"max=64"`
}

// SubmissionResult is returned to the caller once a submission is accepted.
type SubmissionResult struct {
	AssignmentID uuid.UUID `json:"assignmentId"`
	Answered     int       `json:"answered"`
	Skipped      int       `json:"skipped"`
	Score        float64   `json:"score"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// SubmissionJob is queued for the submission worker to persist.
type SubmissionJob struct {
	AssignmentID     uuid.UUID        `json:"assignment_id"`
	Token            string           `json:"token"`
	Responses        []ResponseRecord `json:"responses"`
	SkippedQuestions []int            `json:"skipped_questions"`
	SubmissionType   SubmissionType   `json:"submission_type"`
	Reason           string           `json:"reason,omitempty"`
	Score            float64          `json:"score"`
	SubmittedAt      time.Time        `json:"submitted_at"`
}
