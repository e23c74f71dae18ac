package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DefaultTimeLimitSeconds applies to questions stored without a time limit.
const DefaultTimeLimitSeconds = 20

// Question is the candidate-facing view of an exam question.
type Question struct {
	ID        int      `json:"id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit *int     `json:"timeLimit,omitempty"`
}

// Limit returns the per-question countdown in seconds.
func (q Question) Limit() int {
	if q.TimeLimit == nil || *q.TimeLimit <= 0 {
		return DefaultTimeLimitSeconds
	}
	return *q.TimeLimit
}

// StoredQuestion is a question row including the correct option.
type StoredQuestion struct {
	ID            int             `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option"`
	TimeLimit     *int            `json:"time_limit_seconds,omitempty"`
	OrderNum      int             `json:"order_num"`
}

// ForCandidate strips the answer and decodes the option list.
func (q StoredQuestion) ForCandidate() (Question, error) {
	var options []string
	if len(q.Options) > 0 {
		if err := json.Unmarshal(q.Options, &options); err != nil {
			return Question{}, err
		}
	}
	return Question{
		ID:        q.ID,
		Question:  q.QuestionText,
		Options:   options,
		TimeLimit: q.TimeLimit,
	}, nil
}
