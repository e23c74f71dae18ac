package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/session"
)

// Common exam errors.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAssignmentExpired  = errors.New("assignment expired")
	ErrExamNotStarted     = errors.New("exam has not been started")
	ErrUnknownQuestion    = errors.New("question is not part of this exam")
	// ErrAlreadySubmitted is shared with the session so every layer matches
	// it with errors.Is.
	ErrAlreadySubmitted = session.ErrAlreadySubmitted
	ErrNoQuestions      = session.ErrNoQuestions
)

// AssignmentStore is the assignment persistence the services need.
type AssignmentStore interface {
	GetByToken(ctx context.Context, token string) (*model.Assignment, error)
	MarkStarted(ctx context.Context, token string, at time.Time) error
}

// CandidateStore looks up candidates.
type CandidateStore interface {
	GetByID(ctx context.Context, id int) (*model.Candidate, error)
}

// ExamStore reads exams and their questions.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.StoredQuestion, error)
	ListActiveExamIDs(ctx context.Context) ([]uuid.UUID, error)
}

// AdminStore reads admin accounts.
type AdminStore interface {
	GetByID(ctx context.Context, id int) (*model.Admin, error)
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	ListIDsWithPermission(ctx context.Context, perm model.Permission) ([]int, error)
}

// PermissionStore resolves role grants.
type PermissionStore interface {
	GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error)
}

// NotificationStore persists admin notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByAdmin(ctx context.Context, adminID, page, perPage int) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, adminID int, id int64, at time.Time) (bool, error)
	CountUnread(ctx context.Context, adminID int) (int64, error)
}

// Notifier fans a notification out to every admin holding a permission.
type Notifier interface {
	NotifyPermission(ctx context.Context, perm model.Permission, typ model.NotificationType, title, body string) error
}
