package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// AssignmentRepository handles exam assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByToken retrieves the assignment behind a candidate token.
func (r *AssignmentRepository) GetByToken(ctx context.Context, token string) (*model.Assignment, error) {
	a := &model.Assignment{Token: token}
	err := r.pool.QueryRow(ctx,
		`SELECT id, candidate_id, exam_id, status, expires_at, started_at, submitted_at
		 FROM exam_assignments
		 WHERE token = $1`, token,
	).Scan(&a.ID, &a.CandidateID, &a.ExamID, &a.Status, &a.ExpiresAt, &a.StartedAt, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MarkStarted moves a PENDING assignment to STARTED. Already started
// assignments keep their original started_at.
func (r *AssignmentRepository) MarkStarted(ctx context.Context, token string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_assignments
		 SET status = $1, started_at = COALESCE(started_at, $2)
		 WHERE token = $3 AND status = $4`,
		model.AssignmentStarted, at, token, model.AssignmentPending)
	return err
}
