package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// SubmissionRepository persists graded submissions.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// BulkUpsert writes a batch of submissions and marks their assignments
// SUBMITTED in one transaction. A replayed job leaves the first row intact.
func (r *SubmissionRepository) BulkUpsert(ctx context.Context, jobs []model.SubmissionJob) error {
	n := len(jobs)
	ids := make([]uuid.UUID, 0, n)
	responses := make([]string, 0, n)
	skipped := make([]string, 0, n)
	types := make([]string, 0, n)
	reasons := make([]string, 0, n)
	scores := make([]float64, 0, n)
	submittedAts := make([]time.Time, 0, n)

	for _, j := range jobs {
		resp, err := json.Marshal(j.Responses)
		if err != nil {
			return err
		}
		skip, err := json.Marshal(j.SkippedQuestions)
		if err != nil {
			return err
		}
		ids = append(ids, j.AssignmentID)
		responses = append(responses, string(resp))
		skipped = append(skipped, string(skip))
		types = append(types, string(j.SubmissionType))
		reasons = append(reasons, j.Reason)
		scores = append(scores, j.Score)
		submittedAts = append(submittedAts, j.SubmittedAt)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO exam_submissions
			(assignment_id, responses, skipped_questions, submission_type, reason, score, submitted_at)
		SELECT u.assignment_id, u.responses::jsonb, u.skipped::jsonb, u.submission_type, NULLIF(u.reason, ''), u.score, u.submitted_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::text[],
			$6::float8[],
			$7::timestamptz[]
		) AS u (assignment_id, responses, skipped, submission_type, reason, score, submitted_at)
		ON CONFLICT (assignment_id) DO NOTHING`,
		ids, responses, skipped, types, reasons, scores, submittedAts)
	if err != nil {
		return fmt.Errorf("insert submissions: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE exam_assignments AS a
		SET status = $3, submitted_at = COALESCE(a.submitted_at, t.submitted_at)
		FROM UNNEST($1::uuid[], $2::timestamptz[]) AS t (id, submitted_at)
		WHERE a.id = t.id`,
		ids, submittedAts, model.AssignmentSubmitted)
	if err != nil {
		return fmt.Errorf("mark assignments submitted: %w", err)
	}

	return tx.Commit(ctx)
}

// Upsert persists a single submission.
func (r *SubmissionRepository) Upsert(ctx context.Context, job model.SubmissionJob) error {
	return r.BulkUpsert(ctx, []model.SubmissionJob{job})
}
