package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, created_at FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListQuestions retrieves every question of an exam, answers included,
// ordered by order_num.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.StoredQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, options, correct_option, time_limit_seconds, order_num
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.StoredQuestion
	for rows.Next() {
		var q model.StoredQuestion
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.TimeLimit, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListActiveExamIDs returns exams that still have open assignments.
func (r *ExamRepository) ListActiveExamIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT exam_id
		 FROM exam_assignments
		 WHERE status <> $1 AND expires_at > NOW()`, model.AssignmentSubmitted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
