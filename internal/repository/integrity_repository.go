package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// IntegrityRepository stores the integrity audit log.
type IntegrityRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrityRepository creates a new IntegrityRepository.
func NewIntegrityRepository(pool *pgxpool.Pool) *IntegrityRepository {
	return &IntegrityRepository{pool: pool}
}

var integrityColumns = []string{"assignment_id", "reason", "detail", "recorded_at"}

// CopyEvents bulk loads events with COPY.
func (r *IntegrityRepository) CopyEvents(ctx context.Context, events []model.IntegrityEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.AssignmentID, e.Reason, e.Detail, e.RecordedAt})
	}
	return r.pool.CopyFrom(ctx, pgx.Identifier{"integrity_events"}, integrityColumns, pgx.CopyFromRows(rows))
}

// Insert stores one event.
func (r *IntegrityRepository) Insert(ctx context.Context, e model.IntegrityEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO integrity_events (assignment_id, reason, detail, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		e.AssignmentID, e.Reason, e.Detail, e.RecordedAt)
	return err
}

// ListByAssignment returns the audit log of one assignment, oldest first.
func (r *IntegrityRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.IntegrityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assignment_id, reason, detail, recorded_at
		 FROM integrity_events
		 WHERE assignment_id = $1
		 ORDER BY recorded_at, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[model.IntegrityEvent])
}
