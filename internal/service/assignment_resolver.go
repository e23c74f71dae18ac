package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
	"k8s.io/utils/clock"
)

// cachedAssignment holds the immutable part of a started assignment.
type cachedAssignment struct {
	ID          uuid.UUID `json:"id"`
	CandidateID int       `json:"candidate_id"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AssignmentResolver maps candidate tokens to assignments, Redis first.
type AssignmentResolver struct {
	store AssignmentStore
	rdb   *redis.Client
	clk   clock.PassiveClock
}

// NewAssignmentResolver creates a new AssignmentResolver.
func NewAssignmentResolver(store AssignmentStore, rdb *redis.Client, clk clock.PassiveClock) *AssignmentResolver {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &AssignmentResolver{store: store, rdb: rdb, clk: clk}
}

// Lookup reads the assignment from Postgres and checks it can still be
// used. Pending assignments are allowed.
func (r *AssignmentResolver) Lookup(ctx context.Context, token string) (*model.Assignment, error) {
	if err := r.checkGuard(ctx, token); err != nil {
		return nil, err
	}

	a, err := r.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Status == model.AssignmentSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if !r.clk.Now().Before(a.ExpiresAt) {
		return nil, ErrAssignmentExpired
	}
	return a, nil
}

// Resolve returns a started, unexpired, unsubmitted assignment.
func (r *AssignmentResolver) Resolve(ctx context.Context, token string) (*model.Assignment, error) {
	if err := r.checkGuard(ctx, token); err != nil {
		return nil, err
	}

	raw, err := r.rdb.Get(ctx, config.CacheKey.AssignmentKey(token)).Bytes()
	switch {
	case err == nil:
		var c cachedAssignment
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode cached assignment: %w", err)
		}
		if !r.clk.Now().Before(c.ExpiresAt) {
			return nil, ErrAssignmentExpired
		}
		return &model.Assignment{
			ID:          c.ID,
			Token:       token,
			CandidateID: c.CandidateID,
			ExamID:      c.ExamID,
			Status:      model.AssignmentStarted,
			ExpiresAt:   c.ExpiresAt,
		}, nil
	case errors.Is(err, redis.Nil):
		// Cache miss: Postgres is the source of truth.
	default:
		return nil, fmt.Errorf("get cached assignment: %w", err)
	}

	a, err := r.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssignmentStarted {
		return nil, ErrExamNotStarted
	}
	_ = r.Cache(ctx, a)
	return a, nil
}

// Cache stores a started assignment until it expires.
func (r *AssignmentResolver) Cache(ctx context.Context, a *model.Assignment) error {
	ttl := a.ExpiresAt.Sub(r.clk.Now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(cachedAssignment{
		ID:          a.ID,
		CandidateID: a.CandidateID,
		ExamID:      a.ExamID,
		ExpiresAt:   a.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, config.CacheKey.AssignmentKey(a.Token), raw, ttl).Err()
}

func (r *AssignmentResolver) checkGuard(ctx context.Context, token string) error {
	n, err := r.rdb.Exists(ctx, config.CacheKey.AssignmentSubmittedKey(token)).Result()
	if err != nil {
		return fmt.Errorf("check submission guard: %w", err)
	}
	if n > 0 {
		return ErrAlreadySubmitted
	}
	return nil
}
