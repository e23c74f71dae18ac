package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
)

// SubmissionWriter persists graded submissions.
type SubmissionWriter interface {
	BulkUpsert(ctx context.Context, jobs []model.SubmissionJob) error
	Upsert(ctx context.Context, job model.SubmissionJob) error
}

// SubmissionWorker drains persist_submissions_queue into Postgres.
type SubmissionWorker struct {
	store SubmissionWriter
	rdb   *redis.Client
	opts  Options
	log   zerolog.Logger
}

func NewSubmissionWorker(store SubmissionWriter, rdb *redis.Client, opts Options, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		store: store,
		rdb:   rdb,
		opts:  opts.withDefaults(),
		log:   log.With().Str("component", "submission_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SubmissionWorker started")

	batch := make([]model.SubmissionJob, 0, w.opts.BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.opts.BatchSize || time.Since(lastFlush) >= w.opts.BatchTimeout) {
			w.Flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushBudget)
			w.Flush(flushCtx, batch)
			cancel()
			return
		default:
		}

		item, err := w.rdb.BLPop(ctx, w.opts.PollTimeout, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleepCtx(ctx, redisErrorBackoff)
			continue
		}
		if len(item) < 2 {
			continue
		}

		var job model.SubmissionJob
		if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
			w.log.Error().Err(err).Str("data", item[1]).Msg("Discarding malformed submission job")
			continue
		}
		batch = append(batch, job)
	}
}

// Flush writes a batch, falling back to row-by-row writes and requeueing
// the rows that still fail.
func (w *SubmissionWorker) Flush(ctx context.Context, batch []model.SubmissionJob) {
	if len(batch) == 0 {
		return
	}

	err := w.store.BulkUpsert(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Persisted submissions")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk submission upsert failed, using fallback")

	var failed []model.SubmissionJob
	for _, job := range batch {
		if err := w.store.Upsert(ctx, job); err != nil {
			w.log.Error().Err(err).Str("assignment_id", job.AssignmentID.String()).Msg("Upsert failed, requeueing")
			failed = append(failed, job)
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *SubmissionWorker) requeue(ctx context.Context, jobs []model.SubmissionJob) {
	pipe := w.rdb.Pipeline()
	for _, j := range jobs {
		raw, _ := json.Marshal(j)
		pipe.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(jobs)).Msg("CRITICAL: Failed to requeue submissions. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(jobs)).Msg("Requeued failed submissions")
	sleepCtx(ctx, w.opts.RequeueBackoff)
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
