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

// IntegrityWriter stores integrity audit events.
type IntegrityWriter interface {
	CopyEvents(ctx context.Context, events []model.IntegrityEvent) (int64, error)
	Insert(ctx context.Context, e model.IntegrityEvent) error
}

// IntegrityWorker drains persist_integrity_queue into the audit log.
type IntegrityWorker struct {
	store IntegrityWriter
	rdb   *redis.Client
	opts  Options
	log   zerolog.Logger
}

func NewIntegrityWorker(store IntegrityWriter, rdb *redis.Client, opts Options, log zerolog.Logger) *IntegrityWorker {
	return &IntegrityWorker{
		store: store,
		rdb:   rdb,
		opts:  opts.withDefaults(),
		log:   log.With().Str("component", "integrity_worker").Logger(),
	}
}

func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IntegrityWorker started")

	buffer := make([]model.IntegrityEvent, 0, w.opts.BatchSize)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 &&
			(len(buffer) >= w.opts.BatchSize || time.Since(lastFlush) >= w.opts.BatchTimeout) {
			w.Flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping, flushing remaining buffer...")
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushBudget)
			w.Flush(flushCtx, buffer)
			cancel()
			return
		default:
		}

		// 3. Fetch
		result, err := w.rdb.BLPop(ctx, w.opts.PollTimeout, config.WorkerKey.PersistIntegrityQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleepCtx(ctx, redisErrorBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var ev model.IntegrityEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			// Malformed JSON can never succeed; drop it.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed integrity event")
			continue
		}
		buffer = append(buffer, ev)
	}
}

// Flush COPYs the batch, then falls back to single inserts and requeues
// what still fails.
func (w *IntegrityWorker) Flush(ctx context.Context, batch []model.IntegrityEvent) {
	if len(batch) == 0 {
		return
	}
	_, err := w.store.CopyEvents(ctx, batch)
	if err == nil {
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, attempting row-by-row recovery")

	var requeue []model.IntegrityEvent
	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("assignment_id", ev.AssignmentID.String()).Msg("Insert failed, requeueing")
			requeue = append(requeue, ev)
		}
	}
	if len(requeue) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for _, ev := range requeue {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue integrity events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(requeue)).Msg("Requeued failed integrity events")
	sleepCtx(ctx, w.opts.RequeueBackoff)
}
