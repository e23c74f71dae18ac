package worker

import "time"

const (
	DefaultBatchSize    = 50
	DefaultBatchTimeout = 2 * time.Second
	DefaultPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
	redisErrorBackoff   = 3 * time.Second
	shutdownFlushBudget = 5 * time.Second
)

// Options tune a batching queue worker. Zero values use the defaults.
type Options struct {
	BatchSize    int
	BatchTimeout time.Duration
	PollTimeout  time.Duration
	// RequeueBackoff pauses the loop after items were pushed back so a
	// database outage is not hammered.
	RequeueBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.RequeueBackoff < 0 {
		o.RequeueBackoff = 0
	} else if o.RequeueBackoff == 0 {
		o.RequeueBackoff = 2 * time.Second
	}
	return o
}
