// Package countdown implements the per-question exam timer.
//
// A Countdown counts one question key down from its limit on a one second
// cadence and reports expiry exactly once per key. Changing the key restarts
// the count and silences any tick still in flight for the previous key.
package countdown

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Level is the urgency band derived from the remaining percentage.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Snapshot is the observable state of a countdown.
type Snapshot struct {
	Key     string  `json:"key"`
	Limit   int     `json:"limit"`
	Left    int     `json:"left"`
	Percent float64 `json:"percent"`
	Level   Level   `json:"level"`
}

// Percent returns timeLeft / timeLimit * 100.
func Percent(left, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(left) / float64(limit) * 100
}

// LevelFor maps a remaining percentage to its urgency band.
func LevelFor(percent float64) Level {
	switch {
	case percent > 60:
		return LevelNormal
	case percent > 30:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// Countdown is safe for concurrent use.
type Countdown struct {
	clk      clock.WithDelayedExecution
	onExpire func(key string)

	mu     sync.Mutex
	onTick func(Snapshot)
	key    string
	limit  int
	left   int
	gen    uint64
	done   bool
	timer  clock.Timer
}

// New creates an idle countdown. onExpire is called once per key, outside
// the countdown's lock, on the clock's callback goroutine.
func New(clk clock.WithDelayedExecution, onExpire func(key string)) *Countdown {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Countdown{clk: clk, onExpire: onExpire, done: true}
}

// OnTick registers a callback invoked after every decrement.
func (c *Countdown) OnTick(fn func(Snapshot)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Reset starts counting key down from limit seconds.
func (c *Countdown) Reset(key string, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.key = key
	c.limit = limit
	c.left = limit
	c.done = limit <= 0
	if !c.done {
		c.scheduleLocked(c.gen)
	}
}

// Resume continues key from left seconds. When key is the one already held
// the original limit is kept, so percent and level stay relative to it.
func (c *Countdown) Resume(key string, left int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if key != c.key || left > c.limit {
		c.key = key
		c.limit = left
	}
	c.left = left
	c.done = left <= 0
	if !c.done {
		c.scheduleLocked(c.gen)
	}
}

// Stop halts the countdown without firing expiry.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.done = true
}

// Snapshot returns the current state.
func (c *Countdown) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Countdown) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) scheduleLocked(gen uint64) {
	c.timer = c.clk.AfterFunc(time.Second, func() { c.tick(gen) })
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.done {
		c.mu.Unlock()
		return
	}

	c.left--
	expired := c.left <= 0
	if expired {
		c.left = 0
		c.done = true
		c.timer = nil
	} else {
		// Schedule before notifying so observers never race the next tick.
		c.scheduleLocked(gen)
	}
	snap := c.snapshotLocked()
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(snap)
	}
	if expired && c.onExpire != nil {
		c.onExpire(snap.Key)
	}
}

func (c *Countdown) snapshotLocked() Snapshot {
	p := Percent(c.left, c.limit)
	return Snapshot{
		Key:     c.key,
		Limit:   c.limit,
		Left:    c.left,
		Percent: p,
		Level:   LevelFor(p),
	}
}
