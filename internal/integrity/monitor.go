package integrity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/session"
	"k8s.io/utils/clock"
)

// Submitter is the state machine the monitor forces into submission.
type Submitter interface {
	ForceSubmit(reason string) error
}

// Violation is one integrity trigger observed for a session.
type Violation struct {
	Token  string    `json:"token"`
	Reason Reason    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
	// Submitted is false for triggers that lost the race to an earlier one.
	Submitted bool `json:"submitted"`
}

// EventSink receives every violation for auditing.
type EventSink interface {
	Record(ctx context.Context, v Violation) error
}

// Result describes what the monitor did with one event.
type Result struct {
	Reason Reason `json:"reason,omitempty"`
	// Submitted is true only for the trigger that won the submission guard.
	Submitted bool `json:"submitted"`
	// Intercepted marks reload shortcuts the page must swallow.
	Intercepted  bool `json:"intercepted,omitempty"`
	ReloadMarked bool `json:"reloadMarked,omitempty"`
}

type Option func(*Monitor)

func WithSink(sink EventSink) Option { return func(m *Monitor) { m.sink = sink } }

func WithReloadStore(store ReloadFlagStore) Option { return func(m *Monitor) { m.reload = store } }

func WithLogger(log zerolog.Logger) Option { return func(m *Monitor) { m.log = log } }

func WithClock(clk clock.PassiveClock) Option { return func(m *Monitor) { m.clk = clk } }

// Monitor subscribes to every trigger source of one session and funnels them
// into a single ForceSubmit call.
type Monitor struct {
	token     string
	submitter Submitter
	sink      EventSink
	reload    ReloadFlagStore
	log       zerolog.Logger
	clk       clock.PassiveClock

	mu                sync.Mutex
	fullscreenEntered bool
}

func NewMonitor(token string, submitter Submitter, opts ...Option) *Monitor {
	m := &Monitor{
		token:     token,
		submitter: submitter,
		log:       zerolog.Nop(),
		clk:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "integrity_monitor").Logger()
	return m
}

// Handle classifies ev and forces submission when it is a violation.
func (m *Monitor) Handle(ctx context.Context, ev BrowserEvent) (Result, error) {
	switch ev.NormalizedKind() {
	case KindVisibilityChange:
		if ev.Visibility == "hidden" {
			return m.trigger(ctx, ReasonVisibilityHidden, "document hidden")
		}
	case KindBlur:
		return m.trigger(ctx, ReasonWindowBlur, "window lost focus")
	case KindKeyDown:
		if ev.IsReloadShortcut() {
			return Result{Intercepted: true}, nil
		}
		if reason, ok := ev.keyReason(); ok {
			return m.trigger(ctx, reason, "key "+ev.Key)
		}
	case KindFullscreenChange:
		return m.fullscreenChanged(ctx, ev)
	case KindBeforeUnload:
		if m.reload == nil {
			return Result{}, nil
		}
		if err := m.reload.Mark(ctx, m.token); err != nil {
			return Result{}, fmt.Errorf("mark reload: %w", err)
		}
		return Result{Reason: ReasonPageReload, ReloadMarked: true}, nil
	}
	return Result{}, nil
}

// CheckReload consumes the reload flag left by a previous page and, when it
// was set, forces submission instead of letting the session resume.
func (m *Monitor) CheckReload(ctx context.Context) (Result, error) {
	if m.reload == nil {
		return Result{}, nil
	}
	marked, err := m.reload.Consume(ctx, m.token)
	if err != nil {
		return Result{}, fmt.Errorf("consume reload flag: %w", err)
	}
	if !marked {
		return Result{}, nil
	}
	return m.trigger(ctx, ReasonPageReload, "page reloaded during exam")
}

func (m *Monitor) fullscreenChanged(ctx context.Context, ev BrowserEvent) (Result, error) {
	if ev.Fullscreen == nil {
		return Result{}, nil
	}

	m.mu.Lock()
	if *ev.Fullscreen {
		m.fullscreenEntered = true
		m.mu.Unlock()
		return Result{}, nil
	}
	entered := m.fullscreenEntered
	m.fullscreenEntered = false
	m.mu.Unlock()

	if !entered {
		return Result{}, nil
	}
	return m.trigger(ctx, ReasonFullscreenExit, "left fullscreen")
}

func (m *Monitor) trigger(ctx context.Context, reason Reason, detail string) (Result, error) {
	m.log.Warn().Str("reason", string(reason)).Msg("Integrity violation")

	err := m.submitter.ForceSubmit(string(reason))
	res := Result{Reason: reason, Submitted: err == nil}

	if m.sink != nil {
		v := Violation{Token: m.token, Reason: reason, Detail: detail, At: m.clk.Now(), Submitted: res.Submitted}
		if rerr := m.sink.Record(ctx, v); rerr != nil {
			m.log.Error().Err(rerr).Str("reason", string(reason)).Msg("Failed to record integrity violation")
		}
	}

	if errors.Is(err, session.ErrNotInProgress) || errors.Is(err, session.ErrClosed) {
		// Another trigger already owns the submission.
		return res, nil
	}
	return res, err
}
