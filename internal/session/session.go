// Package session runs one candidate's timed exam attempt.
//
// A Session is an explicit state machine:
//
//	LOADING -> IN_PROGRESS -> SUBMITTING -> COMPLETED
//	LOADING -> BLOCKED
//
// Every mutation goes through the session mutex, and the move into
// SUBMITTING is the single at-most-once guard shared by manual submits,
// last-question expiry and integrity triggers.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/model"
	"k8s.io/utils/clock"
)

// State enumerates the session lifecycle.
type State string

const (
	StateLoading    State = "LOADING"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
	StateBlocked    State = "BLOCKED"
)

// submitRetryGrace is the countdown, in seconds, restored after a failed
// submit on a question that had no time left.
const submitRetryGrace = 5

// Submission reasons that do not come from the integrity monitor.
const (
	ReasonManual     = "manual"
	ReasonManualSkip = "manual_skip"
	ReasonTimeout    = "timeout"
)

// Backend fetches questions and accepts the final submission.
type Backend interface {
	FetchQuestions(ctx context.Context, token string) ([]model.Question, error)
	Submit(ctx context.Context, sub model.Submission) error
}

// Options tune a Session. Zero values fall back to defaults.
type Options struct {
	Clock            clock.WithDelayedExecution
	AutoSubmitDelay  time.Duration
	DefaultTimeLimit int // seconds
	Logger           zerolog.Logger
	OnChange         func(Snapshot)
	OnTick           func(countdown.Snapshot)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	State          State                `json:"state"`
	Index          int                  `json:"index"`
	Total          int                  `json:"total"`
	IsLast         bool                 `json:"isLast"`
	Question       *model.Question      `json:"question,omitempty"`
	Responses      map[int]string       `json:"responses"`
	Skipped        []int                `json:"skipped"`
	SubmissionType model.SubmissionType `json:"submissionType,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	// Assumed is set when completion was inferred from a terminal submit error.
	Assumed bool   `json:"assumed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	token   string
	backend Backend
	clk     clock.WithDelayedExecution
	delay   time.Duration
	defLim  int
	log     zerolog.Logger

	onChange func(Snapshot)
	timer    *countdown.Countdown

	mu        sync.Mutex
	ctx       context.Context
	state     State
	closed    bool
	questions []model.Question
	index     int
	responses map[int]string
	skipped   map[int]struct{}
	subType   model.SubmissionType
	reason    string
	assumed   bool
	lastErr   error
	pending   clock.Timer
	done      chan struct{}
}

// New creates a session in LOADING state.
func New(token string, backend Backend, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.DefaultTimeLimit <= 0 {
		opts.DefaultTimeLimit = model.DefaultTimeLimitSeconds
	}

	s := &Session{
		token:     token,
		backend:   backend,
		clk:       opts.Clock,
		delay:     opts.AutoSubmitDelay,
		defLim:    opts.DefaultTimeLimit,
		log:       opts.Logger.With().Str("component", "exam_session").Logger(),
		onChange:  opts.OnChange,
		state:     StateLoading,
		responses: make(map[int]string),
		skipped:   make(map[int]struct{}),
		done:      make(chan struct{}),
	}
	s.timer = countdown.New(opts.Clock, s.onExpire)
	if opts.OnTick != nil {
		s.timer.OnTick(opts.OnTick)
	}
	return s
}

// Token returns the opaque assignment token.
func (s *Session) Token() string { return s.token }

// Done is closed once the session reaches COMPLETED or BLOCKED.
func (s *Session) Done() <-chan struct{} { return s.done }

// Load fetches the question list and starts the first countdown. Any
// failure, including an empty exam, blocks the session permanently.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateLoading || s.closed {
		s.mu.Unlock()
		return ErrNotLoading
	}
	s.mu.Unlock()

	questions, err := s.backend.FetchQuestions(ctx, s.token)
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}

	s.mu.Lock()
	if err != nil {
		s.state = StateBlocked
		s.lastErr = err
		close(s.done)
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.log.Warn().Err(err).Str("token", mask(s.token)).Msg("Exam session blocked")
		s.emit(snap)
		return fmt.Errorf("load questions: %w", err)
	}

	s.ctx = ctx
	s.questions = questions
	s.index = 0
	s.state = StateInProgress
	s.resetTimerLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Str("token", mask(s.token)).Int("questions", len(questions)).Msg("Exam session started")
	s.emit(snap)
	return nil
}

// Select records value for qid, or clears the response when value is nil.
// Either way the question stops counting as skipped.
func (s *Session) Select(qid int, value *string) error {
	s.mu.Lock()
	if err := s.checkInProgressLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.hasQuestionLocked(qid) {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}

	if value == nil {
		delete(s.responses, qid)
	} else {
		s.responses[qid] = strings.TrimSpace(*value)
	}
	delete(s.skipped, qid)

	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// Skip marks the current question skipped (if unanswered) and moves on. On
// the last question it submits manually.
func (s *Session) Skip() error {
	s.mu.Lock()
	if err := s.checkInProgressLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.markSkippedLocked()
	if s.isLastLocked() {
		sub := s.beginSubmitLocked(model.SubmissionManual, ReasonManualSkip)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return s.finish(sub)
	}

	s.advanceLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// Next advances without touching skip or response state.
func (s *Session) Next() error {
	s.mu.Lock()
	if err := s.checkInProgressLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.isLastLocked() {
		s.mu.Unlock()
		return ErrLastQuestion
	}

	s.advanceLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// Submit is the explicit "Submit Exam" action on the last question.
func (s *Session) Submit() error {
	s.mu.Lock()
	if err := s.checkInProgressLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.isLastLocked() {
		s.mu.Unlock()
		return ErrNotLastQuestion
	}

	sub := s.beginSubmitLocked(model.SubmissionManual, ReasonManual)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return s.finish(sub)
}

// ForceSubmit submits immediately as AUTO. It returns ErrNotInProgress
// without side effects when a submission already owns the session.
func (s *Session) ForceSubmit(reason string) error {
	s.mu.Lock()
	if err := s.checkInProgressLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	sub := s.beginSubmitLocked(model.SubmissionAuto, reason)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Warn().Str("token", mask(s.token)).Str("reason", reason).Msg("Forced submission")
	s.emit(snap)
	return s.finish(sub)
}

// Close releases timers. Later actions return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.timer.Stop()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// onExpire is the countdown callback: auto-skip, and on the last question
// take the guard now and submit after the configured delay.
func (s *Session) onExpire(key string) {
	s.mu.Lock()
	if s.state != StateInProgress || s.closed || key != s.timerKeyLocked() {
		s.mu.Unlock()
		return
	}

	s.markSkippedLocked()
	if !s.isLastLocked() {
		s.advanceLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return
	}

	sub := s.beginSubmitLocked(model.SubmissionAuto, ReasonTimeout)
	snap := s.snapshotLocked()
	if s.delay > 0 {
		s.pending = s.clk.AfterFunc(s.delay, func() { _ = s.finish(sub) })
		s.mu.Unlock()
		s.emit(snap)
		return
	}
	s.mu.Unlock()
	s.emit(snap)
	_ = s.finish(sub)
}

// finish performs the network call for a submission whose guard is held.
func (s *Session) finish(sub model.Submission) error {
	s.mu.Lock()
	ctx := s.ctx
	s.pending = nil
	s.mu.Unlock()

	err := s.backend.Submit(ctx, sub)

	s.mu.Lock()
	if err == nil || IsTerminal(err) {
		s.state = StateCompleted
		s.assumed = err != nil
		s.lastErr = err
		s.timer.Stop()
		close(s.done)
		snap := s.snapshotLocked()
		s.mu.Unlock()

		ev := s.log.Info()
		if err != nil {
			ev = s.log.Warn().Err(err)
		}
		ev.Str("token", mask(s.token)).
			Str("type", string(sub.SubmissionType)).
			Str("reason", sub.Reason).
			Bool("assumed", err != nil).
			Msg("Exam session completed")
		s.emit(snap)
		return nil
	}

	// Release the guard; the next submit must come from a new trigger.
	s.state = StateInProgress
	s.lastErr = err
	s.subType = ""
	s.reason = ""
	if !s.closed {
		s.resumeTimerLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Error().Err(err).Str("token", mask(s.token)).Msg("Exam submission failed")
	s.emit(snap)
	return fmt.Errorf("submit exam: %w", err)
}

func (s *Session) beginSubmitLocked(typ model.SubmissionType, reason string) model.Submission {
	s.state = StateSubmitting
	s.subType = typ
	s.reason = reason
	s.lastErr = nil
	s.timer.Stop()

	// Questions the candidate never answered, visited or not, count as skipped.
	skipped := make(map[int]struct{}, len(s.questions))
	for qid := range s.skipped {
		skipped[qid] = struct{}{}
	}
	for _, q := range s.questions {
		if _, answered := s.responses[q.ID]; !answered {
			skipped[q.ID] = struct{}{}
		}
	}
	return BuildSubmission(s.token, s.responses, skipped, typ, reason)
}

func (s *Session) checkInProgressLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	return nil
}

func (s *Session) markSkippedLocked() {
	qid := s.questions[s.index].ID
	if _, answered := s.responses[qid]; answered {
		return
	}
	s.skipped[qid] = struct{}{}
}

func (s *Session) advanceLocked() {
	s.index++
	s.resetTimerLocked()
}

func (s *Session) resetTimerLocked() {
	s.timer.Reset(s.timerKeyLocked(), s.limitLocked())
}

// resumeTimerLocked continues the current question from the seconds left
// when the submit began. A question whose time already ran out gets
// submitRetryGrace seconds before expiry submits it again.
func (s *Session) resumeTimerLocked() {
	left := s.timer.Snapshot().Left
	if left <= 0 {
		left = min(submitRetryGrace, s.limitLocked())
	}
	s.timer.Resume(s.timerKeyLocked(), left)
}

func (s *Session) timerKeyLocked() string {
	return fmt.Sprintf("%d:%d", s.index, s.questions[s.index].ID)
}

func (s *Session) limitLocked() int {
	q := s.questions[s.index]
	if q.TimeLimit != nil && *q.TimeLimit > 0 {
		return *q.TimeLimit
	}
	return s.defLim
}

func (s *Session) isLastLocked() bool {
	return s.index == len(s.questions)-1
}

func (s *Session) hasQuestionLocked(qid int) bool {
	for _, q := range s.questions {
		if q.ID == qid {
			return true
		}
	}
	return false
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          s.state,
		Index:          s.index,
		Total:          len(s.questions),
		Responses:      make(map[int]string, len(s.responses)),
		Skipped:        make([]int, 0, len(s.skipped)),
		SubmissionType: s.subType,
		Reason:         s.reason,
		Assumed:        s.assumed,
	}
	if len(s.questions) > 0 {
		snap.IsLast = s.isLastLocked()
		if s.state == StateInProgress || s.state == StateSubmitting {
			q := s.questions[s.index]
			snap.Question = &q
		}
	}
	for k, v := range s.responses {
		snap.Responses[k] = v
	}
	for qid := range s.skipped {
		snap.Skipped = append(snap.Skipped, qid)
	}
	sort.Ints(snap.Skipped)
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Session) emit(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// mask keeps tokens out of logs.
func mask(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:3] + "***" + token[len(token)-3:]
}
