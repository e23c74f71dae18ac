package session

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/model"
	testingclock "k8s.io/utils/clock/testing"
)

type fakeBackend struct {
	mu         sync.Mutex
	questions  []model.Question
	fetchErr   error
	submitErrs []error
	submits    []model.Submission

	started chan struct{}
	release chan struct{}
}

func (b *fakeBackend) FetchQuestions(context.Context, string) ([]model.Question, error) {
	return b.questions, b.fetchErr
}

func (b *fakeBackend) Submit(ctx context.Context, sub model.Submission) error {
	b.mu.Lock()
	b.submits = append(b.submits, sub)
	var err error
	if len(b.submitErrs) > 0 {
		err = b.submitErrs[0]
		b.submitErrs = b.submitErrs[1:]
	}
	b.mu.Unlock()

	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	return err
}

func (b *fakeBackend) calls() []model.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Submission(nil), b.submits...)
}

func limit(n int) *int { return &n }

func str(s string) *string { return &s }

func twoQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Question: "2+2?", Options: []string{"3", "4"}, TimeLimit: limit(5)},
		{ID: 2, Question: "Capital of France?", Options: []string{"Paris", "Rome"}, TimeLimit: limit(5)},
	}
}

type rig struct {
	clk     *testingclock.FakeClock
	backend *fakeBackend
	sess    *Session
	changes chan Snapshot
	ticks   chan countdown.Snapshot
}

func newRig(t *testing.T, backend *fakeBackend) *rig {
	t.Helper()
	r := &rig{
		clk:     testingclock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
		backend: backend,
		changes: make(chan Snapshot, 256),
		ticks:   make(chan countdown.Snapshot, 256),
	}
	r.sess = New("tok-abcdef123", backend, Options{
		Clock:           r.clk,
		AutoSubmitDelay: 300 * time.Millisecond,
		Logger:          zerolog.Nop(),
		OnChange:        func(s Snapshot) { r.changes <- s },
		OnTick:          func(s countdown.Snapshot) { r.ticks <- s },
	})
	t.Cleanup(r.sess.Close)
	return r
}

func (r *rig) load(t *testing.T) {
	t.Helper()
	require.NoError(t, r.sess.Load(context.Background()))
}

// second advances one second and waits for the resulting tick.
func (r *rig) second(t *testing.T) {
	t.Helper()
	r.clk.Step(time.Second)
	select {
	case <-r.ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("tick not delivered")
	}
}

func (r *rig) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.changes:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("state %s not reached", want)
			return Snapshot{}
		}
	}
}

// drain discards state changes already delivered.
func (r *rig) drain() {
	for {
		select {
		case <-r.changes:
		default:
			return
		}
	}
}

func (r *rig) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-r.sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestScenarioTimerExpiryOnLastQuestionAutoSubmits(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	require.NoError(t, r.sess.Select(1, str(" 4 ")))
	require.NoError(t, r.sess.Next())

	for i := 0; i < 5; i++ {
		r.second(t)
	}
	r.waitState(t, StateSubmitting)
	assert.Empty(t, r.backend.calls(), "submit waits for the auto-submit delay")

	r.clk.Step(300 * time.Millisecond)
	r.waitDone(t)

	calls := r.backend.calls()
	require.Len(t, calls, 1)
	sub := calls[0]
	assert.Equal(t, "tok-abcdef123", sub.Token)
	assert.Equal(t, []model.ResponseRecord{{QuestionID: 1, SelectedOption: "4"}}, sub.Responses)
	assert.Equal(t, []int{2}, sub.SkippedQuestions)
	assert.Equal(t, model.SubmissionAuto, sub.SubmissionType)
	assert.Equal(t, ReasonTimeout, sub.Reason)
	assert.Equal(t, StateCompleted, r.sess.Snapshot().State)
}

func TestScenarioManualSubmitOnLastQuestion(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	require.NoError(t, r.sess.Select(1, str("4")))
	require.NoError(t, r.sess.Next())
	require.NoError(t, r.sess.Select(2, str("Paris")))
	require.NoError(t, r.sess.Submit())

	calls := r.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.SubmissionManual, calls[0].SubmissionType)
	assert.Empty(t, calls[0].SkippedQuestions)
	assert.NotNil(t, calls[0].SkippedQuestions)
	assert.Len(t, calls[0].Responses, 2)
	assert.Equal(t, StateCompleted, r.sess.Snapshot().State)
}

func TestScenarioForcedSubmitIncludesUnvisitedQuestions(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	require.NoError(t, r.sess.Select(1, str("4")))
	require.NoError(t, r.sess.ForceSubmit("fullscreen_exit"))

	calls := r.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.SubmissionAuto, calls[0].SubmissionType)
	assert.Equal(t, "fullscreen_exit", calls[0].Reason)
	assert.Equal(t, []int{2}, calls[0].SkippedQuestions)
}

func TestScenarioSecondTriggerWhileSubmittingIsIgnored(t *testing.T) {
	backend := &fakeBackend{
		questions: twoQuestions(),
		started:   make(chan struct{}, 4),
		release:   make(chan struct{}),
	}
	r := newRig(t, backend)
	r.load(t)

	firstErr := make(chan error, 1)
	go func() { firstErr <- r.sess.ForceSubmit("window_blur") }()
	<-backend.started

	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, r.sess.ForceSubmit("visibility_hidden"), ErrNotInProgress)
	assert.ErrorIs(t, r.sess.Select(1, str("4")), ErrNotInProgress)

	close(backend.release)
	require.NoError(t, <-firstErr)
	assert.Len(t, backend.calls(), 1)
}

func TestConcurrentTriggersSubmitOnce(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.sess.ForceSubmit("window_blur")
		}()
	}
	wg.Wait()

	assert.Len(t, r.backend.calls(), 1)
}

func TestSelectNilClearsResponseAndSkip(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	require.NoError(t, r.sess.Skip())
	assert.Equal(t, []int{1}, r.sess.Snapshot().Skipped)

	require.NoError(t, r.sess.Select(1, str("4")))
	require.NoError(t, r.sess.Select(1, nil))

	snap := r.sess.Snapshot()
	assert.NotContains(t, snap.Responses, 1)
	assert.Empty(t, snap.Skipped)
}

func TestResponsesAndSkippedNeverOverlap(t *testing.T) {
	questions := make([]model.Question, 6)
	for i := range questions {
		questions[i] = model.Question{ID: i + 10, Options: []string{"a", "b"}, TimeLimit: limit(30)}
	}

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		r := newRig(t, &fakeBackend{questions: questions})
		r.load(t)

		for step := 0; step < 40; step++ {
			snap := r.sess.Snapshot()
			if snap.State != StateInProgress {
				break
			}
			qid := questions[rng.Intn(len(questions))].ID
			switch rng.Intn(4) {
			case 0:
				_ = r.sess.Select(qid, str("a"))
			case 1:
				_ = r.sess.Select(qid, nil)
			case 2:
				_ = r.sess.Skip()
			case 3:
				_ = r.sess.Next()
			}

			snap = r.sess.Snapshot()
			for _, id := range snap.Skipped {
				_, answered := snap.Responses[id]
				require.False(t, answered, "question %d both answered and skipped", id)
			}
			require.True(t, snap.Index >= 0 && snap.Index < snap.Total)
		}

		for _, sub := range r.backend.calls() {
			for _, rec := range sub.Responses {
				assert.NotContains(t, sub.SkippedQuestions, rec.QuestionID)
			}
		}
		r.sess.Close()
	}
}

func TestManualSkipOnLastQuestionSubmits(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	require.NoError(t, r.sess.Next())
	require.NoError(t, r.sess.Skip())

	calls := r.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.SubmissionManual, calls[0].SubmissionType)
	assert.Equal(t, []int{1, 2}, calls[0].SkippedQuestions)
}

func TestTimerExpiryAdvancesAndMarksSkipped(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	for i := 0; i < 5; i++ {
		r.second(t)
	}
	deadline := time.After(2 * time.Second)
	for {
		snap := r.sess.Snapshot()
		if snap.Index == 1 {
			assert.Equal(t, []int{1}, snap.Skipped)
			assert.Equal(t, StateInProgress, snap.State)
			return
		}
		select {
		case <-deadline:
			t.Fatal("session did not advance on expiry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStaleExpiryIsIgnored(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	r.sess.onExpire("7:99")
	snap := r.sess.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Empty(t, snap.Skipped)
}

func TestNavigationGuards(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)

	assert.ErrorIs(t, r.sess.Submit(), ErrNotLastQuestion)
	assert.ErrorIs(t, r.sess.Select(42, str("x")), ErrUnknownQuestion)
	require.NoError(t, r.sess.Next())
	assert.ErrorIs(t, r.sess.Next(), ErrLastQuestion)

	require.NoError(t, r.sess.Submit())
	assert.ErrorIs(t, r.sess.Next(), ErrNotInProgress)
	assert.ErrorIs(t, r.sess.Skip(), ErrNotInProgress)
	assert.ErrorIs(t, r.sess.ForceSubmit("escape_key"), ErrNotInProgress)
	assert.ErrorIs(t, r.sess.Load(context.Background()), ErrNotLoading)
}

func TestLoadFailureBlocks(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		wantErr error
	}{
		{"fetch error", &fakeBackend{fetchErr: ErrUnreachable}, ErrUnreachable},
		{"empty exam", &fakeBackend{}, ErrNoQuestions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.backend)
			err := r.sess.Load(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateBlocked, r.sess.Snapshot().State)
			r.waitDone(t)
			assert.ErrorIs(t, r.sess.ForceSubmit("window_blur"), ErrNotInProgress)
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestTerminalSubmitErrorsComplete(t *testing.T) {
	for _, err := range []error{ErrAlreadySubmitted, ErrUnreachable, timeoutErr{}} {
		t.Run(err.Error(), func(t *testing.T) {
			r := newRig(t, &fakeBackend{questions: twoQuestions(), submitErrs: []error{err}})
			r.load(t)

			require.NoError(t, r.sess.ForceSubmit("escape_key"))
			snap := r.sess.Snapshot()
			assert.Equal(t, StateCompleted, snap.State)
			assert.True(t, snap.Assumed)
			r.waitDone(t)
		})
	}
}

func TestOtherSubmitErrorReleasesGuard(t *testing.T) {
	boom := errors.New("validation failed")
	r := newRig(t, &fakeBackend{questions: twoQuestions(), submitErrs: []error{boom}})
	r.load(t)
	require.NoError(t, r.sess.Next())

	err := r.sess.Submit()
	require.ErrorIs(t, err, boom)
	snap := r.sess.Snapshot()
	assert.Equal(t, StateInProgress, snap.State)
	assert.Equal(t, boom.Error(), snap.Error)
	assert.Len(t, r.backend.calls(), 1, "failed submits are not retried automatically")

	require.NoError(t, r.sess.Submit())
	assert.Len(t, r.backend.calls(), 2)
	assert.Equal(t, StateCompleted, r.sess.Snapshot().State)
}

func TestFailedSubmitResumesRemainingTime(t *testing.T) {
	boom := errors.New("queue unavailable")
	r := newRig(t, &fakeBackend{questions: twoQuestions(), submitErrs: []error{boom}})
	r.load(t)
	require.NoError(t, r.sess.Next())
	r.second(t)
	r.second(t)

	require.ErrorIs(t, r.sess.Submit(), boom)
	snap := r.sess.timer.Snapshot()
	assert.Equal(t, 3, snap.Left, "the failed attempt does not hand back the full limit")
	assert.Equal(t, 5, snap.Limit)
	r.drain()

	r.second(t)
	r.second(t)
	assert.Equal(t, 1, r.sess.timer.Snapshot().Left)
	r.second(t)
	r.waitState(t, StateSubmitting)
	r.clk.Step(300 * time.Millisecond)
	r.waitDone(t)

	calls := r.backend.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ReasonTimeout, calls[1].Reason)
}

func TestFailedTimeoutSubmitGetsRetryGrace(t *testing.T) {
	boom := errors.New("queue unavailable")
	questions := []model.Question{{ID: 9, Question: "Pick one", Options: []string{"a", "b"}, TimeLimit: limit(10)}}
	r := newRig(t, &fakeBackend{questions: questions, submitErrs: []error{boom}})
	r.load(t)

	for i := 0; i < 10; i++ {
		r.second(t)
	}
	r.waitState(t, StateSubmitting)
	r.clk.Step(300 * time.Millisecond)
	after := r.waitState(t, StateInProgress)
	assert.Equal(t, boom.Error(), after.Error)

	snap := r.sess.timer.Snapshot()
	assert.Equal(t, submitRetryGrace, snap.Left)
	assert.Equal(t, 10, snap.Limit)
	assert.Len(t, r.backend.calls(), 1)
}

func TestClosedSessionRejectsActions(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: twoQuestions()})
	r.load(t)
	r.sess.Close()

	assert.ErrorIs(t, r.sess.Next(), ErrClosed)
	assert.ErrorIs(t, r.sess.ForceSubmit("window_blur"), ErrClosed)
	assert.False(t, r.clk.HasWaiters())
}

func TestDefaultTimeLimit(t *testing.T) {
	r := newRig(t, &fakeBackend{questions: []model.Question{{ID: 5}}})
	r.load(t)
	r.second(t)
	// 20s default: one tick leaves 19.
	select {
	case <-r.sess.Done():
		t.Fatal("session finished early")
	default:
	}
	assert.Equal(t, StateInProgress, r.sess.Snapshot().State)
}
