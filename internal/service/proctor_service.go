package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/integrity"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/session"
	"k8s.io/utils/clock"
)

// ProctorOptions tune the sessions a ProctorService opens.
type ProctorOptions struct {
	Clock            clock.WithDelayedExecution
	AutoSubmitDelay  time.Duration
	DefaultTimeLimit time.Duration
}

// ProctorService runs live exam sessions for connected candidates. It is
// the in-process session.Backend and keeps one live session per token.
type ProctorService struct {
	exams    *ExamService
	resolver *AssignmentResolver
	rdb      *redis.Client
	notifier Notifier
	reload   integrity.ReloadFlagStore
	opts     ProctorOptions
	log      zerolog.Logger

	mu     sync.Mutex
	nextID uint64
	live   map[string]*LiveSession
}

// LiveSession is one attached candidate connection.
type LiveSession struct {
	Session      *session.Session
	Monitor      *integrity.Monitor
	AssignmentID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc
	id     uint64
}

// Context is cancelled when the session is closed or displaced by a newer
// connection for the same token.
func (l *LiveSession) Context() context.Context { return l.ctx }

// NewProctorService creates a new ProctorService. notifier and reload may
// be nil.
func NewProctorService(
	exams *ExamService,
	resolver *AssignmentResolver,
	rdb *redis.Client,
	notifier Notifier,
	reload integrity.ReloadFlagStore,
	opts ProctorOptions,
	log zerolog.Logger,
) *ProctorService {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &ProctorService{
		exams:    exams,
		resolver: resolver,
		rdb:      rdb,
		notifier: notifier,
		reload:   reload,
		opts:     opts,
		log:      log.With().Str("component", "proctor_service").Logger(),
		live:     make(map[string]*LiveSession),
	}
}

var _ session.Backend = (*ProctorService)(nil)

// FetchQuestions implements session.Backend.
func (p *ProctorService) FetchQuestions(ctx context.Context, token string) ([]model.Question, error) {
	resp, err := p.exams.StartUI(ctx, token)
	if err != nil {
		return nil, err
	}
	return resp.Exam.Questions, nil
}

// Submit implements session.Backend. Only ErrAlreadySubmitted is passed
// through as is: store and queue failures happen on this side of the socket,
// so the session must stay open instead of assuming completion.
func (p *ProctorService) Submit(ctx context.Context, sub model.Submission) error {
	_, err := p.exams.Submit(ctx, sub)
	if err == nil || errors.Is(err, session.ErrAlreadySubmitted) {
		return err
	}
	return fmt.Errorf("persist submission: %v", err)
}

// Open attaches a new live session for token. An older connection for the
// same token is displaced: its context is cancelled and its session closed.
func (p *ProctorService) Open(ctx context.Context, token string, onChange func(session.Snapshot), onTick func(countdown.Snapshot)) (*LiveSession, error) {
	a, err := p.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithCancel(ctx)
	sess := session.New(token, p, session.Options{
		Clock:            p.opts.Clock,
		AutoSubmitDelay:  p.opts.AutoSubmitDelay,
		DefaultTimeLimit: int(p.opts.DefaultTimeLimit / time.Second),
		Logger:           p.log,
		OnChange:         onChange,
		OnTick:           onTick,
	})

	monitorOpts := []integrity.Option{
		integrity.WithSink(&violationSink{p: p, assignmentID: a.ID}),
		integrity.WithLogger(p.log),
		integrity.WithClock(p.opts.Clock),
	}
	if p.reload != nil {
		monitorOpts = append(monitorOpts, integrity.WithReloadStore(p.reload))
	}

	live := &LiveSession{
		Session:      sess,
		Monitor:      integrity.NewMonitor(token, sess, monitorOpts...),
		AssignmentID: a.ID,
		ctx:          lctx,
		cancel:       cancel,
	}

	p.mu.Lock()
	p.nextID++
	live.id = p.nextID
	old := p.live[token]
	p.live[token] = live
	p.mu.Unlock()

	if old != nil {
		p.log.Info().Str("assignment_id", a.ID.String()).Msg("Displacing previous exam connection")
		old.cancel()
		old.Session.Close()
	}
	return live, nil
}

// Close detaches a live session and stops its timers.
func (p *ProctorService) Close(live *LiveSession) {
	p.mu.Lock()
	if cur, ok := p.live[live.Session.Token()]; ok && cur.id == live.id {
		delete(p.live, live.Session.Token())
	}
	p.mu.Unlock()

	live.cancel()
	live.Session.Close()
}

// Active returns the number of attached sessions.
func (p *ProctorService) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// violationSink queues every integrity event for one assignment and notifies
// admins only for the trigger that submitted the exam.
type violationSink struct {
	p            *ProctorService
	assignmentID uuid.UUID
}

func (s *violationSink) Record(ctx context.Context, v integrity.Violation) error {
	raw, err := json.Marshal(model.IntegrityEvent{
		AssignmentID: s.assignmentID,
		Reason:       string(v.Reason),
		Detail:       v.Detail,
		RecordedAt:   v.At,
	})
	if err != nil {
		return err
	}
	if err := s.p.rdb.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue integrity event: %w", err)
	}

	if s.p.notifier != nil && v.Submitted {
		body := fmt.Sprintf("Assignment %s: %s.", s.assignmentID, v.Reason)
		if err := s.p.notifier.NotifyPermission(ctx, model.PermissionIntegrityRead, model.NotificationIntegrityViolation, "Integrity violation", body); err != nil {
			s.p.log.Warn().Err(err).Msg("Failed to notify admins of integrity violation")
		}
	}
	return nil
}
