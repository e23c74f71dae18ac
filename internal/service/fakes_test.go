package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/model"
	testingclock "k8s.io/utils/clock/testing"
)

var testNow = time.Date(2026, 4, 14, 9, 0, 0, 0, time.UTC)

type fakeAssignments struct {
	mu   sync.Mutex
	rows map[string]*model.Assignment
}

func (f *fakeAssignments) GetByToken(_ context.Context, token string) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignments) MarkStarted(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[token]; ok && a.Status == model.AssignmentPending {
		a.Status = model.AssignmentStarted
		a.StartedAt = &at
	}
	return nil
}

type fakeExams struct {
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.StoredQuestion

	mu        sync.Mutex
	listCalls int
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeExams) ListQuestions(_ context.Context, examID uuid.UUID) ([]model.StoredQuestion, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.questions[examID], nil
}

func (f *fakeExams) ListActiveExamIDs(context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.exams))
	for id := range f.exams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type fakeCandidates struct{}

func (fakeCandidates) GetByID(_ context.Context, id int) (*model.Candidate, error) {
	return &model.Candidate{ID: id, Name: "Ada Lovelace", Email: "ada@example.com"}, nil
}

type sentNotification struct {
	Perm  model.Permission
	Type  model.NotificationType
	Title string
	Body  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) NotifyPermission(_ context.Context, perm model.Permission, typ model.NotificationType, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{perm, typ, title, body})
	return nil
}

func (f *fakeNotifier) all() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.sent...)
}

func storedOptions(opts ...string) json.RawMessage {
	raw, _ := json.Marshal(opts)
	return raw
}

// examFixture wires an ExamService over miniredis and in-memory stores with
// one exam of two questions and three assignments.
type examFixture struct {
	mr          *miniredis.Miniredis
	rdb         *redis.Client
	clk         *testingclock.FakeClock
	assignments *fakeAssignments
	exams       *fakeExams
	notifier    *fakeNotifier
	resolver    *AssignmentResolver
	svc         *ExamService
	examID      uuid.UUID
}

const (
	tokenStarted = "started-token-01"
	tokenPending = "pending-token-01"
	tokenExpired = "expired-token-01"
)

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	examID := uuid.MustParse("5f0c6a8e-1f7e-4b8a-9c59-2f1f0b0c9a11")
	limit := 5
	f := &examFixture{
		mr:       mr,
		rdb:      rdb,
		clk:      testingclock.NewFakeClock(testNow),
		notifier: &fakeNotifier{},
		examID:   examID,
		exams: &fakeExams{
			exams: map[uuid.UUID]*model.Exam{examID: {ID: examID, Title: "Backend screening"}},
			questions: map[uuid.UUID][]model.StoredQuestion{examID: {
				{ID: 1, ExamID: examID, QuestionText: "2+2?", Options: storedOptions("3", "4"), CorrectOption: "4", TimeLimit: &limit, OrderNum: 1},
				{ID: 2, ExamID: examID, QuestionText: "Capital of France?", Options: storedOptions("Paris", "Rome"), CorrectOption: " Paris", OrderNum: 2},
			}},
		},
		assignments: &fakeAssignments{rows: map[string]*model.Assignment{
			tokenStarted: {ID: uuid.New(), Token: tokenStarted, CandidateID: 7, ExamID: examID, Status: model.AssignmentStarted, ExpiresAt: testNow.Add(time.Hour)},
			tokenPending: {ID: uuid.New(), Token: tokenPending, CandidateID: 8, ExamID: examID, Status: model.AssignmentPending, ExpiresAt: testNow.Add(time.Hour)},
			tokenExpired: {ID: uuid.New(), Token: tokenExpired, CandidateID: 9, ExamID: examID, Status: model.AssignmentStarted, ExpiresAt: testNow.Add(-time.Minute)},
		}},
	}
	f.resolver = NewAssignmentResolver(f.assignments, rdb, f.clk)
	f.svc = NewExamService(f.exams, f.resolver, rdb, f.notifier, f.clk, zerolog.Nop())
	return f
}
