package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
	"k8s.io/utils/clock"
)

// SubmissionGuardTTL is how long the at-most-once key outlives a submit.
const SubmissionGuardTTL = 7 * 24 * time.Hour

// ExamService serves exam questions to candidates and accepts their
// submissions.
type ExamService struct {
	exams    ExamStore
	resolver *AssignmentResolver
	rdb      *redis.Client
	notifier Notifier
	clk      clock.PassiveClock
	log      zerolog.Logger
}

// NewExamService creates a new ExamService. notifier may be nil.
func NewExamService(
	exams ExamStore,
	resolver *AssignmentResolver,
	rdb *redis.Client,
	notifier Notifier,
	clk clock.PassiveClock,
	log zerolog.Logger,
) *ExamService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ExamService{
		exams:    exams,
		resolver: resolver,
		rdb:      rdb,
		notifier: notifier,
		clk:      clk,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// WarmExamCache loads an exam's payload and answer key from PostgreSQL into
// Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	stored, err := s.exams.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrNoQuestions
	}

	payload := &model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Questions: make([]model.Question, 0, len(stored)),
	}
	answerKey := make(map[string]interface{}, len(stored))
	for _, q := range stored {
		cq, err := q.ForCandidate()
		if err != nil {
			return nil, fmt.Errorf("decode question %d: %w", q.ID, err)
		}
		payload.Questions = append(payload.Questions, cq)
		answerKey[strconv.Itoa(q.ID)] = strings.TrimSpace(q.CorrectOption)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ExamQuestionsKey(examID.String()), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(examID.String()))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(examID.String()), answerKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().Str("exam_id", examID.String()).Int("questions", len(stored)).Msg("Cache warmed")
	return payload, nil
}

// PrewarmCaches loads every exam with open assignments into Redis.
func (s *ExamService) PrewarmCaches(ctx context.Context) error {
	ids, err := s.exams.ListActiveExamIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No active exams to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		if _, err := s.WarmExamCache(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}
	s.log.Info().Int("warmed", warmed).Int("total", len(ids)).Msg("Prewarming complete")
	return nil
}

// Payload returns the candidate-facing exam, rebuilding the cache on a miss.
func (s *ExamService) Payload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamQuestionsKey(examID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.WarmExamCache(ctx, examID)
	}
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// AnswerKey returns question id -> correct option for an exam.
func (s *ExamService) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.ExamAnswerKey(examID.String())
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) > 0 {
		return result, nil
	}

	if _, err := s.WarmExamCache(ctx, examID); err != nil {
		return nil, err
	}
	result, err = s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	return result, nil
}

// StartUI returns the question list for a started assignment.
func (s *ExamService) StartUI(ctx context.Context, token string) (*model.StartUIResponse, error) {
	a, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	payload, err := s.Payload(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	if len(payload.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &model.StartUIResponse{Exam: *payload}, nil
}

// Submit grades and queues a submission. A token is accepted at most once
// across every process sharing the Redis instance.
func (s *ExamService) Submit(ctx context.Context, sub model.Submission) (*model.SubmissionResult, error) {
	a, err := s.resolver.Resolve(ctx, sub.Token)
	if err != nil {
		return nil, err
	}

	key, err := s.AnswerKey(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	if err := checkQuestionIDs(key, sub); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	guardKey := config.CacheKey.AssignmentSubmittedKey(sub.Token)
	won, err := s.rdb.SetNX(ctx, guardKey, now.Unix(), SubmissionGuardTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("take submission guard: %w", err)
	}
	if !won {
		return nil, ErrAlreadySubmitted
	}

	score := Grade(key, sub.Responses)
	job := model.SubmissionJob{
		AssignmentID:     a.ID,
		Token:            sub.Token,
		Responses:        sub.Responses,
		SkippedQuestions: sub.SkippedQuestions,
		SubmissionType:   sub.SubmissionType,
		Reason:           sub.Reason,
		Score:            score,
		SubmittedAt:      now,
	}
	if job.Responses == nil {
		job.Responses = []model.ResponseRecord{}
	}
	if job.SkippedQuestions == nil {
		job.SkippedQuestions = []int{}
	}
	raw, err := json.Marshal(job)
	if err != nil {
		s.rdb.Del(ctx, guardKey)
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw)
	pipe.Del(ctx, config.CacheKey.AssignmentKey(sub.Token))
	if _, err := pipe.Exec(ctx); err != nil {
		// Nothing was persisted, so the candidate may try again.
		s.rdb.Del(ctx, guardKey)
		return nil, fmt.Errorf("enqueue submission: %w", err)
	}

	s.log.Info().
		Str("assignment_id", a.ID.String()).
		Str("type", string(sub.SubmissionType)).
		Str("reason", sub.Reason).
		Float64("score", score).
		Msg("Exam submitted")

	if s.notifier != nil {
		body := fmt.Sprintf("Assignment %s submitted (%s), score %.2f.", a.ID, strings.ToLower(string(sub.SubmissionType)), score)
		if err := s.notifier.NotifyPermission(ctx, model.PermissionResultsRead, model.NotificationExamSubmitted, "Exam submitted", body); err != nil {
			s.log.Warn().Err(err).Msg("Failed to notify admins of submission")
		}
	}

	return &model.SubmissionResult{
		AssignmentID: a.ID,
		Answered:     len(sub.Responses),
		Skipped:      len(sub.SkippedQuestions),
		Score:        score,
		SubmittedAt:  now,
	}, nil
}

// Grade returns the percentage of questions answered correctly. Options are
// compared as trimmed strings.
func Grade(answerKey map[string]string, responses []model.ResponseRecord) float64 {
	if len(answerKey) == 0 {
		return 0
	}
	seen := make(map[int]struct{}, len(responses))
	correct := 0
	for _, r := range responses {
		if _, dup := seen[r.QuestionID]; dup {
			continue
		}
		seen[r.QuestionID] = struct{}{}
		if want, ok := answerKey[strconv.Itoa(r.QuestionID)]; ok && strings.TrimSpace(r.SelectedOption) == strings.TrimSpace(want) {
			correct++
		}
	}
	score := float64(correct) / float64(len(answerKey)) * 100
	return math.Round(score*100) / 100
}

func checkQuestionIDs(answerKey map[string]string, sub model.Submission) error {
	for _, r := range sub.Responses {
		if _, ok := answerKey[strconv.Itoa(r.QuestionID)]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownQuestion, r.QuestionID)
		}
	}
	for _, id := range sub.SkippedQuestions {
		if _, ok := answerKey[strconv.Itoa(id)]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
		}
	}
	return nil
}
