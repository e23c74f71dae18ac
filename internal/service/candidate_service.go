package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/model"
	"k8s.io/utils/clock"
)

// CandidateService bootstraps a candidate's exam from their token.
type CandidateService struct {
	resolver    *AssignmentResolver
	assignments AssignmentStore
	candidates  CandidateStore
	exams       *ExamService
	clk         clock.PassiveClock
	log         zerolog.Logger
}

// NewCandidateService creates a new CandidateService.
func NewCandidateService(
	resolver *AssignmentResolver,
	assignments AssignmentStore,
	candidates CandidateStore,
	exams *ExamService,
	clk clock.PassiveClock,
	log zerolog.Logger,
) *CandidateService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &CandidateService{
		resolver:    resolver,
		assignments: assignments,
		candidates:  candidates,
		exams:       exams,
		clk:         clk,
		log:         log.With().Str("component", "candidate_service").Logger(),
	}
}

// VerifyToken checks that the token names an unexpired, unsubmitted
// assignment.
func (s *CandidateService) VerifyToken(ctx context.Context, token string) (*model.Assignment, error) {
	return s.resolver.Lookup(ctx, token)
}

// StartExam marks the assignment started and returns the exam summary.
// Calling it again for a started assignment is harmless.
func (s *CandidateService) StartExam(ctx context.Context, token string) (*model.StartExamResponse, error) {
	a, err := s.resolver.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	if a.Status == model.AssignmentPending {
		if err := s.assignments.MarkStarted(ctx, token, s.clk.Now()); err != nil {
			return nil, fmt.Errorf("mark assignment started: %w", err)
		}
		a.Status = model.AssignmentStarted
	}
	if err := s.resolver.Cache(ctx, a); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache assignment")
	}

	payload, err := s.exams.Payload(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}

	resp := &model.StartExamResponse{
		ExamID:        payload.ExamID,
		Title:         payload.Title,
		QuestionCount: len(payload.Questions),
	}
	if c, err := s.candidates.GetByID(ctx, a.CandidateID); err == nil {
		resp.CandidateName = c.Name
	}

	s.log.Info().Str("assignment_id", a.ID.String()).Str("exam_id", a.ExamID.String()).Msg("Exam started")
	return resp, nil
}
