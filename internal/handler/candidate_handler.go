package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
	"github.com/talentgate/exam-backend/internal/validator"
)

// CandidateHandler serves the token-based candidate entry points.
type CandidateHandler struct {
	candidates *service.CandidateService
	log        zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(candidates *service.CandidateService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		candidates: candidates,
		log:        log.With().Str("component", "candidate_handler").Logger(),
	}
}

// VerifyToken godoc
// POST /api/v1/candidate/verify-token
// Checks that a token names a live, unsubmitted assignment.
func (h *CandidateHandler) VerifyToken(c *gin.Context) {
	var req model.CandidateTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.candidates.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		failExam(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"valid":      true,
		"status":     a.Status,
		"expires_at": a.ExpiresAt,
	})
}

// StartExam godoc
// POST /api/v1/candidate/start-exam
// Marks the assignment started and returns the exam summary. Repeated calls
// return the same summary.
func (h *CandidateHandler) StartExam(c *gin.Context) {
	var req model.CandidateTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.candidates.StartExam(c.Request.Context(), req.Token)
	if err != nil {
		failExam(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
