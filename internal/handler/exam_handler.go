package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
	"github.com/talentgate/exam-backend/internal/validator"
)

// ExamHandler serves the exam endpoints used by the exam UI.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartUI godoc
// GET /api/v1/exam/start-ui?token=
// Returns the ordered questions for a started assignment. Answers are never
// included.
func (h *ExamHandler) StartUI(c *gin.Context) {
	var q model.TokenQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.examService.StartUI(c.Request.Context(), q.Token)
	if err != nil {
		failExam(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// SubmitExam godoc
// POST /api/v1/exam/submit-exam
// Grades and queues a submission. Only the first submission per token is
// accepted; later ones get 409 ALREADY_SUBMITTED.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	var req model.Submission
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.examService.Submit(c.Request.Context(), req)
	if err != nil {
		failExam(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// RefreshExamCache godoc
// POST /api/v1/admin/exams/:exam_id/refresh-cache
// Re-caches the exam payload + answer key to Redis after question changes.
func (h *ExamHandler) RefreshExamCache(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.examService.WarmExamCache(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		failExam(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam_id":   payload.ExamID,
		"questions": len(payload.Questions),
	})
}
