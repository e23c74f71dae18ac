package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
)

// examErrors maps exam-flow sentinels to their HTTP status and code.
var examErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrAssignmentNotFound, http.StatusNotFound, response.ErrAssignmentNotFound},
	{service.ErrAssignmentExpired, http.StatusGone, response.ErrAssignmentExpired},
	{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{service.ErrExamNotStarted, http.StatusConflict, response.ErrExamNotStarted},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrUnknownQuestion, http.StatusBadRequest, response.ErrUnknownQuestion},
}

// failExam writes the envelope for an exam-flow error. Unknown errors are
// logged and reported as INTERNAL_ERROR.
func failExam(c *gin.Context, log zerolog.Logger, err error) {
	for _, e := range examErrors {
		if errors.Is(err, e.err) {
			response.Fail(c, e.status, e.code)
			return
		}
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("Exam request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
