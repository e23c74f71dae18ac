package examclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/session"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, errBody *response.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response.Response{Data: data, Error: errBody})
}

func TestFetchQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/exam/start-ui", r.URL.Path)
		assert.Equal(t, "tok-12345678", r.URL.Query().Get("token"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		limit := 5
		writeEnvelope(w, http.StatusOK, model.StartUIResponse{Exam: model.ExamPayload{
			Title: "Go basics",
			Questions: []model.Question{
				{ID: 1, Question: "2+2?", Options: []string{"3", "4"}, TimeLimit: &limit},
				{ID: 2, Question: "nil map write?", Options: []string{"panic", "ok"}},
			},
		}}, nil)
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/api/v1/", WithBearerToken("secret"))
	require.NoError(t, err)

	questions, err := c.FetchQuestions(context.Background(), "tok-12345678")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, 5, questions[0].Limit())
	assert.Equal(t, model.DefaultTimeLimitSeconds, questions[1].Limit())
}

func TestSubmitSendsPayload(t *testing.T) {
	var got model.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/exam/submit-exam", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, http.StatusOK, map[string]any{"answered": 1}, nil)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	sub := session.BuildSubmission("tok-12345678", map[int]string{1: "4"}, map[int]struct{}{2: {}}, model.SubmissionAuto, "timeout")
	require.NoError(t, c.Submit(context.Background(), sub))
	assert.Equal(t, sub, got)
}

func TestSubmitErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantTerminal bool
		wantCode     response.ErrCode
	}{
		{
			name:         "already submitted code",
			status:       http.StatusConflict,
			body:         `{"data":null,"error":{"code":"ALREADY_SUBMITTED","message":"Exam already submitted."}}`,
			wantTerminal: true,
			wantCode:     response.ErrAlreadySubmitted,
		},
		{
			name:         "already submitted message only",
			status:       http.StatusBadRequest,
			body:         `{"message":"Exam has already submitted for this token"}`,
			wantTerminal: true,
		},
		{
			name:     "validation failure",
			status:   http.StatusBadRequest,
			body:     `{"data":null,"error":{"code":"VALIDATION_ERROR","message":"Validation failed.","fields":{"token":"token is required"}}}`,
			wantCode: response.ErrValidation,
		},
		{
			name:   "empty server error",
			status: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(srv.URL)
			require.NoError(t, err)

			err = c.Submit(context.Background(), model.Submission{Token: "tok-12345678"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantTerminal, session.IsTerminal(err))
			assert.Equal(t, tt.wantTerminal, errors.Is(err, session.ErrAlreadySubmitted))
		})
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(base, WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)

	err = c.Submit(context.Background(), model.Submission{Token: "tok-12345678"})
	assert.ErrorIs(t, err, session.ErrUnreachable)
	assert.True(t, session.IsTerminal(err))
}

func TestCancelledContextIsNotTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Submit(ctx, model.Submission{Token: "tok-12345678"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, session.IsTerminal(err))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api/v1")
	assert.Error(t, err)
}

func TestStartExam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/candidate/start-exam", r.URL.Path)
		writeEnvelope(w, http.StatusOK, model.StartExamResponse{Title: "Go basics", QuestionCount: 2}, nil)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	out, err := c.StartExam(context.Background(), "tok-12345678")
	require.NoError(t, err)
	assert.Equal(t, "Go basics", out.Title)
	assert.Equal(t, 2, out.QuestionCount)
}
