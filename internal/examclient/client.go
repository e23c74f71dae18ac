// Package examclient is the HTTP implementation of session.Backend. It talks
// to the candidate exam endpoints of a running Talent Gate server.
package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/session"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer decoded from the response envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("exam api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("exam api: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Is lets errors.Is match session.ErrAlreadySubmitted.
func (e *APIError) Is(target error) bool {
	if target != session.ErrAlreadySubmitted {
		return false
	}
	return e.Code == response.ErrAlreadySubmitted ||
		strings.Contains(strings.ToLower(e.Message), "already submitted")
}

type Option func(*Client)

// WithBearerToken attaches an Authorization header to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearer = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client calls the exam API.
type Client struct {
	base   *url.URL
	bearer string
	http   *http.Client
}

// New resolves baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ session.Backend = (*Client)(nil)

// FetchQuestions calls GET /exam/start-ui?token=.
func (c *Client) FetchQuestions(ctx context.Context, token string) ([]model.Question, error) {
	q := url.Values{"token": {token}}
	var out model.StartUIResponse
	if err := c.do(ctx, http.MethodGet, "/exam/start-ui", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Exam.Questions, nil
}

// Submit calls POST /exam/submit-exam.
func (c *Client) Submit(ctx context.Context, sub model.Submission) error {
	return c.do(ctx, http.MethodPost, "/exam/submit-exam", nil, sub, nil)
}

// VerifyToken calls POST /candidate/verify-token.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/candidate/verify-token", nil, model.CandidateTokenRequest{Token: token}, nil)
}

// StartExam calls POST /candidate/start-exam.
func (c *Client) StartExam(ctx context.Context, token string) (model.StartExamResponse, error) {
	var out model.StartExamResponse
	err := c.do(ctx, http.MethodPost, "/candidate/start-exam", nil, model.CandidateTokenRequest{Token: token}, &out)
	return out, err
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", session.ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("decode %s response: empty data", path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Fields
		return apiErr
	}

	// Some proxies answer with a bare {"message": ...}.
	var bare struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &bare) == nil && bare.Message != "" {
		apiErr.Message = bare.Message
	}
	return apiErr
}

// IsAPIError reports whether err carries an *APIError with the given code.
func IsAPIError(err error, code response.ErrCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
