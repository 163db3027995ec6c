// Package client provides a Go client for the Infobase API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const RequestIDHeader = "X-Request-ID"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// APIError is a non-2xx response. Message carries the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// Client is an Infobase API client. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.RWMutex
	token    string
	tokenExp time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a new Infobase client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token. A zero expiry means unknown.
func (c *Client) SetToken(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.tokenExp = expiresAt
}

// IsAuthenticated reports whether the client holds a token that has not
// expired as far as the client knows.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && (c.tokenExp.IsZero() || time.Now().Before(c.tokenExp))
}

// do performs one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ---- accounts and sessions ----

func (c *Client) Register(ctx context.Context, in model.RegisterInput) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/api/accounts", in, &user)
	return user, err
}

// Login exchanges email and password for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (model.LoginResponse, error) {
	var resp model.LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return model.LoginResponse{}, err
	}
	c.setLogin(resp)
	return resp, nil
}

// Challenge requests a login challenge for the given key algorithm.
func (c *Client) Challenge(ctx context.Context, alg string) (string, error) {
	var resp struct {
		Challenge string `json:"challenge"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/challenge", map[string]string{"alg": alg}, &resp); err != nil {
		return "", err
	}
	return resp.Challenge, nil
}

// LoginWithSigner signs a fresh challenge and exchanges it for a token.
func (c *Client) LoginWithSigner(ctx context.Context, s keys.Signer) (model.LoginResponse, error) {
	challenge, err := c.Challenge(ctx, s.Alg())
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("get challenge: %w", err)
	}
	sig, err := s.Sign(challenge)
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("sign challenge: %w", err)
	}
	body := map[string]string{
		"alg":       s.Alg(),
		"publicKey": s.PublicKey(),
		"challenge": challenge,
		"signature": sig,
	}
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", body, &resp); err != nil {
		return model.LoginResponse{}, err
	}
	c.setLogin(resp)
	return resp, nil
}

func (c *Client) setLogin(resp model.LoginResponse) {
	exp, _ := time.Parse(time.RFC3339, resp.ExpiresAt)
	c.SetToken(resp.AccessToken, exp)
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	return user, err
}

// Logout revokes the token server-side. The local token is dropped even if
// the request fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetToken("", time.Time{})
	return err
}

// ---- questions ----

func (c *Client) ListQuestions(ctx context.Context, page, limit int) (model.QuestionPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/questions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp model.QuestionPage
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/questions/%d", id), nil, &q)
	return q, err
}

func (c *Client) CreateQuestion(ctx context.Context, in model.QuestionInput) (model.Question, error) {
	var q model.Question
	err := c.do(ctx, http.MethodPost, "/api/questions", in, &q)
	return q, err
}

func (c *Client) DeleteQuestion(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/questions/%d", id), nil, nil)
}

// ---- answers ----

func (c *Client) ListAnswers(ctx context.Context, questionID int64) ([]model.Answer, error) {
	var resp struct {
		Answers []model.Answer `json:"answers"`
	}
	path := "/api/answers?questionId=" + strconv.FormatInt(questionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Answers, nil
}

func (c *Client) CreateAnswer(ctx context.Context, in model.AnswerInput) (model.Answer, error) {
	var a model.Answer
	err := c.do(ctx, http.MethodPost, "/api/answers", in, &a)
	return a, err
}

// DeleteAnswer returns the id the server echoed back, or 0 if the response
// carried none.
func (c *Client) DeleteAnswer(ctx context.Context, id int64) (int64, error) {
	var resp struct {
		ID *int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/answers/%d", id), nil, &resp); err != nil {
		return 0, err
	}
	if resp.ID == nil {
		return 0, nil
	}
	return *resp.ID, nil
}

func (c *Client) AcceptAnswer(ctx context.Context, id int64) (model.Answer, error) {
	var a model.Answer
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/answers/%d/accept", id), nil, &a)
	return a, err
}

// ---- votes ----

func (c *Client) Vote(ctx context.Context, kind model.Kind, id int64, action string) (model.VoteResult, error) {
	body := map[string]any{"votingId": id, "action": action, "targetType": kind}
	var res model.VoteResult
	err := c.do(ctx, http.MethodPost, "/api/vote", body, &res)
	return res, err
}

func (c *Client) VoteStatus(ctx context.Context, kind model.Kind, id int64) (model.VoteState, error) {
	q := url.Values{}
	q.Set("targetType", string(kind))
	q.Set("votingId", strconv.FormatInt(id, 10))
	var resp struct {
		Status model.VoteState `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/vote/status?"+q.Encode(), nil, &resp); err != nil {
		return model.VoteNone, err
	}
	if !resp.Status.Valid() {
		return model.VoteNone, fmt.Errorf("vote status %d out of range", resp.Status)
	}
	return resp.Status, nil
}

// ---- notifications ----

func (c *Client) Notifications(ctx context.Context, limit int) ([]model.Notification, error) {
	path := "/api/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return c.notifications(ctx, path)
}

func (c *Client) UnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	return c.notifications(ctx, "/api/notifications/unread")
}

func (c *Client) notifications(ctx context.Context, path string) ([]model.Notification, error) {
	var resp struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &resp)
	return resp.Count, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", id), nil, nil)
}

// MarkAllNotificationsRead returns how many notifications the server changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var resp struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPut, "/api/notifications/mark-all-read", nil, &resp)
	return resp.Updated, err
}
