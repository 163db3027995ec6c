package httpapp

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/infobase/internal/auth"
	"github.com/alphabot-ai/infobase/internal/config"
	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/rate"
	"github.com/alphabot-ai/infobase/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
}

func testConfig() config.Config {
	return config.Config{
		RateLimits: config.RateLimits{
			QuestionPerMinute: 1000,
			AnswerPerMinute:   1000,
			VotePerMinute:     1000,
			LoginPerMinute:    1000,
		},
		TokenTTL:     time.Hour,
		ChallengeTTL: time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	dsnName := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnName))
	require.NoError(t, err)
	authSvc := auth.NewService(st, cfg.TokenTTL, cfg.ChallengeTTL).WithCost(bcrypt.MinCost)
	server := NewServer(st, authSvc, rate.NewMemory(), cfg, WithRegistry(prometheus.NewRegistry()))
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = st.Close()
	})
	return &testServer{Server: ts}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// expect asserts the status and decodes the body into out when out is non-nil.
func (ts *testServer) expect(t *testing.T, resp *http.Response, status int, out any) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, status, resp.StatusCode, "body: %s", body)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
}

func (ts *testServer) register(t *testing.T, name string) (model.User, string) {
	t.Helper()
	var user model.User
	ts.expect(t, ts.do(t, http.MethodPost, "/api/accounts", model.RegisterInput{
		Email:    name + "@example.com",
		Password: "password-" + name,
		Name:     name,
	}, ""), http.StatusCreated, &user)

	var login model.LoginResponse
	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    name + "@example.com",
		"password": "password-" + name,
	}, ""), http.StatusOK, &login)
	require.NotEmpty(t, login.AccessToken)
	require.Equal(t, user.ID, login.User.ID)
	return user, login.AccessToken
}

func (ts *testServer) ask(t *testing.T, token, title string) model.Question {
	t.Helper()
	var q model.Question
	ts.expect(t, ts.do(t, http.MethodPost, "/api/questions", model.QuestionInput{
		Title:       title,
		Description: "Some details about the problem.",
		Tags:        []string{" Go ", "go", "SQL"},
	}, token), http.StatusCreated, &q)
	return q
}

func (ts *testServer) notifications(t *testing.T, token string) []model.Notification {
	t.Helper()
	var resp struct {
		Notifications []model.Notification `json:"notifications"`
	}
	ts.expect(t, ts.do(t, http.MethodGet, "/api/notifications", nil, token), http.StatusOK, &resp)
	return resp.Notifications
}

func TestQuestionAnswerFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ana, anaToken := ts.register(t, "ana")
	bob, bobToken := ts.register(t, "bob")

	q := ts.ask(t, anaToken, "  How do I page through results?  ")
	assert.Equal(t, "How do I page through results?", q.Title)
	assert.Equal(t, []string{"go", "sql"}, q.Tags)
	assert.Equal(t, ana.ID, q.Author.ID)

	var page model.QuestionPage
	ts.expect(t, ts.do(t, http.MethodGet, "/api/questions?page=1&limit=10", nil, ""), http.StatusOK, &page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Questions, 1)

	var ans model.Answer
	ts.expect(t, ts.do(t, http.MethodPost, "/api/answers", model.AnswerInput{QuestionID: q.ID, Body: "Use LIMIT and OFFSET."}, bobToken), http.StatusCreated, &ans)
	assert.Equal(t, bob.ID, ans.Author.ID)

	var got model.Question
	ts.expect(t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), nil, ""), http.StatusOK, &got)
	assert.Equal(t, 1, got.AnswerCount)

	var list struct {
		Answers []model.Answer `json:"answers"`
	}
	ts.expect(t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/answers?questionId=%d", q.ID), nil, ""), http.StatusOK, &list)
	require.Len(t, list.Answers, 1)

	notes := ts.notifications(t, anaToken)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyAnswerQuestion, notes[0].Type)
	assert.Equal(t, "bob", notes[0].RelatedUsername)
	assert.Equal(t, q.ID, notes[0].ParentID)

	// Only the question's author may accept.
	ts.expect(t, ts.do(t, http.MethodPut, fmt.Sprintf("/api/answers/%d/accept", ans.ID), nil, bobToken), http.StatusForbidden, nil)
	var accepted model.Answer
	ts.expect(t, ts.do(t, http.MethodPut, fmt.Sprintf("/api/answers/%d/accept", ans.ID), nil, anaToken), http.StatusOK, &accepted)
	assert.True(t, accepted.Accepted)

	bobNotes := ts.notifications(t, bobToken)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, model.NotifyAnswerAccepted, bobNotes[0].Type)

	// Only the answer's author may delete it; the response echoes the id.
	ts.expect(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/answers/%d", ans.ID), nil, anaToken), http.StatusForbidden, nil)
	var echo struct {
		ID int64 `json:"id"`
	}
	ts.expect(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/answers/%d", ans.ID), nil, bobToken), http.StatusOK, &echo)
	assert.Equal(t, ans.ID, echo.ID)

	ts.expect(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/questions/%d", q.ID), nil, bobToken), http.StatusForbidden, nil)
	ts.expect(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/questions/%d", q.ID), nil, anaToken), http.StatusNoContent, nil)
	ts.expect(t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), nil, ""), http.StatusNotFound, nil)
}

func TestVoteToggleFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())
	_, anaToken := ts.register(t, "ana")
	_, bobToken := ts.register(t, "bob")
	q := ts.ask(t, anaToken, "Which index should I add?")

	vote := func(action string) model.VoteResult {
		var res model.VoteResult
		ts.expect(t, ts.do(t, http.MethodPost, "/api/vote", map[string]any{
			"votingId":   q.ID,
			"action":     action,
			"targetType": "question",
		}, bobToken), http.StatusOK, &res)
		return res
	}

	res := vote(model.ActionUpvote)
	assert.Equal(t, model.VoteResult{VotingID: q.ID, TargetType: model.KindQuestion, Votes: 1, Status: model.VoteUp}, res)
	res = vote(model.ActionDownvote)
	assert.Equal(t, -1, res.Votes)
	assert.Equal(t, model.VoteDown, res.Status)
	res = vote(model.ActionDownvote)
	assert.Equal(t, 0, res.Votes)
	assert.Equal(t, model.VoteNone, res.Status)

	var status struct {
		Status model.VoteState `json:"status"`
	}
	ts.expect(t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/vote/status?targetType=question&votingId=%d", q.ID), nil, bobToken), http.StatusOK, &status)
	assert.Equal(t, model.VoteNone, status.Status)

	// Only the first vote, cast from no vote, notifies the author.
	notes := ts.notifications(t, anaToken)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyVoteUp, notes[0].Type)

	ts.expect(t, ts.do(t, http.MethodPost, "/api/vote", map[string]any{
		"votingId": 999, "action": "upvote", "targetType": "answer",
	}, bobToken), http.StatusNotFound, nil)
}

func TestValidation(t *testing.T) {
	ts := newTestServer(t, testConfig())
	_, token := ts.register(t, "ana")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"short title", http.MethodPost, "/api/questions", map[string]any{"title": "short", "description": "d"}},
		{"unknown field", http.MethodPost, "/api/questions", map[string]any{"title": "long enough title", "description": "d", "bogus": 1}},
		{"empty answer", http.MethodPost, "/api/answers", map[string]any{"questionId": 1, "body": ""}},
		{"bad target", http.MethodPost, "/api/vote", map[string]any{"votingId": 1, "action": "upvote", "targetType": "comment"}},
		{"bad action", http.MethodPost, "/api/vote", map[string]any{"votingId": 1, "action": "sideways", "targetType": "question"}},
		{"missing question id", http.MethodGet, "/api/answers", nil},
		{"bad id", http.MethodGet, "/api/questions/abc", nil},
		{"bad alg", http.MethodPost, "/api/auth/challenge", map[string]any{"alg": "rsa"}},
		{"bad email", http.MethodPost, "/api/accounts", map[string]any{"email": "nope", "password": "password1", "name": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts.expect(t, ts.do(t, tc.method, tc.path, tc.body, token), http.StatusBadRequest, nil)
		})
	}
}

func TestAuthRequiredForWrites(t *testing.T) {
	ts := newTestServer(t, testConfig())
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/questions"},
		{http.MethodDelete, "/api/questions/1"},
		{http.MethodPost, "/api/answers"},
		{http.MethodDelete, "/api/answers/1"},
		{http.MethodPut, "/api/answers/1/accept"},
		{http.MethodPost, "/api/vote"},
		{http.MethodGet, "/api/vote/status?targetType=question&votingId=1"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/notifications/unread"},
		{http.MethodGet, "/api/notifications/unread-count"},
		{http.MethodPut, "/api/notifications/1/read"},
		{http.MethodPut, "/api/notifications/mark-all-read"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/auth/logout"},
	}
	for _, route := range routes {
		var body any
		if route.method == http.MethodPost {
			body = map[string]any{}
		}
		resp := ts.do(t, route.method, route.path, body, "")
		ts.expect(t, resp, http.StatusUnauthorized, nil)

		resp = ts.do(t, route.method, route.path, body, "not-a-token")
		ts.expect(t, resp, http.StatusUnauthorized, nil)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.register(t, "ana")
	var errBody map[string]string
	ts.expect(t, ts.do(t, http.MethodPost, "/api/accounts", model.RegisterInput{
		Email: "ANA@example.com", Password: "password1", Name: "other",
	}, ""), http.StatusConflict, &errBody)
	assert.Equal(t, "email already registered", errBody["error"])

	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	}, ""), http.StatusUnauthorized, nil)
}

func TestKeyLoginAndLogout(t *testing.T) {
	ts := newTestServer(t, testConfig())
	signer, err := keys.GenerateSecp256k1()
	require.NoError(t, err)

	ts.expect(t, ts.do(t, http.MethodPost, "/api/accounts", model.RegisterInput{
		Email: "bot@example.com", Password: "password1", Name: "bot",
		Alg: signer.Alg(), PublicKey: signer.PublicKey(),
	}, ""), http.StatusCreated, nil)

	var challenge struct {
		Challenge string `json:"challenge"`
	}
	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/challenge", map[string]string{"alg": signer.Alg()}, ""), http.StatusOK, &challenge)
	sig, err := signer.Sign(challenge.Challenge)
	require.NoError(t, err)

	var login model.LoginResponse
	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/verify", map[string]string{
		"alg":       signer.Alg(),
		"publicKey": signer.PublicKey(),
		"challenge": challenge.Challenge,
		"signature": sig,
	}, ""), http.StatusOK, &login)
	assert.Equal(t, "bot", login.User.Name)
	assert.NotEmpty(t, login.ExpiresAt)

	var me model.User
	ts.expect(t, ts.do(t, http.MethodGet, "/api/auth/me", nil, login.AccessToken), http.StatusOK, &me)
	assert.Equal(t, login.User.ID, me.ID)

	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/logout", nil, login.AccessToken), http.StatusNoContent, nil)
	ts.expect(t, ts.do(t, http.MethodGet, "/api/auth/me", nil, login.AccessToken), http.StatusUnauthorized, nil)
}

func TestNotificationEndpoints(t *testing.T) {
	ts := newTestServer(t, testConfig())
	_, anaToken := ts.register(t, "ana")
	_, bobToken := ts.register(t, "bob")
	q := ts.ask(t, anaToken, "Notifications should pile up")
	for i := 0; i < 3; i++ {
		ts.expect(t, ts.do(t, http.MethodPost, "/api/answers", model.AnswerInput{QuestionID: q.ID, Body: fmt.Sprintf("answer %d", i)}, bobToken), http.StatusCreated, nil)
	}

	var count struct {
		Count int `json:"count"`
	}
	ts.expect(t, ts.do(t, http.MethodGet, "/api/notifications/unread-count", nil, anaToken), http.StatusOK, &count)
	assert.Equal(t, 3, count.Count)

	notes := ts.notifications(t, anaToken)
	require.Len(t, notes, 3)
	ts.expect(t, ts.do(t, http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), nil, bobToken), http.StatusNotFound, nil)
	ts.expect(t, ts.do(t, http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), nil, anaToken), http.StatusOK, nil)

	var unread struct {
		Notifications []model.Notification `json:"notifications"`
	}
	ts.expect(t, ts.do(t, http.MethodGet, "/api/notifications/unread", nil, anaToken), http.StatusOK, &unread)
	assert.Len(t, unread.Notifications, 2)

	var updated struct {
		Updated int `json:"updated"`
	}
	ts.expect(t, ts.do(t, http.MethodPut, "/api/notifications/mark-all-read", nil, anaToken), http.StatusOK, &updated)
	assert.Equal(t, 2, updated.Updated)
	ts.expect(t, ts.do(t, http.MethodGet, "/api/notifications/unread-count", nil, anaToken), http.StatusOK, &count)
	assert.Zero(t, count.Count)
}

func TestRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimits.QuestionPerMinute = 1
	ts := newTestServer(t, cfg)
	_, token := ts.register(t, "ana")

	ts.ask(t, token, "The first question is fine")
	resp := ts.do(t, http.MethodPost, "/api/questions", model.QuestionInput{Title: "The second one is limited", Description: "d"}, token)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	ts.expect(t, resp, http.StatusTooManyRequests, nil)
}

func TestRoutingErrors(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.expect(t, ts.do(t, http.MethodGet, "/api/nope", nil, ""), http.StatusNotFound, nil)
	ts.expect(t, ts.do(t, http.MethodGet, "/elsewhere", nil, ""), http.StatusNotFound, nil)
	ts.expect(t, ts.do(t, http.MethodPatch, "/api/questions", nil, ""), http.StatusMethodNotAllowed, nil)
	ts.expect(t, ts.do(t, http.MethodGet, "/api/auth/login", nil, ""), http.StatusMethodNotAllowed, nil)
	ts.expect(t, ts.do(t, http.MethodPost, "/api/auth/unknown", nil, ""), http.StatusNotFound, nil)
}

func TestRequestIDAndMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/questions", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))
	ts.expect(t, resp, http.StatusOK, nil)

	resp = ts.do(t, http.MethodGet, "/api/questions/7", nil, "")
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
	ts.expect(t, resp, http.StatusNotFound, nil)

	resp = ts.do(t, http.MethodGet, "/metrics", nil, "")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `infobase_http_requests_total{method="GET",route="/api/questions",status="200"} 1`)
	assert.Contains(t, string(body), `route="/api/questions/:id",status="404"`)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/answers/:id/accept", routeLabel("/api/answers/12/accept"))
	assert.Equal(t, "/api/notifications/unread-count", routeLabel("/api/notifications/unread-count"))
	assert.Equal(t, "/", routeLabel("/"))
	assert.Equal(t, []string{"a", "b"}, splitPath("/a/b/"))
}
