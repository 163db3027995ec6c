package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, opts...)
}

func TestClientNew(t *testing.T) {
	c := New("https://example.com")
	assert.Equal(t, "https://example.com", c.BaseURL)
	assert.NotNil(t, c.HTTPClient)
	assert.False(t, c.IsAuthenticated())

	c.SetToken("abc", time.Now().Add(-time.Minute))
	assert.False(t, c.IsAuthenticated())
	c.SetToken("abc", time.Time{})
	assert.True(t, c.IsAuthenticated())
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, `{"id":1,"name":"ana"}`)
	}, WithToken("tok"))

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Name)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Len(t, got.Get(RequestIDHeader), 36)
}

func TestAPIErrorMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:        ErrNotFound,
		http.StatusUnauthorized:    ErrUnauthorized,
		http.StatusForbidden:       ErrForbidden,
		http.StatusConflict:        ErrConflict,
		http.StatusTooManyRequests: ErrRateLimited,
	}
	for status, sentinel := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"nope"}`)
		})
		_, err := c.GetQuestion(context.Background(), 1)
		require.ErrorIs(t, err, sentinel)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, status, apiErr.Status)
		assert.Equal(t, "nope", apiErr.Message)
	}
}

func TestDeleteAnswerEcho(t *testing.T) {
	bodies := map[string]int64{
		`{"id":11}`: 11,
		`{}`:        0,
		``:          0,
	}
	for body, want := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/answers/11", r.URL.Path)
			_, _ = io.WriteString(w, body)
		})
		got, err := c.DeleteAnswer(context.Background(), 11)
		require.NoError(t, err)
		assert.Equal(t, want, got, "body %q", body)
	}
}

func TestVoteRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/vote":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(4), body["votingId"])
			assert.Equal(t, "downvote", body["action"])
			assert.Equal(t, "answer", body["targetType"])
			_, _ = io.WriteString(w, `{"votingId":4,"targetType":"answer","votes":-1,"status":-1}`)
		case "/api/vote/status":
			assert.Equal(t, "answer", r.URL.Query().Get("targetType"))
			_, _ = io.WriteString(w, `{"status":-1}`)
		}
	})

	res, err := c.Vote(context.Background(), model.KindAnswer, 4, model.ActionDownvote)
	require.NoError(t, err)
	assert.Equal(t, model.VoteResult{VotingID: 4, TargetType: model.KindAnswer, Votes: -1, Status: model.VoteDown}, res)

	status, err := c.VoteStatus(context.Background(), model.KindAnswer, 4)
	require.NoError(t, err)
	assert.Equal(t, model.VoteDown, status)
}

func TestLoginWithSigner(t *testing.T) {
	signer, err := keys.GenerateSecp256k1()
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/challenge":
			_, _ = io.WriteString(w, `{"challenge":"c-123"}`)
		case "/api/auth/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NoError(t, keys.Verify(body["alg"], body["publicKey"], body["challenge"], body["signature"]))
			_, _ = io.WriteString(w, `{"accessToken":"t-1","expiresAt":"2999-01-01T00:00:00Z","user":{"id":3,"name":"bot"}}`)
		}
	})

	resp, err := c.LoginWithSigner(context.Background(), signer)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.User.ID)
	assert.Equal(t, "t-1", c.Token())
	assert.True(t, c.IsAuthenticated())
}

func TestLogoutDropsTokenOnFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, WithToken("tok"))

	require.Error(t, c.Logout(context.Background()))
	assert.Empty(t, c.Token())
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"count":2}`)
	}, WithRateLimit(0.001, 1))

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.UnreadCount(ctx)
	require.Error(t, err)
}
