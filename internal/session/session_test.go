package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/infobase/internal/client"
	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
)

type fakeAPI struct {
	token     string
	meErr     error
	logoutErr error
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (model.LoginResponse, error) {
	if password != "correct horse" {
		return model.LoginResponse{}, &client.APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	return model.LoginResponse{AccessToken: "tok-1", User: model.User{ID: 1, Name: "ana"}}, nil
}

func (f *fakeAPI) LoginWithSigner(ctx context.Context, s keys.Signer) (model.LoginResponse, error) {
	return model.LoginResponse{AccessToken: "tok-key", User: model.User{ID: 2, Name: "bot"}}, nil
}

func (f *fakeAPI) Me(ctx context.Context) (model.User, error) {
	if f.meErr != nil {
		return model.User{}, f.meErr
	}
	return model.User{ID: 1, Name: "ana"}, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error { return f.logoutErr }

func (f *fakeAPI) SetToken(token string, _ time.Time) { f.token = token }

type memTokens struct{ token string }

func (m *memTokens) Token(context.Context) (string, error)       { return m.token, nil }
func (m *memTokens) SaveToken(_ context.Context, t string) error { m.token = t; return nil }
func (m *memTokens) ClearToken(context.Context) error            { m.token = ""; return nil }

func TestLoginLogout(t *testing.T) {
	api := &fakeAPI{}
	tokens := &memTokens{}
	s := New(api, tokens, nil)
	ctx := context.Background()

	assert.False(t, s.LoggedIn())
	_, err := s.RequireUser()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = s.Login(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, s.LoggedIn())

	user, err := s.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Name)
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "tok-1", tokens.token)

	api.logoutErr = errors.New("offline")
	require.Error(t, s.Logout(ctx))
	assert.False(t, s.LoggedIn())
	assert.Empty(t, tokens.token)
}

func TestLoginWithSignerReplacesUser(t *testing.T) {
	s := New(&fakeAPI{}, &memTokens{}, nil)
	ctx := context.Background()
	_, err := s.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	signer, err := keys.GenerateEd25519()
	require.NoError(t, err)
	_, err = s.LoginWithSigner(ctx, signer)
	require.NoError(t, err)
	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, int64(2), user.ID)
}

func TestInitRestoresSession(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, &memTokens{token: "stored"}, nil)

	require.NoError(t, s.Init(context.Background()))
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "stored", api.token)
}

func TestInitDiscardsRejectedToken(t *testing.T) {
	api := &fakeAPI{meErr: &client.APIError{Status: http.StatusUnauthorized}}
	tokens := &memTokens{token: "stale"}
	s := New(api, tokens, nil)

	require.NoError(t, s.Init(context.Background()))
	assert.False(t, s.LoggedIn())
	assert.Empty(t, tokens.token)
	assert.Empty(t, api.token)
}

func TestInitKeepsTokenOnTransportError(t *testing.T) {
	api := &fakeAPI{meErr: errors.New("connection refused")}
	tokens := &memTokens{token: "stored"}
	s := New(api, tokens, nil)

	require.Error(t, s.Init(context.Background()))
	assert.False(t, s.LoggedIn())
	assert.Equal(t, "stored", tokens.token)
}

func TestInitWithoutToken(t *testing.T) {
	s := New(&fakeAPI{}, &memTokens{}, nil)
	require.NoError(t, s.Init(context.Background()))
	assert.False(t, s.LoggedIn())
}
