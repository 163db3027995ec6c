// Package session holds the signed-in user for one running client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphabot-ai/infobase/internal/client"
	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
)

var ErrNotLoggedIn = errors.New("not logged in")

type API interface {
	Login(ctx context.Context, email, password string) (model.LoginResponse, error)
	LoginWithSigner(ctx context.Context, s keys.Signer) (model.LoginResponse, error)
	Me(ctx context.Context) (model.User, error)
	Logout(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Session is the current user. Logged-in is derived from whether a user is
// set; nothing else records it.
type Session struct {
	api    API
	tokens TokenStore
	logger *slog.Logger

	mu   sync.RWMutex
	user *model.User
}

func New(api API, tokens TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{api: api, tokens: tokens, logger: logger}
}

// Init restores the session from a stored token. A token the server rejects
// is discarded and the session starts logged out.
func (s *Session) Init(ctx context.Context) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return nil
	}
	s.api.SetToken(token, time.Time{})
	user, err := s.api.Me(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		s.logger.InfoContext(ctx, "stored token rejected, starting logged out")
		s.api.SetToken("", time.Time{})
		return s.tokens.ClearToken(ctx)
	}
	if err != nil {
		s.api.SetToken("", time.Time{})
		return fmt.Errorf("restore session: %w", err)
	}
	s.set(&user)
	return nil
}

func (s *Session) Login(ctx context.Context, email, password string) (model.User, error) {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return model.User{}, err
	}
	return s.adopt(ctx, resp)
}

func (s *Session) LoginWithSigner(ctx context.Context, signer keys.Signer) (model.User, error) {
	resp, err := s.api.LoginWithSigner(ctx, signer)
	if err != nil {
		return model.User{}, err
	}
	return s.adopt(ctx, resp)
}

func (s *Session) adopt(ctx context.Context, resp model.LoginResponse) (model.User, error) {
	if err := s.tokens.SaveToken(ctx, resp.AccessToken); err != nil {
		return model.User{}, fmt.Errorf("save token: %w", err)
	}
	user := resp.User
	s.set(&user)
	s.logger.DebugContext(ctx, "logged in", "user", user.ID)
	return user, nil
}

// Logout clears the user and the stored token. Local state is cleared even
// when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	apiErr := s.api.Logout(ctx)
	if apiErr != nil {
		s.logger.WarnContext(ctx, "server logout failed", "error", apiErr)
	}
	s.set(nil)
	if err := s.tokens.ClearToken(ctx); err != nil {
		return errors.Join(apiErr, err)
	}
	return apiErr
}

func (s *Session) set(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

func (s *Session) LoggedIn() bool {
	_, ok := s.User()
	return ok
}

func (s *Session) RequireUser() (model.User, error) {
	u, ok := s.User()
	if !ok {
		return model.User{}, ErrNotLoggedIn
	}
	return u, nil
}
