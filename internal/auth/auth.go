package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrChallengeMismatch  = errors.New("challenge alg mismatch")
	ErrUnknownKey         = errors.New("key not registered")
	ErrTokenExpired       = errors.New("token expired")
)

type Service struct {
	store        store.Store
	tokenTTL     time.Duration
	challengeTTL time.Duration
	cost         int
}

func NewService(store store.Store, tokenTTL, challengeTTL time.Duration) *Service {
	return &Service{
		store:        store,
		tokenTTL:     tokenTTL,
		challengeTTL: challengeTTL,
		cost:         bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates an account with a password and, optionally, a signing key.
func (s *Service) Register(ctx context.Context, in model.RegisterInput) (model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	account := model.Account{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		Avatar:       in.Avatar,
		Skills:       in.Skills,
		Project:      in.Project,
		CreatedAt:    time.Now(),
	}
	var key *model.AccountKey
	if in.PublicKey != "" {
		pub, err := keys.NormalizePublicKey(in.Alg, in.PublicKey)
		if err != nil {
			return model.Account{}, err
		}
		key = &model.AccountKey{Alg: strings.ToLower(in.Alg), PublicKey: pub, CreatedAt: account.CreatedAt}
	}
	id, err := s.store.CreateAccount(ctx, &account, key)
	if err != nil {
		return model.Account{}, err
	}
	account.ID = id
	return account, nil
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (model.Token, model.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return model.Token{}, model.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Token{}, model.Account{}, err
	}
	if account.PasswordHash == "" {
		return model.Token{}, model.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return model.Token{}, model.Account{}, ErrInvalidCredentials
	}
	token, err := s.issueToken(ctx, account.ID)
	if err != nil {
		return model.Token{}, model.Account{}, err
	}
	return token, account, nil
}

func (s *Service) CreateChallenge(ctx context.Context, alg string) (model.Challenge, error) {
	challenge, err := randomToken(32)
	if err != nil {
		return model.Challenge{}, err
	}
	c := model.Challenge{
		Challenge: challenge,
		Alg:       strings.ToLower(alg),
		ExpiresAt: time.Now().Add(s.challengeTTL),
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// VerifyAndCreateToken consumes the challenge, checks the signature and
// issues a token for the account that owns the key.
func (s *Service) VerifyAndCreateToken(ctx context.Context, alg, publicKey, challenge, signature string) (model.Token, model.Account, error) {
	alg = strings.ToLower(alg)
	c, err := s.store.ConsumeChallenge(ctx, challenge)
	if err != nil {
		return model.Token{}, model.Account{}, err
	}
	if time.Now().After(c.ExpiresAt) {
		return model.Token{}, model.Account{}, ErrChallengeExpired
	}
	if c.Alg != alg {
		return model.Token{}, model.Account{}, ErrChallengeMismatch
	}
	if err := keys.Verify(alg, publicKey, challenge, signature); err != nil {
		return model.Token{}, model.Account{}, err
	}

	pub, err := keys.NormalizePublicKey(alg, publicKey)
	if err != nil {
		return model.Token{}, model.Account{}, err
	}
	_, account, err := s.store.FindAccountKey(ctx, alg, pub)
	if errors.Is(err, store.ErrNotFound) {
		return model.Token{}, model.Account{}, ErrUnknownKey
	}
	if err != nil {
		return model.Token{}, model.Account{}, err
	}

	token, err := s.issueToken(ctx, account.ID)
	if err != nil {
		return model.Token{}, model.Account{}, err
	}
	return token, account, nil
}

// Authenticate resolves a bearer token to its account.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.Account, error) {
	token, err := s.store.GetToken(ctx, bearer)
	if err != nil {
		return model.Account{}, err
	}
	if time.Now().After(token.ExpiresAt) {
		return model.Account{}, ErrTokenExpired
	}
	return s.store.GetAccount(ctx, token.AccountID)
}

func (s *Service) Logout(ctx context.Context, bearer string) error {
	return s.store.DeleteToken(ctx, bearer)
}

func (s *Service) issueToken(ctx context.Context, accountID int64) (model.Token, error) {
	value, err := randomToken(32)
	if err != nil {
		return model.Token{}, err
	}
	token := model.Token{
		Token:     value,
		AccountID: accountID,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return model.Token{}, err
	}
	return token, nil
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
