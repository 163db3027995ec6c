package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/infobase/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrDuplicateKey   = errors.New("duplicate key")
)

type QuestionListOpts struct {
	Page  int
	Limit int
}

// VoteFunc computes the next vote state and score delta from the current one.
type VoteFunc func(current model.VoteState) (next model.VoteState, delta int)

// VoteOutcome is the result of one vote applied inside a transaction.
type VoteOutcome struct {
	Prior model.VoteState
	Next  model.VoteState
	Score int
}

type Store interface {
	QuestionStore
	AnswerStore
	VoteStore
	NotificationStore
	AccountStore
	AuthStore
	Close() error
}

type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *model.Question) (int64, error)
	GetQuestion(ctx context.Context, id int64) (model.Question, error)
	ListQuestions(ctx context.Context, opts QuestionListOpts) ([]model.Question, int, error)
	DeleteQuestion(ctx context.Context, id int64) error
}

type AnswerStore interface {
	CreateAnswer(ctx context.Context, a *model.Answer) (int64, error)
	GetAnswer(ctx context.Context, id int64) (model.Answer, error)
	ListAnswers(ctx context.Context, questionID int64) ([]model.Answer, error)
	DeleteAnswer(ctx context.Context, id int64) error
	AcceptAnswer(ctx context.Context, id int64) (model.Answer, error)
}

type VoteStore interface {
	ApplyVote(ctx context.Context, kind model.Kind, targetID, accountID int64, fn VoteFunc) (VoteOutcome, error)
	GetVote(ctx context.Context, kind model.Kind, targetID, accountID int64) (model.VoteState, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account, key *model.AccountKey) (accountID int64, err error)
	GetAccount(ctx context.Context, id int64) (model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	AddAccountKey(ctx context.Context, accountID int64, key *model.AccountKey) (keyID int64, err error)
	FindAccountKey(ctx context.Context, alg, publicKey string) (model.AccountKey, model.Account, error)
}

type AuthStore interface {
	CreateChallenge(ctx context.Context, c model.Challenge) error
	ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error)
	CreateToken(ctx context.Context, token model.Token) error
	GetToken(ctx context.Context, token string) (model.Token, error)
	DeleteToken(ctx context.Context, token string) error
}
