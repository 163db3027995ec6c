package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of entity a vote targets.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
)

func (k Kind) Valid() bool {
	return k == KindQuestion || k == KindAnswer
}

// VoteState is a viewer's vote on one entity. The numeric values are the wire encoding.
type VoteState int

const (
	VoteNone VoteState = 0
	VoteUp   VoteState = 1
	VoteDown VoteState = -1
)

func (v VoteState) String() string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return "none"
	}
}

func (v VoteState) Valid() bool {
	return v == VoteNone || v == VoteUp || v == VoteDown
}

// Gesture is a click on one of the two vote controls.
type Gesture int

const (
	ClickUp Gesture = iota + 1
	ClickDown
)

const (
	ActionUpvote   = "upvote"
	ActionDownvote = "downvote"
)

// Action returns the wire action for the gesture.
func (g Gesture) Action() string {
	if g == ClickDown {
		return ActionDownvote
	}
	return ActionUpvote
}

func (g Gesture) String() string {
	if g == ClickDown {
		return "down"
	}
	return "up"
}

// ParseAction maps a wire action to a gesture.
func ParseAction(action string) (Gesture, error) {
	switch action {
	case ActionUpvote:
		return ClickUp, nil
	case ActionDownvote:
		return ClickDown, nil
	}
	return 0, fmt.Errorf("unknown vote action %q", action)
}

type Author struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Question struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Votes        int      `json:"votes"`
	AnswerCount  int      `json:"answerCount"`
	Author       Author   `json:"author"`
	CreatedAt    string   `json:"createdAt"`
	LastActivity string   `json:"lastActivity"`
}

type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Body       string `json:"body"`
	Votes      int    `json:"votes"`
	Accepted   bool   `json:"accepted"`
	Author     Author `json:"author"`
	CreatedAt  string `json:"createdAt"`
}

type NotificationType string

const (
	NotifyAnswerQuestion  NotificationType = "ANSWER_QUESTION"
	NotifyCommentQuestion NotificationType = "COMMENT_QUESTION"
	NotifyCommentAnswer   NotificationType = "COMMENT_ANSWER"
	NotifyVoteUp          NotificationType = "VOTE_UP"
	NotifyVoteDown        NotificationType = "VOTE_DOWN"
	NotifyAnswerAccepted  NotificationType = "ANSWER_ACCEPTED"
	NotifyBadgeAwarded    NotificationType = "BADGE_AWARDED"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyAnswerQuestion, NotifyCommentQuestion, NotifyCommentAnswer,
		NotifyVoteUp, NotifyVoteDown, NotifyAnswerAccepted, NotifyBadgeAwarded:
		return true
	}
	return false
}

type Notification struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"userId"`
	RelatedUserID   int64            `json:"relatedUserId"`
	RelatedUsername string           `json:"relatedUsername"`
	ParentID        int64            `json:"parentId"`
	ParentTitle     string           `json:"parentTitle"`
	Type            NotificationType `json:"notificationType"`
	Message         string           `json:"message"`
	Read            bool             `json:"read"`
	CreatedAt       string           `json:"createdAt"`
}

type User struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Avatar  string   `json:"avatar"`
	Skills  []string `json:"skills"`
	Project string   `json:"project"`
}

// AuthorRef is the denormalized snapshot stored on questions and answers.
func (u User) AuthorRef() Author {
	return Author{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	User        User   `json:"user"`
}

type VoteResult struct {
	VotingID   int64     `json:"votingId"`
	TargetType Kind      `json:"targetType"`
	Votes      int       `json:"votes"`
	Status     VoteState `json:"status"`
}

type QuestionPage struct {
	Questions []Question `json:"questions"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Total     int        `json:"total"`
}

type QuestionInput struct {
	Title       string   `json:"title" validate:"required,min=8,max=180"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags" validate:"max=5,dive,required,max=32"`
}

// NormalizeTags lower-cases and trims tags, dropping blanks and duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type AnswerInput struct {
	QuestionID int64  `json:"questionId" validate:"required,gt=0"`
	Body       string `json:"body" validate:"required"`
}

type RegisterInput struct {
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	Name      string   `json:"name" validate:"required,max=64"`
	Avatar    string   `json:"avatar,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Project   string   `json:"project,omitempty"`
	Alg       string   `json:"alg,omitempty"`
	PublicKey string   `json:"publicKey,omitempty"`
}

// Server-side records.

type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Avatar       string
	Skills       []string
	Project      string
	CreatedAt    time.Time
}

func (a Account) User() User {
	return User{ID: a.ID, Name: a.Name, Avatar: a.Avatar, Skills: a.Skills, Project: a.Project}
}

type AccountKey struct {
	ID        int64
	AccountID int64
	Alg       string
	PublicKey string
	CreatedAt time.Time
}

type Vote struct {
	Kind      Kind
	TargetID  int64
	AccountID int64
	Value     VoteState
	CreatedAt time.Time
}

type Challenge struct {
	Challenge string
	Alg       string
	ExpiresAt time.Time
}

type Token struct {
	Token     string
	AccountID int64
	ExpiresAt time.Time
}

// Timestamp formats t the way every API timestamp is encoded.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
