// Package forum is the application service behind the CLI. It loads entities
// into the store, routes user actions through the reconcilers and keeps the
// session and recent searches.
package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alphabot-ai/infobase/internal/entities"
	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/reconcile"
	"github.com/alphabot-ai/infobase/internal/selector"
	"github.com/alphabot-ai/infobase/internal/session"
)

var ErrNotAuthor = errors.New("only the author can do that")

var validate = validator.New()

// API is the remote interface the service drives.
type API interface {
	reconcile.VoteAPI
	reconcile.AcceptAPI
	reconcile.DeleteAPI

	ListQuestions(ctx context.Context, page, limit int) (model.QuestionPage, error)
	CreateQuestion(ctx context.Context, in model.QuestionInput) (model.Question, error)
	ListAnswers(ctx context.Context, questionID int64) ([]model.Answer, error)
	CreateAnswer(ctx context.Context, in model.AnswerInput) (model.Answer, error)

	Notifications(ctx context.Context, limit int) ([]model.Notification, error)
	UnreadNotifications(ctx context.Context) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

// Recents stores the recent search list.
type Recents interface {
	Recent(ctx context.Context) ([]string, error)
	PushRecent(ctx context.Context, query string) ([]string, error)
	ClearRecent(ctx context.Context) error
}

type Service struct {
	api     API
	store   *entities.Store
	session *session.Session
	recents Recents
	hooks   reconcile.Hooks

	votes   *reconcile.Votes
	accepts *reconcile.Accepts
	deletes *reconcile.Deletes

	fetches singleflight.Group
}

func New(api API, sess *session.Session, recents Recents, hooks reconcile.Hooks) *Service {
	store := entities.New()
	h := hooks
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Reporter == nil {
		h.Reporter = reconcile.LogReporter{Logger: h.Logger}
	}
	return &Service{
		api:     api,
		store:   store,
		session: sess,
		recents: recents,
		hooks:   h,
		votes:   reconcile.NewVotes(store, api, h),
		accepts: reconcile.NewAccepts(store, api, h),
		deletes: reconcile.NewDeletes(store, api, h),
	}
}

func (s *Service) Store() *entities.Store    { return s.store }
func (s *Service) Session() *session.Session { return s.session }

// ---- loading ----

// LoadQuestions fetches one page. Page 1 replaces the list; later pages append.
func (s *Service) LoadQuestions(ctx context.Context, page, limit int) (model.QuestionPage, error) {
	key := fmt.Sprintf("questions:%d:%d", page, limit)
	v, err, _ := s.fetches.Do(key, func() (any, error) {
		return s.api.ListQuestions(ctx, page, limit)
	})
	if err != nil {
		return model.QuestionPage{}, fmt.Errorf("load questions: %w", err)
	}
	res := v.(model.QuestionPage)
	s.store.SetQuestions(res.Questions, page > 1)
	return res, nil
}

func (s *Service) LoadQuestion(ctx context.Context, id int64) (model.Question, error) {
	v, err, _ := s.fetches.Do(fmt.Sprintf("question:%d", id), func() (any, error) {
		return s.api.GetQuestion(ctx, id)
	})
	if err != nil {
		return model.Question{}, fmt.Errorf("load question %d: %w", id, err)
	}
	q := v.(model.Question)
	s.store.UpsertQuestion(q)
	return q, nil
}

// LoadAnswers replaces the question's answers with the server's list.
func (s *Service) LoadAnswers(ctx context.Context, questionID int64) ([]model.Answer, error) {
	v, err, _ := s.fetches.Do(fmt.Sprintf("answers:%d", questionID), func() (any, error) {
		return s.api.ListAnswers(ctx, questionID)
	})
	if err != nil {
		return nil, fmt.Errorf("load answers for %d: %w", questionID, err)
	}
	s.store.SetAnswers(questionID, v.([]model.Answer))
	return s.store.Answers(questionID), nil
}

// LoadVoteState reads the viewer's vote on key unless it is already known.
func (s *Service) LoadVoteState(ctx context.Context, key entities.Key) (model.VoteState, error) {
	if state, known := s.store.VoteState(key); known {
		return state, nil
	}
	if !s.session.LoggedIn() {
		return model.VoteNone, nil
	}
	return s.votes.Load(ctx, key)
}

// ---- views ----

func (s *Service) Questions(f selector.Filters) []model.Question {
	return f.Apply(s.store.Questions())
}

// Search matches the loaded questions and records the query.
func (s *Service) Search(ctx context.Context, query string) ([]model.Question, error) {
	if s.recents != nil && strings.TrimSpace(query) != "" {
		if _, err := s.recents.PushRecent(ctx, query); err != nil {
			s.hooks.Logger.WarnContext(ctx, "record recent search failed", "error", err)
		}
	}
	return selector.Search(s.store.Questions(), query), nil
}

func (s *Service) RecentSearches(ctx context.Context) ([]string, error) {
	if s.recents == nil {
		return nil, nil
	}
	return s.recents.Recent(ctx)
}

func (s *Service) ClearRecentSearches(ctx context.Context) error {
	if s.recents == nil {
		return nil
	}
	return s.recents.ClearRecent(ctx)
}

// ---- writes ----

func (s *Service) Ask(ctx context.Context, in model.QuestionInput) (model.Question, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return model.Question{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = model.NormalizeTags(in.Tags)
	if err := validate.Struct(in); err != nil {
		return model.Question{}, fmt.Errorf("invalid question: %w", err)
	}
	q, err := s.api.CreateQuestion(ctx, in)
	if err != nil {
		return model.Question{}, fmt.Errorf("ask: %w", err)
	}
	s.store.PrependQuestion(q)
	return q, nil
}

// Answer posts an answer and refreshes the parent question so its answer
// count comes from the server.
func (s *Service) Answer(ctx context.Context, in model.AnswerInput) (model.Answer, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return model.Answer{}, err
	}
	if err := validate.Struct(in); err != nil {
		return model.Answer{}, fmt.Errorf("invalid answer: %w", err)
	}
	a, err := s.api.CreateAnswer(ctx, in)
	if err != nil {
		return model.Answer{}, fmt.Errorf("answer: %w", err)
	}
	s.store.UpsertAnswer(a)
	if _, err := s.LoadQuestion(ctx, in.QuestionID); err != nil {
		s.hooks.Logger.WarnContext(ctx, "refresh question after answer failed", "question", in.QuestionID, "error", err)
	}
	return a, nil
}

// Vote casts gesture g on key. The viewer's current vote is loaded first if
// it is not known yet, since the delta depends on it.
func (s *Service) Vote(ctx context.Context, key entities.Key, g model.Gesture) (model.VoteResult, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return model.VoteResult{}, err
	}
	if _, known := s.store.VoteState(key); !known {
		if _, err := s.votes.Load(ctx, key); err != nil {
			return model.VoteResult{}, err
		}
	}
	return s.votes.Cast(ctx, key, g)
}

// Accept marks answerID accepted. Only the question's author may accept.
func (s *Service) Accept(ctx context.Context, answerID int64) error {
	user, err := s.session.RequireUser()
	if err != nil {
		return err
	}
	ans, ok := s.store.Answer(answerID)
	if !ok {
		return fmt.Errorf("accept answer %d: %w", answerID, entities.ErrNotFound)
	}
	if q, ok := s.store.Question(ans.QuestionID); ok && q.Author.ID != user.ID {
		return fmt.Errorf("accept answer %d: %w", answerID, ErrNotAuthor)
	}
	return s.accepts.Accept(ctx, answerID)
}

func (s *Service) DeleteAnswer(ctx context.Context, id int64) error {
	user, err := s.session.RequireUser()
	if err != nil {
		return err
	}
	if a, ok := s.store.Answer(id); ok && a.Author.ID != user.ID {
		return fmt.Errorf("delete answer %d: %w", id, ErrNotAuthor)
	}
	return s.deletes.DeleteAnswer(ctx, id)
}

func (s *Service) DeleteQuestion(ctx context.Context, id int64) error {
	user, err := s.session.RequireUser()
	if err != nil {
		return err
	}
	if q, ok := s.store.Question(id); ok && q.Author.ID != user.ID {
		return fmt.Errorf("delete question %d: %w", id, ErrNotAuthor)
	}
	return s.deletes.DeleteQuestion(ctx, id)
}

// ---- notifications ----

// LoadNotifications fetches the feed and the unread count in parallel.
func (s *Service) LoadNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return nil, err
	}
	var (
		list   []model.Notification
		unread int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.api.Notifications(gctx, limit)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = s.api.UnreadCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	s.store.SetNotifications(list)
	s.store.SetUnreadCount(unread)
	return s.store.Notifications(), nil
}

// LoadUnreadNotifications fetches the unread feed and the unread count in
// parallel. New notifications are merged at the head of the feed.
func (s *Service) LoadUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return nil, err
	}
	var (
		list   []model.Notification
		unread int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.api.UnreadNotifications(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = s.api.UnreadCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load unread notifications: %w", err)
	}
	for i := len(list) - 1; i >= 0; i-- {
		s.store.AddNotification(list[i])
	}
	s.store.SetUnreadCount(unread)
	return list, nil
}

// MarkRead flips the read flag locally before the request. A failed request
// is reported but not rolled back.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	if _, err := s.session.RequireUser(); err != nil {
		return err
	}
	s.store.MarkNotificationRead(id)
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		err = fmt.Errorf("mark notification %d read: %w", id, err)
		s.hooks.Reporter.Report(ctx, "mark-read", err)
		return err
	}
	return nil
}

// MarkAllRead clears the unread state locally and then on the server, with
// the same no-rollback rule as MarkRead.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	if _, err := s.session.RequireUser(); err != nil {
		return 0, err
	}
	changed := s.store.MarkAllNotificationsRead()
	if _, err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		err = fmt.Errorf("mark all notifications read: %w", err)
		s.hooks.Reporter.Report(ctx, "mark-all-read", err)
		return changed, err
	}
	return changed, nil
}
