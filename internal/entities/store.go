// Package entities holds the normalized client-side copy of forum data.
//
// Every record is keyed by id and stored exactly once; views that need ordering
// (question pages, answers under a question, the notification feed) keep ordered
// id lists next to the maps. Reads hand out copies, and all writes go through the
// methods below, each of which runs as a single critical section.
package entities

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/alphabot-ai/infobase/internal/model"
)

var ErrNotFound = errors.New("entity not found")

// Key identifies a votable entity.
type Key struct {
	Kind model.Kind
	ID   int64
}

func QuestionKey(id int64) Key { return Key{Kind: model.KindQuestion, ID: id} }

func AnswerKey(id int64) Key { return Key{Kind: model.KindAnswer, ID: id} }

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

type Store struct {
	mu sync.RWMutex

	questions         table[model.Question]
	answers           table[model.Answer]
	answersByQuestion index
	notifications     table[model.Notification]
	unread            int
	votes             map[Key]model.VoteState
}

func New() *Store {
	return &Store{
		questions:         newTable[model.Question](),
		answers:           newTable[model.Answer](),
		answersByQuestion: make(index),
		notifications:     newTable[model.Notification](),
		votes:             make(map[Key]model.VoteState),
	}
}

// ---- questions ----

// UpsertQuestion inserts q or replaces the record with the same id in place.
func (s *Store) UpsertQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions.upsert(q.ID, cloneQuestion(q))
}

// PrependQuestion puts a newly created question at the head of the list.
func (s *Store) PrependQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions.prepend(q.ID, cloneQuestion(q))
}

// SetQuestions stores a fetched page. The first page replaces the list order;
// later pages extend it.
func (s *Store) SetQuestions(qs []model.Question, appendPage bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !appendPage {
		s.questions.order = nil
	}
	for _, q := range qs {
		s.questions.byID[q.ID] = cloneQuestion(q)
		if !slices.Contains(s.questions.order, q.ID) {
			s.questions.order = append(s.questions.order, q.ID)
		}
	}
}

func (s *Store) Question(id int64) (model.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions.get(id)
	if !ok {
		return model.Question{}, false
	}
	return cloneQuestion(q), true
}

// Questions returns the listed questions in fetch order.
func (s *Store) Questions() []model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Question, 0, len(s.questions.order))
	for _, id := range s.questions.order {
		if q, ok := s.questions.byID[id]; ok {
			out = append(out, cloneQuestion(q))
		}
	}
	return out
}

// RemoveQuestion drops the question together with its answers and vote states.
func (s *Store) RemoveQuestion(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.questions.remove(id)
	for _, aid := range s.answersByQuestion.ids(id) {
		s.answers.remove(aid)
		delete(s.votes, AnswerKey(aid))
	}
	delete(s.answersByQuestion, id)
	delete(s.votes, QuestionKey(id))
	return removed
}

// ---- answers ----

// UpsertAnswer inserts a or replaces it in place, keeping the parent index current.
func (s *Store) UpsertAnswer(a model.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertAnswerLocked(a)
}

func (s *Store) upsertAnswerLocked(a model.Answer) {
	if prev, ok := s.answers.get(a.ID); ok && prev.QuestionID != a.QuestionID {
		s.answersByQuestion.drop(prev.QuestionID, a.ID)
	}
	s.answers.upsert(a.ID, a)
	s.answersByQuestion.add(a.QuestionID, a.ID)
}

// SetAnswers replaces the answer list of a question with a fetch result.
// Answers that were under the question but are missing from the result are dropped.
func (s *Store) SetAnswers(questionID int64, answers []model.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[int64]bool, len(answers))
	for _, a := range answers {
		keep[a.ID] = true
	}
	for _, aid := range s.answersByQuestion.ids(questionID) {
		if !keep[aid] {
			s.answers.remove(aid)
			delete(s.votes, AnswerKey(aid))
		}
	}
	delete(s.answersByQuestion, questionID)
	for _, a := range answers {
		a.QuestionID = questionID
		s.upsertAnswerLocked(a)
	}
}

func (s *Store) Answer(id int64) (model.Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers.get(id)
}

// AnswerIDs returns the answer ids under a question in insertion order.
func (s *Store) AnswerIDs(questionID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answersByQuestion.ids(questionID)
}

func (s *Store) Answers(questionID int64) []model.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.answersByQuestion[questionID]
	out := make([]model.Answer, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.answers.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// RemoveAnswer deletes the answer and scrubs it from its question's index.
func (s *Store) RemoveAnswer(id int64) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers.get(id)
	if !ok {
		return model.Answer{}, false
	}
	s.answers.remove(id)
	s.answersByQuestion.drop(a.QuestionID, id)
	delete(s.votes, AnswerKey(id))
	return a, true
}

// Accept marks answerID accepted and clears the flag on all of its siblings.
func (s *Store) Accept(answerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.answers.get(answerID)
	if !ok {
		return fmt.Errorf("accept answer %d: %w", answerID, ErrNotFound)
	}
	s.answersByQuestion.add(target.QuestionID, answerID)
	for _, id := range s.answersByQuestion[target.QuestionID] {
		sib, ok := s.answers.byID[id]
		if !ok {
			continue
		}
		sib.Accepted = id == answerID
		s.answers.byID[id] = sib
	}
	return nil
}

// ---- scores and vote states ----

func (s *Store) Score(k Key) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreLocked(k)
}

func (s *Store) scoreLocked(k Key) (int, bool) {
	switch k.Kind {
	case model.KindQuestion:
		q, ok := s.questions.byID[k.ID]
		return q.Votes, ok
	case model.KindAnswer:
		a, ok := s.answers.byID[k.ID]
		return a.Votes, ok
	}
	return 0, false
}


func (s *Store) SetScore(k Key, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scoreLocked(k); !ok {
		return fmt.Errorf("set score %s: %w", k, ErrNotFound)
	}
	s.setScoreLocked(k, score)
	return nil
}

func (s *Store) setScoreLocked(k Key, score int) {
	switch k.Kind {
	case model.KindQuestion:
		q := s.questions.byID[k.ID]
		q.Votes = score
		s.questions.byID[k.ID] = q
	case model.KindAnswer:
		a := s.answers.byID[k.ID]
		a.Votes = score
		s.answers.byID[k.ID] = a
	}
}

// VoteState reports the viewer's vote on k and whether it has been loaded.
func (s *Store) VoteState(k Key) (model.VoteState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[k]
	return v, ok
}

func (s *Store) SetVoteState(k Key, v model.VoteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[k] = v
}

// ApplyVote moves the score by delta and sets the vote state in one step.
func (s *Store) ApplyVote(k Key, delta int, state model.VoteState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.scoreLocked(k)
	if !ok {
		return 0, fmt.Errorf("apply vote %s: %w", k, ErrNotFound)
	}
	s.setScoreLocked(k, cur+delta)
	s.votes[k] = state
	return cur + delta, nil
}

// RevertVote undoes an optimistic vote. The score goes back to prior only
// while it still holds the optimistic value applied; a score replaced by a
// fetch in the meantime is kept. The vote state is always restored.
func (s *Store) RevertVote(k Key, applied, prior int, state model.VoteState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.scoreLocked(k)
	if !ok {
		return 0, fmt.Errorf("revert vote %s: %w", k, ErrNotFound)
	}
	if cur == applied {
		s.setScoreLocked(k, prior)
		cur = prior
	}
	s.votes[k] = state
	return cur, nil
}

// ---- notifications ----

// SetNotifications replaces the feed with a fetched list (newest first).
func (s *Store) SetNotifications(list []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications.reset()
	for _, n := range list {
		s.notifications.upsert(n.ID, n)
	}
}

// AddNotification puts a new n at the head of the feed. A known id is
// replaced in place.
func (s *Store) AddNotification(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.notifications.get(n.ID); existed {
		s.notifications.upsert(n.ID, n)
		return
	}
	s.notifications.prepend(n.ID, n)
	if !n.Read {
		s.unread++
	}
}

func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications.list(func(n model.Notification) model.Notification { return n })
}

// MarkNotificationRead flips the read flag and reports whether it changed.
func (s *Store) MarkNotificationRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications.get(id)
	if !ok || n.Read {
		return false
	}
	n.Read = true
	s.notifications.byID[id] = n
	if s.unread > 0 {
		s.unread--
	}
	return true
}

// MarkAllNotificationsRead marks every loaded notification read and zeroes the counter.
func (s *Store) MarkAllNotificationsRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, n := range s.notifications.byID {
		if !n.Read {
			n.Read = true
			s.notifications.byID[id] = n
			changed++
		}
	}
	s.unread = 0
	return changed
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Store) SetUnreadCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = max(0, n)
}

func cloneQuestion(q model.Question) model.Question {
	q.Tags = slices.Clone(q.Tags)
	return q
}
