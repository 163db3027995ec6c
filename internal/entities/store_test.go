package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/infobase/internal/model"
)

func seedQuestion(t *testing.T, st *Store) {
	t.Helper()
	st.SetQuestions([]model.Question{{ID: 1, Title: "How do channels work?", Tags: []string{"go"}, Votes: 2}}, false)
	st.SetAnswers(1, []model.Answer{
		{ID: 10, QuestionID: 1, Body: "first", Votes: 5},
		{ID: 11, QuestionID: 1, Body: "second", Votes: 3},
		{ID: 12, QuestionID: 1, Body: "third", Votes: 0},
	})
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	st := New()
	st.SetQuestions([]model.Question{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}, false)
	st.UpsertQuestion(model.Question{ID: 1, Title: "a2"})

	qs := st.Questions()
	require.Len(t, qs, 2)
	assert.Equal(t, int64(1), qs[0].ID)
	assert.Equal(t, "a2", qs[0].Title)
	assert.Equal(t, int64(2), qs[1].ID)
}

func TestSetQuestionsPages(t *testing.T) {
	st := New()
	st.SetQuestions([]model.Question{{ID: 1}, {ID: 2}}, false)
	st.SetQuestions([]model.Question{{ID: 3}, {ID: 2}}, true)
	assert.Equal(t, []int64{1, 2, 3}, ids(st.Questions()))

	st.SetQuestions([]model.Question{{ID: 3}}, false)
	assert.Equal(t, []int64{3}, ids(st.Questions()))
	_, ok := st.Question(1)
	assert.True(t, ok, "off-page questions stay addressable by id")
}

func TestPrependQuestion(t *testing.T) {
	st := New()
	st.SetQuestions([]model.Question{{ID: 1}, {ID: 2}}, false)
	st.PrependQuestion(model.Question{ID: 3})
	assert.Equal(t, []int64{3, 1, 2}, ids(st.Questions()))
}

func TestReadsAreCopies(t *testing.T) {
	st := New()
	st.UpsertQuestion(model.Question{ID: 1, Tags: []string{"go", "sql"}})
	q, _ := st.Question(1)
	q.Tags[0] = "mutated"
	again, _ := st.Question(1)
	assert.Equal(t, "go", again.Tags[0])
}

func TestAnswerIndexOrder(t *testing.T) {
	st := New()
	seedQuestion(t, st)
	assert.Equal(t, []int64{10, 11, 12}, st.AnswerIDs(1))

	st.UpsertAnswer(model.Answer{ID: 11, QuestionID: 1, Body: "edited"})
	assert.Equal(t, []int64{10, 11, 12}, st.AnswerIDs(1))
	a, ok := st.Answer(11)
	require.True(t, ok)
	assert.Equal(t, "edited", a.Body)
}

func TestSetAnswersDropsStale(t *testing.T) {
	st := New()
	seedQuestion(t, st)
	st.SetVoteState(AnswerKey(12), model.VoteUp)

	st.SetAnswers(1, []model.Answer{{ID: 10, Votes: 5}, {ID: 11, Votes: 3}})
	assert.Equal(t, []int64{10, 11}, st.AnswerIDs(1))
	_, ok := st.Answer(12)
	assert.False(t, ok)
	_, known := st.VoteState(AnswerKey(12))
	assert.False(t, known)
}

func TestRemoveAnswerTouchesOnlyTarget(t *testing.T) {
	st := New()
	seedQuestion(t, st)
	beforeQ, _ := st.Question(1)
	before10, _ := st.Answer(10)
	before12, _ := st.Answer(12)

	removed, ok := st.RemoveAnswer(11)
	require.True(t, ok)
	assert.Equal(t, int64(11), removed.ID)

	_, ok = st.Answer(11)
	assert.False(t, ok)
	assert.Equal(t, []int64{10, 12}, st.AnswerIDs(1))

	afterQ, _ := st.Question(1)
	after10, _ := st.Answer(10)
	after12, _ := st.Answer(12)
	assert.Equal(t, beforeQ, afterQ)
	assert.Equal(t, before10, after10)
	assert.Equal(t, before12, after12)

	_, ok = st.RemoveAnswer(11)
	assert.False(t, ok)
}

func TestRemoveQuestionCascades(t *testing.T) {
	st := New()
	seedQuestion(t, st)
	st.SetVoteState(QuestionKey(1), model.VoteDown)

	require.True(t, st.RemoveQuestion(1))
	assert.Empty(t, st.Questions())
	assert.Empty(t, st.AnswerIDs(1))
	_, ok := st.Answer(10)
	assert.False(t, ok)
	_, known := st.VoteState(QuestionKey(1))
	assert.False(t, known)
}

func TestAcceptIsExclusive(t *testing.T) {
	st := New()
	seedQuestion(t, st)

	for _, target := range []int64{11, 10, 12, 12} {
		require.NoError(t, st.Accept(target))
		accepted := 0
		for _, a := range st.Answers(1) {
			if a.Accepted {
				accepted++
				assert.Equal(t, target, a.ID)
			}
		}
		assert.Equal(t, 1, accepted)
	}

	assert.ErrorIs(t, st.Accept(99), ErrNotFound)
}

func TestScoreMutations(t *testing.T) {
	st := New()
	seedQuestion(t, st)

	score, err := st.ApplyVote(QuestionKey(1), -1, model.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, 1, score)
	state, known := st.VoteState(QuestionKey(1))
	assert.True(t, known)
	assert.Equal(t, model.VoteDown, state)

	require.NoError(t, st.SetScore(AnswerKey(11), -4))
	got, _ := st.Score(AnswerKey(11))
	assert.Equal(t, -4, got)

	_, err = st.ApplyVote(AnswerKey(404), 1, model.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevertVote(t *testing.T) {
	st := New()
	seedQuestion(t, st)
	key := QuestionKey(1)

	applied, err := st.ApplyVote(key, 1, model.VoteUp)
	require.NoError(t, err)
	score, err := st.RevertVote(key, applied, applied-1, model.VoteNone)
	require.NoError(t, err)
	assert.Equal(t, applied-1, score)
	state, _ := st.VoteState(key)
	assert.Equal(t, model.VoteNone, state)

	applied, err = st.ApplyVote(key, 1, model.VoteUp)
	require.NoError(t, err)
	require.NoError(t, st.SetScore(key, 40))
	score, err = st.RevertVote(key, applied, applied-1, model.VoteNone)
	require.NoError(t, err)
	assert.Equal(t, 40, score, "a fetched score is kept")
	state, _ = st.VoteState(key)
	assert.Equal(t, model.VoteNone, state)

	_, err = st.RevertVote(AnswerKey(404), 1, 0, model.VoteNone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifications(t *testing.T) {
	st := New()
	st.SetNotifications([]model.Notification{{ID: 2, Read: false}, {ID: 1, Read: true}})
	st.SetUnreadCount(1)

	st.AddNotification(model.Notification{ID: 3})
	assert.Equal(t, 2, st.UnreadCount())
	list := st.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].ID)

	st.AddNotification(model.Notification{ID: 1, Message: "refetched", Read: true})
	list = st.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "refetched", list[2].Message)
	assert.Equal(t, 2, st.UnreadCount())

	assert.True(t, st.MarkNotificationRead(3))
	assert.False(t, st.MarkNotificationRead(3))
	assert.Equal(t, 1, st.UnreadCount())

	assert.Equal(t, 1, st.MarkAllNotificationsRead())
	assert.Equal(t, 0, st.UnreadCount())

	st.SetUnreadCount(-3)
	assert.Equal(t, 0, st.UnreadCount())
	assert.False(t, st.MarkNotificationRead(42))
}

func ids(qs []model.Question) []int64 {
	out := make([]int64, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}
