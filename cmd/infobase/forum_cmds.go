package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/infobase/internal/entities"
	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/selector"
)

func runQuestions(cmd *cobra.Command, a *app, _ []string) error {
	sortBy, err := selector.ParseSortOption(listSort)
	if err != nil {
		return err
	}
	page, err := a.forum.LoadQuestions(cmd.Context(), listPage, listLimit)
	if err != nil {
		return err
	}
	filters := selector.Filters{SortBy: sortBy}
	for _, tag := range model.NormalizeTags(listTags) {
		filters = filters.ToggleTag(tag)
	}
	out := cmd.OutOrStdout()
	printQuestions(out, a.forum.Questions(filters), time.Now())
	fmt.Fprintf(out, "\npage %d, %d questions total, sorted by %s\n", page.Page, page.Total, sortBy)
	if tags := selector.Tags(a.forum.Store().Questions()); len(tags) > 0 {
		fmt.Fprintf(out, "tags: %s\n", strings.Join(tags, ", "))
	}
	return nil
}

func runShow(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0], "question")
	if err != nil {
		return err
	}
	order := selector.AnswerOrder(answerSort)
	switch order {
	case selector.ByVotes, selector.ByNewest, selector.ByOldest:
	default:
		return fmt.Errorf("unknown answer order %q", answerSort)
	}

	q, err := a.forum.LoadQuestion(ctx, id)
	if err != nil {
		return err
	}
	answers, err := a.forum.LoadAnswers(ctx, id)
	if err != nil {
		return err
	}
	vote, err := a.forum.LoadVoteState(ctx, entities.QuestionKey(id))
	if err != nil {
		a.logger.WarnContext(ctx, "load vote state failed", "question", id, "error", err)
	}

	now := time.Now()
	out := cmd.OutOrStdout()
	printQuestion(out, q, vote, now)
	printAnswers(out, selector.SortAnswers(answers, order), now)
	return nil
}

func runSearch(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	if _, err := a.forum.LoadQuestions(ctx, 1, searchLimit); err != nil {
		return err
	}
	results, err := a.forum.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printQuestions(cmd.OutOrStdout(), results, time.Now())
	return nil
}

func runRecent(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if clearRecent {
		if err := a.forum.ClearRecentSearches(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Recent searches cleared")
		return nil
	}
	recent, err := a.forum.RecentSearches(ctx)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Fprintln(out, "No recent searches.")
	}
	for _, q := range recent {
		fmt.Fprintln(out, q)
	}
	return nil
}

func runAsk(cmd *cobra.Command, a *app, args []string) error {
	q, err := a.forum.Ask(cmd.Context(), model.QuestionInput{
		Title:       args[0],
		Description: args[1],
		Tags:        askTags,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Asked #%d %s\n", q.ID, q.Title)
	return nil
}

func runAnswer(cmd *cobra.Command, a *app, args []string) error {
	qid, err := parseID(args[0], "question")
	if err != nil {
		return err
	}
	ans, err := a.forum.Answer(cmd.Context(), model.AnswerInput{QuestionID: qid, Body: args[1]})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Posted answer #%d to question #%d\n", ans.ID, qid)
	if q, ok := a.forum.Store().Question(qid); ok {
		fmt.Fprintf(out, "question now has %d answers\n", q.AnswerCount)
	}
	return nil
}

func runVote(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0], "target")
	if err != nil {
		return err
	}
	key := entities.QuestionKey(id)
	if voteAnswer {
		if voteOnQID <= 0 {
			return errors.New("--question is required when voting on an answer")
		}
		if _, err := a.forum.LoadAnswers(ctx, voteOnQID); err != nil {
			return err
		}
		key = entities.AnswerKey(id)
	} else if _, err := a.forum.LoadQuestion(ctx, id); err != nil {
		return err
	}

	gesture := model.ClickUp
	if voteDown {
		gesture = model.ClickDown
	}
	res, err := a.forum.Vote(ctx, key, gesture)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d votes, your vote: %s\n", key, res.Votes, res.Status)
	return nil
}

// loadAnswer makes the answer and its question known to the local store.
func loadAnswer(cmd *cobra.Command, a *app, args []string) (qid, aid int64, err error) {
	if qid, err = parseID(args[0], "question"); err != nil {
		return 0, 0, err
	}
	if aid, err = parseID(args[1], "answer"); err != nil {
		return 0, 0, err
	}
	ctx := cmd.Context()
	if _, err = a.forum.LoadQuestion(ctx, qid); err != nil {
		return 0, 0, err
	}
	if _, err = a.forum.LoadAnswers(ctx, qid); err != nil {
		return 0, 0, err
	}
	if ans, ok := a.forum.Store().Answer(aid); !ok || ans.QuestionID != qid {
		return 0, 0, fmt.Errorf("answer #%d not found on question #%d", aid, qid)
	}
	return qid, aid, nil
}

func runAccept(cmd *cobra.Command, a *app, args []string) error {
	qid, aid, err := loadAnswer(cmd, a, args)
	if err != nil {
		return err
	}
	if err := a.forum.Accept(cmd.Context(), aid); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Accepted answer #%d on question #%d\n", aid, qid)
	return nil
}

func runDeleteAnswer(cmd *cobra.Command, a *app, args []string) error {
	qid, aid, err := loadAnswer(cmd, a, args)
	if err != nil {
		return err
	}
	if err := a.forum.DeleteAnswer(cmd.Context(), aid); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted answer #%d from question #%d\n", aid, qid)
	return nil
}

func runDeleteQuestion(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0], "question")
	if err != nil {
		return err
	}
	if _, err := a.forum.LoadQuestion(ctx, id); err != nil {
		return err
	}
	if err := a.forum.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted question #%d\n", id)
	return nil
}

func runNotifications(cmd *cobra.Command, a *app, _ []string) error {
	load := func(ctx context.Context) ([]model.Notification, error) {
		return a.forum.LoadNotifications(ctx, notifyLimit)
	}
	if notifyUnread {
		load = a.forum.LoadUnreadNotifications
	}
	list, err := load(cmd.Context())
	if err != nil {
		return err
	}
	printNotifications(cmd.OutOrStdout(), list, a.forum.Store().UnreadCount(), time.Now())
	return nil
}

func runRead(cmd *cobra.Command, a *app, args []string) error {
	id, err := parseID(args[0], "notification")
	if err != nil {
		return err
	}
	if err := a.forum.MarkRead(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked notification #%d read\n", id)
	return nil
}

func runReadAll(cmd *cobra.Command, a *app, _ []string) error {
	// Load first so the local unread count reflects the server.
	if _, err := a.forum.LoadNotifications(cmd.Context(), notifyLimit); err != nil {
		return err
	}
	n, err := a.forum.MarkAllRead(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notifications read\n", n)
	return nil
}
