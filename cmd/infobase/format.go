package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alphabot-ai/infobase/internal/model"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

// age renders an RFC3339 timestamp relative to now, e.g. "3h ago".
func age(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printQuestions(w io.Writer, qs []model.Question, now time.Time) {
	if len(qs) == 0 {
		fmt.Fprintln(w, "No questions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVOTES\tANSWERS\tTITLE\tTAGS\tACTIVE")
	for _, q := range qs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n",
			q.ID, q.Votes, q.AnswerCount, truncate(q.Title, 60), strings.Join(q.Tags, ","), age(q.LastActivity, now))
	}
	tw.Flush()
}

func printQuestion(w io.Writer, q model.Question, vote model.VoteState, now time.Time) {
	fmt.Fprintf(w, "#%d %s\n", q.ID, q.Title)
	fmt.Fprintf(w, "asked by %s %s, %d votes", q.Author.Name, age(q.CreatedAt, now), q.Votes)
	if vote != model.VoteNone {
		fmt.Fprintf(w, " (you voted %s)", vote)
	}
	fmt.Fprintln(w)
	if len(q.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(q.Tags, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", q.Description)
}

func printAnswers(w io.Writer, as []model.Answer, now time.Time) {
	fmt.Fprintf(w, "\n%d answers\n", len(as))
	for _, a := range as {
		mark := ""
		if a.Accepted {
			mark = " [accepted]"
		}
		fmt.Fprintf(w, "\n--- answer #%d by %s %s, %d votes%s\n%s\n", a.ID, a.Author.Name, age(a.CreatedAt, now), a.Votes, mark, a.Body)
	}
}

func printNotifications(w io.Writer, ns []model.Notification, unread int, now time.Time) {
	fmt.Fprintf(w, "%d unread\n", unread)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range ns {
		flag := " "
		if !n.Read {
			flag = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", flag, n.ID, n.Type, n.Message, age(n.CreatedAt, now))
	}
	tw.Flush()
}
