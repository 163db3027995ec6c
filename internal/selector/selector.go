// Package selector derives views from snapshots of the entity store.
// Every function returns a fresh slice and leaves its input untouched.
package selector

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/alphabot-ai/infobase/internal/model"
)

// SortByScore orders questions by votes, highest first.
func SortByScore(qs []model.Question) []model.Question {
	out := slices.Clone(qs)
	slices.SortStableFunc(out, func(a, b model.Question) int {
		return cmp.Compare(b.Votes, a.Votes)
	})
	return out
}

// SortByAnswers orders questions by answer count, highest first.
func SortByAnswers(qs []model.Question) []model.Question {
	out := slices.Clone(qs)
	slices.SortStableFunc(out, func(a, b model.Question) int {
		return cmp.Compare(b.AnswerCount, a.AnswerCount)
	})
	return out
}

// SortByRecency orders questions by creation time, newest first.
func SortByRecency(qs []model.Question) []model.Question {
	out := slices.Clone(qs)
	slices.SortStableFunc(out, func(a, b model.Question) int {
		return compareTimestamps(b.CreatedAt, a.CreatedAt)
	})
	return out
}

// compareTimestamps compares RFC 3339 strings by instant. Values that do not
// parse fall back to string comparison.
func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}

// FilterByTags keeps questions sharing at least one tag with selected.
// An empty selection keeps everything.
func FilterByTags(qs []model.Question, selected []string) []model.Question {
	if len(selected) == 0 {
		return slices.Clone(qs)
	}
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		for _, tag := range q.Tags {
			if slices.Contains(selected, tag) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// Search keeps questions whose title, description, tags or author name
// contain query, ignoring case. A blank query keeps everything.
func Search(qs []model.Question, query string) []model.Question {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(query))
	if needle == "" {
		return slices.Clone(qs)
	}
	contains := func(s string) bool {
		return strings.Contains(folder.String(s), needle)
	}

	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if contains(q.Title) || contains(q.Description) || contains(q.Author.Name) ||
			slices.ContainsFunc(q.Tags, contains) {
			out = append(out, q)
		}
	}
	return out
}

// Tags returns the distinct tags used across qs in first-seen order.
func Tags(qs []model.Question) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, q := range qs {
		for _, tag := range q.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
