package selector

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/alphabot-ai/infobase/internal/model"
)

type SortOption string

const (
	MostUpvoted  SortOption = "Most Upvoted"
	MostRecent   SortOption = "Most Recent"
	MostAnswered SortOption = "Most Answered"
)

var sortOptions = map[string]SortOption{
	"votes":   MostUpvoted,
	"recent":  MostRecent,
	"answers": MostAnswered,
}

// ParseSortOption accepts either the display name or the short flag form
// (votes, recent, answers).
func ParseSortOption(s string) (SortOption, error) {
	switch opt := SortOption(s); opt {
	case MostUpvoted, MostRecent, MostAnswered:
		return opt, nil
	}
	if opt, ok := sortOptions[s]; ok {
		return opt, nil
	}
	return "", fmt.Errorf("unknown sort option %q", s)
}

// Filters is the question list's view state.
type Filters struct {
	SortBy       SortOption
	SelectedTags []string
}

func DefaultFilters() Filters {
	return Filters{SortBy: MostUpvoted}
}

// ToggleTag adds tag to the selection, or removes it if already selected.
func (f Filters) ToggleTag(tag string) Filters {
	if i := slices.Index(f.SelectedTags, tag); i >= 0 {
		f.SelectedTags = slices.Delete(slices.Clone(f.SelectedTags), i, i+1)
		return f
	}
	f.SelectedTags = append(slices.Clone(f.SelectedTags), tag)
	return f
}

func (f Filters) Clear() Filters {
	return DefaultFilters()
}

// Apply sorts and then tag-filters qs.
func (f Filters) Apply(qs []model.Question) []model.Question {
	var sorted []model.Question
	switch f.SortBy {
	case MostRecent:
		sorted = SortByRecency(qs)
	case MostAnswered:
		sorted = SortByAnswers(qs)
	default:
		sorted = SortByScore(qs)
	}
	return FilterByTags(sorted, f.SelectedTags)
}

type AnswerOrder string

const (
	ByVotes  AnswerOrder = "votes"
	ByNewest AnswerOrder = "newest"
	ByOldest AnswerOrder = "oldest"
)

// SortAnswers orders answers for display. ByVotes puts the accepted answer first.
func SortAnswers(as []model.Answer, order AnswerOrder) []model.Answer {
	out := slices.Clone(as)
	switch order {
	case ByNewest:
		slices.SortStableFunc(out, func(a, b model.Answer) int { return compareTimestamps(b.CreatedAt, a.CreatedAt) })
	case ByOldest:
		slices.SortStableFunc(out, func(a, b model.Answer) int { return compareTimestamps(a.CreatedAt, b.CreatedAt) })
	default:
		slices.SortStableFunc(out, func(a, b model.Answer) int {
			if a.Accepted != b.Accepted {
				if a.Accepted {
					return -1
				}
				return 1
			}
			return cmp.Compare(b.Votes, a.Votes)
		})
	}
	return out
}
