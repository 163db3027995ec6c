// Package reconcile applies optimistic mutations to the entity store and
// settles them against the server's answer.
//
// Votes are applied locally before the request is sent and inverted exactly if
// the request fails. Accepting and deleting answers are committed only after
// the server confirms them.
package reconcile

import "github.com/alphabot-ai/infobase/internal/model"

type transitionKey struct {
	from    model.VoteState
	gesture model.Gesture
}

type transitionResult struct {
	to    model.VoteState
	delta int
}

var transitions = map[transitionKey]transitionResult{
	{model.VoteNone, model.ClickUp}:   {model.VoteUp, +1},
	{model.VoteNone, model.ClickDown}: {model.VoteDown, -1},
	{model.VoteUp, model.ClickUp}:     {model.VoteNone, -1},
	{model.VoteUp, model.ClickDown}:   {model.VoteDown, -2},
	{model.VoteDown, model.ClickUp}:   {model.VoteUp, +2},
	{model.VoteDown, model.ClickDown}: {model.VoteNone, +1},
}

// Transition returns the vote state after gesture g and the score delta it implies.
// Unknown states are treated as VoteNone.
func Transition(current model.VoteState, g model.Gesture) (model.VoteState, int) {
	if !current.Valid() {
		current = model.VoteNone
	}
	r, ok := transitions[transitionKey{current, g}]
	if !ok {
		return current, 0
	}
	return r.to, r.delta
}
