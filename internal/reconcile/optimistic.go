package reconcile

import (
	"errors"
	"fmt"

	"github.com/alphabot-ai/infobase/internal/entities"
	"github.com/alphabot-ai/infobase/internal/model"
)

var ErrPhase = errors.New("optimistic update used out of order")

type phase int

const (
	phasePending phase = iota
	phaseApplied
	phaseSettled
	phaseRolledBack
)

// Optimistic is one in-flight vote mutation. It is applied once and then
// finished by exactly one of Settle or Rollback.
type Optimistic struct {
	store *entities.Store
	phase phase

	Key     entities.Key
	Gesture model.Gesture
	Prior   model.VoteState
	Next    model.VoteState
	Delta   int

	// applied is the score written by Apply.
	applied int
}

// Begin computes the mutation for gesture g against the store's current vote state.
func Begin(store *entities.Store, key entities.Key, g model.Gesture) *Optimistic {
	prior, _ := store.VoteState(key)
	next, delta := Transition(prior, g)
	return &Optimistic{store: store, Key: key, Gesture: g, Prior: prior, Next: next, Delta: delta}
}

// Apply writes the delta and the new vote state into the store.
func (o *Optimistic) Apply() error {
	if o.phase != phasePending {
		return fmt.Errorf("apply %s: %w", o.Key, ErrPhase)
	}
	score, err := o.store.ApplyVote(o.Key, o.Delta, o.Next)
	if err != nil {
		return err
	}
	o.applied = score
	o.phase = phaseApplied
	return nil
}

// Settle replaces the optimistic values with the server's.
func (o *Optimistic) Settle(votes int, status model.VoteState) error {
	if o.phase != phaseApplied {
		return fmt.Errorf("settle %s: %w", o.Key, ErrPhase)
	}
	o.phase = phaseSettled
	if err := o.store.SetScore(o.Key, votes); err != nil {
		return err
	}
	o.store.SetVoteState(o.Key, status)
	return nil
}

// Rollback restores the pre-gesture score and vote state. If a fetch replaced
// the optimistic score while the vote was in flight, the fetched score stays.
func (o *Optimistic) Rollback() error {
	if o.phase != phaseApplied {
		return fmt.Errorf("rollback %s: %w", o.Key, ErrPhase)
	}
	o.phase = phaseRolledBack
	_, err := o.store.RevertVote(o.Key, o.applied, o.applied-o.Delta, o.Prior)
	return err
}
