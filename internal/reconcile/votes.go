package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alphabot-ai/infobase/internal/entities"
	"github.com/alphabot-ai/infobase/internal/model"
)

var (
	ErrVoteInFlight    = errors.New("a vote on this entity is still in flight")
	ErrSchemaViolation = errors.New("server response violates the documented schema")
)

// VoteAPI is the part of the remote API the vote reconciler needs.
type VoteAPI interface {
	Vote(ctx context.Context, kind model.Kind, id int64, action string) (model.VoteResult, error)
	VoteStatus(ctx context.Context, kind model.Kind, id int64) (model.VoteState, error)
	GetQuestion(ctx context.Context, id int64) (model.Question, error)
}

// Votes runs the optimistic vote protocol. At most one vote per entity is in
// flight; votes on different entities run independently.
type Votes struct {
	store *entities.Store
	api   VoteAPI
	hooks Hooks

	mu       sync.Mutex
	inflight map[entities.Key]struct{}
	gen      map[entities.Key]uint64
}

func NewVotes(store *entities.Store, api VoteAPI, hooks Hooks) *Votes {
	return &Votes{
		store:    store,
		api:      api,
		hooks:    hooks.withDefaults(),
		inflight: make(map[entities.Key]struct{}),
		gen:      make(map[entities.Key]uint64),
	}
}

// InFlight reports whether a vote on key is awaiting settlement. Vote controls
// for the entity should be disabled while it is true.
func (v *Votes) InFlight(key entities.Key) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.inflight[key]
	return ok
}

func (v *Votes) acquire(key entities.Key) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inflight[key]; busy {
		return false
	}
	v.inflight[key] = struct{}{}
	v.gen[key]++
	return true
}

func (v *Votes) generation(key entities.Key) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen[key]
}

func (v *Votes) release(key entities.Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inflight, key)
}

// Cast applies gesture g to the entity, sends the vote and settles it. On
// failure the store is back at its pre-gesture values when Cast returns.
func (v *Votes) Cast(ctx context.Context, key entities.Key, g model.Gesture) (model.VoteResult, error) {
	kind := string(key.Kind)
	if !v.acquire(key) {
		v.hooks.Metrics.inc(suppressedVec, kind)
		return model.VoteResult{}, fmt.Errorf("%s vote on %s: %w", g, key, ErrVoteInFlight)
	}
	defer v.release(key)

	op := Begin(v.store, key, g)
	if err := op.Apply(); err != nil {
		return model.VoteResult{}, fmt.Errorf("%s vote on %s: %w", g, key, err)
	}
	v.hooks.Metrics.inc(appliedVec, kind)
	v.hooks.Logger.DebugContext(ctx, "vote applied",
		"entity", key.String(), "from", op.Prior.String(), "to", op.Next.String(), "delta", op.Delta)

	res, err := v.api.Vote(ctx, key.Kind, key.ID, g.Action())
	if err == nil && res.VotingID != key.ID {
		err = fmt.Errorf("vote response for %d: %w", res.VotingID, ErrSchemaViolation)
	}
	if err != nil {
		if rbErr := op.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		v.hooks.Metrics.inc(rolledBackVec, kind)
		err = fmt.Errorf("%s vote on %s: %w", g, key, err)
		v.hooks.Reporter.Report(ctx, "vote", err)
		return model.VoteResult{}, err
	}

	if err := op.Settle(res.Votes, res.Status); err != nil {
		return model.VoteResult{}, fmt.Errorf("settle vote on %s: %w", key, err)
	}
	v.hooks.Metrics.inc(settledVec, kind)
	v.refresh(ctx, key)

	score, _ := v.store.Score(key)
	state, _ := v.store.VoteState(key)
	return model.VoteResult{VotingID: key.ID, TargetType: key.Kind, Votes: score, Status: state}, nil
}

// refresh reads the authoritative vote state, and for questions the whole
// record, after a successful vote. The vote already stands, so failures here
// only leave the settled values in place.
func (v *Votes) refresh(ctx context.Context, key entities.Key) {
	status, err := v.api.VoteStatus(ctx, key.Kind, key.ID)
	if err != nil {
		v.hooks.Logger.WarnContext(ctx, "vote status refresh failed", "entity", key.String(), "error", err)
	} else {
		v.store.SetVoteState(key, status)
	}

	if key.Kind != model.KindQuestion {
		return
	}
	q, err := v.api.GetQuestion(ctx, key.ID)
	if err != nil {
		v.hooks.Logger.WarnContext(ctx, "question refresh failed", "entity", key.String(), "error", err)
		return
	}
	v.store.UpsertQuestion(q)
}

// Load performs the fetch-on-mount read of the viewer's vote state. The read
// is dropped if a vote on key started after it was issued.
func (v *Votes) Load(ctx context.Context, key entities.Key) (model.VoteState, error) {
	start := v.generation(key)
	status, err := v.api.VoteStatus(ctx, key.Kind, key.ID)
	if err != nil {
		return model.VoteNone, fmt.Errorf("load vote state for %s: %w", key, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	_, busy := v.inflight[key]
	if busy || v.gen[key] != start {
		current, _ := v.store.VoteState(key)
		return current, nil
	}
	v.store.SetVoteState(key, status)
	return status, nil
}
