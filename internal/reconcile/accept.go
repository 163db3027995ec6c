package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alphabot-ai/infobase/internal/entities"
	"github.com/alphabot-ai/infobase/internal/model"
)

var ErrAcceptInFlight = errors.New("an accept on this question is still in flight")

type AcceptAPI interface {
	AcceptAnswer(ctx context.Context, id int64) (model.Answer, error)
}

// Accepts marks an answer accepted once the server has confirmed it.
type Accepts struct {
	store *entities.Store
	api   AcceptAPI
	hooks Hooks

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewAccepts(store *entities.Store, api AcceptAPI, hooks Hooks) *Accepts {
	return &Accepts{store: store, api: api, hooks: hooks.withDefaults(), inflight: make(map[int64]struct{})}
}

// Accept confirms answerID with the server and then flips the accepted flag
// across its siblings. An answer that is already accepted is left as it is.
func (a *Accepts) Accept(ctx context.Context, answerID int64) error {
	ans, ok := a.store.Answer(answerID)
	if !ok {
		return fmt.Errorf("accept answer %d: %w", answerID, entities.ErrNotFound)
	}
	if ans.Accepted {
		return nil
	}

	a.mu.Lock()
	if _, busy := a.inflight[ans.QuestionID]; busy {
		a.mu.Unlock()
		return fmt.Errorf("accept answer %d: %w", answerID, ErrAcceptInFlight)
	}
	a.inflight[ans.QuestionID] = struct{}{}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.inflight, ans.QuestionID)
		a.mu.Unlock()
	}()

	res, err := a.api.AcceptAnswer(ctx, answerID)
	if err == nil && res.ID != answerID {
		err = fmt.Errorf("accept response for %d: %w", res.ID, ErrSchemaViolation)
	}
	if err != nil {
		err = fmt.Errorf("accept answer %d: %w", answerID, err)
		a.hooks.Reporter.Report(ctx, "accept", err)
		return err
	}
	if err := a.store.Accept(answerID); err != nil {
		return err
	}
	a.hooks.Logger.DebugContext(ctx, "answer accepted", "answer", answerID, "question", ans.QuestionID)
	return nil
}
