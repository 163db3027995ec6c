package reconcile

import (
	"context"
	"fmt"

	"github.com/alphabot-ai/infobase/internal/entities"
)

type DeleteAPI interface {
	// DeleteAnswer returns the id echoed back in the response body, or 0 if the
	// body carried none.
	DeleteAnswer(ctx context.Context, id int64) (int64, error)
	DeleteQuestion(ctx context.Context, id int64) error
}

// Deletes removes entities from the store only after the server acknowledged
// the delete.
type Deletes struct {
	store *entities.Store
	api   DeleteAPI
	hooks Hooks
}

func NewDeletes(store *entities.Store, api DeleteAPI, hooks Hooks) *Deletes {
	return &Deletes{store: store, api: api, hooks: hooks.withDefaults()}
}

func (d *Deletes) DeleteAnswer(ctx context.Context, id int64) error {
	deleted, err := d.api.DeleteAnswer(ctx, id)
	if err == nil && deleted != id {
		err = fmt.Errorf("delete response carried id %d: %w", deleted, ErrSchemaViolation)
	}
	if err != nil {
		err = fmt.Errorf("delete answer %d: %w", id, err)
		d.hooks.Reporter.Report(ctx, "delete-answer", err)
		return err
	}
	if _, ok := d.store.RemoveAnswer(deleted); !ok {
		d.hooks.Logger.DebugContext(ctx, "deleted answer was not loaded", "answer", deleted)
	}
	return nil
}

func (d *Deletes) DeleteQuestion(ctx context.Context, id int64) error {
	if err := d.api.DeleteQuestion(ctx, id); err != nil {
		err = fmt.Errorf("delete question %d: %w", id, err)
		d.hooks.Reporter.Report(ctx, "delete-question", err)
		return err
	}
	d.store.RemoveQuestion(id)
	return nil
}
