package templates

import (
	"context"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// ApplyAtomic wraps Apply in its own storage.RunInTransaction call, for
// callers (the apply_template tool) that are not already inside one.
// Implicit apply-on-create instead calls Apply directly with the
// storage.Transaction that is creating the owning entity.
func ApplyAtomic(ctx context.Context, store storage.Storage, templateIDs []types.ID, targetType types.EntityType, targetID types.ID, mode types.TemplateApplyMode) (*ApplyResult, error) {
	var result *ApplyResult
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		r, err := Apply(ctx, tx, templateIDs, targetType, targetID, mode)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
