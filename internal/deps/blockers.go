package deps

import (
	"context"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// Blocker is one unresolved incoming BLOCKS edge on a task, per spec.md
// §4.4's blocker report.
type Blocker struct {
	SourceID     types.ID
	SourceTitle  string
	SourceStatus types.Status
}

// BlockerReport lists every incoming BLOCKS edge on taskID whose source is
// not in a terminal status.
func BlockerReport(ctx context.Context, store storage.Storage, terminal map[types.Status]bool, taskID types.ID) ([]Blocker, error) {
	incoming := store.Dependencies().Incoming(ctx, taskID)
	if !incoming.Ok() {
		return nil, incoming.Err()
	}

	var blockers []Blocker
	for _, edge := range incoming.Value() {
		if edge.Type != types.DepBlocks {
			continue
		}
		src := store.Tasks().GetByID(ctx, edge.FromID)
		if !src.Ok() {
			continue
		}
		if terminal[src.Value().Status] {
			continue
		}
		blockers = append(blockers, Blocker{
			SourceID:     src.Value().ID,
			SourceTitle:  src.Value().Title,
			SourceStatus: src.Value().Status,
		})
	}
	return blockers, nil
}
