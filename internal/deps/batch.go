// Package deps computes topological execution batches and blocker reports
// over the BLOCKS dependency graph, per spec.md §4.4. The graph itself
// (edge storage, cycle-safe inserts) lives in internal/storage; this
// package only reads edges back and reasons about scopes of tasks.
package deps

import (
	"context"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// Batch is one layer of a topological sort: every task here has every
// BLOCKS predecessor in an earlier batch.
type Batch struct {
	Tasks []*types.Task
}

// Batches computes spec.md §4.4's layered topological sort over scope: a
// Kahn's-algorithm peel of zero-in-degree tasks, one layer at a time.
// Tasks already in a terminal status are excluded from the output (an edge
// from a terminal task counts as already satisfied) and ties within a layer
// are broken by types.SortTasksDeterministic.
func Batches(ctx context.Context, store storage.Storage, terminal map[types.Status]bool, scope []*types.Task) ([]Batch, error) {
	scopeIDs := make([]types.ID, len(scope))
	byID := make(map[types.ID]*types.Task, len(scope))
	for i, t := range scope {
		scopeIDs[i] = t.ID
		byID[t.ID] = t
	}

	edgesRes := store.Dependencies().BlocksEdgesIn(ctx, scopeIDs)
	if !edgesRes.Ok() {
		return nil, edgesRes.Err()
	}

	// predecessors[x] = tasks that must complete before x; successors[x] =
	// tasks unblocked once x completes.
	predecessors := make(map[types.ID]map[types.ID]bool, len(scope))
	successors := make(map[types.ID][]types.ID, len(scope))
	for _, id := range scopeIDs {
		predecessors[id] = map[types.ID]bool{}
	}
	for _, e := range edgesRes.Value() {
		if _, ok := predecessors[e.ToID]; !ok {
			continue
		}
		predecessors[e.ToID][e.FromID] = true
		successors[e.FromID] = append(successors[e.FromID], e.ToID)
	}

	// Active is the subset of scope still awaiting batch assignment: every
	// non-terminal task. Terminal tasks satisfy any predecessor edge
	// immediately, but never occupy a batch slot themselves.
	remaining := map[types.ID]bool{}
	for _, t := range scope {
		if !terminal[t.Status] {
			remaining[t.ID] = true
		}
	}
	for id, preds := range predecessors {
		for pred := range preds {
			if pt, ok := byID[pred]; ok && terminal[pt.Status] {
				delete(preds, pred)
			}
		}
		predecessors[id] = preds
	}

	var batches []Batch
	for len(remaining) > 0 {
		var layer []*types.Task
		for id := range remaining {
			if len(predecessors[id]) == 0 {
				layer = append(layer, byID[id])
			}
		}
		if len(layer) == 0 {
			// A cycle slipped through storage-level cycle checks (e.g. edges
			// added before this scope's tasks existed); surface it rather
			// than spin forever.
			return batches, fmt.Errorf("dependency batch computation stalled: %d tasks remain with unresolved predecessors", len(remaining))
		}
		types.SortTasksDeterministic(layer)
		batches = append(batches, Batch{Tasks: layer})

		for _, t := range layer {
			delete(remaining, t.ID)
			for _, succ := range successors[t.ID] {
				delete(predecessors[succ], t.ID)
			}
		}
	}
	return batches, nil
}
