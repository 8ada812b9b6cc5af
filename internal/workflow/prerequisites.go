package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// PrerequisiteResult names concrete blockers preventing a transition, per
// spec.md §4.2 rule 7's "prerequisite failures enumerate concrete
// blockers". An empty Blockers slice means the predicate is satisfied.
type PrerequisiteResult struct {
	Blockers []string
}

// Satisfied reports whether no blocker was found.
func (r PrerequisiteResult) Satisfied() bool { return len(r.Blockers) == 0 }

// EvaluateTaskPrerequisites checks the task-completion predicate: a
// populated summary of length 300-500 and no open BLOCKS dependencies on
// incomplete upstream tasks. Only applies when proposed is a completion
// status (e.g. "completed"), not merely any terminal status — cancelling a
// task (an emergency transition) never requires these predicates.
func (eng *Engine) EvaluateTaskPrerequisites(ctx context.Context, store storage.Storage, task *types.Task, proposed types.Status) (PrerequisiteResult, error) {
	snap := eng.Snapshot()
	if !snap.Tasks.CompletionStatuses[proposed] {
		return PrerequisiteResult{}, nil
	}

	var blockers []string
	if err := task.ValidateCompletionSummary(); err != nil {
		blockers = append(blockers, err.Error())
	}

	incoming := store.Dependencies().Incoming(ctx, task.ID)
	if !incoming.Ok() {
		return PrerequisiteResult{}, incoming.Err()
	}
	for _, dep := range incoming.Value() {
		if dep.Type != types.DepBlocks {
			continue
		}
		upstream := store.Tasks().GetByID(ctx, dep.FromID)
		if !upstream.Ok() {
			continue
		}
		if !snap.Tasks.TerminalStatuses[upstream.Value().Status] {
			blockers = append(blockers, fmt.Sprintf("blocked by incomplete task %q (%s)", upstream.Value().Title, upstream.Value().Status))
		}
	}
	return PrerequisiteResult{Blockers: blockers}, nil
}

// EvaluateFeaturePrerequisites checks Feature→in-development (requires >=1
// child Task) and Feature→completed (requires all child Tasks terminal).
// The all-children-terminal predicate only gates completion statuses, not
// cancellation — cancelling a Feature with open children is allowed, the
// same way cancelling a Task never requires a completion summary.
func (eng *Engine) EvaluateFeaturePrerequisites(ctx context.Context, store storage.Storage, feature *types.Feature, proposed types.Status) (PrerequisiteResult, error) {
	snap := eng.Snapshot()

	needsChildren := strings.EqualFold(string(proposed), "in-development")
	needsAllTerminal := snap.Features.CompletionStatuses[proposed]
	if !needsChildren && !needsAllTerminal {
		return PrerequisiteResult{}, nil
	}

	tasksRes := store.Tasks().ByFeature(ctx, feature.ID)
	if !tasksRes.Ok() {
		return PrerequisiteResult{}, tasksRes.Err()
	}
	tasks := tasksRes.Value()

	var blockers []string
	if needsChildren && len(tasks) == 0 {
		blockers = append(blockers, "feature has no child tasks")
	}
	if needsAllTerminal {
		for _, t := range tasks {
			if !snap.Tasks.TerminalStatuses[t.Status] {
				blockers = append(blockers, fmt.Sprintf("task %q is not in a terminal status (%s)", t.Title, t.Status))
			}
		}
	}
	return PrerequisiteResult{Blockers: blockers}, nil
}
