package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// CascadeEvent is a structured suggestion emitted alongside a successful
// status write, indicating that a parent entity now qualifies for its own
// transition. automatic is a hint only — callers decide whether to apply it.
type CascadeEvent struct {
	Event           string
	TargetType      types.EntityType
	TargetID        types.ID
	CurrentStatus   types.Status
	SuggestedStatus types.Status
	Automatic       bool
	Reason          string
	Flow            string
}

// EvaluateTaskCascade suggests a Feature transition to in-development when
// a Task leaves a backlog-like status while its Feature is still in a
// planning-like status.
func (eng *Engine) EvaluateTaskCascade(ctx context.Context, store storage.Storage, task *types.Task, previousStatus types.Status) ([]CascadeEvent, error) {
	if task.FeatureID == nil {
		return nil, nil
	}
	if !isBacklogLike(previousStatus) || isBacklogLike(task.Status) {
		return nil, nil
	}
	featureRes := store.Features().GetByID(ctx, *task.FeatureID)
	if !featureRes.Ok() {
		return nil, nil
	}
	feature := featureRes.Value()
	if !isPlanningLike(feature.Status) {
		return nil, nil
	}

	flow, _ := eng.Snapshot().Features.ActiveFlow(feature.Tags)
	return []CascadeEvent{{
		Event:           "task_started",
		TargetType:      types.EntityFeature,
		TargetID:        feature.ID,
		CurrentStatus:   feature.Status,
		SuggestedStatus: types.Status("in-development"),
		Automatic:       false,
		Reason:          fmt.Sprintf("task %q left its backlog status", task.Title),
		Flow:            flowName(flow),
	}}, nil
}

// EvaluateFeatureTaskCompletionCascade suggests a Feature transition to its
// next flow status once every child Task has reached a terminal status.
func (eng *Engine) EvaluateFeatureTaskCompletionCascade(ctx context.Context, store storage.Storage, feature *types.Feature) ([]CascadeEvent, error) {
	snap := eng.Snapshot()
	tasksRes := store.Tasks().ByFeature(ctx, feature.ID)
	if !tasksRes.Ok() {
		return nil, tasksRes.Err()
	}
	tasks := tasksRes.Value()
	if len(tasks) == 0 {
		return nil, nil
	}
	for _, t := range tasks {
		if !snap.Tasks.TerminalStatuses[t.Status] {
			return nil, nil
		}
	}

	flow, _ := snap.Features.ActiveFlow(feature.Tags)
	suggested := types.Status("testing")
	if flow != nil {
		if pos, ok := flow.Position[feature.Status]; ok && pos+1 < len(flow.Sequence) {
			suggested = flow.Sequence[pos+1]
		}
	}
	return []CascadeEvent{{
		Event:           "tests_passed",
		TargetType:      types.EntityFeature,
		TargetID:        feature.ID,
		CurrentStatus:   feature.Status,
		SuggestedStatus: suggested,
		Automatic:       false,
		Reason:          "all child tasks reached a terminal status",
		Flow:            flowName(flow),
	}}, nil
}

// EvaluateProjectFeatureCompletionCascade suggests a Project transition to
// completed once every child Feature has reached a terminal status.
func (eng *Engine) EvaluateProjectFeatureCompletionCascade(ctx context.Context, store storage.Storage, project *types.Project) ([]CascadeEvent, error) {
	snap := eng.Snapshot()
	featuresRes := store.Features().ByProject(ctx, project.ID)
	if !featuresRes.Ok() {
		return nil, featuresRes.Err()
	}
	features := featuresRes.Value()
	if len(features) == 0 {
		return nil, nil
	}
	for _, f := range features {
		if !snap.Features.TerminalStatuses[f.Status] {
			return nil, nil
		}
	}

	flow, _ := snap.Projects.ActiveFlow(project.Tags)
	return []CascadeEvent{{
		Event:           "all_features_complete",
		TargetType:      types.EntityProject,
		TargetID:        project.ID,
		CurrentStatus:   project.Status,
		SuggestedStatus: types.Status("completed"),
		Automatic:       false,
		Reason:          "all features reached a terminal status",
		Flow:            flowName(flow),
	}}, nil
}

func isBacklogLike(s types.Status) bool {
	switch strings.ToLower(string(s)) {
	case "backlog", "pending":
		return true
	default:
		return false
	}
}

func isPlanningLike(s types.Status) bool {
	switch strings.ToLower(string(s)) {
	case "planning", "draft":
		return true
	default:
		return false
	}
}

func flowName(f *CompiledFlow) string {
	if f == nil {
		return ""
	}
	return f.Name
}
