package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/types"
	"github.com/taskmcp/taskmcp/internal/workflow"
)

type workflowParams struct {
	ContainerType string `json:"containerType"`
	ID            string `json:"id"`
}

type recommendationDTO struct {
	Kind              string   `json:"kind"`
	CurrentStatus     string   `json:"currentStatus"`
	RecommendedStatus string   `json:"recommendedStatus,omitempty"`
	FlowSequence      []string `json:"flowSequence,omitempty"`
	Position          int      `json:"position,omitempty"`
	MatchedTags       []string `json:"matchedTags,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	Blockers          []string `json:"blockers,omitempty"`
	ActiveFlow        string   `json:"activeFlow,omitempty"`
}

func toRecommendationDTO(r *workflow.Recommendation, flowName string) recommendationDTO {
	seq := make([]string, len(r.FlowSequence))
	for i, s := range r.FlowSequence {
		seq[i] = string(s)
	}
	return recommendationDTO{
		Kind: string(r.Kind), CurrentStatus: string(r.CurrentStatus), RecommendedStatus: string(r.RecommendedStatus),
		FlowSequence: seq, Position: r.Position, MatchedTags: r.MatchedTags, Reason: r.Reason, Blockers: r.Blockers,
		ActiveFlow: flowName,
	}
}

type getNextStatusTool struct{ deps *Deps }

func (t *getNextStatusTool) Name() string { return "get_next_status" }
func (t *getNextStatusTool) Description() string {
	return "Recommend the next status for a task, feature, or project given its active flow and prerequisites."
}

func (t *getNextStatusTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p workflowParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	kind, env := parseContainerType(p.ContainerType)
	if env != nil {
		return env
	}
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}

	var tags types.TagSet
	var current types.Status
	var blockers []string

	switch kind {
	case types.EntityTask:
		res := t.deps.Store.Tasks().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		task := res.Value()
		tags, current = task.Tags, task.Status
		flow, _ := t.deps.Engine.Snapshot().Tasks.ActiveFlow(tags)
		next := peekNextStatus(flow, current)
		if next != "" {
			prereq, err := t.deps.Engine.EvaluateTaskPrerequisites(ctx, t.deps.Store, task, next)
			if err != nil {
				return Fail(DatabaseError, err.Error(), nil)
			}
			blockers = prereq.Blockers
		}
	case types.EntityFeature:
		res := t.deps.Store.Features().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		feat := res.Value()
		tags, current = feat.Tags, feat.Status
		flow, _ := t.deps.Engine.Snapshot().Features.ActiveFlow(tags)
		next := peekNextStatus(flow, current)
		if next != "" {
			prereq, err := t.deps.Engine.EvaluateFeaturePrerequisites(ctx, t.deps.Store, feat, next)
			if err != nil {
				return Fail(DatabaseError, err.Error(), nil)
			}
			blockers = prereq.Blockers
		}
	case types.EntityProject:
		res := t.deps.Store.Projects().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		proj := res.Value()
		tags, current = proj.Tags, proj.Status
	}

	flow, _ := t.deps.Engine.Snapshot().For(kind).ActiveFlow(tags)
	flowName := ""
	if flow != nil {
		flowName = flow.Name
	}
	rec := t.deps.Engine.Recommend(kind, tags, current, blockers)
	return Ok("ok", toRecommendationDTO(rec, flowName))
}

func peekNextStatus(flow *workflow.CompiledFlow, current types.Status) types.Status {
	if flow == nil {
		return ""
	}
	pos, ok := flow.Position[current]
	if !ok || pos+1 >= len(flow.Sequence) {
		return ""
	}
	return flow.Sequence[pos+1]
}

type queryWorkflowStateTool struct{ deps *Deps }

func (t *queryWorkflowStateTool) Name() string { return "query_workflow_state" }
func (t *queryWorkflowStateTool) Description() string {
	return "Return the complete compiled workflow view for a container type: flows, terminal statuses, and validation policy."
}

func (t *queryWorkflowStateTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p workflowParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	kind, env := parseContainerType(p.ContainerType)
	if env != nil {
		return env
	}
	snap := t.deps.Engine.Snapshot()
	entity := snap.For(kind)
	if entity == nil {
		return Fail(ValidationError, fmt.Sprintf("unknown containerType %q", p.ContainerType), nil)
	}

	flows := map[string][]string{}
	for name, flow := range entity.Flows {
		seq := make([]string, len(flow.Sequence))
		for i, s := range flow.Sequence {
			seq[i] = string(s)
		}
		flows[name] = seq
	}
	terminal := make([]string, 0, len(entity.TerminalStatuses))
	for s := range entity.TerminalStatuses {
		terminal = append(terminal, string(s))
	}
	emergency := make([]string, 0, len(entity.EmergencyTransitions))
	for s := range entity.EmergencyTransitions {
		emergency = append(emergency, string(s))
	}

	return Ok("ok", map[string]any{
		"flows":               flows,
		"defaultFlow":         entity.DefaultFlow.Name,
		"terminalStatuses":    terminal,
		"emergencyTransitions": emergency,
		"validation": map[string]bool{
			"enforceSequential":     snap.Validation.EnforceSequential,
			"allowBackward":         snap.Validation.AllowBackward,
			"allowEmergency":        snap.Validation.AllowEmergency,
			"validatePrerequisites": snap.Validation.ValidatePrerequisites,
		},
	})
}
