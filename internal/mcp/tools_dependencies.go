package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/deps"
	"github.com/taskmcp/taskmcp/internal/types"
)

type dependencyParams struct {
	Operation string   `json:"operation"`
	ID        string   `json:"id"`
	FromID    string   `json:"fromId"`
	ToID      string   `json:"toId"`
	Type      string   `json:"type"`
	TaskID    string   `json:"taskId"`
	Scope     []string `json:"scope"`
	ProjectID string   `json:"projectId"`
	FeatureID string   `json:"featureId"`
}

type manageDependencyTool struct{ deps *Deps }

func (t *manageDependencyTool) Name() string        { return "manage_dependency" }
func (t *manageDependencyTool) Description() string { return "Create or delete a dependency edge between two tasks." }

func (t *manageDependencyTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p dependencyParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	switch p.Operation {
	case "create":
		return t.create(ctx, p)
	case "delete":
		return t.delete(ctx, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

func (t *manageDependencyTool) create(ctx context.Context, p dependencyParams) *Envelope {
	fromID, env := parseIDField(p.FromID)
	if env != nil {
		return env
	}
	toID, env := parseIDField(p.ToID)
	if env != nil {
		return env
	}
	depType, ok := types.ParseDependencyType(p.Type)
	if !ok {
		return Fail(ValidationError, fmt.Sprintf("invalid dependency type %q", p.Type), nil)
	}
	d := &types.Dependency{ID: types.NewID(), FromID: fromID, ToID: toID, Type: depType}
	if err := d.Validate(); err != nil {
		return Fail(ValidationError, err.Error(), nil)
	}
	res := t.deps.Store.Dependencies().Add(ctx, d)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("dependency created", toDependencyDTO(res.Value()))
}

func (t *manageDependencyTool) delete(ctx context.Context, p dependencyParams) *Envelope {
	if p.ID != "" {
		id, env := parseIDField(p.ID)
		if env != nil {
			return env
		}
		res := t.deps.Store.Dependencies().Remove(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("dependency deleted", map[string]bool{"deleted": res.Value()})
	}
	fromID, env := parseIDField(p.FromID)
	if env != nil {
		return env
	}
	toID, env := parseIDField(p.ToID)
	if env != nil {
		return env
	}
	depType, ok := types.ParseDependencyType(p.Type)
	if !ok {
		return Fail(ValidationError, fmt.Sprintf("invalid dependency type %q", p.Type), nil)
	}
	res := t.deps.Store.Dependencies().RemoveByEdge(ctx, fromID, toID, depType)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("dependency deleted", map[string]bool{"deleted": res.Value()})
}

type queryDependenciesTool struct{ deps *Deps }

func (t *queryDependenciesTool) Name() string { return "query_dependencies" }
func (t *queryDependenciesTool) Description() string {
	return "List incoming/outgoing/related edges, blocker reports, or topological execution batches."
}

func (t *queryDependenciesTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p dependencyParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	switch p.Operation {
	case "incoming":
		return t.edges(ctx, p, t.deps.Store.Dependencies().Incoming)
	case "outgoing":
		return t.edges(ctx, p, t.deps.Store.Dependencies().Outgoing)
	case "related":
		return t.edges(ctx, p, t.deps.Store.Dependencies().Related)
	case "blockers":
		return t.blockers(ctx, p)
	case "batches":
		return t.batches(ctx, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

func (t *queryDependenciesTool) edges(ctx context.Context, p dependencyParams, fn func(context.Context, types.ID) types.Result[[]*types.Dependency]) *Envelope {
	taskID, env := parseIDField(p.TaskID)
	if env != nil {
		return env
	}
	res := fn(ctx, taskID)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]*dependencyDTO, len(res.Value()))
	for i, d := range res.Value() {
		out[i] = toDependencyDTO(d)
	}
	return Ok("ok", out)
}

type blockerDTO struct {
	SourceID     string `json:"sourceId"`
	SourceTitle  string `json:"sourceTitle"`
	SourceStatus string `json:"sourceStatus"`
}

func (t *queryDependenciesTool) blockers(ctx context.Context, p dependencyParams) *Envelope {
	taskID, env := parseIDField(p.TaskID)
	if env != nil {
		return env
	}
	snap := t.deps.Engine.Snapshot()
	blockers, err := deps.BlockerReport(ctx, t.deps.Store, snap.Tasks.TerminalStatuses, taskID)
	if err != nil {
		return Fail(DatabaseError, err.Error(), nil)
	}
	out := make([]blockerDTO, len(blockers))
	for i, b := range blockers {
		out[i] = blockerDTO{SourceID: b.SourceID.String(), SourceTitle: b.SourceTitle, SourceStatus: string(b.SourceStatus)}
	}
	return Ok("ok", out)
}

func (t *queryDependenciesTool) batches(ctx context.Context, p dependencyParams) *Envelope {
	scope, env := t.resolveScope(ctx, p)
	if env != nil {
		return env
	}
	snap := t.deps.Engine.Snapshot()
	batches, err := deps.Batches(ctx, t.deps.Store, snap.Tasks.TerminalStatuses, scope)
	if err != nil {
		return Fail(DatabaseError, err.Error(), nil)
	}
	out := make([][]*taskDTO, len(batches))
	for i, b := range batches {
		layer := make([]*taskDTO, len(b.Tasks))
		for j, task := range b.Tasks {
			layer[j] = toTaskDTO(task)
		}
		out[i] = layer
	}
	return Ok("ok", map[string]any{"batches": out})
}

// resolveScope determines which tasks to compute batches over: an explicit
// id list, else every task in a featureId/projectId, else every task.
func (t *queryDependenciesTool) resolveScope(ctx context.Context, p dependencyParams) ([]*types.Task, *Envelope) {
	if len(p.Scope) > 0 {
		scope := make([]*types.Task, 0, len(p.Scope))
		for _, raw := range p.Scope {
			id, env := parseIDField(raw)
			if env != nil {
				return nil, env
			}
			res := t.deps.Store.Tasks().GetByID(ctx, id)
			if !res.Ok() {
				return nil, storeErrorEnvelope(res.Err())
			}
			scope = append(scope, res.Value())
		}
		return scope, nil
	}
	if p.FeatureID != "" {
		id, env := parseIDField(p.FeatureID)
		if env != nil {
			return nil, env
		}
		res := t.deps.Store.Tasks().ByFeature(ctx, id)
		if !res.Ok() {
			return nil, storeErrorEnvelope(res.Err())
		}
		return res.Value(), nil
	}
	if p.ProjectID != "" {
		id, env := parseIDField(p.ProjectID)
		if env != nil {
			return nil, env
		}
		res := t.deps.Store.Tasks().ByProject(ctx, id)
		if !res.Ok() {
			return nil, storeErrorEnvelope(res.Err())
		}
		return res.Value(), nil
	}
	res := t.deps.Store.Tasks().FindAll(ctx, 0)
	if !res.Ok() {
		return nil, storeErrorEnvelope(res.Err())
	}
	return res.Value(), nil
}
