package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/export"
	"github.com/taskmcp/taskmcp/internal/types"
)

type queryContainerTool struct{ deps *Deps }

func (t *queryContainerTool) Name() string { return "query_container" }
func (t *queryContainerTool) Description() string {
	return "Fetch, search, export, or summarize projects, features, and tasks."
}

func (t *queryContainerTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p containerParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	kind, env := parseContainerType(p.ContainerType)
	if env != nil {
		return env
	}

	switch p.Operation {
	case "get":
		return t.get(ctx, kind, p)
	case "search":
		return t.search(ctx, kind, p)
	case "export":
		return t.export(ctx, kind, p)
	case "overview":
		return t.overview(ctx, kind, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

func (t *queryContainerTool) get(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	switch kind {
	case types.EntityProject:
		res := t.deps.Store.Projects().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("ok", toProjectDTO(res.Value()))
	case types.EntityFeature:
		res := t.deps.Store.Features().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("ok", toFeatureDTO(res.Value()))
	case types.EntityTask:
		res := t.deps.Store.Tasks().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("ok", toTaskDTO(res.Value()))
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

func (t *queryContainerTool) search(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	filter := applyFilterParams(p.Filter)
	switch kind {
	case types.EntityProject:
		res := t.deps.Store.Projects().Find(ctx, filter)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		out := make([]minimalDTO, len(res.Value()))
		for i, v := range res.Value() {
			out[i] = minimalProject(v)
		}
		return Ok("ok", out)
	case types.EntityFeature:
		res := t.deps.Store.Features().Find(ctx, filter)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		out := make([]minimalDTO, len(res.Value()))
		for i, v := range res.Value() {
			out[i] = minimalFeature(v)
		}
		return Ok("ok", out)
	case types.EntityTask:
		res := t.deps.Store.Tasks().Find(ctx, filter)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		out := make([]minimalDTO, len(res.Value()))
		for i, v := range res.Value() {
			out[i] = minimalTask(v)
		}
		return Ok("ok", out)
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

// export renders the entity's current Markdown document on demand, without
// touching the vault on disk — a read operation, so it bypasses the export
// decorator entirely (spec.md §4.6: "Read operations run without the
// export-aware wrappers").
func (t *queryContainerTool) export(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	snap := t.deps.Engine.Snapshot()

	switch kind {
	case types.EntityTask:
		res := t.deps.Store.Tasks().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		task := res.Value()
		sections := t.deps.Store.Sections().List(ctx, types.EntityTask, id)
		front := export.FrontMatter{ID: task.ID.String(), Type: "TASK", Name: task.Title, Status: string(task.Status), Priority: string(task.Priority), Tags: []string(task.Tags)}
		doc, err := export.RenderDocument(front, task.Summary, sections.Value(), "")
		if err != nil {
			return Fail(InternalError, err.Error(), nil)
		}
		return Ok("ok", map[string]string{"markdown": doc})

	case types.EntityFeature:
		res := t.deps.Store.Features().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		feat := res.Value()
		sections := t.deps.Store.Sections().List(ctx, types.EntityFeature, id)
		tasksRes := t.deps.Store.Tasks().ByFeature(ctx, id)
		table := ""
		if tasksRes.Ok() {
			table = export.RenderTaskStatusTable(tasksRes.Value(), snap.Tasks.TerminalStatuses)
		}
		front := export.FrontMatter{ID: feat.ID.String(), Type: "FEATURE", Name: feat.Name, Status: string(feat.Status), Priority: string(feat.Priority), Tags: []string(feat.Tags)}
		doc, err := export.RenderDocument(front, feat.Summary, sections.Value(), table)
		if err != nil {
			return Fail(InternalError, err.Error(), nil)
		}
		return Ok("ok", map[string]string{"markdown": doc})

	case types.EntityProject:
		res := t.deps.Store.Projects().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		proj := res.Value()
		sections := t.deps.Store.Sections().List(ctx, types.EntityProject, id)
		featsRes := t.deps.Store.Features().ByProject(ctx, id)
		table := ""
		if featsRes.Ok() {
			table = export.RenderFeatureStatusTable(featsRes.Value(), snap.Features.TerminalStatuses)
		}
		front := export.FrontMatter{ID: proj.ID.String(), Type: "PROJECT", Name: proj.Name, Status: string(proj.Status), Tags: []string(proj.Tags)}
		doc, err := export.RenderDocument(front, proj.Summary, sections.Value(), table)
		if err != nil {
			return Fail(InternalError, err.Error(), nil)
		}
		return Ok("ok", map[string]string{"markdown": doc})
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

type taskCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

func countTasks(tasks []*types.Task) taskCounts {
	counts := taskCounts{Total: len(tasks), ByStatus: map[string]int{}}
	for _, task := range tasks {
		counts.ByStatus[string(task.Status)]++
	}
	return counts
}

type overviewTaskDTO struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	Complexity int     `json:"complexity"`
	FeatureID  *string `json:"featureId,omitempty"`
}

func toOverviewTaskDTO(t *types.Task) overviewTaskDTO {
	return overviewTaskDTO{ID: t.ID.String(), Title: t.Title, Status: string(t.Status), Priority: string(t.Priority), Complexity: t.Complexity, FeatureID: idPtrString(t.FeatureID)}
}

// overview returns a hierarchical snapshot without Section bodies, per
// spec.md §4.6 and §8 fixture 6's exact token shape for containerType=feature.
func (t *queryContainerTool) overview(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	switch kind {
	case types.EntityFeature:
		res := t.deps.Store.Features().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		feat := res.Value()
		tasksRes := t.deps.Store.Tasks().ByFeature(ctx, id)
		if !tasksRes.Ok() {
			return storeErrorEnvelope(tasksRes.Err())
		}
		tasks := tasksRes.Value()
		overviewTasks := make([]overviewTaskDTO, len(tasks))
		for i, task := range tasks {
			overviewTasks[i] = toOverviewTaskDTO(task)
		}
		return Ok("ok", map[string]any{
			"id": feat.ID.String(), "name": feat.Name, "status": string(feat.Status), "priority": string(feat.Priority),
			"taskCounts": countTasks(tasks), "tasks": overviewTasks,
		})

	case types.EntityProject:
		res := t.deps.Store.Projects().GetByID(ctx, id)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		proj := res.Value()
		featsRes := t.deps.Store.Features().ByProject(ctx, id)
		if !featsRes.Ok() {
			return storeErrorEnvelope(featsRes.Err())
		}
		features := featsRes.Value()
		tasksRes := t.deps.Store.Tasks().ByProject(ctx, id)
		var tasks []*types.Task
		if tasksRes.Ok() {
			tasks = tasksRes.Value()
		}
		featureCounts := map[string]int{}
		minimalFeatures := make([]minimalDTO, len(features))
		for i, f := range features {
			featureCounts[string(f.Status)]++
			minimalFeatures[i] = minimalFeature(f)
		}
		return Ok("ok", map[string]any{
			"id": proj.ID.String(), "name": proj.Name, "status": string(proj.Status),
			"featureCounts": map[string]any{"total": len(features), "byStatus": featureCounts},
			"features":      minimalFeatures,
			"taskCounts":    countTasks(tasks),
		})

	case types.EntityTask:
		// Tasks are leaves; their overview is their full record.
		return t.get(ctx, kind, p)
	}
	return Fail(InternalError, "unreachable containerType", nil)
}
