package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/export"
	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/templates"
	"github.com/taskmcp/taskmcp/internal/types"
	"github.com/taskmcp/taskmcp/internal/workflow"
)

// containerParams is the superset of fields any manage_container/
// query_container call may carry; unused fields for a given
// operation/containerType combination are simply ignored.
type containerParams struct {
	Operation     string              `json:"operation"`
	ContainerType string              `json:"containerType"`
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Title         string              `json:"title"`
	Summary       string              `json:"summary"`
	Description   string              `json:"description"`
	Status        string              `json:"status"`
	Priority      string              `json:"priority"`
	Complexity    int                 `json:"complexity"`
	Tags          []string            `json:"tags"`
	ProjectID     string              `json:"projectId"`
	FeatureID     string              `json:"featureId"`
	TemplateIds   []string            `json:"templateIds"`
	Filter        filterParams        `json:"filter"`
	Items         []containerBulkItem `json:"items"`
}

type containerBulkItem struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Priority   string   `json:"priority"`
	Tags       []string `json:"tags"`
	Complexity int      `json:"complexity"`
}

type manageContainerTool struct{ deps *Deps }

func (t *manageContainerTool) Name() string { return "manage_container" }
func (t *manageContainerTool) Description() string {
	return "Create, update, delete, or transition the status of projects, features, and tasks."
}

func (t *manageContainerTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p containerParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	kind, env := parseContainerType(p.ContainerType)
	if env != nil {
		return env
	}

	switch p.Operation {
	case "create":
		return t.create(ctx, kind, p)
	case "update":
		return t.update(ctx, kind, p)
	case "delete":
		return t.delete(ctx, kind, p)
	case "setStatus":
		return t.setStatus(ctx, kind, p)
	case "bulkUpdate":
		return t.bulkUpdate(ctx, kind, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

// create builds the entity and, when templateIds is non-empty, applies
// those templates to it inside the same transaction (spec.md §4.3: "can
// also be applied implicitly on entity creation... this is exactly apply
// run inside the same transaction that creates the entity").
func (t *manageContainerTool) create(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	templateIDs, env := parseIDFieldList(p.TemplateIds)
	if env != nil {
		return env
	}

	switch kind {
	case types.EntityProject:
		proj := &types.Project{
			ID: types.NewID(), Name: p.Name, Summary: p.Summary, Description: p.Description,
			Status: defaultedStatus(p.Status, "backlog"), Tags: types.TagSet(p.Tags),
		}
		if err := proj.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		var applied *templates.ApplyResult
		if err := t.deps.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			res := tx.Projects().Create(ctx, proj)
			if !res.Ok() {
				return res.Err()
			}
			proj = res.Value()
			return t.applyCreateTemplates(ctx, tx, templateIDs, types.EntityProject, proj.ID, &applied)
		}); err != nil {
			return txErrorEnvelope(err)
		}
		t.enqueueCreateExport(types.EntityProject, proj.ID, nil, nil)
		return Ok("project created", createResult(toProjectDTO(proj), applied))

	case types.EntityFeature:
		priority, env := parsePriorityField(p.Priority)
		if env != nil {
			return env
		}
		projectID, env := parseOptionalIDField(p.ProjectID)
		if env != nil {
			return env
		}
		feat := &types.Feature{
			ID: types.NewID(), Name: p.Name, Summary: p.Summary, Description: p.Description,
			Status: defaultedStatus(p.Status, "planning"), Priority: priority, Tags: types.TagSet(p.Tags),
			ProjectID: projectID,
		}
		if err := feat.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		var applied *templates.ApplyResult
		if err := t.deps.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			res := tx.Features().Create(ctx, feat)
			if !res.Ok() {
				return res.Err()
			}
			feat = res.Value()
			return t.applyCreateTemplates(ctx, tx, templateIDs, types.EntityFeature, feat.ID, &applied)
		}); err != nil {
			return txErrorEnvelope(err)
		}
		t.enqueueCreateExport(types.EntityFeature, feat.ID, nil, feat.ProjectID)
		return Ok("feature created", createResult(toFeatureDTO(feat), applied))

	case types.EntityTask:
		priority, env := parsePriorityField(p.Priority)
		if env != nil {
			return env
		}
		featureID, env := parseOptionalIDField(p.FeatureID)
		if env != nil {
			return env
		}
		projectID, env := parseOptionalIDField(p.ProjectID)
		if env != nil {
			return env
		}
		complexity := p.Complexity
		if complexity == 0 {
			complexity = 1
		}
		task := &types.Task{
			ID: types.NewID(), Title: p.Title, Summary: p.Summary, Description: p.Description,
			Status: defaultedStatus(p.Status, "backlog"), Priority: priority, Complexity: complexity,
			Tags: types.TagSet(p.Tags), FeatureID: featureID, ProjectID: projectID,
		}
		if err := task.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		var applied *templates.ApplyResult
		if err := t.deps.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			res := tx.Tasks().Create(ctx, task)
			if !res.Ok() {
				return res.Err()
			}
			task = res.Value()
			return t.applyCreateTemplates(ctx, tx, templateIDs, types.EntityTask, task.ID, &applied)
		}); err != nil {
			return txErrorEnvelope(err)
		}
		t.enqueueCreateExport(types.EntityTask, task.ID, task.FeatureID, task.ProjectID)
		return Ok("task created", createResult(toTaskDTO(task), applied))
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

// applyCreateTemplates runs templates.Apply inside the create transaction
// when templateIDs is non-empty, defaulting to skip-duplicate since a
// freshly created entity never already carries a Section.
func (t *manageContainerTool) applyCreateTemplates(ctx context.Context, tx storage.Transaction, templateIDs []types.ID, kind types.EntityType, id types.ID, applied **templates.ApplyResult) error {
	if len(templateIDs) == 0 {
		return nil
	}
	result, err := templates.Apply(ctx, tx, templateIDs, kind, id, types.ApplySkipDuplicate)
	if err != nil {
		return err
	}
	*applied = result
	return nil
}

// enqueueCreateExport re-exports the newly created entity plus its owning
// Feature and/or Project when given (a Task's Feature/Project, a Feature's
// Project), the same parent-refresh RunInTransaction
// writes bypass the export decorator for (see internal/export/decorator.go).
func (t *manageContainerTool) enqueueCreateExport(kind types.EntityType, id types.ID, featureID, projectID *types.ID) {
	if t.deps.Pipeline == nil {
		return
	}
	t.deps.Pipeline.Enqueue(export.Job{Kind: export.JobExportEntity, EntityType: kind, EntityID: id})
	if featureID != nil {
		t.deps.Pipeline.Enqueue(export.Job{Kind: export.JobExportEntity, EntityType: types.EntityFeature, EntityID: *featureID})
	}
	if projectID != nil {
		t.deps.Pipeline.Enqueue(export.Job{Kind: export.JobExportEntity, EntityType: types.EntityProject, EntityID: *projectID})
	}
}

// createResult wraps dto with the template-apply summary only when templates
// were actually applied, so a plain create (no templateIds) keeps returning
// the bare entity DTO unchanged.
func createResult(dto any, applied *templates.ApplyResult) any {
	if applied == nil {
		return dto
	}
	added := make([]*sectionDTO, len(applied.Added))
	for i, s := range applied.Added {
		added[i] = toSectionDTO(s)
	}
	return map[string]any{"entity": dto, "templateResult": map[string]any{"added": added, "skipped": applied.Skipped}}
}

func defaultedStatus(s, fallback string) types.Status {
	if s == "" {
		return types.Status(fallback)
	}
	return types.Status(s)
}

func (t *manageContainerTool) update(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	switch kind {
	case types.EntityProject:
		existing := t.deps.Store.Projects().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		proj := existing.Value()
		applyIfSet(&proj.Name, p.Name)
		applyIfSet(&proj.Summary, p.Summary)
		applyIfSet(&proj.Description, p.Description)
		if p.Tags != nil {
			proj.Tags = types.TagSet(p.Tags)
		}
		if err := proj.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Projects().Update(ctx, proj)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("project updated", toProjectDTO(res.Value()))

	case types.EntityFeature:
		existing := t.deps.Store.Features().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		feat := existing.Value()
		applyIfSet(&feat.Name, p.Name)
		applyIfSet(&feat.Summary, p.Summary)
		applyIfSet(&feat.Description, p.Description)
		if p.Priority != "" {
			priority, env := parsePriorityField(p.Priority)
			if env != nil {
				return env
			}
			feat.Priority = priority
		}
		if p.Tags != nil {
			feat.Tags = types.TagSet(p.Tags)
		}
		if err := feat.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Features().Update(ctx, feat)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("feature updated", toFeatureDTO(res.Value()))

	case types.EntityTask:
		existing := t.deps.Store.Tasks().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		task := existing.Value()
		applyIfSet(&task.Title, p.Title)
		applyIfSet(&task.Summary, p.Summary)
		applyIfSet(&task.Description, p.Description)
		if p.Priority != "" {
			priority, env := parsePriorityField(p.Priority)
			if env != nil {
				return env
			}
			task.Priority = priority
		}
		if p.Complexity != 0 {
			task.Complexity = p.Complexity
		}
		if p.Tags != nil {
			task.Tags = types.TagSet(p.Tags)
		}
		if err := task.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Tasks().Update(ctx, task)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("task updated", toTaskDTO(res.Value()))
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

func applyIfSet(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (t *manageContainerTool) delete(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	var res types.Result[bool]
	switch kind {
	case types.EntityProject:
		res = t.deps.Store.Projects().Delete(ctx, id)
	case types.EntityFeature:
		res = t.deps.Store.Features().Delete(ctx, id)
	case types.EntityTask:
		res = t.deps.Store.Tasks().Delete(ctx, id)
	}
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("deleted", map[string]bool{"deleted": res.Value()})
}

func (t *manageContainerTool) setStatus(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	proposed := types.Status(p.Status)
	if proposed == "" {
		return Fail(ValidationError, "status is required", nil)
	}

	switch kind {
	case types.EntityTask:
		existing := t.deps.Store.Tasks().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		task := existing.Value()
		previous := task.Status

		if _, err := t.deps.Engine.ValidateTransition(kind, task.Tags, previous, proposed); err != nil {
			return transitionErrorEnvelope(err)
		}
		prereq, err := t.deps.Engine.EvaluateTaskPrerequisites(ctx, t.deps.Store, task, proposed)
		if err != nil {
			return Fail(DatabaseError, err.Error(), nil)
		}
		if !prereq.Satisfied() {
			return Fail(ValidationError, "prerequisites not satisfied", prereq.Blockers)
		}

		task.Status = proposed
		res := t.deps.Store.Tasks().Update(ctx, task)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		events, _ := t.deps.Engine.EvaluateTaskCascade(ctx, t.deps.Store, task, previous)
		return Ok("status updated", map[string]any{"task": toTaskDTO(res.Value()), "cascadeEvents": cascadeEventDTOs(events)})

	case types.EntityFeature:
		existing := t.deps.Store.Features().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		feat := existing.Value()
		if _, err := t.deps.Engine.ValidateTransition(kind, feat.Tags, feat.Status, proposed); err != nil {
			return transitionErrorEnvelope(err)
		}
		prereq, err := t.deps.Engine.EvaluateFeaturePrerequisites(ctx, t.deps.Store, feat, proposed)
		if err != nil {
			return Fail(DatabaseError, err.Error(), nil)
		}
		if !prereq.Satisfied() {
			return Fail(ValidationError, "prerequisites not satisfied", prereq.Blockers)
		}
		feat.Status = proposed
		res := t.deps.Store.Features().Update(ctx, feat)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		var events []workflow.CascadeEvent
		if featEvents, err := t.deps.Engine.EvaluateFeatureTaskCompletionCascade(ctx, t.deps.Store, feat); err == nil {
			events = append(events, featEvents...)
		}
		if feat.HasProject() {
			if projRes := t.deps.Store.Projects().GetByID(ctx, *feat.ProjectID); projRes.Ok() {
				if projEvents, err := t.deps.Engine.EvaluateProjectFeatureCompletionCascade(ctx, t.deps.Store, projRes.Value()); err == nil {
					events = append(events, projEvents...)
				}
			}
		}
		return Ok("status updated", map[string]any{"feature": toFeatureDTO(res.Value()), "cascadeEvents": cascadeEventDTOs(events)})

	case types.EntityProject:
		existing := t.deps.Store.Projects().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		proj := existing.Value()
		if _, err := t.deps.Engine.ValidateTransition(kind, proj.Tags, proj.Status, proposed); err != nil {
			return transitionErrorEnvelope(err)
		}
		proj.Status = proposed
		res := t.deps.Store.Projects().Update(ctx, proj)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("status updated", map[string]any{"project": toProjectDTO(res.Value()), "cascadeEvents": []any{}})
	}
	return Fail(InternalError, "unreachable containerType", nil)
}

func transitionErrorEnvelope(err error) *Envelope {
	if te, ok := err.(*workflow.TransitionError); ok {
		details := map[string]any{"kind": te.Kind}
		if te.RequiredIntermediate != "" {
			details["requiredIntermediate"] = te.RequiredIntermediate
		}
		if len(te.Blockers) > 0 {
			details["blockers"] = te.Blockers
		}
		return Fail(ValidationError, te.Message, details)
	}
	return Fail(InternalError, err.Error(), nil)
}

type cascadeEventDTO struct {
	Event           string `json:"event"`
	TargetType      string `json:"targetType"`
	TargetID        string `json:"targetId"`
	CurrentStatus   string `json:"currentStatus"`
	SuggestedStatus string `json:"suggestedStatus"`
	Automatic       bool   `json:"automatic"`
	Reason          string `json:"reason"`
	Flow            string `json:"flow,omitempty"`
}

func cascadeEventDTOs(events []workflow.CascadeEvent) []cascadeEventDTO {
	out := make([]cascadeEventDTO, len(events))
	for i, e := range events {
		out[i] = cascadeEventDTO{
			Event: e.Event, TargetType: containerTypeString(e.TargetType), TargetID: e.TargetID.String(),
			CurrentStatus: string(e.CurrentStatus), SuggestedStatus: string(e.SuggestedStatus),
			Automatic: e.Automatic, Reason: e.Reason, Flow: e.Flow,
		}
	}
	return out
}

func containerTypeString(kind types.EntityType) string {
	switch kind {
	case types.EntityProject:
		return "project"
	case types.EntityFeature:
		return "feature"
	case types.EntityTask:
		return "task"
	default:
		return string(kind)
	}
}

func (t *manageContainerTool) bulkUpdate(ctx context.Context, kind types.EntityType, p containerParams) *Envelope {
	if len(p.Items) == 0 {
		return Fail(ValidationError, "items must be non-empty", nil)
	}
	result := bulkResult{}
	for _, item := range p.Items {
		env := t.bulkUpdateOne(ctx, kind, item)
		if env.Success {
			result.Count++
			result.Items = append(result.Items, env.Data)
		} else {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{ID: item.ID, Code: env.Error.Code, Message: env.Error.Message})
		}
	}
	if result.Count == 0 {
		return Fail(OperationFailed, "every item in the bulk operation failed", result.Failures)
	}
	return Ok(fmt.Sprintf("%d updated, %d failed", result.Count, result.Failed), result)
}

// bulkUpdateOne applies one item's field changes and, when item.Status is
// set, routes the status change through the same ValidateTransition/
// prerequisite/cascade path setStatus uses — a bulk call is not a back door
// around spec.md §8's terminal-non-regression invariant or §4.2 rule 7's
// completion gates.
func (t *manageContainerTool) bulkUpdateOne(ctx context.Context, kind types.EntityType, item containerBulkItem) *Envelope {
	id, env := parseIDField(item.ID)
	if env != nil {
		return env
	}
	switch kind {
	case types.EntityTask:
		existing := t.deps.Store.Tasks().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		task := existing.Value()
		previous := task.Status
		if item.Priority != "" {
			priority, env := parsePriorityField(item.Priority)
			if env != nil {
				return env
			}
			task.Priority = priority
		}
		if item.Tags != nil {
			task.Tags = types.TagSet(item.Tags)
		}
		if item.Complexity != 0 {
			task.Complexity = item.Complexity
		}
		if item.Status != "" {
			proposed := types.Status(item.Status)
			if _, err := t.deps.Engine.ValidateTransition(kind, task.Tags, previous, proposed); err != nil {
				return transitionErrorEnvelope(err)
			}
			prereq, err := t.deps.Engine.EvaluateTaskPrerequisites(ctx, t.deps.Store, task, proposed)
			if err != nil {
				return Fail(DatabaseError, err.Error(), nil)
			}
			if !prereq.Satisfied() {
				return Fail(ValidationError, "prerequisites not satisfied", prereq.Blockers)
			}
			task.Status = proposed
		}
		if err := task.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Tasks().Update(ctx, task)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		var events []workflow.CascadeEvent
		if item.Status != "" {
			events, _ = t.deps.Engine.EvaluateTaskCascade(ctx, t.deps.Store, res.Value(), previous)
		}
		return Ok("updated", map[string]any{"task": toTaskDTO(res.Value()), "cascadeEvents": cascadeEventDTOs(events)})

	case types.EntityFeature:
		existing := t.deps.Store.Features().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		feat := existing.Value()
		previous := feat.Status
		if item.Priority != "" {
			priority, env := parsePriorityField(item.Priority)
			if env != nil {
				return env
			}
			feat.Priority = priority
		}
		if item.Tags != nil {
			feat.Tags = types.TagSet(item.Tags)
		}
		if item.Status != "" {
			proposed := types.Status(item.Status)
			if _, err := t.deps.Engine.ValidateTransition(kind, feat.Tags, previous, proposed); err != nil {
				return transitionErrorEnvelope(err)
			}
			prereq, err := t.deps.Engine.EvaluateFeaturePrerequisites(ctx, t.deps.Store, feat, proposed)
			if err != nil {
				return Fail(DatabaseError, err.Error(), nil)
			}
			if !prereq.Satisfied() {
				return Fail(ValidationError, "prerequisites not satisfied", prereq.Blockers)
			}
			feat.Status = proposed
		}
		if err := feat.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Features().Update(ctx, feat)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		var events []workflow.CascadeEvent
		if item.Status != "" {
			if featEvents, err := t.deps.Engine.EvaluateFeatureTaskCompletionCascade(ctx, t.deps.Store, res.Value()); err == nil {
				events = append(events, featEvents...)
			}
			if res.Value().HasProject() {
				if projRes := t.deps.Store.Projects().GetByID(ctx, *res.Value().ProjectID); projRes.Ok() {
					if projEvents, err := t.deps.Engine.EvaluateProjectFeatureCompletionCascade(ctx, t.deps.Store, projRes.Value()); err == nil {
						events = append(events, projEvents...)
					}
				}
			}
		}
		return Ok("updated", map[string]any{"feature": toFeatureDTO(res.Value()), "cascadeEvents": cascadeEventDTOs(events)})

	case types.EntityProject:
		existing := t.deps.Store.Projects().GetByID(ctx, id)
		if !existing.Ok() {
			return storeErrorEnvelope(existing.Err())
		}
		proj := existing.Value()
		if item.Tags != nil {
			proj.Tags = types.TagSet(item.Tags)
		}
		if item.Status != "" {
			proposed := types.Status(item.Status)
			if _, err := t.deps.Engine.ValidateTransition(kind, proj.Tags, proj.Status, proposed); err != nil {
				return transitionErrorEnvelope(err)
			}
			proj.Status = proposed
		}
		if err := proj.Validate(); err != nil {
			return Fail(ValidationError, err.Error(), nil)
		}
		res := t.deps.Store.Projects().Update(ctx, proj)
		if !res.Ok() {
			return storeErrorEnvelope(res.Err())
		}
		return Ok("updated", map[string]any{"project": toProjectDTO(res.Value()), "cascadeEvents": []any{}})
	}
	return Fail(InternalError, "unreachable containerType", nil)
}
