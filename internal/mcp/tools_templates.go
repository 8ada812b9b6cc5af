package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/export"
	"github.com/taskmcp/taskmcp/internal/templates"
	"github.com/taskmcp/taskmcp/internal/types"
)

type templateParams struct {
	Operation        string                `json:"operation"`
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	TargetEntityType string                `json:"targetEntityType"`
	IsEnabled        *bool                 `json:"isEnabled"`
	Sections         []sectionPrototypeDTO `json:"sections"`
	TemplateIDs      []string              `json:"templateIds"`
	TargetType       string                `json:"targetType"`
	TargetID         string                `json:"targetId"`
	Mode             string                `json:"mode"`
}

type manageTemplateTool struct{ deps *Deps }

func (t *manageTemplateTool) Name() string        { return "manage_template" }
func (t *manageTemplateTool) Description() string { return "Create, update, or delete reusable section templates." }

func (t *manageTemplateTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p templateParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	switch p.Operation {
	case "create":
		return t.create(ctx, p)
	case "update":
		return t.update(ctx, p)
	case "delete":
		return t.delete(ctx, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

func (t *manageTemplateTool) create(ctx context.Context, p templateParams) *Envelope {
	target, ok := types.ParseEntityType(p.TargetEntityType)
	if !ok {
		return Fail(ValidationError, fmt.Sprintf("invalid targetEntityType %q", p.TargetEntityType), nil)
	}
	protos := make([]types.SectionPrototype, len(p.Sections))
	for i, s := range p.Sections {
		protos[i] = fromPrototypeDTO(s)
	}
	tmpl := &types.Template{
		ID: types.NewID(), Name: p.Name, Description: p.Description, TargetEntityType: target,
		IsEnabled: true, Sections: protos,
	}
	if p.IsEnabled != nil {
		tmpl.IsEnabled = *p.IsEnabled
	}
	if err := tmpl.Validate(); err != nil {
		return Fail(ValidationError, err.Error(), nil)
	}
	res := t.deps.Store.Templates().Create(ctx, tmpl)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("template created", toTemplateDTO(res.Value()))
}

func (t *manageTemplateTool) update(ctx context.Context, p templateParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	existing := t.deps.Store.Templates().GetByID(ctx, id)
	if !existing.Ok() {
		return storeErrorEnvelope(existing.Err())
	}
	tmpl := existing.Value()
	if tmpl.IsBuiltin {
		return Fail(ValidationError, "built-in templates are immutable", nil)
	}
	applyIfSet(&tmpl.Name, p.Name)
	applyIfSet(&tmpl.Description, p.Description)
	if p.IsEnabled != nil {
		tmpl.IsEnabled = *p.IsEnabled
	}
	if p.Sections != nil {
		protos := make([]types.SectionPrototype, len(p.Sections))
		for i, s := range p.Sections {
			protos[i] = fromPrototypeDTO(s)
		}
		tmpl.Sections = protos
	}
	if err := tmpl.Validate(); err != nil {
		return Fail(ValidationError, err.Error(), nil)
	}
	res := t.deps.Store.Templates().Update(ctx, tmpl)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("template updated", toTemplateDTO(res.Value()))
}

func (t *manageTemplateTool) delete(ctx context.Context, p templateParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	existing := t.deps.Store.Templates().GetByID(ctx, id)
	if existing.Ok() && existing.Value().IsBuiltin {
		return Fail(ValidationError, "built-in templates cannot be deleted", nil)
	}
	res := t.deps.Store.Templates().Delete(ctx, id)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("template deleted", map[string]bool{"deleted": res.Value()})
}

type queryTemplatesTool struct{ deps *Deps }

func (t *queryTemplatesTool) Name() string        { return "query_templates" }
func (t *queryTemplatesTool) Description() string { return "List templates, optionally filtered to those enabled for a target entity type." }

func (t *queryTemplatesTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p templateParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	var res types.Result[[]*types.Template]
	if p.TargetEntityType != "" {
		target, ok := types.ParseEntityType(p.TargetEntityType)
		if !ok {
			return Fail(ValidationError, fmt.Sprintf("invalid targetEntityType %q", p.TargetEntityType), nil)
		}
		res = t.deps.Store.Templates().FindEnabled(ctx, target)
	} else {
		res = t.deps.Store.Templates().FindAll(ctx, 0)
	}
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]*templateDTO, len(res.Value()))
	for i, tmpl := range res.Value() {
		out[i] = toTemplateDTO(tmpl)
	}
	return Ok("ok", out)
}

type applyTemplateTool struct{ deps *Deps }

func (t *applyTemplateTool) Name() string { return "apply_template" }
func (t *applyTemplateTool) Description() string {
	return "Atomically materialize one or more templates' sections onto a target entity."
}

// Execute runs the apply inside its own transaction via
// templates.ApplyAtomic. Because a storage.Transaction never exposes the
// root Storage type, writes made through it bypass the export decorator
// entirely (see internal/export/decorator.go) — so on success this handler
// manually enqueues a re-export of the target entity, the one export
// callsite outside the decorator.
func (t *applyTemplateTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p templateParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	targetType, ok := types.ParseEntityType(p.TargetType)
	if !ok {
		return Fail(ValidationError, fmt.Sprintf("invalid targetType %q", p.TargetType), nil)
	}
	targetID, env := parseIDField(p.TargetID)
	if env != nil {
		return env
	}
	if len(p.TemplateIDs) == 0 {
		return Fail(ValidationError, "templateIds must be non-empty", nil)
	}
	templateIDs := make([]types.ID, len(p.TemplateIDs))
	for i, raw := range p.TemplateIDs {
		id, env := parseIDField(raw)
		if env != nil {
			return env
		}
		templateIDs[i] = id
	}
	mode, ok := types.ParseTemplateApplyMode(p.Mode)
	if !ok {
		return Fail(ValidationError, fmt.Sprintf("invalid mode %q", p.Mode), nil)
	}

	result, err := templates.ApplyAtomic(ctx, t.deps.Store, templateIDs, targetType, targetID, mode)
	if err != nil {
		return txErrorEnvelope(err)
	}

	if t.deps.Pipeline != nil {
		t.deps.Pipeline.Enqueue(export.Job{Kind: export.JobExportEntity, EntityType: targetType, EntityID: targetID})
	}

	added := make([]*sectionDTO, len(result.Added))
	for i, s := range result.Added {
		added[i] = toSectionDTO(s)
	}
	return Ok("templates applied", map[string]any{"added": added, "skipped": result.Skipped})
}
