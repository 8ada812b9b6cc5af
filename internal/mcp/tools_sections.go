package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmcp/taskmcp/internal/types"
)

type sectionParams struct {
	Operation        string              `json:"operation"`
	ID               string              `json:"id"`
	EntityType       string              `json:"entityType"`
	EntityID         string              `json:"entityId"`
	Title            string              `json:"title"`
	UsageDescription string              `json:"usageDescription"`
	Content          string              `json:"content"`
	ContentFormat    string              `json:"contentFormat"`
	Tags             []string            `json:"tags"`
	OrderedIDs       []string            `json:"orderedIds"`
	Items            []sectionBulkItem   `json:"items"`
	Filter           filterParams        `json:"filter"`
}

type sectionBulkItem struct {
	ID               string   `json:"id"`
	EntityType       string   `json:"entityType"`
	EntityID         string   `json:"entityId"`
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription"`
	Content          string   `json:"content"`
	ContentFormat    string   `json:"contentFormat"`
	Tags             []string `json:"tags"`
}

type manageSectionsTool struct{ deps *Deps }

func (t *manageSectionsTool) Name() string { return "manage_sections" }
func (t *manageSectionsTool) Description() string {
	return "Add, update, reorder, or delete ordered content sections on any container."
}

func (t *manageSectionsTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p sectionParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	switch p.Operation {
	case "add":
		return t.add(ctx, p)
	case "update":
		return t.update(ctx, p)
	case "updateText":
		return t.updateText(ctx, p)
	case "updateMetadata":
		return t.updateMetadata(ctx, p)
	case "delete":
		return t.delete(ctx, p)
	case "reorder":
		return t.reorder(ctx, p)
	case "bulkCreate":
		return t.bulkCreate(ctx, p)
	case "bulkUpdate":
		return t.bulkUpdate(ctx, p)
	case "bulkDelete":
		return t.bulkDelete(ctx, p)
	default:
		return Fail(ValidationError, fmt.Sprintf("unknown operation %q", p.Operation), nil)
	}
}

func buildSection(entityType types.EntityType, entityID types.ID, title, usage, content, format string, tags []string) (*types.Section, *Envelope) {
	contentFormat, ok := types.ParseContentFormat(format)
	if !ok {
		if format != "" {
			return nil, Fail(ValidationError, fmt.Sprintf("invalid contentFormat %q", format), nil)
		}
		contentFormat = types.FormatMarkdown
	}
	s := &types.Section{
		ID: types.NewID(), EntityType: entityType, EntityID: entityID, Title: title,
		UsageDescription: usage, Content: content, ContentFormat: contentFormat, Tags: types.TagSet(tags),
	}
	if err := s.Validate(); err != nil {
		return nil, Fail(ValidationError, err.Error(), nil)
	}
	return s, nil
}

func (t *manageSectionsTool) add(ctx context.Context, p sectionParams) *Envelope {
	entityType, env := parseContainerType(p.EntityType)
	if env != nil {
		return env
	}
	entityID, env := parseIDField(p.EntityID)
	if env != nil {
		return env
	}
	s, env := buildSection(entityType, entityID, p.Title, p.UsageDescription, p.Content, p.ContentFormat, p.Tags)
	if env != nil {
		return env
	}
	res := t.deps.Store.Sections().Add(ctx, s)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("section added", toSectionDTO(res.Value()))
}

func (t *manageSectionsTool) update(ctx context.Context, p sectionParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	existing := t.deps.Store.Sections().GetByID(ctx, id)
	if !existing.Ok() {
		return storeErrorEnvelope(existing.Err())
	}
	s := existing.Value()
	applyIfSet(&s.Title, p.Title)
	applyIfSet(&s.Content, p.Content)
	applyIfSet(&s.UsageDescription, p.UsageDescription)
	if p.ContentFormat != "" {
		format, ok := types.ParseContentFormat(p.ContentFormat)
		if !ok {
			return Fail(ValidationError, fmt.Sprintf("invalid contentFormat %q", p.ContentFormat), nil)
		}
		s.ContentFormat = format
	}
	if p.Tags != nil {
		s.Tags = types.TagSet(p.Tags)
	}
	if err := s.Validate(); err != nil {
		return Fail(ValidationError, err.Error(), nil)
	}
	res := t.deps.Store.Sections().Update(ctx, s)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("section updated", toSectionDTO(res.Value()))
}

func (t *manageSectionsTool) updateText(ctx context.Context, p sectionParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	res := t.deps.Store.Sections().UpdateText(ctx, id, p.Content)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("section text updated", toSectionDTO(res.Value()))
}

func (t *manageSectionsTool) updateMetadata(ctx context.Context, p sectionParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	res := t.deps.Store.Sections().UpdateMetadata(ctx, id, p.Title, p.UsageDescription, types.TagSet(p.Tags))
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("section metadata updated", toSectionDTO(res.Value()))
}

func (t *manageSectionsTool) delete(ctx context.Context, p sectionParams) *Envelope {
	id, env := parseIDField(p.ID)
	if env != nil {
		return env
	}
	res := t.deps.Store.Sections().Delete(ctx, id)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("section deleted", map[string]bool{"deleted": res.Value()})
}

func (t *manageSectionsTool) reorder(ctx context.Context, p sectionParams) *Envelope {
	entityType, env := parseContainerType(p.EntityType)
	if env != nil {
		return env
	}
	entityID, env := parseIDField(p.EntityID)
	if env != nil {
		return env
	}
	ids := make([]types.ID, len(p.OrderedIDs))
	for i, raw := range p.OrderedIDs {
		id, env := parseIDField(raw)
		if env != nil {
			return env
		}
		ids[i] = id
	}
	res := t.deps.Store.Sections().Reorder(ctx, entityType, entityID, ids)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]*sectionDTO, len(res.Value()))
	for i, s := range res.Value() {
		out[i] = toSectionDTO(s)
	}
	return Ok("sections reordered", out)
}

func (t *manageSectionsTool) bulkCreate(ctx context.Context, p sectionParams) *Envelope {
	if len(p.Items) == 0 {
		return Fail(ValidationError, "items must be non-empty", nil)
	}
	result := bulkResult{}
	for _, item := range p.Items {
		entityType, env := parseContainerType(item.EntityType)
		if env != nil {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{Code: ValidationError, Message: env.Message})
			continue
		}
		entityID, env := parseIDField(item.EntityID)
		if env != nil {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{Code: ValidationError, Message: env.Message})
			continue
		}
		s, env := buildSection(entityType, entityID, item.Title, item.UsageDescription, item.Content, item.ContentFormat, item.Tags)
		if env != nil {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{Code: env.Error.Code, Message: env.Error.Message})
			continue
		}
		res := t.deps.Store.Sections().Add(ctx, s)
		if !res.Ok() {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{Code: storeErrorEnvelope(res.Err()).Error.Code, Message: res.Err().Message})
			continue
		}
		result.Count++
		result.Items = append(result.Items, toSectionDTO(res.Value()))
	}
	if result.Count == 0 {
		return Fail(OperationFailed, "every item in the bulk operation failed", result.Failures)
	}
	return Ok(fmt.Sprintf("%d created, %d failed", result.Count, result.Failed), result)
}

func (t *manageSectionsTool) bulkUpdate(ctx context.Context, p sectionParams) *Envelope {
	if len(p.Items) == 0 {
		return Fail(ValidationError, "items must be non-empty", nil)
	}
	result := bulkResult{}
	for _, item := range p.Items {
		env := t.update(ctx, sectionParams{ID: item.ID, Title: item.Title, Content: item.Content, UsageDescription: item.UsageDescription, ContentFormat: item.ContentFormat, Tags: item.Tags})
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

func (t *manageSectionsTool) bulkDelete(ctx context.Context, p sectionParams) *Envelope {
	if len(p.Items) == 0 {
		return Fail(ValidationError, "items must be non-empty", nil)
	}
	result := bulkResult{}
	for _, item := range p.Items {
		env := t.delete(ctx, sectionParams{ID: item.ID})
		if env.Success {
			result.Count++
		} else {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure{ID: item.ID, Code: env.Error.Code, Message: env.Error.Message})
		}
	}
	if result.Count == 0 {
		return Fail(OperationFailed, "every item in the bulk operation failed", result.Failures)
	}
	return Ok(fmt.Sprintf("%d deleted, %d failed", result.Count, result.Failed), result)
}

type querySectionsTool struct{ deps *Deps }

func (t *querySectionsTool) Name() string        { return "query_sections" }
func (t *querySectionsTool) Description() string { return "List sections owned by an entity." }

func (t *querySectionsTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p sectionParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	entityType, env := parseContainerType(p.EntityType)
	if env != nil {
		return env
	}
	entityID, env := parseIDField(p.EntityID)
	if env != nil {
		return env
	}
	res := t.deps.Store.Sections().List(ctx, entityType, entityID)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]*sectionDTO, len(res.Value()))
	for i, s := range res.Value() {
		out[i] = toSectionDTO(s)
	}
	return Ok("ok", out)
}
