package mcp

import (
	"context"
	"encoding/json"
)

type tagParams struct {
	Tag         string `json:"tag"`
	From        string `json:"from"`
	To          string `json:"to"`
	SortByCount bool   `json:"sortByCount"`
}

type tagCountDTO struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type tagUsageDTO struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Name       string `json:"name"`
}

type listTagsTool struct{ deps *Deps }

func (t *listTagsTool) Name() string        { return "list_tags" }
func (t *listTagsTool) Description() string { return "List every tag currently in use, with usage counts." }

func (t *listTagsTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p tagParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	res := t.deps.Store.Tags().ListAll(ctx, p.SortByCount)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]tagCountDTO, len(res.Value()))
	for i, c := range res.Value() {
		out[i] = tagCountDTO{Tag: c.Tag, Count: c.Count}
	}
	return Ok("ok", out)
}

type getTagUsageTool struct{ deps *Deps }

func (t *getTagUsageTool) Name() string        { return "get_tag_usage" }
func (t *getTagUsageTool) Description() string { return "List every entity currently holding a given tag." }

func (t *getTagUsageTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p tagParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	if p.Tag == "" {
		return Fail(ValidationError, "tag is required", nil)
	}
	res := t.deps.Store.Tags().Usage(ctx, p.Tag)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	out := make([]tagUsageDTO, len(res.Value()))
	for i, e := range res.Value() {
		out[i] = tagUsageDTO{EntityType: string(e.EntityType), EntityID: e.EntityID.String(), Name: e.Name}
	}
	return Ok("ok", out)
}

type renameTagTool struct{ deps *Deps }

func (t *renameTagTool) Name() string        { return "rename_tag" }
func (t *renameTagTool) Description() string { return "Atomically relabel a tag across every entity that holds it." }

func (t *renameTagTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	var p tagParams
	if env := decodeParams(raw, &p); env != nil {
		return env
	}
	if p.From == "" || p.To == "" {
		return Fail(ValidationError, "from and to are required", nil)
	}
	res := t.deps.Store.Tags().Rename(ctx, p.From, p.To)
	if !res.Ok() {
		return storeErrorEnvelope(res.Err())
	}
	return Ok("tag renamed", map[string]int{"updated": res.Value()})
}
