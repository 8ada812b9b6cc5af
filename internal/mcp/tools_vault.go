package mcp

import (
	"context"
	"encoding/json"
)

type rebuildVaultTool struct{ deps *Deps }

func (t *rebuildVaultTool) Name() string        { return "rebuild_vault" }
func (t *rebuildVaultTool) Description() string { return "Trigger a full re-export of every entity to the Markdown vault." }

func (t *rebuildVaultTool) Execute(ctx context.Context, raw json.RawMessage) *Envelope {
	if t.deps.Pipeline == nil {
		return Fail(ValidationError, "export is disabled: MD_VAULT_PATH is not set", nil)
	}
	if err := t.deps.Pipeline.FullExport(ctx); err != nil {
		return Fail(InternalError, err.Error(), nil)
	}
	return Ok("vault rebuild enqueued", nil)
}
