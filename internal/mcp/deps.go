package mcp

import (
	"log/slog"

	"github.com/taskmcp/taskmcp/internal/export"
	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/workflow"
)

// Deps bundles everything a tool handler needs. Store is the export-decorated
// handle when the pipeline is enabled (spec.md §4.5), so every handler can
// write through it without knowing whether export is active.
type Deps struct {
	Store    storage.Storage
	Engine   *workflow.Engine
	Pipeline *export.Pipeline // nil when MD_VAULT_PATH is unset
	Logger   *slog.Logger
}

// RegisterAll wires every tool named in spec.md §6's surface table into
// registry.
func RegisterAll(registry *Registry, deps *Deps) {
	registry.Register(&manageContainerTool{deps})
	registry.Register(&queryContainerTool{deps})
	registry.Register(&manageSectionsTool{deps})
	registry.Register(&querySectionsTool{deps})
	registry.Register(&manageTemplateTool{deps})
	registry.Register(&queryTemplatesTool{deps})
	registry.Register(&applyTemplateTool{deps})
	registry.Register(&manageDependencyTool{deps})
	registry.Register(&queryDependenciesTool{deps})
	registry.Register(&listTagsTool{deps})
	registry.Register(&getTagUsageTool{deps})
	registry.Register(&renameTagTool{deps})
	registry.Register(&getNextStatusTool{deps})
	registry.Register(&queryWorkflowStateTool{deps})
	registry.Register(&rebuildVaultTool{deps})
}
