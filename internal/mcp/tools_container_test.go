package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/types"
)

// TestCreateWithTemplateIdsAppliesInSameTransaction covers spec.md §4.3's
// "can also be applied implicitly on entity creation": passing templateIds
// to manage_container(op=create) must materialize the template's sections
// onto the new entity, and the create response must report them.
func TestCreateWithTemplateIdsAppliesInSameTransaction(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()

	tmplResp := registry.Get("manage_template").Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "name": "Bug Report", "targetEntityType": "task",
		"sections": []map[string]any{
			{"title": "Repro Steps", "usageDescription": "how to reproduce", "contentFormat": "markdown"},
		},
	}))
	require.True(t, tmplResp.Success)
	templateID := tmplResp.Data.(*templateDTO).ID

	manage := registry.Get("manage_container")
	created := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "Crash on boot",
		"priority": "HIGH", "complexity": 2, "templateIds": []string{templateID},
	}))
	require.True(t, created.Success)
	data := created.Data.(map[string]any)
	entity := data["entity"].(*taskDTO)
	require.Equal(t, "Crash on boot", entity.Title)
	templateResult := data["templateResult"].(map[string]any)
	added := templateResult["added"].([]*sectionDTO)
	require.Len(t, added, 1)
	require.Equal(t, "Repro Steps", added[0].Title)

	sections := registry.Get("query_sections").Execute(ctx, mustJSON(t, map[string]any{
		"entityType": "task", "entityId": entity.ID,
	}))
	require.True(t, sections.Success)
	require.Len(t, sections.Data.([]*sectionDTO), 1)
}

// TestCreateWithoutTemplateIdsReturnsBareDTO guards createResult's
// backward-compatible shape: a plain create (no templateIds) keeps
// returning the bare entity DTO, not the {entity,templateResult} wrapper.
func TestCreateWithoutTemplateIdsReturnsBareDTO(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()

	created := registry.Get("manage_container").Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "project", "name": "Q3 Launch",
	}))
	require.True(t, created.Success)
	_, isBareDTO := created.Data.(*projectDTO)
	require.True(t, isBareDTO)
}

// TestBulkUpdateRoutesStatusThroughWorkflowValidation covers spec.md §8's
// terminal-non-regression/sequencing invariants: a bulkUpdate item that
// skips a required intermediate status must fail exactly like setStatus
// would, without aborting the other items in the same call.
func TestBulkUpdateRoutesStatusThroughWorkflowValidation(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()
	manage := registry.Get("manage_container")

	okTask := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "A", "priority": "MEDIUM", "complexity": 1,
	}))
	require.True(t, okTask.Success)
	okID := okTask.Data.(*taskDTO).ID

	skipTask := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "B", "priority": "MEDIUM", "complexity": 1,
	}))
	require.True(t, skipTask.Success)
	skipID := skipTask.Data.(*taskDTO).ID

	resp := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "bulkUpdate", "containerType": "task",
		"items": []map[string]any{
			{"id": okID, "status": "in-progress"},
			{"id": skipID, "status": "in-review"},
		},
	}))
	require.True(t, resp.Success)
	result := resp.Data.(bulkResult)
	require.Equal(t, 1, result.Count)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, ValidationError, result.Failures[0].Code)
}

// TestBulkUpdateCancelSkipsCompletionPrerequisites mirrors
// TestCancellingTaskSkipsCompletionPrerequisites at the bulkUpdate entry
// point: cancelling through a bulk call must use the same completion-only
// gating setStatus uses, not reject on a missing summary.
func TestBulkUpdateCancelSkipsCompletionPrerequisites(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()
	manage := registry.Get("manage_container")

	created := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "No summary", "priority": "MEDIUM", "complexity": 1,
	}))
	require.True(t, created.Success)
	id := created.Data.(*taskDTO).ID

	resp := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "bulkUpdate", "containerType": "task",
		"items": []map[string]any{{"id": id, "status": "cancelled"}},
	}))
	require.True(t, resp.Success)
	result := resp.Data.(bulkResult)
	require.Equal(t, 1, result.Count)
	require.Equal(t, 0, result.Failed)
}

// TestDeleteFeatureCascadesToChildTasksAndSections covers review fix (d):
// deleting a non-leaf container must remove its child Tasks and every
// Section either level owns, rather than hard-failing on the foreign key
// or orphaning rows.
func TestDeleteFeatureCascadesToChildTasksAndSections(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()
	manage := registry.Get("manage_container")

	feat := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "feature", "name": "Checkout", "priority": "MEDIUM",
	}))
	require.True(t, feat.Success)
	featureID := feat.Data.(*featureDTO).ID

	task := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "T1", "priority": "MEDIUM",
		"complexity": 1, "featureId": featureID,
	}))
	require.True(t, task.Success)
	taskID := task.Data.(*taskDTO).ID

	addSection := registry.Get("manage_sections").Execute(ctx, mustJSON(t, map[string]any{
		"operation": "add", "entityType": "task", "entityId": taskID,
		"title": "Notes", "content": "x", "contentFormat": "markdown",
	}))
	require.True(t, addSection.Success)

	del := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "delete", "containerType": "feature", "id": featureID,
	}))
	require.True(t, del.Success)

	parsedTaskID, env := parseIDField(taskID)
	require.Nil(t, env)
	getTask := deps.Store.Tasks().GetByID(ctx, parsedTaskID)
	require.False(t, getTask.Ok())

	sections := deps.Store.Sections().List(ctx, types.EntityTask, parsedTaskID)
	require.True(t, sections.Ok())
	require.Empty(t, sections.Value())
}
