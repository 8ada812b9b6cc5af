package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/storage/sqlite"
	"github.com/taskmcp/taskmcp/internal/types"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBuiltinsCompile(t *testing.T) {
	bts, err := Builtins()
	require.NoError(t, err)
	require.Len(t, bts, 3)
	for _, tmpl := range bts {
		require.NotEmpty(t, tmpl.Name)
		require.True(t, tmpl.IsBuiltin)
		require.NotEmpty(t, tmpl.Sections)
		for i, s := range tmpl.Sections {
			require.Equal(t, i, s.Ordinal)
		}
	}
}

func TestApplyMaterializesSectionsInOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := store.Tasks().Create(ctx, &types.Task{Title: "Bug", Status: "backlog", Priority: types.PriorityMedium, Complexity: 1}).Value()

	bts, err := Builtins()
	require.NoError(t, err)
	var bugReport *types.Template
	for _, tmpl := range bts {
		if tmpl.Name == "Bug Report" {
			bugReport = tmpl
		}
	}
	require.NotNil(t, bugReport)
	created := store.Templates().Create(ctx, bugReport)
	require.True(t, created.Ok())

	result, err := ApplyAtomic(ctx, store, []types.ID{bugReport.ID}, types.EntityTask, task.ID, types.ApplySkipDuplicate)
	require.NoError(t, err)
	require.Len(t, result.Added, 3)
	for i, s := range result.Added {
		require.Equal(t, i, s.Ordinal)
	}

	sections := store.Sections().List(ctx, types.EntityTask, task.ID)
	require.True(t, sections.Ok())
	require.Len(t, sections.Value(), 3)
}

func TestApplyContinuesOrdinalPastExistingSections(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := store.Tasks().Create(ctx, &types.Task{Title: "Bug", Status: "backlog", Priority: types.PriorityMedium, Complexity: 1}).Value()
	store.Sections().Add(ctx, &types.Section{EntityType: types.EntityTask, EntityID: task.ID, Title: "Notes", ContentFormat: types.FormatMarkdown, Ordinal: 0})

	tmpl := &types.Template{
		Name: "Follow-up", TargetEntityType: types.EntityTask,
		Sections: []types.SectionPrototype{
			{Title: "Next Steps", ContentFormat: types.FormatMarkdown},
		},
	}
	require.True(t, store.Templates().Create(ctx, tmpl).Ok())

	result, err := ApplyAtomic(ctx, store, []types.ID{tmpl.ID}, types.EntityTask, task.ID, types.ApplySkipDuplicate)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, 1, result.Added[0].Ordinal)
}

func TestApplyRejectsWrongTargetType(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project := store.Projects().Create(ctx, &types.Project{Name: "P", Status: "active"}).Value()
	tmpl := &types.Template{Name: "Task Only", TargetEntityType: types.EntityTask}
	require.True(t, store.Templates().Create(ctx, tmpl).Ok())

	_, err := ApplyAtomic(ctx, store, []types.ID{tmpl.ID}, types.EntityProject, project.ID, types.ApplySkipDuplicate)
	require.Error(t, err)
}

// TestApplyErrorModeAddsZeroSections is fixture scenario 5 of spec.md §8:
// two templates whose combined section titles include one duplicate under
// mode=error return an error and add zero sections.
func TestApplyErrorModeAddsZeroSections(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	feature := store.Features().Create(ctx, &types.Feature{Name: "F", Status: "planning", Priority: types.PriorityMedium}).Value()

	tmplA := &types.Template{
		Name: "A", TargetEntityType: types.EntityFeature,
		Sections: []types.SectionPrototype{{Title: "Overview", ContentFormat: types.FormatMarkdown}},
	}
	tmplB := &types.Template{
		Name: "B", TargetEntityType: types.EntityFeature,
		Sections: []types.SectionPrototype{{Title: "overview", ContentFormat: types.FormatMarkdown}},
	}
	require.True(t, store.Templates().Create(ctx, tmplA).Ok())
	require.True(t, store.Templates().Create(ctx, tmplB).Ok())

	_, err := ApplyAtomic(ctx, store, []types.ID{tmplA.ID, tmplB.ID}, types.EntityFeature, feature.ID, types.ApplyError)
	require.Error(t, err)

	sections := store.Sections().List(ctx, types.EntityFeature, feature.ID)
	require.True(t, sections.Ok())
	require.Empty(t, sections.Value())
}

func TestApplySkipDuplicateKeepsFirstOccurrence(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := store.Tasks().Create(ctx, &types.Task{Title: "T", Status: "backlog", Priority: types.PriorityMedium, Complexity: 1}).Value()
	tmplA := &types.Template{
		Name: "A", TargetEntityType: types.EntityTask,
		Sections: []types.SectionPrototype{{Title: "Notes", Content: "first", ContentFormat: types.FormatMarkdown}},
	}
	tmplB := &types.Template{
		Name: "B", TargetEntityType: types.EntityTask,
		Sections: []types.SectionPrototype{{Title: "Notes", Content: "second", ContentFormat: types.FormatMarkdown}},
	}
	require.True(t, store.Templates().Create(ctx, tmplA).Ok())
	require.True(t, store.Templates().Create(ctx, tmplB).Ok())

	result, err := ApplyAtomic(ctx, store, []types.ID{tmplA.ID, tmplB.ID}, types.EntityTask, task.ID, types.ApplySkipDuplicate)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, "first", result.Added[0].Content)
	require.Equal(t, []string{"Notes"}, result.Skipped)
}
