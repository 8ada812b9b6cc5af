package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/types"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProjectCreateGetUpdate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	p := &types.Project{Name: "Atlas", Status: types.Status("active"), Tags: types.TagSet{"infra"}}
	created := store.Projects().Create(ctx, p)
	require.True(t, created.Ok())
	require.False(t, created.Value().ID.IsZero())

	fetched := store.Projects().GetByID(ctx, p.ID)
	require.True(t, fetched.Ok())
	require.Equal(t, "Atlas", fetched.Value().Name)

	p.Name = "Atlas Renamed"
	updated := store.Projects().Update(ctx, p)
	require.True(t, updated.Ok())
	require.Equal(t, 2, updated.Value().Version)

	missing := store.Projects().GetByID(ctx, types.NewID())
	require.False(t, missing.Ok())
	require.Equal(t, types.ErrNotFound, missing.Err().Kind)
}

func TestTaskByFeatureAndProject(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	proj := store.Projects().Create(ctx, &types.Project{Name: "P", Status: "active"}).Value()
	feat := store.Features().Create(ctx, &types.Feature{Name: "F", Status: "active", Priority: types.PriorityMedium, ProjectID: &proj.ID}).Value()

	task := &types.Task{Title: "T1", Status: "open", Priority: types.PriorityHigh, Complexity: 3, FeatureID: &feat.ID}
	created := store.Tasks().Create(ctx, task)
	require.True(t, created.Ok())

	byFeature := store.Tasks().ByFeature(ctx, feat.ID)
	require.True(t, byFeature.Ok())
	require.Len(t, byFeature.Value(), 1)
}

func TestSectionReorderIsContiguous(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	proj := store.Projects().Create(ctx, &types.Project{Name: "P", Status: "active"}).Value()

	var ids []types.ID
	for i := 0; i < 3; i++ {
		sec := &types.Section{
			EntityType: types.EntityProject, EntityID: proj.ID,
			Title: "Sec", ContentFormat: types.FormatMarkdown, Ordinal: i,
		}
		res := store.Sections().Add(ctx, sec)
		require.True(t, res.Ok())
		ids = append(ids, res.Value().ID)
	}

	reversed := []types.ID{ids[2], ids[1], ids[0]}
	reordered := store.Sections().Reorder(ctx, types.EntityProject, proj.ID, reversed)
	require.True(t, reordered.Ok())
	list := reordered.Value()
	require.Equal(t, ids[2], list[0].ID)
	require.Equal(t, 0, list[0].Ordinal)
	require.Equal(t, 2, list[2].Ordinal)
}

func TestDependencyAddRejectsCycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := store.Tasks().Create(ctx, &types.Task{Title: "A", Status: "open", Priority: types.PriorityMedium}).Value()
	b := store.Tasks().Create(ctx, &types.Task{Title: "B", Status: "open", Priority: types.PriorityMedium}).Value()
	c := store.Tasks().Create(ctx, &types.Task{Title: "C", Status: "open", Priority: types.PriorityMedium}).Value()

	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: a.ID, ToID: b.ID, Type: types.DepBlocks}).Ok())
	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: b.ID, ToID: c.ID, Type: types.DepBlocks}).Ok())

	cyclic := store.Dependencies().Add(ctx, &types.Dependency{FromID: c.ID, ToID: a.ID, Type: types.DepBlocks})
	require.False(t, cyclic.Ok())
	require.Equal(t, types.ErrConflict, cyclic.Err().Kind)
}

func TestTemplateRoundTripWithSections(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tmpl := &types.Template{
		Name:             "Bug Report",
		TargetEntityType: types.EntityTask,
		IsEnabled:        true,
		Sections: []types.SectionPrototype{
			{Title: "Repro Steps", ContentFormat: types.FormatMarkdown, Ordinal: 0},
			{Title: "Expected Behavior", ContentFormat: types.FormatMarkdown, Ordinal: 1},
		},
	}
	created := store.Templates().Create(ctx, tmpl)
	require.True(t, created.Ok())

	fetched := store.Templates().GetByID(ctx, tmpl.ID)
	require.True(t, fetched.Ok())
	require.Len(t, fetched.Value().Sections, 2)
	require.Equal(t, "Repro Steps", fetched.Value().Sections[0].Title)
}

func TestTagRenameAcrossEntities(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	store.Projects().Create(ctx, &types.Project{Name: "P", Status: "active", Tags: types.TagSet{"urgent"}})
	store.Tasks().Create(ctx, &types.Task{Title: "T", Status: "open", Priority: types.PriorityMedium, Tags: types.TagSet{"urgent", "backend"}})

	renamed := store.Tags().Rename(ctx, "urgent", "priority-1")
	require.True(t, renamed.Ok())
	require.Equal(t, 2, renamed.Value())

	usage := store.Tags().Usage(ctx, "priority-1")
	require.True(t, usage.Ok())
	require.Len(t, usage.Value(), 2)

	stale := store.Tags().Usage(ctx, "urgent")
	require.True(t, stale.Ok())
	require.Len(t, stale.Value(), 0)
}
