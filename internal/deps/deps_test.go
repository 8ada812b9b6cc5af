package deps

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

var terminalTaskStatuses = map[types.Status]bool{"completed": true, "cancelled": true}

func mustCreateTask(t *testing.T, store *sqlite.Store, title string, status types.Status, priority types.Priority, complexity int) *types.Task {
	t.Helper()
	res := store.Tasks().Create(context.Background(), &types.Task{
		Title: title, Status: status, Priority: priority, Complexity: complexity,
	})
	require.True(t, res.Ok())
	return res.Value()
}

// TestBatchesOrdersByBlocksPredecessors builds a diamond a->b, a->c, b->d,
// c->d and expects three layers: [a], [b,c], [d].
func TestBatchesOrdersByBlocksPredecessors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := mustCreateTask(t, store, "a", "backlog", types.PriorityMedium, 1)
	b := mustCreateTask(t, store, "b", "backlog", types.PriorityMedium, 1)
	c := mustCreateTask(t, store, "c", "backlog", types.PriorityMedium, 1)
	d := mustCreateTask(t, store, "d", "backlog", types.PriorityMedium, 1)

	for _, edge := range [][2]*types.Task{{a, b}, {a, c}, {b, d}, {c, d}} {
		require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: edge[0].ID, ToID: edge[1].ID, Type: types.DepBlocks}).Ok())
	}

	batches, err := Batches(ctx, store, terminalTaskStatuses, []*types.Task{a, b, c, d})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	require.Len(t, batches[0].Tasks, 1)
	require.Equal(t, "a", batches[0].Tasks[0].Title)
	require.Len(t, batches[1].Tasks, 2)
	require.Len(t, batches[2].Tasks, 1)
	require.Equal(t, "d", batches[2].Tasks[0].Title)
}

func TestBatchesExcludeTerminalTasksButHonourTheirEdges(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	done := mustCreateTask(t, store, "done", "completed", types.PriorityMedium, 1)
	next := mustCreateTask(t, store, "next", "backlog", types.PriorityMedium, 1)
	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: done.ID, ToID: next.ID, Type: types.DepBlocks}).Ok())

	batches, err := Batches(ctx, store, terminalTaskStatuses, []*types.Task{done, next})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, "next", batches[0].Tasks[0].Title)
}

func TestBatchesTieBreakIsDeterministic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	low := mustCreateTask(t, store, "low", "backlog", types.PriorityLow, 1)
	high := mustCreateTask(t, store, "high", "backlog", types.PriorityHigh, 1)
	medium := mustCreateTask(t, store, "medium", "backlog", types.PriorityMedium, 1)

	batches, err := Batches(ctx, store, terminalTaskStatuses, []*types.Task{low, high, medium})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	titles := []string{batches[0].Tasks[0].Title, batches[0].Tasks[1].Title, batches[0].Tasks[2].Title}
	require.Equal(t, []string{"high", "medium", "low"}, titles)
}

func TestBlockerReportListsOnlyNonTerminalSources(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	blockedSrc := mustCreateTask(t, store, "still working", "in-progress", types.PriorityMedium, 1)
	doneSrc := mustCreateTask(t, store, "finished", "completed", types.PriorityMedium, 1)
	target := mustCreateTask(t, store, "target", "backlog", types.PriorityMedium, 1)

	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: blockedSrc.ID, ToID: target.ID, Type: types.DepBlocks}).Ok())
	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: doneSrc.ID, ToID: target.ID, Type: types.DepBlocks}).Ok())

	blockers, err := BlockerReport(ctx, store, terminalTaskStatuses, target.ID)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	require.Equal(t, "still working", blockers[0].SourceTitle)
}
