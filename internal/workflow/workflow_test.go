package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/storage/sqlite"
	"github.com/taskmcp/taskmcp/internal/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(NewLoader(t.TempDir()))
	require.NoError(t, err)
	return eng
}

func bugFixConfig() *RawConfig {
	cfg := defaultConfig()
	cfg.StatusProgression.Tasks.Flows["bug_fix_flow"] = []string{"pending", "in-progress", "testing", "completed"}
	cfg.StatusProgression.Tasks.FlowMappings = []RawFlowMapping{
		{Tags: []string{"bug"}, Flow: "bug_fix_flow"},
	}
	return cfg
}

// TestTagSelectedFlowChoosesBugFixFlow is fixture scenario 1 of spec.md §8:
// a Task tagged [bug,backend] should have its active flow resolve to
// bug_fix_flow via the tag-subset flow_mappings rule.
func TestTagSelectedFlowChoosesBugFixFlow(t *testing.T) {
	snap, err := compileSnapshot(bugFixConfig())
	require.NoError(t, err)

	flow, matched := snap.Tasks.ActiveFlow(types.TagSet{"bug", "backend"})
	require.Equal(t, "bug_fix_flow", flow.Name)
	require.Equal(t, []string{"bug"}, matched)

	eng := &Engine{}
	eng.snapshot.Store(snap)

	check, err := eng.ValidateTransition(types.EntityTask, types.TagSet{"bug", "backend"}, "pending", "in-progress")
	require.NoError(t, err)
	require.Equal(t, "bug_fix_flow", check.Flow.Name)

	rec := eng.Recommend(types.EntityTask, types.TagSet{"bug", "backend"}, "in-progress", nil)
	require.Equal(t, RecommendationReady, rec.Kind)
	require.Equal(t, types.Status("testing"), rec.RecommendedStatus)
	require.Equal(t, []string{"bug"}, rec.MatchedTags)
}

func TestTerminalNonRegression(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.ValidateTransition(types.EntityTask, nil, "completed", "in-progress")
	require.Error(t, err)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, ErrTerminal, transitionErr.Kind)
}

func TestSkipBlockedWhenSequentialEnforced(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.ValidateTransition(types.EntityTask, nil, "backlog", "in-review")
	require.Error(t, err)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, ErrSkipBlocked, transitionErr.Kind)
	require.Equal(t, types.Status("in-progress"), transitionErr.RequiredIntermediate)
}

func TestBackwardBlockedByDefault(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.ValidateTransition(types.EntityTask, nil, "in-review", "in-progress")
	require.Error(t, err)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, ErrBackwardBlocked, transitionErr.Kind)
}

func TestEmergencyTransitionBypassesSequencing(t *testing.T) {
	eng := newTestEngine(t)
	check, err := eng.ValidateTransition(types.EntityTask, nil, "backlog", "blocked")
	require.NoError(t, err)
	require.NotNil(t, check)
}

// TestSummaryGateBlocksCompletion covers spec.md §8's "Summary gate"
// invariant: a Task with no summary cannot satisfy the completion
// prerequisite.
func TestSummaryGateBlocksCompletion(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	task := store.Tasks().Create(ctx, &types.Task{Title: "Fix bug", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 2}).Value()

	result, err := eng.EvaluateTaskPrerequisites(ctx, store, task, "completed")
	require.NoError(t, err)
	require.False(t, result.Satisfied())
	require.True(t, hasBlockerContaining(result.Blockers, "summary"))
}

func TestTaskPrerequisitesBlockedByIncompleteUpstream(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	summary := strings.Repeat("a", 300)
	upstream := store.Tasks().Create(ctx, &types.Task{Title: "Upstream", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 1}).Value()
	downstream := store.Tasks().Create(ctx, &types.Task{Title: "Downstream", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 1, Summary: summary}).Value()
	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: upstream.ID, ToID: downstream.ID, Type: types.DepBlocks}).Ok())

	result, err := eng.EvaluateTaskPrerequisites(ctx, store, downstream, "completed")
	require.NoError(t, err)
	require.False(t, result.Satisfied())
	require.True(t, hasBlockerContaining(result.Blockers, "Upstream"))
}

// TestCancellingTaskSkipsCompletionPrerequisites covers spec.md §4.2 rule
// 7's scope: the summary/blocker predicates gate completion, not every
// terminal status, so cancelling a task with no summary and an open
// upstream blocker must still be satisfied.
func TestCancellingTaskSkipsCompletionPrerequisites(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	upstream := store.Tasks().Create(ctx, &types.Task{Title: "Upstream", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 1}).Value()
	downstream := store.Tasks().Create(ctx, &types.Task{Title: "Downstream", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 1}).Value()
	require.True(t, store.Dependencies().Add(ctx, &types.Dependency{FromID: upstream.ID, ToID: downstream.ID, Type: types.DepBlocks}).Ok())

	result, err := eng.EvaluateTaskPrerequisites(ctx, store, downstream, "cancelled")
	require.NoError(t, err)
	require.True(t, result.Satisfied())
}

// TestCascadeOnFeatureCompletion is fixture scenario 2 of spec.md §8: a
// Feature whose two Tasks are both completed should produce a cascade
// event suggesting its own transition onward.
func TestCascadeOnFeatureCompletion(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	project := store.Projects().Create(ctx, &types.Project{Name: "P", Status: "in-development"}).Value()
	feature := store.Features().Create(ctx, &types.Feature{Name: "F", Status: "in-development", Priority: types.PriorityMedium, ProjectID: &project.ID}).Value()
	for _, title := range []string{"T1", "T2"} {
		store.Tasks().Create(ctx, &types.Task{Title: title, Status: "completed", Priority: types.PriorityMedium, Complexity: 1, FeatureID: &feature.ID})
	}

	events, err := eng.EvaluateFeatureTaskCompletionCascade(ctx, store, feature)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "tests_passed", events[0].Event)
	require.Equal(t, types.EntityFeature, events[0].TargetType)
}

func TestFeaturePrerequisitesRequireChildTasks(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	feature := store.Features().Create(ctx, &types.Feature{Name: "F", Status: "planning", Priority: types.PriorityMedium}).Value()
	result, err := eng.EvaluateFeaturePrerequisites(ctx, store, feature, "in-development")
	require.NoError(t, err)
	require.False(t, result.Satisfied())
}

// TestCancellingFeatureSkipsAllChildrenTerminal mirrors
// TestCancellingTaskSkipsCompletionPrerequisites: cancelling a Feature with
// open children must not be blocked by the all-children-terminal predicate,
// which only gates completion.
func TestCancellingFeatureSkipsAllChildrenTerminal(t *testing.T) {
	eng := newTestEngine(t)
	store := setupTestStore(t)
	ctx := context.Background()

	feature := store.Features().Create(ctx, &types.Feature{Name: "F", Status: "in-development", Priority: types.PriorityMedium}).Value()
	store.Tasks().Create(ctx, &types.Task{Title: "T1", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 1, FeatureID: &feature.ID})

	result, err := eng.EvaluateFeaturePrerequisites(ctx, store, feature, "cancelled")
	require.NoError(t, err)
	require.True(t, result.Satisfied())
}

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func hasBlockerContaining(blockers []string, substr string) bool {
	for _, b := range blockers {
		if strings.Contains(b, substr) {
			return true
		}
	}
	return false
}
