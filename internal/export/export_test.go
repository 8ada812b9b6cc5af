package export

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/storage/sqlite"
	"github.com/taskmcp/taskmcp/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSanitizeStripsForbiddenCharsAndReservedNames(t *testing.T) {
	require.Equal(t, "abc", Sanitize("abc"))
	require.Equal(t, "abc", Sanitize("a/b\\c"))
	require.Equal(t, "_unnamed", Sanitize("   "))
	require.Equal(t, "_unnamed", Sanitize("..."))
	require.Equal(t, "_CON", Sanitize("CON"))
	require.Equal(t, "_con.txt", Sanitize("con.txt"))
	for _, forbidden := range []string{"/", "\\", ":", "*", "?", `"`, "<", ">", "|"} {
		require.NotContains(t, Sanitize(`a/b:c*d?e"f<g>h|i`), forbidden)
	}
}

func TestPathResolutionVariants(t *testing.T) {
	require.Equal(t, "alpha/_project.md", ProjectPath("alpha", "active", false))
	require.Equal(t, "Completed/alpha/_project.md", ProjectPath("alpha", "completed", true))

	proj := "alpha"
	require.Equal(t, "alpha/auth/_feature.md", FeaturePath(&proj, "auth", "active", false))
	require.Equal(t, "auth/_feature.md", FeaturePath(nil, "auth", "active", false))

	feat := "auth"
	require.Equal(t, "alpha/auth/login.md", TaskPath(&proj, &feat, "login", "active", false))
	require.Equal(t, "alpha/auth/Completed/login.md", TaskPath(&proj, &feat, "login", "completed", true))
}

func TestNormalizeMarkdownPullsBackDeepHeaders(t *testing.T) {
	in := "# Top\n#### Too Deep\n content"
	out := normalizeMarkdown(in)
	require.Contains(t, out, "## Too Deep")
}

func TestNormalizeMarkdownReescapesNestedMarkdownFence(t *testing.T) {
	in := "before\n```markdown\n# nested\n```\nafter"
	out := normalizeMarkdown(in)
	require.Contains(t, out, "````markdown")
}

func TestInferCodeLanguageFromTitle(t *testing.T) {
	s := &types.Section{Title: "Python Snippet", ContentFormat: types.FormatCode}
	require.Equal(t, "python", inferCodeLanguage(s))
}

func setupPipelineTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func defaultTerminal() TerminalStatuses {
	terminal := map[types.Status]bool{"completed": true, "cancelled": true}
	return TerminalStatuses{Tasks: terminal, Features: terminal, Projects: terminal}
}

// TestPipelineWritesAndRenamesOnEntityChange covers spec.md §8 fixture 3's
// rename/move behaviour at the pipeline level (single entity; the
// multi-descendant cascade is not exercised here).
func TestPipelineWritesAndRenamesOnEntityChange(t *testing.T) {
	store := setupPipelineTestStore(t)
	vault := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := NewPipeline(ctx, store, vault, defaultTerminal(), testLogger())
	require.NoError(t, err)
	decorated := pipeline.Decorate(store)

	project := decorated.Projects().Create(ctx, &types.Project{Name: "alpha", Status: "active"}).Value()
	waitForFile(t, filepath.Join(vault, "alpha", "_project.md"))

	project.Name = "omega"
	decorated.Projects().Update(ctx, project)
	waitForFile(t, filepath.Join(vault, "omega", "_project.md"))
	requireNoFile(t, filepath.Join(vault, "alpha", "_project.md"))
	requireNoDir(t, filepath.Join(vault, "alpha"))
}

func TestPipelineInsertsTerminalSubfolderOnStatusChange(t *testing.T) {
	store := setupPipelineTestStore(t)
	vault := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := NewPipeline(ctx, store, vault, defaultTerminal(), testLogger())
	require.NoError(t, err)
	decorated := pipeline.Decorate(store)

	task := decorated.Tasks().Create(ctx, &types.Task{Title: "fix-flaky", Status: "in-progress", Priority: types.PriorityMedium, Complexity: 2}).Value()
	waitForFile(t, filepath.Join(vault, "fix-flaky.md"))

	task.Status = "completed"
	decorated.Tasks().Update(ctx, task)
	waitForFile(t, filepath.Join(vault, "Completed", "fix-flaky.md"))
	requireNoFile(t, filepath.Join(vault, "fix-flaky.md"))
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected file %s to exist", path)
}

func requireNoFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected file %s to be removed", path)
}

func requireNoDir(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
