package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmcp/taskmcp/internal/storage/sqlite"
	"github.com/taskmcp/taskmcp/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDeps(t *testing.T) *Deps {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := workflow.NewEngine(workflow.NewLoader(t.TempDir()))
	require.NoError(t, err)

	return &Deps{Store: store, Engine: engine, Logger: testLogger()}
}

type stubTool struct {
	name string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Execute(ctx context.Context, params json.RawMessage) *Envelope {
	return Ok("stub called", nil)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "a"})
	reg.Register(&stubTool{name: "b"})

	require.NotNil(t, reg.Get("a"))
	require.Nil(t, reg.Get("missing"))
	require.Equal(t, []ToolDefinition{{Name: "a", Description: "stub"}, {Name: "b", Description: "stub"}}, reg.List())
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "a"})
	require.Panics(t, func() { reg.Register(&stubTool{name: "a"}) })
}

func callRPC(t *testing.T, server *Server, request string) map[string]any {
	t.Helper()
	var out strings.Builder
	err := server.Run(context.Background(), strings.NewReader(request+"\n"), &out)
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &resp))
	return resp
}

func TestServerDispatchInitialize(t *testing.T) {
	reg := NewRegistry()
	server := NewServer(reg, testLogger())
	resp := callRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Nil(t, resp["error"])
	result := resp["result"].(map[string]any)
	require.Equal(t, "taskmcpd", result["serverInfo"].(map[string]any)["name"])
}

func TestServerDispatchToolsList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "noop"})
	server := NewServer(reg, testLogger())
	resp := callRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	result := resp["result"].(map[string]any)
	tools := result["tools"].([]any)
	require.Len(t, tools, 1)
	require.Equal(t, "noop", tools[0].(map[string]any)["name"])
}

func TestServerDispatchUnknownToolReturnsValidationError(t *testing.T) {
	reg := NewRegistry()
	server := NewServer(reg, testLogger())
	resp := callRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}`)
	require.Nil(t, resp["error"])
	result := resp["result"].(map[string]any)
	require.False(t, result["success"].(bool))
	require.Equal(t, string(ValidationError), result["error"].(map[string]any)["code"])
}

func TestServerDispatchUnknownMethodReturnsRPCError(t *testing.T) {
	reg := NewRegistry()
	server := NewServer(reg, testLogger())
	resp := callRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"bogus","params":{}}`)
	require.NotNil(t, resp["error"])
}

// TestManageAndQueryContainerOverviewShape exercises spec.md §8 fixture 6:
// query_container(op=overview, containerType=feature) returns
// {id,name,status,priority,taskCounts{total,byStatus},tasks:[...]} with no
// section bodies.
func TestManageAndQueryContainerOverviewShape(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()

	manage := registry.Get("manage_container")
	query := registry.Get("query_container")

	featResp := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "feature", "name": "Checkout", "priority": "HIGH",
	}))
	require.True(t, featResp.Success)
	featureID := featResp.Data.(*featureDTO).ID

	for i := 0; i < 2; i++ {
		taskResp := manage.Execute(ctx, mustJSON(t, map[string]any{
			"operation": "create", "containerType": "task", "title": "task", "priority": "MEDIUM",
			"complexity": 2, "featureId": featureID,
		}))
		require.True(t, taskResp.Success)
	}

	overview := query.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "overview", "containerType": "feature", "id": featureID,
	}))
	require.True(t, overview.Success)
	data := overview.Data.(map[string]any)
	require.Equal(t, featureID, data["id"])
	require.Equal(t, "Checkout", data["name"])
	counts := data["taskCounts"].(taskCounts)
	require.Equal(t, 2, counts.Total)
	require.Equal(t, 2, counts.ByStatus["backlog"])
	tasks := data["tasks"].([]overviewTaskDTO)
	require.Len(t, tasks, 2)
}

// TestGetNextStatusRecommendsForwardOnDefaultFlow exercises get_next_status
// against the zero-config default flow: backlog -> in-progress -> in-review
// -> completed.
func TestGetNextStatusRecommendsForwardOnDefaultFlow(t *testing.T) {
	deps := setupDeps(t)
	registry := NewRegistry()
	RegisterAll(registry, deps)
	ctx := context.Background()

	manage := registry.Get("manage_container")
	created := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "create", "containerType": "task", "title": "Fix flaky test", "priority": "HIGH", "complexity": 3,
	}))
	require.True(t, created.Success)
	taskID := created.Data.(*taskDTO).ID

	setStatus := manage.Execute(ctx, mustJSON(t, map[string]any{
		"operation": "setStatus", "containerType": "task", "id": taskID, "status": "in-progress",
	}))
	require.True(t, setStatus.Success)

	next := registry.Get("get_next_status")
	resp := next.Execute(ctx, mustJSON(t, map[string]any{"containerType": "task", "id": taskID}))
	require.True(t, resp.Success)
	rec := resp.Data.(recommendationDTO)
	require.Equal(t, "Ready", rec.Kind)
	require.Equal(t, "in-review", rec.RecommendedStatus)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
