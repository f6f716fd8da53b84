package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/session"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakeclock"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakefs"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakepty"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// --- Test helpers ---

type testServer struct {
	*Server
	spawner *fakepty.Spawner
	clock   *fakeclock.Clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	fs := fakefs.New()
	fs.SetEnv("SHELL", "/bin/zsh")
	fs.SetEnv("PATH", "/usr/bin:/bin")

	spawner := fakepty.NewSpawner()
	clock := fakeclock.New(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	registry := session.NewRegistry(cfg,
		session.WithSpawner(spawner),
		session.WithClock(clock),
		session.WithFileSystem(fs),
	)

	srv := NewServer(cfg, "test", WithRegistry(registry))
	t.Cleanup(srv.Shutdown)
	return &testServer{Server: srv, spawner: spawner, clock: clock}
}

func makeRequest(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	tc, ok := mcpgo.AsTextContent(result.Content[0])
	if !ok {
		return ""
	}
	return tc.Text
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult) map[string]any {
	t.Helper()
	text := resultText(result)
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		t.Fatalf("failed to parse result JSON: %v (text: %s)", err, text)
	}
	return m
}

type toolHandler func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)

// call invokes a handler; handlers report failures as tool errors, never
// as Go errors.
func call(t *testing.T, h toolHandler, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	result, err := h(t.Context(), makeRequest(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func mustSucceed(t *testing.T, h toolHandler, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	result := call(t, h, args)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	return result
}

func mustFail(t *testing.T, h toolHandler, args map[string]any) string {
	t.Helper()
	result := call(t, h, args)
	if !result.IsError {
		t.Fatalf("expected tool error, got: %s", resultText(result))
	}
	return resultText(result)
}

// openWindowAndPane opens a window and creates pane id in it.
func (ts *testServer) openWindowAndPane(t *testing.T, id string) (int, *fakepty.Process) {
	t.Helper()
	res := mustSucceed(t, ts.handleWindowOpen, nil)
	windowID := int(resultJSON(t, res)["window_id"].(float64))

	mustSucceed(t, ts.handlePaneCreate, map[string]any{
		"pane_id":   id,
		"window_id": float64(windowID),
	})
	return windowID, ts.spawner.Last()
}

// collectEvents drains the window until cond holds for the events seen so
// far, or a second passes.
func (ts *testServer) collectEvents(t *testing.T, windowID int, cond func([]any) bool) []any {
	t.Helper()
	var events []any
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		res := mustSucceed(t, ts.handleWindowEvents, map[string]any{
			"window_id": float64(windowID),
		})
		events = append(events, resultJSON(t, res)["events"].([]any)...)
		if cond(events) {
			return events
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for events, got %v", events)
	return nil
}

func hasEvent(events []any, channel string) bool {
	for _, e := range events {
		if e.(map[string]any)["channel"] == channel {
			return true
		}
	}
	return false
}
