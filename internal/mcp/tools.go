package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/acolita/terminal-division/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(windowOpenTool(), s.handleWindowOpen)
	s.mcpServer.AddTool(windowCloseTool(), s.handleWindowClose)
	s.mcpServer.AddTool(windowEventsTool(), s.handleWindowEvents)

	s.mcpServer.AddTool(paneCreateTool(), s.handlePaneCreate)
	s.mcpServer.AddTool(paneWriteTool(), s.handlePaneWrite)
	s.mcpServer.AddTool(paneInputTool(), s.handlePaneInput)
	s.mcpServer.AddTool(paneComposeTool(), s.handlePaneCompose)
	s.mcpServer.AddTool(paneResizeTool(), s.handlePaneResize)
	s.mcpServer.AddTool(paneKillTool(), s.handlePaneKill)
	s.mcpServer.AddTool(paneUndoTool(), s.handlePaneUndo)
	s.mcpServer.AddTool(paneRedoTool(), s.handlePaneRedo)
	s.mcpServer.AddTool(paneClearLineTool(), s.handlePaneClearLine)
	s.mcpServer.AddTool(paneListTool(), s.handlePaneList)

	s.mcpServer.AddTool(broadcastTool(), s.handleBroadcast)
}

// Tool definitions

func windowOpenTool() mcp.Tool {
	return mcp.NewTool("window_open",
		mcp.WithDescription("Open a window: an event queue that receives the output and events of the panes created in it"),
		mcp.WithNumber("queue_size",
			mcp.Description("Maximum queued events before new ones are dropped (default: 1024)"),
		),
	)
}

func windowCloseTool() mcp.Tool {
	return mcp.NewTool("window_close",
		mcp.WithDescription("Close a window and kill every pane it owns"),
		mcp.WithNumber("window_id",
			mcp.Required(),
			mcp.Description(descWindowID),
		),
	)
}

func windowEventsTool() mcp.Tool {
	return mcp.NewTool("window_events",
		mcp.WithDescription(`Drain queued events of a window.

Channels: pty:data {id, data}, pty:exit {id, exitCode}, pty:cwd {id, cwd},
pty:processName {id, processName}, pty:shellName {id, shellName},
pty:promptStatus {id, line, status, exitCode, color}, plus broadcast channels.`),
		mcp.WithNumber("window_id",
			mcp.Required(),
			mcp.Description(descWindowID),
		),
		mcp.WithNumber("max",
			mcp.Description("Maximum number of events to return (default: all queued)"),
		),
	)
}

func paneCreateTool() mcp.Tool {
	return mcp.NewTool("pane_create",
		mcp.WithDescription("Spawn a login shell with shell integration in a new pane"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description("Caller-chosen pane ID, unique among live panes"),
		),
		mcp.WithNumber("window_id",
			mcp.Required(),
			mcp.Description(descWindowID),
		),
		mcp.WithString("cwd",
			mcp.Description("Starting directory (default: home; also used when the directory does not exist)"),
		),
	)
}

func paneWriteTool() mcp.Tool {
	return mcp.NewTool("pane_write",
		mcp.WithDescription("Write raw bytes to a pane. Large writes are sent as a bracketed paste in paced frames"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
		mcp.WithString("data",
			mcp.Required(),
			mcp.Description("The bytes to write"),
		),
		mcp.WithBoolean("base64",
			mcp.Description("data is base64 encoded (default: false)"),
		),
	)
}

func paneInputTool() mcp.Tool {
	return mcp.NewTool("pane_input",
		mcp.WithDescription("Send keystrokes to a pane, tracking them in the pane's undoable input line"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
		mcp.WithString("data",
			mcp.Required(),
			mcp.Description("Keystroke bytes, e.g. 'ls', '\\r' for Enter, '\\x7f' for Backspace"),
		),
	)
}

func paneComposeTool() mcp.Tool {
	return mcp.NewTool("pane_compose",
		mcp.WithDescription("Report an input method composition for a pane"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
		mcp.WithString("phase",
			mcp.Required(),
			mcp.Description("'start' when composition begins, 'end' when it is committed"),
		),
		mcp.WithString("text",
			mcp.Description("The committed text (phase 'end')"),
		),
	)
}

func paneResizeTool() mcp.Tool {
	return mcp.NewTool("pane_resize",
		mcp.WithDescription("Change a pane's terminal size"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
		mcp.WithNumber("cols",
			mcp.Required(),
			mcp.Description("Columns"),
		),
		mcp.WithNumber("rows",
			mcp.Required(),
			mcp.Description("Rows"),
		),
	)
}

func paneKillTool() mcp.Tool {
	return mcp.NewTool("pane_kill",
		mcp.WithDescription("Kill a pane's shell. A pty:exit event still follows"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
	)
}

func paneUndoTool() mcp.Tool {
	return mcp.NewTool("pane_undo",
		mcp.WithDescription("Restore the previous state of the pane's input line"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
	)
}

func paneRedoTool() mcp.Tool {
	return mcp.NewTool("pane_redo",
		mcp.WithDescription("Reapply an undone input line state"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
	)
}

func paneClearLineTool() mcp.Tool {
	return mcp.NewTool("pane_clear_line",
		mcp.WithDescription("Clear the pane's input line as one undoable step"),
		mcp.WithString("pane_id",
			mcp.Required(),
			mcp.Description(descPaneID),
		),
	)
}

func paneListTool() mcp.Tool {
	return mcp.NewTool("pane_list",
		mcp.WithDescription("List live panes with their cwd, foreground process and input line state"),
		mcp.WithNumber("window_id",
			mcp.Description("Only list panes of this window"),
		),
	)
}

func broadcastTool() mcp.Tool {
	return mcp.NewTool("broadcast",
		mcp.WithDescription("Send an event to every open window"),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Event channel name"),
		),
		mcp.WithString("payload",
			mcp.Description("Event payload as JSON (default: null)"),
		),
		mcp.WithNumber("except_window_id",
			mcp.Description("Skip this window"),
		),
	)
}

// Tool handlers

func (s *Server) handleWindowOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	size := mcp.ParseInt(req, "queue_size", defaultQueueSize)
	if size <= 0 || size > maxQueueSize {
		return mcp.NewToolResultError(fmt.Sprintf("queue_size must be between 1 and %d", maxQueueSize)), nil
	}

	w := s.openWindow(size)
	slog.Info("window opened", slog.Int("window_id", w.ID()))

	return jsonResult(map[string]any{
		"window_id":  w.ID(),
		"queue_size": size,
	})
}

func (s *Server) handleWindowClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windowID := mcp.ParseInt(req, "window_id", 0)
	if windowID <= 0 {
		return mcp.NewToolResultError(errWindowIDRequired), nil
	}

	slog.Info("closing window", slog.Int("window_id", windowID))

	if err := s.closeWindow(windowID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Window closed"), nil
}

func (s *Server) handleWindowEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windowID := mcp.ParseInt(req, "window_id", 0)
	max := mcp.ParseInt(req, "max", 0)
	if windowID <= 0 {
		return mcp.NewToolResultError(errWindowIDRequired), nil
	}

	w, err := s.window(windowID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events := w.Drain(max)
	if events == nil {
		events = []session.Message{}
	}
	return jsonResult(map[string]any{
		"window_id": windowID,
		"events":    events,
		"dropped":   w.Dropped(),
	})
}

func (s *Server) handlePaneCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")
	windowID := mcp.ParseInt(req, "window_id", 0)
	cwd := mcp.ParseString(req, "cwd", "")

	if paneID == "" {
		return mcp.NewToolResultError(errPaneIDRequired), nil
	}
	if windowID <= 0 {
		return mcp.NewToolResultError(errWindowIDRequired), nil
	}
	if _, err := s.window(windowID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("creating pane",
		slog.String("pane_id", paneID),
		slog.Int("window_id", windowID),
	)

	if !s.registry.Create(paneID, windowID, cwd) {
		return mcp.NewToolResultError(fmt.Sprintf(
			"pane %s was not created: the ID is in use, the pane limit is reached or the shell failed to start", paneID,
		)), nil
	}

	info, err := s.registry.Info(paneID)
	if err != nil {
		// The shell exited before we could look at it.
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *Server) handlePaneWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")
	data := mcp.ParseString(req, "data", "")
	encoded := mcp.ParseBoolean(req, "base64", false)

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}

	payload := []byte(data)
	if encoded {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("decode base64 data: %v", err)), nil
		}
		payload = decoded
	}

	slog.Debug("writing to pane",
		slog.String("pane_id", paneID),
		slog.Int("bytes", len(payload)),
	)

	s.registry.Write(paneID, payload)
	return jsonResult(map[string]any{"pane_id": paneID, "bytes": len(payload)})
}

func (s *Server) handlePaneInput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")
	data := mcp.ParseString(req, "data", "")

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}

	s.registry.Input(paneID, data)
	return s.lineResult(paneID)
}

func (s *Server) handlePaneCompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")
	phase := mcp.ParseString(req, "phase", "")
	text := mcp.ParseString(req, "text", "")

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}

	switch phase {
	case "start":
		s.registry.CompositionStart(paneID)
	case "end":
		s.registry.CompositionEnd(paneID, text)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("phase must be 'start' or 'end' (got %q)", phase)), nil
	}
	return s.lineResult(paneID)
}

func (s *Server) handlePaneResize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")
	cols := mcp.ParseInt(req, "cols", 0)
	rows := mcp.ParseInt(req, "rows", 0)

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}
	if cols <= 0 || rows <= 0 || cols > 0xffff || rows > 0xffff {
		return mcp.NewToolResultError(fmt.Sprintf("invalid size %dx%d", cols, rows)), nil
	}

	s.registry.Resize(paneID, uint16(cols), uint16(rows))
	return mcp.NewToolResultText(fmt.Sprintf("Resized to %dx%d", cols, rows)), nil
}

func (s *Server) handlePaneKill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}

	slog.Info("killing pane", slog.String("pane_id", paneID))

	s.registry.Kill(paneID)
	return mcp.NewToolResultText("Pane killed"), nil
}

func (s *Server) handlePaneUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleLineEdit(req, s.registry.Undo)
}

func (s *Server) handlePaneRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleLineEdit(req, s.registry.Redo)
}

func (s *Server) handlePaneClearLine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleLineEdit(req, s.registry.ClearLine)
}

// handleLineEdit runs an undo, redo or clear and reports the resulting line.
func (s *Server) handleLineEdit(req mcp.CallToolRequest, edit func(id string) bool) (*mcp.CallToolResult, error) {
	paneID := mcp.ParseString(req, "pane_id", "")

	if result := s.requirePane(paneID); result != nil {
		return result, nil
	}

	applied := edit(paneID)
	info, err := s.registry.Info(paneID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"pane_id":  paneID,
		"applied":  applied,
		"line":     info.Line,
		"can_undo": info.CanUndo,
		"can_redo": info.CanRedo,
	})
}

func (s *Server) handlePaneList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windowID := mcp.ParseInt(req, "window_id", 0)

	panes := []session.Info{}
	for _, info := range s.registry.List() {
		if windowID > 0 && info.WindowID != windowID {
			continue
		}
		panes = append(panes, info)
	}

	return jsonResult(map[string]any{
		"panes": panes,
		"count": len(panes),
	})
}

func (s *Server) handleBroadcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel := mcp.ParseString(req, "channel", "")
	raw := mcp.ParseString(req, "payload", "")
	except := mcp.ParseInt(req, "except_window_id", 0)

	if channel == "" {
		return mcp.NewToolResultError("channel is required"), nil
	}

	var payload any
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("payload is not valid JSON: %v", err)), nil
		}
	}

	if except > 0 {
		s.registry.BroadcastExcept(channel, payload, except)
	} else {
		s.registry.Broadcast(channel, payload)
	}
	return mcp.NewToolResultText("Broadcast sent"), nil
}

// requirePane returns an error result if paneID is empty or unknown.
func (s *Server) requirePane(paneID string) *mcp.CallToolResult {
	if paneID == "" {
		return mcp.NewToolResultError(errPaneIDRequired)
	}
	if _, err := s.registry.Info(paneID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(errPaneNotFound, paneID))
	}
	return nil
}

func (s *Server) lineResult(paneID string) (*mcp.CallToolResult, error) {
	info, err := s.registry.Info(paneID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"pane_id":  paneID,
		"line":     info.Line,
		"can_undo": info.CanUndo,
		"can_redo": info.CanRedo,
	})
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
