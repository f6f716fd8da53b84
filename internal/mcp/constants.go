package mcp

// Common parameter descriptions and error messages used across MCP tools.
const (
	// Tool parameter descriptions
	descPaneID   = "The pane (session) ID"
	descWindowID = "The window ID returned by window_open"

	// Common error messages
	errPaneIDRequired   = "pane_id is required"
	errWindowIDRequired = "window_id is required"
	errPaneNotFound     = "pane not found: %s"
	errWindowNotFound   = "window not found: %d"

	// Event queue sizing
	defaultQueueSize = 1024
	maxQueueSize     = 65536
)
