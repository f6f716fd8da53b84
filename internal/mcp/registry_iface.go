package mcp

import (
	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/session"
)

// paneRegistry abstracts the session registry for testing.
type paneRegistry interface {
	// Lifecycle
	Create(id string, windowID int, initialCwd string) bool
	Kill(id string)
	KillAllForWindow(windowID int)
	KillAll()

	// Input
	Write(id string, data []byte)
	Input(id string, data string)
	CompositionStart(id string)
	CompositionEnd(id string, text string)
	Undo(id string) bool
	Redo(id string) bool
	ClearLine(id string) bool
	Resize(id string, cols, rows uint16)

	// Windows
	RegisterWindow(w session.Window)
	UnregisterWindow(windowID int)
	Broadcast(channel string, payload any)
	BroadcastExcept(channel string, payload any, windowID int)

	// Introspection
	Info(id string) (session.Info, error)
	List() []session.Info

	UpdateConfig(cfg *config.Config)
}

// Verify the registry satisfies the interface at compile time.
var _ paneRegistry = (*session.Registry)(nil)
