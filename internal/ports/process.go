package ports

import "io"

// SpawnOptions describes a shell process to start on a new pseudo-terminal.
type SpawnOptions struct {
	Shell string   // executable path
	Args  []string // argv after the executable
	Dir   string   // working directory
	Env   []string // complete environment, KEY=VALUE
	Cols  uint16
	Rows  uint16
}

// Process is a shell running on a pseudo-terminal.
type Process interface {
	io.Reader // PTY output
	io.Writer // PTY input

	// Resize changes the PTY window size.
	Resize(cols, rows uint16) error

	// ForegroundProcessName returns the name of the process group currently
	// in the foreground of the PTY.
	ForegroundProcessName() (string, error)

	// Wait blocks until the shell exits and returns its exit code.
	Wait() (int, error)

	// Kill terminates the shell and releases the PTY.
	Kill() error
}

// Spawner starts shell processes.
type Spawner interface {
	Spawn(opts SpawnOptions) (Process, error)
}
