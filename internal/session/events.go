package session

// Event channels delivered to windows.
const (
	ChannelData         = "pty:data"
	ChannelExit         = "pty:exit"
	ChannelCwd          = "pty:cwd"
	ChannelProcessName  = "pty:processName"
	ChannelShellName    = "pty:shellName"
	ChannelPromptStatus = "pty:promptStatus"
)

// DataEvent carries a chunk of PTY output.
type DataEvent struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// ExitEvent reports that the shell exited. ExitCode is -1 when it was
// killed.
type ExitEvent struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exitCode"`
}

// CwdEvent reports a new working directory.
type CwdEvent struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
}

// ProcessNameEvent reports a change of the foreground process.
type ProcessNameEvent struct {
	ID          string `json:"id"`
	ProcessName string `json:"processName"`
}

// ShellNameEvent reports the shell a session runs.
type ShellNameEvent struct {
	ID        string `json:"id"`
	ShellName string `json:"shellName"`
}

// PromptStatusEvent colors the indicator of the prompt on Line.
type PromptStatusEvent struct {
	ID       string `json:"id"`
	Line     int    `json:"line"`
	Status   string `json:"status"`
	ExitCode int    `json:"exitCode"`
	Color    string `json:"color"`
}
