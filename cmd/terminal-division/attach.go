package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/terminal-division/internal/adapters/realclock"
	"github.com/acolita/terminal-division/internal/adapters/realfs"
	"github.com/acolita/terminal-division/internal/attach"
	localpty "github.com/acolita/terminal-division/internal/pty"
	"github.com/acolita/terminal-division/internal/recording"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	attachCwd     string
	attachPickDir bool
	attachRecord  string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Run one session in this terminal",
	Long: `Start a login shell with shell integration and bridge it to this terminal.

Key bindings:
  Ctrl-_   undo the last input line edit
  Ctrl-^   redo
  Ctrl-X   clear the input line (undoable)`,
	Args: cobra.NoArgs,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachCwd, "cwd", "", "Starting directory (default: home)")
	attachCmd.Flags().BoolVar(&attachPickDir, "pick-dir", false, "Choose the starting directory in a form")
	attachCmd.Flags().StringVar(&attachRecord, "record", "", "Record the session to an asciicast v2 file")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cwd := attachCwd
	if attachPickDir {
		start := cwd
		if start == "" {
			start, _ = os.Getwd()
		}
		picked, err := attach.PickDir(realfs.New(), start)
		if err != nil {
			return err
		}
		cwd = picked
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	var rec *recording.Recorder
	if attachRecord != "" {
		rec, err = openRecording(attachRecord, a)
		if err != nil {
			a.Close()
			return err
		}
	}

	code, err := attach.Run(ctx, a.registry, attach.Options{
		PaneID:   fmt.Sprintf("attach-%d", os.Getpid()),
		Cwd:      cwd,
		In:       os.Stdin,
		Out:      os.Stdout,
		Terminal: os.Stdin,
		Recorder: rec,
	})
	a.Close()
	if rec != nil {
		rec.Close()
	}
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// openRecording creates path and writes the asciicast header sized to the
// terminal.
func openRecording(path string, a *app) (*recording.Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	cols, rows := int(a.cfg.Session.Cols), int(a.cfg.Session.Rows)
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		cols, rows = w, h
	}
	shell := a.cfg.Shell.Path
	if shell == "" {
		shell = localpty.DetectShell(os.Getenv)
	}

	rec, err := recording.NewRecorder(f, recording.Header{
		Width:  cols,
		Height: rows,
		Title:  "terminal-division attach",
		Env: map[string]string{
			"SHELL": shell,
			"TERM":  a.cfg.Shell.Term,
		},
	}, realclock.New())
	if err != nil {
		f.Close()
		return nil, err
	}
	return rec, nil
}
