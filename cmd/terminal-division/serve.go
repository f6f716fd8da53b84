package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/acolita/terminal-division/internal/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions to an MCP client over stdio",
	Long: `Run an MCP server on stdin/stdout.

Clients open windows (event queues), create panes in them and drain
pty:data, pty:exit, pty:cwd, pty:processName, pty:shellName and
pty:promptStatus events with window_events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("starting terminal-division",
		slog.String("version", Version),
		slog.String("resolved_path", a.resolver.Path()),
	)

	server := mcp.NewServer(a.cfg, Version, mcp.WithRegistry(a.registry))
	defer server.Shutdown()
	a.watch(server.UpdateConfig)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("server error", slog.String("error", err.Error()))
			return err
		}
		return nil
	}
}
