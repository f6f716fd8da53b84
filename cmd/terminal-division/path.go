package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var pathList bool

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the PATH given to new sessions",
	Long: `Resolve PATH from an interactive login shell and merge it with the
inherited PATH, the same way sessions are started.`,
	Args: cobra.NoArgs,
	RunE: runPath,
}

func init() {
	pathCmd.Flags().BoolVar(&pathList, "list", false, "Print one entry per line")
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	merged := a.resolver.MergedPath(os.Getenv("PATH"))
	out := cmd.OutOrStdout()
	if !pathList {
		fmt.Fprintln(out, merged)
		return nil
	}
	for _, entry := range strings.Split(merged, ":") {
		if entry != "" {
			fmt.Fprintln(out, entry)
		}
	}
	return nil
}
