// terminal-division multiplexes shell sessions with shell integration,
// prompt status decoding and undoable input lines.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
