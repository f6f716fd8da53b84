package attach

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/acolita/terminal-division/internal/ports"
	"github.com/charmbracelet/huh"
)

// PickDir asks for the pane's starting directory, prefilled with start.
func PickDir(fs ports.FileSystem, start string) (string, error) {
	dir := start

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting directory").
				Description("The shell starts here. ~ expands to your home directory").
				Value(&dir).
				Validate(func(s string) error {
					_, err := resolveDir(fs, s)
					return err
				}),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("directory form: %w", err)
	}
	return resolveDir(fs, dir)
}

// resolveDir expands ~ and checks that the result is a directory.
func resolveDir(fs ports.FileSystem, dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("directory is required")
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := fs.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	fi, err := fs.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", dir, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return filepath.Clean(dir), nil
}
