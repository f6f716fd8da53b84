package ports

import "io/fs"

// FileSystem abstracts the filesystem and process environment touched when
// preparing a shell: the integration directory, working-directory checks,
// and the ambient environment handed to spawned shells.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Stat returns file info for the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// RemoveAll removes path and any children it contains.
	RemoveAll(path string) error

	// TempDir returns the default directory for temporary files.
	TempDir() string

	// UserHomeDir returns the current user's home directory.
	UserHomeDir() (string, error)

	// Getenv retrieves the value of the environment variable named by the key.
	Getenv(key string) string

	// Environ returns the process environment as KEY=VALUE pairs.
	Environ() []string
}
