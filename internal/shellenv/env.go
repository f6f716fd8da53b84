// Package shellenv builds the environment handed to spawned shells and
// resolves the PATH a real login shell would see.
package shellenv

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Sanitize returns environ without the variables whose names match any of
// the glob patterns. Invalid patterns are logged and skipped.
func Sanitize(environ []string, patterns []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if matchesAny(key, patterns) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, key)
		if err != nil {
			slog.Warn("invalid env strip pattern", slog.String("pattern", p), slog.String("error", err.Error()))
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Lookup returns the value of key in environ.
func Lookup(environ []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return environ[i][len(prefix):], true
		}
	}
	return "", false
}

// Set returns environ with key set to value, replacing every prior entry
// for key. Order of the other entries is preserved.
func Set(environ []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, prefix+value)
}

// Merge applies every entry of overrides on top of environ.
func Merge(environ []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		environ = Set(environ, k, overrides[k])
	}
	return environ
}

// MergePath joins resolved and ambient PATH values: every resolved entry in
// order, then the ambient entries resolved does not already contain. An
// empty resolved value yields ambient unchanged.
func MergePath(resolved, ambient string) string {
	if resolved == "" {
		return ambient
	}
	dirs := strings.Split(resolved, ":")
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[d] = true
	}
	if ambient != "" {
		for _, d := range strings.Split(ambient, ":") {
			if !seen[d] {
				dirs = append(dirs, d)
				seen[d] = true
			}
		}
	}
	return strings.Join(dirs, ":")
}
