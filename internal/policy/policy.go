// Package policy applies safety checks around script execution: a
// denylist scanner that rejects dangerous script fragments before they
// reach the interpreter, and a path sandbox for file-touching tools.
//
// Deny-first evaluation: denied patterns are checked before any allow
// logic. The execution engine itself is policy-free; every caller is
// expected to run its script through a Guard first.
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrDenied is the sentinel wrapped by every policy rejection.
var ErrDenied = errors.New("denied by policy")

// defaultDeniedPatterns are script fragments rejected regardless of
// configuration. They cover shell escape hatches and destructive
// System Events automation that no connector legitimately needs.
var defaultDeniedPatterns = []string{
	"do shell script",
	"system events\" to delete",
	"keystroke password",
	"set volume output muted",
	"shutdown",
	"restart",
}

// Guard scans scripts against a denylist. Safe for concurrent use;
// the pattern set is fixed at construction.
type Guard struct {
	patterns []string // lowercased
	logger   *slog.Logger
}

// NewGuard creates a Guard combining the built-in denied patterns with
// extra config-supplied ones.
func NewGuard(extra []string, logger *slog.Logger) *Guard {
	patterns := make([]string, 0, len(defaultDeniedPatterns)+len(extra))
	for _, p := range defaultDeniedPatterns {
		patterns = append(patterns, strings.ToLower(p))
	}
	for _, p := range extra {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Guard{patterns: patterns, logger: logger}
}

// CheckScript returns nil if the script contains no denied pattern.
// Matching is a case-insensitive substring check.
func (g *Guard) CheckScript(script string) error {
	lower := strings.ToLower(script)
	for _, p := range g.patterns {
		if strings.Contains(lower, p) {
			if g.logger != nil {
				g.logger.Warn("script rejected by denylist",
					slog.String("pattern", p),
					slog.Int("script_bytes", len(script)),
				)
			}
			return fmt.Errorf("%w: script contains denied pattern %q", ErrDenied, p)
		}
	}
	return nil
}

// PathGuard confines filesystem-touching tools to a set of allowed
// root directories.
type PathGuard struct {
	roots []string // cleaned absolute roots
}

// NewPathGuard creates a PathGuard. Empty roots means every path is
// rejected; file tools must be explicitly granted directories.
func NewPathGuard(roots []string) *PathGuard {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	return &PathGuard{roots: cleaned}
}

// Resolve cleans the path and validates it sits under one of the
// allowed roots. Relative paths are resolved against the first root.
// Returns the resolved absolute path.
func (pg *PathGuard) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrDenied)
	}
	if len(pg.roots) == 0 {
		return "", fmt.Errorf("%w: no filesystem roots are allowed", ErrDenied)
	}

	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(pg.roots[0], path))
	}

	for _, root := range pg.roots {
		rel, err := filepath.Rel(root, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: path %q is outside the allowed roots", ErrDenied, path)
}
