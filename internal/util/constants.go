// Package util provides common utility functions and constants used across
// sshfwd. This package is intentionally kept dependency-free (no imports
// from other internal/* packages) to serve as a shared foundation without
// introducing circular dependencies.
package util

const (
	// MaxIncludeDepth is the maximum nesting level for SSH config Include directives.
	// This limit prevents infinite recursion when config files form an include cycle
	// that escapes the cycle-detection logic (e.g., via symlinks that resolve to
	// different absolute paths). The value of 16 is generous enough for any
	// reasonable config hierarchy while still providing a safety bound.
	// Used by: internal/sshconfig/parser.go (parseRecursive).
	MaxIncludeDepth = 16

	// DefaultRefreshSeconds is the fallback interval (in seconds) for the
	// dashboard's periodic render timer. This value is used when the user's
	// config.yaml has an invalid or missing refresh_seconds value, or the
	// application config has not been loaded yet.
	// Not referenced directly: appconfig.Default writes the same value as a
	// literal, and internal/ui's tick loop falls back to appconfig.Default.
	DefaultRefreshSeconds = 3
)
