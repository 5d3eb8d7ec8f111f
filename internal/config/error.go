package config

import (
	"fmt"
	"strings"
)

// ConfigError aggregates configuration errors found while loading and
// validating. It is fatal: the run aborts before any processing.
type ConfigError struct {
	Path    string   // Config file path, empty for flag-only problems.
	Missing []string // Unresolved ${VAR} references.
	Errors  []string // Validation errors.
}

func (e *ConfigError) Error() string {
	if len(e.Missing) == 0 && len(e.Errors) == 0 {
		return ""
	}

	var parts []string
	if e.Path != "" {
		parts = append(parts, e.Path+":")
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Errors) == 1 && len(e.Missing) == 0 {
		parts = append(parts, e.Errors[0])
		return strings.Join(parts, " ")
	}
	if len(e.Errors) > 0 {
		parts = append(parts, "validation failed:")
		for _, msg := range e.Errors {
			parts = append(parts, "  - "+msg)
		}
	}
	return strings.Join(parts, "\n")
}

// HasErrors returns true if there are any errors.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
