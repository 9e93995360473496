package graph

import (
	"fmt"
	"strings"
)

// SkipReference records one active dependency that declares an edge to a
// skipped dependency.
type SkipReference struct {
	Dependent   string
	SkippedDeps []string
}

// SkipReferenceError reports every active dependency whose declared deps
// include a skipped dependency. The graph is built over active nodes only,
// so silently dropping such an edge would hide a user mistake.
type SkipReferenceError struct {
	Violations []SkipReference
}

func (e *SkipReferenceError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s -> %s", v.Dependent, strings.Join(v.SkippedDeps, ", ")))
	}
	return fmt.Sprintf("active dependencies reference skipped dependencies: %s", strings.Join(parts, "; "))
}

// CircularDependencyError reports every cycle found among active
// dependencies so the user can fix them all in one pass.
type CircularDependencyError struct {
	Cycles [][]string
}

func (e *CircularDependencyError) Error() string {
	paths := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		paths = append(paths, strings.Join(c, " -> "))
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(paths, "; "))
}
