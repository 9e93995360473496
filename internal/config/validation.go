package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every structural problem found in a
// configuration so the user can fix them all in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid configuration: %s", e.Problems[0])
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Validate checks structural well-formedness of the dependency configuration.
// It is purely a predicate: it never mutates the config and reports every
// violation found, not just the first.
func Validate(cfg *Config) error {
	v := &configValidator{config: cfg}
	return v.validate()
}

type configValidator struct {
	config   *Config
	problems []string
}

func (cv *configValidator) validate() error {
	if cv.config.Deps.Len() == 0 {
		cv.problemf("at least one dependency must be configured")
	}
	for _, key := range cv.config.Deps.Keys() {
		dep, _ := cv.config.Deps.Get(key)
		cv.validateRequired(dep)
		cv.validatePin(dep)
		cv.validateEdges(dep)
	}
	if len(cv.problems) > 0 {
		return &ValidationError{Problems: cv.problems}
	}
	return nil
}

func (cv *configValidator) problemf(format string, args ...any) {
	cv.problems = append(cv.problems, fmt.Sprintf(format, args...))
}

// validateRequired checks presence of per-dependency required fields.
func (cv *configValidator) validateRequired(dep *Dependency) {
	if dep.Name == "" {
		cv.problemf("dependency %s: name is required", dep.Key)
	}
	if dep.Git.URL == "" {
		cv.problemf("dependency %s: git.url is required", dep.Key)
	}
	if dep.Git.Shallow == nil {
		cv.problemf("dependency %s: git.shallow must be set (true or false)", dep.Key)
	}
	if dep.Git.InitSubmodules == nil {
		cv.problemf("dependency %s: git.init_submodules must be set (true or false)", dep.Key)
	}
}

// validatePin enforces that exactly one of default_version/branch is set.
func (cv *configValidator) validatePin(dep *Dependency) {
	hasVersion := dep.DefaultVersion != nil
	hasBranch := dep.Branch != nil
	switch {
	case !hasVersion && !hasBranch:
		cv.problemf("dependency %s: one of default_version or branch must be set", dep.Key)
	case hasVersion && hasBranch:
		cv.problemf("dependency %s: default_version and branch are mutually exclusive", dep.Key)
	}
}

// validateEdges checks that every declared dependency edge names an existing key.
func (cv *configValidator) validateEdges(dep *Dependency) {
	for _, ref := range dep.Deps {
		if _, ok := cv.config.Deps.Get(ref); !ok {
			cv.problemf("dependency %s: deps references unknown dependency %q", dep.Key, ref)
		}
	}
}
