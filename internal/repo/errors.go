package repo

import (
	"fmt"
	"strings"
)

// Steps of the repository preparation state machine, used in errors.
const (
	StepForceReset = "force-reset"
	StepClone      = "clone"
	StepCheckout   = "checkout"
	StepSubmodules = "submodules"
)

// Ref kinds recorded in checkout attempts.
const (
	RefKindTag    = "tag"
	RefKindBranch = "branch"
)

// Attempt records one failed checkout candidate: the ref that was tried, how
// it was interpreted, which step failed, and the captured output.
type Attempt struct {
	Ref    string
	Kind   string
	Step   string
	Output string
}

// RepositoryError is fatal for the dependency and the whole run. It carries
// the full list of attempted refs so a failure can be diagnosed without
// re-running.
type RepositoryError struct {
	Dep      string
	Step     string
	Attempts []Attempt
	Err      error
}

func (e *RepositoryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "repository preparation failed for %s at step %s: %v", e.Dep, e.Step, e.Err)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  tried %s %q (%s): %s", a.Kind, a.Ref, a.Step, a.Output)
	}
	return b.String()
}

func (e *RepositoryError) Unwrap() error { return e.Err }
