// Package worker defines the build-worker capability invoked for each
// dependency once its repository is prepared, and the registry that resolves
// configured runner paths to concrete implementations at startup.
package worker

import (
	"context"
)

// Options are the inputs handed to a build worker. The worker never performs
// Git operations itself; RepoRoot is already at the pinned ref.
type Options struct {
	RepoRoot      string
	ArtifactsRoot string
	Force         bool
	// Env is the complete environment for subprocesses the worker spawns,
	// including the tool overlay. Workers must not mutate process-global
	// environment state.
	Env []string
}

// Result is what a worker reports back on success.
type Result struct {
	OK      bool
	Name    string
	Skipped bool
	Version string
}

// Worker builds one dependency from a prepared source tree.
type Worker interface {
	Build(ctx context.Context, opts Options) (Result, error)
}

// WorkerError signals a fatal failure of the external build step. It aborts
// the whole run.
type WorkerError struct {
	Dep     string
	Runner  string
	Message string
	Err     error
}

func (e *WorkerError) Error() string {
	if e.Err != nil {
		return "build worker " + e.Runner + " failed for " + e.Dep + ": " + e.Message + ": " + e.Err.Error()
	}
	return "build worker " + e.Runner + " failed for " + e.Dep + ": " + e.Message
}

func (e *WorkerError) Unwrap() error { return e.Err }
