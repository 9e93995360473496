package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"git.home.luguber.info/inful/depforge/internal/logfields"
)

// ScriptWorker runs a build script with the prepared source tree as working
// directory. The script receives the artifacts directory and force flag via
// DEPFORGE_* variables on top of the provided environment overlay.
type ScriptWorker struct {
	Name   string
	Script string
}

// NewScriptWorker creates a worker for the given script path. Relative paths
// are resolved against the current working directory at build time.
func NewScriptWorker(name, script string) *ScriptWorker {
	return &ScriptWorker{Name: name, Script: script}
}

// Build executes the script synchronously. A non-zero exit is a fatal build
// error; stdout/stderr are streamed to the parent process.
func (w *ScriptWorker) Build(ctx context.Context, opts Options) (Result, error) {
	script, err := filepath.Abs(w.Script)
	if err != nil {
		return Result{}, &WorkerError{Dep: w.Name, Runner: w.Script, Message: "resolve script path", Err: err}
	}
	if _, err := os.Stat(script); err != nil {
		return Result{}, &WorkerError{Dep: w.Name, Runner: w.Script, Message: "script not found", Err: err}
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(env,
		"DEPFORGE_REPO_ROOT="+opts.RepoRoot,
		"DEPFORGE_ARTIFACTS_ROOT="+opts.ArtifactsRoot,
		fmt.Sprintf("DEPFORGE_FORCE=%v", opts.Force),
	)

	cmd := exec.CommandContext(ctx, script)
	cmd.Dir = opts.RepoRoot
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Info("Running build script", logfields.Name(w.Name), logfields.Runner(w.Script), logfields.Path(opts.RepoRoot))
	if err := cmd.Run(); err != nil {
		return Result{}, &WorkerError{Dep: w.Name, Runner: w.Script, Message: "script exited with failure", Err: err}
	}

	return Result{OK: true, Name: w.Name}, nil
}
