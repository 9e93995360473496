// Package orchestrator drives a full build run: validate the configuration,
// resolve the dependency order, then prepare, build, and optionally publish
// each dependency in turn. The run is fail-fast: the first fatal error stops
// the loop, and the results collected so far are returned alongside it.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/depforge/internal/config"
	forgeerrors "git.home.luguber.info/inful/depforge/internal/errors"
	"git.home.luguber.info/inful/depforge/internal/graph"
	"git.home.luguber.info/inful/depforge/internal/logfields"
	"git.home.luguber.info/inful/depforge/internal/metrics"
	"git.home.luguber.info/inful/depforge/internal/release"
	"git.home.luguber.info/inful/depforge/internal/repo"
	"git.home.luguber.info/inful/depforge/internal/tools"
	"git.home.luguber.info/inful/depforge/internal/worker"
	"git.home.luguber.info/inful/depforge/internal/workspace"
)

// Preparer brings a dependency's repository to the pinned state.
type Preparer interface {
	Prepare(ctx context.Context, opts repo.Options) (*repo.State, error)
}

// RunOptions control one orchestration run.
type RunOptions struct {
	BuildRoot string
	Force     bool
	// CopyToReleases enables publication of each dependency's artifacts into
	// the releases tree after a successful build.
	CopyToReleases bool
	// Only restricts the run to the named dependency keys. The resolved
	// order is preserved; prerequisites outside the selection are not built.
	Only []string
}

// BuildResult is the outcome of one dependency within a run. Error is only
// set for run-fatal failures; a failed publication on a successful build is
// reported in PublishError instead.
type BuildResult struct {
	Key           string
	Name          string
	OK            bool
	Skipped       bool
	Version       string
	Branch        string
	Error         string
	PublishError  string
	ReleaseDir    string
	ReleasedFiles []string
	Duration      time.Duration
}

// Orchestrator executes build runs over a validated configuration.
type Orchestrator struct {
	cfg       *config.Config
	preparer  Preparer
	registry  *worker.Registry
	tools     tools.Loader
	publisher release.Publisher
	recorder  metrics.Recorder
}

// New wires an orchestrator. A nil recorder defaults to NoopRecorder.
func New(cfg *config.Config, preparer Preparer, registry *worker.Registry, toolLoader tools.Loader, publisher release.Publisher, recorder metrics.Recorder) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		cfg:       cfg,
		preparer:  preparer,
		registry:  registry,
		tools:     toolLoader,
		publisher: publisher,
		recorder:  recorder,
	}
}

// Run executes the build loop. It always returns the results collected so
// far, even when err is non-nil; the failing dependency is the last entry.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) ([]BuildResult, error) {
	runStart := time.Now()
	results, err := o.run(ctx, opts)
	o.recorder.ObserveRunDuration(time.Since(runStart))
	if err != nil {
		o.recorder.IncRunOutcome("failed")
	} else {
		o.recorder.IncRunOutcome("success")
	}
	return results, err
}

func (o *Orchestrator) run(ctx context.Context, opts RunOptions) ([]BuildResult, error) {
	if err := config.Validate(o.cfg); err != nil {
		return nil, forgeerrors.Wrap(err, forgeerrors.CategoryConfig, forgeerrors.SeverityFatal, "configuration is invalid")
	}

	order, err := graph.ResolveOrder(o.cfg)
	if err != nil {
		return nil, forgeerrors.Wrap(err, forgeerrors.CategoryGraph, forgeerrors.SeverityFatal, "dependency order could not be resolved")
	}
	order = o.applyOnlyFilter(order, opts.Only)
	slog.Info("Resolved build order", slog.Int("dependencies", len(order)))

	layout := workspace.NewLayout(opts.BuildRoot)
	if err := layout.Ensure(); err != nil {
		return nil, forgeerrors.Wrap(err, forgeerrors.CategoryFileSystem, forgeerrors.SeverityFatal, "workspace could not be created")
	}

	results := o.skippedResults(opts.Only)

	for _, key := range order {
		dep, ok := o.cfg.Deps.Get(key)
		if !ok {
			return results, forgeerrors.New(forgeerrors.CategoryInternal, forgeerrors.SeverityFatal,
				fmt.Sprintf("resolved order names unknown dependency %s", key))
		}

		res, err := o.buildOne(ctx, dep, layout, opts)
		results = append(results, res)
		o.recorder.ObserveDependencyDuration(dep.Key, res.Duration)
		if err != nil {
			o.recorder.IncDependencyOutcome("failed")
			return results, err
		}
		o.recorder.IncDependencyOutcome("success")
	}

	return results, nil
}

// buildOne runs the full stage sequence for a single dependency. Any error
// it returns is fatal for the run, except publication failures, which are
// logged and absorbed.
func (o *Orchestrator) buildOne(ctx context.Context, dep *config.Dependency, layout *workspace.Layout, opts RunOptions) (BuildResult, error) {
	start := time.Now()
	res := BuildResult{Key: dep.Key, Name: dep.DisplayName()}
	fail := func(err error) (BuildResult, error) {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		slog.Error("Dependency failed", logfields.Dep(dep.Key), logfields.Error(err))
		return res, err
	}

	slog.Info("Processing dependency", logfields.Dep(dep.Key), logfields.Stage("prepare"))

	// Resolve the worker before touching the repository so a misconfigured
	// runner fails without a clone.
	w, err := o.registry.Resolve(dep.Runner)
	if err != nil {
		return fail(forgeerrors.Wrap(err, forgeerrors.CategoryWorker, forgeerrors.SeverityFatal,
			fmt.Sprintf("no build worker for %s", dep.Key)))
	}

	state, err := o.preparer.Prepare(ctx, repo.Options{Dep: dep, GitRoot: layout.GitRoot(), Force: opts.Force})
	if err != nil {
		return fail(forgeerrors.Wrap(err, forgeerrors.CategoryGit, forgeerrors.SeverityFatal,
			fmt.Sprintf("repository preparation failed for %s", dep.Key)))
	}
	res.Version = state.Version
	res.Branch = state.Branch

	artifactsDir, err := layout.ArtifactsDir(dep.DisplayName())
	if err != nil {
		return fail(forgeerrors.Wrap(err, forgeerrors.CategoryFileSystem, forgeerrors.SeverityFatal,
			fmt.Sprintf("artifacts directory for %s", dep.Key)))
	}

	overlay, cleanup, err := o.tools.Load(ctx, dep.Tools, layout.ToolsDir())
	if err != nil {
		return fail(forgeerrors.Wrap(err, forgeerrors.CategoryTools, forgeerrors.SeverityFatal,
			fmt.Sprintf("tool environment for %s", dep.Key)))
	}
	defer cleanup()

	slog.Info("Building", logfields.Dep(dep.Key), logfields.Stage("build"), logfields.Runner(dep.Runner))
	buildRes, err := w.Build(ctx, worker.Options{
		RepoRoot:      state.RepoRoot,
		ArtifactsRoot: artifactsDir,
		Force:         opts.Force,
		Env:           overlay.Environ(os.Environ()),
	})
	if err != nil {
		return fail(forgeerrors.Wrap(err, forgeerrors.CategoryWorker, forgeerrors.SeverityFatal,
			fmt.Sprintf("build failed for %s", dep.Key)))
	}
	if !buildRes.OK {
		return fail(forgeerrors.New(forgeerrors.CategoryWorker, forgeerrors.SeverityFatal,
			fmt.Sprintf("build worker reported failure for %s", dep.Key)))
	}

	if opts.CopyToReleases {
		if o.cfg.ReleasesRoot == "" {
			slog.Warn("No releases_root configured, skipping publication", logfields.Dep(dep.Key))
		} else {
			o.publish(ctx, dep, layout, &res)
		}
	}

	res.OK = true
	res.Duration = time.Since(start)
	slog.Info("Dependency done", logfields.Dep(dep.Key), logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

// publish copies the dependency's artifacts into the releases tree.
// Publication failures never fail the run; the error is recorded on the
// result and logged.
func (o *Orchestrator) publish(ctx context.Context, dep *config.Dependency, layout *workspace.Layout, res *BuildResult) {
	slog.Info("Publishing", logfields.Dep(dep.Key), logfields.Stage("publish"))
	pubRes, err := o.publisher.Publish(ctx, release.Request{
		DepName:          dep.DisplayName(),
		Out:              dep.Out,
		Version:          o.cfg.Version,
		ArtifactsRoot:    layout.ArtifactsRoot(),
		ArtifactsDirName: dep.DisplayName(),
		ReleasesRoot:     o.cfg.ReleasesRoot,
		BuildRoot:        layout.BuildRoot(),
	})
	if err != nil {
		slog.Warn("Publication failed, continuing", logfields.Dep(dep.Key), logfields.Error(err))
		res.PublishError = err.Error()
		return
	}
	res.ReleaseDir = pubRes.ReleaseDir
	res.ReleasedFiles = pubRes.CopiedFiles
}

// applyOnlyFilter restricts the resolved order to the selected keys while
// preserving order. Unknown keys and missing prerequisites are logged, not
// fatal: a partial rebuild of an unchanged tree is a legitimate request.
func (o *Orchestrator) applyOnlyFilter(order []string, only []string) []string {
	if len(only) == 0 {
		return order
	}
	selected := make(map[string]bool, len(only))
	inOrder := make(map[string]bool, len(order))
	for _, key := range order {
		inOrder[key] = true
	}
	for _, key := range only {
		if !inOrder[key] {
			slog.Warn("Selected dependency is not part of the build order", logfields.Dep(key))
			continue
		}
		selected[key] = true
	}

	filtered := make([]string, 0, len(selected))
	for _, key := range order {
		if !selected[key] {
			continue
		}
		filtered = append(filtered, key)
		if dep, ok := o.cfg.Deps.Get(key); ok {
			for _, pre := range dep.Deps {
				if !selected[pre] {
					slog.Warn("Prerequisite is outside the selection, reusing its last build",
						logfields.Dep(key), slog.String("prerequisite", pre))
				}
			}
		}
	}
	return filtered
}

// skippedResults records every skipped dependency so run reports stay
// complete. Skipped entries count as successful. When an Only selection is
// active, skipped dependencies outside the selection are omitted.
func (o *Orchestrator) skippedResults(only []string) []BuildResult {
	selected := make(map[string]bool, len(only))
	for _, key := range only {
		selected[key] = true
	}
	var results []BuildResult
	for _, key := range o.cfg.Deps.Keys() {
		dep, ok := o.cfg.Deps.Get(key)
		if !ok || !dep.Skip {
			continue
		}
		if len(only) > 0 && !selected[key] {
			continue
		}
		slog.Info("Skipping dependency", logfields.Dep(key))
		o.recorder.IncDependencyOutcome("skipped")
		results = append(results, BuildResult{Key: key, Name: dep.DisplayName(), OK: true, Skipped: true})
	}
	return results
}
