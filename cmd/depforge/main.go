package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/depforge/internal/config"
	"git.home.luguber.info/inful/depforge/internal/git"
	"git.home.luguber.info/inful/depforge/internal/graph"
	"git.home.luguber.info/inful/depforge/internal/history"
	"git.home.luguber.info/inful/depforge/internal/logfields"
	"git.home.luguber.info/inful/depforge/internal/metrics"
	"git.home.luguber.info/inful/depforge/internal/orchestrator"
	"git.home.luguber.info/inful/depforge/internal/release"
	"git.home.luguber.info/inful/depforge/internal/repo"
	"git.home.luguber.info/inful/depforge/internal/toolchain"
	"git.home.luguber.info/inful/depforge/internal/tools"
	"git.home.luguber.info/inful/depforge/internal/worker"
	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"deps.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		BuildRoot     string   `short:"b" help:"Working directory for checkouts and artifacts" default:"./build"`
		Force         bool     `short:"f" help:"Discard existing checkouts and rebuild from scratch"`
		Releases      bool     `short:"r" help:"Copy build artifacts into the releases tree"`
		Only          []string `help:"Restrict the run to these dependency keys"`
		MetricsListen string   `help:"Serve Prometheus metrics on this address during the run (e.g. :9090)"`
	} `cmd:"" help:"Build all configured dependencies in dependency order"`

	Validate struct{} `cmd:"" help:"Validate the configuration file"`

	Graph struct{} `cmd:"" help:"Print the resolved build order"`

	Toolcheck struct{} `cmd:"" help:"Verify required host toolchains are installed"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize an example configuration file"`

	History struct {
		Limit int    `short:"n" help:"Number of runs to list" default:"10"`
		Run   string `help:"Show per-dependency results for one run ID"`
	} `cmd:"" help:"Show recorded build runs"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "validate":
		err = runValidate()
	case "graph":
		err = runGraph()
	case "toolcheck":
		err = runToolcheck()
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "history":
		err = runHistory()
	}
	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func runBuild() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := worker.NewRegistry()
	for _, key := range cfg.Deps.Keys() {
		dep, ok := cfg.Deps.Get(key)
		if !ok || dep.Runner == "" {
			continue
		}
		if _, resolveErr := registry.Resolve(dep.Runner); resolveErr == nil {
			continue // several dependencies may share one runner script
		}
		if err := registry.Register(dep.Runner, worker.NewScriptWorker(key, dep.Runner)); err != nil {
			return err
		}
	}

	recorder, stopMetrics := setupMetrics(CLI.Build.MetricsListen)
	defer stopMetrics()

	orch := orchestrator.New(
		cfg,
		repo.NewPreparer(git.NewClient()),
		registry,
		tools.NewEnvLoader(),
		release.NewDirPublisher(),
		recorder,
	)

	runID := uuid.NewString()
	slog.Info("Starting build run", logfields.RunID(runID), logfields.Version(cfg.Version))
	started := time.Now()
	results, runErr := orch.Run(runCtx, orchestrator.RunOptions{
		BuildRoot:      CLI.Build.BuildRoot,
		Force:          CLI.Build.Force,
		CopyToReleases: CLI.Build.Releases,
		Only:           CLI.Build.Only,
	})
	finished := time.Now()

	printSummary(results, runErr)

	if cfg.HistoryDB != "" {
		if err := recordHistory(cfg, runID, started, finished, results, runErr); err != nil {
			slog.Warn("Could not record run history", logfields.Error(err))
		}
	}

	return runErr
}

// setupMetrics returns a recorder and a shutdown callback. Without a listen
// address metrics are a no-op.
func setupMetrics(listen string) (metrics.Recorder, func()) {
	if listen == "" {
		return metrics.NoopRecorder{}, func() {}
	}
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("Metrics endpoint stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("addr", listen))

	return recorder, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func printSummary(results []orchestrator.BuildResult, runErr error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println()
	for _, res := range results {
		switch {
		case res.Skipped:
			fmt.Printf("  %s  %s\n", yellow("SKIP"), res.Key)
		case res.OK:
			pin := res.Version
			if pin == "" {
				pin = res.Branch
			}
			line := fmt.Sprintf("  %s  %-20s %s", green("OK"), res.Key, pin)
			if res.ReleaseDir != "" {
				line += fmt.Sprintf("  -> %s (%d files)", res.ReleaseDir, len(res.ReleasedFiles))
			}
			if res.PublishError != "" {
				line += fmt.Sprintf("  %s %s", yellow("publish failed:"), res.PublishError)
			}
			fmt.Println(line)
		default:
			fmt.Printf("  %s  %-20s %s\n", red("FAIL"), res.Key, res.Error)
		}
	}
	fmt.Println()
	if runErr != nil {
		fmt.Println(red("Build run failed:"), runErr)
	} else {
		fmt.Println(green("Build run succeeded."))
	}
}

func recordHistory(cfg *config.Config, runID string, started, finished time.Time, results []orchestrator.BuildResult, runErr error) error {
	store, err := history.NewSQLiteStore(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	run := history.Run{
		ID:         runID,
		Version:    cfg.Version,
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  runErr == nil,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	depResults := make([]history.DependencyResult, 0, len(results))
	for _, res := range results {
		depResults = append(depResults, history.DependencyResult{
			RunID:        runID,
			Key:          res.Key,
			Name:         res.Name,
			OK:           res.OK,
			Skipped:      res.Skipped,
			Version:      res.Version,
			Branch:       res.Branch,
			Error:        res.Error,
			PublishError: res.PublishError,
			Duration:     res.Duration,
		})
	}

	return store.RecordRun(context.Background(), run, depResults)
}

func runValidate() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	fmt.Printf("%s is valid: %d dependencies, version %s\n", CLI.Config, cfg.Deps.Len(), cfg.Version)
	return nil
}

func runGraph() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	order, err := graph.ResolveOrder(cfg)
	if err != nil {
		return err
	}
	for i, key := range order {
		dep, _ := cfg.Deps.Get(key)
		if dep != nil && len(dep.Deps) > 0 {
			fmt.Printf("%3d. %s (after %s)\n", i+1, key, strings.Join(dep.Deps, ", "))
		} else {
			fmt.Printf("%3d. %s\n", i+1, key)
		}
	}
	return nil
}

func runToolcheck() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if len(cfg.Toolchains) == 0 {
		fmt.Println("No toolchain requirements configured.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	results := toolchain.NewChecker().Check(context.Background(), cfg.Toolchains)
	failed := 0
	for _, res := range results {
		if res.OK {
			detail := res.Path
			if res.Version != "" {
				detail += " (version " + res.Version + ")"
			}
			fmt.Printf("  %s  %-12s %s\n", green("OK"), res.Name, detail)
		} else {
			failed++
			fmt.Printf("  %s  %-12s %s\n", red("FAIL"), res.Name, res.Problem)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d toolchain checks failed", failed, len(results))
	}
	return nil
}

func runHistory() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("no history_db configured in %s", CLI.Config)
	}
	store, err := history.NewSQLiteStore(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if CLI.History.Run != "" {
		run, results, err := store.GetRun(ctx, CLI.History.Run)
		if err != nil {
			return err
		}
		printRun(*run)
		for _, res := range results {
			status := "OK"
			if res.Skipped {
				status = "SKIP"
			} else if !res.OK {
				status = "FAIL"
			}
			fmt.Printf("  %-4s %-20s %-12s %s\n", status, res.Key, res.Version+res.Branch, res.Error)
		}
		return nil
	}

	runs, err := store.ListRuns(ctx, CLI.History.Limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		printRun(run)
	}
	return nil
}

func printRun(run history.Run) {
	status := color.GreenString("OK")
	if !run.Succeeded {
		status = color.RedString("FAIL")
	}
	fmt.Printf("%s  %s  version=%s  %s  (%s)\n",
		run.StartedAt.Format(time.RFC3339), status, run.Version, run.ID,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
}
