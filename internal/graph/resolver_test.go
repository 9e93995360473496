package graph

import (
	"errors"
	"strings"
	"testing"

	"git.home.luguber.info/inful/depforge/internal/config"
)

func boolp(b bool) *bool    { return &b }
func strp(s string) *string { return &s }

func dep(key string, deps ...string) *config.Dependency {
	return &config.Dependency{
		Key:    key,
		Git:    config.GitSource{URL: "https://example.com/" + key + ".git", Shallow: boolp(true), InitSubmodules: boolp(false)},
		Branch: strp("main"),
		Deps:   deps,
	}
}

func cfgOf(deps ...*config.Dependency) *config.Config {
	return &config.Config{Deps: config.NewDependencyMap(deps...)}
}

func indexOf(order []string, key string) int {
	for i, k := range order {
		if k == key {
			return i
		}
	}
	return -1
}

func TestResolveOrderSimpleFanOut(t *testing.T) {
	// a, then b and c in declaration order.
	cfg := cfgOf(dep("a"), dep("b", "a"), dep("c", "a"))

	order, err := ResolveOrder(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 keys, got %v", order)
	}
	if order[0] != "a" {
		t.Fatalf("a must come first, got %v", order)
	}
	if indexOf(order, "b") > indexOf(order, "c") {
		t.Fatalf("declaration order tie-break violated: %v", order)
	}
}

func TestResolveOrderRespectsEveryEdge(t *testing.T) {
	cfg := cfgOf(
		dep("freetype", "zlib", "libpng"),
		dep("libpng", "zlib"),
		dep("zlib"),
		dep("harfbuzz", "freetype"),
	)

	order, err := ResolveOrder(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, key := range order {
		d, _ := cfg.Deps.Get(key)
		for _, ref := range d.Deps {
			if indexOf(order, ref) >= indexOf(order, key) {
				t.Fatalf("edge %s -> %s violated in %v", ref, key, order)
			}
		}
	}
}

func TestResolveOrderIsDeterministic(t *testing.T) {
	cfg := cfgOf(dep("d"), dep("b"), dep("c"), dep("a"))

	first, err := ResolveOrder(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Independent nodes must come out in declaration order, every time.
	want := []string{"d", "b", "c", "a"}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("expected declaration order %v, got %v", want, first)
		}
	}
	for i := 0; i < 10; i++ {
		again, err := ResolveOrder(cfg)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("non-deterministic order: %v vs %v", first, again)
			}
		}
	}
}

func TestResolveOrderExcludesSkipped(t *testing.T) {
	skippedDep := dep("old")
	skippedDep.Skip = true
	cfg := cfgOf(dep("a"), skippedDep, dep("b", "a"))

	order, err := ResolveOrder(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if indexOf(order, "old") != -1 {
		t.Fatalf("skipped dependency must not appear in order: %v", order)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 active keys, got %v", order)
	}
}

func TestResolveOrderRejectsSkipReference(t *testing.T) {
	x := dep("x")
	x.Skip = true
	cfg := cfgOf(x, dep("y", "x"))

	_, err := ResolveOrder(cfg)
	var sre *SkipReferenceError
	if !errors.As(err, &sre) {
		t.Fatalf("expected *SkipReferenceError, got %v", err)
	}
	if len(sre.Violations) != 1 || sre.Violations[0].Dependent != "y" {
		t.Fatalf("unexpected violations: %+v", sre.Violations)
	}
	if sre.Violations[0].SkippedDeps[0] != "x" {
		t.Fatalf("expected skipped dep x, got %v", sre.Violations[0].SkippedDeps)
	}
	// Both names must be visible to the user.
	if !strings.Contains(err.Error(), "y") || !strings.Contains(err.Error(), "x") {
		t.Fatalf("error must name both dependencies: %v", err)
	}
}

func TestResolveOrderReportsCycle(t *testing.T) {
	cfg := cfgOf(dep("a", "b"), dep("b", "a"))

	_, err := ResolveOrder(cfg)
	var cde *CircularDependencyError
	if !errors.As(err, &cde) {
		t.Fatalf("expected *CircularDependencyError, got %v", err)
	}
	if len(cde.Cycles) == 0 {
		t.Fatal("expected at least one cycle")
	}

	// The reported path must actually close when traversed via deps edges.
	for _, cycle := range cde.Cycles {
		if len(cycle) < 3 {
			t.Fatalf("cycle too short: %v", cycle)
		}
		if cycle[0] != cycle[len(cycle)-1] {
			t.Fatalf("cycle does not return to its start: %v", cycle)
		}
		for i := 0; i+1 < len(cycle); i++ {
			d, ok := cfg.Deps.Get(cycle[i])
			if !ok {
				t.Fatalf("cycle names unknown key %s", cycle[i])
			}
			if indexOf(d.Deps, cycle[i+1]) == -1 {
				t.Fatalf("edge %s -> %s not present in config", cycle[i], cycle[i+1])
			}
		}
	}
}

func TestResolveOrderReportsEveryCycle(t *testing.T) {
	cfg := cfgOf(
		dep("a", "b"), dep("b", "a"),
		dep("c", "d"), dep("d", "c"),
		dep("ok"),
	)

	_, err := ResolveOrder(cfg)
	var cde *CircularDependencyError
	if !errors.As(err, &cde) {
		t.Fatalf("expected *CircularDependencyError, got %v", err)
	}
	if len(cde.Cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d: %v", len(cde.Cycles), cde.Cycles)
	}
}

func TestResolveOrderSelfLoop(t *testing.T) {
	cfg := cfgOf(dep("a", "a"))

	_, err := ResolveOrder(cfg)
	var cde *CircularDependencyError
	if !errors.As(err, &cde) {
		t.Fatalf("expected *CircularDependencyError, got %v", err)
	}
	if len(cde.Cycles) != 1 {
		t.Fatalf("expected one cycle, got %v", cde.Cycles)
	}
}

func TestResolveOrderEmptyDepsEqualsAbsent(t *testing.T) {
	explicit := dep("a")
	explicit.Deps = []string{}
	implicit := dep("b")
	implicit.Deps = nil
	cfg := cfgOf(explicit, implicit)

	order, err := ResolveOrder(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order: %v", order)
	}
}
