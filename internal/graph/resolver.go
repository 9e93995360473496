// Package graph resolves the build order of configured dependencies.
//
// Resolution runs Kahn's algorithm over the active (non-skipped)
// dependencies. Ties are broken by declaration order in the configuration
// file, which keeps build logs reproducible across runs. When the graph
// contains cycles, a DFS pass enumerates every cycle for the error message.
package graph

import (
	"git.home.luguber.info/inful/depforge/internal/config"
)

// ResolveOrder topologically sorts the active dependency keys of cfg.
//
// It fails with *SkipReferenceError when an active dependency lists a
// skipped one, and with *CircularDependencyError when the active subgraph
// contains cycles. The returned order is deterministic: among nodes that
// become eligible together, declaration order wins.
func ResolveOrder(cfg *config.Config) ([]string, error) {
	skipped := make(map[string]bool)
	var active []string
	for _, key := range cfg.Deps.Keys() {
		dep, _ := cfg.Deps.Get(key)
		if dep.Skip {
			skipped[key] = true
		} else {
			active = append(active, key)
		}
	}

	// Edges into skipped nodes are a configuration error, caught before any
	// graph work.
	var violations []SkipReference
	for _, key := range active {
		dep, _ := cfg.Deps.Get(key)
		var bad []string
		for _, ref := range dep.Deps {
			if skipped[ref] {
				bad = append(bad, ref)
			}
		}
		if len(bad) > 0 {
			violations = append(violations, SkipReference{Dependent: key, SkippedDeps: bad})
		}
	}
	if len(violations) > 0 {
		return nil, &SkipReferenceError{Violations: violations}
	}

	// Directed graph over active keys only: for A depending on B, edge B->A.
	activeSet := make(map[string]bool, len(active))
	for _, key := range active {
		activeSet[key] = true
	}
	indegree := make(map[string]int, len(active))
	dependents := make(map[string][]string, len(active))
	for _, key := range active {
		dep, _ := cfg.Deps.Get(key)
		count := 0
		for _, ref := range dep.Deps {
			if activeSet[ref] {
				dependents[ref] = append(dependents[ref], key)
				count++
			}
		}
		indegree[key] = count
	}

	// Kahn's algorithm with a FIFO queue seeded in declaration order.
	var queue []string
	for _, key := range active {
		if indegree[key] == 0 {
			queue = append(queue, key)
		}
	}
	order := make([]string, 0, len(active))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		order = append(order, key)
		for _, next := range dependents[key] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(active) {
		resolved := make(map[string]bool, len(order))
		for _, key := range order {
			resolved[key] = true
		}
		cycles := findCycles(cfg, active, resolved)
		return nil, &CircularDependencyError{Cycles: cycles}
	}

	return order, nil
}

// findCycles enumerates cycles among the unresolved active nodes with a DFS
// over each node's deps edges. One cycle witness is reported per back edge;
// the path is returned closed (first key repeated at the end).
func findCycles(cfg *config.Config, active []string, resolved map[string]bool) [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(active))
	var stack []string
	onStack := make(map[string]int) // key -> index in stack
	var cycles [][]string

	var visit func(key string)
	visit = func(key string) {
		color[key] = gray
		onStack[key] = len(stack)
		stack = append(stack, key)

		dep, _ := cfg.Deps.Get(key)
		for _, ref := range dep.Deps {
			if resolved[ref] {
				continue
			}
			switch color[ref] {
			case white:
				visit(ref)
			case gray:
				start := onStack[ref]
				cycle := make([]string, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, ref)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, key)
		color[key] = black
	}

	for _, key := range active {
		if resolved[key] || color[key] != white {
			continue
		}
		visit(key)
	}
	return cycles
}
