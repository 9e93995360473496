// Package tools loads per-dependency tool environments. A tool never mutates
// process-global state: loading produces an explicit environment overlay that
// is threaded into the build worker's subprocess invocations, and the cleanup
// callback discards it. This removes any cross-dependency leakage risk.
package tools

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/depforge/internal/config"
	"git.home.luguber.info/inful/depforge/internal/logfields"
)

// Env is an environment overlay: variables that must be in effect while a
// build worker runs, layered over the base process environment.
type Env map[string]string

// Environ applies the overlay to a base environment (os.Environ form) and
// returns the merged set. Base entries are replaced when the overlay defines
// the same key; remaining overlay keys are appended in sorted order.
func (e Env) Environ(base []string) []string {
	if len(e) == 0 {
		return base
	}
	used := make(map[string]bool, len(e))
	out := make([]string, 0, len(base)+len(e))
	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if ok {
			if val, hit := e[key]; hit {
				out = append(out, key+"="+val)
				used[key] = true
				continue
			}
		}
		out = append(out, entry)
	}
	rest := make([]string, 0, len(e))
	for key := range e {
		if !used[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, key+"="+e[key])
	}
	return out
}

// Loader turns tool specifications into an environment overlay plus a
// cleanup callback. The callback must be safe to invoke exactly once per
// dependency and tolerate repeated invocation.
type Loader interface {
	Load(ctx context.Context, specs []config.ToolSpec, toolsDir string) (Env, func(), error)
}

// EnvLoader is the default Loader: it composes the overlay from each spec's
// declared variables and PATH prepends, in declaration order (later specs
// win on conflicting keys).
type EnvLoader struct{}

// NewEnvLoader creates the default tool loader.
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Load builds the overlay. The returned cleanup is idempotent.
func (l *EnvLoader) Load(ctx context.Context, specs []config.ToolSpec, toolsDir string) (Env, func(), error) {
	overlay := make(Env)
	var pathPrepends []string

	for _, spec := range specs {
		for key, val := range spec.Env {
			overlay[key] = val
		}
		pathPrepends = append(pathPrepends, spec.PrependPath...)
		slog.Debug("Loaded tool", logfields.Name(spec.Name))
	}

	if len(pathPrepends) > 0 {
		basePath := overlay["PATH"]
		if basePath == "" {
			basePath = os.Getenv("PATH")
		}
		parts := append(append([]string{}, pathPrepends...), basePath)
		overlay["PATH"] = strings.Join(parts, string(os.PathListSeparator))
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			slog.Debug("Released tool environment", slog.Int("tools", len(specs)))
		})
	}
	return overlay, cleanup, nil
}
