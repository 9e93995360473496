// Package repo brings a dependency's source tree to the required state:
// clone (or reuse), checkout of the pinned tag or branch, and submodule
// initialization. No retries happen at this layer.
package repo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/depforge/internal/config"
	"git.home.luguber.info/inful/depforge/internal/logfields"
)

// GitClient is the set of Git primitives the preparer consumes.
type GitClient interface {
	Clone(ctx context.Context, url, path string, shallow bool) (reused bool, err error)
	FetchTag(ctx context.Context, path, ref string, shallow bool) error
	FetchBranch(ctx context.Context, path, ref string, shallow bool) error
	CheckoutDetached(ctx context.Context, path, rev string) error
	CheckoutBranch(ctx context.Context, path, branch string) error
	UpdateSubmodules(ctx context.Context, path string) error
}

// Options control the preparation of one dependency.
type Options struct {
	Dep     *config.Dependency
	GitRoot string
	Force   bool
}

// State describes the prepared source tree. Version and Branch report which
// pin was actually checked out; Reused is true when an existing clone was
// kept.
type State struct {
	RepoRoot string
	Version  string
	Branch   string
	Reused   bool
}

// Preparer executes the per-dependency repository state machine.
type Preparer struct {
	git GitClient
}

// NewPreparer creates a Preparer on top of the given Git primitives.
func NewPreparer(git GitClient) *Preparer {
	return &Preparer{git: git}
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeName maps a dependency name to a path-safe directory name that is
// stable across runs.
func sanitizeName(name string) string {
	return unsafePathChars.ReplaceAllString(name, "-")
}

// Prepare runs the state machine: resolve target path, force reset, clone or
// reuse, checkout with fallback, submodules. Any unrecoverable step fails
// with a *RepositoryError carrying every attempted ref.
func (p *Preparer) Prepare(ctx context.Context, opts Options) (*State, error) {
	dep := opts.Dep
	repoRoot := filepath.Join(opts.GitRoot, sanitizeName(dep.DisplayName()))

	if opts.Force {
		if _, err := os.Stat(repoRoot); err == nil {
			slog.Info("Force rebuild: removing existing checkout", logfields.Dep(dep.Key), logfields.Path(repoRoot))
			if err := os.RemoveAll(repoRoot); err != nil {
				return nil, &RepositoryError{Dep: dep.Key, Step: StepForceReset, Err: err}
			}
		}
	}

	shallow := dep.Git.Shallow != nil && *dep.Git.Shallow
	reused, err := p.git.Clone(ctx, dep.Git.URL, repoRoot, shallow)
	if err != nil {
		return nil, &RepositoryError{Dep: dep.Key, Step: StepClone, Err: err}
	}
	if reused {
		slog.Debug("Reusing existing clone", logfields.Dep(dep.Key), logfields.Path(repoRoot))
	}

	state := &State{RepoRoot: repoRoot, Reused: reused}

	// Version takes priority over branch; the validator guarantees exactly
	// one is set, this only pins the resolution order.
	switch {
	case dep.DefaultVersion != nil:
		state.Version = *dep.DefaultVersion
		if err := p.checkoutVersion(ctx, dep, repoRoot, *dep.DefaultVersion, shallow); err != nil {
			return nil, err
		}
	case dep.Branch != nil:
		state.Branch = *dep.Branch
		if err := p.checkoutBranch(ctx, dep, repoRoot, *dep.Branch, shallow); err != nil {
			return nil, err
		}
	default:
		return nil, &RepositoryError{Dep: dep.Key, Step: StepCheckout,
			Err: fmt.Errorf("dependency has neither default_version nor branch")}
	}

	if dep.Git.InitSubmodules != nil && *dep.Git.InitSubmodules {
		slog.Debug("Initializing submodules", logfields.Dep(dep.Key))
		if err := p.git.UpdateSubmodules(ctx, repoRoot); err != nil {
			return nil, &RepositoryError{Dep: dep.Key, Step: StepSubmodules, Err: err}
		}
	}

	return state, nil
}

// checkoutVersion tries the version string as a tag first, in both its
// literal and toggled-v forms (upstream projects are inconsistent about the
// prefix), falling back to branch semantics when a tag fetch fails.
func (p *Preparer) checkoutVersion(ctx context.Context, dep *config.Dependency, repoRoot, version string, shallow bool) error {
	candidates := []string{version, toggleVPrefix(version)}
	var attempts []Attempt

	for _, ref := range candidates {
		if err := p.git.FetchTag(ctx, repoRoot, ref, shallow); err != nil {
			attempts = append(attempts, Attempt{Ref: ref, Kind: RefKindTag, Step: "fetch", Output: err.Error()})
			// Tag fetch failed: attempt the same ref as a branch.
			if ok, branchAttempts := p.tryBranch(ctx, repoRoot, ref, shallow); ok {
				logCheckedOut(dep, ref, RefKindBranch)
				return nil
			} else {
				attempts = append(attempts, branchAttempts...)
			}
			continue
		}
		if err := p.git.CheckoutDetached(ctx, repoRoot, "refs/tags/"+ref); err == nil {
			logCheckedOut(dep, ref, RefKindTag)
			return nil
		} else {
			attempts = append(attempts, Attempt{Ref: ref, Kind: RefKindTag, Step: "checkout refs/tags/" + ref, Output: err.Error()})
		}
		if err := p.git.CheckoutDetached(ctx, repoRoot, ref); err == nil {
			logCheckedOut(dep, ref, RefKindTag)
			return nil
		} else {
			attempts = append(attempts, Attempt{Ref: ref, Kind: RefKindTag, Step: "checkout " + ref, Output: err.Error()})
		}
	}

	return &RepositoryError{Dep: dep.Key, Step: StepCheckout, Attempts: attempts,
		Err: fmt.Errorf("all checkout candidates exhausted for version %s", version)}
}

// checkoutBranch fetches and checks out the configured branch; no tag fetch
// is attempted for branch pins.
func (p *Preparer) checkoutBranch(ctx context.Context, dep *config.Dependency, repoRoot, branch string, shallow bool) error {
	if ok, attempts := p.tryBranch(ctx, repoRoot, branch, shallow); !ok {
		return &RepositoryError{Dep: dep.Key, Step: StepCheckout, Attempts: attempts,
			Err: fmt.Errorf("branch %s could not be checked out", branch)}
	}
	logCheckedOut(dep, branch, RefKindBranch)
	return nil
}

func (p *Preparer) tryBranch(ctx context.Context, repoRoot, ref string, shallow bool) (bool, []Attempt) {
	if err := p.git.FetchBranch(ctx, repoRoot, ref, shallow); err != nil {
		return false, []Attempt{{Ref: ref, Kind: RefKindBranch, Step: "fetch", Output: err.Error()}}
	}
	if err := p.git.CheckoutBranch(ctx, repoRoot, ref); err != nil {
		return false, []Attempt{{Ref: ref, Kind: RefKindBranch, Step: "checkout", Output: err.Error()}}
	}
	return true, nil
}

// toggleVPrefix flips the leading v of a version string: 1.2.3 <-> v1.2.3.
func toggleVPrefix(version string) string {
	if strings.HasPrefix(version, "v") {
		return strings.TrimPrefix(version, "v")
	}
	return "v" + version
}

func logCheckedOut(dep *config.Dependency, ref, kind string) {
	slog.Info("Checked out", logfields.Dep(dep.Key), logfields.Ref(ref), logfields.RefKind(kind))
}
