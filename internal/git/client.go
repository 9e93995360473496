// Package git wraps the go-git primitives the repository preparer needs:
// clone, fetching a single ref as tag or branch, detached checkout, and
// submodule initialization. All operations are synchronous.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/depforge/internal/logfields"
	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// Client performs Git operations against working trees on disk.
type Client struct{}

// NewClient creates a new Git client.
func NewClient() *Client {
	return &Client{}
}

// Clone clones url into path. When path already holds a repository the clone
// is skipped and reused=true is returned; a pre-existing directory is never
// an error. With shallow=true the clone is truncated to depth 1.
func (c *Client) Clone(ctx context.Context, url, path string, shallow bool) (reused bool, err error) {
	if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
		slog.Debug("Reusing existing repository", logfields.Path(path))
		return true, nil
	}

	opts := &gogit.CloneOptions{URL: url}
	if shallow {
		opts.Depth = 1
	}

	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(path))
	if _, err := gogit.PlainCloneContext(ctx, path, false, opts); err != nil {
		return false, classifyTransportError("clone", url, err)
	}
	return false, nil
}

// FetchTag fetches a single tag ref from origin into refs/tags/<ref>.
func (c *Client) FetchTag(ctx context.Context, path, ref string, shallow bool) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	spec := gitcfg.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", ref, ref))
	opts := &gogit.FetchOptions{RemoteName: "origin", RefSpecs: []gitcfg.RefSpec{spec}, Tags: gogit.NoTags}
	if shallow {
		opts.Depth = 1
	}
	if err := repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return classifyTransportError("fetch tag", ref, err)
	}
	return nil
}

// FetchBranch fetches a single branch head from origin into
// refs/remotes/origin/<ref>.
func (c *Client) FetchBranch(ctx context.Context, path, ref string, shallow bool) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	spec := gitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", ref, ref))
	opts := &gogit.FetchOptions{RemoteName: "origin", RefSpecs: []gitcfg.RefSpec{spec}, Tags: gogit.NoTags}
	if shallow {
		opts.Depth = 1
	}
	if err := repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return classifyTransportError("fetch branch", ref, err)
	}
	return nil
}

// CheckoutDetached resolves rev (a tag path like refs/tags/v1.2.3, or any
// revision go-git can resolve) and checks out the commit detached.
// Appropriate for immutable tag builds.
func (c *Client) CheckoutDetached(ctx context.Context, path, rev string) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", rev, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", rev, err)
	}
	slog.Debug("Checked out detached", logfields.Ref(rev), logfields.Path(path))
	return nil
}

// CheckoutBranch checks out branch, creating the local branch from
// refs/remotes/origin/<branch> when it does not exist yet and hard-resetting
// it to the remote head when it does.
func (c *Client) CheckoutBranch(ctx context.Context, path, branch string) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	remoteRef := plumbing.NewRemoteReferenceName("origin", branch)
	remote, err := repo.Reference(remoteRef, true)
	if err != nil {
		return fmt.Errorf("remote ref %s: %w", remoteRef, err)
	}

	if _, lerr := repo.Reference(localRef, true); lerr != nil {
		if err := wt.Checkout(&gogit.CheckoutOptions{Hash: remote.Hash(), Branch: localRef, Create: true, Force: true}); err != nil {
			return fmt.Errorf("checkout new branch %s: %w", branch, err)
		}
	} else {
		if err := wt.Checkout(&gogit.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
			return fmt.Errorf("checkout branch %s: %w", branch, err)
		}
		if err := wt.Reset(&gogit.ResetOptions{Commit: remote.Hash(), Mode: gogit.HardReset}); err != nil {
			return fmt.Errorf("reset to %s: %w", remote.Hash(), err)
		}
	}
	slog.Debug("Checked out branch", logfields.Branch(branch), logfields.Path(path))
	return nil
}

// UpdateSubmodules initializes and updates every submodule of the working tree.
func (c *Client) UpdateSubmodules(ctx context.Context, path string) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return fmt.Errorf("submodules: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}
	opts := &gogit.SubmoduleUpdateOptions{Init: true, RecurseSubmodules: gogit.DefaultSubmoduleRecursionDepth}
	if err := subs.UpdateContext(ctx, opts); err != nil {
		return fmt.Errorf("submodule update: %w", err)
	}
	slog.Debug("Submodules updated", logfields.Path(path), slog.Int("count", len(subs)))
	return nil
}
