// Package release copies build artifacts into the versioned release layout:
// releasesRoot/<version>/<dependency name>/.
package release

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/depforge/internal/config"
	"git.home.luguber.info/inful/depforge/internal/logfields"
)

// Request describes one publication.
type Request struct {
	DepName          string
	Out              *config.OutConfig
	Version          string
	ArtifactsRoot    string
	ArtifactsDirName string
	ReleasesRoot     string
	BuildRoot        string
}

// Result reports where artifacts landed.
type Result struct {
	OK          bool
	ReleaseDir  string
	CopiedFiles []string
}

// Publisher copies produced artifacts into a release tree.
type Publisher interface {
	Publish(ctx context.Context, req Request) (Result, error)
	ListFiles(releaseDir string) ([]string, error)
}

// PublicationError wraps a failed release copy. It is explicitly non-fatal
// to the build result: the orchestrator logs it and omits release metadata.
type PublicationError struct {
	Dep string
	Err error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("release publication failed for %s: %v", e.Dep, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }

// DirPublisher is the default Publisher: a filtered recursive copy.
type DirPublisher struct{}

// NewDirPublisher creates the default publisher.
func NewDirPublisher() *DirPublisher {
	return &DirPublisher{}
}

// Publish copies files matching the dependency's include/exclude rules from
// its artifacts directory into releasesRoot/<version>/<name>, preserving
// relative layout. With no rules configured, everything is copied.
func (p *DirPublisher) Publish(ctx context.Context, req Request) (Result, error) {
	src := filepath.Join(req.ArtifactsRoot, req.ArtifactsDirName)
	releaseDir := filepath.Join(req.ReleasesRoot, req.Version, req.DepName)

	var copied []string
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !selected(req.Out, rel) {
			return nil
		}
		dst := filepath.Join(releaseDir, filepath.FromSlash(rel))
		if err := copyFile(p, dst); err != nil {
			return err
		}
		copied = append(copied, rel)
		return nil
	})
	if err != nil {
		return Result{}, &PublicationError{Dep: req.DepName, Err: err}
	}
	sort.Strings(copied)

	slog.Info("Published release artifacts",
		logfields.Name(req.DepName),
		logfields.Version(req.Version),
		logfields.Path(releaseDir),
		slog.Int("files", len(copied)))
	return Result{OK: true, ReleaseDir: releaseDir, CopiedFiles: copied}, nil
}

// ListFiles returns the flat list of relative file paths under releaseDir.
func (p *DirPublisher) ListFiles(releaseDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(releaseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(releaseDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list release files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// selected applies include/exclude glob rules to a slash-relative path.
// Patterns match the full relative path or its basename.
func selected(out *config.OutConfig, rel string) bool {
	if out != nil {
		for _, pattern := range out.Exclude {
			if matches(pattern, rel) {
				return false
			}
		}
		if len(out.Include) > 0 {
			for _, pattern := range out.Include {
				if matches(pattern, rel) {
					return true
				}
			}
			return false
		}
	}
	return true
}

func matches(pattern, rel string) bool {
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(rel))
	return ok
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
