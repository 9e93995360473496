// Package workspace manages the persistent on-disk layout under the build
// root: a Git checkout root, an artifacts root, and a tools directory. The
// layout is reused across runs; force-cleaning individual checkouts is the
// repository preparer's job.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/depforge/internal/logfields"
)

// Layout resolves the working directories of one build root.
type Layout struct {
	buildRoot string
}

// NewLayout creates a layout rooted at buildRoot. An empty buildRoot
// defaults to ./build in the current working directory.
func NewLayout(buildRoot string) *Layout {
	if buildRoot == "" {
		buildRoot = "./build"
	}
	return &Layout{buildRoot: buildRoot}
}

// BuildRoot returns the build root directory.
func (l *Layout) BuildRoot() string { return l.buildRoot }

// GitRoot returns the directory holding one checkout per active dependency.
func (l *Layout) GitRoot() string { return filepath.Join(l.buildRoot, "git") }

// ArtifactsRoot returns the directory holding one artifacts subdirectory per
// dependency.
func (l *Layout) ArtifactsRoot() string { return filepath.Join(l.buildRoot, "artifacts") }

// ToolsDir returns the directory tools may use for downloads and state.
func (l *Layout) ToolsDir() string { return filepath.Join(l.buildRoot, "tools") }

// Ensure creates the working directories if they do not exist.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.GitRoot(), l.ArtifactsRoot(), l.ToolsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create working directory %s: %w", dir, err)
		}
	}
	slog.Debug("Workspace ready", logfields.Path(l.buildRoot))
	return nil
}

// ArtifactsDir creates and returns the per-dependency artifacts directory.
func (l *Layout) ArtifactsDir(name string) (string, error) {
	dir := filepath.Join(l.ArtifactsRoot(), name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	return dir, nil
}
