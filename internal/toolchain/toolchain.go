// Package toolchain verifies that host build tools required by the
// configuration are installed and recent enough. Checks are advisory
// unless the caller treats failures as fatal.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/depforge/internal/config"
)

// CheckResult is the outcome of checking one toolchain requirement.
type CheckResult struct {
	Name    string
	Command string
	Path    string
	Version string
	OK      bool
	Problem string
}

// Checker verifies toolchain requirements against the host.
type Checker struct {
	// lookPath and runVersion are swappable for tests.
	lookPath   func(cmd string) (string, error)
	runVersion func(ctx context.Context, cmd string, args []string) (string, error)
}

// NewChecker creates a Checker backed by the host PATH.
func NewChecker() *Checker {
	return &Checker{
		lookPath: exec.LookPath,
		runVersion: func(ctx context.Context, cmd string, args []string) (string, error) {
			out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
			return string(out), err
		},
	}
}

// Check verifies every requirement and returns one result per requirement,
// in input order. A missing command or an insufficient version marks the
// result as failed but never aborts the remaining checks.
func (c *Checker) Check(ctx context.Context, reqs []config.ToolchainRequirement) []CheckResult {
	results := make([]CheckResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, c.checkOne(ctx, req))
	}
	return results
}

func (c *Checker) checkOne(ctx context.Context, req config.ToolchainRequirement) CheckResult {
	res := CheckResult{Name: req.Name, Command: req.Command}
	if req.Command == "" {
		res.Problem = "no command configured"
		return res
	}

	path, err := c.lookPath(req.Command)
	if err != nil {
		res.Problem = fmt.Sprintf("not found in PATH: %v", err)
		return res
	}
	res.Path = path

	if len(req.VersionArgs) == 0 {
		res.OK = true
		return res
	}

	out, err := c.runVersion(ctx, req.Command, req.VersionArgs)
	if err != nil {
		res.Problem = fmt.Sprintf("version command failed: %v", err)
		return res
	}
	version := extractVersion(out)
	if version == "" {
		res.Problem = "could not parse version from output"
		return res
	}
	res.Version = version

	if req.MinVersion != "" && compareVersions(version, req.MinVersion) < 0 {
		res.Problem = fmt.Sprintf("version %s is older than required %s", version, req.MinVersion)
		return res
	}

	res.OK = true
	return res
}

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

// extractVersion pulls the first dotted version number out of arbitrary
// version-command output ("cmake version 3.28.1" yields "3.28.1").
func extractVersion(output string) string {
	return versionPattern.FindString(output)
}

// compareVersions compares dotted numeric versions segment by segment.
// Missing segments compare as zero, so "3.20" equals "3.20.0".
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
