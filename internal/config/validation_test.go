package config

import (
	"errors"
	"strings"
	"testing"
)

func boolp(b bool) *bool    { return &b }
func strp(s string) *string { return &s }

func validDep(key string) *Dependency {
	return &Dependency{
		Key:            key,
		Git:            GitSource{URL: "https://example.com/" + key + ".git", Shallow: boolp(true), InitSubmodules: boolp(false)},
		DefaultVersion: strp("1.0.0"),
		Runner:         "scripts/build_" + key + ".sh",
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	a := validDep("a")
	b := validDep("b")
	b.Deps = []string{"a"}
	cfg := &Config{Deps: NewDependencyMap(a, b)}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	bad := &Dependency{Key: "bad", Name: "bad"} // no url, no booleans, no pin
	other := validDep("other")
	other.Deps = []string{"ghost"}
	cfg := &Config{Deps: NewDependencyMap(bad, other)}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}

	// Every violation must be reported, not just the first.
	wantFragments := []string{
		"bad: git.url is required",
		"bad: git.shallow must be set",
		"bad: git.init_submodules must be set",
		"bad: one of default_version or branch must be set",
		`other: deps references unknown dependency "ghost"`,
	}
	msg := verr.Error()
	for _, frag := range wantFragments {
		if !strings.Contains(msg, frag) {
			t.Errorf("missing problem %q in:\n%s", frag, msg)
		}
	}
	if len(verr.Problems) != len(wantFragments) {
		t.Fatalf("expected %d problems, got %d: %v", len(wantFragments), len(verr.Problems), verr.Problems)
	}
}

func TestValidateRejectsBothVersionAndBranch(t *testing.T) {
	dep := validDep("x")
	dep.Branch = strp("main")
	cfg := &Config{Deps: NewDependencyMap(dep)}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutually exclusive error, got %v", err)
	}
}

func TestValidateRejectsEmptyConfig(t *testing.T) {
	if err := Validate(&Config{}); err == nil {
		t.Fatal("expected error for config without dependencies")
	}
}

func TestValidateAllowsExplicitFalseBooleans(t *testing.T) {
	dep := validDep("x")
	dep.Git.Shallow = boolp(false)
	dep.Git.InitSubmodules = boolp(false)
	cfg := &Config{Deps: NewDependencyMap(dep)}

	if err := Validate(cfg); err != nil {
		t.Fatalf("explicit false must be accepted: %v", err)
	}
}
