package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubWorker struct{ name string }

func (s *stubWorker) Build(context.Context, Options) (Result, error) {
	return Result{OK: true, Name: s.name}, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("scripts/build_zlib.sh", &stubWorker{name: "zlib"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	w, err := r.Resolve("scripts/build_zlib.sh")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res, err := w.Build(context.Background(), Options{})
	if err != nil || res.Name != "zlib" {
		t.Fatalf("unexpected worker: %+v, %v", res, err)
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("x", &stubWorker{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("x", &stubWorker{}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := r.Register("y", nil); err == nil {
		t.Fatal("expected nil worker error")
	}
	if err := r.Register("", &stubWorker{}); err == nil {
		t.Fatal("expected empty runner error")
	}
}

func TestRegistryResolveNamesAvailableRunners(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("scripts/a.sh", &stubWorker{})
	_ = r.Register("scripts/b.sh", &stubWorker{})

	_, err := r.Resolve("scripts/missing.sh")
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	msg := err.Error()
	// The available runners are the debugging breadcrumb for a typoed path.
	if !strings.Contains(msg, "scripts/a.sh") || !strings.Contains(msg, "scripts/b.sh") {
		t.Fatalf("available runners not named: %s", msg)
	}
}

func TestRegistryEmptyResolve(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("anything")
	if err == nil || !strings.Contains(err.Error(), "registry is empty") {
		t.Fatalf("expected empty-registry error, got %v", err)
	}
}
