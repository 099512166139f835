package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	cleanup := &stubJob{name: "usage-cleanup"}
	expiry := &stubJob{name: "plan-expiry"}
	registry := NewRegistry(cleanup, nil, expiry)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != cleanup || jobs[1] != expiry {
		t.Fatalf("jobs returned out of order")
	}

	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRegisterSkipsNil(t *testing.T) {
	registry := NewRegistry()
	registry.Register(nil)
	registry.Register(&stubJob{name: "plan-expiry"})
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}
