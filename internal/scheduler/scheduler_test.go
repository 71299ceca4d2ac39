package scheduler_test

import (
	"testing"

	"eywa/internal/scheduler"
)

func TestRegistry_RegisterListStop(t *testing.T) {
	r := scheduler.NewRegistry()
	defer r.StopAll()

	if err := r.Register("nightly-sync", "@hourly", func() {}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("weekly-report", "@weekly", func() {}); err != nil {
		t.Fatalf("register: %v", err)
	}

	st := r.Statuses()
	if len(st) != 2 || st[0].Name != "nightly-sync" || st[1].Name != "weekly-report" {
		t.Fatalf("unexpected statuses: %+v", st)
	}
	if st[0].NextRun.IsZero() {
		t.Fatalf("expected a scheduled next run: %+v", st[0])
	}

	if !r.Stop("nightly-sync") {
		t.Fatal("expected stop to find the trigger")
	}
	if r.Stop("nightly-sync") {
		t.Fatal("second stop must report missing")
	}
	if st := r.Statuses(); len(st) != 1 {
		t.Fatalf("unexpected statuses after stop: %+v", st)
	}
}

func TestRegistry_ReplaceKeepsOneEntry(t *testing.T) {
	r := scheduler.NewRegistry()
	defer r.StopAll()

	if err := r.Register("sync", "@hourly", func() {}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("sync", "@daily", func() {}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	st := r.Statuses()
	if len(st) != 1 || st[0].Spec != "@daily" {
		t.Fatalf("expected single replaced entry, got %+v", st)
	}
}

func TestRegistry_RejectsBadSpec(t *testing.T) {
	r := scheduler.NewRegistry()
	defer r.StopAll()
	if err := r.Register("bad", "not-a-spec", func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}
