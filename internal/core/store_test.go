package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// TestStoreRecordAndList tests run persistence and newest-first ordering
func TestStoreRecordAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	runs := []RunRecord{
		{ID: "run-1", BaseURL: "http://a", StartedAt: base, FinishedAt: base.Add(time.Minute), Passed: 19, Total: 19, Results: []byte(`{"run_id":"run-1"}`)},
		{ID: "run-2", BaseURL: "http://b", StartedAt: base.Add(time.Hour + 500*time.Millisecond), FinishedAt: base.Add(2 * time.Hour), Passed: 3, Total: 7, Results: []byte(`{"run_id":"run-2"}`)},
	}
	for _, r := range runs {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	got, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].ID != "run-2" || got[1].ID != "run-1" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].OK() || !got[1].OK() {
		t.Errorf("unexpected OK flags")
	}
	if !got[0].StartedAt.Equal(runs[1].StartedAt) {
		t.Errorf("started_at round trip: %v != %v", got[0].StartedAt, runs[1].StartedAt)
	}

	results, err := s.RunResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunResults failed: %v", err)
	}
	if string(results) != `{"run_id":"run-1"}` {
		t.Errorf("unexpected results %s", results)
	}
	if _, err := s.RunResults(ctx, "missing"); err == nil {
		t.Errorf("expected error for unknown run")
	}
}

// TestStoreRejectsDuplicateAndEmptyIDs tests primary key handling
func TestStoreRejectsDuplicateAndEmptyIDs(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.RecordRun(ctx, RunRecord{StartedAt: now, FinishedAt: now}); err == nil {
		t.Errorf("expected error for empty id")
	}
	r := RunRecord{ID: "x", StartedAt: now, FinishedAt: now, Results: []byte("{}")}
	if err := s.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := s.RecordRun(ctx, r); err == nil {
		t.Errorf("expected duplicate id to fail")
	}
}
