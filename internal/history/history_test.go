package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sessionimport/internal/history"
	"sessionimport/internal/importer"
	"sessionimport/internal/services"
	"sessionimport/internal/testsupport"
)

func sampleResults(t *testing.T) []history.Result {
	t.Helper()
	ok := testsupport.MustImporter(t, importer.BuildEvents, importer.Params{
		Protocol: "r1", Subject: "R1001P", Experiment: "FR1", Session: importer.Int(0),
	}, testsupport.NewFakePipeline(testsupport.Script{Needed: true}))
	failed := testsupport.MustImporter(t, importer.Montage, importer.Params{
		Protocol: "r1", Subject: "R1002J", Montage: "0.0",
	}, testsupport.NewFakePipeline(testsupport.Script{CheckErr: errors.New("unreadable coordinates")}))

	ctx := context.Background()
	ok.ShouldTransfer(ctx)
	ok.Run(ctx)
	failed.Check(ctx)
	return history.ResultsFromImporters([]*importer.Importer{ok, failed})
}

func TestRecordAndReadRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	run, err := store.RecordRun(ctx, history.Run{
		Protocol:   "r1",
		Phases:     []string{"montage", "events"},
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Counts:     history.Counts{Total: 2, Errored: 1, ToTransfer: 1, Transferred: 1, Processed: 1},
	}, sampleResults(t))
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if len(run.ID) != 36 {
		t.Fatalf("expected uuid run id, got %q", run.ID)
	}

	fetched, err := store.GetRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if fetched.Protocol != "r1" || fetched.Counts.Processed != 1 || fetched.Duration() != 90*time.Second {
		t.Fatalf("unexpected run %+v", fetched)
	}
	if len(fetched.Phases) != 2 || fetched.Phases[1] != "events" {
		t.Fatalf("unexpected phases %v", fetched.Phases)
	}

	results, err := store.RunResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if r := results[0]; r.Kind != "build_events" || !r.Processed || r.Errored() || r.Params["experiment"] != "FR1" {
		t.Fatalf("unexpected first result %+v", r)
	}
	if r := results[1]; r.CheckError != "unreadable coordinates" || r.TransferState != "not_needed" || !r.Errored() {
		t.Fatalf("unexpected second result %+v", r)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 500 * time.Millisecond, time.Hour} {
		if _, err := store.RecordRun(ctx, history.Run{
			ID:         []string{"run-a", "run-b", "run-c"}[i],
			Protocol:   "r1",
			StartedAt:  base.Add(offset),
			FinishedAt: base.Add(offset + time.Second),
		}, nil); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-c" || runs[1].ID != "run-b" || runs[2].ID != "run-a" {
		t.Fatalf("unexpected order %+v", runs)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns limit: %v %d", err, len(limited))
	}

	if _, err := store.GetRun(ctx, "run-"); !errors.Is(err, history.ErrAmbiguousRun) {
		t.Fatalf("expected ambiguous prefix, got %v", err)
	}
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if run, err := store.GetRun(ctx, "run-b"); err != nil || run.ID != "run-b" {
		t.Fatalf("exact id lookup failed: %v", err)
	}

	removed, err := store.PruneBefore(ctx, base.Add(time.Minute))
	if err != nil || removed != 2 {
		t.Fatalf("PruneBefore removed %d: %v", removed, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.RecordRun(ctx, history.Run{ID: "persisted", Protocol: "r1", StartedAt: time.Now()}, nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	if _, err := reopened.GetRun(ctx, "persisted"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
