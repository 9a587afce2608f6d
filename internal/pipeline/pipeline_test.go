package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"sessionimport/internal/importer"
	"sessionimport/internal/pipeline"
	"sessionimport/internal/services"
	"sessionimport/internal/testsupport"
)

func fixedClock() func() time.Time {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func eventsParams() importer.Params {
	return importer.Params{
		Protocol:        "r1",
		Subject:         "R1001P",
		Code:            "R1001P_1",
		Experiment:      "FR1",
		NewExperiment:   "catFR1",
		Session:         importer.Int(2),
		OriginalSession: importer.Int(0),
		DoMath:          true,
	}
}

func newRegistry(t *testing.T, fsys afero.Fs, opts ...testsupport.ConfigOption) (*importer.Registry, string, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	reg, err := pipeline.NewRegistry(cfg, fsys, pipeline.WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, cfg.Paths.DBRoot, cfg.Paths.SourceRoot
}

func TestExpandTemplate(t *testing.T) {
	p := eventsParams()
	p.Montage = "1.2"
	got := pipeline.ExpandTemplate("{code}/{experiment}/{new_experiment}/{session}/{original_session}/{localization}-{montage_num}/{unknown}", p)
	want := "R1001P_1/FR1/catFR1/2/0/1-2/{unknown}"
	if got != want {
		t.Fatalf("ExpandTemplate = %q, want %q", got, want)
	}

	bare := importer.Params{Subject: "R1002J", Experiment: "PAL1", Session: importer.Int(3)}
	if got := pipeline.ExpandTemplate("{code}_{new_experiment}_{original_session}", bare); got != "R1002J_PAL1_3" {
		t.Fatalf("fallbacks not applied: %q", got)
	}
}

func TestLayoutDestinations(t *testing.T) {
	layout := pipeline.Layout{Root: "/db"}
	tests := []struct {
		name   string
		kind   importer.Kind
		params importer.Params
		want   string
	}{
		{"events", importer.BuildEvents, eventsParams(), "/db/protocols/r1/subjects/R1001P/experiments/catFR1/sessions/2/behavioral"},
		{"ephys", importer.ConvertEphys, eventsParams(), "/db/protocols/r1/subjects/R1001P/experiments/catFR1/sessions/2/ephys"},
		{"montage", importer.Montage, importer.Params{Protocol: "r1", Subject: "R1001P", Montage: "1.3"}, "/db/protocols/r1/subjects/R1001P/localizations/1/montages/3/neuroradiology"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := layout.Destination(tt.kind, tt.params)
			if err != nil {
				t.Fatalf("Destination: %v", err)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Fatalf("Destination = %q, want %q", got, tt.want)
			}
		})
	}
	if _, err := layout.Destination(importer.Montage, importer.Params{Montage: "bogus"}); err == nil {
		t.Fatal("expected malformed montage error")
	}
}

func TestBuilderValidation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	reg, _, _ := newRegistry(t, fsys)

	tests := []struct {
		name   string
		kind   importer.Kind
		params importer.Params
		want   string
	}{
		{"events without experiment", importer.BuildEvents, importer.Params{Protocol: "r1", Subject: "R1", Session: importer.Int(0)}, "experiment"},
		{"events without session", importer.ConvertEvents, importer.Params{Protocol: "r1", Subject: "R1", Experiment: "FR1"}, "session"},
		{"montage without montage", importer.Montage, importer.Params{Protocol: "r1", Subject: "R1"}, "montage"},
		{"malformed montage", importer.Montage, importer.Params{Protocol: "r1", Subject: "R1", Montage: "x"}, "malformed montage"},
		{"negative session", importer.BuildEphys, importer.Params{Protocol: "r1", Subject: "R1", Experiment: "FR1", Session: importer.Int(-1)}, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := importer.New(reg, tt.kind, tt.params)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if imp.Initialized() {
				t.Fatal("expected uninitialized handle")
			}
			initErr := imp.Errors().Init
			if !errors.Is(initErr, services.ErrValidation) || !strings.Contains(initErr.Error(), tt.want) {
				t.Fatalf("unexpected init error %v", initErr)
			}
		})
	}
}

func TestBuilderRequiresSourceRoot(t *testing.T) {
	reg, _, _ := newRegistry(t, afero.NewMemMapFs(), testsupport.WithSourceRoot(""))
	imp, err := importer.New(reg, importer.BuildEvents, eventsParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if imp.Initialized() || !errors.Is(imp.Errors().Init, services.ErrConfiguration) {
		t.Fatalf("expected configuration init error, got %v", imp.Errors().Init)
	}
}

func TestCheckAndRunLifecycle(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	reg, dbRoot, sourceRoot := newRegistry(t, fsys)
	sessionLog := filepath.Join(sourceRoot, "R1001P_1", "behavioral", "FR1", "session_0", "session.log")
	testsupport.WriteContent(t, fsys, sessionLog, "EVENT 1\nEVENT 2\n")

	imp, err := importer.New(reg, importer.BuildEvents, eventsParams())
	if err != nil || !imp.Initialized() {
		t.Fatalf("New: %v %v", err, imp.Errors().Init)
	}
	if !imp.ShouldTransfer(ctx) {
		t.Fatalf("first check should need a transfer, errors %v", imp.Errors())
	}
	imp.Run(ctx)
	if imp.Errored() || !imp.Processed() {
		t.Fatalf("run failed: %+v", imp.Errors())
	}

	dest := filepath.Join(dbRoot, "protocols", "r1", "subjects", "R1001P", "experiments", "catFR1", "sessions", "2", "behavioral")
	manifest, ok, err := pipeline.LoadManifest(fsys, dest)
	if err != nil || !ok {
		t.Fatalf("LoadManifest: %v %v", ok, err)
	}
	if manifest.Kind != "build_events" || !manifest.DoMath || manifest.Params["new_experiment"] != "catFR1" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if len(manifest.Files) != 1 || manifest.Files[0] != "R1001P_1/behavioral/FR1/session_0/session.log" {
		t.Fatalf("unexpected manifest files %v", manifest.Files)
	}
	copied, err := afero.ReadFile(fsys, filepath.Join(manifest.SourceDir, "R1001P_1", "behavioral", "FR1", "session_0", "session.log"))
	if err != nil || string(copied) != "EVENT 1\nEVENT 2\n" {
		t.Fatalf("copied source mismatch: %q %v", copied, err)
	}

	if imp.Check(ctx) {
		t.Fatal("unchanged sources should not need a transfer")
	}

	testsupport.WriteContent(t, fsys, sessionLog, "EVENT 1\nEVENT 2\nEVENT 3\n")
	if !imp.Check(ctx) {
		t.Fatal("changed sources should need a transfer")
	}
}

func TestMissingSources(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	reg, _, _ := newRegistry(t, fsys)

	imp, err := importer.New(reg, importer.ConvertEvents, eventsParams())
	if err != nil || !imp.Initialized() {
		t.Fatalf("New: %v %v", err, imp.Errors().Init)
	}
	if imp.Check(ctx) {
		t.Fatal("missing sources must not need a transfer")
	}
	if imp.Errors().Check == nil {
		t.Fatal("expected check error for missing sources")
	}

	imp.Run(ctx)
	if !services.IsNotTransferable(imp.Errors().Transfer) {
		t.Fatalf("expected not-transferable transfer error, got %+v", imp.Errors())
	}
	if imp.Errors().Processing != nil {
		t.Fatalf("processing slot should stay empty, got %v", imp.Errors().Processing)
	}
}

func TestEmptySourceIsNotTransferable(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	reg, _, sourceRoot := newRegistry(t, fsys)
	params := importer.Params{Protocol: "r1", Subject: "R1002J", Montage: "0.0"}
	testsupport.WriteContent(t, fsys, filepath.Join(sourceRoot, "R1002J", "tal", "VOX_coords_mother.txt"), "")
	testsupport.WriteFile(t, fsys, filepath.Join(sourceRoot, "R1002J", "docs", "jacksheet.txt"), 64)

	imp, err := importer.New(reg, importer.Montage, params)
	if err != nil || !imp.Initialized() {
		t.Fatalf("New: %v %v", err, imp.Errors().Init)
	}
	if !imp.ShouldTransfer(ctx) {
		t.Fatalf("expected transfer needed, errors %+v", imp.Errors())
	}
	imp.Run(ctx)
	if !services.IsNotTransferable(imp.Errors().Transfer) || imp.Processed() {
		t.Fatalf("expected not-transferable failure, got %+v", imp.Errors())
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	reg, _, sourceRoot := newRegistry(t, fsys)
	testsupport.WriteContent(t, fsys, filepath.Join(sourceRoot, "R1001P_1", "behavioral", "FR1", "session_0", "session.log"), "x")

	imp, err := importer.New(reg, importer.BuildEvents, eventsParams())
	if err != nil || !imp.Initialized() {
		t.Fatalf("New: %v %v", err, imp.Errors().Init)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	imp.Run(ctx)
	if !errors.Is(imp.Errors().Processing, context.Canceled) {
		t.Fatalf("expected cancellation in processing slot, got %+v", imp.Errors())
	}
}
