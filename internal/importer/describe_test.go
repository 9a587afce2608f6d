package importer_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"sessionimport/internal/importer"
	"sessionimport/internal/testsupport"
)

func TestDescribeSuccessfulRun(t *testing.T) {
	pipeline := testsupport.NewFakePipeline(testsupport.Script{Needed: true})
	imp := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R1001P", 3), pipeline)
	ctx := context.Background()
	imp.Check(ctx)
	imp.Run(ctx)

	want := strings.Join([]string{
		"Events Builder:: subject: R1001P, montage: 0.0, experiment: FR1, session: 3, new_experiment: FR1, " +
			"original_session: 3, do_math: true, do_compare: true, protocol: r1, code: R1001P",
		"Initialization status: success",
		"Transfer status: complete",
		"Processed status: complete",
	}, "\n")
	if got := imp.Describe(); got != want {
		t.Fatalf("unexpected description:\n%s\nwant:\n%s", got, want)
	}
}

func TestDescribeStates(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		script testsupport.Script
		run    bool
		want   []string
	}{
		{"not necessary", testsupport.Script{}, false, []string{"Transfer status: not necessary"}},
		{"incomplete", testsupport.Script{Needed: true}, false, []string{"Transfer status: necessary, incomplete"}},
		{
			"transfer failed",
			testsupport.Script{Needed: true, RunErr: notTransferableErr()},
			true,
			[]string{"Transfer status: necessary, failed", "Transfer error: "},
		},
		{
			"processing failed",
			testsupport.Script{Needed: true, RunErr: errors.New("boom")},
			true,
			[]string{"Transfer status: necessary, incomplete", "Processing error: boom"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			imp := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R1001P", 0), testsupport.NewFakePipeline(tc.script))
			imp.Check(ctx)
			if tc.run {
				imp.Run(ctx)
			}
			got := imp.Describe()
			for _, fragment := range tc.want {
				if !strings.Contains(got, fragment) {
					t.Fatalf("expected %q in:\n%s", fragment, got)
				}
			}
			if strings.Contains(got, "Processed status") {
				t.Fatalf("processed status must only appear once transferred:\n%s", got)
			}
		})
	}
}

func TestDescribeInitFailure(t *testing.T) {
	reg, err := importer.NewRegistry(map[importer.Kind]importer.Builder{
		importer.Montage: func(importer.Params) (importer.Pipeline, error) { return nil, errors.New("no localization") },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	imp, err := importer.New(reg, importer.Montage, importer.Params{Subject: "R1001P", Montage: "0.0", Protocol: "r1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := strings.Join([]string{
		"Montage Importer:: subject: R1001P, montage: 0.0, protocol: r1",
		"Initialization status: failure",
		"Transfer status: not necessary",
		"Initialization error: no localization",
	}, "\n")
	if got := imp.Describe(); got != want {
		t.Fatalf("unexpected description:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompareFollowsStateTuple(t *testing.T) {
	ctx := context.Background()
	reg, err := importer.NewRegistry(map[importer.Kind]importer.Builder{
		importer.Montage: func(importer.Params) (importer.Pipeline, error) { return nil, errors.New("init") },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	uninitialized, _ := importer.New(reg, importer.Montage, importer.Params{Subject: "R9"})

	errored := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R8", 0),
		testsupport.NewFakePipeline(testsupport.Script{CheckErr: errors.New("x")}))
	errored.Check(ctx)

	pendingA := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R2", 0),
		testsupport.NewFakePipeline(testsupport.Script{Needed: true}))
	pendingA.Check(ctx)
	pendingB := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R1", 0),
		testsupport.NewFakePipeline(testsupport.Script{Needed: true}))
	pendingB.Check(ctx)

	done := testsupport.MustImporter(t, importer.BuildEvents, sessionParams("R0", 0),
		testsupport.NewFakePipeline(testsupport.Script{Needed: true}))
	done.Check(ctx)
	done.Run(ctx)

	want := []*importer.Importer{uninitialized, pendingB, pendingA, done, errored}
	for seed := uint64(0); seed < 5; seed++ {
		shuffled := slices.Clone(want)
		rng := rand.New(rand.NewPCG(seed, seed))
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		slices.SortStableFunc(shuffled, importer.Compare)
		for i := range want {
			if shuffled[i] != want[i] {
				t.Fatalf("seed %d: position %d got %s want %s", seed, i, shuffled[i].Subject(), want[i].Subject())
			}
		}
	}
}

func TestParamsSessionKey(t *testing.T) {
	event := sessionParams("R1001P", 2)
	event.NewExperiment = "catFR1"
	if got := event.SessionKey(); got != "r1/R1001P/catFR1/2" {
		t.Fatalf("unexpected event key %q", got)
	}
	montage := importer.Params{Protocol: "r1", Subject: "R1001P", Montage: "1.0"}
	if got := montage.SessionKey(); got != "r1/R1001P/montage/1.0" {
		t.Fatalf("unexpected montage key %q", got)
	}
	withExtra := importer.Params{Subject: "R1", Extra: map[string]string{"b": "2", "a": "1"}}
	pairs := withExtra.Pairs()
	if len(pairs) != 3 || pairs[1].Key != "a" || pairs[2].Key != "b" {
		t.Fatalf("expected extras sorted after fixed keys, got %+v", pairs)
	}
}
