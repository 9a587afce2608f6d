package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sessionimport/internal/automator"
	"sessionimport/internal/history"
)

func TestCLIPlanForEmptyProtocolReportsNoImporters(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--protocol", "ltp"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if strings.TrimSpace(out) != "No Importers" {
		t.Fatalf("unexpected plan output: %q", out)
	}
}

func TestCLIPlanWithoutSourcesKeepsErroredImporters(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var payload reportPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode plan output: %v\n%s", err, out)
	}
	if payload.Summary.Total != 2 || payload.Summary.Errored != 2 {
		t.Fatalf("expected montage and events importers kept with check errors, got %+v", payload.Summary)
	}
	for _, result := range payload.Importers {
		if result.CheckError == "" {
			t.Fatalf("expected check error for %s, got %+v", result.Kind, result)
		}
	}
}

func TestCLIPlanListsPendingImporters(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeSources(t)

	out, _, err := runCLI(t, []string{"plan"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "Montage Importer:: ")
	requireContains(t, out, "Events Builder:: ")
	requireContains(t, out, "Transfer status: necessary, incomplete")
	requireContains(t, out, "\n---------------\n")
	if strings.Contains(out, "Processed status") {
		t.Fatalf("plan must not run importers: %q", out)
	}

	montageOnly, _, err := runCLI(t, []string{"plan", "--phase", "montage"}, env.configPath)
	if err != nil {
		t.Fatalf("plan --phase montage: %v", err)
	}
	requireContains(t, montageOnly, "Montage Importer:: ")
	if strings.Contains(montageOnly, "Events Builder") {
		t.Fatalf("expected montage phase only, got %q", montageOnly)
	}
}

func TestCLIRunRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeSources(t)

	out, _, err := runCLI(t, []string{"run", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var payload reportPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode run output: %v\n%s", err, out)
	}
	want := automator.Summary{Total: 2, ToTransfer: 2, Transferred: 2, Processed: 2}
	if payload.Summary != want {
		t.Fatalf("unexpected summary: %+v", payload.Summary)
	}
	if payload.RunID == "" || payload.Protocol != "r1" {
		t.Fatalf("unexpected payload header: %+v", payload)
	}

	manifest := filepath.Join(env.cfg.Paths.DBRoot, "protocols", "r1", "subjects", "R1001P")
	if _, err := os.Stat(manifest); err != nil {
		t.Fatalf("expected subject directory in repository: %v", err)
	}

	again, _, err := runCLI(t, []string{"plan"}, env.configPath)
	if err != nil {
		t.Fatalf("plan after run: %v", err)
	}
	if strings.TrimSpace(again) != "No Importers" {
		t.Fatalf("expected nothing pending after run, got %q", again)
	}

	listOut, _, err := runCLI(t, []string{"history", "list", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []history.Run
	if err := json.Unmarshal([]byte(listOut), &runs); err != nil {
		t.Fatalf("decode history list: %v\n%s", err, listOut)
	}
	if len(runs) != 1 || runs[0].ID != payload.RunID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Counts.Processed != 2 || runs[0].Cancelled {
		t.Fatalf("unexpected recorded run: %+v", runs[0])
	}

	showOut, _, err := runCLI(t, []string{"history", "show", payload.RunID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, showOut, "Run "+payload.RunID)
	requireContains(t, showOut, "build_events:: ")
	requireContains(t, showOut, "processed: yes")

	tableOut, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list table: %v", err)
	}
	requireContains(t, tableOut, shortID(payload.RunID))
}

func TestCLIRunWithoutHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeSources(t)

	if _, _, err := runCLI(t, []string{"run", "--no-history"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	out, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestCLIHistoryShowUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"history", "show", "deadbeef"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if !strings.Contains(err.Error(), "deadbeef") {
		t.Fatalf("expected run id in error, got %v", err)
	}
}

func TestCLIImportSingleUnit(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeSources(t)

	args := []string{"import", "--kind", "build_events", "--subject", "R1001P", "--experiment", "FR1", "--session", "0"}
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Events Builder:: ")
	requireContains(t, out, "code: R1001P")
	requireContains(t, out, "Processed status: complete")
	dest := filepath.Join(env.cfg.Paths.DBRoot, "protocols", "r1", "subjects", "R1001P", "experiments", "FR1", "sessions", "0", "behavioral")
	requireContains(t, out, "Manifest: "+dest+" (")

	unchanged, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	requireContains(t, unchanged, "Transfer status: not necessary")
	if strings.Contains(unchanged, "Processed status") || strings.Contains(unchanged, "Manifest: ") {
		t.Fatalf("unchanged unit should not run without --force: %q", unchanged)
	}

	forced, _, err := runCLI(t, append(args, "--force"), env.configPath)
	if err != nil {
		t.Fatalf("forced import: %v", err)
	}
	requireContains(t, forced, "Processed status: complete")
}

func TestCLIImportMissingSourcesFails(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"import", "--kind", "convert_events", "--subject", "R1001P", "--experiment", "FR1", "--session", "3"}, env.configPath)
	if err == nil {
		t.Fatal("expected import error without sources")
	}
	requireContains(t, out, "Checksum calculation error: ")
}

func TestCLIImportRejectsUnknownKind(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"import", "--kind", "bogus", "--subject", "R1001P"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown kind error")
	}
	requireContains(t, err.Error(), "bogus")
}

func TestCLIIndexSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"index", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	var summary indexSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode index summary: %v\n%s", err, out)
	}
	if summary.Records != 1 || summary.Subjects != 1 || summary.Experiments != 1 {
		t.Fatalf("unexpected index summary: %+v", summary)
	}
	if summary.LatestMontage != "0.0" || summary.Path != env.indexPath {
		t.Fatalf("unexpected index summary: %+v", summary)
	}
}

func TestCLIRejectsUnknownFormat(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"plan", "--format", "yaml"}, env.configPath)
	if err == nil {
		t.Fatal("expected format error")
	}
	requireContains(t, err.Error(), "unsupported --format")
}

func TestCLIConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	showOut, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, showOut, "db_root = ")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	initOut, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, initOut, target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
