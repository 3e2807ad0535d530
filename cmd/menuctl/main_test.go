package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/config"
	"github.com/fdg312/menu-batches/internal/httpserver"
	"github.com/fdg312/menu-batches/internal/storage/memory"
)

func startAPI(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{AuthMode: "dev", JWTSecret: "test-secret", JWTIssuer: "menu-batches", JWTTTLMinutes: 60}
	srv := httpserver.NewWithStorage(cfg, memory.New())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var g globalFlags
	root := newRootCmd(&g)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--plain"))
	err := root.Execute()
	return out.String(), err
}

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const plan = `consumer_id: 42
year: 2099
month: 3
days:
  - day: 10
    lunch: {description: Borscht, calories: 350}
`

func TestApplyAndShow(t *testing.T) {
	api := startAPI(t)
	path := writePlan(t, plan)

	out, err := run(t, "apply", path, "--dry-run", "--api", api)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "+ 10 LUNCH     Borscht") || strings.Contains(out, "batch ") {
		t.Fatalf("unexpected dry-run output:\n%s", out)
	}

	out, err = run(t, "apply", path, "--submit", "--api", api)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out, "batch 1 SUBMITTED") {
		t.Fatalf("unexpected apply output:\n%s", out)
	}

	out, err = run(t, "show", "1", "--api", api)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Batch #1", "March 2099", "Borscht", "no meal planned"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "show", "1", "--yaml", "--api", api)
	if err != nil || !strings.Contains(out, "batch_id: 1") {
		t.Fatalf("show --yaml: %v\n%s", err, out)
	}
}

func TestReviewCommands(t *testing.T) {
	api := startAPI(t)
	if _, err := run(t, "apply", writePlan(t, plan), "--submit", "--api", api); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "reject", "1", "--reason", "   ", "--api", api)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("blank reason: expected exit 2, got %v", err)
	}

	if out, err := run(t, "reject", "1", "--reason", "no soup please", "--api", api); err != nil || !strings.Contains(out, "REJECTED") {
		t.Fatalf("reject: %v\n%s", err, out)
	}
	if out, err := run(t, "reason", "1", "--api", api); err != nil || strings.TrimSpace(out) != "no soup please" {
		t.Fatalf("reason: %v\n%q", err, out)
	}

	_, err = run(t, "approve", "1", "--api", api)
	if !errors.As(err, &ee) || ee.code != 4 {
		t.Fatalf("approve rejected batch: expected exit 4, got %v", err)
	}

	_, err = run(t, "show", "77", "--api", api)
	if !errors.As(err, &ee) || ee.code != 3 {
		t.Fatalf("missing batch: expected exit 3, got %v", err)
	}
}

func TestExportWritesFile(t *testing.T) {
	api := startAPI(t)
	if _, err := run(t, "apply", writePlan(t, plan), "--api", api); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "menu.csv")
	out, err := run(t, "export", "1", "--format", "csv", "-o", dest, "--api", api)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "wrote "+dest) {
		t.Errorf("unexpected output %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Borscht") {
		t.Errorf("unexpected csv:\n%s", data)
	}
}

func TestParseBatchID(t *testing.T) {
	if _, err := parseBatchID("abc"); err == nil {
		t.Error("expected error")
	}
	if id, err := parseBatchID("12"); err != nil || id != 12 {
		t.Errorf("got %d, %v", id, err)
	}
}

func TestBatchTableAlignsColoredStatus(t *testing.T) {
	updated := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	list := []batches.BatchDTO{
		{ID: 1, ConsumerID: 7, Year: 2026, Month: 5, Status: batches.StatusDraft, ItemCount: 3, UpdatedAt: updated},
		{ID: 12, ConsumerID: 1042, Year: 2026, Month: 6, Status: batches.StatusSubmitted, ItemCount: 28, UpdatedAt: updated},
	}
	colors := map[batches.Status]string{
		batches.StatusDraft:     "\x1b[38;5;245m",
		batches.StatusSubmitted: "\x1b[1;34m",
	}
	badge := func(s batches.Status) string { return colors[s] + string(s) + "\x1b[0m" }

	var out bytes.Buffer
	if err := writeBatchTable(&out, list, badge); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", out.String())
	}
	stamp := updated.Local().Format(time.DateTime)
	statusCol := strings.Index(lines[0], "STATUS")
	updatedCol := strings.Index(lines[0], "UPDATED")
	for _, line := range lines[1:] {
		if got := strings.Index(line, stamp); got != updatedCol {
			t.Errorf("UPDATED misaligned in %q: %d, want %d", line, got, updatedCol)
		}
		if got := strings.Index(line, "\x1b["); got != statusCol {
			t.Errorf("STATUS misaligned in %q: %d, want %d", line, got, statusCol)
		}
	}
}
