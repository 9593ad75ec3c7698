package runstate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ecadtools/datasheetdl/internal/report"
	"github.com/ecadtools/datasheetdl/internal/runstate"
)

func TestLoadResumeState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.csv")
	rows := []report.Row{
		{InternalID: "A1", Status: report.StatusSuccess, FileOrManualURL: "datasheets/a1.pdf"},
		{InternalID: "A2", Status: report.StatusNotFound},
	}
	if err := report.WriteCSV(path, rows); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	s, err := runstate.Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 finalized parts, got %d", s.Len())
	}
	row, ok := s.Finalized("A1")
	if !ok || row.Status != report.StatusSuccess || row.FileOrManualURL != "datasheets/a1.pdf" {
		t.Fatalf("unexpected stored row: %#v ok=%t", row, ok)
	}
	if _, ok := s.Finalized("A3"); ok {
		t.Fatalf("A3 should not be finalized")
	}
}

func TestLoadForceDiscardsPriorState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.csv")
	if err := report.WriteCSV(path, []report.Row{{InternalID: "A1", Status: report.StatusSuccess}}); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	s, err := runstate.Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("force should discard prior state, got %d entries", s.Len())
	}
}

func TestLoadMissingReport(t *testing.T) {
	t.Parallel()

	s, err := runstate.Load(filepath.Join(t.TempDir(), "absent.csv"), false)
	if err != nil {
		t.Fatalf("first run should not error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestExistingDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	pdf := filepath.Join(dir, "ok.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4 content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !runstate.ExistingDocument(pdf) {
		t.Fatalf("valid pdf should count as existing")
	}

	html := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(html, []byte("<html>error</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if runstate.ExistingDocument(html) {
		t.Fatalf("non-pdf bytes must not count as existing")
	}

	empty := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if runstate.ExistingDocument(empty) {
		t.Fatalf("empty file must not count as existing")
	}

	if runstate.ExistingDocument(filepath.Join(dir, "absent.pdf")) {
		t.Fatalf("missing file must not count as existing")
	}
}

func TestLockConflict(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.lock")
	l, err := runstate.AcquireLock(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_, err = runstate.AcquireLock(path)
	if err == nil || !strings.Contains(err.Error(), "another run") {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Releasing frees the lock for the next run.
	l2, err := runstate.AcquireLock(path)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}
