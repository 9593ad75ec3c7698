// Package runstate provides resume/dedup state loaded from the persisted
// report and the single-instance lock guarding the destination directory.
package runstate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ecadtools/datasheetdl/internal/report"
)

// Store maps internal IDs to their last terminal row from a prior run.
// It is read-only after Load; only the search stage consults it.
type Store struct {
	prior map[string]report.Row
}

// Load builds the resume store from the persisted report at reportPath.
// A missing report yields an empty store. force discards all prior state so
// every part is reprocessed.
func Load(reportPath string, force bool) (*Store, error) {
	s := &Store{prior: make(map[string]report.Row)}
	if force {
		return s, nil
	}
	rows, err := report.ReadCSV(reportPath)
	if err != nil {
		return nil, fmt.Errorf("load resume state: %w", err)
	}
	for _, row := range rows {
		if row.InternalID == "" {
			continue
		}
		s.prior[row.InternalID] = row
	}
	return s, nil
}

// FromRows builds a store directly from rows, for tests and in-memory use.
func FromRows(rows []report.Row) *Store {
	s := &Store{prior: make(map[string]report.Row, len(rows))}
	for _, row := range rows {
		s.prior[row.InternalID] = row
	}
	return s
}

// Finalized returns the stored terminal row for id, if one exists. Operators
// force-retry individual parts by deleting their rows from the report.
func (s *Store) Finalized(id string) (report.Row, bool) {
	row, ok := s.prior[id]
	return row, ok
}

// Len reports how many parts are already finalized.
func (s *Store) Len() int { return len(s.prior) }

// Rows returns all stored prior rows, in no particular order. The aggregator
// carries them forward so a rewritten report never loses a prior terminal row.
func (s *Store) Rows() []report.Row {
	out := make([]report.Row, 0, len(s.prior))
	for _, row := range s.prior {
		out = append(out, row)
	}
	return out
}

// ExistingDocument reports whether path already holds a plausible datasheet:
// non-empty and starting with the PDF magic bytes. Used for the skip-fast
// path before any network call.
func ExistingDocument(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close()
	}()
	head := make([]byte, 4)
	n, err := f.Read(head)
	if err != nil || n < 4 {
		return false
	}
	return bytes.Equal(head, []byte("%PDF"))
}

// Lock is an exclusive single-instance lock. A second concurrent invocation
// fails fast instead of corrupting shared state.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively, recording the holder pid.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		holder := "unknown pid"
		if b, readErr := os.ReadFile(path); readErr == nil {
			if pid := strings.TrimSpace(string(b)); pid != "" {
				holder = "pid " + pid
			}
		}
		return nil, fmt.Errorf("another run holds the lock at %s (%s); remove the file if that process is gone", path, holder)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if writeErr != nil {
			return nil, fmt.Errorf("write lock %s: %w", path, writeErr)
		}
		return nil, fmt.Errorf("write lock %s: %w", path, closeErr)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call once on every exit path.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}
