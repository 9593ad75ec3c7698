// Package report owns the persisted run report: the row model, the fixed
// status priority used for sort order, and atomic CSV emission. The report
// doubles as the resume store's source of truth on the next run.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Terminal statuses, in report priority order.
const (
	StatusSuccess        = "success"
	StatusSkipped        = "skipped"
	StatusNoDatasheet    = "no_datasheet"
	StatusNotFound       = "not_found"
	StatusDownloadFailed = "download_failed"
	StatusError          = "error"
)

var statusRank = map[string]int{
	StatusSuccess:        0,
	StatusSkipped:        1,
	StatusNoDatasheet:    2,
	StatusNotFound:       3,
	StatusDownloadFailed: 4,
	StatusError:          5,
}

// Rank returns the sort priority for a status; unknown statuses sort last.
func Rank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return len(statusRank)
}

// Row is the terminal record for one part. Rows are append-only during a run
// and stand alone in the persisted report.
type Row struct {
	InternalID      string
	Manufacturer    string
	MPN             string
	Status          string
	Detail          string
	DatasheetURL    string
	FileOrManualURL string
}

// Header returns the stable CSV header.
func Header() []string {
	return []string{
		"internal_id",
		"manufacturer",
		"mfr_part_number",
		"status",
		"detail",
		"datasheet_url",
		"file_path_or_manual_url",
	}
}

func (r Row) fields() []string {
	return []string{
		r.InternalID,
		r.Manufacturer,
		r.MPN,
		r.Status,
		r.Detail,
		r.DatasheetURL,
		r.FileOrManualURL,
	}
}

// Sort orders rows by status priority, then by internal ID, so the emitted
// report is deterministic regardless of completion interleaving.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := Rank(rows[i].Status), Rank(rows[j].Status)
		if ri != rj {
			return ri < rj
		}
		return rows[i].InternalID < rows[j].InternalID
	})
}

// WriteCSV writes the report to path, replacing any prior file atomically:
// the rows land in a temporary file first and are renamed into place, so an
// interrupted write never corrupts the resumable report.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header()); err != nil {
		_ = tmp.Close()
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.fields()); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadCSV loads a previously persisted report. A missing file yields no rows
// and no error (first run).
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range Header() {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("report %s: missing column %q", path, col)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		get := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		rows = append(rows, Row{
			InternalID:      get("internal_id"),
			Manufacturer:    get("manufacturer"),
			MPN:             get("mfr_part_number"),
			Status:          get("status"),
			Detail:          get("detail"),
			DatasheetURL:    get("datasheet_url"),
			FileOrManualURL: get("file_path_or_manual_url"),
		})
	}
	return rows, nil
}
