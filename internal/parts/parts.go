// Package parts defines the normalized input record for the pipeline and the
// CSV reader that produces it.
package parts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Record is one part to resolve. Immutable once read; InternalID is the
// uniqueness key within a run.
type Record struct {
	InternalID   string
	Manufacturer string
	MPN          string
}

var requiredColumns = []string{"internal_id", "manufacturer", "mfr_part_number"}

// ReadCSV reads part records from a CSV with header-matched columns
// (case-insensitive): internal_id, manufacturer, mfr_part_number.
// Duplicate internal IDs are a user-input error, not silently merged.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(requiredColumns))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	seen := make(map[string]bool)
	var records []Record
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		field := func(col string) (string, error) {
			i := idx[col]
			if i >= len(rec) {
				return "", fmt.Errorf("line %d: row has %d columns, want at least %d", line, len(rec), i+1)
			}
			return strings.TrimSpace(rec[i]), nil
		}
		id, err := field("internal_id")
		if err != nil {
			return nil, err
		}
		manufacturer, err := field("manufacturer")
		if err != nil {
			return nil, err
		}
		mpn, err := field("mfr_part_number")
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("line %d: empty internal_id", line)
		}
		if seen[id] {
			return nil, fmt.Errorf("line %d: duplicate internal_id %q", line, id)
		}
		seen[id] = true
		records = append(records, Record{
			InternalID:   id,
			Manufacturer: manufacturer,
			MPN:          mpn,
		})
	}
	return records, nil
}
