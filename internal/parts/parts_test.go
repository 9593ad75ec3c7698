package parts_test

import (
	"strings"
	"testing"

	"github.com/ecadtools/datasheetdl/internal/parts"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	t.Run("reads records", func(t *testing.T) {
		in := "internal_id,manufacturer,mfr_part_number\nA1,Yageo,RC0603FR-071KL\nA2,TI,LM358\n"
		got, err := parts.ReadCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		if got[0].InternalID != "A1" || got[0].Manufacturer != "Yageo" || got[0].MPN != "RC0603FR-071KL" {
			t.Fatalf("unexpected record: %#v", got[0])
		}
	})

	t.Run("header is case-insensitive and order-free", func(t *testing.T) {
		in := "Mfr_Part_Number,Internal_ID,Manufacturer\nLM358,A1,TI\n"
		got, err := parts.ReadCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].InternalID != "A1" || got[0].MPN != "LM358" {
			t.Fatalf("unexpected records: %#v", got)
		}
	})

	t.Run("missing column errors", func(t *testing.T) {
		in := "internal_id,manufacturer\nA1,TI\n"
		if _, err := parts.ReadCSV(strings.NewReader(in)); err == nil {
			t.Fatalf("expected error for missing mfr_part_number")
		}
	})

	t.Run("duplicate internal_id errors", func(t *testing.T) {
		in := "internal_id,manufacturer,mfr_part_number\nA1,TI,LM358\nA1,TI,LM324\n"
		_, err := parts.ReadCSV(strings.NewReader(in))
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Fatalf("expected duplicate error, got %v", err)
		}
	})
}
