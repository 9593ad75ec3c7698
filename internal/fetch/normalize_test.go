package fetch_test

import (
	"testing"

	"github.com/ecadtools/datasheetdl/internal/fetch"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain url untouched",
			in:   "https://docs.example.com/part.pdf",
			want: "https://docs.example.com/part.pdf",
		},
		{
			name: "scheme-relative mm host",
			in:   "//mm.digikey.example/datasheet.pdf",
			want: "https://mm.digikey.example/datasheet.pdf",
		},
		{
			name: "ti interstitial resolves to symlink pdf",
			in:   "https://www.ti.com/general/docs/suppproductinfo.tsp?distId=10&gotoUrl=https%3A%2F%2Fwww.ti.com%2Fproduct%2FLM358",
			want: "https://www.ti.com/lit/ds/symlink/LM358.pdf",
		},
		{
			name: "ti interstitial without gotoUrl untouched",
			in:   "https://www.ti.com/general/docs/suppproductinfo.tsp?distId=10",
			want: "https://www.ti.com/general/docs/suppproductinfo.tsp?distId=10",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fetch.NormalizeURL(tc.in); got != tc.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"RC0603FR-071KL": "RC0603FR-071KL",
		"LM358/NOPB":     "LM358NOPB",
		"X?:*Y ":         "XY",
		"ABC_12 rev3 ":   "ABC_12 rev3",
	}
	for in, want := range cases {
		if got := fetch.SafeFileName(in); got != want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
