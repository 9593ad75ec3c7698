package catalog

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassifySearch(t *testing.T) {
	t.Parallel()

	t.Run("resolved", func(t *testing.T) {
		resp := &SearchResponse{Products: []Product{{
			ManufacturerPartNumber: "RC0603FR-071KL",
			VendorPartNumber:       "311-1.00KHRCT-ND",
			DatasheetURL:           "https://docs.example.com/rc0603.pdf",
		}}}
		out := ClassifySearch("RC0603FR-071KL", "Yageo", resp, nil)
		if out.Kind != SearchResolved {
			t.Fatalf("expected resolved, got %#v", out)
		}
		if out.DatasheetURL != "https://docs.example.com/rc0603.pdf" || out.VendorPartID != "311-1.00KHRCT-ND" {
			t.Fatalf("unexpected outcome: %#v", out)
		}
	})

	t.Run("zero matches is not found", func(t *testing.T) {
		out := ClassifySearch("NOPE", "", &SearchResponse{}, nil)
		if out.Kind != SearchNotFound {
			t.Fatalf("expected not found, got %#v", out)
		}
	})

	t.Run("http 404 is not found", func(t *testing.T) {
		err := &APIError{Op: "search", StatusCode: http.StatusNotFound}
		out := ClassifySearch("NOPE", "", nil, err)
		if out.Kind != SearchNotFound {
			t.Fatalf("expected not found, got %#v", out)
		}
	})

	t.Run("match without datasheet", func(t *testing.T) {
		resp := &SearchResponse{Products: []Product{{ManufacturerPartNumber: "LM358"}}}
		out := ClassifySearch("LM358", "", resp, nil)
		if out.Kind != SearchNoDatasheet {
			t.Fatalf("expected no datasheet, got %#v", out)
		}
	})

	t.Run("http 429 tags rate limited", func(t *testing.T) {
		err := &APIError{Op: "search", StatusCode: http.StatusTooManyRequests}
		out := ClassifySearch("LM358", "", nil, err)
		if out.Kind != SearchErrored || !out.RateLimited {
			t.Fatalf("expected rate-limited error, got %#v", out)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		out := ClassifySearch("LM358", "", nil, errors.New("dial tcp: connection refused"))
		if out.Kind != SearchErrored || out.RateLimited {
			t.Fatalf("expected plain error, got %#v", out)
		}
	})
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	products := []Product{
		{ManufacturerPartNumber: "LM358-EXTENDED", DatasheetURL: "u1", ProductStatus: "Active"},
		{ManufacturerPartNumber: "LM358", Manufacturer: "Texas Instruments", DatasheetURL: "u2"},
		{ManufacturerPartNumber: "OTHER", DatasheetURL: "u3", ProductStatus: "Active"},
	}

	t.Run("exact match wins", func(t *testing.T) {
		got := BestMatch("lm358", "", products)
		if got == nil || got.ManufacturerPartNumber != "LM358" {
			t.Fatalf("unexpected match: %#v", got)
		}
	})

	t.Run("manufacturer breaks ties", func(t *testing.T) {
		ps := []Product{
			{ManufacturerPartNumber: "LM358", Manufacturer: "Clone Corp", DatasheetURL: "c"},
			{ManufacturerPartNumber: "LM358", Manufacturer: "Texas Instruments", DatasheetURL: "ti"},
		}
		got := BestMatch("LM358", "Texas Instruments", ps)
		if got == nil || got.DatasheetURL != "ti" {
			t.Fatalf("unexpected match: %#v", got)
		}
	})

	t.Run("substring match second", func(t *testing.T) {
		got := BestMatch("LM358-EXT", "", products)
		if got == nil || got.ManufacturerPartNumber != "LM358-EXTENDED" {
			t.Fatalf("unexpected match: %#v", got)
		}
	})

	t.Run("falls back to active with datasheet", func(t *testing.T) {
		ps := []Product{
			{ManufacturerPartNumber: "A", ProductStatus: "Obsolete"},
			{ManufacturerPartNumber: "B", ProductStatus: "Active", DatasheetURL: "u"},
		}
		got := BestMatch("ZZZ", "", ps)
		if got == nil || got.ManufacturerPartNumber != "B" {
			t.Fatalf("unexpected match: %#v", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := BestMatch("X", "", nil); got != nil {
			t.Fatalf("expected nil, got %#v", got)
		}
	})
}

func TestRetryableDownloadStatus(t *testing.T) {
	t.Parallel()

	retryable := []int{403, 429, 500, 502, 503}
	for _, code := range retryable {
		if !RetryableDownloadStatus(code) {
			t.Fatalf("expected %d to be retryable", code)
		}
	}
	permanent := []int{400, 401, 404, 410}
	for _, code := range permanent {
		if RetryableDownloadStatus(code) {
			t.Fatalf("expected %d to be permanent", code)
		}
	}
}
