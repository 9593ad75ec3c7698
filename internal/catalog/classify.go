package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ecadtools/datasheetdl/pkg/redact"
)

// SearchKind tags a SearchOutcome variant.
type SearchKind int

const (
	SearchResolved SearchKind = iota
	SearchNotFound
	SearchNoDatasheet
	SearchErrored
)

// SearchOutcome is the terminal classification of one search attempt.
// Exactly one is produced per part record.
type SearchOutcome struct {
	Kind         SearchKind
	DatasheetURL string
	VendorPartID string
	Detail       string

	// RateLimited marks a SearchErrored caused by HTTP 429; the stage
	// schedules a backoff before the credential's next acquire.
	RateLimited bool
}

// ClassifySearch maps a raw search result to the closed outcome taxonomy.
// It is pure: retry and auth-refresh decisions live in the search stage.
func ClassifySearch(keyword, manufacturer string, resp *SearchResponse, err error) SearchOutcome {
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusNotFound:
				return SearchOutcome{Kind: SearchNotFound, Detail: "no match in catalog"}
			case http.StatusTooManyRequests:
				return SearchOutcome{Kind: SearchErrored, Detail: "rate limited", RateLimited: true}
			}
		}
		return SearchOutcome{Kind: SearchErrored, Detail: redact.Error(err)}
	}

	if resp == nil || len(resp.Products) == 0 {
		return SearchOutcome{Kind: SearchNotFound, Detail: "no match in catalog"}
	}
	best := BestMatch(keyword, manufacturer, resp.Products)
	if best == nil || strings.TrimSpace(best.DatasheetURL) == "" {
		return SearchOutcome{Kind: SearchNoDatasheet, Detail: "match has no datasheet"}
	}
	return SearchOutcome{
		Kind:         SearchResolved,
		DatasheetURL: best.DatasheetURL,
		VendorPartID: best.VendorPartNumber,
	}
}

// BestMatch picks the most plausible product for the searched part number:
// exact MPN match first, then substring match, then an active product with a
// datasheet, then the first result. A manufacturer name (already normalized
// by the caller's lookup capability) breaks ties at each tier when present.
func BestMatch(keyword, manufacturer string, products []Product) *Product {
	if len(products) == 0 {
		return nil
	}
	upper := strings.ToUpper(strings.TrimSpace(keyword))
	mfr := strings.ToUpper(strings.TrimSpace(manufacturer))

	matchesMfr := func(p *Product) bool {
		return mfr == "" || strings.ToUpper(strings.TrimSpace(p.Manufacturer)) == mfr
	}
	pick := func(pred func(p *Product) bool) *Product {
		var fallback *Product
		for i := range products {
			p := &products[i]
			if !pred(p) {
				continue
			}
			if matchesMfr(p) {
				return p
			}
			if fallback == nil {
				fallback = p
			}
		}
		return fallback
	}

	if p := pick(func(p *Product) bool {
		return strings.ToUpper(p.ManufacturerPartNumber) == upper
	}); p != nil {
		return p
	}
	if p := pick(func(p *Product) bool {
		mpn := strings.ToUpper(p.ManufacturerPartNumber)
		return mpn != "" && (strings.Contains(mpn, upper) || strings.Contains(upper, mpn))
	}); p != nil {
		return p
	}
	if p := pick(func(p *Product) bool {
		return p.ProductStatus == "Active" && strings.TrimSpace(p.DatasheetURL) != ""
	}); p != nil {
		return p
	}
	return &products[0]
}

// RetryableDownloadStatus reports whether an HTTP status on the document
// fetch path should walk the backoff ladder. 403 and 429 are anti-automation
// refusals; 5xx are host faults. Other 4xx abort immediately.
//
// TODO: confirm against current vendor API error semantics; the non-403/429
// set is inferred from observed behavior, not a published contract.
func RetryableDownloadStatus(code int) bool {
	if code == http.StatusForbidden || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}
