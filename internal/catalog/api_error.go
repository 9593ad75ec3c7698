package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ecadtools/datasheetdl/pkg/redact"
)

// vendorErrorEnvelope is the error shape returned by the catalog API.
// Responses may include additional fields; we intentionally ignore them.
type vendorErrorEnvelope struct {
	ErrorCode    string `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
}

// APIError is a sanitized summary of a non-2xx catalog API response.
//
// Important: do not include raw response bodies here (can leak tokens).
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string
	Message    string

	// Snippet is a redacted, truncated hint for non-envelope responses.
	Snippet string
}

func (e *APIError) Error() string {
	if e == nil {
		return "catalog api error"
	}
	parts := []string{
		fmt.Sprintf("catalog api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "errorCode="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	e := &APIError{Op: op}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
	}

	// Best effort: parse the vendor error envelope.
	var env vendorErrorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		e.ErrorCode = strings.TrimSpace(env.ErrorCode)
		e.Message = redact.Secrets(env.ErrorMessage)
		if e.ErrorCode != "" || e.Message != "" {
			return e
		}
	}

	e.Snippet = redactAndTruncate(body)
	return e
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
