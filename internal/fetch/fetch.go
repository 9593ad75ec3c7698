// Package fetch downloads datasheet documents from vendor-hosted URLs.
// Document hosts sit behind anti-automation defenses, so each attempt uses a
// fresh browser-like header set and refusals walk an exponential backoff
// ladder before the part is reported as blocked.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ecadtools/datasheetdl/internal/catalog"
	"github.com/ecadtools/datasheetdl/pkg/pipeline/backoff"
)

const pdfMagic = "%PDF"

// minDocumentSize rejects error pages served with a 200 status.
const minDocumentSize = 1024

// RefusedError reports a retry ladder exhausted on 403/429/5xx refusals.
// The pipeline maps it to the Blocked outcome, preserving the manual URL.
type RefusedError struct {
	StatusCode int
	Attempts   int
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("refused after %d attempts (HTTP %d)", e.Attempts, e.StatusCode)
}

// HTTPStatusError reports an unambiguous non-retryable HTTP failure.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// InvalidDocumentError reports bytes that are not a well-formed PDF.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return "invalid document: " + e.Reason
}

// Result describes a committed download.
type Result struct {
	Path  string
	Bytes int64
}

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Policy is the shared backoff ladder.
	Policy backoff.Policy
	// Sleep is injectable for tests; defaults to backoff.Sleep.
	Sleep backoff.SleepFunc
}

// Fetcher downloads and validates documents. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	policy  backoff.Policy
	sleep   backoff.SleepFunc
}

// New builds a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = backoff.Sleep
	}
	return &Fetcher{
		// Per-attempt deadlines come from the request context, not a
		// client-wide timeout, so cancellation propagates cleanly.
		client:  &http.Client{},
		timeout: opts.Timeout,
		policy:  opts.Policy,
		sleep:   opts.Sleep,
	}
}

// Fetch downloads url to dest, walking the retry ladder on refusals and
// transient transport failures. The document is validated before commit and
// written via a temporary path plus atomic rename, so a crash mid-write
// never leaves a partial file at dest.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) (Result, error) {
	u := NormalizeURL(rawURL)

	attempts := f.policy.Attempts()
	var lastStatus int
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, f.policy.Delay(attempt-1)); err != nil {
				return Result{}, err
			}
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		res, status, err := f.attempt(ctx, u, dest)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return Result{}, ctx.Err()
		case status > 0 && catalog.RetryableDownloadStatus(status):
			lastStatus, lastErr = status, err
		case status > 0:
			return Result{}, &HTTPStatusError{StatusCode: status}
		case retryableTransport(err):
			lastStatus, lastErr = 0, err
		default:
			return Result{}, err
		}
	}

	if lastStatus > 0 {
		return Result{}, &RefusedError{StatusCode: lastStatus, Attempts: attempts}
	}
	return Result{}, fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

// attempt performs one fetch. A non-zero status is returned for HTTP-level
// failures so the caller can pick the retry policy.
func (f *Fetcher) attempt(ctx context.Context, url, dest string) (Result, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, 0, err
	}
	applyBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, resp.StatusCode, fmt.Errorf("HTTP %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, 0, err
	}
	if err := validateDocument(body); err != nil {
		return Result{}, 0, err
	}
	n, err := commit(body, dest)
	if err != nil {
		return Result{}, 0, err
	}
	return Result{Path: dest, Bytes: n}, 0, nil
}

func validateDocument(body []byte) error {
	if len(body) < minDocumentSize {
		return &InvalidDocumentError{Reason: fmt.Sprintf("only %d bytes", len(body))}
	}
	if string(body[:len(pdfMagic)]) != pdfMagic {
		return &InvalidDocumentError{Reason: "missing PDF magic bytes"}
	}
	return nil
}

// commit writes body next to dest and renames it into place.
func commit(body []byte, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp := dest + ".partial"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return int64(len(body)), nil
}

func retryableTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
