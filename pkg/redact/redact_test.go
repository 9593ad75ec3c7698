package redact_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ecadtools/datasheetdl/pkg/redact"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	got := redact.Secrets("auth failed: Bearer eyJhbGciOi.abc.def status=401")
	if strings.Contains(got, "eyJhbGciOi") {
		t.Fatalf("bearer token leaked: %q", got)
	}
	if !strings.Contains(got, "Bearer <redacted>") {
		t.Fatalf("expected redaction marker, got %q", got)
	}

	got = redact.Secrets(`post token: client_secret=s3cr3tvalue rejected`)
	if strings.Contains(got, "s3cr3tvalue") {
		t.Fatalf("client secret leaked: %q", got)
	}

	if redact.Secrets("") != "" {
		t.Fatalf("empty input should stay empty")
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	if redact.Error(nil) != "" {
		t.Fatalf("nil error should redact to empty string")
	}
	got := redact.Error(errors.New("access_token=abc123 expired"))
	if strings.Contains(got, "abc123") {
		t.Fatalf("token leaked: %q", got)
	}
}
