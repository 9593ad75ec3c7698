package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value / key:value formats that sometimes leak in error strings.
	secretKVRe = regexp.MustCompile(`(?i)\b(client[_-]?secret|access[_-]?token|api[_-]?key)\b\s*[:=]\s*[^\s"',}]+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = secretKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}

// Error is a convenience for logging: it redacts err.Error(), tolerating nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}
