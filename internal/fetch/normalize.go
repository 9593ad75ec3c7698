package fetch

import (
	"net/url"
	"strings"
)

const tiRedirectPrefix = "https://www.ti.com/general/docs/suppproductinfo.tsp?"

// NormalizeURL rewrites known-broken datasheet URL shapes returned by the
// catalog:
//   - TI suppproductinfo.tsp interstitials resolve to the direct
//     /lit/ds/symlink PDF.
//   - Scheme-relative "//mm..." URLs get an https scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, tiRedirectPrefix) {
		if direct := resolveTIRedirect(raw); direct != "" {
			return direct
		}
	}
	return raw
}

func resolveTIRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	goto_ := u.Query().Get("gotoUrl")
	if goto_ == "" {
		return ""
	}
	goto_ = strings.TrimRight(goto_, "/")
	i := strings.LastIndex(goto_, "/")
	if i < 0 || i == len(goto_)-1 {
		return ""
	}
	part := goto_[i+1:]
	return "https://www.ti.com/lit/ds/symlink/" + part + ".pdf"
}

// SafeFileName reduces a manufacturer part number to a filesystem-safe base
// name: alphanumerics, spaces, dashes and underscores survive, everything
// else is dropped.
func SafeFileName(mpn string) string {
	var b strings.Builder
	for _, r := range mpn {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
