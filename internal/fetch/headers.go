package fetch

import (
	"math/rand/v2"
	"net/http"
)

// userAgents rotates across a few current desktop browsers. Some document
// hosts refuse anything that does not look like a browser.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.112 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// applyBrowserHeaders sets a fresh randomized browser-like header set.
// Called per attempt so consecutive retries do not present an identical
// fingerprint.
func applyBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "application/pdf,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
