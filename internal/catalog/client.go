// Package catalog is the vendor catalog API client: OAuth client-credentials
// authentication, keyword search and classification of search results into
// the pipeline's closed outcome taxonomy.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized signals an expired or rejected token. Callers refresh the
// credential in place and retry once before retiring it.
var ErrUnauthorized = errors.New("catalog: unauthorized")

// Credential identifies one vendor API key. Each credential is owned
// exclusively by one search worker for the duration of a run.
type Credential struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Client holds the HTTP transport and endpoint configuration shared by all
// sessions.
type Client struct {
	baseURL string
	httpc   *http.Client
	locale  string
}

// NewClient builds a catalog client against baseURL. timeout bounds each
// request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		locale:  "US",
	}
}

// SetLocale overrides the locale site header sent with searches.
func (c *Client) SetLocale(locale string) {
	if locale != "" {
		c.locale = locale
	}
}

// Session pairs a credential with its live token state. Not safe for
// concurrent use; each session belongs to exactly one worker.
type Session struct {
	client *Client
	cred   Credential
	token  string
	expiry time.Time
}

// NewSession creates a session for cred. The first Search authenticates
// lazily.
func (c *Client) NewSession(cred Credential) *Session {
	return &Session{client: c, cred: cred}
}

// CredentialID returns the owning credential's identifier.
func (s *Session) CredentialID() string { return s.cred.ID }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate performs the client-credentials handshake and replaces the
// session token in place. The expiry carries a 5 minute refresh buffer,
// clamped to half the token lifetime when the vendor grants less.
func (s *Session) Authenticate(ctx context.Context) error {
	form := url.Values{
		"client_id":     {s.cred.ClientID},
		"client_secret": {s.cred.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate credential %s: %w", s.cred.ID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("authenticate credential %s: read body: %w", s.cred.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return newAPIError("authenticate", resp, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("authenticate credential %s: parse token: %w", s.cred.ID, err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return fmt.Errorf("authenticate credential %s: empty access token", s.cred.ID)
	}
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	ttl := time.Duration(expiresIn) * time.Second
	buffer := 5 * time.Minute
	if buffer >= ttl {
		// Short-lived tokens keep half their lifetime; a fixed buffer would
		// put the expiry in the past and force a handshake per search.
		buffer = ttl / 2
	}
	s.token = tok.AccessToken
	s.expiry = time.Now().Add(ttl - buffer)
	return nil
}

func (s *Session) ensureAuthenticated(ctx context.Context) error {
	if s.token != "" && time.Now().Before(s.expiry) {
		return nil
	}
	if err := s.Authenticate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// Product is one catalog match.
type Product struct {
	Manufacturer           string `json:"Manufacturer"`
	ManufacturerPartNumber string `json:"ManufacturerPartNumber"`
	VendorPartNumber       string `json:"VendorPartNumber"`
	DatasheetURL           string `json:"DatasheetUrl"`
	ProductStatus          string `json:"ProductStatus"`
}

// SearchResponse is the parsed HTTP 200 search payload.
type SearchResponse struct {
	Products []Product `json:"Products"`
}

type searchRequest struct {
	Keywords            string         `json:"Keywords"`
	RecordCount         int            `json:"RecordCount"`
	RecordStartPosition int            `json:"RecordStartPosition"`
	Filters             map[string]any `json:"Filters"`
}

// Search issues a keyword search for the given part number. A 401 response
// (or a failed token refresh) is reported as ErrUnauthorized; other non-200
// statuses surface as *APIError.
func (s *Session) Search(ctx context.Context, keyword string) (*SearchResponse, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(searchRequest{
		Keywords:    keyword,
		RecordCount: 10,
		Filters:     map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.baseURL+"/products/v4/search/keyword", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-Client-Id", s.cred.ClientID)
	req.Header.Set("X-Locale-Site", s.client.locale)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("search %q: read body: %w", keyword, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var sr SearchResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, fmt.Errorf("search %q: parse response: %w", keyword, err)
		}
		return &sr, nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Force re-auth on the retry path.
		s.token = ""
		return nil, fmt.Errorf("%w: search %q", ErrUnauthorized, keyword)
	default:
		return nil, newAPIError("search", resp, body)
	}
}
