// Package mockvendor implements a minimal in-process stand-in for the part
// catalog vendor: the OAuth token endpoint, keyword search, and a document
// host. Tests drive failure modes through the exported knobs.
package mockvendor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ecadtools/datasheetdl/internal/catalog"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

type credential struct {
	clientID     string
	clientSecret string
}

type document struct {
	body     []byte
	refusals int
	status   int
}

// Server is safe for concurrent use by the client pools it fakes out.
type Server struct {
	mu sync.Mutex

	calls       []Call
	credentials []credential
	products    map[string][]catalog.Product
	documents   map[string]*document

	tokenExpiresIn int
	nextToken      int
	invalidTokens  int
	validTokens    map[string]bool
	searchStatus   int
	searchBody     string
}

// New constructs an empty mock vendor.
func New() *Server {
	return &Server{
		products:       make(map[string][]catalog.Product),
		documents:      make(map[string]*document),
		validTokens:    make(map[string]bool),
		tokenExpiresIn: 3600,
		nextToken:      1,
	}
}

// Handler returns the http.Handler serving all three surfaces.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", s.handleToken)
	mux.HandleFunc("/products/v4/search/keyword", s.handleSearch)
	mux.HandleFunc("/docs/", s.handleDocument)
	return mux
}

// RegisterCredential makes a client id/secret pair acceptable to the token
// endpoint.
func (s *Server) RegisterCredential(clientID, clientSecret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, credential{clientID, clientSecret})
}

// AddProduct registers the products returned for a keyword search.
func (s *Server) AddProduct(keyword string, products ...catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[keyword] = append(s.products[keyword], products...)
}

// AddDocument serves body at /docs/<name>.
func (s *Server) AddDocument(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[name] = &document{body: body}
}

// RefuseDocument makes the next n requests for /docs/<name> fail with status
// before the document serves normally. The document must already exist.
func (s *Server) RefuseDocument(name string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.documents[name]; ok {
		d.refusals = n
		d.status = status
	}
}

// RevokeTokens invalidates every outstanding token, so the next search gets
// a 401 and the client has to re-authenticate.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.validTokens)
}

// ForceSearchStatus makes every search respond with status and body until
// reset with status 0.
func (s *Server) ForceSearchStatus(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchStatus = status
	s.searchBody = body
}

// IssueInvalidTokens makes the next n token grants succeed but hand out
// tokens the search endpoint will reject, so clients exercise their
// refresh-and-retry path.
func (s *Server) IssueInvalidTokens(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidTokens = n
}

// SetTokenExpiresIn overrides the expires_in the token endpoint reports.
func (s *Server) SetTokenExpiresIn(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenExpiresIn = seconds
}

// Calls returns a snapshot of requests made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many requests hit the given path.
func (s *Server) CallCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	id := r.PostFormValue("client_id")
	secret := r.PostFormValue("client_secret")

	s.mu.Lock()
	defer s.mu.Unlock()
	ok := false
	for _, c := range s.credentials {
		if c.clientID == id && c.clientSecret == secret {
			ok = true
			break
		}
	}
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ErrorMessage":"invalid client credentials"}`))
		return
	}

	token := fmt.Sprintf("tok-%06d", s.nextToken)
	s.nextToken++
	if s.invalidTokens > 0 {
		s.invalidTokens--
	} else {
		s.validTokens[token] = true
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.tokenExpiresIn,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	valid := s.validTokens[token]
	forced, forcedBody := s.searchStatus, s.searchBody
	s.mu.Unlock()
	if !valid {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ErrorMessage":"token expired or invalid"}`))
		return
	}
	if forced != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(forced)
		_, _ = w.Write([]byte(forcedBody))
		return
	}

	var req struct {
		Keywords string `json:"Keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad search request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	products := s.products[req.Keywords]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(catalog.SearchResponse{Products: products})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	name := strings.TrimPrefix(r.URL.Path, "/docs/")

	s.mu.Lock()
	d, ok := s.documents[name]
	if ok && d.refusals > 0 {
		d.refusals--
		status := d.status
		s.mu.Unlock()
		http.Error(w, "refused", status)
		return
	}
	var body []byte
	if ok {
		body = d.body
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(body)
}

// PDF builds a minimally valid document body of at least n bytes, for tests.
func PDF(n int) []byte {
	body := []byte("%PDF-1.4\n")
	for len(body) < n {
		body = append(body, "0123456789abcdef"...)
	}
	return body
}
