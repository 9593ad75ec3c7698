package mockvendor_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecadtools/datasheetdl/internal/catalog"
	"github.com/ecadtools/datasheetdl/internal/mockvendor"
)

func newServer(t *testing.T) (*mockvendor.Server, *httptest.Server) {
	t.Helper()
	mv := mockvendor.New()
	ts := httptest.NewServer(mv.Handler())
	t.Cleanup(ts.Close)
	return mv, ts
}

func obtainToken(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.PostForm(url+"/v1/oauth2/token", map[string][]string{
		"client_id":     {"id-a"},
		"client_secret": {"secret-a"},
		"grant_type":    {"client_credentials"},
	})
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return body.AccessToken
}

func search(t *testing.T, url, token, keyword string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"Keywords": keyword, "RecordCount": 10})
	req, _ := http.NewRequest(http.MethodPost, url+"/products/v4/search/keyword", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("search request: %v", err)
	}
	return resp
}

func TestTokenAndSearch(t *testing.T) {
	t.Parallel()

	mv, ts := newServer(t)
	mv.RegisterCredential("id-a", "secret-a")
	mv.AddProduct("RC0603FR-071KL", catalog.Product{
		ManufacturerPartNumber: "RC0603FR-071KL",
		DatasheetURL:           ts.URL + "/docs/rc0603.pdf",
		ProductStatus:          "Active",
	})

	token := obtainToken(t, ts.URL)
	resp := search(t, ts.URL, token, "RC0603FR-071KL")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status %d", resp.StatusCode)
	}
	var body catalog.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].ManufacturerPartNumber != "RC0603FR-071KL" {
		t.Fatalf("unexpected products: %#v", body.Products)
	}
}

func TestBadCredentialsRejected(t *testing.T) {
	t.Parallel()

	mv, ts := newServer(t)
	mv.RegisterCredential("id-a", "secret-a")

	resp, err := http.PostForm(ts.URL+"/v1/oauth2/token", map[string][]string{
		"client_id":     {"id-a"},
		"client_secret": {"wrong"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRevokedTokenGets401(t *testing.T) {
	t.Parallel()

	mv, ts := newServer(t)
	mv.RegisterCredential("id-a", "secret-a")

	token := obtainToken(t, ts.URL)
	mv.RevokeTokens()

	resp := search(t, ts.URL, token, "anything")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", resp.StatusCode)
	}
}

func TestForcedSearchStatus(t *testing.T) {
	t.Parallel()

	mv, ts := newServer(t)
	mv.RegisterCredential("id-a", "secret-a")
	mv.ForceSearchStatus(http.StatusTooManyRequests, `{"ErrorMessage":"rate limit exceeded"}`)

	token := obtainToken(t, ts.URL)
	resp := search(t, ts.URL, token, "anything")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestDocumentRefusalsThenServe(t *testing.T) {
	t.Parallel()

	mv, ts := newServer(t)
	mv.AddDocument("rc0603.pdf", mockvendor.PDF(2048))
	mv.RefuseDocument("rc0603.pdf", 2, http.StatusForbidden)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/docs/rc0603.pdf")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("attempt %d: expected 403, got %d", i+1, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/docs/rc0603.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after refusals, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(b), "%PDF") || len(b) < 1024 {
		t.Fatalf("served body is not a plausible pdf (%d bytes)", len(b))
	}
	if got := mv.CallCount("/docs/rc0603.pdf"); got != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", got)
	}
}
