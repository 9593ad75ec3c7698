package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ecadtools/datasheetdl/internal/catalog"
	"github.com/ecadtools/datasheetdl/internal/mockvendor"
)

func main() {
	addr := defaultString("MOCK_VENDOR_ADDR", ":8090")
	clientID := defaultString("MOCK_VENDOR_CLIENT_ID", "local-client")
	clientSecret := defaultString("MOCK_VENDOR_CLIENT_SECRET", "local-secret")

	fs := flag.NewFlagSet("mock-vendor", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&clientID, "client-id", clientID, "Accepted client id")
	fs.StringVar(&clientSecret, "client-secret", clientSecret, "Accepted client secret")
	docBytes := fs.Int("doc-bytes", 4096, "Size of each generated sample datasheet")
	parts := fs.String("parts", "RC0603FR-071KL,LM358", "Comma-separated part numbers to seed with datasheets")
	_ = fs.Parse(os.Args[1:])

	srv := mockvendor.New()
	srv.RegisterCredential(clientID, clientSecret)
	base := "http://" + listenHost(addr)
	for _, mpn := range splitCSV(*parts) {
		doc := strings.ToLower(mpn) + ".pdf"
		srv.AddDocument(doc, mockvendor.PDF(*docBytes))
		srv.AddProduct(mpn, catalog.Product{
			ManufacturerPartNumber: mpn,
			DatasheetURL:           base + "/docs/" + doc,
			ProductStatus:          "Active",
		})
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-vendor listening on %s (client_id=%s parts=%s)\n", addr, clientID, *parts)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func listenHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
