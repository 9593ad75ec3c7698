package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ecadtools/datasheetdl/internal/app"
	"github.com/ecadtools/datasheetdl/internal/config"
	"github.com/ecadtools/datasheetdl/pkg/redact"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "run":
		os.Exit(run(os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func run(args []string) int {
	// The config file path has to be known before the other flags get their
	// defaults, so it is picked out of args ahead of the full parse.
	configPath := configFlagValue(args)
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv("DATASHEETDL_CONFIG"))
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Error(err))
		return 2
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.String("config", configPath, "Optional YAML config file (env: DATASHEETDL_CONFIG)")
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Input parts CSV (env: DATASHEETDL_INPUT)")
	fs.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "Report CSV path, also the resume source (env: DATASHEETDL_REPORT)")
	fs.StringVar(&cfg.CredentialsPath, "credentials", cfg.CredentialsPath, "Credentials JSON file (env: DATASHEETDL_CREDENTIALS)")
	fs.StringVar(&cfg.DestDir, "dest-dir", cfg.DestDir, "Directory for downloaded datasheets (env: DATASHEETDL_DEST_DIR)")
	fs.StringVar(&cfg.XLSXPath, "xlsx", cfg.XLSXPath, "Optional XLSX copy of the report (env: DATASHEETDL_XLSX)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Catalog API base URL (env: DATASHEETDL_BASE_URL)")
	fs.IntVar(&cfg.SearchWorkers, "search-workers", cfg.SearchWorkers, "Max concurrent search workers, capped by credential count (env: DATASHEETDL_SEARCH_WORKERS)")
	fs.IntVar(&cfg.DownloadWorkers, "download-workers", cfg.DownloadWorkers, "Concurrent download workers (env: DATASHEETDL_DOWNLOAD_WORKERS)")
	fs.IntVar(&cfg.RequestsPerMinute, "rpm", cfg.RequestsPerMinute, "Per-credential search requests per minute, 0 disables (env: DATASHEETDL_REQUESTS_PER_MINUTE)")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Download attempts per document (env: DATASHEETDL_MAX_ATTEMPTS)")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", cfg.DownloadTimeout, "Per-attempt download timeout (env: DATASHEETDL_DOWNLOAD_TIMEOUT)")
	fs.BoolVar(&cfg.Force, "force", cfg.Force, "Discard prior report state and reprocess everything (env: DATASHEETDL_FORCE)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error (env: DATASHEETDL_LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := app.Run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintf(os.Stderr, "interrupted after %s; report flushed, rerun to resume\n",
				time.Since(start).Round(time.Second))
			return 1
		}
		_, _ = fmt.Fprintf(os.Stderr, "run failed: %s\n", redact.Error(err))
		return 1
	}
	return 0
}

func configFlagValue(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `datasheetdl: concurrent part datasheet search and download

Usage:
  datasheetdl run [flags]

The run searches each part from the input CSV against the catalog API,
downloads the matched datasheet PDFs, and writes a per-part report CSV.
Rerunning with the same report path resumes: parts with a terminal status
are not searched or downloaded again.

Examples:
  datasheetdl run --input parts.csv --credentials credentials.json
  datasheetdl run --input parts.csv --force
  DATASHEETDL_RPM=50 datasheetdl run --input parts.csv

Files:
  credentials.json  {"api_keys": [{"client_id": ..., "client_secret": ...}]}
  report CSV        internal_id, manufacturer, mfr_part_number, status,
                    detail, datasheet_url, file_path_or_manual_url

`)
}
