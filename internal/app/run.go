// Package app wires configuration, state and the worker pipeline into a
// single run: acquire the lock, load resume state, process every part, and
// persist the report even when the run is interrupted.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ecadtools/datasheetdl/internal/catalog"
	"github.com/ecadtools/datasheetdl/internal/config"
	"github.com/ecadtools/datasheetdl/internal/fetch"
	"github.com/ecadtools/datasheetdl/internal/parts"
	"github.com/ecadtools/datasheetdl/internal/pipeline"
	"github.com/ecadtools/datasheetdl/internal/progress"
	"github.com/ecadtools/datasheetdl/internal/report"
	"github.com/ecadtools/datasheetdl/internal/runstate"
	"github.com/ecadtools/datasheetdl/pkg/pipeline/backoff"
)

// progressInterval is how often the run logs a progress snapshot.
const progressInterval = 15 * time.Second

// NewLogger builds the process logger: JSON lines on stderr, every record
// tagged with a fresh run id.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("run_id", uuid.NewString())
}

// Run executes one full download run under cfg. The report is written on
// every exit path that reaches the pipeline, including cancellation; the
// returned error is the reason the run did not fully complete.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	lock, err := runstate.AcquireLock(cfg.LockFile())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release lock", "error", err)
		}
	}()

	creds, err := config.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		return err
	}
	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("open input %s: %w", cfg.InputPath, err)
	}
	records, err := parts.ReadCSV(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read input %s: %w", cfg.InputPath, err)
	}
	resume, err := runstate.Load(cfg.ReportPath, cfg.Force)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", cfg.DestDir, err)
	}

	logger.Info("run start",
		"parts", len(records),
		"credentials", len(creds),
		"resumed", resume.Len(),
		"force", cfg.Force,
	)

	// More search workers than credentials would share sessions; cap instead.
	if len(creds) > cfg.SearchWorkers {
		creds = creds[:cfg.SearchWorkers]
	}
	client := catalog.NewClient(cfg.BaseURL, cfg.SearchTimeout)
	client.SetLocale(cfg.Locale)
	resolvers := make([]pipeline.Resolver, 0, len(creds))
	for _, cred := range creds {
		resolvers = append(resolvers, catalog.NewResolver(client, cred, nil))
	}

	policy := backoff.Default()
	policy.MaxAttempts = cfg.MaxAttempts

	fetcher := fetch.New(fetch.Options{
		Timeout: cfg.DownloadTimeout,
		Policy:  policy,
	})
	tracker := progress.NewTracker(len(records))

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go logProgress(progressCtx, tracker, logger)

	rows, runErr := pipeline.Run(ctx, records, pipeline.Deps{
		Resolvers: resolvers,
		Fetcher:   fetcher,
		Resume:    resume,
		Tracker:   tracker,
		Logger:    logger,
	}, pipeline.Options{
		DownloadWorkers:   cfg.DownloadWorkers,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Backoff:           policy,
		DestDir:           cfg.DestDir,
	})
	stopProgress()

	// An interrupted run still flushes whatever finished, so the next
	// invocation resumes instead of starting over.
	if len(rows) > 0 || runErr == nil {
		if err := report.WriteCSV(cfg.ReportPath, rows); err != nil {
			return errors.Join(runErr, err)
		}
		if cfg.XLSXPath != "" {
			if err := report.WriteXLSX(cfg.XLSXPath, rows); err != nil {
				return errors.Join(runErr, err)
			}
		}
	}

	snap := tracker.Snapshot()
	logger.Info("run finished",
		"rows", len(rows),
		"success", snap.Counts[report.StatusSuccess],
		"skipped", snap.Counts[report.StatusSkipped],
		"no_datasheet", snap.Counts[report.StatusNoDatasheet],
		"not_found", snap.Counts[report.StatusNotFound],
		"download_failed", snap.Counts[report.StatusDownloadFailed],
		"error", snap.Counts[report.StatusError],
		"interrupted", runErr != nil,
	)
	return runErr
}

func logProgress(ctx context.Context, tracker *progress.Tracker, logger *slog.Logger) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := tracker.Snapshot()
			logger.Info("progress",
				"completed", snap.Completed,
				"total", snap.Total,
				"counts", snap.Counts,
				"active_workers", len(snap.Workers),
			)
		}
	}
}
