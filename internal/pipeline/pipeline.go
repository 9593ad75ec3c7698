// Package pipeline coordinates the two-stage search-and-download run: a pool
// of per-credential search workers resolving part records to datasheet
// locations, a fixed pool of download workers fetching them, and a single
// aggregator that owns the outcome tally and the report rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ecadtools/datasheetdl/internal/catalog"
	"github.com/ecadtools/datasheetdl/internal/fetch"
	"github.com/ecadtools/datasheetdl/internal/parts"
	"github.com/ecadtools/datasheetdl/internal/progress"
	"github.com/ecadtools/datasheetdl/internal/report"
	"github.com/ecadtools/datasheetdl/internal/runstate"
	"github.com/ecadtools/datasheetdl/pkg/pipeline/backoff"
	"github.com/ecadtools/datasheetdl/pkg/pipeline/ratelimit"
	"github.com/ecadtools/datasheetdl/pkg/redact"
)

// Resolver resolves one part record against the catalog using a credential
// it owns exclusively. A non-nil error retires the credential for the run.
type Resolver interface {
	ID() string
	Resolve(ctx context.Context, manufacturer, mpn string) (catalog.SearchOutcome, error)
}

// Downloader fetches a document URL to a destination path.
type Downloader interface {
	Fetch(ctx context.Context, url, dest string) (fetch.Result, error)
}

// Options tunes the run.
type Options struct {
	// DownloadWorkers sizes the download pool, independent of credential
	// count: documents are fetched from third-party hosts, not the catalog.
	DownloadWorkers int
	// RequestsPerMinute is the per-credential search rate ceiling.
	RequestsPerMinute int
	// QueueDepth bounds the search->download and outcome queues; a slow
	// download stage backpressures search instead of growing memory.
	QueueDepth int
	// Backoff is shared by the download ladder and the post-429 search delay.
	Backoff backoff.Policy
	// DestDir is where committed datasheets land.
	DestDir string
	// Sleep is injectable for tests; defaults to backoff.Sleep.
	Sleep backoff.SleepFunc
}

func (o Options) withDefaults() Options {
	if o.DownloadWorkers <= 0 {
		o.DownloadWorkers = 5
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 2 * o.DownloadWorkers
	}
	if o.Sleep == nil {
		o.Sleep = backoff.Sleep
	}
	if o.DestDir == "" {
		o.DestDir = "datasheets"
	}
	return o
}

// Deps are the run's collaborators.
type Deps struct {
	Resolvers []Resolver
	Fetcher   Downloader
	Resume    *runstate.Store
	Tracker   *progress.Tracker
	Logger    *slog.Logger
}

// resolvedItem crosses the search->download queue.
type resolvedItem struct {
	rec parts.Record
	url string
}

// Run processes all records and returns the sorted report rows. On
// cancellation it returns the rows for every item that reached a terminal
// outcome, plus any prior rows from the resume store, alongside ctx.Err(),
// so the caller can flush a report that still resumes cleanly.
func Run(ctx context.Context, records []parts.Record, deps Deps, opts Options) ([]report.Row, error) {
	opts = opts.withDefaults()
	if len(deps.Resolvers) == 0 {
		return nil, fmt.Errorf("no credentials available")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	if err := checkUnique(records); err != nil {
		return nil, err
	}
	if deps.Resume == nil {
		deps.Resume = runstate.FromRows(nil)
	}
	if deps.Tracker == nil {
		deps.Tracker = progress.NewTracker(len(records))
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	searchQ := make(chan parts.Record, 2*len(deps.Resolvers))
	downloadQ := make(chan resolvedItem, opts.QueueDepth)
	outcomes := make(chan report.Row, opts.QueueDepth)

	logger.Info("pipeline start",
		"parts", len(records),
		"search_workers", len(deps.Resolvers),
		"download_workers", opts.DownloadWorkers,
		"resumed", deps.Resume.Len(),
	)

	// Feeder. Closure of searchQ, not emptiness, is the workers' sentinel.
	go func() {
		defer close(searchQ)
		for _, rec := range records {
			select {
			case searchQ <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	var searchGroup errgroup.Group
	for _, r := range deps.Resolvers {
		w := &searchWorker{
			id:       "search-" + r.ID(),
			resolver: r,
			limiter:  ratelimit.NewPerMinute(opts.RequestsPerMinute),
			deps:     deps,
			opts:     opts,
			logger:   logger,
		}
		searchGroup.Go(func() error {
			return w.run(ctx, searchQ, downloadQ, outcomes)
		})
	}

	var dlGroup errgroup.Group
	for i := 0; i < opts.DownloadWorkers; i++ {
		w := &downloadWorker{
			id:     fmt.Sprintf("download-%d", i+1),
			deps:   deps,
			opts:   opts,
			logger: logger,
		}
		dlGroup.Go(func() error {
			return w.run(ctx, downloadQ, outcomes)
		})
	}

	// The download queue closes once the search stage drains; the outcome
	// queue closes once every producer is done.
	var closers sync.WaitGroup
	closers.Add(1)
	go func() {
		defer closers.Done()
		_ = searchGroup.Wait()
		// If every credential retired before the queue drained, the
		// leftovers still owe a row each; nothing is silently dropped.
		// Parts already finalized by a prior run keep their stored row.
		for rec := range searchQ {
			if prior, ok := deps.Resume.Finalized(rec.InternalID); ok {
				outcomes <- prior
				continue
			}
			if ctx.Err() == nil {
				outcomes <- terminalRow(rec, report.StatusError, "no usable credentials remaining", "", "")
			}
		}
		close(downloadQ)
		_ = dlGroup.Wait()
		close(outcomes)
	}()

	// Aggregator: the sole owner of the tally and the row slice.
	var rows []report.Row
	for row := range outcomes {
		deps.Tracker.Record(row.Status)
		rows = append(rows, row)
	}
	closers.Wait()

	// Prior terminal rows whose parts never got dequeued this run, typically
	// after an interruption, carry forward so rewriting the report cannot
	// lose them.
	emitted := make(map[string]bool, len(rows))
	for _, row := range rows {
		emitted[row.InternalID] = true
	}
	for _, row := range deps.Resume.Rows() {
		if !emitted[row.InternalID] {
			rows = append(rows, row)
		}
	}

	report.Sort(rows)
	logger.Info("pipeline done", "rows", len(rows))
	return rows, ctx.Err()
}

func checkUnique(records []parts.Record) error {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.InternalID] {
			return fmt.Errorf("duplicate internal_id %q in input", rec.InternalID)
		}
		seen[rec.InternalID] = true
	}
	return nil
}

type searchWorker struct {
	id       string
	resolver Resolver
	limiter  *ratelimit.Limiter
	deps     Deps
	opts     Options
	logger   *slog.Logger
}

func (w *searchWorker) run(ctx context.Context, in <-chan parts.Record, out chan<- resolvedItem, outcomes chan<- report.Row) error {
	defer w.deps.Tracker.SetWorker(w.id, "")

	for rec := range in {
		if ctx.Err() != nil {
			return nil
		}

		// Skip-fast path: parts finalized by a prior run re-emit their
		// stored row without any network I/O.
		if prior, ok := w.deps.Resume.Finalized(rec.InternalID); ok {
			outcomes <- prior
			continue
		}

		w.deps.Tracker.SetWorker(w.id, "searching "+rec.MPN)
		if err := w.limiter.Acquire(ctx); err != nil {
			return nil
		}

		outcome, resolveErr := w.resolver.Resolve(ctx, rec.Manufacturer, rec.MPN)
		if ctx.Err() != nil {
			return nil
		}

		switch outcome.Kind {
		case catalog.SearchResolved:
			select {
			case out <- resolvedItem{rec: rec, url: outcome.DatasheetURL}:
			case <-ctx.Done():
				return nil
			}
		case catalog.SearchNotFound:
			outcomes <- terminalRow(rec, report.StatusNotFound, outcome.Detail, "", "")
		case catalog.SearchNoDatasheet:
			outcomes <- terminalRow(rec, report.StatusNoDatasheet, outcome.Detail, "", "")
		case catalog.SearchErrored:
			outcomes <- terminalRow(rec, report.StatusError, outcome.Detail, "", "")
		}

		if resolveErr != nil {
			// Persistent auth failure: retire this credential and let the
			// remaining workers share the load.
			w.logger.Warn("credential retired", "worker", w.id, "reason", redact.Error(resolveErr))
			return nil
		}
		if outcome.RateLimited {
			w.deps.Tracker.SetWorker(w.id, "rate limited")
			if err := w.opts.Sleep(ctx, w.opts.Backoff.Delay(0)); err != nil {
				return nil
			}
		}
		w.deps.Tracker.SetWorker(w.id, "")
	}
	return nil
}

type downloadWorker struct {
	id     string
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func (w *downloadWorker) run(ctx context.Context, in <-chan resolvedItem, outcomes chan<- report.Row) error {
	defer w.deps.Tracker.SetWorker(w.id, "")

	for item := range in {
		if ctx.Err() != nil {
			return nil
		}

		dest := filepath.Join(w.opts.DestDir, fetch.SafeFileName(item.rec.MPN)+".pdf")
		if runstate.ExistingDocument(dest) {
			outcomes <- terminalRow(item.rec, report.StatusSkipped, "file already exists", item.url, dest)
			continue
		}

		w.deps.Tracker.SetWorker(w.id, "downloading "+item.rec.MPN)
		res, err := w.deps.Fetcher.Fetch(ctx, item.url, dest)
		if ctx.Err() != nil {
			return nil
		}
		outcomes <- downloadRow(item, res, err)
		w.deps.Tracker.SetWorker(w.id, "")
	}
	return nil
}

func terminalRow(rec parts.Record, status, detail, datasheetURL, fileOrManual string) report.Row {
	return report.Row{
		InternalID:      rec.InternalID,
		Manufacturer:    rec.Manufacturer,
		MPN:             rec.MPN,
		Status:          status,
		Detail:          detail,
		DatasheetURL:    datasheetURL,
		FileOrManualURL: fileOrManual,
	}
}

func downloadRow(item resolvedItem, res fetch.Result, err error) report.Row {
	if err == nil {
		return terminalRow(item.rec, report.StatusSuccess,
			fmt.Sprintf("%d bytes", res.Bytes), item.url, res.Path)
	}
	var refused *fetch.RefusedError
	if errors.As(err, &refused) {
		// Refusal exhaustion preserves the URL for a manual download.
		return terminalRow(item.rec, report.StatusDownloadFailed,
			refused.Error(), item.url, item.url)
	}
	return terminalRow(item.rec, report.StatusDownloadFailed,
		redact.Error(err), item.url, "")
}
