package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/gopherscan/internal/config"
	"github.com/nao1215/gopherscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// CrawlFunc crawls one target and returns its report. It must return a
// report even when ctx is canceled mid-crawl.
type CrawlFunc func(ctx context.Context, target config.Target) *model.CrawlReport

// Runner crawls a list of targets with bounded concurrency.
type Runner struct {
	crawl       CrawlFunc
	concurrency int
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets how many targets are crawled at once. Non-positive
// values are ignored.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger for batch progress lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner. The default concurrency is one.
func NewRunner(crawl CrawlFunc, opts ...Option) *Runner {
	r := &Runner{
		crawl:       crawl,
		concurrency: config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run crawls every target and calls done with each report and the target's
// index as crawls finish. Calls to done never overlap, so it may write to a
// shared output without locking.
//
// Once ctx is canceled, targets that have not started are skipped and Run
// returns ctx.Err(); crawls already running still deliver their partial
// report to done.
func (r *Runner) Run(ctx context.Context, targets []config.Target, done func(report *model.CrawlReport, index int)) error {
	r.logger.Info("starting batch crawl",
		"targets", len(targets),
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		skipped int
	)
	g.SetLimit(r.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			skipped = len(targets) - i
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			r.logger.Info("crawling server",
				"server", target.String(),
				"index", i+1,
				"total", len(targets),
			)

			report := r.crawl(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			done(report, i)
			return nil
		})
	}

	// Crawl functions never fail; errors live in the reports.
	_ = g.Wait() //nolint:errcheck // goroutines always return nil

	r.logger.Info("batch crawl complete",
		"targets", len(targets),
		"skipped", skipped,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	return ctx.Err()
}

// Collect runs every target and returns the reports in target order.
// Skipped targets leave a nil entry.
func (r *Runner) Collect(ctx context.Context, targets []config.Target) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(targets))
	err := r.Run(ctx, targets, func(report *model.CrawlReport, index int) {
		reports[index] = report
	})
	return reports, err
}
