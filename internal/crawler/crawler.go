package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/inspect"
	"github.com/nao1215/gopherscan/internal/model"
)

// Excerpt lengths used in error records.
const (
	malformedExcerptLen  = 50
	processingExcerptLen = 30
)

// Fetcher retrieves one selector from a server. *gopher.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, host string, port int, selector string) ([]byte, error)
}

// Crawler performs one breadth-first crawl of a single server. It holds the
// frontier, the visited set and the statistics of that run and must not be
// reused.
type Crawler struct {
	fetcher Fetcher
	host    string
	port    int

	logger         *slog.Logger
	delay          time.Duration
	ignorePatterns []string

	frontier   []string
	visited    map[string]struct{}
	report     *model.CrawlReport
	aggregator *Aggregator
	prober     *Prober
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger for crawl progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithDelay spaces consecutive requests, probes included, at least d apart.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		c.delay = d
	}
}

// WithIgnorePatterns skips same-server selectors matching any glob pattern
// (e.g. "/archive/*", "*.iso").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// New prepares a crawl of host:port. Nothing is fetched until Crawl.
func New(fetcher Fetcher, host string, port int, opts ...Option) *Crawler {
	c := &Crawler{
		host:     host,
		port:     port,
		frontier: []string{""},
		visited:  map[string]struct{}{"": {}},
		report:   model.NewCrawlReport(host, port),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.fetcher = newPacedFetcher(fetcher, c.delay)
	c.aggregator = NewAggregator(c.report.Inventory)
	c.prober = NewProber(c.fetcher, c.logger)

	return c
}

// Crawl runs until the frontier is empty or ctx is canceled and returns the
// report. On cancellation the report holds everything gathered so far and
// Interrupted is set.
func (c *Crawler) Crawl(ctx context.Context) *model.CrawlReport {
	c.logger.Info("starting crawl", "target", c.report.Target())

	for len(c.frontier) > 0 && ctx.Err() == nil {
		selector := c.frontier[0]
		c.frontier = c.frontier[1:]
		c.crawlDirectory(ctx, selector)
	}

	if ctx.Err() != nil {
		c.report.Interrupted = true
		c.logger.Warn("crawl interrupted", "pending_directories", len(c.frontier))
	}

	inv := c.report.Inventory
	inv.ExternalServers = c.prober.Servers()
	c.report.FinishedAt = time.Now()

	c.logger.Info("crawl finished",
		"target", c.report.Target(),
		"directories", inv.Directories,
		"text_files", len(inv.TextFiles),
		"binary_files", len(inv.BinaryFiles),
		"external_servers", len(inv.ExternalServers),
		"errors", len(inv.RequestErrors),
		"duration", c.report.Duration().Round(time.Millisecond),
	)

	return c.report
}

// crawlDirectory fetches one listing and processes its lines in order.
func (c *Crawler) crawlDirectory(ctx context.Context, selector string) {
	data, err := c.fetcher.Fetch(ctx, c.host, c.port, selector)
	if err != nil {
		c.recordFetchFailure(selector, "directory fetch failed", err)
		return
	}

	text, fallback := gopher.DecodeText(data)
	if fallback {
		c.logger.Warn("listing is not valid UTF-8, decoded as ISO-8859-1", "selector", gopher.DisplaySelector(selector))
	}

	for _, raw := range strings.Split(text, "\n") {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(raw)
		if line == "" || line == "." {
			continue
		}
		c.processLine(ctx, selector, line)
	}
}

// processLine parses and dispatches one listing line. A panic while handling
// the item is recorded as a processing error and does not stop the crawl.
func (c *Crawler) processLine(ctx context.Context, dir, line string) {
	item, err := gopher.ParseLine(line)
	if err != nil {
		c.logger.Warn("skipping malformed line",
			"directory", gopher.DisplaySelector(dir),
			"line", line,
			"error", err,
		)
		c.aggregator.RecordError(fmt.Sprintf("%s (malformed_line: %s...)",
			gopher.DisplaySelector(dir), gopher.EscapeControl(excerpt(line, malformedExcerptLen))))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			id := gopher.EscapeControl(item.Selector)
			if item.Selector == "" {
				id = fmt.Sprintf("line:'%s...'", gopher.EscapeControl(excerpt(line, processingExcerptLen)))
			}
			c.logger.Error("failed to process item",
				"directory", gopher.DisplaySelector(dir),
				"item", id,
				"panic", fmt.Sprint(r),
			)
			c.aggregator.RecordError(fmt.Sprintf("%s -> %s (processing_error)", gopher.DisplaySelector(dir), id))
		}
	}()

	c.dispatch(ctx, item)
}

// dispatch routes a parsed item. Info lines are handled before the external
// check so that their placeholder host fields never trigger a probe.
func (c *Crawler) dispatch(ctx context.Context, item gopher.Item) {
	if item.Type == gopher.TypeInfo {
		c.logger.Debug("info line", "text", item.Display)
		return
	}

	if c.isExternal(item) {
		c.logger.Info("found external server link",
			"server", item.Address(),
			"selector", gopher.DisplaySelector(item.Selector),
		)
		c.prober.Probe(ctx, item.Host, item.Port)
		return
	}

	if _, seen := c.visited[item.Selector]; seen {
		c.logger.Debug("already visited", "selector", gopher.DisplaySelector(item.Selector))
		return
	}
	c.visited[item.Selector] = struct{}{}

	if matchAny(c.ignorePatterns, item.Selector) {
		c.logger.Info("ignoring selector", "selector", gopher.DisplaySelector(item.Selector))
		return
	}

	switch class := item.Type.Class(); class {
	case gopher.ClassDirectory:
		c.frontier = append(c.frontier, item.Selector)
		c.aggregator.AddDirectory()
		c.logger.Debug("queued directory", "selector", gopher.DisplaySelector(item.Selector))
	case gopher.ClassText, gopher.ClassBinary:
		c.fetchFile(ctx, item, class)
	case gopher.ClassError:
		c.aggregator.RecordInvalid(item.Selector)
		c.logger.Warn("invalid reference", "selector", gopher.DisplaySelector(item.Selector), "display", item.Display)
	case gopher.ClassInteractive:
		c.logger.Info("skipping interactive item",
			"type", item.Type.String(),
			"selector", gopher.DisplaySelector(item.Selector),
		)
	default:
		c.logger.Info("ignoring unknown item type",
			"type", gopher.EscapeControl(item.Type.String()),
			"selector", gopher.DisplaySelector(item.Selector),
		)
	}
}

// fetchFile downloads a file and records it under class.
func (c *Crawler) fetchFile(ctx context.Context, item gopher.Item, class gopher.Class) {
	data, err := c.fetcher.Fetch(ctx, c.host, c.port, item.Selector)
	if err != nil {
		c.recordFetchFailure(item.Selector, "fetch failed", err)
		return
	}

	var metadata map[string]string
	if item.Type.IsImage() {
		metadata = c.imageMetadata(item, data)
	}

	c.aggregator.RecordFile(class, item, data, metadata)
	c.logger.Debug("downloaded file",
		"selector", gopher.DisplaySelector(item.Selector),
		"class", class.String(),
		"size", len(data),
	)
}

func (c *Crawler) imageMetadata(item gopher.Item, data []byte) map[string]string {
	tags, err := inspect.ImageMetadata(data)
	if err != nil {
		if !errors.Is(err, inspect.ErrNoMetadata) {
			c.logger.Debug("unreadable image metadata", "selector", gopher.DisplaySelector(item.Selector), "error", err)
		}
		return nil
	}
	if inspect.HasLocation(tags) {
		c.logger.Warn("image carries GPS coordinates", "selector", gopher.DisplaySelector(item.Selector))
	}
	return tags
}

// recordFetchFailure logs a failed request and adds it to the error trail.
// Requests cut short by cancellation are logged only; they say nothing about
// the server.
func (c *Crawler) recordFetchFailure(selector, reason string, err error) {
	if errors.Is(err, gopher.ErrCanceled) {
		c.logger.Debug("request canceled", "selector", gopher.DisplaySelector(selector))
		return
	}
	c.logger.Error("request failed", "selector", gopher.DisplaySelector(selector), "error", err)
	c.aggregator.RecordError(fmt.Sprintf("%s (%s)", gopher.DisplaySelector(selector), reason))
}

// isExternal reports whether item points at a server other than the target.
// An empty host is taken to mean the current server, where a strict host
// comparison would count it as external.
func (c *Crawler) isExternal(item gopher.Item) bool {
	if item.Host == "" {
		return false
	}
	return !strings.EqualFold(item.Host, c.host) || item.Port != c.port
}

// excerpt returns at most n runes of s.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
