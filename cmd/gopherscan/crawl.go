package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/gopherscan/internal/batch"
	"github.com/nao1215/gopherscan/internal/config"
	"github.com/nao1215/gopherscan/internal/crawler"
	"github.com/nao1215/gopherscan/internal/database"
	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
	"github.com/nao1215/gopherscan/internal/report"
	"github.com/nao1215/gopherscan/internal/tor"
	"github.com/spf13/cobra"
)

// diagnosticLines is how much of the root listing the initial request shows.
const diagnosticLines = 5

// errInitialRequest marks servers whose initial root request failed. It is
// the only crawl outcome that makes the process exit non-zero.
var errInitialRequest = errors.New("initial request failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [host] [port]",
		Short: "Crawl a Gopher server and print an indexing report",
		Long: `Crawl starts at the root selector of a Gopher server and walks every
directory it can reach on that server, breadth first. Text and binary files
are downloaded and measured, links to other servers are checked once, and
a report is printed when the crawl ends.

Host defaults to gopher.floodgap.com and port to 70. An invalid port is
reported and replaced with 70.

Before crawling, one request for the root selector is sent and the first
lines of the answer are shown. If that request fails the command exits
with a non-zero status. Any later failure is recorded in the report.

Pressing Ctrl-C stops the crawl and prints the report for what was reached.

Examples:
  # Crawl the default server
  gopherscan crawl

  # Crawl a server on a non-standard port, one request per second
  gopherscan crawl gopher.example.org 7070 --delay 1s

  # Crawl a hidden service through a local Tor proxy
  gopherscan crawl example.onion --proxy 127.0.0.1:9050

  # Crawl every server listed in a file, four at a time, and archive
  # the reports for 'gopherscan history'
  gopherscan crawl --list servers.txt --batch 4 --archive

  # Write a Markdown report to a file
  gopherscan crawl -m -o reports/floodgap.md`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCrawlCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultReadTimeout,
		"Read timeout for each request")
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout,
		"Connection timeout for each request")
	cmd.Flags().Int64("max-size", config.DefaultMaxResponseSize,
		"Maximum response size in bytes")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Minimum delay between two requests of one crawl")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Route connections through a SOCKS5 proxy (e.g., "+config.DefaultProxyAddress+")")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route connections through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Target flags
	cmd.Flags().StringP("list", "l", "",
		"File with one host[:port] per line to crawl instead of the arguments")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of servers crawled concurrently")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .gopherscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"With --output, also print the report on stdout")

	// Archive flags
	cmd.Flags().Bool("archive", false,
		"Store each report in the archive used by 'gopherscan history'")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report archive")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	stderr := &syncWriter{w: cmd.ErrOrStderr()}
	logger := newLogger(cmd, stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tee, err := cmd.Flags().GetBool("tee")
	if err != nil {
		return err
	}

	r := &crawlRun{
		cfg:    cfg,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		stderr: stderr,
		tee:    tee,
	}
	return r.run(ctx)
}

// buildConfig creates a Config from cobra command flags and arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = persistentBool(cmd, "verbose")

	var err error

	cfg.ReadTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.ConnectTimeout, err = cmd.Flags().GetDuration("connect-timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxResponseSize, err = cmd.Flags().GetInt64("max-size")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.ListFile, err = cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Servers, err = config.LoadServers(cfg.ConfigFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Archive, err = cmd.Flags().GetBool("archive")
	if err != nil {
		return nil, err
	}

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.Targets, err = resolveTargets(cfg.ListFile, args, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveTargets turns the positional arguments, or the list file, into
// targets with normalized hosts. A bad port argument is reported on warn
// and replaced with the default port.
func resolveTargets(listFile string, args []string, warn io.Writer) ([]config.Target, error) {
	var targets []config.Target

	if listFile != "" {
		if len(args) > 0 {
			return nil, errors.New("--list cannot be combined with host and port arguments")
		}
		f, err := os.Open(listFile) //nolint:gosec // user-provided list path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open target list: %w", err)
		}
		defer f.Close()

		targets, err = config.ReadTargets(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read target list %s: %w", listFile, err)
		}
	} else {
		t := config.Target{Host: config.DefaultHost, Port: config.DefaultPort}
		if len(args) > 0 {
			t.Host = args[0]
		}
		if len(args) > 1 {
			port, err := config.ParsePort(args[1])
			if err != nil {
				fmt.Fprintf(warn, "Warning: %v; using port %d\n", err, port)
			}
			t.Port = port
		}
		targets = []config.Target{t}
	}

	for i, t := range targets {
		host, err := tor.NormalizeHost(t.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host %q: %w", t.Host, err)
		}
		targets[i].Host = host
	}

	return targets, nil
}

// crawlRun holds what one invocation of the crawl command shares between
// its targets.
type crawlRun struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	tee    bool

	dialer  []gopher.ClientOption
	archive *database.ArchiveDB
	writer  report.Writer

	mu     sync.Mutex
	failed []string
}

func (r *crawlRun) run(ctx context.Context) error {
	stopProxy, err := r.setupProxy(ctx)
	if err != nil {
		return err
	}
	defer stopProxy()

	if r.cfg.Archive {
		r.archive, err = database.Open(r.cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer r.archive.Close()
		r.logger.Debug("archive opened", "path", r.archive.Path())
	}

	output, closeOutput, err := r.openOutput()
	if err != nil {
		return err
	}
	defer closeOutput()
	r.writer = output

	if n := len(r.cfg.Targets); n > 1 {
		fmt.Fprintf(r.stderr, "Crawling %d servers (concurrency: %d)...\n", n, r.cfg.BatchSize)
	}

	runner := batch.NewRunner(r.crawl,
		batch.WithConcurrency(r.cfg.BatchSize),
		batch.WithLogger(r.logger),
	)
	err = runner.Run(ctx, r.cfg.Targets, func(rep *model.CrawlReport, index int) {
		r.finish(ctx, rep, index)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if len(r.failed) > 0 {
		slices.Sort(r.failed)
		return fmt.Errorf("%w: %s", errInitialRequest, strings.Join(r.failed, ", "))
	}
	return nil
}

// setupProxy prepares the dialer option for --proxy or --tor. The returned
// function releases what was started.
func (r *crawlRun) setupProxy(ctx context.Context) (func(), error) {
	noop := func() {}

	switch {
	case r.cfg.ProxyAddress != "":
		p, err := tor.NewProxy(r.cfg.ProxyAddress)
		if err != nil {
			return noop, fmt.Errorf("failed to create proxy: %w", err)
		}
		if status := p.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return noop, fmt.Errorf("proxy check failed: %w (make sure Tor is running at %s)",
				status.Error(), r.cfg.ProxyAddress)
		}
		r.logger.Info("proxy connection verified", "address", p.Address())
		r.dialer = []gopher.ClientOption{gopher.WithProxyDialer(p.Dialer())}
		return noop, nil

	case r.cfg.UseTor:
		return r.startEmbeddedTor(ctx)

	default:
		return noop, nil
	}
}

func (r *crawlRun) startEmbeddedTor(ctx context.Context) (func(), error) {
	fmt.Fprintf(r.stderr, "Starting embedded Tor daemon (timeout: %s)...\n", r.cfg.TorStartupTimeout)

	et := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(r.cfg.TorStartupTimeout),
		tor.WithLogger(r.logger),
	)
	if err := et.Start(ctx); err != nil {
		return func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		r.logger.Info("stopping embedded Tor daemon")
		if err := et.Stop(); err != nil {
			r.logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	p, err := et.Proxy()
	if err != nil {
		stop()
		return func() {}, err
	}
	if status := p.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return func() {}, fmt.Errorf("embedded Tor check failed: %w", status.Error())
	}

	fmt.Fprintf(r.stderr, "Tor ready (SOCKS: %s)\n", et.SocksAddr())
	r.dialer = []gopher.ClientOption{gopher.WithProxyDialer(p.Dialer())}
	return stop, nil
}

// openOutput builds the report writer for the selected format and
// destination.
func (r *crawlRun) openOutput() (report.Writer, func(), error) {
	if r.cfg.ReportFile == "" {
		return newReportWriter(r.cfg, r.stdout), func() {}, nil
	}

	if dir := filepath.Dir(r.cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list every selector of a server; keep them private.
	f, err := os.OpenFile(r.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	closeFile := func() {
		if err := f.Close(); err != nil {
			r.logger.Error("failed to close output file", "path", r.cfg.ReportFile, "error", err)
		}
	}

	var w report.Writer = newReportWriter(r.cfg, f)
	if r.tee {
		w = report.NewMultiWriter(w, newReportWriter(r.cfg, r.stdout))
	}
	return w, closeFile, nil
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// clientFor builds the Gopher client for one target's settings.
func (r *crawlRun) clientFor(settings config.ServerConfig) *gopher.Client {
	opts := []gopher.ClientOption{
		gopher.WithConnectTimeout(settings.ConnectTimeout.Std()),
		gopher.WithReadTimeout(settings.ReadTimeout.Std()),
		gopher.WithMaxResponseSize(settings.MaxResponseSize),
		gopher.WithClientLogger(r.logger),
	}
	return gopher.NewClient(append(opts, r.dialer...)...)
}

// crawl is the batch.CrawlFunc of the command. It returns nil when the
// initial request fails.
func (r *crawlRun) crawl(ctx context.Context, target config.Target) *model.CrawlReport {
	settings := r.cfg.ServerSettings(target)
	client := r.clientFor(settings)

	preview, err := initialRequest(ctx, client, target)
	if err != nil {
		fmt.Fprintf(r.stderr, "Initial request to %s FAILED: %v\n", target, err)
		r.mu.Lock()
		r.failed = append(r.failed, target.String())
		r.mu.Unlock()
		return nil
	}
	fmt.Fprint(r.stderr, preview)

	c := crawler.New(client, target.Host, target.Port,
		crawler.WithLogger(r.logger),
		crawler.WithDelay(settings.CrawlDelay.Std()),
		crawler.WithIgnorePatterns(settings.IgnorePatterns),
	)
	return c.Crawl(ctx)
}

// initialRequest fetches the root selector once and renders the first
// lines of the answer.
func initialRequest(ctx context.Context, client *gopher.Client, target config.Target) (string, error) {
	data, err := client.Fetch(ctx, target.Host, target.Port, "")
	if err != nil {
		return "", err
	}

	text, _ := gopher.DecodeText(data)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Initial request to %s succeeded (%d bytes)\n", target, len(data))
	fmt.Fprintf(&sb, "--- Start of Initial Response (first %d lines) ---\n", diagnosticLines)
	n := 0
	for line := range strings.Lines(text) {
		if n == diagnosticLines {
			break
		}
		sb.WriteString(displayLine(line))
		sb.WriteString("\n")
		n++
	}
	sb.WriteString("--- End of Initial Response ---\n")
	return sb.String(), nil
}

// displayLine escapes control characters in a listing line while keeping
// the tabs between its fields.
func displayLine(line string) string {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	for i, f := range fields {
		fields[i] = gopher.EscapeControl(f)
	}
	return strings.Join(fields, "\t")
}

// finish writes and archives one report. It runs under the batch runner's
// lock, so reports never interleave.
func (r *crawlRun) finish(ctx context.Context, rep *model.CrawlReport, index int) {
	if rep == nil {
		return
	}

	if n := len(r.cfg.Targets); n > 1 {
		fmt.Fprintf(r.stderr, "[%d/%d] Crawl finished: %s (%s)\n",
			index+1, n, rep.Target(), rep.Duration().Round(time.Millisecond))
	}

	if _, err := r.writer.Write(rep); err != nil {
		r.logger.Error("failed to write report", "server", rep.Target(), "error", err)
	}

	if r.archive == nil {
		return
	}
	// An interrupted crawl is still archived.
	id, err := r.archive.SaveReport(context.WithoutCancel(ctx), rep)
	if err != nil {
		r.logger.Error("failed to archive report", "server", rep.Target(), "error", err)
		return
	}
	r.logger.Info("report archived", "server", rep.Target(), "id", id)
}

// syncWriter serializes writes from concurrent crawls and the logger.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
