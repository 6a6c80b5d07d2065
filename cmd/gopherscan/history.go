package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/gopherscan/internal/config"
	"github.com/nao1215/gopherscan/internal/database"
	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
	"github.com/nao1215/gopherscan/internal/report"
	"github.com/nao1215/gopherscan/internal/tor"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// historyTimeLayout is how run start times are shown.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host] [port]",
		Short: "Compare archived crawl reports of a server",
		Long: `History reads the reports stored by 'gopherscan crawl --archive' and shows
what changed on a server between two crawls:
- files that appeared, disappeared or changed size
- linked servers whose status changed
- request errors that are new or resolved

By default the latest two runs of the server are compared. Port defaults
to 70.

Examples:
  # Compare the latest two crawls of a server
  gopherscan history gopher.floodgap.com

  # List the archived runs of a server
  gopherscan history --list gopher.example.org 7070

  # Compare the latest crawl with an older run by ID
  gopherscan history --with-id 3 gopher.floodgap.com

  # Output the comparison as JSON
  gopherscan history --json gopher.floodgap.com

  # List every archived server
  gopherscan history --list-servers`,
		Args: cobra.MaximumNArgs(2),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List archived runs of the specified server")
	cmd.Flags().BoolP("list-servers", "L", false,
		"List every server in the archive")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare the latest run with the run of this ID (use --list to see IDs)")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report archive")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	list        bool
	listServers bool
	withID      int64
	json        bool
	markdown    bool
	dbDir       string
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	if opts.list, err = cmd.Flags().GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listServers, err = cmd.Flags().GetBool("list-servers"); err != nil {
		return opts, err
	}
	if opts.withID, err = cmd.Flags().GetInt64("with-id"); err != nil {
		return opts, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before touching the archive.
	var server model.ServerKey
	if !opts.listServers {
		if len(args) == 0 {
			return errors.New("host is required (use --list-servers to see archived servers)")
		}
		server, err = historyServer(args, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(opts.dbDir, database.ReadOnlyOptions())
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) && (opts.listServers || opts.list) {
			fmt.Fprintln(out, "No archived reports found.")
			fmt.Fprintln(out, "\nUse 'gopherscan crawl --archive' to store reports.")
			return nil
		}
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.listServers:
		return listArchivedServers(ctx, db, out, opts.json)
	case opts.list:
		return listRuns(ctx, db, out, server, opts.json)
	default:
		return compareRuns(ctx, db, out, server, opts)
	}
}

// historyServer parses the host and optional port arguments.
func historyServer(args []string, warn io.Writer) (model.ServerKey, error) {
	host, err := tor.NormalizeHost(args[0])
	if err != nil {
		return model.ServerKey{}, fmt.Errorf("invalid host %q: %w", args[0], err)
	}
	if host == "" {
		return model.ServerKey{}, config.ErrEmptyHost
	}

	port := config.DefaultPort
	if len(args) > 1 {
		port, err = config.ParsePort(args[1])
		if err != nil {
			fmt.Fprintf(warn, "Warning: %v; using port %d\n", err, port)
		}
	}
	return model.NewServerKey(host, port), nil
}

func listArchivedServers(ctx context.Context, db *database.ArchiveDB, out io.Writer, asJSON bool) error {
	servers, err := db.ListServers(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		if servers == nil {
			servers = []database.ServerRuns{}
		}
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(servers)
		return err
	}

	if len(servers) == 0 {
		fmt.Fprintln(out, "No archived servers found.")
		return nil
	}

	fmt.Fprintf(out, "Archived servers (%d):\n\n", len(servers))
	fmt.Fprintf(out, "  %-40s  %-5s  %s\n", "Server", "Runs", "Last crawl")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, s := range servers {
		fmt.Fprintf(out, "  %-40s  %-5d  %s\n", s.String(), s.Runs, s.LastSeen.Local().Format(historyTimeLayout))
	}
	fmt.Fprintln(out, "\nUse 'gopherscan history --list <host> [port]' to see the runs of a server.")

	return nil
}

func listRuns(ctx context.Context, db *database.ArchiveDB, out io.Writer, server model.ServerKey, asJSON bool) error {
	records, err := db.History(ctx, server.Host, server.Port)
	if err != nil {
		return err
	}

	if asJSON {
		if records == nil {
			records = []database.RunRecord{}
		}
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(records)
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No archived runs found for %s\n", server)
		fmt.Fprintln(out, "\nUse 'gopherscan crawl --archive' to store reports.")
		return nil
	}

	fmt.Fprintf(out, "Archived runs of %s (%d):\n\n", server, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "ID", "Started", "Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, rec := range records {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			rec.ID,
			rec.Summary.StartedAt.Local().Format(historyTimeLayout),
			formatRunSummary(rec.Summary),
		)
	}
	fmt.Fprintln(out, "\nUse 'gopherscan history <host> [port]' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'gopherscan history --with-id <id> <host> [port]' to compare with a specific run.")

	return nil
}

// formatRunSummary renders the counts of one run on a single line.
func formatRunSummary(s model.RunSummary) string {
	text := fmt.Sprintf("dirs:%d text:%d bin:%d ext:%d err:%d",
		s.Directories, s.TextFiles, s.BinaryFiles, s.ExternalServers, s.Errors)
	if s.Interrupted {
		text += " (interrupted)"
	}
	return text
}

func compareRuns(ctx context.Context, db *database.ArchiveDB, out io.Writer, server model.ServerKey, opts historyOptions) error {
	latest, err := db.LatestReports(ctx, server.Host, server.Port, 2)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return fmt.Errorf("no archived runs found for %s", server)
	}

	current := latest[0]
	var previous *model.CrawlReport

	if opts.withID > 0 {
		previous, err = db.GetReport(ctx, opts.withID)
		if err != nil {
			return fmt.Errorf("failed to get run %d: %w", opts.withID, err)
		}
		if got := model.NewServerKey(previous.Host, previous.Port); got != server {
			return fmt.Errorf("run %d belongs to %s, not %s", opts.withID, got, server)
		}
	} else {
		if len(latest) < 2 {
			return fmt.Errorf("at least 2 archived runs are required for comparison (found %d)", len(latest))
		}
		previous = latest[1]
	}

	diff := model.CompareReports(previous, current)

	switch {
	case opts.json:
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(diff)
		return err
	case opts.markdown:
		return writeDiffMarkdown(out, diff)
	default:
		writeDiffText(out, diff)
		return nil
	}
}

// formatDelta formats a count change with an explicit sign.
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return "+" + strconv.Itoa(delta)
	case delta < 0:
		return strconv.Itoa(delta)
	default:
		return "0"
	}
}

// summaryRows returns the count rows shared by the text and Markdown
// comparisons.
func summaryRows(d *model.ReportDiff) [][]string {
	row := func(name string, prev, cur int) []string {
		return []string{name, strconv.Itoa(prev), strconv.Itoa(cur), formatDelta(cur - prev)}
	}
	p, c := d.Previous, d.Current
	return [][]string{
		row("Directories", p.Directories, c.Directories),
		row("Text files", p.TextFiles, c.TextFiles),
		row("Binary files", p.BinaryFiles, c.BinaryFiles),
		row("External servers", p.ExternalServers, c.ExternalServers),
		row("Request errors", p.Errors, c.Errors),
	}
}

func statusOrNone(s model.ServerStatus) string {
	if s == "" {
		return "(not linked)"
	}
	return strings.ToUpper(string(s))
}

func writeDiffText(out io.Writer, d *model.ReportDiff) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Crawl comparison: %s\n", d.Target)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Previous run: %s\n", d.Previous.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(out, "Current run:  %s\n\n", d.Current.StartedAt.Local().Format(historyTimeLayout))

	fmt.Fprintf(out, "  %-18s  %8s  %8s  %6s\n", "Item", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 46))
	for _, r := range summaryRows(d) {
		fmt.Fprintf(out, "  %-18s  %8s  %8s  %6s\n", r[0], r[1], r[2], r[3])
	}
	fmt.Fprintln(out)

	if !d.HasChanges() {
		fmt.Fprintln(out, "No changes between the two runs.")
		return
	}

	writeList := func(marker, title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(out, "%s %s (%d):\n", marker, title, len(items))
		for _, item := range items {
			fmt.Fprintf(out, "    - %s\n", item)
		}
		fmt.Fprintln(out)
	}

	writeList("[+]", "Added files", displaySelectors(d.AddedFiles))
	writeList("[-]", "Removed files", displaySelectors(d.RemovedFiles))

	changed := make([]string, len(d.ChangedFiles))
	for i, c := range d.ChangedFiles {
		changed[i] = fmt.Sprintf("%s (%d -> %d bytes)", gopher.DisplaySelector(c.Selector), c.OldSize, c.NewSize)
	}
	writeList("[~]", "Changed files", changed)

	servers := make([]string, len(d.ServerChanges))
	for i, s := range d.ServerChanges {
		servers[i] = fmt.Sprintf("%s: %s -> %s", s.ServerKey, statusOrNone(s.Old), statusOrNone(s.New))
	}
	writeList("[~]", "External server changes", servers)

	writeList("[+]", "New errors", d.NewErrors)
	writeList("[-]", "Resolved errors", d.ResolvedErrors)
}

func displaySelectors(selectors []string) []string {
	out := make([]string, len(selectors))
	for i, s := range selectors {
		out[i] = gopher.DisplaySelector(s)
	}
	return out
}

func writeDiffMarkdown(out io.Writer, d *model.ReportDiff) error {
	md := markdown.NewMarkdown(out)

	md.H1("Crawl Comparison: " + d.Target)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Previous", "Current", "Change"},
		Rows: append([][]string{{
			"Started",
			d.Previous.StartedAt.Local().Format(historyTimeLayout),
			d.Current.StartedAt.Local().Format(historyTimeLayout),
			"-",
		}}, summaryRows(d)...),
	})
	md.PlainText("")

	if !d.HasChanges() {
		md.Note("No changes between the two runs.")
		return md.Build()
	}

	codeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		md.H2(fmt.Sprintf("%s (%d)", title, len(items)))
		md.PlainText("")
		quoted := make([]string, len(items))
		for i, item := range items {
			quoted[i] = "`" + item + "`"
		}
		md.BulletList(quoted...)
		md.PlainText("")
	}

	codeList("Added Files", displaySelectors(d.AddedFiles))
	codeList("Removed Files", displaySelectors(d.RemovedFiles))

	if len(d.ChangedFiles) > 0 {
		md.H2(fmt.Sprintf("Changed Files (%d)", len(d.ChangedFiles)))
		md.PlainText("")
		rows := make([][]string, len(d.ChangedFiles))
		for i, c := range d.ChangedFiles {
			rows[i] = []string{
				"`" + gopher.DisplaySelector(c.Selector) + "`",
				strconv.FormatInt(c.OldSize, 10),
				strconv.FormatInt(c.NewSize, 10),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Selector", "Old size", "New size"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(d.ServerChanges) > 0 {
		md.H2(fmt.Sprintf("External Server Changes (%d)", len(d.ServerChanges)))
		md.PlainText("")
		rows := make([][]string, len(d.ServerChanges))
		for i, s := range d.ServerChanges {
			rows[i] = []string{"`" + s.ServerKey.String() + "`", statusOrNone(s.Old), statusOrNone(s.New)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Server", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	codeList("New Errors", d.NewErrors)
	codeList("Resolved Errors", d.ResolvedErrors)

	return md.Build()
}
