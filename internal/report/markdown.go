package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/inspect"
	"github.com/nao1215/gopherscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	inv := report.Inventory
	if inv == nil {
		inv = model.NewInventory()
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report, inv)
	w.writeFiles(md, "Text Files", inv.SortedTextFiles(), inv.SmallestText, inv.LargestText)
	if inv.SmallestText != nil {
		md.Details("Smallest text file content", "\n```\n"+inv.SmallestTextContent+"\n```\n")
		md.PlainText("")
	}
	w.writeFiles(md, "Binary Files", inv.SortedBinaryFiles(), inv.SmallestBinary, inv.LargestBinary)
	w.writeImageMetadata(md, inv.BinaryFiles)
	w.writeInvalidReferences(md, inv)
	w.writeExternalServers(md, inv)
	w.writeErrors(md, inv)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Gopher Indexing Report")
	md.PlainText("")

	rows := [][]string{
		{"Server", "`" + report.Target() + "`"},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	rows = append(rows, []string{"Status", statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	if report.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport, inv *model.Inventory) {
	md.H2("Summary")
	md.PlainText("")

	errs := len(inv.UniqueRequestErrors())
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"Directories", strconv.Itoa(inv.Directories)},
			{"Text files", strconv.Itoa(len(inv.TextFiles))},
			{"Binary files", strconv.Itoa(len(inv.BinaryFiles))},
			{"Invalid references", strconv.Itoa(len(inv.UniqueInvalidReferences()))},
			{"External servers", strconv.Itoa(len(inv.ExternalServers))},
			{"Request errors", strconv.Itoa(errs)},
		},
	})
	md.PlainText("")

	if len(inv.TextFiles)+len(inv.BinaryFiles) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Downloaded Files by Class"),
			piechart.WithShowData(true),
		)
		if n := len(inv.TextFiles); n > 0 {
			chart.LabelAndIntValue("Text", uint64(n))
		}
		if n := len(inv.BinaryFiles); n > 0 {
			chart.LabelAndIntValue("Binary", uint64(n))
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case report.Interrupted:
		md.Warningf("The crawl was interrupted. The report covers %d directories reached before the interrupt.", inv.Directories)
	case errs > 0:
		md.Importantf("%d request(s) failed. See Request Errors below.", errs)
	default:
		md.Tip("Every request completed without error.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, title string, files []model.FileRecord, smallest, largest *model.FileRecord) {
	md.H2(fmt.Sprintf("%s (%d)", title, len(files)))
	md.PlainText("")

	if len(files) == 0 {
		md.PlainText("None found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(files))
	for i, f := range files {
		rows[i] = []string{
			"`" + gopher.DisplaySelector(f.Selector) + "`",
			f.Type,
			strconv.FormatInt(f.Size, 10),
			truncateString(f.SHA256, 16),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Selector", "Type", "Size (bytes)", "SHA-256"},
		Rows:   rows,
	})
	md.PlainText("")

	md.BulletList(
		"Smallest: "+fileSummary(smallest),
		"Largest: "+fileSummary(largest),
	)
	md.PlainText("")
}

func fileSummary(f *model.FileRecord) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("`%s` (%d bytes)", gopher.DisplaySelector(f.Selector), f.Size)
}

func (w *MarkdownWriter) writeImageMetadata(md *markdown.Markdown, files []model.FileRecord) {
	var tagged []model.FileRecord
	for _, f := range files {
		if len(f.Metadata) > 0 {
			tagged = append(tagged, f)
		}
	}
	if len(tagged) == 0 {
		return
	}

	md.H3("Image Metadata")
	md.PlainText("")
	for _, f := range tagged {
		lines := make([]string, 0, len(f.Metadata))
		for _, tag := range slices.Sorted(maps.Keys(f.Metadata)) {
			lines = append(lines, fmt.Sprintf("- %s: %s", tag, f.Metadata[tag]))
		}
		md.Details(gopher.DisplaySelector(f.Selector), "\n"+strings.Join(lines, "\n")+"\n")
		if inspect.HasLocation(f.Metadata) {
			md.Cautionf("`%s` carries GPS coordinates.", gopher.DisplaySelector(f.Selector))
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeInvalidReferences(md *markdown.Markdown, inv *model.Inventory) {
	refs := inv.UniqueInvalidReferences()
	md.H2(fmt.Sprintf("Invalid References (%d)", len(refs)))
	md.PlainText("")
	if len(refs) == 0 {
		md.PlainText("None found.")
		md.PlainText("")
		return
	}
	items := make([]string, len(refs))
	for i, r := range refs {
		items[i] = "`" + gopher.EscapeControl(r) + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeExternalServers(md *markdown.Markdown, inv *model.Inventory) {
	servers := inv.SortedExternalServers()
	md.H2(fmt.Sprintf("External Servers (%d)", len(servers)))
	md.PlainText("")
	if len(servers) == 0 {
		md.PlainText("None found.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(servers))
	for i, s := range servers {
		rows[i] = []string{s.Host, strconv.Itoa(s.Port), strings.ToUpper(string(s.Status))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Port", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, inv *model.Inventory) {
	errs := inv.UniqueRequestErrors()
	md.H2(fmt.Sprintf("Request Errors (%d)", len(errs)))
	md.PlainText("")
	if len(errs) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	items := make([]string, len(errs))
	for i, e := range errs {
		items[i] = "`" + e + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [gopherscan](https://github.com/nao1215/gopherscan)*")
}

// truncateString truncates s to maxLen bytes, ending with "..." when cut.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
