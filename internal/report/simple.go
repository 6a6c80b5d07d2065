package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Delimiters framing the content of the smallest text file.
const (
	ContentStart = "------ START CONTENT ------"
	ContentEnd   = "------ END CONTENT ------"
)

const ruleWidth = 70

// SimpleWriter outputs the plain text indexing report.
//
// Sections are numbered the same way on every run so that reports of
// different servers line up when compared side by side.
type SimpleWriter struct {
	baseWriter

	// verbose adds digests and image metadata to the file lists.
	verbose bool

	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists the SHA-256 digest and any image metadata of each file.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// fileClass is one of the two file sections of the report.
type fileClass struct {
	name     string
	files    []model.FileRecord
	smallest *model.FileRecord
	largest  *model.FileRecord
	content  *string
}

// Write outputs the report in plain text.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	inv := report.Inventory
	if inv == nil {
		inv = model.NewInventory()
	}

	var sb strings.Builder

	w.writeHeader(&sb, report)

	fmt.Fprintf(&sb, "1. Total Gopher directories found: %d\n", inv.Directories)

	w.writeFileClass(&sb, 2, fileClass{
		name:     "text",
		files:    inv.SortedTextFiles(),
		smallest: inv.SmallestText,
		largest:  inv.LargestText,
		content:  &inv.SmallestTextContent,
	})
	w.writeFileClass(&sb, 5, fileClass{
		name:     "binary",
		files:    inv.SortedBinaryFiles(),
		smallest: inv.SmallestBinary,
		largest:  inv.LargestBinary,
	})

	invalid := inv.UniqueInvalidReferences()
	fmt.Fprintf(&sb, "\n8. Invalid references (type '3'): %d\n", len(invalid))
	if len(invalid) > 0 {
		sb.WriteString("   List of unique invalid reference selectors:\n")
		for _, sel := range invalid {
			fmt.Fprintf(&sb, " - '%s'\n", gopher.EscapeControl(sel))
		}
	}

	servers := inv.SortedExternalServers()
	fmt.Fprintf(&sb, "\n9. External server references found: %d\n", len(servers))
	if len(servers) > 0 {
		sb.WriteString("   List of external servers (host, port) and status:\n")
		for _, s := range servers {
			fmt.Fprintf(&sb, " - %s -> %s\n", s.ServerKey, strings.ToUpper(string(s.Status)))
		}
	}

	errs := inv.UniqueRequestErrors()
	fmt.Fprintf(&sb, "\n10. Requests with errors (timeout, network, parsing, etc.): %d\n", len(errs))
	if len(errs) > 0 {
		sb.WriteString("   List of unique selectors/items with errors:\n")
		for _, e := range errs {
			fmt.Fprintf(&sb, " - '%s'\n", e)
		}
	}

	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                      GOPHER INDEXING REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Server:   %s\n", report.Target())
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration: %s\n", d.Round(time.Millisecond))
	}
	if report.Interrupted {
		sb.WriteString("Status:   INTERRUPTED (partial results)\n")
	} else {
		sb.WriteString("Status:   Complete\n")
	}

	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeFileClass writes the count, the sorted list, and the smallest and
// largest blocks of one class. first is the number of the count section.
func (w *SimpleWriter) writeFileClass(sb *strings.Builder, first int, c fileClass) {
	fmt.Fprintf(sb, "\n%d. %s files found: %d\n", first, w.title.String(c.name), len(c.files))
	if len(c.files) == 0 {
		fmt.Fprintf(sb, "\n%d. Smallest %s file: (No %s files found)\n", first+1, c.name, c.name)
		fmt.Fprintf(sb, "\n%d. Largest %s file: (No %s files found)\n", first+2, c.name, c.name)
		return
	}

	fmt.Fprintf(sb, " List of %s files (selector, size):\n", c.name)
	for _, f := range c.files {
		fmt.Fprintf(sb, " - '%s' (%d bytes)\n", gopher.DisplaySelector(f.Selector), f.Size)
		if w.verbose {
			w.writeFileDetails(sb, f)
		}
	}

	fmt.Fprintf(sb, "\n%d. Smallest %s file:\n", first+1, c.name)
	writeFileBlock(sb, c.smallest)
	if c.smallest != nil && c.content != nil {
		sb.WriteString(" Content:\n")
		sb.WriteString(ContentStart)
		sb.WriteString("\n")
		content := gopher.EscapeText(*c.content)
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString(ContentEnd)
		sb.WriteString("\n")
	}

	fmt.Fprintf(sb, "\n%d. Largest %s file:\n", first+2, c.name)
	writeFileBlock(sb, c.largest)
}

func (w *SimpleWriter) writeFileDetails(sb *strings.Builder, f model.FileRecord) {
	if f.SHA256 != "" {
		fmt.Fprintf(sb, "     sha256: %s\n", f.SHA256)
	}
	for _, tag := range slices.Sorted(maps.Keys(f.Metadata)) {
		fmt.Fprintf(sb, "     %s: %s\n", tag, f.Metadata[tag])
	}
}

func writeFileBlock(sb *strings.Builder, f *model.FileRecord) {
	if f == nil {
		sb.WriteString(" (none)\n")
		return
	}
	fmt.Fprintf(sb, " Selector: '%s'\n", gopher.DisplaySelector(f.Selector))
	fmt.Fprintf(sb, " Size: %d bytes\n", f.Size)
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("End of Report\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
