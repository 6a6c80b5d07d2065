package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/gopherscan/internal/model"
)

// JSONWriter outputs reports in JSON format for other tools.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given line prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report as a single JSON document.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, ""))
}

// WriteValue outputs any value with the writer's formatting. It is used for
// history listings and report diffs.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	return w.writeJSON(v)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport is the document written by JSONWriter. The unique and sorted
// lists repeat what the inventory holds so consumers do not need to
// deduplicate.
type JSONReport struct {
	// Version is the gopherscan version that produced the report. It is
	// omitted by the plain JSONWriter.
	Version string `json:"version,omitempty"`

	Report *model.CrawlReport `json:"report"`

	Summary           model.RunSummary `json:"summary"`
	InvalidReferences []string         `json:"unique_invalid_references"`
	RequestErrors     []string         `json:"unique_request_errors"`
}

// NewJSONReport builds the JSON document for report.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	out := &JSONReport{
		Version:           version,
		Report:            report,
		Summary:           model.Summarize(report),
		InvalidReferences: []string{},
		RequestErrors:     []string{},
	}
	if inv := report.Inventory; inv != nil {
		if refs := inv.UniqueInvalidReferences(); refs != nil {
			out.InvalidReferences = refs
		}
		if errs := inv.UniqueRequestErrors(); errs != nil {
			out.RequestErrors = errs
		}
	}
	return out
}

// FullJSONWriter writes reports tagged with the tool version.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer that records version in every report.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report with the version field set.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}
