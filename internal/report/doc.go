// Package report renders crawl reports.
//
// Three formats are available:
//   - SimpleWriter: the plain text indexing report printed at the end of a crawl
//   - JSONWriter: the full report as JSON, optionally wrapped with the tool version
//   - MarkdownWriter: a Markdown document with tables and a file class chart
//
// All writers implement Writer and can be combined with MultiWriter.
package report
