// Package database archives crawl reports in SQLite (modernc.org/sqlite,
// no cgo).
//
// Each crawl is stored as one row holding the full report as JSON plus a
// small summary used for history listings. The history command reads the
// archive to list servers and runs and to diff the two latest runs of a
// server.
package database
