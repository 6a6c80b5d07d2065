package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gopherscan/internal/model"
)

// DBFileName is the archive file created inside the data directory.
const DBFileName = "gopherscan.db"

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Archive errors.
var (
	// ErrReportNotFound is returned when no archived report matches.
	ErrReportNotFound = errors.New("report not found")

	// ErrDatabaseNotFound is returned by Open when the file is missing and
	// CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)

// ArchiveDB stores crawl reports in SQLite so that runs against the same
// server can be listed and compared later.
type ArchiveDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ArchiveDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ReadOnlyOptions returns options for commands that only read history.
func ReadOnlyOptions() Options {
	return Options{}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*ArchiveDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}

	// Concurrent readers and a writer may meet on the same file.
	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArchiveDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Path returns the database file path.
func (a *ArchiveDB) Path() string {
	return a.dbPath
}

// Close closes the database connection.
func (a *ArchiveDB) Close() error {
	return a.db.Close()
}

func (a *ArchiveDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_server ON crawl_reports(host, port);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON crawl_reports(started_at);
	`

	_, err := a.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport archives report and returns its ID. The host is stored
// lowercase so that lookups ignore case.
func (a *ArchiveDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(model.Summarize(report))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	INSERT INTO crawl_reports (host, port, started_at, interrupted, report_json, summary_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := a.db.ExecContext(ctx, query,
		strings.ToLower(report.Host),
		report.Port,
		formatTime(report.StartedAt),
		report.Interrupted,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	return res.LastInsertId()
}

// GetReport returns the archived report with the given ID.
func (a *ArchiveDB) GetReport(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := a.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// LatestReports returns up to limit reports for host:port, newest first.
func (a *ArchiveDB) LatestReports(ctx context.Context, host string, port, limit int) ([]*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_reports
	WHERE host = ? AND port = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := a.db.QueryContext(ctx, query, strings.ToLower(host), port, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // skip malformed rows
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunRecord is one archived run without its full report.
type RunRecord struct {
	ID      int64            `json:"id"`
	Server  model.ServerKey  `json:"server"`
	Summary model.RunSummary `json:"summary"`
}

// History returns the archived runs of host:port, newest first.
func (a *ArchiveDB) History(ctx context.Context, host string, port int) ([]RunRecord, error) {
	query := `
	SELECT id, host, port, summary_json FROM crawl_reports
	WHERE host = ? AND port = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := a.db.QueryContext(ctx, query, strings.ToLower(host), port)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec         RunRecord
			summaryJSON string
		)
		if err := rows.Scan(&rec.ID, &rec.Server.Host, &rec.Server.Port, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(summaryJSON), &rec.Summary); err != nil {
			continue // skip malformed rows
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ServerRuns is an archived server with its number of runs.
type ServerRuns struct {
	model.ServerKey
	Runs     int       `json:"runs"`
	LastSeen time.Time `json:"last_seen"`
}

// ListServers returns every archived server ordered by host, then port.
func (a *ArchiveDB) ListServers(ctx context.Context) ([]ServerRuns, error) {
	query := `
	SELECT host, port, COUNT(*), MAX(started_at) FROM crawl_reports
	GROUP BY host, port
	ORDER BY host, port
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []ServerRuns
	for rows.Next() {
		var (
			s        ServerRuns
			lastSeen string
		)
		if err := rows.Scan(&s.Host, &s.Port, &s.Runs, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		s.LastSeen = parseTime(lastSeen)
		servers = append(servers, s)
	}

	return servers, rows.Err()
}

func decodeReport(data string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.Inventory == nil {
		report.Inventory = model.NewInventory()
	}
	return &report, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime returns the zero time for values it cannot read.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
