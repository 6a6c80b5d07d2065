package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/gopherscan/internal/model"
)

// setupTestDB creates a temporary archive for testing.
func setupTestDB(t *testing.T) *ArchiveDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func newReport(host string, port int, started time.Time, textFiles ...string) *model.CrawlReport {
	r := model.NewCrawlReport(host, port)
	r.StartedAt = started
	r.FinishedAt = started.Add(time.Second)
	for _, sel := range textFiles {
		r.Inventory.TextFiles = append(r.Inventory.TextFiles, model.FileRecord{Selector: sel, Size: 10, Type: "0"})
	}
	return r
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("read only open of missing database fails", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), ReadOnlyOptions())
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("err = %v, want ErrDatabaseNotFound", err)
		}
	})

	t.Run("read only open of existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db.SaveReport(context.Background(), newReport("a.example.org", 70, base)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		_ = db.Close()

		ro, err := Open(dir, ReadOnlyOptions())
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer ro.Close()

		history, err := ro.History(context.Background(), "a.example.org", 70)
		if err != nil || len(history) != 1 {
			t.Errorf("history = %v, %v", history, err)
		}
	})
}

func TestSaveAndGetReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newReport("Gopher.Example.org", 70, base, "/readme.txt")
	report.Inventory.ExternalServers = []model.ExternalServer{
		{ServerKey: model.NewServerKey("other.example.org", 70), Status: model.StatusUp},
	}
	report.Inventory.RequestErrors = []string{"/slow (read timeout)"}

	id, err := db.SaveReport(ctx, report)
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	got, err := db.GetReport(ctx, id)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.Host != "Gopher.Example.org" || got.Port != 70 {
		t.Errorf("target = %s", got.Target())
	}
	if !got.StartedAt.Equal(base) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, base)
	}
	if len(got.Inventory.TextFiles) != 1 || got.Inventory.TextFiles[0].Selector != "/readme.txt" {
		t.Errorf("text files = %+v", got.Inventory.TextFiles)
	}
	if len(got.Inventory.ExternalServers) != 1 || got.Inventory.ExternalServers[0].Status != model.StatusUp {
		t.Errorf("external servers = %+v", got.Inventory.ExternalServers)
	}

	if _, err := db.GetReport(ctx, id+100); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("err = %v, want ErrReportNotFound", err)
	}
}

func TestLatestReports(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for i, sel := range []string{"/first", "/second", "/third"} {
		if _, err := db.SaveReport(ctx, newReport("gopher.example.org", 70, base.Add(time.Duration(i)*time.Hour), sel)); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}
	if _, err := db.SaveReport(ctx, newReport("gopher.example.org", 7070, base.Add(5*time.Hour), "/other-port")); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	reports, err := db.LatestReports(ctx, "GOPHER.example.org", 70, 2)
	if err != nil {
		t.Fatalf("LatestReports failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Inventory.TextFiles[0].Selector != "/third" || reports[1].Inventory.TextFiles[0].Selector != "/second" {
		t.Error("expected newest report first")
	}

	none, err := db.LatestReports(ctx, "unknown.example.org", 70, 2)
	if err != nil || len(none) != 0 {
		t.Errorf("unknown server: %v, %v", none, err)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	first := newReport("gopher.example.org", 70, base, "/a")
	second := newReport("gopher.example.org", 70, base.Add(time.Hour), "/a", "/b")
	second.Interrupted = true
	for _, r := range []*model.CrawlReport{first, second} {
		if _, err := db.SaveReport(ctx, r); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}

	history, err := db.History(ctx, "gopher.example.org", 70)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d runs, want 2", len(history))
	}
	if history[0].Summary.TextFiles != 2 || !history[0].Summary.Interrupted {
		t.Errorf("latest summary = %+v", history[0].Summary)
	}
	if history[1].Summary.TextFiles != 1 {
		t.Errorf("earlier summary = %+v", history[1].Summary)
	}
	if history[0].Server != model.NewServerKey("gopher.example.org", 70) {
		t.Errorf("server = %v", history[0].Server)
	}
	if history[0].ID <= history[1].ID {
		t.Error("expected newest run first")
	}
}

func TestListServers(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for _, r := range []*model.CrawlReport{
		newReport("zeta.example.org", 70, base),
		newReport("alpha.example.org", 70, base),
		newReport("alpha.example.org", 70, base.Add(time.Hour)),
		newReport("Alpha.example.org", 7070, base),
	} {
		if _, err := db.SaveReport(ctx, r); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}

	servers, err := db.ListServers(ctx)
	if err != nil {
		t.Fatalf("ListServers failed: %v", err)
	}

	want := []struct {
		key  model.ServerKey
		runs int
	}{
		{model.NewServerKey("alpha.example.org", 70), 2},
		{model.NewServerKey("alpha.example.org", 7070), 1},
		{model.NewServerKey("zeta.example.org", 70), 1},
	}
	if len(servers) != len(want) {
		t.Fatalf("got %d servers, want %d: %+v", len(servers), len(want), servers)
	}
	for i, w := range want {
		if servers[i].ServerKey != w.key || servers[i].Runs != w.runs {
			t.Errorf("server %d = %+v, want %v with %d runs", i, servers[i], w.key, w.runs)
		}
	}
	if !servers[0].LastSeen.Equal(base.Add(time.Hour)) {
		t.Errorf("LastSeen = %v, want %v", servers[0].LastSeen, base.Add(time.Hour))
	}
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	in := time.Date(2026, 5, 6, 7, 8, 9, 123000000, time.FixedZone("JST", 9*3600))
	out := parseTime(formatTime(in))
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
	if !parseTime("not a time").IsZero() {
		t.Error("expected zero time for garbage")
	}
	if formatTime(base) >= formatTime(base.Add(time.Nanosecond)) {
		t.Error("expected stored timestamps to sort as text")
	}
}
