package crawler

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
)

func newTestCrawler(f Fetcher, opts ...Option) *Crawler {
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return New(f, testHost, testPort, opts...)
}

func TestCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"iWelcome\tfake\t(NULL)\t0",
		"1Docs\t/docs\texample.com\t70",
		"0Readme\t/readme.txt\texample.com\t70",
		"1Other\t/\tother.example.com\t70",
		"3Bad\t/bad\texample.com\t70",
	)+".\r\n")
	f.serve("/docs", listing("iNothing to see here"))
	f.serve("/readme.txt", "hello gopher")
	f.serveAt("other.example.com", 70, "", listing("iOther server"))

	report := newTestCrawler(f).Crawl(context.Background())
	inv := report.Inventory

	if report.Interrupted {
		t.Error("expected a complete crawl")
	}
	if inv.Directories != 2 {
		t.Errorf("Directories = %d, expected 2", inv.Directories)
	}
	if len(inv.TextFiles) != 1 || inv.TextFiles[0].Selector != "/readme.txt" || inv.TextFiles[0].Size != int64(len("hello gopher")) {
		t.Errorf("TextFiles = %+v", inv.TextFiles)
	}
	wantServers := []model.ExternalServer{{ServerKey: model.NewServerKey("other.example.com", 70), Status: model.StatusUp}}
	if !slices.Equal(inv.ExternalServers, wantServers) {
		t.Errorf("ExternalServers = %+v", inv.ExternalServers)
	}
	if !slices.Equal(inv.InvalidReferences, []string{"/bad"}) {
		t.Errorf("InvalidReferences = %v", inv.InvalidReferences)
	}
	if len(inv.RequestErrors) != 0 {
		t.Errorf("RequestErrors = %v", inv.RequestErrors)
	}
	if f.callCount("other.example.com", 70, "/") != 0 {
		t.Error("external selector must never be fetched")
	}
	if report.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}
}

func TestCrawlCycleTerminates(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"1A\t/a\texample.com\t70",
		"1Home\t\texample.com\t70",
	))
	f.serve("/a", listing(
		"1B\t/b\texample.com\t70",
		"1Back home\t\texample.com\t70",
	))
	f.serve("/b", listing(
		"1A again\t/a\texample.com\t70",
		"1Self\t/b\texample.com\t70",
	))

	report := newTestCrawler(f).Crawl(context.Background())

	for _, sel := range []string{"", "/a", "/b"} {
		if got := f.callCount(testHost, testPort, sel); got != 1 {
			t.Errorf("selector %q fetched %d times, expected 1", sel, got)
		}
	}
	if report.Inventory.Directories != 3 {
		t.Errorf("Directories = %d, expected 3", report.Inventory.Directories)
	}
}

func TestCrawlBreadthFirstOrder(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	var order []string
	f.hook = func(_ string, _ int, selector string) {
		order = append(order, selector)
	}
	f.serve("", listing(
		"1A\t/a\texample.com\t70",
		"1B\t/b\texample.com\t70",
	))
	f.serve("/a", listing("1A1\t/a/1\texample.com\t70"))
	f.serve("/b", listing("1B1\t/b/1\texample.com\t70"))
	f.serve("/a/1", "")
	f.serve("/b/1", "")

	newTestCrawler(f).Crawl(context.Background())

	want := []string{"", "/a", "/b", "/a/1", "/b/1"}
	if !slices.Equal(order, want) {
		t.Errorf("fetch order = %q, expected %q", order, want)
	}
}

func TestCrawlProbesExternalServerOnce(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"1Ext\t/\tother.example.com\t70",
		"0Ext file\t/x.txt\tOTHER.example.com\t70",
		"1Sub\t/sub\texample.com\t70",
		"1Other port\t\texample.com\t7070",
	))
	f.serve("/sub", listing(
		"1Ext again\t/y\tother.example.com\t70",
	))
	// other.example.com is not served, so the probe fails.

	report := newTestCrawler(f).Crawl(context.Background())

	if got := f.callCount("other.example.com", 70, ""); got != 1 {
		t.Errorf("probe count = %d, expected 1", got)
	}
	if got := f.callCount(testHost, 7070, ""); got != 1 {
		t.Errorf("same host on another port probed %d times, expected 1", got)
	}

	var got []string
	for _, s := range report.Inventory.ExternalServers {
		got = append(got, s.String()+" -> "+string(s.Status))
	}
	want := []string{"example.com:7070 -> down/error", "other.example.com:70 -> down/error"}
	if !slices.Equal(got, want) {
		t.Errorf("ExternalServers = %v, expected %v", got, want)
	}
	if len(report.Inventory.RequestErrors) != 0 {
		t.Errorf("probe failures must not be request errors: %v", report.Inventory.RequestErrors)
	}
}

func TestCrawlSmallestLargest(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"0One\t/t1\texample.com\t70",
		"0Two\t/t2\texample.com\t70",
		"0Three\t/t3\texample.com\t70",
		"0Four\t/t4\texample.com\t70",
	))
	f.serve("/t1", strings.Repeat("a", 500))
	f.serve("/t2", "second-10b")
	f.serve("/t3", strings.Repeat("c", 2000))
	f.serve("/t4", "fourth-10b")

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if inv.SmallestText == nil || inv.SmallestText.Selector != "/t2" || inv.SmallestText.Size != 10 {
		t.Errorf("SmallestText = %+v", inv.SmallestText)
	}
	if inv.SmallestTextContent != "second-10b" {
		t.Errorf("SmallestTextContent = %q", inv.SmallestTextContent)
	}
	if inv.LargestText == nil || inv.LargestText.Selector != "/t3" || inv.LargestText.Size != 2000 {
		t.Errorf("LargestText = %+v", inv.LargestText)
	}
	if len(inv.TextFiles) != 4 {
		t.Errorf("expected 4 text files, got %d", len(inv.TextFiles))
	}
}

func TestCrawlBinaryFiles(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"9Archive\t/a.zip\texample.com\t70",
		"IPhoto\t/p.jpg\texample.com\t70",
		"gAnim\t/a.gif\texample.com\t70",
		"5DOS\t/d.exe\texample.com\t70",
		"sSound\t/s.wav\texample.com\t70",
	))
	f.serve("/a.zip", "PK\x03\x04zip")
	f.serve("/p.jpg", "\xff\xd8\xff\xe0jpeg")
	f.serve("/a.gif", "GIF89a")
	f.serve("/d.exe", "MZ")
	f.serve("/s.wav", "RIFF....WAVE")

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if len(inv.BinaryFiles) != 5 {
		t.Fatalf("expected 5 binary files, got %+v", inv.BinaryFiles)
	}
	if len(inv.TextFiles) != 0 {
		t.Errorf("expected no text files, got %+v", inv.TextFiles)
	}
	if inv.SmallestBinary.Selector != "/d.exe" || inv.LargestBinary.Selector != "/s.wav" {
		t.Errorf("smallest %+v largest %+v", inv.SmallestBinary, inv.LargestBinary)
	}
	if inv.BinaryFiles[0].Type != "9" || inv.BinaryFiles[0].SHA256 == "" {
		t.Errorf("unexpected record %+v", inv.BinaryFiles[0])
	}
}

func TestCrawlRecordsErrors(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"1Missing\t/missing\texample.com\t70",
		"0Gone\t/gone.txt\texample.com\t70",
		"1Broken\t/broken",
		"0Bad port\t/x\texample.com\tseventy",
	))
	f.failures[fetchKey(testHost, testPort, "/gone.txt")] = &gopher.FetchError{Kind: gopher.KindSizeLimit}

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	want := []string{
		`(root selector) (malformed_line: 0Bad port\t/x\texample.com\tseventy...)`,
		`(root selector) (malformed_line: 1Broken\t/broken...)`,
		"/gone.txt (fetch failed)",
		"/missing (directory fetch failed)",
	}
	if got := inv.UniqueRequestErrors(); !slices.Equal(got, want) {
		t.Errorf("RequestErrors =\n%q\nexpected\n%q", got, want)
	}
	if inv.Directories != 2 {
		t.Errorf("a failed directory still counts as discovered, got %d", inv.Directories)
	}
}

func TestCrawlMalformedLineExcerpt(t *testing.T) {
	t.Parallel()

	long := "1" + strings.Repeat("x", 80)
	f := newFakeFetcher()
	f.serve("", listing(long))

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	want := "(root selector) (malformed_line: " + long[:50] + "...)"
	if !slices.Equal(inv.RequestErrors, []string{want}) {
		t.Errorf("RequestErrors = %q", inv.RequestErrors)
	}
}

// panickingFetcher panics for one selector and delegates otherwise.
type panickingFetcher struct {
	*fakeFetcher
	selector string
}

func (p *panickingFetcher) Fetch(ctx context.Context, host string, port int, selector string) ([]byte, error) {
	if selector == p.selector {
		panic("boom")
	}
	return p.fakeFetcher.Fetch(ctx, host, port, selector)
}

func TestCrawlRecoversFromPanics(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"0Boom\t/boom.txt\texample.com\t70",
		"0Fine\t/fine.txt\texample.com\t70",
	))
	f.serve("/fine.txt", "ok")

	inv := newTestCrawler(&panickingFetcher{fakeFetcher: f, selector: "/boom.txt"}).Crawl(context.Background()).Inventory

	if !slices.Equal(inv.RequestErrors, []string{"(root selector) -> /boom.txt (processing_error)"}) {
		t.Errorf("RequestErrors = %q", inv.RequestErrors)
	}
	if len(inv.TextFiles) != 1 || inv.TextFiles[0].Selector != "/fine.txt" {
		t.Errorf("crawl did not continue after the panic: %+v", inv.TextFiles)
	}
}

func TestCrawlInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.serve("", listing(
		"0Before\t/before.txt\texample.com\t70",
		"1Docs\t/docs\texample.com\t70",
	))
	f.serve("/before.txt", "kept")
	f.hook = func(_ string, _ int, selector string) {
		if selector == "/docs" {
			cancel()
		}
	}
	f.failures[fetchKey(testHost, testPort, "/docs")] = &gopher.FetchError{Kind: gopher.KindCanceled}

	report := newTestCrawler(f).Crawl(ctx)

	if !report.Interrupted {
		t.Error("expected Interrupted to be set")
	}
	if len(report.Inventory.TextFiles) != 1 {
		t.Errorf("expected partial results to be kept, got %+v", report.Inventory.TextFiles)
	}
	if len(report.Inventory.RequestErrors) != 0 {
		t.Errorf("canceled requests must not be recorded: %v", report.Inventory.RequestErrors)
	}
}

func TestCrawlSkipsNonFetchableItems(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"iInfo with host\t/info\terror.host\t1",
		"7Search\t/search\texample.com\t70",
		"8Telnet\t/telnet\texample.com\t70",
		"TTN3270\t/tn\texample.com\t70",
		"hHTML\tURL:http://example.org\texample.com\t70",
		"2CSO\t/cso\texample.com\t70",
		"ZUnknown\t/unknown\texample.com\t70",
	))

	newTestCrawler(f).Crawl(context.Background())

	if got := f.totalCalls(); got != 1 {
		t.Errorf("expected only the root fetch, got %d calls (%v)", got, f.calls)
	}
}

func TestCrawlIndentedListingLines(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		" 0Readme\t/readme.txt\texample.com\t70  ",
		"\t1Docs\t/docs\texample.com\t70",
		"   .",
	))
	f.serve("/readme.txt", "hello")
	f.serve("/docs", listing("iEmpty"))

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if len(inv.TextFiles) != 1 || inv.TextFiles[0].Selector != "/readme.txt" {
		t.Errorf("TextFiles = %+v", inv.TextFiles)
	}
	if inv.Directories != 2 {
		t.Errorf("Directories = %d, expected 2", inv.Directories)
	}
	if f.callCount(testHost, testPort, "/docs") != 1 {
		t.Error("expected the indented directory to be fetched")
	}
	if len(inv.RequestErrors) != 0 {
		t.Errorf("RequestErrors = %v", inv.RequestErrors)
	}
}

func TestCrawlInfoLineDoesNotMarkVisited(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"iSee the docs below\t/docs\texample.com\t70",
		"1Docs\t/docs\texample.com\t70",
	))
	f.serve("/docs", listing("iEmpty"))

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if inv.Directories != 2 {
		t.Errorf("Directories = %d, expected 2", inv.Directories)
	}
	if got := f.callCount(testHost, testPort, "/docs"); got != 1 {
		t.Errorf("expected /docs to be fetched once, got %d", got)
	}
}

func TestCrawlHostComparisonIgnoresCase(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"0Upper\t/upper.txt\tEXAMPLE.COM\t70",
		"0No host\t/nohost.txt\t\t70",
	))
	f.serve("/upper.txt", "up")
	f.serve("/nohost.txt", "none")

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if len(inv.ExternalServers) != 0 {
		t.Errorf("expected no external servers, got %+v", inv.ExternalServers)
	}
	if len(inv.TextFiles) != 2 {
		t.Errorf("expected both files on the target server, got %+v", inv.TextFiles)
	}
}

func TestCrawlIgnorePatterns(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", listing(
		"1Private\t/private\texample.com\t70",
		"0Secret\t/private/secret.txt\texample.com\t70",
		"9Image\t/big.iso\texample.com\t70",
		"0Public\t/public.txt\texample.com\t70",
	))
	f.serve("/public.txt", "hello")

	inv := newTestCrawler(f, WithIgnorePatterns([]string{"/private/*", "*.iso"})).Crawl(context.Background()).Inventory

	if f.totalCalls() != 2 {
		t.Errorf("expected root and /public.txt only, got %v", f.calls)
	}
	if inv.Directories != 1 {
		t.Errorf("ignored directory must not be counted, got %d", inv.Directories)
	}
	if len(inv.RequestErrors) != 0 {
		t.Errorf("unexpected errors: %v", inv.RequestErrors)
	}
}

func TestCrawlLatin1Listing(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.serve("", "0Caf\xe9\t/cafe.txt\texample.com\t70\r\n")
	f.serve("/cafe.txt", "ok")

	inv := newTestCrawler(f).Crawl(context.Background()).Inventory

	if len(inv.TextFiles) != 1 {
		t.Errorf("expected the latin-1 listing to be parsed, got %+v", inv.TextFiles)
	}
}

func TestCrawlRootFailure(t *testing.T) {
	t.Parallel()

	report := newTestCrawler(newFakeFetcher()).Crawl(context.Background())

	if !slices.Equal(report.Inventory.RequestErrors, []string{"(root selector) (directory fetch failed)"}) {
		t.Errorf("RequestErrors = %q", report.Inventory.RequestErrors)
	}
	if report.Interrupted {
		t.Error("a failed root is not an interruption")
	}
}
