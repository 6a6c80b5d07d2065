package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/nao1215/gopherscan/internal/gopher"
)

const (
	testHost = "example.com"
	testPort = 70
)

// fakeFetcher serves canned responses keyed by host, port and selector.
// Unknown keys fail with a connection error.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	failures  map[string]error
	calls     map[string]int
	hook      func(host string, port int, selector string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string][]byte),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func fetchKey(host string, port int, selector string) string {
	return fmt.Sprintf("%s:%d|%s", strings.ToLower(host), port, selector)
}

// serve registers a response on the test server.
func (f *fakeFetcher) serve(selector string, body string) {
	f.responses[fetchKey(testHost, testPort, selector)] = []byte(body)
}

// serveAt registers a response on another server.
func (f *fakeFetcher) serveAt(host string, port int, selector string, body string) {
	f.responses[fetchKey(host, port, selector)] = []byte(body)
}

// listing joins lines into a CRLF directory listing.
func listing(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func (f *fakeFetcher) Fetch(_ context.Context, host string, port int, selector string) ([]byte, error) {
	if f.hook != nil {
		f.hook(host, port, selector)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := fetchKey(host, port, selector)
	f.calls[key]++

	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if body, ok := f.responses[key]; ok {
		return body, nil
	}
	return nil, &gopher.FetchError{Kind: gopher.KindConnect, Host: host, Port: port, Selector: selector}
}

func (f *fakeFetcher) callCount(host string, port int, selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fetchKey(host, port, selector)]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
