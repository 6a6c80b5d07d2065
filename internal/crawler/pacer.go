package crawler

import (
	"context"
	"time"

	"github.com/nao1215/gopherscan/internal/gopher"
	"golang.org/x/time/rate"
)

// pacedFetcher spaces requests at least delay apart.
type pacedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// newPacedFetcher wraps f. A non-positive delay disables pacing and returns f.
func newPacedFetcher(f Fetcher, delay time.Duration) Fetcher {
	if delay <= 0 {
		return f
	}
	return &pacedFetcher{
		next:    f,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Fetch waits for the limiter, then fetches.
func (p *pacedFetcher) Fetch(ctx context.Context, host string, port int, selector string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &gopher.FetchError{Kind: gopher.KindCanceled, Host: host, Port: port, Selector: selector, Err: err}
	}
	return p.next.Fetch(ctx, host, port, selector)
}
