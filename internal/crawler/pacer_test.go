package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/gopherscan/internal/gopher"
)

func TestPacedFetcher(t *testing.T) {
	t.Parallel()

	t.Run("zero delay returns the fetcher unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		if got := newPacedFetcher(f, 0); got != Fetcher(f) {
			t.Error("expected the original fetcher")
		}
	})

	t.Run("spaces requests", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.serve("", "")
		paced := newPacedFetcher(f, 50*time.Millisecond)

		start := time.Now()
		for range 3 {
			if _, err := paced.Fetch(context.Background(), testHost, testPort, ""); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
			t.Errorf("three paced requests took %v, expected at least ~100ms", elapsed)
		}
	})

	t.Run("canceled wait is a canceled fetch", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.serve("", "")
		paced := newPacedFetcher(f, time.Hour)

		// The first token is free; the second would wait an hour.
		if _, err := paced.Fetch(context.Background(), testHost, testPort, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := paced.Fetch(ctx, testHost, testPort, "")
		if !errors.Is(err, gopher.ErrCanceled) {
			t.Errorf("expected ErrCanceled, got %v", err)
		}
		if f.callCount(testHost, testPort, "") != 1 {
			t.Error("the canceled request must not reach the fetcher")
		}
	})
}
