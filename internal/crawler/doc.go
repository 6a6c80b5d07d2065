// Package crawler walks a Gopher server breadth first.
//
// A Crawler starts at the root selector, lists every directory it reaches on
// the target server, downloads text and binary files, and records what it
// found in a model.Inventory. Links to other servers are never followed; the
// Prober checks each of them once with a root request. The crawl is strictly
// sequential: one request is in flight at a time and items are handled in
// listing order, so two crawls of an unchanged server produce the same
// report.
//
// # Usage
//
//	client := gopher.NewClient()
//	c := crawler.New(client, "gopher.floodgap.com", 70, crawler.WithDelay(time.Second))
//	report := c.Crawl(ctx)
//
// Canceling ctx stops the crawl after the in-flight request and returns the
// partial report with Interrupted set.
package crawler
