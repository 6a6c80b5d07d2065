package model

import (
	"net"
	"strconv"
	"time"
)

// CrawlReport is the outcome of crawling one server.
type CrawlReport struct {
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted is true when the crawl was canceled before the frontier
	// drained. The inventory then covers only what was reached.
	Interrupted bool `json:"interrupted"`

	Inventory *Inventory `json:"inventory"`
}

// NewCrawlReport starts a report for host:port with an empty inventory.
func NewCrawlReport(host string, port int) *CrawlReport {
	return &CrawlReport{
		Host:      host,
		Port:      port,
		StartedAt: time.Now(),
		Inventory: NewInventory(),
	}
}

// Target returns host:port of the crawled server.
func (r *CrawlReport) Target() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Duration returns how long the crawl ran, or zero if it has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
