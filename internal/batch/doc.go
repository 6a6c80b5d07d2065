// Package batch crawls several Gopher servers at once.
//
// Each target gets its own crawl, so nothing is shared between them; the
// Runner only bounds how many run at the same time. Within one crawl
// requests stay strictly sequential.
package batch
