// Package model defines the records produced by a crawl.
//
// An Inventory holds what was found on one Gopher server: directory count,
// downloaded files with their sizes and digests, invalid references, the
// external servers that were linked and probed, and a trail of request
// errors. A CrawlReport wraps one Inventory with the target and timing of
// the run. Both serialize to JSON for reports and the archive.
package model
