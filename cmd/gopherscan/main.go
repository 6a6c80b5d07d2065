// Package main is the gopherscan command.
//
// gopherscan crawls a Gopher server breadth first, downloads every text and
// binary file it can reach, checks the other servers the listings point to,
// and prints an indexing report.
//
// Usage:
//
//	gopherscan crawl [host] [port]
//	gopherscan crawl --list servers.txt --batch 4
//	gopherscan history gopher.floodgap.com
package main

func main() {
	Execute()
}
