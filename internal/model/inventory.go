package model

import (
	"cmp"
	"slices"
)

// FileRecord is one downloaded file.
type FileRecord struct {
	// Selector is the path that was requested. "" is the root selector.
	Selector string `json:"selector"`

	// Size is the response length in bytes after terminator stripping.
	Size int64 `json:"size"`

	// Type is the one-character item type from the listing.
	Type string `json:"type"`

	// SHA256 is the hex digest of the content.
	SHA256 string `json:"sha256"`

	// Metadata holds image metadata tags, when any could be read.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Inventory is everything a crawl learned about one server.
//
// Smallest and largest pointers are nil until the first file of their class
// is recorded. They point at copies, not into the file slices.
type Inventory struct {
	// Directories counts the root plus every distinct directory enqueued.
	Directories int `json:"directories"`

	TextFiles   []FileRecord `json:"text_files"`
	BinaryFiles []FileRecord `json:"binary_files"`

	SmallestText   *FileRecord `json:"smallest_text,omitempty"`
	LargestText    *FileRecord `json:"largest_text,omitempty"`
	SmallestBinary *FileRecord `json:"smallest_binary,omitempty"`
	LargestBinary  *FileRecord `json:"largest_binary,omitempty"`

	// SmallestTextContent is the decoded body of SmallestText.
	SmallestTextContent string `json:"smallest_text_content,omitempty"`

	// InvalidReferences are error-type (3) items, in discovery order.
	InvalidReferences []string `json:"invalid_references"`

	// ExternalServers is filled from the probe registry when the crawl ends.
	ExternalServers []ExternalServer `json:"external_servers"`

	// RequestErrors describes failed requests and unprocessable lines.
	RequestErrors []string `json:"request_errors"`
}

// NewInventory returns an Inventory with the root directory counted.
func NewInventory() *Inventory {
	return &Inventory{
		Directories: 1,
	}
}

// SortedTextFiles returns text files ordered by selector, then size.
func (inv *Inventory) SortedTextFiles() []FileRecord {
	return sortFiles(inv.TextFiles)
}

// SortedBinaryFiles returns binary files ordered by selector, then size.
func (inv *Inventory) SortedBinaryFiles() []FileRecord {
	return sortFiles(inv.BinaryFiles)
}

// UniqueInvalidReferences returns the invalid references sorted and deduplicated.
func (inv *Inventory) UniqueInvalidReferences() []string {
	return uniqueSorted(inv.InvalidReferences)
}

// UniqueRequestErrors returns the request errors sorted and deduplicated.
func (inv *Inventory) UniqueRequestErrors() []string {
	return uniqueSorted(inv.RequestErrors)
}

// SortedExternalServers returns external servers ordered by host, then port.
func (inv *Inventory) SortedExternalServers() []ExternalServer {
	servers := slices.Clone(inv.ExternalServers)
	slices.SortFunc(servers, func(a, b ExternalServer) int {
		return a.ServerKey.Compare(b.ServerKey)
	})
	return servers
}

func sortFiles(files []FileRecord) []FileRecord {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b FileRecord) int {
		return cmp.Or(
			cmp.Compare(a.Selector, b.Selector),
			cmp.Compare(a.Size, b.Size),
		)
	})
	return sorted
}

func uniqueSorted(items []string) []string {
	out := slices.Clone(items)
	slices.Sort(out)
	return slices.Compact(out)
}
