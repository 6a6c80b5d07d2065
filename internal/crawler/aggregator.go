package crawler

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
)

// Aggregator accumulates crawl statistics into an Inventory.
type Aggregator struct {
	inv *model.Inventory
}

// NewAggregator records into inv.
func NewAggregator(inv *model.Inventory) *Aggregator {
	return &Aggregator{inv: inv}
}

// Inventory returns the record being filled.
func (a *Aggregator) Inventory() *model.Inventory {
	return a.inv
}

// AddDirectory counts a newly enqueued directory.
func (a *Aggregator) AddDirectory() {
	a.inv.Directories++
}

// RecordFile adds a downloaded file of the given class. Only ClassText and
// ClassBinary are recorded.
//
// The smallest file of a class is replaced only by a strictly smaller one and
// the largest only by a strictly larger one, so the first file seen wins ties.
// For text, the decoded body of the current smallest file is kept.
func (a *Aggregator) RecordFile(class gopher.Class, item gopher.Item, data []byte, metadata map[string]string) {
	sum := sha256.Sum256(data)
	rec := model.FileRecord{
		Selector: item.Selector,
		Size:     int64(len(data)),
		Type:     item.Type.String(),
		SHA256:   hex.EncodeToString(sum[:]),
		Metadata: metadata,
	}

	switch class {
	case gopher.ClassText:
		a.inv.TextFiles = append(a.inv.TextFiles, rec)
		if updateExtremes(&a.inv.SmallestText, &a.inv.LargestText, rec) {
			a.inv.SmallestTextContent, _ = gopher.DecodeText(data)
		}
	case gopher.ClassBinary:
		a.inv.BinaryFiles = append(a.inv.BinaryFiles, rec)
		updateExtremes(&a.inv.SmallestBinary, &a.inv.LargestBinary, rec)
	}
}

// updateExtremes updates the smallest and largest records and reports whether
// rec became the new smallest.
func updateExtremes(smallest, largest **model.FileRecord, rec model.FileRecord) bool {
	newSmallest := false
	if *smallest == nil || rec.Size < (*smallest).Size {
		r := rec
		*smallest = &r
		newSmallest = true
	}
	if *largest == nil || rec.Size > (*largest).Size {
		r := rec
		*largest = &r
	}
	return newSmallest
}

// RecordInvalid adds the selector of an error-type item.
func (a *Aggregator) RecordInvalid(selector string) {
	a.inv.InvalidReferences = append(a.inv.InvalidReferences, selector)
}

// RecordError adds a request error description.
func (a *Aggregator) RecordError(description string) {
	a.inv.RequestErrors = append(a.inv.RequestErrors, description)
}
