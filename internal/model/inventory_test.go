package model

import (
	"slices"
	"testing"
	"time"
)

func TestNewInventory(t *testing.T) {
	t.Parallel()

	inv := NewInventory()
	if inv.Directories != 1 {
		t.Errorf("Directories = %d, expected 1 for the root", inv.Directories)
	}
	if inv.SmallestText != nil || inv.LargestBinary != nil {
		t.Error("expected extremes to be unset")
	}
}

func TestInventorySorting(t *testing.T) {
	t.Parallel()

	inv := &Inventory{
		TextFiles: []FileRecord{
			{Selector: "/b.txt", Size: 3},
			{Selector: "/a.txt", Size: 9},
			{Selector: "/a.txt", Size: 1},
		},
		InvalidReferences: []string{"z", "a", "z"},
		RequestErrors:     []string{"/x (fetch failed)", "/a (fetch failed)", "/x (fetch failed)"},
		ExternalServers: []ExternalServer{
			{ServerKey: ServerKey{Host: "b.org", Port: 70}, Status: StatusUp},
			{ServerKey: ServerKey{Host: "a.org", Port: 7070}, Status: StatusDown},
			{ServerKey: ServerKey{Host: "a.org", Port: 70}, Status: StatusUp},
		},
	}

	gotFiles := inv.SortedTextFiles()
	wantFiles := []FileRecord{
		{Selector: "/a.txt", Size: 1},
		{Selector: "/a.txt", Size: 9},
		{Selector: "/b.txt", Size: 3},
	}
	if !slices.EqualFunc(gotFiles, wantFiles, func(a, b FileRecord) bool {
		return a.Selector == b.Selector && a.Size == b.Size
	}) {
		t.Errorf("SortedTextFiles() = %+v", gotFiles)
	}
	if inv.TextFiles[0].Selector != "/b.txt" {
		t.Error("sorting must not reorder the discovery-order slice")
	}

	if got := inv.UniqueInvalidReferences(); !slices.Equal(got, []string{"a", "z"}) {
		t.Errorf("UniqueInvalidReferences() = %v", got)
	}
	if got := inv.UniqueRequestErrors(); !slices.Equal(got, []string{"/a (fetch failed)", "/x (fetch failed)"}) {
		t.Errorf("UniqueRequestErrors() = %v", got)
	}

	servers := inv.SortedExternalServers()
	var order []string
	for _, s := range servers {
		order = append(order, s.String())
	}
	if !slices.Equal(order, []string{"a.org:70", "a.org:7070", "b.org:70"}) {
		t.Errorf("SortedExternalServers() order = %v", order)
	}
}

func TestServerKey(t *testing.T) {
	t.Parallel()

	if NewServerKey("Example.ORG", 70) != NewServerKey("example.org", 70) {
		t.Error("expected keys to ignore host case")
	}
	if got := NewServerKey("::1", 70).String(); got != "[::1]:70" {
		t.Errorf("String() = %q", got)
	}
	if NewServerKey("a", 71).Compare(NewServerKey("b", 70)) >= 0 {
		t.Error("expected host to sort before port")
	}
}

func TestCrawlReport(t *testing.T) {
	t.Parallel()

	r := NewCrawlReport("example.org", 7070)
	if r.Target() != "example.org:7070" {
		t.Errorf("Target() = %q", r.Target())
	}
	if r.Inventory == nil || r.Inventory.Directories != 1 {
		t.Error("expected a fresh inventory")
	}
	if r.Duration() != 0 {
		t.Error("expected zero duration before finishing")
	}

	r.FinishedAt = r.StartedAt.Add(3 * time.Second)
	if r.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
