package model

import (
	"maps"
	"slices"
	"time"
)

// RunSummary condenses one report into counts for history listings.
type RunSummary struct {
	StartedAt       time.Time `json:"started_at"`
	Directories     int       `json:"directories"`
	TextFiles       int       `json:"text_files"`
	BinaryFiles     int       `json:"binary_files"`
	ExternalServers int       `json:"external_servers"`
	Errors          int       `json:"errors"`
	Interrupted     bool      `json:"interrupted"`
}

// Summarize returns the counts of r.
func Summarize(r *CrawlReport) RunSummary {
	s := RunSummary{
		StartedAt:   r.StartedAt,
		Interrupted: r.Interrupted,
	}
	if inv := r.Inventory; inv != nil {
		s.Directories = inv.Directories
		s.TextFiles = len(inv.TextFiles)
		s.BinaryFiles = len(inv.BinaryFiles)
		s.ExternalServers = len(inv.ExternalServers)
		s.Errors = len(inv.UniqueRequestErrors())
	}
	return s
}

// FileChange is a file present in both runs whose size or digest differs.
type FileChange struct {
	Selector string `json:"selector"`
	OldSize  int64  `json:"old_size"`
	NewSize  int64  `json:"new_size"`
}

// ServerChange is an external server whose status differs between runs.
// Old is empty for a newly linked server and New is empty for one that is
// no longer linked.
type ServerChange struct {
	ServerKey
	Old ServerStatus `json:"old"`
	New ServerStatus `json:"new"`
}

// ReportDiff describes what changed on a server between two crawls.
type ReportDiff struct {
	Target   string     `json:"target"`
	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	AddedFiles     []string       `json:"added_files,omitempty"`
	RemovedFiles   []string       `json:"removed_files,omitempty"`
	ChangedFiles   []FileChange   `json:"changed_files,omitempty"`
	ServerChanges  []ServerChange `json:"server_changes,omitempty"`
	NewErrors      []string       `json:"new_errors,omitempty"`
	ResolvedErrors []string       `json:"resolved_errors,omitempty"`
}

// HasChanges reports whether anything other than timing differs.
func (d *ReportDiff) HasChanges() bool {
	return len(d.AddedFiles) > 0 || len(d.RemovedFiles) > 0 || len(d.ChangedFiles) > 0 ||
		len(d.ServerChanges) > 0 || len(d.NewErrors) > 0 || len(d.ResolvedErrors) > 0
}

// CompareReports diffs two runs against the same server. Files are matched
// by selector across both classes.
func CompareReports(previous, current *CrawlReport) *ReportDiff {
	d := &ReportDiff{
		Target:   current.Target(),
		Previous: Summarize(previous),
		Current:  Summarize(current),
	}

	oldFiles := filesBySelector(previous.Inventory)
	newFiles := filesBySelector(current.Inventory)

	for _, sel := range sortedKeys(newFiles) {
		old, ok := oldFiles[sel]
		if !ok {
			d.AddedFiles = append(d.AddedFiles, sel)
			continue
		}
		cur := newFiles[sel]
		if old.Size != cur.Size || old.SHA256 != cur.SHA256 {
			d.ChangedFiles = append(d.ChangedFiles, FileChange{Selector: sel, OldSize: old.Size, NewSize: cur.Size})
		}
	}
	for _, sel := range sortedKeys(oldFiles) {
		if _, ok := newFiles[sel]; !ok {
			d.RemovedFiles = append(d.RemovedFiles, sel)
		}
	}

	oldServers := serverStatuses(previous.Inventory)
	newServers := serverStatuses(current.Inventory)
	keys := slices.Collect(maps.Keys(oldServers))
	for k := range newServers {
		if _, ok := oldServers[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, ServerKey.Compare)
	for _, k := range keys {
		if oldServers[k] != newServers[k] {
			d.ServerChanges = append(d.ServerChanges, ServerChange{ServerKey: k, Old: oldServers[k], New: newServers[k]})
		}
	}

	d.NewErrors, d.ResolvedErrors = stringSetDiff(errorsOf(previous.Inventory), errorsOf(current.Inventory))
	return d
}

func filesBySelector(inv *Inventory) map[string]FileRecord {
	files := make(map[string]FileRecord)
	if inv == nil {
		return files
	}
	for _, f := range inv.TextFiles {
		files[f.Selector] = f
	}
	for _, f := range inv.BinaryFiles {
		files[f.Selector] = f
	}
	return files
}

func serverStatuses(inv *Inventory) map[ServerKey]ServerStatus {
	statuses := make(map[ServerKey]ServerStatus)
	if inv == nil {
		return statuses
	}
	for _, s := range inv.ExternalServers {
		statuses[s.ServerKey] = s.Status
	}
	return statuses
}

func errorsOf(inv *Inventory) []string {
	if inv == nil {
		return nil
	}
	return inv.UniqueRequestErrors()
}

// stringSetDiff returns the members only in b and the members only in a.
// Both inputs must be sorted and unique.
func stringSetDiff(a, b []string) (added, removed []string) {
	for _, s := range b {
		if _, found := slices.BinarySearch(a, s); !found {
			added = append(added, s)
		}
	}
	for _, s := range a {
		if _, found := slices.BinarySearch(b, s); !found {
			removed = append(removed, s)
		}
	}
	return added, removed
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
