package automator

import (
	"slices"
	"strings"

	"sessionimport/internal/importer"
)

const (
	reportDelimiter = "\n---------------\n"
	emptyReport     = "No Importers"
)

// Summary counts retained handles by outcome.
type Summary struct {
	Total         int `json:"total"`
	Uninitialized int `json:"uninitialized"`
	Errored       int `json:"errored"`
	ToTransfer    int `json:"to_transfer"`
	Transferred   int `json:"transferred"`
	Processed     int `json:"processed"`
}

// Summary counts the retained handles.
func (a *Automator) Summary() Summary {
	var s Summary
	for _, imp := range a.importers {
		s.Total++
		if !imp.Initialized() {
			s.Uninitialized++
		}
		if imp.Errored() {
			s.Errored++
		}
		if imp.TransferState() == importer.TransferNeeded {
			s.ToTransfer++
		}
		if imp.Transferred() {
			s.Transferred++
		}
		if imp.Processed() {
			s.Processed++
		}
	}
	return s
}

// SortedImporters returns the retained handles stably sorted by
// (initialized, errored, transfer state, transferred, processed, subject).
func (a *Automator) SortedImporters() []*importer.Importer {
	sorted := slices.Clone(a.importers)
	slices.SortStableFunc(sorted, importer.Compare)
	return sorted
}

// Describe renders every retained handle in sorted order, or "No Importers".
func (a *Automator) Describe() string {
	if len(a.importers) == 0 {
		return emptyReport
	}
	sorted := a.SortedImporters()
	descriptions := make([]string, len(sorted))
	for i, imp := range sorted {
		descriptions[i] = imp.Describe()
	}
	return strings.Join(descriptions, reportDelimiter)
}
