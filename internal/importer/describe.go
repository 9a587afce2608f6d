package importer

import (
	"cmp"
	"fmt"
	"strings"
)

var stageErrorLabels = map[Stage]string{
	StageInit:       "Initialization error",
	StageCheck:      "Checksum calculation error",
	StageTransfer:   "Transfer error",
	StageProcessing: "Processing error",
}

// TransferStatus summarizes transfer necessity and outcome.
func (i *Importer) TransferStatus() string {
	switch {
	case i.shouldTransfer == TransferNeeded && i.errs.Transfer != nil:
		return "necessary, failed"
	case i.shouldTransfer == TransferNeeded && !i.transferred:
		return "necessary, incomplete"
	case i.shouldTransfer == TransferNeeded:
		return "complete"
	case i.errs.Check != nil:
		return "failed to compute checksum"
	case i.shouldTransfer == TransferUnknown && i.initialized:
		if i.transferred {
			return "complete"
		}
		return "not checked"
	default:
		return "not necessary"
	}
}

// ProcessingStatus summarizes the processing outcome; empty until transferred.
func (i *Importer) ProcessingStatus() string {
	switch {
	case !i.transferred:
		return ""
	case i.errs.Processing != nil:
		return "necessary, failed"
	case !i.processed:
		return "necessary, incomplete"
	default:
		return "complete"
	}
}

// Describe renders a multi-line status report. It reads memoized state only.
func (i *Importer) Describe() string {
	pairs := i.params.Pairs()
	fields := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		fields = append(fields, pair.Key+": "+pair.Value)
	}

	lines := []string{i.Label() + ":: " + strings.Join(fields, ", ")}
	if i.initialized {
		lines = append(lines, "Initialization status: success")
	} else {
		lines = append(lines, "Initialization status: failure")
	}
	lines = append(lines, "Transfer status: "+i.TransferStatus())
	if status := i.ProcessingStatus(); status != "" {
		lines = append(lines, "Processed status: "+status)
	}
	for _, entry := range i.errs.List() {
		lines = append(lines, fmt.Sprintf("%s: %v", stageErrorLabels[entry.Stage], entry.Err))
	}
	return strings.Join(lines, "\n")
}

// Compare orders importers by (initialized, errored, transfer state,
// transferred, processed, subject) ascending, false before true. Handles that
// failed to initialize lead the report.
func Compare(a, b *Importer) int {
	return cmp.Or(
		compareBool(a.initialized, b.initialized),
		compareBool(a.Errored(), b.Errored()),
		cmp.Compare(a.shouldTransfer, b.shouldTransfer),
		compareBool(a.transferred, b.transferred),
		compareBool(a.processed, b.processed),
		cmp.Compare(a.params.Subject, b.params.Subject),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
