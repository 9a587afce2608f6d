package main

import (
	"fmt"
	"io"
	"strings"

	"sessionimport/internal/automator"
	"sessionimport/internal/history"
	"sessionimport/internal/importer"
)

type outputFormat string

const (
	formatText  outputFormat = "text"
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
)

func parseOutputFormat(value string) (outputFormat, error) {
	switch format := outputFormat(strings.ToLower(strings.TrimSpace(value))); format {
	case "", formatText:
		return formatText, nil
	case formatTable, formatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported --format %q (want text, table or json)", value)
	}
}

type reportPayload struct {
	RunID     string            `json:"run_id,omitempty"`
	Protocol  string            `json:"protocol"`
	Summary   automator.Summary `json:"summary"`
	Importers []history.Result  `json:"importers"`
}

func importerRows(imps []*importer.Importer) [][]string {
	rows := make([][]string, 0, len(imps))
	for _, imp := range imps {
		processed := imp.ProcessingStatus()
		if processed == "" {
			processed = "-"
		}
		rows = append(rows, []string{
			imp.Label(),
			imp.Subject(),
			unitLabel(imp.Params()),
			yesNo(imp.Initialized()),
			imp.TransferStatus(),
			processed,
			firstError(imp.Errors()),
		})
	}
	return rows
}

func unitLabel(p importer.Params) string {
	switch {
	case p.Session != nil:
		experiment := p.NewExperiment
		if experiment == "" {
			experiment = p.Experiment
		}
		return fmt.Sprintf("%s/%d", experiment, *p.Session)
	case p.Montage != "":
		return "montage " + p.Montage
	default:
		return "-"
	}
}

func firstError(errs importer.Errors) string {
	list := errs.List()
	if len(list) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %v", list[0].Stage, list[0].Err)
}

func summaryLines(summary automator.Summary, colorize bool) []string {
	kind := statusOK
	switch {
	case summary.Errored > 0:
		kind = statusError
	case summary.Total > 0 && summary.Processed < summary.Total:
		kind = statusWarn
	case summary.Total == 0:
		kind = statusInfo
	}
	message := fmt.Sprintf("%d importers, %d errored, %d to transfer, %d processed",
		summary.Total, summary.Errored, summary.ToTransfer, summary.Processed)
	return []string{renderStatusLine("Summary", kind, message, colorize)}
}

// writeReport renders the automator's retained handles. The text format is
// exactly Describe().
func writeReport(w io.Writer, format outputFormat, runID string, a *automator.Automator) error {
	switch format {
	case formatJSON:
		return encodeJSON(w, reportPayload{
			RunID:     runID,
			Protocol:  a.Protocol(),
			Summary:   a.Summary(),
			Importers: history.ResultsFromImporters(a.SortedImporters()),
		})
	case formatTable:
		colorize := shouldColorize(w)
		lines := renderSectionHeader("Importers: "+a.Protocol(), colorize)
		if sorted := a.SortedImporters(); len(sorted) > 0 {
			lines = append(lines, renderTable(
				[]string{"Importer", "Subject", "Unit", "Init", "Transfer", "Processed", "Error"},
				importerRows(sorted),
				nil,
			))
		} else {
			lines = append(lines, "No Importers")
		}
		lines = append(lines, summaryLines(a.Summary(), colorize)...)
		_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
		return err
	default:
		_, err := fmt.Fprintln(w, a.Describe())
		return err
	}
}
