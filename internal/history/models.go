package history

import (
	"time"

	"sessionimport/internal/importer"
)

// Counts mirrors the automator summary of one run.
type Counts struct {
	Total         int `json:"total"`
	Uninitialized int `json:"uninitialized"`
	Errored       int `json:"errored"`
	ToTransfer    int `json:"to_transfer"`
	Transferred   int `json:"transferred"`
	Processed     int `json:"processed"`
}

// Run is one recorded automator invocation.
type Run struct {
	ID         string    `json:"id"`
	Protocol   string    `json:"protocol"`
	Phases     []string  `json:"phases"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Counts     Counts    `json:"counts"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result is the final state of one importer in a run.
type Result struct {
	Position        int               `json:"position"`
	Kind            string            `json:"kind"`
	Subject         string            `json:"subject"`
	UnitKey         string            `json:"unit_key"`
	Params          map[string]string `json:"params"`
	Initialized     bool              `json:"initialized"`
	TransferState   string            `json:"transfer_state"`
	Transferred     bool              `json:"transferred"`
	Processed       bool              `json:"processed"`
	InitError       string            `json:"init_error,omitempty"`
	CheckError      string            `json:"check_error,omitempty"`
	TransferError   string            `json:"transfer_error,omitempty"`
	ProcessingError string            `json:"processing_error,omitempty"`
}

// Errored reports whether any stage error was recorded.
func (r Result) Errored() bool {
	return r.InitError != "" || r.CheckError != "" || r.TransferError != "" || r.ProcessingError != ""
}

// ResultsFromImporters snapshots handles in the given order.
func ResultsFromImporters(imps []*importer.Importer) []Result {
	results := make([]Result, len(imps))
	for i, imp := range imps {
		errs := imp.Errors()
		results[i] = Result{
			Position:        i,
			Kind:            imp.Kind().String(),
			Subject:         imp.Subject(),
			UnitKey:         imp.Params().SessionKey(),
			Params:          imp.Params().Map(),
			Initialized:     imp.Initialized(),
			TransferState:   imp.TransferState().String(),
			Transferred:     imp.Transferred(),
			Processed:       imp.Processed(),
			InitError:       errorText(errs.Init),
			CheckError:      errorText(errs.Check),
			TransferError:   errorText(errs.Transfer),
			ProcessingError: errorText(errs.Processing),
		}
	}
	return results
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
