package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sessionimport/internal/index"
)

type indexSummary struct {
	Path          string `json:"path"`
	Protocol      string `json:"protocol"`
	Records       int    `json:"records"`
	Subjects      int    `json:"subjects"`
	Experiments   int    `json:"experiments"`
	Montages      int    `json:"montages"`
	LatestMontage string `json:"latest_montage,omitempty"`
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Summarize the protocol index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ix, path, err := ctx.loadIndex(cfg)
			if err != nil {
				return err
			}
			view := ix.Filtered(index.Protocol(cfg.Automation.Protocol))
			latest, _ := index.LatestMontage(view)
			summary := indexSummary{
				Path:          path,
				Protocol:      cfg.Automation.Protocol,
				Records:       ix.Len(),
				Subjects:      len(view.Subjects()),
				Experiments:   len(view.Experiments()),
				Montages:      len(view.Montages()),
				LatestMontage: latest,
			}
			if ctx.outputFormat() == formatJSON {
				return writeJSON(cmd, summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Index", "Protocol", "Records", "Subjects", "Experiments", "Montages"},
				[][]string{{
					summary.Path,
					summary.Protocol,
					strconv.Itoa(summary.Records),
					strconv.Itoa(summary.Subjects),
					strconv.Itoa(summary.Experiments),
					strconv.Itoa(summary.Montages),
				}},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}
