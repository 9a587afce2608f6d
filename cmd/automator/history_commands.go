package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sessionimport/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded automator runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := c.openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.outputFormat() == formatJSON {
					if runs == nil {
						runs = []history.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Protocol", "Started", "Duration", "Importers", "Errored", "Processed"},
					runRows(runs, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func runRows(runs []history.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := shortID(run.ID)
		if run.Cancelled {
			id += " (cancelled)"
		}
		rows = append(rows, []string{
			id,
			run.Protocol,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Duration().Round(time.Second).String(),
			humanize.Comma(int64(run.Counts.Total)),
			strconv.Itoa(run.Counts.Errored),
			strconv.Itoa(run.Counts.Processed),
		})
	}
	return rows
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the importers of one run (id prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results, err := store.RunResults(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if ctx.outputFormat() == formatJSON {
					return writeJSON(cmd, struct {
						Run     history.Run      `json:"run"`
						Results []history.Result `json:"results"`
					}{run, results})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunDetail(run, results, ctx.outputFormat(), shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func renderRunDetail(run history.Run, results []history.Result, format outputFormat, colorize bool) string {
	lines := renderSectionHeader("Run "+run.ID, colorize)
	lines = append(lines,
		fmt.Sprintf("Protocol:  %s", run.Protocol),
		fmt.Sprintf("Phases:    %s", strings.Join(run.Phases, ", ")),
		fmt.Sprintf("Started:   %s (%s)", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt)),
		fmt.Sprintf("Duration:  %s", run.Duration().Round(time.Millisecond)),
		fmt.Sprintf("Cancelled: %s", yesNo(run.Cancelled)),
	)
	if len(results) == 0 {
		return strings.Join(append(lines, "No Importers"), "\n")
	}
	if format == formatTable {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{r.Kind, r.Subject, r.UnitKey, yesNo(r.Initialized), r.TransferState, yesNo(r.Processed), resultError(r)})
		}
		lines = append(lines, renderTable([]string{"Kind", "Subject", "Unit", "Init", "Transfer", "Processed", "Error"}, rows, nil))
		return strings.Join(lines, "\n")
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		block := []string{
			fmt.Sprintf("%s:: %s", r.Kind, r.UnitKey),
			fmt.Sprintf("Initialized: %s, transfer: %s, transferred: %s, processed: %s",
				yesNo(r.Initialized), r.TransferState, yesNo(r.Transferred), yesNo(r.Processed)),
		}
		for _, entry := range []struct{ label, text string }{
			{"Initialization error", r.InitError},
			{"Checksum calculation error", r.CheckError},
			{"Transfer error", r.TransferError},
			{"Processing error", r.ProcessingError},
		} {
			if entry.text != "" {
				block = append(block, entry.label+": "+entry.text)
			}
		}
		blocks = append(blocks, strings.Join(block, "\n"))
	}
	return strings.Join(lines, "\n") + "\n" + strings.Join(blocks, "\n---------------\n")
}

func resultError(r history.Result) string {
	for _, text := range []string{r.InitError, r.CheckError, r.TransferError, r.ProcessingError} {
		if text != "" {
			return text
		}
	}
	return ""
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s runs\n", humanize.Comma(removed))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Age cutoff, e.g. 720h")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
