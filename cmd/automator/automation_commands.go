package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sessionimport/internal/automator"
	"sessionimport/internal/history"
	"sessionimport/internal/logging"
	"sessionimport/internal/runlock"
	"sessionimport/internal/services"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var phaseFlags []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the importers a run would execute, without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			phases, err := parsePhases(phaseFlags)
			if err != nil {
				return err
			}
			a, err := ctx.newAutomator(cfg, phases)
			if err != nil {
				return err
			}
			if err := a.PopulateImporters(cmd.Context()); err != nil {
				return fmt.Errorf("populate importers: %w", err)
			}
			return writeReport(cmd.OutOrStdout(), ctx.outputFormat(), "", a)
		},
	}

	cmd.Flags().StringSliceVar(&phaseFlags, "phase", nil, "Limit population to phases: montage, events, future (repeatable)")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		phaseFlags  []string
		noHistory   bool
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover pending imports and run them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			phases, err := parsePhases(phaseFlags)
			if err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			a, err := ctx.newAutomator(cfg, phases)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			runCtx := services.WithRunID(cmd.Context(), runID)
			logger := logging.WithContext(runCtx, ctx.loggerFor("cli"))
			started := time.Now()

			if err := a.PopulateImporters(runCtx); err != nil {
				return fmt.Errorf("populate importers: %w", err)
			}
			runErr := a.RunAllImports(runCtx)
			finished := time.Now()

			if !noHistory {
				if err := recordRun(context.WithoutCancel(runCtx), ctx, a, history.Run{
					ID:         runID,
					Protocol:   a.Protocol(),
					Phases:     phaseNames(phases),
					StartedAt:  started,
					FinishedAt: finished,
					Cancelled:  runErr != nil,
				}); err != nil {
					logging.WarnWithContext(logger, "run history not recorded", "history_write_failed",
						logging.String(logging.FieldImpact, "run will be missing from `automator history`"),
						logging.String(logging.FieldErrorHint, "check paths.history_path is writable"),
						logging.Error(err),
					)
				}
			}

			if err := writeReport(cmd.OutOrStdout(), ctx.outputFormat(), runID, a); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if failed := a.Summary().Errored; failOnError && failed > 0 {
				return fmt.Errorf("%d importers reported errors", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&phaseFlags, "phase", nil, "Limit population to phases: montage, events, future (repeatable)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any importer reports an error")
	return cmd
}

func recordRun(runCtx context.Context, ctx *commandContext, a *automator.Automator, run history.Run) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ctx.openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary := a.Summary()
	run.Counts = history.Counts(summary)
	_, err = store.RecordRun(runCtx, run, history.ResultsFromImporters(a.Importers()))
	return err
}

func phaseNames(phases []automator.Phase) []string {
	if len(phases) == 0 {
		phases = automator.Phases()
	}
	names := make([]string, len(phases))
	for i, phase := range phases {
		names[i] = string(phase)
	}
	return names
}
