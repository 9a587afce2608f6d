package automator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sessionimport/internal/importer"
	"sessionimport/internal/logging"
)

// RunAllImports runs every retained handle. Handles fail independently; the
// returned error is non-nil only when ctx ended before every handle was
// scheduled. Handles sharing a destination run one after another.
func (a *Automator) RunAllImports(ctx context.Context) error {
	groups := groupByDestination(a.importers)
	a.logger.Info("running imports",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("importers", len(a.importers)),
		logging.Int("workers", a.workers),
	)

	var g errgroup.Group
	g.SetLimit(a.workers)
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, imp := range group {
				if ctx.Err() != nil {
					return nil
				}
				a.runOne(ctx, imp)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := a.Summary()
	a.logger.Info("imports finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Int("processed", summary.Processed),
		logging.Int("errored", summary.Errored),
	)
	return ctx.Err()
}

func (a *Automator) runOne(ctx context.Context, imp *importer.Importer) {
	if !imp.Initialized() {
		return
	}
	unitCtx := a.unitContext(ctx, imp)
	logger := logging.WithContext(unitCtx, a.logger)
	started := time.Now()
	imp.Run(unitCtx)
	errs := imp.Errors()
	switch {
	case errs.Transfer != nil:
		logging.WarnWithContext(logger, "importer transfer rejected", "importer_transfer_failed",
			logging.String("unit", imp.Params().SessionKey()),
			logging.String(logging.FieldImpact, "unit left unimported"),
			logging.String(logging.FieldErrorHint, "inspect the source files for this unit"),
			logging.Error(errs.Transfer),
		)
	case errs.Processing != nil:
		logger.Error("importer processing failed",
			logging.String(logging.FieldEventType, "importer_run_failed"),
			logging.String("unit", imp.Params().SessionKey()),
			logging.Error(errs.Processing),
		)
	default:
		logger.Info("importer finished",
			logging.String(logging.FieldEventType, "importer_run_succeeded"),
			logging.String("unit", imp.Params().SessionKey()),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
}

// groupByDestination partitions handles by destination, keeping first-seen
// order across groups and insertion order within each.
func groupByDestination(importers []*importer.Importer) [][]*importer.Importer {
	positions := make(map[string]int, len(importers))
	var groups [][]*importer.Importer
	for _, imp := range importers {
		key := destinationKey(imp)
		pos, ok := positions[key]
		if !ok {
			pos = len(groups)
			positions[key] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], imp)
	}
	return groups
}

func destinationKey(imp *importer.Importer) string {
	key := imp.Params().SessionKey()
	switch imp.Kind() {
	case importer.BuildEvents, importer.ConvertEvents:
		return key + "#events"
	case importer.BuildEphys, importer.ConvertEphys:
		return key + "#ephys"
	default:
		return key + "#" + imp.Kind().String()
	}
}
