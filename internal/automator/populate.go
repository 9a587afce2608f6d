package automator

import (
	"context"
	"log/slog"

	"sessionimport/internal/importer"
	"sessionimport/internal/index"
	"sessionimport/internal/logging"
	"sessionimport/internal/services"
)

// PopulateImporters discards any previous population and runs the enabled
// phases in order: montages, existing event sessions, future sessions.
// Handles are not de-duplicated across phases.
func (a *Automator) PopulateImporters(ctx context.Context) error {
	a.importers = nil
	steps := []struct {
		phase Phase
		add   func(context.Context) error
	}{
		{PhaseMontage, a.AddMontageImporters},
		{PhaseEvents, a.AddExistingEventsImporters},
		{PhaseFuture, a.AddFutureEventsImporters},
	}
	for _, step := range steps {
		if !a.phaseEnabled(step.phase) {
			continue
		}
		before := len(a.importers)
		if err := step.add(ctx); err != nil {
			return err
		}
		a.logger.Info("population phase complete",
			logging.String("phase", string(step.phase)),
			logging.Int("retained", len(a.importers)-before),
		)
	}
	return nil
}

// AddMontageImporters considers every (subject, montage) pair in the index.
func (a *Automator) AddMontageImporters(ctx context.Context) error {
	for _, subject := range a.index.Subjects() {
		subjectView := a.index.Filtered(index.Subject(subject))
		for _, montage := range subjectView.Montages() {
			if err := ctx.Err(); err != nil {
				return err
			}
			params := importer.Params{
				Protocol: a.protocol,
				Subject:  subject,
				Montage:  montage,
				Code:     a.lookupString(subjectView, "subject_alias", subject, index.Montage(montage)),
			}
			imp, ok := a.newImporter(importer.Montage, params)
			if !ok {
				continue
			}
			needed := imp.Check(a.unitContext(ctx, imp))
			switch {
			case needed:
				a.retain(imp, "transfer_needed")
			case imp.Errored():
				a.retain(imp, "errored")
			case a.includeTransferred:
				a.retain(imp, "include_transferred")
			default:
				a.discard(imp, "up_to_date")
			}
		}
	}
	return nil
}

// AddExistingEventsImporters considers every (experiment, subject, session)
// in the index, falling back from building events to converting them.
func (a *Automator) AddExistingEventsImporters(ctx context.Context) error {
	for _, experiment := range a.index.Experiments() {
		experimentView := a.index.Filtered(index.Experiment(experiment))
		for _, subject := range experimentView.Subjects() {
			subjectView := experimentView.Filtered(index.Subject(subject))
			for _, session := range subjectView.Sessions() {
				if err := ctx.Err(); err != nil {
					return err
				}
				sessionView := subjectView.Filtered(index.Session(session))
				a.addExistingEvents(ctx, a.existingEventsParams(subject, experiment, session, sessionView))
			}
		}
	}
	return nil
}

func (a *Automator) existingEventsParams(subject, experiment string, session int, view index.Reader) importer.Params {
	montage := ""
	if montages := view.Montages(); len(montages) > 0 {
		montage = montages[0]
	}
	return importer.Params{
		Protocol:        a.protocol,
		Subject:         subject,
		Code:            a.lookupString(view, "subject_alias", subject),
		Montage:         montage,
		Experiment:      a.lookupStringOr(view, "original_experiment", experiment, subject),
		NewExperiment:   experiment,
		Session:         importer.Int(session),
		OriginalSession: importer.Int(a.lookupIntOr(view, "original_session", session, subject)),
		DoMath:          a.isMathTask(experiment),
		DoCompare:       true,
	}
}

func (a *Automator) addExistingEvents(ctx context.Context, params importer.Params) {
	build, ok := a.newImporter(importer.BuildEvents, params)
	if !ok {
		return
	}
	buildNeeded := build.Check(a.unitContext(ctx, build))
	if !build.Errored() {
		if buildNeeded {
			a.retain(build, "transfer_needed")
		} else {
			a.discard(build, "up_to_date")
		}
		return
	}

	convert, ok := a.newImporter(importer.ConvertEvents, params)
	if !ok {
		a.retain(build, "errored")
		return
	}
	convertNeeded := convert.Check(a.unitContext(ctx, convert))
	if !convertNeeded && !convert.Errored() {
		a.discard(convert, "up_to_date_after_build_failure")
		return
	}
	chosen := chooseEventsStrategy(build, convert)
	a.retain(chosen, "events_strategy_"+chosen.Kind().String())
}

// chooseEventsStrategy picks between the two event strategies once both were
// considered: building is preferred unless only conversion is error-free.
func chooseEventsStrategy(build, convert *importer.Importer) *importer.Importer {
	switch {
	case !build.Errored():
		return build
	case !convert.Errored():
		return convert
	default:
		return build
	}
}

// AddFutureEventsImporters proposes the next session of every configured
// experiment for every subject, on the subject's latest montage.
func (a *Automator) AddFutureEventsImporters(ctx context.Context) error {
	for _, subject := range a.index.Subjects() {
		subjectView := a.index.Filtered(index.Subject(subject))
		latest, ok := index.LatestMontage(subjectView)
		if !ok {
			a.logger.Debug("subject has no montage; skipping future sessions",
				logging.String(logging.FieldSubject, subject))
			continue
		}
		code := a.lookupString(subjectView, "subject_alias", subject, index.Montage(latest))
		for _, experiment := range a.experiments {
			if err := ctx.Err(); err != nil {
				return err
			}
			params := a.futureEventsParams(subjectView, subject, experiment, latest)
			params.Code = code
			imp, ok := a.newImporter(importer.BuildEvents, params)
			if !ok {
				continue
			}
			if imp.Check(a.unitContext(ctx, imp)) {
				a.retain(imp, "future_session_ready")
			} else {
				a.discard(imp, "no_future_data")
			}
		}
	}
	return nil
}

func (a *Automator) futureEventsParams(subjectView index.Reader, subject, experiment, montage string) importer.Params {
	view := subjectView.Filtered(index.Montage(montage), index.Experiment(experiment))
	session, originalSession, originalExperiment := 0, 0, experiment
	if sessions := view.Sessions(); len(sessions) > 0 {
		latest := sessions[len(sessions)-1]
		session = latest + 1
		originalSession = a.lookupIntOr(view, "original_session", latest, subject, index.Session(latest)) + 1
		originalExperiment = a.lookupStringOr(view, "original_experiment", experiment, subject, index.Session(latest))
	}
	return importer.Params{
		Protocol:        a.protocol,
		Subject:         subject,
		Montage:         montage,
		Experiment:      originalExperiment,
		NewExperiment:   experiment,
		Session:         importer.Int(session),
		OriginalSession: importer.Int(originalSession),
		DoMath:          a.isMathTask(experiment),
		DoCompare:       false,
	}
}

func (a *Automator) newImporter(kind importer.Kind, params importer.Params) (*importer.Importer, bool) {
	imp, err := importer.New(a.registry, kind, params)
	if err != nil {
		a.logger.Error("cannot build importer",
			logging.String(logging.FieldKind, kind.String()),
			logging.String(logging.FieldSubject, params.Subject),
			logging.String(logging.FieldEventType, "importer_build_failed"),
			logging.Error(err),
		)
		return nil, false
	}
	return imp, true
}

func (a *Automator) unitContext(ctx context.Context, imp *importer.Importer) context.Context {
	ctx = services.WithSubject(ctx, imp.Subject())
	return services.WithKind(ctx, imp.Kind().String())
}

func (a *Automator) retain(imp *importer.Importer, reason string) {
	a.importers = append(a.importers, imp)
	a.logDecision(imp, "retained", reason)
}

func (a *Automator) discard(imp *importer.Importer, reason string) {
	a.logDecision(imp, "discarded", reason)
}

func (a *Automator) logDecision(imp *importer.Importer, result, reason string) {
	attrs := append(logging.DecisionAttrs("importer_selection", result, reason),
		logging.String(logging.FieldKind, imp.Kind().String()),
		logging.String(logging.FieldSubject, imp.Subject()),
		logging.String("unit", imp.Params().SessionKey()),
		logging.String("transfer_state", imp.TransferState().String()),
	)
	if imp.Errored() {
		attrs = append(attrs, logging.Bool("errored", true))
	}
	a.logger.Debug("importer selection", logging.Args(attrs...)...)
}

// lookupString returns field from view, or "" with a warning when absent.
func (a *Automator) lookupString(view index.Reader, field, subject string, criteria ...index.Criterion) string {
	value, err := view.Value(field, criteria...)
	if err != nil {
		logging.WarnWithContext(a.logger, "index value missing", "index_value_missing",
			logging.String("field", field),
			logging.String(logging.FieldSubject, subject),
			logging.String(logging.FieldImpact, "importer built without "+field),
			logging.String(logging.FieldErrorHint, "add "+field+" to the index entry"),
			logging.Error(err),
		)
		return ""
	}
	return value
}

// lookupStringOr returns field from view, or fallback when absent. Remap
// fields are optional, so absence is not worth a warning.
func (a *Automator) lookupStringOr(view index.Reader, field, fallback, subject string, criteria ...index.Criterion) string {
	value, err := view.Value(field, criteria...)
	if err != nil {
		a.logLookupFallback(field, subject, err)
		return fallback
	}
	return value
}

func (a *Automator) lookupIntOr(view index.Reader, field string, fallback int, subject string, criteria ...index.Criterion) int {
	value, err := index.IntValue(view, field, criteria...)
	if err != nil {
		a.logLookupFallback(field, subject, err)
		return fallback
	}
	return value
}

func (a *Automator) logLookupFallback(field, subject string, err error) {
	level := slog.LevelDebug
	if !index.IsNotFound(err) {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, "index value defaulted",
		logging.String("field", field),
		logging.String(logging.FieldSubject, subject),
		logging.Error(err),
	)
}
