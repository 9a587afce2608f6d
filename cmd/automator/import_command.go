package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sessionimport/internal/config"
	"sessionimport/internal/importer"
	"sessionimport/internal/index"
	"sessionimport/internal/logging"
	"sessionimport/internal/pipeline"
	"sessionimport/internal/runlock"
)

type importFlags struct {
	kind            string
	subject         string
	code            string
	montage         string
	experiment      string
	newExperiment   string
	session         int
	originalSession int
	doMath          bool
	doCompare       bool
	extra           map[string]string
	force           bool
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	flags := importFlags{session: -1, originalSession: -1}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Check and run a single importer of any kind",
		Example: `  automator import --kind montage --subject R1001P --montage 0.0
  automator import --kind build_events --subject R1001P --experiment FR1 --session 2 --math
  automator import --kind convert_ephys --subject R1001P --experiment FR1 --session 0 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := importer.ParseKind(flags.kind)
			if err != nil {
				return err
			}
			params := flags.params(cfg.Automation.Protocol)
			if params.Code == "" {
				params.Code = ctx.lookupCode(cfg, params)
			}

			reg, err := ctx.registry(cfg)
			if err != nil {
				return err
			}
			imp, err := importer.New(reg, kind, params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !imp.Initialized() {
				fmt.Fprintln(out, imp.Describe())
				return fmt.Errorf("importer failed to initialize: %w", imp.Errors().Init)
			}

			needed := imp.Check(cmd.Context())
			if needed || flags.force {
				lock, err := runlock.Acquire(cfg.LockPath())
				if err != nil {
					return err
				}
				imp.Run(cmd.Context())
				_ = lock.Release()
			}

			fmt.Fprintln(out, imp.Describe())
			if imp.Processed() {
				ctx.printManifest(cfg, out, kind, params)
			}
			if errs := imp.Errors(); errs.Any() {
				list := errs.List()
				return fmt.Errorf("importer reported %d error(s): %w", len(list), errors.Join(stageErrors(list)...))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.kind, "kind", "k", "", "Importer kind: montage, build_events, build_ephys, convert_events, convert_ephys")
	cmd.Flags().StringVarP(&flags.subject, "subject", "s", "", "Subject identifier")
	cmd.Flags().StringVar(&flags.code, "code", "", "Subject alias used in source paths (defaults to the index subject_alias)")
	cmd.Flags().StringVar(&flags.montage, "montage", "", "Montage version <localization>.<montage>")
	cmd.Flags().StringVarP(&flags.experiment, "experiment", "e", "", "Experiment name in the source data")
	cmd.Flags().StringVar(&flags.newExperiment, "new-experiment", "", "Experiment name in the repository (defaults to --experiment)")
	cmd.Flags().IntVar(&flags.session, "session", -1, "Session number in the repository")
	cmd.Flags().IntVar(&flags.originalSession, "original-session", -1, "Session number in the source data (defaults to --session)")
	cmd.Flags().BoolVar(&flags.doMath, "math", false, "Process math distractor events")
	cmd.Flags().BoolVar(&flags.doCompare, "compare", false, "Compare rebuilt events with existing ones")
	cmd.Flags().StringToStringVar(&flags.extra, "param", nil, "Additional key=value parameters")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Run even when the checksum reports no change")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (f importFlags) params(protocol string) importer.Params {
	p := importer.Params{
		Protocol:      protocol,
		Subject:       strings.TrimSpace(f.subject),
		Code:          strings.TrimSpace(f.code),
		Montage:       strings.TrimSpace(f.montage),
		Experiment:    strings.TrimSpace(f.experiment),
		NewExperiment: strings.TrimSpace(f.newExperiment),
		DoMath:        f.doMath,
		DoCompare:     f.doCompare,
		Extra:         f.extra,
	}
	if p.Experiment != "" && p.NewExperiment == "" {
		p.NewExperiment = p.Experiment
	}
	if f.session >= 0 {
		p.Session = importer.Int(f.session)
		p.OriginalSession = importer.Int(f.session)
	}
	if f.originalSession >= 0 {
		p.OriginalSession = importer.Int(f.originalSession)
	}
	return p
}

// lookupCode resolves the subject alias from the index; failures leave it empty.
func (c *commandContext) lookupCode(cfg *config.Config, p importer.Params) string {
	ix, path, err := c.loadIndex(cfg)
	if err != nil {
		c.loggerFor("cli").Debug("index unavailable for subject alias lookup",
			logging.String("index", path), logging.Error(err))
		return ""
	}
	criteria := []index.Criterion{index.Subject(p.Subject)}
	if p.Montage != "" {
		criteria = append(criteria, index.Montage(p.Montage))
	}
	code, err := ix.Value("subject_alias", criteria...)
	if err != nil {
		return ""
	}
	return code
}

// printManifest reports the manifest a successful run left in the repository.
func (c *commandContext) printManifest(cfg *config.Config, out io.Writer, kind importer.Kind, p importer.Params) {
	logger := c.loggerFor("cli")
	dest, err := pipeline.Layout{Root: cfg.Paths.DBRoot}.Destination(kind, p)
	if err != nil {
		logger.Debug("manifest destination unavailable", logging.Error(err))
		return
	}
	manifest, ok, err := pipeline.LoadManifest(c.fs, dest)
	if err != nil || !ok {
		logger.Warn("processed unit has no readable manifest",
			logging.String("destination", dest),
			logging.Error(err),
		)
		return
	}
	fmt.Fprintf(out, "Manifest: %s (%d source files, checksum %s)\n", dest, len(manifest.Files), shortChecksum(manifest.Checksum))
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func stageErrors(list []importer.StageError) []error {
	errs := make([]error, len(list))
	for i, entry := range list {
		errs[i] = fmt.Errorf("%s: %w", entry.Stage, entry.Err)
	}
	return errs
}
