package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"

	"sessionimport/internal/importer"
	"sessionimport/internal/index"
)

// Layout maps work units onto the repository tree rooted at Root.
type Layout struct {
	Root string
}

// SubjectDir returns protocols/<p>/subjects/<s>.
func (l Layout) SubjectDir(protocol, subject string) string {
	return filepath.Join(l.Root, "protocols", protocol, "subjects", subject)
}

// SessionDir returns the directory for a session under its repository experiment name.
func (l Layout) SessionDir(p importer.Params) string {
	session := 0
	if p.Session != nil {
		session = *p.Session
	}
	return filepath.Join(l.SubjectDir(p.Protocol, p.Subject),
		"experiments", repositoryExperiment(p),
		"sessions", strconv.Itoa(session))
}

// MontageDir returns localizations/<l>/montages/<m> for a "l.m" montage version.
func (l Layout) MontageDir(protocol, subject, montage string) (string, error) {
	localization, number, ok := index.ParseMontage(montage)
	if !ok {
		return "", fmt.Errorf("malformed montage %q", montage)
	}
	return filepath.Join(l.SubjectDir(protocol, subject),
		"localizations", strconv.Itoa(localization),
		"montages", strconv.Itoa(number)), nil
}

// Destination returns the directory a unit of the given kind writes to.
func (l Layout) Destination(kind importer.Kind, p importer.Params) (string, error) {
	switch kind {
	case importer.Montage:
		dir, err := l.MontageDir(p.Protocol, p.Subject, p.Montage)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "neuroradiology"), nil
	case importer.BuildEvents, importer.ConvertEvents:
		return filepath.Join(l.SessionDir(p), "behavioral"), nil
	case importer.BuildEphys, importer.ConvertEphys:
		return filepath.Join(l.SessionDir(p), "ephys"), nil
	default:
		return "", fmt.Errorf("%w: %s", importer.ErrUnknownKind, kind)
	}
}

func repositoryExperiment(p importer.Params) string {
	if p.NewExperiment != "" {
		return p.NewExperiment
	}
	return p.Experiment
}
