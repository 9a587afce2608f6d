package pipeline

import (
	"context"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"sessionimport/internal/importer"
	"sessionimport/internal/index"
)

// ExpandTemplate substitutes {placeholder} tokens in a source template with
// values from p. Unknown tokens are left untouched.
func ExpandTemplate(template string, p importer.Params) string {
	return placeholderReplacer(p).Replace(template)
}

func placeholderReplacer(p importer.Params) *strings.Replacer {
	code := p.Code
	if code == "" {
		code = p.Subject
	}
	session, originalSession := "", ""
	if p.Session != nil {
		session = strconv.Itoa(*p.Session)
		originalSession = session
	}
	if p.OriginalSession != nil {
		originalSession = strconv.Itoa(*p.OriginalSession)
	}
	localization, montageNum := "", ""
	if loc, num, ok := index.ParseMontage(p.Montage); ok {
		localization, montageNum = strconv.Itoa(loc), strconv.Itoa(num)
	}
	return strings.NewReplacer(
		"{protocol}", p.Protocol,
		"{subject}", p.Subject,
		"{code}", code,
		"{experiment}", p.Experiment,
		"{new_experiment}", repositoryExperiment(p),
		"{session}", session,
		"{original_session}", originalSession,
		"{montage}", p.Montage,
		"{localization}", localization,
		"{montage_num}", montageNum,
	)
}

// resolveSources expands every template under root and returns the matched
// regular files, sorted and de-duplicated.
func resolveSources(ctx context.Context, fsys afero.Fs, root string, templates []string, p importer.Params) ([]string, error) {
	var matches []string
	for _, template := range templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pattern := filepath.Join(root, ExpandTemplate(template, p))
		found, err := afero.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range found {
			info, err := fsys.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			matches = append(matches, path)
		}
	}
	slices.Sort(matches)
	return slices.Compact(matches), nil
}
