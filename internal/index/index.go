package index

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Record is one session leaf with its position in the hierarchy.
type Record struct {
	Protocol   string
	Subject    string
	Experiment string
	Session    int
	Montage    string
	Fields     map[string]string
}

func (r Record) levelValue(l level) string {
	switch l {
	case levelProtocol:
		return r.Protocol
	case levelSubject:
		return r.Subject
	case levelExperiment:
		return r.Experiment
	case levelSession:
		return strconv.Itoa(r.Session)
	case levelMontage:
		return r.Montage
	default:
		return ""
	}
}

// Index is an immutable in-memory Reader.
type Index struct {
	records []Record
}

// New builds an index over records. Records are copied and kept in hierarchy order.
func New(records []Record) *Index {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return cmp.Or(
			cmp.Compare(a.Protocol, b.Protocol),
			cmp.Compare(a.Subject, b.Subject),
			cmp.Compare(a.Experiment, b.Experiment),
			cmp.Compare(a.Session, b.Session),
		)
	})
	return &Index{records: sorted}
}

// Len returns the number of session records in view.
func (ix *Index) Len() int { return len(ix.records) }

func (ix *Index) Protocols() []string   { return ix.distinct(levelProtocol) }
func (ix *Index) Subjects() []string    { return ix.distinct(levelSubject) }
func (ix *Index) Experiments() []string { return ix.distinct(levelExperiment) }

// Sessions returns session numbers in ascending order.
func (ix *Index) Sessions() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, rec := range ix.records {
		if _, ok := seen[rec.Session]; ok {
			continue
		}
		seen[rec.Session] = struct{}{}
		out = append(out, rec.Session)
	}
	slices.Sort(out)
	return out
}

// Montages returns montage versions ordered by (localization, montage) number.
func (ix *Index) Montages() []string {
	out := ix.distinct(levelMontage)
	slices.SortFunc(out, CompareMontages)
	return out
}

func (ix *Index) distinct(l level) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range ix.records {
		value := rec.levelValue(l)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	slices.Sort(out)
	return out
}

// Filtered returns the sub-view of records matching every criterion.
func (ix *Index) Filtered(criteria ...Criterion) Reader {
	return &Index{records: ix.match(criteria)}
}

func (ix *Index) match(criteria []Criterion) []Record {
	if len(criteria) == 0 {
		return ix.records
	}
	var out []Record
	for _, rec := range ix.records {
		if matches(rec, criteria) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec Record, criteria []Criterion) bool {
	for _, c := range criteria {
		if rec.levelValue(c.level) != c.value {
			return false
		}
	}
	return true
}

// Value returns field from the first matching record that carries it.
func (ix *Index) Value(field string, criteria ...Criterion) (string, error) {
	for _, rec := range ix.match(criteria) {
		if value, ok := rec.Fields[field]; ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, field)
}

// CompareMontages orders "localization.montage" versions numerically, falling
// back to string order for malformed values.
func CompareMontages(a, b string) int {
	al, am, aok := ParseMontage(a)
	bl, bm, bok := ParseMontage(b)
	if aok && bok {
		return cmp.Or(cmp.Compare(al, bl), cmp.Compare(am, bm))
	}
	return strings.Compare(a, b)
}

// ParseMontage splits a "localization.montage" version into its numbers.
func ParseMontage(version string) (localization, montage int, ok bool) {
	locPart, montagePart, found := strings.Cut(strings.TrimSpace(version), ".")
	if !found {
		return 0, 0, false
	}
	loc, err := strconv.Atoi(locPart)
	if err != nil {
		return 0, 0, false
	}
	num, err := strconv.Atoi(montagePart)
	if err != nil {
		return 0, 0, false
	}
	return loc, num, true
}

// LatestMontage returns the highest montage version in view.
func LatestMontage(r Reader) (string, bool) {
	montages := r.Montages()
	if len(montages) == 0 {
		return "", false
	}
	return slices.MaxFunc(montages, CompareMontages), true
}
