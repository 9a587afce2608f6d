package importer

import (
	"maps"
	"slices"
	"strconv"
)

// Params identifies one unit of work. Which fields are meaningful depends on
// the kind: montage imports carry no session, event imports carry both the
// current and the original (pre-remap) experiment and session.
type Params struct {
	Protocol        string
	Subject         string
	Code            string
	Montage         string
	Experiment      string
	NewExperiment   string
	Session         *int
	OriginalSession *int
	DoMath          bool
	DoCompare       bool
	Extra           map[string]string
}

// Pair is one rendered identity field.
type Pair struct {
	Key   string
	Value string
}

// Int returns a pointer to v, for populating optional session fields.
func Int(v int) *int {
	return &v
}

// Pairs renders the populated fields in a fixed order, extras last sorted by key.
func (p Params) Pairs() []Pair {
	pairs := make([]Pair, 0, 10+len(p.Extra))
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, Pair{Key: key, Value: value})
		}
	}
	add("subject", p.Subject)
	add("montage", p.Montage)
	add("experiment", p.Experiment)
	if p.Session != nil {
		add("session", strconv.Itoa(*p.Session))
	}
	add("new_experiment", p.NewExperiment)
	if p.OriginalSession != nil {
		add("original_session", strconv.Itoa(*p.OriginalSession))
	}
	if p.Experiment != "" || p.NewExperiment != "" {
		add("do_math", strconv.FormatBool(p.DoMath))
		add("do_compare", strconv.FormatBool(p.DoCompare))
	}
	add("protocol", p.Protocol)
	add("code", p.Code)
	for _, key := range slices.Sorted(maps.Keys(p.Extra)) {
		add(key, p.Extra[key])
	}
	return pairs
}

// Map renders the populated fields as a map, for persistence.
func (p Params) Map() map[string]string {
	pairs := p.Pairs()
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		out[pair.Key] = pair.Value
	}
	return out
}

// SessionKey identifies the destination the unit writes to. Two units with the
// same key must never run concurrently.
func (p Params) SessionKey() string {
	key := p.Protocol + "/" + p.Subject
	switch {
	case p.Session != nil:
		experiment := p.NewExperiment
		if experiment == "" {
			experiment = p.Experiment
		}
		key += "/" + experiment + "/" + strconv.Itoa(*p.Session)
	case p.Montage != "":
		key += "/montage/" + p.Montage
	}
	return key
}
