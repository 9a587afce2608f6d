package importer

import (
	"fmt"
	"strings"
)

// Kind identifies an import strategy.
type Kind int

const (
	Montage Kind = iota + 1
	BuildEvents
	BuildEphys
	ConvertEvents
	ConvertEphys
)

type kindInfo struct {
	slug  string
	label string
}

var kindTable = map[Kind]kindInfo{
	Montage:       {slug: "montage", label: "Montage Importer"},
	BuildEvents:   {slug: "build_events", label: "Events Builder"},
	BuildEphys:    {slug: "build_ephys", label: "Ephys Builder"},
	ConvertEvents: {slug: "convert_events", label: "Events Converter"},
	ConvertEphys:  {slug: "convert_ephys", label: "Ephys Converter"},
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{Montage, BuildEvents, BuildEphys, ConvertEvents, ConvertEphys}
}

// Valid reports whether k belongs to the closed set of kinds.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// Label returns the human-readable name used in reports.
func (k Kind) Label() string {
	if info, ok := kindTable[k]; ok {
		return info.label
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// String returns the stable slug used in config, flags, and persisted history.
func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.slug
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a slug such as "build_events" (dashes are accepted too).
func ParseKind(value string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, kind := range Kinds() {
		if kindTable[kind].slug == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, value)
}
