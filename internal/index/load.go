package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	Protocols map[string]protocolNode `json:"protocols" yaml:"protocols"`
}

type protocolNode struct {
	Subjects map[string]subjectNode `json:"subjects" yaml:"subjects"`
}

type subjectNode struct {
	Experiments map[string]experimentNode `json:"experiments" yaml:"experiments"`
}

type experimentNode struct {
	Sessions map[string]map[string]scalar `json:"sessions" yaml:"sessions"`
}

// scalar holds a leaf value as written in the document, so a montage such as
// 1.10 is not reduced to 1.1 by number decoding. Nested values are ignored.
type scalar struct {
	text string
	set  bool
}

func (s *scalar) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), raw[0] == '{', raw[0] == '[':
		return nil
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &s.text); err != nil {
			return err
		}
	default:
		s.text = string(raw)
	}
	s.set = true
	return nil
}

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode || node.ShortTag() == "!!null" {
		return nil
	}
	s.text, s.set = node.Value, true
	return nil
}

// Load reads an index document. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	records, err := doc.records()
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return New(records), nil
}

func (d document) records() ([]Record, error) {
	var records []Record
	for protocol, pNode := range d.Protocols {
		for subject, sNode := range pNode.Subjects {
			for experiment, eNode := range sNode.Experiments {
				for sessionKey, leaf := range eNode.Sessions {
					session, err := strconv.Atoi(strings.TrimSpace(sessionKey))
					if err != nil {
						return nil, fmt.Errorf("%s/%s/%s: session %q is not a number", protocol, subject, experiment, sessionKey)
					}
					fields := make(map[string]string, len(leaf))
					for key, value := range leaf {
						if value.set {
							fields[key] = value.text
						}
					}
					records = append(records, Record{
						Protocol:   protocol,
						Subject:    subject,
						Experiment: experiment,
						Session:    session,
						Montage:    montageVersion(fields),
						Fields:     fields,
					})
				}
			}
		}
	}
	return records, nil
}

// montageVersion normalizes the leaf's montage into "localization.montage".
func montageVersion(fields map[string]string) string {
	montage := strings.TrimSpace(fields["montage"])
	if montage == "" {
		montage = "0"
	}
	if strings.Contains(montage, ".") {
		return montage
	}
	localization := strings.TrimSpace(fields["localization"])
	if localization == "" {
		localization = "0"
	}
	return localization + "." + montage
}
