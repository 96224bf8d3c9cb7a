package privilege

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// levelDoc is the data-only YAML shape for one level, mirroring Level's
// fields with regexes as plain strings.
type levelDoc struct {
	Name           string   `yaml:"name"`
	Pattern        string   `yaml:"pattern"`
	PreviousPriv   string   `yaml:"previous_priv"`
	Escalate       string   `yaml:"escalate"`
	EscalateAuth   bool     `yaml:"escalate_auth"`
	EscalatePrompt string   `yaml:"escalate_prompt"`
	Deescalate     string   `yaml:"deescalate"`
	NotContains    []string `yaml:"not_contains"`
}

type mapDoc struct {
	Levels []levelDoc `yaml:"levels"`
}

// LoadMapYAML loads a PrivilegeMap from a declarative YAML document. This
// is a data-only convenience, not a factory/dispatch layer: it compiles
// patterns and builds a Map, nothing more; platform selection by name
// string belongs to the caller.
func LoadMapYAML(r io.Reader) (*Map, error) {
	var doc mapDoc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("privilege: decode yaml: %w", err)
	}

	levels := make([]*Level, 0, len(doc.Levels))
	for _, ld := range doc.Levels {
		pattern, err := CompilePattern(ld.Pattern)
		if err != nil {
			return nil, err
		}
		lvl := &Level{
			Name:         ld.Name,
			Pattern:      pattern,
			PreviousPriv: ld.PreviousPriv,
			Escalate:     ld.Escalate,
			EscalateAuth: ld.EscalateAuth,
			Deescalate:   ld.Deescalate,
			NotContains:  ld.NotContains,
		}
		if ld.EscalatePrompt != "" {
			ep, err := CompilePattern(ld.EscalatePrompt)
			if err != nil {
				return nil, err
			}
			lvl.EscalatePrompt = ep
		}
		levels = append(levels, lvl)
	}

	return NewMap(levels...)
}
