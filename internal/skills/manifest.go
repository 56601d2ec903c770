package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the declarative half of a skill (skill.yaml). The named
// actions, signals and queries come from loader backends such as the
// script backend.
type Manifest struct {
	Name      string         `yaml:"name"`
	Intents   []IntentDecl   `yaml:"intents"`
	SlotTypes []SlotTypeDecl `yaml:"slot_types"`
	Events    []EventDecl    `yaml:"events"`
}

// IntentDecl binds per-language training utterances to action names
// registered by this skill.
type IntentDecl struct {
	Name string `yaml:"name"`
	// Utterances are keyed by language tag.
	Utterances map[string][]string `yaml:"utterances"`
	Actions    []string            `yaml:"actions"`
}

// SlotTypeDecl declares a slot type the NLU should extract.
type SlotTypeDecl struct {
	Name                    string   `yaml:"name"`
	Values                  []string `yaml:"values"`
	AutomaticallyExtensible bool     `yaml:"automatically_extensible"`
}

// EventDecl binds a fallback or custom event to signal names registered
// by this skill.
type EventDecl struct {
	Name    string   `yaml:"name"`
	Signals []string `yaml:"signals"`
}

const manifestFile = "skill.yaml"

// ReadManifest loads and validates a skill directory's manifest.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	for _, in := range m.Intents {
		if in.Name == "" {
			return nil, fmt.Errorf("manifest %s: intent with empty name", m.Name)
		}
		if len(in.Actions) == 0 {
			return nil, fmt.Errorf("manifest %s: intent %q binds no actions", m.Name, in.Name)
		}
	}
	return &m, nil
}
