// Package parser turns declarative command schemas into per-command parsers.
//
// A schema definition names a command, gives a template with {slot}
// placeholders, lists preconditions that must appear in the first line, maps
// each slot to one or more typed-token validators, and may declare boolean
// --flags. Definitions are usually loaded from YAML:
//
//	commands:
//	  - name: ban
//	    command: "ban {user} for {span}"
//	    preconditions: ["ban"]
//	    roles: [admin]
//	    flags: [force]
//	    slots:
//	      user: {type: search}
//	      span: {type: timespan}
//
// Compile resolves validator names once, so a typo in a schema fails at
// startup rather than during a conversation.
package parser

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Types is a list of validator names. In YAML it may be written as a single
// scalar or as a sequence.
type Types []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Types) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*t = Types{n.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	default:
		return fmt.Errorf("line %d: slot type must be a string or a list", n.Line)
	}
}

// SlotDefinition configures one slot.
type SlotDefinition struct {
	Type       Types    `yaml:"type"`
	Exclude    []string `yaml:"exclude"`
	Repeatable bool     `yaml:"repeatable"`
}

// Definition is one command schema as written by an operator.
type Definition struct {
	Name          string                    `yaml:"name"`
	Command       string                    `yaml:"command"`
	Description   string                    `yaml:"description"`
	Preconditions []string                  `yaml:"preconditions"`
	Slots         map[string]SlotDefinition `yaml:"slots"`
	Flags         []string                  `yaml:"flags"`
	Roles         []string                  `yaml:"roles"`
	Expiry        *time.Duration            `yaml:"expiry"`
}

type definitionsFile struct {
	Commands []Definition `yaml:"commands"`
}

// LoadDefinitions decodes a YAML document of command definitions. Unknown
// keys are rejected.
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f definitionsFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode command definitions: %w", err)
	}
	return f.Commands, nil
}

// LoadDefinitionsFile reads definitions from path.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDefinitions(f)
}
