package scene

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// State ranges carried by a scene item's value.
const (
	// MaxState is the number of states a scene can define (0..63).
	MaxState = 64

	// LearnFlag marks a value as "learn state value&127" (128..191).
	LearnFlag = 128

	stateMask = 127
)

// Action sets one item when its state is applied.
type Action struct {
	Item  string `yaml:"item" json:"item"`
	Value any    `yaml:"value" json:"value"`

	// Learn makes the action use the value learned for this state, when
	// one exists, instead of Value.
	Learn bool `yaml:"learn,omitempty" json:"learn,omitempty"`
}

// State is one numbered configuration of a scene.
type State struct {
	Name    string     `yaml:"name" json:"name"`
	Actions ActionList `yaml:"actions" json:"actions"`
}

// ActionList decodes either a single action mapping or a sequence of them.
type ActionList []Action

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ActionList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var a Action
		if err := node.Decode(&a); err != nil {
			return err
		}
		*l = ActionList{a}
		return nil
	case yaml.SequenceNode:
		var list []Action
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	return fmt.Errorf("line %d: actions must be a mapping or a list", node.Line)
}

// Definition is the content of a scene file: states keyed by number.
type Definition map[int]State

// Info describes a loaded scene for listings.
type Info struct {
	Path   string        `json:"path"`
	States map[int]State `json:"states"`

	// Learned maps "state#item" to the learned value.
	Learned map[string]any `json:"learned,omitempty"`
}

func learnKey(state int, itemPath string) string {
	return fmt.Sprintf("%d#%s", state, itemPath)
}
