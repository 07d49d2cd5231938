package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Variable is an integrated variable with its initial value.
type Variable struct {
	Name    string
	Initial float64
}

// Variables keeps the order variables are written in, which is the order
// they take in the state vector.
//
//	variables:
//	  v: 0
//	  m: 0.0529
type Variables []Variable

// UnmarshalYAML reads a mapping from names to initial values.
func (vs *Variables) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variables must be a mapping of name to "+
			"initial value", value.Line)
	}

	out := make(Variables, 0, len(value.Content)/2)
	seen := make(map[string]bool, len(value.Content)/2)

	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valueNode := value.Content[i], value.Content[i+1]

		var v Variable

		err := keyNode.Decode(&v.Name)
		if err != nil {
			return err
		}

		if seen[v.Name] {
			return fmt.Errorf("line %d: variable %q listed twice",
				keyNode.Line, v.Name)
		}

		err = valueNode.Decode(&v.Initial)
		if err != nil {
			return fmt.Errorf("line %d: initial value of %q: %w",
				valueNode.Line, v.Name, err)
		}

		seen[v.Name] = true
		out = append(out, v)
	}

	*vs = out

	return nil
}

// MarshalYAML writes the variables as an ordered mapping.
func (vs Variables) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, v := range vs {
		var key, value yaml.Node

		err := key.Encode(v.Name)
		if err != nil {
			return nil, err
		}

		err = value.Encode(v.Initial)
		if err != nil {
			return nil, err
		}

		node.Content = append(node.Content, &key, &value)
	}

	return node, nil
}

// Names returns the variable names in order.
func (vs Variables) Names() []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name
	}

	return names
}
