package ast

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a program tree serialized by a front end. The document
// root must be a program node.
func DecodeYAML(data []byte) (*Node, error) {
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != Program {
		return nil, fmt.Errorf("root node is %q, want %q", root.Kind, Program)
	}
	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// EncodeYAML is the inverse of DecodeYAML.
func EncodeYAML(n *Node) ([]byte, error) {
	return yaml.Marshal(n)
}

var arity = map[Kind][2]int{
	Program:  {0, -1},
	Block:    {0, -1},
	Assign:   {2, 2},
	Binary:   {2, 2},
	Unary:    {1, 1},
	Literal:  {0, 0},
	Variable: {0, 0},
	Function: {1, 1},
	Call:     {1, -1},
	If:       {2, 3},
	While:    {2, 2},
	For:      {2, 2},
	Repeat:   {2, 2},
	Try:      {2, 2},
	Return:   {0, 1},
	Index:    {2, 2},
	List:     {0, -1},
	Break:    {0, 0},
	Continue: {0, 0},
	Throw:    {1, 1},
}

// Validate checks node kinds and child counts.
func Validate(n *Node) error {
	var err error
	Walk(n, func(c *Node) bool {
		if err != nil {
			return false
		}
		bounds, ok := arity[c.Kind]
		if !ok {
			err = fmt.Errorf("line %d: unknown node kind %q", c.Line(), c.Kind)
			return false
		}
		count := len(c.Children)
		if count < bounds[0] || (bounds[1] >= 0 && count > bounds[1]) {
			err = fmt.Errorf("line %d: %s node has %d children", c.Line(), c.Kind, count)
			return false
		}
		for _, child := range c.Children {
			if child == nil {
				err = fmt.Errorf("line %d: %s node has an empty child", c.Line(), c.Kind)
				return false
			}
		}
		return true
	})
	return err
}
