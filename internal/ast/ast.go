// Package ast defines the program tree handed to the compiler by a front end.
package ast

// Kind names a node type.
type Kind string

const (
	Program  Kind = "program"
	Block    Kind = "block"
	Assign   Kind = "assign"   // children: target (variable or index), expr
	Binary   Kind = "binary"   // value: operator; children: left, right
	Unary    Kind = "unary"    // value: "-" or "not"; children: operand
	Literal  Kind = "literal"  // token.type: int, float, string, bool, none
	Variable Kind = "variable" // value: name
	Function Kind = "function" // value: name; params; children: body
	Call     Kind = "call"     // children: callee, args...
	If       Kind = "if"       // children: cond, then, [else]
	While    Kind = "while"    // children: cond, body
	For      Kind = "for"      // value: loop variable; children: iterable, body
	Repeat   Kind = "repeat"   // children: count, body
	Try      Kind = "try"      // value: optional catch variable; children: body, catch
	Return   Kind = "return"   // children: [expr]
	Index    Kind = "index"    // children: target, index
	List     Kind = "list"     // children: elements
	Break    Kind = "break"
	Continue Kind = "continue"
	Throw    Kind = "throw" // children: expr
)

// Literal token types.
const (
	LitInt    = "int"
	LitFloat  = "float"
	LitString = "string"
	LitBool   = "bool"
	LitNone   = "none"
)

// Token carries the lexical details the compiler needs.
type Token struct {
	Type string `yaml:"type,omitempty"`
	Line int    `yaml:"line,omitempty"`
}

// Node is one AST node.
type Node struct {
	Kind     Kind     `yaml:"kind"`
	Token    Token    `yaml:"token,omitempty"`
	Value    string   `yaml:"value,omitempty"`
	Children []*Node  `yaml:"children,omitempty"`
	Params   []string `yaml:"params,omitempty"`
}

// Line is the source line, 0 when unknown.
func (n *Node) Line() int {
	if n == nil {
		return 0
	}
	return n.Token.Line
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Walk visits n and its descendants depth-first until fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
