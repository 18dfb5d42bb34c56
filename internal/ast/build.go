package ast

import "strconv"

// Constructors for building trees in Go: tests, demos, embedders.

// Prog wraps top-level statements. Statements without a line are numbered
// by position.
func Prog(stmts ...*Node) *Node {
	for i, s := range stmts {
		if s != nil && s.Token.Line == 0 {
			setLine(s, i+1)
		}
	}
	return &Node{Kind: Program, Children: stmts, Token: Token{Line: 1}}
}

func setLine(n *Node, line int) {
	Walk(n, func(c *Node) bool {
		if c.Token.Line == 0 {
			c.Token.Line = line
		}
		return true
	})
}

// At sets the line of n and of descendants without one.
func At(line int, n *Node) *Node {
	setLine(n, line)
	return n
}

func Body(stmts ...*Node) *Node {
	return &Node{Kind: Block, Children: stmts}
}

func Int(n int64) *Node {
	return &Node{Kind: Literal, Token: Token{Type: LitInt}, Value: strconv.FormatInt(n, 10)}
}

func Float(f float64) *Node {
	return &Node{Kind: Literal, Token: Token{Type: LitFloat}, Value: strconv.FormatFloat(f, 'g', -1, 64)}
}

func Str(s string) *Node {
	return &Node{Kind: Literal, Token: Token{Type: LitString}, Value: s}
}

func Bool(b bool) *Node {
	v := "no"
	if b {
		v = "yes"
	}
	return &Node{Kind: Literal, Token: Token{Type: LitBool}, Value: v}
}

func None() *Node {
	return &Node{Kind: Literal, Token: Token{Type: LitNone}, Value: "none"}
}

func Var(name string) *Node {
	return &Node{Kind: Variable, Value: name}
}

// Set is `name <- expr`.
func Set(name string, expr *Node) *Node {
	return &Node{Kind: Assign, Children: []*Node{Var(name), expr}}
}

// SetIndex is `target[index] <- expr`.
func SetIndex(target, index, expr *Node) *Node {
	return &Node{Kind: Assign, Children: []*Node{Idx(target, index), expr}}
}

func Bin(op string, left, right *Node) *Node {
	return &Node{Kind: Binary, Value: op, Children: []*Node{left, right}}
}

func Neg(x *Node) *Node { return &Node{Kind: Unary, Value: "-", Children: []*Node{x}} }
func Not(x *Node) *Node { return &Node{Kind: Unary, Value: "not", Children: []*Node{x}} }

// CallN calls the global or local named name.
func CallN(name string, args ...*Node) *Node {
	return &Node{Kind: Call, Children: append([]*Node{Var(name)}, args...)}
}

// Act defines a function: `act name(params) { body }`.
func Act(name string, params []string, body ...*Node) *Node {
	return &Node{Kind: Function, Value: name, Params: params, Children: []*Node{Body(body...)}}
}

func IfElse(cond, then, otherwise *Node) *Node {
	n := &Node{Kind: If, Children: []*Node{cond, then}}
	if otherwise != nil {
		n.Children = append(n.Children, otherwise)
	}
	return n
}

func WhileLoop(cond *Node, body ...*Node) *Node {
	return &Node{Kind: While, Children: []*Node{cond, Body(body...)}}
}

func ForIn(name string, iterable *Node, body ...*Node) *Node {
	return &Node{Kind: For, Value: name, Children: []*Node{iterable, Body(body...)}}
}

func RepeatN(count *Node, body ...*Node) *Node {
	return &Node{Kind: Repeat, Children: []*Node{count, Body(body...)}}
}

// TryCatch builds try/catch. errName may be empty.
func TryCatch(body *Node, errName string, catch *Node) *Node {
	return &Node{Kind: Try, Value: errName, Children: []*Node{body, catch}}
}

// Ret is `-> expr`; a nil expr returns none.
func Ret(expr *Node) *Node {
	n := &Node{Kind: Return}
	if expr != nil {
		n.Children = []*Node{expr}
	}
	return n
}

func Idx(target, index *Node) *Node {
	return &Node{Kind: Index, Children: []*Node{target, index}}
}

func ListOf(elems ...*Node) *Node {
	return &Node{Kind: List, Children: elems}
}

func BreakStmt() *Node    { return &Node{Kind: Break} }
func ContinueStmt() *Node { return &Node{Kind: Continue} }

func ThrowStmt(expr *Node) *Node {
	return &Node{Kind: Throw, Children: []*Node{expr}}
}
