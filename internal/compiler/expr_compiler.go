package compiler

import (
	"math"
	"strconv"

	"levython/internal/ast"
	"levython/internal/bytecode"
)

var binaryOps = map[string]bytecode.OpCode{
	"+":   bytecode.OpAdd,
	"-":   bytecode.OpSub,
	"*":   bytecode.OpMul,
	"/":   bytecode.OpDiv,
	"%":   bytecode.OpMod,
	"^":   bytecode.OpPow,
	"==":  bytecode.OpEqual,
	"!=":  bytecode.OpNotEqual,
	"<":   bytecode.OpLess,
	"<=":  bytecode.OpLessEqual,
	">":   bytecode.OpGreater,
	">=":  bytecode.OpGreaterEqual,
	"&":   bytecode.OpAnd,
	"|":   bytecode.OpOr,
	"and": bytecode.OpAnd,
	"or":  bytecode.OpOr,
}

type builtin struct {
	id       int
	op       bytecode.OpCode
	min, max int
}

var builtins = map[string]builtin{
	"say":    {bytecode.BuiltinSay, bytecode.OpSay, 1, 1},
	"ask":    {bytecode.BuiltinAsk, bytecode.OpAsk, 0, 1},
	"len":    {bytecode.BuiltinLen, bytecode.OpLen, 1, 1},
	"range":  {bytecode.BuiltinRange, bytecode.OpRange, 1, 3},
	"type":   {bytecode.BuiltinType, bytecode.OpType, 1, 1},
	"int":    {bytecode.BuiltinInt, bytecode.OpToInt, 1, 1},
	"float":  {bytecode.BuiltinFloat, bytecode.OpToFloat, 1, 1},
	"str":    {bytecode.BuiltinStr, bytecode.OpToStr, 1, 1},
	"append": {bytecode.BuiltinAppend, bytecode.OpAppend, 2, 2},
}

func (c *Compiler) expression(n *ast.Node) {
	if n == nil {
		c.fail("missing expression")
	}
	c.setLine(n)
	switch n.Kind {
	case ast.Literal:
		c.literal(n)
	case ast.Variable:
		c.emitLoad(n.Value)
	case ast.Binary:
		c.visitBinary(n)
	case ast.Unary:
		c.visitUnary(n)
	case ast.Call:
		c.visitCall(n)
	case ast.Index:
		c.expression(n.Child(0))
		c.expression(n.Child(1))
		c.emitOp(bytecode.OpIndex)
	case ast.List:
		if len(n.Children) > math.MaxUint16 {
			c.fail("list literal has too many elements")
		}
		for _, e := range n.Children {
			c.expression(e)
		}
		c.emitOpShort(bytecode.OpBuildList, len(n.Children))
	default:
		c.fail("%s is not an expression", n.Kind)
	}
}

func (c *Compiler) visitBinary(n *ast.Node) {
	op, ok := binaryOps[n.Value]
	if !ok {
		c.fail("Unsupported operator '%s'", n.Value)
	}
	if truth, ok := foldCompare(n); ok {
		if truth {
			c.emitOp(bytecode.OpTrue)
		} else {
			c.emitOp(bytecode.OpFalse)
		}
		return
	}
	if folded, ok := foldInt(n); ok && folded >= -32768 && folded <= 32767 {
		c.emitInt(folded)
		return
	}
	c.expression(n.Child(0))
	c.expression(n.Child(1))
	c.emitOp(op)
}

func (c *Compiler) visitUnary(n *ast.Node) {
	switch n.Value {
	case "-":
		if folded, ok := foldInt(n); ok && folded >= -32768 && folded <= 32767 {
			c.emitInt(folded)
			return
		}
		c.expression(n.Child(0))
		c.emitOp(bytecode.OpNegate)
	case "not", "!":
		c.expression(n.Child(0))
		c.emitOp(bytecode.OpNot)
	default:
		c.fail("Unsupported unary operator '%s'", n.Value)
	}
}

// foldInt evaluates integer-literal arithmetic. Division is never folded:
// int / int yields a float at run time, and modulo by a literal zero must
// still raise at run time.
func foldInt(n *ast.Node) (int64, bool) {
	switch n.Kind {
	case ast.Literal:
		if n.Token.Type != ast.LitInt {
			return 0, false
		}
		v, err := strconv.ParseInt(n.Value, 10, 64)
		return v, err == nil
	case ast.Unary:
		if n.Value != "-" {
			return 0, false
		}
		v, ok := foldInt(n.Child(0))
		if !ok || v == math.MinInt64 {
			return 0, false
		}
		return -v, true
	case ast.Binary:
		l, ok := foldInt(n.Child(0))
		if !ok {
			return 0, false
		}
		r, ok := foldInt(n.Child(1))
		if !ok {
			return 0, false
		}
		return foldArith(n.Value, l, r)
	}
	return 0, false
}

// foldCompare evaluates a comparison of two integer-literal operands.
func foldCompare(n *ast.Node) (bool, bool) {
	const limit = 1 << 47
	l, ok := foldInt(n.Child(0))
	if !ok || l >= limit || l <= -limit {
		return false, false
	}
	r, ok := foldInt(n.Child(1))
	if !ok || r >= limit || r <= -limit {
		return false, false
	}
	switch n.Value {
	case "==":
		return l == r, true
	case "!=":
		return l != r, true
	case "<":
		return l < r, true
	case "<=":
		return l <= r, true
	case ">":
		return l > r, true
	case ">=":
		return l >= r, true
	}
	return false, false
}

func foldArith(op string, l, r int64) (int64, bool) {
	const limit = 1 << 47
	if l >= limit || l <= -limit || r >= limit || r <= -limit {
		return 0, false
	}
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		p := l * r
		if l != 0 && p/l != r {
			return 0, false
		}
		return p, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	}
	return 0, false
}

func (c *Compiler) visitCall(n *ast.Node) {
	callee := n.Child(0)
	args := n.Children[1:]
	if len(args) > 255 {
		c.fail("too many arguments in call")
	}

	if callee.Kind == ast.Variable {
		if b, ok := builtins[callee.Value]; ok && c.isBuiltinName(callee.Value) {
			c.builtinCall(b, args)
			return
		}
	}

	c.expression(callee)
	for _, arg := range args {
		c.expression(arg)
	}
	c.setLine(n)
	c.emitOpByte(bytecode.OpCall, len(args))
}

// isBuiltinName is false when a user function or a local shadows the
// builtin.
func (c *Compiler) isBuiltinName(name string) bool {
	if c.funcs[name] {
		return false
	}
	_, local := c.resolveLocal(name)
	return !local
}

func (c *Compiler) builtinCall(b builtin, args []*ast.Node) {
	for _, arg := range args {
		c.expression(arg)
	}
	argc := len(args)
	if argc < b.min || argc > b.max {
		c.emitOp(bytecode.OpArityError)
		c.emitByte(byte(b.id))
		c.emitByte(byte(argc))
		return
	}
	switch b.op {
	case bytecode.OpRange, bytecode.OpAsk:
		c.emitOpByte(b.op, argc)
	default:
		c.emitOp(b.op)
	}
}
