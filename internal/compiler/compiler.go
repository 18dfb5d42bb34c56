// internal/compiler/compiler.go
package compiler

import (
	"strconv"

	"levython/internal/ast"
	"levython/internal/bytecode"
	"levython/internal/errors"
	"levython/internal/object"
	"levython/internal/value"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("levython.compiler")

const (
	maxLocals    = 256
	maxConstants = 1 << 16
	maxJump      = 1<<16 - 1
	scriptName   = "<script>"
)

// Compiler lowers one program tree into bytecode. Strings and function
// objects are allocated in the heap it was created with, so the resulting
// chunk must run on a VM that shares that heap.
type Compiler struct {
	heap    *object.Heap
	fn      *funcState
	globals map[string]bool // names assigned at top level
	funcs   map[string]bool // names bound to user functions
	errs    errors.List
	line    int
}

type funcState struct {
	enclosing  *funcState
	name       string
	chunk      *bytecode.Chunk
	locals     []local
	scopeDepth int
	numSlots   int
	loops      []*loopContext
	tryDepth   int
	script     bool
}

type local struct {
	name  string
	depth int
	slot  int
}

type loopContext struct {
	start    int   // continue target
	breaks   []int // pending break operand positions
	iterator bool  // the loop owns an iterator slot
	tryDepth int
}

// compileError unwinds the visitor to the enclosing statement.
type compileError struct{ err *errors.LevyError }

func New(heap *object.Heap) *Compiler {
	return &Compiler{
		heap:    heap,
		globals: make(map[string]bool),
		funcs:   make(map[string]bool),
	}
}

// Compile lowers a program node into the script chunk. Every top-level
// statement is compiled even after an earlier one failed, and all errors are
// returned together.
func (c *Compiler) Compile(program *ast.Node) (*bytecode.Chunk, error) {
	if program == nil || program.Kind != ast.Program {
		return nil, errors.NewCompileError(0, "expected a program node")
	}
	c.errs = nil
	c.fn = &funcState{name: scriptName, chunk: bytecode.NewChunk(scriptName), script: true}
	c.hoist(program.Children)

	for _, stmt := range program.Children {
		c.compileTopLevel(stmt)
	}
	c.line = lastLine(program)
	c.emitOp(bytecode.OpNone)
	c.emitOp(bytecode.OpReturn)

	if err := c.errs.Err(); err != nil {
		return nil, err
	}
	chunk := c.fn.chunk
	log.Debugf("compiled %s: %d bytes, %d constants", chunk.Name, chunk.Len(), len(chunk.Constants))
	return chunk, nil
}

func (c *Compiler) compileTopLevel(stmt *ast.Node) {
	saved := c.fn
	savedDepth := saved.scopeDepth
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(compileError)
			if !ok {
				panic(r)
			}
			c.errs = append(c.errs, ce.err)
			c.fn = saved
			c.fn.scopeDepth = savedDepth
			c.fn.loops = nil
			c.fn.tryDepth = 0
		}
	}()
	c.statement(stmt)
}

func lastLine(n *ast.Node) int {
	line := n.Line()
	ast.Walk(n, func(c *ast.Node) bool {
		if c.Line() > line {
			line = c.Line()
		}
		return true
	})
	return line
}

func (c *Compiler) fail(format string, args ...any) {
	err := errors.NewCompileError(c.line, format, args...)
	err.Location.Function = c.fn.name
	panic(compileError{err})
}

func (c *Compiler) chunk() *bytecode.Chunk { return c.fn.chunk }

// Emission helpers

func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.chunk().WriteOp(op, c.line)
}

func (c *Compiler) emitByte(b byte) {
	c.chunk().WriteByte(b, c.line)
}

func (c *Compiler) emitOpByte(op bytecode.OpCode, b int) {
	c.emitOp(op)
	c.emitByte(byte(b))
}

func (c *Compiler) emitOpShort(op bytecode.OpCode, v int) {
	c.emitOp(op)
	c.chunk().WriteShort(uint16(v), c.line)
}

// emitJump writes op with a placeholder offset and returns the operand
// position for patchJump.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	pos := c.chunk().Len()
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return pos
}

func (c *Compiler) patchJump(pos int) {
	offset := c.chunk().Len() - pos - 2
	if offset > maxJump {
		c.fail("too much code to jump over")
	}
	c.chunk().PatchShort(pos, uint16(offset))
}

func (c *Compiler) emitLoop(start int) {
	c.emitOp(bytecode.OpLoop)
	offset := c.chunk().Len() + 2 - start
	if offset > maxJump {
		c.fail("loop body too large")
	}
	c.chunk().WriteShort(uint16(offset), c.line)
}

func (c *Compiler) makeConstant(v value.Value) int {
	idx := c.chunk().AddConstant(v)
	if idx >= maxConstants {
		c.fail("too many constants in one chunk")
	}
	return idx
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpShort(bytecode.OpConstant, c.makeConstant(v))
}

// emitInt uses the immediate form when n fits in 16 bits.
func (c *Compiler) emitInt(n int64) {
	if n >= -32768 && n <= 32767 {
		c.emitOpShort(bytecode.OpInt, int(uint16(int16(n))))
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) nameConstant(name string) int {
	return c.makeConstant(c.heap.Intern(name))
}

// Scopes and variables

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	fn := c.fn
	fn.scopeDepth--
	for len(fn.locals) > 0 && fn.locals[len(fn.locals)-1].depth > fn.scopeDepth {
		fn.locals = fn.locals[:len(fn.locals)-1]
	}
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	if c.fn.script {
		return 0, false
	}
	locals := c.fn.locals
	for i := len(locals) - 1; i >= 0; i-- {
		if locals[i].name == name {
			return locals[i].slot, true
		}
	}
	return 0, false
}

func (c *Compiler) declareLocal(name string) int {
	if c.fn.numSlots >= maxLocals {
		c.fail("too many local variables in function %s", c.fn.name)
	}
	slot := c.fn.numSlots
	c.fn.numSlots++
	c.fn.locals = append(c.fn.locals, local{name: name, depth: c.fn.scopeDepth, slot: slot})
	return slot
}

func (c *Compiler) emitLoad(name string) {
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOpByte(bytecode.OpGetLocal, slot)
		return
	}
	c.emitOpShort(bytecode.OpGetGlobal, c.nameConstant(name))
}

// emitStore pops the top of stack into name. At top level every name is a
// global. Inside a function a name is a local unless it is already known as
// a global, in which case the global is updated.
func (c *Compiler) emitStore(name string) {
	if c.fn.script {
		c.globals[name] = true
		c.emitOpShort(bytecode.OpSetGlobal, c.nameConstant(name))
		return
	}
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOpByte(bytecode.OpSetLocal, slot)
		return
	}
	if c.globals[name] || c.funcs[name] {
		c.emitOpShort(bytecode.OpSetGlobal, c.nameConstant(name))
		return
	}
	c.emitOpByte(bytecode.OpSetLocal, c.declareLocal(name))
}

// Literals

func (c *Compiler) literal(n *ast.Node) {
	switch n.Token.Type {
	case ast.LitInt:
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			c.fail("Invalid numeric literal: %s", n.Value)
		}
		c.emitInt(i)
	case ast.LitFloat:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			c.fail("Invalid numeric literal: %s", n.Value)
		}
		c.emitConstant(value.Float(f))
	case ast.LitString:
		c.emitConstant(c.heap.Intern(n.Value))
	case ast.LitBool:
		if n.Value == "yes" || n.Value == "true" {
			c.emitOp(bytecode.OpTrue)
		} else {
			c.emitOp(bytecode.OpFalse)
		}
	case ast.LitNone:
		c.emitOp(bytecode.OpNone)
	default:
		c.fail("Unknown literal type %q", n.Token.Type)
	}
}

func (c *Compiler) setLine(n *ast.Node) {
	if l := n.Line(); l > 0 {
		c.line = l
	}
}
