// internal/compiler/stmt_compiler.go
package compiler

import (
	"levython/internal/ast"
	"levython/internal/bytecode"
)

func (c *Compiler) statement(n *ast.Node) {
	c.setLine(n)
	switch n.Kind {
	case ast.Block:
		c.beginScope()
		c.block(n)
		c.endScope()
	case ast.Program:
		c.block(n)
	case ast.Assign:
		c.visitAssign(n)
	case ast.Function:
		c.visitFunction(n)
	case ast.If:
		c.visitIf(n)
	case ast.While:
		c.visitWhile(n)
	case ast.For:
		c.visitFor(n)
	case ast.Repeat:
		c.visitRepeat(n)
	case ast.Try:
		c.visitTry(n)
	case ast.Return:
		c.visitReturn(n)
	case ast.Break:
		c.visitBreak()
	case ast.Continue:
		c.visitContinue()
	case ast.Throw:
		c.expression(n.Child(0))
		c.emitOp(bytecode.OpThrow)
	default:
		c.expression(n)
		c.emitOp(bytecode.OpPop)
	}
}

func (c *Compiler) block(n *ast.Node) {
	for _, stmt := range n.Children {
		c.statement(stmt)
	}
}

// body compiles a loop or branch body in its own scope. A bare statement is
// accepted in place of a block.
func (c *Compiler) body(n *ast.Node) {
	if n == nil {
		return
	}
	if n.Kind != ast.Block {
		c.beginScope()
		c.statement(n)
		c.endScope()
		return
	}
	c.statement(n)
}

func (c *Compiler) visitAssign(n *ast.Node) {
	target, expr := n.Child(0), n.Child(1)
	switch target.Kind {
	case ast.Variable:
		c.expression(expr)
		c.emitStore(target.Value)
	case ast.Index:
		c.expression(target.Child(0))
		c.expression(target.Child(1))
		c.expression(expr)
		c.emitOp(bytecode.OpSetIndex)
	default:
		c.fail("Invalid assignment target.")
	}
}

func (c *Compiler) visitFunction(n *ast.Node) {
	name := n.Value
	if len(n.Params) > 255 {
		c.fail("function %s has too many parameters", name)
	}

	fn := &funcState{
		enclosing:  c.fn,
		name:       name,
		chunk:      bytecode.NewChunk(name),
		scopeDepth: 1,
	}
	c.fn = fn
	for _, p := range n.Params {
		for _, existing := range fn.locals {
			if existing.name == p {
				c.fail("duplicate parameter %s in function %s", p, name)
			}
		}
		c.declareLocal(p)
	}
	c.block(n.Child(0))
	c.emitOp(bytecode.OpNone)
	c.emitOp(bytecode.OpReturn)
	c.fn = fn.enclosing

	fnValue := c.heap.NewFunction(name, len(n.Params), fn.numSlots, fn.chunk)
	log.Debugf("compiled function %s/%d: %d bytes, %d slots", name, len(n.Params), fn.chunk.Len(), fn.numSlots)

	c.setLine(n)
	c.emitConstant(fnValue)
	if c.fn.script {
		c.funcs[name] = true
		c.emitStore(name)
		return
	}
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOpByte(bytecode.OpSetLocal, slot)
		return
	}
	c.emitOpByte(bytecode.OpSetLocal, c.declareLocal(name))
}

func (c *Compiler) visitIf(n *ast.Node) {
	c.expression(n.Child(0))
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.body(n.Child(1))

	if otherwise := n.Child(2); otherwise != nil {
		elseJump := c.emitJump(bytecode.OpJump)
		c.patchJump(thenJump)
		c.body(otherwise)
		c.patchJump(elseJump)
		return
	}
	c.patchJump(thenJump)
}

func (c *Compiler) pushLoop(start int, iterator bool) *loopContext {
	loop := &loopContext{start: start, iterator: iterator, tryDepth: c.fn.tryDepth}
	c.fn.loops = append(c.fn.loops, loop)
	return loop
}

func (c *Compiler) popLoop() {
	loop := c.fn.loops[len(c.fn.loops)-1]
	c.fn.loops = c.fn.loops[:len(c.fn.loops)-1]
	for _, pos := range loop.breaks {
		c.patchJump(pos)
	}
}

func (c *Compiler) visitWhile(n *ast.Node) {
	start := c.chunk().Len()
	c.pushLoop(start, false)
	c.expression(n.Child(0))
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.body(n.Child(1))
	c.emitLoop(start)
	c.patchJump(exitJump)
	c.popLoop()
}

// visitFor lowers `for name in iterable: body` to
//
//	<iterable> ITER_INIT
//	start: ITER_NEXT exit ; SET name ; <body> ; LOOP start
//	exit:
func (c *Compiler) visitFor(n *ast.Node) {
	c.expression(n.Child(0))
	c.emitOp(bytecode.OpIterInit)
	c.iterationLoop(n.Value, n.Child(1))
}

// visitRepeat lowers `repeat count: body` like a for loop over range(count)
// whose element is discarded.
func (c *Compiler) visitRepeat(n *ast.Node) {
	c.expression(n.Child(0))
	c.emitOp(bytecode.OpRepeatInit)
	c.iterationLoop("", n.Child(1))
}

func (c *Compiler) iterationLoop(name string, body *ast.Node) {
	start := c.chunk().Len()
	c.pushLoop(start, true)
	exitJump := c.emitJump(bytecode.OpIterNext)

	c.beginScope()
	if name == "" {
		c.emitOp(bytecode.OpPop)
	} else {
		c.emitStore(name)
	}
	c.body(body)
	c.endScope()

	c.emitLoop(start)
	c.patchJump(exitJump)
	c.popLoop()
}

// visitTry lowers try/catch to
//
//	TRY catch ; <body> ; CATCH ; JUMP end
//	catch: SET err | POP ; <handler>
//	end:
func (c *Compiler) visitTry(n *ast.Node) {
	tryJump := c.emitJump(bytecode.OpTry)
	c.fn.tryDepth++
	c.body(n.Child(0))
	c.fn.tryDepth--
	c.emitOp(bytecode.OpCatch)
	endJump := c.emitJump(bytecode.OpJump)

	c.patchJump(tryJump)
	c.beginScope()
	if n.Value != "" {
		c.emitStore(n.Value)
	} else {
		c.emitOp(bytecode.OpPop)
	}
	c.body(n.Child(1))
	c.endScope()
	c.patchJump(endJump)
}

func (c *Compiler) visitReturn(n *ast.Node) {
	if expr := n.Child(0); expr != nil {
		c.expression(expr)
	} else {
		c.emitOp(bytecode.OpNone)
	}
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) currentLoop(what string) *loopContext {
	if len(c.fn.loops) == 0 {
		c.fail("'%s' outside of a loop", what)
	}
	return c.fn.loops[len(c.fn.loops)-1]
}

// leaveTries pops the handlers of try blocks entered inside the loop.
func (c *Compiler) leaveTries(loop *loopContext) {
	for i := c.fn.tryDepth; i > loop.tryDepth; i-- {
		c.emitOp(bytecode.OpCatch)
	}
}

func (c *Compiler) visitBreak() {
	loop := c.currentLoop("break")
	c.leaveTries(loop)
	if loop.iterator {
		c.emitOp(bytecode.OpIterEnd)
	}
	loop.breaks = append(loop.breaks, c.emitJump(bytecode.OpJump))
}

func (c *Compiler) visitContinue() {
	loop := c.currentLoop("continue")
	c.leaveTries(loop)
	c.emitLoop(loop.start)
}
