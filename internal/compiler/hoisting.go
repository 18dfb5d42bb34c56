package compiler

import "levython/internal/ast"

// hoist records every global name and user function the program binds at
// top level before any code is emitted, so function bodies resolve globals
// assigned later in the file and calls to user functions defined later are
// not mistaken for builtins.
func (c *Compiler) hoist(stmts []*ast.Node) {
	for _, stmt := range stmts {
		c.hoistStmt(stmt)
	}
}

func (c *Compiler) hoistStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.Function:
		c.funcs[n.Value] = true
		c.globals[n.Value] = true
		// Function bodies have their own scope.
		return
	case ast.Assign:
		if target := n.Child(0); target != nil && target.Kind == ast.Variable {
			c.globals[target.Value] = true
		}
	case ast.For:
		c.globals[n.Value] = true
	case ast.Try:
		if n.Value != "" {
			c.globals[n.Value] = true
		}
	}
	for _, child := range n.Children {
		c.hoistStmt(child)
	}
}
