package optimizer

import (
	"levython/internal/bytecode"
)

// Template is a loop shape the VM can finish in closed form.
type Template uint8

const (
	TemplateNone Template = iota
	// acc <- acc + v, v the loop variable
	TemplateSumVar
	// acc <- acc + k, k an integer constant
	TemplateSumConst
	// an inner constant-count loop whose body is TemplateSumConst
	TemplateNestedConst
)

func (t Template) String() string {
	switch t {
	case TemplateSumVar:
		return "sum-var"
	case TemplateSumConst:
		return "sum-const"
	case TemplateNestedConst:
		return "nested-const"
	}
	return "none"
}

// VarRef names a variable operand: a local slot or a global name constant.
type VarRef struct {
	Global bool
	Index  int
}

// LoopAnalysis describes a recognized iteration loop. Start is the offset of
// its ITER_NEXT and End the offset just past its closing LOOP.
type LoopAnalysis struct {
	Template Template
	Start    int
	End      int

	Acc    VarRef
	Var    VarRef
	HasVar bool
	K      int64

	InnerCount  int64
	InnerVar    VarRef
	HasInnerVar bool
}

// AnalyzeLoop matches the loop closed by the LOOP instruction at loopOffset
// against the known templates. It returns nil when the body has any other
// shape.
func AnalyzeLoop(c *bytecode.Chunk, loopOffset int) *LoopAnalysis {
	if loopOffset < 0 || loopOffset+3 > len(c.Code) || bytecode.OpCode(c.Code[loopOffset]) != bytecode.OpLoop {
		return nil
	}
	end := loopOffset + 3
	start := end - int(c.ReadShort(loopOffset+1))
	if start < 0 || start >= loopOffset {
		return nil
	}
	ins, err := bytecode.DecodeRange(c, start, end)
	if err != nil {
		return nil
	}

	if a := matchSum(c, ins); a != nil {
		a.Start, a.End = start, end
		return a
	}
	if a := matchNested(c, ins); a != nil {
		a.Start, a.End = start, end
		return a
	}
	return nil
}

// matchSum recognizes
//
//	ITER_NEXT exit ; SET v | POP ; GET acc ; GET v | INT k ; ADD ; SET acc ; LOOP
//
// with the two operands of ADD in either order.
func matchSum(c *bytecode.Chunk, ins []bytecode.Instr) *LoopAnalysis {
	if len(ins) != 7 {
		return nil
	}
	if ins[0].Op != bytecode.OpIterNext || ins[0].Target != len(ins) {
		return nil
	}
	if ins[6].Op != bytecode.OpLoop || ins[6].Target != 0 || ins[4].Op != bytecode.OpAdd {
		return nil
	}
	acc, ok := setRef(ins[5])
	if !ok {
		return nil
	}

	a := &LoopAnalysis{Acc: acc}
	if ins[1].Op != bytecode.OpPop {
		v, ok := setRef(ins[1])
		if !ok || v == acc {
			return nil
		}
		a.Var, a.HasVar = v, true
	}

	x, y := ins[2], ins[3]
	if r, ok := getRef(y); ok && r == acc {
		x, y = y, x
	}
	if r, ok := getRef(x); !ok || r != acc {
		return nil
	}
	if k, ok := intConst(c, y); ok {
		a.Template, a.K = TemplateSumConst, k
		return a
	}
	if r, ok := getRef(y); ok && a.HasVar && r == a.Var {
		a.Template = TemplateSumVar
		return a
	}
	return nil
}

// matchNested recognizes an outer loop whose whole body is a constant-count
// inner loop of the sum-const shape:
//
//	ITER_NEXT exit ; SET v | POP ; INT c ; (RANGE 1 ; ITER_INIT | REPEAT_INIT)
//	<sum-const inner loop> ; LOOP
func matchNested(c *bytecode.Chunk, ins []bytecode.Instr) *LoopAnalysis {
	if len(ins) < 12 {
		return nil
	}
	last := len(ins) - 1
	if ins[0].Op != bytecode.OpIterNext || ins[0].Target != len(ins) {
		return nil
	}
	if ins[last].Op != bytecode.OpLoop || ins[last].Target != 0 {
		return nil
	}

	a := &LoopAnalysis{Template: TemplateNestedConst}
	if ins[1].Op != bytecode.OpPop {
		v, ok := setRef(ins[1])
		if !ok {
			return nil
		}
		a.Var, a.HasVar = v, true
	}
	count, ok := intConst(c, ins[2])
	if !ok {
		return nil
	}
	a.InnerCount = count

	innerStart := 0
	switch {
	case ins[3].Op == bytecode.OpRepeatInit:
		innerStart = 4
	case ins[3].Op == bytecode.OpRange && ins[3].A == 1 && ins[4].Op == bytecode.OpIterInit:
		innerStart = 5
	default:
		return nil
	}
	if last-innerStart != 7 {
		return nil
	}

	inner := make([]bytecode.Instr, 7)
	for i := range inner {
		in := ins[innerStart+i]
		if in.Op.IsJump() {
			in.Target -= innerStart
		}
		inner[i] = in
	}
	sum := matchSum(c, inner)
	if sum == nil || sum.Template != TemplateSumConst {
		return nil
	}
	a.Acc, a.K = sum.Acc, sum.K
	a.InnerVar, a.HasInnerVar = sum.Var, sum.HasVar
	if a.HasVar && (a.Var == a.Acc || (a.HasInnerVar && a.Var == a.InnerVar)) {
		return nil
	}
	return a
}

func getRef(in bytecode.Instr) (VarRef, bool) {
	switch in.Op {
	case bytecode.OpGetLocal:
		return VarRef{Index: in.A}, true
	case bytecode.OpGetGlobal:
		return VarRef{Global: true, Index: in.A}, true
	}
	return VarRef{}, false
}

func setRef(in bytecode.Instr) (VarRef, bool) {
	switch in.Op {
	case bytecode.OpSetLocal:
		return VarRef{Index: in.A}, true
	case bytecode.OpSetGlobal:
		return VarRef{Global: true, Index: in.A}, true
	}
	return VarRef{}, false
}

func intConst(c *bytecode.Chunk, in bytecode.Instr) (int64, bool) {
	switch in.Op {
	case bytecode.OpInt:
		return int64(in.A), true
	case bytecode.OpConstant:
		if in.A < len(c.Constants) && c.Constants[in.A].IsInt() {
			return c.Constants[in.A].AsInt(), true
		}
	}
	return 0, false
}
