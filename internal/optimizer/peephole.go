package optimizer

import (
	"math/bits"

	"levython/internal/bytecode"
	"levython/internal/value"

	"github.com/pkg/errors"
)

const maxPasses = 8

// Optimized is a peephole-rewritten copy of a chunk. The original is never
// modified; Origin maps instruction offsets of Code back into it so a failed
// guard can resume there.
type Optimized struct {
	Original *bytecode.Chunk
	Code     *bytecode.Chunk
	Origin   map[int]int

	Folded  int
	Shifts  int
	Removed int
}

// OriginalOffset returns the offset in Original an instruction of Code was
// derived from.
func (o *Optimized) OriginalOffset(offset int) (int, bool) {
	off, ok := o.Origin[offset]
	return off, ok
}

// Changed reports whether any rewrite applied.
func (o *Optimized) Changed() bool { return o.Folded+o.Shifts+o.Removed > 0 }

// Optimize rewrites a copy of c until no rule applies:
//   - a numeric constant pair followed by an arithmetic or comparison
//     operator folds into one constant (never division or modulo by zero)
//   - INT 2^k ; MUL becomes the guarded SHL_INT k
//   - a JUMP to the next instruction is dropped
func Optimize(c *bytecode.Chunk) (*Optimized, error) {
	instrs, err := bytecode.Decode(c)
	if err != nil {
		return nil, errors.Wrapf(err, "optimize %s", c.Name)
	}
	work := c.Clone()
	o := &Optimized{Original: c}

	for pass := 0; pass < maxPasses; pass++ {
		next, changed := o.rewrite(work, instrs)
		instrs = next
		if !changed {
			break
		}
	}

	code, origin, err := bytecode.Encode(instrs, work)
	if err != nil {
		return nil, errors.Wrapf(err, "optimize %s", c.Name)
	}
	o.Code, o.Origin = code, origin
	if o.Changed() {
		log.Debugf("peephole %s: %d folded, %d shifts, %d jumps removed, %d -> %d bytes",
			c.Name, o.Folded, o.Shifts, o.Removed, c.Len(), code.Len())
	}
	return o, nil
}

func (o *Optimized) rewrite(work *bytecode.Chunk, in []bytecode.Instr) ([]bytecode.Instr, bool) {
	targeted := make([]bool, len(in)+1)
	for _, ins := range in {
		if ins.Op.IsJump() && ins.Target >= 0 {
			targeted[ins.Target] = true
		}
	}
	// free reports whether in[i+1 : i+n] can be merged into in[i].
	free := func(i, n int) bool {
		if i+n > len(in) {
			return false
		}
		for j := i + 1; j < i+n; j++ {
			if targeted[j] {
				return false
			}
		}
		return true
	}

	out := make([]bytecode.Instr, 0, len(in))
	remap := make([]int, len(in)+1)
	changed := false

	for i := 0; i < len(in); {
		if free(i, 3) {
			if folded, ok := fold(work, in[i], in[i+1], in[i+2]); ok {
				remap[i], remap[i+1], remap[i+2] = len(out), len(out), len(out)
				out = append(out, folded)
				o.Folded++
				changed = true
				i += 3
				continue
			}
		}
		// const const MUL is left for the folding rule on the next pass.
		afterConst := len(out) > 0 && !targeted[i] && isNumberConst(work, out[len(out)-1])
		if free(i, 2) && in[i+1].Op == bytecode.OpMul && !afterConst {
			if k, ok := shiftFor(work, in[i]); ok {
				remap[i], remap[i+1] = len(out), len(out)
				out = append(out, bytecode.Instr{Op: bytecode.OpShlInt, A: k, Offset: in[i].Offset, Line: in[i].Line})
				o.Shifts++
				changed = true
				i += 2
				continue
			}
		}
		if in[i].Op == bytecode.OpJump && in[i].Target == i+1 {
			remap[i] = len(out)
			o.Removed++
			changed = true
			i++
			continue
		}
		remap[i] = len(out)
		out = append(out, in[i])
		i++
	}
	remap[len(in)] = len(out)

	for i := range out {
		if out[i].Op.IsJump() && out[i].Target >= 0 {
			out[i].Target = remap[out[i].Target]
		}
	}
	return out, changed
}

type foldOp struct {
	sym     string
	compare bool
}

var foldable = map[bytecode.OpCode]foldOp{
	bytecode.OpAdd:          {"+", false},
	bytecode.OpSub:          {"-", false},
	bytecode.OpMul:          {"*", false},
	bytecode.OpDiv:          {"/", false},
	bytecode.OpMod:          {"%", false},
	bytecode.OpPow:          {"^", false},
	bytecode.OpEqual:        {"==", true},
	bytecode.OpNotEqual:     {"!=", true},
	bytecode.OpLess:         {"<", true},
	bytecode.OpLessEqual:    {"<=", true},
	bytecode.OpGreater:      {">", true},
	bytecode.OpGreaterEqual: {">=", true},
}

func fold(work *bytecode.Chunk, a, b, op bytecode.Instr) (bytecode.Instr, bool) {
	f, ok := foldable[op.Op]
	if !ok {
		return bytecode.Instr{}, false
	}
	x, ok := numberConst(work, a)
	if !ok {
		return bytecode.Instr{}, false
	}
	y, ok := numberConst(work, b)
	if !ok {
		return bytecode.Instr{}, false
	}

	result := bytecode.Instr{Offset: a.Offset, Line: a.Line, Target: -1}
	if !f.compare {
		v, status := value.Arith(f.sym[0], x, y)
		if status != value.ArithOK {
			return bytecode.Instr{}, false
		}
		if v.IsInt() && v.AsInt() >= -32768 && v.AsInt() <= 32767 {
			result.Op, result.A = bytecode.OpInt, int(v.AsInt())
			return result, true
		}
		idx := work.AddConstant(v)
		if idx > 0xFFFF {
			return bytecode.Instr{}, false
		}
		result.Op, result.A = bytecode.OpConstant, idx
		return result, true
	}

	truth, ok := value.Compare(f.sym, x, y)
	if !ok {
		return bytecode.Instr{}, false
	}
	result.Op = bytecode.OpFalse
	if truth {
		result.Op = bytecode.OpTrue
	}
	return result, true
}

func numberConst(c *bytecode.Chunk, in bytecode.Instr) (value.Value, bool) {
	switch in.Op {
	case bytecode.OpInt:
		return value.Int(int64(in.A)), true
	case bytecode.OpConstant:
		if in.A < len(c.Constants) && c.Constants[in.A].IsNumber() {
			return c.Constants[in.A], true
		}
	}
	return value.None, false
}

func isNumberConst(c *bytecode.Chunk, in bytecode.Instr) bool {
	_, ok := numberConst(c, in)
	return ok
}

// shiftFor returns k when in pushes the integer 2^k, k >= 1.
func shiftFor(c *bytecode.Chunk, in bytecode.Instr) (int, bool) {
	n, ok := intConst(c, in)
	if !ok || n < 2 || n&(n-1) != 0 {
		return 0, false
	}
	return bits.TrailingZeros64(uint64(n)), true
}
