package vm

import (
	"levython/internal/optimizer"
	"levython/internal/value"
)

// binary pops two operands and applies a numeric operator. '+' with a
// string on either side concatenates display forms.
func (vm *VM) binary(op byte) error {
	b := vm.pop()
	a := vm.pop()

	if op == '+' && (vm.isString(a) || vm.isString(b)) {
		vm.push(vm.heap.Intern(vm.heap.Display(a) + vm.heap.Display(b)))
		return nil
	}

	r, status := value.Arith(op, a, b)
	switch status {
	case value.ArithOK:
		vm.push(r)
		return nil
	case value.ArithDivByZero:
		return vm.runtimeError("Division by zero.")
	case value.ArithModByZero:
		return vm.runtimeError("Modulo by zero.")
	}
	return vm.runtimeError("Unsupported operand types for '%c': %s, %s", op, vm.heap.Display(a), vm.heap.Display(b))
}

// compare pops two operands and pushes the result of an ordering operator.
// Strings order by content.
func (vm *VM) compare(op string) error {
	b := vm.pop()
	a := vm.pop()
	if r, ok := value.Compare(op, a, b); ok {
		vm.push(value.Bool(r))
		return nil
	}
	if sa, ok := vm.heap.String(a); ok {
		if sb, ok := vm.heap.String(b); ok {
			var r bool
			switch op {
			case "<":
				r = sa.Value < sb.Value
			case "<=":
				r = sa.Value <= sb.Value
			case ">":
				r = sa.Value > sb.Value
			case ">=":
				r = sa.Value >= sb.Value
			}
			vm.push(value.Bool(r))
			return nil
		}
	}
	return vm.runtimeError("Unsupported operand types for '%s': %s, %s", op, vm.heap.Display(a), vm.heap.Display(b))
}

func (vm *VM) isString(v value.Value) bool {
	_, ok := vm.heap.String(v)
	return ok
}

// shiftInt executes the peephole form of x * 2^shift. A non-integer operand
// or a product outside the boxed range leaves the optimized code: the frame
// continues in the original chunk at the INT that pushed 2^shift, with x
// still on the stack.
func (vm *VM) shiftInt(fr *frame, pc int, shift uint) error {
	x := vm.peek(0)
	g := shiftGuard(shift)
	if g.Check(x) {
		vm.stack[vm.sp-1] = value.Int(x.AsInt() << shift)
		return nil
	}
	if fr.opt == nil {
		// no original to return to; multiply generically
		vm.push(value.Int(1 << shift))
		return vm.binary('*')
	}
	return vm.deopt(fr, pc, "SHL_INT "+g.String()+" on "+vm.heap.TypeName(x))
}

// shiftGuard admits the integers whose product with 2^shift is still a
// boxed integer.
func shiftGuard(shift uint) optimizer.Guard {
	return optimizer.BoundsGuard(value.MinInt>>shift, value.MaxInt>>shift)
}

// deopt moves fr from its peephole version back to the original chunk at
// the instruction the optimized one at pc was derived from.
func (vm *VM) deopt(fr *frame, pc int, reason string) error {
	orig, ok := fr.opt.OriginalOffset(pc)
	if !ok {
		return vm.fatal("no original offset for %d in %s", pc, fr.chunk.Name)
	}
	site := optimizer.Site{Chunk: fr.opt.Original, Offset: orig}
	if vm.opt.Deopts.Deopt(site, reason) && fr.info != nil {
		fr.info.profile.Tier = optimizer.TierPinned
		vm.log.Infof("function %s pinned to its original bytecode", fr.info.fn.Name)
	}
	fr.chunk = fr.opt.Original
	fr.ci = vm.chunkInfo(fr.chunk)
	fr.opt = nil
	fr.ip = orig
	return nil
}
