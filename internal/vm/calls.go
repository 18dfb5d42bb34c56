package vm

import (
	"levython/internal/object"
	"levython/internal/optimizer"
	"levython/internal/value"
)

// call invokes the callee beneath argc arguments. caller is nil when the
// call comes from Go (RunFunction); pc is the CALL instruction's offset and
// selects the inline cache.
func (vm *VM) call(caller *frame, pc, argc int) error {
	callee := vm.stack[vm.sp-1-argc]

	var ic *InlineCache
	var target *funcInfo
	if caller != nil && vm.cfg.Optimizer.InlineCaches {
		ic = caller.ci.caches.At(pc)
		target = ic.Lookup(callee)
	}
	if target == nil {
		fn, ok := vm.heap.Function(callee)
		if !ok {
			if callee.IsRef() && !vm.heap.Valid(callee) {
				return vm.fatal("invalid heap reference %#x", callee.AsRef())
			}
			return vm.runtimeError("Cannot call type: %s", vm.heap.TypeName(callee))
		}
		target = vm.funcInfo(fn)
		if ic != nil && ic.Update(callee, target) {
			vm.log.Debugf("call site %s@%d: %s (%s)", caller.chunk.Name, pc, ic.State, fn.Name)
		}
	}
	fn := target.fn
	vm.counters.calls++

	if argc != fn.Arity {
		return vm.runtimeError("Expected %d args, got %d", fn.Arity, argc)
	}

	if !target.nativeChecked {
		target.native, _ = vm.jit.Lookup(fn.Name, fn.Arity)
		target.nativeChecked = true
	}
	if target.native != nil {
		if r, ok := target.native.Call(vm.stack[vm.sp-1]); ok {
			vm.counters.nativeCalls++
			vm.sp -= argc + 1
			vm.push(r)
			return nil
		}
	}

	if vm.fc >= len(vm.frames) {
		return vm.fatal("Stack overflow: call depth limit %d exceeded", len(vm.frames))
	}
	extra := fn.NumLocals - argc
	if vm.sp+extra > len(vm.stack) {
		return vm.fatal("Stack overflow: value stack limit %d exceeded", len(vm.stack))
	}
	for i := 0; i < extra; i++ {
		vm.stack[vm.sp+i] = value.None
	}
	base := vm.sp - argc
	vm.sp += extra

	if vm.opt.Profiler.RecordCall(target.profile) {
		vm.promote(target)
	}

	fr := &vm.frames[vm.fc]
	*fr = frame{
		fn:          fn,
		info:        target,
		chunk:       fn.Chunk,
		base:        base,
		iterBase:    vm.nIters,
		handlerBase: vm.hc,
	}
	if target.profile.Tier == optimizer.TierOptimized {
		fr.chunk, fr.opt = target.version.Code, target.version
	}
	fr.ci = vm.chunkInfo(fr.chunk)
	vm.fc++
	return nil
}

// promote moves a hot function to its peephole version when it has one.
func (vm *VM) promote(fi *funcInfo) {
	v := vm.opt.Version(fi.fn.Chunk)
	if v == nil {
		return
	}
	fi.version = v
	fi.profile.Tier = optimizer.TierOptimized
	vm.log.Infof("function %s promoted: %d folds, %d shifts", fi.fn.Name, v.Folded, v.Shifts)
}

// Function returns the function object bound to a global, for callers that
// drive RunFunction.
func (vm *VM) Function(name string) (value.Value, *object.FunctionObj, bool) {
	v, ok := vm.Global(name)
	if !ok {
		return value.None, nil, false
	}
	fn, ok := vm.heap.Function(v)
	return v, fn, ok
}
