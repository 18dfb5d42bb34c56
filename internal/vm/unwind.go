package vm

import (
	"fmt"

	"levython/internal/errors"
	"levython/internal/value"
)

// fatalPanic carries a FatalError out of deep helpers such as push.
type fatalPanic struct{ err *errors.LevyError }

// throw unwinds to the innermost try handler and resumes at its catch
// target with v pushed. It returns false when no handler is active.
func (vm *VM) throw(v value.Value) bool {
	if vm.hc == 0 {
		return false
	}
	vm.hc--
	h := vm.handlers[vm.hc]
	vm.fc = h.frames
	vm.nIters = h.iters
	vm.sp = h.sp

	fr := &vm.frames[vm.fc-1]
	fr.chunk, fr.ci, fr.opt = h.chunk, h.ci, h.opt
	fr.ip = h.catchIP
	vm.push(v)
	return true
}

// runtimeError raises a language-level error. It returns nil when a try
// block caught it, so the dispatch loop simply continues.
func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if vm.throw(vm.heap.Intern(msg)) {
		return nil
	}
	return vm.halt(errors.NewRuntimeError(msg))
}

func (vm *VM) fatal(format string, args ...any) error {
	return vm.halt(errors.NewFatalError(format, args...))
}

// halt attaches the location and call stack to err and resets the VM.
func (vm *VM) halt(err *errors.LevyError) error {
	for i := vm.fc - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		name := fr.chunk.Name
		if fr.fn != nil {
			name = fr.fn.Name
		}
		line := 0
		if fr.ip > 0 {
			line = fr.chunk.Line(fr.ip - 1)
		}
		if i == vm.fc-1 {
			err.At(name, line)
		}
		err.AddStackFrame(name, line)
	}
	vm.log.Debugf("halt: %s", err.Message)
	vm.reset()
	return err
}

func (vm *VM) recoverFatal(r any) error {
	fp, ok := r.(fatalPanic)
	if !ok {
		panic(r)
	}
	return vm.halt(fp.err)
}
