package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"levython/internal/bytecode"
	"levython/internal/errors"
	"levython/internal/value"
)

var arityMessages = [...]string{
	bytecode.BuiltinSay:    "say() expects 1 argument.",
	bytecode.BuiltinAsk:    "ask() expects 0 or 1 argument.",
	bytecode.BuiltinLen:    "len() expects 1 argument.",
	bytecode.BuiltinRange:  "range() expects 1, 2, or 3 arguments.",
	bytecode.BuiltinType:   "type() expects 1 argument.",
	bytecode.BuiltinInt:    "int() expects 1 argument.",
	bytecode.BuiltinFloat:  "float() expects 1 argument.",
	bytecode.BuiltinStr:    "str() expects 1 argument.",
	bytecode.BuiltinAppend: "append() expects 2 arguments.",
}

func arityMessage(id int) string {
	if id >= 0 && id < len(arityMessages) {
		return arityMessages[id]
	}
	return "Wrong number of arguments."
}

func (vm *VM) say() {
	fmt.Fprintln(vm.out, vm.heap.Display(vm.stack[vm.sp-1]))
	vm.stack[vm.sp-1] = value.None
}

func (vm *VM) ask(argc int) error {
	if argc == 1 {
		prompt, ok := vm.heap.String(vm.pop())
		if !ok {
			return vm.runtimeError("ask() prompt must be a string.")
		}
		fmt.Fprint(vm.out, prompt.Value)
	}
	line, err := vm.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return vm.runtimeError("ask() cannot read input: %s", err)
	}
	vm.push(vm.heap.Intern(strings.TrimRight(line, "\r\n")))
	return nil
}

func (vm *VM) length() error {
	v := vm.pop()
	if s, ok := vm.heap.String(v); ok {
		vm.push(value.Int(int64(len(s.Value))))
		return nil
	}
	if l, ok := vm.heap.List(v); ok {
		vm.push(value.Int(int64(len(l.Elements))))
		return nil
	}
	if r, ok := vm.heap.Range(v); ok {
		vm.push(value.Number(r.Len()))
		return nil
	}
	return vm.runtimeError("len() not supported for type %s", vm.heap.TypeName(v))
}

// makeRange pops 1 to 3 integer arguments: stop, start stop, or start stop
// step.
func (vm *VM) makeRange(argc int) error {
	var args [3]int64
	ok := true
	for i := argc - 1; i >= 0; i-- {
		v := vm.pop()
		if !v.IsInt() {
			ok = false
		}
		args[i] = v.AsInt()
	}
	if !ok {
		return vm.runtimeError("range() requires integer arguments.")
	}
	start, stop, step := int64(0), int64(0), int64(1)
	switch argc {
	case 1:
		stop = args[0]
	case 2:
		start, stop = args[0], args[1]
	case 3:
		start, stop, step = args[0], args[1], args[2]
		if step == 0 {
			return vm.runtimeError("range() step cannot be zero.")
		}
	default:
		return vm.runtimeError("%s", arityMessage(bytecode.BuiltinRange))
	}
	vm.push(vm.heap.NewRange(start, stop, step))
	return nil
}

func (vm *VM) toInt() error {
	v := vm.pop()
	switch {
	case v.IsInt():
		vm.push(v)
		return nil
	case v.IsFloat():
		f := math.Trunc(v.AsFloat())
		if f >= value.MinInt && f <= value.MaxInt {
			vm.push(value.Int(int64(f)))
			return nil
		}
		return vm.runtimeError("Cannot convert '%s' to integer.", vm.heap.Display(v))
	case v.IsBool():
		vm.push(value.Int(boolInt(v)))
		return nil
	}
	if s, ok := vm.heap.String(v); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s.Value), 10, 64)
		if err != nil || !value.FitsInt(n) {
			return vm.runtimeError("Cannot convert '%s' to integer.", s.Value)
		}
		vm.push(value.Int(n))
		return nil
	}
	return vm.runtimeError("Cannot convert type %s to integer.", vm.heap.TypeName(v))
}

func (vm *VM) toFloat() error {
	v := vm.pop()
	switch {
	case v.IsFloat():
		vm.push(v)
		return nil
	case v.IsInt():
		vm.push(value.Float(float64(v.AsInt())))
		return nil
	case v.IsBool():
		vm.push(value.Float(float64(boolInt(v))))
		return nil
	}
	if s, ok := vm.heap.String(v); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
		if err != nil {
			return vm.runtimeError("Cannot convert '%s' to float.", s.Value)
		}
		vm.push(value.Float(f))
		return nil
	}
	return vm.runtimeError("Cannot convert type %s to float.", vm.heap.TypeName(v))
}

func boolInt(v value.Value) int64 {
	if v == value.True {
		return 1
	}
	return 0
}

// appendList mutates the list in place and yields none.
func (vm *VM) appendList() error {
	item := vm.pop()
	target := vm.pop()
	l, ok := vm.heap.List(target)
	if !ok {
		return vm.runtimeError("First argument to append() must be a list.")
	}
	vm.heap.Append(l, item)
	vm.push(value.None)
	return nil
}

func (vm *VM) buildList(n int) {
	elements := make([]value.Value, n)
	copy(elements, vm.stack[vm.sp-n:vm.sp])
	vm.sp -= n
	vm.push(vm.heap.NewList(elements))
}

func (vm *VM) index() error {
	idx := vm.pop()
	target := vm.pop()
	if !idx.IsInt() {
		return vm.runtimeError("Index must be an integer, got %s.", vm.heap.TypeName(idx))
	}
	i := idx.AsInt()
	if l, ok := vm.heap.List(target); ok {
		if i < 0 || i >= int64(len(l.Elements)) {
			return vm.runtimeError("Index out of range.")
		}
		vm.push(l.Elements[i])
		return nil
	}
	if s, ok := vm.heap.String(target); ok {
		if i < 0 || i >= int64(len(s.Value)) {
			return vm.runtimeError("Index out of range.")
		}
		vm.push(vm.heap.Intern(s.Value[i : i+1]))
		return nil
	}
	if r, ok := vm.heap.Range(target); ok {
		if i < 0 || i >= r.Len() {
			return vm.runtimeError("Index out of range.")
		}
		vm.push(value.Number(r.Start + i*r.Step))
		return nil
	}
	return vm.runtimeError("Cannot index type %s.", vm.heap.TypeName(target))
}

func (vm *VM) setIndex() error {
	item := vm.pop()
	idx := vm.pop()
	target := vm.pop()
	l, ok := vm.heap.List(target)
	if !ok || !idx.IsInt() {
		return vm.runtimeError("Invalid index type for assignment.")
	}
	i := idx.AsInt()
	if i < 0 || i >= int64(len(l.Elements)) {
		return vm.runtimeError("Index out of range.")
	}
	l.Elements[i] = item
	return nil
}

// notImplemented handles the concurrency opcodes. They have no stack effect.
func (vm *VM) notImplemented(op bytecode.OpCode) {
	name := strings.ToLower(op.String())
	vm.log.Warningf("%s is not implemented", name)
	fmt.Fprintf(vm.errOut, "%s: not implemented\n", name)
}

func (vm *VM) uncaught(v value.Value) error {
	return vm.halt(errors.NewRuntimeError("Uncaught error: " + vm.heap.Display(v)))
}
