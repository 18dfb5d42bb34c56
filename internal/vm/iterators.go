package vm

import (
	"levython/internal/object"
	"levython/internal/value"
)

// iterator is one slot of the iterator stack. A list is walked by index and
// sees appends made during the loop; a range is walked lazily.
type iterator struct {
	source value.Value
	list   *object.ListObj // nil for ranges
	cursor int64           // next index, or next range value
	stop   int64
	step   int64
}

// remaining is the number of elements the iterator has not yielded yet.
func (it *iterator) remaining() int64 {
	if it.list != nil {
		if n := int64(len(it.list.Elements)) - it.cursor; n > 0 {
			return n
		}
		return 0
	}
	return object.RangeCount(it.cursor, it.stop, it.step)
}

func (vm *VM) pushIterator(it iterator) error {
	if vm.nIters >= len(vm.iters) {
		return vm.fatal("Iterator stack overflow: limit %d exceeded", len(vm.iters))
	}
	vm.iters[vm.nIters] = it
	vm.nIters++
	return nil
}

func (vm *VM) iterInit() error {
	src := vm.pop()
	if l, ok := vm.heap.List(src); ok {
		return vm.pushIterator(iterator{source: src, list: l})
	}
	if r, ok := vm.heap.Range(src); ok {
		return vm.pushIterator(iterator{source: src, cursor: r.Start, stop: r.Stop, step: r.Step})
	}
	return vm.runtimeError("For loop requires an iterable (list or range).")
}

func (vm *VM) repeatInit() error {
	count := vm.pop()
	if !count.IsInt() {
		return vm.runtimeError("Repeat requires an integer count.")
	}
	return vm.pushIterator(iterator{source: count, stop: count.AsInt(), step: 1})
}

// iterNext pushes the next element of the top iterator. It returns false
// when the iterator is exhausted.
func (vm *VM) iterNext() bool {
	it := &vm.iters[vm.nIters-1]
	if it.list != nil {
		if it.cursor >= int64(len(it.list.Elements)) {
			return false
		}
		vm.push(it.list.Elements[it.cursor])
		it.cursor++
		return true
	}
	if (it.step > 0 && it.cursor >= it.stop) || (it.step < 0 && it.cursor <= it.stop) {
		return false
	}
	vm.push(value.Int(it.cursor))
	it.cursor += it.step
	return true
}
