package vm

import (
	"levython/internal/bytecode"
	"levython/internal/value"
)

// execute runs until a RETURN brings the frame count down to stop.
func (vm *VM) execute(stop int) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = value.None, vm.recoverFatal(r)
		}
	}()

	for {
		fr := &vm.frames[vm.fc-1]
		code := fr.chunk.Code
		if fr.ip >= len(code) {
			return value.None, vm.fatal("instruction pointer %d out of bounds in %s", fr.ip, fr.chunk.Name)
		}
		pc := fr.ip
		op := bytecode.OpCode(code[pc])
		fr.ip++
		vm.counters.instructions++

		switch op {
		case bytecode.OpConstant:
			idx := readShort(code, fr.ip)
			fr.ip += 2
			vm.push(fr.chunk.Constants[idx])

		case bytecode.OpInt:
			n := int16(readShort(code, fr.ip))
			fr.ip += 2
			vm.push(value.Int(int64(n)))

		case bytecode.OpNone:
			vm.push(value.None)
		case bytecode.OpTrue:
			vm.push(value.True)
		case bytecode.OpFalse:
			vm.push(value.False)

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpDup:
			vm.push(vm.peek(0))

		case bytecode.OpGetLocal:
			slot := int(code[fr.ip])
			fr.ip++
			vm.push(vm.stack[fr.base+slot])

		case bytecode.OpSetLocal:
			slot := int(code[fr.ip])
			fr.ip++
			v := vm.pop()
			vm.stack[fr.base+slot] = v
			vm.lastStore = v

		case bytecode.OpGetGlobal:
			name := fr.chunk.Constants[readShort(code, fr.ip)]
			fr.ip += 2
			v, ok := vm.globals[name]
			if !ok {
				if err := vm.runtimeError("Undefined variable: %s", vm.heap.Display(name)); err != nil {
					return value.None, err
				}
				continue
			}
			vm.push(v)

		case bytecode.OpSetGlobal:
			name := fr.chunk.Constants[readShort(code, fr.ip)]
			fr.ip += 2
			v := vm.pop()
			vm.globals[name] = v
			vm.lastStore = v

		case bytecode.OpAdd:
			a, b := vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			if a.IsInt() && b.IsInt() {
				vm.sp--
				vm.stack[vm.sp-1] = value.Number(a.AsInt() + b.AsInt())
				continue
			}
			if err := vm.binary('+'); err != nil {
				return value.None, err
			}

		case bytecode.OpSub:
			a, b := vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			if a.IsInt() && b.IsInt() {
				vm.sp--
				vm.stack[vm.sp-1] = value.Number(a.AsInt() - b.AsInt())
				continue
			}
			if err := vm.binary('-'); err != nil {
				return value.None, err
			}

		case bytecode.OpMul:
			if err := vm.binary('*'); err != nil {
				return value.None, err
			}
		case bytecode.OpDiv:
			if err := vm.binary('/'); err != nil {
				return value.None, err
			}
		case bytecode.OpMod:
			if err := vm.binary('%'); err != nil {
				return value.None, err
			}
		case bytecode.OpPow:
			if err := vm.binary('^'); err != nil {
				return value.None, err
			}

		case bytecode.OpNegate:
			v := vm.peek(0)
			switch {
			case v.IsInt():
				vm.stack[vm.sp-1] = value.Number(-v.AsInt())
			case v.IsFloat():
				vm.stack[vm.sp-1] = value.Float(-v.AsFloat())
			default:
				vm.pop()
				if err := vm.runtimeError("Operand for unary '-' must be number."); err != nil {
					return value.None, err
				}
			}

		case bytecode.OpNot:
			vm.stack[vm.sp-1] = value.Bool(!vm.stack[vm.sp-1].Truthy())

		case bytecode.OpAnd:
			b := vm.pop()
			if vm.peek(0).Truthy() {
				vm.stack[vm.sp-1] = b
			}

		case bytecode.OpOr:
			b := vm.pop()
			if !vm.peek(0).Truthy() {
				vm.stack[vm.sp-1] = b
			}

		case bytecode.OpShlInt:
			shift := uint(code[fr.ip])
			fr.ip++
			if err := vm.shiftInt(fr, pc, shift); err != nil {
				return value.None, err
			}

		case bytecode.OpEqual:
			b := vm.pop()
			vm.stack[vm.sp-1] = value.Bool(value.Equal(vm.stack[vm.sp-1], b))

		case bytecode.OpNotEqual:
			b := vm.pop()
			vm.stack[vm.sp-1] = value.Bool(!value.Equal(vm.stack[vm.sp-1], b))

		case bytecode.OpLess:
			a, b := vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			if a.IsInt() && b.IsInt() {
				vm.sp--
				vm.stack[vm.sp-1] = value.Bool(a.AsInt() < b.AsInt())
				continue
			}
			if err := vm.compare("<"); err != nil {
				return value.None, err
			}
		case bytecode.OpLessEqual:
			if err := vm.compare("<="); err != nil {
				return value.None, err
			}
		case bytecode.OpGreater:
			if err := vm.compare(">"); err != nil {
				return value.None, err
			}
		case bytecode.OpGreaterEqual:
			if err := vm.compare(">="); err != nil {
				return value.None, err
			}

		case bytecode.OpJump:
			fr.ip += 2 + readShort(code, fr.ip)

		case bytecode.OpJumpIfFalse:
			offset := readShort(code, fr.ip)
			fr.ip += 2
			if !vm.pop().Truthy() {
				fr.ip += offset
			}

		case bytecode.OpLoop:
			offset := readShort(code, fr.ip)
			fr.ip += 2
			if vm.closeLoop(fr, pc) {
				continue
			}
			fr.ip -= offset

		case bytecode.OpCall:
			argc := int(code[fr.ip])
			fr.ip++
			if err := vm.call(fr, pc, argc); err != nil {
				return value.None, err
			}

		case bytecode.OpReturn:
			result := vm.pop()
			vm.sp = fr.base - 1
			vm.nIters = fr.iterBase
			vm.hc = fr.handlerBase
			vm.fc--
			if vm.fc == stop {
				return result, nil
			}
			vm.push(result)

		case bytecode.OpBuildList:
			n := readShort(code, fr.ip)
			fr.ip += 2
			vm.buildList(n)

		case bytecode.OpIndex:
			if err := vm.index(); err != nil {
				return value.None, err
			}
		case bytecode.OpSetIndex:
			if err := vm.setIndex(); err != nil {
				return value.None, err
			}

		case bytecode.OpIterInit:
			if err := vm.iterInit(); err != nil {
				return value.None, err
			}
		case bytecode.OpRepeatInit:
			if err := vm.repeatInit(); err != nil {
				return value.None, err
			}
		case bytecode.OpIterNext:
			offset := readShort(code, fr.ip)
			fr.ip += 2
			if vm.nIters <= fr.iterBase {
				return value.None, vm.fatal("ITER_NEXT without an iterator at %d", pc)
			}
			if !vm.iterNext() {
				vm.nIters--
				fr.ip += offset
			}
		case bytecode.OpIterEnd:
			if vm.nIters <= fr.iterBase {
				return value.None, vm.fatal("ITER_END without an iterator at %d", pc)
			}
			vm.nIters--

		case bytecode.OpTry:
			offset := readShort(code, fr.ip)
			fr.ip += 2
			if vm.hc >= len(vm.handlers) {
				return value.None, vm.fatal("Handler stack overflow: limit %d exceeded", len(vm.handlers))
			}
			vm.handlers[vm.hc] = handler{
				catchIP: fr.ip + offset,
				sp:      vm.sp,
				frames:  vm.fc,
				iters:   vm.nIters,
				chunk:   fr.chunk,
				ci:      fr.ci,
				opt:     fr.opt,
			}
			vm.hc++

		case bytecode.OpCatch:
			if vm.hc <= fr.handlerBase {
				return value.None, vm.fatal("CATCH without a handler at %d", pc)
			}
			vm.hc--

		case bytecode.OpThrow:
			v := vm.pop()
			if !vm.throw(v) {
				return value.None, vm.uncaught(v)
			}

		case bytecode.OpSay:
			vm.say()
		case bytecode.OpAsk:
			argc := int(code[fr.ip])
			fr.ip++
			if err := vm.ask(argc); err != nil {
				return value.None, err
			}
		case bytecode.OpLen:
			if err := vm.length(); err != nil {
				return value.None, err
			}
		case bytecode.OpRange:
			argc := int(code[fr.ip])
			fr.ip++
			if err := vm.makeRange(argc); err != nil {
				return value.None, err
			}
		case bytecode.OpType:
			vm.stack[vm.sp-1] = vm.heap.Intern(vm.heap.TypeName(vm.stack[vm.sp-1]))
		case bytecode.OpToInt:
			if err := vm.toInt(); err != nil {
				return value.None, err
			}
		case bytecode.OpToFloat:
			if err := vm.toFloat(); err != nil {
				return value.None, err
			}
		case bytecode.OpToStr:
			vm.stack[vm.sp-1] = vm.heap.Intern(vm.heap.Display(vm.stack[vm.sp-1]))
		case bytecode.OpAppend:
			if err := vm.appendList(); err != nil {
				return value.None, err
			}
		case bytecode.OpArityError:
			id, argc := int(code[fr.ip]), int(code[fr.ip+1])
			fr.ip += 2
			vm.sp -= argc
			if err := vm.runtimeError("%s", arityMessage(id)); err != nil {
				return value.None, err
			}

		case bytecode.OpSpawn, bytecode.OpJoin, bytecode.OpChanSend, bytecode.OpChanRecv, bytecode.OpAtomicAdd:
			vm.notImplemented(op)

		default:
			return value.None, vm.fatal("invalid opcode %d at %d in %s", byte(op), pc, fr.chunk.Name)
		}
	}
}
