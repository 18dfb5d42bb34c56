package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

// LLVMIR renders the kernel as an LLVM IR module with one i64 -> i64
// function. It is a readable reference for the hand-written machine code,
// not an input to any compiler.
func (k *Kernel) LLVMIR() (string, error) {
	build, ok := irBuilders[k.Name]
	if !ok {
		return "", errors.Errorf("jit: no IR for %s", k.Name)
	}
	m := ir.NewModule()
	n := ir.NewParam("n", types.I64)
	f := m.NewFunc(k.Name, types.I64, n)
	build(f, n)
	return m.String(), nil
}

func i64(v int64) *constant.Int { return constant.NewInt(types.I64, v) }

var irBuilders = map[string]func(f *ir.Func, n *ir.Param){
	"fib":       irFib,
	"range_sum": irRangeSum,
	"is_prime":  irIsPrime,
	"factorial": irFactorial,
}

func irFib(f *ir.Func, n *ir.Param) {
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	done := f.NewBlock("done")

	entry.NewCondBr(entry.NewICmp(enum.IPredSLE, n, i64(0)), done, loop)

	i := loop.NewPhi(ir.NewIncoming(n, entry))
	a := loop.NewPhi(ir.NewIncoming(i64(0), entry))
	b := loop.NewPhi(ir.NewIncoming(i64(1), entry))
	t := loop.NewAdd(a, b)
	next := loop.NewSub(i, i64(1))
	i.Incs = append(i.Incs, ir.NewIncoming(next, loop))
	a.Incs = append(a.Incs, ir.NewIncoming(b, loop))
	b.Incs = append(b.Incs, ir.NewIncoming(t, loop))
	loop.NewCondBr(loop.NewICmp(enum.IPredSGT, next, i64(0)), loop, done)

	done.NewRet(done.NewPhi(ir.NewIncoming(i64(0), entry), ir.NewIncoming(b, loop)))
}

func irRangeSum(f *ir.Func, n *ir.Param) {
	entry := f.NewBlock("entry")
	body := f.NewBlock("body")
	zero := f.NewBlock("zero")

	entry.NewCondBr(entry.NewICmp(enum.IPredSLE, n, i64(0)), zero, body)
	product := body.NewMul(n, body.NewSub(n, i64(1)))
	body.NewRet(body.NewAShr(product, i64(1)))
	zero.NewRet(i64(0))
}

func irIsPrime(f *ir.Func, n *ir.Param) {
	entry := f.NewBlock("entry")
	small := f.NewBlock("small")
	even := f.NewBlock("even")
	loop := f.NewBlock("loop")
	divide := f.NewBlock("divide")
	next := f.NewBlock("next")
	yes := f.NewBlock("yes")
	no := f.NewBlock("no")

	entry.NewCondBr(entry.NewICmp(enum.IPredSLT, n, i64(2)), no, small)
	small.NewCondBr(small.NewICmp(enum.IPredSLT, n, i64(4)), yes, even)
	even.NewCondBr(even.NewICmp(enum.IPredEQ, even.NewSRem(n, i64(2)), i64(0)), no, loop)

	i := loop.NewPhi(ir.NewIncoming(i64(3), even))
	square := loop.NewMul(i, i)
	loop.NewCondBr(loop.NewICmp(enum.IPredSGT, square, n), yes, divide)

	divide.NewCondBr(divide.NewICmp(enum.IPredEQ, divide.NewSRem(n, i), i64(0)), no, next)

	step := next.NewAdd(i, i64(2))
	i.Incs = append(i.Incs, ir.NewIncoming(step, next))
	next.NewBr(loop)

	yes.NewRet(i64(1))
	no.NewRet(i64(0))
}

func irFactorial(f *ir.Func, n *ir.Param) {
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	done := f.NewBlock("done")

	entry.NewBr(loop)
	k := loop.NewPhi(ir.NewIncoming(n, entry))
	acc := loop.NewPhi(ir.NewIncoming(i64(1), entry))
	loop.NewCondBr(loop.NewICmp(enum.IPredSGT, k, i64(1)), body, done)

	product := body.NewMul(acc, k)
	dec := body.NewSub(k, i64(1))
	k.Incs = append(k.Incs, ir.NewIncoming(dec, body))
	acc.Incs = append(acc.Incs, ir.NewIncoming(product, body))
	body.NewBr(loop)

	done.NewRet(acc)
}
