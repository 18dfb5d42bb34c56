package jit

import (
	"sort"

	"levython/internal/optimizer"
	"levython/internal/value"
)

// Kernel is one entry of the native menu. A call qualifies when the callee
// has exactly Name and Arity, the argument is an integer inside
// [Min, Max], and the result fits a boxed integer.
type Kernel struct {
	Name  string
	Arity int
	Min   int64
	Max   int64
	// Bool kernels return 0 or 1 and produce a boolean.
	Bool bool

	emit func(w *Writer)
	// Eval computes the same function in Go. It documents the contract the
	// machine code must meet and backs the tests.
	Eval func(n int64) int64
}

// Domain is the guard a boxed argument must pass before the native code
// runs.
func (k *Kernel) Domain() optimizer.Guard { return optimizer.BoundsGuard(k.Min, k.Max) }

// Assemble emits the kernel's machine code.
func (k *Kernel) Assemble() ([]byte, error) {
	w := NewWriter()
	k.emit(w)
	return w.Bytes()
}

type kernelKey struct {
	name  string
	arity int
}

var kernels = map[kernelKey]*Kernel{}

func register(k *Kernel) {
	kernels[kernelKey{k.Name, k.Arity}] = k
}

// Find returns the kernel registered under exactly name and arity.
func Find(name string, arity int) (*Kernel, bool) {
	k, ok := kernels[kernelKey{name, arity}]
	return k, ok
}

// Kernels lists the menu sorted by name.
func Kernels() []*Kernel {
	out := make([]*Kernel, 0, len(kernels))
	for _, k := range kernels {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func init() {
	register(&Kernel{Name: "fib", Arity: 1, Min: 0, Max: 90, emit: emitFib, Eval: fib})
	register(&Kernel{Name: "range_sum", Arity: 1, Min: value.MinInt, Max: 1 << 24, emit: emitRangeSum, Eval: rangeSum})
	register(&Kernel{Name: "is_prime", Arity: 1, Min: value.MinInt, Max: value.MaxInt, Bool: true, emit: emitIsPrime, Eval: isPrime})
	register(&Kernel{Name: "factorial", Arity: 1, Min: 0, Max: 20, emit: emitFactorial, Eval: factorial})
}

// fib(n) iterates a, b = b, a+b n times from (0, 1).
//
//	mov rcx, rax ; xor eax, eax ; mov rdx, 1
//	test rcx, rcx ; jle done
//	loop: mov rsi, rax ; add rsi, rdx ; mov rax, rdx ; mov rdx, rsi
//	      dec rcx ; jne loop
//	done: ret
func emitFib(w *Writer) {
	done := w.NewLabel()
	w.MovRegReg(RCX, RAX)
	w.ZeroReg(RAX)
	w.MovRegImm(RDX, 1)
	w.TestRegReg(RCX, RCX)
	w.Jcc(CcLE, done)
	loop := w.Here()
	w.MovRegReg(RSI, RAX)
	w.AluRegReg(AluAdd, RSI, RDX)
	w.MovRegReg(RAX, RDX)
	w.MovRegReg(RDX, RSI)
	w.DecReg(RCX)
	w.Jcc(CcNE, loop)
	w.Mark(done)
	w.Ret()
}

func fib(n int64) int64 {
	var a, b int64 = 0, 1
	for ; n > 0; n-- {
		a, b = b, a+b
	}
	return a
}

// range_sum(n) is 0+1+...+(n-1), or 0 for n <= 0.
func emitRangeSum(w *Writer) {
	zero := w.NewLabel()
	w.TestRegReg(RAX, RAX)
	w.Jcc(CcLE, zero)
	w.MovRegReg(RCX, RAX)
	w.DecReg(RCX)
	w.ImulRegReg(RAX, RCX)
	w.SarRegImm(RAX, 1)
	w.Ret()
	w.Mark(zero)
	w.ZeroReg(RAX)
	w.Ret()
}

func rangeSum(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return n * (n - 1) / 2
}

// is_prime(n) by trial division over odd divisors up to sqrt(n).
func emitIsPrime(w *Writer) {
	yes, no := w.NewLabel(), w.NewLabel()
	w.MovRegReg(RCX, RAX)
	w.AluRegImm(AluCmp, RCX, 2)
	w.Jcc(CcL, no)
	w.AluRegImm(AluCmp, RCX, 4)
	w.Jcc(CcL, yes)
	w.AluRegImm(AluAnd, RAX, 1)
	w.Jcc(CcE, no)
	w.MovRegImm(RSI, 3)

	loop := w.Here()
	w.MovRegReg(RAX, RSI)
	w.ImulRegReg(RAX, RSI)
	w.AluRegReg(AluCmp, RAX, RCX)
	w.Jcc(CcG, yes)
	w.MovRegReg(RAX, RCX)
	w.Cqo()
	w.IdivReg(RSI)
	w.TestRegReg(RDX, RDX)
	w.Jcc(CcE, no)
	w.AluRegImm(AluAdd, RSI, 2)
	w.Jmp(loop)

	w.Mark(yes)
	w.MovRegImm(RAX, 1)
	w.Ret()
	w.Mark(no)
	w.ZeroReg(RAX)
	w.Ret()
}

func isPrime(n int64) int64 {
	if n < 2 {
		return 0
	}
	if n < 4 {
		return 1
	}
	if n%2 == 0 {
		return 0
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return 0
		}
	}
	return 1
}

// factorial(n) multiplies n, n-1, ..., 2 into 1.
func emitFactorial(w *Writer) {
	done := w.NewLabel()
	w.MovRegReg(RCX, RAX)
	w.MovRegImm(RAX, 1)
	loop := w.Here()
	w.AluRegImm(AluCmp, RCX, 1)
	w.Jcc(CcLE, done)
	w.ImulRegReg(RAX, RCX)
	w.DecReg(RCX)
	w.Jmp(loop)
	w.Mark(done)
	w.Ret()
}

func factorial(n int64) int64 {
	r := int64(1)
	for ; n > 1; n-- {
		r *= n
	}
	return r
}
