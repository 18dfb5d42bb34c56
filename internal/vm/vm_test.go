package vm

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"levython/internal/ast"
	"levython/internal/bytecode"
	"levython/internal/compiler"
	"levython/internal/config"
	"levython/internal/errors"
	"levython/internal/jit"
	"levython/internal/object"
	"levython/internal/value"

	"github.com/stretchr/testify/require"
)

type harness struct {
	vm     *VM
	chunk  *bytecode.Chunk
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func compile(t *testing.T, cfg *config.Config, prog *ast.Node, opts ...Option) *harness {
	t.Helper()
	heap := object.NewHeap()
	chunk, err := compiler.New(heap).Compile(prog)
	require.NoError(t, err)

	h := &harness{chunk: chunk, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	opts = append([]Option{WithOutput(h.out), WithErrorOutput(h.errOut)}, opts...)
	h.vm = New(heap, cfg, opts...)
	t.Cleanup(func() { h.vm.Close() })
	return h
}

func (h *harness) run(t *testing.T) (value.Value, error) {
	t.Helper()
	return h.vm.Run(h.chunk)
}

func (h *harness) mustRun(t *testing.T) string {
	t.Helper()
	_, err := h.vm.Run(h.chunk)
	require.NoError(t, err)
	return h.out.String()
}

func (h *harness) global(t *testing.T, name string) value.Value {
	t.Helper()
	v, ok := h.vm.Global(name)
	require.True(t, ok, "global %s not set", name)
	return v
}

func configs() map[string]*config.Config {
	return map[string]*config.Config{
		"default": config.Default(),
		"naive":   config.Naive(),
	}
}

func TestSayArithmetic(t *testing.T) {
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			h := compile(t, cfg, ast.Prog(
				ast.Set("a", ast.Bin("+", ast.Int(2), ast.Int(3))),
				ast.CallN("say", ast.Var("a")),
			))
			require.Equal(t, "5\n", h.mustRun(t))
		})
	}
}

func rangeSum(n int64) *ast.Node {
	return ast.Prog(
		ast.Set("total", ast.Int(0)),
		ast.ForIn("i", ast.CallN("range", ast.Int(n)),
			ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Var("i"))),
		),
	)
}

func TestRangeSum(t *testing.T) {
	sizes := []int64{}
	for n := int64(0); n <= 200; n++ {
		sizes = append(sizes, n)
	}
	sizes = append(sizes, 100000, 1000000)

	for _, super := range []bool{true, false} {
		cfg := config.Default()
		cfg.Optimizer.Superinstructions = super
		for _, n := range sizes {
			h := compile(t, cfg, rangeSum(n))
			h.mustRun(t)
			require.Equal(t, value.Int(n*(n-1)/2), h.global(t, "total"), "n=%d superinstructions=%v", n, super)
			if n > 0 {
				require.Equal(t, value.Int(n-1), h.global(t, "i"))
			}

			fired := h.vm.Stats().Superinstructions
			if super && n >= 2 {
				require.Equal(t, uint64(1), fired, "n=%d", n)
			} else {
				require.Zero(t, fired, "n=%d", n)
			}
		}
	}
}

func TestRangeSumInFunction(t *testing.T) {
	prog := ast.Prog(
		ast.Act("sum_to", []string{"n"},
			ast.Set("acc", ast.Int(0)),
			ast.ForIn("k", ast.CallN("range", ast.Int(1), ast.Var("n"), ast.Int(3)),
				ast.Set("acc", ast.Bin("+", ast.Var("k"), ast.Var("acc"))),
			),
			ast.Ret(ast.Var("acc")),
		),
		ast.CallN("say", ast.CallN("sum_to", ast.Int(1000))),
	)
	var want int64
	for k := int64(1); k < 1000; k += 3 {
		want += k
	}
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			h := compile(t, cfg, prog)
			require.Equal(t, strconv.FormatInt(want, 10)+"\n", h.mustRun(t))
		})
	}
}

func TestRepeatAndNestedLoops(t *testing.T) {
	prog := ast.Prog(
		ast.Set("count", ast.Int(0)),
		ast.RepeatN(ast.Int(1000), ast.Set("count", ast.Bin("+", ast.Var("count"), ast.Int(3)))),
		ast.Set("total", ast.Int(0)),
		ast.ForIn("i", ast.CallN("range", ast.Int(10)),
			ast.ForIn("j", ast.CallN("range", ast.Int(5)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Int(2))),
			),
		),
	)
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			h := compile(t, cfg, prog)
			h.mustRun(t)
			require.Equal(t, value.Int(3000), h.global(t, "count"))
			require.Equal(t, value.Int(100), h.global(t, "total"))
			require.Equal(t, value.Int(9), h.global(t, "i"))
			require.Equal(t, value.Int(4), h.global(t, "j"))
		})
	}
}

func TestSuperinstructionGuards(t *testing.T) {
	progs := map[string]*ast.Node{
		"float accumulator": ast.Prog(
			ast.Set("total", ast.Float(0.5)),
			ast.ForIn("i", ast.CallN("range", ast.Int(100)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Var("i"))),
			),
		),
		"near the integer limit": ast.Prog(
			ast.Set("total", ast.Int(value.MaxInt-1000)),
			ast.ForIn("i", ast.CallN("range", ast.Int(100)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Var("i"))),
			),
		),
		"list source": ast.Prog(
			ast.Set("total", ast.Int(0)),
			ast.ForIn("i", ast.ListOf(ast.Int(1), ast.Int(2), ast.Int(3)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Var("i"))),
			),
		),
	}
	for name, prog := range progs {
		t.Run(name, func(t *testing.T) {
			naive := compile(t, config.Naive(), prog)
			naive.mustRun(t)

			h := compile(t, config.Default(), prog)
			h.mustRun(t)
			require.Equal(t, naive.global(t, "total"), h.global(t, "total"))
			require.Zero(t, h.vm.Stats().Superinstructions)
			require.NotZero(t, h.vm.Stats().Optimizer.Deopts)
		})
	}
}

func TestLoopProfile(t *testing.T) {
	cfg := config.Naive()
	h := compile(t, cfg, rangeSum(100))
	h.mustRun(t)

	hot := h.vm.opt.Profiler.HotLoops()
	require.Len(t, hot, 1)
	require.Equal(t, uint64(100), hot[0].Count)
	require.Equal(t, "int", hot[0].Class.String())
}

func TestTryCatchDivisionByZero(t *testing.T) {
	prog := ast.Prog(
		ast.TryCatch(
			ast.Body(ast.Set("x", ast.Bin("/", ast.Int(1), ast.Int(0)))),
			"err",
			ast.Body(ast.CallN("say", ast.Var("err"))),
		),
		ast.CallN("say", ast.Str("after")),
	)
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			h := compile(t, cfg, prog)
			require.Equal(t, "Division by zero.\nafter\n", h.mustRun(t))
			require.Zero(t, h.vm.sp)
			require.Zero(t, h.vm.hc)
		})
	}
}

func TestTryRestoresDepths(t *testing.T) {
	prog := ast.Prog(
		ast.Act("risky", []string{"n"},
			ast.Ret(ast.Bin("%", ast.Var("n"), ast.Int(0))),
		),
		ast.Act("guarded", []string{},
			ast.Set("caught", ast.Int(0)),
			ast.ForIn("i", ast.CallN("range", ast.Int(3)),
				ast.TryCatch(
					ast.Body(ast.CallN("risky", ast.Var("i"))),
					"e",
					ast.Body(
						ast.CallN("say", ast.Var("e")),
						ast.Set("caught", ast.Bin("+", ast.Var("caught"), ast.Int(1))),
					),
				),
			),
			ast.Ret(ast.Var("caught")),
		),
		ast.CallN("say", ast.CallN("guarded")),
	)
	h := compile(t, config.Default(), prog)
	require.Equal(t, strings.Repeat("Modulo by zero.\n", 3)+"3\n", h.mustRun(t))
	require.Zero(t, h.vm.nIters)
}

func TestBreakInsideTry(t *testing.T) {
	prog := ast.Prog(
		ast.Set("n", ast.Int(0)),
		ast.ForIn("i", ast.CallN("range", ast.Int(10)),
			ast.TryCatch(
				ast.Body(
					ast.IfElse(ast.Bin("==", ast.Var("i"), ast.Int(4)), ast.Body(ast.BreakStmt()), nil),
					ast.Set("n", ast.Bin("+", ast.Var("n"), ast.Int(1))),
				),
				"",
				ast.Body(),
			),
		),
		ast.ThrowStmt(ast.Str("late")),
	)
	h := compile(t, config.Default(), prog)
	_, err := h.run(t)
	require.Error(t, err)
	require.Equal(t, "Uncaught error: late", err.(*errors.LevyError).Message)
	require.Equal(t, value.Int(4), h.global(t, "n"))
}

func TestUncaughtErrorHalts(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.CallN("say", ast.Str("before")),
		ast.At(2, ast.Set("x", ast.Bin("/", ast.Int(1), ast.Int(0)))),
		ast.CallN("say", ast.Str("never")),
	))
	_, err := h.run(t)
	require.Error(t, err)
	require.True(t, errors.IsRuntime(err))

	le := err.(*errors.LevyError)
	require.Equal(t, "Division by zero.", le.Message)
	require.Equal(t, 2, le.Location.Line)
	require.Equal(t, "before\n", h.out.String())
	require.Zero(t, h.vm.sp)
	require.Zero(t, h.vm.fc)

	// the VM stays usable
	_, err = h.run(t)
	require.Error(t, err)
}

func TestRuntimeErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		prog *ast.Node
		want string
	}{
		{"undefined variable", ast.Prog(ast.CallN("say", ast.Var("nope"))), "Undefined variable: nope"},
		{"operand types", ast.Prog(ast.Bin("-", ast.Str("a"), ast.Int(1))), "Unsupported operand types for '-': a, 1"},
		{"compare types", ast.Prog(ast.Bin("<", ast.Str("a"), ast.Int(1))), "Unsupported operand types for '<': a, 1"},
		{"unary minus", ast.Prog(ast.Neg(ast.Str("a"))), "Operand for unary '-' must be number."},
		{"index range", ast.Prog(ast.Idx(ast.ListOf(ast.Int(1)), ast.Int(5))), "Index out of range."},
		{"negative index", ast.Prog(ast.Idx(ast.ListOf(ast.Int(1)), ast.Int(-1))), "Index out of range."},
		{"set index range", ast.Prog(
			ast.Set("xs", ast.ListOf()),
			ast.SetIndex(ast.Var("xs"), ast.Int(0), ast.Int(1)),
		), "Index out of range."},
		{"set index type", ast.Prog(ast.SetIndex(ast.Str("abc"), ast.Int(0), ast.Int(1))), "Invalid index type for assignment."},
		{"range step", ast.Prog(ast.CallN("range", ast.Int(1), ast.Int(5), ast.Int(0))), "range() step cannot be zero."},
		{"range type", ast.Prog(ast.CallN("range", ast.Float(1.5))), "range() requires integer arguments."},
		{"int conversion", ast.Prog(ast.CallN("int", ast.Str("abc"))), "Cannot convert 'abc' to integer."},
		{"int of list", ast.Prog(ast.CallN("int", ast.ListOf())), "Cannot convert type list to integer."},
		{"float conversion", ast.Prog(ast.CallN("float", ast.Str("x"))), "Cannot convert 'x' to float."},
		{"append target", ast.Prog(ast.CallN("append", ast.Int(1), ast.Int(2))), "First argument to append() must be a list."},
		{"len type", ast.Prog(ast.CallN("len", ast.Int(3))), "len() not supported for type integer"},
		{"ask prompt", ast.Prog(ast.CallN("ask", ast.Int(3))), "ask() prompt must be a string."},
		{"repeat count", ast.Prog(ast.RepeatN(ast.Str("x"))), "Repeat requires an integer count."},
		{"for iterable", ast.Prog(ast.ForIn("i", ast.Int(3))), "For loop requires an iterable (list or range)."},
		{"arity", ast.Prog(
			ast.Act("f", []string{"a"}, ast.Ret(ast.Var("a"))),
			ast.CallN("f"),
		), "Expected 1 args, got 0"},
		{"call non-function", ast.Prog(
			ast.Set("x", ast.Int(3)),
			ast.CallN("x"),
		), "Cannot call type: integer"},
		{"builtin arity", ast.Prog(ast.CallN("say")), "say() expects 1 argument."},
		{"range arity", ast.Prog(ast.CallN("range")), "range() expects 1, 2, or 3 arguments."},
		{"uncaught throw", ast.Prog(ast.ThrowStmt(ast.Str("boom"))), "Uncaught error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := compile(t, config.Default(), tt.prog)
			_, err := h.run(t)
			require.Error(t, err)
			require.True(t, errors.IsRuntime(err), "%v", err)
			require.Equal(t, tt.want, err.(*errors.LevyError).Message)
		})
	}
}

func TestCaughtErrorValue(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.TryCatch(ast.Body(ast.CallN("say", ast.Var("nope"))), "e", ast.Body(ast.CallN("say", ast.Var("e")))),
		ast.TryCatch(ast.Body(ast.ThrowStmt(ast.ListOf(ast.Int(1), ast.Str("x")))), "e", ast.Body(ast.CallN("say", ast.Var("e")))),
	))
	require.Equal(t, "Undefined variable: nope\n[1, \"x\"]\n", h.mustRun(t))
}

func countdown(depth int64) *ast.Node {
	return ast.Prog(
		ast.Act("down", []string{"n"},
			ast.IfElse(ast.Bin(">", ast.Var("n"), ast.Int(0)),
				ast.Body(ast.Ret(ast.CallN("down", ast.Bin("-", ast.Var("n"), ast.Int(1))))),
				nil),
			ast.Ret(ast.Int(0)),
		),
		ast.TryCatch(
			ast.Body(ast.Set("r", ast.CallN("down", ast.Int(depth)))),
			"e",
			ast.Body(ast.Set("r", ast.Var("e"))),
		),
	)
}

func TestFrameLimit(t *testing.T) {
	cfg := config.Default()
	cfg.VM.MaxFrames = 64

	// the script frame plus down(62) .. down(0) fills all 64 frames
	h := compile(t, cfg, countdown(62))
	h.mustRun(t)
	require.Equal(t, value.Int(0), h.global(t, "r"))

	h = compile(t, cfg, countdown(63))
	_, err := h.run(t)
	require.Error(t, err)
	require.True(t, errors.IsFatal(err), "%v", err)
	require.Contains(t, err.Error(), "call depth limit 64")
	require.Zero(t, h.vm.sp)
	require.Zero(t, h.vm.fc)
}

func fibProgram() *ast.Node {
	return ast.Prog(
		ast.Act("fib", []string{"n"},
			ast.IfElse(ast.Bin("<", ast.Var("n"), ast.Int(2)), ast.Body(ast.Ret(ast.Var("n"))), nil),
			ast.Ret(ast.Bin("+",
				ast.CallN("fib", ast.Bin("-", ast.Var("n"), ast.Int(1))),
				ast.CallN("fib", ast.Bin("-", ast.Var("n"), ast.Int(2))),
			)),
		),
		ast.CallN("say", ast.CallN("fib", ast.Int(10))),
		ast.CallN("say", ast.CallN("fib", ast.Int(10))),
	)
}

func TestFib(t *testing.T) {
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			h := compile(t, cfg, fibProgram())
			require.Equal(t, "55\n55\n", h.mustRun(t))

			stats := h.vm.Stats()
			if cfg.JIT.Enabled && jit.Supported {
				require.Equal(t, uint64(2), stats.NativeCalls)
				require.Equal(t, 1, stats.JIT.Compiled)
			} else {
				require.Zero(t, stats.NativeCalls)
				require.Equal(t, uint64(2*177), stats.Calls)
			}
		})
	}
}

func TestFibOutsideKernelDomain(t *testing.T) {
	h := compile(t, config.Default(), fibProgram())
	h.mustRun(t)

	fnv, _, ok := h.vm.Function("fib")
	require.True(t, ok)
	r, err := h.vm.RunFunction(fnv, value.Float(6))
	require.NoError(t, err)
	require.Equal(t, "8.0", h.vm.heap.Display(r))
}

func TestAppend(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.Set("xs", ast.ListOf()),
		ast.ForIn("i", ast.CallN("range", ast.Int(1000)),
			ast.CallN("append", ast.Var("xs"), ast.Var("i")),
		),
		ast.CallN("say", ast.CallN("len", ast.Var("xs"))),
	))
	require.Equal(t, "1000\n", h.mustRun(t))

	l, ok := h.vm.heap.List(h.global(t, "xs"))
	require.True(t, ok)
	require.Len(t, l.Elements, 1000)
	for i, e := range l.Elements {
		require.Equal(t, value.Int(int64(i)), e)
	}
}

func TestBuiltins(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.CallN("say", ast.CallN("type", ast.Float(1.5))),
		ast.CallN("say", ast.Bin("+", ast.CallN("str", ast.Int(12)), ast.Str("!"))),
		ast.CallN("say", ast.Bin("+", ast.CallN("int", ast.Str(" 42 ")), ast.Int(1))),
		ast.CallN("say", ast.CallN("int", ast.Float(-2.7))),
		ast.CallN("say", ast.CallN("float", ast.Int(2))),
		ast.CallN("say", ast.Idx(ast.Str("abc"), ast.Int(1))),
		ast.CallN("say", ast.CallN("len", ast.CallN("range", ast.Int(0), ast.Int(10), ast.Int(3)))),
		ast.CallN("say", ast.Idx(ast.CallN("range", ast.Int(10), ast.Int(0), ast.Int(-2)), ast.Int(2))),
		ast.Set("xs", ast.ListOf(ast.Int(1), ast.Int(2))),
		ast.SetIndex(ast.Var("xs"), ast.Int(1), ast.Str("two")),
		ast.CallN("say", ast.Var("xs")),
		ast.CallN("say", ast.Bin("==", ast.Bin("+", ast.Str("a"), ast.Str("b")), ast.Str("ab"))),
		ast.CallN("say", ast.Bin("<", ast.Str("abc"), ast.Str("abd"))),
		ast.CallN("say", ast.Bin("/", ast.Int(7), ast.Int(2))),
		ast.CallN("say", ast.Bin("%", ast.Int(7), ast.Int(3))),
	))
	require.Equal(t, strings.Join([]string{
		"float", "12!", "43", "-2", "2.0", "b", "4", "6", "[1, \"two\"]", "yes", "yes", "3.5", "1",
	}, "\n")+"\n", h.mustRun(t))
}

func TestAsk(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.CallN("say", ast.Bin("+", ast.Str("hi "), ast.CallN("ask", ast.Str("name? ")))),
		ast.CallN("say", ast.CallN("ask")),
	), WithInput(strings.NewReader("Ada\r\nlast")))
	require.Equal(t, "name? hi Ada\nlast\n", h.mustRun(t))
}

func TestIntegerOverflowPromotes(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.Set("x", ast.Int(value.MaxInt)),
		ast.Set("y", ast.Bin("+", ast.Var("x"), ast.Int(1))),
	))
	h.mustRun(t)
	y := h.global(t, "y")
	require.True(t, y.IsFloat())
	require.Equal(t, float64(value.MaxInt)+1, y.AsFloat())
}

func TestRunFunction(t *testing.T) {
	h := compile(t, config.Default(), ast.Prog(
		ast.Act("double", []string{"x"}, ast.Ret(ast.Bin("*", ast.Var("x"), ast.Int(2)))),
	))
	h.mustRun(t)

	fnv, fn, ok := h.vm.Function("double")
	require.True(t, ok)
	require.Equal(t, 1, fn.Arity)

	r, err := h.vm.RunFunction(fnv, value.Int(21))
	require.NoError(t, err)
	require.Equal(t, value.Int(42), r)

	_, err = h.vm.RunFunction(fnv)
	require.Error(t, err)
	require.Equal(t, "Expected 1 args, got 0", err.(*errors.LevyError).Message)

	_, _, ok = h.vm.Function("missing")
	require.False(t, ok)
}

func TestConcurrencyStubs(t *testing.T) {
	chunk := bytecode.NewChunk("<stubs>")
	for _, op := range []bytecode.OpCode{bytecode.OpSpawn, bytecode.OpJoin, bytecode.OpChanSend, bytecode.OpChanRecv, bytecode.OpAtomicAdd} {
		chunk.WriteOp(op, 1)
	}
	chunk.WriteOp(bytecode.OpInt, 1)
	chunk.WriteShort(7, 1)
	chunk.WriteOp(bytecode.OpReturn, 1)

	var errOut bytes.Buffer
	vm := New(object.NewHeap(), nil, WithErrorOutput(&errOut))
	defer vm.Close()
	r, err := vm.Run(chunk)
	require.NoError(t, err)
	require.Equal(t, value.Int(7), r)

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		require.True(t, strings.HasSuffix(line, ": not implemented"), line)
	}
	require.Equal(t, strings.ToLower(bytecode.OpSpawn.String())+": not implemented", lines[0])
}

func TestInvalidOpcodeIsFatal(t *testing.T) {
	chunk := bytecode.NewChunk("<bad>")
	chunk.WriteByte(0xFE, 1)

	vm := New(object.NewHeap(), nil)
	defer vm.Close()
	_, err := vm.Run(chunk)
	require.True(t, errors.IsFatal(err), "%v", err)
}

func TestValueStackOverflowIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.VM.MaxStack = 256
	elems := make([]*ast.Node, 300)
	for i := range elems {
		elems[i] = ast.Int(int64(i))
	}
	h := compile(t, cfg, ast.Prog(
		ast.TryCatch(ast.Body(ast.Set("xs", ast.ListOf(elems...))), "", ast.Body()),
	))
	_, err := h.run(t)
	require.True(t, errors.IsFatal(err), "%v", err)
}
