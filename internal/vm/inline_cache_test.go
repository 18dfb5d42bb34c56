package vm

import (
	"testing"

	"levython/internal/ast"
	"levython/internal/bytecode"
	"levython/internal/config"
	"levython/internal/object"
	"levython/internal/optimizer"
	"levython/internal/value"

	"github.com/stretchr/testify/require"
)

func TestInlineCacheTransitions(t *testing.T) {
	heap := object.NewHeap()
	var targets []*funcInfo
	var callees []value.Value
	for _, name := range []string{"a", "b", "c"} {
		v := heap.NewFunction(name, 0, 0, bytecode.NewChunk(name))
		fn, _ := heap.Function(v)
		callees = append(callees, v)
		targets = append(targets, &funcInfo{fn: fn})
	}

	var table CacheTable
	ic := table.At(10)
	require.Equal(t, CacheUninitialized, ic.State)
	require.Nil(t, ic.Lookup(callees[0]))

	require.True(t, ic.Update(callees[0], targets[0]))
	require.Equal(t, CacheMonomorphic, ic.State)
	require.Same(t, targets[0], ic.Lookup(callees[0]))
	require.False(t, ic.Update(callees[0], targets[0]))

	require.Nil(t, ic.Lookup(callees[1]))
	require.True(t, ic.Update(callees[1], targets[1]))
	require.Equal(t, CachePolymorphic, ic.State)
	require.Equal(t, 2, ic.Callees())
	require.Same(t, targets[1], ic.Lookup(callees[1]))
	require.Same(t, targets[0], ic.Lookup(callees[0]))

	require.True(t, ic.Update(callees[2], targets[2]))
	require.Equal(t, CacheMegamorphic, ic.State)
	require.Zero(t, ic.Callees())
	require.Nil(t, ic.Lookup(callees[0]))
	require.False(t, ic.Update(callees[0], targets[0]))
	require.Equal(t, CacheMegamorphic, ic.State)

	require.Equal(t, uint64(3), ic.Hits)
	require.Equal(t, uint64(3), ic.Misses)

	var s ICStats
	s.add(&table)
	require.Equal(t, ICStats{Megamorphic: 1, Hits: 3, Misses: 3, HitRate: 50}, s)
}

func TestCacheTableSlots(t *testing.T) {
	heap := object.NewHeap()
	v := heap.NewFunction("f", 0, 0, bytecode.NewChunk("f"))
	fn, _ := heap.Function(v)

	var table CacheTable
	require.Nil(t, table.Peek(3))
	ic := table.At(3)
	ic.Update(v, &funcInfo{fn: fn})
	require.Same(t, ic, table.Peek(3))
	require.Same(t, ic, table.At(3))
	require.Equal(t, CacheMonomorphic, ic.State)

	// a second site mapping to the same slot takes it over
	other := table.At(3 + ICSize)
	require.Same(t, ic, other)
	require.Equal(t, CacheUninitialized, other.State)
	require.Nil(t, table.Peek(3))

	var stats ICStats
	stats.add(&table)
	require.Equal(t, ICStats{}, stats)
}

func callOffset(t *testing.T, c *bytecode.Chunk) int {
	t.Helper()
	instrs, err := bytecode.Decode(c)
	require.NoError(t, err)
	for _, in := range instrs {
		if in.Op == bytecode.OpCall {
			return in.Offset
		}
	}
	t.Fatal("no CALL in chunk")
	return 0
}

func dispatchProgram(names ...string) *ast.Node {
	stmts := []*ast.Node{}
	elems := []*ast.Node{}
	for i, name := range names {
		stmts = append(stmts, ast.Act(name, nil, ast.Ret(ast.Int(int64(i+1)))))
		elems = append(elems, ast.Var(name))
	}
	return ast.Prog(append(stmts,
		ast.Set("total", ast.Int(0)),
		ast.RepeatN(ast.Int(4),
			ast.ForIn("g", ast.ListOf(elems...),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.CallN("g"))),
			),
		),
	)...)
}

func TestCallSiteStates(t *testing.T) {
	tests := []struct {
		names []string
		want  CacheState
		total int64
	}{
		{[]string{"one"}, CacheMonomorphic, 4},
		{[]string{"one", "two"}, CachePolymorphic, 12},
		{[]string{"one", "two", "three"}, CacheMegamorphic, 24},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			cfg := config.Default()
			cfg.Optimizer.Peephole = false
			h := compile(t, cfg, dispatchProgram(tt.names...))
			h.mustRun(t)
			require.Equal(t, value.Int(tt.total), h.global(t, "total"))

			ic := h.vm.CallSite(h.chunk.Name, callOffset(t, h.chunk))
			require.NotNil(t, ic)
			require.Equal(t, tt.want, ic.State)

			stats := h.vm.Stats().InlineCaches
			switch tt.want {
			case CacheMonomorphic:
				require.Equal(t, 1, stats.Monomorphic)
				require.Equal(t, uint64(3), stats.Hits)
				require.Equal(t, 1, stats.Callees)
				require.InDelta(t, 75.0, stats.HitRate, 0.001)
			case CachePolymorphic:
				require.Equal(t, 1, stats.Polymorphic)
			case CacheMegamorphic:
				require.Equal(t, 1, stats.Megamorphic)
			}
		})
	}
}

func TestInlineCachesDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Optimizer.InlineCaches = false
	h := compile(t, cfg, dispatchProgram("one", "two"))
	h.mustRun(t)
	require.Equal(t, value.Int(12), h.global(t, "total"))
	require.Nil(t, h.vm.CallSite(h.chunk.Name, callOffset(t, h.chunk)))
}

// scaleProgram calls scale(x) = x * 8 + 1 with ints until it is hot, then
// with floats until its shift guard gives up.
func scaleProgram(floatCalls int64) *ast.Node {
	return ast.Prog(
		ast.Act("scale", []string{"x"},
			ast.Ret(ast.Bin("+", ast.Bin("*", ast.Var("x"), ast.Int(8)), ast.Int(1))),
		),
		ast.Set("total", ast.Int(0)),
		ast.ForIn("i", ast.CallN("range", ast.Int(300)),
			ast.Set("total", ast.Bin("+", ast.Var("total"), ast.CallN("scale", ast.Var("i")))),
		),
		ast.Set("f", ast.Float(0)),
		ast.RepeatN(ast.Int(floatCalls),
			ast.Set("f", ast.Bin("+", ast.Var("f"), ast.CallN("scale", ast.Float(0.5)))),
		),
		ast.Set("big", ast.CallN("scale", ast.Int(value.MaxInt/4))),
	)
}

func TestFunctionTiers(t *testing.T) {
	naive := compile(t, config.Naive(), scaleProgram(3))
	naive.mustRun(t)

	h := compile(t, config.Default(), scaleProgram(3))
	h.mustRun(t)
	for _, name := range []string{"total", "f", "big"} {
		require.Equal(t, naive.global(t, name), h.global(t, name), name)
	}
	require.Equal(t, value.Int(300*299*4+300), h.global(t, "total"))
	require.Equal(t, value.Float(15), h.global(t, "f"))
	require.True(t, h.global(t, "big").IsFloat())

	_, fn, ok := h.vm.Function("scale")
	require.True(t, ok)
	fi := h.vm.funcs[fn]
	require.Equal(t, optimizer.TierOptimized, fi.profile.Tier)
	require.NotNil(t, fi.version)
	require.Equal(t, 1, fi.version.Shifts)
	require.Equal(t, uint64(4), h.vm.Stats().Optimizer.Deopts)
}

func TestDeoptPinsFunction(t *testing.T) {
	cfg := config.Default()
	floats := int64(cfg.Optimizer.DeoptThreshold + 2)

	naive := compile(t, config.Naive(), scaleProgram(floats))
	naive.mustRun(t)

	h := compile(t, cfg, scaleProgram(floats))
	h.mustRun(t)
	require.Equal(t, naive.global(t, "f"), h.global(t, "f"))

	_, fn, _ := h.vm.Function("scale")
	require.Equal(t, optimizer.TierPinned, h.vm.funcs[fn].profile.Tier)
	require.Equal(t, 1, h.vm.Stats().Optimizer.Profile.Pinned)
	require.Equal(t, 1, h.vm.Stats().Optimizer.DisabledSites)
}
