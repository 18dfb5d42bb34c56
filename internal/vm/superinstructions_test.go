package vm

import (
	"testing"

	"levython/internal/object"
	"levython/internal/value"

	"github.com/stretchr/testify/require"
)

func TestAccumulatorGuard(t *testing.T) {
	g, ok := accumulatorGuard(10)
	require.True(t, ok)
	require.True(t, g.Check(value.Int(value.MaxInt-10)))
	require.False(t, g.Check(value.Int(value.MaxInt-9)))
	require.True(t, g.Check(value.Int(-(value.MaxInt - 10))))
	require.False(t, g.Check(value.Int(value.MinInt)))
	require.False(t, g.Check(value.Float(1)))

	// Fractional spans round up.
	g, ok = accumulatorGuard(9.5)
	require.True(t, ok)
	require.False(t, g.Check(value.Int(value.MaxInt-9)))

	_, ok = accumulatorGuard(boxedLimit)
	require.False(t, ok)
}

func TestLoopSourceGuards(t *testing.T) {
	heap := object.NewHeap()
	require.True(t, rangeSource.Holds(heap, heap.NewRange(0, 10, 1)))
	require.False(t, rangeSource.Holds(heap, heap.NewList(nil)))
	require.True(t, repeatSource.Check(value.Int(3)))
	require.False(t, repeatSource.Check(heap.NewList(nil)))
}

func TestShiftGuard(t *testing.T) {
	for shift := uint(1); shift < 15; shift++ {
		g := shiftGuard(shift)
		hi := int64(value.MaxInt) >> shift
		lo := int64(value.MinInt) >> shift
		require.True(t, g.Check(value.Int(hi)), shift)
		require.True(t, value.FitsInt(hi<<shift))
		require.False(t, g.Check(value.Int(hi+1)), shift)
		require.True(t, g.Check(value.Int(lo)), shift)
		require.True(t, value.FitsInt(lo<<shift))
		require.False(t, g.Check(value.Int(lo-1)), shift)
		require.False(t, g.Check(value.Float(2)), shift)
	}
}
