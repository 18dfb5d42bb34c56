// Package optimizer holds the adaptive layer shared by the VM: guards,
// deoptimization bookkeeping, the loop and call profiler, loop template
// analysis and the peephole rewriter.
package optimizer

import (
	"fmt"

	"levython/internal/object"
	"levython/internal/value"
)

// GuardKind identifies what a guard checks before specialized code runs.
type GuardKind uint8

const (
	GuardType GuardKind = iota
	GuardBounds
	GuardNotNone
	GuardMonomorphicCall
	GuardStableGlobal
)

var guardNames = [...]string{
	GuardType:            "type",
	GuardBounds:          "bounds",
	GuardNotNone:         "not-none",
	GuardMonomorphicCall: "monomorphic-call",
	GuardStableGlobal:    "stable-global",
}

func (k GuardKind) String() string {
	if int(k) < len(guardNames) {
		return guardNames[k]
	}
	return fmt.Sprintf("guard(%d)", k)
}

// Guard is a speculation on one value. Bounds are inclusive and apply to
// integers only. A type guard with HasObject set also pins the heap object
// type and needs a heap to check.
type Guard struct {
	Kind      GuardKind
	Type      value.Kind
	Object    object.ObjectType
	HasObject bool
	Min, Max  int64
	Expected  value.Value
}

func TypeGuard(k value.Kind) Guard { return Guard{Kind: GuardType, Type: k} }

// ObjectGuard holds while v refers to a heap object of type t.
func ObjectGuard(t object.ObjectType) Guard {
	return Guard{Kind: GuardType, Type: value.KindRef, Object: t, HasObject: true}
}

func BoundsGuard(min, max int64) Guard { return Guard{Kind: GuardBounds, Min: min, Max: max} }

func NotNoneGuard() Guard { return Guard{Kind: GuardNotNone} }

// MonomorphicCallGuard holds while the callee is the one seen when the call
// site was specialized.
func MonomorphicCallGuard(callee value.Value) Guard {
	return Guard{Kind: GuardMonomorphicCall, Expected: callee}
}

// StableGlobalGuard holds while a global still has the value it had when
// code depending on it was specialized.
func StableGlobalGuard(v value.Value) Guard {
	return Guard{Kind: GuardStableGlobal, Expected: v}
}

// Check reports whether v satisfies the guard. Object guards never hold
// without a heap; use Holds for them.
func (g Guard) Check(v value.Value) bool { return g.Holds(nil, v) }

// Holds reports whether v satisfies the guard, resolving references in h.
func (g Guard) Holds(h *object.Heap, v value.Value) bool {
	switch g.Kind {
	case GuardType:
		if v.Kind() != g.Type {
			return false
		}
		if !g.HasObject {
			return true
		}
		if h == nil {
			return false
		}
		t, ok := h.TypeOf(v)
		return ok && t == g.Object
	case GuardBounds:
		if !v.IsInt() {
			return false
		}
		n := v.AsInt()
		return n >= g.Min && n <= g.Max
	case GuardNotNone:
		return !v.IsNone()
	case GuardMonomorphicCall, GuardStableGlobal:
		return v == g.Expected
	}
	return false
}

func (g Guard) String() string {
	switch g.Kind {
	case GuardType:
		if g.HasObject {
			return fmt.Sprintf("%s(%s)", g.Kind, g.Object)
		}
		return fmt.Sprintf("%s(%s)", g.Kind, g.Type)
	case GuardBounds:
		return fmt.Sprintf("%s(%d..%d)", g.Kind, g.Min, g.Max)
	}
	return g.Kind.String()
}
