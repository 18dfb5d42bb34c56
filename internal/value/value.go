package value

import "math"

// NaN-Boxing Value Representation
// ================================
//
// Every Levython value is stored in 64 bits.
//
// Encoding scheme:
// - Numbers (float64):    [any value where (bits & NaN_MASK) != NaN_MASK]
// - None:                 0x7FF8000000000000
// - False:                0x7FF8000000000001
// - True:                 0x7FF8000000000002
// - Heap ref (48-bit):    0x7FFC000000000000 | (handle & 0xFFFFFFFFFFFF)
// - Small Int (48-bit):   0x7FFE000000000000 | (int48 & 0xFFFFFFFFFFFF)
//
// Heap references carry an arena handle, not an address. The arena is owned
// by object.Heap.

type Value uint64

const (
	NaN_MASK = 0x7FF8000000000000
	TAG_MASK = 0xFFFF000000000000

	TAG_NONE  = 0x7FF8000000000000
	TAG_FALSE = 0x7FF8000000000001
	TAG_TRUE  = 0x7FF8000000000002

	TAG_REF  = 0x7FFC000000000000
	REF_MASK = 0x0000FFFFFFFFFFFF

	TAG_INT  = 0x7FFE000000000000
	INT_MASK = 0x0000FFFFFFFFFFFF
	INT_SIGN = 0x0000800000000000

	// canonicalNaN sits outside the tag space: quiet bit clear, payload 1.
	canonicalNaN = 0x7FF0000000000001
)

// Bounds of the boxed integer range.
const (
	MaxInt = 1<<47 - 1
	MinInt = -(1 << 47)
)

const (
	None  Value = TAG_NONE
	False Value = TAG_FALSE
	True  Value = TAG_TRUE
)

// Kind is the coarse category of a value, used by guards and profiles.
type Kind uint8

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindNone
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindNone:
		return "none"
	case KindRef:
		return "ref"
	}
	return "unknown"
}

// Float boxes a double. NaNs are canonicalised so they never alias a tag.
func Float(f float64) Value {
	if f != f {
		return Value(canonicalNaN)
	}
	return Value(math.Float64bits(f))
}

// Int boxes a 48-bit integer. Callers check FitsInt first; wider values are
// truncated to their low 48 bits.
func Int(n int64) Value {
	return Value(TAG_INT | (uint64(n) & INT_MASK))
}

// Number boxes n as an integer when it fits, otherwise as a double.
func Number(n int64) Value {
	if FitsInt(n) {
		return Int(n)
	}
	return Float(float64(n))
}

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Ref boxes a heap handle.
func Ref(handle uint64) Value {
	return Value(TAG_REF | (handle & REF_MASK))
}

// FitsInt reports whether n survives a round trip through Int.
func FitsInt(n int64) bool {
	return n >= MinInt && n <= MaxInt
}

func (v Value) IsFloat() bool { return uint64(v)&NaN_MASK != NaN_MASK }
func (v Value) IsInt() bool   { return uint64(v)&TAG_MASK == TAG_INT }
func (v Value) IsRef() bool   { return uint64(v)&TAG_MASK == TAG_REF }
func (v Value) IsNone() bool  { return v == None }
func (v Value) IsBool() bool  { return v == True || v == False }

// IsNumber is true for ints and floats.
func (v Value) IsNumber() bool { return v.IsInt() || v.IsFloat() }

func (v Value) AsFloat() float64 { return math.Float64frombits(uint64(v)) }

// AsInt sign-extends the 48-bit payload.
func (v Value) AsInt() int64 {
	bits := uint64(v) & INT_MASK
	if bits&INT_SIGN != 0 {
		bits |= 0xFFFF000000000000
	}
	return int64(bits)
}

func (v Value) AsBool() bool  { return v == True }
func (v Value) AsRef() uint64 { return uint64(v) & REF_MASK }
func (v Value) Bits() uint64  { return uint64(v) }

// ToFloat promotes an int or returns the double. Other kinds yield 0.
func (v Value) ToFloat() float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	if v.IsFloat() {
		return v.AsFloat()
	}
	return 0
}

func (v Value) Kind() Kind {
	switch {
	case v.IsFloat():
		return KindFloat
	case v.IsInt():
		return KindInt
	case v.IsRef():
		return KindRef
	case v == None:
		return KindNone
	}
	return KindBool
}

// Truthy: false and none are false, numbers are true when nonzero, every
// other value is true.
func (v Value) Truthy() bool {
	switch {
	case v == False, v == None:
		return false
	case v == True:
		return true
	case v.IsInt():
		return v.AsInt() != 0
	case v.IsFloat():
		return v.AsFloat() != 0
	}
	return true
}

// Equal compares numbers by value across int/float and everything else by
// identity. Strings are interned, so identity is content equality.
func Equal(a, b Value) bool {
	if a.IsInt() && b.IsInt() {
		return a == b
	}
	if a.IsNumber() && b.IsNumber() {
		return a.ToFloat() == b.ToFloat()
	}
	return a == b
}
