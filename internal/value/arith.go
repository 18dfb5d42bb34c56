package value

import "math"

// ArithError classifies why Arith could not produce a result.
type ArithError uint8

const (
	ArithOK ArithError = iota
	ArithType
	ArithDivByZero
	ArithModByZero
)

// Arith applies a numeric operator ('+', '-', '*', '/', '%', '^'). Integer
// results that leave the 48-bit range become doubles; '/' and '^' always
// yield doubles.
func Arith(op byte, a, b Value) (Value, ArithError) {
	if !a.IsNumber() || !b.IsNumber() {
		return None, ArithType
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case '+':
			return Number(x + y), ArithOK
		case '-':
			return Number(x - y), ArithOK
		case '*':
			return MulInt(x, y), ArithOK
		case '%':
			if y == 0 {
				return None, ArithModByZero
			}
			return Int(x % y), ArithOK
		}
	}
	x, y := a.ToFloat(), b.ToFloat()
	switch op {
	case '+':
		return Float(x + y), ArithOK
	case '-':
		return Float(x - y), ArithOK
	case '*':
		return Float(x * y), ArithOK
	case '/':
		if y == 0 {
			return None, ArithDivByZero
		}
		return Float(x / y), ArithOK
	case '%':
		if y == 0 {
			return None, ArithModByZero
		}
		return Float(math.Mod(x, y)), ArithOK
	case '^':
		return Float(math.Pow(x, y)), ArithOK
	}
	return None, ArithType
}

// MulInt multiplies two boxed-range integers, falling back to a double when
// the product leaves the 48-bit range.
func MulInt(x, y int64) Value {
	p := x * y
	if x != 0 && (p/x != y || (x == -1 && y == math.MinInt64)) {
		return Float(float64(x) * float64(y))
	}
	return Number(p)
}

// Compare applies a numeric ordering or equality operator: "<", "<=", ">",
// ">=", "==", "!=". ok is false for non-numbers.
func Compare(op string, a, b Value) (result bool, ok bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return false, false
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case "<":
			return x < y, true
		case "<=":
			return x <= y, true
		case ">":
			return x > y, true
		case ">=":
			return x >= y, true
		case "==":
			return x == y, true
		case "!=":
			return x != y, true
		}
		return false, false
	}
	x, y := a.ToFloat(), b.ToFloat()
	switch op {
	case "<":
		return x < y, true
	case "<=":
		return x <= y, true
	case ">":
		return x > y, true
	case ">=":
		return x >= y, true
	case "==":
		return x == y, true
	case "!=":
		return x != y, true
	}
	return false, false
}
