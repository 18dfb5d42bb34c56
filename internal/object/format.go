package object

import (
	"math"
	"strconv"
	"strings"

	"levython/internal/value"
)

// Display renders v the way say() prints it.
func (h *Heap) Display(v value.Value) string {
	var sb strings.Builder
	h.write(&sb, v, false, 0)
	return sb.String()
}

// Repr is Display with strings quoted, for listings and nested values.
func (h *Heap) Repr(v value.Value) string {
	var sb strings.Builder
	h.write(&sb, v, true, 0)
	return sb.String()
}

func (h *Heap) write(sb *strings.Builder, v value.Value, quote bool, depth int) {
	switch {
	case v.IsInt():
		sb.WriteString(strconv.FormatInt(v.AsInt(), 10))
	case v.IsFloat():
		sb.WriteString(FormatFloat(v.AsFloat()))
	case v == value.True:
		sb.WriteString("yes")
	case v == value.False:
		sb.WriteString("no")
	case v == value.None:
		sb.WriteString("none")
	default:
		o, ok := h.Get(v)
		if !ok {
			sb.WriteString("<invalid>")
			return
		}
		switch o := o.(type) {
		case *StringObj:
			if quote {
				sb.WriteString(strconv.Quote(o.Value))
			} else {
				sb.WriteString(o.Value)
			}
		case *ListObj:
			if depth > 32 {
				sb.WriteString("[...]")
				return
			}
			sb.WriteByte('[')
			for i, e := range o.Elements {
				if i > 0 {
					sb.WriteString(", ")
				}
				h.write(sb, e, true, depth+1)
			}
			sb.WriteByte(']')
		case *RangeObj:
			sb.WriteString("range(")
			sb.WriteString(strconv.FormatInt(o.Start, 10))
			sb.WriteString(", ")
			sb.WriteString(strconv.FormatInt(o.Stop, 10))
			sb.WriteString(", ")
			sb.WriteString(strconv.FormatInt(o.Step, 10))
			sb.WriteByte(')')
		case *FunctionObj:
			sb.WriteString("<function ")
			sb.WriteString(o.Name)
			sb.WriteByte('>')
		}
	}
}

// FormatFloat prints the shortest representation, keeping a ".0" on whole
// numbers so floats stay distinguishable from integers.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// TypeName is the result of the type() builtin.
func (h *Heap) TypeName(v value.Value) string {
	switch {
	case v.IsInt():
		return "integer"
	case v.IsFloat():
		return "float"
	case v.IsBool():
		return "boolean"
	case v.IsNone():
		return "none"
	}
	if o, ok := h.Get(v); ok {
		return o.header().Type.String()
	}
	return "unknown"
}
