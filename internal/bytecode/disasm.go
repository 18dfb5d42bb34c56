package bytecode

import (
	"fmt"
	"io"
	"strings"

	"levython/internal/value"
)

// ConstantFormatter renders constant pool entries. object.Heap satisfies it.
type ConstantFormatter interface {
	Repr(v value.Value) string
}

// Disassemble writes a listing of c to w.
func Disassemble(w io.Writer, c *Chunk, f ConstantFormatter) error {
	instrs, err := Decode(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "== %s ==\n", c.Name)
	lastLine := -1
	for i, in := range instrs {
		line := "   |"
		if in.Line != lastLine {
			line = fmt.Sprintf("%4d", in.Line)
			lastLine = in.Line
		}
		fmt.Fprintf(w, "%04d %s %s\n", in.Offset, line, describe(c, instrs, i, f))
	}
	return nil
}

// DisassembleString is Disassemble into a string.
func DisassembleString(c *Chunk, f ConstantFormatter) string {
	var sb strings.Builder
	if err := Disassemble(&sb, c, f); err != nil {
		fmt.Fprintf(&sb, "error: %v\n", err)
	}
	return sb.String()
}

func describe(c *Chunk, instrs []Instr, i int, f ConstantFormatter) string {
	in := instrs[i]
	switch in.Op {
	case OpConstant, OpGetGlobal, OpSetGlobal:
		repr := "?"
		if in.A < len(c.Constants) {
			if f != nil {
				repr = f.Repr(c.Constants[in.A])
			} else {
				repr = fmt.Sprintf("%#x", c.Constants[in.A].Bits())
			}
		}
		return fmt.Sprintf("%-16s %4d '%s'", in.Op, in.A, repr)
	case OpArityError:
		name := "?"
		if in.A < len(BuiltinNames) {
			name = BuiltinNames[in.A]
		}
		return fmt.Sprintf("%-16s %s/%d", in.Op, name, in.B)
	}
	if in.Op.IsJump() {
		target := len(c.Code)
		if in.Target >= 0 && in.Target < len(instrs) {
			target = instrs[in.Target].Offset
		}
		return fmt.Sprintf("%-16s %4d -> %04d", in.Op, in.Offset, target)
	}
	if in.Op.OperandKind() != OperandNone {
		return fmt.Sprintf("%-16s %4d", in.Op, in.A)
	}
	return in.Op.String()
}
