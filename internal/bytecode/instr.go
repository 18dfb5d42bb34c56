package bytecode

import (
	"fmt"

	"levython/internal/value"

	"github.com/pkg/errors"
)

// Instr is one decoded instruction. Jump operands are resolved to the index
// of the target instruction, so rewrites can insert or drop instructions
// without tracking byte offsets.
type Instr struct {
	Op     OpCode
	A      int // first operand (slot, constant index, immediate, argc)
	B      int // second operand of OperandU8U8
	Target int // instruction index for jumps; len(instrs) means "end of code"
	Offset int // byte offset in the chunk this instruction came from
	Line   int
}

func (in Instr) String() string {
	switch {
	case in.Op.IsJump():
		return fmt.Sprintf("%s ->%d", in.Op, in.Target)
	case in.Op.OperandKind() == OperandU8U8:
		return fmt.Sprintf("%s %d %d", in.Op, in.A, in.B)
	case in.Op.OperandKind() != OperandNone:
		return fmt.Sprintf("%s %d", in.Op, in.A)
	}
	return in.Op.String()
}

// Decode turns the byte stream of c into an instruction list.
func Decode(c *Chunk) ([]Instr, error) {
	return DecodeRange(c, 0, len(c.Code))
}

// DecodeRange decodes the instructions in [start, end). Jump targets outside
// the range are reported as -1.
func DecodeRange(c *Chunk, start, end int) ([]Instr, error) {
	var instrs []Instr
	index := make(map[int]int)
	var rawTargets []int

	ip := start
	for ip < end {
		op := OpCode(c.Code[ip])
		if !op.Valid() {
			return nil, errors.Errorf("invalid opcode %d at offset %d", op, ip)
		}
		size := op.Size()
		if ip+size > len(c.Code) {
			return nil, errors.Errorf("truncated %s at offset %d", op, ip)
		}
		in := Instr{Op: op, Target: -1, Offset: ip, Line: c.Line(ip)}
		switch op.OperandKind() {
		case OperandU8:
			in.A = int(c.Code[ip+1])
		case OperandU16:
			in.A = int(c.ReadShort(ip + 1))
		case OperandI16:
			in.A = int(int16(c.ReadShort(ip + 1)))
		case OperandU8U8:
			in.A = int(c.Code[ip+1])
			in.B = int(c.Code[ip+2])
		}
		target := -1
		if op.IsJump() {
			if op == OpLoop {
				target = ip + size - in.A
			} else {
				target = ip + size + in.A
			}
		}
		index[ip] = len(instrs)
		rawTargets = append(rawTargets, target)
		instrs = append(instrs, in)
		ip += size
	}
	index[end] = len(instrs)

	for i, target := range rawTargets {
		if target < 0 {
			continue
		}
		idx, ok := index[target]
		if !ok {
			if target >= start && target <= end {
				return nil, errors.Errorf("jump at offset %d lands inside an instruction (%d)", instrs[i].Offset, target)
			}
			continue
		}
		instrs[i].Target = idx
	}
	return instrs, nil
}

// Encode lays out instrs into a new chunk that shares name and constants
// with template. The returned map sends each new instruction offset to the
// Offset recorded on the instruction.
func Encode(instrs []Instr, template *Chunk) (*Chunk, map[int]int, error) {
	out := &Chunk{
		Name:      template.Name,
		Constants: append([]value.Value(nil), template.Constants...),
	}

	offsets := make([]int, len(instrs)+1)
	pos := 0
	for i, in := range instrs {
		offsets[i] = pos
		pos += in.Op.Size()
	}
	offsets[len(instrs)] = pos

	origin := make(map[int]int, len(instrs))
	for i, in := range instrs {
		origin[offsets[i]] = in.Offset
		out.WriteOp(in.Op, in.Line)
		switch in.Op.OperandKind() {
		case OperandU8:
			if in.A < 0 || in.A > 0xFF {
				return nil, nil, errors.Errorf("%s operand %d out of range", in.Op, in.A)
			}
			out.WriteByte(byte(in.A), in.Line)
		case OperandU8U8:
			out.WriteByte(byte(in.A), in.Line)
			out.WriteByte(byte(in.B), in.Line)
		case OperandI16:
			if in.A < -32768 || in.A > 32767 {
				return nil, nil, errors.Errorf("%s immediate %d out of range", in.Op, in.A)
			}
			out.WriteShort(uint16(int16(in.A)), in.Line)
		case OperandU16:
			operand := in.A
			if in.Op.IsJump() {
				if in.Target < 0 || in.Target > len(instrs) {
					return nil, nil, errors.Errorf("%s at %d has no target", in.Op, i)
				}
				next := offsets[i] + in.Op.Size()
				if in.Op == OpLoop {
					operand = next - offsets[in.Target]
				} else {
					operand = offsets[in.Target] - next
				}
				if operand < 0 {
					return nil, nil, errors.Errorf("%s at %d jumps the wrong way", in.Op, i)
				}
			}
			if operand > 0xFFFF {
				return nil, nil, errors.Errorf("%s operand %d out of range", in.Op, operand)
			}
			out.WriteShort(uint16(operand), in.Line)
		}
	}
	return out, origin, nil
}
