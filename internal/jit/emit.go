package jit

// x86-64 encoders. They only produce bytes, so they build and test on every
// architecture; running the result needs amd64.

// Reg is a general purpose register in encoding order.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// ALU opcodes of the "op r/m64, r64" form.
const (
	AluAdd byte = 0x01
	AluOr  byte = 0x09
	AluAnd byte = 0x21
	AluSub byte = 0x29
	AluXor byte = 0x31
	AluCmp byte = 0x39
)

// aluDigit is the /digit of the 0x81/0x83 immediate group for each ALU op.
var aluDigit = map[byte]byte{
	AluAdd: 0,
	AluOr:  1,
	AluAnd: 4,
	AluSub: 5,
	AluXor: 6,
	AluCmp: 7,
}

// Condition codes for Jcc.
const (
	CcE  byte = 0x04
	CcNE byte = 0x05
	CcL  byte = 0x0C
	CcGE byte = 0x0D
	CcLE byte = 0x0E
	CcG  byte = 0x0F
	CcB  byte = 0x02
	CcAE byte = 0x03
)

// rex returns REX.W with R set for reg and B set for rm.
func rex(reg, rm Reg) byte {
	b := byte(0x48)
	if reg >= 8 {
		b |= 0x04
	}
	if rm >= 8 {
		b |= 0x01
	}
	return b
}

func modrmReg(reg, rm Reg) byte {
	return 0xC0 | byte(reg&7)<<3 | byte(rm&7)
}

// MovRegReg emits MOV dst, src.
func (w *Writer) MovRegReg(dst, src Reg) {
	w.emitBytes(rex(src, dst), 0x89, modrmReg(src, dst))
}

// MovRegImm emits the shortest MOV dst, imm: a sign-extended imm32 when the
// value fits, otherwise MOV r64, imm64.
func (w *Writer) MovRegImm(dst Reg, imm int64) {
	if imm >= -1<<31 && imm < 1<<31 {
		w.emitBytes(rex(0, dst), 0xC7, modrmReg(0, dst))
		w.emitU32(uint32(int32(imm)))
		return
	}
	w.emitBytes(rex(0, dst), 0xB8|byte(dst&7))
	w.emitU64(uint64(imm))
}

// ZeroReg emits XOR r32, r32, which clears the whole register.
func (w *Writer) ZeroReg(r Reg) {
	if r >= 8 {
		w.emitBytes(0x45, 0x31, modrmReg(r, r))
		return
	}
	w.emitBytes(0x31, modrmReg(r, r))
}

// AluRegReg emits op dst, src for one of the Alu* opcodes.
func (w *Writer) AluRegReg(op byte, dst, src Reg) {
	w.emitBytes(rex(src, dst), op, modrmReg(src, dst))
}

// AluRegImm emits op dst, imm with an imm8 when it fits.
func (w *Writer) AluRegImm(op byte, dst Reg, imm int32) {
	digit := Reg(aluDigit[op])
	if imm >= -128 && imm <= 127 {
		w.emitBytes(rex(0, dst), 0x83, modrmReg(digit, dst), byte(int8(imm)))
		return
	}
	w.emitBytes(rex(0, dst), 0x81, modrmReg(digit, dst))
	w.emitU32(uint32(imm))
}

// TestRegReg emits TEST a, b.
func (w *Writer) TestRegReg(a, b Reg) {
	w.emitBytes(rex(b, a), 0x85, modrmReg(b, a))
}

// ImulRegReg emits IMUL dst, src (dst *= src, signed).
func (w *Writer) ImulRegReg(dst, src Reg) {
	w.emitBytes(rex(dst, src), 0x0F, 0xAF, modrmReg(dst, src))
}

// Cqo sign-extends RAX into RDX:RAX.
func (w *Writer) Cqo() {
	w.emitBytes(0x48, 0x99)
}

// IdivReg divides RDX:RAX by r: quotient in RAX, remainder in RDX.
func (w *Writer) IdivReg(r Reg) {
	w.emitBytes(rex(0, r), 0xF7, modrmReg(7, r))
}

func (w *Writer) IncReg(r Reg) {
	w.emitBytes(rex(0, r), 0xFF, modrmReg(0, r))
}

func (w *Writer) DecReg(r Reg) {
	w.emitBytes(rex(0, r), 0xFF, modrmReg(1, r))
}

// SarRegImm emits SAR r, imm (arithmetic shift right).
func (w *Writer) SarRegImm(r Reg, imm uint8) {
	w.emitBytes(rex(0, r), 0xC1, modrmReg(7, r), imm)
}

// ShlRegImm emits SHL r, imm.
func (w *Writer) ShlRegImm(r Reg, imm uint8) {
	w.emitBytes(rex(0, r), 0xC1, modrmReg(4, r), imm)
}

func (w *Writer) Push(r Reg) {
	if r >= 8 {
		w.emitByte(0x41)
	}
	w.emitByte(0x50 | byte(r&7))
}

func (w *Writer) Pop(r Reg) {
	if r >= 8 {
		w.emitByte(0x41)
	}
	w.emitByte(0x58 | byte(r&7))
}

// memOp emits opcode reg, [base+disp]. RSP and R12 as base need a SIB byte;
// RBP and R13 cannot use the no-displacement form.
func (w *Writer) memOp(opcode byte, reg, base Reg, disp int32) {
	w.emitBytes(rex(reg, base), opcode)
	regEnc := byte(reg&7) << 3
	baseEnc := byte(base & 7)
	var mod byte
	switch {
	case disp == 0 && baseEnc != 5:
		mod = 0x00
	case disp >= -128 && disp <= 127:
		mod = 0x40
	default:
		mod = 0x80
	}
	w.emitByte(mod | regEnc | baseEnc)
	if baseEnc == 4 {
		w.emitByte(0x24)
	}
	switch mod {
	case 0x40:
		w.emitByte(byte(int8(disp)))
	case 0x80:
		w.emitU32(uint32(disp))
	}
}

// MovRegMem emits MOV dst, [base+disp].
func (w *Writer) MovRegMem(dst, base Reg, disp int32) {
	w.memOp(0x8B, dst, base, disp)
}

// MovMemReg emits MOV [base+disp], src.
func (w *Writer) MovMemReg(base Reg, disp int32, src Reg) {
	w.memOp(0x89, src, base, disp)
}

// Lea emits LEA dst, [base+disp].
func (w *Writer) Lea(dst, base Reg, disp int32) {
	w.memOp(0x8D, dst, base, disp)
}

// Jcc emits a conditional jump to l: the two-byte short form when l is
// already placed within rel8 range, the rel32 form otherwise.
func (w *Writer) Jcc(cc byte, l Label) {
	if target := w.labels[l]; target >= 0 {
		if rel := target - (len(w.buf) + 2); rel >= -128 {
			w.emitBytes(0x70|cc, byte(int8(rel)))
			return
		}
	}
	w.emitBytes(0x0F, 0x80|cc)
	w.emitRel32(l)
}

// Jmp emits an unconditional jump to l, short when possible.
func (w *Writer) Jmp(l Label) {
	if target := w.labels[l]; target >= 0 {
		if rel := target - (len(w.buf) + 2); rel >= -128 {
			w.emitBytes(0xEB, byte(int8(rel)))
			return
		}
	}
	w.emitByte(0xE9)
	w.emitRel32(l)
}

// CallReg emits CALL r (indirect).
func (w *Writer) CallReg(r Reg) {
	if r >= 8 {
		w.emitByte(0x41)
	}
	w.emitBytes(0xFF, modrmReg(2, r))
}

func (w *Writer) Ret() {
	w.emitByte(0xC3)
}
