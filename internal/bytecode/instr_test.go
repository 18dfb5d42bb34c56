package bytecode

import (
	"strings"
	"testing"

	"levython/internal/value"
)

// loopChunk builds: i <- 0; while i < 3 { i <- i + 1 }
func loopChunk() *Chunk {
	c := NewChunk("<test>")
	name := c.AddConstant(value.Int(99))
	c.WriteOp(OpInt, 1)
	c.WriteShort(0, 1)
	c.WriteOp(OpSetGlobal, 1)
	c.WriteShort(uint16(name), 1)

	loopStart := c.Len()
	c.WriteOp(OpGetGlobal, 2)
	c.WriteShort(uint16(name), 2)
	c.WriteOp(OpInt, 2)
	c.WriteShort(3, 2)
	c.WriteOp(OpLess, 2)
	c.WriteOp(OpJumpIfFalse, 2)
	exitPatch := c.Len()
	c.WriteShort(0, 2)

	c.WriteOp(OpGetGlobal, 3)
	c.WriteShort(uint16(name), 3)
	c.WriteOp(OpInt, 3)
	c.WriteShort(1, 3)
	c.WriteOp(OpAdd, 3)
	c.WriteOp(OpSetGlobal, 3)
	c.WriteShort(uint16(name), 3)

	c.WriteOp(OpLoop, 3)
	c.WriteShort(uint16(c.Len()+2-loopStart), 3)
	c.PatchShort(exitPatch, uint16(c.Len()-exitPatch-2))

	c.WriteOp(OpNone, 4)
	c.WriteOp(OpReturn, 4)
	return c
}

func TestDecodeResolvesJumps(t *testing.T) {
	c := loopChunk()
	instrs, err := Decode(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var jif, loop Instr
	for _, in := range instrs {
		switch in.Op {
		case OpJumpIfFalse:
			jif = in
		case OpLoop:
			loop = in
		}
	}
	if instrs[jif.Target].Op != OpNone {
		t.Fatalf("JUMP_IF_FALSE targets %s, want NONE", instrs[jif.Target].Op)
	}
	if instrs[loop.Target].Op != OpGetGlobal || instrs[loop.Target].Offset != 6 {
		t.Fatalf("LOOP targets %v, want GET_GLOBAL at 6", instrs[loop.Target])
	}
}

func TestEncodeRecomputesOffsets(t *testing.T) {
	c := loopChunk()
	instrs, err := Decode(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Replace the initial "INT 0" with NONE, shifting every later offset
	// by two bytes.
	rewritten := []Instr{{Op: OpNone, Target: -1, Offset: instrs[0].Offset}}
	rewritten = append(rewritten, instrs[1:]...)

	out, origin, err := Encode(rewritten, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != c.Len()-2 {
		t.Fatalf("encoded length %d, want %d", out.Len(), c.Len()-2)
	}
	back, err := Decode(out)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	for i := range back {
		if back[i].Op != rewritten[i].Op || back[i].Target != rewritten[i].Target {
			t.Fatalf("instr %d: got %v want %v", i, back[i], rewritten[i])
		}
	}
	if origin[back[2].Offset] != instrs[2].Offset {
		t.Fatalf("origin map lost loop start: %v", origin)
	}
}

func TestDecodeRejectsInvalidOpcode(t *testing.T) {
	c := NewChunk("<bad>")
	c.WriteByte(0xFE, 1)
	if _, err := Decode(c); err == nil {
		t.Fatal("expected an error for an invalid opcode")
	}
}

func TestDisassemble(t *testing.T) {
	listing := DisassembleString(loopChunk(), nil)
	for _, want := range []string{"== <test> ==", "JUMP_IF_FALSE", "LOOP", "SET_GLOBAL", "RETURN"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestOpcodeSizes(t *testing.T) {
	tests := []struct {
		op   OpCode
		size int
	}{
		{OpAdd, 1},
		{OpGetLocal, 2},
		{OpConstant, 3},
		{OpInt, 3},
		{OpArityError, 3},
		{OpLoop, 3},
	}
	for _, tt := range tests {
		if got := tt.op.Size(); got != tt.size {
			t.Fatalf("%s.Size() = %d, want %d", tt.op, got, tt.size)
		}
	}
}
