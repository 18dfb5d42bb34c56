package jit

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble writes one line per decoded instruction: offset, raw bytes and
// Intel syntax. Bytes that do not decode are listed as db.
func Disassemble(w io.Writer, code []byte) error {
	for offset := 0; offset < len(code); {
		inst, err := decodeInst(code[offset:])
		if err != nil {
			if _, err := fmt.Fprintf(w, "0x%04x: db 0x%02x\n", offset, code[offset]); err != nil {
				return err
			}
			offset++
			continue
		}
		hex := make([]string, inst.Len)
		for i := range hex {
			hex[i] = fmt.Sprintf("%02x", code[offset+i])
		}
		if _, err := fmt.Fprintf(w, "0x%04x: %-24s %s\n", offset, strings.Join(hex, " "), x86asm.IntelSyntax(inst, uint64(offset), nil)); err != nil {
			return err
		}
		offset += inst.Len
	}
	return nil
}

// Decode returns the instruction list of code, failing on the first byte
// sequence that is not a valid instruction.
func Decode(code []byte) ([]x86asm.Inst, error) {
	var out []x86asm.Inst
	for offset := 0; offset < len(code); {
		inst, err := decodeInst(code[offset:])
		if err != nil {
			return out, fmt.Errorf("offset 0x%x: %w", offset, err)
		}
		out = append(out, inst)
		offset += inst.Len
	}
	return out, nil
}

// decodeInst decodes the instruction at the start of code. A lone prefix
// decodes without error in x86asm but is not an instruction.
func decodeInst(code []byte) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return inst, err
	}
	if inst.Op == 0 || inst.Len == 0 {
		return inst, x86asm.ErrUnrecognized
	}
	return inst, nil
}
