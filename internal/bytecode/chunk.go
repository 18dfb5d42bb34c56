package bytecode

import (
	"levython/internal/value"
)

// DebugInfo stores the source location of an instruction byte
type DebugInfo struct {
	Line     int
	Function string
}

// Chunk is one compiled unit. It is append-only while the compiler owns it
// and must not be mutated once handed to a VM.
type Chunk struct {
	Name      string
	Code      []byte
	Constants []value.Value
	Debug     []DebugInfo
}

func NewChunk(name string) *Chunk {
	return &Chunk{
		Name:      name,
		Code:      []byte{},
		Constants: []value.Value{},
		Debug:     []DebugInfo{},
	}
}

func (c *Chunk) WriteOp(op OpCode, line int) {
	c.WriteByte(byte(op), line)
}

func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, DebugInfo{Line: line, Function: c.Name})
}

// WriteShort appends a big-endian u16 operand.
func (c *Chunk) WriteShort(v uint16, line int) {
	c.WriteByte(byte(v>>8), line)
	c.WriteByte(byte(v), line)
}

// PatchShort overwrites the u16 operand at pos.
func (c *Chunk) PatchShort(pos int, v uint16) {
	c.Code[pos] = byte(v >> 8)
	c.Code[pos+1] = byte(v)
}

// ReadShort decodes the u16 operand at pos.
func (c *Chunk) ReadShort(pos int) uint16 {
	return uint16(c.Code[pos])<<8 | uint16(c.Code[pos+1])
}

// AddConstant returns the index of val in the pool, appending it when no
// bit-identical constant exists yet.
func (c *Chunk) AddConstant(val value.Value) int {
	for i, existing := range c.Constants {
		if existing == val {
			return i
		}
	}
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

func (c *Chunk) Len() int { return len(c.Code) }

func (c *Chunk) GetDebugInfo(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{Function: c.Name}
}

// Line returns the source line of the byte at ip, or 0 when unknown.
func (c *Chunk) Line(ip int) int {
	return c.GetDebugInfo(ip).Line
}

// Clone returns a deep copy sharing no slices with c.
func (c *Chunk) Clone() *Chunk {
	return &Chunk{
		Name:      c.Name,
		Code:      append([]byte(nil), c.Code...),
		Constants: append([]value.Value(nil), c.Constants...),
		Debug:     append([]DebugInfo(nil), c.Debug...),
	}
}
