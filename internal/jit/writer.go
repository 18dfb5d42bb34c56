// Package jit emits x86-64 machine code for a fixed menu of numeric kernels
// and runs it from executable pages.
package jit

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Label is a code position that jumps can refer to before it is placed.
type Label int

type fixup struct {
	pos   int // offset of the rel32 field
	label Label
}

// Writer accumulates machine code in a Go slice. Labels are placed with Mark;
// forward jumps get a rel32 placeholder that Bytes patches.
type Writer struct {
	buf    []byte
	labels []int
	fixups []fixup
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

// NewLabel reserves a label for later placement.
func (w *Writer) NewLabel() Label {
	w.labels = append(w.labels, -1)
	return Label(len(w.labels) - 1)
}

// Mark places l at the current position.
func (w *Writer) Mark(l Label) {
	w.labels[l] = len(w.buf)
}

// Here reserves a label and places it at the current position.
func (w *Writer) Here() Label {
	l := w.NewLabel()
	w.Mark(l)
	return l
}

func (w *Writer) Len() int { return len(w.buf) }

// Bytes patches every pending jump and returns the code. It fails when a
// jump refers to a label that was never placed.
func (w *Writer) Bytes() ([]byte, error) {
	for _, f := range w.fixups {
		target := w.labels[f.label]
		if target < 0 {
			return nil, errors.Errorf("jit: label %d referenced at %d is undefined", f.label, f.pos)
		}
		binary.LittleEndian.PutUint32(w.buf[f.pos:], uint32(int32(target-(f.pos+4))))
	}
	w.fixups = w.fixups[:0]
	return w.buf, nil
}

func (w *Writer) emitByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) emitBytes(bs ...byte) {
	w.buf = append(w.buf, bs...)
}

func (w *Writer) emitU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) emitU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// emitRel32 writes a rel32 to l, patched now when l is placed and later
// otherwise.
func (w *Writer) emitRel32(l Label) {
	if target := w.labels[l]; target >= 0 {
		w.emitU32(uint32(int32(target - (len(w.buf) + 4))))
		return
	}
	w.fixups = append(w.fixups, fixup{pos: len(w.buf), label: l})
	w.emitU32(0)
}
