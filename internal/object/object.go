package object

import (
	"hash/fnv"

	"levython/internal/bytecode"
	"levython/internal/value"
)

// ObjectType tags every heap object.
type ObjectType uint8

const (
	OBJ_STRING ObjectType = iota
	OBJ_LIST
	OBJ_RANGE
	OBJ_FUNCTION
)

func (t ObjectType) String() string {
	switch t {
	case OBJ_STRING:
		return "string"
	case OBJ_LIST:
		return "list"
	case OBJ_RANGE:
		return "range"
	case OBJ_FUNCTION:
		return "function"
	}
	return "object"
}

// Header is embedded in every heap object. Marked and Next are reserved for
// a collector; nothing is reclaimed today.
type Header struct {
	Type   ObjectType
	Marked bool
	Next   uint64 // handle of the previously allocated object
}

func (h *Header) header() *Header { return h }

// Object is any heap-allocated value.
type Object interface {
	header() *Header
}

type (
	StringObj struct {
		Header
		Value string
		Hash  uint32
	}

	ListObj struct {
		Header
		Elements []value.Value
	}

	// RangeObj is lazy: only iterators advance over it.
	RangeObj struct {
		Header
		Start, Stop, Step int64
	}

	FunctionObj struct {
		Header
		Name      string
		Arity     int
		NumLocals int // slots reserved by a call, parameters included
		Chunk     *bytecode.Chunk
	}
)

// Len is the number of elements the range yields.
func (r *RangeObj) Len() int64 {
	return RangeCount(r.Start, r.Stop, r.Step)
}

// RangeCount is the number of values start, start+step, ... before stop.
func RangeCount(start, stop, step int64) int64 {
	switch {
	case step > 0 && start < stop:
		return (stop - start + step - 1) / step
	case step < 0 && start > stop:
		return (start - stop - step - 1) / -step
	}
	return 0
}

// HashString is FNV-1a over the bytes of s.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
