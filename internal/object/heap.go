package object

import (
	"levython/internal/bytecode"
	"levython/internal/value"
)

const minListCapacity = 8

// Heap is an append-only arena. A value.Value reference holds the index of
// its object here; index 0 is never handed out. Objects live until the Heap
// itself is dropped.
type Heap struct {
	objects []Object
	strings map[string]uint64 // intern table, keyed by content
	last    uint64
	bytes   int64
}

// Stats summarises heap usage.
type Stats struct {
	Objects   int   `yaml:"objects"`
	Strings   int   `yaml:"strings"`
	Lists     int   `yaml:"lists"`
	Ranges    int   `yaml:"ranges"`
	Functions int   `yaml:"functions"`
	Bytes     int64 `yaml:"bytes"`
}

func NewHeap() *Heap {
	return &Heap{
		objects: make([]Object, 1, 256),
		strings: make(map[string]uint64),
	}
}

func (h *Heap) alloc(o Object, t ObjectType, size int64) value.Value {
	hdr := o.header()
	hdr.Type = t
	hdr.Next = h.last
	handle := uint64(len(h.objects))
	h.objects = append(h.objects, o)
	h.last = handle
	h.bytes += size
	return value.Ref(handle)
}

// Intern returns the canonical string object for s, allocating it on the
// first request.
func (h *Heap) Intern(s string) value.Value {
	if handle, ok := h.strings[s]; ok {
		return value.Ref(handle)
	}
	v := h.alloc(&StringObj{Value: s, Hash: HashString(s)}, OBJ_STRING, int64(len(s))+24)
	h.strings[s] = v.AsRef()
	return v
}

// NewList wraps elements in a new list. The slice is owned by the list.
func (h *Heap) NewList(elements []value.Value) value.Value {
	return h.alloc(&ListObj{Elements: elements}, OBJ_LIST, int64(cap(elements))*8+24)
}

func (h *Heap) NewRange(start, stop, step int64) value.Value {
	return h.alloc(&RangeObj{Start: start, Stop: stop, Step: step}, OBJ_RANGE, 24)
}

func (h *Heap) NewFunction(name string, arity, numLocals int, chunk *bytecode.Chunk) value.Value {
	fn := &FunctionObj{Name: name, Arity: arity, NumLocals: numLocals, Chunk: chunk}
	return h.alloc(fn, OBJ_FUNCTION, int64(len(chunk.Code))+48)
}

// Get resolves a reference. It fails for non-references and for handles the
// arena never produced.
func (h *Heap) Get(v value.Value) (Object, bool) {
	if !v.IsRef() {
		return nil, false
	}
	handle := v.AsRef()
	if handle == 0 || handle >= uint64(len(h.objects)) {
		return nil, false
	}
	return h.objects[handle], true
}

// TypeOf returns the type of the object v refers to.
func (h *Heap) TypeOf(v value.Value) (ObjectType, bool) {
	o, ok := h.Get(v)
	if !ok {
		return 0, false
	}
	return o.header().Type, true
}

// Valid reports whether v is a reference this heap produced.
func (h *Heap) Valid(v value.Value) bool {
	_, ok := h.Get(v)
	return ok
}

func (h *Heap) String(v value.Value) (*StringObj, bool) {
	o, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	s, ok := o.(*StringObj)
	return s, ok
}

func (h *Heap) List(v value.Value) (*ListObj, bool) {
	o, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	l, ok := o.(*ListObj)
	return l, ok
}

func (h *Heap) Range(v value.Value) (*RangeObj, bool) {
	o, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	r, ok := o.(*RangeObj)
	return r, ok
}

func (h *Heap) Function(v value.Value) (*FunctionObj, bool) {
	o, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	f, ok := o.(*FunctionObj)
	return f, ok
}

// Append pushes v onto l, doubling the backing array when it is full.
func (h *Heap) Append(l *ListObj, v value.Value) {
	n := len(l.Elements)
	if n == cap(l.Elements) {
		newCap := cap(l.Elements) * 2
		if newCap < minListCapacity {
			newCap = minListCapacity
		}
		grown := make([]value.Value, n, newCap)
		copy(grown, l.Elements)
		h.bytes += int64(newCap-cap(l.Elements)) * 8
		l.Elements = grown
	}
	l.Elements = l.Elements[:n+1]
	l.Elements[n] = v
}

// Len is the number of live objects.
func (h *Heap) Len() int { return len(h.objects) - 1 }

func (h *Heap) Stats() Stats {
	s := Stats{Objects: h.Len(), Bytes: h.bytes}
	for _, o := range h.objects[1:] {
		switch o.header().Type {
		case OBJ_STRING:
			s.Strings++
		case OBJ_LIST:
			s.Lists++
		case OBJ_RANGE:
			s.Ranges++
		case OBJ_FUNCTION:
			s.Functions++
		}
	}
	return s
}
