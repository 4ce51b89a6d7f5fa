package value

import "sync/atomic"

// RangeObj is a half-open integer interval [Start, End).
type RangeObj struct {
	Start, End int64
}

func NewRange(start, end int64) Value {
	return Value{Kind: KindRange, Phase: Fluid, Obj: &RangeObj{Start: start, End: end}}
}

// ArrayObj grows by doubling, mirroring a Go slice's own amortized
// growth; Elems is exposed directly so method-table operations (push,
// pop, sort, ...) can mutate in place without a copy.
type ArrayObj struct {
	Elems []Value
}

func NewArray(elems []Value) Value {
	return Value{Kind: KindArray, Phase: Fluid, Obj: &ArrayObj{Elems: elems}}
}

// MapObj is a hash table keyed by canonical string; insertion stability
// is explicitly not guaranteed (§3).
type MapObj struct {
	Items map[string]Value
}

func NewMap() Value {
	return Value{Kind: KindMap, Phase: Fluid, Obj: &MapObj{Items: make(map[string]Value)}}
}

// SetObj is a hash set keyed by the canonical string of its elements.
type SetObj struct {
	Items map[string]Value
}

func NewSet() Value {
	return Value{Kind: KindSet, Phase: Fluid, Obj: &SetObj{Items: make(map[string]Value)}}
}

// TupleObj is a fixed-size, heterogeneous vector.
type TupleObj struct {
	Elems []Value
}

func NewTuple(elems []Value) Value {
	return Value{Kind: KindTuple, Phase: Fluid, Obj: &TupleObj{Elems: elems}}
}

// StructObj holds a named record; FieldPhases is optional per-field
// phase tracking (nil means every field inherits the struct's own
// phase).
type StructObj struct {
	Name        string
	FieldNames  []string
	FieldValues []Value
	FieldPhases []Phase
}

func NewStruct(name string, fieldNames []string, fieldValues []Value) Value {
	return Value{Kind: KindStruct, Phase: Fluid, Obj: &StructObj{Name: name, FieldNames: fieldNames, FieldValues: fieldValues}}
}

func (s *StructObj) FieldIndex(name string) int {
	for i, n := range s.FieldNames {
		if n == name {
			return i
		}
	}
	return -1
}

// EnumObj is a tagged variant with positional payload.
type EnumObj struct {
	EnumName    string
	VariantName string
	Payload     []Value
}

func NewEnum(enumName, variantName string, payload []Value) Value {
	return Value{Kind: KindEnum, Phase: Fluid, Obj: &EnumObj{EnumName: enumName, VariantName: variantName, Payload: payload}}
}

// BufferObj is a growable binary buffer with explicit little-endian
// multi-byte accessors.
type BufferObj struct {
	Bytes []byte
	Len   int
}

func NewBuffer(cap int) Value {
	return Value{Kind: KindBuffer, Phase: Fluid, Obj: &BufferObj{Bytes: make([]byte, 0, cap)}}
}

func (b *BufferObj) ensure(n int) {
	for len(b.Bytes) < n {
		b.Bytes = append(b.Bytes, 0)
	}
	if n > b.Len {
		b.Len = n
	}
}

func (b *BufferObj) WriteU8(offset int, v uint8) {
	b.ensure(offset + 1)
	b.Bytes[offset] = v
}

func (b *BufferObj) ReadU8(offset int) uint8 { return b.Bytes[offset] }

func (b *BufferObj) WriteU16(offset int, v uint16) {
	b.ensure(offset + 2)
	b.Bytes[offset] = byte(v)
	b.Bytes[offset+1] = byte(v >> 8)
}

func (b *BufferObj) ReadU16(offset int) uint16 {
	return uint16(b.Bytes[offset]) | uint16(b.Bytes[offset+1])<<8
}

func (b *BufferObj) WriteU32(offset int, v uint32) {
	b.ensure(offset + 4)
	for i := 0; i < 4; i++ {
		b.Bytes[offset+i] = byte(v >> (8 * i))
	}
}

func (b *BufferObj) ReadU32(offset int) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(b.Bytes[offset+i]) << (8 * i)
	}
	return v
}

// RefObj is the sole shared-mutation primitive (§3 invariant): every
// other compound value clones on pass, a Ref shares identity via this
// atomically refcounted cell.
type RefObj struct {
	refcount int32
	Inner    Value
}

func NewRef(inner Value) Value {
	return Value{Kind: KindRef, Phase: Fluid, Obj: &RefObj{refcount: 1, Inner: inner}}
}

func (r *RefObj) Retain() *RefObj {
	atomic.AddInt32(&r.refcount, 1)
	return r
}

func (r *RefObj) Release() int32 {
	return atomic.AddInt32(&r.refcount, -1)
}

func (r *RefObj) InnerType() string {
	return r.Inner.TypeName()
}
