// Package value implements Lattice's tagged-union runtime value, modeled
// the way estevaofon-noxy's internal/value package tags a fixed Value
// struct by kind rather than boxing every value behind interface{}.
package value

import (
	"fmt"
	"math"
	"strings"
)

// Kind discriminates the variant a Value holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindUnit
	KindBool
	KindInt
	KindFloat
	KindString
	KindRange
	KindArray
	KindMap
	KindSet
	KindTuple
	KindStruct
	KindEnum
	KindBuffer
	KindRef
	KindClosure
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindRange:
		return "range"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindTuple:
		return "tuple"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindBuffer:
		return "buffer"
	case KindRef:
		return "ref"
	case KindClosure:
		return "closure"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Value is Lattice's single runtime representation: primitives are held
// inline (no heap indirection for Int/Float/Bool), compound and shared
// values carry an owning pointer in Obj. Every Value, regardless of
// kind, carries a Phase (§3 of the spec: "every one carrying a phase").
type Value struct {
	Kind  Kind
	Phase Phase
	I     int64
	F     float64
	B     bool
	Obj   interface{}
}

func Nil() Value                 { return Value{Kind: KindNil, Phase: Unphased} }
func Unit() Value                { return Value{Kind: KindUnit, Phase: Unphased} }
func Bool(b bool) Value          { return Value{Kind: KindBool, B: b, Phase: Fluid} }
func Int(i int64) Value          { return Value{Kind: KindInt, I: i, Phase: Fluid} }
func Float(f float64) Value      { return Value{Kind: KindFloat, F: f, Phase: Fluid} }
func Str(s string) Value         { return Value{Kind: KindString, Obj: &StringObj{Bytes: []byte(s)}, Phase: Fluid} }

// StringObj owns the backing bytes of a string value.
type StringObj struct {
	Bytes []byte
}

func (v Value) AsString() string {
	if so, ok := v.Obj.(*StringObj); ok {
		return string(so.Bytes)
	}
	return ""
}

// IsTruthy implements §4.2: nil, false and unit are falsy, everything
// else is truthy.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNil, KindUnit:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

// TypeName returns the display name used by error messages, TypeOf and
// Ref.InnerType().
func (v Value) TypeName() string {
	switch v.Kind {
	case KindStruct:
		return v.Obj.(*StructObj).Name
	case KindEnum:
		return v.Obj.(*EnumObj).EnumName
	default:
		return v.Kind.String()
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindUnit:
		return "()"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return formatFloat(v.F)
	case KindString:
		return v.AsString()
	case KindRange:
		r := v.Obj.(*RangeObj)
		return fmt.Sprintf("%d..%d", r.Start, r.End)
	case KindArray:
		a := v.Obj.(*ArrayObj)
		parts := make([]string, len(a.Elems))
		for i, e := range a.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindTuple:
		t := v.Obj.(*TupleObj)
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindMap:
		m := v.Obj.(*MapObj)
		parts := make([]string, 0, len(m.Items))
		for k, val := range m.Items {
			parts = append(parts, fmt.Sprintf("%s: %s", k, val.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindSet:
		s := v.Obj.(*SetObj)
		parts := make([]string, 0, len(s.Items))
		for k := range s.Items {
			parts = append(parts, k)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindStruct:
		st := v.Obj.(*StructObj)
		parts := make([]string, len(st.FieldNames))
		for i, n := range st.FieldNames {
			parts[i] = fmt.Sprintf("%s: %s", n, st.FieldValues[i].String())
		}
		return fmt.Sprintf("%s{%s}", st.Name, strings.Join(parts, ", "))
	case KindEnum:
		e := v.Obj.(*EnumObj)
		if len(e.Payload) == 0 {
			return fmt.Sprintf("%s::%s", e.EnumName, e.VariantName)
		}
		parts := make([]string, len(e.Payload))
		for i, p := range e.Payload {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s::%s(%s)", e.EnumName, e.VariantName, strings.Join(parts, ", "))
	case KindBuffer:
		b := v.Obj.(*BufferObj)
		return fmt.Sprintf("<buffer %d bytes>", b.Len)
	case KindRef:
		return fmt.Sprintf("<ref %s>", v.Obj.(*RefObj).Inner.String())
	case KindClosure:
		return fmt.Sprintf("<fn %s>", v.Obj.(*ClosureObj).Name)
	case KindChannel:
		return "<channel>"
	default:
		return "?"
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
