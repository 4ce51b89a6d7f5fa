package vm

import (
	"lattice/internal/errors"
	"lattice/internal/value"
)

// indexGet implements `[]` read access across every indexable kind
// (§3): arrays/tuples/buffers by integer position, maps by string key,
// a Ref transparently delegates to its inner value (supplemented
// feature, see DESIGN.md "Ref delegation").
func (v *VM) indexGet(coll, idx value.Value) value.Value {
	switch coll.Kind {
	case value.KindArray:
		a := coll.Obj.(*value.ArrayObj)
		i := boundsCheck(v, int(idx.I), len(a.Elems))
		return a.Elems[i]
	case value.KindTuple:
		t := coll.Obj.(*value.TupleObj)
		i := boundsCheck(v, int(idx.I), len(t.Elems))
		return t.Elems[i]
	case value.KindMap:
		m := coll.Obj.(*value.MapObj)
		val, ok := m.Items[idx.AsString()]
		if !ok {
			panic(v.runtimeError(errors.FieldError, "key '%s' not found", idx.AsString()))
		}
		return val
	case value.KindString:
		s := coll.AsString()
		i := boundsCheck(v, int(idx.I), len(s))
		return value.Str(string(s[i]))
	case value.KindBuffer:
		b := coll.Obj.(*value.BufferObj)
		i := boundsCheck(v, int(idx.I), b.Len)
		return value.Int(int64(b.ReadU8(i)))
	case value.KindRef:
		return v.indexGet(coll.Obj.(*value.RefObj).Inner, idx)
	default:
		panic(v.runtimeError(errors.TypeError, "'%s' is not indexable", coll.TypeName()))
	}
}

func (v *VM) indexSet(coll, idx, val value.Value) {
	switch coll.Kind {
	case value.KindArray:
		if coll.Phase != value.Fluid {
			panic(v.runtimeError(errors.PhaseError, "cannot mutate a %s array", coll.Phase))
		}
		a := coll.Obj.(*value.ArrayObj)
		i := boundsCheck(v, int(idx.I), len(a.Elems))
		a.Elems[i] = val
	case value.KindMap:
		if coll.Phase != value.Fluid {
			panic(v.runtimeError(errors.PhaseError, "cannot mutate a %s map", coll.Phase))
		}
		coll.Obj.(*value.MapObj).Items[idx.AsString()] = val
	case value.KindBuffer:
		b := coll.Obj.(*value.BufferObj)
		b.WriteU8(int(idx.I), uint8(val.I))
	case value.KindRef:
		v.indexSet(coll.Obj.(*value.RefObj).Inner, idx, val)
	default:
		panic(v.runtimeError(errors.TypeError, "'%s' does not support index assignment", coll.TypeName()))
	}
}

func boundsCheck(v *VM, i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		panic(v.runtimeError(errors.BoundsError, "index %d out of range (length %d)", i, length))
	}
	return i
}

// getField reads a named field: structs by declared field, maps by
// key, a Ref delegates to its inner value so field access reads
// through a reference the way a pointer dereference would (§9
// supplemented feature "Ref delegation").
func (v *VM) getField(obj value.Value, name string) value.Value {
	switch obj.Kind {
	case value.KindStruct:
		st := obj.Obj.(*value.StructObj)
		idx := st.FieldIndex(name)
		if idx < 0 {
			panic(v.runtimeError(errors.FieldError, "struct '%s' has no field '%s'", st.Name, name))
		}
		return st.FieldValues[idx]
	case value.KindMap:
		m := obj.Obj.(*value.MapObj)
		if val, ok := m.Items[name]; ok {
			return val
		}
		panic(v.runtimeError(errors.FieldError, "key '%s' not found", name))
	case value.KindRef:
		return v.getField(obj.Obj.(*value.RefObj).Inner, name)
	default:
		panic(v.runtimeError(errors.TypeError, "'%s' has no fields", obj.TypeName()))
	}
}

func (v *VM) setField(obj value.Value, name string, val value.Value) {
	switch obj.Kind {
	case value.KindStruct:
		if obj.Phase != value.Fluid {
			panic(v.runtimeError(errors.PhaseError, "cannot mutate a %s struct", obj.Phase))
		}
		st := obj.Obj.(*value.StructObj)
		idx := st.FieldIndex(name)
		if idx < 0 {
			panic(v.runtimeError(errors.FieldError, "struct '%s' has no field '%s'", st.Name, name))
		}
		if len(st.FieldPhases) > idx && st.FieldPhases[idx] != value.Fluid {
			panic(v.runtimeError(errors.PhaseError, "field '%s' is %s", name, st.FieldPhases[idx]))
		}
		st.FieldValues[idx] = val
	case value.KindMap:
		if obj.Phase != value.Fluid {
			panic(v.runtimeError(errors.PhaseError, "cannot mutate a %s map", obj.Phase))
		}
		obj.Obj.(*value.MapObj).Items[name] = val
	case value.KindRef:
		v.setField(obj.Obj.(*value.RefObj).Inner, name, val)
	default:
		panic(v.runtimeError(errors.TypeError, "'%s' has no fields", obj.TypeName()))
	}
}
