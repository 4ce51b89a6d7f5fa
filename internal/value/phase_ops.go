package value

// Clone returns a deep clone that preserves phase, except Ref, whose
// whole purpose is shared identity (§3 invariant, property law 2):
// cloning a Ref returns the same cell with its refcount bumped.
func Clone(v Value) Value {
	switch v.Kind {
	case KindNil, KindUnit, KindBool, KindInt, KindFloat:
		return v
	case KindString:
		so := v.Obj.(*StringObj)
		cp := make([]byte, len(so.Bytes))
		copy(cp, so.Bytes)
		return Value{Kind: KindString, Phase: v.Phase, Obj: &StringObj{Bytes: cp}}
	case KindRange:
		r := v.Obj.(*RangeObj)
		return Value{Kind: KindRange, Phase: v.Phase, Obj: &RangeObj{Start: r.Start, End: r.End}}
	case KindArray:
		a := v.Obj.(*ArrayObj)
		elems := make([]Value, len(a.Elems))
		for i, e := range a.Elems {
			elems[i] = Clone(e)
		}
		return Value{Kind: KindArray, Phase: v.Phase, Obj: &ArrayObj{Elems: elems}}
	case KindTuple:
		t := v.Obj.(*TupleObj)
		elems := make([]Value, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = Clone(e)
		}
		return Value{Kind: KindTuple, Phase: v.Phase, Obj: &TupleObj{Elems: elems}}
	case KindMap:
		m := v.Obj.(*MapObj)
		items := make(map[string]Value, len(m.Items))
		for k, val := range m.Items {
			items[k] = Clone(val)
		}
		return Value{Kind: KindMap, Phase: v.Phase, Obj: &MapObj{Items: items}}
	case KindSet:
		s := v.Obj.(*SetObj)
		items := make(map[string]Value, len(s.Items))
		for k, val := range s.Items {
			items[k] = val
		}
		return Value{Kind: KindSet, Phase: v.Phase, Obj: &SetObj{Items: items}}
	case KindStruct:
		st := v.Obj.(*StructObj)
		names := append([]string(nil), st.FieldNames...)
		vals := make([]Value, len(st.FieldValues))
		for i, f := range st.FieldValues {
			vals[i] = Clone(f)
		}
		var phases []Phase
		if st.FieldPhases != nil {
			phases = append([]Phase(nil), st.FieldPhases...)
		}
		return Value{Kind: KindStruct, Phase: v.Phase, Obj: &StructObj{Name: st.Name, FieldNames: names, FieldValues: vals, FieldPhases: phases}}
	case KindEnum:
		e := v.Obj.(*EnumObj)
		payload := make([]Value, len(e.Payload))
		for i, p := range e.Payload {
			payload[i] = Clone(p)
		}
		return Value{Kind: KindEnum, Phase: v.Phase, Obj: &EnumObj{EnumName: e.EnumName, VariantName: e.VariantName, Payload: payload}}
	case KindBuffer:
		b := v.Obj.(*BufferObj)
		cp := make([]byte, len(b.Bytes))
		copy(cp, b.Bytes)
		return Value{Kind: KindBuffer, Phase: v.Phase, Obj: &BufferObj{Bytes: cp, Len: b.Len}}
	case KindRef:
		r := v.Obj.(*RefObj)
		r.Retain()
		return v
	case KindChannel:
		c := v.Obj.(*ChannelObj)
		c.Retain()
		return v
	case KindClosure:
		// Closures clone-on-pass as a value, but the body/upvalues are
		// shared structure: a closure is conceptually a single compiled
		// artifact plus a binding environment.
		return v
	default:
		return v
	}
}

// Freeze returns a crystal-phase value. Compound values deep-clone
// (Clone) so the frozen copy does not alias the mutable original,
// except Ref, which shares structure because it is the one value whose
// identity the language lets you share (§4.2).
func Freeze(v Value) Value {
	if v.Kind == KindRef {
		r := v.Obj.(*RefObj)
		r.Retain()
		cp := v
		cp.Phase = Crystal
		return cp
	}
	cp := Clone(v)
	cp.Phase = Crystal
	return freezeFieldsRecursively(cp)
}

func freezeFieldsRecursively(v Value) Value {
	switch v.Kind {
	case KindArray:
		a := v.Obj.(*ArrayObj)
		for i := range a.Elems {
			a.Elems[i].Phase = Crystal
		}
	case KindStruct:
		st := v.Obj.(*StructObj)
		for i := range st.FieldValues {
			st.FieldValues[i].Phase = Crystal
		}
	}
	return v
}

// Thaw unconditionally returns a deep-cloned fluid value (§4.2,
// property law 4: thaw(freeze(v)) == v structurally, phase fluid).
func Thaw(v Value) Value {
	cp := Clone(v)
	cp.Phase = Fluid
	return cp
}

// Sublimate returns a view-only value: dereferenceable, never mutable,
// sharing structure with the source the way Freeze does for Ref and
// deep-cloning otherwise.
func Sublimate(v Value) Value {
	if v.Kind == KindRef {
		r := v.Obj.(*RefObj)
		r.Retain()
		cp := v
		cp.Phase = Sublimated
		return cp
	}
	cp := Clone(v)
	cp.Phase = Sublimated
	return cp
}

// MarkFluid flips phase back to fluid in place without cloning — used
// by the `mark_fluid` opcode, which is a phase relabel, not a thaw.
func MarkFluid(v Value) Value {
	cp := v
	cp.Phase = Fluid
	return cp
}
