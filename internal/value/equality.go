package value

// Equal implements §4.2: structural, recursive, type-strict equality,
// except numeric operands coerce between Int and Float (both for `==`
// and for ordering comparisons, per the spec's explicit carve-out).
func Equal(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return numericEqual(a, b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil, KindUnit:
		return true
	case KindBool:
		return a.B == b.B
	case KindString:
		return a.AsString() == b.AsString()
	case KindRange:
		ra, rb := a.Obj.(*RangeObj), b.Obj.(*RangeObj)
		return ra.Start == rb.Start && ra.End == rb.End
	case KindArray:
		aa, ab := a.Obj.(*ArrayObj), b.Obj.(*ArrayObj)
		if len(aa.Elems) != len(ab.Elems) {
			return false
		}
		for i := range aa.Elems {
			if !Equal(aa.Elems[i], ab.Elems[i]) {
				return false
			}
		}
		return true
	case KindTuple:
		ta, tb := a.Obj.(*TupleObj), b.Obj.(*TupleObj)
		if len(ta.Elems) != len(tb.Elems) {
			return false
		}
		for i := range ta.Elems {
			if !Equal(ta.Elems[i], tb.Elems[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ma, mb := a.Obj.(*MapObj), b.Obj.(*MapObj)
		if len(ma.Items) != len(mb.Items) {
			return false
		}
		for k, v := range ma.Items {
			ov, ok := mb.Items[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	case KindSet:
		sa, sb := a.Obj.(*SetObj), b.Obj.(*SetObj)
		if len(sa.Items) != len(sb.Items) {
			return false
		}
		for k := range sa.Items {
			if _, ok := sb.Items[k]; !ok {
				return false
			}
		}
		return true
	case KindStruct:
		sa, sb := a.Obj.(*StructObj), b.Obj.(*StructObj)
		if sa.Name != sb.Name || len(sa.FieldValues) != len(sb.FieldValues) {
			return false
		}
		for i := range sa.FieldValues {
			if !Equal(sa.FieldValues[i], sb.FieldValues[i]) {
				return false
			}
		}
		return true
	case KindEnum:
		ea, eb := a.Obj.(*EnumObj), b.Obj.(*EnumObj)
		if ea.EnumName != eb.EnumName || ea.VariantName != eb.VariantName || len(ea.Payload) != len(eb.Payload) {
			return false
		}
		for i := range ea.Payload {
			if !Equal(ea.Payload[i], eb.Payload[i]) {
				return false
			}
		}
		return true
	case KindBuffer:
		ba, bb := a.Obj.(*BufferObj), b.Obj.(*BufferObj)
		if ba.Len != bb.Len {
			return false
		}
		for i := 0; i < ba.Len; i++ {
			if ba.Bytes[i] != bb.Bytes[i] {
				return false
			}
		}
		return true
	case KindRef:
		return a.Obj.(*RefObj) == b.Obj.(*RefObj)
	case KindChannel:
		return a.Obj.(*ChannelObj) == b.Obj.(*ChannelObj)
	case KindClosure:
		return a.Obj.(*ClosureObj) == b.Obj.(*ClosureObj)
	default:
		return false
	}
}

func isNumeric(v Value) bool { return v.Kind == KindInt || v.Kind == KindFloat }

func numericEqual(a, b Value) bool {
	if a.Kind == KindInt && b.Kind == KindInt {
		return a.I == b.I
	}
	return asFloat(a) == asFloat(b)
}

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

// Compare returns -1, 0, 1 for ordering comparisons (lt/gt/lteq/gteq).
// Only numeric and string operands are ordered; callers must reject
// anything else with a TypeError before calling this.
func Compare(a, b Value) int {
	if isNumeric(a) && isNumeric(b) {
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := a.AsString(), b.AsString()
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}
