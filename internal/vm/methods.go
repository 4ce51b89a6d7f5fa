package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"lattice/internal/errors"
	"lattice/internal/value"
)

// methodFn is a built-in method body: the receiving VM (for allocating
// closures/errors), the receiver itself and its call arguments.
type methodFn func(v *VM, self value.Value, args []value.Value) (value.Value, error)

// methodTable is keyed first by Kind then by name. The reference
// dispatcher hashes "Kind::name" with FNV-1a into a single flat table;
// a nested Go map gives the same O(1) lookup without hand-rolling the
// hash, so that's what this interpreter uses (see DESIGN.md).
var methodTable = map[value.Kind]map[string]methodFn{
	value.KindArray:  arrayMethods,
	value.KindString: stringMethods,
	value.KindMap:    mapMethods,
	value.KindSet:    setMethods,
	value.KindRange:  rangeMethods,
	value.KindStruct: structMethods,
	value.KindEnum:   enumMethods,
	value.KindBuffer: bufferMethods,
	value.KindRef:    refMethods,
	value.KindTuple:  tupleMethods,
}

func lookupMethod(k value.Kind, name string) (methodFn, bool) {
	tbl, ok := methodTable[k]
	if !ok {
		return nil, false
	}
	m, ok := tbl[name]
	return m, ok
}

// mutatingMethods names the calls a pressure check must gate, per
// receiver kind (§4.6: no_grow/no_shrink/no_resize/read_heavy).
var mutatingMethods = map[string]string{ // method name -> pressure class
	"push": "grow", "append": "grow", "insert": "grow", "add": "grow",
	"pop": "shrink", "remove": "shrink", "delete": "shrink", "clear": "shrink",
	"set": "resize", "sort": "resize", "reverse": "resize",
}

// checkMethodPressure enforces any pressure registered against the
// tracked variable localHint before a mutating method runs (§4.6).
func checkMethodPressure(v *VM, self value.Value, method, localHint string) error {
	if localHint == "" || v.phase == nil {
		return nil
	}
	class, mutating := mutatingMethods[method]
	if !mutating {
		return nil
	}
	return v.phase.checkPressure(localHint, class)
}

var arrayMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(self.Obj.(*value.ArrayObj).Elems))), nil
	},
	"push": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		a.Elems = append(a.Elems, args...)
		return self, nil
	},
	"pop": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		if len(a.Elems) == 0 {
			return value.Nil(), errors.New(errors.BoundsError, "pop on empty array", 0)
		}
		last := a.Elems[len(a.Elems)-1]
		a.Elems = a.Elems[:len(a.Elems)-1]
		return last, nil
	},
	"contains": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		for _, e := range a.Elems {
			if value.Equal(e, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	},
	"join": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		sep := ", "
		if len(args) > 0 {
			sep = args[0].AsString()
		}
		a := self.Obj.(*value.ArrayObj)
		parts := make([]string, len(a.Elems))
		for i, e := range a.Elems {
			parts[i] = e.String()
		}
		return value.Str(strings.Join(parts, sep)), nil
	},
	"slice": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		start, end := int(args[0].I), int(args[1].I)
		if start < 0 || end > len(a.Elems) || start > end {
			return value.Nil(), errors.New(errors.BoundsError, "slice out of range", 0)
		}
		cp := append([]value.Value(nil), a.Elems[start:end]...)
		return value.NewArray(cp), nil
	},
	"reverse": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		for i, j := 0, len(a.Elems)-1; i < j; i, j = i+1, j-1 {
			a.Elems[i], a.Elems[j] = a.Elems[j], a.Elems[i]
		}
		return self, nil
	},
	"sort": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		a := self.Obj.(*value.ArrayObj)
		sort.SliceStable(a.Elems, func(i, j int) bool { return value.Compare(a.Elems[i], a.Elems[j]) < 0 })
		return self, nil
	},
}

var stringMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(self.AsString()))), nil
	},
	"upper": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToUpper(self.AsString())), nil
	},
	"lower": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToLower(self.AsString())), nil
	},
	"trim": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.TrimSpace(self.AsString())), nil
	},
	"contains": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(strings.Contains(self.AsString(), args[0].AsString())), nil
	},
	"split": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		parts := strings.Split(self.AsString(), args[0].AsString())
		elems := make([]value.Value, len(parts))
		for i, p := range parts {
			elems[i] = value.Str(p)
		}
		return value.NewArray(elems), nil
	},
	"replace": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.ReplaceAll(self.AsString(), args[0].AsString(), args[1].AsString())), nil
	},
	"to_int": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(self.AsString()), 10, 64)
		if err != nil {
			return value.Nil(), errors.New(errors.TypeError, "cannot parse '"+self.AsString()+"' as int", 0)
		}
		return value.Int(n), nil
	},
	"to_float": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(self.AsString()), 64)
		if err != nil {
			return value.Nil(), errors.New(errors.TypeError, "cannot parse '"+self.AsString()+"' as float", 0)
		}
		return value.Float(f), nil
	},
}

var mapMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(self.Obj.(*value.MapObj).Items))), nil
	},
	"has": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		_, ok := self.Obj.(*value.MapObj).Items[args[0].AsString()]
		return value.Bool(ok), nil
	},
	"get": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		m := self.Obj.(*value.MapObj)
		if val, ok := m.Items[args[0].AsString()]; ok {
			return val, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return value.Nil(), nil
	},
	"set": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		self.Obj.(*value.MapObj).Items[args[0].AsString()] = args[1]
		return self, nil
	},
	"delete": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		delete(self.Obj.(*value.MapObj).Items, args[0].AsString())
		return self, nil
	},
	"keys": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		m := self.Obj.(*value.MapObj)
		keys := make([]value.Value, 0, len(m.Items))
		for k := range m.Items {
			keys = append(keys, value.Str(k))
		}
		return value.NewArray(keys), nil
	},
	"values": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		m := self.Obj.(*value.MapObj)
		vals := make([]value.Value, 0, len(m.Items))
		for _, val := range m.Items {
			vals = append(vals, val)
		}
		return value.NewArray(vals), nil
	},
}

var setMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(self.Obj.(*value.SetObj).Items))), nil
	},
	"add": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		self.Obj.(*value.SetObj).Items[args[0].String()] = args[0]
		return self, nil
	},
	"remove": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		delete(self.Obj.(*value.SetObj).Items, args[0].String())
		return self, nil
	},
	"has": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		_, ok := self.Obj.(*value.SetObj).Items[args[0].String()]
		return value.Bool(ok), nil
	},
}

var rangeMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		r := self.Obj.(*value.RangeObj)
		return value.Int(r.End - r.Start), nil
	},
	"to_array": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		r := self.Obj.(*value.RangeObj)
		elems := make([]value.Value, 0, r.End-r.Start)
		for i := r.Start; i < r.End; i++ {
			elems = append(elems, value.Int(i))
		}
		return value.NewArray(elems), nil
	},
}

var structMethods = map[string]methodFn{
	"get": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		st := self.Obj.(*value.StructObj)
		idx := st.FieldIndex(args[0].AsString())
		if idx < 0 {
			return value.Nil(), errors.New(errors.FieldError, "no field '"+args[0].AsString()+"'", 0)
		}
		return st.FieldValues[idx], nil
	},
	"fields": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		st := self.Obj.(*value.StructObj)
		elems := make([]value.Value, len(st.FieldNames))
		for i, n := range st.FieldNames {
			elems[i] = value.Str(n)
		}
		return value.NewArray(elems), nil
	},
}

var enumMethods = map[string]methodFn{
	"variant": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Str(self.Obj.(*value.EnumObj).VariantName), nil
	},
	"payload": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		e := self.Obj.(*value.EnumObj)
		return value.NewArray(append([]value.Value(nil), e.Payload...)), nil
	},
}

var bufferMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(self.Obj.(*value.BufferObj).Len)), nil
	},
	"read_u8": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(self.Obj.(*value.BufferObj).ReadU8(int(args[0].I)))), nil
	},
	"write_u8": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		self.Obj.(*value.BufferObj).WriteU8(int(args[0].I), uint8(args[1].I))
		return self, nil
	},
	"read_u32": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(self.Obj.(*value.BufferObj).ReadU32(int(args[0].I)))), nil
	},
	"write_u32": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		self.Obj.(*value.BufferObj).WriteU32(int(args[0].I), uint32(args[1].I))
		return self, nil
	},
}

var refMethods = map[string]methodFn{
	"get": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return self.Obj.(*value.RefObj).Inner, nil
	},
	"set": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		self.Obj.(*value.RefObj).Inner = args[0]
		return self, nil
	},
}

var tupleMethods = map[string]methodFn{
	"len": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(self.Obj.(*value.TupleObj).Elems))), nil
	},
	"get": func(v *VM, self value.Value, args []value.Value) (value.Value, error) {
		t := self.Obj.(*value.TupleObj)
		idx := int(args[0].I)
		if idx < 0 || idx >= len(t.Elems) {
			return value.Nil(), errors.New(errors.BoundsError, fmt.Sprintf("tuple index %d out of range", idx), 0)
		}
		return t.Elems[idx], nil
	},
}
