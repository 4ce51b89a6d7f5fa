package vm

import "lattice/internal/value"

// buildArray pops n elements (in push order) into a new ArrayObj
// (§4.1 "Data builders").
func (v *VM) buildArray(n int) {
	elems := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = v.pop()
	}
	v.push(value.NewArray(elems))
}

// flattenTop splices a spread argument (`[...a, b]`) into the array
// beneath it on the stack, one level deep.
func (v *VM) flattenTop() {
	spread := v.pop()
	target := v.pop()
	ta := target.Obj.(*value.ArrayObj)
	if spread.Kind == value.KindArray {
		ta.Elems = append(ta.Elems, spread.Obj.(*value.ArrayObj).Elems...)
	} else {
		ta.Elems = append(ta.Elems, spread)
	}
	v.push(target)
}

func (v *VM) buildMap(n int) {
	m := value.NewMap()
	items := m.Obj.(*value.MapObj).Items
	pairs := make([]value.Value, 2*n)
	for i := 2*n - 1; i >= 0; i-- {
		pairs[i] = v.pop()
	}
	for i := 0; i < n; i++ {
		items[pairs[2*i].AsString()] = pairs[2*i+1]
	}
	v.push(m)
}

func (v *VM) buildSet(n int) {
	s := value.NewSet()
	items := s.Obj.(*value.SetObj).Items
	elems := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = v.pop()
	}
	for _, e := range elems {
		items[e.String()] = e
	}
	v.push(s)
}

func (v *VM) buildTuple(n int) {
	elems := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = v.pop()
	}
	v.push(value.NewTuple(elems))
}

// buildStruct reads the struct's name constant and field count, then
// pops fieldCount (name, value) pairs off the stack in declaration
// order and records the field layout in structMeta the first time the
// struct is constructed (§3 "StructObj").
func (v *VM) buildStruct() {
	frame := v.currentFrame()
	nameIdx := v.readU16()
	fieldCount := int(v.readByte())
	name := frame.chunk.Constant(int(nameIdx)).AsString()

	pairs := make([]value.Value, 2*fieldCount)
	for i := 2*fieldCount - 1; i >= 0; i-- {
		pairs[i] = v.pop()
	}
	fieldNames := make([]string, fieldCount)
	fieldValues := make([]value.Value, fieldCount)
	for i := 0; i < fieldCount; i++ {
		fieldNames[i] = pairs[2*i].AsString()
		fieldValues[i] = pairs[2*i+1]
	}
	if _, ok := v.structMeta[name]; !ok {
		v.structMeta[name] = &StructMeta{Name: name, FieldNames: fieldNames}
	}
	v.push(value.NewStruct(name, fieldNames, fieldValues))
}

// buildEnum reads the enum and variant name constants and payload
// count, pops the payload values and constructs an EnumObj (§3).
func (v *VM) buildEnum() {
	frame := v.currentFrame()
	enumIdx := v.readU16()
	variantIdx := v.readU16()
	payloadCount := int(v.readByte())
	enumName := frame.chunk.Constant(int(enumIdx)).AsString()
	variantName := frame.chunk.Constant(int(variantIdx)).AsString()

	payload := make([]value.Value, payloadCount)
	for i := payloadCount - 1; i >= 0; i-- {
		payload[i] = v.pop()
	}
	v.push(value.NewEnum(enumName, variantName, payload))
}
