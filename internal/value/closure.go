package value

// NativeKind distinguishes how a closure's body should be invoked. This
// gives the closure variant an explicit kind field instead of the
// reference implementation's trick of overloading a shared field as a
// type tag (see SPEC_FULL.md / DESIGN.md "Closure encoding").
type NativeKind uint8

const (
	KindCompiled NativeKind = iota
	KindVMNative
	KindExtNative
)

// NativeFn is the calling convention for vm_native closures (§6): a
// function over an owned argument slice returning a single value or an
// error.
type NativeFn func(args []Value) (Value, error)

// Upvalue mediates between a closure and a stack slot in an outer
// frame (§3). It is either open (Location points into a live frame
// slot) or closed (Location is nil and Closed holds the owned value).
type Upvalue struct {
	Location *Value
	Closed   Value
	Next     *Upvalue // intrusive list, sorted by descending slot address
}

func (u *Upvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

func (u *Upvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

func (u *Upvalue) Close() {
	if u.Location != nil {
		u.Closed = *u.Location
		u.Location = nil
	}
}

// ClosureObj is the closure variant's explicit representation
// (SPEC_FULL.md §9 "give the closure variant explicit fields").
// Body is left as interface{} to avoid an import cycle between
// internal/value and internal/bytecode (Chunk.Constants holds Values,
// a Closure's Body holds a *bytecode.Chunk) — the same "avoid cyclic
// import for now" trade the teacher pack's noxy VM makes for
// ObjFunction.Chunk. The vm package is the only place that type-asserts
// Body back to *bytecode.Chunk.
type ClosureObj struct {
	Name          string
	Kind          NativeKind
	Arity         int
	HasVariadic   bool
	ParamNames    []string
	DefaultValues []Value
	ParamPhases   []Phase
	Upvalues      []*Upvalue
	Body          interface{}
	Native        NativeFn
	ExtAdapter    interface{} // set only for KindExtNative; *vm.extAdapter, see internal/vm/extension.go
}

func NewClosure(c *ClosureObj) Value {
	return Value{Kind: KindClosure, Phase: Fluid, Obj: c}
}
