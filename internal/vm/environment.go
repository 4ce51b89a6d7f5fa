package vm

import "lattice/internal/value"

// Environment is a lexically nested name->value scope chain (§3).
// Module import pushes a fresh Environment so the imported body's
// top-level bindings don't leak into the importer except through the
// returned export map; require instead runs directly against the
// caller's own global Environment.
type Environment struct {
	vars   map[string]value.Value
	parent *Environment
}

func NewEnvironment(parent *Environment) *Environment {
	return &Environment{vars: make(map[string]value.Value), parent: parent}
}

func (e *Environment) Define(name string, v value.Value) {
	e.vars[name] = v
}

func (e *Environment) Get(name string) (value.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return value.Nil(), false
}

func (e *Environment) Set(name string, v value.Value) bool {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			env.vars[name] = v
			return true
		}
	}
	return false
}

// Names returns every binding visible from this scope, innermost wins,
// used when folding a module's live scope into an export map (§4.7).
func (e *Environment) Names() map[string]value.Value {
	out := make(map[string]value.Value)
	var chain []*Environment
	for env := e; env != nil; env = env.parent {
		chain = append(chain, env)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars {
			out[k] = v
		}
	}
	return out
}

// Clone deep-copies the binding chain into a single flat scope — used
// to hand a spawned worker its own private copy of the parent's
// environment (§5: "Child-VM construction clones the parent's
// environment").
func (e *Environment) Clone() *Environment {
	flat := NewEnvironment(nil)
	for k, v := range e.Names() {
		flat.vars[k] = value.Clone(v)
	}
	return flat
}
