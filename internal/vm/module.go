package vm

import (
	"fmt"

	"lattice/internal/bytecode"
	"lattice/internal/value"
)

// Module is a cached, already-executed import (§4.7).
type Module struct {
	Path    string
	Exports *value.MapObj
}

// ModuleLoader resolves an import/require path to a compiled Chunk.
// Compile is injected by the embedding program (cmd/lattice's REPL and
// file runner) rather than imported directly here, so internal/vm
// doesn't need to depend on internal/compiler (§4.7).
type ModuleLoader struct {
	Compile func(path string) (*bytecode.Chunk, error)
}

func NewModuleLoader(v *VM) *ModuleLoader {
	return &ModuleLoader{}
}

// doImport executes path in an isolated scope the first time it's
// imported, caches its export map, and returns that map (as a frozen
// value — an imported module's surface is read-only to its importer)
// on every subsequent import (§4.7: "import: isolated scope, cached,
// export map").
func (v *VM) doImport(path string) (value.Value, error) {
	if mod, ok := v.modules[path]; ok {
		return value.Value{Kind: value.KindMap, Phase: value.Crystal, Obj: mod.Exports}, nil
	}
	if v.moduleLoader == nil || v.moduleLoader.Compile == nil {
		return value.Value{}, fmt.Errorf("no module loader configured for import '%s'", path)
	}
	chunk, err := v.moduleLoader.Compile(path)
	if err != nil {
		return value.Value{}, err
	}

	sub := New()
	sub.moduleLoader = v.moduleLoader
	sub.structMeta = v.structMeta
	if _, err := sub.Run(chunk); err != nil {
		return value.Value{}, err
	}

	exports := &value.MapObj{Items: make(map[string]value.Value)}
	for _, name := range chunk.Exports {
		if val, ok := sub.globals.Get(name); ok {
			exports.Items[name] = val
		}
	}
	v.modules[path] = &Module{Path: path, Exports: exports}
	return value.Value{Kind: value.KindMap, Phase: value.Crystal, Obj: exports}, nil
}

// doRequire executes path directly against the caller's own global
// environment, deduplicated by path so a diamond of requires runs the
// file's top level exactly once (§4.7: "require: same-scope execution,
// path-dedup").
func (v *VM) doRequire(path string) error {
	if v.required[path] {
		return nil
	}
	if v.moduleLoader == nil || v.moduleLoader.Compile == nil {
		return fmt.Errorf("no module loader configured for require '%s'", path)
	}
	chunk, err := v.moduleLoader.Compile(path)
	if err != nil {
		return err
	}
	if _, err := v.Run(chunk); err != nil {
		return err
	}
	v.required[path] = true
	return nil
}
