package vm

import (
	"fmt"

	"lattice/internal/bytecode"
	"lattice/internal/errors"
	"lattice/internal/value"
)

// PressureMode names a constraint registered against a tracked
// variable (§4.6).
type PressureMode string

const (
	PressureNoGrow    PressureMode = "no_grow"
	PressureNoShrink  PressureMode = "no_shrink"
	PressureNoResize  PressureMode = "no_resize"
	PressureReadHeavy PressureMode = "read_heavy"
)

// historyEntry is one append-only snapshot of a tracked variable.
type historyEntry struct {
	Value    value.Value
	Line     int
	Function string
}

type trackedVar struct {
	history   []historyEntry
	pressures map[PressureMode]bool
}

// bondEntry is one dependency a bonded target cascades onto when the
// target freezes, per Strategy (§4.6 "Bonds: target_name ->
// [(dep_name, strategy)]").
type bondEntry struct {
	Dep      string
	Strategy bytecode.BondStrategy
}

// phaseState is the VM's reactivity ledger: one per VM (and freshly
// reset for every child VM a `scope` worker gets), tracking history,
// pressures, reactions, bonds and seeds by global variable name (§4.6,
// §9 "Phase subsystem"). Grounded on sentra's absence of any such
// subsystem — this is new code written in the surrounding package's
// idiom (plain maps guarded by the single-threaded-per-VM invariant,
// the same way Environment and StructMeta are).
type phaseState struct {
	vars      map[string]*trackedVar
	reactions map[string][]value.Value // name -> registered callbacks
	bonds     map[string][]bondEntry   // target -> deps cascading when target freezes
	seeds     map[string][]value.Value // name -> precondition contracts, one-shot
}

func newPhaseState() *phaseState {
	return &phaseState{
		vars:      make(map[string]*trackedVar),
		reactions: make(map[string][]value.Value),
		bonds:     make(map[string][]bondEntry),
		seeds:     make(map[string][]value.Value),
	}
}

// isTracked reports whether name has ever been passed to track(), the
// condition the write-back helper checks before appending a history
// entry (§4.6 "appends a history entry if the variable is tracked").
func (p *phaseState) isTracked(name string) bool {
	_, ok := p.vars[name]
	return ok
}

func (p *phaseState) ensure(name string) *trackedVar {
	tv, ok := p.vars[name]
	if !ok {
		tv = &trackedVar{pressures: make(map[PressureMode]bool)}
		p.vars[name] = tv
	}
	return tv
}

// track appends a snapshot of val to name's history (§4.6 "history is
// append-only; nothing is ever overwritten").
func (p *phaseState) track(name string, val value.Value, line int, fn string) {
	tv := p.ensure(name)
	tv.history = append(tv.history, historyEntry{Value: val, Line: line, Function: fn})
}

func (p *phaseState) pressurize(name string, mode PressureMode) {
	p.ensure(name).pressures[mode] = true
}

func (p *phaseState) depressurize(name string) {
	if tv, ok := p.vars[name]; ok {
		tv.pressures = make(map[PressureMode]bool)
	}
}

// checkPressure rejects a mutation of class ("grow"/"shrink"/"resize")
// against name if a matching pressure is registered (§4.6).
func (p *phaseState) checkPressure(name, class string) error {
	tv, ok := p.vars[name]
	if !ok {
		return nil
	}
	var mode PressureMode
	switch class {
	case "grow":
		mode = PressureNoGrow
	case "shrink":
		mode = PressureNoShrink
	case "resize":
		mode = PressureNoResize
	default:
		return nil
	}
	if tv.pressures[mode] {
		return errors.New(errors.PressureError, fmt.Sprintf("'%s' is pressurized against %s", name, class), 0)
	}
	return nil
}

func (p *phaseState) react(name string, callback value.Value) {
	p.reactions[name] = append(p.reactions[name], callback)
}

func (p *phaseState) unreact(name string) {
	delete(p.reactions, name)
}

func (p *phaseState) bond(target, dependsOn string, strategy bytecode.BondStrategy) {
	p.bonds[target] = append(p.bonds[target], bondEntry{Dep: dependsOn, Strategy: strategy})
}

func (p *phaseState) unbond(target string) {
	delete(p.bonds, target)
}

// seed registers another precondition contract against name; §4.6
// stores a *list* per name ("name -> [contract closure]"), so a second
// seed() call adds a second contract rather than replacing the first.
func (p *phaseState) seed(name string, contract value.Value) {
	p.seeds[name] = append(p.seeds[name], contract)
}

func (p *phaseState) unseed(name string) {
	delete(p.seeds, name)
}

// phaseVarOp implements freeze_var/thaw_var/sublimate_var: it decodes
// the (name, location-kind, slot) operands (§4.1). When the transition
// lands on Crystal it first validates the name's gate bonds and seed
// contracts non-destructively — either failure aborts before anything
// is written (§4.6 "gate: dep must already be crystal, otherwise
// freeze fails"; "plain freeze_var validates seeds non-destructively")
// — then writes the result back, appends a history entry if the
// variable is tracked, fires any reactions registered on that name,
// and cascades bonds (§4.5, §4.6).
func (v *VM) phaseVarOp(op func(value.Value) value.Value) {
	frame := v.currentFrame()
	nameIdx := v.readU16()
	kind := bytecode.LocationKind(v.readByte())
	slot := int(v.readByte())
	name := frame.chunk.Constant(int(nameIdx)).AsString()

	old := v.readVarLocation(kind, slot, name)
	next := op(old)

	becomingCrystal := next.Phase == value.Crystal && old.Phase != value.Crystal
	if becomingCrystal {
		v.checkGateBonds(name)
		if err := v.validateSeeds(name); err != nil {
			panic(v.nativeError(err))
		}
	}

	v.writeVarLocation(kind, slot, name, next)
	if v.phase.isTracked(name) {
		v.phase.track(name, next, v.currentLine(), frame.function)
	}

	v.fireReactions(name, next)
	if becomingCrystal {
		v.cascadeBonds(name)
	}
}

func (v *VM) readVarLocation(kind bytecode.LocationKind, slot int, name string) value.Value {
	frame := v.currentFrame()
	switch kind {
	case bytecode.LocLocal:
		return v.stack[frame.slotBase+slot]
	case bytecode.LocUpvalue:
		return frame.closure.Upvalues[slot].Get()
	default:
		val, _ := v.globals.Get(name)
		return val
	}
}

func (v *VM) writeVarLocation(kind bytecode.LocationKind, slot int, name string, val value.Value) {
	frame := v.currentFrame()
	switch kind {
	case bytecode.LocLocal:
		v.stack[frame.slotBase+slot] = val
	case bytecode.LocUpvalue:
		frame.closure.Upvalues[slot].Set(val)
	default:
		v.globals.Set(name, val)
	}
}

// fireReactions invokes every callback registered against name with
// (phase_name_string, new_value) whenever its phase-op just ran (§4.6
// "reactions fire synchronously, in registration order, on every
// transition; arguments are (phase_name_string, new_value)").
func (v *VM) fireReactions(name string, next value.Value) {
	phaseName := value.Str(next.Phase.String())
	for _, cb := range v.phase.reactions[name] {
		if _, err := v.callValue(cb, []value.Value{phaseName, next}); err != nil {
			panic(err)
		}
	}
}

// checkGateBonds verifies every gate-bonded dependency of target is
// already crystal before target's own freeze is allowed to commit
// (§4.6 "gate: dep must already be crystal; otherwise freeze fails").
func (v *VM) checkGateBonds(target string) {
	for _, b := range v.phase.bonds[target] {
		if b.Strategy != bytecode.BondGate {
			continue
		}
		dep, ok := v.globals.Get(b.Dep)
		if !ok || dep.Phase != value.Crystal {
			panic(v.runtimeError(errors.PhaseError, "gate bond violated: '%s' is not crystal", b.Dep))
		}
	}
}

// cascadeBonds propagates target's just-committed freeze onto every
// dependency bonded against it (§4.6): mirror freezes the dependency if
// it isn't already crystal, fires its reactions and recurses onto its
// own bonds; inverse thaws a crystal/sublimated dependency and fires
// its reactions; gate was already validated non-destructively by
// checkGateBonds and has nothing further to cascade onto the
// dependency itself. Every entry is consumed once target's bonds are
// read here — freezing target again finds no bonds left to re-fire
// (§8 property law 11 "bond cascade is one-shot").
func (v *VM) cascadeBonds(target string) {
	entries := v.phase.bonds[target]
	if len(entries) == 0 {
		return
	}
	delete(v.phase.bonds, target)

	for _, b := range entries {
		dep, ok := v.globals.Get(b.Dep)
		if !ok {
			continue
		}
		switch b.Strategy {
		case bytecode.BondInverse:
			if dep.Phase == value.Crystal || dep.Phase == value.Sublimated {
				v.commitBondedTransition(b.Dep, value.Thaw(dep))
			}
		case bytecode.BondGate:
			// validated before target's freeze committed; the dependency
			// itself is left untouched.
		default: // mirror
			if dep.Phase != value.Crystal {
				v.commitBondedTransition(b.Dep, value.Freeze(dep))
				v.cascadeBonds(b.Dep)
			}
		}
	}
}

// commitBondedTransition writes a bond-cascaded value back to dep,
// appending history if tracked and firing its reactions — the same
// write-back contract phaseVarOp gives a directly-transitioned
// variable (§4.6 "Write-back helper").
func (v *VM) commitBondedTransition(dep string, next value.Value) {
	v.globals.Set(dep, next)
	if v.phase.isTracked(dep) {
		v.phase.track(dep, next, v.currentLine(), v.currentFrame().function)
	}
	v.fireReactions(dep, next)
}

// validateSeeds evaluates every seed contract registered against name
// without consuming them (§4.6 "plain freeze_var validates seeds
// non-destructively"), failing fast on the first contract that
// rejects the variable's current value.
func (v *VM) validateSeeds(name string) error {
	if len(v.phase.seeds[name]) == 0 {
		return nil
	}
	val, _ := v.globals.Get(name)
	for _, contract := range v.phase.seeds[name] {
		satisfied, err := v.evalContract(contract, val)
		if err != nil {
			return err
		}
		if !satisfied {
			return errors.New(errors.PhaseError, fmt.Sprintf("seed contract for '%s' not satisfied", name), v.currentLine())
		}
	}
	return nil
}

// grow validates every seed contract registered against name (failing
// fast on the first rejection), then freezes the variable, records
// history, cascades its bonds, fires its reactions and consumes every
// seed for that name — the full sequence §4.6 requires of `grow`,
// distinct from the non-destructive seed check a plain `freeze_var`
// performs (§8 property law 12 "seed consumed by grow").
func (v *VM) grow(name string) {
	if err := v.phase.checkPressure(name, "grow"); err != nil {
		panic(v.nativeError(err))
	}
	v.checkGateBonds(name)
	if err := v.validateSeeds(name); err != nil {
		panic(v.nativeError(err))
	}

	val, _ := v.globals.Get(name)
	next := value.Freeze(val)
	v.globals.Set(name, next)
	v.phase.track(name, next, v.currentLine(), v.currentFrame().function)
	v.fireReactions(name, next)
	v.cascadeBonds(name)
	delete(v.phase.seeds, name)
}

// historyEntryToValue renders one append-only snapshot as the enriched
// {phase, value, line, fn} record §4.6's "history" accessor exposes,
// as opposed to "phases"'s bare phase-only timeline.
func historyEntryToValue(h historyEntry) value.Value {
	m := value.NewMap()
	mo := m.Obj.(*value.MapObj)
	mo.Items["phase"] = value.Str(h.Value.Phase.String())
	mo.Items["value"] = h.Value
	mo.Items["line"] = value.Int(int64(h.Line))
	mo.Items["fn"] = value.Str(h.Function)
	return m
}

func (v *VM) evalContract(contract, val value.Value) (bool, error) {
	if contract.Kind != value.KindClosure {
		return contract.IsTruthy(), nil
	}
	rv, err := v.callValue(contract, []value.Value{val})
	if err != nil {
		return false, err
	}
	return rv.IsTruthy(), nil
}
