package vm

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"lattice/internal/errors"
	"lattice/internal/value"
)

func native(name string, arity int, fn value.NativeFn) value.Value {
	return value.NewClosure(&value.ClosureObj{Name: name, Kind: value.KindVMNative, Arity: arity, Native: fn})
}

// registerBuiltins installs the global natives every VM (and every
// child VM a `scope` worker gets) starts with: generic value
// operations the opcode set doesn't cover directly, the phase
// subsystem's history/rewind query surface, and a small slice of the
// domain stack (UUIDs, human-readable formatting) wired straight into
// the global namespace the way sentra's own VM wires its builtins
// in internal/vm (see DESIGN.md).
func registerBuiltins(v *VM) {
	v.globals.Define("len", native("len", 1, func(args []value.Value) (value.Value, error) {
		switch args[0].Kind {
		case value.KindArray:
			return value.Int(int64(len(args[0].Obj.(*value.ArrayObj).Elems))), nil
		case value.KindString:
			return value.Int(int64(len(args[0].AsString()))), nil
		case value.KindMap:
			return value.Int(int64(len(args[0].Obj.(*value.MapObj).Items))), nil
		case value.KindTuple:
			return value.Int(int64(len(args[0].Obj.(*value.TupleObj).Elems))), nil
		default:
			return value.Nil(), errors.New(errors.TypeError, "len() on unsupported type "+args[0].TypeName(), 0)
		}
	}))

	v.globals.Define("type_of", native("type_of", 1, func(args []value.Value) (value.Value, error) {
		return value.Str(args[0].TypeName()), nil
	}))

	v.globals.Define("phase_of", native("phase_of", 1, func(args []value.Value) (value.Value, error) {
		return value.Str(args[0].Phase.String()), nil
	}))

	v.globals.Define("clone", native("clone", 1, func(args []value.Value) (value.Value, error) {
		return value.Clone(args[0]), nil
	}))

	v.globals.Define("to_string", native("to_string", 1, func(args []value.Value) (value.Value, error) {
		return value.Str(args[0].String()), nil
	}))

	v.globals.Define("assert", native("assert", 2, func(args []value.Value) (value.Value, error) {
		if !args[0].IsTruthy() {
			msg := "assertion failed"
			if len(args) > 1 {
				msg = args[1].AsString()
			}
			return value.Nil(), errors.New(errors.UserThrown, msg, 0)
		}
		return value.Unit(), nil
	}))

	// history/phases/rewind expose the phase subsystem's append-only
	// ledger for a tracked variable (§4.6): history returns the enriched
	// {phase, value, line, fn} timeline, phases the phase-only timeline.
	v.globals.Define("history", native("history", 1, func(args []value.Value) (value.Value, error) {
		tv, ok := v.phase.vars[args[0].AsString()]
		if !ok {
			return value.NewArray(nil), nil
		}
		elems := make([]value.Value, len(tv.history))
		for i, h := range tv.history {
			elems[i] = historyEntryToValue(h)
		}
		return value.NewArray(elems), nil
	}))

	v.globals.Define("phases", native("phases", 1, func(args []value.Value) (value.Value, error) {
		tv, ok := v.phase.vars[args[0].AsString()]
		if !ok {
			return value.NewArray(nil), nil
		}
		elems := make([]value.Value, len(tv.history))
		for i, h := range tv.history {
			elems[i] = value.Str(h.Value.Phase.String())
		}
		return value.NewArray(elems), nil
	}))

	v.globals.Define("rewind", native("rewind", 2, func(args []value.Value) (value.Value, error) {
		tv, ok := v.phase.vars[args[0].AsString()]
		if !ok || len(tv.history) == 0 {
			return value.Nil(), errors.New(errors.NameError, "'"+args[0].AsString()+"' has no history", 0)
		}
		back := int(args[1].I)
		idx := len(tv.history) - 1 - back
		if idx < 0 || idx >= len(tv.history) {
			return value.Nil(), errors.New(errors.BoundsError, fmt.Sprintf("rewind(%d) out of range", back), 0)
		}
		return tv.history[idx].Value, nil
	}))

	// --- domain stack: identifiers and human-friendly formatting ---
	v.globals.Define("uuid_v4", native("uuid_v4", 0, func(args []value.Value) (value.Value, error) {
		return value.Str(uuid.NewString()), nil
	}))

	v.globals.Define("humanize_bytes", native("humanize_bytes", 1, func(args []value.Value) (value.Value, error) {
		return value.Str(humanize.Bytes(uint64(args[0].I))), nil
	}))

	v.globals.Define("humanize_time", native("humanize_time", 1, func(args []value.Value) (value.Value, error) {
		return value.Str(humanize.Comma(args[0].I)), nil
	}))

	registerConcurrencyAndPhaseNatives(v)
	registerNetworkNatives(v)
	registerDatabaseNatives(v)
	registerCryptoNatives(v)
	registerExtensionNatives(v)
}
