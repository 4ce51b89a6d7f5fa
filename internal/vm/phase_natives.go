package vm

import (
	"sync"
	"time"

	"lattice/internal/errors"
	"lattice/internal/value"
)

// registerConcurrencyAndPhaseNatives exposes the `scope`/`select`
// opcodes' underlying logic (concurrency.go) and the phase tracker's
// react/bond/seed/pressurize surface (phase.go) as plain global
// natives, so source code reaches them through ordinary calls
// (`spawn(fn)`, `channel()`, `bond("b", "a", "mirror")`, ...) rather
// than through dedicated statement syntax the parser does not have —
// the value-level phase ops (freeze/thaw/...) and the VM's
// stack-shaped scope/select opcodes stay as the lower-level primitives
// these natives are built on (§5, §4.6).
func registerConcurrencyAndPhaseNatives(v *VM) {
	v.globals.Define("freeze", native("freeze", 1, func(args []value.Value) (value.Value, error) {
		return value.Freeze(args[0]), nil
	}))
	v.globals.Define("thaw", native("thaw", 1, func(args []value.Value) (value.Value, error) {
		return value.Thaw(args[0]), nil
	}))
	v.globals.Define("sublimate", native("sublimate", 1, func(args []value.Value) (value.Value, error) {
		return value.Sublimate(args[0]), nil
	}))
	v.globals.Define("mark_fluid", native("mark_fluid", 1, func(args []value.Value) (value.Value, error) {
		return value.MarkFluid(args[0]), nil
	}))

	v.globals.Define("channel", native("channel", 0, func(args []value.Value) (value.Value, error) {
		return value.NewChannel(), nil
	}))
	v.globals.Define("send", native("send", 2, func(args []value.Value) (value.Value, error) {
		v.channelSend(args[0], args[1])
		return value.Unit(), nil
	}))
	v.globals.Define("recv", native("recv", 1, func(args []value.Value) (value.Value, error) {
		val, ok := v.channelRecv(args[0])
		return value.NewTuple([]value.Value{val, value.Bool(ok)}), nil
	}))

	// spawn fires fn in its own child VM without waiting, for one-off
	// background work outside a synchronizing scope.
	v.globals.Define("spawn", native("spawn", 1, func(args []value.Value) (value.Value, error) {
		fn := args[0]
		go func() {
			child := v.NewChildVM()
			_, _ = child.callValue(fn, nil)
		}()
		return value.Unit(), nil
	}))

	// scope runs every worker in workers concurrently on its own child
	// VM, then calls syncBody with the array of their results once all
	// have returned — the same contract runScope enforces for the
	// `scope` opcode, reused here directly against VM values instead of
	// the operand stack.
	v.globals.Define("scope", native("scope", 2, func(args []value.Value) (value.Value, error) {
		workersVal, syncBody := args[0], args[1]
		workers := workersVal.Obj.(*value.ArrayObj).Elems

		results := make([]value.Value, len(workers))
		errs := make([]error, len(workers))
		var wg sync.WaitGroup
		for i, w := range workers {
			wg.Add(1)
			go func(i int, w value.Value) {
				defer wg.Done()
				child := v.NewChildVM()
				rv, err := child.callValue(w, nil)
				results[i], errs[i] = rv, err
			}(i, w)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return value.Nil(), err
			}
		}
		return v.callValue(syncBody, []value.Value{value.NewArray(results)})
	}))

	// select(arms, default_body, timeout_ms, timeout_body) runs selectCore
	// against an array of (channel, body) tuples (§5 "Select"). default_body
	// and timeout_ms/timeout_body are optional trailing arguments: call with
	// just `arms` for a blocking select with no default and no timeout,
	// with two arguments for a non-blocking select with a default arm, or
	// with all four for a select that times out after timeout_ms and runs
	// timeout_body (§8 scenario S5).
	v.globals.Define("select", native("select", 4, func(args []value.Value) (value.Value, error) {
		arms := args[0].Obj.(*value.ArrayObj).Elems

		defaultBody := value.Nil()
		if len(args) > 1 {
			defaultBody = args[1]
		}

		hasTimeout := false
		var deadline time.Time
		timeoutBody := value.Nil()
		if len(args) > 2 && args[2].Kind == value.KindInt {
			hasTimeout = true
			deadline = time.Now().Add(time.Duration(args[2].I) * time.Millisecond)
			if len(args) > 3 {
				timeoutBody = args[3]
			}
		}

		return v.selectCore(arms, defaultBody, hasTimeout, deadline, timeoutBody)
	}))

	v.globals.Define("track", native("track", 1, func(args []value.Value) (value.Value, error) {
		name := args[0].AsString()
		val, _ := v.globals.Get(name)
		v.phase.track(name, val, v.currentLine(), v.currentFrame().function)
		return value.Unit(), nil
	}))
	v.globals.Define("react", native("react", 2, func(args []value.Value) (value.Value, error) {
		v.phase.react(args[0].AsString(), args[1])
		return value.Unit(), nil
	}))
	v.globals.Define("unreact", native("unreact", 1, func(args []value.Value) (value.Value, error) {
		v.phase.unreact(args[0].AsString())
		return value.Unit(), nil
	}))
	v.globals.Define("bond", native("bond", 3, func(args []value.Value) (value.Value, error) {
		v.phase.bond(args[0].AsString(), args[1].AsString(), bondStrategyFromString(args[2].AsString()))
		return value.Unit(), nil
	}))
	v.globals.Define("unbond", native("unbond", 1, func(args []value.Value) (value.Value, error) {
		v.phase.unbond(args[0].AsString())
		return value.Unit(), nil
	}))
	v.globals.Define("seed", native("seed", 2, func(args []value.Value) (value.Value, error) {
		v.phase.seed(args[0].AsString(), args[1])
		return value.Unit(), nil
	}))
	v.globals.Define("unseed", native("unseed", 1, func(args []value.Value) (value.Value, error) {
		v.phase.unseed(args[0].AsString())
		return value.Unit(), nil
	}))
	v.globals.Define("pressurize", native("pressurize", 2, func(args []value.Value) (value.Value, error) {
		v.phase.pressurize(args[0].AsString(), PressureMode(args[1].AsString()))
		return value.Unit(), nil
	}))
	v.globals.Define("depressurize", native("depressurize", 1, func(args []value.Value) (value.Value, error) {
		v.phase.depressurize(args[0].AsString())
		return value.Unit(), nil
	}))
	v.globals.Define("grow", native("grow", 1, func(args []value.Value) (value.Value, error) {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if le, ok := r.(*errors.LatticeError); ok {
						err = le
						return
					}
					panic(r)
				}
			}()
			v.grow(args[0].AsString())
			return nil
		}()
		if err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))
}
