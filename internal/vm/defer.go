package vm

import "lattice/internal/value"

// runDefers executes, in LIFO order, every deferred thunk registered
// against depth (a frame index in v.frames), removing each from the
// pending list as it runs (§4.5 "defer_run... a LIFO queue scoped to
// the enclosing frame").
func (v *VM) runDefers(depth int) {
	for i := len(v.defers) - 1; i >= 0; i-- {
		if v.defers[i].FrameDepth != depth {
			continue
		}
		entry := v.defers[i]
		v.defers = append(v.defers[:i], v.defers[i+1:]...)
		v.callThunk(entry.Thunk)
	}
}

// callThunk invokes a zero-argument closure to completion and discards
// its result, used for deferred bodies. A compiled closure needs its
// own nested dispatch() pass since pushing its frame alone doesn't run
// it; a native closure runs synchronously as part of enterClosure.
func (v *VM) callThunk(thunk value.Value) {
	if thunk.Kind != value.KindClosure {
		return
	}
	if _, err := v.callValue(thunk, nil); err != nil {
		panic(err)
	}
}
