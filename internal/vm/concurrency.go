package vm

import (
	"math/rand"
	"sync"
	"time"

	"lattice/internal/errors"
	"lattice/internal/value"
)

// runScope implements the `scope` opcode (§5): the worker array and
// the synchronizing body sit on the stack (pushed by the compiler in
// that order), each worker runs on its own child VM concurrently, and
// once every worker returns the synchronizing body is called with the
// array of their results.
func (v *VM) runScope() {
	syncBody := v.pop()
	workersVal := v.pop()
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
			panic(v.nativeError(err))
		}
	}

	rv, err := v.callValue(syncBody, []value.Value{value.NewArray(results)})
	if err != nil {
		panic(err)
	}
	v.push(rv)
}

// runSelect implements the `select` opcode (§5): arms (an array of
// (channel, body) tuples) and a default body (Unit if absent) sit on
// the stack, with no timeout arm (the stack-operand form carries no
// deadline operand). Reachable today only through the `select` native
// in phase_natives.go, which supplies a timeout via selectCore directly;
// this entry point stays so a future compiler emission of the `select`
// opcode has a working handler to land on.
func (v *VM) runSelect() {
	defaultBody := v.pop()
	armsVal := v.pop()
	arms := armsVal.Obj.(*value.ArrayObj).Elems

	rv, err := v.selectCore(arms, defaultBody, false, time.Time{}, value.Nil())
	if err != nil {
		panic(err)
	}
	v.push(rv)
}

// selectCore is the shared select algorithm (§5 "Select" steps 1-6):
// each pass shuffles arm order Fisher-Yates style so no arm is favored
// (§8 property 10), polls every channel non-blockingly, and on the
// first ready arm calls its body with (value, ok). With no ready arm,
// a default body (if any) runs immediately with no blocking; otherwise
// the select sleeps briefly and retries, until either an arm becomes
// ready or — if a timeout was requested — the deadline passes and the
// timeout body runs (§8 scenario S5).
func (v *VM) selectCore(arms []value.Value, defaultBody value.Value, hasTimeout bool, deadline time.Time, timeoutBody value.Value) (value.Value, error) {
	isAbsent := func(b value.Value) bool {
		return b.Kind == value.KindUnit || b.Kind == value.KindNil
	}
	for {
		order := rand.Perm(len(arms))
		for _, idx := range order {
			t := arms[idx].Obj.(*value.TupleObj)
			ch, ok := t.Elems[0].Obj.(*value.ChannelObj)
			if !ok {
				return value.Value{}, v.runtimeError(errors.ConcurrencyError, "malformed select: arm is not a channel")
			}
			body := t.Elems[1]
			val, gotVal, wouldBlock := ch.TryRecv()
			if wouldBlock {
				continue
			}
			return v.callValue(body, []value.Value{val, value.Bool(gotVal)})
		}
		if !isAbsent(defaultBody) {
			return v.callValue(defaultBody, nil)
		}
		if hasTimeout && !time.Now().Before(deadline) {
			if !isAbsent(timeoutBody) {
				return v.callValue(timeoutBody, nil)
			}
			return value.Nil(), nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (v *VM) channelSend(ch, val value.Value) {
	c, ok := ch.Obj.(*value.ChannelObj)
	if !ok {
		panic(v.runtimeError(errors.TypeError, "send on non-channel value"))
	}
	if err := c.Send(val); err != nil {
		panic(v.runtimeError(errors.ConcurrencyError, "%s", err.Error()))
	}
}

func (v *VM) channelRecv(ch value.Value) (value.Value, bool) {
	c, ok := ch.Obj.(*value.ChannelObj)
	if !ok {
		panic(v.runtimeError(errors.TypeError, "recv on non-channel value"))
	}
	return c.Recv()
}
