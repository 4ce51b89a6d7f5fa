package vm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"lattice/internal/errors"
	"lattice/internal/value"
)

// extRequest/extResponse are the wire shapes of the extension protocol:
// one JSON object per line on the child process's stdin/stdout (§6
// "a dynamic library exposes an init entry point; upon load, the
// extension registers named operations into a map"). Grounded on
// noxy's internal/plugin, adapted from its out-of-process RPC client to
// Lattice's value representation.
type extRequest struct {
	Op     string        `json:"op"`
	Params []interface{} `json:"params"`
}

type extResponse struct {
	Ops    []string    `json:"ops,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// extAdapter owns one loaded extension's child process and is the
// thing every KindExtNative closure built from it shares as
// ClosureObj.ExtAdapter — the "distinct adapter" §6 requires extension
// calls to route through, as opposed to KindVMNative's direct Go call.
type extAdapter struct {
	name string
	cmd  *exec.Cmd
	mu   sync.Mutex

	stdinW  *bufio.Writer
	stdoutR *bufio.Scanner
}

func loadExtension(name, execPath string) (*extAdapter, []string, error) {
	cmd := exec.Command(execPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("extension '%s': stdin pipe: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("extension '%s': stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("extension '%s': start: %w", name, err)
	}

	a := &extAdapter{
		name:    name,
		cmd:     cmd,
		stdinW:  bufio.NewWriter(stdin),
		stdoutR: bufio.NewScanner(stdout),
	}

	// Handshake: an init request (op "__init__") lists the operations the
	// extension registers (§6 "registers named operations into a map
	// that becomes the return value of require_ext").
	resp, err := a.roundTrip(extRequest{Op: "__init__"})
	if err != nil {
		return nil, nil, err
	}
	return a, resp.Ops, nil
}

func (a *extAdapter) roundTrip(req extRequest) (*extResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("extension '%s': encode request: %w", a.name, err)
	}
	if _, err := a.stdinW.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("extension '%s': write request: %w", a.name, err)
	}
	if err := a.stdinW.Flush(); err != nil {
		return nil, fmt.Errorf("extension '%s': flush request: %w", a.name, err)
	}

	if !a.stdoutR.Scan() {
		if err := a.stdoutR.Err(); err != nil {
			return nil, fmt.Errorf("extension '%s': read response: %w", a.name, err)
		}
		return nil, fmt.Errorf("extension '%s': closed without responding", a.name)
	}
	var resp extResponse
	if err := json.Unmarshal(a.stdoutR.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("extension '%s': decode response: %w", a.name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("extension '%s': %s", a.name, resp.Error)
	}
	return &resp, nil
}

// call converts args to the extension's guest representation, round-trips
// op over the wire, and converts the result back to a Lattice value —
// the host/guest conversion §6 calls out as extension_native's job.
func (a *extAdapter) call(op string, args []value.Value) (value.Value, error) {
	params := make([]interface{}, len(args))
	for i, v := range args {
		params[i] = valueToGo(v)
	}
	resp, err := a.roundTrip(extRequest{Op: op, Params: params})
	if err != nil {
		return value.Nil(), err
	}
	return goToValue(resp.Result), nil
}

// valueToGo is goToValue's inverse: it flattens a Lattice value into the
// plain Go types encoding/json already knows how to marshal.
func valueToGo(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNil, value.KindUnit:
		return nil
	case value.KindBool:
		return v.B
	case value.KindInt:
		return v.I
	case value.KindFloat:
		return v.F
	case value.KindString:
		return v.AsString()
	case value.KindArray:
		elems := v.Obj.(*value.ArrayObj).Elems
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = valueToGo(e)
		}
		return out
	case value.KindMap:
		items := v.Obj.(*value.MapObj).Items
		out := make(map[string]interface{}, len(items))
		for k, e := range items {
			out[k] = valueToGo(e)
		}
		return out
	default:
		return v.String()
	}
}

// registerExtensionNatives exposes require_ext(name, exec_path): it
// loads the named extension, and returns a map of op-name to a
// KindExtNative closure that round-trips through the adapter — the
// concrete entry point §6's "require_ext(name)" describes.
type loadedExtension struct {
	adapter *extAdapter
	ops     []string
}

func registerExtensionNatives(v *VM) {
	loaded := make(map[string]loadedExtension)
	var mu sync.Mutex

	v.globals.Define("require_ext", native("require_ext", 2, func(args []value.Value) (value.Value, error) {
		name, execPath := args[0].AsString(), args[1].AsString()

		mu.Lock()
		le, ok := loaded[name]
		mu.Unlock()

		if !ok {
			a, ops, err := loadExtension(name, execPath)
			if err != nil {
				return value.Nil(), errors.New(errors.ImportError, err.Error(), v.currentLine())
			}
			le = loadedExtension{adapter: a, ops: ops}
			mu.Lock()
			loaded[name] = le
			mu.Unlock()
		}
		a, ops := le.adapter, le.ops

		m := value.NewMap()
		mo := m.Obj.(*value.MapObj)
		for _, op := range ops {
			op := op
			mo.Items[op] = value.NewClosure(&value.ClosureObj{
				Name:       name + "::" + op,
				Kind:       value.KindExtNative,
				Arity:      0,
				ExtAdapter: a,
				Native: func(callArgs []value.Value) (value.Value, error) {
					return a.call(op, callArgs)
				},
			})
		}
		return m, nil
	}))
}
