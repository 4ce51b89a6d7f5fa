package vm

import (
	"testing"

	"lattice/internal/bytecode"
	"lattice/internal/value"
)

// buildChunk assembles a chunk from raw ops, the way sentra's own
// internal/vm/vm_test.go hand-builds bytecode sequences, generalized
// from float-only constants to value.Value so int/string/bool literals
// can be exercised the same way.
func buildChunk(code []byte, constants []value.Value) *bytecode.Chunk {
	c := bytecode.NewChunk("test")
	for _, b := range code {
		c.WriteByte(b, 1)
	}
	for _, v := range constants {
		c.AddConstantNoDedup(v)
	}
	return c
}

func runChunk(t *testing.T, code []byte, constants []value.Value) value.Value {
	t.Helper()
	chunk := buildChunk(code, constants)
	result, err := New().Run(chunk)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return result
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name      string
		code      []byte
		constants []value.Value
		expected  value.Value
	}{
		{
			name: "addition",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpAdd),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Int(10), value.Int(20)},
			expected:  value.Int(30),
		},
		{
			name: "subtraction",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpSub),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Int(20), value.Int(8)},
			expected:  value.Int(12),
		},
		{
			name: "multiplication",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpMul),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Int(6), value.Int(7)},
			expected:  value.Int(42),
		},
		{
			name: "float division",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpDiv),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Float(7), value.Float(2)},
			expected:  value.Float(3.5),
		},
		{
			name: "negation",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpNegate),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Int(5)},
			expected:  value.Int(-5),
		},
		{
			name: "modulo",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpMod),
				byte(bytecode.OpReturn),
			},
			constants: []value.Value{value.Int(17), value.Int(5)},
			expected:  value.Int(2),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := runChunk(t, test.code, test.constants)
			if !value.Equal(got, test.expected) {
				t.Errorf("%s: got %v, want %v", test.name, got, test.expected)
			}
		})
	}
}

func TestComparison(t *testing.T) {
	tests := []struct {
		name      string
		op        bytecode.OpCode
		a, b      value.Value
		expected  bool
	}{
		{"less true", bytecode.OpLess, value.Int(3), value.Int(5), true},
		{"less false", bytecode.OpLess, value.Int(5), value.Int(3), false},
		{"greater true", bytecode.OpGreater, value.Int(9), value.Int(1), true},
		{"equal true", bytecode.OpEqual, value.Int(4), value.Int(4), true},
		{"equal false", bytecode.OpEqual, value.Str("a"), value.Str("b"), false},
		{"less-equal boundary", bytecode.OpLessEqual, value.Int(5), value.Int(5), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code := []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(test.op),
				byte(bytecode.OpReturn),
			}
			got := runChunk(t, code, []value.Value{test.a, test.b})
			if got.Kind != value.KindBool || got.B != test.expected {
				t.Errorf("%s: got %v, want bool %v", test.name, got, test.expected)
			}
		})
	}
}

func TestLocalsAndJumps(t *testing.T) {
	// let x = 1; while x < 5 { x = x + 1 }; return x
	c := bytecode.NewChunk("locals")
	oneIdx := c.AddConstantNoDedup(value.Int(1))
	fiveIdx := c.AddConstantNoDedup(value.Int(5))

	c.WriteOp(bytecode.OpConstant, 1)
	c.WriteByte(byte(oneIdx), 1) // slot 0 starts as 1

	loopStart := len(c.Code)
	c.WriteOp(bytecode.OpGetLocal, 1)
	c.WriteByte(0, 1)
	c.WriteOp(bytecode.OpConstant, 1)
	c.WriteByte(byte(fiveIdx), 1)
	c.WriteOp(bytecode.OpLess, 1)
	exitJump := c.WriteOp(bytecode.OpJumpIfFalse, 1)
	c.WriteU16(0, 1)
	c.WriteOp(bytecode.OpPop, 1)

	c.WriteOp(bytecode.OpIncLocal, 1)
	c.WriteByte(0, 1)

	loopOffset := len(c.Code) - loopStart + 3
	c.WriteOp(bytecode.OpLoop, 1)
	c.WriteU16(uint16(loopOffset), 1)

	afterLoop := len(c.Code)
	c.PatchU16(exitJump+1, uint16(afterLoop-(exitJump+3)))
	c.WriteOp(bytecode.OpPop, 1)

	c.WriteOp(bytecode.OpGetLocal, 1)
	c.WriteByte(0, 1)
	c.WriteOp(bytecode.OpReturn, 1)

	result, err := New().Run(c)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Kind != value.KindInt || result.I != 5 {
		t.Errorf("got %v, want int 5", result)
	}
}

func TestStackOverflow(t *testing.T) {
	c := bytecode.NewChunk("overflow")
	idx := c.AddConstantNoDedup(value.Int(1))
	loopStart := len(c.Code)
	c.WriteOp(bytecode.OpConstant, 1)
	c.WriteByte(byte(idx), 1)
	opLoopOffset := len(c.Code)
	c.WriteOp(bytecode.OpLoop, 1)
	c.WriteU16(uint16(opLoopOffset+3-loopStart), 1)

	_, err := New().Run(c)
	if err == nil {
		t.Fatal("expected a stack overflow error, got none")
	}
}
