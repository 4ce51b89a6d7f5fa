// Package errors implements Lattice's error taxonomy (§7) and the
// stack-trace rendering every runtime fault funnels through (§6
// "[line N] in <function name>()"). Grounded on sentra's
// internal/errors/errors.go, generalized from six syntax/compile-time
// error kinds to the full runtime taxonomy the phase and concurrency
// subsystems raise.
package errors

import (
	"fmt"
	"strings"

	"lattice/internal/value"
)

type ErrorType string

const (
	SyntaxError      ErrorType = "SyntaxError"
	CompileError     ErrorType = "CompileError"
	ImportError      ErrorType = "ImportError"
	TypeError        ErrorType = "TypeError"
	ArithmeticError  ErrorType = "ArithmeticError"
	BoundsError      ErrorType = "BoundsError"
	NameError        ErrorType = "NameError"
	ArityError       ErrorType = "ArityError"
	FieldError       ErrorType = "FieldError"
	PhaseError       ErrorType = "PhaseError"
	PressureError    ErrorType = "PressureError"
	StackOverflow    ErrorType = "StackOverflow"
	ConcurrencyError ErrorType = "ConcurrencyError"
	UserThrown       ErrorType = "UserThrown"
)

type SourceLocation struct {
	File   string
	Line   int
	Column int
}

type StackFrame struct {
	Function string
	File     string
	Line     int
}

// LatticeError is the one error representation every runtime fault
// funnels through on its way to the unwinding routine (§4.5): "format a
// message, optionally prefix [line N], then deliver through the same
// unwinding routine."
type LatticeError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	// Thrown is set for UserThrown errors: the original value passed to
	// throw()/error(), preserved so a catch handler sees the exact
	// value rather than a stringified message.
	Thrown *value.Value
}

func (e *LatticeError) Error() string {
	var sb strings.Builder
	if e.Location.Line > 0 {
		fmt.Fprintf(&sb, "[line %d] ", e.Location.Line)
	}
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	for _, frame := range e.CallStack {
		if frame.Function == "" {
			fmt.Fprintf(&sb, "\n  [line %d] in <script>", frame.Line)
		} else {
			fmt.Fprintf(&sb, "\n  [line %d] in %s()", frame.Line, frame.Function)
		}
	}
	return sb.String()
}

func New(kind ErrorType, message string, line int) *LatticeError {
	return &LatticeError{Type: kind, Message: message, Location: SourceLocation{Line: line}}
}

func Newf(kind ErrorType, line int, format string, args ...interface{}) *LatticeError {
	return New(kind, fmt.Sprintf(format, args...), line)
}

func (e *LatticeError) WithStack(stack []StackFrame) *LatticeError {
	e.CallStack = stack
	return e
}

func (e *LatticeError) AddStackFrame(function string, line int) *LatticeError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Line: line})
	return e
}

// AsRuntimeValue converts an error into the value a catch handler
// receives: UserThrown surfaces the original thrown value verbatim
// (§7), everything else surfaces as a string-tagged map
// {tag: "err", value: <message>}.
func (e *LatticeError) AsRuntimeValue() value.Value {
	if e.Type == UserThrown && e.Thrown != nil {
		return *e.Thrown
	}
	m := value.NewMap()
	items := m.Obj.(*value.MapObj).Items
	items["tag"] = value.Str("err")
	items["value"] = value.Str(e.Error())
	items["kind"] = value.Str(string(e.Type))
	return m
}
