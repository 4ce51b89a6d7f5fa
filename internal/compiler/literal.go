package compiler

import "lattice/internal/value"

// goLiteralToValue converts the Go-native values the parser's Literal
// node carries (string/float64/bool/nil — the scanner never
// distinguishes int from float lexically, see DESIGN.md) into a
// runtime value.Value.
func goLiteralToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Nil()
	case bool:
		return value.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.Int(int64(t))
		}
		return value.Float(t)
	case int64:
		return value.Int(t)
	case int:
		return value.Int(int64(t))
	case string:
		return value.Str(t)
	default:
		return value.Nil()
	}
}
