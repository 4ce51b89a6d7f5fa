package vm

import (
	"fmt"

	"lattice/internal/database"
	"lattice/internal/value"
)

// registerDatabaseNatives exposes db_connect/db_query/db_execute/db_close
// over internal/database's DBManager, grounded on that package's own
// connection-ID-keyed API (already its own db_manager.go, sitting next
// to a pentest-oriented database.go that scans for SQL injection and
// default credentials — that part has no equivalent in a general-purpose
// language and is not wired here).
func registerDatabaseNatives(v *VM) {
	mgr := database.NewDBManager()

	v.globals.Define("db_connect", native("db_connect", 3, func(args []value.Value) (value.Value, error) {
		id, dbType, dsn := args[0].AsString(), args[1].AsString(), args[2].AsString()
		if err := mgr.Connect(id, dbType, dsn); err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))

	v.globals.Define("db_execute", native("db_execute", 2, func(args []value.Value) (value.Value, error) {
		affected, err := mgr.Execute(args[0].AsString(), args[1].AsString())
		if err != nil {
			return value.Nil(), err
		}
		return value.Int(affected), nil
	}))

	v.globals.Define("db_query", native("db_query", 2, func(args []value.Value) (value.Value, error) {
		rows, err := mgr.Query(args[0].AsString(), args[1].AsString())
		if err != nil {
			return value.Nil(), err
		}
		elems := make([]value.Value, len(rows))
		for i, row := range rows {
			elems[i] = rowToValue(row)
		}
		return value.NewArray(elems), nil
	}))

	v.globals.Define("db_close", native("db_close", 1, func(args []value.Value) (value.Value, error) {
		if err := mgr.Close(args[0].AsString()); err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))
}

// rowToValue converts one database/sql result row into a Lattice map.
func rowToValue(row map[string]interface{}) value.Value {
	m := value.NewMap()
	mo := m.Obj.(*value.MapObj)
	for col, val := range row {
		mo.Items[col] = goToValue(val)
	}
	return m
}

func goToValue(val interface{}) value.Value {
	switch v := val.(type) {
	case nil:
		return value.Nil()
	case string:
		return value.Str(v)
	case []byte:
		return value.Str(string(v))
	case int64:
		return value.Int(v)
	case int:
		return value.Int(int64(v))
	case float64:
		return value.Float(v)
	case bool:
		return value.Bool(v)
	default:
		return value.Str(fmt.Sprint(v))
	}
}
