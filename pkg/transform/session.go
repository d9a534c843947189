package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/tidwall/gjson"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/execution"
)

// session is the state of one script module: the dataset client, the
// captured standard output and the interpreter globals.
type session struct {
	ctx     context.Context
	client  *execution.DatasetClient
	globals map[string]interface{}
	stdout  []string

	// err is the last error raised by a script function. It is reported
	// in place of the evaluator's wrapped error.
	err error
}

func newSession(ctx context.Context, task *execution.TaskContext) *session {
	return &session{
		ctx:     ctx,
		client:  task.Client(),
		globals: task.Globals,
	}
}

// builtins lists the names reserved by script functions.
var builtins = []string{
	"print", "assert", "has_substring", "json_get",
	"get_dataset", "create_dataset", "update_dataset", "rename_dataset", "drop_dataset",
	"cell", "set_cell", "add_column", "delete_column", "add_row", "delete_row",
}

func isReserved(name string) bool {
	for _, b := range builtins {
		if b == name {
			return true
		}
	}
	return false
}

// functions returns the expr options registering the script functions.
func (s *session) functions() []expr.Option {
	return []expr.Option{
		expr.Function("print", s.track(s.print)),
		expr.Function("assert", s.track(s.assert)),
		expr.Function("has_substring", s.track(hasSubstring)),
		expr.Function("json_get", s.track(jsonGet)),
		expr.Function("get_dataset", s.track(s.getDataset)),
		expr.Function("create_dataset", s.track(s.createDataset)),
		expr.Function("update_dataset", s.track(s.updateDataset)),
		expr.Function("rename_dataset", s.track(s.renameDataset)),
		expr.Function("drop_dataset", s.track(s.dropDataset)),
		expr.Function("cell", s.track(cell)),
		expr.Function("set_cell", s.track(setCell)),
		expr.Function("add_column", s.track(addColumn)),
		expr.Function("delete_column", s.track(deleteColumn)),
		expr.Function("add_row", s.track(addRow)),
		expr.Function("delete_row", s.track(deleteRow)),
	}
}

// track records the error of a script function call.
func (s *session) track(fn func(params ...interface{}) (interface{}, error)) func(params ...interface{}) (interface{}, error) {
	return func(params ...interface{}) (interface{}, error) {
		v, err := fn(params...)
		if err != nil {
			s.err = err
		}
		return v, err
	}
}

func (s *session) print(params ...interface{}) (interface{}, error) {
	parts := make([]string, len(params))
	for i, p := range params {
		if t, ok := p.(*Table); ok {
			parts[i] = fmt.Sprintf("<%s: %d columns, %d rows>", t.Name, len(t.Columns), len(t.Rows))
			continue
		}
		str, err := ToString(p)
		if err != nil {
			return nil, err
		}
		parts[i] = str
	}
	s.stdout = append(s.stdout, strings.Join(parts, " "))
	return nil, nil
}

func (s *session) assert(params ...interface{}) (interface{}, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, fmt.Errorf("assert() requires 1 or 2 arguments, got %d", len(params))
	}
	if isTruthy(params[0]) {
		return true, nil
	}
	if len(params) == 2 {
		msg, _ := ToString(params[1])
		return nil, fmt.Errorf("assertion failed: %s", msg)
	}
	return nil, fmt.Errorf("assertion failed")
}

func hasSubstring(params ...interface{}) (interface{}, error) {
	if err := checkArity("has_substring", params, 2); err != nil {
		return nil, err
	}
	str, err := extractParam[string](params, 0, "string")
	if err != nil {
		return false, nil
	}
	substr, err := extractParam[string](params, 1, "substring")
	if err != nil {
		return false, nil
	}
	return strings.Contains(str, substr), nil
}

// jsonGet queries a JSON document held in a cell value.
func jsonGet(params ...interface{}) (interface{}, error) {
	if err := checkArity("json_get", params, 2); err != nil {
		return nil, err
	}
	doc, err := extractParam[string](params, 0, "document")
	if err != nil {
		return nil, err
	}
	path, err := extractParam[string](params, 1, "path")
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("%w: json_get() document is not valid JSON", ErrTypeMismatch)
	}
	return gjson.Get(doc, path).Value(), nil
}

func (s *session) getDataset(params ...interface{}) (interface{}, error) {
	if err := checkArity("get_dataset", params, 1); err != nil {
		return nil, err
	}
	name, err := extractParam[string](params, 0, "name")
	if err != nil {
		return nil, err
	}
	ds, err := s.client.GetDataset(s.ctx, name)
	if err != nil {
		return nil, err
	}
	return newTable(name, ds), nil
}

// createDataset accepts either (name, table) or (name, columns, rows).
func (s *session) createDataset(params ...interface{}) (interface{}, error) {
	if len(params) != 2 && len(params) != 3 {
		return nil, fmt.Errorf("create_dataset() requires 2 or 3 arguments, got %d", len(params))
	}
	name, err := extractParam[string](params, 0, "name")
	if err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if len(params) == 2 {
		t, err := extractParam[*Table](params, 1, "table")
		if err != nil {
			return nil, err
		}
		ds = t.data.Clone()
	} else {
		columns, err := ToStrings(params[1])
		if err != nil {
			return nil, fmt.Errorf("create_dataset() columns: %w", err)
		}
		list, err := ToArray(params[2])
		if err != nil {
			return nil, fmt.Errorf("create_dataset() rows: %w", err)
		}
		rows := make([][]string, len(list))
		for i, item := range list {
			if rows[i], err = ToStrings(item); err != nil {
				return nil, fmt.Errorf("create_dataset() row %d: %w", i, err)
			}
		}
		if ds, err = buildDataset(columns, rows); err != nil {
			return nil, err
		}
	}

	saved, err := s.client.CreateDataset(s.ctx, name, ds)
	if err != nil {
		return nil, err
	}
	return newTable(name, saved), nil
}

func (s *session) updateDataset(params ...interface{}) (interface{}, error) {
	if err := checkArity("update_dataset", params, 2); err != nil {
		return nil, err
	}
	name, err := extractParam[string](params, 0, "name")
	if err != nil {
		return nil, err
	}
	t, err := extractParam[*Table](params, 1, "table")
	if err != nil {
		return nil, err
	}
	saved, err := s.client.UpdateDataset(s.ctx, name, t.data)
	if err != nil {
		return nil, err
	}
	return newTable(name, saved), nil
}

func (s *session) renameDataset(params ...interface{}) (interface{}, error) {
	if err := checkArity("rename_dataset", params, 2); err != nil {
		return nil, err
	}
	name, err := extractParam[string](params, 0, "name")
	if err != nil {
		return nil, err
	}
	newName, err := extractParam[string](params, 1, "new name")
	if err != nil {
		return nil, err
	}
	return true, s.client.RenameDataset(name, newName)
}

func (s *session) dropDataset(params ...interface{}) (interface{}, error) {
	if err := checkArity("drop_dataset", params, 1); err != nil {
		return nil, err
	}
	name, err := extractParam[string](params, 0, "name")
	if err != nil {
		return nil, err
	}
	return true, s.client.DropDataset(name)
}

func cell(params ...interface{}) (interface{}, error) {
	if err := checkArity("cell", params, 3); err != nil {
		return nil, err
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	col, err := columnPosition(t.data, params[1])
	if err != nil {
		return nil, err
	}
	row, err := ToInt(params[2])
	if err != nil {
		return nil, err
	}
	return t.data.Value(col, row)
}

func setCell(params ...interface{}) (interface{}, error) {
	if err := checkArity("set_cell", params, 4); err != nil {
		return nil, err
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	col, err := columnPosition(t.data, params[1])
	if err != nil {
		return nil, err
	}
	row, err := ToInt(params[2])
	if err != nil {
		return nil, err
	}
	value, err := ToString(params[3])
	if err != nil {
		return nil, err
	}
	ds, err := t.data.UpdateCell(col, row, value, false)
	if err != nil {
		return nil, err
	}
	return newTable(t.Name, ds), nil
}

func addColumn(params ...interface{}) (interface{}, error) {
	if len(params) != 2 && len(params) != 3 {
		return nil, fmt.Errorf("add_column() requires 2 or 3 arguments, got %d", len(params))
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	name, err := extractParam[string](params, 1, "name")
	if err != nil {
		return nil, err
	}
	pos := -1
	if len(params) == 3 {
		if pos, err = ToInt(params[2]); err != nil {
			return nil, err
		}
	}
	ds, err := t.data.InsertColumn(name, pos)
	if err != nil {
		return nil, err
	}
	return newTable(t.Name, ds), nil
}

func deleteColumn(params ...interface{}) (interface{}, error) {
	if err := checkArity("delete_column", params, 2); err != nil {
		return nil, err
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	col, err := columnPosition(t.data, params[1])
	if err != nil {
		return nil, err
	}
	ds, err := t.data.DeleteColumn(col)
	if err != nil {
		return nil, err
	}
	return newTable(t.Name, ds), nil
}

// addRow appends a row. Values are optional and positional.
func addRow(params ...interface{}) (interface{}, error) {
	if len(params) != 1 && len(params) != 2 {
		return nil, fmt.Errorf("add_row() requires 1 or 2 arguments, got %d", len(params))
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	ds, err := t.data.InsertRow(-1)
	if err != nil {
		return nil, err
	}
	if len(params) == 2 {
		values, err := ToStrings(params[1])
		if err != nil {
			return nil, err
		}
		if len(values) > len(ds.Columns) {
			return nil, fmt.Errorf("add_row() got %d values for %d columns", len(values), len(ds.Columns))
		}
		copy(ds.Rows[len(ds.Rows)-1].Values, values)
	}
	return newTable(t.Name, ds), nil
}

func deleteRow(params ...interface{}) (interface{}, error) {
	if err := checkArity("delete_row", params, 2); err != nil {
		return nil, err
	}
	t, err := extractParam[*Table](params, 0, "table")
	if err != nil {
		return nil, err
	}
	row, err := ToInt(params[1])
	if err != nil {
		return nil, err
	}
	ds, err := t.data.DeleteRow(row)
	if err != nil {
		return nil, err
	}
	return newTable(t.Name, ds), nil
}
