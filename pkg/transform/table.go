package transform

import (
	"fmt"
	"strings"

	"github.com/dshills/vizier/pkg/dataset"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/validation"
)

// Table is the script view of a dataset snapshot. Scripts read Columns
// and Rows directly; edits go through the table functions, which return a
// new Table and keep column and row identifiers intact.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	data *dataset.Dataset
}

func newTable(name string, ds *dataset.Dataset) *Table {
	rows := make([][]string, len(ds.Rows))
	for i, r := range ds.Rows {
		rows[i] = append([]string(nil), r.Values...)
	}
	return &Table{
		Name:    name,
		Columns: ds.ColumnNames(),
		Rows:    rows,
		data:    ds,
	}
}

// Dataset returns the snapshot behind the table.
func (t *Table) Dataset() *dataset.Dataset {
	return t.data
}

// buildDataset assembles an unsaved dataset from plain column names and
// row values. Identifiers are assigned by position.
func buildDataset(columns []string, rows [][]string) (*dataset.Dataset, error) {
	cols := make([]dataset.Column, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		if !validation.IsValidColumnName(name) {
			return nil, verrors.NewValidation(verrors.CodeInvalidName, "invalid column name '%s'", name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if seen[key] {
			return nil, verrors.NewValidation(verrors.CodeDuplicateName, "column '%s' already exists", name)
		}
		seen[key] = true
		cols[i] = dataset.Column{ID: int64(i), Name: strings.TrimSpace(name)}
	}
	rs := make([]dataset.Row, len(rows))
	for i, values := range rows {
		rs[i] = dataset.Row{ID: int64(i), Values: values}
	}
	return dataset.New("", cols, rs)
}

// columnPosition resolves a column reference given by name or position.
func columnPosition(ds *dataset.Dataset, ref interface{}) (int, error) {
	if name, ok := ref.(string); ok {
		return ds.ResolveColumn(name)
	}
	pos, err := ToInt(ref)
	if err != nil {
		return -1, fmt.Errorf("column reference: %w", err)
	}
	return pos, nil
}
