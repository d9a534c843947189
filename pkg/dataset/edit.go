package dataset

import (
	"strings"

	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/validation"
)

// The edit methods below never modify the receiver. Each returns a new,
// unsaved Dataset (empty ID) that the caller persists through a Store.

// InsertColumn inserts a new column at position. A position of -1 appends.
// The new column draws its identifier from the column counter.
func (d *Dataset) InsertColumn(name string, position int) (*Dataset, error) {
	if !validation.IsValidColumnName(name) {
		return nil, verrors.NewValidation(verrors.CodeInvalidName, "invalid column name '%s'", name)
	}
	if d.ColumnIndex(name) >= 0 {
		return nil, verrors.NewValidation(verrors.CodeDuplicateName, "column '%s' already exists", name)
	}
	if position == -1 {
		position = len(d.Columns)
	}
	if position < 0 || position > len(d.Columns) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", position)
	}

	out := d.Clone()
	col := Column{ID: out.nextColumnID(), Name: strings.TrimSpace(name)}
	out.Columns = insertAt(out.Columns, position, col)
	for i := range out.Rows {
		out.Rows[i].Values = insertAt(out.Rows[i].Values, position, "")
	}
	return out, nil
}

// DeleteColumn removes the column at position. Identifiers of the remaining
// columns are unchanged.
func (d *Dataset) DeleteColumn(position int) (*Dataset, error) {
	if position < 0 || position >= len(d.Columns) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", position)
	}

	out := d.Clone()
	colID := out.Columns[position].ID
	out.Columns = removeAt(out.Columns, position)
	rowIDs := make([]int64, len(out.Rows))
	for i := range out.Rows {
		out.Rows[i].Values = removeAt(out.Rows[i].Values, position)
		rowIDs[i] = out.Rows[i].ID
	}
	out.Annotations.DropColumn(colID, rowIDs)
	return out, nil
}

// MoveColumn moves the column at from to position to.
func (d *Dataset) MoveColumn(from, to int) (*Dataset, error) {
	if from < 0 || from >= len(d.Columns) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", from)
	}
	if to < 0 || to >= len(d.Columns) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "target position %d out of range", to)
	}

	out := d.Clone()
	if from == to {
		return out, nil
	}
	out.Columns = move(out.Columns, from, to)
	for i := range out.Rows {
		out.Rows[i].Values = move(out.Rows[i].Values, from, to)
	}
	return out, nil
}

// RenameColumn renames the column at position.
func (d *Dataset) RenameColumn(position int, name string) (*Dataset, error) {
	if position < 0 || position >= len(d.Columns) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", position)
	}
	if !validation.IsValidColumnName(name) {
		return nil, verrors.NewValidation(verrors.CodeInvalidName, "invalid column name '%s'", name)
	}
	if idx := d.ColumnIndex(name); idx >= 0 && idx != position {
		return nil, verrors.NewValidation(verrors.CodeDuplicateName, "column '%s' already exists", name)
	}

	out := d.Clone()
	out.Columns[position].Name = strings.TrimSpace(name)
	return out, nil
}

// InsertRow inserts an empty row at position. A position of -1 appends.
func (d *Dataset) InsertRow(position int) (*Dataset, error) {
	if position == -1 {
		position = len(d.Rows)
	}
	if position < 0 || position > len(d.Rows) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "row position %d out of range", position)
	}

	out := d.Clone()
	row := Row{ID: out.nextRowID(), Values: make([]string, len(out.Columns))}
	out.Rows = insertAt(out.Rows, position, row)
	return out, nil
}

// DeleteRow removes the row at position.
func (d *Dataset) DeleteRow(position int) (*Dataset, error) {
	if position < 0 || position >= len(d.Rows) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "row position %d out of range", position)
	}

	out := d.Clone()
	rowID := out.Rows[position].ID
	out.Rows = removeAt(out.Rows, position)
	colIDs := make([]int64, len(out.Columns))
	for i, c := range out.Columns {
		colIDs[i] = c.ID
	}
	out.Annotations.DropRow(rowID, colIDs)
	return out, nil
}

// MoveRow moves the row at from to position to.
func (d *Dataset) MoveRow(from, to int) (*Dataset, error) {
	if from < 0 || from >= len(d.Rows) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "row position %d out of range", from)
	}
	if to < 0 || to >= len(d.Rows) {
		return nil, verrors.NewValidation(verrors.CodeOutOfRange, "target position %d out of range", to)
	}

	out := d.Clone()
	if from != to {
		out.Rows = move(out.Rows, from, to)
	}
	return out, nil
}

// UpdateCell overwrites a cell value. Annotations of the cell are cleared
// unless keepAnnotations is set.
func (d *Dataset) UpdateCell(column, row int, value string, keepAnnotations bool) (*Dataset, error) {
	if _, err := d.Value(column, row); err != nil {
		return nil, err
	}

	out := d.Clone()
	out.Rows[row].Values[column] = value
	if !keepAnnotations {
		out.Annotations.ClearCell(out.Columns[column].ID, out.Rows[row].ID)
	}
	return out, nil
}

// nextColumnID allocates a column identifier and advances the counter.
func (d *Dataset) nextColumnID() int64 {
	id := d.ColumnCounter
	if id < 0 {
		id = 0
	}
	d.ColumnCounter = id + 1
	return id
}

// nextRowID allocates a row identifier and advances the counter. An empty
// lineage carries a row counter of -1; its first row gets id 0.
func (d *Dataset) nextRowID() int64 {
	id := d.RowCounter
	if id < 0 {
		id = 0
	}
	d.RowCounter = id + 1
	return id
}

func insertAt[T any](list []T, pos int, v T) []T {
	list = append(list, v)
	copy(list[pos+1:], list[pos:])
	list[pos] = v
	return list
}

func removeAt[T any](list []T, pos int) []T {
	return append(list[:pos], list[pos+1:]...)
}

func move[T any](list []T, from, to int) []T {
	v := list[from]
	list = removeAt(list, from)
	return insertAt(list, to, v)
}
