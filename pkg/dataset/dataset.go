// Package dataset defines immutable dataset snapshots, their three-tier
// annotation store and the contract every dataset store implements.
//
// A Dataset is never mutated once it has an identifier. Structural edits
// (InsertColumn, DeleteRow, UpdateCell, ...) return a new, unsaved copy
// whose column and row identifiers are preserved for everything the edit
// did not touch. Newly created columns and rows draw identifiers from the
// per-lineage counters so they never reuse an identifier of an ancestor.
package dataset

import (
	"strings"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
)

// Column is a named column with a lineage-stable identifier.
type Column struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Row is a list of cell values with a lineage-stable identifier.
// Values are positional and aligned with the dataset's columns. An empty
// string denotes a missing value.
type Row struct {
	ID     int64    `json:"id" yaml:"id"`
	Values []string `json:"values" yaml:"values"`
}

// Dataset is an immutable table snapshot.
type Dataset struct {
	ID            types.DatasetID `json:"id" yaml:"id"`
	Columns       []Column        `json:"columns" yaml:"columns"`
	Rows          []Row           `json:"rows" yaml:"rows"`
	ColumnCounter int64           `json:"column_counter" yaml:"column_counter"`
	RowCounter    int64           `json:"row_counter" yaml:"row_counter"`
	Annotations   *Annotations    `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Option configures New.
type Option func(*options)

type options struct {
	columnCounter *int64
	rowCounter    *int64
	annotations   *Annotations
}

// WithColumnCounter sets an explicit column counter.
func WithColumnCounter(counter int64) Option {
	return func(o *options) { o.columnCounter = &counter }
}

// WithRowCounter sets an explicit row counter.
func WithRowCounter(counter int64) Option {
	return func(o *options) { o.rowCounter = &counter }
}

// WithAnnotations attaches annotations. The annotations are deep-copied.
func WithAnnotations(a *Annotations) Option {
	return func(o *options) { o.annotations = a }
}

// New validates columns and rows and assembles a snapshot with the given id.
//
// Every row must have exactly one value per column, otherwise a
// SCHEMA_VIOLATION error is returned. Counters that are not supplied default
// to one greater than the largest identifier present, or 0 (columns) and -1
// (rows) for empty sets.
func New(id types.DatasetID, columns []Column, rows []Row, opts ...Option) (*Dataset, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	for _, row := range rows {
		if len(row.Values) != len(columns) {
			return nil, verrors.NewValidation(verrors.CodeSchemaViolation,
				"row %d has %d values, expected %d", row.ID, len(row.Values), len(columns))
		}
	}

	ds := &Dataset{
		ID:          id,
		Columns:     copyColumns(columns),
		Rows:        copyRows(rows),
		Annotations: NewAnnotations(),
	}

	if o.columnCounter != nil {
		ds.ColumnCounter = *o.columnCounter
	} else {
		ds.ColumnCounter = DefaultColumnCounter(columns)
	}
	if o.rowCounter != nil {
		ds.RowCounter = *o.rowCounter
	} else {
		ds.RowCounter = DefaultRowCounter(rows)
	}
	if o.annotations != nil {
		ds.Annotations = o.annotations.Copy()
	}

	return ds, nil
}

// DefaultColumnCounter returns max(column id)+1, or 0 for no columns.
func DefaultColumnCounter(columns []Column) int64 {
	if len(columns) == 0 {
		return 0
	}
	maxID := columns[0].ID
	for _, c := range columns[1:] {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1
}

// DefaultRowCounter returns max(row id)+1, or -1 for no rows.
func DefaultRowCounter(rows []Row) int64 {
	if len(rows) == 0 {
		return -1
	}
	maxID := rows[0].ID
	for _, r := range rows[1:] {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID + 1
}

// ColumnNames returns the column names in position order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// ColumnIndex returns the position of the column with the given name.
// Names are matched case-insensitively. Returns -1 if absent.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnPosition returns the position of the column with the given id, or -1.
func (d *Dataset) ColumnPosition(id int64) int {
	for i, c := range d.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RowPosition returns the position of the row with the given id, or -1.
func (d *Dataset) RowPosition(id int64) int {
	for i, r := range d.Rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// ResolveColumn returns the position of the named column or an UNKNOWN_COLUMN error.
func (d *Dataset) ResolveColumn(ref string) (int, error) {
	if pos := d.ColumnIndex(ref); pos >= 0 {
		return pos, nil
	}
	return -1, verrors.NewValidation(verrors.CodeUnknownColumn, "unknown column '%s'", ref)
}

// Value returns the cell value at the given column and row positions.
func (d *Dataset) Value(column, row int) (string, error) {
	if column < 0 || column >= len(d.Columns) {
		return "", verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", column)
	}
	if row < 0 || row >= len(d.Rows) {
		return "", verrors.NewValidation(verrors.CodeOutOfRange, "row position %d out of range", row)
	}
	return d.Rows[row].Values[column], nil
}

// Clone returns a deep, unsaved copy of the dataset (identifier cleared).
func (d *Dataset) Clone() *Dataset {
	annotations := NewAnnotations()
	if d.Annotations != nil {
		annotations = d.Annotations.Copy()
	}
	return &Dataset{
		Columns:       copyColumns(d.Columns),
		Rows:          copyRows(d.Rows),
		ColumnCounter: d.ColumnCounter,
		RowCounter:    d.RowCounter,
		Annotations:   annotations,
	}
}

func copyColumns(columns []Column) []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		values := make([]string, len(r.Values))
		copy(values, r.Values)
		out[i] = Row{ID: r.ID, Values: values}
	}
	return out
}
