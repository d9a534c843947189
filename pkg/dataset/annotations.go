package dataset

import (
	"fmt"
	"strconv"

	verrors "github.com/dshills/vizier/pkg/errors"
)

// Annotation is a single key/value pair. A component may carry several
// annotations with the same key.
type Annotation struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Annotations is the three-tier metadata store of a dataset. Column
// annotations are keyed by column id, row annotations by row id and cell
// annotations by "{column_id}#{row_id}".
type Annotations struct {
	Columns map[string][]Annotation `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    map[string][]Annotation `json:"rows,omitempty" yaml:"rows,omitempty"`
	Cells   map[string][]Annotation `json:"cells,omitempty" yaml:"cells,omitempty"`
}

// NewAnnotations returns an empty annotation set.
func NewAnnotations() *Annotations {
	return &Annotations{
		Columns: make(map[string][]Annotation),
		Rows:    make(map[string][]Annotation),
		Cells:   make(map[string][]Annotation),
	}
}

// ColumnKey returns the column tier key.
func ColumnKey(columnID int64) string {
	return strconv.FormatInt(columnID, 10)
}

// RowKey returns the row tier key.
func RowKey(rowID int64) string {
	return strconv.FormatInt(rowID, 10)
}

// CellKey returns the cell tier key.
func CellKey(columnID, rowID int64) string {
	return fmt.Sprintf("%d#%d", columnID, rowID)
}

// ForColumn returns the annotations of a column.
func (a *Annotations) ForColumn(columnID int64) []Annotation {
	return a.Columns[ColumnKey(columnID)]
}

// ForRow returns the annotations of a row.
func (a *Annotations) ForRow(rowID int64) []Annotation {
	return a.Rows[RowKey(rowID)]
}

// ForCell returns the annotations of a cell.
func (a *Annotations) ForCell(columnID, rowID int64) []Annotation {
	return a.Cells[CellKey(columnID, rowID)]
}

// AddColumn appends a column annotation.
func (a *Annotations) AddColumn(columnID int64, key, value string) {
	a.ensure()
	k := ColumnKey(columnID)
	a.Columns[k] = append(a.Columns[k], Annotation{Key: key, Value: value})
}

// AddRow appends a row annotation.
func (a *Annotations) AddRow(rowID int64, key, value string) {
	a.ensure()
	k := RowKey(rowID)
	a.Rows[k] = append(a.Rows[k], Annotation{Key: key, Value: value})
}

// AddCell appends a cell annotation.
func (a *Annotations) AddCell(columnID, rowID int64, key, value string) {
	a.ensure()
	k := CellKey(columnID, rowID)
	a.Cells[k] = append(a.Cells[k], Annotation{Key: key, Value: value})
}

// ClearCell removes every annotation of a cell.
func (a *Annotations) ClearCell(columnID, rowID int64) {
	delete(a.Cells, CellKey(columnID, rowID))
}

// DropColumn removes the column annotations and the annotations of every
// cell in that column.
func (a *Annotations) DropColumn(columnID int64, rowIDs []int64) {
	delete(a.Columns, ColumnKey(columnID))
	for _, rowID := range rowIDs {
		delete(a.Cells, CellKey(columnID, rowID))
	}
}

// DropRow removes the row annotations and the annotations of every cell in that row.
func (a *Annotations) DropRow(rowID int64, columnIDs []int64) {
	delete(a.Rows, RowKey(rowID))
	for _, columnID := range columnIDs {
		delete(a.Cells, CellKey(columnID, rowID))
	}
}

// Len returns the total number of annotations across all tiers.
func (a *Annotations) Len() int {
	n := 0
	for _, tier := range []map[string][]Annotation{a.Columns, a.Rows, a.Cells} {
		for _, list := range tier {
			n += len(list)
		}
	}
	return n
}

// Copy returns a deep copy of all three tiers.
func (a *Annotations) Copy() *Annotations {
	if a == nil {
		return NewAnnotations()
	}
	return &Annotations{
		Columns: copyTier(a.Columns),
		Rows:    copyTier(a.Rows),
		Cells:   copyTier(a.Cells),
	}
}

// Merge appends all annotations of other that are not already present.
func (a *Annotations) Merge(other *Annotations) {
	if other == nil {
		return
	}
	a.ensure()
	mergeTier(a.Columns, other.Columns)
	mergeTier(a.Rows, other.Rows)
	mergeTier(a.Cells, other.Cells)
}

// UpdateStatement is a targeted annotation change. The target tier is
// derived from which identifiers are set (a negative id means unset):
// column only, row only, or both for a cell.
//
//   - OldValue nil, NewValue set: insert
//   - OldValue set, NewValue set: replace the first matching (key, old) pair
//   - OldValue set, NewValue nil: delete the matching (key, old) pairs
//   - OldValue nil, NewValue nil: delete every annotation with the key
type UpdateStatement struct {
	ColumnID int64
	RowID    int64
	Key      string
	OldValue *string
	NewValue *string
}

// Apply executes an update statement.
func (a *Annotations) Apply(stmt UpdateStatement) error {
	if stmt.Key == "" {
		return verrors.NewValidation(verrors.CodeInvalidArgument, "annotation key cannot be empty")
	}
	a.ensure()

	var tier map[string][]Annotation
	var key string
	switch {
	case stmt.ColumnID >= 0 && stmt.RowID >= 0:
		tier, key = a.Cells, CellKey(stmt.ColumnID, stmt.RowID)
	case stmt.ColumnID >= 0:
		tier, key = a.Columns, ColumnKey(stmt.ColumnID)
	case stmt.RowID >= 0:
		tier, key = a.Rows, RowKey(stmt.RowID)
	default:
		return verrors.NewValidation(verrors.CodeInvalidArgument, "annotation statement has no target")
	}

	list := tier[key]
	switch {
	case stmt.OldValue == nil && stmt.NewValue != nil:
		list = append(list, Annotation{Key: stmt.Key, Value: *stmt.NewValue})
	case stmt.OldValue != nil && stmt.NewValue != nil:
		found := false
		for i, anno := range list {
			if anno.Key == stmt.Key && anno.Value == *stmt.OldValue {
				list[i].Value = *stmt.NewValue
				found = true
				break
			}
		}
		if !found {
			return verrors.NewValidation(verrors.CodeInvalidArgument,
				"annotation %s=%s not found", stmt.Key, *stmt.OldValue)
		}
	default:
		kept := list[:0]
		for _, anno := range list {
			if anno.Key == stmt.Key && (stmt.OldValue == nil || anno.Value == *stmt.OldValue) {
				continue
			}
			kept = append(kept, anno)
		}
		list = kept
	}

	if len(list) == 0 {
		delete(tier, key)
	} else {
		tier[key] = list
	}
	return nil
}

func (a *Annotations) ensure() {
	if a.Columns == nil {
		a.Columns = make(map[string][]Annotation)
	}
	if a.Rows == nil {
		a.Rows = make(map[string][]Annotation)
	}
	if a.Cells == nil {
		a.Cells = make(map[string][]Annotation)
	}
}

func copyTier(tier map[string][]Annotation) map[string][]Annotation {
	out := make(map[string][]Annotation, len(tier))
	for k, list := range tier {
		cp := make([]Annotation, len(list))
		copy(cp, list)
		out[k] = cp
	}
	return out
}

func mergeTier(dst, src map[string][]Annotation) {
	for k, list := range src {
		for _, anno := range list {
			if !containsAnnotation(dst[k], anno) {
				dst[k] = append(dst[k], anno)
			}
		}
	}
}

func containsAnnotation(list []Annotation, anno Annotation) bool {
	for _, a := range list {
		if a == anno {
			return true
		}
	}
	return false
}
