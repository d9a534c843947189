package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dshills/vizier/pkg/errors"
)

func peopleColumns() []Column {
	return []Column{{ID: 0, Name: "Name"}, {ID: 1, Name: "Age"}, {ID: 2, Name: "Salary"}}
}

func peopleRows() []Row {
	return []Row{
		{ID: 0, Values: []string{"Alice", "23", "35K"}},
		{ID: 1, Values: []string{"Bob", "32", "30K"}},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		columns       []Column
		rows          []Row
		opts          []Option
		wantColumnCtr int64
		wantRowCtr    int64
		wantErrCode   string
	}{
		{
			name:          "defaults from identifiers",
			columns:       peopleColumns(),
			rows:          peopleRows(),
			wantColumnCtr: 3,
			wantRowCtr:    2,
		},
		{
			name:          "empty dataset",
			wantColumnCtr: 0,
			wantRowCtr:    -1,
		},
		{
			name:          "sparse identifiers",
			columns:       []Column{{ID: 7, Name: "A"}, {ID: 2, Name: "B"}},
			rows:          []Row{{ID: 10, Values: []string{"x", "y"}}},
			wantColumnCtr: 8,
			wantRowCtr:    11,
		},
		{
			name:          "explicit counters",
			columns:       peopleColumns(),
			rows:          peopleRows(),
			opts:          []Option{WithColumnCounter(20), WithRowCounter(40)},
			wantColumnCtr: 20,
			wantRowCtr:    40,
		},
		{
			name:        "row too short",
			columns:     peopleColumns(),
			rows:        []Row{{ID: 0, Values: []string{"Alice"}}},
			wantErrCode: verrors.CodeSchemaViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New("ds", tt.columns, tt.rows, tt.opts...)
			if tt.wantErrCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrCode, verrors.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumnCtr, ds.ColumnCounter)
			assert.Equal(t, tt.wantRowCtr, ds.RowCounter)
			assert.NotNil(t, ds.Annotations)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	rows := peopleRows()
	ds, err := New("ds", peopleColumns(), rows)
	require.NoError(t, err)

	rows[0].Values[0] = "Mallory"
	assert.Equal(t, "Alice", ds.Rows[0].Values[0])
}

func TestColumnLookup(t *testing.T) {
	ds, err := New("ds", peopleColumns(), peopleRows())
	require.NoError(t, err)

	assert.Equal(t, 1, ds.ColumnIndex("age"))
	assert.Equal(t, -1, ds.ColumnIndex("Zip"))
	assert.Equal(t, 2, ds.ColumnPosition(2))
	assert.Equal(t, -1, ds.ColumnPosition(9))
	assert.Equal(t, 1, ds.RowPosition(1))

	_, err = ds.ResolveColumn("Zip")
	assert.ErrorIs(t, err, verrors.ErrUnknownColumn)

	v, err := ds.Value(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "30K", v)

	_, err = ds.Value(3, 0)
	assert.ErrorIs(t, err, verrors.ErrOutOfRange)

	assert.Equal(t, []string{"Name", "Age", "Salary"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.RowCount())
}

func TestClone(t *testing.T) {
	ds, err := New("ds", peopleColumns(), peopleRows())
	require.NoError(t, err)
	ds.Annotations.AddColumn(0, "type", "text")

	cp := ds.Clone()
	assert.Empty(t, cp.ID)
	assert.Equal(t, ds.Columns, cp.Columns)
	assert.Equal(t, ds.Rows, cp.Rows)

	cp.Rows[0].Values[0] = "Carla"
	cp.Annotations.AddColumn(0, "note", "x")
	assert.Equal(t, "Alice", ds.Rows[0].Values[0])
	assert.Len(t, ds.Annotations.ForColumn(0), 1)
}
