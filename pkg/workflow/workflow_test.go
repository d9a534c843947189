package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/domain/types"
)

func TestWorkflow_Helpers(t *testing.T) {
	m0 := NewModule(0, LoadDataset("people", "f"))
	m0.Datasets["people"] = "ds-1"
	m1 := NewModule(3, UpdateCell("people", "Age", 0, "28"))
	m1.Datasets["people"] = "ds-2"

	wf := New("b1", 7, []*Module{m0, m1})
	assert.Equal(t, types.BranchID("b1"), wf.BranchID)
	assert.False(t, wf.HasError())
	assert.False(t, wf.IsEmpty())
	assert.Equal(t, 1, wf.ModuleIndex(3))
	assert.Equal(t, -1, wf.ModuleIndex(9))
	assert.Same(t, m1, wf.Module(3))
	assert.Nil(t, wf.Module(9))
	assert.Equal(t, map[string]types.DatasetID{"people": "ds-2"}, wf.Datasets())

	m1.Stderr = []string{"boom"}
	assert.True(t, wf.HasError())

	empty := New("b1", 8, nil)
	assert.True(t, empty.IsEmpty())
	assert.NotNil(t, empty.Modules)
	assert.Empty(t, empty.Datasets())
}

func TestModule_CopyIsDeep(t *testing.T) {
	m := NewModule(1, Domain("people", "Name", []string{"Alice"}))
	m.Datasets["people"] = "ds-1"
	m.Stdout = []string{"ok"}

	cp := m.Copy()
	cp.Datasets["people"] = "ds-2"
	cp.Stdout[0] = "changed"
	cp.Command.Arguments["dataset"] = "other"
	cp.Command.Arguments["values"].([]interface{})[0].(map[string]interface{})["value"] = "Mallory"

	assert.Equal(t, types.DatasetID("ds-1"), m.Datasets["people"])
	assert.Equal(t, "ok", m.Stdout[0])
	assert.Equal(t, "people", m.Command.Arguments["dataset"])
	list, err := m.Command.ListArg("values")
	require.NoError(t, err)
	assert.Equal(t, "Alice", list[0]["value"])

	reset := m.Reset()
	assert.Equal(t, m.ID, reset.ID)
	assert.Empty(t, reset.Datasets)
	assert.Empty(t, reset.Stdout)
	assert.False(t, reset.HasError())
}

func TestModuleSpecification_Args(t *testing.T) {
	spec := ModuleSpecification{Arguments: map[string]interface{}{
		"name":   "people",
		"row":    float64(2),
		"big":    2.5,
		"column": 1,
		"keep":   true,
	}}

	s, err := spec.StringArg("name")
	require.NoError(t, err)
	assert.Equal(t, "people", s)

	n, err := spec.IntArg("row")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = spec.IntArg("big")
	assert.Error(t, err)
	_, err = spec.IntArg("missing")
	assert.Error(t, err)
	_, err = spec.StringArg("row")
	assert.Error(t, err)

	col, err := spec.ColumnArg("column")
	require.NoError(t, err)
	assert.Equal(t, ColumnRef{Position: 1}, col)
	assert.Equal(t, "1", col.String())

	named, err := spec.ColumnArg("name")
	require.NoError(t, err)
	assert.Equal(t, "people", named.Name)

	keep, err := spec.BoolArg("keep", false)
	require.NoError(t, err)
	assert.True(t, keep)
	def, err := spec.BoolArg("absent", true)
	require.NoError(t, err)
	assert.True(t, def)

	f, err := spec.FloatArg("big", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
	f, err = spec.FloatArg("absent", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)
	_, err = spec.FloatArg("keep", 0)
	assert.Error(t, err)

	assert.True(t, spec.Has("name"))
	assert.Equal(t, "vizual.load", LoadDataset("x", "f").String())
}

func TestLookupBinding(t *testing.T) {
	bindings := map[string]types.DatasetID{"People": "p1"}

	key, id, ok := LookupBinding(bindings, "people")
	assert.True(t, ok)
	assert.Equal(t, "People", key)
	assert.Equal(t, types.DatasetID("p1"), id)

	_, _, ok = LookupBinding(bindings, "cities")
	assert.False(t, ok)
}
