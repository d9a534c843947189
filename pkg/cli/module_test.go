package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/workflow"
)

func TestCoerceArgument(t *testing.T) {
	tests := []struct {
		name    string
		typ     workflow.DataType
		raw     string
		want    interface{}
		wantErr bool
	}{
		{"string", workflow.TypeString, "31", "31", false},
		{"code", workflow.TypeCode, "x = 1", "x = 1", false},
		{"int", workflow.TypeInt, "-1", -1, false},
		{"row", workflow.TypeRow, "2", 2, false},
		{"row not a number", workflow.TypeRow, "two", nil, true},
		{"decimal", workflow.TypeDecimal, "0.5", 0.5, false},
		{"bool", workflow.TypeBool, "true", true, false},
		{"bool invalid", workflow.TypeBool, "maybe", nil, true},
		{"column by name", workflow.TypeColumn, "Age", "Age", false},
		{"column by position", workflow.TypeColumn, "1", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceArgument(workflow.ArgumentSpec{ID: "arg", Type: tt.typ}, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceArgument_List(t *testing.T) {
	got, err := coerceArgument(workflow.ArgumentSpec{ID: "values", Type: workflow.TypeList}, "[{value: a}, {value: b}]")
	require.NoError(t, err)

	list, ok := got.([]interface{})
	require.True(t, ok, "got %T", got)
	require.Len(t, list, 2)
	assert.Equal(t, map[string]interface{}{"value": "a"}, list[0])

	_, err = coerceArgument(workflow.ArgumentSpec{ID: "values", Type: workflow.TypeList}, "{not: a list}")
	assert.Error(t, err)
}

func TestBuildModuleSpec(t *testing.T) {
	commands := workflow.DefaultCommandRepository()

	t.Run("command and arguments", func(t *testing.T) {
		spec, err := buildModuleSpec(commands, []string{"vizual.update_cell", "dataset=people", "column=Age", "row=0", "value=31"}, "", "")
		require.NoError(t, err)
		assert.Equal(t, workflow.UpdateCell("people", "Age", 0, "31"), spec)
		assert.NoError(t, commands.Validate(spec))
	})

	t.Run("lens with list argument", func(t *testing.T) {
		spec, err := buildModuleSpec(commands, []string{"mimir.domain", "dataset=people", "column=Name", "values=[{value: Alice}]"}, "", "")
		require.NoError(t, err)
		assert.NoError(t, commands.Validate(spec))
	})

	t.Run("script source file", func(t *testing.T) {
		path := writeFile(t, "cell.expr", "print(1)")
		spec, err := buildModuleSpec(commands, []string{"script.code"}, "", path)
		require.NoError(t, err)
		assert.Equal(t, workflow.Script("print(1)"), spec)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := writeFile(t, "module.yaml", "package: vizual\ncommand: insert_column\narguments:\n  dataset: people\n  name: Email\n  position: 1\n")
		spec, err := buildModuleSpec(commands, nil, path, "")
		require.NoError(t, err)
		assert.Equal(t, workflow.PackageVizual, spec.Package)
		assert.Equal(t, workflow.VizualInsertColumn, spec.Command)
		assert.Equal(t, 1, spec.Arguments[workflow.ArgPosition])
		assert.NoError(t, commands.Validate(spec))
	})

	t.Run("json file", func(t *testing.T) {
		path := writeFile(t, "module.json", `{"package": "script", "command": "code", "arguments": {"source": "x = 1"}}`)
		spec, err := buildModuleSpec(commands, nil, path, "")
		require.NoError(t, err)
		assert.Equal(t, workflow.Script("x = 1"), spec)
	})

	t.Run("file and command", func(t *testing.T) {
		path := writeFile(t, "module.yaml", "package: script\ncommand: code\n")
		_, err := buildModuleSpec(commands, []string{"script.code"}, path, "")
		assert.Error(t, err)
	})

	t.Run("no command", func(t *testing.T) {
		_, err := buildModuleSpec(commands, nil, "", "")
		assert.Error(t, err)
	})
}

func TestWriteWorkflow(t *testing.T) {
	m := workflow.NewModule(0, workflow.LoadDataset("people", "f1"))
	m.Datasets["people"] = "ds-1"
	m.Stdout = []string{"2 rows"}
	failed := workflow.NewModule(1, workflow.Script("boom()"))
	failed.Stderr = []string{"unknown function boom\nat line 1"}
	wf := workflow.New("b1", 3, []*workflow.Module{m, failed})

	var buf bytes.Buffer
	require.NoError(t, writeWorkflow(&buf, wf, outputTable))
	out := buf.String()
	assert.Contains(t, out, "Version 3 (2 modules, error)")
	assert.Contains(t, out, "vizual.load")
	assert.Contains(t, out, "unknown function boom")
	assert.NotContains(t, out, "at line 1")

	buf.Reset()
	require.NoError(t, writeWorkflow(&buf, wf, outputYAML))
	assert.Contains(t, buf.String(), "branch_id: b1")

	assert.Error(t, writeWorkflow(&buf, wf, "xml"))
}

func TestWriteDataset(t *testing.T) {
	ds, err := dataset.New("ds-1",
		[]dataset.Column{{ID: 0, Name: "Name"}, {ID: 1, Name: "Age"}},
		[]dataset.Row{{ID: 0, Values: []string{"Alice", "23"}}, {ID: 1, Values: []string{"Bob", "32"}}, {ID: 2, Values: []string{"Carol", ""}}})
	require.NoError(t, err)
	ds.Annotations.AddCell(1, 2, "mimir:missing", "imputed")

	var buf bytes.Buffer
	require.NoError(t, writeDataset(&buf, ds, outputTable, 2, true))
	out := buf.String()
	assert.Contains(t, out, "2 columns, 3 rows")
	assert.Contains(t, out, "1 row not shown")
	assert.Contains(t, out, "cell 1#2: mimir:missing = imputed")
	assert.NotContains(t, out, "Carol")

	buf.Reset()
	require.NoError(t, writeDataset(&buf, ds, outputCSV, 0, false))
	assert.Equal(t, "Name,Age\nAlice,23\nBob,32\nCarol,\n", buf.String())

	buf.Reset()
	require.NoError(t, writeDataset(&buf, ds, outputJSON, 0, false))
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"row_counter": 3`)

	assert.Error(t, writeDataset(&buf, ds, "xml", 0, false))
}
