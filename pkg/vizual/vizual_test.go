package vizual

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/filestore"
	"github.com/dshills/vizier/pkg/workflow"
)

type fixture struct {
	exec  *Executor
	store *datastore.MemoryStore
	task  *execution.TaskContext
}

func setup(t *testing.T) *fixture {
	t.Helper()
	files, err := filestore.NewStore(t.TempDir())
	require.NoError(t, err)
	fh, err := files.Upload(context.Background(), "people.csv",
		strings.NewReader("Name,Age,Salary\nAlice,23,35K\nBob,32,30K\n"))
	require.NoError(t, err)

	f := &fixture{
		exec:  NewExecutor(files),
		store: datastore.NewMemoryStore(),
	}
	f.task = &execution.TaskContext{Datasets: map[string]types.DatasetID{}, Store: f.store}

	res := f.run(t, workflow.LoadDataset("people", fh.ID))
	assert.Equal(t, []string{"Loaded 2 rows into people"}, res.Stdout)
	return f
}

// run executes cmd and threads the resulting bindings into the next task.
func (f *fixture) run(t *testing.T, cmd workflow.ModuleSpecification) *execution.Result {
	t.Helper()
	res, err := f.exec.Execute(context.Background(), cmd, f.task)
	require.NoError(t, err)
	f.task.Datasets = res.Datasets
	return res
}

func (f *fixture) people(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := f.store.GetDataset(context.Background(), f.task.Datasets["people"])
	require.NoError(t, err)
	return ds
}

func TestLoad(t *testing.T) {
	f := setup(t)
	ds := f.people(t)

	assert.Equal(t, []string{"Name", "Age", "Salary"}, ds.ColumnNames())
	assert.Equal(t, []string{"Alice", "23", "35K"}, ds.Rows[0].Values)
	assert.Equal(t, int64(3), ds.ColumnCounter)
	assert.Equal(t, int64(2), ds.RowCounter)
}

func TestLoad_Errors(t *testing.T) {
	f := setup(t)

	_, err := f.exec.Execute(context.Background(), workflow.LoadDataset("PEOPLE", types.NewFileID()), f.task)
	assert.ErrorIs(t, err, verrors.ErrDuplicateName)

	_, err = f.exec.Execute(context.Background(), workflow.LoadDataset("other", types.NewFileID()), f.task)
	assert.ErrorIs(t, err, verrors.ErrNotFound)

	_, err = NewExecutor(nil).Execute(context.Background(), workflow.LoadDataset("x", types.NewFileID()), f.task)
	assert.Error(t, err)
}

func TestColumnEdits(t *testing.T) {
	f := setup(t)
	before := f.task.Datasets["people"]

	f.run(t, workflow.InsertColumn("people", "City", 1))
	f.run(t, workflow.DeleteColumn("people", "Salary"))
	f.run(t, workflow.MoveColumn("people", "Age", 0))
	res := f.run(t, workflow.RenameColumn("people", 2, "Town"))
	assert.Equal(t, []string{"1 column renamed"}, res.Stdout)

	ds := f.people(t)
	assert.NotEqual(t, before, ds.ID)
	assert.Equal(t, []string{"Age", "Name", "Town"}, ds.ColumnNames())
	assert.Equal(t, []int64{1, 0, 3}, []int64{ds.Columns[0].ID, ds.Columns[1].ID, ds.Columns[2].ID})
	assert.Equal(t, []string{"23", "Alice", ""}, ds.Rows[0].Values)

	// the original snapshot is untouched
	orig, err := f.store.GetDataset(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Age", "Salary"}, orig.ColumnNames())
}

func TestRowEdits(t *testing.T) {
	f := setup(t)

	f.run(t, workflow.InsertRow("people", -1))
	f.run(t, workflow.MoveRow("people", 2, 0))
	f.run(t, workflow.DeleteRow("people", 1))
	f.run(t, workflow.UpdateCell("people", "Name", 0, "Carla"))

	ds := f.people(t)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, int64(2), ds.Rows[0].ID)
	assert.Equal(t, []string{"Carla", "", ""}, ds.Rows[0].Values)
	assert.Equal(t, "Bob", ds.Rows[1].Values[0])
}

func TestUpdateCell_Annotations(t *testing.T) {
	f := setup(t)
	ds := f.people(t)
	ds.Annotations.AddCell(1, 0, "mimir:uncertain", "true")
	saved, err := dataset.Save(context.Background(), f.store, ds)
	require.NoError(t, err)
	f.task.Datasets["people"] = saved.ID

	keep := workflow.UpdateCell("people", "Age", 0, "24")
	keep.Arguments[workflow.ArgKeep] = true
	f.run(t, keep)
	assert.Len(t, f.people(t).Annotations.ForCell(1, 0), 1)

	f.run(t, workflow.UpdateCell("people", "Age", 0, "25"))
	assert.Empty(t, f.people(t).Annotations.ForCell(1, 0))
}

func TestDatasetCommands(t *testing.T) {
	f := setup(t)
	id := f.task.Datasets["people"]

	res := f.run(t, workflow.RenameDataset("people", "staff"))
	assert.Equal(t, map[string]types.DatasetID{"staff": id}, res.Datasets)

	res = f.run(t, workflow.DropDataset("staff"))
	assert.Empty(t, res.Datasets)
}

func TestEdit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cmd    workflow.ModuleSpecification
		target error
	}{
		{"unknown dataset", workflow.DeleteRow("cities", 0), verrors.ErrUnknownDataset},
		{"unknown column", workflow.DeleteColumn("people", "Height"), verrors.ErrUnknownColumn},
		{"column out of range", workflow.DeleteColumn("people", 7), verrors.ErrOutOfRange},
		{"row out of range", workflow.UpdateCell("people", 0, 9, "x"), verrors.ErrOutOfRange},
		{"duplicate column", workflow.InsertColumn("people", "age", -1), verrors.ErrDuplicateName},
		{"invalid column", workflow.RenameColumn("people", 0, " "), verrors.ErrInvalidName},
		{"invalid dataset name", workflow.RenameDataset("people", "a.b"), verrors.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.exec.Execute(context.Background(), tt.cmd, f.task)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	f := setup(t)
	cmd := workflow.ModuleSpecification{Package: workflow.PackageVizual, Command: "explode",
		Arguments: map[string]interface{}{workflow.ArgDataset: "people"}}
	_, err := f.exec.Execute(context.Background(), cmd, f.task)
	assert.Error(t, err)
}
