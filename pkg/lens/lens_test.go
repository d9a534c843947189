package lens

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/rpc"
	"github.com/dshills/vizier/pkg/workflow"
)

func seed(t *testing.T, store dataset.Store) types.DatasetID {
	t.Helper()
	ds, err := store.CreateDataset(context.Background(),
		[]dataset.Column{{ID: 0, Name: "Name"}, {ID: 1, Name: "Age"}, {ID: 2, Name: "City"}},
		[]dataset.Row{
			{ID: 0, Values: []string{"Alice", "23", "Paris"}},
			{ID: 1, Values: []string{"Bob", "", "Rome"}},
			{ID: 2, Values: []string{"Alice", "23", "Lyon"}},
			{ID: 3, Values: []string{"Carla", "n/a", ""}},
		})
	require.NoError(t, err)
	return ds.ID
}

func apply(t *testing.T, store dataset.Store, cmd workflow.ModuleSpecification) (*dataset.Dataset, *execution.Result) {
	t.Helper()
	task := &execution.TaskContext{
		Datasets: map[string]types.DatasetID{"people": seed(t, store)},
		Store:    store,
	}
	res, err := NewExecutor(NewLocalEngine(), nil).Execute(context.Background(), cmd, task)
	require.NoError(t, err)
	ds, err := store.GetDataset(context.Background(), res.Datasets["people"])
	require.NoError(t, err)
	return ds, res
}

func TestMissingValue(t *testing.T) {
	ds, res := apply(t, datastore.NewMemoryStore(), workflow.MissingValue("people", "Age"))

	assert.Equal(t, "23", ds.Rows[1].Values[1])
	assert.Equal(t, "n/a", ds.Rows[3].Values[1])
	assert.Equal(t, []dataset.Annotation{{Key: AnnoUncertain, Value: "missing value replaced by '23'"}},
		ds.Annotations.ForCell(1, 1))
	assert.Equal(t, []string{"missing_value: 1 value(s) repaired in people"}, res.Stdout)
}

func TestKeyRepair(t *testing.T) {
	ds, _ := apply(t, datastore.NewMemoryStore(), workflow.KeyRepair("people", 0))

	require.Len(t, ds.Rows, 3)
	assert.Equal(t, []int64{0, 1, 3}, []int64{ds.Rows[0].ID, ds.Rows[1].ID, ds.Rows[2].ID})
	assert.Equal(t, []dataset.Annotation{{Key: AnnoUncertain, Value: "key 'Alice' had 2 candidate rows"}},
		ds.Annotations.ForRow(0))
	// the row counter never moves back
	assert.Equal(t, int64(4), ds.RowCounter)
}

func TestTypeInference(t *testing.T) {
	cmd := workflow.TypeInference("people")
	cmd.Arguments["percent_conform"] = 0.6
	ds, _ := apply(t, datastore.NewMemoryStore(), cmd)

	assert.Equal(t, "varchar", ds.Annotations.ForColumn(0)[0].Value)
	assert.Equal(t, "int", ds.Annotations.ForColumn(1)[0].Value)
	assert.Equal(t, "varchar", ds.Annotations.ForColumn(2)[0].Value)
	assert.Len(t, ds.Annotations.ForCell(1, 3), 1)
	assert.Empty(t, ds.Annotations.ForCell(1, 0))
}

func TestTypeInference_Rerun(t *testing.T) {
	store := datastore.NewMemoryStore()
	engine := NewLocalEngine()
	id := seed(t, store)

	first, err := engine.Apply(context.Background(), Request{Lens: workflow.LensTypeInference, Dataset: id, Store: store})
	require.NoError(t, err)
	second, err := engine.Apply(context.Background(), Request{Lens: workflow.LensTypeInference, Dataset: first.Dataset, Store: store})
	require.NoError(t, err)

	ds, err := store.GetDataset(context.Background(), second.Dataset)
	require.NoError(t, err)
	assert.Len(t, ds.Annotations.ForColumn(1), 1)
}

func TestDomain(t *testing.T) {
	ds, res := apply(t, datastore.NewMemoryStore(), workflow.Domain("people", "City", []string{"Paris", "Rome"}))

	assert.Equal(t, []string{"Paris", "Rome", "", ""}, []string{
		ds.Rows[0].Values[2], ds.Rows[1].Values[2], ds.Rows[2].Values[2], ds.Rows[3].Values[2]})
	assert.Len(t, ds.Annotations.ForCell(2, 2), 1)
	assert.Empty(t, ds.Annotations.ForCell(2, 3))
	assert.Contains(t, res.Stdout[0], "1 value(s)")
}

func TestLocalEngine_Errors(t *testing.T) {
	store := datastore.NewMemoryStore()
	id := seed(t, store)
	engine := NewLocalEngine()

	tests := []struct {
		name   string
		req    Request
		target error
	}{
		{"unknown lens", Request{Lens: "magic", Dataset: id, Store: store}, verrors.ErrInvalidArgument},
		{"unknown column", Request{Lens: workflow.LensMissingValue, Dataset: id, Store: store,
			Args: map[string]interface{}{"column": "Height"}}, verrors.ErrUnknownColumn},
		{"bad percent", Request{Lens: workflow.LensTypeInference, Dataset: id, Store: store,
			Args: map[string]interface{}{"percent_conform": 2.0}}, verrors.ErrOutOfRange},
		{"empty domain", Request{Lens: workflow.LensDomain, Dataset: id, Store: store,
			Args: map[string]interface{}{"column": 2, "values": []interface{}{}}}, verrors.ErrInvalidArgument},
		{"missing dataset", Request{Lens: workflow.LensKeyRepair, Dataset: "nope", Store: store,
			Args: map[string]interface{}{"column": 0}}, verrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Apply(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestExecutor_UnknownDataset(t *testing.T) {
	task := &execution.TaskContext{Datasets: map[string]types.DatasetID{}, Store: datastore.NewMemoryStore()}
	_, err := NewExecutor(NewLocalEngine(), nil).Execute(context.Background(), workflow.KeyRepair("people", 0), task)
	assert.ErrorIs(t, err, verrors.ErrUnknownDataset)
}

func TestRPCEngine(t *testing.T) {
	backing := datastore.NewMemoryStore()
	srv := rpc.NewServer(nil)
	datastore.RegisterService(srv, backing)
	RegisterService(srv, NewLocalEngine(), backing)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	store, err := datastore.NewRemoteStore(rpc.Config{BaseURL: ts.URL})
	require.NoError(t, err)
	engine, err := NewRPCEngine(rpc.Config{BaseURL: ts.URL})
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	task := &execution.TaskContext{
		Datasets: map[string]types.DatasetID{"people": seed(t, store)},
		Store:    store,
	}
	res, err := NewExecutor(engine, nil).Execute(context.Background(),
		workflow.Domain("people", 2, []string{"Paris"}), task)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout[0], "2 value(s)")

	ds, err := backing.GetDataset(context.Background(), res.Datasets["people"])
	require.NoError(t, err)
	assert.Equal(t, "", ds.Rows[1].Values[2])

	_, err = engine.Apply(context.Background(), Request{Lens: workflow.LensKeyRepair, Dataset: ds.ID,
		Args: map[string]interface{}{"column": "Height"}})
	assert.ErrorIs(t, err, verrors.ErrUnknownColumn)
}
