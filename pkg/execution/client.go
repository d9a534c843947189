package execution

import (
	"context"
	"errors"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/validation"
	"github.com/dshills/vizier/pkg/workflow"
)

// DatasetClient reads and writes named dataset bindings for an executor.
// It works on a private copy of the task bindings; Bindings returns the
// result to hand back to the engine.
type DatasetClient struct {
	store    dataset.Store
	bindings map[string]types.DatasetID
}

// Client returns a dataset client over the task's bindings and store.
func (t *TaskContext) Client() *DatasetClient {
	return &DatasetClient{
		store:    t.Store,
		bindings: workflow.CopyBindings(t.Datasets),
	}
}

// Bindings returns a copy of the current bindings.
func (c *DatasetClient) Bindings() map[string]types.DatasetID {
	return workflow.CopyBindings(c.bindings)
}

// Has reports whether name is bound.
func (c *DatasetClient) Has(name string) bool {
	_, _, ok := workflow.LookupBinding(c.bindings, name)
	return ok
}

// GetDataset returns the snapshot bound to name.
func (c *DatasetClient) GetDataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	_, id, ok := workflow.LookupBinding(c.bindings, name)
	if !ok {
		return nil, verrors.NewValidation(verrors.CodeUnknownDataset, "unknown dataset '%s'", name)
	}
	ds, err := c.store.GetDataset(ctx, id)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil, verrors.NewValidation(verrors.CodeUnknownDataset, "dataset '%s' (%s) no longer exists", name, id)
	}
	return ds, err
}

// CreateDataset persists ds and binds it to a new name.
func (c *DatasetClient) CreateDataset(ctx context.Context, name string, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !validation.IsValidName(name) {
		return nil, verrors.NewValidation(verrors.CodeInvalidName, "invalid dataset name '%s'", name)
	}
	if c.Has(name) {
		return nil, verrors.NewValidation(verrors.CodeDuplicateName, "dataset '%s' already exists", name)
	}
	saved, err := dataset.Save(ctx, c.store, ds)
	if err != nil {
		return nil, err
	}
	c.bindings[name] = saved.ID
	return saved, nil
}

// UpdateDataset persists ds as the new snapshot of an existing name.
func (c *DatasetClient) UpdateDataset(ctx context.Context, name string, ds *dataset.Dataset) (*dataset.Dataset, error) {
	key, _, ok := workflow.LookupBinding(c.bindings, name)
	if !ok {
		return nil, verrors.NewValidation(verrors.CodeUnknownDataset, "unknown dataset '%s'", name)
	}
	saved, err := dataset.Save(ctx, c.store, ds)
	if err != nil {
		return nil, err
	}
	c.bindings[key] = saved.ID
	return saved, nil
}

// BindDataset points an existing name at a snapshot produced elsewhere,
// e.g. by a delegated engine.
func (c *DatasetClient) BindDataset(name string, id types.DatasetID) error {
	key, _, ok := workflow.LookupBinding(c.bindings, name)
	if !ok {
		return verrors.NewValidation(verrors.CodeUnknownDataset, "unknown dataset '%s'", name)
	}
	c.bindings[key] = id
	return nil
}

// RenameDataset rebinds the snapshot of name under newName.
func (c *DatasetClient) RenameDataset(name, newName string) error {
	key, id, ok := workflow.LookupBinding(c.bindings, name)
	if !ok {
		return verrors.NewValidation(verrors.CodeUnknownDataset, "unknown dataset '%s'", name)
	}
	if !validation.IsValidName(newName) {
		return verrors.NewValidation(verrors.CodeInvalidName, "invalid dataset name '%s'", newName)
	}
	if other, _, exists := workflow.LookupBinding(c.bindings, newName); exists && other != key {
		return verrors.NewValidation(verrors.CodeDuplicateName, "dataset '%s' already exists", newName)
	}
	delete(c.bindings, key)
	c.bindings[newName] = id
	return nil
}

// DropDataset removes the binding of name. The snapshot itself is kept;
// earlier workflow versions may still reference it.
func (c *DatasetClient) DropDataset(name string) error {
	key, _, ok := workflow.LookupBinding(c.bindings, name)
	if !ok {
		return verrors.NewValidation(verrors.CodeUnknownDataset, "unknown dataset '%s'", name)
	}
	delete(c.bindings, key)
	return nil
}

// ColumnPosition resolves a column argument against a dataset.
func ColumnPosition(ds *dataset.Dataset, ref workflow.ColumnRef) (int, error) {
	if ref.Name != "" {
		return ds.ResolveColumn(ref.Name)
	}
	if ref.Position < 0 || ref.Position >= len(ds.Columns) {
		return -1, verrors.NewValidation(verrors.CodeOutOfRange, "column position %d out of range", ref.Position)
	}
	return ref.Position, nil
}
