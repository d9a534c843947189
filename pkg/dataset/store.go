package dataset

import (
	"context"

	"github.com/dshills/vizier/pkg/domain/types"
)

// Store persists immutable dataset snapshots.
//
// Every implementation satisfies the same contract:
//   - GetDataset after CreateDataset returns identical columns and rows
//   - GetDataset of an unknown id returns errors.ErrNotFound
//   - DeleteDataset of an unknown id returns false and no error
//   - counters that are not supplied follow DefaultColumnCounter / DefaultRowCounter
//   - CreateDataset fails with SCHEMA_VIOLATION when a row's value count
//     differs from the column count
type Store interface {
	// CreateDataset stores a new snapshot under a fresh identifier.
	CreateDataset(ctx context.Context, columns []Column, rows []Row, opts ...Option) (*Dataset, error)

	// GetDataset retrieves a snapshot by identifier.
	GetDataset(ctx context.Context, id types.DatasetID) (*Dataset, error)

	// DeleteDataset removes a snapshot. Returns false if it did not exist.
	DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error)
}

// Save persists an unsaved snapshot (typically the result of an edit method)
// through the store, keeping its counters and annotations.
func Save(ctx context.Context, store Store, d *Dataset) (*Dataset, error) {
	return store.CreateDataset(ctx, d.Columns, d.Rows,
		WithColumnCounter(d.ColumnCounter),
		WithRowCounter(d.RowCounter),
		WithAnnotations(d.Annotations),
	)
}
