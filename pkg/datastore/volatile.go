package datastore

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
)

// VolatileStore overlays an in-memory store on a base store. Reads fall
// through to the base; writes and deletes only touch the overlay, so the
// base store is never modified. It backs the rebuild-only pass of the
// workflow engine, where interpreter state is reconstructed without
// creating persistent snapshots.
type VolatileStore struct {
	base    dataset.Store
	overlay *MemoryStore

	mu      sync.RWMutex
	deleted map[types.DatasetID]bool
}

// NewVolatileStore creates an overlay on base.
func NewVolatileStore(base dataset.Store) *VolatileStore {
	return &VolatileStore{
		base:    base,
		overlay: NewMemoryStore(),
		deleted: make(map[types.DatasetID]bool),
	}
}

// CreateDataset stores the snapshot in the overlay only.
func (s *VolatileStore) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	return s.overlay.CreateDataset(ctx, columns, rows, opts...)
}

// GetDataset reads from the overlay, then from the base store.
func (s *VolatileStore) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	s.mu.RLock()
	hidden := s.deleted[id]
	s.mu.RUnlock()
	if hidden {
		return nil, verrors.ErrNotFound
	}

	d, err := s.overlay.GetDataset(ctx, id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, verrors.ErrNotFound) {
		return nil, err
	}
	return s.base.GetDataset(ctx, id)
}

// DeleteDataset hides the snapshot from subsequent reads. Base snapshots
// are never removed.
func (s *VolatileStore) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	if ok, _ := s.overlay.DeleteDataset(ctx, id); ok {
		return true, nil
	}
	if _, err := s.GetDataset(ctx, id); err != nil {
		if errors.Is(err, verrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.mu.Lock()
	s.deleted[id] = true
	s.mu.Unlock()
	return true, nil
}

// Created returns the number of snapshots written to the overlay.
func (s *VolatileStore) Created() int {
	return s.overlay.Len()
}
