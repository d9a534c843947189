package datastore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[types.DatasetID]*dataset.Dataset
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{datasets: make(map[types.DatasetID]*dataset.Dataset)}
}

// CreateDataset stores a new snapshot under a fresh identifier.
func (s *MemoryStore) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	d, err := dataset.New(types.NewDatasetID(), columns, rows, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.datasets[d.ID] = d
	s.mu.Unlock()
	return snapshot(d), nil
}

// GetDataset retrieves a snapshot by identifier.
func (s *MemoryStore) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	s.mu.RLock()
	d, ok := s.datasets[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, verrors.ErrNotFound)
	}
	return snapshot(d), nil
}

// DeleteDataset removes a snapshot.
func (s *MemoryStore) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return false, nil
	}
	delete(s.datasets, id)
	return true, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}

// snapshot returns a deep copy that keeps the identifier, so callers cannot
// alter what the store holds.
func snapshot(d *dataset.Dataset) *dataset.Dataset {
	cp := d.Clone()
	cp.ID = d.ID
	return cp
}
