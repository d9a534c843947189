package datastore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
)

// DefaultCacheSize is the number of snapshots kept by a CachedStore.
const DefaultCacheSize = 128

// CachedStore keeps recently read snapshots in an LRU cache in front of a
// slower store. Snapshots never change once written, so entries are only
// evicted on delete or capacity pressure.
type CachedStore struct {
	base  dataset.Store
	cache *lru.Cache[types.DatasetID, *dataset.Dataset]
}

// NewCachedStore wraps base with an LRU cache holding size snapshots.
func NewCachedStore(base dataset.Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[types.DatasetID, *dataset.Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset cache: %w", err)
	}
	return &CachedStore{base: base, cache: cache}, nil
}

// CreateDataset writes through to the base store and caches the result.
func (s *CachedStore) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	d, err := s.base.CreateDataset(ctx, columns, rows, opts...)
	if err != nil {
		return nil, err
	}
	s.cache.Add(d.ID, snapshot(d))
	return d, nil
}

// GetDataset serves from the cache, falling back to the base store.
func (s *CachedStore) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	if d, ok := s.cache.Get(id); ok {
		return snapshot(d), nil
	}
	d, err := s.base.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, snapshot(d))
	return d, nil
}

// DeleteDataset evicts the snapshot and deletes it from the base store.
func (s *CachedStore) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	s.cache.Remove(id)
	return s.base.DeleteDataset(ctx, id)
}

// Len returns the number of cached snapshots.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}
