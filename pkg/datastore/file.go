package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/validation"
)

const snapshotExt = ".vzds"

// FileStore writes each snapshot to its own file under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a store rooted at baseDir/datasets.
func NewFileStore(baseDir string) (*FileStore, error) {
	dir := filepath.Join(baseDir, "datasets")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create datasets directory: %w", err)
	}
	return &FileStore{baseDir: dir}, nil
}

// CreateDataset stores a new snapshot under a fresh identifier.
func (s *FileStore) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	d, err := dataset.New(types.NewDatasetID(), columns, rows, opts...)
	if err != nil {
		return nil, err
	}

	data, err := Encode(d)
	if err != nil {
		return nil, err
	}

	// Write to file atomically using a temp file + rename
	filePath := s.path(d.ID)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write dataset file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to save dataset file: %w", err)
	}
	return d, nil
}

// GetDataset reads a snapshot by identifier.
func (s *FileStore) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	if !validation.IsValidIdentifier(string(id)) {
		return nil, fmt.Errorf("dataset %s: %w", id, verrors.ErrNotFound)
	}

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dataset %s: %w", id, verrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	d, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	return d, nil
}

// DeleteDataset removes a snapshot file.
func (s *FileStore) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	if !validation.IsValidIdentifier(string(id)) {
		return false, nil
	}

	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete dataset file: %w", err)
	}
	return true, nil
}

func (s *FileStore) path(id types.DatasetID) string {
	return filepath.Join(s.baseDir, string(id)+snapshotExt)
}
