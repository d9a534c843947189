// Package filestore keeps uploaded delimited files (CSV or TSV) and hands
// them to the load command as file handles.
package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/validation"
)

// FileHandle describes an uploaded file.
type FileHandle struct {
	ID         types.FileID `yaml:"id" json:"id"`
	Name       string       `yaml:"name" json:"name"`
	Delimiter  string       `yaml:"delimiter" json:"delimiter"`
	Columns    []string     `yaml:"columns" json:"columns"`
	RowCount   int          `yaml:"row_count" json:"row_count"`
	Size       int64        `yaml:"size" json:"size"`
	UploadedAt time.Time    `yaml:"uploaded_at" json:"uploaded_at"`

	path string
}

// Open returns an iterator over the data rows (the header is skipped).
func (h *FileHandle) Open() (*RowIterator, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", h.ID, err)
	}
	r := newReader(f, h.Delimiter)
	if _, err := r.Read(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", h.ID, err)
	}
	return &RowIterator{file: f, reader: r}, nil
}

// RowIterator streams the rows of a file.
type RowIterator struct {
	file   *os.File
	reader *csv.Reader
}

// Next returns the next row, or io.EOF after the last one.
func (it *RowIterator) Next() ([]string, error) {
	return it.reader.Read()
}

// Close releases the underlying file.
func (it *RowIterator) Close() error {
	return it.file.Close()
}

// Store persists uploaded files under baseDir/files. Each upload is kept
// as <id>.data with a YAML metadata record <id>.yaml next to it.
type Store struct {
	baseDir string
}

// NewStore creates a file store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "files")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	return &Store{baseDir: dir}, nil
}

// Upload reads a delimited file from r. The delimiter is a tab for names
// ending in .tsv and a comma otherwise. The first record is the header.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader) (*FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	delimiter := ","
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		delimiter = "\t"
	}

	h := &FileHandle{
		ID:         types.NewFileID(),
		Name:       filepath.Base(name),
		Delimiter:  delimiter,
		UploadedAt: time.Now().UTC(),
	}
	h.path = s.dataPath(h.ID)

	tempPath := h.path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}
	h.Size = size

	if err := scan(tempPath, h); err != nil {
		_ = os.Remove(tempPath)
		return nil, err
	}

	if err := os.Rename(tempPath, h.path); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to save upload file: %w", err)
	}
	if err := s.writeMeta(h); err != nil {
		_ = os.Remove(h.path)
		return nil, err
	}
	return h, nil
}

// Get returns the handle of an uploaded file, or errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, id types.FileID) (*FileHandle, error) {
	if !validation.IsValidIdentifier(string(id)) {
		return nil, fmt.Errorf("file %s: %w", id, verrors.ErrNotFound)
	}
	data, err := os.ReadFile(s.metaPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", id, verrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}

	var h FileHandle
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse file metadata: %w", err)
	}
	h.path = s.dataPath(h.ID)
	return &h, nil
}

// Delete removes an uploaded file. Returns false if it did not exist.
func (s *Store) Delete(ctx context.Context, id types.FileID) (bool, error) {
	if !validation.IsValidIdentifier(string(id)) {
		return false, nil
	}
	if _, err := os.Stat(s.metaPath(id)); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return false, fmt.Errorf("failed to delete file metadata: %w", err)
	}
	if err := os.Remove(s.dataPath(id)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	return true, nil
}

// List returns all uploaded files, oldest first.
func (s *Store) List(ctx context.Context) ([]*FileHandle, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read files directory: %w", err)
	}

	var handles []*FileHandle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := types.FileID(strings.TrimSuffix(entry.Name(), ".yaml"))
		h, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].UploadedAt.Before(handles[j].UploadedAt)
	})
	return handles, nil
}

func (s *Store) writeMeta(h *FileHandle) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}
	path := s.metaPath(h.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file metadata: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save file metadata: %w", err)
	}
	return nil
}

func (s *Store) dataPath(id types.FileID) string {
	return filepath.Join(s.baseDir, string(id)+".data")
}

func (s *Store) metaPath(id types.FileID) string {
	return filepath.Join(s.baseDir, string(id)+".yaml")
}

// scan validates the header and counts the data rows. Every record must
// have as many fields as the header.
func scan(path string, h *FileHandle) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := newReader(f, h.Delimiter)
	header, err := r.Read()
	if err == io.EOF {
		return verrors.NewValidation(verrors.CodeInvalidArgument, "file '%s' is empty", h.Name)
	}
	if err != nil {
		return verrors.WrapValidation(verrors.CodeInvalidArgument, "malformed header", err)
	}

	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if !validation.IsValidColumnName(name) {
			return verrors.NewValidation(verrors.CodeInvalidName, "invalid column name '%s' at position %d", name, i)
		}
		if seen[strings.ToLower(name)] {
			return verrors.NewValidation(verrors.CodeDuplicateName, "duplicate column name '%s'", name)
		}
		seen[strings.ToLower(name)] = true
		header[i] = name
	}
	h.Columns = header

	for {
		_, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return verrors.WrapValidation(verrors.CodeSchemaViolation,
				fmt.Sprintf("malformed record after row %d", h.RowCount), err)
		}
		h.RowCount++
	}
}

func newReader(r io.Reader, delimiter string) *csv.Reader {
	cr := csv.NewReader(r)
	if delimiter == "\t" {
		cr.Comma = '\t'
		cr.LazyQuotes = true
	}
	cr.FieldsPerRecord = 0 // the header fixes the field count
	return cr
}
