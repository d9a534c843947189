package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// FilesystemViztrailStore keeps viztrails as YAML files:
//
//	<base>/viztrails/<id>/viztrail.yaml
//	<base>/viztrails/<id>/workflows/<version>.yaml
type FilesystemViztrailStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFilesystemViztrailStore creates a store rooted at baseDir. It ensures
// the viztrails directory exists.
func NewFilesystemViztrailStore(baseDir string) (*FilesystemViztrailStore, error) {
	dir := filepath.Join(baseDir, "viztrails")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create viztrails directory: %w", err)
	}
	return &FilesystemViztrailStore{baseDir: dir}, nil
}

var _ ViztrailStore = (*FilesystemViztrailStore)(nil)

// SaveViztrail writes the viztrail record.
func (s *FilesystemViztrailStore) SaveViztrail(ctx context.Context, vt *viztrail.Viztrail) error {
	if vt == nil || vt.ID.IsZero() {
		return fmt.Errorf("viztrail must have an ID")
	}
	dir, err := s.viztrailDir(vt.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(dir, "workflows"), 0755); err != nil {
		return fmt.Errorf("failed to create viztrail directory: %w", err)
	}
	return writeYAML(filepath.Join(dir, "viztrail.yaml"), vt)
}

// LoadViztrail reads a viztrail record.
func (s *FilesystemViztrailStore) LoadViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error) {
	dir, err := s.viztrailDir(id)
	if err != nil {
		return nil, err
	}
	var vt viztrail.Viztrail
	if err := readYAML(filepath.Join(dir, "viztrail.yaml"), &vt); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("viztrail %s: %w", id, verrors.ErrNotFound)
		}
		return nil, err
	}
	if vt.Branches == nil {
		vt.Branches = make(map[types.BranchID]*viztrail.Branch)
	}
	return &vt, nil
}

// ListViztrails reads every viztrail record. Directories without a
// readable record are skipped.
func (s *FilesystemViztrailStore) ListViztrails(ctx context.Context) ([]*viztrail.Viztrail, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read viztrails directory: %w", err)
	}

	out := make([]*viztrail.Viztrail, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		vt, err := s.LoadViztrail(ctx, types.ViztrailID(entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, vt)
	}
	sortViztrails(out)
	return out, nil
}

// DeleteViztrail removes the viztrail directory.
func (s *FilesystemViztrailStore) DeleteViztrail(ctx context.Context, id types.ViztrailID) (bool, error) {
	dir, err := s.viztrailDir(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(filepath.Join(dir, "viztrail.yaml")); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to delete viztrail %s: %w", id, err)
	}
	return true, nil
}

// SaveWorkflow writes a new workflow version file.
func (s *FilesystemViztrailStore) SaveWorkflow(ctx context.Context, id types.ViztrailID, wf *workflow.Workflow) error {
	dir, err := s.viztrailDir(id)
	if err != nil {
		return err
	}
	path := workflowPath(dir, wf.Version)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("workflow version %d of viztrail %s already exists", wf.Version, id)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}
	return writeYAML(path, wf)
}

// LoadWorkflow reads a workflow version file.
func (s *FilesystemViztrailStore) LoadWorkflow(ctx context.Context, id types.ViztrailID, version types.Version) (*workflow.Workflow, error) {
	dir, err := s.viztrailDir(id)
	if err != nil {
		return nil, err
	}
	var wf workflow.Workflow
	if err := readYAML(workflowPath(dir, version), &wf); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("workflow %s@%d: %w", id, version, verrors.ErrNotFound)
		}
		return nil, err
	}
	for _, m := range wf.Modules {
		if m.Datasets == nil {
			m.Datasets = make(map[string]types.DatasetID)
		}
	}
	return &wf, nil
}

// DeleteWorkflows removes the version files that belong to branch.
func (s *FilesystemViztrailStore) DeleteWorkflows(ctx context.Context, id types.ViztrailID, branch types.BranchID) error {
	dir, err := s.viztrailDir(id)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(dir, "workflows"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workflows directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		path := filepath.Join(dir, "workflows", name)
		var head struct {
			BranchID types.BranchID `yaml:"branch_id"`
		}
		if err := readYAML(path, &head); err != nil {
			return err
		}
		if head.BranchID != branch {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete workflow file: %w", err)
		}
	}
	return nil
}

// Close is a no-op.
func (s *FilesystemViztrailStore) Close() error {
	return nil
}

func (s *FilesystemViztrailStore) viztrailDir(id types.ViztrailID) (string, error) {
	name := id.String()
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid viztrail id %q: %w", name, verrors.ErrNotFound)
	}
	return filepath.Join(s.baseDir, name), nil
}

func workflowPath(dir string, version types.Version) string {
	return filepath.Join(dir, "workflows", strconv.FormatInt(int64(version), 10)+".yaml")
}

// writeYAML writes atomically using a temp file and rename.
func writeYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
