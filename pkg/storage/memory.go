package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// MemoryViztrailStore keeps records in process memory. Records are deep
// copied on the way in and out.
type MemoryViztrailStore struct {
	mu        sync.RWMutex
	viztrails map[types.ViztrailID]*viztrail.Viztrail
	workflows map[types.ViztrailID]map[types.Version]*workflow.Workflow
}

// NewMemoryViztrailStore creates an empty store.
func NewMemoryViztrailStore() *MemoryViztrailStore {
	return &MemoryViztrailStore{
		viztrails: make(map[types.ViztrailID]*viztrail.Viztrail),
		workflows: make(map[types.ViztrailID]map[types.Version]*workflow.Workflow),
	}
}

var _ ViztrailStore = (*MemoryViztrailStore)(nil)

// SaveViztrail inserts or replaces a viztrail record.
func (s *MemoryViztrailStore) SaveViztrail(ctx context.Context, vt *viztrail.Viztrail) error {
	if vt == nil || vt.ID.IsZero() {
		return fmt.Errorf("viztrail must have an ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viztrails[vt.ID] = vt.Copy()
	return nil
}

// LoadViztrail returns a copy of a viztrail record.
func (s *MemoryViztrailStore) LoadViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vt, ok := s.viztrails[id]
	if !ok {
		return nil, fmt.Errorf("viztrail %s: %w", id, verrors.ErrNotFound)
	}
	return vt.Copy(), nil
}

// ListViztrails returns all viztrails ordered by creation time.
func (s *MemoryViztrailStore) ListViztrails(ctx context.Context) ([]*viztrail.Viztrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*viztrail.Viztrail, 0, len(s.viztrails))
	for _, vt := range s.viztrails {
		out = append(out, vt.Copy())
	}
	sortViztrails(out)
	return out, nil
}

// DeleteViztrail removes a viztrail and its workflows.
func (s *MemoryViztrailStore) DeleteViztrail(ctx context.Context, id types.ViztrailID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viztrails[id]; !ok {
		return false, nil
	}
	delete(s.viztrails, id)
	delete(s.workflows, id)
	return true, nil
}

// SaveWorkflow stores a new workflow version.
func (s *MemoryViztrailStore) SaveWorkflow(ctx context.Context, id types.ViztrailID, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.workflows[id]
	if !ok {
		versions = make(map[types.Version]*workflow.Workflow)
		s.workflows[id] = versions
	}
	if _, exists := versions[wf.Version]; exists {
		return fmt.Errorf("workflow version %d of viztrail %s already exists", wf.Version, id)
	}
	versions[wf.Version] = wf.Copy()
	return nil
}

// LoadWorkflow returns a copy of a workflow version.
func (s *MemoryViztrailStore) LoadWorkflow(ctx context.Context, id types.ViztrailID, version types.Version) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id][version]
	if !ok {
		return nil, fmt.Errorf("workflow %s@%d: %w", id, version, verrors.ErrNotFound)
	}
	return wf.Copy(), nil
}

// DeleteWorkflows removes the versions of a branch.
func (s *MemoryViztrailStore) DeleteWorkflows(ctx context.Context, id types.ViztrailID, branch types.BranchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v, wf := range s.workflows[id] {
		if wf.BranchID == branch {
			delete(s.workflows[id], v)
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryViztrailStore) Close() error {
	return nil
}

func sortViztrails(list []*viztrail.Viztrail) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
