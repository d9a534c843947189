// Package storage persists viztrails and their workflow versions, and keeps
// credentials for delegated engines in the system keyring.
//
// A viztrail is stored as one record holding its branches, properties and
// counters. Every workflow version is a separate, write-once record keyed
// by viztrail and version number.
package storage

import (
	"context"

	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// ViztrailStore persists the viztrail aggregate.
//
// Lookups of unknown records return errors.ErrNotFound. Saving a workflow
// version that already exists fails: versions are immutable.
type ViztrailStore interface {
	SaveViztrail(ctx context.Context, vt *viztrail.Viztrail) error
	LoadViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error)
	ListViztrails(ctx context.Context) ([]*viztrail.Viztrail, error)
	// DeleteViztrail removes a viztrail and every workflow version it owns.
	DeleteViztrail(ctx context.Context, id types.ViztrailID) (bool, error)

	SaveWorkflow(ctx context.Context, id types.ViztrailID, wf *workflow.Workflow) error
	LoadWorkflow(ctx context.Context, id types.ViztrailID, version types.Version) (*workflow.Workflow, error)
	// DeleteWorkflows removes the workflow versions of a branch.
	DeleteWorkflows(ctx context.Context, id types.ViztrailID, branch types.BranchID) error

	Close() error
}
