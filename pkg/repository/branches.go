package repository

import (
	"context"
	"time"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// CreateBranch forks a new branch from the workflow at baseVersion of
// source (HEAD for a negative version). The module list is copied up to
// and including moduleID, or entirely when moduleID is negative.
// No module is executed: the copies keep their outputs and identifiers.
func (r *Repository) CreateBranch(ctx context.Context, vtID types.ViztrailID, source types.BranchID, baseVersion types.Version, moduleID types.ModuleID, properties map[string]string) (res *EditResult, err error) {
	defer func(start time.Time) { r.record(OpCreateBranch, start, res != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, _, base, err := r.base(ctx, vtID, source, baseVersion)
	if base == nil || err != nil {
		return nil, err
	}
	if base.IsEmpty() {
		return nil, verrors.NewValidation(verrors.CodeEmptyWorkflow, "cannot branch from an empty workflow")
	}

	end := len(base.Modules)
	if moduleID >= 0 {
		pos := base.ModuleIndex(moduleID)
		if pos < 0 {
			return nil, verrors.NewValidation(verrors.CodeUnknownModule, "unknown module %d", moduleID)
		}
		end = pos + 1
	}

	outcome, err := r.engine.Execute(ctx, execution.Request{
		Modules:  base.Modules[:end],
		CopyOnly: true,
	})
	if err != nil {
		return nil, verrors.NewOperationalError("copying workflow", vtID.String(), base.Modules[end-1].ID.String(), err)
	}

	branch := viztrail.NewBranch(types.NewBranchID(), properties, &viztrail.Provenance{
		SourceBranch:   source,
		SourceVersion:  base.Version,
		SourceModuleID: base.Modules[end-1].ID,
	})
	vt.AddBranch(branch)

	wf := workflow.New(branch.ID, vt.NextVersion(), outcome.Modules)
	wf.Action = workflow.ActionCreate
	if err := r.persist(ctx, vt, branch, wf); err != nil {
		return nil, err
	}

	r.log.Info("branch created",
		"viztrail", vt.ID,
		"branch", branch.ID,
		"source", source,
		"version", wf.Version,
		"modules", len(wf.Modules),
	)
	return &EditResult{
		Viztrail:    vt,
		Branch:      branch,
		Workflow:    wf,
		FirstModule: outcome.FirstModule,
	}, nil
}

// DeleteBranch removes a branch and its workflow history. The default
// branch cannot be deleted. Returns false if the branch does not exist.
func (r *Repository) DeleteBranch(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID) (deleted bool, err error) {
	defer func(start time.Time) { r.record(OpDeleteBranch, start, deleted, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return false, err
	}
	deleted, err = vt.RemoveBranch(branchID)
	if !deleted || err != nil {
		return false, err
	}

	if err := r.store.SaveViztrail(ctx, vt); err != nil {
		return false, verrors.NewOperationalError("deleting branch", vtID.String(), "", err)
	}
	if err := r.store.DeleteWorkflows(ctx, vtID, branchID); err != nil {
		return false, verrors.NewOperationalError("deleting branch history", vtID.String(), "", err)
	}
	r.log.Info("branch deleted", "viztrail", vtID, "branch", branchID)
	return true, nil
}

// GetBranch returns a branch, or nil if it does not exist.
func (r *Repository) GetBranch(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID) (*viztrail.Branch, error) {
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, err
	}
	return vt.Branch(branchID), nil
}

// ListBranches returns the branches of a viztrail ordered by creation time.
func (r *Repository) ListBranches(ctx context.Context, vtID types.ViztrailID) ([]*viztrail.Branch, error) {
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, err
	}
	return vt.BranchList(), nil
}

// UpdateBranch merges properties into a branch. An empty value removes the key.
func (r *Repository) UpdateBranch(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, properties map[string]string) (branch *viztrail.Branch, err error) {
	defer func(start time.Time) { r.record(OpUpdateBranch, start, branch != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, err
	}
	branch = vt.Branch(branchID)
	if branch == nil {
		return nil, nil
	}
	branch.UpdateProperties(properties)
	vt.Touch()
	if err := r.store.SaveViztrail(ctx, vt); err != nil {
		return nil, verrors.NewOperationalError("updating branch", vtID.String(), "", err)
	}
	return branch, nil
}
