package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// EditResult is the state after a successful edit.
type EditResult struct {
	Viztrail *viztrail.Viztrail
	Branch   *viztrail.Branch
	Workflow *workflow.Workflow

	// FirstModule is the first module that was executed for this version,
	// or types.NoModule when nothing at or after the edit position remains.
	FirstModule types.ModuleID
}

// HEAD selects the branch head wherever a version is expected.
const HEAD types.Version = -1

// AppendModule adds a module to the workflow at baseVersion of a branch
// (HEAD for a negative version). The module is inserted before beforeID,
// or appended when beforeID is negative. Everything from the
// insertion point on is executed.
func (r *Repository) AppendModule(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, baseVersion types.Version, cmd workflow.ModuleSpecification, beforeID types.ModuleID) (res *EditResult, err error) {
	defer func(start time.Time) { r.record(OpAppendModule, start, res != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, branch, base, err := r.base(ctx, vtID, branchID, baseVersion)
	if base == nil || err != nil {
		return nil, err
	}
	if err := r.CommandsFor(vt.EnvID).Validate(cmd); err != nil {
		return nil, err
	}

	pos := len(base.Modules)
	action := workflow.ActionAppend
	if beforeID >= 0 {
		pos = base.ModuleIndex(beforeID)
		if pos < 0 {
			return nil, verrors.NewValidation(verrors.CodeUnknownModule, "unknown module %d", beforeID)
		}
		action = workflow.ActionInsert
	}

	modules := base.CopyModules()
	modules = append(modules, nil)
	copy(modules[pos+1:], modules[pos:])
	modules[pos] = workflow.NewModule(vt.NextModuleID(), cmd.Copy())

	return r.commit(ctx, vt, branch, edit{
		action:  action,
		command: cmd.String(),
		modules: modules,
		index:   pos,
		module:  modules[pos].ID,
	})
}

// ReplaceModule substitutes the command of moduleID. The replacement gets
// a new module identifier. Returns nil if the module is not part of the
// base workflow.
func (r *Repository) ReplaceModule(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, baseVersion types.Version, moduleID types.ModuleID, cmd workflow.ModuleSpecification) (res *EditResult, err error) {
	defer func(start time.Time) { r.record(OpReplaceModule, start, res != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, branch, base, err := r.base(ctx, vtID, branchID, baseVersion)
	if base == nil || err != nil {
		return nil, err
	}
	if err := r.CommandsFor(vt.EnvID).Validate(cmd); err != nil {
		return nil, err
	}
	pos := base.ModuleIndex(moduleID)
	if pos < 0 {
		return nil, nil
	}

	modules := base.CopyModules()
	modules[pos] = workflow.NewModule(vt.NextModuleID(), cmd.Copy())

	return r.commit(ctx, vt, branch, edit{
		action:  workflow.ActionReplace,
		command: cmd.String(),
		modules: modules,
		index:   pos,
		module:  modules[pos].ID,
	})
}

// DeleteModule removes moduleID and re-executes everything after it.
// Returns nil if the module is not part of the base workflow.
func (r *Repository) DeleteModule(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, baseVersion types.Version, moduleID types.ModuleID) (res *EditResult, err error) {
	defer func(start time.Time) { r.record(OpDeleteModule, start, res != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, branch, base, err := r.base(ctx, vtID, branchID, baseVersion)
	if base == nil || err != nil {
		return nil, err
	}
	pos := base.ModuleIndex(moduleID)
	if pos < 0 {
		return nil, nil
	}

	deleted := base.Modules[pos]
	modules := base.CopyModules()
	modules = append(modules[:pos], modules[pos+1:]...)

	return r.commit(ctx, vt, branch, edit{
		action:  workflow.ActionDelete,
		command: deleted.Command.String(),
		modules: modules,
		index:   pos,
		module:  deleted.ID,
	})
}

// GetWorkflow returns a workflow version of a branch; a negative version
// selects HEAD. Returns nil for an unknown viztrail, branch or version, and
// for a branch that has no history yet.
func (r *Repository) GetWorkflow(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, version types.Version) (*workflow.Workflow, error) {
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, err
	}
	branch := vt.Branch(branchID)
	if branch == nil {
		return nil, nil
	}
	if version < 0 {
		head, ok := branch.Head()
		if !ok {
			return nil, nil
		}
		version = head
	}
	if !branch.HasVersion(version) {
		return nil, nil
	}
	return r.loadWorkflow(ctx, vtID, version)
}

// ListWorkflowVersions returns the history of a branch, oldest first.
func (r *Repository) ListWorkflowVersions(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID) ([]viztrail.WorkflowVersion, error) {
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, err
	}
	branch := vt.Branch(branchID)
	if branch == nil {
		return nil, nil
	}
	return append([]viztrail.WorkflowVersion{}, branch.Versions...), nil
}

// edit is a module list rewritten by one operation.
type edit struct {
	action  workflow.Action
	command string
	modules []*workflow.Module
	index   int
	module  types.ModuleID
}

// base loads the viztrail, the branch and the workflow an edit applies
// to. A branch without history yields an empty workflow. All results are
// nil when any of them does not exist.
func (r *Repository) base(ctx context.Context, vtID types.ViztrailID, branchID types.BranchID, version types.Version) (*viztrail.Viztrail, *viztrail.Branch, *workflow.Workflow, error) {
	vt, err := r.loadViztrail(ctx, vtID)
	if vt == nil || err != nil {
		return nil, nil, nil, err
	}
	branch := vt.Branch(branchID)
	if branch == nil {
		return nil, nil, nil, nil
	}

	if version < 0 {
		head, ok := branch.Head()
		if !ok {
			return vt, branch, workflow.New(branch.ID, HEAD, nil), nil
		}
		version = head
	}
	if !branch.HasVersion(version) {
		return nil, nil, nil, nil
	}
	wf, err := r.loadWorkflow(ctx, vtID, version)
	if wf == nil || err != nil {
		return nil, nil, nil, err
	}
	return vt, branch, wf, nil
}

// commit runs the engine over an edited module list and persists the
// result as the new head of branch.
func (r *Repository) commit(ctx context.Context, vt *viztrail.Viztrail, branch *viztrail.Branch, e edit) (*EditResult, error) {
	outcome, err := r.engine.Execute(ctx, execution.Request{
		Modules:       e.modules,
		ModifiedIndex: e.index,
		Store:         r.datasets,
	})
	if err != nil {
		return nil, verrors.NewOperationalError("executing workflow", vt.ID.String(), e.module.String(), err)
	}

	wf := workflow.New(branch.ID, vt.NextVersion(), outcome.Modules)
	wf.Action = e.action
	wf.Command = e.command
	if err := r.persist(ctx, vt, branch, wf); err != nil {
		return nil, err
	}

	r.log.Info("workflow version created",
		"viztrail", vt.ID,
		"branch", branch.ID,
		"version", wf.Version,
		"action", e.action,
		"command", e.command,
		"module", outcome.FirstModule,
		"modules", len(wf.Modules),
		"has_error", wf.HasError(),
	)
	return &EditResult{
		Viztrail:    vt,
		Branch:      branch,
		Workflow:    wf,
		FirstModule: outcome.FirstModule,
	}, nil
}

// persist writes the workflow first so the viztrail never references a
// version that does not exist.
func (r *Repository) persist(ctx context.Context, vt *viztrail.Viztrail, branch *viztrail.Branch, wf *workflow.Workflow) error {
	if err := r.store.SaveWorkflow(ctx, vt.ID, wf); err != nil {
		return verrors.NewOperationalError("persisting workflow", vt.ID.String(), "", err)
	}
	if err := branch.AppendVersion(wf.Version, wf.CreatedAt); err != nil {
		return fmt.Errorf("appending version: %w", err)
	}
	vt.Touch()
	if err := r.store.SaveViztrail(ctx, vt); err != nil {
		return verrors.NewOperationalError("persisting viztrail", vt.ID.String(), "", err)
	}
	return nil
}
