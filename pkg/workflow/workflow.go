// Package workflow defines modules, workflow versions and the command
// repository that declares and validates the commands a module may carry.
package workflow

import (
	"time"

	"github.com/dshills/vizier/pkg/domain/types"
)

// Action records the edit that produced a workflow version.
type Action string

const (
	ActionCreate  Action = "create"
	ActionAppend  Action = "append"
	ActionInsert  Action = "insert"
	ActionReplace Action = "replace"
	ActionDelete  Action = "delete"
)

// Workflow is an immutable version of a branch: an ordered module list.
// Every edit produces a new Workflow with a new version number.
type Workflow struct {
	BranchID  types.BranchID `json:"branch_id" yaml:"branch_id"`
	Version   types.Version  `json:"version" yaml:"version"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	Action    Action         `json:"action,omitempty" yaml:"action,omitempty"`
	Command   string         `json:"command,omitempty" yaml:"command,omitempty"`
	Modules   []*Module      `json:"modules" yaml:"modules"`
}

// New creates a workflow version owning the given modules.
func New(branchID types.BranchID, version types.Version, modules []*Module) *Workflow {
	if modules == nil {
		modules = []*Module{}
	}
	return &Workflow{
		BranchID:  branchID,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Modules:   modules,
	}
}

// HasError reports whether any module has error output.
func (w *Workflow) HasError() bool {
	for _, m := range w.Modules {
		if m.HasError() {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the workflow has no modules.
func (w *Workflow) IsEmpty() bool {
	return len(w.Modules) == 0
}

// ModuleIndex returns the position of the module with the given id, or -1.
func (w *Workflow) ModuleIndex(id types.ModuleID) int {
	for i, m := range w.Modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Module returns the module with the given id, or nil.
func (w *Workflow) Module(id types.ModuleID) *Module {
	if i := w.ModuleIndex(id); i >= 0 {
		return w.Modules[i]
	}
	return nil
}

// Datasets returns the dataset bindings in effect after the last module.
func (w *Workflow) Datasets() map[string]types.DatasetID {
	if len(w.Modules) == 0 {
		return map[string]types.DatasetID{}
	}
	return CopyBindings(w.Modules[len(w.Modules)-1].Datasets)
}

// CopyModules returns deep copies of the modules.
func (w *Workflow) CopyModules() []*Module {
	out := make([]*Module, len(w.Modules))
	for i, m := range w.Modules {
		out[i] = m.Copy()
	}
	return out
}

// Copy returns a deep copy of the workflow.
func (w *Workflow) Copy() *Workflow {
	cp := *w
	cp.Modules = w.CopyModules()
	return &cp
}
