// Package execution implements the incremental re-execution engine. Given
// the module list of a workflow and the position of the first changed
// module, it re-runs only the affected suffix, threads dataset bindings
// forward and short-circuits everything after the first failing module.
package execution

import (
	"context"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/workflow"
)

// Executor runs the commands of one package. Executors are pure with
// respect to the engine: everything they read or write goes through the
// TaskContext.
type Executor interface {
	Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error) {
	return f(ctx, cmd, task)
}

// TaskContext is the state an executor runs against.
type TaskContext struct {
	// Datasets are the bindings in effect before the module. Executors must
	// not modify the map; they return the new bindings in Result.
	Datasets map[string]types.DatasetID

	// Store receives every snapshot the module creates. During a
	// rebuild-only pass it is a volatile overlay.
	Store dataset.Store

	// Globals is the interpreter state shared by all modules of one run.
	Globals map[string]interface{}

	// Volatile is set during a rebuild-only pass.
	Volatile bool
}

// Result is the captured output of a module.
type Result struct {
	Stdout   []string
	Stderr   []string
	Datasets map[string]types.DatasetID
}

// Success builds a result with the given bindings and output lines.
func Success(datasets map[string]types.DatasetID, stdout ...string) *Result {
	return &Result{Stdout: stdout, Datasets: datasets}
}
