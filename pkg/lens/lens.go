// Package lens executes data-cleaning lenses. A lens reads one dataset and
// produces a repaired snapshot, marking every value it guessed with a
// cell, row or column annotation. The lens itself runs in an Engine:
// in-process (LocalEngine) or in a separate process reached over JSON-RPC
// (RPCEngine).
package lens

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/workflow"
)

// Annotation keys written by lenses.
const (
	AnnoUncertain = "mimir:uncertain"
	AnnoType      = "mimir:type"
)

// Request asks an engine to apply a lens to a dataset.
type Request struct {
	Lens    string                 `json:"lens"`
	Dataset types.DatasetID        `json:"dataset"`
	Args    map[string]interface{} `json:"args"`

	// Store holds the input and receives the output. Remote engines use
	// their own store and ignore it.
	Store dataset.Store `json:"-"`
}

// Result is the outcome of a lens.
type Result struct {
	Dataset  types.DatasetID `json:"dataset"`
	Repaired int             `json:"repaired"`
}

// Engine applies lenses.
type Engine interface {
	Apply(ctx context.Context, req Request) (*Result, error)
}

// Executor runs lens modules through an Engine.
type Executor struct {
	engine Engine
	logger *slog.Logger
}

// NewExecutor creates a lens executor.
func NewExecutor(engine Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, logger: logger.With("component", "lens")}
}

var _ execution.Executor = (*Executor)(nil)

// Execute applies the lens named by the command and rebinds the dataset.
func (e *Executor) Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *execution.TaskContext) (*execution.Result, error) {
	name, err := cmd.StringArg(workflow.ArgDataset)
	if err != nil {
		return nil, err
	}
	client := task.Client()
	// Resolving through the client validates the binding before the engine
	// is involved.
	ds, err := client.GetDataset(ctx, name)
	if err != nil {
		return nil, err
	}

	args := make(map[string]interface{}, len(cmd.Arguments))
	for k, v := range cmd.Arguments {
		if k != workflow.ArgDataset {
			args[k] = v
		}
	}

	res, err := e.engine.Apply(ctx, Request{
		Lens:    cmd.Command,
		Dataset: ds.ID,
		Args:    args,
		Store:   task.Store,
	})
	if err != nil {
		return nil, err
	}
	if err := client.BindDataset(name, res.Dataset); err != nil {
		return nil, err
	}

	e.logger.Debug("lens applied", "lens", cmd.Command, "dataset", name, "repaired", res.Repaired)
	return execution.Success(client.Bindings(),
		fmt.Sprintf("%s: %d value(s) repaired in %s", cmd.Command, res.Repaired, name)), nil
}
