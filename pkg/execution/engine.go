package execution

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/workflow"
)

// Engine computes the module list of the next workflow version.
type Engine struct {
	commands  *workflow.CommandRepository
	executors map[string]Executor
	logger    *Logger
	slog      *slog.Logger
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor registers the executor for a package.
func WithExecutor(pkg string, ex Executor) Option {
	return func(e *Engine) { e.executors[pkg] = ex }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.slog = l }
}

// WithObserver sets the observer notified for every visited module.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine. commands classifies which packages are
// rebuilt below the modified index.
func NewEngine(commands *workflow.CommandRepository, opts ...Option) *Engine {
	if commands == nil {
		commands = workflow.DefaultCommandRepository()
	}
	e := &Engine{
		commands:  commands,
		executors: make(map[string]Executor),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = NewLogger(e.slog, e.observer)
	return e
}

// Request describes one run.
type Request struct {
	// Modules is the module list after the edit was applied. Modules that
	// were inserted or replaced carry no outputs.
	Modules []*workflow.Module

	// ModifiedIndex is the position of the first changed module. -1 runs
	// everything from the start.
	ModifiedIndex int

	// Store receives the snapshots created by executed modules.
	Store dataset.Store

	// CopyOnly clones every module without executing any.
	CopyOnly bool
}

// Outcome is the result of a run.
type Outcome struct {
	Modules []*workflow.Module

	// FirstModule is the module at the modified index, or types.NoModule
	// when there is none (e.g. the last module was deleted, or copy mode).
	FirstModule types.ModuleID
}

// HasError reports whether any resulting module failed.
func (o *Outcome) HasError() bool {
	for _, m := range o.Modules {
		if m.HasError() {
			return true
		}
	}
	return false
}

// Execute runs the request. Module failures are captured into the
// resulting modules; the returned error is reserved for a nil store or a
// cancelled context.
func (e *Engine) Execute(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{
		Modules:     make([]*workflow.Module, 0, len(req.Modules)),
		FirstModule: types.NoModule,
	}

	if req.CopyOnly {
		for pos, m := range req.Modules {
			cp := m.Copy()
			out.Modules = append(out.Modules, cp)
			e.logger.LogModule(pos, cp, OutcomeCopied, 0)
		}
		return out, nil
	}

	if req.Store == nil {
		return nil, fmt.Errorf("execution requires a dataset store")
	}

	modifiedIndex := req.ModifiedIndex
	if modifiedIndex < 0 {
		modifiedIndex = 0
	}
	if modifiedIndex < len(req.Modules) {
		out.FirstModule = req.Modules[modifiedIndex].ID
	}

	bindings := newBindingContext(req.Modules)
	globals := make(map[string]interface{})
	var volatile *datastore.VolatileStore
	hasError := false

	for pos, m := range req.Modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result *workflow.Module
		var outcome string
		moduleStart := time.Now()

		switch {
		case hasError:
			result = m.Reset()
			outcome = OutcomeBlanked

		case pos < modifiedIndex:
			result = m.Copy()
			outcome = OutcomeKept
			if e.commands.ReplayPolicy(m.Command.Package) == workflow.ReplayRebuild {
				if volatile == nil {
					volatile = datastore.NewVolatileStore(req.Store)
				}
				task := &TaskContext{
					Datasets: bindings.input(pos),
					Store:    volatile,
					Globals:  globals,
					Volatile: true,
				}
				// Only interpreter state survives; recorded outputs and
				// bindings are those of the previous version.
				_ = e.run(ctx, m.Command, task)
				outcome = OutcomeRebuilt
			}
			hasError = result.HasError()

		default:
			task := &TaskContext{
				Datasets: bindings.input(pos),
				Store:    req.Store,
				Globals:  globals,
			}
			res := e.run(ctx, m.Command, task)
			result = &workflow.Module{
				ID:       m.ID,
				Command:  m.Command.Copy(),
				Datasets: res.Datasets,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			}
			outcome = OutcomeSuccess
			if result.HasError() {
				outcome = OutcomeError
				hasError = true
			}
		}

		bindings.propagate(pos, result.Datasets)
		out.Modules = append(out.Modules, result)
		e.logger.LogModule(pos, result, outcome, time.Since(moduleStart))
	}

	e.logger.LogRun(len(out.Modules), req.ModifiedIndex, hasError, time.Since(start))
	return out, nil
}

// run dispatches a command to its executor and normalizes the result.
// Errors and panics become error output with no standard output.
func (e *Engine) run(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.log.Error("executor panic", "package", cmd.Package, "command", cmd.Command,
				"panic", r, "stack", string(debug.Stack()))
			res = failure(fmt.Errorf("executor panic: %v", r))
		}
	}()

	ex, ok := e.executors[cmd.Package]
	if !ok {
		return failure(fmt.Errorf("no executor for package '%s'", cmd.Package))
	}

	out, err := ex.Execute(ctx, cmd, task)
	if err != nil {
		return failure(err)
	}
	if out == nil {
		out = &Result{}
	}
	if out.Datasets == nil {
		out.Datasets = workflow.CopyBindings(task.Datasets)
	}
	if len(out.Stderr) > 0 {
		out.Stdout = nil
	}
	return out
}

func failure(err error) *Result {
	return &Result{
		Stderr:   []string{err.Error()},
		Datasets: map[string]types.DatasetID{},
	}
}
