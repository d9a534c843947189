// Package repository is the externally facing entry point for editing
// viztrails. It validates edits, issues identifiers from the viztrail's
// sequences, runs the re-execution engine and persists every result as a
// new immutable workflow version appended to the branch.
//
// Unknown viztrails, branches, workflow versions and modules are reported
// as nil results with a nil error. Malformed input is reported as an
// errors.ValidationError before anything is persisted.
package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/storage"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// DefaultEnvironment is the environment id assigned to viztrails created
// without one.
const DefaultEnvironment = "default"

// Operation names reported to the Recorder.
const (
	OpCreateViztrail = "create_viztrail"
	OpDeleteViztrail = "delete_viztrail"
	OpUpdateViztrail = "update_viztrail"
	OpAppendModule   = "append_module"
	OpReplaceModule  = "replace_module"
	OpDeleteModule   = "delete_module"
	OpCreateBranch   = "create_branch"
	OpDeleteBranch   = "delete_branch"
	OpUpdateBranch   = "update_branch"
)

// Operation results reported to the Recorder.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// Recorder receives the outcome of every mutating operation.
type Recorder interface {
	OperationCompleted(operation, result string, duration time.Duration)
}

// Repository orchestrates edits of viztrails.
type Repository struct {
	store    storage.ViztrailStore
	datasets dataset.Store
	engine   *execution.Engine
	commands *workflow.CommandRepository
	envs     map[string]*workflow.CommandRepository
	log      *slog.Logger
	recorder Recorder

	// Edits read HEAD, run the engine and append a new HEAD. They are
	// serialized so concurrent edits of one process never lose an update.
	mu sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithRecorder sets the operation recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Repository) { r.recorder = rec }
}

// WithCommands sets the command repository used to validate commands of
// viztrails whose environment has no repository of its own.
func WithCommands(commands *workflow.CommandRepository) Option {
	return func(r *Repository) { r.commands = commands }
}

// WithEnvironment binds a command repository to an environment id.
func WithEnvironment(envID string, commands *workflow.CommandRepository) Option {
	return func(r *Repository) { r.envs[envID] = commands }
}

// New creates a repository over a viztrail store, a dataset store and an
// engine configured with the executors of every package.
func New(store storage.ViztrailStore, datasets dataset.Store, engine *execution.Engine, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		datasets: datasets,
		engine:   engine,
		commands: workflow.DefaultCommandRepository(),
		envs:     make(map[string]*workflow.CommandRepository),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "repository")
	return r
}

// CommandsFor returns the command repository bound to an environment,
// falling back to the repository-wide one.
func (r *Repository) CommandsFor(envID string) *workflow.CommandRepository {
	if commands, ok := r.envs[envID]; ok {
		return commands
	}
	return r.commands
}

// CreateViztrail creates a viztrail with an empty default branch.
func (r *Repository) CreateViztrail(ctx context.Context, envID string, properties map[string]string) (vt *viztrail.Viztrail, err error) {
	defer func(start time.Time) { r.record(OpCreateViztrail, start, vt != nil, err) }(time.Now())

	if envID == "" {
		envID = DefaultEnvironment
	}
	vt = viztrail.New(envID, properties)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveViztrail(ctx, vt); err != nil {
		return nil, verrors.NewOperationalError("creating viztrail", vt.ID.String(), "", err)
	}
	r.log.Info("viztrail created", "viztrail", vt.ID, "name", vt.Name(), "env", envID)
	return vt, nil
}

// GetViztrail returns a viztrail, or nil if it does not exist.
func (r *Repository) GetViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error) {
	return r.loadViztrail(ctx, id)
}

// ListViztrails returns all viztrails ordered by creation time.
func (r *Repository) ListViztrails(ctx context.Context) ([]*viztrail.Viztrail, error) {
	return r.store.ListViztrails(ctx)
}

// DeleteViztrail removes a viztrail with all its branches and workflow
// versions. Returns false if it did not exist.
func (r *Repository) DeleteViztrail(ctx context.Context, id types.ViztrailID) (deleted bool, err error) {
	defer func(start time.Time) { r.record(OpDeleteViztrail, start, deleted, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	deleted, err = r.store.DeleteViztrail(ctx, id)
	if err != nil {
		return false, verrors.NewOperationalError("deleting viztrail", id.String(), "", err)
	}
	if deleted {
		r.log.Info("viztrail deleted", "viztrail", id)
	}
	return deleted, nil
}

// UpdateViztrailProperties merges properties into the viztrail. An empty
// value removes the key.
func (r *Repository) UpdateViztrailProperties(ctx context.Context, id types.ViztrailID, properties map[string]string) (vt *viztrail.Viztrail, err error) {
	defer func(start time.Time) { r.record(OpUpdateViztrail, start, vt != nil, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	vt, err = r.loadViztrail(ctx, id)
	if vt == nil || err != nil {
		return nil, err
	}
	vt.UpdateProperties(properties)
	if err := r.store.SaveViztrail(ctx, vt); err != nil {
		return nil, verrors.NewOperationalError("updating viztrail", id.String(), "", err)
	}
	return vt, nil
}

// GetDataset returns a dataset snapshot, or nil if it does not exist.
func (r *Repository) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	ds, err := r.datasets.GetDataset(ctx, id)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil, nil
	}
	return ds, err
}

// loadViztrail maps a missing record to nil.
func (r *Repository) loadViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error) {
	vt, err := r.store.LoadViztrail(ctx, id)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return vt, nil
}

// loadWorkflow maps a missing record to nil.
func (r *Repository) loadWorkflow(ctx context.Context, id types.ViztrailID, version types.Version) (*workflow.Workflow, error) {
	wf, err := r.store.LoadWorkflow(ctx, id, version)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *Repository) record(op string, start time.Time, found bool, err error) {
	if r.recorder == nil {
		return
	}
	result := ResultOK
	switch {
	case verrors.IsValidation(err):
		result = ResultInvalid
	case err != nil:
		result = ResultError
	case !found:
		result = ResultNotFound
	}
	r.recorder.OperationCompleted(op, result, time.Since(start))
}
