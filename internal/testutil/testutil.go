// Package testutil assembles in-memory Vizier stacks and fixtures for tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/filestore"
	"github.com/dshills/vizier/pkg/lens"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/storage"
	"github.com/dshills/vizier/pkg/transform"
	"github.com/dshills/vizier/pkg/vizual"
	"github.com/dshills/vizier/pkg/workflow"
)

// PeopleCSV is a 2-row, 3-column fixture.
const PeopleCSV = "Name,Age,Salary\nAlice,23,35K\nBob,32,30K\n"

// Env is an assembled stack backed by in-memory stores and a temporary
// file store.
type Env struct {
	Repo     *repository.Repository
	Store    *storage.MemoryViztrailStore
	Datasets *datastore.MemoryStore
	Files    *filestore.Store
	Engine   *execution.Engine
}

// Option configures NewEnv.
type Option func(*envConfig)

type envConfig struct {
	observer execution.Observer
	recorder repository.Recorder
	lens     lens.Engine
}

// WithObserver attaches an execution observer.
func WithObserver(o execution.Observer) Option {
	return func(c *envConfig) { c.observer = o }
}

// WithRecorder attaches a repository recorder.
func WithRecorder(rec repository.Recorder) Option {
	return func(c *envConfig) { c.recorder = rec }
}

// WithLensEngine replaces the local lens engine.
func WithLensEngine(e lens.Engine) Option {
	return func(c *envConfig) { c.lens = e }
}

// NewEnv assembles a repository with every executor registered. Logs are
// discarded.
func NewEnv(t testing.TB, opts ...Option) *Env {
	t.Helper()
	cfg := &envConfig{lens: lens.NewLocalEngine()}
	for _, opt := range opts {
		opt(cfg)
	}

	files, err := filestore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engineOpts := []execution.Option{
		execution.WithLogger(logger),
		execution.WithExecutor(workflow.PackageVizual, vizual.NewExecutor(files, vizual.WithLogger(logger))),
		execution.WithExecutor(workflow.PackageScript, transform.NewInterpreter(transform.WithLogger(logger))),
		execution.WithExecutor(workflow.PackageLens, lens.NewExecutor(cfg.lens, logger)),
	}
	if cfg.observer != nil {
		engineOpts = append(engineOpts, execution.WithObserver(cfg.observer))
	}
	engine := execution.NewEngine(workflow.DefaultCommandRepository(), engineOpts...)

	env := &Env{
		Store:    storage.NewMemoryViztrailStore(),
		Datasets: datastore.NewMemoryStore(),
		Files:    files,
		Engine:   engine,
	}
	repoOpts := []repository.Option{repository.WithLogger(logger)}
	if cfg.recorder != nil {
		repoOpts = append(repoOpts, repository.WithRecorder(cfg.recorder))
	}
	env.Repo = repository.New(env.Store, env.Datasets, engine, repoOpts...)
	return env
}

// UploadPeople uploads PeopleCSV and returns its file id.
func (e *Env) UploadPeople(t testing.TB) types.FileID {
	t.Helper()
	return e.Upload(t, "people.csv", PeopleCSV)
}

// Upload stores a delimited file and returns its id.
func (e *Env) Upload(t testing.TB, name, content string) types.FileID {
	t.Helper()
	fh, err := e.Files.Upload(context.Background(), name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return fh.ID
}
