package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a fake executor: every call binds the "ds" name to a new
// snapshot and records which modules ran.
type recorder struct {
	calls []string
	fail  map[string]bool
}

func (r *recorder) Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error) {
	name, _ := cmd.StringArg("name")
	r.calls = append(r.calls, name)
	if r.fail[name] {
		return nil, fmt.Errorf("%s failed", name)
	}
	ds, err := task.Store.CreateDataset(ctx, []dataset.Column{{ID: 0, Name: name}}, nil)
	if err != nil {
		return nil, err
	}
	out := workflow.CopyBindings(task.Datasets)
	out["ds"] = ds.ID
	return Success(out, "ran "+name), nil
}

func step(pkg, name string) workflow.ModuleSpecification {
	return workflow.ModuleSpecification{
		Package:   pkg,
		Command:   "step",
		Arguments: map[string]interface{}{"name": name},
	}
}

func modules(specs ...workflow.ModuleSpecification) []*workflow.Module {
	out := make([]*workflow.Module, len(specs))
	for i, s := range specs {
		out[i] = workflow.NewModule(types.ModuleID(i), s)
	}
	return out
}

func newTestEngine(vizual, script Executor) *Engine {
	return NewEngine(workflow.DefaultCommandRepository(),
		WithExecutor("vizual", vizual),
		WithExecutor("script", script),
	)
}

func TestEngine_RunAll(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(rec, rec)
	store := datastore.NewMemoryStore()

	out, err := engine.Execute(context.Background(), Request{
		Modules:       modules(step("vizual", "a"), step("vizual", "b"), step("script", "c")),
		ModifiedIndex: -1,
		Store:         store,
	})
	require.NoError(t, err)
	require.Len(t, out.Modules, 3)

	assert.Equal(t, []string{"a", "b", "c"}, rec.calls)
	assert.Equal(t, types.ModuleID(0), out.FirstModule)
	assert.False(t, out.HasError())
	assert.Equal(t, 3, store.Len())
	for i, m := range out.Modules {
		assert.Equal(t, types.ModuleID(i), m.ID)
		assert.Len(t, m.Stdout, 1)
		assert.Contains(t, m.Datasets, "ds")
	}
}

func TestEngine_MinimalRerun(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(rec, rec)
	store := datastore.NewMemoryStore()
	ctx := context.Background()

	first, err := engine.Execute(ctx, Request{
		Modules:       modules(step("vizual", "a"), step("script", "b"), step("vizual", "c")),
		ModifiedIndex: -1,
		Store:         store,
	})
	require.NoError(t, err)

	// replace the last module
	next := []*workflow.Module{first.Modules[0].Copy(), first.Modules[1].Copy(), workflow.NewModule(7, step("vizual", "d"))}
	rec.calls = nil
	before := store.Len()

	second, err := engine.Execute(ctx, Request{Modules: next, ModifiedIndex: 2, Store: store})
	require.NoError(t, err)

	// vizual module below the index is skipped; the script module is rebuilt
	assert.Equal(t, []string{"b", "d"}, rec.calls)
	assert.Equal(t, types.ModuleID(7), second.FirstModule)
	for i := 0; i < 2; i++ {
		assert.Equal(t, first.Modules[i].Stdout, second.Modules[i].Stdout)
		assert.Equal(t, first.Modules[i].Stderr, second.Modules[i].Stderr)
		assert.Equal(t, first.Modules[i].Datasets, second.Modules[i].Datasets)
	}
	// the rebuild pass writes to a throwaway store
	assert.Equal(t, before+1, store.Len())
	assert.NotEqual(t, first.Modules[1].Datasets["ds"], second.Modules[2].Datasets["ds"])
}

func TestEngine_ErrorShortCircuit(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"b": true}}
	engine := newTestEngine(rec, rec)

	out, err := engine.Execute(context.Background(), Request{
		Modules:       modules(step("vizual", "a"), step("vizual", "b"), step("vizual", "c"), step("script", "d")),
		ModifiedIndex: -1,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)
	require.Len(t, out.Modules, 4)

	assert.Equal(t, []string{"a", "b"}, rec.calls)
	assert.False(t, out.Modules[0].HasError())
	assert.Equal(t, []string{"b failed"}, out.Modules[1].Stderr)
	assert.Empty(t, out.Modules[1].Stdout)
	for _, m := range out.Modules[2:] {
		assert.Empty(t, m.Stdout)
		assert.Empty(t, m.Stderr)
		assert.Empty(t, m.Datasets)
	}
	assert.True(t, out.HasError())
}

func TestEngine_ErrorBelowIndexBlanksSuffix(t *testing.T) {
	failed := workflow.NewModule(0, step("vizual", "a"))
	failed.Stderr = []string{"boom"}
	mods := []*workflow.Module{failed, workflow.NewModule(1, step("vizual", "b"))}

	rec := &recorder{}
	out, err := newTestEngine(rec, rec).Execute(context.Background(), Request{
		Modules: mods, ModifiedIndex: 1, Store: datastore.NewMemoryStore(),
	})
	require.NoError(t, err)

	assert.Empty(t, rec.calls)
	assert.Equal(t, []string{"boom"}, out.Modules[0].Stderr)
	assert.Empty(t, out.Modules[1].Stderr)
	assert.Equal(t, types.ModuleID(1), out.FirstModule)
}

func TestEngine_BindingsFlowForward(t *testing.T) {
	var seen []map[string]types.DatasetID
	ex := ExecutorFunc(func(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error) {
		seen = append(seen, workflow.CopyBindings(task.Datasets))
		name, _ := cmd.StringArg("name")
		out := workflow.CopyBindings(task.Datasets)
		out[name] = types.DatasetID("id-" + name)
		return Success(out), nil
	})
	engine := newTestEngine(ex, ex)

	out, err := engine.Execute(context.Background(), Request{
		Modules:       modules(step("vizual", "a"), step("vizual", "b")),
		ModifiedIndex: 0,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Empty(t, seen[0])
	assert.Equal(t, map[string]types.DatasetID{"a": "id-a"}, seen[1])
	assert.Equal(t, map[string]types.DatasetID{"a": "id-a", "b": "id-b"}, out.Modules[1].Datasets)
}

func TestEngine_DeletedLastModule(t *testing.T) {
	rec := &recorder{}
	out, err := newTestEngine(rec, rec).Execute(context.Background(), Request{
		Modules: []*workflow.Module{}, ModifiedIndex: 0, Store: datastore.NewMemoryStore(),
	})
	require.NoError(t, err)
	assert.Empty(t, out.Modules)
	assert.Equal(t, types.NoModule, out.FirstModule)
	assert.False(t, out.HasError())
}

func TestEngine_CopyMode(t *testing.T) {
	rec := &recorder{}
	src := modules(step("vizual", "a"), step("script", "b"))
	src[0].Stdout = []string{"done"}
	src[0].Datasets = map[string]types.DatasetID{"ds": "x"}

	out, err := newTestEngine(rec, rec).Execute(context.Background(), Request{
		Modules: src, ModifiedIndex: -1, CopyOnly: true,
	})
	require.NoError(t, err)

	assert.Empty(t, rec.calls)
	assert.Equal(t, types.NoModule, out.FirstModule)
	require.Len(t, out.Modules, 2)
	assert.Equal(t, src[0].Stdout, out.Modules[0].Stdout)
	assert.Equal(t, src[0].Datasets, out.Modules[0].Datasets)

	out.Modules[0].Datasets["ds"] = "y"
	assert.Equal(t, types.DatasetID("x"), src[0].Datasets["ds"])
}

func TestEngine_GlobalsSurviveRebuild(t *testing.T) {
	script := ExecutorFunc(func(ctx context.Context, cmd workflow.ModuleSpecification, task *TaskContext) (*Result, error) {
		name, _ := cmd.StringArg("name")
		if name == "define" {
			task.Globals["x"] = 41
			return Success(workflow.CopyBindings(task.Datasets)), nil
		}
		x, ok := task.Globals["x"].(int)
		if !ok {
			return nil, errors.New("x is not defined")
		}
		return Success(workflow.CopyBindings(task.Datasets), fmt.Sprint(x+1)), nil
	})
	engine := newTestEngine(&recorder{}, script)

	prior := workflow.NewModule(0, step("script", "define"))
	out, err := engine.Execute(context.Background(), Request{
		Modules:       []*workflow.Module{prior, workflow.NewModule(1, step("script", "use"))},
		ModifiedIndex: 1,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)
	assert.False(t, out.HasError())
	assert.Equal(t, []string{"42"}, out.Modules[1].Stdout)
}

func TestEngine_UnknownPackageAndPanic(t *testing.T) {
	panicky := ExecutorFunc(func(context.Context, workflow.ModuleSpecification, *TaskContext) (*Result, error) {
		panic("kaboom")
	})
	engine := NewEngine(nil, WithExecutor("vizual", panicky))

	out, err := engine.Execute(context.Background(), Request{
		Modules:       modules(step("vizual", "a")),
		ModifiedIndex: 0,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)
	require.True(t, out.Modules[0].HasError())
	assert.Contains(t, out.Modules[0].Stderr[0], "kaboom")

	out, err = engine.Execute(context.Background(), Request{
		Modules:       modules(step("unknown", "a")),
		ModifiedIndex: 0,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.Modules[0].Stderr[0], "no executor for package 'unknown'")
}

func TestEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine(nil).Execute(context.Background(), Request{Modules: modules(step("vizual", "a"))})
	assert.Error(t, err)
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	_, err := newTestEngine(rec, rec).Execute(ctx, Request{
		Modules: modules(step("vizual", "a")), Store: datastore.NewMemoryStore(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

type countingObserver struct {
	visits map[string]int
	runs   int
}

func (o *countingObserver) ModuleVisited(pkg, outcome string, _ time.Duration) {
	o.visits[pkg+"/"+outcome]++
}

func (o *countingObserver) RunCompleted(time.Duration) { o.runs++ }

func TestEngine_Observer(t *testing.T) {
	obs := &countingObserver{visits: map[string]int{}}
	rec := &recorder{fail: map[string]bool{"b": true}}
	engine := NewEngine(nil,
		WithExecutor("vizual", rec),
		WithExecutor("script", rec),
		WithObserver(obs),
	)

	_, err := engine.Execute(context.Background(), Request{
		Modules:       modules(step("vizual", "a"), step("vizual", "b"), step("script", "c")),
		ModifiedIndex: -1,
		Store:         datastore.NewMemoryStore(),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"vizual/" + OutcomeSuccess: 1,
		"vizual/" + OutcomeError:   1,
		"script/" + OutcomeBlanked: 1,
	}, obs.visits)
	assert.Equal(t, 1, obs.runs)
}

func TestBindingContext_Propagate(t *testing.T) {
	mods := modules(step("vizual", "a"), step("vizual", "b"), step("vizual", "c"), step("vizual", "d"))
	for i, m := range mods {
		m.Datasets = map[string]types.DatasetID{"ds": types.DatasetID(fmt.Sprint(i))}
	}
	c := newBindingContext(mods)

	assert.Empty(t, c.input(0))
	assert.Equal(t, types.DatasetID("1"), c.input(2)["ds"])

	c.propagate(1, map[string]types.DatasetID{"ds": "new"})
	assert.Equal(t, types.DatasetID("new"), c.input(2)["ds"])
	assert.Empty(t, c.input(3))

	in := c.input(2)
	in["ds"] = "mutated"
	assert.Equal(t, types.DatasetID("new"), c.input(2)["ds"])
}
