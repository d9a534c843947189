package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	"github.com/dshills/vizier/pkg/lens"
	"github.com/dshills/vizier/pkg/metrics"
	"github.com/dshills/vizier/pkg/rpc"
	"github.com/dshills/vizier/pkg/workflow"
)

func newEngineServer(t *testing.T, token string) (*httptest.Server, *datastore.MemoryStore, *metrics.Collector) {
	t.Helper()
	backing := datastore.NewMemoryStore()
	collector := metrics.New()
	handler, err := EngineHandler(backing, lens.NewLocalEngine(), collector, token, newLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, backing, collector
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEngineHandler_RemoteStoreAndLens(t *testing.T) {
	ts, backing, _ := newEngineServer(t, "s3cr3t")
	ctx := context.Background()

	cfg := rpc.Config{
		BaseURL: ts.URL + PathRPC,
		Headers: map[string]string{"Authorization": "Bearer s3cr3t"},
		Timeout: 5 * time.Second,
	}
	store, err := datastore.NewRemoteStore(cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ds, err := store.CreateDataset(ctx,
		[]dataset.Column{{ID: 0, Name: "Name"}, {ID: 1, Name: "Age"}},
		[]dataset.Row{{ID: 0, Values: []string{"Alice", "23"}}, {ID: 1, Values: []string{"Bob", ""}}})
	require.NoError(t, err)
	assert.Equal(t, 1, backing.Len())

	engine, err := lens.NewRPCEngine(cfg)
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	res, err := engine.Apply(ctx, lens.Request{
		Lens:    workflow.LensMissingValue,
		Dataset: ds.ID,
		Args:    map[string]interface{}{workflow.ArgColumn: "Age"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Repaired)

	repaired, err := store.GetDataset(ctx, res.Dataset)
	require.NoError(t, err)
	assert.NotEmpty(t, repaired.Rows[1].Values[1])
	assert.NotEmpty(t, repaired.Annotations.ForCell(1, 1))
}

func TestEngineHandler_RequiresToken(t *testing.T) {
	ts, backing, _ := newEngineServer(t, "s3cr3t")

	for name, headers := range map[string]map[string]string{
		"missing": nil,
		"wrong":   {"Authorization": "Bearer nope"},
		"scheme":  {"Authorization": "s3cr3t"},
	} {
		t.Run(name, func(t *testing.T) {
			store, err := datastore.NewRemoteStore(rpc.Config{BaseURL: ts.URL + PathRPC, Headers: headers})
			require.NoError(t, err)
			defer func() { _ = store.Close() }()

			_, err = store.CreateDataset(context.Background(), []dataset.Column{{ID: 0, Name: "A"}}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "401")
		})
	}
	assert.Equal(t, 0, backing.Len())
}

func TestEngineHandler_NoToken(t *testing.T) {
	ts, backing, _ := newEngineServer(t, "")

	store, err := datastore.NewRemoteStore(rpc.Config{BaseURL: ts.URL + PathRPC})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.CreateDataset(context.Background(), []dataset.Column{{ID: 0, Name: "A"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.Len())
}

func TestEngineHandler_HealthAndMetrics(t *testing.T) {
	ts, _, collector := newEngineServer(t, "s3cr3t")

	code, body := get(t, ts.URL+PathHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	collector.OperationCompleted("append", "ok", 10*time.Millisecond)

	code, body = get(t, ts.URL+PathMetrics)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `operation="append"`)
}

func TestServeCommand_RejectsRPCBackend(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init", "--dataset-backend", "rpc", "--engine-url", "http://localhost:8089/rpc")

	_, err := runCLI(t, dir, "", "serve", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local dataset backend")
}
