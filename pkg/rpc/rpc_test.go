package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dshills/vizier/pkg/errors"
)

type echoParams struct {
	Text string `json:"text"`
}

func newTestServer(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()

	srv := NewServer(nil)
	srv.Register("echo", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p echoParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, InvalidParams(err)
		}
		return map[string]string{"text": p.Text}, nil
	})
	srv.Register("validate", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, verrors.NewValidation(verrors.CodeInvalidName, "invalid column name '%s'", "")
	})
	srv.Register("missing", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, fmt.Errorf("dataset ds-1: %w", verrors.ErrNotFound)
	})
	srv.Register("boom", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, errors.New("disk on fire")
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL, Headers: map[string]string{"X-Test": "1"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, ts
}

func TestClient_Call(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	var out echoParams
	require.NoError(t, client.Call(ctx, "echo", echoParams{Text: "hello"}, &out))
	assert.Equal(t, "hello", out.Text)

	require.NoError(t, client.Call(ctx, "echo", echoParams{Text: "discard"}, nil))
}

func TestClient_Errors(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation error keeps its code",
			method: "validate",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, verrors.ErrInvalidName)
				assert.Contains(t, err.Error(), "invalid column name")
			},
		},
		{
			name:   "not found",
			method: "missing",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, verrors.ErrNotFound)
			},
		},
		{
			name:   "internal error",
			method: "boom",
			check: func(t *testing.T, err error) {
				var rpcErr *Error
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, CodeInternalError, rpcErr.Code)
				assert.Contains(t, rpcErr.Message, "disk on fire")
			},
		},
		{
			name:   "unknown method",
			method: "nope",
			check: func(t *testing.T, err error) {
				var rpcErr *Error
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Call(ctx, tt.method, map[string]string{}, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_InvalidParams(t *testing.T) {
	client, _ := newTestServer(t)

	err := client.Call(context.Background(), "echo", []int{1, 2}, nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestClient_Closed(t *testing.T) {
	client, _ := newTestServer(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	err := client.Call(context.Background(), "echo", echoParams{}, nil)
	assert.ErrorContains(t, err, "client is closed")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestServer_RejectsGet(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClient_HTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client, err := NewClient(Config{BaseURL: ts.URL})
	require.NoError(t, err)

	err = client.Call(context.Background(), "echo", nil, nil)
	assert.ErrorContains(t, err, "status 503")
}
