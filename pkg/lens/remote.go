package lens

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/rpc"
)

// MethodApply is the remote method that applies a lens.
const MethodApply = "lens.apply"

// RPCEngine delegates lenses to a remote engine. The remote engine reads
// and writes datasets in its own store, so the local dataset store must
// be a datastore.RemoteStore pointing at the same process.
type RPCEngine struct {
	client *rpc.Client
}

// NewRPCEngine creates an engine client for the given endpoint.
func NewRPCEngine(cfg rpc.Config) (*RPCEngine, error) {
	client, err := rpc.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RPCEngine{client: client}, nil
}

var _ Engine = (*RPCEngine)(nil)

// Apply sends the lens request to the remote engine.
func (e *RPCEngine) Apply(ctx context.Context, req Request) (*Result, error) {
	var raw json.RawMessage
	if err := e.client.Call(ctx, MethodApply, req, &raw); err != nil {
		return nil, err
	}

	id := gjson.GetBytes(raw, "dataset")
	if id.String() == "" {
		return nil, fmt.Errorf("%s: response carries no dataset id", MethodApply)
	}
	return &Result{
		Dataset:  types.DatasetID(id.String()),
		Repaired: int(gjson.GetBytes(raw, "repaired").Int()),
	}, nil
}

// Close releases the underlying connection.
func (e *RPCEngine) Close() error {
	return e.client.Close()
}

// RegisterService serves engine on srv. Requests are applied against store.
func RegisterService(srv *rpc.Server, engine Engine, store dataset.Store) {
	srv.Register(MethodApply, func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req Request
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, rpc.InvalidParams(err)
		}
		req.Store = store
		return engine.Apply(ctx, req)
	})
}
