package datastore

import (
	"context"
	"encoding/json"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/rpc"
)

// Remote method names.
const (
	MethodCreateDataset = "datastore.create_dataset"
	MethodGetDataset    = "datastore.get_dataset"
	MethodDeleteDataset = "datastore.delete_dataset"
)

type createParams struct {
	Columns       []dataset.Column     `json:"columns"`
	Rows          []dataset.Row        `json:"rows"`
	ColumnCounter *int64               `json:"column_counter,omitempty"`
	RowCounter    *int64               `json:"row_counter,omitempty"`
	Annotations   *dataset.Annotations `json:"annotations,omitempty"`
}

type idParams struct {
	ID types.DatasetID `json:"id"`
}

type deleteResult struct {
	Deleted bool `json:"deleted"`
}

// RemoteStore is a dataset.Store served by another process over JSON-RPC.
type RemoteStore struct {
	client *rpc.Client
}

// NewRemoteStore creates a store client for the given endpoint.
func NewRemoteStore(cfg rpc.Config) (*RemoteStore, error) {
	client, err := rpc.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RemoteStore{client: client}, nil
}

// CreateDataset asks the remote store to persist a new snapshot.
func (s *RemoteStore) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	// Resolve options locally so that counters and annotations travel
	// explicitly and the schema is checked before the round trip.
	probe, err := dataset.New("", columns, rows, opts...)
	if err != nil {
		return nil, err
	}

	params := createParams{
		Columns:       probe.Columns,
		Rows:          probe.Rows,
		ColumnCounter: &probe.ColumnCounter,
		RowCounter:    &probe.RowCounter,
		Annotations:   probe.Annotations,
	}
	var d dataset.Dataset
	if err := s.client.Call(ctx, MethodCreateDataset, params, &d); err != nil {
		return nil, err
	}
	return normalize(&d), nil
}

// GetDataset fetches a snapshot from the remote store.
func (s *RemoteStore) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	var d dataset.Dataset
	if err := s.client.Call(ctx, MethodGetDataset, idParams{ID: id}, &d); err != nil {
		return nil, err
	}
	return normalize(&d), nil
}

// DeleteDataset removes a snapshot from the remote store.
func (s *RemoteStore) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	var out deleteResult
	if err := s.client.Call(ctx, MethodDeleteDataset, idParams{ID: id}, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// Close releases the underlying connection.
func (s *RemoteStore) Close() error {
	return s.client.Close()
}

// RegisterService exposes store on srv under the datastore.* methods.
func RegisterService(srv *rpc.Server, store dataset.Store) {
	srv.Register(MethodCreateDataset, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p createParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpc.InvalidParams(err)
		}
		var opts []dataset.Option
		if p.ColumnCounter != nil {
			opts = append(opts, dataset.WithColumnCounter(*p.ColumnCounter))
		}
		if p.RowCounter != nil {
			opts = append(opts, dataset.WithRowCounter(*p.RowCounter))
		}
		if p.Annotations != nil {
			opts = append(opts, dataset.WithAnnotations(p.Annotations))
		}
		return store.CreateDataset(ctx, p.Columns, p.Rows, opts...)
	})
	srv.Register(MethodGetDataset, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p idParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpc.InvalidParams(err)
		}
		return store.GetDataset(ctx, p.ID)
	})
	srv.Register(MethodDeleteDataset, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p idParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpc.InvalidParams(err)
		}
		ok, err := store.DeleteDataset(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return deleteResult{Deleted: ok}, nil
	})
}

func normalize(d *dataset.Dataset) *dataset.Dataset {
	d.Annotations = d.Annotations.Copy()
	for i := range d.Rows {
		if d.Rows[i].Values == nil {
			d.Rows[i].Values = []string{}
		}
	}
	if d.Columns == nil {
		d.Columns = []dataset.Column{}
	}
	if d.Rows == nil {
		d.Rows = []dataset.Row{}
	}
	return d
}
