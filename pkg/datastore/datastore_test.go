package datastore

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/rpc"
)

func peopleColumns() []dataset.Column {
	return []dataset.Column{{ID: 0, Name: "Name"}, {ID: 1, Name: "Age"}}
}

func peopleRows() []dataset.Row {
	return []dataset.Row{
		{ID: 0, Values: []string{"Alice", "23"}},
		{ID: 1, Values: []string{"Bob", "32"}},
	}
}

func storeFactories(t *testing.T) map[string]func(t *testing.T) dataset.Store {
	return map[string]func(t *testing.T) dataset.Store{
		"memory": func(t *testing.T) dataset.Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) dataset.Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"s3": func(t *testing.T) dataset.Store {
			return NewS3MockForTests()
		},
		"cached": func(t *testing.T) dataset.Store {
			fs, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			s, err := NewCachedStore(fs, 4)
			require.NoError(t, err)
			return s
		},
		"remote": func(t *testing.T) dataset.Store {
			srv := rpc.NewServer(nil)
			RegisterService(srv, NewMemoryStore())
			ts := httptest.NewServer(srv)
			t.Cleanup(ts.Close)
			s, err := NewRemoteStore(rpc.Config{BaseURL: ts.URL})
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create then get round trips", func(t *testing.T) {
				store := factory(t)
				annos := dataset.NewAnnotations()
				annos.AddCell(1, 0, "note", "verified")

				created, err := store.CreateDataset(ctx, peopleColumns(), peopleRows(), dataset.WithAnnotations(annos))
				require.NoError(t, err)
				require.False(t, created.ID.IsZero())

				got, err := store.GetDataset(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, created.ID, got.ID)
				assert.Equal(t, peopleColumns(), got.Columns)
				assert.Equal(t, peopleRows(), got.Rows)
				assert.Equal(t, int64(2), got.ColumnCounter)
				assert.Equal(t, int64(2), got.RowCounter)
				assert.Equal(t, []dataset.Annotation{{Key: "note", Value: "verified"}}, got.Annotations.ForCell(1, 0))
			})

			t.Run("explicit counters survive", func(t *testing.T) {
				store := factory(t)
				created, err := store.CreateDataset(ctx, peopleColumns(), peopleRows(),
					dataset.WithColumnCounter(10), dataset.WithRowCounter(20))
				require.NoError(t, err)

				got, err := store.GetDataset(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(10), got.ColumnCounter)
				assert.Equal(t, int64(20), got.RowCounter)
			})

			t.Run("empty dataset counters", func(t *testing.T) {
				store := factory(t)
				created, err := store.CreateDataset(ctx, nil, nil)
				require.NoError(t, err)

				got, err := store.GetDataset(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(0), got.ColumnCounter)
				assert.Equal(t, int64(-1), got.RowCounter)
				assert.Empty(t, got.Columns)
			})

			t.Run("schema violation", func(t *testing.T) {
				store := factory(t)
				_, err := store.CreateDataset(ctx, peopleColumns(), []dataset.Row{{ID: 0, Values: []string{"x"}}})
				assert.ErrorIs(t, err, verrors.ErrSchemaViolation)
			})

			t.Run("unknown id", func(t *testing.T) {
				store := factory(t)
				_, err := store.GetDataset(ctx, types.DatasetID("does-not-exist"))
				assert.ErrorIs(t, err, verrors.ErrNotFound)

				ok, err := store.DeleteDataset(ctx, types.DatasetID("does-not-exist"))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("delete", func(t *testing.T) {
				store := factory(t)
				created, err := store.CreateDataset(ctx, peopleColumns(), peopleRows())
				require.NoError(t, err)

				ok, err := store.DeleteDataset(ctx, created.ID)
				require.NoError(t, err)
				assert.True(t, ok)

				_, err = store.GetDataset(ctx, created.ID)
				assert.ErrorIs(t, err, verrors.ErrNotFound)
			})

			t.Run("snapshots are isolated from callers", func(t *testing.T) {
				store := factory(t)
				created, err := store.CreateDataset(ctx, peopleColumns(), peopleRows())
				require.NoError(t, err)

				first, err := store.GetDataset(ctx, created.ID)
				require.NoError(t, err)
				first.Rows[0].Values[0] = "Mallory"

				second, err := store.GetDataset(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, "Alice", second.Rows[0].Values[0])
			})
		})
	}
}

func TestSave_PreservesLineage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base, err := store.CreateDataset(ctx, peopleColumns(), peopleRows())
	require.NoError(t, err)

	edited, err := base.DeleteColumn(1)
	require.NoError(t, err)
	edited, err = edited.InsertColumn("Zip", -1)
	require.NoError(t, err)

	saved, err := dataset.Save(ctx, store, edited)
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, saved.ID)
	assert.Equal(t, int64(2), saved.Columns[1].ID)
	assert.Equal(t, int64(3), saved.ColumnCounter)
}

func TestCodec_DetectsCorruption(t *testing.T) {
	d, err := dataset.New("ds-1", peopleColumns(), peopleRows())
	require.NoError(t, err)

	data, err := Encode(d)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, d.Rows, decoded.Rows)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:5] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"bad checksum", func(b []byte) []byte { b[6] ^= 0xff; return b }},
		{"bad payload", func(b []byte) []byte { return append(b[:headerSize], 0xff, 0xff, 0xff) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := append([]byte(nil), data...)
			_, err := Decode(tt.mutate(cp))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestVolatileStore(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	persisted, err := base.CreateDataset(ctx, peopleColumns(), peopleRows())
	require.NoError(t, err)

	v := NewVolatileStore(base)

	got, err := v.GetDataset(ctx, persisted.ID)
	require.NoError(t, err)
	assert.Equal(t, persisted.Rows, got.Rows)

	scratch, err := v.CreateDataset(ctx, peopleColumns(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Created())
	assert.Equal(t, 1, base.Len())

	_, err = v.GetDataset(ctx, scratch.ID)
	require.NoError(t, err)
	_, err = base.GetDataset(ctx, scratch.ID)
	assert.ErrorIs(t, err, verrors.ErrNotFound)

	ok, err := v.DeleteDataset(ctx, persisted.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = v.GetDataset(ctx, persisted.ID)
	assert.ErrorIs(t, err, verrors.ErrNotFound)
	_, err = base.GetDataset(ctx, persisted.ID)
	assert.NoError(t, err, "base store must not be modified")

	ok, err = v.DeleteDataset(ctx, persisted.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStore_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	cached, err := NewCachedStore(base, 2)
	require.NoError(t, err)

	d, err := cached.CreateDataset(ctx, peopleColumns(), peopleRows())
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())

	// drop it underneath the cache; reads are still served
	_, err = base.DeleteDataset(ctx, d.ID)
	require.NoError(t, err)
	_, err = cached.GetDataset(ctx, d.ID)
	require.NoError(t, err)

	ok, err := cached.DeleteDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cached.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverFile, Dir: t.TempDir(), CacheSize: 8})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	_, err = Open(ctx, Config{Driver: DriverFile})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverRemote})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "tape"})
	assert.ErrorContains(t, err, "unknown datastore driver")
}
