package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

func backends(t *testing.T) map[string]func(t *testing.T) ViztrailStore {
	return map[string]func(t *testing.T) ViztrailStore{
		"memory": func(t *testing.T) ViztrailStore {
			return NewMemoryViztrailStore()
		},
		"filesystem": func(t *testing.T) ViztrailStore {
			s, err := NewFilesystemViztrailStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) ViztrailStore {
			s, err := NewSQLiteViztrailStore(filepath.Join(t.TempDir(), "vizier.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func sampleWorkflow(vt *viztrail.Viztrail, branch types.BranchID) *workflow.Workflow {
	m := workflow.NewModule(vt.NextModuleID(), workflow.InsertColumn("people", "Age", 1))
	m.Datasets["people"] = types.DatasetID("ds-1")
	m.Stdout = []string{"1 column inserted"}
	wf := workflow.New(branch, vt.NextVersion(), []*workflow.Module{m})
	wf.Action = workflow.ActionAppend
	return wf
}

func TestViztrailStore_Contract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer func() { _ = store.Close() }()

			vt := viztrail.New("local", map[string]string{viztrail.PropertyName: "curation"})
			wf := sampleWorkflow(vt, vt.DefaultBranch)
			require.NoError(t, vt.Branch(vt.DefaultBranch).AppendVersion(wf.Version, wf.CreatedAt))

			require.NoError(t, store.SaveViztrail(ctx, vt))
			require.NoError(t, store.SaveWorkflow(ctx, vt.ID, wf))

			loaded, err := store.LoadViztrail(ctx, vt.ID)
			require.NoError(t, err)
			assert.Equal(t, "curation", loaded.Name())
			assert.Equal(t, vt.DefaultBranch, loaded.DefaultBranch)
			assert.Equal(t, int64(1), loaded.ModuleCounter.Peek())
			assert.Equal(t, int64(1), loaded.VersionCounter.Peek())
			head, ok := loaded.Branch(vt.DefaultBranch).Head()
			require.True(t, ok)
			assert.Equal(t, wf.Version, head)

			got, err := store.LoadWorkflow(ctx, vt.ID, wf.Version)
			require.NoError(t, err)
			require.Len(t, got.Modules, 1)
			assert.Equal(t, wf.Modules[0].ID, got.Modules[0].ID)
			assert.Equal(t, "vizual.insert_column", got.Modules[0].Command.String())
			assert.Equal(t, types.DatasetID("ds-1"), got.Modules[0].Datasets["people"])
			assert.Equal(t, []string{"1 column inserted"}, got.Modules[0].Stdout)
			pos, err := got.Modules[0].Command.IntArg("position")
			require.NoError(t, err)
			assert.Equal(t, 1, pos)
			assert.Equal(t, workflow.ActionAppend, got.Action)

			// versions are write-once
			assert.Error(t, store.SaveWorkflow(ctx, vt.ID, wf))

			_, err = store.LoadWorkflow(ctx, vt.ID, 99)
			assert.ErrorIs(t, err, verrors.ErrNotFound)
			_, err = store.LoadViztrail(ctx, types.NewViztrailID())
			assert.ErrorIs(t, err, verrors.ErrNotFound)

			// updating the record replaces it
			vt.UpdateProperties(map[string]string{viztrail.PropertyName: "renamed"})
			require.NoError(t, store.SaveViztrail(ctx, vt))
			loaded, err = store.LoadViztrail(ctx, vt.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", loaded.Name())

			deleted, err := store.DeleteViztrail(ctx, vt.ID)
			require.NoError(t, err)
			assert.True(t, deleted)
			_, err = store.LoadWorkflow(ctx, vt.ID, wf.Version)
			assert.ErrorIs(t, err, verrors.ErrNotFound)

			deleted, err = store.DeleteViztrail(ctx, vt.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	}
}

func TestViztrailStore_DeleteWorkflows(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer func() { _ = store.Close() }()

			vt := viztrail.New("local", nil)
			branch := viztrail.NewBranch(types.NewBranchID(), map[string]string{viztrail.PropertyName: "alt"}, nil)
			vt.AddBranch(branch)
			require.NoError(t, store.SaveViztrail(ctx, vt))

			main := sampleWorkflow(vt, vt.DefaultBranch)
			alt := sampleWorkflow(vt, branch.ID)
			require.NoError(t, store.SaveWorkflow(ctx, vt.ID, main))
			require.NoError(t, store.SaveWorkflow(ctx, vt.ID, alt))

			require.NoError(t, store.DeleteWorkflows(ctx, vt.ID, branch.ID))

			_, err := store.LoadWorkflow(ctx, vt.ID, alt.Version)
			assert.ErrorIs(t, err, verrors.ErrNotFound)
			_, err = store.LoadWorkflow(ctx, vt.ID, main.Version)
			assert.NoError(t, err)
		})
	}
}

func TestViztrailStore_ListOrdered(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer func() { _ = store.Close() }()

			first := viztrail.New("local", map[string]string{viztrail.PropertyName: "first"})
			second := viztrail.New("local", map[string]string{viztrail.PropertyName: "second"})
			second.CreatedAt = first.CreatedAt.Add(time.Second)
			require.NoError(t, store.SaveViztrail(ctx, second))
			require.NoError(t, store.SaveViztrail(ctx, first))

			list, err := store.ListViztrails(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "first", list[0].Name())
			assert.Equal(t, "second", list[1].Name())
		})
	}
}

func TestMemoryViztrailStore_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryViztrailStore()

	vt := viztrail.New("local", nil)
	require.NoError(t, store.SaveViztrail(ctx, vt))
	vt.UpdateProperties(map[string]string{viztrail.PropertyName: "mutated"})

	loaded, err := store.LoadViztrail(ctx, vt.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Name())
}

func TestFilesystemViztrailStore_RejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFilesystemViztrailStore(filepath.Join(root, "store"))
	require.NoError(t, err)

	for _, id := range []types.ViztrailID{"../escape", "a/b", "..", ""} {
		t.Run(string(id), func(t *testing.T) {
			_, err := store.LoadViztrail(ctx, id)
			assert.ErrorIs(t, err, verrors.ErrNotFound)

			vt := viztrail.New("local", nil)
			vt.ID = id
			assert.Error(t, store.SaveViztrail(ctx, vt))
			assert.Error(t, store.SaveWorkflow(ctx, id, workflow.New("b1", 0, nil)))

			_, err = store.DeleteViztrail(ctx, id)
			assert.Error(t, err)
		})
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].Name())
	assert.NoFileExists(t, filepath.Join(root, "escape", "viztrail.yaml"))
}

func TestKeyringCredentialStore(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringCredentialStore()

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, store.Set(CredentialEngineToken, "secret"))
	require.NoError(t, store.SetStructured(CredentialS3, S3Credential{AccessKeyID: "AK", SecretAccessKey: "SK"}))

	value, err := store.Get(CredentialEngineToken)
	require.NoError(t, err)
	assert.Equal(t, "secret", value)

	var cred S3Credential
	require.NoError(t, store.GetStructured(CredentialS3, &cred))
	assert.Equal(t, "AK", cred.AccessKeyID)
	assert.Equal(t, "SK", cred.SecretAccessKey)

	keys, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{CredentialEngineToken, CredentialS3}, keys)

	require.NoError(t, store.Delete(CredentialEngineToken))
	_, err = store.Get(CredentialEngineToken)
	assert.ErrorIs(t, err, verrors.ErrNotFound)
	assert.ErrorIs(t, store.Delete(CredentialEngineToken), verrors.ErrNotFound)

	assert.ErrorIs(t, store.Set("", "x"), verrors.ErrInvalidArgument)
	assert.ErrorIs(t, store.Set(indexKey, "x"), verrors.ErrInvalidName)
}
