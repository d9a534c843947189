package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dshills/vizier/pkg/errors"
)

func TestCommandRepository_Validate(t *testing.T) {
	repo := DefaultCommandRepository()

	tests := []struct {
		name    string
		spec    ModuleSpecification
		wantErr bool
		errMsg  string
	}{
		{
			name: "load",
			spec: LoadDataset("people", "file-1"),
		},
		{
			name: "update cell by column name",
			spec: UpdateCell("people", "Age", 0, "28"),
		},
		{
			name: "update cell by column position",
			spec: UpdateCell("people", 1, 0, "28"),
		},
		{
			name: "insert column without position",
			spec: InsertColumn("people", "Zip", -1),
		},
		{
			name: "script",
			spec: Script(`create_dataset("t", [["a"]], [])`),
		},
		{
			name: "domain with nested values",
			spec: Domain("people", "Name", []string{"Alice", "Bob"}),
		},
		{
			name: "numbers decoded from JSON",
			spec: ModuleSpecification{Package: PackageVizual, Command: VizualDeleteRow,
				Arguments: map[string]interface{}{"dataset": "people", "row": float64(1)}},
		},
		{
			name:    "unknown package",
			spec:    ModuleSpecification{Package: "sql", Command: "query"},
			wantErr: true,
			errMsg:  "unknown package",
		},
		{
			name:    "unknown command",
			spec:    ModuleSpecification{Package: PackageVizual, Command: "explode"},
			wantErr: true,
			errMsg:  "unknown command",
		},
		{
			name: "missing required argument",
			spec: ModuleSpecification{Package: PackageVizual, Command: VizualUpdateCell,
				Arguments: map[string]interface{}{"dataset": "people", "column": "Age", "row": 0}},
			wantErr: true,
			errMsg:  "value",
		},
		{
			name: "undeclared argument",
			spec: ModuleSpecification{Package: PackageVizual, Command: VizualDropDataset,
				Arguments: map[string]interface{}{"dataset": "people", "force": true}},
			wantErr: true,
			errMsg:  "force",
		},
		{
			name: "wrong type",
			spec: ModuleSpecification{Package: PackageVizual, Command: VizualDeleteRow,
				Arguments: map[string]interface{}{"dataset": "people", "row": "first"}},
			wantErr: true,
		},
		{
			name: "negative row",
			spec: DeleteRow("people", -1),
			wantErr: true,
		},
		{
			name: "nested record missing child",
			spec: ModuleSpecification{Package: PackageLens, Command: LensDomain,
				Arguments: map[string]interface{}{"dataset": "people", "column": "Name",
					"values": []interface{}{map[string]interface{}{"other": "x"}}}},
			wantErr: true,
		},
		{
			name:    "nil arguments",
			spec:    ModuleSpecification{Package: PackageScript, Command: ScriptCode},
			wantErr: true,
			errMsg:  "source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Validate(tt.spec)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, verrors.ErrInvalidArgument)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestCommandRepository_ReplayPolicy(t *testing.T) {
	repo := DefaultCommandRepository()

	assert.Equal(t, ReplayRebuild, repo.ReplayPolicy(PackageScript))
	assert.Equal(t, ReplaySkip, repo.ReplayPolicy(PackageVizual))
	assert.Equal(t, ReplaySkip, repo.ReplayPolicy(PackageLens))
	assert.Equal(t, ReplayRebuild, repo.ReplayPolicy("new-package"))
	assert.Equal(t, []string{PackageLens, PackageScript, PackageVizual}, repo.Packages())
	assert.Equal(t, "rebuild", ReplayRebuild.String())
}

func TestCommandSpec_Schema(t *testing.T) {
	cmd := DefaultCommandRepository().Command(PackageLens, LensDomain)
	require.NotNil(t, cmd)

	schema := cmd.Schema()
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []string{"dataset", "column", "values"}, schema["required"])

	props := schema["properties"].(map[string]interface{})
	values := props["values"].(map[string]interface{})
	assert.Equal(t, "array", values["type"])
	items := values["items"].(map[string]interface{})
	assert.Equal(t, []string{"value"}, items["required"])
}
