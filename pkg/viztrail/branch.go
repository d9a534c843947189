package viztrail

import (
	"fmt"
	"time"

	"github.com/dshills/vizier/pkg/domain/types"
)

// PropertyName is the branch and viztrail property holding the display name.
const PropertyName = "name"

// DefaultBranchName names the branch created with every viztrail.
const DefaultBranchName = "default"

// Provenance records where a branch was forked from. It is nil for the
// default branch.
type Provenance struct {
	SourceBranch   types.BranchID `json:"source_branch" yaml:"source_branch"`
	SourceVersion  types.Version  `json:"source_version" yaml:"source_version"`
	SourceModuleID types.ModuleID `json:"source_module_id" yaml:"source_module_id"`
}

// WorkflowVersion is an entry of a branch history.
type WorkflowVersion struct {
	Version   types.Version `json:"version" yaml:"version"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
}

// Branch is a named, append-only history of workflow versions. The last
// entry of Versions is the head.
type Branch struct {
	ID         types.BranchID    `json:"id" yaml:"id"`
	Properties map[string]string `json:"properties" yaml:"properties"`
	Provenance *Provenance       `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	Versions   []WorkflowVersion `json:"versions" yaml:"versions"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
}

// NewBranch creates a branch with an empty history.
func NewBranch(id types.BranchID, properties map[string]string, provenance *Provenance) *Branch {
	return &Branch{
		ID:         id,
		Properties: copyProperties(properties),
		Provenance: provenance,
		Versions:   []WorkflowVersion{},
		CreatedAt:  time.Now().UTC(),
	}
}

// Name returns the display name of the branch.
func (b *Branch) Name() string {
	return b.Properties[PropertyName]
}

// Head returns the head version. ok is false for a branch with no history.
func (b *Branch) Head() (types.Version, bool) {
	if len(b.Versions) == 0 {
		return 0, false
	}
	return b.Versions[len(b.Versions)-1].Version, true
}

// HasVersion reports whether v is part of the branch history.
func (b *Branch) HasVersion(v types.Version) bool {
	for _, wv := range b.Versions {
		if wv.Version == v {
			return true
		}
	}
	return false
}

// AppendVersion adds a new head. Versions must be strictly increasing.
func (b *Branch) AppendVersion(v types.Version, createdAt time.Time) error {
	if head, ok := b.Head(); ok && v <= head {
		return fmt.Errorf("branch %s: version %d is not greater than head %d", b.ID, v, head)
	}
	b.Versions = append(b.Versions, WorkflowVersion{Version: v, CreatedAt: createdAt})
	return nil
}

// UpdateProperties merges properties into the branch. An empty value
// removes the key.
func (b *Branch) UpdateProperties(properties map[string]string) {
	if b.Properties == nil {
		b.Properties = make(map[string]string)
	}
	mergeProperties(b.Properties, properties)
}

// Copy returns a deep copy.
func (b *Branch) Copy() *Branch {
	cp := &Branch{
		ID:         b.ID,
		Properties: copyProperties(b.Properties),
		Versions:   append([]WorkflowVersion{}, b.Versions...),
		CreatedAt:  b.CreatedAt,
	}
	if b.Provenance != nil {
		p := *b.Provenance
		cp.Provenance = &p
	}
	return cp
}

func copyProperties(properties map[string]string) map[string]string {
	out := make(map[string]string, len(properties))
	for k, v := range properties {
		out[k] = v
	}
	return out
}

func mergeProperties(dst, src map[string]string) {
	for k, v := range src {
		if v == "" {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}
