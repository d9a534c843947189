package viztrail

import (
	"sort"
	"time"

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
)

// Viztrail is the root aggregate: branches keyed by identifier, the
// execution environment binding and the two identifier sequences.
type Viztrail struct {
	ID             types.ViztrailID           `json:"id" yaml:"id"`
	EnvID          string                     `json:"env_id" yaml:"env_id"`
	Properties     map[string]string          `json:"properties" yaml:"properties"`
	Branches       map[types.BranchID]*Branch `json:"branches" yaml:"branches"`
	DefaultBranch  types.BranchID             `json:"default_branch" yaml:"default_branch"`
	CreatedAt      time.Time                  `json:"created_at" yaml:"created_at"`
	LastModifiedAt time.Time                  `json:"last_modified_at" yaml:"last_modified_at"`
	VersionCounter Sequence                   `json:"version_counter" yaml:"version_counter"`
	ModuleCounter  Sequence                   `json:"module_counter" yaml:"module_counter"`
}

// New creates a viztrail with a default branch.
func New(envID string, properties map[string]string) *Viztrail {
	now := time.Now().UTC()
	def := NewBranch(types.NewBranchID(), map[string]string{PropertyName: DefaultBranchName}, nil)
	return &Viztrail{
		ID:             types.NewViztrailID(),
		EnvID:          envID,
		Properties:     copyProperties(properties),
		Branches:       map[types.BranchID]*Branch{def.ID: def},
		DefaultBranch:  def.ID,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
}

// Name returns the display name of the viztrail.
func (v *Viztrail) Name() string {
	return v.Properties[PropertyName]
}

// NextModuleID issues a module identifier.
func (v *Viztrail) NextModuleID() types.ModuleID {
	return types.ModuleID(v.ModuleCounter.Next())
}

// NextVersion issues a workflow version number.
func (v *Viztrail) NextVersion() types.Version {
	return types.Version(v.VersionCounter.Next())
}

// Touch records a modification.
func (v *Viztrail) Touch() {
	v.LastModifiedAt = time.Now().UTC()
}

// Branch returns the branch with the given id, or nil.
func (v *Viztrail) Branch(id types.BranchID) *Branch {
	return v.Branches[id]
}

// AddBranch registers a branch.
func (v *Viztrail) AddBranch(b *Branch) {
	if v.Branches == nil {
		v.Branches = make(map[types.BranchID]*Branch)
	}
	v.Branches[b.ID] = b
	v.Touch()
}

// RemoveBranch deletes a branch. The default branch cannot be removed.
// Returns false if the branch does not exist.
func (v *Viztrail) RemoveBranch(id types.BranchID) (bool, error) {
	if id == v.DefaultBranch {
		return false, verrors.NewValidation(verrors.CodeDefaultBranch, "cannot delete default branch")
	}
	if _, ok := v.Branches[id]; !ok {
		return false, nil
	}
	delete(v.Branches, id)
	v.Touch()
	return true, nil
}

// BranchList returns the branches ordered by creation time.
func (v *Viztrail) BranchList() []*Branch {
	out := make([]*Branch, 0, len(v.Branches))
	for _, b := range v.Branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateProperties merges properties into the viztrail. An empty value
// removes the key.
func (v *Viztrail) UpdateProperties(properties map[string]string) {
	if v.Properties == nil {
		v.Properties = make(map[string]string)
	}
	mergeProperties(v.Properties, properties)
	v.Touch()
}

// Copy returns a deep copy.
func (v *Viztrail) Copy() *Viztrail {
	cp := *v
	cp.Properties = copyProperties(v.Properties)
	cp.Branches = make(map[types.BranchID]*Branch, len(v.Branches))
	for id, b := range v.Branches {
		cp.Branches[id] = b.Copy()
	}
	return &cp
}
