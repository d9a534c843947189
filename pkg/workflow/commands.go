package workflow

import (
	"sort"
	"sync"
)

// Package identifiers.
const (
	PackageVizual = "vizual"
	PackageScript = "script"
	PackageLens   = "mimir"
)

// Vizual command identifiers.
const (
	VizualLoad          = "load"
	VizualInsertColumn  = "insert_column"
	VizualDeleteColumn  = "delete_column"
	VizualMoveColumn    = "move_column"
	VizualRenameColumn  = "rename_column"
	VizualInsertRow     = "insert_row"
	VizualDeleteRow     = "delete_row"
	VizualMoveRow       = "move_row"
	VizualUpdateCell    = "update_cell"
	VizualDropDataset   = "drop_dataset"
	VizualRenameDataset = "rename_dataset"
)

// Script command identifiers.
const (
	ScriptCode = "code"
)

// Lens command identifiers.
const (
	LensMissingValue  = "missing_value"
	LensKeyRepair     = "key_repair"
	LensTypeInference = "type_inference"
	LensDomain        = "domain"
)

// Argument identifiers shared by several commands.
const (
	ArgDataset  = "dataset"
	ArgName     = "name"
	ArgFile     = "file"
	ArgColumn   = "column"
	ArgRow      = "row"
	ArgPosition = "position"
	ArgValue    = "value"
	ArgSource   = "source"
	ArgValues   = "values"
	ArgKeep     = "keep_annotations"
	ArgResult   = "result"
)

// DataType is the declared type of a command argument.
type DataType string

const (
	TypeString  DataType = "string"
	TypeInt     DataType = "int"
	TypeDecimal DataType = "decimal"
	TypeBool    DataType = "bool"
	TypeColumn  DataType = "column"  // column name or zero-based position
	TypeRow     DataType = "row"     // zero-based row position
	TypeDataset DataType = "dataset" // dataset name in the binding context
	TypeFileID  DataType = "fileid"
	TypeCode    DataType = "code"
	TypeList    DataType = "list" // list of records; children name it as parent
)

// ArgumentSpec declares one argument. Arguments with a Parent are fields
// of the records of the named list argument.
type ArgumentSpec struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Type     DataType `json:"type" yaml:"type"`
	Required bool     `json:"required" yaml:"required"`
	Parent   string   `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// CommandSpec declares an operation of a package.
type CommandSpec struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments []ArgumentSpec `json:"arguments" yaml:"arguments"`
}

// ReplayPolicy classifies how the engine treats modules of a package that
// sit before the first modified module.
type ReplayPolicy int

const (
	// ReplaySkip keeps the recorded outputs. Valid for packages whose
	// output depends only on their declared inputs.
	ReplaySkip ReplayPolicy = iota
	// ReplayRebuild re-runs the module against a volatile store to rebuild
	// interpreter state needed by later modules, then restores its
	// recorded dataset bindings.
	ReplayRebuild
)

// String returns the policy name.
func (p ReplayPolicy) String() string {
	switch p {
	case ReplaySkip:
		return "skip"
	case ReplayRebuild:
		return "rebuild"
	default:
		return "unknown"
	}
}

// PackageSpec declares a package of commands.
type PackageSpec struct {
	ID       string                  `json:"id" yaml:"id"`
	Name     string                  `json:"name" yaml:"name"`
	Replay   ReplayPolicy            `json:"replay" yaml:"replay"`
	Commands map[string]*CommandSpec `json:"commands" yaml:"commands"`
}

// CommandRepository holds the declared packages of a viztrail environment.
type CommandRepository struct {
	packages map[string]*PackageSpec
	schemas  sync.Map // compiled argument schemas keyed by "package.command"
}

// NewCommandRepository creates a repository from package declarations.
func NewCommandRepository(packages ...*PackageSpec) *CommandRepository {
	r := &CommandRepository{packages: make(map[string]*PackageSpec)}
	for _, p := range packages {
		r.packages[p.ID] = p
	}
	return r
}

// Package returns a package declaration, or nil.
func (r *CommandRepository) Package(id string) *PackageSpec {
	return r.packages[id]
}

// Command returns a command declaration, or nil.
func (r *CommandRepository) Command(pkg, cmd string) *CommandSpec {
	p := r.packages[pkg]
	if p == nil {
		return nil
	}
	return p.Commands[cmd]
}

// Packages returns the package identifiers in sorted order.
func (r *CommandRepository) Packages() []string {
	ids := make([]string, 0, len(r.packages))
	for id := range r.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReplayPolicy returns the replay classification of a package. Unknown
// packages are rebuilt, which can only cost time, never correctness.
func (r *CommandRepository) ReplayPolicy(pkg string) ReplayPolicy {
	if p := r.packages[pkg]; p != nil {
		return p.Replay
	}
	return ReplayRebuild
}

func commandMap(cmds ...*CommandSpec) map[string]*CommandSpec {
	out := make(map[string]*CommandSpec, len(cmds))
	for _, c := range cmds {
		out[c.ID] = c
	}
	return out
}

func arg(id string, t DataType, required bool) ArgumentSpec {
	return ArgumentSpec{ID: id, Name: id, Type: t, Required: required}
}

func child(parent, id string, t DataType, required bool) ArgumentSpec {
	return ArgumentSpec{ID: id, Name: id, Type: t, Required: required, Parent: parent}
}

// VizualPackage declares the structural reshape operations.
func VizualPackage() *PackageSpec {
	return &PackageSpec{
		ID:     PackageVizual,
		Name:   "VizUAL",
		Replay: ReplaySkip,
		Commands: commandMap(
			&CommandSpec{ID: VizualLoad, Name: "Load Dataset", Arguments: []ArgumentSpec{
				arg(ArgName, TypeString, true), arg(ArgFile, TypeFileID, true)}},
			&CommandSpec{ID: VizualInsertColumn, Name: "Insert Column", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgName, TypeString, true), arg(ArgPosition, TypeInt, false)}},
			&CommandSpec{ID: VizualDeleteColumn, Name: "Delete Column", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true)}},
			&CommandSpec{ID: VizualMoveColumn, Name: "Move Column", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true), arg(ArgPosition, TypeInt, true)}},
			&CommandSpec{ID: VizualRenameColumn, Name: "Rename Column", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true), arg(ArgName, TypeString, true)}},
			&CommandSpec{ID: VizualInsertRow, Name: "Insert Row", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgPosition, TypeInt, false)}},
			&CommandSpec{ID: VizualDeleteRow, Name: "Delete Row", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgRow, TypeRow, true)}},
			&CommandSpec{ID: VizualMoveRow, Name: "Move Row", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgRow, TypeRow, true), arg(ArgPosition, TypeInt, true)}},
			&CommandSpec{ID: VizualUpdateCell, Name: "Update Cell", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true), arg(ArgRow, TypeRow, true),
				arg(ArgValue, TypeString, true), arg(ArgKeep, TypeBool, false)}},
			&CommandSpec{ID: VizualDropDataset, Name: "Drop Dataset", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true)}},
			&CommandSpec{ID: VizualRenameDataset, Name: "Rename Dataset", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgName, TypeString, true)}},
		),
	}
}

// ScriptPackage declares the scripted-code command.
func ScriptPackage() *PackageSpec {
	return &PackageSpec{
		ID:     PackageScript,
		Name:   "Script",
		Replay: ReplayRebuild,
		Commands: commandMap(
			&CommandSpec{ID: ScriptCode, Name: "Script Cell", Arguments: []ArgumentSpec{
				arg(ArgSource, TypeCode, true)}},
		),
	}
}

// LensPackage declares the data-cleaning lenses.
func LensPackage() *PackageSpec {
	return &PackageSpec{
		ID:     PackageLens,
		Name:   "Mimir Lenses",
		Replay: ReplaySkip,
		Commands: commandMap(
			&CommandSpec{ID: LensMissingValue, Name: "Missing Value", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true)}},
			&CommandSpec{ID: LensKeyRepair, Name: "Key Repair", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true)}},
			&CommandSpec{ID: LensTypeInference, Name: "Type Inference", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg("percent_conform", TypeDecimal, false)}},
			&CommandSpec{ID: LensDomain, Name: "Domain", Arguments: []ArgumentSpec{
				arg(ArgDataset, TypeDataset, true), arg(ArgColumn, TypeColumn, true),
				arg(ArgValues, TypeList, true), child(ArgValues, ArgValue, TypeString, true)}},
		),
	}
}

// DefaultCommandRepository declares every package the engine can execute.
func DefaultCommandRepository() *CommandRepository {
	return NewCommandRepository(VizualPackage(), ScriptPackage(), LensPackage())
}
