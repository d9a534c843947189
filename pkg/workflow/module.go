package workflow

import (
	"fmt"
	"strings"

	"github.com/dshills/vizier/pkg/domain/types"
)

// ModuleSpecification is the command of a module: a package tag selecting
// the executor, an operation identifier within that package and the
// argument map. It never changes once the module is persisted.
type ModuleSpecification struct {
	Package   string                 `json:"package" yaml:"package"`
	Command   string                 `json:"command" yaml:"command"`
	Arguments map[string]interface{} `json:"arguments" yaml:"arguments"`
}

// String returns "package.command".
func (s ModuleSpecification) String() string {
	return s.Package + "." + s.Command
}

// Copy returns a deep copy of the specification.
func (s ModuleSpecification) Copy() ModuleSpecification {
	return ModuleSpecification{
		Package:   s.Package,
		Command:   s.Command,
		Arguments: copyArguments(s.Arguments),
	}
}

// Has reports whether the argument is present.
func (s ModuleSpecification) Has(key string) bool {
	_, ok := s.Arguments[key]
	return ok
}

// StringArg returns a string argument.
func (s ModuleSpecification) StringArg(key string) (string, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return "", fmt.Errorf("missing argument %s", key)
	}
	return validateType[string](v, key)
}

// IntArg returns an integer argument.
func (s ModuleSpecification) IntArg(key string) (int, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %s", key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("argument: type mismatch for %s: expected integer, got %T", key, v)
	}
	return n, nil
}

// FloatArg returns a decimal argument, or def when absent.
func (s ModuleSpecification) FloatArg(key string, def float64) (float64, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("argument: type mismatch for %s: expected decimal, got %T", key, v)
	}
	return f, nil
}

// BoolArg returns a boolean argument, or def when absent.
func (s ModuleSpecification) BoolArg(key string, def bool) (bool, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return def, nil
	}
	return validateType[bool](v, key)
}

// ListArg returns a list-of-records argument.
func (s ModuleSpecification) ListArg(key string) ([]map[string]interface{}, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []map[string]interface{}:
		return list, nil
	case []interface{}:
		out := make([]map[string]interface{}, len(list))
		for i, item := range list {
			rec, err := validateType[map[string]interface{}](item, fmt.Sprintf("%s[%d]", key, i))
			if err != nil {
				return nil, err
			}
			out[i] = rec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument: type mismatch for %s: expected list, got %T", key, v)
	}
}

// ColumnRef is a column argument: a name, or a zero-based position when
// Name is empty.
type ColumnRef struct {
	Name     string
	Position int
}

// String returns the name or the position.
func (c ColumnRef) String() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%d", c.Position)
}

// ColumnArg returns a column argument. Strings are names; numbers are positions.
func (s ModuleSpecification) ColumnArg(key string) (ColumnRef, error) {
	v, ok := s.Arguments[key]
	if !ok {
		return ColumnRef{}, fmt.Errorf("missing argument %s", key)
	}
	if str, ok := v.(string); ok {
		return ColumnRef{Name: str, Position: -1}, nil
	}
	if n, ok := toInt(v); ok {
		return ColumnRef{Position: n}, nil
	}
	return ColumnRef{}, fmt.Errorf("argument: type mismatch for %s: expected column, got %T", key, v)
}

// Module is one step of a workflow: a command plus its captured outputs
// and the dataset bindings that hold after it ran.
type Module struct {
	ID       types.ModuleID             `json:"id" yaml:"id"`
	Command  ModuleSpecification        `json:"command" yaml:"command"`
	Datasets map[string]types.DatasetID `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	Stdout   []string                   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   []string                   `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// NewModule creates a pending module with no outputs.
func NewModule(id types.ModuleID, command ModuleSpecification) *Module {
	return &Module{
		ID:       id,
		Command:  command,
		Datasets: make(map[string]types.DatasetID),
	}
}

// HasError reports whether the module produced error output.
func (m *Module) HasError() bool {
	return len(m.Stderr) > 0
}

// Copy returns a deep copy including outputs.
func (m *Module) Copy() *Module {
	cp := &Module{
		ID:       m.ID,
		Command:  m.Command.Copy(),
		Datasets: CopyBindings(m.Datasets),
	}
	if len(m.Stdout) > 0 {
		cp.Stdout = append([]string(nil), m.Stdout...)
	}
	if len(m.Stderr) > 0 {
		cp.Stderr = append([]string(nil), m.Stderr...)
	}
	return cp
}

// Reset returns a copy with the same identity and command but no outputs
// and no dataset bindings.
func (m *Module) Reset() *Module {
	return NewModule(m.ID, m.Command.Copy())
}

// CopyBindings returns a copy of a dataset binding map. The result is never nil.
func CopyBindings(bindings map[string]types.DatasetID) map[string]types.DatasetID {
	out := make(map[string]types.DatasetID, len(bindings))
	for k, v := range bindings {
		out[k] = v
	}
	return out
}

func copyArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyArguments(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(val))
		for i, item := range val {
			out[i] = copyArguments(item)
		}
		return out
	default:
		return v
	}
}

// LookupBinding resolves a dataset name against a binding map. Names are
// matched case-insensitively; the stored spelling of the key is returned.
func LookupBinding(bindings map[string]types.DatasetID, name string) (string, types.DatasetID, bool) {
	if id, ok := bindings[name]; ok {
		return name, id, true
	}
	for key, id := range bindings {
		if strings.EqualFold(key, name) {
			return key, id, true
		}
	}
	return "", "", false
}
