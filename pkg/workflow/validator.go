package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	verrors "github.com/dshills/vizier/pkg/errors"
)

// Validate checks a command against its declaration: the package and
// command must be known, every required top-level argument present, every
// submitted key declared, and records of list arguments checked against
// their child declarations. Failures are INVALID_ARGUMENT validation errors.
func (r *CommandRepository) Validate(spec ModuleSpecification) error {
	pkg := r.Package(spec.Package)
	if pkg == nil {
		return verrors.NewValidation(verrors.CodeInvalidArgument, "unknown package '%s'", spec.Package)
	}
	cmd := pkg.Commands[spec.Command]
	if cmd == nil {
		return verrors.NewValidation(verrors.CodeInvalidArgument, "unknown command '%s' in package '%s'", spec.Command, spec.Package)
	}

	schema, err := r.compiledSchema(spec.String(), cmd)
	if err != nil {
		return fmt.Errorf("failed to compile argument schema for %s: %w", spec, err)
	}

	args := spec.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return verrors.WrapValidation(verrors.CodeInvalidArgument, "arguments are not a valid document", err)
	}

	if !result.Valid() {
		// Collect all validation errors
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return verrors.NewValidation(verrors.CodeInvalidArgument,
			"invalid arguments for %s: %s", spec, strings.Join(msgs, "; "))
	}
	return nil
}

// Schema returns the JSON schema document generated for a command's arguments.
func (c *CommandSpec) Schema() map[string]interface{} {
	return objectSchema(c.Arguments, "")
}

func (r *CommandRepository) compiledSchema(key string, cmd *CommandSpec) (*gojsonschema.Schema, error) {
	if cached, ok := r.schemas.Load(key); ok {
		return cached.(*gojsonschema.Schema), nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(cmd.Schema()))
	if err != nil {
		return nil, err
	}
	r.schemas.Store(key, schema)
	return schema, nil
}

func objectSchema(args []ArgumentSpec, parent string) map[string]interface{} {
	properties := make(map[string]interface{})
	var required []string
	for _, a := range args {
		if a.Parent != parent {
			continue
		}
		properties[a.ID] = typeSchema(a, args)
		if a.Required {
			required = append(required, a.ID)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	// draft-04 forbids an empty required list
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func typeSchema(a ArgumentSpec, all []ArgumentSpec) map[string]interface{} {
	switch a.Type {
	case TypeInt:
		return map[string]interface{}{"type": "integer"}
	case TypeRow:
		return map[string]interface{}{"type": "integer", "minimum": 0}
	case TypeDecimal:
		return map[string]interface{}{"type": "number"}
	case TypeBool:
		return map[string]interface{}{"type": "boolean"}
	case TypeColumn:
		return map[string]interface{}{
			"oneOf": []interface{}{
				map[string]interface{}{"type": "string", "minLength": 1},
				map[string]interface{}{"type": "integer", "minimum": 0},
			},
		}
	case TypeDataset, TypeFileID:
		return map[string]interface{}{"type": "string", "minLength": 1}
	case TypeList:
		return map[string]interface{}{"type": "array", "items": objectSchema(all, a.ID)}
	default:
		return map[string]interface{}{"type": "string"}
	}
}
