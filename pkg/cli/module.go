package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/workflow"
)

// moduleFlags are the flags shared by the module edit commands.
type moduleFlags struct {
	branch     string
	version    int64
	specFile   string
	sourceFile string
}

func (f *moduleFlags) register(cmd *cobra.Command, withCommand bool) {
	cmd.Flags().StringVarP(&f.branch, "branch", "b", "", "Branch id or name (default: the default branch)")
	cmd.Flags().Int64Var(&f.version, "version", int64(repository.HEAD), "Base workflow version (default: head)")
	if withCommand {
		cmd.Flags().StringVarP(&f.specFile, "file", "f", "", "Read the module command from a YAML or JSON file")
		cmd.Flags().StringVar(&f.sourceFile, "source-file", "", "Read the source argument of a script command from a file")
	}
}

// NewModuleCommand creates the module editing command
func NewModuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Edit the modules of a workflow",
		Long: `Every module edit creates a new workflow version at the head of the branch.
Modules before the edit keep their recorded outputs; the edited module and
everything after it are executed again.

A module command is written as <package>.<command> followed by key=value
arguments. Values are converted to the declared argument type.

Packages:
  vizual  load, insert_column, delete_column, move_column, rename_column,
          insert_row, delete_row, move_row, update_cell, drop_dataset,
          rename_dataset
  script  code
  mimir   missing_value, key_repair, type_inference, domain`,
	}

	cmd.AddCommand(newModuleAppendCommand())
	cmd.AddCommand(newModuleReplaceCommand())
	cmd.AddCommand(newModuleDeleteCommand())

	return cmd
}

func newModuleAppendCommand() *cobra.Command {
	var (
		flags  moduleFlags
		before string
	)

	cmd := &cobra.Command{
		Use:   "append <viztrail> [<package>.<command> [key=value...]]",
		Short: "Append a module, or insert it before another module",
		Long: `Append a module to a workflow, or insert it before another module.

Examples:
  vizier module append people vizual.load name=people file=<file-id>
  vizier module append people vizual.update_cell dataset=people column=Age row=0 value=31
  vizier module append people script.code --source-file cleanup.expr
  vizier module append people -f module.yaml --before 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			beforeID := types.NoModule
			if before != "" {
				id, err := parseModuleID(before)
				if err != nil {
					return err
				}
				beforeID = id
			}

			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				spec, err := buildModuleSpec(app.Repo.CommandsFor(vt.EnvID), args[1:], flags.specFile, flags.sourceFile)
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, flags.branch)
				if err != nil {
					return err
				}

				res, err := app.Repo.AppendModule(ctx, vt.ID, b.ID, types.Version(flags.version), spec, beforeID)
				if err != nil {
					return err
				}
				if res == nil {
					return fmt.Errorf("workflow version %d not found on branch %s", flags.version, b.ID)
				}
				printEditResult(cmd, res)
				return nil
			})
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&before, "before", "", "Insert before this module id instead of appending")

	return cmd
}

func newModuleReplaceCommand() *cobra.Command {
	var flags moduleFlags

	cmd := &cobra.Command{
		Use:   "replace <viztrail> <module-id> [<package>.<command> [key=value...]]",
		Short: "Replace the command of a module",
		Long: `Replace the command of a module. The replacement gets a new module id.

Examples:
  vizier module replace people 1 vizual.update_cell dataset=people column=Age row=0 value=30`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID, err := parseModuleID(args[1])
			if err != nil {
				return err
			}

			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				spec, err := buildModuleSpec(app.Repo.CommandsFor(vt.EnvID), args[2:], flags.specFile, flags.sourceFile)
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, flags.branch)
				if err != nil {
					return err
				}

				res, err := app.Repo.ReplaceModule(ctx, vt.ID, b.ID, types.Version(flags.version), moduleID, spec)
				if err != nil {
					return err
				}
				if res == nil {
					return fmt.Errorf("module %d not found in workflow", moduleID)
				}
				printEditResult(cmd, res)
				return nil
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}

func newModuleDeleteCommand() *cobra.Command {
	var flags moduleFlags

	cmd := &cobra.Command{
		Use:   "delete <viztrail> <module-id>",
		Short: "Delete a module and re-execute the modules after it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID, err := parseModuleID(args[1])
			if err != nil {
				return err
			}

			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, flags.branch)
				if err != nil {
					return err
				}

				res, err := app.Repo.DeleteModule(ctx, vt.ID, b.ID, types.Version(flags.version), moduleID)
				if err != nil {
					return err
				}
				if res == nil {
					return fmt.Errorf("module %d not found in workflow", moduleID)
				}
				printEditResult(cmd, res)
				return nil
			})
		},
	}

	flags.register(cmd, false)
	return cmd
}

func printEditResult(cmd *cobra.Command, res *repository.EditResult) {
	out := cmd.OutOrStdout()
	wf := res.Workflow
	_, _ = fmt.Fprintf(out, "✓ Version %d created (%s %s)\n", wf.Version, wf.Action, wf.Command)
	if res.FirstModule == types.NoModule {
		_, _ = fmt.Fprintln(out, "  No module executed")
	} else {
		_, _ = fmt.Fprintf(out, "  Executed from module %d\n", res.FirstModule)
	}
	if wf.HasError() {
		_, _ = fmt.Fprintln(out, "  ✗ Workflow has errors; later modules were not executed")
	}
	_, _ = fmt.Fprintln(out)
	_ = printModules(out, wf)
}

// buildModuleSpec assembles a module command from a file or from a
// "<package>.<command>" reference and key=value arguments.
func buildModuleSpec(commands *workflow.CommandRepository, args []string, specFile, sourceFile string) (workflow.ModuleSpecification, error) {
	var spec workflow.ModuleSpecification

	if specFile != "" {
		if len(args) > 0 {
			return spec, fmt.Errorf("cannot combine --file with a command argument")
		}
		data, err := os.ReadFile(specFile)
		if err != nil {
			return spec, fmt.Errorf("failed to read module file: %w", err)
		}
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return spec, fmt.Errorf("failed to parse module file: %w", err)
		}
		if spec.Arguments == nil {
			spec.Arguments = make(map[string]interface{})
		}
	} else {
		if len(args) == 0 {
			return spec, fmt.Errorf("module command required: <package>.<command> [key=value...] or --file")
		}
		pkg, name, ok := strings.Cut(args[0], ".")
		if !ok || pkg == "" || name == "" {
			return spec, fmt.Errorf("invalid command %q: expected <package>.<command>", args[0])
		}
		declared := commands.Command(pkg, name)
		if declared == nil {
			return spec, fmt.Errorf("unknown command %s.%s", pkg, name)
		}

		spec = workflow.ModuleSpecification{Package: pkg, Command: name, Arguments: make(map[string]interface{})}
		for _, pair := range args[1:] {
			key, raw, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return spec, fmt.Errorf("invalid argument %q: expected key=value", pair)
			}
			arg, found := lookupArgument(declared, key)
			if !found {
				return spec, fmt.Errorf("unknown argument %q for %s", key, spec)
			}
			value, err := coerceArgument(arg, raw)
			if err != nil {
				return spec, err
			}
			spec.Arguments[key] = value
		}
	}

	if sourceFile != "" {
		data, err := os.ReadFile(sourceFile)
		if err != nil {
			return spec, fmt.Errorf("failed to read source file: %w", err)
		}
		spec.Arguments[workflow.ArgSource] = string(data)
	}
	return spec, nil
}

func lookupArgument(cmd *workflow.CommandSpec, id string) (workflow.ArgumentSpec, bool) {
	for _, a := range cmd.Arguments {
		if a.Parent == "" && a.ID == id {
			return a, true
		}
	}
	return workflow.ArgumentSpec{}, false
}

// coerceArgument converts a command-line value to the declared type.
// Columns accept a name or a zero-based position. Lists are YAML flow
// sequences, e.g. values=[{value: a}, {value: b}].
func coerceArgument(arg workflow.ArgumentSpec, raw string) (interface{}, error) {
	switch arg.Type {
	case workflow.TypeInt, workflow.TypeRow:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %s: expected integer, got %q", arg.ID, raw)
		}
		return n, nil
	case workflow.TypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: expected number, got %q", arg.ID, raw)
		}
		return f, nil
	case workflow.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %s: expected true or false, got %q", arg.ID, raw)
		}
		return b, nil
	case workflow.TypeColumn:
		if n, err := strconv.Atoi(raw); err == nil {
			return n, nil
		}
		return raw, nil
	case workflow.TypeList:
		var list []interface{}
		if err := yaml.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("argument %s: expected a list: %w", arg.ID, err)
		}
		return list, nil
	default:
		return raw, nil
	}
}
