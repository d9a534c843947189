package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/workflow"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputYAML  = "yaml"
	outputJSON  = "json"
)

// NewWorkflowCommand creates the workflow inspection command
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Inspect workflow versions",
	}

	cmd.AddCommand(newWorkflowShowCommand())
	cmd.AddCommand(newWorkflowHistoryCommand())

	return cmd
}

func newWorkflowShowCommand() *cobra.Command {
	var (
		branch  string
		version int64
		output  string
	)

	cmd := &cobra.Command{
		Use:   "show <viztrail>",
		Short: "Show the modules of a workflow version",
		Long: `Show the modules of a workflow version with their outputs and dataset bindings.

Examples:
  vizier workflow show people
  vizier workflow show people --branch experiment --version 4
  vizier workflow show people -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, branch)
				if err != nil {
					return err
				}
				wf, err := app.Repo.GetWorkflow(ctx, vt.ID, b.ID, types.Version(version))
				if err != nil {
					return err
				}
				if wf == nil {
					if _, ok := b.Head(); !ok {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Branch '%s' has no workflow versions yet.\n", displayName(b.Name()))
						return nil
					}
					return fmt.Errorf("workflow version %d not found on branch %s", version, b.ID)
				}
				return writeWorkflow(cmd.OutOrStdout(), wf, output)
			})
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch id or name (default: the default branch)")
	cmd.Flags().Int64Var(&version, "version", int64(repository.HEAD), "Workflow version (default: head)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, yaml or json")

	return cmd
}

func newWorkflowHistoryCommand() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "history <viztrail>",
		Short: "List the workflow versions of a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, branch)
				if err != nil {
					return err
				}
				versions, err := app.Repo.ListWorkflowVersions(ctx, vt.ID, b.ID)
				if err != nil {
					return err
				}
				if len(versions) == 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Branch '%s' has no workflow versions yet.\n", displayName(b.Name()))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "VERSION\tACTION\tCOMMAND\tMODULES\tSTATUS\tCREATED")
				for _, v := range versions {
					wf, err := app.Repo.GetWorkflow(ctx, vt.ID, b.ID, v.Version)
					if err != nil {
						return err
					}
					if wf == nil {
						_, _ = fmt.Fprintf(w, "%d\t-\t-\t-\tmissing\t%s\n", v.Version, since(v.CreatedAt))
						continue
					}
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
						wf.Version, orDash(string(wf.Action)), orDash(wf.Command), len(wf.Modules), workflowStatus(wf), since(v.CreatedAt))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch id or name (default: the default branch)")
	return cmd
}

func writeWorkflow(out io.Writer, wf *workflow.Workflow, format string) error {
	switch strings.ToLower(format) {
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(wf); err != nil {
			return fmt.Errorf("failed to encode workflow: %w", err)
		}
		return enc.Close()
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(wf)
	case outputTable, "":
		_, _ = fmt.Fprintf(out, "Version %d (%s, %s)\n\n", wf.Version, plural(len(wf.Modules), "module"), workflowStatus(wf))
		return printModules(out, wf)
	default:
		return fmt.Errorf("unknown output format %q (use table, yaml or json)", format)
	}
}

// printModules renders one row per module with its bindings and the first
// line of its output.
func printModules(out io.Writer, wf *workflow.Workflow) error {
	if wf.IsEmpty() {
		_, _ = fmt.Fprintln(out, "No modules.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tCOMMAND\tSTATUS\tDATASETS\tOUTPUT")
	for i, m := range wf.Modules {
		status, output := "ok", firstLine(m.Stdout)
		if m.HasError() {
			status, output = "error", firstLine(m.Stderr)
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			i, m.ID, m.Command, status, bindingNames(m.Datasets), output)
	}
	return w.Flush()
}

func workflowStatus(wf *workflow.Workflow) string {
	if wf.HasError() {
		return "error"
	}
	return "ok"
}

func bindingNames(bindings map[string]types.DatasetID) string {
	if len(bindings) == 0 {
		return "-"
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(lines[0], "\n")
	return line
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
