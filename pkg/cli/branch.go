package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/viztrail"
)

// NewBranchCommand creates the branch management command
func NewBranchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Manage viztrail branches",
		Long: `Branches fork a workflow at a module and evolve independently. Forking copies
the module prefix with its recorded outputs; nothing is re-executed.`,
	}

	cmd.AddCommand(newBranchCreateCommand())
	cmd.AddCommand(newBranchListCommand())
	cmd.AddCommand(newBranchUpdateCommand())
	cmd.AddCommand(newBranchDeleteCommand())

	return cmd
}

func newBranchCreateCommand() *cobra.Command {
	var (
		source     string
		version    int64
		module     string
		properties []string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "create <viztrail> <name>",
		Short: "Fork a branch from a workflow version",
		Long: `Create a branch holding the modules of a source workflow up to and including
a module. Without --module the whole workflow is copied.

Examples:
  vizier branch create people experiment
  vizier branch create people experiment --from default --version 3 --module 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(properties)
			if err != nil {
				return err
			}
			props[viztrail.PropertyName] = args[1]

			moduleID := types.NoModule
			if module != "" {
				if moduleID, err = parseModuleID(module); err != nil {
					return err
				}
			}

			return withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				vt, err := resolveViztrail(ctx, app.Repo, args[0])
				if err != nil {
					return err
				}
				src, err := resolveBranch(vt, source)
				if err != nil {
					return err
				}

				res, err := app.Repo.CreateBranch(ctx, vt.ID, src.ID, types.Version(version), moduleID, props)
				if err != nil {
					return err
				}
				if res == nil {
					return fmt.Errorf("source workflow not found")
				}
				if quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Branch.ID)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Branch '%s' created from '%s'\n", args[1], displayName(src.Name()))
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  ID:      %s\n", res.Branch.ID)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Version: %d (%s)\n", res.Workflow.Version, plural(len(res.Workflow.Modules), "module"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "from", "", "Source branch id or name (default: the default branch)")
	cmd.Flags().Int64Var(&version, "version", int64(repository.HEAD), "Source workflow version (default: head)")
	cmd.Flags().StringVar(&module, "module", "", "Last module to copy (default: all modules)")
	cmd.Flags().StringArrayVarP(&properties, "property", "p", nil, "Property key=value (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the branch identifier")

	return cmd
}

func newBranchListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <viztrail>",
		Short: "List the branches of a viztrail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				vt, err := resolveViztrail(cmd.Context(), app.Repo, args[0])
				if err != nil {
					return err
				}
				return printBranches(cmd.OutOrStdout(), vt)
			})
		},
	}
}

func newBranchUpdateCommand() *cobra.Command {
	var properties []string

	cmd := &cobra.Command{
		Use:   "update <viztrail> <branch>",
		Short: "Update branch properties",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(properties)
			if err != nil {
				return err
			}
			if len(props) == 0 {
				return fmt.Errorf("at least one --property is required")
			}

			return withApp(cmd, func(app *App) error {
				vt, err := resolveViztrail(cmd.Context(), app.Repo, args[0])
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, args[1])
				if err != nil {
					return err
				}
				if _, err := app.Repo.UpdateBranch(cmd.Context(), vt.ID, b.ID, props); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Branch %s updated\n", b.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&properties, "property", "p", nil, "Property key=value (repeatable)")
	return cmd
}

func newBranchDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <viztrail> <branch>",
		Short: "Delete a branch and its workflow versions",
		Long: `Delete a branch and its workflow versions. The default branch cannot be
deleted. Datasets referenced by the branch are kept.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				vt, err := resolveViztrail(cmd.Context(), app.Repo, args[0])
				if err != nil {
					return err
				}
				b, err := resolveBranch(vt, args[1])
				if err != nil {
					return err
				}
				deleted, err := app.Repo.DeleteBranch(cmd.Context(), vt.ID, b.ID)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("branch not found: %s", args[1])
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Branch %s deleted\n", b.ID)
				return nil
			})
		},
	}
}

func printBranches(out io.Writer, vt *viztrail.Viztrail) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tHEAD\tVERSIONS\tFORKED FROM\tCREATED")
	for _, b := range vt.BranchList() {
		head := "-"
		if v, ok := b.Head(); ok {
			head = v.String()
		}
		name := displayName(b.Name())
		if b.ID == vt.DefaultBranch {
			name += " *"
		}
		source := "-"
		if p := b.Provenance; p != nil {
			source = fmt.Sprintf("%s@%d#%d", p.SourceBranch, p.SourceVersion, p.SourceModuleID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, name, head, len(b.Versions), source, since(b.CreatedAt))
	}
	return w.Flush()
}
