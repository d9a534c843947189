package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/viztrail"
)

// withApp opens the stack for the duration of fn.
func withApp(cmd *cobra.Command, fn func(app *App) error) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}

// NewViztrailCommand creates the viztrail management command
func NewViztrailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "viztrail",
		Aliases: []string{"vt"},
		Short:   "Manage viztrails",
		Long: `A viztrail is the versioned history of a curation project: a set of branches,
each an append-only sequence of workflow versions.`,
	}

	cmd.AddCommand(newViztrailCreateCommand())
	cmd.AddCommand(newViztrailListCommand())
	cmd.AddCommand(newViztrailShowCommand())
	cmd.AddCommand(newViztrailUpdateCommand())
	cmd.AddCommand(newViztrailDeleteCommand())

	return cmd
}

func newViztrailCreateCommand() *cobra.Command {
	var (
		envID      string
		properties []string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a viztrail with an empty default branch",
		Long: `Create a viztrail with an empty default branch.

Examples:
  vizier viztrail create "Census cleanup"
  vizier viztrail create people --property owner=data-team
  VT=$(vizier viztrail create people -q)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(properties)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				props[viztrail.PropertyName] = args[0]
			}
			if envID == "" {
				envID = GlobalConfig.Settings.EnvID
			}

			return withApp(cmd, func(app *App) error {
				vt, err := app.Repo.CreateViztrail(cmd.Context(), envID, props)
				if err != nil {
					return err
				}
				if quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), vt.ID)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Viztrail '%s' created\n", displayName(vt.Name()))
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  ID:             %s\n", vt.ID)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Default branch: %s\n", vt.DefaultBranch)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envID, "env", "", "Execution environment identifier (default from config)")
	cmd.Flags().StringArrayVarP(&properties, "property", "p", nil, "Property key=value (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the viztrail identifier")

	return cmd
}

func newViztrailListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List viztrails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				list, err := app.Repo.ListViztrails(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No viztrails found.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nCreate one with: vizier viztrail create <name>")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME\tBRANCHES\tCREATED\tMODIFIED")
				for _, vt := range list {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						vt.ID, displayName(vt.Name()), len(vt.Branches), since(vt.CreatedAt), since(vt.LastModifiedAt))
				}
				return w.Flush()
			})
		},
	}
}

func newViztrailShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <viztrail>",
		Short: "Show viztrail properties and branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				vt, err := resolveViztrail(cmd.Context(), app.Repo, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Viztrail: %s\n", displayName(vt.Name()))
				_, _ = fmt.Fprintf(out, "ID:          %s\n", vt.ID)
				_, _ = fmt.Fprintf(out, "Environment: %s\n", vt.EnvID)
				_, _ = fmt.Fprintf(out, "Created:     %s\n", since(vt.CreatedAt))
				_, _ = fmt.Fprintf(out, "Modified:    %s\n", since(vt.LastModifiedAt))

				if len(vt.Properties) > 0 {
					_, _ = fmt.Fprintln(out, "\nProperties:")
					keys := make([]string, 0, len(vt.Properties))
					for k := range vt.Properties {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						_, _ = fmt.Fprintf(out, "  %s = %s\n", k, vt.Properties[k])
					}
				}

				_, _ = fmt.Fprintln(out, "\nBranches:")
				return printBranches(out, vt)
			})
		},
	}
}

func newViztrailUpdateCommand() *cobra.Command {
	var properties []string

	cmd := &cobra.Command{
		Use:   "update <viztrail>",
		Short: "Update viztrail properties",
		Long: `Merge properties into a viztrail. An empty value removes the key.

Examples:
  vizier viztrail update people --property name="People v2"
  vizier viztrail update people --property owner=`,
		Args: cobra.ExactArgs(1),
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
				if _, err := app.Repo.UpdateViztrailProperties(cmd.Context(), vt.ID, props); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Viztrail %s updated\n", vt.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&properties, "property", "p", nil, "Property key=value (repeatable)")
	return cmd
}

func newViztrailDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <viztrail>",
		Short: "Delete a viztrail with all branches and workflow versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				vt, err := resolveViztrail(cmd.Context(), app.Repo, args[0])
				if err != nil {
					return err
				}
				deleted, err := app.Repo.DeleteViztrail(cmd.Context(), vt.ID)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("viztrail not found: %s", args[0])
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Viztrail %s deleted\n", vt.ID)
				return nil
			})
		},
	}
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
