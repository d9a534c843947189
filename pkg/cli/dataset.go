package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/repository"
)

const outputCSV = "csv"

// NewDatasetCommand creates the dataset inspection command
func NewDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dataset",
		Aliases: []string{"ds"},
		Short:   "Inspect dataset snapshots",
	}

	cmd.AddCommand(newDatasetListCommand())
	cmd.AddCommand(newDatasetShowCommand())

	return cmd
}

func newDatasetListCommand() *cobra.Command {
	var (
		branch  string
		version int64
	)

	cmd := &cobra.Command{
		Use:   "list <viztrail>",
		Short: "List the datasets bound after the last module of a workflow",
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
				wf, err := app.Repo.GetWorkflow(ctx, vt.ID, b.ID, types.Version(version))
				if err != nil {
					return err
				}
				if wf == nil || len(wf.Datasets()) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No datasets.")
					return nil
				}

				bindings := wf.Datasets()
				names := make([]string, 0, len(bindings))
				for name := range bindings {
					names = append(names, name)
				}
				sort.Strings(names)

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "NAME\tID\tCOLUMNS\tROWS")
				for _, name := range names {
					ds, err := app.Repo.GetDataset(ctx, bindings[name])
					if err != nil {
						return err
					}
					if ds == nil {
						_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\n", name, bindings[name])
						continue
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, ds.ID, len(ds.Columns), plural(ds.RowCount(), "row"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch id or name (default: the default branch)")
	cmd.Flags().Int64Var(&version, "version", int64(repository.HEAD), "Workflow version (default: head)")
	return cmd
}

func newDatasetShowCommand() *cobra.Command {
	var (
		limit       int
		output      string
		annotations bool
	)

	cmd := &cobra.Command{
		Use:   "show <dataset-id>",
		Short: "Show the rows of a dataset snapshot",
		Long: `Show the rows of a dataset snapshot.

Examples:
  vizier dataset show <id>
  vizier dataset show <id> --limit 0 -o csv > people.csv
  vizier dataset show <id> --annotations`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				ds, err := app.Repo.GetDataset(cmd.Context(), types.DatasetID(args[0]))
				if err != nil {
					return err
				}
				if ds == nil {
					return fmt.Errorf("dataset not found: %s", args[0])
				}
				return writeDataset(cmd.OutOrStdout(), ds, output, limit, annotations)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to print (0 for all)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, csv or json")
	cmd.Flags().BoolVar(&annotations, "annotations", false, "Print annotations after the rows")

	return cmd
}

func writeDataset(out io.Writer, ds *dataset.Dataset, format string, limit int, annotations bool) error {
	rows := ds.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	switch strings.ToLower(format) {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ds)
	case outputCSV:
		w := csv.NewWriter(out)
		if err := w.Write(ds.ColumnNames()); err != nil {
			return err
		}
		for _, r := range rows {
			if err := w.Write(r.Values); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	case outputTable, "":
	default:
		return fmt.Errorf("unknown output format %q (use table, csv or json)", format)
	}

	_, _ = fmt.Fprintf(out, "Dataset %s (%s, %s)\n\n", ds.ID, plural(len(ds.Columns), "column"), plural(ds.RowCount(), "row"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\t"+strings.Join(ds.ColumnNames(), "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", r.ID, strings.Join(r.Values, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if hidden := ds.RowCount() - len(rows); hidden > 0 {
		_, _ = fmt.Fprintf(out, "... %s not shown\n", plural(hidden, "row"))
	}

	if annotations && ds.Annotations != nil && ds.Annotations.Len() > 0 {
		_, _ = fmt.Fprintf(out, "\nAnnotations (%d):\n", ds.Annotations.Len())
		printTier(out, "column", ds.Annotations.Columns)
		printTier(out, "row", ds.Annotations.Rows)
		printTier(out, "cell", ds.Annotations.Cells)
	}
	return nil
}

func printTier(out io.Writer, tier string, entries map[string][]dataset.Annotation) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, a := range entries[k] {
			_, _ = fmt.Fprintf(out, "  %s %s: %s = %s\n", tier, k, a.Key, a.Value)
		}
	}
}
