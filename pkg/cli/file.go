package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/domain/types"
)

// NewFileCommand creates the uploaded file command
func NewFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage uploaded delimited files",
		Long: `Uploaded files are the sources of vizual.load modules. Files ending in .tsv are
tab-delimited, everything else is read as CSV. The first record is the header.`,
	}

	cmd.AddCommand(newFileUploadCommand())
	cmd.AddCommand(newFileListCommand())
	cmd.AddCommand(newFileDeleteCommand())

	return cmd
}

func newFileUploadCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a CSV or TSV file",
		Long: `Upload a CSV or TSV file.

Examples:
  vizier file upload people.csv
  FILE=$(vizier file upload people.csv -q)
  vizier module append people vizual.load name=people file=$FILE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			return withApp(cmd, func(app *App) error {
				h, err := app.Files.Upload(cmd.Context(), filepath.Base(args[0]), f)
				if err != nil {
					return err
				}
				if quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), h.ID)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Uploaded %s (%s, %s, %s)\n",
					h.Name, plural(len(h.Columns), "column"), plural(h.RowCount, "row"), humanize.Bytes(uint64(h.Size)))
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", h.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the file identifier")
	return cmd
}

func newFileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				files, err := app.Files.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(files) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No files uploaded.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME\tCOLUMNS\tROWS\tSIZE\tUPLOADED")
				for _, h := range files {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
						h.ID, h.Name, len(h.Columns), humanize.Comma(int64(h.RowCount)), humanize.Bytes(uint64(h.Size)), since(h.UploadedAt))
				}
				return w.Flush()
			})
		},
	}
}

func newFileDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete an uploaded file",
		Long: `Delete an uploaded file. Workflows that load it keep their datasets but can no
longer re-execute the load.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				deleted, err := app.Files.Delete(cmd.Context(), types.FileID(args[0]))
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("file not found: %s", args[0])
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ File %s deleted\n", args[0])
				return nil
			})
		},
	}
}
