// Package vizual executes the structural reshape commands: loading a file
// into a dataset and inserting, deleting, moving or renaming its columns
// and rows. Every command reads the dataset bound to its "dataset"
// argument and rebinds the name to a new snapshot.
package vizual

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/filestore"
	"github.com/dshills/vizier/pkg/workflow"
)

// FileSource resolves uploaded files for the load command.
type FileSource interface {
	Get(ctx context.Context, id types.FileID) (*filestore.FileHandle, error)
}

// Executor runs vizual commands.
type Executor struct {
	files  FileSource
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates a vizual executor. files may be nil when no load
// command is ever executed.
func NewExecutor(files FileSource, opts ...Option) *Executor {
	e := &Executor{files: files, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "vizual")
	return e
}

var _ execution.Executor = (*Executor)(nil)

// editFunc applies one structural edit and reports the affected count.
type editFunc func(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error)

var edits = map[string]editFunc{
	workflow.VizualInsertColumn: insertColumn,
	workflow.VizualDeleteColumn: deleteColumn,
	workflow.VizualMoveColumn:   moveColumn,
	workflow.VizualRenameColumn: renameColumn,
	workflow.VizualInsertRow:    insertRow,
	workflow.VizualDeleteRow:    deleteRow,
	workflow.VizualMoveRow:      moveRow,
	workflow.VizualUpdateCell:   updateCell,
}

// Execute runs a vizual command.
func (e *Executor) Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *execution.TaskContext) (*execution.Result, error) {
	client := task.Client()

	switch cmd.Command {
	case workflow.VizualLoad:
		msg, err := e.load(ctx, client, cmd)
		if err != nil {
			return nil, err
		}
		return execution.Success(client.Bindings(), msg), nil

	case workflow.VizualDropDataset:
		name, err := cmd.StringArg(workflow.ArgDataset)
		if err != nil {
			return nil, err
		}
		if err := client.DropDataset(name); err != nil {
			return nil, err
		}
		return execution.Success(client.Bindings(), fmt.Sprintf("Dataset %s dropped", name)), nil

	case workflow.VizualRenameDataset:
		name, err := cmd.StringArg(workflow.ArgDataset)
		if err != nil {
			return nil, err
		}
		newName, err := cmd.StringArg(workflow.ArgName)
		if err != nil {
			return nil, err
		}
		if err := client.RenameDataset(name, newName); err != nil {
			return nil, err
		}
		return execution.Success(client.Bindings(), fmt.Sprintf("Dataset %s renamed to %s", name, newName)), nil
	}

	edit, ok := edits[cmd.Command]
	if !ok {
		return nil, fmt.Errorf("unknown vizual command '%s'", cmd.Command)
	}

	name, err := cmd.StringArg(workflow.ArgDataset)
	if err != nil {
		return nil, err
	}
	ds, err := client.GetDataset(ctx, name)
	if err != nil {
		return nil, err
	}
	out, msg, err := edit(ds, cmd)
	if err != nil {
		return nil, err
	}
	saved, err := client.UpdateDataset(ctx, name, out)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("dataset edited", "command", cmd.Command, "dataset", name, "id", saved.ID)
	return execution.Success(client.Bindings(), msg), nil
}

// load reads every row of an uploaded file into a new dataset.
func (e *Executor) load(ctx context.Context, client *execution.DatasetClient, cmd workflow.ModuleSpecification) (string, error) {
	name, err := cmd.StringArg(workflow.ArgName)
	if err != nil {
		return "", err
	}
	fileID, err := cmd.StringArg(workflow.ArgFile)
	if err != nil {
		return "", err
	}
	if e.files == nil {
		return "", fmt.Errorf("no file store configured")
	}
	if client.Has(name) {
		return "", verrors.NewValidation(verrors.CodeDuplicateName, "dataset '%s' already exists", name)
	}

	fh, err := e.files.Get(ctx, types.FileID(fileID))
	if err != nil {
		return "", fmt.Errorf("load %s: %w", fileID, err)
	}
	it, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = it.Close() }()

	columns := make([]dataset.Column, len(fh.Columns))
	for i, c := range fh.Columns {
		columns[i] = dataset.Column{ID: int64(i), Name: c}
	}
	rows := make([]dataset.Row, 0, fh.RowCount)
	for {
		values, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("load %s: %w", fileID, err)
		}
		rows = append(rows, dataset.Row{ID: int64(len(rows)), Values: values})
	}

	ds, err := dataset.New("", columns, rows)
	if err != nil {
		return "", err
	}
	if _, err := client.CreateDataset(ctx, name, ds); err != nil {
		return "", err
	}
	return fmt.Sprintf("Loaded %s into %s", rowCount(len(rows)), name), nil
}

func rowCount(n int) string {
	if n == 1 {
		return "1 row"
	}
	return humanize.Comma(int64(n)) + " rows"
}

func optionalPosition(cmd workflow.ModuleSpecification) (int, error) {
	if !cmd.Has(workflow.ArgPosition) {
		return -1, nil
	}
	return cmd.IntArg(workflow.ArgPosition)
}

func insertColumn(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	name, err := cmd.StringArg(workflow.ArgName)
	if err != nil {
		return nil, "", err
	}
	pos, err := optionalPosition(cmd)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.InsertColumn(name, pos)
	return out, "1 column inserted", err
}

func deleteColumn(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	pos, err := column(ds, cmd)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.DeleteColumn(pos)
	return out, "1 column deleted", err
}

func moveColumn(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	from, err := column(ds, cmd)
	if err != nil {
		return nil, "", err
	}
	to, err := cmd.IntArg(workflow.ArgPosition)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.MoveColumn(from, to)
	return out, "1 column moved", err
}

func renameColumn(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	pos, err := column(ds, cmd)
	if err != nil {
		return nil, "", err
	}
	name, err := cmd.StringArg(workflow.ArgName)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.RenameColumn(pos, name)
	return out, "1 column renamed", err
}

func insertRow(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	pos, err := optionalPosition(cmd)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.InsertRow(pos)
	return out, "1 row inserted", err
}

func deleteRow(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	row, err := cmd.IntArg(workflow.ArgRow)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.DeleteRow(row)
	return out, "1 row deleted", err
}

func moveRow(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	from, err := cmd.IntArg(workflow.ArgRow)
	if err != nil {
		return nil, "", err
	}
	to, err := cmd.IntArg(workflow.ArgPosition)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.MoveRow(from, to)
	return out, "1 row moved", err
}

func updateCell(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (*dataset.Dataset, string, error) {
	col, err := column(ds, cmd)
	if err != nil {
		return nil, "", err
	}
	row, err := cmd.IntArg(workflow.ArgRow)
	if err != nil {
		return nil, "", err
	}
	value, err := cmd.StringArg(workflow.ArgValue)
	if err != nil {
		return nil, "", err
	}
	keep, err := cmd.BoolArg(workflow.ArgKeep, false)
	if err != nil {
		return nil, "", err
	}
	out, err := ds.UpdateCell(col, row, value, keep)
	return out, "1 row updated", err
}

func column(ds *dataset.Dataset, cmd workflow.ModuleSpecification) (int, error) {
	ref, err := cmd.ColumnArg(workflow.ArgColumn)
	if err != nil {
		return -1, err
	}
	return execution.ColumnPosition(ds, ref)
}
