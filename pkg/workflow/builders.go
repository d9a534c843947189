package workflow

import (
	"github.com/dshills/vizier/pkg/domain/types"
)

// The builders below assemble well-formed command specifications. Column
// arguments accept a name or a zero-based position.

// LoadDataset loads an uploaded file into a new dataset named name.
func LoadDataset(name string, file types.FileID) ModuleSpecification {
	return vizual(VizualLoad, map[string]interface{}{ArgName: name, ArgFile: string(file)})
}

// InsertColumn inserts a column. A negative position appends.
func InsertColumn(ds, name string, position int) ModuleSpecification {
	args := map[string]interface{}{ArgDataset: ds, ArgName: name}
	if position >= 0 {
		args[ArgPosition] = position
	}
	return vizual(VizualInsertColumn, args)
}

// DeleteColumn deletes a column.
func DeleteColumn(ds string, column interface{}) ModuleSpecification {
	return vizual(VizualDeleteColumn, map[string]interface{}{ArgDataset: ds, ArgColumn: column})
}

// MoveColumn moves a column to position.
func MoveColumn(ds string, column interface{}, position int) ModuleSpecification {
	return vizual(VizualMoveColumn, map[string]interface{}{ArgDataset: ds, ArgColumn: column, ArgPosition: position})
}

// RenameColumn renames a column.
func RenameColumn(ds string, column interface{}, name string) ModuleSpecification {
	return vizual(VizualRenameColumn, map[string]interface{}{ArgDataset: ds, ArgColumn: column, ArgName: name})
}

// InsertRow inserts an empty row. A negative position appends.
func InsertRow(ds string, position int) ModuleSpecification {
	args := map[string]interface{}{ArgDataset: ds}
	if position >= 0 {
		args[ArgPosition] = position
	}
	return vizual(VizualInsertRow, args)
}

// DeleteRow deletes the row at position.
func DeleteRow(ds string, row int) ModuleSpecification {
	return vizual(VizualDeleteRow, map[string]interface{}{ArgDataset: ds, ArgRow: row})
}

// MoveRow moves a row to position.
func MoveRow(ds string, row, position int) ModuleSpecification {
	return vizual(VizualMoveRow, map[string]interface{}{ArgDataset: ds, ArgRow: row, ArgPosition: position})
}

// UpdateCell overwrites a cell value.
func UpdateCell(ds string, column interface{}, row int, value string) ModuleSpecification {
	return vizual(VizualUpdateCell, map[string]interface{}{ArgDataset: ds, ArgColumn: column, ArgRow: row, ArgValue: value})
}

// DropDataset removes a dataset from the binding context.
func DropDataset(ds string) ModuleSpecification {
	return vizual(VizualDropDataset, map[string]interface{}{ArgDataset: ds})
}

// RenameDataset renames a dataset in the binding context.
func RenameDataset(ds, name string) ModuleSpecification {
	return vizual(VizualRenameDataset, map[string]interface{}{ArgDataset: ds, ArgName: name})
}

// Script runs a script cell.
func Script(source string) ModuleSpecification {
	return ModuleSpecification{Package: PackageScript, Command: ScriptCode, Arguments: map[string]interface{}{ArgSource: source}}
}

// MissingValue fills missing values of a column.
func MissingValue(ds string, column interface{}) ModuleSpecification {
	return lens(LensMissingValue, map[string]interface{}{ArgDataset: ds, ArgColumn: column})
}

// KeyRepair removes duplicate keys of a column.
func KeyRepair(ds string, column interface{}) ModuleSpecification {
	return lens(LensKeyRepair, map[string]interface{}{ArgDataset: ds, ArgColumn: column})
}

// TypeInference annotates columns with their inferred types.
func TypeInference(ds string) ModuleSpecification {
	return lens(LensTypeInference, map[string]interface{}{ArgDataset: ds})
}

// Domain constrains a column to a set of allowed values.
func Domain(ds string, column interface{}, values []string) ModuleSpecification {
	list := make([]interface{}, len(values))
	for i, v := range values {
		list[i] = map[string]interface{}{ArgValue: v}
	}
	return lens(LensDomain, map[string]interface{}{ArgDataset: ds, ArgColumn: column, ArgValues: list})
}

func vizual(cmd string, args map[string]interface{}) ModuleSpecification {
	return ModuleSpecification{Package: PackageVizual, Command: cmd, Arguments: args}
}

func lens(cmd string, args map[string]interface{}) ModuleSpecification {
	return ModuleSpecification{Package: PackageLens, Command: cmd, Arguments: args}
}
