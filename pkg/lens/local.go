package lens

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/vizier/pkg/dataset"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/workflow"
)

// DefaultPercentConform is the share of values that must parse as a type
// for type inference to pick it.
const DefaultPercentConform = 0.5

// lensFunc repairs a copy of ds and returns the number of values touched.
type lensFunc func(ds *dataset.Dataset, args workflow.ModuleSpecification) (*dataset.Dataset, int, error)

// LocalEngine runs lenses in-process.
type LocalEngine struct {
	lenses map[string]lensFunc
}

// NewLocalEngine creates an engine supporting missing_value, key_repair,
// type_inference and domain.
func NewLocalEngine() *LocalEngine {
	return &LocalEngine{lenses: map[string]lensFunc{
		workflow.LensMissingValue:  missingValue,
		workflow.LensKeyRepair:     keyRepair,
		workflow.LensTypeInference: typeInference,
		workflow.LensDomain:        domain,
	}}
}

var _ Engine = (*LocalEngine)(nil)

// Apply runs a lens against req.Store.
func (e *LocalEngine) Apply(ctx context.Context, req Request) (*Result, error) {
	fn, ok := e.lenses[req.Lens]
	if !ok {
		return nil, verrors.NewValidation(verrors.CodeInvalidArgument, "unknown lens '%s'", req.Lens)
	}
	if req.Store == nil {
		return nil, fmt.Errorf("lens %s: no dataset store", req.Lens)
	}

	ds, err := req.Store.GetDataset(ctx, req.Dataset)
	if err != nil {
		return nil, err
	}
	out, repaired, err := fn(ds, workflow.ModuleSpecification{Command: req.Lens, Arguments: req.Args})
	if err != nil {
		return nil, err
	}
	saved, err := dataset.Save(ctx, req.Store, out)
	if err != nil {
		return nil, err
	}
	return &Result{Dataset: saved.ID, Repaired: repaired}, nil
}

func lensColumn(ds *dataset.Dataset, args workflow.ModuleSpecification) (int, error) {
	ref, err := args.ColumnArg(workflow.ArgColumn)
	if err != nil {
		return -1, verrors.WrapValidation(verrors.CodeInvalidArgument, "column", err)
	}
	return execution.ColumnPosition(ds, ref)
}

func isMissing(v string) bool {
	return strings.TrimSpace(v) == ""
}

// missingValue fills empty cells of a column with the most frequent value
// of that column. Ties go to the smallest value.
func missingValue(ds *dataset.Dataset, args workflow.ModuleSpecification) (*dataset.Dataset, int, error) {
	col, err := lensColumn(ds, args)
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[string]int)
	for _, r := range ds.Rows {
		if v := r.Values[col]; !isMissing(v) {
			counts[v]++
		}
	}
	out := ds.Clone()
	if len(counts) == 0 {
		return out, 0, nil
	}

	mode, best := "", 0
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}

	colID := out.Columns[col].ID
	repaired := 0
	for i := range out.Rows {
		if !isMissing(out.Rows[i].Values[col]) {
			continue
		}
		out.Rows[i].Values[col] = mode
		out.Annotations.AddCell(colID, out.Rows[i].ID, AnnoUncertain,
			fmt.Sprintf("missing value replaced by '%s'", mode))
		repaired++
	}
	return out, repaired, nil
}

// keyRepair makes a column a key: of every group of rows sharing a value
// the first row is kept and marked uncertain, the others are removed.
func keyRepair(ds *dataset.Dataset, args workflow.ModuleSpecification) (*dataset.Dataset, int, error) {
	col, err := lensColumn(ds, args)
	if err != nil {
		return nil, 0, err
	}

	out := ds.Clone()
	colIDs := make([]int64, len(out.Columns))
	for i, c := range out.Columns {
		colIDs[i] = c.ID
	}

	first := make(map[string]int64)
	candidates := make(map[string]int)
	kept := out.Rows[:0]
	for _, r := range out.Rows {
		key := r.Values[col]
		candidates[key]++
		if _, seen := first[key]; seen {
			out.Annotations.DropRow(r.ID, colIDs)
			continue
		}
		first[key] = r.ID
		kept = append(kept, r)
	}
	out.Rows = kept

	keys := make([]string, 0, len(first))
	for key := range first {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	repaired := 0
	for _, key := range keys {
		if n := candidates[key]; n > 1 {
			out.Annotations.AddRow(first[key], AnnoUncertain,
				fmt.Sprintf("key '%s' had %d candidate rows", key, n))
			repaired += n - 1
		}
	}
	return out, repaired, nil
}

// Inferred column types, in the order they are tried.
var inferredTypes = []struct {
	name  string
	parse func(string) bool
}{
	{"int", func(v string) bool { _, err := strconv.ParseInt(v, 10, 64); return err == nil }},
	{"real", func(v string) bool { _, err := strconv.ParseFloat(v, 64); return err == nil }},
	{"bool", func(v string) bool {
		switch strings.ToLower(v) {
		case "true", "false", "yes", "no":
			return true
		}
		return false
	}},
}

// typeInference annotates every column with the first type that at least
// percent_conform of its non-empty values parse as (varchar otherwise), and
// marks the cells that do not conform.
func typeInference(ds *dataset.Dataset, args workflow.ModuleSpecification) (*dataset.Dataset, int, error) {
	pc, err := args.FloatArg("percent_conform", DefaultPercentConform)
	if err != nil {
		return nil, 0, verrors.WrapValidation(verrors.CodeInvalidArgument, "percent_conform", err)
	}
	if pc <= 0 || pc > 1 {
		return nil, 0, verrors.NewValidation(verrors.CodeOutOfRange, "percent_conform %v must be in (0, 1]", pc)
	}

	out := ds.Clone()
	repaired := 0
	for col, c := range out.Columns {
		var values []string
		for _, r := range out.Rows {
			if v := strings.TrimSpace(r.Values[col]); v != "" {
				values = append(values, v)
			}
		}

		typeName := "varchar"
		var parse func(string) bool
		for _, t := range inferredTypes {
			if len(values) == 0 {
				break
			}
			n := 0
			for _, v := range values {
				if t.parse(v) {
					n++
				}
			}
			if float64(n)/float64(len(values)) >= pc {
				typeName, parse = t.name, t.parse
				break
			}
		}

		// replace an earlier inference
		if err := out.Annotations.Apply(dataset.UpdateStatement{ColumnID: c.ID, RowID: -1, Key: AnnoType}); err != nil {
			return nil, 0, err
		}
		out.Annotations.AddColumn(c.ID, AnnoType, typeName)

		if parse == nil {
			continue
		}
		for _, r := range out.Rows {
			v := strings.TrimSpace(r.Values[col])
			if v != "" && !parse(v) {
				out.Annotations.AddCell(c.ID, r.ID, AnnoUncertain,
					fmt.Sprintf("value '%s' is not of type %s", v, typeName))
				repaired++
			}
		}
	}
	return out, repaired, nil
}

// domain clears the values of a column that are not in the allowed list.
func domain(ds *dataset.Dataset, args workflow.ModuleSpecification) (*dataset.Dataset, int, error) {
	col, err := lensColumn(ds, args)
	if err != nil {
		return nil, 0, err
	}
	records, err := args.ListArg(workflow.ArgValues)
	if err != nil {
		return nil, 0, verrors.WrapValidation(verrors.CodeInvalidArgument, "values", err)
	}
	if len(records) == 0 {
		return nil, 0, verrors.NewValidation(verrors.CodeInvalidArgument, "domain requires at least one value")
	}
	allowed := make(map[string]bool, len(records))
	for i, rec := range records {
		v, ok := rec[workflow.ArgValue].(string)
		if !ok {
			return nil, 0, verrors.NewValidation(verrors.CodeInvalidArgument, "values[%d]: missing value", i)
		}
		allowed[v] = true
	}

	out := ds.Clone()
	colID := out.Columns[col].ID
	repaired := 0
	for i := range out.Rows {
		v := out.Rows[i].Values[col]
		if isMissing(v) || allowed[v] {
			continue
		}
		out.Rows[i].Values[col] = ""
		out.Annotations.AddCell(colID, out.Rows[i].ID, AnnoUncertain,
			fmt.Sprintf("value '%s' is outside the domain", v))
		repaired++
	}
	return out, repaired, nil
}
