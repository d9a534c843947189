package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/viztrail"
)

// resolveViztrail finds a viztrail by identifier, falling back to a unique
// name match.
func resolveViztrail(ctx context.Context, repo *repository.Repository, ref string) (*viztrail.Viztrail, error) {
	vt, err := repo.GetViztrail(ctx, types.ViztrailID(ref))
	if err != nil {
		return nil, err
	}
	if vt != nil {
		return vt, nil
	}

	all, err := repo.ListViztrails(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*viztrail.Viztrail
	for _, candidate := range all {
		if candidate.Name() == ref {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("viztrail not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("viztrail name %q is ambiguous (%d matches), use the identifier", ref, len(matches))
	}
}

// resolveBranch finds a branch of vt by identifier or unique name. An
// empty reference selects the default branch.
func resolveBranch(vt *viztrail.Viztrail, ref string) (*viztrail.Branch, error) {
	if ref == "" {
		return vt.Branch(vt.DefaultBranch), nil
	}
	if b := vt.Branch(types.BranchID(ref)); b != nil {
		return b, nil
	}

	var matches []*viztrail.Branch
	for _, b := range vt.BranchList() {
		if b.Name() == ref {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("branch not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("branch name %q is ambiguous (%d matches), use the identifier", ref, len(matches))
	}
}

// parseModuleID parses a module identifier argument.
func parseModuleID(s string) (types.ModuleID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return types.NoModule, fmt.Errorf("invalid module id: %s", s)
	}
	return types.ModuleID(id), nil
}

// parseProperties turns repeated key=value flags into a property map.
func parseProperties(pairs []string) (map[string]string, error) {
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", pair)
		}
		props[key] = value
	}
	return props, nil
}

// since renders a timestamp relative to now, or "-" for the zero time.
func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// plural formats a count with its noun, e.g. "1,204 rows".
func plural(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), noun)
}
