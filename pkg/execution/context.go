package execution

import (
	"github.com/dshills/vizier/pkg/domain/types"
	"github.com/dshills/vizier/pkg/workflow"
)

// bindingContext tracks, per module, the dataset bindings in effect when
// the module starts. It is seeded from the recorded outputs of the
// previous version and rewritten as the run proceeds.
type bindingContext struct {
	order []types.ModuleID
	slots map[types.ModuleID]map[string]types.DatasetID
}

func newBindingContext(modules []*workflow.Module) *bindingContext {
	c := &bindingContext{
		order: make([]types.ModuleID, len(modules)),
		slots: make(map[types.ModuleID]map[string]types.DatasetID, len(modules)),
	}
	for i, m := range modules {
		c.order[i] = m.ID
		if i == 0 {
			c.slots[m.ID] = map[string]types.DatasetID{}
			continue
		}
		c.slots[m.ID] = workflow.CopyBindings(modules[i-1].Datasets)
	}
	return c
}

// input returns a copy of the bindings module pos starts from.
func (c *bindingContext) input(pos int) map[string]types.DatasetID {
	return workflow.CopyBindings(c.slots[c.order[pos]])
}

// propagate records the bindings produced by module pos. The slot of the
// next module is cloned from them and every slot further downstream is
// cleared, so no stale forward state survives a re-run.
func (c *bindingContext) propagate(pos int, datasets map[string]types.DatasetID) {
	if pos+1 < len(c.order) {
		c.slots[c.order[pos+1]] = workflow.CopyBindings(datasets)
	}
	for _, id := range c.order[min(pos+2, len(c.order)):] {
		c.slots[id] = map[string]types.DatasetID{}
	}
}
