package pass

import (
	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
)

// DCE deletes instructions whose results are unused and whose execution
// has no observable effect, driven by the use lists. Calls are only
// deleted when the side-effect summary clears the callee.
type DCE struct{}

// Name implements FunctionPass.
func (*DCE) Name() string { return "dce" }

// Run implements FunctionPass.
func (*DCE) Run(f *ir.Function, am *analysis.Manager) error {
	se := am.SideEffectInfo()

	// Seed with every removable dead instruction, then chase operands:
	// deleting a user may strand its operands.
	var worklist []ir.Instr
	for _, b := range f.Blocks() {
		for i := b.First(); i != nil; i = i.Next() {
			if isDead(i, se) {
				worklist = append(worklist, i)
			}
		}
	}

	for len(worklist) > 0 {
		inst := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if inst.Block() == nil || !isDead(inst, se) {
			continue
		}
		operands := inst.Operands()
		inst.UnuseAll()
		inst.Block().Remove(inst)
		for _, u := range operands {
			if op, ok := u.Value().(ir.Instr); ok {
				if op.Block() != nil && isDead(op, se) {
					worklist = append(worklist, op)
				}
			}
		}
	}
	return nil
}

// isDead reports whether inst is unused and removable.
func isDead(inst ir.Instr, se *analysis.SideEffectInfo) bool {
	if len(inst.Uses()) > 0 {
		return false
	}
	switch i := inst.(type) {
	case *ir.StoreInst, *ir.MemsetInst:
		return false
	case *ir.ReturnInst, *ir.BranchInst:
		return false
	case *ir.CallInst:
		return !se.HasSideEffect(i.Callee())
	}
	// alloca, load, getelementptr, binary, cmp, unary, phi
	return true
}
