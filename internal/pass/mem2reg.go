package pass

import (
	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/types"
)

// Mem2Reg promotes stack allocas to SSA registers by inserting phi
// nodes at the iterated dominance frontier and renaming along the
// dominator tree. Only scalar allocas whose every use is a load or a
// store destination are promoted; allocas whose address escapes are
// left intact.
type Mem2Reg struct{}

// Name implements FunctionPass.
func (*Mem2Reg) Name() string { return "mem2reg" }

// Run implements FunctionPass.
func (*Mem2Reg) Run(f *ir.Function, am *analysis.Manager) error {
	dom := am.DomTree(f)
	if dom == nil {
		return nil
	}

	allocas := findPromotable(f)
	if len(allocas) == 0 {
		return nil
	}

	// Blocks that define (store to) each alloca.
	defBlocks := make(map[*ir.AllocaInst][]*ir.BasicBlock, len(allocas))
	for _, a := range allocas {
		defBlocks[a] = findDefBlocks(a)
	}

	phiMap := insertPhis(f, allocas, defBlocks, dom)
	rename(f, allocas, phiMap, dom)
	prunePhis(f)

	// The CFG is untouched, but phis are new induction variable
	// candidates.
	am.IndVarChanged(f)
	return nil
}

// findPromotable returns the allocas that can become registers: scalar
// base type, used only as a load address or a store destination.
func findPromotable(f *ir.Function) []*ir.AllocaInst {
	var out []*ir.AllocaInst
	for _, b := range f.Blocks() {
		for i := b.First(); i != nil; i = i.Next() {
			a, ok := i.(*ir.AllocaInst)
			if !ok {
				continue
			}
			if types.IsArray(a.BaseType()) {
				continue
			}
			if promotable(a) {
				out = append(out, a)
			}
		}
	}
	return out
}

func promotable(a *ir.AllocaInst) bool {
	for _, u := range a.Uses() {
		switch user := u.User().(type) {
		case *ir.LoadInst:
			// always the address
		case *ir.StoreInst:
			if user.Val() == ir.Value(a) {
				return false // address escapes as the stored value
			}
		default:
			return false
		}
	}
	return true
}

func findDefBlocks(a *ir.AllocaInst) []*ir.BasicBlock {
	seen := make(map[*ir.BasicBlock]bool)
	var blocks []*ir.BasicBlock
	for _, u := range a.Uses() {
		st, ok := u.User().(*ir.StoreInst)
		if !ok {
			continue
		}
		b := st.Block()
		if b != nil && !seen[b] {
			seen[b] = true
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// insertPhis places empty phis at the iterated dominance frontier of
// each alloca's defining blocks. Returns phiMap[block][alloca] = phi.
func insertPhis(
	f *ir.Function,
	allocas []*ir.AllocaInst,
	defBlocks map[*ir.AllocaInst][]*ir.BasicBlock,
	dom *analysis.DomTree,
) map[*ir.BasicBlock]map[*ir.AllocaInst]*ir.PhiInst {
	phiMap := make(map[*ir.BasicBlock]map[*ir.AllocaInst]*ir.PhiInst)
	bld := ir.NewBuilder(f.Module())

	for _, a := range allocas {
		for _, b := range iteratedDF(defBlocks[a], dom) {
			bld.SetPosBegin(b)
			phi := bld.MakePhi(a.BaseType())
			if phiMap[b] == nil {
				phiMap[b] = make(map[*ir.AllocaInst]*ir.PhiInst)
			}
			phiMap[b][a] = phi
		}
	}
	return phiMap
}

// iteratedDF computes the iterated dominance frontier of a block set.
func iteratedDF(defs []*ir.BasicBlock, dom *analysis.DomTree) []*ir.BasicBlock {
	var result []*ir.BasicBlock
	inResult := make(map[*ir.BasicBlock]bool)
	worklist := append([]*ir.BasicBlock(nil), defs...)
	inWorklist := make(map[*ir.BasicBlock]bool, len(defs))
	for _, b := range defs {
		inWorklist[b] = true
	}

	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		df, err := dom.Frontier(b)
		if err != nil {
			continue // defs in unreachable blocks never need phis
		}
		for _, d := range df {
			if !inResult[d] {
				inResult[d] = true
				result = append(result, d)
				if !inWorklist[d] {
					inWorklist[d] = true
					worklist = append(worklist, d)
				}
			}
		}
	}
	return result
}

// rename walks the dominator tree in preorder, tracking the reaching
// definition of each alloca, rewriting loads, wiring phi incomings, and
// deleting the promoted memory operations.
func rename(
	f *ir.Function,
	allocas []*ir.AllocaInst,
	phiMap map[*ir.BasicBlock]map[*ir.AllocaInst]*ir.PhiInst,
	dom *analysis.DomTree,
) {
	m := f.Module()

	allocaSet := make(map[*ir.AllocaInst]bool, len(allocas))
	stacks := make(map[*ir.AllocaInst][]ir.Value, len(allocas))
	for _, a := range allocas {
		allocaSet[a] = true
		// Loads before any store observe an undef.
		stacks[a] = []ir.Value{m.Undef(a.BaseType())}
	}

	var dead []ir.Instr

	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		pushed := make(map[*ir.AllocaInst]int)

		for a, phi := range phiMap[b] {
			stacks[a] = append(stacks[a], phi)
			pushed[a]++
		}

		for _, inst := range b.Instrs() {
			switch i := inst.(type) {
			case *ir.LoadInst:
				a, ok := i.Ptr().(*ir.AllocaInst)
				if !ok || !allocaSet[a] {
					continue
				}
				stack := stacks[a]
				ir.ReplaceAllUsesWith(i, stack[len(stack)-1])
				dead = append(dead, i)
			case *ir.StoreInst:
				a, ok := i.Ptr().(*ir.AllocaInst)
				if !ok || !allocaSet[a] {
					continue
				}
				stacks[a] = append(stacks[a], i.Val())
				pushed[a]++
				dead = append(dead, i)
			}
		}

		for _, s := range b.Succs() {
			for a, phi := range phiMap[s] {
				stack := stacks[a]
				phi.AddIncoming(stack[len(stack)-1], b)
			}
		}

		for _, child := range dom.Children(b) {
			visit(child)
		}

		for a, n := range pushed {
			stacks[a] = stacks[a][:len(stacks[a])-n]
		}
	}
	visit(f.Entry())

	for _, inst := range dead {
		inst.UnuseAll()
		inst.Block().Remove(inst)
	}
	for _, a := range allocas {
		if len(a.Uses()) == 0 {
			a.UnuseAll()
			a.Block().Remove(a)
		}
	}
}

// prunePhis removes trivial phis (every incoming the same value or a
// self-reference) until none are left.
func prunePhis(f *ir.Function) {
	for changed := true; changed; {
		changed = false
		for _, b := range f.Blocks() {
			for _, phi := range b.Phis() {
				unique := trivialPhi(phi)
				if unique == nil {
					continue
				}
				ir.ReplaceAllUsesWith(phi, unique)
				phi.UnuseAll()
				b.Remove(phi)
				changed = true
			}
		}
	}
}

// trivialPhi returns the single distinct non-self incoming value, or
// nil when the phi is not trivial.
func trivialPhi(phi *ir.PhiInst) ir.Value {
	var unique ir.Value
	for j := 0; j < phi.NumIncoming(); j++ {
		v := phi.IncomingValue(j)
		if v == nil || v == ir.Value(phi) {
			continue
		}
		if unique == nil {
			unique = v
		} else if v != unique {
			return nil
		}
	}
	return unique
}
