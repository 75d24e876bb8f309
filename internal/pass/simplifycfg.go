package pass

import (
	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
)

// SimplifyCFG removes blocks unreachable from the entry and merges
// straight-line block pairs (a single-successor block whose successor
// has no other predecessors). It notifies the analysis cache whenever
// it changes the graph.
type SimplifyCFG struct{}

// Name implements FunctionPass.
func (*SimplifyCFG) Name() string { return "simplifycfg" }

// Run implements FunctionPass.
func (*SimplifyCFG) Run(f *ir.Function, am *analysis.Manager) error {
	changed := removeUnreachable(f)
	for mergeOnce(f) {
		changed = true
	}
	if changed {
		am.CFGChanged(f)
	}
	return nil
}

// removeUnreachable deletes every block the entry cannot reach,
// dropping their incoming phi pairs in surviving blocks first.
func removeUnreachable(f *ir.Function) bool {
	entry := f.Entry()
	if entry == nil {
		return false
	}
	reachable := make(map[*ir.BasicBlock]bool)
	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range b.Succs() {
			walk(s)
		}
	}
	walk(entry)

	var doomed []*ir.BasicBlock
	for _, b := range f.Blocks() {
		if !reachable[b] {
			doomed = append(doomed, b)
		}
	}
	for _, b := range doomed {
		for _, s := range b.Succs() {
			if reachable[s] {
				dropPhiIncoming(s, b)
			}
		}
		f.RemoveBlock(b)
	}
	return len(doomed) > 0
}

// dropPhiIncoming deletes pred's incoming pair from every phi in b.
func dropPhiIncoming(b, pred *ir.BasicBlock) {
	for _, phi := range b.Phis() {
		for j := phi.NumIncoming() - 1; j >= 0; j-- {
			if phi.IncomingBlock(j) == pred {
				phi.RemoveIncoming(j)
			}
		}
	}
}

// mergeOnce splices one trivial block pair and reports whether it did.
// A pair (b, s) merges when b's terminator is an unconditional branch
// to s, s has no other predecessor, and s carries no phis.
func mergeOnce(f *ir.Function) bool {
	for _, b := range f.Blocks() {
		br, ok := b.Terminator().(*ir.BranchInst)
		if !ok || br.IsCond() {
			continue
		}
		s := br.Target()
		if s == b || len(s.Preds()) != 1 || len(s.Phis()) != 0 {
			continue
		}
		merge(f, b, s)
		return true
	}
	return false
}

// merge splices s into b: b's branch goes away, s's instructions move
// into b, and every reference to s is rewritten to b.
func merge(f *ir.Function, b, s *ir.BasicBlock) {
	// Drop the branch b -> s.
	br := b.Terminator()
	br.UnuseAll()
	b.Remove(br)
	ir.UnlinkBlocks(b, s)

	// Move the instruction stream.
	for _, inst := range s.Instrs() {
		s.Remove(inst)
		b.PushBack(inst)
	}

	// s's successor edges now leave b.
	for _, t := range append([]*ir.BasicBlock(nil), s.Succs()...) {
		ir.UnlinkBlocks(s, t)
		ir.LinkBlocks(b, t)
	}

	// Phis and branches referencing s now mean b.
	ir.ReplaceAllUsesWith(s, b)

	if f.Exit() == s {
		f.SetExit(b)
	}
	f.RemoveBlock(s)
}
