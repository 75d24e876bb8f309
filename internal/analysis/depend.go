package analysis

import (
	"github.com/tarn-lang/tarn/internal/ir"
)

// DependenceInfo collects, per loop, the memory accesses a dependence
// test would have to reason about. The dependence tests themselves live
// in passes outside the core; this analysis keeps their input fresh
// under the cache's invalidation contract.
type DependenceInfo struct {
	fn    *ir.Function
	am    *Manager
	valid bool

	loads  map[*Loop][]*ir.LoadInst
	stores map[*Loop][]*ir.StoreInst
}

// NewDependenceInfo returns an unrefreshed dependence summary.
func NewDependenceInfo(f *ir.Function, am *Manager) *DependenceInfo {
	return &DependenceInfo{fn: f, am: am}
}

// SetOff marks the summary stale.
func (di *DependenceInfo) SetOff() { di.valid = false }

// Valid reports whether the summary reflects the last Refresh.
func (di *DependenceInfo) Valid() bool { return di.valid }

// Loads returns the loads executed inside l.
func (di *DependenceInfo) Loads(l *Loop) []*ir.LoadInst { return di.loads[l] }

// Stores returns the stores executed inside l.
func (di *DependenceInfo) Stores(l *Loop) []*ir.StoreInst { return di.stores[l] }

// Refresh recomputes the summary from the IR if it is stale.
func (di *DependenceInfo) Refresh() {
	if di.valid {
		return
	}
	di.loads = make(map[*Loop][]*ir.LoadInst)
	di.stores = make(map[*Loop][]*ir.StoreInst)
	li := di.am.LoopInfo(di.fn)
	if li == nil {
		di.valid = true
		return
	}
	for _, l := range li.Loops() {
		for _, b := range loopBlocksSorted(l) {
			for i := b.First(); i != nil; i = i.Next() {
				switch inst := i.(type) {
				case *ir.LoadInst:
					di.loads[l] = append(di.loads[l], inst)
				case *ir.StoreInst:
					di.stores[l] = append(di.stores[l], inst)
				}
			}
		}
	}
	di.valid = true
}

// loopBlocksSorted returns the loop's blocks ordered by name so the
// summary is deterministic despite the unordered block set.
func loopBlocksSorted(l *Loop) []*ir.BasicBlock {
	blocks := l.Blocks().ToSlice()
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j-1].Name() > blocks[j].Name(); j-- {
			blocks[j-1], blocks[j] = blocks[j], blocks[j-1]
		}
	}
	return blocks
}

// ParallelInfo is a per-function store for parallelization decisions
// made by passes outside the core. Unlike the computed analyses it is
// never refreshed from the IR; passes write it and later passes read
// it. The loop-body attribute bits (ParallelBody and friends) carry the
// same decisions across function boundaries.
type ParallelInfo struct {
	fn *ir.Function

	parallel map[*ir.BasicBlock]bool // keyed by loop header
}

// NewParallelInfo returns an empty parallel store.
func NewParallelInfo(f *ir.Function, _ *Manager) *ParallelInfo {
	return &ParallelInfo{fn: f, parallel: make(map[*ir.BasicBlock]bool)}
}

// SetParallel records whether the loop headed by header may run
// parallel.
func (pi *ParallelInfo) SetParallel(header *ir.BasicBlock, ok bool) {
	pi.parallel[header] = ok
}

// IsParallel reports the recorded decision for the loop headed by
// header.
func (pi *ParallelInfo) IsParallel(header *ir.BasicBlock) bool {
	return pi.parallel[header]
}
