package analysis

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/tarn-lang/tarn/internal/ir"
)

// Loop is a natural loop: the header plus every block that can reach a
// back edge into the header without leaving the loop body.
//
// Block sets are mapset sets and iterate in no particular order;
// consumers that need determinism must sort by block name.
type Loop struct {
	fn     *ir.Function
	header *ir.BasicBlock

	blocks  mapset.Set[*ir.BasicBlock]
	exits   mapset.Set[*ir.BasicBlock]
	latches mapset.Set[*ir.BasicBlock]

	parent   *Loop
	subLoops []*Loop
}

func newLoop(header *ir.BasicBlock, fn *ir.Function) *Loop {
	return &Loop{
		fn:      fn,
		header:  header,
		blocks:  mapset.NewThreadUnsafeSet[*ir.BasicBlock](),
		exits:   mapset.NewThreadUnsafeSet[*ir.BasicBlock](),
		latches: mapset.NewThreadUnsafeSet[*ir.BasicBlock](),
	}
}

// Header returns the loop header.
func (l *Loop) Header() *ir.BasicBlock { return l.header }

// Func returns the containing function.
func (l *Loop) Func() *ir.Function { return l.fn }

// Blocks returns the set of all blocks in the loop, header included.
func (l *Loop) Blocks() mapset.Set[*ir.BasicBlock] { return l.blocks }

// Exits returns the blocks with at least one successor outside the
// loop.
func (l *Loop) Exits() mapset.Set[*ir.BasicBlock] { return l.exits }

// Latches returns the blocks with a back edge to the header.
func (l *Loop) Latches() mapset.Set[*ir.BasicBlock] { return l.latches }

// Parent returns the innermost enclosing loop, or nil for a top-level
// loop.
func (l *Loop) Parent() *Loop { return l.parent }

// SubLoops returns the directly nested loops.
func (l *Loop) SubLoops() []*Loop { return l.subLoops }

// Contains reports whether b belongs to the loop.
func (l *Loop) Contains(b *ir.BasicBlock) bool { return l.blocks.Contains(b) }

// Depth returns the nesting depth; a top-level loop has depth 1.
func (l *Loop) Depth() int {
	d := 1
	for p := l.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Predecessor returns the unique predecessor of the header outside the
// loop, or nil if there is none or more than one.
func (l *Loop) Predecessor() *ir.BasicBlock {
	var out *ir.BasicBlock
	for _, p := range l.header.Preds() {
		if l.Contains(p) {
			continue
		}
		if out != nil {
			return nil
		}
		out = p
	}
	return out
}

// Preheader returns the loop preheader: the unique outside predecessor
// of the header whose only successor is the header. Nil otherwise.
func (l *Loop) Preheader() *ir.BasicBlock {
	p := l.Predecessor()
	if p == nil || len(p.Succs()) != 1 {
		return nil
	}
	return p
}

// Latch returns the unique latch block, or nil if there are several.
func (l *Loop) Latch() *ir.BasicBlock {
	if l.latches.Cardinality() != 1 {
		return nil
	}
	return l.latches.ToSlice()[0]
}

// HasDedicatedExits reports whether every block outside the loop that
// an exit block branches to has all of its predecessors inside the loop.
func (l *Loop) HasDedicatedExits() bool {
	dedicated := true
	l.exits.Each(func(e *ir.BasicBlock) bool {
		for _, s := range e.Succs() {
			if l.Contains(s) {
				continue
			}
			for _, p := range s.Preds() {
				if !l.Contains(p) {
					dedicated = false
					return true
				}
			}
		}
		return false
	})
	return dedicated
}

// IsSimplified reports whether the loop has a preheader, a unique
// latch, and dedicated exits.
func (l *Loop) IsSimplified() bool {
	return l.Preheader() != nil && l.Latch() != nil && l.HasDedicatedExits()
}

// FirstBodyBlock returns the in-loop successor of the header, or an
// ErrNotSimplified error when the header has none.
func (l *Loop) FirstBodyBlock() (*ir.BasicBlock, error) {
	for _, s := range l.header.Succs() {
		if l.Contains(s) {
			return s, nil
		}
	}
	return nil, errors.Wrapf(ir.ErrNotSimplified, "loop %s has no body block", l.header.Name())
}

// LoopInfo holds the natural loops of a function and their nesting
// forest.
type LoopInfo struct {
	fn    *ir.Function
	am    *Manager
	valid bool

	loops    []*Loop
	topLevel []*Loop
	loopOf   map[*ir.BasicBlock]*Loop // innermost loop containing the block
}

// NewLoopInfo returns an unrefreshed loop analysis for f.
func NewLoopInfo(f *ir.Function, am *Manager) *LoopInfo {
	return &LoopInfo{fn: f, am: am}
}

// SetOff marks the analysis stale.
func (li *LoopInfo) SetOff() { li.valid = false }

// Valid reports whether the analysis reflects the last Refresh.
func (li *LoopInfo) Valid() bool { return li.valid }

// Loops returns every loop, in the order its first back edge is met
// while walking the blocks in reverse post-order. No nesting order is
// implied; use TopLevel and SubLoops for the nesting forest.
func (li *LoopInfo) Loops() []*Loop { return li.loops }

// TopLevel returns the loops without a parent.
func (li *LoopInfo) TopLevel() []*Loop { return li.topLevel }

// InnermostLoop returns the innermost loop containing b, or nil.
func (li *LoopInfo) InnermostLoop(b *ir.BasicBlock) *Loop { return li.loopOf[b] }

// Depth returns the loop nesting depth of b; 0 outside any loop.
func (li *LoopInfo) Depth(b *ir.BasicBlock) int {
	if l := li.loopOf[b]; l != nil {
		return l.Depth()
	}
	return 0
}

// Refresh recomputes the loops from the IR if the analysis is stale.
// Dominance is fetched through the manager; DomTree never consults
// LoopInfo, so there is no recursion.
func (li *LoopInfo) Refresh() {
	if li.valid {
		return
	}
	li.compute()
	li.valid = true
}

func (li *LoopInfo) compute() {
	li.loops = nil
	li.topLevel = nil
	li.loopOf = make(map[*ir.BasicBlock]*Loop)

	dom := li.am.DomTree(li.fn)
	if dom == nil {
		return
	}

	// Enumerate back edges u -> h where h dominates u. Unreachable
	// blocks are not in the tree and contribute no back edges; two back
	// edges into the same header share one loop.
	byHeader := make(map[*ir.BasicBlock]*Loop)
	for _, u := range dom.RPO() {
		for _, h := range u.Succs() {
			back, err := dom.Dominates(h, u)
			if err != nil || !back {
				continue
			}
			loop := byHeader[h]
			if loop == nil {
				loop = newLoop(h, li.fn)
				loop.blocks.Add(h)
				byHeader[h] = loop
				li.loops = append(li.loops, loop)
			}
			loop.latches.Add(u)
			// Collect the loop body: walk predecessors back from the
			// latch, stopping at the header.
			worklist := []*ir.BasicBlock{u}
			for len(worklist) > 0 {
				b := worklist[len(worklist)-1]
				worklist = worklist[:len(worklist)-1]
				if loop.blocks.Contains(b) || !dom.Reachable(b) {
					continue
				}
				loop.blocks.Add(b)
				for _, p := range b.Preds() {
					worklist = append(worklist, p)
				}
			}
		}
	}

	// Exit blocks: at least one successor outside the loop.
	for _, loop := range li.loops {
		loop.blocks.Each(func(b *ir.BasicBlock) bool {
			for _, s := range b.Succs() {
				if !loop.blocks.Contains(s) {
					loop.exits.Add(b)
					break
				}
			}
			return false
		})
	}

	// Innermost loop per block: the containing loop with the fewest
	// blocks.
	for _, loop := range li.loops {
		loop.blocks.Each(func(b *ir.BasicBlock) bool {
			cur := li.loopOf[b]
			if cur == nil || cur.blocks.Cardinality() > loop.blocks.Cardinality() {
				li.loopOf[b] = loop
			}
			return false
		})
	}

	// Parent: the smallest other loop strictly containing the header.
	for _, loop := range li.loops {
		var best *Loop
		for _, other := range li.loops {
			if other == loop || other.header == loop.header {
				continue
			}
			if !other.blocks.Contains(loop.header) {
				continue
			}
			if best == nil || best.blocks.Cardinality() > other.blocks.Cardinality() {
				best = other
			}
		}
		loop.parent = best
		if best != nil {
			best.subLoops = append(best.subLoops, loop)
		} else {
			li.topLevel = append(li.topLevel, loop)
		}
	}
}
