// Package analysis provides the function- and module-level analyses of
// the middle-end (dominance, loops, call graph, side effects) behind a
// lazily refreshed, explicitly invalidated cache.
package analysis

import (
	"github.com/pkg/errors"

	"github.com/tarn-lang/tarn/internal/ir"
)

// DomTree holds the dominator tree of a function: immediate dominators,
// tree children, dominance frontiers, and Euler-tour intervals for O(1)
// dominance queries.
//
// By convention the entry block is its own immediate dominator, so idom
// chains terminate at entry. Unreachable blocks are not in the tree;
// queries about them return ErrUnreachableBlock.
type DomTree struct {
	fn    *ir.Function
	valid bool

	rpo      []*ir.BasicBlock
	idom     map[*ir.BasicBlock]*ir.BasicBlock
	children map[*ir.BasicBlock][]*ir.BasicBlock
	frontier map[*ir.BasicBlock][]*ir.BasicBlock
	tin      map[*ir.BasicBlock]int
	tout     map[*ir.BasicBlock]int
}

// NewDomTree returns an unrefreshed dominator tree for f.
func NewDomTree(f *ir.Function, _ *Manager) *DomTree {
	return &DomTree{fn: f}
}

// SetOff marks the tree stale; the next Refresh recomputes it.
func (t *DomTree) SetOff() { t.valid = false }

// Valid reports whether the tree reflects the last Refresh.
func (t *DomTree) Valid() bool { return t.valid }

// Refresh recomputes the tree from the IR if it is stale.
func (t *DomTree) Refresh() {
	if t.valid {
		return
	}
	t.compute()
	t.valid = true
}

// compute runs the iterative Cooper-Harvey-Kennedy algorithm over the
// reachable blocks.
func (t *DomTree) compute() {
	entry := t.fn.Entry()
	t.idom = nil
	t.children = nil
	t.frontier = nil
	t.rpo = nil
	if entry == nil {
		return
	}
	t.rpo = reversePostOrder(entry, (*ir.BasicBlock).Succs)
	num := make(map[*ir.BasicBlock]int, len(t.rpo))
	for i, b := range t.rpo {
		num[b] = i
	}

	idom := make(map[*ir.BasicBlock]*ir.BasicBlock, len(t.rpo))
	idom[entry] = entry

	intersect := func(x, y *ir.BasicBlock) *ir.BasicBlock {
		for x != y {
			for num[x] > num[y] {
				x = idom[x]
			}
			for num[y] > num[x] {
				y = idom[y]
			}
		}
		return x
	}

	for changed := true; changed; {
		changed = false
		for _, b := range t.rpo[1:] {
			var newIdom *ir.BasicBlock
			for _, p := range b.Preds() {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	t.idom = idom

	// Tree children, skipping entry's self-edge.
	t.children = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, b := range t.rpo {
		if b != entry {
			t.children[idom[b]] = append(t.children[idom[b]], b)
		}
	}

	// Euler-tour intervals: a dominates b iff tin[a] <= tin[b] and
	// tout[b] <= tout[a].
	t.tin = make(map[*ir.BasicBlock]int, len(t.rpo))
	t.tout = make(map[*ir.BasicBlock]int, len(t.rpo))
	clock := 0
	var tour func(b *ir.BasicBlock)
	tour = func(b *ir.BasicBlock) {
		t.tin[b] = clock
		clock++
		for _, c := range t.children[b] {
			tour(c)
		}
		t.tout[b] = clock
		clock++
	}
	tour(entry)

	// Dominance frontier: for each join point, walk each predecessor up
	// the idom chain until the join's idom, collecting the join.
	t.frontier = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, b := range t.rpo {
		if len(b.Preds()) < 2 {
			continue
		}
		for _, p := range b.Preds() {
			runner := p
			if idom[runner] == nil {
				continue // unreachable predecessor
			}
			for runner != idom[b] {
				t.frontier[runner] = appendUnique(t.frontier[runner], b)
				if runner == idom[runner] {
					break // reached entry
				}
				runner = idom[runner]
			}
		}
	}
}

// Func returns the analyzed function.
func (t *DomTree) Func() *ir.Function { return t.fn }

// RPO returns the reachable blocks in reverse post-order.
func (t *DomTree) RPO() []*ir.BasicBlock { return t.rpo }

// Reachable reports whether b is in the tree.
func (t *DomTree) Reachable(b *ir.BasicBlock) bool {
	_, ok := t.idom[b]
	return ok
}

// IDom returns the immediate dominator of b; the entry block is its own
// immediate dominator.
func (t *DomTree) IDom(b *ir.BasicBlock) (*ir.BasicBlock, error) {
	d, ok := t.idom[b]
	if !ok {
		return nil, errors.Wrapf(ir.ErrUnreachableBlock, "idom of %s", b.Name())
	}
	return d, nil
}

// Children returns the blocks whose immediate dominator is b.
func (t *DomTree) Children(b *ir.BasicBlock) []*ir.BasicBlock {
	return t.children[b]
}

// Dominates reports whether a dominates b (reflexively), in O(1) via
// the Euler-tour intervals.
func (t *DomTree) Dominates(a, b *ir.BasicBlock) (bool, error) {
	if _, ok := t.idom[a]; !ok {
		return false, errors.Wrapf(ir.ErrUnreachableBlock, "dominates query on %s", a.Name())
	}
	if _, ok := t.idom[b]; !ok {
		return false, errors.Wrapf(ir.ErrUnreachableBlock, "dominates query on %s", b.Name())
	}
	return t.tin[a] <= t.tin[b] && t.tout[b] <= t.tout[a], nil
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *DomTree) StrictlyDominates(a, b *ir.BasicBlock) (bool, error) {
	if a == b {
		return false, nil
	}
	return t.Dominates(a, b)
}

// Frontier returns the dominance frontier of b.
func (t *DomTree) Frontier(b *ir.BasicBlock) ([]*ir.BasicBlock, error) {
	if _, ok := t.idom[b]; !ok {
		return nil, errors.Wrapf(ir.ErrUnreachableBlock, "frontier of %s", b.Name())
	}
	return t.frontier[b], nil
}

// PostDomTree holds the post-dominator tree: the dominator tree of the
// reverse CFG rooted at a virtual exit that post-dominates every return
// block and every block with no successors.
type PostDomTree struct {
	fn    *ir.Function
	valid bool

	ipdom map[*ir.BasicBlock]*ir.BasicBlock // roots map to nil (virtual exit)
	tin   map[*ir.BasicBlock]int
	tout  map[*ir.BasicBlock]int
}

// NewPostDomTree returns an unrefreshed post-dominator tree for f.
func NewPostDomTree(f *ir.Function, _ *Manager) *PostDomTree {
	return &PostDomTree{fn: f}
}

// SetOff marks the tree stale.
func (t *PostDomTree) SetOff() { t.valid = false }

// Valid reports whether the tree reflects the last Refresh.
func (t *PostDomTree) Valid() bool { return t.valid }

// Refresh recomputes the tree from the IR if it is stale.
func (t *PostDomTree) Refresh() {
	if t.valid {
		return
	}
	t.compute()
	t.valid = true
}

func (t *PostDomTree) compute() {
	t.ipdom = nil
	t.tin = nil
	t.tout = nil
	if t.fn.Entry() == nil {
		return
	}
	// Index the reachable blocks; the virtual exit conceptually sits
	// past them.
	blocks := reversePostOrder(t.fn.Entry(), (*ir.BasicBlock).Succs)
	n := len(blocks)
	index := make(map[*ir.BasicBlock]int, n)
	for i, b := range blocks {
		index[b] = i
	}
	const virtualExit = -1

	// Reverse-CFG adjacency in index space. Exit-less blocks hang off
	// the virtual exit.
	preds := make([][]int, n) // reverse-CFG predecessors = CFG successors
	var roots []int
	for i, b := range blocks {
		if len(b.Succs()) == 0 {
			roots = append(roots, i)
			continue
		}
		for _, s := range b.Succs() {
			if j, ok := index[s]; ok {
				preds[i] = append(preds[i], j)
			}
		}
	}

	// Post-order over the reverse CFG from the virtual exit, i.e. a
	// reverse-postorder where predecessors are CFG successors.
	seen := make([]bool, n)
	var order []int // reverse post-order, virtual exit first conceptually
	var dfs func(i int)
	dfs = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, p := range blocks[i].Preds() {
			if j, ok := index[p]; ok {
				dfs(j)
			}
		}
		order = append(order, i)
	}
	for _, r := range roots {
		dfs(r)
	}
	// Blocks on infinite cycles never reach a root; pull them in too so
	// every reachable block gets a post-dominator.
	for i := 0; i < n; i++ {
		if !seen[i] {
			dfs(i)
		}
	}
	for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
		order[l], order[r] = order[r], order[l]
	}

	num := make([]int, n) // RPO number in the reverse CFG; virtual exit is -1
	for rank, i := range order {
		num[i] = rank
	}

	idom := make([]int, n)
	for i := range idom {
		idom[i] = -2 // undefined
	}
	for _, r := range roots {
		idom[r] = virtualExit
	}

	intersect := func(x, y int) int {
		for x != y {
			for x != virtualExit && (y == virtualExit || num[x] > num[y]) {
				x = idom[x]
			}
			for y != virtualExit && (x == virtualExit || num[y] > num[x]) {
				y = idom[y]
			}
		}
		return x
	}

	for changed := true; changed; {
		changed = false
		for _, i := range order {
			newIdom := -2
			for _, p := range preds[i] {
				if idom[p] == -2 {
					continue
				}
				if newIdom == -2 {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if isRoot(roots, i) {
				newIdom = virtualExit
			}
			if newIdom != -2 && idom[i] != newIdom {
				idom[i] = newIdom
				changed = true
			}
		}
	}

	t.ipdom = make(map[*ir.BasicBlock]*ir.BasicBlock, n)
	children := make(map[int][]int)
	for i, b := range blocks {
		switch idom[i] {
		case -2:
			// No post-dominator information; treat as hanging off the
			// virtual exit.
			t.ipdom[b] = nil
		case virtualExit:
			t.ipdom[b] = nil
		default:
			t.ipdom[b] = blocks[idom[i]]
			children[idom[i]] = append(children[idom[i]], i)
		}
	}

	// Euler tour rooted at the virtual exit.
	t.tin = make(map[*ir.BasicBlock]int, n)
	t.tout = make(map[*ir.BasicBlock]int, n)
	clock := 0
	var tour func(i int)
	tour = func(i int) {
		b := blocks[i]
		t.tin[b] = clock
		clock++
		for _, c := range children[i] {
			tour(c)
		}
		t.tout[b] = clock
		clock++
	}
	for i, b := range blocks {
		if t.ipdom[b] == nil {
			tour(i)
		}
	}
}

func isRoot(roots []int, i int) bool {
	for _, r := range roots {
		if r == i {
			return true
		}
	}
	return false
}

// IPDom returns the immediate post-dominator of b, or nil when b hangs
// directly off the virtual exit.
func (t *PostDomTree) IPDom(b *ir.BasicBlock) (*ir.BasicBlock, error) {
	if _, ok := t.tin[b]; !ok {
		return nil, errors.Wrapf(ir.ErrUnreachableBlock, "ipdom of %s", b.Name())
	}
	return t.ipdom[b], nil
}

// PostDominates reports whether a post-dominates b (reflexively).
func (t *PostDomTree) PostDominates(a, b *ir.BasicBlock) (bool, error) {
	if _, ok := t.tin[a]; !ok {
		return false, errors.Wrapf(ir.ErrUnreachableBlock, "postdominates query on %s", a.Name())
	}
	if _, ok := t.tin[b]; !ok {
		return false, errors.Wrapf(ir.ErrUnreachableBlock, "postdominates query on %s", b.Name())
	}
	// Subtrees hanging off the virtual exit are toured separately, so
	// the interval test only holds within one subtree; across subtrees
	// nothing post-dominates anything but the virtual exit.
	return t.tin[a] <= t.tin[b] && t.tout[b] <= t.tout[a], nil
}

// reversePostOrder returns the blocks reachable from entry in reverse
// post-order over the given successor relation.
func reversePostOrder(entry *ir.BasicBlock, succs func(*ir.BasicBlock) []*ir.BasicBlock) []*ir.BasicBlock {
	if entry == nil {
		return nil
	}
	visited := make(map[*ir.BasicBlock]bool)
	var order []*ir.BasicBlock
	var dfs func(b *ir.BasicBlock)
	dfs = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range succs(b) {
			dfs(s)
		}
		order = append(order, b)
	}
	dfs(entry)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func appendUnique(list []*ir.BasicBlock, b *ir.BasicBlock) []*ir.BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}
