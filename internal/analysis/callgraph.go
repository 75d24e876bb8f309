package analysis

import (
	"github.com/tarn-lang/tarn/internal/ir"
)

// CallGraph records the direct call edges of a module.
type CallGraph struct {
	module *ir.Module
	valid  bool

	callees map[*ir.Function][]*ir.Function
	callers map[*ir.Function][]*ir.Function
	sites   map[*ir.Function][]*ir.CallInst
}

// NewCallGraph returns an unrefreshed call graph for m.
func NewCallGraph(m *ir.Module) *CallGraph {
	return &CallGraph{module: m}
}

// SetOff marks the graph stale.
func (cg *CallGraph) SetOff() { cg.valid = false }

// Valid reports whether the graph reflects the last Refresh.
func (cg *CallGraph) Valid() bool { return cg.valid }

// Refresh rebuilds the graph from the IR if it is stale.
func (cg *CallGraph) Refresh() {
	if cg.valid {
		return
	}
	cg.callees = make(map[*ir.Function][]*ir.Function)
	cg.callers = make(map[*ir.Function][]*ir.Function)
	cg.sites = make(map[*ir.Function][]*ir.CallInst)
	for _, f := range cg.module.Funcs() {
		for _, b := range f.Blocks() {
			for i := b.First(); i != nil; i = i.Next() {
				call, ok := i.(*ir.CallInst)
				if !ok {
					continue
				}
				callee := call.Callee()
				cg.callees[f] = appendUniqueFunc(cg.callees[f], callee)
				cg.callers[callee] = appendUniqueFunc(cg.callers[callee], f)
				cg.sites[f] = append(cg.sites[f], call)
			}
		}
	}
	cg.valid = true
}

// Callees returns the functions f calls directly.
func (cg *CallGraph) Callees(f *ir.Function) []*ir.Function { return cg.callees[f] }

// Callers returns the functions that call f directly.
func (cg *CallGraph) Callers(f *ir.Function) []*ir.Function { return cg.callers[f] }

// Sites returns the call instructions inside f in block order.
func (cg *CallGraph) Sites(f *ir.Function) []*ir.CallInst { return cg.sites[f] }

// IsRecursive reports whether f can reach itself through call edges.
func (cg *CallGraph) IsRecursive(f *ir.Function) bool {
	seen := make(map[*ir.Function]bool)
	var walk func(g *ir.Function) bool
	walk = func(g *ir.Function) bool {
		for _, c := range cg.callees[g] {
			if c == f {
				return true
			}
			if !seen[c] {
				seen[c] = true
				if walk(c) {
					return true
				}
			}
		}
		return false
	}
	return walk(f)
}

func appendUniqueFunc(list []*ir.Function, f *ir.Function) []*ir.Function {
	for _, x := range list {
		if x == f {
			return list
		}
	}
	return append(list, f)
}
