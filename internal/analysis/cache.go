package analysis

import (
	"github.com/tarn-lang/tarn/internal/ir"
)

// Manager caches analysis results for one module: a slot per function
// per analysis kind, plus module-level slots for the call graph and the
// side-effect summary. Results are computed on first request and kept
// until explicitly invalidated.
//
// Invalidation is coarse and explicit: a pass that mutates a function's
// CFG must call CFGChanged, one that changes call structure must call
// CallChanged, one that rewrites induction variables must call
// IndVarChanged. A forgotten notification leaves stale results behind;
// nothing here detects that.
type Manager struct {
	module *ir.Module

	callGraph  *CallGraph
	sideEffect *SideEffectInfo

	dom    map[*ir.Function]*DomTree
	pdom   map[*ir.Function]*PostDomTree
	loop   map[*ir.Function]*LoopInfo
	indvar map[*ir.Function]*IndVarInfo
	dep    map[*ir.Function]*DependenceInfo
	par    map[*ir.Function]*ParallelInfo
}

// NewManager returns an empty analysis cache for m.
func NewManager(m *ir.Module) *Manager {
	return &Manager{
		module:     m,
		callGraph:  NewCallGraph(m),
		sideEffect: NewSideEffectInfo(m),
		dom:        make(map[*ir.Function]*DomTree),
		pdom:       make(map[*ir.Function]*PostDomTree),
		loop:       make(map[*ir.Function]*LoopInfo),
		indvar:     make(map[*ir.Function]*IndVarInfo),
		dep:        make(map[*ir.Function]*DependenceInfo),
		par:        make(map[*ir.Function]*ParallelInfo),
	}
}

// Module returns the module under analysis.
func (am *Manager) Module() *ir.Module { return am.module }

// addFunc lazily allocates the per-function slots.
func (am *Manager) addFunc(f *ir.Function) {
	if _, ok := am.dom[f]; ok {
		return
	}
	am.dom[f] = NewDomTree(f, am)
	am.pdom[f] = NewPostDomTree(f, am)
	am.loop[f] = NewLoopInfo(f, am)
	am.indvar[f] = NewIndVarInfo(f, am)
	am.dep[f] = NewDependenceInfo(f, am)
	am.par[f] = NewParallelInfo(f, am)
}

// DomTree returns the refreshed dominator tree of f, or nil for a
// declaration.
func (am *Manager) DomTree(f *ir.Function) *DomTree {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	t := am.dom[f]
	t.Refresh()
	return t
}

// DomTreeNoRefresh returns whatever dominator tree is cached for f
// without recomputing a stale one. Used inside analysis construction to
// avoid recursion; a fresh slot is still computed once.
func (am *Manager) DomTreeNoRefresh(f *ir.Function) *DomTree {
	if f.IsDeclaration() {
		return nil
	}
	if _, ok := am.dom[f]; !ok {
		am.addFunc(f)
		am.dom[f].Refresh()
	}
	return am.dom[f]
}

// PostDomTree returns the refreshed post-dominator tree of f, or nil
// for a declaration.
func (am *Manager) PostDomTree(f *ir.Function) *PostDomTree {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	t := am.pdom[f]
	t.Refresh()
	return t
}

// PostDomTreeNoRefresh returns the cached post-dominator tree of f.
func (am *Manager) PostDomTreeNoRefresh(f *ir.Function) *PostDomTree {
	if f.IsDeclaration() {
		return nil
	}
	if _, ok := am.pdom[f]; !ok {
		am.addFunc(f)
		am.pdom[f].Refresh()
	}
	return am.pdom[f]
}

// LoopInfo returns the refreshed loop analysis of f, or nil for a
// declaration.
func (am *Manager) LoopInfo(f *ir.Function) *LoopInfo {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	li := am.loop[f]
	li.Refresh()
	return li
}

// LoopInfoNoRefresh returns the cached loop analysis of f.
func (am *Manager) LoopInfoNoRefresh(f *ir.Function) *LoopInfo {
	if f.IsDeclaration() {
		return nil
	}
	if _, ok := am.loop[f]; !ok {
		am.addFunc(f)
		am.loop[f].Refresh()
	}
	return am.loop[f]
}

// IndVarInfo returns the induction variable analysis of f, or nil for
// a declaration. Induction variables are cheap and fragile, so the slot
// is recomputed on every request.
func (am *Manager) IndVarInfo(f *ir.Function) *IndVarInfo {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	iv := am.indvar[f]
	iv.SetOff()
	iv.Refresh()
	return iv
}

// IndVarInfoNoRefresh returns the cached induction variable analysis.
func (am *Manager) IndVarInfoNoRefresh(f *ir.Function) *IndVarInfo {
	if f.IsDeclaration() {
		return nil
	}
	if _, ok := am.indvar[f]; !ok {
		am.addFunc(f)
		am.indvar[f].Refresh()
	}
	return am.indvar[f]
}

// DependenceInfo returns the dependence summary of f, or nil for a
// declaration. Recomputed on every request, like IndVarInfo.
func (am *Manager) DependenceInfo(f *ir.Function) *DependenceInfo {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	di := am.dep[f]
	di.SetOff()
	di.Refresh()
	return di
}

// DependenceInfoNoRefresh returns the cached dependence summary.
func (am *Manager) DependenceInfoNoRefresh(f *ir.Function) *DependenceInfo {
	if f.IsDeclaration() {
		return nil
	}
	if _, ok := am.dep[f]; !ok {
		am.addFunc(f)
		am.dep[f].Refresh()
	}
	return am.dep[f]
}

// ParallelInfo returns the parallel store of f, or nil for a
// declaration. The store is never refreshed; passes own its contents.
func (am *Manager) ParallelInfo(f *ir.Function) *ParallelInfo {
	if f.IsDeclaration() {
		return nil
	}
	am.addFunc(f)
	return am.par[f]
}

// CallGraph returns the refreshed call graph.
func (am *Manager) CallGraph() *CallGraph {
	am.callGraph.Refresh()
	return am.callGraph
}

// CallGraphNoRefresh returns the cached call graph.
func (am *Manager) CallGraphNoRefresh() *CallGraph { return am.callGraph }

// SideEffectInfo returns the side-effect summary, recomputed on every
// request.
func (am *Manager) SideEffectInfo() *SideEffectInfo {
	am.sideEffect.SetOff()
	am.sideEffect.Refresh()
	return am.sideEffect
}

// SideEffectInfoNoRefresh returns the cached side-effect summary.
func (am *Manager) SideEffectInfoNoRefresh() *SideEffectInfo { return am.sideEffect }

// CFGChanged invalidates every CFG-derived analysis of f: dominator
// trees, loops, and induction variables.
func (am *Manager) CFGChanged(f *ir.Function) {
	if f.IsDeclaration() {
		return
	}
	if _, ok := am.dom[f]; !ok {
		return
	}
	am.dom[f].SetOff()
	am.pdom[f].SetOff()
	am.loop[f].SetOff()
	am.indvar[f].SetOff()
	am.dep[f].SetOff()
}

// CallChanged invalidates the call graph.
func (am *Manager) CallChanged() { am.callGraph.SetOff() }

// IndVarChanged invalidates the induction variable analysis of f.
func (am *Manager) IndVarChanged(f *ir.Function) {
	if f.IsDeclaration() {
		return
	}
	if iv, ok := am.indvar[f]; ok {
		iv.SetOff()
	}
}
