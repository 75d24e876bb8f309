package analysis

import (
	"github.com/tarn-lang/tarn/internal/ir"
)

// SideEffectInfo summarizes, per function, whether calling it can read
// or write memory observable by the caller. Declarations fall back to
// their attribute bits; definitions are summarized from their bodies
// with effects propagated over the call graph until a fixed point.
type SideEffectInfo struct {
	module *ir.Module
	valid  bool

	reads  map[*ir.Function]bool
	writes map[*ir.Function]bool
}

// NewSideEffectInfo returns an unrefreshed side-effect summary for m.
func NewSideEffectInfo(m *ir.Module) *SideEffectInfo {
	return &SideEffectInfo{module: m}
}

// SetOff marks the summary stale.
func (se *SideEffectInfo) SetOff() { se.valid = false }

// Valid reports whether the summary reflects the last Refresh.
func (se *SideEffectInfo) Valid() bool { return se.valid }

// Refresh rebuilds the summary from the IR if it is stale.
func (se *SideEffectInfo) Refresh() {
	if se.valid {
		return
	}
	se.reads = make(map[*ir.Function]bool)
	se.writes = make(map[*ir.Function]bool)

	for _, f := range se.module.Funcs() {
		if f.IsDeclaration() {
			se.reads[f] = !f.HasAttr(ir.AttrNoMemoryRead)
			se.writes[f] = !f.HasAttr(ir.AttrNoMemoryWrite)
			continue
		}
		se.reads[f], se.writes[f] = directEffects(f)
	}

	// Propagate callee effects to callers until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, f := range se.module.Funcs() {
			if f.IsDeclaration() {
				continue
			}
			for _, b := range f.Blocks() {
				for i := b.First(); i != nil; i = i.Next() {
					call, ok := i.(*ir.CallInst)
					if !ok {
						continue
					}
					callee := call.Callee()
					if se.reads[callee] && !se.reads[f] {
						se.reads[f] = true
						changed = true
					}
					if se.writes[callee] && !se.writes[f] {
						se.writes[f] = true
						changed = true
					}
				}
			}
		}
	}
	se.valid = true
}

// directEffects scans a body for memory effects that escape the frame:
// loads and stores through anything other than a local alloca.
func directEffects(f *ir.Function) (reads, writes bool) {
	for _, b := range f.Blocks() {
		for i := b.First(); i != nil; i = i.Next() {
			switch inst := i.(type) {
			case *ir.LoadInst:
				if escapes(inst.Ptr()) {
					reads = true
				}
			case *ir.StoreInst:
				if escapes(inst.Ptr()) {
					writes = true
				}
			case *ir.MemsetInst:
				if escapes(inst.Ptr()) {
					writes = true
				}
			}
		}
	}
	return reads, writes
}

// escapes reports whether the address chain behind v leaves the
// function frame (a global or an argument rather than a local alloca).
func escapes(v ir.Value) bool {
	for {
		switch x := v.(type) {
		case *ir.AllocaInst:
			return false
		case *ir.GetElementPtrInst:
			v = x.Ptr()
		case *ir.UnaryInst:
			v = x.Val()
		default:
			return true
		}
	}
}

// Reads reports whether calling f may read caller-visible memory.
func (se *SideEffectInfo) Reads(f *ir.Function) bool { return se.reads[f] }

// Writes reports whether calling f may write caller-visible memory.
func (se *SideEffectInfo) Writes(f *ir.Function) bool { return se.writes[f] }

// HasSideEffect reports whether calling f has any observable effect.
func (se *SideEffectInfo) HasSideEffect(f *ir.Function) bool {
	return se.reads[f] || se.writes[f]
}
