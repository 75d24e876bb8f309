package analysis

import (
	"github.com/tarn-lang/tarn/internal/ir"
)

// IndVar describes a basic induction variable of a loop: a header phi
// whose value starts at Init coming from outside the loop and advances
// by Step through an add on every back edge.
type IndVar struct {
	Phi  *ir.PhiInst
	Init ir.Value
	Step *ir.Constant
	Next *ir.BinaryInst // the add feeding the back edge
}

// IndVarInfo holds the basic induction variables per loop.
type IndVarInfo struct {
	fn    *ir.Function
	am    *Manager
	valid bool

	byLoop map[*Loop][]*IndVar
}

// NewIndVarInfo returns an unrefreshed induction variable analysis.
func NewIndVarInfo(f *ir.Function, am *Manager) *IndVarInfo {
	return &IndVarInfo{fn: f, am: am}
}

// SetOff marks the analysis stale.
func (iv *IndVarInfo) SetOff() { iv.valid = false }

// Valid reports whether the analysis reflects the last Refresh.
func (iv *IndVarInfo) Valid() bool { return iv.valid }

// IndVars returns the induction variables of a loop.
func (iv *IndVarInfo) IndVars(l *Loop) []*IndVar { return iv.byLoop[l] }

// Refresh recomputes the analysis from the IR if it is stale.
func (iv *IndVarInfo) Refresh() {
	if iv.valid {
		return
	}
	iv.byLoop = make(map[*Loop][]*IndVar)
	li := iv.am.LoopInfo(iv.fn)
	if li == nil {
		return
	}
	for _, l := range li.Loops() {
		iv.byLoop[l] = findIndVars(l)
	}
	iv.valid = true
}

// findIndVars matches header phis of the form
//
//	%i = phi [ init, preheader ], [ %next, latch ]
//	%next = add %i, step
//
// with a constant step and the next value defined inside the loop.
func findIndVars(l *Loop) []*IndVar {
	var out []*IndVar
	for _, phi := range l.Header().Phis() {
		if phi.NumIncoming() != 2 {
			continue
		}
		var init ir.Value
		var next ir.Value
		for j := 0; j < 2; j++ {
			if l.Contains(phi.IncomingBlock(j)) {
				next = phi.IncomingValue(j)
			} else {
				init = phi.IncomingValue(j)
			}
		}
		if init == nil || next == nil {
			continue
		}
		add, ok := next.(*ir.BinaryInst)
		if !ok || add.ValueID() != ir.VAdd || !l.Contains(add.Block()) {
			continue
		}
		var step *ir.Constant
		switch {
		case add.LHS() == ir.Value(phi):
			step, _ = add.RHS().(*ir.Constant)
		case add.RHS() == ir.Value(phi):
			step, _ = add.LHS().(*ir.Constant)
		}
		if step == nil {
			continue
		}
		out = append(out, &IndVar{Phi: phi, Init: init, Step: step, Next: add})
	}
	return out
}
