package ir

import (
	"testing"

	"github.com/tarn-lang/tarn/internal/types"
)

func TestBuilderInsertionOrder(t *testing.T) {
	m, _, bld := testFunc(t)
	a := bld.MakeBinary(OpAdd, m.ConstInt(i32, 1), m.ConstInt(i32, 2))
	b := bld.MakeBinary(OpMul, a, m.ConstInt(i32, 3))
	c := bld.MakeBinary(OpSub, b, a)

	got := bld.Block().Instrs()
	want := []Instr{a, b, c}
	if len(got) != len(want) {
		t.Fatalf("block has %d instructions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d out of order", i)
		}
	}
}

func TestBuilderInsertBeforePosition(t *testing.T) {
	m, _, bld := testFunc(t)
	a := bld.MakeBinary(OpAdd, m.ConstInt(i32, 1), m.ConstInt(i32, 2))
	c := bld.MakeBinary(OpSub, a, m.ConstInt(i32, 3))

	// Rewind to before c and insert b; order must become a, b, c.
	bld.SetPos(bld.Block(), c)
	b := bld.MakeBinary(OpMul, a, m.ConstInt(i32, 4))

	got := bld.Block().Instrs()
	want := []Instr{a, b, c}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instruction %d out of order after mid-block insert", i)
		}
	}
}

func TestBuilderOrphanWithoutBlock(t *testing.T) {
	m := NewModule()
	bld := NewBuilder(m)
	inst := bld.MakeBinary(OpAdd, m.ConstInt(i32, 1), m.ConstInt(i32, 2))
	if inst.Block() != nil {
		t.Error("instruction built without a block was inserted somewhere")
	}
}

// TestBuilderTerminatorRefusal pins the documented policy: terminator
// factories refuse when the block already has a terminator, returning
// nil and leaving the existing terminator untouched.
func TestBuilderTerminatorRefusal(t *testing.T) {
	m, f, bld := testFunc(t)
	ret := bld.MakeReturn(m.ConstInt(i32, 0))
	if ret == nil {
		t.Fatal("first terminator refused")
	}

	other := f.NewBlock("bb1")
	if br := bld.MakeBranch(other); br != nil {
		t.Error("second terminator accepted")
	}
	if bld.Block().Terminator() != Instr(ret) {
		t.Error("existing terminator was replaced")
	}
	if len(bld.Block().Succs()) != 0 {
		t.Error("refused branch still linked an edge")
	}
}

func TestBuilderBranchLinksCFG(t *testing.T) {
	_, f, bld := testFunc(t)
	entry := bld.Block()
	target := f.NewBlock("bb1")

	bld.MakeBranch(target)

	if len(entry.Succs()) != 1 || entry.Succs()[0] != target {
		t.Error("branch did not record successor")
	}
	if len(target.Preds()) != 1 || target.Preds()[0] != entry {
		t.Error("branch did not record predecessor")
	}
}

func TestBuilderCondBranchLinksBothEdges(t *testing.T) {
	m, f, bld := testFunc(t)
	entry := bld.Block()
	bb1 := f.NewBlock("bb1")
	bb2 := f.NewBlock("bb2")

	cond := bld.MakeCmp(CmpLT, f.Arg(0), m.ConstInt(i32, 10))
	br := bld.MakeCondBranch(cond, bb1, bb2)

	if !br.IsCond() {
		t.Error("conditional branch not marked conditional")
	}
	if br.TrueTarget() != bb1 || br.FalseTarget() != bb2 {
		t.Error("branch targets wrong")
	}
	if len(entry.Succs()) != 2 {
		t.Errorf("entry has %d successors, want 2", len(entry.Succs()))
	}
}

func TestBuilderLoopAndTFStacks(t *testing.T) {
	_, f, bld := testFunc(t)
	h1, e1 := f.NewBlock("h1"), f.NewBlock("e1")
	h2, e2 := f.NewBlock("h2"), f.NewBlock("e2")

	if bld.Header() != nil || bld.Exit() != nil {
		t.Error("fresh builder has loop context")
	}
	bld.PushLoop(h1, e1)
	bld.PushLoop(h2, e2)
	if bld.Header() != h2 || bld.Exit() != e2 {
		t.Error("inner loop not on top of stack")
	}
	bld.PopLoop()
	if bld.Header() != h1 || bld.Exit() != e1 {
		t.Error("outer loop not restored")
	}
	bld.PopLoop()

	tt, ft := f.NewBlock("t"), f.NewBlock("ft")
	bld.PushTF(tt, ft)
	if bld.TrueTarget() != tt || bld.FalseTarget() != ft {
		t.Error("short-circuit targets wrong")
	}
	bld.PopTF()
	if bld.TrueTarget() != nil {
		t.Error("popped target still visible")
	}
}

func TestCastToBool(t *testing.T) {
	m, f, bld := testFunc(t)

	// Non-constant: an icmp ne against zero.
	v := bld.CastToBool(f.Arg(0))
	cmp, ok := v.(*CmpInst)
	if !ok || cmp.ValueID() != VINe {
		t.Fatalf("CastToBool produced %T (%v), want icmp ne", v, v.ValueID())
	}
	if !types.IsBool(cmp.Type()) {
		t.Error("comparison is not i1")
	}

	// Constant folds in the constant domain.
	c := bld.CastToBool(m.ConstInt(i32, 7))
	if c != Value(m.ConstBool(true)) {
		t.Error("constant cast did not fold to true")
	}
	// Booleans pass through.
	b := m.ConstBool(false)
	if bld.CastToBool(b) != Value(b) {
		t.Error("i1 value did not pass through")
	}
}

func TestPromoteType(t *testing.T) {
	m, f, bld := testFunc(t)
	i64 := types.Typ[types.Int64]
	f32 := types.Typ[types.Float32]

	// Identity.
	if bld.PromoteType(f.Arg(0), i32) != Value(f.Arg(0)) {
		t.Error("identity promotion emitted something")
	}

	// Widening uses sext.
	w := bld.PromoteType(f.Arg(0), i64)
	if u, ok := w.(*UnaryInst); !ok || u.ValueID() != VSExt {
		t.Errorf("i32 -> i64 produced %T, want sext", w)
	}

	// Int to float uses sitofp.
	ff := bld.PromoteType(f.Arg(0), f32)
	if u, ok := ff.(*UnaryInst); !ok || u.ValueID() != VSIToFP {
		t.Errorf("i32 -> float produced %T, want sitofp", ff)
	}

	// Constants fold without instructions.
	n := bld.Block().NumInstrs()
	c := bld.PromoteType(m.ConstInt(i32, 3), f32)
	if bld.Block().NumInstrs() != n {
		t.Error("constant promotion emitted an instruction")
	}
	cc, ok := c.(*Constant)
	if !ok || cc.Float() != 3 || !types.Identical(cc.Type(), f32) {
		t.Errorf("constant promotion produced %v", c)
	}
}
