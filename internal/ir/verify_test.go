package ir

import (
	"strings"
	"testing"

	"github.com/tarn-lang/tarn/internal/types"
)

// TestVerifyEmptyMain covers the smallest valid module: main returning
// i32 with a single ret.
func TestVerifyEmptyMain(t *testing.T) {
	m := NewModule()
	main := m.NewFunction("main", types.NewFunc(i32, nil))
	bld := NewBuilder(m)
	bld.SetPosEnd(main.NewEntry("entry"))
	bld.MakeReturn(m.ConstInt(i32, 0))

	if err := Verify(m); err != nil {
		t.Fatalf("valid module rejected: %v", err)
	}
}

func TestVerifyMissingTerminator(t *testing.T) {
	m, _, bld := testFunc(t)
	bld.MakeBinary(OpAdd, m.ConstInt(i32, 1), m.ConstInt(i32, 2))

	wantDiag(t, m, "no terminator")
}

func TestVerifyNonLastTerminator(t *testing.T) {
	m, _, bld := testFunc(t)
	bld.MakeReturn(m.ConstInt(i32, 0))
	// Force an instruction after the terminator.
	bld.Block().PushBack(NewBinary(VAdd, m.ConstInt(i32, 1), m.ConstInt(i32, 2)))

	wantDiag(t, m, "not the last instruction")
}

func TestVerifyStoreTypeMismatch(t *testing.T) {
	m, _, bld := testFunc(t)
	slot := bld.MakeAlloca(i32, false)
	bld.MakeStore(m.ConstFloat(types.Typ[types.Float32], 1), slot)
	bld.MakeReturn(m.ConstInt(i32, 0))

	wantDiag(t, m, "store of float")
}

func TestVerifyBinaryOperandMismatch(t *testing.T) {
	m, f, bld := testFunc(t)
	bad := NewBinary(VAdd, f.Arg(0), m.ConstInt(types.Typ[types.Int64], 1))
	bld.Block().PushBack(bad)
	bld.SetPosEnd(bld.Block())
	bld.MakeReturn(f.Arg(0))

	wantDiag(t, m, "operand types differ")
}

func TestVerifyReturnTypeMismatch(t *testing.T) {
	m, _, bld := testFunc(t)
	bld.MakeReturn(m.ConstFloat(types.Typ[types.Float32], 0))

	wantDiag(t, m, "ret float")
}

func TestVerifyPhiPredecessorMismatch(t *testing.T) {
	m, f, bld := testFunc(t)
	entry := bld.Block()
	join := f.NewBlock("join")
	bld.MakeBranch(join)

	bld.SetPosEnd(join)
	phi := bld.MakePhi(i32)
	// One predecessor, but two incoming pairs.
	phi.AddIncoming(m.ConstInt(i32, 1), entry)
	phi.AddIncoming(m.ConstInt(i32, 2), join)
	bld.MakeReturn(phi)

	wantDiag(t, m, "phi has 2 incoming pairs")
	wantDiag(t, m, "not a predecessor")
}

func TestVerifyUseBeforeDef(t *testing.T) {
	m, f, bld := testFunc(t)
	entry := bld.Block()
	later := NewBinary(VAdd, f.Arg(0), m.ConstInt(i32, 1))
	use := NewBinary(VMul, later, m.ConstInt(i32, 2))
	entry.PushBack(use)
	entry.PushBack(later)
	bld.SetPosEnd(entry)
	bld.MakeReturn(use)

	wantDiag(t, m, "used before its definition")
}

func TestVerifyCrossBlockDominance(t *testing.T) {
	m, f, bld := testFunc(t)
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	cond := bld.MakeCmp(CmpLT, f.Arg(0), m.ConstInt(i32, 0))
	bld.MakeCondBranch(cond, left, right)

	bld.SetPosEnd(left)
	def := bld.MakeBinary(OpAdd, f.Arg(0), m.ConstInt(i32, 1))
	bld.MakeBranch(join)

	bld.SetPosEnd(right)
	bld.MakeBranch(join)

	// join uses a value defined only on the left path.
	bld.SetPosEnd(join)
	bld.MakeReturn(def)

	wantDiag(t, m, "does not dominate")
}

func TestVerifyDuplicateNamesRejectedAtConstruction(t *testing.T) {
	m := NewModule()
	m.NewFunction("f", types.NewFunc(i32, nil))
	defer func() {
		if recover() == nil {
			t.Error("duplicate function name accepted")
		}
	}()
	m.NewFunction("f", types.NewFunc(i32, nil))
}

func TestVerifyDeclaration(t *testing.T) {
	m := NewModule()
	m.NewFunction("getint", types.NewFunc(i32, nil))

	if err := Verify(m); err != nil {
		t.Fatalf("declaration rejected: %v", err)
	}
}

func TestVerifyArgumentArity(t *testing.T) {
	m := NewModule()
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	bld := NewBuilder(m)
	bld.SetPosEnd(f.NewEntry("entry"))
	bld.MakeReturn(f.Arg(0))
	// Call with the wrong number of arguments.
	g := m.NewFunction("g", types.NewFunc(i32, nil))
	bld.SetPosEnd(g.NewEntry("entry"))
	call := bld.MakeCall(f, nil)
	bld.MakeReturn(call)

	wantDiag(t, m, "call of f with 0 arguments")
}

func TestVerifyUnreachableWarning(t *testing.T) {
	m, _, bld := testFunc(t)
	bld.MakeReturn(m.ConstInt(i32, 0))
	dead := bld.Block().Parent().NewBlock("dead")
	bld.SetPosEnd(dead)
	bld.MakeReturn(m.ConstInt(i32, 1))

	errs, warns, ok := Diagnostics(m)
	if !ok {
		t.Fatalf("unreachable block failed verification: %v", errs)
	}
	if len(warns) == 0 || !strings.Contains(warns[0], "unreachable") {
		t.Errorf("expected unreachable warning, got %v", warns)
	}
}

// wantDiag asserts that verification fails and some diagnostic contains
// the substring.
func wantDiag(t *testing.T, m *Module, substr string) {
	t.Helper()
	err := Verify(m)
	if err == nil {
		t.Fatalf("expected verification failure containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("diagnostics missing %q:\n%v", substr, err)
	}
}
