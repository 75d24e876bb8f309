package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/types"
)

func countKind(f *ir.Function, id ir.ValueID) int {
	n := 0
	for _, b := range f.Blocks() {
		for i := b.First(); i != nil; i = i.Next() {
			if i.ValueID() == id {
				n++
			}
		}
	}
	return n
}

func runMem2Reg(t *testing.T, m *ir.Module, f *ir.Function) *analysis.Manager {
	t.Helper()
	am := analysis.NewManager(m)
	require.NoError(t, (&Mem2Reg{}).Run(f, am))
	require.NoError(t, ir.Verify(m))
	return am
}

// TestMem2RegStraightLine promotes a single block: no phis needed, the
// load collapses onto the stored value.
func TestMem2RegStraightLine(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	bld.SetPosEnd(f.NewEntry("entry"))
	slot := bld.MakeAlloca(i32, false)
	bld.MakeStore(f.Arg(0), slot)
	v := bld.MakeLoad(slot)
	add := bld.MakeBinary(ir.OpAdd, v, m.ConstInt(i32, 1))
	bld.MakeReturn(add)
	require.NoError(t, ir.Verify(m))

	runMem2Reg(t, m, f)

	require.Zero(t, countKind(f, ir.VAlloca))
	require.Zero(t, countKind(f, ir.VLoad))
	require.Zero(t, countKind(f, ir.VStore))
	require.Zero(t, countKind(f, ir.VPhi), "straight line needs no phi")
	require.Equal(t, ir.Value(f.Arg(0)), add.LHS(), "load did not collapse to the store")
}

// TestMem2RegDiamond places a phi at the join of two stores.
func TestMem2RegDiamond(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	then := f.NewBlock("then")
	els := f.NewBlock("else")
	join := f.NewBlock("join")

	bld.SetPosEnd(entry)
	slot := bld.MakeAlloca(i32, false)
	cond := bld.MakeCmp(ir.CmpLT, f.Arg(0), m.ConstInt(i32, 0))
	bld.MakeCondBranch(cond, then, els)

	bld.SetPosEnd(then)
	bld.MakeStore(m.ConstInt(i32, 1), slot)
	bld.MakeBranch(join)

	bld.SetPosEnd(els)
	bld.MakeStore(m.ConstInt(i32, 2), slot)
	bld.MakeBranch(join)

	bld.SetPosEnd(join)
	ret := bld.MakeLoad(slot)
	bld.MakeReturn(ret)
	require.NoError(t, ir.Verify(m))

	runMem2Reg(t, m, f)

	require.Zero(t, countKind(f, ir.VAlloca))
	require.Equal(t, 1, countKind(f, ir.VPhi))

	phis := join.Phis()
	require.Len(t, phis, 1)
	phi := phis[0]
	require.Equal(t, 2, phi.NumIncoming())
	require.Equal(t, ir.Value(m.ConstInt(i32, 1)), phi.IncomingForBlock(then))
	require.Equal(t, ir.Value(m.ConstInt(i32, 2)), phi.IncomingForBlock(els))

	term := join.Terminator().(*ir.ReturnInst)
	require.Equal(t, ir.Value(phi), term.Value())
}

// TestMem2RegLoop promotes the loop counter and accumulator into header
// phis.
func TestMem2RegLoop(t *testing.T) {
	m := ir.NewModule()
	f := buildLoopSum(t, m)

	runMem2Reg(t, m, f)

	require.Zero(t, countKind(f, ir.VAlloca))
	require.Zero(t, countKind(f, ir.VLoad))
	require.Zero(t, countKind(f, ir.VStore))
	require.Equal(t, 2, countKind(f, ir.VPhi), "s and i become header phis")

	// The promoted counter is now a recognizable induction variable.
	am := analysis.NewManager(m)
	li := am.LoopInfo(f)
	require.Len(t, li.Loops(), 1)
	iv := am.IndVarInfo(f)
	require.NotEmpty(t, iv.IndVars(li.Loops()[0]))
}

// TestMem2RegEscapedAllocaKept leaves an alloca whose address escapes
// untouched.
func TestMem2RegEscapedAllocaKept(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	ptr := types.NewPointer(i32)
	sink := m.NewFunction("sink", types.NewFunc(types.Typ[types.Void], []types.Type{ptr}))

	f := m.NewFunction("f", types.NewFunc(i32, nil))
	bld.SetPosEnd(f.NewEntry("entry"))
	slot := bld.MakeAlloca(i32, false)
	bld.MakeStore(m.ConstInt(i32, 1), slot)
	bld.MakeCall(sink, []ir.Value{slot}) // address escapes
	bld.MakeReturn(bld.MakeLoad(slot))
	require.NoError(t, ir.Verify(m))

	runMem2Reg(t, m, f)

	require.Equal(t, 1, countKind(f, ir.VAlloca), "escaped alloca must survive")
	require.Equal(t, 1, countKind(f, ir.VLoad))
	require.Equal(t, 1, countKind(f, ir.VStore))
}

// TestMem2RegArrayAllocaKept leaves aggregate allocas alone.
func TestMem2RegArrayAllocaKept(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	arr := types.NewArray(i32, []int64{4})

	f := m.NewFunction("f", types.NewFunc(i32, nil))
	bld.SetPosEnd(f.NewEntry("entry"))
	slot := bld.MakeAlloca(arr, false)
	gep := bld.MakeGEP(arr, slot, m.ConstInt(i32, 0), []int64{4}, []int64{4})
	bld.MakeStore(m.ConstInt(i32, 7), gep)
	bld.MakeReturn(bld.MakeLoad(gep))
	require.NoError(t, ir.Verify(m))

	runMem2Reg(t, m, f)
	require.Equal(t, 1, countKind(f, ir.VAlloca))
}

// TestMem2RegLoadBeforeStoreSeesUndef: a load with no dominating store
// observes undef rather than breaking SSA form.
func TestMem2RegLoadBeforeStoreSeesUndef(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, nil))
	bld.SetPosEnd(f.NewEntry("entry"))
	slot := bld.MakeAlloca(i32, false)
	v := bld.MakeLoad(slot)
	ret := bld.MakeReturn(v)
	require.NoError(t, ir.Verify(m))

	runMem2Reg(t, m, f)

	c, ok := ret.Value().(*ir.Constant)
	require.True(t, ok, "return should now yield a constant, got %T", ret.Value())
	require.True(t, c.IsUndef())
}
