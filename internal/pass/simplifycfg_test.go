package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/types"
)

// TestSimplifyCFGRemovesUnreachable drops blocks the entry cannot
// reach and fixes phis that mention them.
func TestSimplifyCFGRemovesUnreachable(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	join := f.NewBlock("join")
	dead := f.NewBlock("dead")

	bld.SetPosEnd(entry)
	x := bld.MakeBinary(ir.OpAdd, f.Arg(0), m.ConstInt(i32, 1))
	bld.MakeBranch(join)

	// dead also branches into join, so join has a phi mentioning it.
	bld.SetPosEnd(dead)
	bld.MakeBranch(join)

	bld.SetPosEnd(join)
	phi := bld.MakePhi(i32)
	phi.AddIncoming(x, entry)
	phi.AddIncoming(m.ConstInt(i32, 9), dead)
	bld.MakeReturn(phi)
	require.NoError(t, ir.Verify(m))

	am := analysis.NewManager(m)
	require.NoError(t, (&SimplifyCFG{}).Run(f, am))

	require.Len(t, f.Blocks(), 2, "dead block must be removed")
	require.Equal(t, 1, phi.NumIncoming(), "phi pair for dead block must go")
	require.Equal(t, ir.Value(x), phi.IncomingValue(0))
	require.NoError(t, ir.Verify(m))
}

// TestSimplifyCFGMergesChain splices a straight-line chain into one
// block.
func TestSimplifyCFGMergesChain(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	mid := f.NewBlock("mid")
	last := f.NewBlock("last")

	bld.SetPosEnd(entry)
	a := bld.MakeBinary(ir.OpAdd, f.Arg(0), m.ConstInt(i32, 1))
	bld.MakeBranch(mid)

	bld.SetPosEnd(mid)
	b := bld.MakeBinary(ir.OpMul, a, m.ConstInt(i32, 2))
	bld.MakeBranch(last)

	bld.SetPosEnd(last)
	bld.MakeReturn(b)
	require.NoError(t, ir.Verify(m))

	require.NoError(t, (&SimplifyCFG{}).Run(f, analysis.NewManager(m)))

	require.Len(t, f.Blocks(), 1, "chain must collapse into the entry")
	require.Equal(t, entry, f.Entry())
	require.NotNil(t, entry.Terminator())
	require.IsType(t, &ir.ReturnInst{}, entry.Terminator())
	require.NoError(t, ir.Verify(m))
}

// TestSimplifyCFGKeepsJoins never merges across a real join.
func TestSimplifyCFGKeepsJoins(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	then := f.NewBlock("then")
	els := f.NewBlock("else")
	join := f.NewBlock("join")

	bld.SetPosEnd(entry)
	cond := bld.MakeCmp(ir.CmpLT, f.Arg(0), m.ConstInt(i32, 0))
	bld.MakeCondBranch(cond, then, els)
	bld.SetPosEnd(then)
	bld.MakeBranch(join)
	bld.SetPosEnd(els)
	bld.MakeBranch(join)
	bld.SetPosEnd(join)
	bld.MakeReturn(f.Arg(0))
	require.NoError(t, ir.Verify(m))

	require.NoError(t, (&SimplifyCFG{}).Run(f, analysis.NewManager(m)))

	require.Len(t, f.Blocks(), 4, "diamond must be preserved")
	require.NoError(t, ir.Verify(m))
}

// TestSimplifyCFGNotifiesCache: the pass must leave the analysis cache
// consistent with the new CFG via CFGChanged.
func TestSimplifyCFGNotifiesCache(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	mid := f.NewBlock("mid")
	last := f.NewBlock("last")

	bld.SetPosEnd(entry)
	bld.MakeBranch(mid)
	bld.SetPosEnd(mid)
	bld.MakeBranch(last)
	bld.SetPosEnd(last)
	bld.MakeReturn(f.Arg(0))

	am := analysis.NewManager(m)
	stale := am.DomTree(f)
	require.Len(t, stale.RPO(), 3)

	require.NoError(t, (&SimplifyCFG{}).Run(f, am))

	// The pass invalidated the tree, so the getter recomputes.
	fresh := am.DomTree(f)
	require.Len(t, fresh.RPO(), 1)
}
