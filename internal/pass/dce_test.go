package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/types"
)

func runDCE(t *testing.T, m *ir.Module, f *ir.Function) {
	t.Helper()
	require.NoError(t, (&DCE{}).Run(f, analysis.NewManager(m)))
	require.NoError(t, ir.Verify(m))
}

// TestDCERemovesDeadChain deletes an unused computation and chases its
// operands transitively.
func TestDCERemovesDeadChain(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	f := m.NewFunction("f", types.NewFunc(i32, []types.Type{i32}))
	bld.SetPosEnd(f.NewEntry("entry"))

	dead1 := bld.MakeBinary(ir.OpAdd, f.Arg(0), m.ConstInt(i32, 1))
	bld.MakeBinary(ir.OpMul, dead1, m.ConstInt(i32, 2)) // dead2, unused
	live := bld.MakeBinary(ir.OpSub, f.Arg(0), m.ConstInt(i32, 3))
	bld.MakeReturn(live)
	require.NoError(t, ir.Verify(m))

	runDCE(t, m, f)

	require.Zero(t, countKind(f, ir.VAdd), "dead add must go once its user is gone")
	require.Zero(t, countKind(f, ir.VMul))
	require.Equal(t, 1, countKind(f, ir.VSub))
}

// TestDCEKeepsStoresAndTerminators never touches effectful or
// control-flow instructions.
func TestDCEKeepsStoresAndTerminators(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	g := m.NewGlobal("g", i32, false, nil)
	f := m.NewFunction("f", types.NewFunc(types.Typ[types.Void], nil))
	bld.SetPosEnd(f.NewEntry("entry"))
	bld.MakeStore(m.ConstInt(i32, 1), g)
	bld.MakeReturn(nil)

	runDCE(t, m, f)

	require.Equal(t, 1, countKind(f, ir.VStore))
	require.Equal(t, 1, countKind(f, ir.VReturn))
}

// TestDCECallSideEffects deletes unused calls only when the summary
// clears the callee.
func TestDCECallSideEffects(t *testing.T) {
	m := ir.NewModule()
	bld := ir.NewBuilder(m)
	g := m.NewGlobal("g", i32, false, nil)

	// pureFn computes locally; impureFn writes a global.
	pureFn := m.NewFunction("pure", types.NewFunc(i32, nil))
	bld.SetPosEnd(pureFn.NewEntry("entry"))
	bld.MakeReturn(m.ConstInt(i32, 1))

	impureFn := m.NewFunction("impure", types.NewFunc(i32, nil))
	bld.SetPosEnd(impureFn.NewEntry("entry"))
	bld.MakeStore(m.ConstInt(i32, 2), g)
	bld.MakeReturn(m.ConstInt(i32, 0))

	f := m.NewFunction("f", types.NewFunc(i32, nil))
	bld.SetPosEnd(f.NewEntry("entry"))
	bld.MakeCall(pureFn, nil)   // dead: pure and unused
	bld.MakeCall(impureFn, nil) // kept: writes memory
	bld.MakeReturn(m.ConstInt(i32, 0))
	require.NoError(t, ir.Verify(m))

	runDCE(t, m, f)

	calls := countKind(f, ir.VCall)
	require.Equal(t, 1, calls, "pure call removed, impure call kept")
	sites := analysis.NewManager(m).CallGraph().Sites(f)
	require.Len(t, sites, 1)
	require.Equal(t, impureFn, sites[0].Callee())
}

// TestDCEKeepsUsedValues leaves anything with a remaining use alone.
func TestDCEKeepsUsedValues(t *testing.T) {
	m := ir.NewModule()
	f := buildLoopSum(t, m)
	before := countKind(f, ir.VLoad)

	runDCE(t, m, f)

	require.Equal(t, before, countKind(f, ir.VLoad), "used loads must survive")
}
