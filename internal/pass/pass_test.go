package pass

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/types"
)

var i32 = types.Typ[types.Int32]

// newPipeline returns a pass manager for m with the builtin passes
// registered, and the analysis cache it hands to passes.
func newPipeline(t *testing.T, m *ir.Module, cfg Config) (*Manager, *analysis.Manager) {
	t.Helper()
	cache := analysis.NewManager(m)
	pm := NewManager(m, cache, nil, cfg)
	require.NoError(t, RegisterBuiltins(pm))
	return pm, cache
}

// buildLoopSum constructs the canonical unpromoted loop:
//
//	int sum(int n) { s = 0; for (i = 0; i < n; i++) s += i; return s; }
//
// with s and i living in allocas.
func buildLoopSum(t *testing.T, m *ir.Module) *ir.Function {
	t.Helper()
	bld := ir.NewBuilder(m)

	f := m.NewFunction("sum", types.NewFunc(i32, []types.Type{i32}))
	entry := f.NewEntry("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	bld.SetPosEnd(entry)
	s := bld.MakeAlloca(i32, false)
	i := bld.MakeAlloca(i32, false)
	bld.MakeStore(m.ConstInt(i32, 0), s)
	bld.MakeStore(m.ConstInt(i32, 0), i)
	bld.MakeBranch(header)

	bld.SetPosEnd(header)
	iv := bld.MakeLoad(i)
	cond := bld.MakeCmp(ir.CmpLT, iv, f.Arg(0))
	bld.MakeCondBranch(cond, body, exit)

	bld.SetPosEnd(body)
	sv := bld.MakeLoad(s)
	iv2 := bld.MakeLoad(i)
	bld.MakeStore(bld.MakeBinary(ir.OpAdd, sv, iv2), s)
	bld.MakeStore(bld.MakeBinary(ir.OpAdd, iv2, m.ConstInt(i32, 1)), i)
	bld.MakeBranch(header)

	bld.SetPosEnd(exit)
	bld.MakeReturn(bld.MakeLoad(s))

	require.NoError(t, ir.Verify(m))
	return f
}

func TestUnknownPassIsHardError(t *testing.T) {
	m := ir.NewModule()
	pm, _ := newPipeline(t, m, Config{})

	err := pm.RunPasses([]string{"mem2reg", "no-such-pass"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ir.ErrUnknownPass))
	require.Contains(t, err.Error(), "no-such-pass")
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	m := ir.NewModule()
	pm, _ := newPipeline(t, m, Config{})
	err := pm.Register(&DCE{})
	require.Error(t, err)
}

func TestRegisteredOrder(t *testing.T) {
	m := ir.NewModule()
	pm, _ := newPipeline(t, m, Config{})
	require.Equal(t, []string{"mem2reg", "dce", "simplifycfg"}, pm.Registered())
}

// recordingPass remembers which units it visited.
type recordingPass struct {
	name  string
	funcs []string
}

func (p *recordingPass) Name() string { return p.name }

func (p *recordingPass) Run(f *ir.Function, am *analysis.Manager) error {
	p.funcs = append(p.funcs, f.Name())
	return nil
}

func TestFunctionPassSkipsDeclarations(t *testing.T) {
	m := ir.NewModule()
	buildLoopSum(t, m)
	m.NewFunction("getint", types.NewFunc(i32, nil)) // declaration

	pm, _ := newPipeline(t, m, Config{})
	rec := &recordingPass{name: "record"}
	require.NoError(t, pm.Register(rec))
	require.NoError(t, pm.RunPasses([]string{"record"}))
	require.Equal(t, []string{"sum"}, rec.funcs)
}

// breakingPass produces invalid IR to exercise the verify hook.
type breakingPass struct{}

func (*breakingPass) Name() string { return "break" }

func (*breakingPass) Run(f *ir.Function, am *analysis.Manager) error {
	// Drop the entry block's terminator.
	b := f.Entry()
	term := b.Terminator()
	term.UnuseAll()
	b.Remove(term)
	return nil
}

func TestVerifyHookCatchesBrokenPass(t *testing.T) {
	m := ir.NewModule()
	buildLoopSum(t, m)

	pm, _ := newPipeline(t, m, Config{Verify: true})
	require.NoError(t, pm.Register(&breakingPass{}))

	err := pm.RunPasses([]string{"break"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "verify after break")
}

func TestFullPipeline(t *testing.T) {
	m := ir.NewModule()
	buildLoopSum(t, m)

	pm, _ := newPipeline(t, m, Config{Verify: true})
	require.NoError(t, pm.RunPasses([]string{"mem2reg", "dce", "simplifycfg"}))
	require.NoError(t, ir.Verify(m))
}
