// Command tarnc exposes the Tarn middle-end as a tool: it lists the
// registered passes and runs the pipeline over a synthesized module so
// the IR, the verifier, and the analyses can be exercised without a
// front-end attached.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
	"github.com/tarn-lang/tarn/internal/pass"
	"github.com/tarn-lang/tarn/internal/types"
)

const version = "0.1.0-dev"

func main() {
	app := &cli.App{
		Name:    "tarnc",
		Usage:   "Tarn middle-end driver",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging of the pass pipeline",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "passes",
				Usage:  "list the registered passes",
				Action: runPasses,
			},
			{
				Name:  "selfcheck",
				Usage: "build a sample module, run the pipeline, verify, and dump",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "passes",
						Value: "mem2reg,dce,simplifycfg",
						Usage: "comma-separated pass pipeline",
					},
					&cli.BoolFlag{
						Name:  "verify",
						Value: true,
						Usage: "verify the module after each pass",
					},
					&cli.StringFlag{
						Name:  "dump-before",
						Usage: "dump IR before this pass (\"*\" for all)",
					},
					&cli.StringFlag{
						Name:  "dump-after",
						Usage: "dump IR after this pass (\"*\" for all)",
					},
					&cli.StringFlag{
						Name:  "dump-func",
						Usage: "restrict dumps to this function",
					},
				},
				Action: runSelfcheck,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		color.Red("tarnc: %v", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

func runPasses(c *cli.Context) error {
	m := ir.NewModule()
	pm := pass.NewManager(m, analysis.NewManager(m), nil, pass.Config{})
	if err := pass.RegisterBuiltins(pm); err != nil {
		return err
	}
	for _, name := range pm.Registered() {
		fmt.Println(name)
	}
	return nil
}

func runSelfcheck(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	m := buildSample()
	m.Rename()

	if !reportVerify(m, "input") {
		return fmt.Errorf("sample module failed verification")
	}

	cache := analysis.NewManager(m)
	pm := pass.NewManager(m, cache, log, pass.Config{
		Verify:     c.Bool("verify"),
		DumpBefore: c.String("dump-before"),
		DumpAfter:  c.String("dump-after"),
		DumpFunc:   c.String("dump-func"),
		Out:        os.Stderr,
	})
	if err := pass.RegisterBuiltins(pm); err != nil {
		return err
	}

	names := strings.Split(c.String("passes"), ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	if err := pm.RunPasses(names); err != nil {
		return err
	}

	m.Rename()
	if !reportVerify(m, "output") {
		return fmt.Errorf("pipeline produced invalid IR")
	}

	reportAnalyses(m, cache)
	fmt.Println()
	ir.Fprint(os.Stdout, m)
	return nil
}

// reportVerify prints the verifier's diagnostic stream for m.
func reportVerify(m *ir.Module, stage string) bool {
	errs, warns, ok := ir.Diagnostics(m)
	for _, w := range warns {
		color.Yellow("warning (%s): %s", stage, w)
	}
	for _, e := range errs {
		color.Red("error (%s): %s", stage, e)
	}
	if ok {
		color.Green("verify (%s): ok", stage)
	}
	return ok
}

// reportAnalyses prints a one-line analysis summary per function.
func reportAnalyses(m *ir.Module, cache *analysis.Manager) {
	for _, f := range m.Funcs() {
		if f.IsDeclaration() {
			continue
		}
		dom := cache.DomTree(f)
		li := cache.LoopInfo(f)
		fmt.Printf("%s: %d blocks, %d reachable, %d loops\n",
			f.Name(), f.NumBlocks(), len(dom.RPO()), len(li.Loops()))
	}
}

// buildSample constructs
//
//	int sum(int n) {
//	  int s = 0;
//	  for (int i = 0; i < n; i = i + 1)
//	    s = s + i;
//	  return s;
//	}
//
//	int main() { return sum(10); }
//
// in unpromoted form: locals live in allocas so mem2reg has work to do.
func buildSample() *ir.Module {
	m := ir.NewModule()
	i32 := types.Typ[types.Int32]
	bld := ir.NewBuilder(m)

	sum := m.NewFunction("sum", types.NewFunc(i32, []types.Type{i32}))
	entry := sum.NewEntry("entry")
	header := sum.NewBlock("while1_judge")
	body := sum.NewBlock("while1_body")
	exit := sum.NewBlock("while1_exit")

	bld.SetPosEnd(entry)
	sSlot := bld.MakeAlloca(i32, false)
	iSlot := bld.MakeAlloca(i32, false)
	bld.MakeStore(m.ConstInt(i32, 0), sSlot)
	bld.MakeStore(m.ConstInt(i32, 0), iSlot)
	bld.MakeBranch(header)

	bld.SetPosEnd(header)
	iVal := bld.MakeLoad(iSlot)
	cond := bld.MakeCmp(ir.CmpLT, iVal, sum.Arg(0))
	bld.PushLoop(header, exit)
	bld.MakeCondBranch(cond, body, exit)

	bld.SetPosEnd(body)
	sVal := bld.MakeLoad(sSlot)
	iVal2 := bld.MakeLoad(iSlot)
	bld.MakeStore(bld.MakeBinary(ir.OpAdd, sVal, iVal2), sSlot)
	bld.MakeStore(bld.MakeBinary(ir.OpAdd, iVal2, m.ConstInt(i32, 1)), iSlot)
	bld.MakeBranch(header)
	bld.PopLoop()

	bld.SetPosEnd(exit)
	bld.MakeReturn(bld.MakeLoad(sSlot))

	main := m.NewFunction("main", types.NewFunc(i32, nil))
	main.AddAttr(ir.AttrEntry)
	mentry := main.NewEntry("entry")
	bld.SetPosEnd(mentry)
	call := bld.MakeCall(sum, []ir.Value{m.ConstInt(i32, 10)})
	bld.MakeReturn(call)

	return m
}
