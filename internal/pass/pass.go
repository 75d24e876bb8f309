// Package pass provides the transformation framework of the middle-end:
// typed pass interfaces, a name registry, and the manager that runs an
// ordered pipeline over a module.
package pass

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tarn-lang/tarn/internal/analysis"
	"github.com/tarn-lang/tarn/internal/ir"
)

// ModulePass runs once over the whole module.
type ModulePass interface {
	Name() string
	Run(m *ir.Module, am *analysis.Manager) error
}

// FunctionPass runs over every function definition in module order.
type FunctionPass interface {
	Name() string
	Run(f *ir.Function, am *analysis.Manager) error
}

// BasicBlockPass runs over every block of every function definition.
type BasicBlockPass interface {
	Name() string
	Run(b *ir.BasicBlock, am *analysis.Manager) error
}

// Config controls pipeline execution behavior.
type Config struct {
	Verify     bool      // verify the module after each pass
	DumpBefore string    // dump IR before this pass ("*" for all)
	DumpAfter  string    // dump IR after this pass ("*" for all)
	DumpFunc   string    // restrict dumps to this function name
	Out        io.Writer // dump destination; defaults to stderr
}

// Manager owns the pass registry and runs pipelines. Passes that mutate
// the CFG or the call structure must notify the analysis cache
// themselves (CFGChanged and friends); the manager only drives
// execution.
type Manager struct {
	module *ir.Module
	cache  *analysis.Manager
	log    *zap.Logger
	cfg    Config

	registry map[string]any
	order    []string
}

// NewManager returns a pass manager for m using the given analysis
// cache. A nil logger disables pipeline logging.
func NewManager(m *ir.Module, cache *analysis.Manager, log *zap.Logger, cfg Config) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}
	return &Manager{
		module:   m,
		cache:    cache,
		log:      log,
		cfg:      cfg,
		registry: make(map[string]any),
	}
}

// Cache returns the analysis cache the manager hands to passes.
func (pm *Manager) Cache() *analysis.Manager { return pm.cache }

// Register adds a pass to the registry. The pass must implement exactly
// one of ModulePass, FunctionPass, or BasicBlockPass; duplicate names
// are rejected.
func (pm *Manager) Register(p any) error {
	name, err := passName(p)
	if err != nil {
		return err
	}
	if _, ok := pm.registry[name]; ok {
		return errors.Errorf("pass %q registered twice", name)
	}
	pm.registry[name] = p
	pm.order = append(pm.order, name)
	return nil
}

// Registered returns the registered pass names in registration order.
func (pm *Manager) Registered() []string {
	return append([]string(nil), pm.order...)
}

// Lookup returns the registered pass with the given name.
func (pm *Manager) Lookup(name string) (any, error) {
	p, ok := pm.registry[name]
	if !ok {
		return nil, errors.Wrapf(ir.ErrUnknownPass, "%q", name)
	}
	return p, nil
}

// RunPasses looks up each name in order and runs the pass on its unit
// kind: module passes once, function passes over every definition,
// block passes over every block of every definition. An unknown name is
// a hard error and stops the pipeline before it starts.
func (pm *Manager) RunPasses(names []string) error {
	passes := make([]any, len(names))
	for i, name := range names {
		p, err := pm.Lookup(name)
		if err != nil {
			return err
		}
		passes[i] = p
	}
	for i, p := range passes {
		if err := pm.runOne(names[i], p); err != nil {
			return err
		}
	}
	return nil
}

func (pm *Manager) runOne(name string, p any) error {
	pm.dump(pm.cfg.DumpBefore, name, "before")

	start := time.Now()
	var err error
	switch pass := p.(type) {
	case ModulePass:
		err = pass.Run(pm.module, pm.cache)
	case FunctionPass:
		for _, f := range pm.module.Funcs() {
			if f.IsDeclaration() {
				continue
			}
			if err = pass.Run(f, pm.cache); err != nil {
				break
			}
		}
	case BasicBlockPass:
		for _, f := range pm.module.Funcs() {
			if f.IsDeclaration() {
				continue
			}
			// Snapshot: block passes may split or remove blocks.
			for _, b := range append([]*ir.BasicBlock(nil), f.Blocks()...) {
				if err = pass.Run(b, pm.cache); err != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		return errors.Wrapf(err, "pass %s", name)
	}
	pm.log.Debug("pass finished",
		zap.String("pass", name),
		zap.Duration("elapsed", time.Since(start)))

	if pm.cfg.Verify {
		if err := ir.Verify(pm.module); err != nil {
			return errors.Wrapf(err, "verify after %s", name)
		}
	}
	pm.dump(pm.cfg.DumpAfter, name, "after")
	return nil
}

func (pm *Manager) dump(pattern, name, when string) {
	if pattern != "*" && pattern != name {
		return
	}
	for _, f := range pm.module.Funcs() {
		if f.IsDeclaration() {
			continue
		}
		if pm.cfg.DumpFunc != "" && pm.cfg.DumpFunc != f.Name() {
			continue
		}
		fmt.Fprintf(pm.cfg.Out, "--- %s %s (%s) ---\n", when, name, f.Name())
		ir.FprintFunc(pm.cfg.Out, f)
		fmt.Fprintln(pm.cfg.Out)
	}
}

func passName(p any) (string, error) {
	switch pass := p.(type) {
	case ModulePass:
		return pass.Name(), nil
	case FunctionPass:
		return pass.Name(), nil
	case BasicBlockPass:
		return pass.Name(), nil
	}
	return "", errors.Errorf("pass %T implements no pass interface", p)
}

// RegisterBuiltins registers the passes shipped with the middle-end.
func RegisterBuiltins(pm *Manager) error {
	for _, p := range []any{
		&Mem2Reg{},
		&DCE{},
		&SimplifyCFG{},
	} {
		if err := pm.Register(p); err != nil {
			return err
		}
	}
	return nil
}
