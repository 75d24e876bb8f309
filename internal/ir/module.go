package ir

import (
	"github.com/tarn-lang/tarn/internal/types"
)

// Module is a compilation unit: the arena, the functions, and the
// global variables, with unique-name lookup for both.
type Module struct {
	arena Arena

	funcs     []*Function
	funcTable map[string]*Function

	globals     []*GlobalVariable
	globalTable map[string]*GlobalVariable

	constants map[constKey]*Constant
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{
		funcTable:   make(map[string]*Function),
		globalTable: make(map[string]*GlobalVariable),
		constants:   make(map[constKey]*Constant),
	}
}

// Arena returns the module's arena.
func (m *Module) Arena() *Arena { return &m.arena }

// Funcs returns the functions in insertion order.
func (m *Module) Funcs() []*Function { return m.funcs }

// Globals returns the global variables in insertion order.
func (m *Module) Globals() []*GlobalVariable { return m.globals }

// MainFunction returns the function named "main", or nil.
func (m *Module) MainFunction() *Function { return m.FindFunction("main") }

// FindFunction returns the function with the given name, or nil.
func (m *Module) FindFunction(name string) *Function {
	return m.funcTable[name]
}

// FindGlobal returns the global variable with the given name, or nil.
func (m *Module) FindGlobal(name string) *GlobalVariable {
	return m.globalTable[name]
}

// NewFunction creates a function of the given type and registers it
// under name. Global names are unique; registering a duplicate panics.
func (m *Module) NewFunction(name string, typ *types.Func) *Function {
	if _, ok := m.funcTable[name]; ok {
		panic("ir: duplicate function name " + name)
	}
	f := newFunction(typ, name, m)
	m.arena.adopt(f)
	m.funcs = append(m.funcs, f)
	m.funcTable[name] = f
	return f
}

// NewGlobal creates a global variable of the given base type and
// registers it under name. inits holds the flattened initializer
// constants, outermost dimension first; it may be empty.
func (m *Module) NewGlobal(name string, base types.Type, isConst bool, inits []Value) *GlobalVariable {
	if _, ok := m.globalTable[name]; ok {
		panic("ir: duplicate global name " + name)
	}
	g := &GlobalVariable{base: base, isConst: isConst, parent: m}
	g.initUser(g, types.NewPointer(base), VGlobalVar, name)
	for _, v := range inits {
		g.AddOperand(v)
	}
	m.arena.adopt(g)
	m.globals = append(m.globals, g)
	m.globalTable[name] = g
	return g
}

// RemoveFunction detaches f from the module. The arena still owns the
// memory.
func (m *Module) RemoveFunction(f *Function) {
	for i, x := range m.funcs {
		if x == f {
			m.funcs = append(m.funcs[:i], m.funcs[i+1:]...)
			break
		}
	}
	delete(m.funcTable, f.Name())
}

// RemoveGlobal detaches g from the module.
func (m *Module) RemoveGlobal(g *GlobalVariable) {
	for i, x := range m.globals {
		if x == g {
			m.globals = append(m.globals[:i], m.globals[i+1:]...)
			break
		}
	}
	delete(m.globalTable, g.Name())
}

// Rename assigns cosmetic names across the whole module.
func (m *Module) Rename() {
	for _, f := range m.funcs {
		f.Rename()
	}
}
