package ir

import (
	"math"
	"strconv"

	"github.com/tarn-lang/tarn/internal/types"
)

// Constant is an immutable literal value: an integer, a float, a bool,
// or an undef of some type. Constants are interned per Module.
type Constant struct {
	valueBase
	i     int64
	f     float64
	undef bool
}

// IsUndef reports whether the constant is an undef value.
func (c *Constant) IsUndef() bool { return c.undef }

// Int returns the integer payload. Valid for integer-typed constants.
func (c *Constant) Int() int64 { return c.i }

// Float returns the float payload. Valid for float-typed constants.
func (c *Constant) Float() float64 { return c.f }

// Bool returns the boolean payload. Valid for i1-typed constants.
func (c *Constant) Bool() bool { return c.i != 0 }

// IsZero reports whether the constant is the zero of its type.
func (c *Constant) IsZero() bool {
	if c.undef {
		return false
	}
	if types.IsFloat(c.typ) {
		return c.f == 0
	}
	return c.i == 0
}

// String returns the literal form of the constant.
func (c *Constant) String() string {
	switch {
	case c.undef:
		return "undef"
	case types.IsBool(c.typ):
		if c.i != 0 {
			return "true"
		}
		return "false"
	case types.IsFloat(c.typ):
		return formatFloat(c.f)
	default:
		return strconv.FormatInt(c.i, 10)
	}
}

// formatFloat renders a float constant so that integral values still
// carry a decimal point ("1.0" rather than "1").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, r := range s {
		if (r < '0' || r > '9') && r != '-' {
			return s
		}
	}
	return s + ".0"
}

// constKey identifies a constant within a module's intern table.
type constKey struct {
	typ   types.Type
	bits  int64
	undef bool
}

// ConstInt returns the interned integer constant of the given type.
func (m *Module) ConstInt(typ types.Type, v int64) *Constant {
	return m.internConst(constKey{typ: typ, bits: v}, func(c *Constant) {
		c.i = v
	})
}

// ConstFloat returns the interned float constant of the given type.
func (m *Module) ConstFloat(typ types.Type, v float64) *Constant {
	bits := int64(math.Float64bits(v))
	return m.internConst(constKey{typ: typ, bits: bits}, func(c *Constant) {
		c.f = v
	})
}

// ConstBool returns the interned i1 constant.
func (m *Module) ConstBool(v bool) *Constant {
	var bits int64
	if v {
		bits = 1
	}
	return m.internConst(constKey{typ: types.Typ[types.Bool], bits: bits}, func(c *Constant) {
		c.i = bits
	})
}

// Undef returns the interned undef value of the given type.
func (m *Module) Undef(typ types.Type) *Constant {
	return m.internConst(constKey{typ: typ, undef: true}, func(c *Constant) {
		c.undef = true
	})
}

// Zero returns the interned zero constant of the given numeric type.
func (m *Module) Zero(typ types.Type) *Constant {
	if types.IsFloat(typ) {
		return m.ConstFloat(typ, 0)
	}
	return m.ConstInt(typ, 0)
}

func (m *Module) internConst(key constKey, fill func(*Constant)) *Constant {
	if c, ok := m.constants[key]; ok {
		return c
	}
	c := &Constant{}
	c.init(key.typ, VConstant, "")
	fill(c)
	m.arena.adopt(c)
	m.constants[key] = c
	return c
}

// Argument is a formal parameter of a Function.
type Argument struct {
	valueBase
	index  int
	parent *Function
}

// Index returns the zero-based parameter position.
func (a *Argument) Index() int { return a.index }

// Parent returns the owning function.
func (a *Argument) Parent() *Function { return a.parent }

// GlobalVariable is a module-level variable. Its value type is a pointer
// to the declared base type; the optional operands hold the flattened
// initializer constants.
type GlobalVariable struct {
	userBase
	base    types.Type
	isConst bool
	parent  *Module
}

// BaseType returns the declared (pointee) type of the global.
func (g *GlobalVariable) BaseType() types.Type { return g.base }

// IsConst reports whether the global is read-only.
func (g *GlobalVariable) IsConst() bool { return g.isConst }

// Parent returns the owning module.
func (g *GlobalVariable) Parent() *Module { return g.parent }

// Init returns the i'th flattened initializer constant, or nil.
func (g *GlobalVariable) Init(i int) Value {
	if i < 0 || i >= len(g.operands) {
		return nil
	}
	return g.operands[i].value
}

// NumInits returns the number of initializer constants.
func (g *GlobalVariable) NumInits() int { return len(g.operands) }

// String returns the operand form of the global.
func (g *GlobalVariable) String() string { return "@" + g.name }
