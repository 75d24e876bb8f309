// Package ir implements the SSA intermediate representation for the Tarn
// compiler middle-end: the def-use graph, the instruction hierarchy, the
// CFG containers, and the verifier.
package ir

import (
	"fmt"

	"github.com/tarn-lang/tarn/internal/types"
)

// ValueID is a dense tag identifying the concrete kind of a Value.
// Related instruction kinds occupy contiguous ranges delimited by
// begin/end markers, so family membership is a pair of comparisons.
type ValueID int

const (
	VInvalid ValueID = iota

	// Non-instruction values
	VFunction
	VConstant
	VArgument
	VBasicBlock
	VGlobalVar

	// Memory instructions
	VAlloca
	VLoad
	VStore
	VGetElementPtr
	VMemset

	// Terminators
	VReturn
	VBranch
	VCondBranch

	// Integer comparisons
	ICmpBegin
	VIEq
	VINe
	VISGt
	VISGe
	VISLt
	VISLe
	ICmpEnd

	// Float comparisons (ordered)
	FCmpBegin
	VFOEq
	VFONe
	VFOGt
	VFOGe
	VFOLt
	VFOLe
	FCmpEnd

	// Unary instructions and casts
	UnaryBegin
	VFNeg
	VTrunc
	VZExt
	VSExt
	VFPTrunc
	VFPToSI
	VSIToFP
	VBitCast
	VPtrToInt
	VIntToPtr
	UnaryEnd

	// Binary arithmetic
	BinaryBegin
	VAdd
	VFAdd
	VSub
	VFSub
	VMul
	VFMul
	VUDiv
	VSDiv
	VFDiv
	VURem
	VSRem
	VFRem
	BinaryEnd

	// Control transfer values
	VCall
	VPhi

	valueIDCount // sentinel; must be last
)

// valueIDNames maps each ValueID to its printed mnemonic.
var valueIDNames = [valueIDCount]string{
	VInvalid:       "invalid",
	VFunction:      "function",
	VConstant:      "constant",
	VArgument:      "argument",
	VBasicBlock:    "block",
	VGlobalVar:     "global",
	VAlloca:        "alloca",
	VLoad:          "load",
	VStore:         "store",
	VGetElementPtr: "getelementptr",
	VMemset:        "memset",
	VReturn:        "ret",
	VBranch:        "br",
	VCondBranch:    "br",
	VIEq:           "icmp eq",
	VINe:           "icmp ne",
	VISGt:          "icmp sgt",
	VISGe:          "icmp sge",
	VISLt:          "icmp slt",
	VISLe:          "icmp sle",
	VFOEq:          "fcmp oeq",
	VFONe:          "fcmp one",
	VFOGt:          "fcmp ogt",
	VFOGe:          "fcmp oge",
	VFOLt:          "fcmp olt",
	VFOLe:          "fcmp ole",
	VFNeg:          "fneg",
	VTrunc:         "trunc",
	VZExt:          "zext",
	VSExt:          "sext",
	VFPTrunc:       "fptrunc",
	VFPToSI:        "fptosi",
	VSIToFP:        "sitofp",
	VBitCast:       "bitcast",
	VPtrToInt:      "ptrtoint",
	VIntToPtr:      "inttoptr",
	VAdd:           "add",
	VFAdd:          "fadd",
	VSub:           "sub",
	VFSub:          "fsub",
	VMul:           "mul",
	VFMul:          "fmul",
	VUDiv:          "udiv",
	VSDiv:          "sdiv",
	VFDiv:          "fdiv",
	VURem:          "urem",
	VSRem:          "srem",
	VFRem:          "frem",
	VCall:          "call",
	VPhi:           "phi",
}

// String returns the printed mnemonic of the value kind.
func (id ValueID) String() string {
	if id >= 0 && id < valueIDCount {
		if s := valueIDNames[id]; s != "" {
			return s
		}
	}
	return "unknown"
}

// IsICmp reports whether id is an integer comparison.
func (id ValueID) IsICmp() bool { return ICmpBegin < id && id < ICmpEnd }

// IsFCmp reports whether id is a floating-point comparison.
func (id ValueID) IsFCmp() bool { return FCmpBegin < id && id < FCmpEnd }

// IsCmp reports whether id is any comparison.
func (id ValueID) IsCmp() bool { return id.IsICmp() || id.IsFCmp() }

// IsUnary reports whether id is a unary instruction (fneg or a cast).
func (id ValueID) IsUnary() bool { return UnaryBegin < id && id < UnaryEnd }

// IsCast reports whether id is a type conversion.
func (id ValueID) IsCast() bool { return VTrunc <= id && id <= VIntToPtr }

// IsBinary reports whether id is a binary arithmetic instruction.
func (id ValueID) IsBinary() bool { return BinaryBegin < id && id < BinaryEnd }

// IsTerminator reports whether id terminates a basic block.
func (id ValueID) IsTerminator() bool {
	return id == VReturn || id == VBranch || id == VCondBranch
}

// Use records a single consumer of a value: the user, the operand slot
// index within that user, and the value occupying the slot.
type Use struct {
	index int
	user  User
	value Value
}

// Index returns the operand slot index within the user.
func (u *Use) Index() int { return u.index }

// User returns the consuming user.
func (u *Use) User() User { return u.user }

// Value returns the value occupying the slot.
func (u *Use) Value() Value { return u.value }

// Value is the interface implemented by every SSA object: constants,
// arguments, globals, blocks, functions, and instructions.
//
// A Value is immutable except for its name, its comment, and its use
// list.
type Value interface {
	// Type returns the type of the value.
	Type() types.Type

	// ValueID returns the kind tag of the value.
	ValueID() ValueID

	// Name returns the symbolic name, or "" if unnamed.
	Name() string

	// SetName sets the symbolic name.
	SetName(name string)

	// Comment returns the attached comment, or "".
	Comment() string

	// SetComment replaces the attached comment.
	SetComment(c string)

	// Uses returns the incoming def-use edges. The returned slice is the
	// live list; callers that mutate operands while iterating must
	// snapshot it first (ReplaceAllUsesWith does).
	Uses() []*Use

	// String returns the operand form of the value (e.g. "%t1", "@g",
	// or a constant literal).
	String() string

	addUse(u *Use)
	removeUse(u *Use)
}

// User is a Value that owns an ordered sequence of operand slots.
type User interface {
	Value

	// Operands returns the operand slots in order.
	Operands() []*Use

	// NumOperands returns the number of operand slots.
	NumOperands() int

	// Operand returns the value in slot i. It panics if i is out of
	// range. A nil result means the slot is transiently empty; the
	// verifier rejects nil operands.
	Operand(i int) Value

	// AddOperand appends a slot holding v and registers the use in v.
	AddOperand(v Value)

	// SetOperand rewires slot i to v, updating both use lists.
	// Type mismatches are not checked here; the verifier catches them.
	SetOperand(i int, v Value)

	// RemoveOperand deletes slot i and its use, then renumbers the
	// remaining slots.
	RemoveOperand(i int)

	// UnuseAll detaches every use without touching the operand vector.
	// Call before discarding a user.
	UnuseAll()
}

// valueBase carries the state shared by every Value implementation.
type valueBase struct {
	typ     types.Type
	id      ValueID
	name    string
	comment string
	uses    []*Use
}

func (v *valueBase) init(typ types.Type, id ValueID, name string) {
	v.typ = typ
	v.id = id
	v.name = name
}

func (v *valueBase) Type() types.Type { return v.typ }

func (v *valueBase) ValueID() ValueID { return v.id }

func (v *valueBase) Name() string { return v.name }

func (v *valueBase) SetName(n string) { v.name = n }

func (v *valueBase) Comment() string { return v.comment }

func (v *valueBase) SetComment(c string) { v.comment = c }

func (v *valueBase) Uses() []*Use { return v.uses }

func (v *valueBase) String() string { return "%" + v.name }

func (v *valueBase) addUse(u *Use) {
	v.uses = append(v.uses, u)
}

func (v *valueBase) removeUse(u *Use) {
	for i, x := range v.uses {
		if x == u {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// userBase carries the operand vector shared by every User
// implementation. self points at the outer concrete user so Use records
// identify it rather than the embedded base.
type userBase struct {
	valueBase
	self     User
	operands []*Use
}

func (u *userBase) initUser(self User, typ types.Type, id ValueID, name string) {
	u.valueBase.init(typ, id, name)
	u.self = self
}

func (u *userBase) Operands() []*Use { return u.operands }

func (u *userBase) NumOperands() int { return len(u.operands) }

func (u *userBase) Operand(i int) Value {
	if i < 0 || i >= len(u.operands) {
		panic(fmt.Sprintf("ir: operand index %d out of range [0, %d)", i, len(u.operands)))
	}
	return u.operands[i].value
}

func (u *userBase) AddOperand(v Value) {
	use := &Use{index: len(u.operands), user: u.self, value: v}
	u.operands = append(u.operands, use)
	if v != nil {
		v.addUse(use)
	}
}

func (u *userBase) SetOperand(i int, v Value) {
	if i < 0 || i >= len(u.operands) {
		panic(fmt.Sprintf("ir: operand index %d out of range [0, %d)", i, len(u.operands)))
	}
	use := u.operands[i]
	if use.value != nil {
		use.value.removeUse(use)
	}
	use.value = v
	if v != nil {
		v.addUse(use)
	}
}

func (u *userBase) RemoveOperand(i int) {
	if i < 0 || i >= len(u.operands) {
		panic(fmt.Sprintf("ir: operand index %d out of range [0, %d)", i, len(u.operands)))
	}
	use := u.operands[i]
	if use.value != nil {
		use.value.removeUse(use)
	}
	u.operands = append(u.operands[:i], u.operands[i+1:]...)
	u.refreshIndices()
}

func (u *userBase) UnuseAll() {
	for _, use := range u.operands {
		if use.value != nil {
			use.value.removeUse(use)
		}
	}
}

func (u *userBase) refreshIndices() {
	for i, use := range u.operands {
		use.index = i
	}
}

// ReplaceAllUsesWith rewrites every use of v to use w instead. After the
// call v's use list is empty and w's has grown by the prior number of
// uses of v. w must be non-nil; replacing a value with itself is a no-op.
func ReplaceAllUsesWith(v, w Value) {
	if w == nil {
		panic("ir: ReplaceAllUsesWith with nil replacement")
	}
	if v == w {
		return
	}
	// Snapshot: SetOperand mutates v's use list as we go.
	uses := append([]*Use(nil), v.Uses()...)
	for _, u := range uses {
		u.user.SetOperand(u.index, w)
	}
}
