package ir

import (
	"github.com/tarn-lang/tarn/internal/types"
)

// Instruction constructors build detached (orphan) instructions; the
// Builder is the supported construction path and handles arena adoption
// and insertion. Constructors accept any operands: type checking is
// deferred to the verifier.

// AllocaInst reserves stack storage for one object of its base type and
// produces a pointer to it.
type AllocaInst struct {
	instrBase
	isConst bool
}

// NewAlloca returns a detached alloca of the given base (pointee) type.
func NewAlloca(base types.Type, isConst bool) *AllocaInst {
	inst := &AllocaInst{isConst: isConst}
	inst.initUser(inst, types.NewPointer(base), VAlloca, "")
	return inst
}

// BaseType returns the allocated (pointee) type.
func (i *AllocaInst) BaseType() types.Type {
	return i.typ.(*types.Pointer).Base()
}

// IsConst reports whether the slot backs a constant-qualified object.
func (i *AllocaInst) IsConst() bool { return i.isConst }

// LoadInst reads the value behind a pointer.
type LoadInst struct {
	instrBase
}

// NewLoad returns a detached load of ptr. The result type is the
// pointee type of ptr (or undef when ptr is not pointer-typed; the
// verifier flags that).
func NewLoad(ptr Value) *LoadInst {
	typ := types.Type(types.Typ[types.Undef])
	if p, ok := ptr.Type().(*types.Pointer); ok {
		typ = p.Base()
	}
	inst := &LoadInst{}
	inst.initUser(inst, typ, VLoad, "")
	inst.AddOperand(ptr)
	return inst
}

// Ptr returns the address operand.
func (i *LoadInst) Ptr() Value { return i.Operand(0) }

// StoreInst writes a value through a pointer. It produces no value.
type StoreInst struct {
	instrBase
}

// NewStore returns a detached store of val through ptr.
func NewStore(val, ptr Value) *StoreInst {
	inst := &StoreInst{}
	inst.initUser(inst, types.Typ[types.Void], VStore, "")
	inst.AddOperand(val)
	inst.AddOperand(ptr)
	return inst
}

// Val returns the stored value operand.
func (i *StoreInst) Val() Value { return i.Operand(0) }

// Ptr returns the address operand.
func (i *StoreInst) Ptr() Value { return i.Operand(1) }

// GetElementPtrInst computes the address of an element one dimension
// down from a base pointer. dims holds the static dimension lengths of
// the aggregate being indexed; curDims the lengths still unconsumed at
// this step (curDims[0] is the dimension the index applies to).
type GetElementPtrInst struct {
	instrBase
	base    types.Type
	dims    []int64
	curDims []int64
}

// NewGetElementPtr returns a detached getelementptr over base type base,
// address ptr and index idx.
func NewGetElementPtr(base types.Type, ptr, idx Value, dims, curDims []int64) *GetElementPtrInst {
	var typ types.Type
	if arr, ok := base.(*types.Array); ok && len(curDims) > 1 {
		typ = types.NewPointer(types.NewArray(arr.Elem(), curDims[1:]))
	} else if arr, ok := base.(*types.Array); ok {
		typ = types.NewPointer(arr.Elem())
	} else {
		typ = types.NewPointer(base)
	}
	inst := &GetElementPtrInst{
		base:    base,
		dims:    append([]int64(nil), dims...),
		curDims: append([]int64(nil), curDims...),
	}
	inst.initUser(inst, typ, VGetElementPtr, "")
	inst.AddOperand(ptr)
	inst.AddOperand(idx)
	return inst
}

// BaseType returns the aggregate type being indexed.
func (i *GetElementPtrInst) BaseType() types.Type { return i.base }

// Ptr returns the base address operand.
func (i *GetElementPtrInst) Ptr() Value { return i.Operand(0) }

// Index returns the index operand.
func (i *GetElementPtrInst) Index() Value { return i.Operand(1) }

// Dims returns the static dimension lengths of the aggregate.
func (i *GetElementPtrInst) Dims() []int64 { return i.dims }

// CurDims returns the dimension lengths unconsumed at this step.
func (i *GetElementPtrInst) CurDims() []int64 { return i.curDims }

// MemsetInst fills length bytes behind ptr with a byte value. It
// produces no value.
type MemsetInst struct {
	instrBase
}

// NewMemset returns a detached memset(ptr, byteVal, length).
func NewMemset(ptr, byteVal, length Value) *MemsetInst {
	inst := &MemsetInst{}
	inst.initUser(inst, types.Typ[types.Void], VMemset, "")
	inst.AddOperand(ptr)
	inst.AddOperand(byteVal)
	inst.AddOperand(length)
	return inst
}

// Ptr returns the destination address operand.
func (i *MemsetInst) Ptr() Value { return i.Operand(0) }

// Byte returns the fill byte operand.
func (i *MemsetInst) Byte() Value { return i.Operand(1) }

// Len returns the byte length operand.
func (i *MemsetInst) Len() Value { return i.Operand(2) }

// ReturnInst leaves the function, optionally yielding a value.
type ReturnInst struct {
	instrBase
}

// NewReturn returns a detached return. val may be nil for a void
// return.
func NewReturn(val Value) *ReturnInst {
	inst := &ReturnInst{}
	inst.initUser(inst, types.Typ[types.Void], VReturn, "")
	if val != nil {
		inst.AddOperand(val)
	}
	return inst
}

// HasValue reports whether the return carries a value.
func (i *ReturnInst) HasValue() bool { return len(i.operands) == 1 }

// Value returns the returned value, or nil for a void return.
func (i *ReturnInst) Value() Value {
	if len(i.operands) == 0 {
		return nil
	}
	return i.Operand(0)
}

// BranchInst transfers control to another block. The unconditional form
// (VBranch) has one operand, the target block; the conditional form
// (VCondBranch) has three: an i1 condition and the true/false targets.
type BranchInst struct {
	instrBase
}

// NewBranch returns a detached unconditional branch to target.
func NewBranch(target *BasicBlock) *BranchInst {
	inst := &BranchInst{}
	inst.initUser(inst, types.Typ[types.Void], VBranch, "")
	inst.AddOperand(target)
	return inst
}

// NewCondBranch returns a detached conditional branch.
func NewCondBranch(cond Value, ifTrue, ifFalse *BasicBlock) *BranchInst {
	inst := &BranchInst{}
	inst.initUser(inst, types.Typ[types.Void], VCondBranch, "")
	inst.AddOperand(cond)
	inst.AddOperand(ifTrue)
	inst.AddOperand(ifFalse)
	return inst
}

// IsCond reports whether the branch is conditional.
func (i *BranchInst) IsCond() bool { return i.id == VCondBranch }

// Cond returns the condition operand of a conditional branch.
func (i *BranchInst) Cond() Value { return i.Operand(0) }

// Target returns the target of an unconditional branch.
func (i *BranchInst) Target() *BasicBlock {
	return i.Operand(0).(*BasicBlock)
}

// TrueTarget returns the taken target of a conditional branch.
func (i *BranchInst) TrueTarget() *BasicBlock {
	return i.Operand(1).(*BasicBlock)
}

// FalseTarget returns the fallthrough target of a conditional branch.
func (i *BranchInst) FalseTarget() *BasicBlock {
	return i.Operand(2).(*BasicBlock)
}

// Targets returns all successor blocks named by the branch.
func (i *BranchInst) Targets() []*BasicBlock {
	if i.IsCond() {
		return []*BasicBlock{i.TrueTarget(), i.FalseTarget()}
	}
	return []*BasicBlock{i.Target()}
}

// BinaryInst is an arithmetic instruction with two operands of the same
// type; the result type equals the operand type.
type BinaryInst struct {
	instrBase
}

// NewBinary returns a detached binary instruction of the given kind.
// id must lie in the binary range.
func NewBinary(id ValueID, lhs, rhs Value) *BinaryInst {
	if !id.IsBinary() {
		panic("ir: NewBinary with non-binary ValueID " + id.String())
	}
	inst := &BinaryInst{}
	inst.initUser(inst, lhs.Type(), id, "")
	inst.AddOperand(lhs)
	inst.AddOperand(rhs)
	return inst
}

// LHS returns the first operand.
func (i *BinaryInst) LHS() Value { return i.Operand(0) }

// RHS returns the second operand.
func (i *BinaryInst) RHS() Value { return i.Operand(1) }

// UnaryInst is fneg or a type conversion with a single operand.
type UnaryInst struct {
	instrBase
}

// NewUnary returns a detached unary instruction of the given kind
// producing the given type. id must lie in the unary range.
func NewUnary(id ValueID, val Value, typ types.Type) *UnaryInst {
	if !id.IsUnary() {
		panic("ir: NewUnary with non-unary ValueID " + id.String())
	}
	inst := &UnaryInst{}
	inst.initUser(inst, typ, id, "")
	inst.AddOperand(val)
	return inst
}

// Val returns the operand.
func (i *UnaryInst) Val() Value { return i.Operand(0) }

// CmpInst compares two operands of the same type and produces an i1.
// The ValueID (in the icmp or fcmp range) encodes the predicate.
type CmpInst struct {
	instrBase
}

// NewCmp returns a detached comparison of the given predicate. id must
// lie in a comparison range.
func NewCmp(id ValueID, lhs, rhs Value) *CmpInst {
	if !id.IsCmp() {
		panic("ir: NewCmp with non-comparison ValueID " + id.String())
	}
	inst := &CmpInst{}
	inst.initUser(inst, types.Typ[types.Bool], id, "")
	inst.AddOperand(lhs)
	inst.AddOperand(rhs)
	return inst
}

// LHS returns the first operand.
func (i *CmpInst) LHS() Value { return i.Operand(0) }

// RHS returns the second operand.
func (i *CmpInst) RHS() Value { return i.Operand(1) }

// CallInst calls a Function value with arguments. Operand 0 is the
// callee; the rest are the arguments in order.
type CallInst struct {
	instrBase
}

// NewCall returns a detached call of callee with args.
func NewCall(callee *Function, args []Value) *CallInst {
	inst := &CallInst{}
	inst.initUser(inst, callee.FuncType().Ret(), VCall, "")
	inst.AddOperand(callee)
	for _, a := range args {
		inst.AddOperand(a)
	}
	return inst
}

// Callee returns the called function.
func (i *CallInst) Callee() *Function {
	return i.Operand(0).(*Function)
}

// NumArgs returns the number of call arguments.
func (i *CallInst) NumArgs() int { return len(i.operands) - 1 }

// Arg returns the j'th call argument.
func (i *CallInst) Arg(j int) Value { return i.Operand(j + 1) }

// Args returns the call arguments in order.
func (i *CallInst) Args() []Value {
	args := make([]Value, i.NumArgs())
	for j := range args {
		args[j] = i.Arg(j)
	}
	return args
}

// PhiInst is the SSA merge operator. Operands are interleaved
// (value, incoming block) pairs, one pair per predecessor.
type PhiInst struct {
	instrBase
}

// NewPhi returns a detached phi of the given type with no incoming
// pairs.
func NewPhi(typ types.Type) *PhiInst {
	inst := &PhiInst{}
	inst.initUser(inst, typ, VPhi, "")
	return inst
}

// NumIncoming returns the number of incoming pairs.
func (i *PhiInst) NumIncoming() int { return len(i.operands) / 2 }

// IncomingValue returns the value of the j'th incoming pair.
func (i *PhiInst) IncomingValue(j int) Value { return i.Operand(2 * j) }

// IncomingBlock returns the predecessor block of the j'th pair.
func (i *PhiInst) IncomingBlock(j int) *BasicBlock {
	return i.Operand(2*j + 1).(*BasicBlock)
}

// AddIncoming appends an incoming (value, block) pair.
func (i *PhiInst) AddIncoming(v Value, bb *BasicBlock) {
	i.AddOperand(v)
	i.AddOperand(bb)
}

// SetIncomingValue replaces the value of the j'th pair.
func (i *PhiInst) SetIncomingValue(j int, v Value) {
	i.SetOperand(2*j, v)
}

// IncomingForBlock returns the value flowing in from bb, or nil if bb
// is not an incoming block.
func (i *PhiInst) IncomingForBlock(bb *BasicBlock) Value {
	for j := 0; j < i.NumIncoming(); j++ {
		if i.IncomingBlock(j) == bb {
			return i.IncomingValue(j)
		}
	}
	return nil
}

// RemoveIncoming deletes the j'th incoming pair.
func (i *PhiInst) RemoveIncoming(j int) {
	i.RemoveOperand(2*j + 1)
	i.RemoveOperand(2 * j)
}
