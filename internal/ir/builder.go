package ir

import (
	"github.com/tarn-lang/tarn/internal/types"
)

// BinaryOp is a front-end-level binary operator; Make Binary selects
// the integer or float instruction from the operand type.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
)

// CmpOp is a front-end-level comparison operator.
type CmpOp int

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpGT
	CmpGE
	CmpLT
	CmpLE
)

// Builder constructs SSA instructions at a movable insertion position.
// It keeps the dynamic scope a recursive-descent front-end needs as
// explicit stacks: enclosing loop headers/exits for break/continue and
// short-circuit true/false targets. Push and pop must be matched at the
// same call site.
type Builder struct {
	module *Module

	block  *BasicBlock
	before Instr // insert before this instruction; nil appends

	headers      []*BasicBlock
	exits        []*BasicBlock
	trueTargets  []*BasicBlock
	falseTargets []*BasicBlock

	ifNum    int
	whileNum int
	rhsNum   int
	funcNum  int
	varNum   int
	blockNum int
}

// NewBuilder returns a builder allocating into m's arena.
func NewBuilder(m *Module) *Builder {
	return &Builder{module: m}
}

// Reset clears position, context stacks, and naming counters.
func (bld *Builder) Reset() {
	*bld = Builder{module: bld.module}
}

// Module returns the module the builder allocates into.
func (bld *Builder) Module() *Module { return bld.module }

// Block returns the current insertion block, or nil.
func (bld *Builder) Block() *BasicBlock { return bld.block }

// Position returns the instruction new instructions are inserted
// before, or nil when appending at the end of the block.
func (bld *Builder) Position() Instr { return bld.before }

// SetPos places the insertion position immediately before pos in block.
// A nil pos appends at the end.
func (bld *Builder) SetPos(block *BasicBlock, pos Instr) {
	bld.block = block
	bld.before = pos
}

// SetPosBegin places the insertion position at the beginning of block.
func (bld *Builder) SetPosBegin(block *BasicBlock) {
	bld.block = block
	bld.before = block.First()
}

// SetPosEnd places the insertion position at the end of block.
func (bld *Builder) SetPosEnd(block *BasicBlock) {
	bld.block = block
	bld.before = nil
}

// PushLoop enters a loop scope: header is the continue target, exit the
// break target.
func (bld *Builder) PushLoop(header, exit *BasicBlock) {
	bld.headers = append(bld.headers, header)
	bld.exits = append(bld.exits, exit)
}

// PopLoop leaves the innermost loop scope.
func (bld *Builder) PopLoop() {
	bld.headers = bld.headers[:len(bld.headers)-1]
	bld.exits = bld.exits[:len(bld.exits)-1]
}

// Header returns the innermost loop header, or nil.
func (bld *Builder) Header() *BasicBlock {
	if n := len(bld.headers); n > 0 {
		return bld.headers[n-1]
	}
	return nil
}

// Exit returns the innermost loop exit, or nil.
func (bld *Builder) Exit() *BasicBlock {
	if n := len(bld.exits); n > 0 {
		return bld.exits[n-1]
	}
	return nil
}

// PushTF enters a short-circuit scope with the given true and false
// branch targets.
func (bld *Builder) PushTF(ifTrue, ifFalse *BasicBlock) {
	bld.trueTargets = append(bld.trueTargets, ifTrue)
	bld.falseTargets = append(bld.falseTargets, ifFalse)
}

// PopTF leaves the innermost short-circuit scope.
func (bld *Builder) PopTF() {
	bld.trueTargets = bld.trueTargets[:len(bld.trueTargets)-1]
	bld.falseTargets = bld.falseTargets[:len(bld.falseTargets)-1]
}

// TrueTarget returns the innermost true branch target, or nil.
func (bld *Builder) TrueTarget() *BasicBlock {
	if n := len(bld.trueTargets); n > 0 {
		return bld.trueTargets[n-1]
	}
	return nil
}

// FalseTarget returns the innermost false branch target, or nil.
func (bld *Builder) FalseTarget() *BasicBlock {
	if n := len(bld.falseTargets); n > 0 {
		return bld.falseTargets[n-1]
	}
	return nil
}

// Naming counters for front-end-generated labels.

func (bld *Builder) IfInc() int { bld.ifNum++; return bld.ifNum }

func (bld *Builder) WhileInc() int { bld.whileNum++; return bld.whileNum }

func (bld *Builder) RhsInc() int { bld.rhsNum++; return bld.rhsNum }

func (bld *Builder) FuncInc() int { bld.funcNum++; return bld.funcNum }

func (bld *Builder) VarInc() int { bld.varNum++; return bld.varNum }

func (bld *Builder) BlockInc() int { bld.blockNum++; return bld.blockNum }

// insert adopts inst into the arena and splices it at the insertion
// position. With no current block the instruction stays an orphan.
func (bld *Builder) insert(inst Instr) {
	bld.module.arena.adopt(inst)
	if bld.block == nil {
		return
	}
	bld.block.InsertBefore(inst, bld.before)
}

// insertTerminator refuses to insert when the current block already has
// a terminator: the existing terminator is left untouched and nil is
// returned by the calling factory. Orphan terminators are still
// produced when no block is set.
func (bld *Builder) insertTerminator(inst Instr) bool {
	bld.module.arena.adopt(inst)
	if bld.block == nil {
		return true
	}
	if bld.block.Terminator() != nil {
		return false
	}
	bld.block.PushBack(inst)
	return true
}

// MakeBinary builds an arithmetic instruction, selecting the integer or
// float variant from the operand type. Integer division and remainder
// are signed; unsigned forms are reached through NewBinary directly.
func (bld *Builder) MakeBinary(op BinaryOp, lhs, rhs Value) *BinaryInst {
	var id ValueID
	if types.IsFloat(lhs.Type()) {
		switch op {
		case OpAdd:
			id = VFAdd
		case OpSub:
			id = VFSub
		case OpMul:
			id = VFMul
		case OpDiv:
			id = VFDiv
		case OpRem:
			id = VFRem
		}
	} else {
		switch op {
		case OpAdd:
			id = VAdd
		case OpSub:
			id = VSub
		case OpMul:
			id = VMul
		case OpDiv:
			id = VSDiv
		case OpRem:
			id = VSRem
		}
	}
	inst := NewBinary(id, lhs, rhs)
	bld.insert(inst)
	return inst
}

// MakeCmp builds a comparison, selecting icmp or fcmp from the operand
// type.
func (bld *Builder) MakeCmp(op CmpOp, lhs, rhs Value) *CmpInst {
	var id ValueID
	if types.IsFloat(lhs.Type()) {
		switch op {
		case CmpEQ:
			id = VFOEq
		case CmpNE:
			id = VFONe
		case CmpGT:
			id = VFOGt
		case CmpGE:
			id = VFOGe
		case CmpLT:
			id = VFOLt
		case CmpLE:
			id = VFOLe
		}
	} else {
		switch op {
		case CmpEQ:
			id = VIEq
		case CmpNE:
			id = VINe
		case CmpGT:
			id = VISGt
		case CmpGE:
			id = VISGe
		case CmpLT:
			id = VISLt
		case CmpLE:
			id = VISLe
		}
	}
	inst := NewCmp(id, lhs, rhs)
	bld.insert(inst)
	return inst
}

// MakeUnary builds fneg or a cast producing typ.
func (bld *Builder) MakeUnary(id ValueID, val Value, typ types.Type) *UnaryInst {
	inst := NewUnary(id, val, typ)
	bld.insert(inst)
	return inst
}

// MakeCast builds a type conversion producing typ. id must be one of
// the cast kinds.
func (bld *Builder) MakeCast(id ValueID, val Value, typ types.Type) *UnaryInst {
	if !id.IsCast() {
		panic("ir: MakeCast with non-cast ValueID " + id.String())
	}
	return bld.MakeUnary(id, val, typ)
}

// MakeAlloca builds a stack allocation of the given base type.
func (bld *Builder) MakeAlloca(base types.Type, isConst bool) *AllocaInst {
	inst := NewAlloca(base, isConst)
	bld.insert(inst)
	return inst
}

// MakeLoad builds a load of ptr.
func (bld *Builder) MakeLoad(ptr Value) *LoadInst {
	inst := NewLoad(ptr)
	bld.insert(inst)
	return inst
}

// MakeStore builds a store of val through ptr.
func (bld *Builder) MakeStore(val, ptr Value) *StoreInst {
	inst := NewStore(val, ptr)
	bld.insert(inst)
	return inst
}

// MakeGEP builds a getelementptr.
func (bld *Builder) MakeGEP(base types.Type, ptr, idx Value, dims, curDims []int64) *GetElementPtrInst {
	inst := NewGetElementPtr(base, ptr, idx, dims, curDims)
	bld.insert(inst)
	return inst
}

// MakeMemset builds a memset.
func (bld *Builder) MakeMemset(ptr, byteVal, length Value) *MemsetInst {
	inst := NewMemset(ptr, byteVal, length)
	bld.insert(inst)
	return inst
}

// MakeCall builds a call of callee.
func (bld *Builder) MakeCall(callee *Function, args []Value) *CallInst {
	inst := NewCall(callee, args)
	bld.insert(inst)
	return inst
}

// MakePhi builds an empty phi of the given type. Phis are inserted at
// the current position; front-ends position at the block head first.
func (bld *Builder) MakePhi(typ types.Type) *PhiInst {
	inst := NewPhi(typ)
	bld.insert(inst)
	return inst
}

// MakeBranch builds an unconditional branch and links the CFG edge.
// It returns nil, leaving the block untouched, if the current block
// already has a terminator.
func (bld *Builder) MakeBranch(target *BasicBlock) *BranchInst {
	inst := NewBranch(target)
	if !bld.insertTerminator(inst) {
		return nil
	}
	if bld.block != nil {
		LinkBlocks(bld.block, target)
	}
	return inst
}

// MakeCondBranch builds a conditional branch and links both CFG edges.
// It returns nil, leaving the block untouched, if the current block
// already has a terminator.
func (bld *Builder) MakeCondBranch(cond Value, ifTrue, ifFalse *BasicBlock) *BranchInst {
	inst := NewCondBranch(cond, ifTrue, ifFalse)
	if !bld.insertTerminator(inst) {
		return nil
	}
	if bld.block != nil {
		LinkBlocks(bld.block, ifTrue)
		LinkBlocks(bld.block, ifFalse)
	}
	return inst
}

// MakeReturn builds a return. val may be nil for a void return. It
// returns nil, leaving the block untouched, if the current block
// already has a terminator.
func (bld *Builder) MakeReturn(val Value) *ReturnInst {
	inst := NewReturn(val)
	if !bld.insertTerminator(inst) {
		return nil
	}
	return inst
}

// CastToBool produces an i1 from val using "val != 0". An i1 operand
// passes through unchanged.
func (bld *Builder) CastToBool(val Value) Value {
	if types.IsBool(val.Type()) {
		return val
	}
	if c, ok := val.(*Constant); ok {
		return bld.module.ConstBool(!c.IsZero())
	}
	if types.IsFloat(val.Type()) {
		return bld.MakeCmp(CmpNE, val, bld.module.ConstFloat(val.Type(), 0))
	}
	return bld.MakeCmp(CmpNE, val, bld.module.ConstInt(val.Type(), 0))
}

// PromoteType converts val to target with the minimal cast chain from
// {ZExt, SExt, Trunc, FPTrunc, SIToFP, FPToSI, BitCast, PtrToInt,
// IntToPtr}. Constant operands convert in the constant domain without
// emitting an instruction. A conversion not expressible in that set
// returns val unchanged.
func (bld *Builder) PromoteType(val Value, target types.Type) Value {
	src := val.Type()
	if types.Identical(src, target) {
		return val
	}
	if c, ok := val.(*Constant); ok {
		if folded := bld.castConstant(c, target); folded != nil {
			return folded
		}
	}
	s := types.DefaultSizes
	switch {
	case types.IsBool(src) && types.IsInteger(target):
		return bld.MakeUnary(VZExt, val, target)
	case types.IsInteger(src) && types.IsBool(target):
		return bld.CastToBool(val)
	case types.IsInteger(src) && types.IsInteger(target):
		if s.Sizeof(src) < s.Sizeof(target) {
			return bld.MakeUnary(VSExt, val, target)
		}
		return bld.MakeUnary(VTrunc, val, target)
	case types.IsInteger(src) && types.IsFloat(target):
		return bld.MakeUnary(VSIToFP, val, target)
	case types.IsFloat(src) && types.IsInteger(target):
		return bld.MakeUnary(VFPToSI, val, target)
	case types.IsFloat(src) && types.IsFloat(target):
		if s.Sizeof(src) > s.Sizeof(target) {
			return bld.MakeUnary(VFPTrunc, val, target)
		}
		return val
	case types.IsPointer(src) && types.IsInteger(target):
		return bld.MakeUnary(VPtrToInt, val, target)
	case types.IsInteger(src) && types.IsPointer(target):
		return bld.MakeUnary(VIntToPtr, val, target)
	case types.IsPointer(src) && types.IsPointer(target):
		return bld.MakeUnary(VBitCast, val, target)
	}
	return val
}

// castConstant converts c to target in the constant domain, or returns
// nil when the conversion is not a numeric one.
func (bld *Builder) castConstant(c *Constant, target types.Type) Value {
	if c.IsUndef() {
		return bld.module.Undef(target)
	}
	switch {
	case types.IsBool(target):
		return bld.module.ConstBool(!c.IsZero())
	case types.IsInteger(target) && types.IsFloat(c.Type()):
		return bld.module.ConstInt(target, int64(c.Float()))
	case types.IsInteger(target):
		return bld.module.ConstInt(target, c.Int())
	case types.IsFloat(target) && types.IsFloat(c.Type()):
		return bld.module.ConstFloat(target, c.Float())
	case types.IsFloat(target):
		return bld.module.ConstFloat(target, float64(c.Int()))
	}
	return nil
}
