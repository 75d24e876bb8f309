package ir

import (
	"fmt"

	"github.com/tarn-lang/tarn/internal/types"
)

// FuncAttr is a bitset of function-level properties consumed by
// analyses and passes.
type FuncAttr uint32

const (
	AttrNoMemoryRead FuncAttr = 1 << iota
	AttrNoMemoryWrite
	AttrNoSideEffect
	AttrStateless
	AttrNoAlias
	AttrNoReturn
	AttrNoRecurse
	AttrEntry
	AttrBuiltin
	AttrLoopBody
	AttrParallelBody
	// AlignedParallelBody and InlineWrapped are opaque to the core;
	// passes outside it assign their meaning.
	AttrAlignedParallelBody
	AttrInlineWrapped
)

// Function is a function definition or declaration. A function with no
// blocks is a declaration.
type Function struct {
	userBase
	module *Module

	blocks []*BasicBlock
	args   []*Argument

	entry *BasicBlock
	exit  *BasicBlock

	// retValueAddr is the storage slot early-return lowering writes
	// through before branching to the exit block.
	retValueAddr Value

	attrs FuncAttr

	varCnt   int
	blockCnt int
}

func newFunction(typ *types.Func, name string, m *Module) *Function {
	f := &Function{module: m}
	f.initUser(f, typ, VFunction, name)
	for i, pt := range typ.Params() {
		arg := &Argument{index: i, parent: f}
		arg.init(pt, VArgument, "")
		m.arena.adopt(arg)
		f.args = append(f.args, arg)
	}
	return f
}

// Module returns the owning module.
func (f *Function) Module() *Module { return f.module }

// FuncType returns the function's type.
func (f *Function) FuncType() *types.Func { return f.typ.(*types.Func) }

// RetType returns the declared return type.
func (f *Function) RetType() types.Type { return f.FuncType().Ret() }

// Blocks returns the basic blocks in insertion order.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// NumBlocks returns the number of basic blocks.
func (f *Function) NumBlocks() int { return len(f.blocks) }

// Entry returns the entry block, or nil for a declaration.
func (f *Function) Entry() *BasicBlock { return f.entry }

// Exit returns the distinguished exit block, or nil.
func (f *Function) Exit() *BasicBlock { return f.exit }

// Args returns the formal arguments in order.
func (f *Function) Args() []*Argument { return f.args }

// NumArgs returns the number of formal arguments.
func (f *Function) NumArgs() int { return len(f.args) }

// Arg returns the i'th formal argument.
func (f *Function) Arg(i int) *Argument {
	if i < 0 || i >= len(f.args) {
		panic(fmt.Sprintf("ir: argument index %d out of range [0, %d)", i, len(f.args)))
	}
	return f.args[i]
}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool { return len(f.blocks) == 0 }

// RetValueAddr returns the early-return storage slot, or nil.
func (f *Function) RetValueAddr() Value { return f.retValueAddr }

// SetRetValueAddr records the early-return storage slot. It may be set
// once.
func (f *Function) SetRetValueAddr(v Value) {
	if f.retValueAddr != nil {
		panic("ir: return value storage already set")
	}
	f.retValueAddr = v
}

// Attrs returns the attribute bitset.
func (f *Function) Attrs() FuncAttr { return f.attrs }

// HasAttr reports whether all bits of a are set.
func (f *Function) HasAttr(a FuncAttr) bool { return f.attrs&a == a }

// AddAttr sets the bits of a.
func (f *Function) AddAttr(a FuncAttr) { f.attrs |= a }

// ClearAttr clears the bits of a.
func (f *Function) ClearAttr(a FuncAttr) { f.attrs &^= a }

// NewBlock creates a new block with the given name and appends it to
// the function.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := newBasicBlock(name, f)
	f.module.arena.adopt(b)
	f.blocks = append(f.blocks, b)
	return b
}

// NewEntry creates a block and marks it as the function entry.
func (f *Function) NewEntry(name string) *BasicBlock {
	b := f.NewBlock(name)
	f.entry = b
	return b
}

// NewExit creates a block and marks it as the distinguished exit.
func (f *Function) NewExit(name string) *BasicBlock {
	b := f.NewBlock(name)
	f.exit = b
	return b
}

// SetEntry marks b as the entry block.
func (f *Function) SetEntry(b *BasicBlock) { f.entry = b }

// SetExit marks b as the distinguished exit block.
func (f *Function) SetExit(b *BasicBlock) { f.exit = b }

// RemoveBlock detaches b from the function: the terminator's CFG edges
// are unlinked, every instruction releases its uses, and b is dropped
// from the block list. The arena still owns the memory.
func (f *Function) RemoveBlock(b *BasicBlock) {
	for _, s := range append([]*BasicBlock(nil), b.succs...) {
		UnlinkBlocks(b, s)
	}
	for _, p := range append([]*BasicBlock(nil), b.preds...) {
		UnlinkBlocks(p, b)
	}
	for _, inst := range b.Instrs() {
		inst.UnuseAll()
		b.Remove(inst)
	}
	for i, x := range f.blocks {
		if x == b {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			break
		}
	}
	if f.entry == b {
		f.entry = nil
	}
	if f.exit == b {
		f.exit = nil
	}
}

// VarInc returns the next cosmetic value number.
func (f *Function) VarInc() int {
	n := f.varCnt
	f.varCnt++
	return n
}

// BlockInc returns the next cosmetic block number.
func (f *Function) BlockInc() int {
	n := f.blockCnt
	f.blockCnt++
	return n
}

// Rename assigns fresh cosmetic names to every unnamed or cosmetically
// numbered block, argument and value-producing instruction so dumps are
// stable and readable. Blocks
// become bb0, bb1, …; arguments and instruction results become %0, %1, …
// in block order. Explicit names are kept.
func (f *Function) Rename() {
	f.varCnt = 0
	f.blockCnt = 0
	for _, a := range f.args {
		if a.name == "" || isCosmetic(a.name) {
			a.name = fmt.Sprintf("%d", f.VarInc())
		}
	}
	for _, b := range f.blocks {
		if b.name == "" || isCosmeticBlock(b.name) {
			b.name = fmt.Sprintf("bb%d", f.BlockInc())
		}
		for i := b.First(); i != nil; i = i.Next() {
			if types.IsVoid(i.Type()) {
				continue
			}
			if i.Name() == "" || isCosmetic(i.Name()) {
				i.SetName(fmt.Sprintf("%d", f.VarInc()))
			}
		}
	}
}

// String returns the operand form of the function.
func (f *Function) String() string { return "@" + f.name }

func isCosmetic(name string) bool {
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(name) > 0
}

func isCosmeticBlock(name string) bool {
	return len(name) > 2 && name[:2] == "bb" && isCosmetic(name[2:])
}
