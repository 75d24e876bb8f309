package ir

import (
	"github.com/tarn-lang/tarn/internal/types"
)

// BasicBlock is a straight-line sequence of instructions ending in a
// terminator. Blocks are label-typed values so terminators and phis can
// reference them as operands.
//
// Predecessor and successor lists are maintained by LinkBlocks and
// UnlinkBlocks, which the Builder's terminator factories call; both
// lists preserve insertion order.
type BasicBlock struct {
	valueBase
	parent *Function

	head Instr
	tail Instr
	n    int

	preds []*BasicBlock
	succs []*BasicBlock
}

func newBasicBlock(name string, parent *Function) *BasicBlock {
	b := &BasicBlock{parent: parent}
	b.init(types.Typ[types.Label], VBasicBlock, name)
	return b
}

// Parent returns the owning function.
func (b *BasicBlock) Parent() *Function { return b.parent }

// IsEntry reports whether b is its function's entry block.
func (b *BasicBlock) IsEntry() bool { return b.parent != nil && b.parent.entry == b }

// Preds returns the predecessor blocks in insertion order.
func (b *BasicBlock) Preds() []*BasicBlock { return b.preds }

// Succs returns the successor blocks in insertion order.
func (b *BasicBlock) Succs() []*BasicBlock { return b.succs }

// NumPreds returns the number of predecessors.
func (b *BasicBlock) NumPreds() int { return len(b.preds) }

// NumSuccs returns the number of successors.
func (b *BasicBlock) NumSuccs() int { return len(b.succs) }

// First returns the first instruction, or nil for an empty block.
func (b *BasicBlock) First() Instr { return b.head }

// Last returns the last instruction, or nil for an empty block.
func (b *BasicBlock) Last() Instr { return b.tail }

// NumInstrs returns the number of instructions in the block.
func (b *BasicBlock) NumInstrs() int { return b.n }

// Terminator returns the block's terminator, or nil if the last
// instruction is not one (or the block is empty).
func (b *BasicBlock) Terminator() Instr {
	if b.tail != nil && b.tail.IsTerminator() {
		return b.tail
	}
	return nil
}

// Instrs returns a snapshot of the instruction sequence. Mutating the
// block while ranging over the snapshot is safe.
func (b *BasicBlock) Instrs() []Instr {
	out := make([]Instr, 0, b.n)
	for i := b.head; i != nil; i = i.Next() {
		out = append(out, i)
	}
	return out
}

// Phis returns the phi instructions at the head of the block.
func (b *BasicBlock) Phis() []*PhiInst {
	var out []*PhiInst
	for i := b.head; i != nil; i = i.Next() {
		phi, ok := i.(*PhiInst)
		if !ok {
			break
		}
		out = append(out, phi)
	}
	return out
}

// PushBack appends inst at the end of the block.
func (b *BasicBlock) PushBack(inst Instr) {
	b.insertBetween(inst, b.tail, nil)
}

// PushFront inserts inst at the beginning of the block.
func (b *BasicBlock) PushFront(inst Instr) {
	b.insertBetween(inst, nil, b.head)
}

// InsertBefore inserts inst immediately before pos. A nil pos appends
// at the end of the block.
func (b *BasicBlock) InsertBefore(inst, pos Instr) {
	if pos == nil {
		b.PushBack(inst)
		return
	}
	b.insertBetween(inst, pos.Prev(), pos)
}

// InsertAfter inserts inst immediately after pos.
func (b *BasicBlock) InsertAfter(inst, pos Instr) {
	b.insertBetween(inst, pos, pos.Next())
}

func (b *BasicBlock) insertBetween(inst, prev, next Instr) {
	if inst.Block() != nil {
		panic("ir: instruction already belongs to a block")
	}
	inst.setBlock(b)
	inst.setPrev(prev)
	inst.setNext(next)
	if prev != nil {
		prev.setNext(inst)
	} else {
		b.head = inst
	}
	if next != nil {
		next.setPrev(inst)
	} else {
		b.tail = inst
	}
	b.n++
}

// Remove unlinks inst from the block. The instruction's operands and
// uses are untouched; callers discarding it should UnuseAll first.
func (b *BasicBlock) Remove(inst Instr) {
	if inst.Block() != b {
		panic("ir: removing instruction from wrong block")
	}
	prev, next := inst.Prev(), inst.Next()
	if prev != nil {
		prev.setNext(next)
	} else {
		b.head = next
	}
	if next != nil {
		next.setPrev(prev)
	} else {
		b.tail = prev
	}
	inst.setBlock(nil)
	inst.setPrev(nil)
	inst.setNext(nil)
	b.n--
}

// LinkBlocks records a CFG edge from -> to in both adjacency lists.
// Duplicate edges are kept; a conditional branch with equal targets
// contributes two edges.
func LinkBlocks(from, to *BasicBlock) {
	from.succs = append(from.succs, to)
	to.preds = append(to.preds, from)
}

// UnlinkBlocks removes one CFG edge from -> to from both adjacency
// lists.
func UnlinkBlocks(from, to *BasicBlock) {
	from.succs = removeBlock(from.succs, to)
	to.preds = removeBlock(to.preds, from)
}

func removeBlock(bs []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for i, x := range bs {
		if x == b {
			return append(bs[:i], bs[i+1:]...)
		}
	}
	return bs
}
