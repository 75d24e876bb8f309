package ir

// Instr is the interface implemented by all instructions. An instruction
// is a User that lives in exactly one BasicBlock, linked into the
// block's instruction list.
type Instr interface {
	User

	// Block returns the containing basic block, or nil for an orphan
	// instruction that has not been inserted anywhere.
	Block() *BasicBlock

	// Prev returns the previous instruction in the block, or nil.
	Prev() Instr

	// Next returns the next instruction in the block, or nil.
	Next() Instr

	// IsTerminator reports whether the instruction terminates its block.
	IsTerminator() bool

	setBlock(b *BasicBlock)
	setPrev(i Instr)
	setNext(i Instr)
}

// instrBase carries the list links and block pointer shared by every
// instruction kind.
type instrBase struct {
	userBase
	block *BasicBlock
	prev  Instr
	next  Instr
}

func (i *instrBase) Block() *BasicBlock { return i.block }

func (i *instrBase) Prev() Instr { return i.prev }

func (i *instrBase) Next() Instr { return i.next }

func (i *instrBase) IsTerminator() bool { return i.id.IsTerminator() }

func (i *instrBase) setBlock(b *BasicBlock) { i.block = b }

func (i *instrBase) setPrev(p Instr) { i.prev = p }

func (i *instrBase) setNext(n Instr) { i.next = n }
