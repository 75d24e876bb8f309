package ir

import (
	"fmt"
	"strings"

	"github.com/tarn-lang/tarn/internal/types"
)

// Verify checks the structural, type, SSA, and CFG invariants of a
// module. All violations found are accumulated and folded into a single
// error; nil means the module is valid. Unreachable blocks are reported
// as warnings through Diagnostics but do not fail verification.
func Verify(m *Module) error {
	d := &diags{}
	verifyModule(d, m)
	return d.err()
}

// VerifyFunc checks a single function.
func VerifyFunc(f *Function) error {
	d := &diags{}
	verifyFunc(d, f)
	return d.err()
}

// Diagnostics runs verification and returns every diagnostic line plus
// a success flag, for callers that want to render the stream themselves.
func Diagnostics(m *Module) (errs, warns []string, ok bool) {
	d := &diags{}
	verifyModule(d, m)
	return d.errs, d.warns, len(d.errs) == 0
}

type diags struct {
	errs  []string
	warns []string
}

func (d *diags) add(format string, args ...any) {
	d.errs = append(d.errs, fmt.Sprintf(format, args...))
}

func (d *diags) warn(format string, args ...any) {
	d.warns = append(d.warns, fmt.Sprintf(format, args...))
}

func (d *diags) err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return fmt.Errorf("IR verification failed:\n  %s", strings.Join(d.errs, "\n  "))
}

func verifyModule(d *diags, m *Module) {
	// Unique global names across functions and globals.
	seen := make(map[string]bool)
	for _, f := range m.Funcs() {
		if seen[f.Name()] {
			d.add("module: duplicate global name %q", f.Name())
		}
		seen[f.Name()] = true
	}
	for _, g := range m.Globals() {
		if seen[g.Name()] {
			d.add("module: duplicate global name %q", g.Name())
		}
		seen[g.Name()] = true
	}
	for _, f := range m.Funcs() {
		verifyFunc(d, f)
	}
}

func verifyFunc(d *diags, f *Function) {
	ft, ok := f.Type().(*types.Func)
	if !ok {
		d.add("func %s: type %s is not a function type", f.Name(), f.Type())
		return
	}
	if f.NumArgs() != ft.NumParams() {
		d.add("func %s: %d arguments, function type wants %d",
			f.Name(), f.NumArgs(), ft.NumParams())
	}
	for i, a := range f.Args() {
		if i < ft.NumParams() && !types.Identical(a.Type(), ft.Param(i)) {
			d.add("func %s: argument %d has type %s, function type wants %s",
				f.Name(), i, a.Type(), ft.Param(i))
		}
	}

	if f.IsDeclaration() {
		if f.Entry() != nil {
			d.add("func %s: declaration has an entry block", f.Name())
		}
		return
	}

	entry := f.Entry()
	if entry == nil {
		d.add("func %s: definition has no entry block", f.Name())
		return
	}
	if entry.Parent() != f {
		d.add("func %s: entry block belongs to another function", f.Name())
	}
	if len(entry.Preds()) != 0 {
		d.add("func %s: entry block %s has %d predecessors, want 0",
			f.Name(), entry.Name(), len(entry.Preds()))
	}

	blockSet := make(map[*BasicBlock]bool, f.NumBlocks())
	for _, b := range f.Blocks() {
		blockSet[b] = true
	}

	for _, b := range f.Blocks() {
		verifyBlock(d, f, b, blockSet)
	}

	verifySSA(d, f)

	// Unreachable blocks are legal but suspicious.
	reachable := reachableFrom(entry)
	for _, b := range f.Blocks() {
		if !reachable[b] {
			d.warn("func %s: block %s is unreachable from entry", f.Name(), b.Name())
		}
	}
}

func verifyBlock(d *diags, f *Function, b *BasicBlock, blockSet map[*BasicBlock]bool) {
	if b.Parent() != f {
		d.add("func %s, %s: block parent pointer mismatch", f.Name(), b.Name())
	}

	// Exactly one terminator, in last position.
	term := b.Terminator()
	if term == nil {
		d.add("func %s, %s: no terminator", f.Name(), b.Name())
	}
	for i := b.First(); i != nil; i = i.Next() {
		if i.IsTerminator() && i != b.Last() {
			d.add("func %s, %s: terminator %s is not the last instruction",
				f.Name(), b.Name(), i.ValueID())
		}
		if i.Block() != b {
			d.add("func %s, %s: instruction %s has wrong block pointer",
				f.Name(), b.Name(), i.ValueID())
		}
		verifyOperands(d, f, b, i)
		verifyInstrTypes(d, f, b, i)
	}

	// CFG edge consistency against the terminator's targets.
	if br, ok := term.(*BranchInst); ok {
		want := br.Targets()
		if len(want) != len(b.Succs()) {
			d.add("func %s, %s: %d successors recorded, terminator names %d",
				f.Name(), b.Name(), len(b.Succs()), len(want))
		}
		for _, t := range want {
			if !containsBlock(b.Succs(), t) {
				d.add("func %s, %s: terminator target %s missing from successors",
					f.Name(), b.Name(), t.Name())
			}
		}
	} else if term != nil && len(b.Succs()) != 0 {
		d.add("func %s, %s: return block has %d successors, want 0",
			f.Name(), b.Name(), len(b.Succs()))
	}
	for _, s := range b.Succs() {
		if !blockSet[s] {
			d.add("func %s, %s: successor %s not in function", f.Name(), b.Name(), s.Name())
			continue
		}
		if !containsBlock(s.Preds(), b) {
			d.add("func %s, %s: successor %s does not list %s as predecessor",
				f.Name(), b.Name(), s.Name(), b.Name())
		}
	}
	for _, p := range b.Preds() {
		if !blockSet[p] {
			d.add("func %s, %s: predecessor %s not in function", f.Name(), b.Name(), p.Name())
			continue
		}
		if !containsBlock(p.Succs(), b) {
			d.add("func %s, %s: predecessor %s does not list %s as successor",
				f.Name(), b.Name(), p.Name(), b.Name())
		}
	}
}

// verifyOperands checks the use-list bijection for one instruction:
// every slot is non-nil and backed by a matching Use in the operand's
// use list, and every Use pointing here names a real slot.
func verifyOperands(d *diags, f *Function, b *BasicBlock, inst Instr) {
	for i, use := range inst.Operands() {
		if use.Index() != i {
			d.add("func %s, %s: %s operand %d carries index %d",
				f.Name(), b.Name(), inst.ValueID(), i, use.Index())
		}
		if use.User() != User(inst) {
			d.add("func %s, %s: %s operand %d carries wrong user",
				f.Name(), b.Name(), inst.ValueID(), i)
		}
		v := use.Value()
		if v == nil {
			d.add("func %s, %s: %s operand %d is nil",
				f.Name(), b.Name(), inst.ValueID(), i)
			continue
		}
		found := false
		for _, u := range v.Uses() {
			if u == use {
				found = true
				break
			}
		}
		if !found {
			d.add("func %s, %s: %s operand %d has no matching use record",
				f.Name(), b.Name(), inst.ValueID(), i)
		}
	}
	// The reverse direction: uses of this instruction must point at
	// real slots holding it.
	for _, u := range inst.Uses() {
		user := u.User()
		if u.Index() >= user.NumOperands() || user.Operand(u.Index()) != Value(inst) {
			d.add("func %s, %s: stale use record on %s",
				f.Name(), b.Name(), inst.ValueID())
		}
	}
}

// verifyInstrTypes checks per-kind operand type requirements.
func verifyInstrTypes(d *diags, f *Function, b *BasicBlock, inst Instr) {
	bad := func(format string, args ...any) {
		prefix := fmt.Sprintf("func %s, %s: ", f.Name(), b.Name())
		d.add(prefix+format, args...)
	}
	switch i := inst.(type) {
	case *LoadInst:
		p, ok := i.Ptr().Type().(*types.Pointer)
		if !ok {
			bad("load from non-pointer %s", i.Ptr().Type())
		} else if !types.Identical(p.Base(), i.Type()) {
			bad("load result %s does not match pointee %s", i.Type(), p.Base())
		}
	case *StoreInst:
		p, ok := i.Ptr().Type().(*types.Pointer)
		if !ok {
			bad("store to non-pointer %s", i.Ptr().Type())
		} else if !types.Identical(p.Base(), i.Val().Type()) {
			bad("store of %s through pointer to %s", i.Val().Type(), p.Base())
		}
	case *GetElementPtrInst:
		if !types.IsPointer(i.Ptr().Type()) {
			bad("getelementptr base is %s, want pointer", i.Ptr().Type())
		}
		if !types.IsInteger(i.Index().Type()) {
			bad("getelementptr index is %s, want integer", i.Index().Type())
		}
	case *MemsetInst:
		if !types.IsPointer(i.Ptr().Type()) {
			bad("memset destination is %s, want pointer", i.Ptr().Type())
		}
	case *BinaryInst:
		if !types.Identical(i.LHS().Type(), i.RHS().Type()) {
			bad("%s operand types differ: %s vs %s",
				i.ValueID(), i.LHS().Type(), i.RHS().Type())
		}
		if !types.Identical(i.LHS().Type(), i.Type()) {
			bad("%s result type %s does not match operands %s",
				i.ValueID(), i.Type(), i.LHS().Type())
		}
		if isFloatID(i.ValueID()) != types.IsFloat(i.Type()) {
			bad("%s on %s mixes integer and float domains", i.ValueID(), i.Type())
		}
	case *CmpInst:
		if !types.Identical(i.LHS().Type(), i.RHS().Type()) {
			bad("%s operand types differ: %s vs %s",
				i.ValueID(), i.LHS().Type(), i.RHS().Type())
		}
		if i.ValueID().IsICmp() && !types.IsInteger(i.LHS().Type()) && !types.IsPointer(i.LHS().Type()) {
			bad("icmp on non-integer %s", i.LHS().Type())
		}
		if i.ValueID().IsFCmp() && !types.IsFloat(i.LHS().Type()) {
			bad("fcmp on non-float %s", i.LHS().Type())
		}
	case *BranchInst:
		if i.IsCond() {
			if !types.IsBool(i.Cond().Type()) {
				bad("branch condition is %s, want i1", i.Cond().Type())
			}
			if _, ok := i.Operand(1).(*BasicBlock); !ok {
				bad("branch true target is not a block")
			}
			if _, ok := i.Operand(2).(*BasicBlock); !ok {
				bad("branch false target is not a block")
			}
		} else if _, ok := i.Operand(0).(*BasicBlock); !ok {
			bad("branch target is not a block")
		}
	case *ReturnInst:
		ret := f.RetType()
		if v := i.Value(); v != nil {
			if !types.Identical(v.Type(), ret) {
				bad("ret %s from function returning %s", v.Type(), ret)
			}
		} else if !types.IsVoid(ret) {
			bad("ret void from function returning %s", ret)
		}
	case *CallInst:
		callee := i.Callee()
		ct := callee.FuncType()
		if i.NumArgs() != ct.NumParams() {
			bad("call of %s with %d arguments, want %d",
				callee.Name(), i.NumArgs(), ct.NumParams())
		}
		for j := 0; j < i.NumArgs() && j < ct.NumParams(); j++ {
			if !types.Identical(i.Arg(j).Type(), ct.Param(j)) {
				bad("call of %s argument %d is %s, want %s",
					callee.Name(), j, i.Arg(j).Type(), ct.Param(j))
			}
		}
	case *PhiInst:
		// Incoming blocks must equal the predecessor set, values must
		// match the phi type.
		if i.NumIncoming() != len(b.Preds()) {
			bad("phi has %d incoming pairs, block has %d predecessors",
				i.NumIncoming(), len(b.Preds()))
		}
		for j := 0; j < i.NumIncoming(); j++ {
			in := i.IncomingBlock(j)
			if !containsBlock(b.Preds(), in) {
				bad("phi incoming block %s is not a predecessor", in.Name())
			}
			if v := i.IncomingValue(j); v != nil && !types.Identical(v.Type(), i.Type()) {
				bad("phi incoming value %d is %s, want %s", j, v.Type(), i.Type())
			}
		}
	}
}

func isFloatID(id ValueID) bool {
	switch id {
	case VFAdd, VFSub, VFMul, VFDiv, VFRem:
		return true
	}
	return false
}

// verifySSA checks single definition and that every use is reachable
// from its definition: the defining block dominates the using block
// (with same-block order for straight-line uses, and incoming-edge
// dominance for phis).
func verifySSA(d *diags, f *Function) {
	reachable := reachableFrom(f.Entry())

	// A value defines at most once: each instruction appears in exactly
	// one block at one position.
	seen := make(map[Instr]bool)
	pos := make(map[Instr]int)
	for _, b := range f.Blocks() {
		n := 0
		for i := b.First(); i != nil; i = i.Next() {
			if seen[i] {
				d.add("func %s: instruction %s defined more than once", f.Name(), i.ValueID())
			}
			seen[i] = true
			pos[i] = n
			n++
		}
	}

	idom := simpleIdom(f, reachable)
	dominates := func(a, b *BasicBlock) bool {
		for b != nil {
			if a == b {
				return true
			}
			next := idom[b]
			if next == b {
				return a == b
			}
			b = next
		}
		return false
	}

	for _, b := range f.Blocks() {
		if !reachable[b] {
			continue
		}
		for i := b.First(); i != nil; i = i.Next() {
			if phi, ok := i.(*PhiInst); ok {
				for j := 0; j < phi.NumIncoming(); j++ {
					def, ok := phi.IncomingValue(j).(Instr)
					if !ok {
						continue
					}
					pred := phi.IncomingBlock(j)
					if def.Block() != nil && !dominates(def.Block(), pred) {
						d.add("func %s, %s: phi incoming %s does not dominate edge from %s",
							f.Name(), b.Name(), def.ValueID(), pred.Name())
					}
				}
				continue
			}
			for k, use := range i.Operands() {
				def, ok := use.Value().(Instr)
				if !ok {
					continue
				}
				db := def.Block()
				if db == nil {
					d.add("func %s, %s: operand %d of %s is an orphan instruction",
						f.Name(), b.Name(), k, i.ValueID())
					continue
				}
				if db == b {
					if pos[def] >= pos[i] {
						d.add("func %s, %s: %s used before its definition",
							f.Name(), b.Name(), def.ValueID())
					}
				} else if !dominates(db, b) {
					d.add("func %s, %s: operand %d of %s defined in %s which does not dominate it",
						f.Name(), b.Name(), k, i.ValueID(), db.Name())
				}
			}
		}
	}
}

// simpleIdom computes immediate dominators for verification only; the
// analysis package owns the full DomTree. idom[entry] == entry.
func simpleIdom(f *Function, reachable map[*BasicBlock]bool) map[*BasicBlock]*BasicBlock {
	var rpo []*BasicBlock
	visited := make(map[*BasicBlock]bool)
	var dfs func(b *BasicBlock)
	dfs = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs() {
			dfs(s)
		}
		rpo = append(rpo, b)
	}
	if f.Entry() == nil {
		return nil
	}
	dfs(f.Entry())
	for i, j := 0, len(rpo)-1; i < j; i, j = i+1, j-1 {
		rpo[i], rpo[j] = rpo[j], rpo[i]
	}
	num := make(map[*BasicBlock]int, len(rpo))
	for i, b := range rpo {
		num[b] = i
	}
	idom := make(map[*BasicBlock]*BasicBlock, len(rpo))
	entry := rpo[0]
	idom[entry] = entry
	intersect := func(x, y *BasicBlock) *BasicBlock {
		for x != y {
			for num[x] > num[y] {
				x = idom[x]
			}
			for num[y] > num[x] {
				y = idom[y]
			}
		}
		return x
	}
	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds() {
				if !reachable[p] || idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func reachableFrom(entry *BasicBlock) map[*BasicBlock]bool {
	reachable := make(map[*BasicBlock]bool)
	if entry == nil {
		return reachable
	}
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range b.Succs() {
			walk(s)
		}
	}
	walk(entry)
	return reachable
}

func containsBlock(bs []*BasicBlock, b *BasicBlock) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}
