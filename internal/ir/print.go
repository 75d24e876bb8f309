package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/tarn-lang/tarn/internal/types"
)

// Fprint writes the module in its textual form: globals first, then
// function definitions and declarations in insertion order. Two
// consecutive dumps of an unmodified module are byte-equal.
func Fprint(w io.Writer, m *Module) {
	for _, g := range m.Globals() {
		fprintGlobal(w, g)
	}
	if len(m.Globals()) > 0 {
		fmt.Fprintln(w)
	}
	first := true
	for _, f := range m.Funcs() {
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		FprintFunc(w, f)
	}
}

// Sprint returns the textual form of the module.
func Sprint(m *Module) string {
	var sb strings.Builder
	Fprint(&sb, m)
	return sb.String()
}

// SprintFunc returns the textual form of a single function.
func SprintFunc(f *Function) string {
	var sb strings.Builder
	FprintFunc(&sb, f)
	return sb.String()
}

func fprintGlobal(w io.Writer, g *GlobalVariable) {
	kind := "global"
	if g.IsConst() {
		kind = "constant"
	}
	fmt.Fprintf(w, "%s = %s %s", g.String(), kind, g.BaseType())
	if g.NumInits() > 0 {
		parts := make([]string, g.NumInits())
		for i := range parts {
			parts[i] = g.Init(i).String()
		}
		fmt.Fprintf(w, " [%s]", strings.Join(parts, ", "))
	}
	fmt.Fprintln(w)
}

// FprintFunc writes a single function: a define with the block list for
// a definition, a declare line for a declaration.
func FprintFunc(w io.Writer, f *Function) {
	if f.IsDeclaration() {
		fmt.Fprintf(w, "declare %s %s(%s)\n", f.RetType(), f, formatParams(f))
		return
	}
	fmt.Fprintf(w, "define %s %s(%s) {\n", f.RetType(), f, formatParams(f))
	for i, b := range f.Blocks() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fprintBlock(w, b)
	}
	fmt.Fprintln(w, "}")
}

func formatParams(f *Function) string {
	parts := make([]string, f.NumArgs())
	for i, a := range f.Args() {
		parts[i] = fmt.Sprintf("%s %s", a.Type(), a)
	}
	return strings.Join(parts, ", ")
}

func fprintBlock(w io.Writer, b *BasicBlock) {
	fmt.Fprintf(w, "%s:", b.Name())
	if len(b.Preds()) > 0 {
		parts := make([]string, len(b.Preds()))
		for i, p := range b.Preds() {
			parts[i] = p.String()
		}
		fmt.Fprintf(w, " ; preds = %s", strings.Join(parts, ", "))
	} else if b.IsEntry() {
		fmt.Fprintf(w, " ; entry")
	}
	fmt.Fprintln(w)
	for i := b.First(); i != nil; i = i.Next() {
		fmt.Fprintf(w, "  %s", FormatInstr(i))
		if c := i.Comment(); c != "" {
			fmt.Fprintf(w, " ; %s", c)
		}
		fmt.Fprintln(w)
	}
}

// FormatInstr returns the printed form of a single instruction.
func FormatInstr(inst Instr) string {
	switch i := inst.(type) {
	case *AllocaInst:
		s := fmt.Sprintf("%s = alloca %s", i, i.BaseType())
		if i.IsConst() {
			s += ", const"
		}
		return s
	case *LoadInst:
		return fmt.Sprintf("%s = load %s, %s", i, i.Type(), typed(i.Ptr()))
	case *StoreInst:
		return fmt.Sprintf("store %s, %s", typed(i.Val()), typed(i.Ptr()))
	case *GetElementPtrInst:
		return fmt.Sprintf("%s = getelementptr %s, %s, %s",
			i, i.BaseType(), typed(i.Ptr()), typed(i.Index()))
	case *MemsetInst:
		return fmt.Sprintf("memset %s, %s, %s",
			typed(i.Ptr()), typed(i.Byte()), typed(i.Len()))
	case *ReturnInst:
		if v := i.Value(); v != nil {
			return fmt.Sprintf("ret %s", typed(v))
		}
		return "ret void"
	case *BranchInst:
		if i.IsCond() {
			return fmt.Sprintf("br %s, label %s, label %s",
				typed(i.Cond()), i.TrueTarget(), i.FalseTarget())
		}
		return fmt.Sprintf("br label %s", i.Target())
	case *BinaryInst:
		return fmt.Sprintf("%s = %s %s %s, %s",
			i, i.ValueID(), i.Type(), i.LHS(), i.RHS())
	case *CmpInst:
		return fmt.Sprintf("%s = %s %s %s, %s",
			i, i.ValueID(), i.LHS().Type(), i.LHS(), i.RHS())
	case *UnaryInst:
		if i.ValueID() == VFNeg {
			return fmt.Sprintf("%s = fneg %s", i, typed(i.Val()))
		}
		return fmt.Sprintf("%s = %s %s to %s", i, i.ValueID(), typed(i.Val()), i.Type())
	case *CallInst:
		args := make([]string, i.NumArgs())
		for j := range args {
			args[j] = typed(i.Arg(j))
		}
		call := fmt.Sprintf("call %s %s(%s)", i.Callee().RetType(), i.Callee(), strings.Join(args, ", "))
		if types.IsVoid(i.Type()) {
			return call
		}
		return fmt.Sprintf("%s = %s", i, call)
	case *PhiInst:
		pairs := make([]string, i.NumIncoming())
		for j := range pairs {
			pairs[j] = fmt.Sprintf("[ %s, %s ]", operand(i.IncomingValue(j)), i.IncomingBlock(j))
		}
		return fmt.Sprintf("%s = phi %s %s", i, i.Type(), strings.Join(pairs, ", "))
	}
	return fmt.Sprintf("%s = %s ???", inst, inst.ValueID())
}

// typed renders an operand with its type prefix; nil operands render as
// a hole so broken IR still dumps.
func typed(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s", v.Type(), v)
}

func operand(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
