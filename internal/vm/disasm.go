package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of every method of an
// artifact, or a one-line summary for a holder.
func Disassemble(a *Artifact) string {
	var sb strings.Builder
	if a.Kind == KindHolder {
		fmt.Fprintf(&sb, "== holder %s : %s tag=%d payload=%t ==\n", a.Name, a.Sum, a.Tag, a.Payload)
		return sb.String()
	}
	fmt.Fprintf(&sb, "== module %s ==\n", a.Name)
	for _, f := range a.Fields {
		fmt.Fprintf(&sb, "field %s %s\n", f.Name, f.Descriptor)
	}
	for _, m := range a.Methods {
		sb.WriteString(DisassembleMethod(a, m))
	}
	return sb.String()
}

// DisassembleMethod lists the instructions of one method.
func DisassembleMethod(a *Artifact, m *Method) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- %s %s locals=%d", m.Name, m.Descriptor, m.MaxLocals)
	if m.Signature != "" {
		fmt.Fprintf(&sb, " : %s", m.Signature)
	}
	sb.WriteString(" --\n")
	offset := 0
	for offset < len(m.Code) {
		offset = disassembleInstruction(&sb, a, m, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, a *Artifact, m *Method, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)

	// Print line number
	if offset > 0 && offset < len(m.Lines) && m.Lines[offset] == m.Lines[offset-1] {
		sb.WriteString("   | ")
	} else if offset < len(m.Lines) {
		fmt.Fprintf(sb, "%4d ", m.Lines[offset])
	}

	op := Opcode(m.Code[offset])
	width := op.width()
	if offset+width > len(m.Code) {
		fmt.Fprintf(sb, "%s <truncated>\n", op)
		return len(m.Code)
	}
	operand := func() int { return int(m.Code[offset+1])<<8 | int(m.Code[offset+2]) }
	constant := func(idx int) string {
		if idx < len(a.Constants) {
			return a.Constants[idx].String()
		}
		return "<bad constant>"
	}

	switch op.operands() {
	case operandNone:
		fmt.Fprintf(sb, "%s\n", op)
	case operandU8:
		fmt.Fprintf(sb, "%-18s %d\n", op, m.Code[offset+1])
	case operandSlot, operandCount:
		fmt.Fprintf(sb, "%-18s %d\n", op, operand())
	case operandConst:
		idx := operand()
		fmt.Fprintf(sb, "%-18s #%d %s\n", op, idx, constant(idx))
	case operandJump:
		fmt.Fprintf(sb, "%-18s -> %04d\n", op, offset+3+operand())
	case operandClosure:
		idx := operand()
		fmt.Fprintf(sb, "%-18s #%d %s captures=%d\n", op, idx, constant(idx), m.Code[offset+3])
	}
	return offset + width
}
