// Package hldump renders a module as the fixed, line-oriented textual
// format of spec §4.7/§6.3 — a pure function with no effect on
// serialization or execution, used for diagnostics and tests — and parses
// that format back, standing in for an external disassembler consumer.
package hldump

import (
	"fmt"
	"strings"

	"github.com/oisee/hlbc/pkg/hlir"
)

// Dump renders m in the format of spec §6.3: one header line, an entry
// line, then globals/floats/natives/functions sections in order.
func Dump(m *hlir.Module) string {
	var b strings.Builder

	fmt.Fprintf(&b, "hl v%d\n", m.Version)
	fmt.Fprintf(&b, "entry @%d\n", m.Entrypoint)

	fmt.Fprintf(&b, "%d globals\n", len(m.Globals))
	for i, t := range m.Globals {
		fmt.Fprintf(&b, "\t@%d : %s\n", i, t)
	}

	fmt.Fprintf(&b, "%d floats\n", len(m.Floats))
	for i, f := range m.Floats {
		fmt.Fprintf(&b, "\t@%d : %g\n", i, f)
	}

	fmt.Fprintf(&b, "%d natives\n", len(m.Natives))
	for _, n := range m.Natives {
		fmt.Fprintf(&b, "\tnative %s @%d : %s\n", n.Name, n.Global, m.Globals[n.Global])
	}

	fmt.Fprintf(&b, "%d functions\n", len(m.Functions))
	for _, fn := range m.Functions {
		fmt.Fprintf(&b, "\tfun %d : %s\n", fn.Index, m.Globals[fn.Index])
		for i, t := range fn.Regs {
			fmt.Fprintf(&b, "\t\tr%d %s\n", i, t)
		}
		for pc, op := range fn.Code {
			fmt.Fprintf(&b, "\t\t@%d %s\n", pc, dumpOpcode(op))
		}
	}

	return b.String()
}

// dumpOpcode renders one opcode as "<mnemonic> <operands>", operands
// comma-separated with no surrounding space (spec §6.3, e.g. "int 0,42").
// Call0/1/2/3 print their global operand second; CallN prints its callee
// register second in the same position — the mnemonic "calln" is what
// distinguishes the two, since spec §6.2 keeps them as distinct opcodes
// with distinct wire tags.
func dumpOpcode(op hlir.Opcode) string {
	switch op.Op {
	case hlir.OpMov:
		return fmt.Sprintf("mov %d,%d", op.R, op.A)
	case hlir.OpInt:
		return fmt.Sprintf("int %d,%d", op.R, op.Imm)
	case hlir.OpFloat:
		return fmt.Sprintf("float %d,%d", op.R, op.FloatIdx)
	case hlir.OpBool:
		if op.BoolVal {
			return fmt.Sprintf("true %d", op.R)
		}
		return fmt.Sprintf("false %d", op.R)
	case hlir.OpAdd:
		return fmt.Sprintf("add %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpSub:
		return fmt.Sprintf("sub %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpIncr:
		return fmt.Sprintf("incr %d", op.R)
	case hlir.OpDecr:
		return fmt.Sprintf("decr %d", op.R)
	case hlir.OpCall0, hlir.OpCall1, hlir.OpCall2, hlir.OpCall3:
		return fmt.Sprintf("call %d,%d%s", op.R, op.Global, argSuffix(op.Args))
	case hlir.OpCallN:
		return fmt.Sprintf("calln %d,%d%s", op.R, op.A, argSuffix(op.Args))
	case hlir.OpGetGlobal:
		return fmt.Sprintf("global %d,%d", op.R, op.Global)
	case hlir.OpSetGlobal:
		// Operand order (global, r) matches the writer's wire order and the
		// verifier's symmetric treatment of GetGlobal/SetGlobal — spec §9's
		// open question, resolved in SPEC_FULL §6.3.
		return fmt.Sprintf("setglobal %d,%d", op.Global, op.R)
	case hlir.OpEq:
		return fmt.Sprintf("eq %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpNotEq:
		return fmt.Sprintf("noteq %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpLt:
		return fmt.Sprintf("lt %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpGte:
		return fmt.Sprintf("gte %d,%d,%d", op.R, op.A, op.B)
	case hlir.OpRet:
		return fmt.Sprintf("ret %d", op.R)
	case hlir.OpJTrue:
		return fmt.Sprintf("jtrue %d,%+d", op.R, op.Delta)
	case hlir.OpJFalse:
		return fmt.Sprintf("jfalse %d,%+d", op.R, op.Delta)
	case hlir.OpJNull:
		return fmt.Sprintf("jnull %d,%+d", op.R, op.Delta)
	case hlir.OpJNotNull:
		return fmt.Sprintf("jnotnull %d,%+d", op.R, op.Delta)
	case hlir.OpJAlways:
		return fmt.Sprintf("jalways %+d", op.Delta)
	case hlir.OpToAny:
		return fmt.Sprintf("toany %d,%d", op.R, op.A)
	default:
		return fmt.Sprintf("?op%d", op.Op)
	}
}

func argSuffix(args []hlir.RegId) string {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprintf(&b, ",%d", a)
	}
	return b.String()
}
