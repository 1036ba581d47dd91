// Package hlverify statically checks a lowered module before it is
// serialized or executed (spec §4.4). It reproduces the per-opcode typing
// rules verbatim and reports only the first violation found.
package hlverify

import (
	"fmt"

	"github.com/oisee/hlbc/pkg/hlir"
)

// Violation is the one diagnostic the verifier ever produces: the
// function and instruction offset where the first rule broke, and a
// human message (spec §7 "message identifies function index, instruction
// offset, and the failing rule").
type Violation struct {
	FuncIndex   int
	InstrOffset int
	Message     string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("function %d, instruction %d: %s", v.FuncIndex, v.InstrOffset, v.Message)
}

// Verify checks every function in m and returns the first Violation
// found, or nil if the whole module passes.
func Verify(m *hlir.Module) error {
	for fi, fn := range m.Functions {
		if err := verifyFunc(m, fi, fn); err != nil {
			return err
		}
	}
	return nil
}

func verifyFunc(m *hlir.Module, fi int, fn *hlir.FunDecl) error {
	fail := func(off int, format string, args ...any) error {
		return &Violation{FuncIndex: fi, InstrOffset: off, Message: fmt.Sprintf(format, args...)}
	}

	globalType := m.Globals[fn.Index]
	if globalType.Kind != hlir.KFun {
		return fail(-1, "globals[%d] is not a function type, got %s", fn.Index, globalType)
	}
	if len(fn.Regs) < len(globalType.Args) {
		return fail(-1, "regs has %d entries, fewer than the %d declared arguments", len(fn.Regs), len(globalType.Args))
	}
	for i, want := range globalType.Args {
		if !fn.Regs[i].Equal(want) {
			return fail(-1, "argument register %d has type %s, want %s", i, fn.Regs[i], want)
		}
	}
	retType := *globalType.Ret

	regType := func(r hlir.RegId) (hlir.Type, bool) {
		if int(r) < 0 || int(r) >= len(fn.Regs) {
			return hlir.Type{}, false
		}
		return fn.Regs[r], true
	}

	inRange := func(pos int, delta int32) bool {
		target := pos + 1 + int(delta)
		return target >= 0 && target < len(fn.Code)
	}

	for pc, op := range fn.Code {
		switch op.Op {
		case hlir.OpMov:
			a, ok1 := regType(op.R)
			b, ok2 := regType(op.A)
			if !ok1 || !ok2 {
				return fail(pc, "mov: register out of range")
			}
			if !a.Equal(b) {
				return fail(pc, "mov: type(r%d)=%s != type(r%d)=%s", op.R, a, op.A, b)
			}

		case hlir.OpInt:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "int: register out of range")
			}
			if r.Kind == hlir.KUI8 {
				if op.Imm < 0 || op.Imm > 255 {
					return fail(pc, "int: %d does not fit ui8 [0,255]", op.Imm)
				}
			} else if r.Kind != hlir.KI32 {
				return fail(pc, "int: r%d has non-integer type %s", op.R, r)
			}

		case hlir.OpFloat:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "float: register out of range")
			}
			if r.Kind != hlir.KF32 && r.Kind != hlir.KF64 {
				return fail(pc, "float: r%d has non-float type %s", op.R, r)
			}
			if op.FloatIdx < 0 || op.FloatIdx >= len(m.Floats) {
				return fail(pc, "float: index %d out of bounds of the float pool (len %d)", op.FloatIdx, len(m.Floats))
			}

		case hlir.OpBool:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "bool: register out of range")
			}
			if r.Kind != hlir.KBool {
				return fail(pc, "bool: r%d has type %s, want bool", op.R, r)
			}

		case hlir.OpAdd, hlir.OpSub:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "%s: register out of range", op.Op)
			}
			if !r.IsNumeric() {
				return fail(pc, "%s: r%d has non-numeric type %s", op.Op, op.R, r)
			}
			a, _ := regType(op.A)
			b, _ := regType(op.B)
			if !a.Equal(r) || !b.Equal(r) {
				return fail(pc, "%s: operand types %s, %s do not match result type %s", op.Op, a, b, r)
			}

		case hlir.OpIncr, hlir.OpDecr:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "%s: register out of range", op.Op)
			}
			if r.Kind != hlir.KUI8 && r.Kind != hlir.KI32 {
				return fail(pc, "%s: r%d has type %s, want ui8 or i32", op.Op, op.R, r)
			}

		case hlir.OpCall0, hlir.OpCall1, hlir.OpCall2, hlir.OpCall3:
			if err := verifyStaticCall(fail, m, pc, fn, op); err != nil {
				return err
			}

		case hlir.OpCallN:
			if err := verifyDynamicCall(fail, pc, fn, op); err != nil {
				return err
			}

		case hlir.OpGetGlobal:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "global: register out of range")
			}
			g, gok := globalTypeAt(m, op.Global)
			if !gok {
				return fail(pc, "global: global %d out of range", op.Global)
			}
			if !r.Equal(g) {
				return fail(pc, "global: r%d has type %s, globals[%d] has type %s", op.R, r, op.Global, g)
			}

		case hlir.OpSetGlobal:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "setglobal: register out of range")
			}
			g, gok := globalTypeAt(m, op.Global)
			if !gok {
				return fail(pc, "setglobal: global %d out of range", op.Global)
			}
			if !r.Equal(g) {
				return fail(pc, "setglobal: r%d has type %s, globals[%d] has type %s", op.R, r, op.Global, g)
			}

		case hlir.OpEq, hlir.OpNotEq, hlir.OpLt, hlir.OpGte:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "%s: register out of range", op.Op)
			}
			if r.Kind != hlir.KBool {
				return fail(pc, "%s: r%d has type %s, want bool", op.Op, op.R, r)
			}
			a, _ := regType(op.A)
			b, _ := regType(op.B)
			if !a.Equal(b) {
				return fail(pc, "%s: type(r%d)=%s != type(r%d)=%s", op.Op, op.A, a, op.B, b)
			}

		case hlir.OpRet:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "ret: register out of range")
			}
			if !r.Equal(retType) {
				return fail(pc, "ret: r%d has type %s, function returns %s", op.R, r, retType)
			}

		case hlir.OpJTrue, hlir.OpJFalse:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "%s: register out of range", op.Op)
			}
			if r.Kind != hlir.KBool {
				return fail(pc, "%s: r%d has type %s, want bool", op.Op, op.R, r)
			}
			if !inRange(pc, op.Delta) {
				return fail(pc, "%s: jump target out of range", op.Op)
			}

		case hlir.OpJNull, hlir.OpJNotNull:
			if _, ok := regType(op.R); !ok {
				return fail(pc, "%s: register out of range", op.Op)
			}
			if !inRange(pc, op.Delta) {
				return fail(pc, "%s: jump target out of range", op.Op)
			}

		case hlir.OpJAlways:
			if !inRange(pc, op.Delta) {
				return fail(pc, "jalways: jump target out of range")
			}

		case hlir.OpToAny:
			r, ok := regType(op.R)
			if !ok {
				return fail(pc, "toany: register out of range")
			}
			if r.Kind != hlir.KAny {
				return fail(pc, "toany: r%d has type %s, want Any", op.R, r)
			}
			if _, ok := regType(op.A); !ok {
				return fail(pc, "toany: source register out of range")
			}

		default:
			return fail(pc, "unknown opcode %d", op.Op)
		}
	}
	return nil
}

func globalTypeAt(m *hlir.Module, g hlir.GlobalId) (hlir.Type, bool) {
	if int(g) < 0 || int(g) >= len(m.Globals) {
		return hlir.Type{}, false
	}
	return m.Globals[g], true
}

func verifyStaticCall(fail func(int, string, ...any) error, m *hlir.Module, pc int, fn *hlir.FunDecl, op hlir.Opcode) error {
	g, ok := globalTypeAt(m, op.Global)
	if !ok || g.Kind != hlir.KFun {
		return fail(pc, "call: globals[%d] is not a function type", op.Global)
	}
	if len(op.Args) != len(g.Args) {
		return fail(pc, "call: %d args given, callee takes %d", len(op.Args), len(g.Args))
	}
	for i, a := range op.Args {
		if int(a) < 0 || int(a) >= len(fn.Regs) {
			return fail(pc, "call: argument register %d out of range", a)
		}
		if !fn.Regs[a].Equal(g.Args[i]) {
			return fail(pc, "call: argument %d has type %s, want %s", i, fn.Regs[a], g.Args[i])
		}
	}
	if int(op.R) < 0 || int(op.R) >= len(fn.Regs) || !fn.Regs[op.R].Equal(*g.Ret) {
		return fail(pc, "call: result register does not match return type %s", *g.Ret)
	}
	return nil
}

func verifyDynamicCall(fail func(int, string, ...any) error, pc int, fn *hlir.FunDecl, op hlir.Opcode) error {
	if int(op.A) < 0 || int(op.A) >= len(fn.Regs) {
		return fail(pc, "calln: callee register out of range")
	}
	callee := fn.Regs[op.A]
	if callee.Kind != hlir.KFun {
		return fail(pc, "calln: callee register has type %s, not a function", callee)
	}
	if len(op.Args) != len(callee.Args) {
		return fail(pc, "calln: %d args given, callee takes %d", len(op.Args), len(callee.Args))
	}
	for i, a := range op.Args {
		if int(a) < 0 || int(a) >= len(fn.Regs) {
			return fail(pc, "calln: argument register %d out of range", a)
		}
		if !fn.Regs[a].Equal(callee.Args[i]) {
			return fail(pc, "calln: argument %d has type %s, want %s", i, fn.Regs[a], callee.Args[i])
		}
	}
	if int(op.R) < 0 || int(op.R) >= len(fn.Regs) || !fn.Regs[op.R].Equal(*callee.Ret) {
		return fail(pc, "calln: result register does not match return type %s", *callee.Ret)
	}
	return nil
}
