// Package hlinterp executes a verified module directly over the opcode
// array (spec §4.5). It never re-derives types at run time: verification
// has already proven every opcode well-typed, so a shape mismatch here is
// an internal invariant violation, not a recoverable error (spec §9
// "Interpreter errors are invariants").
package hlinterp

import (
	"fmt"

	"github.com/oisee/hlbc/pkg/hlhost"
	"github.com/oisee/hlbc/pkg/hlir"
	"github.com/oisee/hlbc/pkg/hlverify"
)

// interp holds the state shared by every call frame during one run: the
// module and its global array. Natives are resolved once by Interp through
// the injected loader and stored in the global array (spec §9 "no global
// state... natives resolved via an injected loader").
type interp struct {
	mod     *hlir.Module
	globals []hlir.Value
}

// Interp verifies every function in m, binds globals and natives, then
// calls the entrypoint with no arguments and returns its result (spec
// §4.5 "Termination").
func Interp(m *hlir.Module, loader hlhost.Loader) (hlir.Value, error) {
	if err := hlverify.Verify(m); err != nil {
		return hlir.Value{}, err
	}

	it := &interp{mod: m, globals: make([]hlir.Value, len(m.Globals))}
	for i, t := range m.Globals {
		it.globals[i] = t.Default()
	}
	for _, fn := range m.Functions {
		it.globals[fn.Index] = hlir.FunVal(fn)
	}
	for _, nat := range m.Natives {
		handler, err := loader.Resolve(nat.Name)
		if err != nil {
			return hlir.Value{}, err
		}
		it.globals[nat.Global] = hlir.NativeVal(handler)
	}

	ep := it.globals[m.Entrypoint]
	if ep.Kind != hlir.VFun || ep.Fun == nil {
		panic("interpreter: entrypoint is not a compiled function (unreachable if verified)")
	}
	return it.call(ep.Fun, nil), nil
}

// call runs one function to completion (spec §4.5 "Call frame"): a fresh
// register vector defaulted by type, with the caller's arguments copied
// into the first slots.
func (it *interp) call(fn *hlir.FunDecl, args []hlir.Value) hlir.Value {
	regs := make([]hlir.Value, len(fn.Regs))
	for i, t := range fn.Regs {
		regs[i] = t.Default()
	}
	copy(regs, args)

	pc := 0
	for pc < len(fn.Code) {
		op := fn.Code[pc]
		pc++ // spec §4.5: jump deltas are added after the fetch-and-increment

		switch op.Op {
		case hlir.OpMov:
			regs[op.R] = regs[op.A]

		case hlir.OpInt:
			regs[op.R] = hlir.Int(op.Imm)

		case hlir.OpFloat:
			regs[op.R] = hlir.Float(it.mod.Floats[op.FloatIdx])

		case hlir.OpBool:
			regs[op.R] = hlir.Bool_(op.BoolVal)

		case hlir.OpAdd:
			regs[op.R] = arith(fn.Regs[op.R], regs[op.A], regs[op.B], func(a, b int32) int32 { return a + b }, func(a, b float64) float64 { return a + b })

		case hlir.OpSub:
			regs[op.R] = arith(fn.Regs[op.R], regs[op.A], regs[op.B], func(a, b int32) int32 { return a - b }, func(a, b float64) float64 { return a - b })

		case hlir.OpIncr:
			regs[op.R] = delta1(fn.Regs[op.R], regs[op.R], 1)

		case hlir.OpDecr:
			regs[op.R] = delta1(fn.Regs[op.R], regs[op.R], -1)

		case hlir.OpCall0, hlir.OpCall1, hlir.OpCall2, hlir.OpCall3:
			regs[op.R] = it.callValue(it.globals[op.Global], gather(regs, op.Args))

		case hlir.OpCallN:
			regs[op.R] = it.callValue(regs[op.A], gather(regs, op.Args))

		case hlir.OpGetGlobal:
			regs[op.R] = it.globals[op.Global]

		case hlir.OpSetGlobal:
			it.globals[op.Global] = regs[op.R]

		case hlir.OpEq:
			regs[op.R] = hlir.Bool_(regs[op.A].Equal(regs[op.B]))

		case hlir.OpNotEq:
			regs[op.R] = hlir.Bool_(!regs[op.A].Equal(regs[op.B]))

		case hlir.OpLt:
			regs[op.R] = hlir.Bool_(numericLess(regs[op.A], regs[op.B]))

		case hlir.OpGte:
			regs[op.R] = hlir.Bool_(!numericLess(regs[op.A], regs[op.B]))

		case hlir.OpRet:
			return regs[op.R]

		case hlir.OpJTrue:
			if regs[op.R].Bool {
				pc += int(op.Delta)
			}

		case hlir.OpJFalse:
			if !regs[op.R].Bool {
				pc += int(op.Delta)
			}

		case hlir.OpJNull:
			if regs[op.R].Kind == hlir.VNull {
				pc += int(op.Delta)
			}

		case hlir.OpJNotNull:
			if regs[op.R].Kind != hlir.VNull {
				pc += int(op.Delta)
			}

		case hlir.OpJAlways:
			pc += int(op.Delta)

		case hlir.OpToAny:
			regs[op.R] = hlir.AnyVal(regs[op.A], fn.Regs[op.A])

		default:
			panic(fmt.Sprintf("interpreter: unknown opcode %d (unreachable if verified)", op.Op))
		}
	}
	panic("interpreter: function fell off the end of its code without Ret (unreachable if verified)")
}

// callValue dispatches a call to either a compiled function or a native
// handler (spec §4.5 "Calls"). Any other shape is a verifier-caught
// error that must not be reachable.
func (it *interp) callValue(callee hlir.Value, args []hlir.Value) hlir.Value {
	switch callee.Kind {
	case hlir.VFun:
		return it.call(callee.Fun, args)
	case hlir.VNative:
		return callee.Native(args)
	default:
		panic(fmt.Sprintf("interpreter: call target of kind %d is not callable (unreachable if verified)", callee.Kind))
	}
}

func gather(regs []hlir.Value, ids []hlir.RegId) []hlir.Value {
	out := make([]hlir.Value, len(ids))
	for i, r := range ids {
		out[i] = regs[r]
	}
	return out
}

// arith applies the wrapping integer or IEEE-754 float operation matching
// dst's declared type (spec §4.5 "Arithmetic semantics").
func arith(dst hlir.Type, a, b hlir.Value, intOp func(int32, int32) int32, floatOp func(float64, float64) float64) hlir.Value {
	switch dst.Kind {
	case hlir.KUI8:
		return hlir.Int(intOp(a.Int32, b.Int32) & 0xFF)
	case hlir.KI32:
		return hlir.Int(intOp(a.Int32, b.Int32))
	case hlir.KF32, hlir.KF64:
		return hlir.Float(floatOp(a.Float64, b.Float64))
	default:
		panic(fmt.Sprintf("interpreter: arithmetic on non-numeric type %s (unreachable if verified)", dst))
	}
}

// delta1 applies Incr/Decr's +1/-1 with the same wrapping rules as arith.
func delta1(t hlir.Type, v hlir.Value, d int32) hlir.Value {
	switch t.Kind {
	case hlir.KUI8:
		return hlir.Int((v.Int32 + d) & 0xFF)
	case hlir.KI32:
		return hlir.Int(v.Int32 + d)
	default:
		panic(fmt.Sprintf("interpreter: incr/decr on non-integer type %s (unreachable if verified)", t))
	}
}

// numericLess compares two equal-typed numeric registers (spec §4.5
// "Comparisons").
func numericLess(a, b hlir.Value) bool {
	if a.Kind == hlir.VFloat {
		return a.Float64 < b.Float64
	}
	return a.Int32 < b.Int32
}
