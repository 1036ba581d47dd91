package hllower

import (
	"fmt"

	"github.com/oisee/hlbc/pkg/hlast"
	"github.com/oisee/hlbc/pkg/hlir"
)

// lowerExpr lowers one expression into fs, returning the register holding
// its value. It implements the per-kind contract of spec §4.3 verbatim.
func lowerExpr(c *compiler, fs *funcState, e hlast.Expression) (hlir.RegId, error) {
	switch n := e.(type) {
	case *hlast.ConstInt:
		r := fs.allocReg(hlir.I32())
		fs.emit(hlir.Opcode{Op: hlir.OpInt, R: r, Imm: n.Value})
		return r, nil

	case *hlast.ConstFloat:
		idx := c.internFloat(n.Value)
		r := fs.allocReg(hlir.F64())
		fs.emit(hlir.Opcode{Op: hlir.OpFloat, R: r, FloatIdx: idx})
		return r, nil

	case *hlast.ConstBool:
		r := fs.allocReg(hlir.Bool())
		fs.emit(hlir.Opcode{Op: hlir.OpBool, R: r, BoolVal: n.Value})
		return r, nil

	case *hlast.Local:
		r, ok := fs.vars[n.Var.ID]
		if !ok {
			return 0, fmt.Errorf("unresolved local %q", n.Var.Name)
		}
		return r, nil

	case *hlast.Parenthesis:
		return lowerExpr(c, fs, n.Inner)

	case *hlast.Block:
		if len(n.Exprs) == 0 {
			return fs.allocReg(hlir.Void()), nil
		}
		var last hlir.RegId
		for _, sub := range n.Exprs {
			r, err := lowerExpr(c, fs, sub)
			if err != nil {
				return 0, err
			}
			last = r
		}
		return last, nil

	case *hlast.Return:
		if n.Value == nil {
			v := fs.allocReg(hlir.Void())
			fs.emit(hlir.Opcode{Op: hlir.OpRet, R: v})
			return fs.allocReg(hlir.Void()), nil
		}
		vr, err := lowerExpr(c, fs, n.Value)
		if err != nil {
			return 0, err
		}
		fs.emit(hlir.Opcode{Op: hlir.OpRet, R: vr})
		return fs.allocReg(hlir.Void()), nil

	case *hlast.Field:
		key := n.Target.Class + ":" + n.Target.Field
		g := c.internGlobal(key, n.ResolvedType)
		r := fs.allocReg(n.ResolvedType)
		fs.emit(hlir.Opcode{Op: hlir.OpGetGlobal, R: r, Global: g})
		return r, nil

	case *hlast.Call:
		return lowerCall(c, fs, n)

	case *hlast.If:
		return lowerIf(c, fs, n)

	case *hlast.Binop:
		return lowerBinop(c, fs, n)

	default:
		return 0, fmt.Errorf("unsupported source construct: expression %T", e)
	}
}

// lowerCall evaluates the callee and every argument (coercing each to the
// callee's declared parameter type) and emits a single CallN (spec §4.3:
// "emit CallN(dst, calleeReg, [argRegs])").
func lowerCall(c *compiler, fs *funcState, n *hlast.Call) (hlir.RegId, error) {
	calleeReg, err := lowerExpr(c, fs, n.Callee)
	if err != nil {
		return 0, err
	}
	calleeType := n.Callee.Type()
	if calleeType.Kind != hlir.KFun {
		return 0, fmt.Errorf("call target is not a function, has type %s", calleeType)
	}
	if len(n.Args) != len(calleeType.Args) {
		return 0, fmt.Errorf("call arity mismatch: got %d args, callee takes %d", len(n.Args), len(calleeType.Args))
	}
	argRegs := make([]hlir.RegId, len(n.Args))
	for i, a := range n.Args {
		r, err := lowerExpr(c, fs, a)
		if err != nil {
			return 0, err
		}
		r, err = coerce(fs, r, a.Type(), calleeType.Args[i])
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	dst := fs.allocReg(n.ResolvedType)
	fs.emit(hlir.Opcode{Op: hlir.OpCallN, R: dst, A: calleeReg, Args: argRegs})
	return dst, nil
}

// lowerIf implements spec §4.3's If lowering exactly, including the
// forward-jump patch sequence for both branches.
func lowerIf(c *compiler, fs *funcState, n *hlast.If) (hlir.RegId, error) {
	condReg, err := lowerExpr(c, fs, n.Cond)
	if err != nil {
		return 0, err
	}
	toElse := fs.emitJump(hlir.OpJFalse, condReg)

	thenReg, err := lowerExpr(c, fs, n.Then)
	if err != nil {
		return 0, err
	}
	result := fs.allocReg(n.ResolvedType)
	fs.emit(hlir.Opcode{Op: hlir.OpMov, R: result, A: thenReg})

	if n.Else != nil {
		toExit := fs.emitJump(hlir.OpJAlways, 0)
		fs.patch(toElse, fs.here())

		elseReg, err := lowerExpr(c, fs, n.Else)
		if err != nil {
			return 0, err
		}
		fs.emit(hlir.Opcode{Op: hlir.OpMov, R: result, A: elseReg})
		fs.patch(toExit, fs.here())
	} else {
		fs.patch(toElse, fs.here())
	}

	return result, nil
}

// lowerBinop lowers the three binary operators in the minimum core (spec
// §4.3: "Other operators are not in the minimum core").
func lowerBinop(c *compiler, fs *funcState, n *hlast.Binop) (hlir.RegId, error) {
	lr, err := lowerExpr(c, fs, n.Left)
	if err != nil {
		return 0, err
	}
	rr, err := lowerExpr(c, fs, n.Right)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case hlast.BinAdd:
		dst := fs.allocReg(n.ResolvedType)
		fs.emit(hlir.Opcode{Op: hlir.OpAdd, R: dst, A: lr, B: rr})
		return dst, nil
	case hlast.BinSub:
		dst := fs.allocReg(n.ResolvedType)
		fs.emit(hlir.Opcode{Op: hlir.OpSub, R: dst, A: lr, B: rr})
		return dst, nil
	case hlast.BinLe:
		// `<=` is lowered as Gte with reversed operands (spec §4.3).
		dst := fs.allocReg(hlir.Bool())
		fs.emit(hlir.Opcode{Op: hlir.OpGte, R: dst, A: rr, B: lr})
		return dst, nil
	default:
		return 0, fmt.Errorf("unsupported source construct: binary operator %s", n.Op)
	}
}

// coerce implements spec §4.3's coercion rule: a same-typed value passes
// through unchanged; a value coerced to Any is boxed with ToAny; anything
// else is an invalid-coercion error.
func coerce(fs *funcState, src hlir.RegId, srcType, target hlir.Type) (hlir.RegId, error) {
	if srcType.Equal(target) {
		return src, nil
	}
	if target.Kind == hlir.KAny {
		dst := fs.allocReg(hlir.Any())
		fs.emit(hlir.Opcode{Op: hlir.OpToAny, R: dst, A: src})
		return dst, nil
	}
	return 0, fmt.Errorf("invalid coercion: cannot coerce %s to %s", srcType, target)
}
