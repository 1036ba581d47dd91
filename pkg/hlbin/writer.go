package hlbin

import (
	"fmt"
	"math"

	"github.com/oisee/hlbc/pkg/hlir"
	"github.com/oisee/hlbc/pkg/hltable"
)

// magic is the 3-byte file signature (spec §6.1).
var magic = [3]byte{'H', 'L', 'B'}

// writer accumulates the on-wire byte stream.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) vint(i int64) error {
	enc, err := encodeVint(i)
	if err != nil {
		return err
	}
	w.bytes(enc)
	return nil
}

// Write serializes m to its on-wire byte form (spec §6.1).
func Write(m *hlir.Module) ([]byte, error) {
	tt := hltable.NewTypeTable()
	for _, g := range m.Globals {
		tt.Intern(g)
	}
	for _, fn := range m.Functions {
		for _, r := range fn.Regs {
			tt.Intern(r)
		}
	}

	w := &writer{}
	w.bytes(magic[:])
	w.byte(m.Version)

	if err := w.vint(int64(tt.Len())); err != nil {
		return nil, err
	}
	if err := w.vint(int64(len(m.Globals))); err != nil {
		return nil, err
	}
	if err := w.vint(int64(len(m.Floats))); err != nil {
		return nil, err
	}
	if err := w.vint(int64(len(m.Natives))); err != nil {
		return nil, err
	}
	if err := w.vint(int64(len(m.Functions))); err != nil {
		return nil, err
	}
	if err := w.vint(int64(m.Entrypoint)); err != nil {
		return nil, err
	}

	for _, t := range tt.Values() {
		if err := w.writeType(tt, t); err != nil {
			return nil, err
		}
	}

	for _, g := range m.Globals {
		if err := w.vint(int64(tt.Intern(g))); err != nil {
			return nil, err
		}
	}

	for _, f := range m.Floats {
		w.writeDouble(f)
	}

	for _, nat := range m.Natives {
		if err := w.writeNative(m, nat); err != nil {
			return nil, err
		}
	}

	for _, fn := range m.Functions {
		if err := w.writeFunction(tt, fn); err != nil {
			return nil, err
		}
	}

	return w.buf, nil
}

func (w *writer) writeType(tt *hltable.TypeTable, t hlir.Type) error {
	w.byte(typeTag(t.Kind))
	if t.Kind != hlir.KFun {
		return nil
	}
	if len(t.Args) > 255 {
		return &Overflow{What: "function type arity", Value: int64(len(t.Args))}
	}
	w.byte(byte(len(t.Args)))
	for _, a := range t.Args {
		if err := w.vint(int64(tt.Intern(a))); err != nil {
			return err
		}
	}
	return w.vint(int64(tt.Intern(*t.Ret)))
}

func (w *writer) writeDouble(f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		w.byte(byte(bits >> (8 * i)))
	}
}

func (w *writer) writeNative(m *hlir.Module, nat hlir.NativeEntry) error {
	if len(nat.Name) > 255 {
		return &Overflow{What: "native name length", Value: int64(len(nat.Name))}
	}
	w.byte(byte(len(nat.Name)))
	w.bytes([]byte(nat.Name))
	g := m.Globals[nat.Global]
	if g.Kind != hlir.KFun {
		return fmt.Errorf("native %q: global %d is not a function type", nat.Name, nat.Global)
	}
	if len(g.Args) > 255 {
		return &Overflow{What: "native argument count", Value: int64(len(g.Args))}
	}
	w.byte(byte(len(g.Args)))
	return nil
}

func (w *writer) writeFunction(tt *hltable.TypeTable, fn *hlir.FunDecl) error {
	if err := w.vint(int64(fn.Index)); err != nil {
		return err
	}
	if err := w.vint(int64(len(fn.Regs))); err != nil {
		return err
	}
	if err := w.vint(int64(len(fn.Code))); err != nil {
		return err
	}
	for _, r := range fn.Regs {
		if err := w.vint(int64(tt.Intern(r))); err != nil {
			return err
		}
	}
	for _, op := range fn.Code {
		if err := w.writeOpcode(op); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeOpcode(op hlir.Opcode) error {
	if tag, ok := binaryFormTag[op.Op]; ok {
		return w.writeBinaryForm(tag, op)
	}

	switch op.Op {
	case hlir.OpMov:
		w.byte(tagMov)
		return w.vints(int64(op.R), int64(op.A))

	case hlir.OpInt:
		if op.Imm >= 0 && op.Imm <= 0xFF {
			w.byte(tagIntU8)
			if err := w.vint(int64(op.R)); err != nil {
				return err
			}
			w.byte(byte(op.Imm))
			return nil
		}
		w.byte(tagIntI32)
		if err := w.vint(int64(op.R)); err != nil {
			return err
		}
		w.bytes([]byte{byte(op.Imm), byte(op.Imm >> 8), byte(op.Imm >> 16), byte(op.Imm >> 24)})
		return nil

	case hlir.OpFloat:
		w.byte(tagFloat)
		return w.vints(int64(op.R), int64(op.FloatIdx))

	case hlir.OpBool:
		if op.BoolVal {
			w.byte(tagBoolTrue)
		} else {
			w.byte(tagBoolFalse)
		}
		return w.vint(int64(op.R))

	case hlir.OpIncr:
		w.byte(tagIncr)
		return w.vint(int64(op.R))

	case hlir.OpDecr:
		w.byte(tagDecr)
		return w.vint(int64(op.R))

	case hlir.OpCall0:
		w.byte(tagCall0)
		return w.vints(int64(op.R), int64(op.Global))

	case hlir.OpCall1:
		w.byte(tagCall1)
		return w.callArgs(op)

	case hlir.OpCall2:
		w.byte(tagCall2)
		return w.callArgs(op)

	case hlir.OpCall3:
		w.byte(tagCall3)
		return w.callArgs(op)

	case hlir.OpCallN:
		w.byte(tagCallN)
		if err := w.vints(int64(op.R), int64(op.A)); err != nil {
			return err
		}
		return w.argList(op.Args)

	case hlir.OpGetGlobal:
		w.byte(tagGetGlobal)
		return w.vints(int64(op.R), int64(op.Global))

	case hlir.OpSetGlobal:
		// Wire order is (global, r) — see spec §9's open question on
		// aligning SetGlobal's dump with its writer order.
		w.byte(tagSetGlobal)
		return w.vints(int64(op.Global), int64(op.R))

	case hlir.OpRet:
		w.byte(tagRet)
		return w.vint(int64(op.R))

	case hlir.OpJTrue:
		w.byte(tagJTrue)
		return w.vints(int64(op.R), int64(op.Delta))

	case hlir.OpJFalse:
		w.byte(tagJFalse)
		return w.vints(int64(op.R), int64(op.Delta))

	case hlir.OpJNull:
		w.byte(tagJNull)
		return w.vints(int64(op.R), int64(op.Delta))

	case hlir.OpJNotNull:
		w.byte(tagJNotNull)
		return w.vints(int64(op.R), int64(op.Delta))

	case hlir.OpJAlways:
		w.byte(tagJAlways)
		return w.vint(int64(op.Delta))

	case hlir.OpToAny:
		w.byte(tagToAny)
		return w.vints(int64(op.R), int64(op.A))

	default:
		return fmt.Errorf("writer: unknown opcode %d", op.Op)
	}
}

// callArgs writes R, Global, and the fixed-arity register list shared by
// Call1/Call2/Call3.
func (w *writer) callArgs(op hlir.Opcode) error {
	if err := w.vints(int64(op.R), int64(op.Global)); err != nil {
		return err
	}
	for _, a := range op.Args {
		if err := w.vint(int64(a)); err != nil {
			return err
		}
	}
	return nil
}

// argList writes a vint count followed by that many vint register ids —
// the shape CallN needs for its variable-arity argument list.
func (w *writer) argList(args []hlir.RegId) error {
	if len(args) > 255 {
		return &Overflow{What: "call argument count", Value: int64(len(args))}
	}
	if err := w.vint(int64(len(args))); err != nil {
		return err
	}
	for _, a := range args {
		if err := w.vint(int64(a)); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) vints(is ...int64) error {
	for _, i := range is {
		if err := w.vint(i); err != nil {
			return err
		}
	}
	return nil
}

// writeBinaryForm encodes Add/Sub/Eq/NotEq/Lt/Gte using the compact
// two-byte form when all three registers fit in three bits and the tag is
// under 64, or the long vint form otherwise (spec §4.6).
func (w *writer) writeBinaryForm(tag byte, op hlir.Opcode) error {
	r, a, b := op.R, op.A, op.B
	if tag < 64 && r >= 0 && r < 8 && a >= 0 && a < 8 && b >= 0 && b < 8 {
		rHigh := byte(0)
		if r >= 4 {
			rHigh = 1
		}
		b0 := 0x80 | (tag << 1) | rHigh
		b1 := (byte(r&3) << 6) | (byte(a) << 3) | byte(b)
		w.byte(b0)
		w.byte(b1)
		return nil
	}
	w.byte(tag)
	return w.vints(int64(r), int64(a), int64(b))
}
