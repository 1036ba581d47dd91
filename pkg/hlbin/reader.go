package hlbin

import (
	"fmt"
	"math"

	"github.com/oisee/hlbc/pkg/hlir"
	hlversion "github.com/oisee/hlbc/pkg/version"
)

// reader walks a byte slice left to right, consuming the on-wire shapes
// the writer produced.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("reader: unexpected end of input at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("reader: unexpected end of input at offset %d (need %d bytes)", r.pos, n)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) vint() (int64, error) {
	v, n, err := decodeVint(r.data[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *reader) double() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits), nil
}

// Read parses a module from its on-wire byte form (spec §6.1), the
// inverse of Write.
func Read(data []byte) (*hlir.Module, error) {
	r := &reader{data: data}

	magicBytes, err := r.take(3)
	if err != nil {
		return nil, err
	}
	if string(magicBytes) != "HLB" {
		return nil, fmt.Errorf("reader: bad magic %q, want \"HLB\"", magicBytes)
	}
	version, err := r.byte()
	if err != nil {
		return nil, err
	}
	if version > hlversion.WireFormatVersion {
		return nil, fmt.Errorf("reader: module version %d is newer than supported version %d", version, hlversion.WireFormatVersion)
	}

	nTypes, err := r.vint()
	if err != nil {
		return nil, err
	}
	nGlobals, err := r.vint()
	if err != nil {
		return nil, err
	}
	nFloats, err := r.vint()
	if err != nil {
		return nil, err
	}
	nNatives, err := r.vint()
	if err != nil {
		return nil, err
	}
	nFunctions, err := r.vint()
	if err != nil {
		return nil, err
	}
	entrypoint, err := r.vint()
	if err != nil {
		return nil, err
	}

	types := make([]hlir.Type, 0, nTypes)
	for i := int64(0); i < nTypes; i++ {
		t, err := r.readType(types)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	globals := make([]hlir.Type, nGlobals)
	for i := range globals {
		ref, err := r.vint()
		if err != nil {
			return nil, err
		}
		if ref < 0 || int(ref) >= len(types) {
			return nil, fmt.Errorf("reader: global %d references out-of-range type %d", i, ref)
		}
		globals[i] = types[ref]
	}

	floats := make([]float64, nFloats)
	for i := range floats {
		f, err := r.double()
		if err != nil {
			return nil, err
		}
		floats[i] = f
	}

	natives := make([]hlir.NativeEntry, nNatives)
	for i := range natives {
		nameLen, err := r.byte()
		if err != nil {
			return nil, err
		}
		nameBytes, err := r.take(int(nameLen))
		if err != nil {
			return nil, err
		}
		if _, err := r.byte(); err != nil { // argCount, derivable from the global's type; not re-validated here
			return nil, err
		}
		natives[i] = hlir.NativeEntry{Name: string(nameBytes)}
	}

	functions := make([]*hlir.FunDecl, nFunctions)
	for i := range functions {
		fn, err := r.readFunction(types)
		if err != nil {
			return nil, err
		}
		functions[i] = fn
	}

	// Natives carry a GlobalId but the wire format only stores the name;
	// the global slot is recovered by matching each function's absence —
	// natives occupy globals no FunDecl claims, in natives_block order.
	// This assumes every unclaimed global is a native: a data/static-field
	// global (GetGlobal "Class:field", spec §4.3) sitting between natives
	// would be misassigned, since the wire format has no way to tell the
	// two apart once the FunDecl slots are subtracted out. None of the
	// fixtures this module emits produce such a global, but a format
	// revision that stores the native's GlobalId explicitly would remove
	// this assumption rather than rely on it.
	claimed := make(map[hlir.GlobalId]bool, len(functions))
	for _, fn := range functions {
		claimed[fn.Index] = true
	}
	nativeGlobal := hlir.GlobalId(0)
	for i := range natives {
		for int(nativeGlobal) < len(globals) && claimed[nativeGlobal] {
			nativeGlobal++
		}
		natives[i].Global = nativeGlobal
		claimed[nativeGlobal] = true
	}

	return &hlir.Module{
		Version:    version,
		Entrypoint: hlir.GlobalId(entrypoint),
		Globals:    globals,
		Floats:     floats,
		Natives:    natives,
		Functions:  functions,
	}, nil
}

func (r *reader) readType(prior []hlir.Type) (hlir.Type, error) {
	tagByte, err := r.byte()
	if err != nil {
		return hlir.Type{}, err
	}
	k := hlir.Kind(tagByte)
	if k != hlir.KFun {
		return hlir.Type{Kind: k}, nil
	}
	argCount, err := r.byte()
	if err != nil {
		return hlir.Type{}, err
	}
	args := make([]hlir.Type, argCount)
	for i := range args {
		ref, err := r.vint()
		if err != nil {
			return hlir.Type{}, err
		}
		t, err := resolveTypeRef(prior, ref)
		if err != nil {
			return hlir.Type{}, err
		}
		args[i] = t
	}
	retRef, err := r.vint()
	if err != nil {
		return hlir.Type{}, err
	}
	ret, err := resolveTypeRef(prior, retRef)
	if err != nil {
		return hlir.Type{}, err
	}
	return hlir.Fun(args, ret), nil
}

// resolveTypeRef looks up a type-ref among the types already read. The
// type table is built depth-first at write time (every argument and
// return type is interned before the Fun type referencing them), so any
// valid ref always points backward into prior.
func resolveTypeRef(prior []hlir.Type, ref int64) (hlir.Type, error) {
	if ref < 0 || int(ref) >= len(prior) {
		return hlir.Type{}, fmt.Errorf("reader: type-ref %d out of range (have %d types so far)", ref, len(prior))
	}
	return prior[ref], nil
}

func (r *reader) readFunction(types []hlir.Type) (*hlir.FunDecl, error) {
	index, err := r.vint()
	if err != nil {
		return nil, err
	}
	nRegs, err := r.vint()
	if err != nil {
		return nil, err
	}
	nCode, err := r.vint()
	if err != nil {
		return nil, err
	}
	regs := make([]hlir.Type, nRegs)
	for i := range regs {
		ref, err := r.vint()
		if err != nil {
			return nil, err
		}
		t, err := resolveTypeRef(types, ref)
		if err != nil {
			return nil, err
		}
		regs[i] = t
	}
	code := make([]hlir.Opcode, nCode)
	for i := range code {
		op, err := r.readOpcode()
		if err != nil {
			return nil, err
		}
		code[i] = op
	}
	return &hlir.FunDecl{Index: hlir.GlobalId(index), Regs: regs, Code: code}, nil
}

func (r *reader) readOpcode() (hlir.Opcode, error) {
	tagByte, err := r.byte()
	if err != nil {
		return hlir.Opcode{}, err
	}

	if tagByte&0x80 != 0 {
		return r.readBinaryForm(tagByte)
	}

	switch tagByte {
	case tagAdd, tagSub, tagEq, tagNotEq, tagLt, tagGte:
		op := tagToBinaryOp[tagByte]
		reg, a, err := r.vint2()
		if err != nil {
			return hlir.Opcode{}, err
		}
		b, err := r.vint()
		if err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: op, R: hlir.RegId(reg), A: hlir.RegId(a), B: hlir.RegId(b)}, nil

	case tagMov:
		reg, a, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpMov, R: hlir.RegId(reg), A: hlir.RegId(a)}, err

	case tagIntU8:
		reg, err := r.vint()
		if err != nil {
			return hlir.Opcode{}, err
		}
		b, err := r.byte()
		if err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpInt, R: hlir.RegId(reg), Imm: int32(b)}, nil

	case tagIntI32:
		reg, err := r.vint()
		if err != nil {
			return hlir.Opcode{}, err
		}
		b, err := r.take(4)
		if err != nil {
			return hlir.Opcode{}, err
		}
		imm := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
		return hlir.Opcode{Op: hlir.OpInt, R: hlir.RegId(reg), Imm: imm}, nil

	case tagFloat:
		reg, idx, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpFloat, R: hlir.RegId(reg), FloatIdx: int(idx)}, err

	case tagBoolTrue:
		reg, err := r.vint()
		return hlir.Opcode{Op: hlir.OpBool, R: hlir.RegId(reg), BoolVal: true}, err

	case tagBoolFalse:
		reg, err := r.vint()
		return hlir.Opcode{Op: hlir.OpBool, R: hlir.RegId(reg), BoolVal: false}, err

	case tagIncr:
		reg, err := r.vint()
		return hlir.Opcode{Op: hlir.OpIncr, R: hlir.RegId(reg)}, err

	case tagDecr:
		reg, err := r.vint()
		return hlir.Opcode{Op: hlir.OpDecr, R: hlir.RegId(reg)}, err

	case tagCall0:
		reg, g, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpCall0, R: hlir.RegId(reg), Global: hlir.GlobalId(g)}, err

	case tagCall1:
		return r.readFixedCall(hlir.OpCall1, 1)
	case tagCall2:
		return r.readFixedCall(hlir.OpCall2, 2)
	case tagCall3:
		return r.readFixedCall(hlir.OpCall3, 3)

	case tagCallN:
		reg, callee, err := r.vint2()
		if err != nil {
			return hlir.Opcode{}, err
		}
		args, err := r.argList()
		if err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpCallN, R: hlir.RegId(reg), A: hlir.RegId(callee), Args: args}, nil

	case tagGetGlobal:
		reg, g, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpGetGlobal, R: hlir.RegId(reg), Global: hlir.GlobalId(g)}, err

	case tagSetGlobal:
		g, reg, err := r.vint2() // wire order is (global, r)
		return hlir.Opcode{Op: hlir.OpSetGlobal, Global: hlir.GlobalId(g), R: hlir.RegId(reg)}, err

	case tagRet:
		reg, err := r.vint()
		return hlir.Opcode{Op: hlir.OpRet, R: hlir.RegId(reg)}, err

	case tagJTrue:
		reg, d, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpJTrue, R: hlir.RegId(reg), Delta: int32(d)}, err

	case tagJFalse:
		reg, d, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpJFalse, R: hlir.RegId(reg), Delta: int32(d)}, err

	case tagJNull:
		reg, d, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpJNull, R: hlir.RegId(reg), Delta: int32(d)}, err

	case tagJNotNull:
		reg, d, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpJNotNull, R: hlir.RegId(reg), Delta: int32(d)}, err

	case tagJAlways:
		d, err := r.vint()
		return hlir.Opcode{Op: hlir.OpJAlways, Delta: int32(d)}, err

	case tagToAny:
		reg, a, err := r.vint2()
		return hlir.Opcode{Op: hlir.OpToAny, R: hlir.RegId(reg), A: hlir.RegId(a)}, err

	default:
		return hlir.Opcode{}, fmt.Errorf("reader: unknown opcode tag %d", tagByte)
	}
}

func (r *reader) vint2() (int64, int64, error) {
	a, err := r.vint()
	if err != nil {
		return 0, 0, err
	}
	b, err := r.vint()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (r *reader) readFixedCall(op hlir.Op, arity int) (hlir.Opcode, error) {
	reg, g, err := r.vint2()
	if err != nil {
		return hlir.Opcode{}, err
	}
	args := make([]hlir.RegId, arity)
	for i := range args {
		a, err := r.vint()
		if err != nil {
			return hlir.Opcode{}, err
		}
		args[i] = hlir.RegId(a)
	}
	return hlir.Opcode{Op: op, R: hlir.RegId(reg), Global: hlir.GlobalId(g), Args: args}, nil
}

func (r *reader) argList() ([]hlir.RegId, error) {
	n, err := r.vint()
	if err != nil {
		return nil, err
	}
	args := make([]hlir.RegId, n)
	for i := range args {
		a, err := r.vint()
		if err != nil {
			return nil, err
		}
		args[i] = hlir.RegId(a)
	}
	return args, nil
}

func (r *reader) readBinaryForm(b0 byte) (hlir.Opcode, error) {
	tag := (b0 & 0x7F) >> 1
	rHigh := b0 & 1
	op, ok := tagToBinaryOp[tag]
	if !ok {
		return hlir.Opcode{}, fmt.Errorf("reader: unknown compact-form tag %d", tag)
	}
	b1, err := r.byte()
	if err != nil {
		return hlir.Opcode{}, err
	}
	reg := hlir.RegId((rHigh << 2) | ((b1 >> 6) & 0x3))
	a := hlir.RegId((b1 >> 3) & 0x7)
	b := hlir.RegId(b1 & 0x7)
	return hlir.Opcode{Op: op, R: reg, A: a, B: b}, nil
}
