package hlbin

import (
	"testing"

	"github.com/oisee/hlbc/pkg/hlir"
)

func TestWriteReadRoundTripsReturnConstant(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32()},
		Code: []hlir.Opcode{
			{Op: hlir.OpInt, R: 0, Imm: 42},
			{Op: hlir.OpRet, R: 0},
		},
	}
	orig := &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32())},
		Functions:  []*hlir.FunDecl{fn},
	}

	data, err := Write(orig)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Version != orig.Version || got.Entrypoint != orig.Entrypoint {
		t.Errorf("Version/Entrypoint = %d/%d, want %d/%d", got.Version, got.Entrypoint, orig.Version, orig.Entrypoint)
	}
	if len(got.Functions) != 1 || len(got.Functions[0].Code) != 2 {
		t.Fatalf("Functions = %+v", got.Functions)
	}
}

// TestWriteReadRoundTripsLongFormBinaryOp covers an Add whose registers are
// all ≥8, forcing writeBinaryForm's long vint path (spec §4.6): exactly
// what a function with ≥8 registers doing arithmetic produces, e.g.
// lowering `return 1+2+3+4+5` where the final Add lands in r8.
func TestWriteReadRoundTripsLongFormBinaryOp(t *testing.T) {
	regs := make([]hlir.Type, 9)
	for i := range regs {
		regs[i] = hlir.I32()
	}
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  regs,
		Code: []hlir.Opcode{
			{Op: hlir.OpAdd, R: 8, A: 6, B: 7},
			{Op: hlir.OpRet, R: 8},
		},
	}
	orig := &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32())},
		Functions:  []*hlir.FunDecl{fn},
	}

	data, err := Write(orig)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Functions) != 1 {
		t.Fatalf("Functions = %+v, want 1", got.Functions)
	}
	gotCode := got.Functions[0].Code
	if len(gotCode) != 2 {
		t.Fatalf("Code = %+v, want 2 opcodes", gotCode)
	}
	add := gotCode[0]
	if add.Op != hlir.OpAdd || add.R != 8 || add.A != 6 || add.B != 7 {
		t.Errorf("Add = %+v, want {Op:Add R:8 A:6 B:7}", add)
	}
}

// TestWriteReadRoundTripsEveryBinaryFormTag covers all six opcodes that
// share the compact/long binary-form encoding, each forced into the long
// form by an out-of-range register.
func TestWriteReadRoundTripsEveryBinaryFormTag(t *testing.T) {
	ops := []hlir.Op{hlir.OpAdd, hlir.OpSub, hlir.OpEq, hlir.OpNotEq, hlir.OpLt, hlir.OpGte}
	regs := make([]hlir.Type, 11)
	for i := range regs {
		regs[i] = hlir.I32()
	}
	for _, op := range ops {
		fn := &hlir.FunDecl{
			Index: 0,
			Regs:  regs,
			Code: []hlir.Opcode{
				{Op: op, R: 10, A: 8, B: 9},
				{Op: hlir.OpRet, R: 10},
			},
		}
		m := &hlir.Module{
			Version:    1,
			Entrypoint: 0,
			Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32())},
			Functions:  []*hlir.FunDecl{fn},
		}
		data, err := Write(m)
		if err != nil {
			t.Fatalf("Write(%s): %v", op, err)
		}
		got, err := Read(data)
		if err != nil {
			t.Fatalf("Read(%s): %v", op, err)
		}
		gotOp := got.Functions[0].Code[0]
		if gotOp.Op != op || gotOp.R != 10 || gotOp.A != 8 || gotOp.B != 9 {
			t.Errorf("%s round-trip = %+v, want {R:10 A:8 B:9}", op, gotOp)
		}
	}
}

func TestVintEncodeDecodeBijection(t *testing.T) {
	values := []int64{
		0, 1, 0x7F, 0x80, 0x1FFF, 0x2000, 0x2001, 0x1FFFFFF, 0x1FFFFFFF,
		-1, -0x1FFF, -0x2000, -0x2001, -0x1FFFFFFF,
	}
	for _, v := range values {
		enc, err := encodeVint(v)
		if err != nil {
			t.Fatalf("encodeVint(%d): %v", v, err)
		}
		got, n, err := decodeVint(enc)
		if err != nil {
			t.Fatalf("decodeVint(%d) re-decode: %v", v, err)
		}
		if n != len(enc) {
			t.Errorf("decodeVint(%d) consumed %d bytes, encoder produced %d", v, n, len(enc))
		}
		if got != v {
			t.Errorf("round-trip(%d) = %d", v, got)
		}
	}
}

func TestVintOverflow(t *testing.T) {
	if _, err := encodeVint(maxVintMagnitude); err == nil {
		t.Error("expected overflow error for magnitude == maxVintMagnitude")
	}
	if _, err := encodeVint(-maxVintMagnitude); err == nil {
		t.Error("expected overflow error for magnitude == maxVintMagnitude (negative)")
	}
}
