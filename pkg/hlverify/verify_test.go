package hlverify

import (
	"testing"

	"github.com/oisee/hlbc/pkg/hlir"
)

func moduleWith(fn *hlir.FunDecl, globals []hlir.Type) *hlir.Module {
	return &hlir.Module{Globals: globals, Functions: []*hlir.FunDecl{fn}}
}

func TestAcceptsReturnConstant(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32()},
		Code: []hlir.Opcode{
			{Op: hlir.OpInt, R: 0, Imm: 42},
			{Op: hlir.OpRet, R: 0},
		},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.I32())})
	if err := Verify(m); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestRejectsAddTypeMismatch(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32(), hlir.UI8(), hlir.UI8()},
		Code: []hlir.Opcode{
			{Op: hlir.OpAdd, R: 0, A: 1, B: 2},
			{Op: hlir.OpRet, R: 0},
		},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.I32())})
	err := Verify(m)
	if err == nil {
		t.Fatal("expected a violation for Add(UI8,UI8) into an I32 register")
	}
	v, ok := err.(*Violation)
	if !ok {
		t.Fatalf("error is %T, want *Violation", err)
	}
	if v.FuncIndex != 0 || v.InstrOffset != 0 {
		t.Errorf("Violation = {%d,%d}, want {0,0}", v.FuncIndex, v.InstrOffset)
	}
}

func TestRejectsJumpOutOfRange(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.Void()},
		Code: []hlir.Opcode{
			{Op: hlir.OpJAlways, Delta: 9999},
			{Op: hlir.OpRet, R: 0},
			{Op: hlir.OpRet, R: 0},
		},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.Void())})
	if err := Verify(m); err == nil {
		t.Fatal("expected jump-out-of-range violation")
	}
}

func TestJAlwaysZeroIsInRangeWhenNotLast(t *testing.T) {
	// JAlways +0 at pc jumps to pc+1, which is in range as long as a
	// following instruction exists — spec §8 calls this out explicitly as
	// accepted, despite reading oddly as a "jump to the next instruction".
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.Void()},
		Code: []hlir.Opcode{
			{Op: hlir.OpJAlways, Delta: 0},
			{Op: hlir.OpRet, R: 0},
		},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.Void())})
	if err := Verify(m); err != nil {
		t.Fatalf("JAlways +0 with a following instruction should be accepted, got %v", err)
	}
}

func TestRejectsArgumentRegisterTypeMismatch(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.UI8()},
		Code:  []hlir.Opcode{{Op: hlir.OpRet, R: 0}},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun([]hlir.Type{hlir.I32()}, hlir.Void())})
	if err := Verify(m); err == nil {
		t.Fatal("expected violation: argument register type does not match declared argument type")
	}
}

func TestAcceptsToAny(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32(), hlir.Any(), hlir.Void()},
		Code: []hlir.Opcode{
			{Op: hlir.OpInt, R: 0, Imm: 7},
			{Op: hlir.OpToAny, R: 1, A: 0},
			{Op: hlir.OpRet, R: 2},
		},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.Void())})
	if err := Verify(m); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestRejectsUI8IntOutOfRange(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.UI8()},
		Code:  []hlir.Opcode{{Op: hlir.OpInt, R: 0, Imm: 256}, {Op: hlir.OpRet, R: 0}},
	}
	m := moduleWith(fn, []hlir.Type{hlir.Fun(nil, hlir.UI8())})
	if err := Verify(m); err == nil {
		t.Fatal("expected violation: 256 does not fit ui8")
	}
}
