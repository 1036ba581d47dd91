package hldump

import (
	"strings"
	"testing"

	"github.com/oisee/hlbc/pkg/hlir"
)

func returnConstantModule() *hlir.Module {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32()},
		Code: []hlir.Opcode{
			{Op: hlir.OpInt, R: 0, Imm: 42},
			{Op: hlir.OpRet, R: 0},
		},
	}
	return &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32())},
		Functions:  []*hlir.FunDecl{fn},
	}
}

func TestDumpReturnConstantContainsScenarioLines(t *testing.T) {
	out := Dump(returnConstantModule())
	if !strings.Contains(out, "int 0,42") {
		t.Errorf("dump missing %q:\n%s", "int 0,42", out)
	}
	if !strings.Contains(out, "ret 0") {
		t.Errorf("dump missing %q:\n%s", "ret 0", out)
	}
}

func TestDumpHeaderAndEntry(t *testing.T) {
	out := Dump(returnConstantModule())
	lines := strings.Split(out, "\n")
	if lines[0] != "hl v1" {
		t.Errorf("header = %q, want %q", lines[0], "hl v1")
	}
	if lines[1] != "entry @0" {
		t.Errorf("entry line = %q, want %q", lines[1], "entry @0")
	}
}

func TestDumpSetGlobalOrderMatchesWriter(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.I32()},
		Code: []hlir.Opcode{
			{Op: hlir.OpSetGlobal, Global: 1, R: 0},
			{Op: hlir.OpRet, R: 0},
		},
	}
	m := &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32()), hlir.I32()},
		Functions:  []*hlir.FunDecl{fn},
	}
	out := Dump(m)
	if !strings.Contains(out, "setglobal 1,0") {
		t.Errorf("dump missing setglobal with (global, r) order:\n%s", out)
	}
}

func TestParseRoundTripsDump(t *testing.T) {
	orig := returnConstantModule()
	text := Dump(orig)

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Version != orig.Version || got.Entrypoint != orig.Entrypoint {
		t.Errorf("Version/Entrypoint = %d/%d, want %d/%d", got.Version, got.Entrypoint, orig.Version, orig.Entrypoint)
	}
	if len(got.Globals) != 1 || !got.Globals[0].Equal(orig.Globals[0]) {
		t.Errorf("Globals = %+v, want %+v", got.Globals, orig.Globals)
	}
	if len(got.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(got.Functions))
	}
	gf, of := got.Functions[0], orig.Functions[0]
	if len(gf.Code) != len(of.Code) {
		t.Fatalf("Code length = %d, want %d", len(gf.Code), len(of.Code))
	}
	for i := range of.Code {
		g, w := gf.Code[i], of.Code[i]
		if g.Op != w.Op || g.R != w.R || g.Imm != w.Imm {
			t.Errorf("op[%d] = %+v, want %+v", i, g, w)
		}
	}
}

func TestParseRoundTripsFunctionType(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.Fun([]hlir.Type{hlir.I32(), hlir.Any()}, hlir.Bool())},
		Code:  []hlir.Opcode{{Op: hlir.OpRet, R: 0}},
	}
	m := &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun([]hlir.Type{hlir.Fun([]hlir.Type{hlir.I32(), hlir.Any()}, hlir.Bool())}, hlir.Fun([]hlir.Type{hlir.Fun([]hlir.Type{hlir.I32(), hlir.Any()}, hlir.Bool())}, hlir.Bool()))},
		Functions:  []*hlir.FunDecl{fn},
	}
	text := Dump(m)
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Functions[0].Regs[0].Equal(fn.Regs[0]) {
		t.Errorf("register type = %s, want %s", got.Functions[0].Regs[0], fn.Regs[0])
	}
}

func TestParseBoundaryScenarios(t *testing.T) {
	fn := &hlir.FunDecl{
		Index: 0,
		Regs:  []hlir.Type{hlir.Bool(), hlir.I32(), hlir.I32(), hlir.I32()},
		Code: []hlir.Opcode{
			{Op: hlir.OpBool, R: 0, BoolVal: true},
			{Op: hlir.OpJFalse, R: 0, Delta: 3},
			{Op: hlir.OpInt, R: 1, Imm: 1},
			{Op: hlir.OpMov, R: 2, A: 1},
			{Op: hlir.OpJAlways, Delta: 2},
			{Op: hlir.OpInt, R: 3, Imm: 2},
			{Op: hlir.OpMov, R: 2, A: 3},
			{Op: hlir.OpRet, R: 2},
		},
	}
	m := &hlir.Module{
		Version:    1,
		Entrypoint: 0,
		Globals:    []hlir.Type{hlir.Fun(nil, hlir.I32())},
		Functions:  []*hlir.FunDecl{fn},
	}
	text := Dump(m)
	if !strings.Contains(text, "jfalse 0,+3") {
		t.Errorf("dump missing jfalse with signed delta:\n%s", text)
	}
	if !strings.Contains(text, "jalways +2") {
		t.Errorf("dump missing jalways with signed delta:\n%s", text)
	}
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Functions[0].Code[1].Delta != 3 || got.Functions[0].Code[4].Delta != 2 {
		t.Errorf("parsed deltas = %+v", got.Functions[0].Code)
	}
}
