package hllower

import (
	"testing"

	"github.com/oisee/hlbc/pkg/hlast"
	"github.com/oisee/hlbc/pkg/hlir"
)

func mainFile(body *hlast.Block, ret hlir.Type) *hlast.File {
	return &hlast.File{
		Declarations: []hlast.Declaration{
			&hlast.ClassDecl{
				Path: "Program",
				Methods: []*hlast.MethodDecl{
					{Name: "main", ReturnType: ret, Body: body},
				},
			},
		},
	}
}

func opsEqual(t *testing.T, got []hlir.Opcode, want []hlir.Opcode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("code length = %d, want %d\ngot:  %+v\nwant: %+v", len(got), len(want), got, want)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Op != w.Op || g.R != w.R || g.A != w.A || g.B != w.B || g.Imm != w.Imm || g.Delta != w.Delta ||
			g.BoolVal != w.BoolVal || g.FloatIdx != w.FloatIdx || g.Global != w.Global {
			t.Errorf("op[%d] = %+v, want %+v", i, g, w)
		}
	}
}

func TestReturnConstant(t *testing.T) {
	body := &hlast.Block{ResolvedType: hlir.Void(), Exprs: []hlast.Expression{
		&hlast.Return{ResolvedType: hlir.Void(), Value: &hlast.ConstInt{Value: 42, ResolvedType: hlir.I32()}},
	}}
	m, err := Lower(mainFile(body, hlir.I32()), "")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	want := []hlir.Opcode{
		{Op: hlir.OpInt, R: 0, Imm: 42},
		{Op: hlir.OpRet, R: 0},
	}
	opsEqual(t, fn.Code, want)
}

func TestAddition(t *testing.T) {
	body := &hlast.Block{ResolvedType: hlir.Void(), Exprs: []hlast.Expression{
		&hlast.Return{ResolvedType: hlir.Void(), Value: &hlast.Binop{
			Op:           hlast.BinAdd,
			Left:         &hlast.ConstInt{Value: 2, ResolvedType: hlir.I32()},
			Right:        &hlast.ConstInt{Value: 3, ResolvedType: hlir.I32()},
			ResolvedType: hlir.I32(),
		}},
	}}
	m, err := Lower(mainFile(body, hlir.I32()), "")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	want := []hlir.Opcode{
		{Op: hlir.OpInt, R: 0, Imm: 2},
		{Op: hlir.OpInt, R: 1, Imm: 3},
		{Op: hlir.OpAdd, R: 2, A: 0, B: 1},
		{Op: hlir.OpRet, R: 2},
	}
	opsEqual(t, fn.Code, want)
}

func TestIfExpression(t *testing.T) {
	body := &hlast.Block{ResolvedType: hlir.Void(), Exprs: []hlast.Expression{
		&hlast.Return{ResolvedType: hlir.Void(), Value: &hlast.If{
			Cond:         &hlast.ConstBool{Value: true, ResolvedType: hlir.Bool()},
			Then:         &hlast.ConstInt{Value: 1, ResolvedType: hlir.I32()},
			Else:         &hlast.ConstInt{Value: 2, ResolvedType: hlir.I32()},
			ResolvedType: hlir.I32(),
		}},
	}}
	m, err := Lower(mainFile(body, hlir.I32()), "")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	want := []hlir.Opcode{
		{Op: hlir.OpBool, R: 0, BoolVal: true},
		{Op: hlir.OpJFalse, R: 0, Delta: 3},
		{Op: hlir.OpInt, R: 1, Imm: 1},
		{Op: hlir.OpMov, R: 2, A: 1},
		{Op: hlir.OpJAlways, Delta: 2},
		{Op: hlir.OpInt, R: 3, Imm: 2},
		{Op: hlir.OpMov, R: 2, A: 3},
		{Op: hlir.OpRet, R: 2},
	}
	opsEqual(t, fn.Code, want)
}

func TestIfWithoutElsePatchesToFallthrough(t *testing.T) {
	body := &hlast.Block{ResolvedType: hlir.Void(), Exprs: []hlast.Expression{
		&hlast.If{
			Cond:         &hlast.ConstBool{Value: true, ResolvedType: hlir.Bool()},
			Then:         &hlast.ConstInt{Value: 1, ResolvedType: hlir.I32()},
			ResolvedType: hlir.Void(),
		},
	}}
	m, err := Lower(mainFile(body, hlir.Void()), "")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	// Bool r0,true; JFalse r0,+2; Int r1,1; Mov r2,r1; Ret r3(fresh void, appended since return type is Void)
	if fn.Code[1].Op != hlir.OpJFalse || fn.Code[1].Delta != 2 {
		t.Errorf("JFalse delta = %d, want 2 (falls through to just after the Mov)", fn.Code[1].Delta)
	}
}

func TestVoidReturnAppendsTrailingRet(t *testing.T) {
	body := &hlast.Block{ResolvedType: hlir.Void()}
	m, err := Lower(mainFile(body, hlir.Void()), "")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	last := fn.Code[len(fn.Code)-1]
	if last.Op != hlir.OpRet {
		t.Errorf("last op = %s, want ret", last.Op)
	}
}

func TestCoerceNoOpOnSameType(t *testing.T) {
	fs := &funcState{fn: &hlir.FunDecl{}}
	r := fs.allocReg(hlir.I32())
	got, err := coerce(fs, r, hlir.I32(), hlir.I32())
	if err != nil {
		t.Fatal(err)
	}
	if got != r {
		t.Errorf("coerce(r, T, T) = %d, want %d (no-op)", got, r)
	}
	if len(fs.fn.Code) != 0 {
		t.Errorf("no-op coercion should not emit any opcode, got %d", len(fs.fn.Code))
	}
}

func TestCoerceToAnyEmitsToAny(t *testing.T) {
	fs := &funcState{fn: &hlir.FunDecl{}}
	r := fs.allocReg(hlir.I32())
	got, err := coerce(fs, r, hlir.I32(), hlir.Any())
	if err != nil {
		t.Fatal(err)
	}
	if got == r {
		t.Error("coercion to Any must allocate a fresh register")
	}
	if len(fs.fn.Code) != 1 || fs.fn.Code[0].Op != hlir.OpToAny {
		t.Errorf("expected a single ToAny opcode, got %+v", fs.fn.Code)
	}
	if !fs.fn.Regs[got].Equal(hlir.Any()) {
		t.Errorf("boxed register type = %s, want Any", fs.fn.Regs[got])
	}
}

func TestCoerceOtherwiseFails(t *testing.T) {
	fs := &funcState{fn: &hlir.FunDecl{}}
	r := fs.allocReg(hlir.I32())
	if _, err := coerce(fs, r, hlir.I32(), hlir.Bool()); err == nil {
		t.Error("expected invalid-coercion error")
	}
}

func TestExternClassInternsNative(t *testing.T) {
	file := &hlast.File{Declarations: []hlast.Declaration{
		&hlast.ClassDecl{
			Path:   "Std",
			Extern: true,
			Methods: []*hlast.MethodDecl{
				{
					Name:       "log",
					Args:       []*hlast.Param{{Var: &hlast.Variable{ID: 0, Name: "v", Type: hlir.Any()}}},
					ReturnType: hlir.Void(),
					Native:     &hlast.NativeMarker{LibName: "std", FuncName: "log"},
				},
			},
		},
		&hlast.ClassDecl{
			Path: "Program",
			Methods: []*hlast.MethodDecl{
				{Name: "main", ReturnType: hlir.Void(), Body: &hlast.Block{ResolvedType: hlir.Void()}},
			},
		},
	}}
	m, err := Lower(file, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Natives) != 1 || m.Natives[0].Name != "std@log" {
		t.Fatalf("Natives = %+v, want one entry named std@log", m.Natives)
	}
}

func TestEnumDeclIsUnsupported(t *testing.T) {
	file := &hlast.File{Declarations: []hlast.Declaration{&hlast.EnumDecl{Name: "Color"}}}
	if _, err := Lower(file, ""); err == nil {
		t.Error("expected unsupported-construct error for EnumDecl")
	}
}

func TestNoEntrypointIsAnError(t *testing.T) {
	file := &hlast.File{Declarations: []hlast.Declaration{
		&hlast.ClassDecl{Path: "Program", Methods: []*hlast.MethodDecl{
			{Name: "helper", ReturnType: hlir.Void(), Body: &hlast.Block{ResolvedType: hlir.Void()}},
		}},
	}}
	if _, err := Lower(file, ""); err == nil {
		t.Error("expected an error when no method named main exists")
	}
}

func TestDefaultArgumentPrelude(t *testing.T) {
	v := &hlast.Variable{ID: 0, Name: "n", Type: hlir.I32()}
	file := &hlast.File{Declarations: []hlast.Declaration{
		&hlast.ClassDecl{Path: "Program", Methods: []*hlast.MethodDecl{
			{
				Name:       "withDefault",
				Args:       []*hlast.Param{{Var: v, Default: &hlast.ConstInt{Value: 9, ResolvedType: hlir.I32()}}},
				ReturnType: hlir.Void(),
				Body:       &hlast.Block{ResolvedType: hlir.Void()},
			},
			{Name: "main", ReturnType: hlir.Void(), Body: &hlast.Block{ResolvedType: hlir.Void()}},
		}},
	}}
	m, err := Lower(file, "")
	if err != nil {
		t.Fatal(err)
	}
	var fn *hlir.FunDecl
	for _, f := range m.Functions {
		if len(f.Code) > 0 && f.Code[0].Op == hlir.OpJNotNull {
			fn = f
		}
	}
	if fn == nil {
		t.Fatal("no function with a default-argument prelude found")
	}
	if fn.Code[0].R != 0 || fn.Code[0].Delta != 1 {
		t.Errorf("first op = %+v, want JNotNull r0,+1", fn.Code[0])
	}
	if fn.Code[1].Op != hlir.OpInt || fn.Code[1].R != 0 || fn.Code[1].Imm != 9 {
		t.Errorf("second op = %+v, want Int r0,9 (written into the argument register)", fn.Code[1])
	}
}
