package hlastjson

import (
	"testing"

	"github.com/oisee/hlbc/pkg/hlhost"
	"github.com/oisee/hlbc/pkg/hlinterp"
	"github.com/oisee/hlbc/pkg/hlir"
	"github.com/oisee/hlbc/pkg/hllower"
)

const returnConstantFixture = `{
  "declarations": [
    {
      "kind": "class",
      "path": "Program",
      "extern": false,
      "methods": [
        {
          "name": "main",
          "args": [],
          "returnType": {"kind": "i32"},
          "body": {
            "kind": "block",
            "type": {"kind": "void"},
            "exprs": [
              {
                "kind": "return",
                "value": {"kind": "int", "value": 42, "type": {"kind": "i32"}}
              }
            ]
          }
        }
      ]
    }
  ]
}`

func TestDecodeReturnConstantLowersAndRuns(t *testing.T) {
	file, err := Decode([]byte(returnConstantFixture))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, err := hllower.Lower(file, "")
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	fn := m.FuncByIndex(m.Entrypoint)
	if len(fn.Code) != 2 || fn.Code[0].Op != hlir.OpInt || fn.Code[0].Imm != 42 || fn.Code[1].Op != hlir.OpRet {
		t.Errorf("Code = %+v, want Int(42); Ret", fn.Code)
	}
	got, err := hlinterp.Interp(m, hlhost.MapLoader{})
	if err != nil {
		t.Fatalf("Interp: %v", err)
	}
	if got.Kind != hlir.VInt || got.Int32 != 42 {
		t.Errorf("Interp = %v, want Int(42)", got)
	}
}

const externNativeFixture = `{
  "declarations": [
    {
      "kind": "class",
      "path": "Std",
      "extern": true,
      "methods": [
        {
          "name": "log",
          "args": [{"var": {"id": 0, "name": "v", "type": {"kind": "any"}}}],
          "returnType": {"kind": "void"},
          "native": {"libName": "std", "funcName": "log"}
        }
      ]
    },
    {
      "kind": "class",
      "path": "Program",
      "methods": [
        {
          "name": "main",
          "args": [],
          "returnType": {"kind": "void"},
          "body": {"kind": "block", "type": {"kind": "void"}, "exprs": []}
        }
      ]
    }
  ]
}`

func TestDecodeExternNative(t *testing.T) {
	file, err := Decode([]byte(externNativeFixture))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, err := hllower.Lower(file, "")
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(m.Natives) != 1 || m.Natives[0].Name != "std@log" {
		t.Fatalf("Natives = %+v, want one entry named std@log", m.Natives)
	}
}

func TestDecodeFunctionType(t *testing.T) {
	raw := []byte(`{"kind":"fun","args":[{"kind":"i32"}],"ret":{"kind":"bool"}}`)
	ty, err := decodeType(raw)
	if err != nil {
		t.Fatalf("decodeType: %v", err)
	}
	want := hlir.Fun([]hlir.Type{hlir.I32()}, hlir.Bool())
	if !ty.Equal(want) {
		t.Errorf("decodeType = %s, want %s", ty, want)
	}
}

func TestDecodeUnknownKindFails(t *testing.T) {
	if _, err := Decode([]byte(`{"declarations":[{"kind":"bogus"}]}`)); err == nil {
		t.Error("expected error for unknown declaration kind")
	}
}
