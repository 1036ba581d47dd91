package luahost

import (
	"testing"

	"github.com/oisee/hlbc/pkg/hlir"
)

func TestResolveCallsLuaFunction(t *testing.T) {
	h := New()
	defer h.Close()
	if err := h.LoadScript(`function std_log(v) return v end`); err != nil {
		t.Fatal(err)
	}
	fn, err := h.Resolve("std@log")
	if err != nil {
		t.Fatal(err)
	}
	got := fn([]hlir.Value{hlir.AnyVal(hlir.Int(7), hlir.I32())})
	if got.Kind != hlir.VFloat || got.Float64 != 7 {
		t.Errorf("got %v, want a Lua-roundtripped 7", got)
	}
}

func TestResolveMissingGlobalIsNotFound(t *testing.T) {
	h := New()
	defer h.Close()
	if _, err := h.Resolve("nothing@here"); err == nil {
		t.Error("expected not-found error for an undefined Lua global")
	}
}

func TestLuaIdentNormalizesSeparators(t *testing.T) {
	if got := luaIdent("std@log"); got != "std_log" {
		t.Errorf("luaIdent(%q) = %q, want %q", "std@log", got, "std_log")
	}
}
