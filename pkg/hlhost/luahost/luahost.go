// Package luahost is a native host that resolves natives to functions
// defined in an embedded Lua script, adapted from the value-conversion
// pattern in the teacher's meta-programming Lua evaluator: a thin
// Go<->Lua value bridge plus a call-by-name dispatch, here repurposed
// from compile-time code generation to native-function resolution.
package luahost

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/oisee/hlbc/pkg/hlhost"
	"github.com/oisee/hlbc/pkg/hlir"
)

// Host resolves natives to Lua globals in one *lua.LState: a native
// named "std@log" resolves to the Lua global function `std_log`, with ':'
// and '@' normalized to '_' since Lua identifiers cannot contain them.
type Host struct {
	L *lua.LState
}

// New creates a Host with a fresh Lua interpreter.
func New() *Host {
	return &Host{L: lua.NewState()}
}

// Close releases the underlying Lua state.
func (h *Host) Close() {
	h.L.Close()
}

// LoadScript runs Lua source defining the native handlers this host
// will resolve.
func (h *Host) LoadScript(src string) error {
	return h.L.DoString(src)
}

// Resolve implements hlhost.Loader.
func (h *Host) Resolve(name string) (hlir.NativeFunc, error) {
	luaName := luaIdent(name)
	fnVal := h.L.GetGlobal(luaName)
	if fnVal.Type() != lua.LTFunction {
		return nil, &hlhost.ErrNotFound{Name: name}
	}
	return func(args []hlir.Value) hlir.Value {
		h.L.Push(fnVal)
		for _, a := range args {
			h.L.Push(toLua(a))
		}
		h.L.Call(len(args), 1)
		ret := h.L.Get(-1)
		h.L.Pop(1)
		return fromLua(ret)
	}, nil
}

func luaIdent(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '@' || r == ':' {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

// toLua converts a runtime Value into the Lua value a native handler
// sees. Any is unwrapped to its inner value; Fun and NativeFun have no
// useful Lua representation and convert to nil.
func toLua(v hlir.Value) lua.LValue {
	switch v.Kind {
	case hlir.VNull:
		return lua.LNil
	case hlir.VInt:
		return lua.LNumber(v.Int32)
	case hlir.VFloat:
		return lua.LNumber(v.Float64)
	case hlir.VBool:
		return lua.LBool(v.Bool)
	case hlir.VAny:
		if v.AnyVal == nil {
			return lua.LNil
		}
		return toLua(*v.AnyVal)
	default:
		return lua.LNil
	}
}

// fromLua converts a Lua return value back into a runtime Value. A Lua
// number is materialized as a Float, matching the widest numeric type
// Lua itself can represent; callers that need an exact I32 or UI8 convert
// at the call site where the target register's type is known.
func fromLua(lv lua.LValue) hlir.Value {
	switch lv.Type() {
	case lua.LTNil:
		return hlir.Null()
	case lua.LTBool:
		return hlir.Bool_(bool(lv.(lua.LBool)))
	case lua.LTNumber:
		return hlir.Float(float64(lv.(lua.LNumber)))
	default:
		return hlir.Null()
	}
}
