package hlir

import "fmt"

// ValueKind discriminates the runtime Value sum type (spec §3.5).
type ValueKind uint8

const (
	VNull ValueKind = iota
	VInt
	VFloat
	VFun
	VBool
	VAny
	VNative
)

// NativeFunc is a host-provided handler bound to a native global at
// interpreter startup. It is called synchronously and must not retain the
// argument slice past the call (spec §5).
type NativeFunc func(args []Value) Value

// Value is the closed runtime sum type the interpreter operates on:
// Null | Int(i32) | Float(f64) | Fun(FunDecl) | Bool(bool) | Any(Value,
// Type) | NativeFun. Exactly one of the fields below is meaningful,
// selected by Kind; this mirrors the teacher's enum-of-structs Instruction
// layout rather than an interface hierarchy, per the "tagged sums over
// inheritance" design note.
type Value struct {
	Kind    ValueKind
	Int32   int32
	Float64 float64
	Bool    bool
	Fun     *FunDecl
	Native  NativeFunc
	AnyVal  *Value
	AnyType Type
}

func Null() Value           { return Value{Kind: VNull} }
func Int(i int32) Value     { return Value{Kind: VInt, Int32: i} }
func Float(f float64) Value { return Value{Kind: VFloat, Float64: f} }
func Bool_(b bool) Value    { return Value{Kind: VBool, Bool: b} }
func FunVal(fn *FunDecl) Value {
	return Value{Kind: VFun, Fun: fn}
}
func NativeVal(f NativeFunc) Value {
	return Value{Kind: VNative, Native: f}
}
func AnyVal(v Value, t Type) Value {
	inner := v
	return Value{Kind: VAny, AnyVal: &inner, AnyType: t}
}

// Equal implements the structural value equality used by Eq/NotEq (spec
// §4.5). Fun and NativeFun compare by identity of the underlying pointer,
// since there is no useful structural notion of function equality here.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case VNull:
		return true
	case VInt:
		return v.Int32 == o.Int32
	case VFloat:
		return v.Float64 == o.Float64
	case VBool:
		return v.Bool == o.Bool
	case VFun:
		return v.Fun == o.Fun
	case VNative:
		return fmt.Sprintf("%p", v.Native) == fmt.Sprintf("%p", o.Native)
	case VAny:
		return v.AnyType.Equal(o.AnyType) && v.AnyVal.Equal(*o.AnyVal)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case VNull:
		return "null"
	case VInt:
		return fmt.Sprintf("%d", v.Int32)
	case VFloat:
		return fmt.Sprintf("%g", v.Float64)
	case VBool:
		return fmt.Sprintf("%t", v.Bool)
	case VFun:
		return fmt.Sprintf("fun@%d", v.Fun.Index)
	case VNative:
		return "native"
	case VAny:
		return fmt.Sprintf("any(%s:%s)", v.AnyVal.String(), v.AnyType.String())
	default:
		return "?"
	}
}
