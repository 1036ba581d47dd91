// Package hlir defines the data model shared by every stage of the
// bytecode backend: the eight-value type universe, the module and function
// records, the opcode set, and the tagged runtime values the interpreter
// operates on.
package hlir

import (
	"fmt"
	"strings"
)

// Kind is the stable numeric tag of a value type, fixed by the binary
// format (see the writer package) and never reordered.
type Kind uint8

const (
	KVoid Kind = iota
	KUI8
	KI32
	KF32
	KF64
	KBool
	KAny
	KFun
)

func (k Kind) String() string {
	switch k {
	case KVoid:
		return "void"
	case KUI8:
		return "u8"
	case KI32:
		return "i32"
	case KF32:
		return "f32"
	case KF64:
		return "f64"
	case KBool:
		return "bool"
	case KAny:
		return "any"
	case KFun:
		return "fun"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type is one of the eight value-type variants. Args/Ret are only
// meaningful when Kind is KFun; the type universe is a DAG, never
// recursive, so equality and rendering can both recurse structurally
// without a cycle guard.
type Type struct {
	Kind Kind
	Args []Type
	Ret  *Type
}

// Primitive type constructors. Each call allocates a fresh value; callers
// that need identity-stable primitives should intern through hltable.
func Void() Type { return Type{Kind: KVoid} }
func UI8() Type  { return Type{Kind: KUI8} }
func I32() Type  { return Type{Kind: KI32} }
func F32() Type  { return Type{Kind: KF32} }
func F64() Type  { return Type{Kind: KF64} }
func Bool() Type { return Type{Kind: KBool} }
func Any() Type  { return Type{Kind: KAny} }

// Fun constructs a function type. args/ret are copied, not aliased, so the
// caller's slice can be reused.
func Fun(args []Type, ret Type) Type {
	if len(args) > 255 {
		panic(fmt.Sprintf("hlir: function arity %d exceeds 255", len(args)))
	}
	cp := make([]Type, len(args))
	copy(cp, args)
	r := ret
	return Type{Kind: KFun, Args: cp, Ret: &r}
}

// IsNumeric reports whether t is one of the four numeric kinds eligible
// for Add/Sub/Incr/Decr.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KUI8, KI32, KF32, KF64:
		return true
	default:
		return false
	}
}

// Equal is structural equality: two Fun types are equal iff their arities
// match and each corresponding arg/ret type is equal, recursively.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind != KFun {
		return true
	}
	if len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return t.Ret.Equal(*o.Ret)
}

// String renders a type for diagnostics only; it has no effect on
// serialization or execution.
func (t Type) String() string {
	if t.Kind != KFun {
		return t.Kind.String()
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), t.Ret.String())
}

// Default returns the zero value used to initialize an unused register or
// global slot of type t (spec §3.5).
func (t Type) Default() Value {
	switch t.Kind {
	case KUI8, KI32:
		return Int(0)
	case KF32, KF64:
		return Float(0)
	case KBool:
		return Bool_(false)
	default: // Void, Any, Fun
		return Null()
	}
}
