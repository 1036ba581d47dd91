package hltable

import "github.com/oisee/hlbc/pkg/hlir"

// TypeTable interns hlir.Type values by structural key for the binary
// writer. The first seven ids are pinned, in order, to the seven
// non-function primitives — Void, UI8, I32, F32, F64, Bool, Any — so their
// indices never drift between writer runs, per spec §4.2.
type TypeTable struct {
	inner *Table[string, hlir.Type]
}

// NewTypeTable creates a type table with the seven primitives pre-seeded.
func NewTypeTable() *TypeTable {
	tt := &TypeTable{inner: New[string, hlir.Type]()}
	for _, t := range []hlir.Type{
		hlir.Void(), hlir.UI8(), hlir.I32(), hlir.F32(), hlir.F64(), hlir.Bool(), hlir.Any(),
	} {
		tt.Intern(t)
	}
	return tt
}

// Intern returns the id for t, interning it (and, recursively, any Fun
// argument/return types) if it has not been seen before.
func (tt *TypeTable) Intern(t hlir.Type) int {
	for _, a := range t.Args {
		tt.Intern(a)
	}
	if t.Ret != nil {
		tt.Intern(*t.Ret)
	}
	return tt.inner.Intern(typeKey(t), func() hlir.Type { return t })
}

// Len returns the number of distinct types interned so far.
func (tt *TypeTable) Len() int { return tt.inner.Len() }

// Values returns the interned types in id order.
func (tt *TypeTable) Values() []hlir.Type { return tt.inner.Values() }

// typeKey renders a structural key stable under Type.Equal: two types with
// the same key are always Type.Equal, and vice versa.
func typeKey(t hlir.Type) string {
	if t.Kind != hlir.KFun {
		return string(rune('0' + t.Kind))
	}
	key := "f("
	for _, a := range t.Args {
		key += typeKey(a) + ","
	}
	key += ")" + typeKey(*t.Ret)
	return key
}
