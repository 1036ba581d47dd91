// Package hlast defines the typed intermediate tree the bytecode backend
// consumes from the front-end type-checker (spec §6.4). The front-end
// itself — lexing, parsing, name resolution, type inference — is out of
// scope; this package only fixes the node shapes the lowering component
// walks. Every node already carries its resolved type; there is no
// untyped stage here.
package hlast

import "github.com/oisee/hlbc/pkg/hlir"

// Node is the root of every AST node. The tree carries no source
// positions: the type-checker that produced it owns source locations, and
// this backend's diagnostics are keyed to function index and instruction
// offset instead (spec §4.4, §7), not to source spans.
type Node interface {
	node()
}

// Statement is a node usable as a body member. In this language every
// statement is also an expression (spec §4.3's lowering contract treats
// Block/If/Return uniformly as expressions), so Statement and Expression
// overlap; a node need only implement the one(s) it is used as.
type Statement interface {
	Node
	stmtNode()
}

// Declaration is a top-level member of a File.
type Declaration interface {
	Node
	declNode()
}

// Expression is a node with a resolved type, the unit the compiler lowers.
type Expression interface {
	Node
	exprNode()
	Type() hlir.Type
}

// File is the root of one compilation unit: a flat list of top-level
// declarations.
type File struct {
	Declarations []Declaration
}

// VarId uniquely identifies one local variable across its whole lifetime,
// independent of its name. The compiler interns a stable register per
// VarId (spec §4.3 "Register policy").
type VarId int

// Variable is a local variable or parameter: a stable identity plus its
// resolved type.
type Variable struct {
	ID   VarId
	Name string
	Type hlir.Type
}

func (*Variable) node() {}

// ---- Expressions -----------------------------------------------------

// ConstInt is an integer literal.
type ConstInt struct {
	Value      int32
	ResolvedType hlir.Type
}

func (*ConstInt) node()            {}
func (*ConstInt) exprNode()        {}
func (c *ConstInt) Type() hlir.Type { return c.ResolvedType }

// ConstFloat is a floating-point literal.
type ConstFloat struct {
	Value        float64
	ResolvedType hlir.Type
}

func (*ConstFloat) node()            {}
func (*ConstFloat) exprNode()        {}
func (c *ConstFloat) Type() hlir.Type { return c.ResolvedType }

// ConstBool is a boolean literal.
type ConstBool struct {
	Value        bool
	ResolvedType hlir.Type
}

func (*ConstBool) node()            {}
func (*ConstBool) exprNode()        {}
func (c *ConstBool) Type() hlir.Type { return c.ResolvedType }

// Local references a variable by its stable identity; it never copies.
type Local struct {
	Var *Variable
}

func (*Local) node()            {}
func (*Local) exprNode()        {}
func (l *Local) Type() hlir.Type { return l.Var.Type }

// Return is `return;` (Value == nil) or `return expr;`.
type Return struct {
	Value        Expression
	ResolvedType hlir.Type // always Void
}

func (*Return) node()            {}
func (*Return) exprNode()        {}
func (*Return) stmtNode()        {}
func (r *Return) Type() hlir.Type { return r.ResolvedType }

// Parenthesis is transparent to lowering; it exists only because the
// front-end preserves source grouping in its tree.
type Parenthesis struct {
	Inner Expression
}

func (*Parenthesis) node()            {}
func (*Parenthesis) exprNode()        {}
func (p *Parenthesis) Type() hlir.Type { return p.Inner.Type() }

// Block evaluates every child in order and yields the last one; an empty
// block yields Void.
type Block struct {
	Exprs        []Expression
	ResolvedType hlir.Type
}

func (*Block) node()            {}
func (*Block) exprNode()        {}
func (*Block) stmtNode()        {}
func (b *Block) Type() hlir.Type { return b.ResolvedType }

// Call invokes Callee (a function-typed expression) with Args.
type Call struct {
	Callee       Expression
	Args         []Expression
	ResolvedType hlir.Type
}

func (*Call) node()            {}
func (*Call) exprNode()        {}
func (c *Call) Type() hlir.Type { return c.ResolvedType }

// FStatic names a static field by its owning class path and field name.
type FStatic struct {
	Class string
	Field string
}

// Field is a reference to a static field (only FStatic targets are
// supported by the minimum core; instance field access is a non-goal).
type Field struct {
	Target       FStatic
	ResolvedType hlir.Type
}

func (*Field) node()            {}
func (*Field) exprNode()        {}
func (f *Field) Type() hlir.Type { return f.ResolvedType }

// If is `if (Cond) Then [else Else]`. Else is nil when absent.
type If struct {
	Cond         Expression
	Then         Expression
	Else         Expression
	ResolvedType hlir.Type
}

func (*If) node()            {}
func (*If) exprNode()        {}
func (*If) stmtNode()        {}
func (i *If) Type() hlir.Type { return i.ResolvedType }

// BinOp is the set of binary operators the minimum core lowers (spec
// §4.3: "Other operators are not in the minimum core").
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinLe // lowered as reversed-operand Gte
)

func (o BinOp) String() string {
	switch o {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinLe:
		return "<="
	default:
		return "?"
	}
}

// Binop is a binary operator expression.
type Binop struct {
	Op           BinOp
	Left, Right  Expression
	ResolvedType hlir.Type
}

func (*Binop) node()            {}
func (*Binop) exprNode()        {}
func (b *Binop) Type() hlir.Type { return b.ResolvedType }

// ---- Declarations ------------------------------------------------------

// NativeMarker annotates an extern method with the host library and
// function name it resolves to (e.g. `@hlNative("std","log")`).
type NativeMarker struct {
	LibName  string
	FuncName string
}

// Param is one method parameter, with an optional literal default.
// Default is nil when there is no default, or a ConstInt/ConstFloat/
// ConstBool literal (spec §4.3 "Method entry"); a default of untyped null
// is represented by a nil Default, identically to no default.
type Param struct {
	Var     *Variable
	Default Expression
}

// MethodDecl is one static method. Body is nil for extern methods (Native
// non-nil instead).
type MethodDecl struct {
	Name       string
	Args       []*Param
	ReturnType hlir.Type
	Body       *Block
	Native     *NativeMarker
}

// ClassDecl is a static-method container. Extern classes declare natives;
// non-extern classes have method bodies to lower.
type ClassDecl struct {
	Path    string
	Extern  bool
	Methods []*MethodDecl
}

func (*ClassDecl) node()     {}
func (*ClassDecl) declNode() {}

// ObjectDecl is a singleton static-member container, lowered identically
// to a non-extern ClassDecl: every method is a static method of its Path.
type ObjectDecl struct {
	Path    string
	Methods []*MethodDecl
}

func (*ObjectDecl) node()     {}
func (*ObjectDecl) declNode() {}

// TypeAliasDecl and AbstractDecl carry no implementation and are ignored
// by lowering (spec §4.3).
type TypeAliasDecl struct {
	Name string
	Aliased hlir.Type
}

func (*TypeAliasDecl) node()     {}
func (*TypeAliasDecl) declNode() {}

type AbstractDecl struct {
	Name string
}

func (*AbstractDecl) node()     {}
func (*AbstractDecl) declNode() {}

// EnumDecl and InterfaceDecl are recognized only so the lowering component
// can fail on them with a clear diagnostic (spec §4.3: "not supported in
// the minimum core").
type EnumDecl struct {
	Name string
}

func (*EnumDecl) node()     {}
func (*EnumDecl) declNode() {}

type InterfaceDecl struct {
	Name string
}

func (*InterfaceDecl) node()     {}
func (*InterfaceDecl) declNode() {}
