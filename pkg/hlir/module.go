package hlir

// RegId is a function-local, non-negative index into FunDecl.Regs.
type RegId int

// GlobalId is a module-wide index into Module.Globals.
type GlobalId int

// Op is the in-memory opcode discriminant. Its values are not the wire
// tags: hlbin maps each Op to its tag, and a single Op may cover more than
// one wire encoding (Int picks its tag from the operand's magnitude, Bool
// picks BoolTrue/BoolFalse from its operand) — see hlbin for the mapping.
type Op uint8

const (
	OpMov Op = iota
	OpInt
	OpFloat
	OpBool
	OpAdd
	OpSub
	OpIncr
	OpDecr
	OpCall0
	OpCall1
	OpCall2
	OpCall3
	OpCallN
	OpGetGlobal
	OpSetGlobal
	OpEq
	OpNotEq
	OpLt
	OpGte
	OpRet
	OpJTrue
	OpJFalse
	OpJNull
	OpJNotNull
	OpJAlways
	OpToAny
)

func (o Op) String() string {
	switch o {
	case OpMov:
		return "mov"
	case OpInt:
		return "int"
	case OpFloat:
		return "float"
	case OpBool:
		return "bool"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpIncr:
		return "incr"
	case OpDecr:
		return "decr"
	case OpCall0, OpCall1, OpCall2, OpCall3:
		return "call"
	case OpCallN:
		return "calln"
	case OpGetGlobal:
		return "global"
	case OpSetGlobal:
		return "setglobal"
	case OpEq:
		return "eq"
	case OpNotEq:
		return "noteq"
	case OpLt:
		return "lt"
	case OpGte:
		return "gte"
	case OpRet:
		return "ret"
	case OpJTrue:
		return "jtrue"
	case OpJFalse:
		return "jfalse"
	case OpJNull:
		return "jnull"
	case OpJNotNull:
		return "jnotnull"
	case OpJAlways:
		return "jalways"
	case OpToAny:
		return "toany"
	default:
		return "?"
	}
}

// Opcode is a single instruction. It carries every operand shape inline,
// enum-of-structs style; which fields are meaningful is determined by Op.
// Field meaning per Op:
//
//	Mov(R, A)                 R = A
//	Int(R, Imm)               R = Imm            (writer picks 1 vs 4 byte form)
//	Float(R, FloatIdx)        R = floats[FloatIdx]
//	Bool(R, BoolVal)          R = BoolVal
//	Add/Sub(R, A, B)          R = A op B
//	Incr/Decr(R)              R = R +/- 1
//	Call0/1/2/3(R, Global, Args) R = call(globals[Global], Args...)
//	CallN(R, Callee, Args)    R = call(Callee, Args...)
//	GetGlobal(R, Global)      R = globals[Global]
//	SetGlobal(R, Global)      globals[Global] = R
//	Eq/NotEq/Lt/Gte(R, A, B)  R = A op B   (R: Bool)
//	Ret(R)                    return R
//	JTrue/JFalse(R, Delta)    conditional relative jump on R
//	JNull/JNotNull(R, Delta)  conditional relative jump on R being Null
//	JAlways(Delta)            unconditional relative jump
//	ToAny(R, A)               R = Any(A, type(A))
type Opcode struct {
	Op       Op
	R        RegId
	A        RegId
	B        RegId
	Global   GlobalId
	Args     []RegId
	Imm      int32
	FloatIdx int
	BoolVal  bool
	Delta    int32
}

// FunDecl is one compiled function: the module-wide global slot it
// occupies, its register file (arguments first), and its instruction
// stream.
type FunDecl struct {
	Index GlobalId
	Regs  []Type
	Code  []Opcode
}

// NativeEntry declares that global G is bound at load time to the
// host-provided native named Name.
type NativeEntry struct {
	Name   string
	Global GlobalId
}

// Module is the top-level compiled unit (spec §3.2).
type Module struct {
	Version    uint8
	Entrypoint GlobalId
	Globals    []Type
	Floats     []float64
	Natives    []NativeEntry
	Functions  []*FunDecl
}

// FuncByIndex finds the FunDecl occupying global slot g, or nil.
func (m *Module) FuncByIndex(g GlobalId) *FunDecl {
	for _, f := range m.Functions {
		if f.Index == g {
			return f
		}
	}
	return nil
}
