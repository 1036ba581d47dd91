// Package hlastjson decodes the JSON fixture format `cmd/hlc build` reads
// in place of a real front-end: a discriminated-union encoding of hlast's
// node set, grounded on the teacher's `--dump-ast` flag (`cmd/minzc/
// main.go`, `encoding/json` over the parser's AST) — here inverted from
// dumping to loading, since this module has no lexer/parser of its own
// (spec §1 "out of scope: the AST producer").
package hlastjson

import (
	"encoding/json"
	"fmt"

	"github.com/oisee/hlbc/pkg/hlast"
	"github.com/oisee/hlbc/pkg/hlir"
)

// node is the shared envelope every JSON node is decoded through: a
// "kind" discriminator plus its raw body, decoded a second time into the
// concrete shape once the kind is known.
type node struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"-"`
}

// Decode parses a JSON AST fixture into an hlast.File.
func Decode(data []byte) (*hlast.File, error) {
	var raw struct {
		Declarations []json.RawMessage `json:"declarations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("hlastjson: %w", err)
	}
	vars := make(map[int]*hlast.Variable)
	file := &hlast.File{}
	for _, d := range raw.Declarations {
		decl, err := decodeDecl(d, vars)
		if err != nil {
			return nil, err
		}
		file.Declarations = append(file.Declarations, decl)
	}
	return file, nil
}

func kindOf(raw json.RawMessage) (string, error) {
	var k struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &k); err != nil {
		return "", fmt.Errorf("hlastjson: %w", err)
	}
	if k.Kind == "" {
		return "", fmt.Errorf("hlastjson: node missing \"kind\": %s", raw)
	}
	return k.Kind, nil
}

func decodeDecl(raw json.RawMessage, vars map[int]*hlast.Variable) (hlast.Declaration, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "class", "object":
		var body struct {
			Path    string       `json:"path"`
			Extern  bool         `json:"extern"`
			Methods []methodJSON `json:"methods"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: %s: %w", kind, err)
		}
		methods := make([]*hlast.MethodDecl, len(body.Methods))
		for i, m := range body.Methods {
			md, err := m.decode(vars)
			if err != nil {
				return nil, fmt.Errorf("hlastjson: %s %q method %d: %w", kind, body.Path, i, err)
			}
			methods[i] = md
		}
		if kind == "object" {
			return &hlast.ObjectDecl{Path: body.Path, Methods: methods}, nil
		}
		return &hlast.ClassDecl{Path: body.Path, Extern: body.Extern, Methods: methods}, nil

	case "typealias":
		var body struct {
			Name    string          `json:"name"`
			Aliased json.RawMessage `json:"aliased"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: typealias: %w", err)
		}
		t, err := decodeType(body.Aliased)
		if err != nil {
			return nil, err
		}
		return &hlast.TypeAliasDecl{Name: body.Name, Aliased: t}, nil

	case "abstract":
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: abstract: %w", err)
		}
		return &hlast.AbstractDecl{Name: body.Name}, nil

	case "enum":
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: enum: %w", err)
		}
		return &hlast.EnumDecl{Name: body.Name}, nil

	case "interface":
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: interface: %w", err)
		}
		return &hlast.InterfaceDecl{Name: body.Name}, nil

	default:
		return nil, fmt.Errorf("hlastjson: unknown declaration kind %q", kind)
	}
}

type methodJSON struct {
	Name       string          `json:"name"`
	Args       []paramJSON     `json:"args"`
	ReturnType json.RawMessage `json:"returnType"`
	Body       json.RawMessage `json:"body,omitempty"`
	Native     *nativeJSON     `json:"native,omitempty"`
}

type paramJSON struct {
	Var     varJSON         `json:"var"`
	Default json.RawMessage `json:"default,omitempty"`
}

type varJSON struct {
	ID   int             `json:"id"`
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type nativeJSON struct {
	LibName  string `json:"libName"`
	FuncName string `json:"funcName"`
}

func (m methodJSON) decode(vars map[int]*hlast.Variable) (*hlast.MethodDecl, error) {
	ret, err := decodeType(m.ReturnType)
	if err != nil {
		return nil, err
	}
	args := make([]*hlast.Param, len(m.Args))
	for i, p := range m.Args {
		v, err := p.Var.decode(vars)
		if err != nil {
			return nil, err
		}
		param := &hlast.Param{Var: v}
		if len(p.Default) > 0 {
			d, err := decodeExpr(p.Default, vars)
			if err != nil {
				return nil, err
			}
			param.Default = d
		}
		args[i] = param
	}
	md := &hlast.MethodDecl{Name: m.Name, Args: args, ReturnType: ret}
	if m.Native != nil {
		md.Native = &hlast.NativeMarker{LibName: m.Native.LibName, FuncName: m.Native.FuncName}
		return md, nil
	}
	if len(m.Body) == 0 {
		return nil, fmt.Errorf("method %q has neither a body nor a native marker", m.Name)
	}
	body, err := decodeExpr(m.Body, vars)
	if err != nil {
		return nil, err
	}
	block, ok := body.(*hlast.Block)
	if !ok {
		return nil, fmt.Errorf("method %q body must be a block", m.Name)
	}
	md.Body = block
	return md, nil
}

func (v varJSON) decode(vars map[int]*hlast.Variable) (*hlast.Variable, error) {
	if existing, ok := vars[v.ID]; ok {
		return existing, nil
	}
	t, err := decodeType(v.Type)
	if err != nil {
		return nil, err
	}
	variable := &hlast.Variable{ID: hlast.VarId(v.ID), Name: v.Name, Type: t}
	vars[v.ID] = variable
	return variable, nil
}

func decodeExpr(raw json.RawMessage, vars map[int]*hlast.Variable) (hlast.Expression, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "int":
		var body struct {
			Value int32           `json:"value"`
			Type  json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: int: %w", err)
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		return &hlast.ConstInt{Value: body.Value, ResolvedType: t}, nil

	case "float":
		var body struct {
			Value float64         `json:"value"`
			Type  json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: float: %w", err)
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		return &hlast.ConstFloat{Value: body.Value, ResolvedType: t}, nil

	case "bool":
		var body struct {
			Value bool            `json:"value"`
			Type  json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: bool: %w", err)
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		return &hlast.ConstBool{Value: body.Value, ResolvedType: t}, nil

	case "local":
		var body struct {
			Var varJSON `json:"var"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: local: %w", err)
		}
		v, err := body.Var.decode(vars)
		if err != nil {
			return nil, err
		}
		return &hlast.Local{Var: v}, nil

	case "return":
		var body struct {
			Value json.RawMessage `json:"value,omitempty"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: return: %w", err)
		}
		ret := &hlast.Return{ResolvedType: hlir.Void()}
		if len(body.Value) > 0 {
			v, err := decodeExpr(body.Value, vars)
			if err != nil {
				return nil, err
			}
			ret.Value = v
		}
		return ret, nil

	case "paren":
		var body struct {
			Inner json.RawMessage `json:"inner"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: paren: %w", err)
		}
		inner, err := decodeExpr(body.Inner, vars)
		if err != nil {
			return nil, err
		}
		return &hlast.Parenthesis{Inner: inner}, nil

	case "block":
		var body struct {
			Exprs []json.RawMessage `json:"exprs"`
			Type  json.RawMessage   `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: block: %w", err)
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		exprs := make([]hlast.Expression, len(body.Exprs))
		for i, e := range body.Exprs {
			ex, err := decodeExpr(e, vars)
			if err != nil {
				return nil, err
			}
			exprs[i] = ex
		}
		return &hlast.Block{Exprs: exprs, ResolvedType: t}, nil

	case "call":
		var body struct {
			Callee json.RawMessage   `json:"callee"`
			Args   []json.RawMessage `json:"args"`
			Type   json.RawMessage   `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: call: %w", err)
		}
		callee, err := decodeExpr(body.Callee, vars)
		if err != nil {
			return nil, err
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		args := make([]hlast.Expression, len(body.Args))
		for i, a := range body.Args {
			av, err := decodeExpr(a, vars)
			if err != nil {
				return nil, err
			}
			args[i] = av
		}
		return &hlast.Call{Callee: callee, Args: args, ResolvedType: t}, nil

	case "field":
		var body struct {
			Class string          `json:"class"`
			Field string          `json:"field"`
			Type  json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: field: %w", err)
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		return &hlast.Field{Target: hlast.FStatic{Class: body.Class, Field: body.Field}, ResolvedType: t}, nil

	case "if":
		var body struct {
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else,omitempty"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: if: %w", err)
		}
		cond, err := decodeExpr(body.Cond, vars)
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(body.Then, vars)
		if err != nil {
			return nil, err
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		ifExpr := &hlast.If{Cond: cond, Then: then, ResolvedType: t}
		if len(body.Else) > 0 {
			elseExpr, err := decodeExpr(body.Else, vars)
			if err != nil {
				return nil, err
			}
			ifExpr.Else = elseExpr
		}
		return ifExpr, nil

	case "binop":
		var body struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
			Type  json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("hlastjson: binop: %w", err)
		}
		op, err := decodeBinOp(body.Op)
		if err != nil {
			return nil, err
		}
		left, err := decodeExpr(body.Left, vars)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(body.Right, vars)
		if err != nil {
			return nil, err
		}
		t, err := decodeType(body.Type)
		if err != nil {
			return nil, err
		}
		return &hlast.Binop{Op: op, Left: left, Right: right, ResolvedType: t}, nil

	default:
		return nil, fmt.Errorf("hlastjson: unknown expression kind %q", kind)
	}
}

func decodeBinOp(s string) (hlast.BinOp, error) {
	switch s {
	case "+":
		return hlast.BinAdd, nil
	case "-":
		return hlast.BinSub, nil
	case "<=":
		return hlast.BinLe, nil
	default:
		return 0, fmt.Errorf("hlastjson: unknown binop %q", s)
	}
}

// decodeType parses a type record: {"kind":"i32"} for a primitive, or
// {"kind":"fun","args":[...],"ret":{...}} for a function type.
func decodeType(raw json.RawMessage) (hlir.Type, error) {
	if len(raw) == 0 {
		return hlir.Type{}, fmt.Errorf("hlastjson: missing type")
	}
	kind, err := kindOf(raw)
	if err != nil {
		return hlir.Type{}, err
	}
	switch kind {
	case "void":
		return hlir.Void(), nil
	case "u8":
		return hlir.UI8(), nil
	case "i32":
		return hlir.I32(), nil
	case "f32":
		return hlir.F32(), nil
	case "f64":
		return hlir.F64(), nil
	case "bool":
		return hlir.Bool(), nil
	case "any":
		return hlir.Any(), nil
	case "fun":
		var body struct {
			Args []json.RawMessage `json:"args"`
			Ret  json.RawMessage   `json:"ret"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return hlir.Type{}, fmt.Errorf("hlastjson: fun type: %w", err)
		}
		args := make([]hlir.Type, len(body.Args))
		for i, a := range body.Args {
			t, err := decodeType(a)
			if err != nil {
				return hlir.Type{}, err
			}
			args[i] = t
		}
		ret, err := decodeType(body.Ret)
		if err != nil {
			return hlir.Type{}, err
		}
		return hlir.Fun(args, ret), nil
	default:
		return hlir.Type{}, fmt.Errorf("hlastjson: unknown type kind %q", kind)
	}
}
