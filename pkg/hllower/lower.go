// Package hllower walks a type-checked hlast tree and emits an hlir.Module
// (spec §4.3). It never infers or checks types — the tree it consumes
// already carries resolved types on every node — it only allocates
// registers and globals and emits opcodes.
package hllower

import (
	"fmt"

	"github.com/oisee/hlbc/pkg/hlast"
	"github.com/oisee/hlbc/pkg/hlir"
	"github.com/oisee/hlbc/pkg/hltable"
)

// compiler holds the module-wide state shared across every method being
// lowered: the deduplicating global and float tables (spec §4.2) and the
// module under construction.
type compiler struct {
	globals   *hltable.Table[string, hlir.Type]
	floats    *hltable.Table[float64, float64]
	natives   map[hlir.GlobalId]bool
	mod       *hlir.Module
	entryName string
}

// funcState is the per-method state: the FunDecl being built and the map
// from source variable identity to its stable register (spec §4.3
// "Register policy").
type funcState struct {
	fn   *hlir.FunDecl
	vars map[hlast.VarId]hlir.RegId
}

// Lower compiles every declaration in file into a module. entry names the
// method to use as the entrypoint, in "Class.method" form; an empty entry
// looks for any non-extern method literally named "main". Driver-level
// entry-point selection is not part of this spec (§1 "out of scope:
// driver... packaging"), so the convention lives here, at the one place
// that must pick something concrete.
func Lower(file *hlast.File, entry string) (*hlir.Module, error) {
	c := &compiler{
		globals:   hltable.New[string, hlir.Type](),
		floats:    hltable.New[float64, float64](),
		natives:   make(map[hlir.GlobalId]bool),
		mod:       &hlir.Module{Version: 1},
		entryName: entry,
	}

	var mainMethod string
	var mainGlobal hlir.GlobalId
	foundMain := false

	for _, decl := range file.Declarations {
		switch d := decl.(type) {
		case *hlast.TypeAliasDecl, *hlast.AbstractDecl:
			// no implementation to lower (spec §4.3)
		case *hlast.EnumDecl:
			return nil, fmt.Errorf("unsupported source construct: enum %q", d.Name)
		case *hlast.InterfaceDecl:
			return nil, fmt.Errorf("unsupported source construct: interface %q", d.Name)
		case *hlast.ClassDecl:
			if d.Extern {
				if err := c.lowerExternClass(d); err != nil {
					return nil, err
				}
				continue
			}
			g, err := c.lowerMethodClass(d.Path, d.Methods, &mainMethod, &mainGlobal, &foundMain)
			if err != nil {
				return nil, err
			}
			_ = g
		case *hlast.ObjectDecl:
			g, err := c.lowerMethodClass(d.Path, d.Methods, &mainMethod, &mainGlobal, &foundMain)
			if err != nil {
				return nil, err
			}
			_ = g
		default:
			return nil, fmt.Errorf("unsupported source construct: unknown declaration %T", decl)
		}
	}

	c.mod.Globals = c.globals.Values()
	c.mod.Floats = c.floats.Values()

	if entry != "" {
		id, ok := c.globals.Lookup(entry)
		if !ok {
			return nil, fmt.Errorf("entrypoint %q not found", entry)
		}
		c.mod.Entrypoint = hlir.GlobalId(id)
	} else if foundMain {
		c.mod.Entrypoint = mainGlobal
	} else {
		return nil, fmt.Errorf("no entrypoint: no method named %q and none given explicitly", "main")
	}

	ep := c.mod.Globals[c.mod.Entrypoint]
	if ep.Kind != hlir.KFun || len(ep.Args) != 0 {
		return nil, fmt.Errorf("entrypoint %q must be Fun([], _), got %s", mainMethod, ep)
	}

	return c.mod, nil
}

// lowerExternClass interns a native global for every method of an extern
// class (spec §4.3 "ClassDecl(extern=true)").
func (c *compiler) lowerExternClass(d *hlast.ClassDecl) error {
	for _, m := range d.Methods {
		if m.Native == nil {
			return fmt.Errorf("extern class %q: method %q has no native marker", d.Path, m.Name)
		}
		funType := methodType(m)
		name := m.Native.LibName + "@" + m.Native.FuncName
		g := c.internGlobal(name, funType)
		if !c.natives[g] {
			c.natives[g] = true
			c.mod.Natives = append(c.mod.Natives, hlir.NativeEntry{Name: name, Global: g})
		}
	}
	return nil
}

// lowerMethodClass lowers every method with a body belonging to a
// non-extern class or an object (spec §4.3 "ClassDecl(extern=false)",
// "ObjectDecl" — both are static-method containers lowered identically).
func (c *compiler) lowerMethodClass(path string, methods []*hlast.MethodDecl, mainMethod *string, mainGlobal *hlir.GlobalId, foundMain *bool) (hlir.GlobalId, error) {
	var last hlir.GlobalId
	for _, m := range methods {
		if m.Body == nil {
			return 0, fmt.Errorf("%s.%s: non-extern method has no body", path, m.Name)
		}
		funType := methodType(m)
		key := path + "." + m.Name
		g := c.internGlobal(key, funType)
		last = hlir.GlobalId(g)

		fn := &hlir.FunDecl{Index: hlir.GlobalId(g)}
		fs := &funcState{fn: fn, vars: make(map[hlast.VarId]hlir.RegId)}
		for _, p := range m.Args {
			r := fs.allocReg(p.Var.Type)
			fs.vars[p.Var.ID] = r
		}
		if err := lowerDefaults(c, fs, m.Args); err != nil {
			return 0, err
		}
		if _, err := lowerExpr(c, fs, m.Body); err != nil {
			return 0, err
		}
		if m.ReturnType.Kind == hlir.KVoid {
			r := fs.allocReg(hlir.Void())
			fs.emit(hlir.Opcode{Op: hlir.OpRet, R: r})
		}
		c.mod.Functions = append(c.mod.Functions, fn)

		if m.Name == "main" {
			*mainMethod = key
			*mainGlobal = hlir.GlobalId(g)
			*foundMain = true
		}
	}
	return last, nil
}

// lowerDefaults emits the method-entry default-argument prelude (spec
// §4.3 "Method entry"): for each argument with a default literal, a
// JNotNull guard followed by the constant-load opcode written directly
// into the argument's own register.
func lowerDefaults(c *compiler, fs *funcState, args []*hlast.Param) error {
	for _, p := range args {
		if p.Default == nil {
			continue
		}
		r := fs.vars[p.Var.ID]
		fs.emit(hlir.Opcode{Op: hlir.OpJNotNull, R: r, Delta: 1})
		if err := emitConstInto(c, fs, r, p.Default); err != nil {
			return err
		}
	}
	return nil
}

// emitConstInto writes a literal's value into an already-allocated
// register, rather than a fresh one — the one case the lowering contract
// does not route through lowerExpr's usual "every expression gets a fresh
// register" rule.
func emitConstInto(c *compiler, fs *funcState, r hlir.RegId, e hlast.Expression) error {
	switch lit := e.(type) {
	case *hlast.ConstInt:
		fs.emit(hlir.Opcode{Op: hlir.OpInt, R: r, Imm: lit.Value})
	case *hlast.ConstBool:
		fs.emit(hlir.Opcode{Op: hlir.OpBool, R: r, BoolVal: lit.Value})
	case *hlast.ConstFloat:
		idx := c.internFloat(lit.Value)
		fs.emit(hlir.Opcode{Op: hlir.OpFloat, R: r, FloatIdx: idx})
	default:
		return fmt.Errorf("default argument must be a literal, got %T", e)
	}
	return nil
}

// methodType builds the Fun type of a method from its parameter and
// return types.
func methodType(m *hlast.MethodDecl) hlir.Type {
	args := make([]hlir.Type, len(m.Args))
	for i, p := range m.Args {
		args[i] = p.Var.Type
	}
	return hlir.Fun(args, m.ReturnType)
}

// internGlobal interns key at type t, returning its GlobalId.
func (c *compiler) internGlobal(key string, t hlir.Type) hlir.GlobalId {
	return hlir.GlobalId(c.globals.Intern(key, func() hlir.Type { return t }))
}

// internFloat interns a float constant, returning its pool index.
func (c *compiler) internFloat(f float64) int {
	return c.floats.Intern(f, func() float64 { return f })
}

// allocReg allocates a fresh register of type t in fs, per the register
// policy in spec §4.3: registers are never freed or reused within a
// function.
func (fs *funcState) allocReg(t hlir.Type) hlir.RegId {
	id := hlir.RegId(len(fs.fn.Regs))
	fs.fn.Regs = append(fs.fn.Regs, t)
	return id
}

// emit appends op to the function's code and returns its index.
func (fs *funcState) emit(op hlir.Opcode) int {
	fs.fn.Code = append(fs.fn.Code, op)
	return len(fs.fn.Code) - 1
}
