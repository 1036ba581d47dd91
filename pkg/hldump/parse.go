package hldump

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/oisee/hlbc/pkg/hlir"
)

// Parse reads the §6.3 textual format back into a Module, the inverse of
// Dump — grounded on the teacher's mir_parser.go: a bufio.Scanner driven
// line classifier, here keyed on leading-tab depth (section header, one
// tab for a section item, two tabs for a register or opcode line) rather
// than the teacher's directive/label scheme, since this format already
// carries explicit @-indices instead of named labels.
func Parse(text string) (*hlir.Module, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	m := &hlir.Module{}

	var section string
	var curFn *hlir.FunDecl
	lineNo := 0

	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fail := func(format string, args ...any) error {
			return fmt.Errorf("hldump: line %d: %s", lineNo, fmt.Sprintf(format, args...))
		}

		switch {
		case strings.HasPrefix(raw, "\t\t"):
			if curFn == nil {
				return nil, fail("register/opcode line outside any function")
			}
			body := strings.TrimPrefix(raw, "\t\t")
			if strings.HasPrefix(body, "r") {
				if err := parseRegLine(curFn, body); err != nil {
					return nil, fail("%v", err)
				}
			} else if strings.HasPrefix(body, "@") {
				op, err := parseOpLine(body)
				if err != nil {
					return nil, fail("%v", err)
				}
				curFn.Code = append(curFn.Code, op)
			} else {
				return nil, fail("unrecognized function-body line %q", body)
			}

		case strings.HasPrefix(raw, "\t"):
			body := strings.TrimPrefix(raw, "\t")
			switch section {
			case "globals":
				t, err := parseIndexedType(body)
				if err != nil {
					return nil, fail("%v", err)
				}
				m.Globals = append(m.Globals, t)
			case "floats":
				f, err := parseIndexedFloat(body)
				if err != nil {
					return nil, fail("%v", err)
				}
				m.Floats = append(m.Floats, f)
			case "natives":
				n, err := parseNativeLine(body)
				if err != nil {
					return nil, fail("%v", err)
				}
				m.Natives = append(m.Natives, n)
			case "functions":
				fn, err := parseFunHeader(body)
				if err != nil {
					return nil, fail("%v", err)
				}
				curFn = fn
				m.Functions = append(m.Functions, fn)
			default:
				return nil, fail("section item outside any section")
			}

		case strings.HasPrefix(raw, "hl v"):
			v, err := strconv.Atoi(strings.TrimPrefix(raw, "hl v"))
			if err != nil {
				return nil, fail("bad version header %q", raw)
			}
			m.Version = uint8(v)

		case strings.HasPrefix(raw, "entry @"):
			id, err := strconv.Atoi(strings.TrimPrefix(raw, "entry @"))
			if err != nil {
				return nil, fail("bad entry header %q", raw)
			}
			m.Entrypoint = hlir.GlobalId(id)

		default:
			fields := strings.Fields(raw)
			if len(fields) != 2 {
				return nil, fail("unrecognized line %q", raw)
			}
			switch fields[1] {
			case "globals", "floats", "natives", "functions":
				section = fields[1]
				curFn = nil
			default:
				return nil, fail("unrecognized section header %q", raw)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseIndexedType parses a "@<i> : <type>" line, ignoring the index
// (entries are written in order by Dump).
func parseIndexedType(body string) (hlir.Type, error) {
	_, rest, ok := cutColon(body)
	if !ok {
		return hlir.Type{}, fmt.Errorf("malformed indexed-type line %q", body)
	}
	return parseType(rest)
}

func parseIndexedFloat(body string) (float64, error) {
	_, rest, ok := cutColon(body)
	if !ok {
		return 0, fmt.Errorf("malformed indexed-float line %q", body)
	}
	return strconv.ParseFloat(strings.TrimSpace(rest), 64)
}

// cutColon splits "@<i> : <rest>" into its index prefix and the part
// after " : ".
func cutColon(body string) (prefix, rest string, ok bool) {
	idx := strings.Index(body, " : ")
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+3:], true
}

// parseNativeLine parses "native <name> @<g> : <type>". The type is
// parsed only to validate the line; the Global itself is recovered from
// the @<g> field, matching the global slot already recorded in the
// globals section.
func parseNativeLine(body string) (hlir.NativeEntry, error) {
	rest := strings.TrimPrefix(body, "native ")
	if rest == body {
		return hlir.NativeEntry{}, fmt.Errorf("malformed native line %q", body)
	}
	at := strings.LastIndex(rest, " @")
	if at < 0 {
		return hlir.NativeEntry{}, fmt.Errorf("malformed native line %q", body)
	}
	name := rest[:at]
	tail := rest[at+2:] // "<g> : <type>"
	gStr, typeStr, ok := cutColon(tail)
	if !ok {
		return hlir.NativeEntry{}, fmt.Errorf("malformed native line %q", body)
	}
	if _, err := parseType(typeStr); err != nil {
		return hlir.NativeEntry{}, err
	}
	g, err := strconv.Atoi(strings.TrimSpace(gStr))
	if err != nil {
		return hlir.NativeEntry{}, err
	}
	return hlir.NativeEntry{Name: name, Global: hlir.GlobalId(g)}, nil
}

// parseFunHeader parses "fun <i> : <type>" and returns a fresh FunDecl
// with its Index set; the type itself is already implied by globals[i].
func parseFunHeader(body string) (*hlir.FunDecl, error) {
	rest := strings.TrimPrefix(body, "fun ")
	if rest == body {
		return nil, fmt.Errorf("malformed function header %q", body)
	}
	idxStr, _, ok := cutColon(rest)
	if !ok {
		return nil, fmt.Errorf("malformed function header %q", body)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
	if err != nil {
		return nil, err
	}
	return &hlir.FunDecl{Index: hlir.GlobalId(idx)}, nil
}

// parseRegLine parses "r<i> <type>" and appends the type to fn.Regs in
// encounter order (Dump always writes registers 0..n-1 in order).
func parseRegLine(fn *hlir.FunDecl, body string) error {
	sp := strings.IndexByte(body, ' ')
	if sp < 0 {
		return fmt.Errorf("malformed register line %q", body)
	}
	t, err := parseType(body[sp+1:])
	if err != nil {
		return err
	}
	fn.Regs = append(fn.Regs, t)
	return nil
}

// parseOpLine parses "@<pc> <mnemonic> <operands>" into an Opcode. The pc
// prefix is not used: Dump always writes one opcode per line in order.
func parseOpLine(body string) (hlir.Opcode, error) {
	sp := strings.IndexByte(body, ' ')
	if sp < 0 {
		return hlir.Opcode{}, fmt.Errorf("malformed opcode line %q", body)
	}
	rest := body[sp+1:]

	mnem, operandStr, _ := strings.Cut(rest, " ")
	var nums []int
	if operandStr != "" {
		for _, tok := range strings.Split(operandStr, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return hlir.Opcode{}, fmt.Errorf("bad operand %q in %q: %w", tok, body, err)
			}
			nums = append(nums, n)
		}
	}

	need := func(n int) error {
		if len(nums) != n {
			return fmt.Errorf("%s: want %d operands, got %d in %q", mnem, n, len(nums), body)
		}
		return nil
	}

	switch mnem {
	case "mov":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpMov, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1])}, nil
	case "int":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpInt, R: hlir.RegId(nums[0]), Imm: int32(nums[1])}, nil
	case "float":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpFloat, R: hlir.RegId(nums[0]), FloatIdx: nums[1]}, nil
	case "true":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpBool, R: hlir.RegId(nums[0]), BoolVal: true}, nil
	case "false":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpBool, R: hlir.RegId(nums[0]), BoolVal: false}, nil
	case "add":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpAdd, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "sub":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpSub, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "incr":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpIncr, R: hlir.RegId(nums[0])}, nil
	case "decr":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpDecr, R: hlir.RegId(nums[0])}, nil
	case "call":
		if len(nums) < 2 {
			return hlir.Opcode{}, fmt.Errorf("call: want at least 2 operands, got %d in %q", len(nums), body)
		}
		args := regArgs(nums[2:])
		op, err := callOpForArity(len(args))
		if err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: op, R: hlir.RegId(nums[0]), Global: hlir.GlobalId(nums[1]), Args: args}, nil
	case "calln":
		if len(nums) < 2 {
			return hlir.Opcode{}, fmt.Errorf("calln: want at least 2 operands, got %d in %q", len(nums), body)
		}
		return hlir.Opcode{Op: hlir.OpCallN, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), Args: regArgs(nums[2:])}, nil
	case "global":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpGetGlobal, R: hlir.RegId(nums[0]), Global: hlir.GlobalId(nums[1])}, nil
	case "setglobal":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpSetGlobal, Global: hlir.GlobalId(nums[0]), R: hlir.RegId(nums[1])}, nil
	case "eq":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpEq, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "noteq":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpNotEq, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "lt":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpLt, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "gte":
		if err := need(3); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpGte, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1]), B: hlir.RegId(nums[2])}, nil
	case "ret":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpRet, R: hlir.RegId(nums[0])}, nil
	case "jtrue":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpJTrue, R: hlir.RegId(nums[0]), Delta: int32(nums[1])}, nil
	case "jfalse":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpJFalse, R: hlir.RegId(nums[0]), Delta: int32(nums[1])}, nil
	case "jnull":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpJNull, R: hlir.RegId(nums[0]), Delta: int32(nums[1])}, nil
	case "jnotnull":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpJNotNull, R: hlir.RegId(nums[0]), Delta: int32(nums[1])}, nil
	case "jalways":
		if err := need(1); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpJAlways, Delta: int32(nums[0])}, nil
	case "toany":
		if err := need(2); err != nil {
			return hlir.Opcode{}, err
		}
		return hlir.Opcode{Op: hlir.OpToAny, R: hlir.RegId(nums[0]), A: hlir.RegId(nums[1])}, nil
	default:
		return hlir.Opcode{}, fmt.Errorf("unknown mnemonic %q", mnem)
	}
}

func regArgs(nums []int) []hlir.RegId {
	if len(nums) == 0 {
		return nil
	}
	args := make([]hlir.RegId, len(nums))
	for i, n := range nums {
		args[i] = hlir.RegId(n)
	}
	return args
}

func callOpForArity(n int) (hlir.Op, error) {
	switch n {
	case 0:
		return hlir.OpCall0, nil
	case 1:
		return hlir.OpCall1, nil
	case 2:
		return hlir.OpCall2, nil
	case 3:
		return hlir.OpCall3, nil
	default:
		return 0, fmt.Errorf("call: %d arguments has no fixed-arity opcode (use calln)", n)
	}
}

// parseType parses a type as rendered by hlir.Type.String(): either a
// bare primitive keyword, or "(arg, arg, ...) -> ret" for Fun, recursively.
func parseType(s string) (hlir.Type, error) {
	s = strings.TrimSpace(s)
	switch s {
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
	}
	if !strings.HasPrefix(s, "(") {
		return hlir.Type{}, fmt.Errorf("cannot parse type %q", s)
	}
	depth := 0
	closeIdx := -1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return hlir.Type{}, fmt.Errorf("unbalanced parens in type %q", s)
	}
	argsStr := strings.TrimSpace(s[1:closeIdx])
	retStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s[closeIdx+1:]), "->"))

	var args []hlir.Type
	if argsStr != "" {
		for _, part := range splitTopLevel(argsStr) {
			t, err := parseType(part)
			if err != nil {
				return hlir.Type{}, err
			}
			args = append(args, t)
		}
	}
	ret, err := parseType(retStr)
	if err != nil {
		return hlir.Type{}, err
	}
	return hlir.Fun(args, ret), nil
}

// splitTopLevel splits a comma-separated list at depth-0 commas only, so
// nested Fun-type parens in an argument list are not mistaken for
// separators.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
