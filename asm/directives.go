package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
)

// directiveSize returns a directive's byte footprint for the sizing pass.
// ORG and EQU/SET are handled specially by the caller and always report 0
// here.
func (a *Assembler) directiveSize(n *Node, pc uint32) (uint32, error) {
	switch n.Directive {
	case "org", "equ", "=", "set":
		return 0, nil
	case "fcb", "db":
		return uint32(len(n.Args)), nil
	case "fdb", "dw":
		return uint32(2 * len(n.Args)), nil
	case "fcc":
		return uint32(fccLen(n.Args)), nil
	case "rmb", "ds":
		if len(n.Args) != 1 {
			return 0, fmt.Errorf("%s requires a single count", n.Directive)
		}
		v, err := a.evalArg(n.Args[0])
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	case "fill":
		if len(n.Args) != 2 {
			return 0, fmt.Errorf("fill requires a byte value and a count")
		}
		v, err := a.evalArg(n.Args[1])
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	case "align":
		if len(n.Args) != 1 {
			return 0, fmt.Errorf("align requires a power-of-two boundary")
		}
		v, err := a.evalArg(n.Args[0])
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("align: invalid boundary")
		}
		boundary := uint32(v)
		rem := pc % boundary
		if rem == 0 {
			return 0, nil
		}
		return boundary - rem, nil
	case "include", "incbin", "end":
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown directive: %s", n.Directive)
	}
}

func fccLen(args []string) int {
	if len(args) == 0 {
		return 0
	}
	return len(decodeFCC(strings.Join(args, ",")))
}

// decodeFCC decodes a string literal's escape sequences into raw bytes and
// appends a trailing zero terminator.
func decodeFCC(s string) []byte {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, 0)
	return out
}

func (a *Assembler) evalArg(s string) (int64, error) {
	n, err := expr.Parse(s)
	if err != nil {
		return 0, err
	}
	return expr.Eval(n, a.syms)
}

func (a *Assembler) evalDirectiveOrg(n *Node) (int64, error) {
	if len(n.Args) != 1 {
		return 0, fmt.Errorf("org requires a single address")
	}
	return a.evalArg(n.Args[0])
}

// applyEquSet binds EQU (fixed, fatal on redefinition with a different
// value) or SET/"=" (always rebinds) symbols.
func (a *Assembler) applyEquSet(n *Node, bundle *diag.Bundle) {
	if len(n.Args) != 1 {
		bundle.Errorf(n.Pos, "%s requires a label and a value", n.Directive)
		return
	}
	if n.Label == "" {
		bundle.Errorf(n.Pos, "%s requires a preceding label", n.Directive)
		return
	}
	v, err := a.evalArg(n.Args[0])
	if err != nil {
		bundle.Errorf(n.Pos, "%v", err)
		return
	}
	kind := SymEquate
	if n.Directive != "equ" {
		kind = SymSetVariable
	}
	if err := a.syms.Define(n.Label, v, kind, n.Pos.String()); err != nil {
		bundle.Errorf(n.Pos, "%v", err)
	}
}

// encodeDirective emits a directive's bytes during pass 2.
func (a *Assembler) encodeDirective(n *Node) ([]byte, error) {
	switch n.Directive {
	case "org", "equ", "=", "set", "include", "incbin", "end":
		return nil, nil
	case "fcb", "db":
		out := make([]byte, 0, len(n.Args))
		for _, arg := range n.Args {
			v, err := a.evalArg(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v))
		}
		return out, nil
	case "fdb", "dw":
		out := make([]byte, 0, 2*len(n.Args))
		for _, arg := range n.Args {
			v, err := a.evalArg(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v>>8), byte(v))
		}
		return out, nil
	case "fcc":
		return decodeFCC(strings.Join(n.Args, ",")), nil
	case "rmb", "ds":
		v, err := a.evalArg(n.Args[0])
		if err != nil {
			return nil, err
		}
		return make([]byte, v), nil
	case "fill":
		v, err := a.evalArg(n.Args[0])
		if err != nil {
			return nil, err
		}
		count, err := a.evalArg(n.Args[1])
		if err != nil {
			return nil, err
		}
		out := make([]byte, count)
		for i := range out {
			out[i] = byte(v)
		}
		return out, nil
	case "align":
		size, err := a.directiveSize(n, uint32(a.syms.Here()))
		if err != nil {
			return nil, err
		}
		return make([]byte, size), nil
	default:
		return nil, fmt.Errorf("unknown directive: %s", n.Directive)
	}
}

// parseIntLiteral is exposed for callers (e.g. the pack command) that need
// the same numeric literal grammar outside of an expression context.
func parseIntLiteral(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(s, "#"), 0, 64)
}
