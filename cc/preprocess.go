package cc

import (
	"strconv"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
)

// macroDef is one #define: object-like macros have a nil Params; function-
// like macros carry their formal parameter names.
type macroDef struct {
	name   string
	params []string
	body   []Token
}

// Includer resolves #include targets; the build driver supplies the real
// filesystem-backed implementation.
type Includer interface {
	Read(name string, system bool) (text, resolvedPath string, ok bool)
}

// preprocessor holds macro-expansion state for one translation unit.
type preprocessor struct {
	macros    map[string]*macroDef
	expanding map[string]bool
	bundle    *diag.Bundle
	includer  Includer
	defineVal map[string]int64 // exposes #define'd integer constants to #if
}

func newPreprocessor(includer Includer, predefined map[string]string, bundle *diag.Bundle) *preprocessor {
	p := &preprocessor{
		macros:    map[string]*macroDef{},
		expanding: map[string]bool{},
		bundle:    bundle,
		includer:  includer,
		defineVal: map[string]int64{},
	}
	for name, val := range predefined {
		if v, err := strconv.ParseInt(val, 0, 64); err == nil {
			p.defineVal[name] = v
			p.macros[name] = &macroDef{name: name, body: []Token{{Kind: TokIntLit, Value: v, Text: val}}}
		} else {
			p.macros[name] = &macroDef{name: name, body: []Token{{Kind: TokIdent, Text: val}}}
		}
	}
	return p
}

// Process runs #include/#define/#if-family resolution and macro expansion
// over one file's token stream, returning the fully expanded token stream
// ready for the parser.
func (p *preprocessor) Process(toks []Token, file string) []Token {
	lines := groupByLine(toks)
	var out []Token
	type frame struct{ taken, active, sawElse bool }
	var stack []frame
	active := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}
		return true
	}

	for _, ln := range lines {
		if len(ln) == 0 {
			continue
		}
		if ln[0].Kind == TokPunct && ln[0].Text == "#" && len(ln) > 1 && (ln[1].Kind == TokIdent || ln[1].Kind == TokKeyword) {
			switch ln[1].Text {
			case "ifdef", "ifndef":
				name := ""
				if len(ln) > 2 {
					name = ln[2].Text
				}
				_, defined := p.macros[name]
				cond := defined
				if ln[1].Text == "ifndef" {
					cond = !defined
				}
				stack = append(stack, frame{taken: cond, active: cond && active()})
				continue
			case "if":
				v := p.evalIf(ln[2:], active())
				stack = append(stack, frame{taken: v, active: v && active()})
				continue
			case "elif":
				if len(stack) == 0 {
					p.bundle.Errorf(ln[0].Pos, "#elif without matching #if")
					continue
				}
				top := &stack[len(stack)-1]
				if top.taken {
					top.active = false
				} else {
					v := p.evalIf(ln[2:], active())
					top.taken, top.active = v, v
				}
				continue
			case "else":
				if len(stack) == 0 {
					p.bundle.Errorf(ln[0].Pos, "#else without matching #if")
					continue
				}
				top := &stack[len(stack)-1]
				if top.sawElse {
					p.bundle.Errorf(ln[0].Pos, "duplicate #else")
				}
				top.sawElse = true
				top.active = !top.taken
				top.taken = true
				continue
			case "endif":
				if len(stack) == 0 {
					p.bundle.Errorf(ln[0].Pos, "#endif without matching #if")
					continue
				}
				stack = stack[:len(stack)-1]
				continue
			}
			if !active() {
				continue
			}
			switch ln[1].Text {
			case "define":
				p.define(ln[2:], ln[0].Pos)
				continue
			case "undef":
				if len(ln) > 2 {
					delete(p.macros, ln[2].Text)
					delete(p.defineVal, ln[2].Text)
				}
				continue
			case "include":
				out = append(out, p.include(ln[2:], file, ln[0].Pos)...)
				continue
			default:
				p.bundle.Errorf(ln[0].Pos, "unknown preprocessor directive #%s", ln[1].Text)
				continue
			}
		}

		if !active() {
			continue
		}
		out = append(out, p.expandLine(ln, map[string]bool{})...)
	}

	if len(stack) != 0 {
		p.bundle.Errorf(diag.Pos{File: file}, "unterminated #if/#ifdef conditional block")
	}
	return out
}

func groupByLine(toks []Token) [][]Token {
	var lines [][]Token
	var cur []Token
	curLine := -1
	for _, t := range toks {
		if t.Kind == TokEOF {
			break
		}
		if t.Pos.Line != curLine {
			if cur != nil {
				lines = append(lines, cur)
			}
			cur = nil
			curLine = t.Pos.Line
		}
		cur = append(cur, t)
	}
	if cur != nil {
		lines = append(lines, cur)
	}
	return lines
}

func (p *preprocessor) define(rest []Token, pos diag.Pos) {
	if len(rest) == 0 {
		p.bundle.Errorf(pos, "#define without a name")
		return
	}
	name := rest[0].Text
	if _, exists := p.macros[name]; exists {
		p.bundle.Errorf(pos, "macro redefinition conflict: %s", name)
	}
	rest = rest[1:]
	// Function-like form requires '(' immediately after the name, which the
	// lexer can't distinguish from "NAME (x)" with a space; this dialect's
	// preprocessor, like the assembler's MACRO forms, doesn't special-case
	// that ambiguity and treats any immediately-following '(' as the param
	// list opener.
	if len(rest) > 0 && rest[0].Kind == TokPunct && rest[0].Text == "(" {
		var params []string
		i := 1
		for i < len(rest) && !(rest[i].Kind == TokPunct && rest[i].Text == ")") {
			if rest[i].Kind == TokIdent {
				params = append(params, rest[i].Text)
			}
			i++
		}
		if i < len(rest) {
			i++
		}
		p.macros[name] = &macroDef{name: name, params: params, body: rest[i:]}
		return
	}
	p.macros[name] = &macroDef{name: name, body: rest}
	if len(rest) == 1 && rest[0].Kind == TokIntLit {
		p.defineVal[name] = rest[0].Value
	}
}

func (p *preprocessor) include(rest []Token, fromFile string, pos diag.Pos) []Token {
	if len(rest) == 0 {
		p.bundle.Errorf(pos, "#include without a filename")
		return nil
	}
	var name string
	var system bool
	if rest[0].Kind == TokStringLit {
		name = rest[0].Text
	} else if rest[0].Kind == TokPunct && rest[0].Text == "<" {
		var b strings.Builder
		for i := 1; i < len(rest) && !(rest[i].Kind == TokPunct && rest[i].Text == ">"); i++ {
			b.WriteString(rest[i].Text)
		}
		name = b.String()
		system = true
	}
	if name == "" {
		p.bundle.Errorf(pos, "malformed #include directive")
		return nil
	}
	if p.includer == nil {
		p.bundle.Errorf(pos, "include file not found: %s (no include resolver configured)", name)
		return nil
	}
	text, resolved, ok := p.includer.Read(name, system)
	if !ok {
		p.bundle.Errorf(pos, "include file not found: %s", name)
		return nil
	}
	lx := newLexer(text, resolved, p.bundle)
	return p.Process(lx.Tokens(), resolved)
}

// expandLine macro-expands one line of tokens, guarding against re-entrant
// expansion of a macro that is already on the expansion stack.
func (p *preprocessor) expandLine(line []Token, inExpansion map[string]bool) []Token {
	var out []Token
	for i := 0; i < len(line); i++ {
		t := line[i]
		if t.Kind != TokIdent {
			out = append(out, t)
			continue
		}
		m, ok := p.macros[t.Text]
		if !ok || inExpansion[t.Text] {
			out = append(out, t)
			continue
		}
		if m.params == nil {
			sub := map[string]bool{}
			for k := range inExpansion {
				sub[k] = true
			}
			sub[t.Text] = true
			out = append(out, p.expandLine(m.body, sub)...)
			continue
		}
		// Function-like invocation: gather a parenthesised, comma-split
		// argument list.
		if i+1 >= len(line) || !(line[i+1].Kind == TokPunct && line[i+1].Text == "(") {
			out = append(out, t)
			continue
		}
		args, consumed := splitMacroArgs(line[i+1:])
		i += consumed
		body := substituteMacroParams(m, args)
		sub := map[string]bool{}
		for k := range inExpansion {
			sub[k] = true
		}
		sub[t.Text] = true
		out = append(out, p.expandLine(body, sub)...)
	}
	return out
}

// splitMacroArgs parses a "(a, b, c)" token run starting at toks[0]=="(",
// returning the comma-separated argument token groups and how many tokens
// (including both parens) were consumed.
func splitMacroArgs(toks []Token) ([][]Token, int) {
	depth := 0
	var args [][]Token
	var cur []Token
	i := 0
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == TokPunct && t.Text == "(" {
			depth++
			if depth == 1 {
				continue
			}
		}
		if t.Kind == TokPunct && t.Text == ")" {
			depth--
			if depth == 0 {
				args = append(args, cur)
				i++
				break
			}
		}
		if t.Kind == TokPunct && t.Text == "," && depth == 1 {
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	return args, i
}

func substituteMacroParams(m *macroDef, args [][]Token) []Token {
	var out []Token
	for _, t := range m.body {
		if t.Kind == TokIdent {
			for i, p := range m.params {
				if p == t.Text && i < len(args) {
					out = append(out, args[i]...)
					goto next
				}
			}
		}
		out = append(out, t)
	next:
	}
	return out
}

// evalIf expands and evaluates a #if/#elif condition using the expression
// evaluator shared with the assembler.
func (p *preprocessor) evalIf(cond []Token, parentActive bool) bool {
	if !parentActive {
		return false
	}
	expanded := p.expandLine(cond, map[string]bool{})
	var b strings.Builder
	for _, t := range expanded {
		if t.Kind == TokIdent {
			if _, ok := p.defineVal[t.Text]; ok {
				b.WriteString(strconv.FormatInt(p.defineVal[t.Text], 10))
			} else {
				b.WriteString("0")
			}
			continue
		}
		if t.Kind == TokIntLit {
			b.WriteString(strconv.FormatInt(t.Value, 10))
			continue
		}
		b.WriteString(t.Text)
		b.WriteByte(' ')
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return false
	}
	node, err := expr.Parse(text)
	if err != nil {
		p.bundle.Errorf(diag.Pos{}, "invalid preprocessor condition %q: %v", text, err)
		return false
	}
	v, err := expr.Eval(node, constSyms{})
	if err != nil {
		p.bundle.Errorf(diag.Pos{}, "invalid preprocessor condition %q: %v", text, err)
		return false
	}
	return v != 0
}

// constSyms is an expr.Symbols with no symbols: by the time evalIf builds
// its expression text, every identifier has already been substituted with
// its macro value or 0, so no further lookup is needed.
type constSyms struct{}

func (constSyms) Lookup(string) (int64, bool) { return 0, false }
func (constSyms) Here() int64                 { return 0 }
