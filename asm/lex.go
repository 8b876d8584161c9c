package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
)

// rawLine is one line of source after comment stripping, still carrying its
// original source position so macro expansion and conditional assembly
// don't lose diagnostics fidelity.
type rawLine struct {
	pos  diag.Pos
	text string
}

// splitLines turns a source file into comment-free, trimmed lines. ';'
// starts a comment to end of line; '*' at column 1 is the legacy
// full-line-comment form.
func splitLines(src, filename string) []rawLine {
	raw := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	lines := make([]rawLine, 0, len(raw))
	for i, l := range raw {
		if strings.HasPrefix(l, "*") {
			continue
		}
		if idx := strings.IndexByte(l, ';'); idx != -1 {
			// A ';' inside a quoted string is not a comment start.
			if q := findUnquoted(l, ';'); q != -1 {
				l = l[:q]
			}
		}
		l = strings.TrimRight(l, " \t")
		lines = append(lines, rawLine{pos: diag.Pos{File: filename, Line: i + 1, Col: 1}, text: l})
	}
	return lines
}

// findUnquoted returns the index of the first occurrence of b outside of a
// single- or double-quoted run, or -1.
func findUnquoted(s string, b byte) int {
	inQ := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQ != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inQ {
				inQ = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQ = c
			continue
		}
		if c == b {
			return i
		}
	}
	return -1
}

// maxMacroDepth bounds recursive macro expansion; exceeding it is a fatal
// diagnostic rather than a stack overflow.
const maxMacroDepth = 64

type macroDef struct {
	name string
	body []rawLine
}

// preprocess runs macro expansion, conditional assembly, and source/binary
// inclusion over the raw line stream, sharing the expr package's evaluator
// for #IF conditions the same way the C preprocessor does.
func preprocess(lines []rawLine, defs map[string]int64, include IncludeFunc) ([]rawLine, *diag.Bundle) {
	bundle := &diag.Bundle{}
	macros := map[string]*macroDef{}

	out, ok := expandConditionalsAndMacros(lines, defs, macros, include, 0, bundle)
	if !ok {
		return nil, bundle
	}
	return out, bundle
}

// IncludeFunc resolves an INCLUDE or INCBIN filename to its contents.
type IncludeFunc func(name string) ([]byte, bool)

// expandConditionalsAndMacros performs a single linear scan that resolves
// #IFDEF/#IFNDEF/#IF/#ELIF/#ELSE/#ENDIF blocks and MACRO/ENDM definitions
// and invocations. depth counts macro-expansion nesting for the recursion
// guard.
func expandConditionalsAndMacros(lines []rawLine, defs map[string]int64, macros map[string]*macroDef, include IncludeFunc, depth int, bundle *diag.Bundle) ([]rawLine, bool) {
	var out []rawLine
	type condFrame struct {
		taken    bool // this branch (or an earlier one) already matched
		active   bool // currently emitting
		sawElse  bool
	}
	var stack []condFrame
	active := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}
		return true
	}

	i := 0
	for i < len(lines) {
		ln := lines[i]
		fields := strings.Fields(ln.text)
		word := ""
		if len(fields) > 0 {
			word = strings.ToLower(fields[0])
		}

		switch word {
		case "#ifdef", "#ifndef":
			name := ""
			if len(fields) > 1 {
				name = strings.ToLower(fields[1])
			}
			_, defined := defs[name]
			cond := defined
			if word == "#ifndef" {
				cond = !defined
			}
			stack = append(stack, condFrame{taken: cond, active: cond && active()})
			i++
			continue
		case "#if":
			expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ln.text), fields[0]))
			v, err := evalCondition(expr, defs)
			if err != nil {
				bundle.Errorf(ln.pos, "invalid #if condition: %v", err)
				v = false
			}
			stack = append(stack, condFrame{taken: v, active: v && active()})
			i++
			continue
		case "#elif":
			if len(stack) == 0 {
				bundle.Errorf(ln.pos, "#elif without matching #if")
				i++
				continue
			}
			top := &stack[len(stack)-1]
			if top.taken {
				top.active = false
			} else {
				exprText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ln.text), fields[0]))
				v, err := evalCondition(exprText, defs)
				if err != nil {
					bundle.Errorf(ln.pos, "invalid #elif condition: %v", err)
					v = false
				}
				top.taken = v
				top.active = v
			}
			i++
			continue
		case "#else":
			if len(stack) == 0 {
				bundle.Errorf(ln.pos, "#else without matching #if")
				i++
				continue
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				bundle.Errorf(ln.pos, "duplicate #else")
			}
			top.sawElse = true
			top.active = !top.taken
			top.taken = true
			i++
			continue
		case "#endif":
			if len(stack) == 0 {
				bundle.Errorf(ln.pos, "#endif without matching #if")
				i++
				continue
			}
			stack = stack[:len(stack)-1]
			i++
			continue
		}

		if !active() {
			i++
			continue
		}

		// Source and binary inclusion, expanded in place so the included
		// lines see the same macro and conditional state.
		if word == "include" || word == "incbin" {
			name := includeArg(ln.text, fields)
			if name == "" {
				bundle.Errorf(ln.pos, "%s requires a filename", word)
				i++
				continue
			}
			if include == nil {
				bundle.Errorf(ln.pos, "%s %q: no include resolver configured", word, name)
				i++
				continue
			}
			data, ok := include(name)
			if !ok {
				bundle.Errorf(ln.pos, "%s: file not found: %s", word, name)
				i++
				continue
			}
			if word == "include" {
				if depth+1 > maxMacroDepth {
					bundle.Errorf(ln.pos, "include nesting too deep at %s", name)
					i++
					continue
				}
				sub, ok := expandConditionalsAndMacros(splitLines(string(data), name), defs, macros, include, depth+1, bundle)
				if !ok {
					return nil, false
				}
				out = append(out, sub...)
			} else {
				out = append(out, incbinLines(data, ln.pos)...)
			}
			i++
			continue
		}

		// MACRO definition: "name MACRO" (label-style) per HD6303 convention.
		if len(fields) >= 2 && strings.EqualFold(fields[1], "macro") {
			name := strings.ToLower(fields[0])
			var body []rawLine
			i++
			for i < len(lines) {
				bf := strings.Fields(lines[i].text)
				if len(bf) >= 1 && strings.EqualFold(bf[0], "endm") {
					i++
					break
				}
				body = append(body, lines[i])
				i++
			}
			macros[name] = &macroDef{name: name, body: body}
			continue
		}

		// Macro invocation: "name arg1,arg2" where name is a known macro.
		if len(fields) >= 1 {
			name := strings.ToLower(fields[0])
			if m, ok := macros[name]; ok {
				if depth+1 > maxMacroDepth {
					bundle.Errorf(ln.pos, "macro recursion depth exceeded expanding %s", name)
					i++
					continue
				}
				argsText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ln.text), fields[0]))
				args := splitTopLevelCommas(argsText)
				substituted := make([]rawLine, len(m.body))
				for j, b := range m.body {
					substituted[j] = rawLine{pos: ln.pos, text: substituteParams(b.text, args)}
				}
				expanded, ok := expandConditionalsAndMacros(substituted, defs, macros, include, depth+1, bundle)
				if !ok {
					return nil, false
				}
				out = append(out, expanded...)
				i++
				continue
			}
		}

		out = append(out, ln)
		i++
	}

	if len(stack) != 0 {
		bundle.Errorf(diag.Pos{}, "unterminated conditional block (#if/#ifdef without matching #endif)")
		return out, false
	}
	return out, true
}

// substituteParams replaces \1..\9 with the corresponding macro argument.
func substituteParams(text string, args []string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] >= '1' && text[i+1] <= '9' {
			idx := int(text[i+1] - '1')
			if idx < len(args) {
				b.WriteString(args[idx])
			}
			i++
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if last <= len(s) {
		parts = append(parts, strings.TrimSpace(s[last:]))
	}
	return parts
}

// evalCondition evaluates a #if/#elif expression against the current
// defines table through the shared expr evaluator: a bare identifier
// yields its defined value, and an undefined one is an error. A
// defined(X) form is not recognised.
func evalCondition(text string, defs map[string]int64) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("empty condition")
	}
	v, err := strconv.ParseInt(text, 0, 64)
	if err == nil {
		return v != 0, nil
	}
	n, perr := parseWithDefs(text, defs)
	if perr != nil {
		return false, perr
	}
	return n != 0, nil
}

// includeArg extracts the (optionally quoted) filename operand of an
// INCLUDE/INCBIN line.
func includeArg(text string, fields []string) string {
	if len(fields) < 2 {
		return ""
	}
	arg := strings.TrimSpace(text[strings.Index(text, fields[0])+len(fields[0]):])
	arg = strings.Trim(arg, "\"'")
	return arg
}

// incbinLines renders raw file bytes as FCB lines, eight bytes per line.
func incbinLines(data []byte, pos diag.Pos) []rawLine {
	var out []rawLine
	for start := 0; start < len(data); start += 8 {
		end := start + 8
		if end > len(data) {
			end = len(data)
		}
		var b strings.Builder
		b.WriteString("\tfcb ")
		for i := start; i < end; i++ {
			if i > start {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%02X", data[i])
		}
		out = append(out, rawLine{pos: pos, text: b.String()})
	}
	return out
}
