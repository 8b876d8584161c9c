package cc

import (
	"fmt"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
)

// lexer turns one source file's bytes into a token stream. It runs ahead of
// the preprocessor: #directives are recognised as a leading '#' punct token
// plus the directive name (an identifier, or a keyword token for #if and
// #else), left for the preprocessor pass to interpret, mirroring
// the way asm's own lexer leaves conditional-assembly directives as plain
// text for its preprocess() pass (asm/lex.go).
type lexer struct {
	src      string
	file     string
	pos      int
	line     int
	col      int
	bundle   *diag.Bundle
	atLStart bool
}

func newLexer(src, file string, bundle *diag.Bundle) *lexer {
	return &lexer{src: src, file: file, line: 1, col: 1, bundle: bundle, atLStart: true}
}

func (l *lexer) here() diag.Pos { return diag.Pos{File: l.file, Line: l.line, Col: l.col} }

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
		l.atLStart = true
	} else {
		l.col++
		if c != ' ' && c != '\t' {
			l.atLStart = false
		}
	}
	return c
}

// Tokens lexes the whole file into a flat slice ending in a TokEOF token.
// Each token's Pos carries its line, which the preprocessor uses to group
// tokens into lines and find directive lines.
func (l *lexer) Tokens() []Token {
	var toks []Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Kind == TokEOF {
			break
		}
	}
	return toks
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByteAt(1) == '*':
			l.advance()
			l.advance()
			for l.pos < len(l.src) && !(l.peekByte() == '*' && l.peekByteAt(1) == '/') {
				l.advance()
			}
			if l.pos < len(l.src) {
				l.advance()
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) next() Token {
	l.skipSpaceAndComments()
	pos := l.here()
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Pos: pos}
	}
	c := l.peekByte()

	switch {
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
			l.advance()
		}
		text := l.src[start:l.pos]
		if keywords[text] {
			return Token{Kind: TokKeyword, Text: text, Pos: pos}
		}
		return Token{Kind: TokIdent, Text: text, Pos: pos}

	case isDigit(c):
		return l.lexNumber(pos)

	case c == '\'':
		return l.lexChar(pos)

	case c == '"':
		return l.lexString(pos)

	case c == '#':
		l.advance()
		return Token{Kind: TokPunct, Text: "#", Pos: pos}

	default:
		return l.lexPunct(pos)
	}
}

func (l *lexer) lexNumber(pos diag.Pos) Token {
	start := l.pos
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && isHex(l.peekByte()) {
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	text := l.src[start:l.pos]
	v, err := parseIntLiteral(text)
	if err != nil {
		l.bundle.Errorf(pos, "invalid integer literal %q: %v", text, err)
	}
	return Token{Kind: TokIntLit, Text: text, Value: v, Pos: pos}
}

func parseIntLiteral(text string) (int64, error) {
	if len(text) > 2 && (text[1] == 'x' || text[1] == 'X') {
		var v int64
		for _, c := range text[2:] {
			v = v*16 + int64(hexVal(byte(c)))
		}
		return v, nil
	}
	var v int64
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad digit %q", c)
		}
		v = v*10 + int64(c-'0')
	}
	return v, nil
}

func (l *lexer) lexChar(pos diag.Pos) Token {
	l.advance() // opening '
	var v int64
	if l.peekByte() == '\\' {
		l.advance()
		v = int64(escapeValue(l.advance()))
	} else if l.pos < len(l.src) {
		v = int64(l.advance())
	}
	if l.peekByte() == '\'' {
		l.advance()
	} else {
		l.bundle.Errorf(pos, "unterminated character literal")
	}
	return Token{Kind: TokCharLit, Value: v, Pos: pos}
}

func (l *lexer) lexString(pos diag.Pos) Token {
	l.advance() // opening "
	var b strings.Builder
	for l.pos < len(l.src) && l.peekByte() != '"' {
		c := l.advance()
		if c == '\\' && l.pos < len(l.src) {
			b.WriteByte(escapeValue(l.advance()))
			continue
		}
		b.WriteByte(c)
	}
	if l.peekByte() == '"' {
		l.advance()
	} else {
		l.bundle.Errorf(pos, "unterminated string literal")
	}
	return Token{Kind: TokStringLit, Text: b.String(), Pos: pos}
}

func escapeValue(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\\':
		return '\\'
	case '\'':
		return '\''
	case '"':
		return '"'
	default:
		return c
	}
}

// multiCharPuncts lists the operators lexed as a single token, longest
// first so e.g. "<<=" is never split into "<<" + "=", and "<<" never into
// "<" + "<".
var multiCharPuncts = []string{
	"<<=", ">>=", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=",
	"&&", "||", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
}

func (l *lexer) lexPunct(pos diag.Pos) Token {
	rest := l.src[l.pos:]
	for _, p := range multiCharPuncts {
		if strings.HasPrefix(rest, p) {
			for range p {
				l.advance()
			}
			return Token{Kind: TokPunct, Text: p, Pos: pos}
		}
	}
	c := l.advance()
	return Token{Kind: TokPunct, Text: string(c), Pos: pos}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
