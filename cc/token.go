// Package cc implements the restricted-C front-end: a
// lexer/preprocessor, a recursive-descent parser producing an AST, a
// semantic checker enforcing the subset's typing rules, and a code
// generator lowering to HD6303 assembly text consumable by asm.Assemble.
// The overall shape is a hand-written lexer feeding a hand-written
// recursive descent parser, with no parser-generator dependency.
package cc

import "github.com/halcyon6303/orgtool/diag"

// TokenKind tags one lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokIntLit
	TokCharLit
	TokStringLit
	TokKeyword
	TokPunct
)

// Token is one lexical unit with its source position.
type Token struct {
	Kind  TokenKind
	Text  string
	Value int64 // TokIntLit, TokCharLit
	Pos   diag.Pos
}

// keywords is the restricted dialect's reserved word set.
var keywords = map[string]bool{
	"char": true, "unsigned": true, "int": true, "void": true,
	"struct": true, "typedef": true, "extern": true, "external": true,
	"if": true, "else": true, "while": true, "do": true, "for": true,
	"switch": true, "case": true, "default": true, "break": true,
	"continue": true, "return": true, "goto": true, "sizeof": true,
}
