// Package diag is the uniform diagnostic type every later phase of the
// toolchain reports through: the assembler, the C front-end, the pack
// container, and the emulator's fatal conditions all produce diag.Diagnostic
// values collected into a diag.Bundle, rather than inventing their own error
// string formats.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Pos is a source position: file, 1-based line and column, and the byte
// span it covers. Every token, AST node, instruction record, and emitted
// byte carries one.
type Pos struct {
	File   string
	Line   int
	Col    int
	Offset int
	Length int
}

// String renders a position as path:line:col.
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Less orders positions by file then line then column, for sorting a
// Bundle before rendering it to the user.
func (p Pos) Less(o Pos) bool {
	if p.File != o.File {
		return p.File < o.File
	}
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Col < o.Col
}

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "diagnostic"
	}
}

// Diagnostic is one reported issue.
type Diagnostic struct {
	Pos      Pos
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Bundle accumulates diagnostics across a phase. A phase returns a Bundle
// on failure instead of inventing a higher-level message; callers surface
// it verbatim.
type Bundle struct {
	items []Diagnostic
}

// Add appends a diagnostic.
func (b *Bundle) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Addf appends a diagnostic built from a format string.
func (b *Bundle) Addf(pos Pos, sev Severity, format string, args ...any) {
	b.Add(Diagnostic{Pos: pos, Severity: sev, Message: fmt.Sprintf(format, args...)})
}

// Errorf appends an Error-severity diagnostic.
func (b *Bundle) Errorf(pos Pos, format string, args ...any) {
	b.Addf(pos, Error, format, args...)
}

// HasErrors reports whether any accumulated diagnostic is Error severity.
func (b *Bundle) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Items returns the accumulated diagnostics, sorted by source position.
func (b *Bundle) Items() []Diagnostic {
	sorted := make([]Diagnostic, len(b.items))
	copy(sorted, b.items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos.Less(sorted[j].Pos) })
	return sorted
}

// Merge appends another bundle's diagnostics into this one.
func (b *Bundle) Merge(o *Bundle) {
	if o == nil {
		return
	}
	b.items = append(b.items, o.items...)
}

// Error implements the error interface so a *Bundle can be returned and
// compared against nil like any other error, while still being inspectable
// for its individual Diagnostic entries.
func (b *Bundle) Error() string {
	lines := make([]string, 0, len(b.items))
	for _, d := range b.Items() {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
