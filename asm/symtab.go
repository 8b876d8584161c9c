package asm

import (
	"sort"
	"strings"
)

// SymbolKind distinguishes how a symbol came to be defined.
type SymbolKind int

const (
	SymCodeLabel SymbolKind = iota
	SymDataLabel
	SymEquate
	SymSetVariable
	SymExternal
)

// Symbol is one entry in the assembler's symbol table.
type Symbol struct {
	Name        string
	Value       int64
	Kind        SymbolKind
	DefinedAt   string
	Relocatable bool
}

// SymbolTable holds global labels, equates and set-variables, and tracks which
// local label ("loc") is currently scoped to which preceding global label
// ("global.loc"): one flat map, namespaced by a leading scope prefix
// for locals.
type SymbolTable struct {
	globals    map[string]*Symbol
	lastGlobal string
	here       int64
	// definedThisPass tracks names bound during the current resolve
	// iteration. Labels move between iterations while sizes settle, so a
	// rebind across passes is normal; the same name bound twice within one
	// pass is the real duplicate-label error.
	definedThisPass map[string]bool
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{globals: make(map[string]*Symbol)}
}

// BeginPass starts a fresh resolve iteration: previously bound labels may
// rebind to their new addresses, and within-pass duplicates are detected
// anew.
func (t *SymbolTable) BeginPass() {
	t.definedThisPass = make(map[string]bool)
}

// qualify resolves a bare local label name (starting with '.') against the
// most recently defined global label.
func (t *SymbolTable) qualify(name string) string {
	if strings.HasPrefix(name, ".") && t.lastGlobal != "" {
		return t.lastGlobal + name
	}
	return name
}

// Define binds name (equate semantics: first bind wins, later binds for the
// same name are a duplicate-label error unless kind is SymSetVariable,
// which always rebinds).
func (t *SymbolTable) Define(name string, value int64, kind SymbolKind, definedAt string) error {
	key := strings.ToLower(t.qualify(name))
	if t.definedThisPass != nil {
		if t.definedThisPass[key] && kind != SymSetVariable {
			existing := t.globals[key]
			return &DuplicateLabelError{Name: name, FirstAt: existing.DefinedAt, SecondAt: definedAt}
		}
		t.definedThisPass[key] = true
	} else if existing, ok := t.globals[key]; ok && kind != SymSetVariable && existing.Kind != SymSetVariable {
		if existing.Value != value {
			return &DuplicateLabelError{Name: name, FirstAt: existing.DefinedAt, SecondAt: definedAt}
		}
	}
	t.globals[key] = &Symbol{Name: name, Value: value, Kind: kind, DefinedAt: definedAt, Relocatable: kind == SymCodeLabel || kind == SymDataLabel}
	if !strings.HasPrefix(name, ".") && (kind == SymCodeLabel || kind == SymDataLabel) {
		t.lastGlobal = name
	}
	return nil
}

// Lookup implements expr.Symbols.
func (t *SymbolTable) Lookup(name string) (int64, bool) {
	key := strings.ToLower(t.qualify(name))
	s, ok := t.globals[key]
	if !ok {
		return 0, false
	}
	return s.Value, true
}

// Here implements expr.Symbols.
func (t *SymbolTable) Here() int64 { return t.here }

// SetHere updates the current location counter used by '*'.
func (t *SymbolTable) SetHere(v int64) { t.here = v }

// Get returns the full Symbol record, if defined.
func (t *SymbolTable) Get(name string) (*Symbol, bool) {
	s, ok := t.globals[strings.ToLower(t.qualify(name))]
	return s, ok
}

// IsRelocatable reports whether name refers to an internal, relocatable
// code or data label (as opposed to an equate, set-variable, or external).
func (t *SymbolTable) IsRelocatable(name string) bool {
	s, ok := t.Get(name)
	return ok && s.Relocatable
}

// All returns a snapshot of every defined symbol, ordered by value then
// name, for the debug sidecar.
func (t *SymbolTable) All() []Symbol {
	out := make([]Symbol, 0, len(t.globals))
	for _, s := range t.globals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// String names a SymbolKind for listings and the debug sidecar.
func (k SymbolKind) String() string {
	switch k {
	case SymCodeLabel:
		return "code"
	case SymDataLabel:
		return "data"
	case SymEquate:
		return "equ"
	case SymSetVariable:
		return "set"
	case SymExternal:
		return "external"
	default:
		return "symbol"
	}
}

// DuplicateLabelError reports the same label defined twice with
// conflicting values.
type DuplicateLabelError struct {
	Name             string
	FirstAt, SecondAt string
}

func (e *DuplicateLabelError) Error() string {
	return "duplicate label " + e.Name + ": first defined at " + e.FirstAt + ", again at " + e.SecondAt
}
