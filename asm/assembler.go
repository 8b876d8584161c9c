// Package asm implements the HD6303 macro assembler: lexing and macro/
// conditional preprocessing, a two-pass node-based resolver with branch
// relaxation, byte-level pass-2 encoding, the peephole optimiser's input
// construction, self-relocation, and the three mutually exclusive output
// forms (object/raw/procedure).
package asm

import (
	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/isa"
	"github.com/halcyon6303/orgtool/peephole"
)

// Assembler holds the state for one assembly run: its symbol table and
// whether the build is relocatable.
type Assembler struct {
	syms        *SymbolTable
	relocatable bool
}

// New creates an Assembler with an empty symbol table.
func New() *Assembler {
	return &Assembler{syms: NewSymbolTable()}
}

// Symbols exposes the assembler's symbol table, e.g. so a caller can seed
// predefined equates shared across a multi-file build.
func (a *Assembler) Symbols() *SymbolTable { return a.syms }

// Options configures one Assemble invocation.
type Options struct {
	// Filename is used only for diagnostics positions.
	Filename string
	// Base is the load address code and data are linked at.
	Base uint32
	// Defines seeds preprocessor #ifdef/#if state and is visible to EQU
	// expressions that reference a predefined name.
	Defines map[string]int64
	// Form selects the output wrapping. Defaults to
	// FormRaw when unset.
	Form OutputForm
	// Relocatable requests the self-relocation stub and fixup table;
	// only meaningful for FormObject and FormProcedure.
	Relocatable bool
	// EntrySymbol, if set, must name a defined label; its resolved address
	// becomes the object's entry point (the END directive's optional
	// argument does the same when present).
	EntrySymbol string
	// ProcedureName is the up-to-8-character name stamped into procedure
	// form output (ignored for other forms).
	ProcedureName string
	// Include resolves INCLUDE/INCBIN filenames; nil disables both
	// directives.
	Include IncludeFunc
}

// Assemble runs the full pipeline: preprocess, parse, resolve, encode,
// peephole-optimise, relocate, and wrap into the requested output form.
func Assemble(src string, opts Options) (*Object, *diag.Bundle) {
	a := New()
	a.relocatable = opts.Relocatable
	for name, v := range opts.Defines {
		a.syms.Define(name, v, SymEquate, "predefined")
	}

	rawLines := splitLines(src, opts.Filename)
	ppLines, bundle := preprocess(rawLines, opts.Defines, opts.Include)
	if bundle.HasErrors() {
		return nil, bundle
	}

	nodes, perr := a.parseSource(ppLines)
	if perr != nil {
		return nil, perr
	}

	resolveBundle := a.resolve(nodes, opts.Base)
	bundle.Merge(resolveBundle)
	if bundle.HasErrors() {
		return nil, bundle
	}

	encBundle := a.encodeAll(nodes, opts.Base)
	bundle.Merge(encBundle)
	if bundle.HasErrors() {
		return nil, bundle
	}

	if peephole.Apply(wrapNodes(nodes)) {
		// Deletions and compare-to-test rewrites shrink instructions, which
		// shifts every later address; re-resolve and re-encode so label
		// values and displacements match the surviving stream.
		bundle.Merge(a.resolve(nodes, opts.Base))
		if bundle.HasErrors() {
			return nil, bundle
		}
		bundle.Merge(a.encodeAll(nodes, opts.Base))
		if bundle.HasErrors() {
			return nil, bundle
		}
	}

	code, fixups, lines, entry, endBundle := a.link(nodes, opts)
	bundle.Merge(endBundle)
	if bundle.HasErrors() {
		return nil, bundle
	}

	obj, err := buildObject(code, fixups, entry, opts)
	if err != nil {
		bundle.Errorf(diag.Pos{File: opts.Filename}, "%v", err)
		return nil, bundle
	}
	obj.Symbols = a.syms.All()
	obj.SourceLines = lines
	return obj, bundle
}

// link walks the resolved, encoded, peephole-optimised node list, producing
// the final concatenated byte stream plus the offsets (within that stream)
// of every cell requiring relocation.
func (a *Assembler) link(nodes []*Node, opts Options) ([]byte, []uint32, []SourceLine, int64, *diag.Bundle) {
	bundle := &diag.Bundle{}
	var code []byte
	var fixups []uint32
	var lines []SourceLine
	entry := int64(-1)

	pc := int64(opts.Base)
	a.syms.SetHere(pc)
	for _, n := range nodes {
		switch n.Type {
		case NodeLabel:
			if len(n.Label) > 0 && n.Label[0] != '.' {
				a.syms.lastGlobal = n.Label
			}
		case NodeInstruction:
			inst := n.Inst
			if inst.Deleted {
				continue
			}
			if inst.Reloc == RelocAbsolute {
				// The absolute operand cell sits in the last two encoded
				// bytes of the instruction (every addressing mode that
				// carries an absolute internal reference is 16-bit
				// extended/immediate-of-address form).
				fixups = append(fixups, uint32(len(code))+uint32(len(inst.Bytes))-2)
			}
			lines = append(lines, SourceLine{Address: uint32(pc), Pos: inst.Pos})
			code = append(code, inst.Bytes...)
			pc += int64(len(inst.Bytes))
		case NodeDirective:
			if n.Directive == "end" && len(n.Args) == 1 {
				if v, err := a.evalArg(n.Args[0]); err == nil {
					entry = v
				}
			}
			b, err := a.encodeDirective(n)
			if err != nil {
				bundle.Errorf(n.Pos, "%v", err)
				continue
			}
			code = append(code, b...)
			pc += int64(len(b))
		}
		a.syms.SetHere(pc)
	}

	if opts.EntrySymbol != "" {
		if v, ok := a.syms.Lookup(opts.EntrySymbol); ok {
			entry = v
		} else {
			bundle.Errorf(diag.Pos{File: opts.Filename}, "entry symbol %q is undefined", opts.EntrySymbol)
		}
	}

	return code, fixups, lines, entry, bundle
}

// wrapNodes adapts the asm package's own Node list to the
// peephole.InstructionStream interface without peephole needing to import
// asm's concrete Node type.
func wrapNodes(nodes []*Node) peephole.InstructionStream {
	return &nodeStream{nodes: nodes}
}

type nodeStream struct{ nodes []*Node }

func (s *nodeStream) Len() int { return len(s.nodes) }

func (s *nodeStream) At(i int) peephole.Entry {
	n := s.nodes[i]
	switch n.Type {
	case NodeLabel:
		return peephole.Entry{IsLabel: true}
	case NodeInstruction:
		if n.Inst.Deleted {
			return peephole.Entry{}
		}
		return peephole.Entry{
			IsInstruction: true,
			Mnemonic:      n.Inst.Mnemonic,
			Bytes:         n.Inst.Bytes,
			Unconditional: isUnconditionalControl(n.Inst.Mnemonic),
		}
	default:
		return peephole.Entry{}
	}
}

func (s *nodeStream) Delete(i int) { s.nodes[i].Inst.Deleted = true }

// Replace rewrites the node to match its shorter encoding, so the
// re-resolve/re-encode pass that follows peephole application regenerates
// the same bytes instead of undoing the rewrite.
func (s *nodeStream) Replace(i int, bytes []byte) {
	inst := s.nodes[i].Inst
	if enc, ok := isa.Decode(bytes[0]); ok && enc.Size() == len(bytes) {
		inst.Mnemonic = enc.Mnemonic
		inst.Mode = enc.Mode
		inst.Encoding = enc
		inst.OperandExpr = nil
		inst.ImmExpr = nil
	}
	inst.Bytes = bytes
	inst.FinalSize = uint32(len(bytes))
}

func isUnconditionalControl(mnemonic string) bool {
	switch mnemonic {
	case "bra", "jmp", "rts", "rti":
		return true
	default:
		return false
	}
}
