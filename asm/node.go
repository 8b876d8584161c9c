package asm

import (
	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
	"github.com/halcyon6303/orgtool/isa"
)

// NodeType tags a parsed source line's variant.
type NodeType int

const (
	NodeLabel NodeType = iota
	NodeInstruction
	NodeDirective
)

// RelocKind classifies what, if anything, an instruction's encoded operand
// needs patched at relocation time.
type RelocKind int

const (
	RelocNone RelocKind = iota
	// RelocAbsolute marks a cell holding an absolute address of an
	// internal label; it belongs in the self-relocation fixup table.
	RelocAbsolute
	// RelocExternal marks a reference to a fixed external (ROM) service
	// address; never placed in the fixup table.
	RelocExternal
)

// ForceMode records an explicit < or > addressing-mode prefix.
type ForceMode int

const (
	ForceNone ForceMode = iota
	ForceDirect
	ForceExtended
)

// Instruction is the assembler's internal instruction record: the peephole optimizer and the relocator both
// operate on a sequence of these rather than on text.
type Instruction struct {
	Pos         diag.Pos
	Label       string // non-empty if this source line also defined a label
	Mnemonic    string
	OperandExpr *expr.Node
	// ImmExpr holds the leading immediate-mask operand for the
	// HD6303 memory-immediate bit ops (AIM/OIM/EIM/TIM); OperandExpr then
	// holds the address/offset operand.
	ImmExpr     *expr.Node
	OperandRaw  string
	Force       ForceMode
	Mode        isa.Mode
	Encoding    isa.Encoding
	LowerSize   uint32 // pass-1 lower bound
	FinalSize   uint32 // pass-2 final size; must equal len(Bytes)
	Bytes       []byte
	Reloc       RelocKind
	// Relaxed marks a branch rewritten to a long form by branch
	// relaxation.
	Relaxed bool
	// Deleted is set by the peephole optimizer; deleted instructions
	// contribute no bytes and no source position to the output.
	Deleted bool
}

// Node is one parsed source line.
type Node struct {
	Type      NodeType
	Pos       diag.Pos
	Label     string   // NodeLabel
	Directive string   // NodeDirective: directive name, lowercased, no leading dot
	Args      []string // NodeDirective: raw argument text, comma-split
	Inst      *Instruction
}
