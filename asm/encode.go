package asm

import (
	"fmt"

	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
	"github.com/halcyon6303/orgtool/isa"
)

// encodeAll runs pass 2: it walks the now-sized node list with a fresh
// location counter (addresses are now final after resolve) and fills in
// every instruction's Bytes, FinalSize, and Reloc classification.
func (a *Assembler) encodeAll(nodes []*Node, base uint32) *diag.Bundle {
	bundle := &diag.Bundle{}
	pc := base
	for _, n := range nodes {
		switch n.Type {
		case NodeLabel:
			// Re-enter each global label's scope so a local label reference
			// resolves against its own preceding global, as in resolve.
			if len(n.Label) > 0 && n.Label[0] != '.' {
				a.syms.lastGlobal = n.Label
			}
		case NodeDirective:
			if n.Directive == "org" {
				if v, err := a.evalDirectiveOrg(n); err == nil {
					pc = uint32(v)
				}
				continue
			}
			if n.Directive == "equ" || n.Directive == "=" || n.Directive == "set" {
				continue
			}
			size, err := a.directiveSize(n, pc)
			if err == nil {
				pc += size
			}
		case NodeInstruction:
			inst := n.Inst
			if inst.Deleted {
				continue
			}
			if err := a.encodeInstruction(inst, pc); err != nil {
				bundle.Errorf(inst.Pos, "%v", err)
				continue
			}
			inst.FinalSize = uint32(len(inst.Bytes))
			pc += inst.FinalSize
		}
	}
	return bundle
}

// encodeInstruction emits one instruction's final bytes and classifies its
// relocation requirement.
func (a *Assembler) encodeInstruction(inst *Instruction, pc uint32) error {
	switch inst.Mode {
	case isa.ModeInherent:
		inst.Bytes = []byte{inst.Encoding.Opcode}
		return nil
	case isa.ModeRelative:
		return a.encodeBranch(inst, pc)
	case isa.ModeImmediate:
		return a.encodeImmediate(inst)
	case isa.ModeDirect:
		return a.encodeDirect(inst)
	case isa.ModeExtended:
		return a.encodeExtended(inst)
	case isa.ModeIndexed:
		return a.encodeIndexed(inst)
	default:
		return fmt.Errorf("%s: unresolved addressing mode", inst.Mnemonic)
	}
}

func (a *Assembler) encodeImmediate(inst *Instruction) error {
	v, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	if inst.Encoding.OperandSize == 1 {
		inst.Bytes = []byte{inst.Encoding.Opcode, byte(v)}
		return nil
	}
	inst.Bytes = []byte{inst.Encoding.Opcode, byte(v >> 8), byte(v)}
	if refersToInternalLabel(inst.OperandExpr, a.syms) {
		inst.Reloc = RelocAbsolute
	} else if refersToExternalLabel(inst.OperandExpr, a.syms) {
		inst.Reloc = RelocExternal
	}
	return nil
}

func (a *Assembler) encodeDirect(inst *Instruction) error {
	if inst.ImmExpr != nil {
		return a.encodeBitOp(inst, isa.ModeDirect)
	}
	v, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	if v < 0 || v > 255 {
		return fmt.Errorf("%s: direct-mode operand %d out of zero-page range", inst.Mnemonic, v)
	}
	inst.Bytes = []byte{inst.Encoding.Opcode, byte(v)}
	if a.relocatable && inst.Force == ForceDirect && refersToInternalLabel(inst.OperandExpr, a.syms) {
		return fmt.Errorf("%s: forced direct-mode operand names an internal label; this breaks under self-relocation", inst.Mnemonic)
	}
	return nil
}

func (a *Assembler) encodeExtended(inst *Instruction) error {
	v, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	inst.Bytes = []byte{inst.Encoding.Opcode, byte(v >> 8), byte(v)}
	if refersToInternalLabel(inst.OperandExpr, a.syms) {
		inst.Reloc = RelocAbsolute
	} else if refersToExternalLabel(inst.OperandExpr, a.syms) {
		inst.Reloc = RelocExternal
	}
	return nil
}

func (a *Assembler) encodeIndexed(inst *Instruction) error {
	if inst.ImmExpr != nil {
		return a.encodeBitOp(inst, isa.ModeIndexed)
	}
	v, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	if v < 0 || v > 255 {
		return fmt.Errorf("%s: indexed offset %d out of 0..255 range", inst.Mnemonic, v)
	}
	inst.Bytes = []byte{inst.Encoding.Opcode, byte(v)}
	return nil
}

func (a *Assembler) encodeBitOp(inst *Instruction, mode isa.Mode) error {
	enc, ok := isa.Lookup(inst.Mnemonic, mode)
	if !ok {
		return fmt.Errorf("%s: no %s encoding", inst.Mnemonic, mode)
	}
	inst.Encoding = enc
	mask, err := expr.Eval(inst.ImmExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	addr, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}
	if addr < 0 || addr > 255 {
		return fmt.Errorf("%s: address/offset %d out of 0..255 range", inst.Mnemonic, addr)
	}
	inst.Bytes = []byte{enc.Opcode, byte(mask), byte(addr)}
	return nil
}

// encodeBranch emits a short branch, or its relaxed long form; the
// relaxed forms carry an absolute-address cell that
// does belong in the self-relocation fixup table even though a plain short
// branch's PC-relative displacement never does.
func (a *Assembler) encodeBranch(inst *Instruction, pc uint32) error {
	target, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Mnemonic, err)
	}

	if !inst.Relaxed {
		disp := target - int64(pc) - 2
		if disp < -128 || disp > 127 {
			return fmt.Errorf("%s: branch target out of range even after relaxation", inst.Mnemonic)
		}
		enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeRelative)
		inst.Encoding = enc
		inst.Bytes = []byte{enc.Opcode, byte(int8(disp))}
		return nil
	}

	if inst.Mnemonic == "bsr" {
		enc, _ := isa.Lookup("jsr", isa.ModeExtended)
		inst.Bytes = []byte{enc.Opcode, byte(target >> 8), byte(target)}
		inst.Reloc = RelocAbsolute
		return nil
	}
	if inst.Mnemonic == "bra" || inst.Mnemonic == "brn" {
		enc, _ := isa.Lookup("jmp", isa.ModeExtended)
		inst.Bytes = []byte{enc.Opcode, byte(target >> 8), byte(target)}
		inst.Reloc = RelocAbsolute
		return nil
	}

	invMn, ok := invertedBranch[inst.Mnemonic]
	if !ok {
		return fmt.Errorf("%s: no inverted form for relaxation", inst.Mnemonic)
	}
	invEnc, _ := isa.Lookup(invMn, isa.ModeRelative)
	jmpEnc, _ := isa.Lookup("jmp", isa.ModeExtended)
	inst.Bytes = []byte{
		invEnc.Opcode, 3, // skip over the 3-byte JMP extended below
		jmpEnc.Opcode, byte(target >> 8), byte(target),
	}
	inst.Reloc = RelocAbsolute
	return nil
}

// refersToInternalLabel reports whether n contains a symbol reference to a
// defined, relocatable (code/data) label.
func refersToInternalLabel(n *expr.Node, syms *SymbolTable) bool {
	return walkSymbols(n, func(name string) bool { return syms.IsRelocatable(name) })
}

// refersToExternalLabel reports whether n contains a symbol reference
// declared external (a fixed ROM service address).
func refersToExternalLabel(n *expr.Node, syms *SymbolTable) bool {
	return walkSymbols(n, func(name string) bool {
		s, ok := syms.Get(name)
		return ok && s.Kind == SymExternal
	})
}

func walkSymbols(n *expr.Node, pred func(name string) bool) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case expr.KindSymbol:
		return pred(n.Name)
	case expr.KindUnary:
		return walkSymbols(n.L, pred)
	case expr.KindBinary:
		return walkSymbols(n.L, pred) || walkSymbols(n.R, pred)
	default:
		return false
	}
}
