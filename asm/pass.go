package asm

import (
	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
	"github.com/halcyon6303/orgtool/isa"
)

// invertedBranch maps a conditional branch mnemonic to its logical inverse,
// used by branch relaxation's "inverted short branch over an unconditional
// jump" rewrite.
var invertedBranch = map[string]string{
	"bhi": "bls", "bls": "bhi",
	"bcc": "bcs", "bcs": "bcc",
	"bne": "beq", "beq": "bne",
	"bvc": "bvs", "bvs": "bvc",
	"bpl": "bmi", "bmi": "bpl",
	"bge": "blt", "blt": "bge",
	"bgt": "ble", "ble": "bgt",
}

// resolve runs the iterative fixed-point loop that assigns label addresses,
// decides direct-vs-extended for ambiguous operands, and relaxes
// out-of-range short branches, repeating until no instruction's size
// changes.
func (a *Assembler) resolve(nodes []*Node, base uint32) *diag.Bundle {
	// Each iteration re-reports the same issues (a duplicate label stays
	// duplicated), so only the final pass's diagnostics are returned.
	var bundle *diag.Bundle

	for iter := 0;; iter++ {
		bundle = &diag.Bundle{}
		changed := false
		pc := base
		a.syms.BeginPass()
		a.syms.SetHere(int64(pc))

		for _, n := range nodes {
			switch n.Type {
			case NodeLabel:
				kind := SymCodeLabel
				if err := a.syms.Define(n.Label, int64(pc), kind, n.Pos.String()); err != nil {
					bundle.Errorf(n.Pos, "%v", err)
				}
			case NodeDirective:
				size, err := a.directiveSize(n, pc)
				if err != nil {
					bundle.Errorf(n.Pos, "%v", err)
					continue
				}
				if n.Directive == "org" {
					v, err := a.evalDirectiveOrg(n)
					if err == nil {
						pc = uint32(v)
					}
					continue
				}
				if n.Directive == "equ" || n.Directive == "=" || n.Directive == "set" {
					a.applyEquSet(n, bundle)
					continue
				}
				pc += size
			case NodeInstruction:
				inst := n.Inst
				if inst.Deleted {
					continue
				}
				oldSize := inst.LowerSize
				size := a.sizeInstruction(inst, pc)
				if size != oldSize {
					changed = true
				}
				inst.LowerSize = size
				pc += size
			}
			a.syms.SetHere(int64(pc))
		}

		if !changed || iter > len(nodes)+8 {
			break
		}
	}
	return bundle
}

// sizeInstruction computes (and may narrow or widen) an instruction's
// addressing mode and returns its current lower-bound size. Forward
// references that are still unresolved are assumed in-range; pass 2
// (encode) reports a fatal diagnostic if a branch ultimately
// cannot be satisfied.
func (a *Assembler) sizeInstruction(inst *Instruction, pc uint32) uint32 {
	if inst.Mode == isa.ModeInherent {
		enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeInherent)
		inst.Encoding = enc
		return uint32(enc.Size())
	}

	if inst.Mode == isa.ModeRelative {
		return a.sizeBranch(inst, pc)
	}

	if inst.Mode == isa.ModeImmediate {
		enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeImmediate)
		inst.Encoding = enc
		return uint32(enc.Size())
	}

	if inst.Mode == isa.ModeIndexed {
		enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeIndexed)
		inst.Encoding = enc
		return uint32(enc.Size())
	}

	// Direct vs extended: narrow to direct only once the value resolves
	// and fits in a byte, and the mnemonic wasn't forced to extended.
	if inst.Force != ForceExtended {
		if v, err := expr.Eval(inst.OperandExpr, a.syms); err == nil && v >= 0 && v <= 255 {
			if enc, ok := isa.Lookup(inst.Mnemonic, isa.ModeDirect); ok {
				inst.Mode = isa.ModeDirect
				inst.Encoding = enc
				return uint32(enc.Size())
			}
		}
	}
	if enc, ok := isa.Lookup(inst.Mnemonic, isa.ModeExtended); ok {
		inst.Mode = isa.ModeExtended
		inst.Encoding = enc
		return uint32(enc.Size())
	}
	enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeDirect)
	inst.Mode = isa.ModeDirect
	inst.Encoding = enc
	return uint32(enc.Size())
}

func (a *Assembler) sizeBranch(inst *Instruction, pc uint32) uint32 {
	target, err := expr.Eval(inst.OperandExpr, a.syms)
	if err != nil {
		// Unresolved forward reference: assume short, in-range.
		if !inst.Relaxed {
			enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeRelative)
			inst.Encoding = enc
			return uint32(enc.Size())
		}
		return a.relaxedSize(inst)
	}

	shortSize := uint32(2)
	disp := int64(target) - int64(pc) - int64(shortSize)
	inRange := disp >= -128 && disp <= 127

	if inRange {
		if inst.Relaxed {
			inst.Relaxed = false
		}
		enc, _ := isa.Lookup(inst.Mnemonic, isa.ModeRelative)
		inst.Encoding = enc
		return uint32(enc.Size())
	}

	inst.Relaxed = true
	return a.relaxedSize(inst)
}

func (a *Assembler) relaxedSize(inst *Instruction) uint32 {
	if inst.Mnemonic == "bsr" {
		return 3 // JSR extended
	}
	if inst.Mnemonic == "bra" || inst.Mnemonic == "brn" {
		return 3 // JMP extended
	}
	return 5 // inverted short branch (2 bytes) + JMP extended (3 bytes)
}
