package asm

import (
	"fmt"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/expr"
	"github.com/halcyon6303/orgtool/isa"
)

var directiveNames = map[string]bool{
	"org": true, "equ": true, "=": true, "set": true,
	"fcb": true, "db": true, "fcc": true, "fdb": true, "dw": true,
	"rmb": true, "ds": true, "fill": true, "align": true,
	"include": true, "incbin": true, "end": true,
}

// bitOpMnemonics take an immediate mask plus an address operand:
// "AIM #mask,addr" or "AIM #mask,offset,X".
var bitOpMnemonics = map[string]bool{"aim": true, "oim": true, "eim": true, "tim": true}

// parseSource turns preprocessed lines into a flat node list.
func (a *Assembler) parseSource(lines []rawLine) ([]*Node, *diag.Bundle) {
	bundle := &diag.Bundle{}
	var nodes []*Node

	for _, ln := range lines {
		text := ln.text
		if strings.TrimSpace(text) == "" {
			continue
		}

		label := ""
		if idx := strings.IndexByte(text, ':'); idx != -1 && !strings.ContainsAny(text[:idx], " \t") {
			label = text[:idx]
			text = strings.TrimSpace(text[idx+1:])
		} else if len(text) > 0 && text[0] != ' ' && text[0] != '\t' {
			// Label without a colon: the first whitespace-delimited word of a
			// column-1 line, when it is not itself a known mnemonic or
			// directive. A line may be a bare label alone.
			fields := strings.Fields(text)
			cand := strings.ToLower(strings.TrimSuffix(fields[0], dotSuffix(fields[0])))
			if !isa.Known(cand) && !directiveNames[strings.TrimPrefix(cand, "#")] {
				label = fields[0]
				text = strings.TrimSpace(text[len(fields[0]):])
			}
		}

		text = strings.TrimSpace(text)

		mnemonic, operandStr := splitMnemonic(text)
		lower := strings.ToLower(mnemonic)
		bare := strings.TrimPrefix(lower, "#")
		bareNoDot, sizeSuffix := splitDotSuffix(bare)
		isEquLike := bareNoDot == "equ" || bareNoDot == "=" || bareNoDot == "set"

		// An EQU/SET label binds to the directive's value, not the current
		// location, so it rides on the directive node instead of becoming a
		// location label.
		if label != "" && !isEquLike {
			nodes = append(nodes, &Node{Type: NodeLabel, Pos: ln.pos, Label: label})
		}

		if text == "" {
			continue
		}

		if directiveNames[bareNoDot] || directiveNames[bare] {
			dir := bareNoDot
			if sizeSuffix != "" {
				dir = bareNoDot + "." + sizeSuffix
			}
			args := splitTopLevelCommas(operandStr)
			if dir == "fcc" {
				// A quoted string may contain commas and significant
				// whitespace; FCC takes its operand verbatim.
				args = []string{operandStr}
			}
			node := &Node{Type: NodeDirective, Pos: ln.pos, Directive: dir, Args: args}
			if isEquLike {
				node.Label = label
			}
			nodes = append(nodes, node)
			continue
		}

		inst, err := a.parseInstruction(lower, operandStr, ln.pos)
		if err != nil {
			bundle.Errorf(ln.pos, "%v", err)
			continue
		}
		nodes = append(nodes, &Node{Type: NodeInstruction, Pos: ln.pos, Inst: inst})
	}

	if bundle.HasErrors() {
		return nodes, bundle
	}
	return nodes, nil
}

func dotSuffix(s string) string {
	if i := strings.IndexByte(s, '.'); i != -1 {
		return s[i:]
	}
	return ""
}

func splitDotSuffix(s string) (base, suffix string) {
	if i := strings.IndexByte(s, '.'); i != -1 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func splitMnemonic(line string) (mnemonic, operand string) {
	i := strings.IndexAny(line, " \t")
	if i == -1 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

// parseInstruction builds an Instruction record from a mnemonic and its raw
// operand text, determining the addressing-mode hint. The concrete Mode/Encoding is finalised during
// the two-pass resolution once label values and branch displacements are
// known.
func (a *Assembler) parseInstruction(mnemonic, operand string, pos diag.Pos) (*Instruction, error) {
	if !isa.Known(mnemonic) {
		return nil, fmt.Errorf("unknown mnemonic: %s", mnemonic)
	}
	inst := &Instruction{Pos: pos, Mnemonic: mnemonic, OperandRaw: operand}

	modes := isa.Modes(mnemonic)
	_, inherentOnly := modes[isa.ModeInherent]
	if inherentOnly && len(modes) == 1 {
		inst.Mode = isa.ModeInherent
		return inst, nil
	}

	if operand == "" {
		return nil, fmt.Errorf("%s requires an operand", mnemonic)
	}

	if bitOpMnemonics[mnemonic] {
		return a.parseBitOpOperand(inst, operand)
	}

	if _, ok := modes[isa.ModeRelative]; ok {
		n, err := expr.Parse(operand)
		if err != nil {
			return nil, fmt.Errorf("%s: bad operand %q: %w", mnemonic, operand, err)
		}
		inst.OperandExpr = n
		inst.Mode = isa.ModeRelative
		return inst, nil
	}

	return a.parsePlainOperand(inst, modes, operand)
}

func (a *Assembler) parseBitOpOperand(inst *Instruction, operand string) (*Instruction, error) {
	parts := splitTopLevelCommas(operand)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%s requires an immediate mask and an address operand", inst.Mnemonic)
	}
	immText := strings.TrimPrefix(strings.TrimSpace(parts[0]), "#")
	immExpr, err := expr.Parse(immText)
	if err != nil {
		return nil, fmt.Errorf("%s: bad immediate %q: %w", inst.Mnemonic, parts[0], err)
	}
	inst.ImmExpr = immExpr

	rest := strings.Join(parts[1:], ",")
	rest = strings.TrimSpace(rest)
	if strings.HasSuffix(strings.ToLower(rest), ",x") {
		addrText := strings.TrimSpace(rest[:len(rest)-2])
		n, err := expr.Parse(addrText)
		if err != nil {
			return nil, fmt.Errorf("%s: bad indexed offset %q: %w", inst.Mnemonic, addrText, err)
		}
		inst.OperandExpr = n
		inst.Mode = isa.ModeIndexed
		return inst, nil
	}
	n, err := expr.Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("%s: bad address %q: %w", inst.Mnemonic, rest, err)
	}
	inst.OperandExpr = n
	inst.Mode = isa.ModeDirect // the bit ops have no extended form; an address above $FF is rejected when encoded
	return inst, nil
}

func (a *Assembler) parsePlainOperand(inst *Instruction, modes map[isa.Mode]isa.Encoding, operand string) (*Instruction, error) {
	if strings.HasPrefix(operand, "#") {
		n, err := expr.Parse(operand[1:])
		if err != nil {
			return nil, fmt.Errorf("%s: bad immediate %q: %w", inst.Mnemonic, operand, err)
		}
		if _, ok := modes[isa.ModeImmediate]; !ok {
			return nil, fmt.Errorf("%s does not accept immediate addressing", inst.Mnemonic)
		}
		inst.OperandExpr = n
		inst.Mode = isa.ModeImmediate
		return inst, nil
	}

	force := ForceNone
	body := operand
	if strings.HasPrefix(body, "<") {
		force = ForceDirect
		body = body[1:]
	} else if strings.HasPrefix(body, ">") {
		force = ForceExtended
		body = body[1:]
	}

	if strings.HasSuffix(strings.ToLower(body), ",x") {
		addrText := strings.TrimSpace(body[:len(body)-2])
		n, err := expr.Parse(addrText)
		if err != nil {
			return nil, fmt.Errorf("%s: bad indexed offset %q: %w", inst.Mnemonic, addrText, err)
		}
		if _, ok := modes[isa.ModeIndexed]; !ok {
			return nil, fmt.Errorf("%s does not accept indexed addressing", inst.Mnemonic)
		}
		inst.OperandExpr = n
		inst.Mode = isa.ModeIndexed
		return inst, nil
	}

	n, err := expr.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: bad operand %q: %w", inst.Mnemonic, operand, err)
	}
	inst.OperandExpr = n
	inst.Force = force

	_, hasDirect := modes[isa.ModeDirect]
	_, hasExtended := modes[isa.ModeExtended]
	switch {
	case force == ForceDirect && hasDirect:
		inst.Mode = isa.ModeDirect
	case force == ForceExtended && hasExtended:
		inst.Mode = isa.ModeExtended
	case hasDirect && hasExtended:
		// Resolved in the sizing pass once the value (or a forward
		// label's eventual value) is known.
		inst.Mode = isa.ModeDirect
	case hasExtended:
		inst.Mode = isa.ModeExtended
	case hasDirect:
		inst.Mode = isa.ModeDirect
	default:
		return nil, fmt.Errorf("%s has no direct/extended addressing form", inst.Mnemonic)
	}
	return inst, nil
}
