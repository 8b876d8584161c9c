package asm

import (
	"fmt"
	"strings"

	"github.com/halcyon6303/orgtool/isa"
)

// DisasmLine is one decoded instruction. The disassembler lives inside
// asm rather than a separate package because it shares the opcode table
// the encoder is built on.
type DisasmLine struct {
	Address uint32
	Opcode  byte
	Bytes   []byte
	Text    string // "mnemonic operand" ready for re-assembly
	Size    uint32
}

// Disassemble performs a linear sweep over code starting at base, decoding
// one instruction per position. It is used both for the listing output and
// for round-trip checks (assemble -> disassemble -> assemble).
func Disassemble(code []byte, base uint32) ([]DisasmLine, error) {
	var lines []DisasmLine
	pc := 0
	for pc < len(code) {
		enc, ok := isa.Decode(code[pc])
		if !ok {
			return lines, fmt.Errorf("illegal opcode %#02x at offset %d", code[pc], pc)
		}
		size := enc.Size()
		if pc+size > len(code) {
			return lines, fmt.Errorf("truncated instruction %s at offset %d", enc.Mnemonic, pc)
		}
		text, err := disasmOperand(enc, code[pc:pc+size], base+uint32(pc))
		if err != nil {
			return lines, err
		}
		lines = append(lines, DisasmLine{
			Address: base + uint32(pc),
			Opcode:  code[pc],
			Bytes:   append([]byte(nil), code[pc:pc+size]...),
			Text:    text,
			Size:    uint32(size),
		})
		pc += size
	}
	return lines, nil
}

// disasmOperand renders one decoded instruction's text form, re-deriving
// the exact operand syntax the lexer/parser would accept for the same
// bytes, so Disassemble's output can be fed straight back into Assemble.
func disasmOperand(enc isa.Encoding, bytes []byte, addr uint32) (string, error) {
	mn := enc.Mnemonic
	switch enc.Mode {
	case isa.ModeInherent:
		return mn, nil
	case isa.ModeImmediate:
		if enc.OperandSize == 1 {
			return fmt.Sprintf("%s #$%02x", mn, bytes[1]), nil
		}
		return fmt.Sprintf("%s #$%02x%02x", mn, bytes[1], bytes[2]), nil
	case isa.ModeDirect:
		if enc.ExtraImm {
			return fmt.Sprintf("%s #$%02x,$%02x", mn, bytes[1], bytes[2]), nil
		}
		return fmt.Sprintf("%s <$%02x", mn, bytes[1]), nil
	case isa.ModeExtended:
		return fmt.Sprintf("%s >$%02x%02x", mn, bytes[1], bytes[2]), nil
	case isa.ModeIndexed:
		if enc.ExtraImm {
			return fmt.Sprintf("%s #$%02x,$%02x,x", mn, bytes[1], bytes[2]), nil
		}
		return fmt.Sprintf("%s $%02x,x", mn, bytes[1]), nil
	case isa.ModeRelative:
		disp := int8(bytes[1])
		target := (addr + uint32(len(bytes)) + uint32(int32(disp))) & 0xFFFF
		return fmt.Sprintf("%s $%04x", mn, target), nil
	default:
		return "", fmt.Errorf("%s: unknown addressing mode in disassembly", mn)
	}
}

// Listing renders a human-readable address/bytes/source-line listing.
func Listing(lines []DisasmLine) string {
	var b strings.Builder
	for _, l := range lines {
		var hex strings.Builder
		for _, v := range l.Bytes {
			fmt.Fprintf(&hex, "%02X ", v)
		}
		fmt.Fprintf(&b, "%04X  %-12s %s\n", l.Address, strings.TrimRight(hex.String(), " "), l.Text)
	}
	return b.String()
}
