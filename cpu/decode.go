package cpu

import "github.com/halcyon6303/orgtool/isa"

// handler executes one decoded instruction; enc names the addressing mode
// and cycle cost, operand carries the already-fetched operand bytes
// (excluding the opcode itself).
type handler func(c *CPU, enc isa.Encoding, operand []byte) error

// handlers is the fixed mnemonic-to-handler dispatch table: isa.Decode first maps the opcode byte to its Encoding, whose
// Mnemonic then selects the handler here, so opcode -> handler is still a
// single deterministic lookup chain with no runtime type inspection.
var handlers = map[string]handler{}

func register(mnemonic string, h handler) { handlers[mnemonic] = h }

// fetchOperand reads the bytes following an opcode for the addressing mode
// enc describes, advancing PC past them, and returns them for the handler.
func (c *CPU) fetchOperand(enc isa.Encoding) []byte {
	n := enc.OperandSize
	if enc.ExtraImm {
		n++
	}
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = c.Bus.Read(c.PC)
		c.PC++
	}
	return buf
}

// effectiveAddress resolves a direct, extended, or indexed operand to its
// 16-bit memory address. immOffset skips a leading extra-immediate byte
// for the HD6303 memory-immediate bit ops.
func (c *CPU) effectiveAddress(enc isa.Encoding, operand []byte, immOffset int) uint16 {
	switch enc.Mode {
	case isa.ModeDirect:
		return uint16(operand[immOffset])
	case isa.ModeExtended:
		return uint16(operand[immOffset])<<8 | uint16(operand[immOffset+1])
	case isa.ModeIndexed:
		return c.X + uint16(operand[immOffset])
	default:
		return 0
	}
}

// immediateValue reads an immediate operand's value, widened to 16 bits
// when the encoding's OperandSize is 2.
func immediateValue(operand []byte) uint16 {
	if len(operand) == 1 {
		return uint16(operand[0])
	}
	return uint16(operand[0])<<8 | uint16(operand[1])
}
