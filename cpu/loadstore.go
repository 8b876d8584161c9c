package cpu

import "github.com/halcyon6303/orgtool/isa"

// readOperand8/readOperand16 fetch a value for an accumulator/index
// instruction under any non-inherent addressing mode; immediate operands
// come straight from the already-fetched bytes, the rest dereference the
// effective address.
func (c *CPU) readOperand8(enc isa.Encoding, operand []byte) byte {
	if enc.Mode == isa.ModeImmediate {
		return byte(immediateValue(operand))
	}
	return c.Bus.Read(c.effectiveAddress(enc, operand, 0))
}

func (c *CPU) readOperand16(enc isa.Encoding, operand []byte) uint16 {
	if enc.Mode == isa.ModeImmediate {
		return immediateValue(operand)
	}
	addr := c.effectiveAddress(enc, operand, 0)
	return c.read16(addr)
}

func init() {
	register("ldaa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.readOperand8(enc, operand)
		c.loadFlags8(c.A)
		return nil
	})
	register("ldab", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.readOperand8(enc, operand)
		c.loadFlags8(c.B)
		return nil
	})
	register("ldd", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SetD(c.readOperand16(enc, operand))
		c.loadFlags16(c.D())
		return nil
	})
	register("ldx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X = c.readOperand16(enc, operand)
		c.loadFlags16(c.X)
		return nil
	})
	register("lds", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SP = c.readOperand16(enc, operand)
		c.loadFlags16(c.SP)
		return nil
	})

	register("staa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.Bus.Write(c.effectiveAddress(enc, operand, 0), c.A)
		c.loadFlags8(c.A)
		return nil
	})
	register("stab", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.Bus.Write(c.effectiveAddress(enc, operand, 0), c.B)
		c.loadFlags8(c.B)
		return nil
	})
	register("std", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.write16(c.effectiveAddress(enc, operand, 0), c.D())
		c.loadFlags16(c.D())
		return nil
	})
	register("stx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.write16(c.effectiveAddress(enc, operand, 0), c.X)
		c.loadFlags16(c.X)
		return nil
	})
	register("sts", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.write16(c.effectiveAddress(enc, operand, 0), c.SP)
		c.loadFlags16(c.SP)
		return nil
	})
}
