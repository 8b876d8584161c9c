package cpu

import "github.com/halcyon6303/orgtool/isa"

func init() {
	register("suba", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.sub8(c.A, c.readOperand8(enc, operand), false)
		return nil
	})
	register("subb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.sub8(c.B, c.readOperand8(enc, operand), false)
		return nil
	})
	register("sbca", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.sub8(c.A, c.readOperand8(enc, operand), c.Flag(FlagC))
		return nil
	})
	register("sbcb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.sub8(c.B, c.readOperand8(enc, operand), c.Flag(FlagC))
		return nil
	})
	register("cmpa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.sub8(c.A, c.readOperand8(enc, operand), false)
		return nil
	})
	register("cmpb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.sub8(c.B, c.readOperand8(enc, operand), false)
		return nil
	})
	register("sba", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.sub8(c.A, c.B, false)
		return nil
	})
	register("cba", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.sub8(c.A, c.B, false)
		return nil
	})
	register("subd", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SetD(c.sub16(c.D(), c.readOperand16(enc, operand)))
		return nil
	})
	register("cpx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.sub16(c.X, c.readOperand16(enc, operand))
		return nil
	})

	register("adda", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.add8(c.A, c.readOperand8(enc, operand), false)
		return nil
	})
	register("addb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.add8(c.B, c.readOperand8(enc, operand), false)
		return nil
	})
	register("adca", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.add8(c.A, c.readOperand8(enc, operand), c.Flag(FlagC))
		return nil
	})
	register("adcb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.add8(c.B, c.readOperand8(enc, operand), c.Flag(FlagC))
		return nil
	})
	register("aba", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.add8(c.A, c.B, false)
		return nil
	})
	register("addd", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SetD(c.add16(c.D(), c.readOperand16(enc, operand)))
		return nil
	})

	register("anda", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A &= c.readOperand8(enc, operand)
		c.logicFlags8(c.A)
		return nil
	})
	register("andb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B &= c.readOperand8(enc, operand)
		c.logicFlags8(c.B)
		return nil
	})
	register("oraa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A |= c.readOperand8(enc, operand)
		c.logicFlags8(c.A)
		return nil
	})
	register("orab", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B |= c.readOperand8(enc, operand)
		c.logicFlags8(c.B)
		return nil
	})
	register("eora", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A ^= c.readOperand8(enc, operand)
		c.logicFlags8(c.A)
		return nil
	})
	register("eorb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B ^= c.readOperand8(enc, operand)
		c.logicFlags8(c.B)
		return nil
	})
	register("bita", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.logicFlags8(c.A & c.readOperand8(enc, operand))
		return nil
	})
	register("bitb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.logicFlags8(c.B & c.readOperand8(enc, operand))
		return nil
	})

	register("tab", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.B
		c.setNZ8(c.A)
		c.setFlag(FlagV, false)
		return nil
	})
	register("tba", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.A
		c.setNZ8(c.B)
		c.setFlag(FlagV, false)
		return nil
	})

	register("daa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = decimalAdjust(c)
		return nil
	})

	register("mul", func(c *CPU, enc isa.Encoding, operand []byte) error {
		product := uint16(c.A) * uint16(c.B)
		c.SetD(product)
		c.setFlag(FlagC, product&0x80 != 0)
		return nil
	})
}

// decimalAdjust implements DAA: after a BCD addition on A, correct each
// nibble so the result is valid packed BCD, using H and C (and setting a
// new C when the high-nibble correction itself carries) per the chip
// reference.
func decimalAdjust(c *CPU) byte {
	a := c.A
	lowCorrect := c.Flag(FlagH) || a&0xF > 9
	highCorrect := c.Flag(FlagC) || a>>4 > 9 || (a>>4 == 9 && a&0xF > 9)
	var adj byte
	if lowCorrect {
		adj += 0x06
	}
	if highCorrect {
		adj += 0x60
	}
	full := uint16(a) + uint16(adj)
	result := byte(full)
	c.setFlag(FlagC, c.Flag(FlagC) || full > 0xFF)
	c.setNZ8(result)
	return result
}
