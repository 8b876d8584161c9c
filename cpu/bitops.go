package cpu

import "github.com/halcyon6303/orgtool/isa"

// bitOpFlags sets N/Z from result and clears V, leaving C unchanged — the
// same convention as AND/OR/EOR. Documented carry behaviour for these
// ops varies between chip references; C is left untouched here.
func (c *CPU) bitOpFlags(v byte) {
	c.setNZ8(v)
	c.setFlag(FlagV, false)
}

func init() {
	register("aim", func(c *CPU, enc isa.Encoding, operand []byte) error {
		mask := operand[0]
		addr := c.effectiveAddress(enc, operand, 1)
		result := c.Bus.Read(addr) & mask
		c.Bus.Write(addr, result)
		c.bitOpFlags(result)
		return nil
	})
	register("oim", func(c *CPU, enc isa.Encoding, operand []byte) error {
		mask := operand[0]
		addr := c.effectiveAddress(enc, operand, 1)
		result := c.Bus.Read(addr) | mask
		c.Bus.Write(addr, result)
		c.bitOpFlags(result)
		return nil
	})
	register("eim", func(c *CPU, enc isa.Encoding, operand []byte) error {
		mask := operand[0]
		addr := c.effectiveAddress(enc, operand, 1)
		result := c.Bus.Read(addr) ^ mask
		c.Bus.Write(addr, result)
		c.bitOpFlags(result)
		return nil
	})
	register("tim", func(c *CPU, enc isa.Encoding, operand []byte) error {
		mask := operand[0]
		addr := c.effectiveAddress(enc, operand, 1)
		c.bitOpFlags(c.Bus.Read(addr) & mask)
		return nil
	})
}
