package cpu

import "github.com/halcyon6303/orgtool/isa"

func init() {
	register("nop", func(c *CPU, enc isa.Encoding, operand []byte) error { return nil })

	register("tap", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.CCR = c.A | reservedBits
		return nil
	})
	register("tpa", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.CCR
		return nil
	})

	register("clc", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagC, false); return nil })
	register("sec", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagC, true); return nil })
	register("clv", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagV, false); return nil })
	register("sev", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagV, true); return nil })
	register("cli", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagI, false); return nil })
	register("sei", func(c *CPU, enc isa.Encoding, operand []byte) error { c.setFlag(FlagI, true); return nil })

	register("wai", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.Waiting = true
		return nil
	})
	register("slp", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.Waiting = true
		c.Asleep = true
		return nil
	})
}
