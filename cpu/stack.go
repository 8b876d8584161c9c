package cpu

import "github.com/halcyon6303/orgtool/isa"

func init() {
	register("psha", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.pushByte(c.A)
		return nil
	})
	register("pshb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.pushByte(c.B)
		return nil
	})
	register("pshx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.pushWord(c.X)
		return nil
	})
	register("pula", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = c.pullByte()
		return nil
	})
	register("pulb", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = c.pullByte()
		return nil
	})
	register("pulx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X = c.pullWord()
		return nil
	})

	// tsx/txs give X = SP directly, not the classic 6800 SP+1 convention.
	register("tsx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X = c.SP
		return nil
	})
	register("txs", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SP = c.X
		return nil
	})

	register("ins", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SP++
		return nil
	})
	register("des", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.SP--
		return nil
	})

	register("inx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X++
		c.setFlag(FlagZ, c.X == 0)
		return nil
	})
	register("dex", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X--
		c.setFlag(FlagZ, c.X == 0)
		return nil
	})

	register("abx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.X += uint16(c.B)
		return nil
	})
	register("xgdx", func(c *CPU, enc isa.Encoding, operand []byte) error {
		d := c.D()
		c.SetD(c.X)
		c.X = d
		return nil
	})
}
