package cpu

import "github.com/halcyon6303/orgtool/isa"

// conditions maps each branch mnemonic to its condition, evaluated against
// the CCR as it stands when the branch executes.
var conditions = map[string]func(c *CPU) bool{
	"bra": func(c *CPU) bool { return true },
	"brn": func(c *CPU) bool { return false },
	"bhi": func(c *CPU) bool { return !c.Flag(FlagC) && !c.Flag(FlagZ) },
	"bls": func(c *CPU) bool { return c.Flag(FlagC) || c.Flag(FlagZ) },
	"bcc": func(c *CPU) bool { return !c.Flag(FlagC) },
	"bcs": func(c *CPU) bool { return c.Flag(FlagC) },
	"bne": func(c *CPU) bool { return !c.Flag(FlagZ) },
	"beq": func(c *CPU) bool { return c.Flag(FlagZ) },
	"bvc": func(c *CPU) bool { return !c.Flag(FlagV) },
	"bvs": func(c *CPU) bool { return c.Flag(FlagV) },
	"bpl": func(c *CPU) bool { return !c.Flag(FlagN) },
	"bmi": func(c *CPU) bool { return c.Flag(FlagN) },
	"bge": func(c *CPU) bool { return c.Flag(FlagN) == c.Flag(FlagV) },
	"blt": func(c *CPU) bool { return c.Flag(FlagN) != c.Flag(FlagV) },
	"bgt": func(c *CPU) bool { return !c.Flag(FlagZ) && c.Flag(FlagN) == c.Flag(FlagV) },
	"ble": func(c *CPU) bool { return c.Flag(FlagZ) || c.Flag(FlagN) != c.Flag(FlagV) },
}

func init() {
	for mnemonic, cond := range conditions {
		cond := cond
		register(mnemonic, func(c *CPU, enc isa.Encoding, operand []byte) error {
			disp := int8(operand[0])
			if cond(c) {
				c.PC = uint16(int32(c.PC) + int32(disp))
			}
			return nil
		})
	}

	register("bsr", func(c *CPU, enc isa.Encoding, operand []byte) error {
		disp := int8(operand[0])
		c.pushWord(c.PC)
		c.PC = uint16(int32(c.PC) + int32(disp))
		return nil
	})

	register("jsr", func(c *CPU, enc isa.Encoding, operand []byte) error {
		target := c.effectiveAddress(enc, operand, 0)
		c.pushWord(c.PC)
		c.PC = target
		return nil
	})

	register("rts", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.PC = c.pullWord()
		return nil
	})

	register("rti", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.CCR = c.pullByte() | reservedBits
		c.B = c.pullByte()
		c.A = c.pullByte()
		c.X = c.pullWord()
		c.PC = c.pullWord()
		return nil
	})
}
