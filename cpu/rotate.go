package cpu

import "github.com/halcyon6303/orgtool/isa"

// rmwTransform computes a single-operand read-modify-write instruction's
// new value and flag effects from its old value.
type rmwTransform func(c *CPU, v byte) byte

// registerRMW wires one read-modify-write family (e.g. NEG/NEGA/NEGB) to
// its three addressing forms: the "a"/"b"-suffixed accumulator-inherent
// forms and the bare mnemonic's indexed/extended memory forms, which in
// the isa table all share the base mnemonic with Mode distinguishing them.
func registerRMW(base string, t rmwTransform) {
	register(base+"a", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.A = t(c, c.A)
		return nil
	})
	register(base+"b", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.B = t(c, c.B)
		return nil
	})
	register(base, func(c *CPU, enc isa.Encoding, operand []byte) error {
		addr := c.effectiveAddress(enc, operand, 0)
		c.Bus.Write(addr, t(c, c.Bus.Read(addr)))
		return nil
	})
}

func init() {
	registerRMW("neg", func(c *CPU, v byte) byte {
		result := byte(-int8(v))
		c.setFlag(FlagC, v != 0)
		c.setFlag(FlagV, v == 0x80)
		c.setNZ8(result)
		return result
	})
	registerRMW("com", func(c *CPU, v byte) byte {
		result := ^v
		c.setFlag(FlagC, true)
		c.setFlag(FlagV, false)
		c.setNZ8(result)
		return result
	})
	registerRMW("lsr", func(c *CPU, v byte) byte {
		c.setFlag(FlagC, v&0x01 != 0)
		result := v >> 1
		c.setNZ8(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		return result
	})
	registerRMW("ror", func(c *CPU, v byte) byte {
		carryIn := c.Flag(FlagC)
		c.setFlag(FlagC, v&0x01 != 0)
		result := v >> 1
		if carryIn {
			result |= 0x80
		}
		c.setNZ8(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		return result
	})
	registerRMW("asr", func(c *CPU, v byte) byte {
		c.setFlag(FlagC, v&0x01 != 0)
		result := byte(int8(v) >> 1)
		c.setNZ8(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		return result
	})
	registerRMW("asl", func(c *CPU, v byte) byte {
		c.setFlag(FlagC, v&0x80 != 0)
		result := v << 1
		c.setNZ8(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		return result
	})
	registerRMW("rol", func(c *CPU, v byte) byte {
		carryIn := c.Flag(FlagC)
		c.setFlag(FlagC, v&0x80 != 0)
		result := v << 1
		if carryIn {
			result |= 0x01
		}
		c.setNZ8(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		return result
	})
	registerRMW("dec", func(c *CPU, v byte) byte {
		result := v - 1
		c.setFlag(FlagV, v == 0x80)
		c.setNZ8(result)
		return result
	})
	registerRMW("inc", func(c *CPU, v byte) byte {
		result := v + 1
		c.setFlag(FlagV, v == 0x7F)
		c.setNZ8(result)
		return result
	})
	registerRMW("tst", func(c *CPU, v byte) byte {
		c.setFlag(FlagC, false)
		c.setFlag(FlagV, false)
		c.setNZ8(v)
		return v
	})
	registerRMW("clr", func(c *CPU, v byte) byte {
		c.setFlag(FlagC, false)
		c.setFlag(FlagV, false)
		c.setFlag(FlagZ, true)
		c.setFlag(FlagN, false)
		return 0
	})

	register("lsrd", func(c *CPU, enc isa.Encoding, operand []byte) error {
		d := c.D()
		c.setFlag(FlagC, d&0x0001 != 0)
		result := d >> 1
		c.setNZ16(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		c.SetD(result)
		return nil
	})
	register("asld", func(c *CPU, enc isa.Encoding, operand []byte) error {
		d := c.D()
		c.setFlag(FlagC, d&0x8000 != 0)
		result := d << 1
		c.setNZ16(result)
		c.setFlag(FlagV, c.Flag(FlagN) != c.Flag(FlagC))
		c.SetD(result)
		return nil
	})

	register("jmp", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.PC = c.effectiveAddress(enc, operand, 0)
		return nil
	})
}
