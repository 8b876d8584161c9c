package cpu

import (
	"fmt"

	"github.com/halcyon6303/orgtool/isa"
)

// swi handles the software-interrupt instruction followed by a one-byte
// service selector: it pushes the full
// machine state like any interrupt, then — unlike a hardware interrupt —
// immediately consults c.Services for the byte at the return address
// rather than vectoring through $FFFA, since the selector is inline code,
// not a jump table entry. When no Services is wired (booting the real ROM
// image), SWI behaves like a plain interrupt and the ROM's own
// vector table takes it from there.
func init() {
	register("swi", func(c *CPU, enc isa.Encoding, operand []byte) error {
		c.pushWord(c.PC)
		c.pushWord(c.X)
		c.pushByte(c.A)
		c.pushByte(c.B)
		c.pushByte(c.CCR)
		c.setFlag(FlagI, true)

		if c.Services == nil {
			c.PC = c.read16(0xFFFA)
			return nil
		}

		selector := c.Bus.Read(c.PC)
		c.PC++
		handled, err := c.Services.Dispatch(c, selector)
		if err != nil {
			return fmt.Errorf("service trap %#02x: %w", selector, err)
		}
		if !handled {
			return fmt.Errorf("unhandled service trap selector %#02x", selector)
		}

		// The service ran host-side, so unwind the interrupt frame instead
		// of executing an RTI: restore the pre-trap CCR (interrupt mask
		// included) and X, keep A/B as the service's return value, and keep
		// the PC already advanced past the selector byte rather than the
		// stacked PC, which still points at it.
		ccr := c.pullByte()
		c.pullByte()
		c.pullByte()
		x := c.pullWord()
		c.pullWord()
		c.CCR = ccr | reservedBits
		c.X = x
		return nil
	})
}
