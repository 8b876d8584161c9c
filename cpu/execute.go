package cpu

import "github.com/halcyon6303/orgtool/isa"

// Step fetches, decodes, and executes a single instruction, advancing
// Cycles by its documented cost. It checks the pending-interrupt mask
// before the fetch, and stalls in place while WAI/SLP is waiting.
func (c *CPU) Step() Status {
	c.checkInterrupts()

	if c.Waiting {
		c.Cycles++
		return StatusOK
	}

	opcode := c.Bus.Read(c.PC)
	c.PC++

	enc, ok := isa.Decode(opcode)
	if !ok {
		c.halt(StatusIllegalOpcode, "illegal opcode %#02x at %#04x", opcode, c.PC-1)
		return StatusIllegalOpcode
	}

	h, ok := handlers[enc.Mnemonic]
	if !ok {
		c.halt(StatusIllegalOpcode, "unimplemented mnemonic %q (opcode %#02x)", enc.Mnemonic, opcode)
		return StatusIllegalOpcode
	}

	operand := c.fetchOperand(enc)
	if err := h(c, enc, operand); err != nil {
		c.halt(StatusBusError, "%w", err)
		return StatusBusError
	}

	c.Cycles += uint64(enc.Cycles)
	return StatusOK
}

// Run advances the CPU by at most cycles, stopping early on a halt
// condition; it returns the number of cycles actually run and the
// resulting status, matching the build-driver surface's
// emulator_run(handle, cycles) -> actually_run. There is no
// mid-instruction cancellation: Run only checks the budget
// between instructions.
func (c *CPU) Run(cycles uint64) (actuallyRun uint64, status Status) {
	start := c.Cycles
	for c.Cycles-start < cycles {
		if st := c.Step(); st != StatusOK {
			return c.Cycles - start, st
		}
	}
	return c.Cycles - start, StatusTimeout
}

// RunUntilIdle runs until the CPU enters WAI/SLP or halts, up to a caller
// supplied cycle ceiling to guarantee termination.
func (c *CPU) RunUntilIdle(maxCycles uint64) (actuallyRun uint64, status Status) {
	start := c.Cycles
	for c.Cycles-start < maxCycles {
		if c.Waiting {
			return c.Cycles - start, StatusOK
		}
		if st := c.Step(); st != StatusOK {
			return c.Cycles - start, st
		}
	}
	return c.Cycles - start, StatusTimeout
}
