package machine

import (
	"fmt"

	"github.com/halcyon6303/orgtool/cpu"
)

// Reserved service-trap selectors. 0-15 are runtime intrinsics the cc
// codegen emits directly; 16 and up are external
// procedures, assigned sequentially by the compiler in declaration order
// and handed to the machine alongside the assembled program so the
// emulator knows which Go function answers which selector.
const (
	SelectorPutchar  = 0x00
	SelectorPrintInt = 0x01
	SelectorGets     = 0x02
	SelectorKeyScan  = 0x03
	// SelectorTrapInit is the one-shot trap-interface setup main issues
	// before any other service call. The emulator needs no setup, so it
	// simply acknowledges; the real ROM's handler latches its dispatch
	// state here.
	SelectorTrapInit = 0x04
	// SelectorDisplayRows reports the display's row count, letting a
	// 4-line build leave a 2-line machine gracefully.
	SelectorDisplayRows = 0x05

	FirstExternalSelector = 0x10
)

// ExternalFunc is a host-provided implementation of one `external`
// procedure: up to four 16-bit arguments in, one 16-bit
// result out.
type ExternalFunc func(args [4]uint16) (uint16, error)

// Services implements cpu.Services, answering the SWI selectors the
// compiler's runtime intrinsics and external-procedure stubs issue.
type Services struct {
	bus       *Bus
	externals map[byte]ExternalFunc
}

// NewServices builds a Services bound to bus's peripherals, with
// externals mapping each assigned selector (FirstExternalSelector and up)
// to its host implementation.
func NewServices(bus *Bus, externals map[byte]ExternalFunc) *Services {
	return &Services{bus: bus, externals: externals}
}

// Dispatch answers one SWI selector, matching cpu.Services. Every
// selector, intrinsic and external alike, takes its arguments through the
// stack marshalling convention (argc in B) and returns through D.
func (s *Services) Dispatch(c *cpu.CPU, selector byte) (bool, error) {
	switch selector {
	case SelectorTrapInit:
		return true, nil
	case SelectorDisplayRows:
		rows, _ := s.bus.LCD.Size()
		c.SetD(uint16(rows))
		return true, nil
	case SelectorPutchar:
		args, err := s.popArgs(c)
		if err != nil {
			return true, err
		}
		s.bus.LCD.PutChar(byte(args[0]))
		return true, nil
	case SelectorPrintInt:
		args, err := s.popArgs(c)
		if err != nil {
			return true, err
		}
		s.printInt(int16(args[0]))
		return true, nil
	case SelectorGets:
		// No host-side line input in the emulator; report an empty
		// line by clearing D, matching a real device's EOF behaviour
		// with no keys queued.
		c.SetD(0)
		return true, nil
	case SelectorKeyScan:
		c.SetD(uint16(s.bus.readKeyboard()))
		return true, nil
	}
	if fn, ok := s.externals[selector]; ok {
		args, err := s.popArgs(c)
		if err != nil {
			return true, err
		}
		result, err := fn(args)
		if err != nil {
			return true, err
		}
		c.SetD(result)
		return true, nil
	}
	return false, fmt.Errorf("no service bound to selector %#02x", selector)
}

// printInt renders v as a decimal string directly to the LCD, the way
// the runtime's print_int intrinsic is documented to behave.
func (s *Services) printInt(v int16) {
	var buf [6]byte
	i := len(buf)
	neg := v < 0
	uv := uint16(v)
	if neg {
		uv = uint16(-v)
	}
	if uv == 0 {
		i--
		buf[i] = '0'
	}
	for uv > 0 {
		i--
		buf[i] = byte('0' + uv%10)
		uv /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	for _, ch := range buf[i:] {
		s.bus.LCD.PutChar(ch)
	}
}

// popArgs reads up to four 16-bit arguments the trap marshalling stub
// pushed onto the stack before issuing the trap, argument 0 nearest the
// top. The marshaller pushes argc in B so the emulator knows how many of
// the four slots are live; unused slots read as zero.
//
// By the time Dispatch runs, SWI's own register-save push (PC, X, A, B,
// CCR: 7 bytes) sits above the caller's pushed arguments, so argument i's
// high byte is 8+2i past the current stack pointer and its low byte
// 9+2i past it, matching cpu.pushWord's high-byte-at-lower-address
// convention.
func (s *Services) popArgs(c *cpu.CPU) ([4]uint16, error) {
	var args [4]uint16
	argc := int(c.B)
	if argc > 4 {
		return args, fmt.Errorf("external call marshaller: argc %d exceeds 4", argc)
	}
	sp := c.SP
	for i := 0; i < argc; i++ {
		hi := c.Bus.Read(sp + 8 + uint16(2*i))
		lo := c.Bus.Read(sp + 9 + uint16(2*i))
		args[i] = uint16(hi)<<8 | uint16(lo)
	}
	return args, nil
}
