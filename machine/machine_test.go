package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon6303/orgtool/cpu"
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
)

// minimalROM builds a tiny ROM image whose reset vector jumps to a loop
// that issues print_int(D) once then waits for a key, enough to exercise
// the Machine wiring without a real device ROM.
func minimalROM(romSize int) []byte {
	rom := make([]byte, romSize)
	for i := range rom {
		rom[i] = 0xFF
	}
	code := []byte{
		0x8E, 0x1F, 0x00, // LDS #$1F00
		0xCC, 0x00, 0x2A, // LDD #42
		0x37,       // PSHB
		0x36,       // PSHA
		0xC6, 0x01, // LDAB #1 (argc)
		0x3F, 0x01, // SWI; SelectorPrintInt
		0x31, 0x31, // INS, INS (caller pops the argument word)
		0x3E,       // WAI
		0x20, 0xFD, // BRA *-1 (spin after the wait clears, harmless under Run's cycle budget)
	}
	base := romBase
	copy(rom[base-romBase:], code)
	entry := uint16(base)
	rom[0xFFFE-romBase] = byte(entry >> 8)
	rom[0xFFFF-romBase] = byte(entry)
	return rom
}

func TestMachineBootAndPrintInt(t *testing.T) {
	m := New(ModelCM, nil)
	m.LoadROM(minimalROM(m.Model.ROMSize))
	m.Reset()

	_, status := m.Run(200)
	require.True(t, status == cpu.StatusOK || status == cpu.StatusTimeout || m.CPU.Waiting)

	rows := m.DisplayText()
	assert.Equal(t, 2, len(rows))
	assert.Contains(t, rows[0], "42")
}

func TestMachineTapKeyReleases(t *testing.T) {
	m := New(ModelXP, nil)
	m.TapKey(keyboard.KeyEnter, 10)
	assert.True(t, m.Keyboard.Down(keyboard.KeyEnter))
	m.Keyboard.Advance(11)
	assert.False(t, m.Keyboard.Down(keyboard.KeyEnter))
}

func TestMachineExternalProcedure(t *testing.T) {
	externals := map[byte]ExternalFunc{
		FirstExternalSelector: func(args [4]uint16) (uint16, error) {
			return args[0] + args[1], nil
		},
	}
	m := New(ModelCM, externals)

	// Marshal two arguments (10, 32) exactly as cc's codegen does: pushed
	// right-to-left so arg0 lands nearest the stack top, each word low
	// byte first then high byte, then SWI followed by the inline selector
	// byte. This exercises the real stack layout
	// machine.Services.popArgs has to unwind, including the 7 bytes SWI's
	// own register-save push puts above it.
	code := []byte{
		0xCC, 0x00, 0x20, // LDD #32
		0x37,       // PSHB
		0x36,       // PSHA
		0xCC, 0x00, 0x0A, // LDD #10
		0x37,       // PSHB
		0x36,       // PSHA
		0xC6, 0x02, // LDAB #2
		0x3F, FirstExternalSelector, // SWI <selector>
		0x3E, // WAI
	}
	const base = 0x0100
	for i, b := range code {
		m.Bus.Write(uint16(base+i), b)
	}
	m.CPU.PC = base
	m.CPU.SP = 0x1F00

	_, status := m.Run(200)
	require.True(t, status == cpu.StatusOK || status == cpu.StatusTimeout || m.CPU.Waiting)
	assert.Equal(t, uint16(42), m.CPU.D())
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("LZ64")
	require.True(t, ok)
	assert.Equal(t, 4, m.Geometry.Rows)
	assert.True(t, m.FourLine)

	_, ok = LookupModel("nope")
	assert.False(t, ok)
}
