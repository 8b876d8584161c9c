package machine

import (
	"fmt"

	"github.com/halcyon6303/orgtool/cpu"
	"github.com/halcyon6303/orgtool/pack"
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
	"github.com/halcyon6303/orgtool/peripherals/lcd"
	"github.com/halcyon6303/orgtool/peripherals/slot"
	"github.com/halcyon6303/orgtool/peripherals/tick"
)

// Machine is one emulator instance: a CPU, its memory/peripheral bus, and
// the peripherals the bus dispatches to. It is the handle the build
// driver's emulator surface operates on.
type Machine struct {
	Model Model
	CPU   *cpu.CPU
	Bus   *Bus

	LCD      *lcd.Controller
	Keyboard *keyboard.Matrix
	Slots    *slot.Bank
	Tick     *tick.Counter
}

// New creates a Machine for model m. externals binds selector numbers
// (machine.FirstExternalSelector and up) to host implementations of
// `external` procedures the compiled program declares;
// it may be nil for programs with none.
func New(m Model, externals map[byte]ExternalFunc) *Machine {
	mode := lcd.Mode2Line
	if m.FourLine {
		mode = lcd.Mode4Line
	}

	mach := &Machine{Model: m}
	mach.Keyboard = keyboard.New()
	mach.Slots = slot.NewBank()
	mach.Tick = tick.New(m.TickPeriod)

	bus := NewBus(m, nil, mach.Keyboard, mach.Slots, mach.Tick)
	mach.LCD = lcd.New(m.Geometry, mode, bus)
	bus.LCD = mach.LCD
	mach.Bus = bus

	services := NewServices(bus, externals)
	mach.CPU = cpu.New(bus, services)
	bus.SetInterruptHooks(mach.CPU.MaskInterrupts, mach.CPU.RestoreInterrupts)
	return mach
}

// LoadROM installs the device ROM image that boots this model.
func (m *Machine) LoadROM(img []byte) {
	m.Bus.LoadROM(img)
}

// Reset implements emulator_reset(handle): resets the CPU to its reset
// vector and clears the keyboard/tick state.
func (m *Machine) Reset() {
	m.CPU.Reset()
	*m.Keyboard = *keyboard.New()
	*m.Tick = *tick.New(m.Tick.PeriodCycles)
}

// LoadPack implements emulator_load_pack(handle, pack_bytes, slot):
// installs a validated pack image into one of the three pack-slot windows.
func (m *Machine) LoadPack(slotIndex int, packBytes []byte) error {
	if _, err := pack.Inspect(packBytes); err != nil {
		return fmt.Errorf("load pack into slot %d: %w", slotIndex, err)
	}
	return m.Slots.Load(slotIndex, packBytes)
}

// Run implements emulator_run(handle, cycles) → actually_run: steps the
// CPU until at least cycles have elapsed, an illegal opcode or bus error
// halts it, or it stalls in WAI/SLP, returning the cycle count actually
// consumed and a status.
func (m *Machine) Run(cycles uint64) (uint64, cpu.Status) {
	start := m.CPU.Cycles
	target := start + cycles
	for m.CPU.Cycles < target {
		m.Keyboard.Advance(m.CPU.Cycles)
		if m.Tick.Advance(m.CPU.Cycles) {
			m.CPU.RequestIRQ(0xFFF8)
		}
		status := m.CPU.Step()
		if status != cpu.StatusOK {
			return m.CPU.Cycles - start, status
		}
	}
	return m.CPU.Cycles - start, cpu.StatusOK
}

// TapKey implements emulator_tap_key(handle, key, hold_cycles): presses a
// key now, scheduling its release after hold_cycles of further Run time.
func (m *Machine) TapKey(k keyboard.Key, holdCycles uint64) {
	m.Keyboard.Tap(k, m.CPU.Cycles, holdCycles)
}

// DisplayText implements emulator_display_text(handle) → rows[].
func (m *Machine) DisplayText() []string {
	return m.LCD.TextRows()
}
