package machine

import (
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
	"github.com/halcyon6303/orgtool/peripherals/lcd"
	"github.com/halcyon6303/orgtool/peripherals/slot"
	"github.com/halcyon6303/orgtool/peripherals/tick"
)

// Address layout. RAM sits at the bottom of the space, ROM at the top; the
// LCD, keyboard and tick registers occupy a small I/O window between them,
// and each pack slot is windowed through a one-byte page register so the
// first 64KiB of a slot's image (images run up to 128KiB; the rest is not
// reachable) can be addressed from 16-bit space a page at a time, so reads
// and writes above the peripheral boundaries dispatch to the owning device.
const (
	ioBase     = 0xA000
	lcdData    = ioBase + 0x00
	lcdCtl     = ioBase + 0x01
	lcdGlyphIx = ioBase + 0x02
	lcdGlyphD  = ioBase + 0x03
	kbdData    = ioBase + 0x04
	tickLo     = ioBase + 0x05
	tickHi     = ioBase + 0x06

	slotWindowBase = 0xA100
	slotWindowLen  = 0x100
	slotPageBase   = 0xA400 // one page-select register per slot, 8 bits

	romBase = 0x8000
)

const lcdCtlHome = 0x01
const lcdCtlClear = 0x02
const lcdCtlCursorOn = 0x04
const lcdCtlCursorOff = 0x08

// Bus implements cpu.Bus over RAM, a loaded ROM image and the peripheral
// register windows above.
type Bus struct {
	RAM []byte
	ROM []byte

	LCD      *lcd.Controller
	Keyboard *keyboard.Matrix
	Slots    *slot.Bank
	Tick     *tick.Counter

	slotPage [slot.Count]byte

	maskFn func() byte
	unmask func(byte)
}

// NewBus builds the address space for model m, with bus backed by ram
// (sized per model) and rom pre-loaded by the caller.
func NewBus(m Model, peripheralLCD *lcd.Controller, kbd *keyboard.Matrix, slots *slot.Bank, tc *tick.Counter) *Bus {
	// RAM never extends past the ROM window; a 64KiB model's upper bank is
	// paged by the ROM, not flat-mapped.
	ramSize := m.RAMSize
	if ramSize > romBase {
		ramSize = romBase
	}
	return &Bus{
		RAM:      make([]byte, ramSize),
		ROM:      make([]byte, m.ROMSize),
		LCD:      peripheralLCD,
		Keyboard: kbd,
		Slots:    slots,
		Tick:     tc,
	}
}

// LoadROM installs a ROM image, truncating it or padding it with 0xFF to
// the bus's fixed ROM size.
func (b *Bus) LoadROM(img []byte) {
	n := copy(b.ROM, img)
	for i := n; i < len(b.ROM); i++ {
		b.ROM[i] = 0xFF
	}
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case int(addr) < len(b.RAM):
		return b.RAM[addr]
	case addr >= romBase && int(addr)-romBase < len(b.ROM):
		return b.ROM[int(addr)-romBase]
	case addr == kbdData:
		return b.readKeyboard()
	case addr == tickLo:
		return byte(b.Tick.Value)
	case addr == tickHi:
		return byte(b.Tick.Value >> 8)
	case addr >= slotPageBase && int(addr)-slotPageBase < slot.Count:
		return b.slotPage[addr-slotPageBase]
	case addr >= slotWindowBase && int(addr)-slotWindowBase < slotWindowLen*slot.Count:
		return b.readSlotWindow(addr)
	case addr >= romBase && int(addr)-romBase < len(b.ROM):
		return b.ROM[int(addr)-romBase]
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, v byte) {
	switch {
	case int(addr) < len(b.RAM):
		b.RAM[addr] = v
	case addr == lcdData:
		b.LCD.PutChar(v)
	case addr == lcdCtl:
		b.writeLCDControl(v)
	case addr == lcdGlyphIx:
		b.LCD.BeginGlyphWrite(int(v))
	case addr == lcdGlyphD:
		b.LCD.WriteGlyphByte(v)
	case addr >= slotPageBase && int(addr)-slotPageBase < slot.Count:
		b.slotPage[addr-slotPageBase] = v
	default:
		// Writes to ROM, the keyboard register and the tick register
		// are ignored, matching a real device's read-only windows.
	}
}

func (b *Bus) writeLCDControl(v byte) {
	if v&lcdCtlClear != 0 {
		b.LCD.Clear()
		return
	}
	if v&lcdCtlHome != 0 {
		b.LCD.SetCursor(0, 0)
	}
	if v&lcdCtlCursorOn != 0 {
		b.LCD.SetCursorVisible(true)
	}
	if v&lcdCtlCursorOff != 0 {
		b.LCD.SetCursorVisible(false)
	}
}

func (b *Bus) readKeyboard() byte {
	down := b.Keyboard.Snapshot()
	if len(down) == 0 {
		return 0
	}
	// First held key in map iteration order, stable enough for the
	// single-key taps the scripted testkit drives.
	for k := range down {
		return keyboard.Code(k)
	}
	return 0
}

func (b *Bus) readSlotWindow(addr uint16) byte {
	rel := int(addr) - slotWindowBase
	idx := rel / slotWindowLen
	offset := rel % slotWindowLen
	page := int(b.slotPage[idx])
	return b.Slots.Read(idx, uint32(page*slotWindowLen+offset))
}

// MaskInterrupts and RestoreInterrupts implement lcd.InterruptMasker by
// delegating to the CPU hook registered via SetInterruptHooks.
func (b *Bus) MaskInterrupts() byte {
	if b.maskFn == nil {
		return 0
	}
	return b.maskFn()
}

func (b *Bus) RestoreInterrupts(prev byte) {
	if b.unmask != nil {
		b.unmask(prev)
	}
}

// SetInterruptHooks wires the CPU's interrupt-mask accessors so the LCD's
// glyph-write sequence can mask/restore them.
func (b *Bus) SetInterruptHooks(mask func() byte, unmask func(byte)) {
	b.maskFn = mask
	b.unmask = unmask
}
