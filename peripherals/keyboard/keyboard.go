// Package keyboard models the device's key matrix: named
// key codes, held state the service layer polls, and a non-blocking "tap"
// primitive for scripted interaction.
package keyboard

// Key names the device's physical keys by the names the ROM's key-scan
// service reports.
type Key string

const (
	KeyUp    Key = "UP"
	KeyDown  Key = "DOWN"
	KeyLeft  Key = "LEFT"
	KeyRight Key = "RIGHT"
	KeyEnter Key = "ENTER"
	KeyEsc   Key = "ESC"
	KeyMenu  Key = "MENU"
	KeyPlus  Key = "+"
	KeyMinus Key = "-"
	KeyQ     Key = "Q"
)

// tap tracks one scripted key-down with a cycle-counted release.
type tap struct {
	key          Key
	releaseAfter uint64
}

// Matrix holds the keyboard's held-key state and any in-flight scripted
// taps.
type Matrix struct {
	held map[Key]bool
	taps []tap
}

// New creates an empty keyboard matrix.
func New() *Matrix {
	return &Matrix{held: make(map[Key]bool)}
}

// Down reports whether a key is currently held, including by an
// in-progress scripted tap.
func (m *Matrix) Down(k Key) bool { return m.held[k] }

// SetDown sets a key's held state directly, as a real key press/release
// would.
func (m *Matrix) SetDown(k Key, down bool) { m.held[k] = down }

// Tap holds k down starting now and schedules its release holdCycles of
// emulator run-time later.
// currentCycle is the emulator's current cycle counter, so Advance can
// compare against an absolute release point.
func (m *Matrix) Tap(k Key, currentCycle uint64, holdCycles uint64) {
	m.held[k] = true
	m.taps = append(m.taps, tap{key: k, releaseAfter: currentCycle + holdCycles})
}

// Advance releases any taps whose hold duration has elapsed as of
// currentCycle; it must be called periodically (e.g. once per emulator
// Run slice) for scripted taps to ever release.
func (m *Matrix) Advance(currentCycle uint64) {
	kept := m.taps[:0]
	for _, t := range m.taps {
		if currentCycle >= t.releaseAfter {
			m.held[t.key] = false
			continue
		}
		kept = append(kept, t)
	}
	m.taps = kept
}

// Snapshot returns the full set of currently-held keys, for the ROM's
// key-scan service to consume.
func (m *Matrix) Snapshot() map[Key]bool {
	out := make(map[Key]bool, len(m.held))
	for k, v := range m.held {
		if v {
			out[k] = true
		}
	}
	return out
}

// codes assigns each named key a one-byte scan code, the form the
// keyboard's I/O register reports a held key in.
var codes = map[Key]byte{
	KeyUp:    0x01,
	KeyDown:  0x02,
	KeyLeft:  0x03,
	KeyRight: 0x04,
	KeyEnter: 0x05,
	KeyEsc:   0x06,
	KeyMenu:  0x07,
	KeyPlus:  0x08,
	KeyMinus: 0x09,
	KeyQ:     0x10,
}

// Code returns k's one-byte scan code, or 0 for an unrecognised key.
func Code(k Key) byte { return codes[k] }
