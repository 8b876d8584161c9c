// Package tick implements the free-running tick counter the ROM consumes
// for delays and time-of-day: a counter incremented on a
// periodic timer interrupt.
package tick

// Counter is a free-running counter plus the cycle period it fires on.
type Counter struct {
	Value         uint32
	PeriodCycles  uint64
	lastFireCycle uint64
}

// New creates a Counter that increments once every periodCycles emulator
// cycles.
func New(periodCycles uint64) *Counter {
	return &Counter{PeriodCycles: periodCycles}
}

// Advance reports whether the timer should fire given the emulator's
// current absolute cycle count, incrementing Value and returning true each
// time a full period has elapsed. The caller (the machine wiring) is
// responsible for turning a true return into a CPU interrupt request.
func (t *Counter) Advance(currentCycle uint64) bool {
	if t.PeriodCycles == 0 {
		return false
	}
	if currentCycle-t.lastFireCycle < t.PeriodCycles {
		return false
	}
	t.lastFireCycle = currentCycle
	t.Value++
	return true
}
