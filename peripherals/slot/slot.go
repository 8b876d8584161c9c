// Package slot models the device's pack-slot address windows: up to three slots mapped into the address space, each populated
// by loading a pack image, with the same record-directory scanning the ROM
// performs exposed as a thin accessor over pack.Inspect rather than a
// second implementation of the pack format.
package slot

import (
	"fmt"

	"github.com/halcyon6303/orgtool/pack"
)

// Count is the number of pack slots the device address-decodes.
const Count = 3

// Bank holds up to Count loaded pack images and answers the byte-level
// reads/writes the address decoder routes to a slot's window.
type Bank struct {
	images [Count][]byte
}

// NewBank creates an empty set of slots.
func NewBank() *Bank { return &Bank{} }

// Load installs img into slotIndex after validating it; a slot may be reloaded, replacing its previous image.
func (b *Bank) Load(slotIndex int, img []byte) error {
	if slotIndex < 0 || slotIndex >= Count {
		return fmt.Errorf("pack slot index %d out of range 0..%d", slotIndex, Count-1)
	}
	if _, err := pack.Inspect(img); err != nil {
		return fmt.Errorf("slot %d: %w", slotIndex, err)
	}
	b.images[slotIndex] = img
	return nil
}

// Eject clears a slot.
func (b *Bank) Eject(slotIndex int) {
	if slotIndex >= 0 && slotIndex < Count {
		b.images[slotIndex] = nil
	}
}

// Read returns the byte at offset within a slot's window, or 0xFF (the
// conventional unmapped-flash read) if the slot is empty or offset is out
// of range.
func (b *Bank) Read(slotIndex int, offset uint32) byte {
	if slotIndex < 0 || slotIndex >= Count {
		return 0xFF
	}
	img := b.images[slotIndex]
	if int(offset) >= len(img) {
		return 0xFF
	}
	return img[offset]
}

// Directory scans a slot's record table the way the ROM does when it
// enumerates a pack's contents.
func (b *Bank) Directory(slotIndex int) (pack.Directory, error) {
	if slotIndex < 0 || slotIndex >= Count {
		return nil, fmt.Errorf("pack slot index %d out of range 0..%d", slotIndex, Count-1)
	}
	img := b.images[slotIndex]
	if img == nil {
		return nil, fmt.Errorf("slot %d is empty", slotIndex)
	}
	return pack.Inspect(img)
}

// Len reports a slot's image size, or 0 if empty.
func (b *Bank) Len(slotIndex int) int {
	if slotIndex < 0 || slotIndex >= Count {
		return 0
	}
	return len(b.images[slotIndex])
}
