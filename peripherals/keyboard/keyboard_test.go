package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDownAndSnapshot(t *testing.T) {
	m := New()
	m.SetDown(KeyEnter, true)
	m.SetDown(KeyQ, true)
	m.SetDown(KeyQ, false)

	assert.True(t, m.Down(KeyEnter))
	assert.False(t, m.Down(KeyQ))

	snap := m.Snapshot()
	assert.Len(t, snap, 1)
	assert.True(t, snap[KeyEnter])
}

func TestTapReleasesAfterHold(t *testing.T) {
	m := New()
	m.Tap(KeyPlus, 100, 50)
	assert.True(t, m.Down(KeyPlus))

	m.Advance(149)
	assert.True(t, m.Down(KeyPlus), "still held before the release point")

	m.Advance(150)
	assert.False(t, m.Down(KeyPlus))
}

func TestOverlappingTaps(t *testing.T) {
	m := New()
	m.Tap(KeyPlus, 0, 10)
	m.Tap(KeyMinus, 0, 20)
	m.Advance(15)
	assert.False(t, m.Down(KeyPlus))
	assert.True(t, m.Down(KeyMinus))
	m.Advance(25)
	assert.False(t, m.Down(KeyMinus))
}

func TestCodes(t *testing.T) {
	assert.NotZero(t, Code(KeyEnter))
	assert.NotZero(t, Code(KeyPlus))
	assert.Zero(t, Code(Key("NOPE")))
}
