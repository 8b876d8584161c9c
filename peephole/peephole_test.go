package peephole

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeStream is a minimal in-memory InstructionStream for exercising Apply
// without going through the assembler, the way a unit test for a pattern-
// matching pass over a closed tagged union should: one entry per position,
// deletions/replacements tracked directly.
type fakeStream struct {
	entries []Entry
}

func (s *fakeStream) Len() int            { return len(s.entries) }
func (s *fakeStream) At(i int) Entry      { return s.entries[i] }
func (s *fakeStream) Delete(i int)        { s.entries[i] = Entry{} }
func (s *fakeStream) Replace(i int, b []byte) {
	s.entries[i].Bytes = b
}

func inst(mnemonic string, bytes ...byte) Entry {
	return Entry{IsInstruction: true, Mnemonic: mnemonic, Bytes: bytes}
}

func label() Entry { return Entry{IsLabel: true} }

func TestRewriteCompareZero(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("cmpa", 0x81, 0x00)}}
	Apply(s)
	assert.Equal(t, []byte{0x4D}, s.entries[0].Bytes)
}

func TestRewriteCompareZeroLeavesNonZeroAlone(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("cmpa", 0x81, 0x05)}}
	Apply(s)
	assert.Equal(t, []byte{0x81, 0x05}, s.entries[0].Bytes)
}

func TestRedundantPushPullDeleted(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("psha", 0x36), inst("pula", 0x32)}}
	Apply(s)
	assert.False(t, s.entries[0].IsInstruction)
	assert.False(t, s.entries[1].IsInstruction)
}

func TestPushPullNotAdjacentSurvives(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("psha", 0x36), inst("ldaa", 0x96, 0x10), inst("pula", 0x32)}}
	Apply(s)
	assert.True(t, s.entries[0].IsInstruction)
	assert.True(t, s.entries[2].IsInstruction)
}

func TestDeadLoadRemoved(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("ldx", 0xFE, 0x00, 0x10), inst("ldx", 0xFE, 0x00, 0x20)}}
	Apply(s)
	assert.False(t, s.entries[0].IsInstruction)
	assert.True(t, s.entries[1].IsInstruction)
}

func TestRedundantTSXKeepsOnlyLast(t *testing.T) {
	s := &fakeStream{entries: []Entry{inst("tsx", 0x30), inst("tsx", 0x30)}}
	Apply(s)
	assert.False(t, s.entries[0].IsInstruction)
	assert.True(t, s.entries[1].IsInstruction)
}

func TestUnreachableAfterUnconditionalBranchDeleted(t *testing.T) {
	s := &fakeStream{entries: []Entry{
		{IsInstruction: true, Mnemonic: "bra", Bytes: []byte{0x20, 0x00}, Unconditional: true},
		inst("nop", 0x01),
		inst("nop", 0x01),
		label(),
		inst("nop", 0x01),
	}}
	Apply(s)
	assert.True(t, s.entries[0].IsInstruction)
	assert.False(t, s.entries[1].IsInstruction)
	assert.False(t, s.entries[2].IsInstruction)
	assert.True(t, s.entries[4].IsInstruction, "code after a label is reachable again")
}

func TestCarryAffectingRulesAreNeverApplied(t *testing.T) {
	// Rules that would change the carry flag are
	// permanently forbidden. There is no "load 0 -> clear" or "add 1 ->
	// increment" rule at all; this test documents that Apply's rule set
	// has exactly five transformations and none of them are those.
	s := &fakeStream{entries: []Entry{inst("ldaa", 0x86, 0x00)}}
	Apply(s)
	assert.Equal(t, []byte{0x86, 0x00}, s.entries[0].Bytes, "immediate load of zero must never become clra")
}
