package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLookupRoundTrip(t *testing.T) {
	count := 0
	for op := 0; op < 256; op++ {
		enc, ok := Decode(byte(op))
		if !ok {
			continue
		}
		count++
		back, ok := Lookup(enc.Mnemonic, enc.Mode)
		require.True(t, ok, "lookup %s/%v", enc.Mnemonic, enc.Mode)
		assert.Equal(t, byte(op), back.Opcode, "%s/%v", enc.Mnemonic, enc.Mode)
	}
	// The HD6303 map is dense: well over half the opcode space decodes.
	assert.Greater(t, count, 180)
}

func TestSizeAccountsForOperandAndMask(t *testing.T) {
	for op := 0; op < 256; op++ {
		enc, ok := Decode(byte(op))
		if !ok {
			continue
		}
		want := 1 + enc.OperandSize
		if enc.ExtraImm {
			want++
		}
		assert.Equal(t, want, enc.Size(), "%s", enc.Mnemonic)
	}
}

func TestEveryEncodingHasPositiveCycles(t *testing.T) {
	for op := 0; op < 256; op++ {
		enc, ok := Decode(byte(op))
		if !ok {
			continue
		}
		assert.Greater(t, enc.Cycles, 0, "%s %#02x", enc.Mnemonic, op)
	}
}

func TestBranchesAreRelativeOneByte(t *testing.T) {
	for _, mn := range []string{"bra", "brn", "bhi", "bls", "bcc", "bcs", "bne", "beq", "bvc", "bvs", "bpl", "bmi", "bge", "blt", "bgt", "ble", "bsr"} {
		enc, ok := Lookup(mn, ModeRelative)
		require.True(t, ok, mn)
		assert.Equal(t, 1, enc.OperandSize, mn)
		assert.Equal(t, 2, enc.Size(), mn)
	}
}

func TestMemoryImmediateBitOps(t *testing.T) {
	for _, mn := range []string{"aim", "oim", "eim", "tim"} {
		for _, mode := range []Mode{ModeDirect, ModeIndexed} {
			enc, ok := Lookup(mn, mode)
			require.True(t, ok, "%s/%v", mn, mode)
			assert.True(t, enc.ExtraImm)
			assert.Equal(t, 3, enc.Size())
		}
		_, hasExt := Lookup(mn, ModeExtended)
		assert.False(t, hasExt, "%s has no extended form", mn)
	}
}

func TestStoreInstructionsHaveNoImmediateForm(t *testing.T) {
	for _, mn := range []string{"staa", "stab", "std", "stx", "sts"} {
		_, ok := Lookup(mn, ModeImmediate)
		assert.False(t, ok, mn)
	}
}

func TestMemoryShiftsHaveNoDirectForm(t *testing.T) {
	for _, mn := range []string{"neg", "com", "lsr", "ror", "asr", "asl", "rol", "dec", "inc", "tst", "clr"} {
		_, hasDir := Lookup(mn, ModeDirect)
		assert.False(t, hasDir, mn)
		_, hasExt := Lookup(mn, ModeExtended)
		assert.True(t, hasExt, mn)
		_, hasIdx := Lookup(mn, ModeIndexed)
		assert.True(t, hasIdx, mn)
	}
}

func TestJmpForms(t *testing.T) {
	_, inherent := Lookup("jmp", ModeInherent)
	assert.False(t, inherent)
	ext, ok := Lookup("jmp", ModeExtended)
	require.True(t, ok)
	assert.Equal(t, byte(0x7E), ext.Opcode)
	idx, ok := Lookup("jmp", ModeIndexed)
	require.True(t, ok)
	assert.Equal(t, byte(0x6E), idx.Opcode)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("ldaa"))
	assert.True(t, Known("xgdx"))
	assert.False(t, Known("mov"))
}
