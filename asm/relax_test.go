package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// branchOver assembles a forward BNE over n padding bytes.
func branchOver(t *testing.T, n int) *Object {
	t.Helper()
	src := "\torg $0000\n\tbne far\n" + strings.Repeat("\tnop\n", n) + "far\n\trts\n"
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	return obj
}

func TestShortBranchAtPositiveLimit(t *testing.T) {
	obj := branchOver(t, 127)
	assert.Equal(t, byte(0x26), obj.Bytes[0], "displacement +127 stays short")
	assert.Equal(t, byte(127), obj.Bytes[1])
}

func TestBranchJustPastLimitIsRelaxed(t *testing.T) {
	obj := branchOver(t, 128)
	// Inverted BEQ over a 3-byte JMP extended.
	assert.Equal(t, byte(0x27), obj.Bytes[0])
	assert.Equal(t, byte(3), obj.Bytes[1])
	assert.Equal(t, byte(0x7E), obj.Bytes[2])
	// The JMP targets the final label: 5 (relaxed branch) + 128 nops.
	target := uint16(5 + 128)
	assert.Equal(t, byte(target>>8), obj.Bytes[3])
	assert.Equal(t, byte(target), obj.Bytes[4])
}

func TestBackwardShortBranchAtNegativeLimit(t *testing.T) {
	// 126 nops between the target and the branch: displacement is
	// -(126+2) = -128, exactly in range.
	src := "\torg $0000\nback\n" + strings.Repeat("\tnop\n", 126) + "\tbne back\n"
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Equal(t, byte(0x26), obj.Bytes[126])
	assert.Equal(t, byte(0x80), obj.Bytes[127], "displacement -128")
}

func TestUnconditionalRelaxesToJmp(t *testing.T) {
	// The label after the BRA keeps the padding reachable; without it the
	// peephole pass deletes the nops as unreachable code.
	src := "\torg $0000\n\tbra far\nfiller\n" + strings.Repeat("\tnop\n", 200) + "far\n\trts\n"
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Equal(t, byte(0x7E), obj.Bytes[0], "BRA relaxes to a plain JMP")
	assert.Equal(t, uint16(3+200), uint16(obj.Bytes[1])<<8|uint16(obj.Bytes[2]))
}

func TestBsrRelaxesToJsr(t *testing.T) {
	src := "\torg $0000\n\tbsr far\n" + strings.Repeat("\tnop\n", 200) + "far\n\trts\n"
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Equal(t, byte(0xBD), obj.Bytes[0], "BSR relaxes to JSR extended")
}

func TestIndexedOffsetBoundaries(t *testing.T) {
	for _, off := range []int{0, 1, 127, 128, 255} {
		src := "\tldaa " + itoa(off) + ",x\n"
		obj, bundle := Assemble(src, Options{Filename: "t.asm", Form: FormRaw})
		require.False(t, bundle.HasErrors(), "offset %d: %s", off, bundle.Error())
		assert.Equal(t, []byte{0xA6, byte(off)}, obj.Bytes, "offset %d", off)
	}

	_, bundle := Assemble("\tldaa 256,x\n", Options{Filename: "t.asm", Form: FormRaw})
	require.True(t, bundle.HasErrors())
	assert.Contains(t, bundle.Error(), "range")
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestDirectVsExtendedSelection(t *testing.T) {
	// The label separates the two loads so the dead-load peephole rule
	// keeps both.
	obj := assembleRaw(t, "\tldaa $42\nmid\n\tldaa $1234\n")
	assert.Equal(t, []byte{0x96, 0x42, 0xB6, 0x12, 0x34}, obj.Bytes)
}

func TestForcedModesOverrideSelection(t *testing.T) {
	obj := assembleRaw(t, "\tldaa >$42\nmid\n\tldaa <$42\n")
	assert.Equal(t, []byte{0xB6, 0x00, 0x42, 0x96, 0x42}, obj.Bytes)
}

func TestForcedDirectOnInternalLabelRejectedWhenRelocatable(t *testing.T) {
	src := "\torg $0040\nvar\n\tfcb 0\nstart\n\tldaa <var\n\trts\n"
	_, bundle := Assemble(src, Options{
		Filename: "t.asm", Base: 0x0040, Form: FormObject,
		Relocatable: true, EntrySymbol: "start",
	})
	require.True(t, bundle.HasErrors())
	assert.Contains(t, bundle.Error(), "self-relocation")

	// The same source is fine in a non-relocatable build.
	_, bundle = Assemble(src, Options{Filename: "t.asm", Base: 0x0040, Form: FormObject, EntrySymbol: "start"})
	assert.False(t, bundle.HasErrors(), bundle.Error())
}

func TestCompareZeroRewrittenToTest(t *testing.T) {
	obj := assembleRaw(t, "\tcmpa #0\n\tcmpb #0\n\tcmpa #1\n")
	assert.Equal(t, []byte{0x4D, 0x5D, 0x81, 0x01}, obj.Bytes)
}

func TestPushPullPairDeleted(t *testing.T) {
	obj := assembleRaw(t, "\tpsha\n\tpula\n\tnop\n")
	assert.Equal(t, []byte{0x01}, obj.Bytes)
}

func TestPeepholeDeletionKeepsAbsoluteTargetsConsistent(t *testing.T) {
	// The psha/pula pair before the label is deleted, which shifts the
	// label down two bytes; the absolute JMP operand must be recomputed
	// against the shrunken layout.
	src := `
	org $0100
	psha
	pula
top
	nop
	jmp top
`
	obj := assembleRaw(t, src)
	assert.Equal(t, []byte{0x01, 0x7E, 0x01, 0x00}, obj.Bytes)
}

func TestUnreachableCodeAfterJmpDeleted(t *testing.T) {
	src := `
	org $0000
	jmp $0003
	nop
	nop
next
	rts
`
	obj := assembleRaw(t, src)
	// Both nops after the jmp are unreachable; the label stops deletion.
	assert.Equal(t, []byte{0x7E, 0x00, 0x03, 0x39}, obj.Bytes)
}
