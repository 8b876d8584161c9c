package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleRawForm(t *testing.T) {
	src := `
	org $0100
start
	ldd #$002a
	swi
	fcb 1
loop
	bra loop
`
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Base: 0x0100, Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	require.NotNil(t, obj)
	assert.Equal(t, FormRaw, obj.Form)
	assert.NotEmpty(t, obj.Bytes)
}

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	src := `
	org $0200
start
	ldaa #$41
	ldab #$20
	aba
	rts
`
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Base: 0x0200, Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())

	lines, err := Disassemble(obj.Bytes, 0x0200)
	require.NoError(t, err)
	require.NotEmpty(t, lines)

	// assemble -> disassemble -> assemble yields the same machine bytes.
	var reassembled string
	reassembled += "org $0200\n"
	for _, l := range lines {
		reassembled += l.Text + "\n"
	}
	obj2, bundle2 := Assemble(reassembled, Options{Filename: "t2.asm", Base: 0x0200, Form: FormRaw})
	require.False(t, bundle2.HasErrors(), bundle2.Error())
	assert.Equal(t, obj.Bytes, obj2.Bytes)
}

func TestObjectFormHeaderRoundTrip(t *testing.T) {
	src := `
	org $0400
start
	nop
	rts
`
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Base: 0x0400, Form: FormObject, EntrySymbol: "start"})
	require.False(t, bundle.HasErrors(), bundle.Error())

	parsed, err := ParseObject(obj.Bytes)
	require.NoError(t, err)
	assert.Equal(t, obj.Base, parsed.Base)
	assert.Equal(t, obj.Entry, parsed.Entry)
	assert.Equal(t, obj.Code, parsed.Code)
}

func TestBranchRelaxation(t *testing.T) {
	// A forward branch whose target is more than 127 bytes away must be
	// relaxed to an inverted branch over a JMP.
	src := "\torg $0000\n\tbne far\n" + repeatNops(200) + "far\n\trts\n"
	obj, bundle := Assemble(src, Options{Filename: "t.asm", Base: 0, Form: FormRaw})
	require.False(t, bundle.HasErrors(), bundle.Error())
	// Relaxed form is 5 bytes (inverted 2-byte branch + 3-byte JMP) instead
	// of the 2-byte short form.
	assert.Equal(t, byte(0x27), obj.Bytes[0], "beq (inverse of bne) opcode")
}

func TestUndefinedSymbolIsFatal(t *testing.T) {
	src := "\torg $0000\n\tjmp nowhere\n"
	_, bundle := Assemble(src, Options{Filename: "t.asm", Base: 0, Form: FormRaw})
	assert.True(t, bundle.HasErrors())
}

func TestSelfRelocatingObjectFixupCount(t *testing.T) {
	// Two internal JSRs should produce exactly two fixup entries.
	src := `
	org $0000
start
	jsr one
	jsr two
	rts
one
	rts
two
	rts
`
	obj, bundle := Assemble(src, Options{
		Filename: "t.asm", Base: 0, Form: FormObject,
		Relocatable: true, EntrySymbol: "start",
	})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Len(t, obj.Fixups, 2)
}

func repeatNops(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "\tnop\n"
	}
	return s
}
