package asm

import "fmt"

// stubSource is the position-independent relocation stub prepended to a
// relocatable image. It discovers its own runtime load address via the
// BSR/PULX trick, subtracts the link-time address of the same point to get
// the load delta, then walks the fixup table appended after the code,
// adding the delta to every cell the table names, and finally jumps to the
// image's entry point at its runtime address.
//
// The stub keeps its two working values — the load delta and the image's
// runtime origin — on the hardware stack, the one storage location that is
// already position-correct, so the stub itself contains no absolute
// references and needs no fixups of its own.
//
// Table entries are byte offsets of 16-bit cells from the start of the
// image (stub included); a zero entry terminates the table. Cell contents
// are link-time absolute addresses. The three link-time constants the stub
// needs (linkhere, linkbase, linkentry) and the table's image offset
// (tbloff) are bound as equates when the stub is assembled, once the code
// length is known.
//
// Stack discipline inside the loop, X pointing one below the top of stack
// after TSX: after the first PSHX the cursor sits at 1,x with the origin
// at 3,x and the delta at 5,x; after the second PSHX the cell address sits
// at 1,x, pushing the delta down to 7,x.
const stubSource = `
relocstub
	bsr herepoint
herepoint
	pulx
	xgdx
	subd #linkhere
	pshb
	psha
	tsx
	ldd 1,x
	addd #linkbase
	pshb
	psha
	ldd #tbloff
	tsx
	addd 1,x
	xgdx
reloop
	ldd 0,x
	beq redone
	pshx
	tsx
	addd 3,x
	xgdx
	ldd 0,x
	pshx
	tsx
	addd 7,x
	pulx
	std 0,x
	pulx
	inx
	inx
	bra reloop
redone
	tsx
	ldd 3,x
	ins
	ins
	ins
	ins
	addd #linkentry
	xgdx
	jmp 0,x
`

// buildStub assembles stubSource (dogfeeding the assembler on its own
// relocation helper). The stub's length is independent of the constant
// values (all four constants are used as fixed-width immediates), so a first assembly
// with zero placeholders measures it and a second binds the real values.
func buildStub(base, codeLen uint32, entry int64) ([]byte, error) {
	measured, err := assembleStub(map[string]int64{"linkhere": 0, "linkbase": 0, "tbloff": 0, "linkentry": 0})
	if err != nil {
		return nil, err
	}
	stubLen := uint32(len(measured))

	if entry < 0 {
		entry = int64(base)
	}
	defs := map[string]int64{
		// The stub occupies the stubLen bytes ahead of the code's link
		// base, so its own link addresses are relative to base-stubLen.
		"linkhere":  int64(base) - int64(stubLen) + 2,
		"linkbase":  int64(base) - int64(stubLen),
		"tbloff":    int64(stubLen + codeLen),
		"linkentry": entry,
	}
	final, err := assembleStub(defs)
	if err != nil {
		return nil, err
	}
	if len(final) != int(stubLen) {
		return nil, fmt.Errorf("internal error: relocation stub changed size between passes")
	}
	return final, nil
}

func assembleStub(defs map[string]int64) ([]byte, error) {
	obj, bundle := Assemble(stubSource, Options{Filename: "relocstub", Base: 0, Form: FormRaw, Defines: defs})
	if bundle != nil && bundle.HasErrors() {
		return nil, fmt.Errorf("internal error assembling relocation stub: %v", bundle)
	}
	return obj.Bytes, nil
}

// buildFixupTable renders the in-image fixup table: a zero-terminated list
// of 16-bit cell offsets from the start of the image (stub included).
func buildFixupTable(stubLen uint32, fixups []uint32) []byte {
	out := make([]byte, 0, 2*len(fixups)+2)
	for _, off := range fixups {
		cell := stubLen + off
		out = append(out, byte(cell>>8), byte(cell))
	}
	out = append(out, 0, 0)
	return out
}
