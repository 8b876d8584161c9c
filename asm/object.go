package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/halcyon6303/orgtool/diag"
)

// OutputForm selects one of the assembler's three mutually exclusive output
// wrappings.
type OutputForm int

const (
	// FormRaw emits bytes only: no header, no relocation metadata.
	FormRaw OutputForm = iota
	// FormObject emits a header, the linked code, and (if requested)
	// relocation metadata, suitable for handing to the pack container.
	FormObject
	// FormProcedure emits a lightweight wrapper without the object header,
	// used for on-device OPL wrapping.
	FormProcedure
)

func (f OutputForm) String() string {
	switch f {
	case FormRaw:
		return "raw"
	case FormObject:
		return "object"
	case FormProcedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// objectMagic opens every FormObject output.
var objectMagic = [4]byte{'O', 'R', 'G', '1'}

// Flag bits recorded in an object header.
const (
	flagRelocatable = 1 << 0
)

// Object is the assembler's final result: the linked byte stream (with the
// self-relocation stub prepended when requested) plus its relocation
// fixups, entry point, and output form.
type Object struct {
	Form        OutputForm
	Base        uint32
	Entry       int64
	Relocatable bool
	// Bytes is the complete output blob for the requested form: raw code
	// for FormRaw, header+code(+fixups) for FormObject, name+type+code for
	// FormProcedure.
	Bytes []byte
	// Code is the code/data region alone (stub included, when
	// relocatable), exclusive of any header — this is what a pack record's
	// payload is built from.
	Code []byte
	// Fixups holds each self-relocation cell's offset from the start of
	// Code, for tests and for the debug sidecar; empty when !Relocatable.
	Fixups []uint32
	// Symbols is the final symbol-table snapshot and SourceLines the
	// address-to-source map, both consumed by the debug sidecar.
	Symbols     []Symbol
	SourceLines []SourceLine
}

// SourceLine ties one emitted instruction's address to the source position
// it came from. Peephole-deleted instructions contribute no entry.
type SourceLine struct {
	Address uint32
	Pos     diag.Pos
}

// buildObject assembles the final Bytes/Code for the requested form from
// the linked code stream, optionally prepending the relocation stub and
// appending the fixup table.
func buildObject(code []byte, fixups []uint32, entry int64, opts Options) (*Object, error) {
	obj := &Object{Form: opts.Form, Base: opts.Base, Entry: entry, Relocatable: opts.Relocatable}

	payload := code
	offsets := fixups
	if opts.Relocatable {
		stub, err := buildStub(opts.Base, uint32(len(code)), entry)
		if err != nil {
			return nil, err
		}
		stubLen := uint32(len(stub))
		payload = append(append([]byte(nil), stub...), code...)
		payload = append(payload, buildFixupTable(stubLen, fixups)...)
		offsets = make([]uint32, len(fixups))
		for i, f := range fixups {
			offsets[i] = stubLen + f
		}
	}
	if entry < 0 {
		entry = 0
	}
	obj.Entry = entry
	obj.Code = payload
	obj.Fixups = offsets

	switch opts.Form {
	case FormRaw:
		obj.Bytes = payload
		return obj, nil
	case FormProcedure:
		obj.Bytes = buildProcedureBytes(opts.ProcedureName, payload)
		return obj, nil
	case FormObject:
		bytes, err := buildObjectHeaderBytes(payload, offsets, entry, opts)
		if err != nil {
			return nil, err
		}
		obj.Bytes = bytes
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown output form %v", opts.Form)
	}
}

// buildProcedureBytes wraps payload in the lightweight procedure form: an
// 8-byte space-padded uppercase name followed by the code, with no object
// header.
func buildProcedureBytes(name string, payload []byte) []byte {
	nameField := padName(name)
	out := make([]byte, 0, 8+len(payload))
	out = append(out, nameField[:]...)
	out = append(out, payload...)
	return out
}

// padName space-pads and uppercases name to exactly 8 bytes, the pack
// record name convention, which the procedure form shares.
func padName(name string) [8]byte {
	var out [8]byte
	for i := range out {
		out[i] = ' '
	}
	n := name
	if len(n) > 8 {
		n = n[:8]
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// objectHeaderLen is the fixed header size ahead of code: magic(4) +
// length(4) + origin(4) + flags(2) + entry(4) + fixup-count(4).
const objectHeaderLen = 22

// buildObjectHeaderBytes assembles the object form: magic, total length,
// origin, flags (including the relocatable bit), entry point, fixup
// table length and contents, then the code.
func buildObjectHeaderBytes(payload []byte, fixups []uint32, entry int64, opts Options) ([]byte, error) {
	var flags uint16
	if opts.Relocatable {
		flags |= flagRelocatable
	}

	total := objectHeaderLen + len(payload) + 4*len(fixups)
	out := make([]byte, 0, total)
	out = append(out, objectMagic[:]...)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = binary.BigEndian.AppendUint32(out, opts.Base)
	out = binary.BigEndian.AppendUint16(out, flags)
	if entry < 0 {
		entry = 0
	}
	out = binary.BigEndian.AppendUint32(out, uint32(entry))
	out = binary.BigEndian.AppendUint32(out, uint32(len(fixups)))
	for _, f := range fixups {
		out = binary.BigEndian.AppendUint32(out, f)
	}
	out = append(out, payload...)
	return out, nil
}

// ParseObject reverses buildObjectHeaderBytes, for callers (the pack
// command, the debug sidecar, tests) that need to inspect an object's
// header without re-running the assembler.
func ParseObject(data []byte) (*Object, error) {
	if len(data) < objectHeaderLen || string(data[:4]) != string(objectMagic[:]) {
		return nil, fmt.Errorf("not an orgtool object: bad magic")
	}
	total := binary.BigEndian.Uint32(data[4:8])
	if int(total) != len(data) {
		return nil, fmt.Errorf("object length mismatch: header says %d, got %d", total, len(data))
	}
	base := binary.BigEndian.Uint32(data[8:12])
	flags := binary.BigEndian.Uint16(data[12:14])
	entry := binary.BigEndian.Uint32(data[14:18])
	fixupCount := binary.BigEndian.Uint32(data[18:22])
	pos := objectHeaderLen
	fixups := make([]uint32, fixupCount)
	for i := range fixups {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("truncated fixup table")
		}
		fixups[i] = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	code := data[pos:]
	return &Object{
		Form:        FormObject,
		Base:        base,
		Entry:       int64(entry),
		Relocatable: flags&flagRelocatable != 0,
		Code:        code,
		Fixups:      fixups,
		Bytes:       data,
	}, nil
}
