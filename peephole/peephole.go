// Package peephole applies the assembler's fixed, safe post-encoding
// rewrite rules to a sized and byte-encoded instruction
// stream. Apart from the compare-to-test rewrite, which replaces a
// compare's bytes with the shorter test encoding, it only marks some
// instructions deleted; it never touches source positions or relocation
// classification.
package peephole

// Entry is one stream position as the optimiser sees it: either a label (no
// bytes, breaks physical adjacency between the instructions on either side
// of it) or an encoded instruction.
type Entry struct {
	IsLabel       bool
	IsInstruction bool
	Mnemonic      string
	Bytes         []byte
	// Unconditional marks an instruction that never falls through (JMP,
	// BRA, RTS, RTI): code between it and the next label is unreachable.
	Unconditional bool
}

// InstructionStream is the minimal view peephole needs of the assembler's
// node list, kept abstract so this package never imports asm (asm imports
// peephole to run it).
type InstructionStream interface {
	Len() int
	At(i int) Entry
	Delete(i int)
	// Replace overwrites position i's encoded bytes with a shorter,
	// flag-equivalent encoding (used only by the compare-to-test rule).
	Replace(i int, bytes []byte)
}

var loadMnemonics = map[string]bool{
	"ldaa": true, "ldab": true, "ldd": true, "ldx": true, "lds": true,
}

// Apply walks s once per rule: it rewrites compare-with-zero to test through
// s.Replace, then marks provably redundant or unreachable instructions
// deleted. It reports whether anything changed.
func Apply(s InstructionStream) bool {
	changed := rewriteCompareZero(s)
	changed = removeRedundantPushPull(s) || changed
	changed = removeDeadLoads(s) || changed
	changed = removeRedundantTSX(s) || changed
	changed = removeUnreachable(s) || changed
	return changed
}

// rewriteCompareZero replaces "compare accumulator with immediate zero"
// with the one-byte-shorter, flag-equivalent "test accumulator". Both forms clear V and set N/Z from the (unchanged) accumulator
// value and leave carry exactly as compare-to-zero would, so this never
// touches carry-flag behaviour.
func rewriteCompareZero(s InstructionStream) bool {
	const cmpaOpcodeImm, tstaOpcode = 0x81, 0x4D
	const cmpbOpcodeImm, tstbOpcode = 0xC1, 0x5D
	changed := false
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		if !e.IsInstruction || len(e.Bytes) != 2 || e.Bytes[1] != 0 {
			continue
		}
		switch {
		case e.Mnemonic == "cmpa" && e.Bytes[0] == cmpaOpcodeImm:
			s.Replace(i, []byte{tstaOpcode})
			changed = true
		case e.Mnemonic == "cmpb" && e.Bytes[0] == cmpbOpcodeImm:
			s.Replace(i, []byte{tstbOpcode})
			changed = true
		}
	}
	return changed
}

// prevInstruction returns the instruction Entry immediately preceding
// position i with no label in between, and whether one exists.
func prevInstruction(s InstructionStream, i int) (Entry, int, bool) {
	if i <= 0 {
		return Entry{}, -1, false
	}
	e := s.At(i - 1)
	if e.IsInstruction {
		return e, i - 1, true
	}
	return Entry{}, -1, false
}

func removeRedundantPushPull(s InstructionStream) bool {
	pairs := map[string]string{"psha": "pula", "pshb": "pulb", "pshx": "pulx"}
	changed := false
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		if !e.IsInstruction {
			continue
		}
		want, ok := pairs[e.Mnemonic]
		if !ok {
			continue
		}
		if i+1 >= s.Len() {
			continue
		}
		next := s.At(i + 1)
		if next.IsInstruction && next.Mnemonic == want {
			s.Delete(i)
			s.Delete(i + 1)
			changed = true
			i++
		}
	}
	return changed
}

func removeDeadLoads(s InstructionStream) bool {
	changed := false
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		if !e.IsInstruction || !loadMnemonics[e.Mnemonic] {
			continue
		}
		prev, prevIdx, ok := prevInstruction(s, i)
		if !ok || prev.Mnemonic != e.Mnemonic {
			continue
		}
		// An indexed LDX reads X as its address, so it uses the value the
		// earlier LDX loaded.
		const ldxIndexedOpcode = 0xEE
		if e.Mnemonic == "ldx" && len(e.Bytes) > 0 && e.Bytes[0] == ldxIndexedOpcode {
			continue
		}
		// prev loads the same register with no intervening use (nothing
		// sits between prev and e): prev is a dead store.
		s.Delete(prevIdx)
		changed = true
	}
	return changed
}

func removeRedundantTSX(s InstructionStream) bool {
	changed := false
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		if !e.IsInstruction || e.Mnemonic != "tsx" {
			continue
		}
		prev, prevIdx, ok := prevInstruction(s, i)
		if ok && prev.Mnemonic == "tsx" {
			s.Delete(prevIdx)
			changed = true
		}
	}
	return changed
}

func removeUnreachable(s InstructionStream) bool {
	deleting := false
	changed := false
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		if e.IsLabel {
			deleting = false
			continue
		}
		if !e.IsInstruction {
			continue
		}
		if deleting {
			s.Delete(i)
			changed = true
			continue
		}
		if e.Unconditional {
			deleting = true
		}
	}
	return changed
}
