package isa

// Width distinguishes 8-bit accumulator operations from 16-bit
// register-pair/index operations; it drives both the assembler's operand
// size and the CPU's flag logic.
type Width int

const (
	Width8 Width = iota
	Width16
)

// Encoding is one (mnemonic, addressing mode) pairing: the opcode byte(s)
// HD6303 uses for it, how many operand bytes follow, the register width it
// operates on, whether it's a read-modify-write on its operand, and its
// documented cycle cost.
//
// AIM/OIM/EIM/TIM (the HD6303-specific memory-immediate bit ops) carry an
// extra leading immediate mask byte ahead of the address operand; ExtraImm
// marks that.
type Encoding struct {
	Mnemonic    string
	Mode        Mode
	Opcode      byte
	OperandSize int // bytes following the opcode (not counting ExtraImm)
	ExtraImm    bool
	Width       Width
	ReadModifyWrite bool
	Cycles      int
}

// Size returns the total encoded instruction length in bytes, opcode
// included.
func (e Encoding) Size() int {
	n := 1 + e.OperandSize
	if e.ExtraImm {
		n++
	}
	return n
}

// byMnemonic maps a lower-case mnemonic to its available addressing modes.
var byMnemonic = map[string]map[Mode]Encoding{}

// byOpcode maps the opcode byte to its encoding, for decode and
// disassembly. HD6303 opcodes are one byte; there is no overlap.
var byOpcode [256]*Encoding

func reg(e Encoding) {
	if byMnemonic[e.Mnemonic] == nil {
		byMnemonic[e.Mnemonic] = map[Mode]Encoding{}
	}
	byMnemonic[e.Mnemonic][e.Mode] = e
	cp := e
	byOpcode[e.Opcode] = &cp
}

// Lookup returns the encoding for a mnemonic in a given addressing mode.
func Lookup(mnemonic string, mode Mode) (Encoding, bool) {
	modes, ok := byMnemonic[mnemonic]
	if !ok {
		return Encoding{}, false
	}
	e, ok := modes[mode]
	return e, ok
}

// Modes returns the set of addressing modes a mnemonic supports.
func Modes(mnemonic string) map[Mode]Encoding {
	return byMnemonic[mnemonic]
}

// Decode returns the encoding for an opcode byte.
func Decode(opcode byte) (Encoding, bool) {
	e := byOpcode[opcode]
	if e == nil {
		return Encoding{}, false
	}
	return *e, true
}

// Known reports whether mnemonic names a real HD6303 instruction.
func Known(mnemonic string) bool {
	_, ok := byMnemonic[mnemonic]
	return ok
}

func init() {
	registerInherent()
	registerBranches()
	registerAccumulatorA()
	registerAccumulatorB()
	registerReadModifyWrite()
	registerIndexWordOps()
	registerMemoryImmediateBitOps()
}

func registerInherent() {
	type spec struct {
		mn     string
		opcode byte
		cycles int
		width  Width
	}
	specs := []spec{
		{"nop", 0x01, 2, Width8},
		{"lsrd", 0x04, 3, Width16},
		{"asld", 0x05, 3, Width16},
		{"tap", 0x06, 2, Width8},
		{"tpa", 0x07, 2, Width8},
		{"inx", 0x08, 4, Width16},
		{"dex", 0x09, 4, Width16},
		{"clv", 0x0A, 2, Width8},
		{"sev", 0x0B, 2, Width8},
		{"clc", 0x0C, 2, Width8},
		{"sec", 0x0D, 2, Width8},
		{"cli", 0x0E, 2, Width8},
		{"sei", 0x0F, 2, Width8},
		{"sba", 0x10, 2, Width8},
		{"cba", 0x11, 2, Width8},
		{"xgdx", 0x18, 3, Width16},
		{"slp", 0x1A, 4, Width8},
		{"tab", 0x16, 2, Width8},
		{"tba", 0x17, 2, Width8},
		{"daa", 0x19, 2, Width8},
		{"aba", 0x1B, 2, Width8},
		{"tsx", 0x30, 4, Width16},
		{"ins", 0x31, 4, Width16},
		{"pula", 0x32, 3, Width8},
		{"pulb", 0x33, 3, Width8},
		{"des", 0x34, 4, Width16},
		{"txs", 0x35, 4, Width16},
		{"psha", 0x36, 4, Width8},
		{"pshb", 0x37, 4, Width8},
		{"pulx", 0x38, 5, Width16},
		{"rts", 0x39, 5, Width8},
		{"abx", 0x3A, 3, Width16},
		{"rti", 0x3B, 10, Width8},
		{"pshx", 0x3C, 5, Width16},
		{"mul", 0x3D, 10, Width16},
		{"wai", 0x3E, 9, Width8},
		{"swi", 0x3F, 12, Width8},
	}
	for _, s := range specs {
		reg(Encoding{Mnemonic: s.mn, Mode: ModeInherent, Opcode: s.opcode, Width: s.width, Cycles: s.cycles})
	}
}

func registerBranches() {
	type spec struct {
		mn     string
		opcode byte
	}
	specs := []spec{
		{"bra", 0x20}, {"brn", 0x21}, {"bhi", 0x22}, {"bls", 0x23},
		{"bcc", 0x24}, {"bcs", 0x25}, {"bne", 0x26}, {"beq", 0x27},
		{"bvc", 0x28}, {"bvs", 0x29}, {"bpl", 0x2A}, {"bmi", 0x2B},
		{"bge", 0x2C}, {"blt", 0x2D}, {"bgt", 0x2E}, {"ble", 0x2F},
	}
	for _, s := range specs {
		reg(Encoding{Mnemonic: s.mn, Mode: ModeRelative, Opcode: s.opcode, OperandSize: 1, Cycles: 3})
	}
	reg(Encoding{Mnemonic: "bsr", Mode: ModeRelative, Opcode: 0x8D, OperandSize: 1, Cycles: 6})
}

// registerAccumulatorA registers two-operand (imm/dir/idx/ext) opcodes for
// accumulator A, plus JSR/LDS/STS/CPX which share the same opcode rows.
func registerAccumulatorA() {
	type row struct {
		mn               string
		imm, dir, idx, ext byte
		immSize          int
		width            Width
		hasImm           bool
	}
	rows := []row{
		{"suba", 0x80, 0x90, 0xA0, 0xB0, 1, Width8, true},
		{"cmpa", 0x81, 0x91, 0xA1, 0xB1, 1, Width8, true},
		{"sbca", 0x82, 0x92, 0xA2, 0xB2, 1, Width8, true},
		{"subd", 0x83, 0x93, 0xA3, 0xB3, 2, Width16, true},
		{"anda", 0x84, 0x94, 0xA4, 0xB4, 1, Width8, true},
		{"bita", 0x85, 0x95, 0xA5, 0xB5, 1, Width8, true},
		{"ldaa", 0x86, 0x96, 0xA6, 0xB6, 1, Width8, true},
		{"staa", 0x00, 0x97, 0xA7, 0xB7, 0, Width8, false},
		{"eora", 0x88, 0x98, 0xA8, 0xB8, 1, Width8, true},
		{"adca", 0x89, 0x99, 0xA9, 0xB9, 1, Width8, true},
		{"oraa", 0x8A, 0x9A, 0xAA, 0xBA, 1, Width8, true},
		{"adda", 0x8B, 0x9B, 0xAB, 0xBB, 1, Width8, true},
		{"cpx", 0x8C, 0x9C, 0xAC, 0xBC, 2, Width16, true},
		{"lds", 0x8E, 0x9E, 0xAE, 0xBE, 2, Width16, true},
		{"sts", 0x00, 0x9F, 0xAF, 0xBF, 0, Width16, false},
	}
	for _, r := range rows {
		if r.hasImm {
			reg(Encoding{Mnemonic: r.mn, Mode: ModeImmediate, Opcode: r.imm, OperandSize: r.immSize, Width: r.width, Cycles: 2 + r.immSize})
		}
		dirSize := 1
		reg(Encoding{Mnemonic: r.mn, Mode: ModeDirect, Opcode: r.dir, OperandSize: dirSize, Width: r.width, Cycles: 3 + int(r.width)})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeIndexed, Opcode: r.idx, OperandSize: 1, Width: r.width, Cycles: 4 + int(r.width)})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeExtended, Opcode: r.ext, OperandSize: 2, Width: r.width, Cycles: 4 + int(r.width)})
	}
	// JSR has no immediate or direct form, only indexed and extended.
	reg(Encoding{Mnemonic: "jsr", Mode: ModeIndexed, Opcode: 0xAD, OperandSize: 1, Width: Width16, Cycles: 6})
	reg(Encoding{Mnemonic: "jsr", Mode: ModeExtended, Opcode: 0xBD, OperandSize: 2, Width: Width16, Cycles: 6})
}

func registerAccumulatorB() {
	type row struct {
		mn                 string
		imm, dir, idx, ext byte
		immSize            int
		width              Width
		hasImm             bool
	}
	rows := []row{
		{"subb", 0xC0, 0xD0, 0xE0, 0xF0, 1, Width8, true},
		{"cmpb", 0xC1, 0xD1, 0xE1, 0xF1, 1, Width8, true},
		{"sbcb", 0xC2, 0xD2, 0xE2, 0xF2, 1, Width8, true},
		{"addd", 0xC3, 0xD3, 0xE3, 0xF3, 2, Width16, true},
		{"andb", 0xC4, 0xD4, 0xE4, 0xF4, 1, Width8, true},
		{"bitb", 0xC5, 0xD5, 0xE5, 0xF5, 1, Width8, true},
		{"ldab", 0xC6, 0xD6, 0xE6, 0xF6, 1, Width8, true},
		{"stab", 0x00, 0xD7, 0xE7, 0xF7, 0, Width8, false},
		{"eorb", 0xC8, 0xD8, 0xE8, 0xF8, 1, Width8, true},
		{"adcb", 0xC9, 0xD9, 0xE9, 0xF9, 1, Width8, true},
		{"orab", 0xCA, 0xDA, 0xEA, 0xFA, 1, Width8, true},
		{"addb", 0xCB, 0xDB, 0xEB, 0xFB, 1, Width8, true},
		{"ldd", 0xCC, 0xDC, 0xEC, 0xFC, 2, Width16, true},
		{"std", 0x00, 0xDD, 0xED, 0xFD, 0, Width16, false},
		{"ldx", 0xCE, 0xDE, 0xEE, 0xFE, 2, Width16, true},
		{"stx", 0x00, 0xDF, 0xEF, 0xFF, 0, Width16, false},
	}
	for _, r := range rows {
		if r.hasImm {
			reg(Encoding{Mnemonic: r.mn, Mode: ModeImmediate, Opcode: r.imm, OperandSize: r.immSize, Width: r.width, Cycles: 2 + r.immSize})
		}
		reg(Encoding{Mnemonic: r.mn, Mode: ModeDirect, Opcode: r.dir, OperandSize: 1, Width: r.width, Cycles: 3 + int(r.width)})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeIndexed, Opcode: r.idx, OperandSize: 1, Width: r.width, Cycles: 4 + int(r.width)})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeExtended, Opcode: r.ext, OperandSize: 2, Width: r.width, Cycles: 4 + int(r.width)})
	}
}

// registerReadModifyWrite registers the single-operand read-modify-write
// family (NEG, COM, LSR, ROR, ASR, ASL, ROL, DEC, INC, TST, CLR) in their
// accumulator-A, accumulator-B, indexed, and extended forms, plus JMP which
// shares the same opcode rows but isn't itself a read-modify-write.
func registerReadModifyWrite() {
	type row struct {
		mn                    string
		a, b, idx, ext        byte
		hasA, hasB, rmw       bool
	}
	rows := []row{
		{"neg", 0x40, 0x50, 0x60, 0x70, true, true, true},
		{"com", 0x43, 0x53, 0x63, 0x73, true, true, true},
		{"lsr", 0x44, 0x54, 0x64, 0x74, true, true, true},
		{"ror", 0x46, 0x56, 0x66, 0x76, true, true, true},
		{"asr", 0x47, 0x57, 0x67, 0x77, true, true, true},
		{"asl", 0x48, 0x58, 0x68, 0x78, true, true, true},
		{"rol", 0x49, 0x59, 0x69, 0x79, true, true, true},
		{"dec", 0x4A, 0x5A, 0x6A, 0x7A, true, true, true},
		{"inc", 0x4C, 0x5C, 0x6C, 0x7C, true, true, true},
		{"tst", 0x4D, 0x5D, 0x6D, 0x7D, true, true, false},
		{"jmp", 0x00, 0x00, 0x6E, 0x7E, false, false, false},
		{"clr", 0x4F, 0x5F, 0x6F, 0x7F, true, true, true},
	}
	for _, r := range rows {
		if r.hasA {
			reg(Encoding{Mnemonic: r.mn + "a", Mode: ModeInherent, Opcode: r.a, Width: Width8, ReadModifyWrite: r.rmw, Cycles: 2})
		}
		if r.hasB {
			reg(Encoding{Mnemonic: r.mn + "b", Mode: ModeInherent, Opcode: r.b, Width: Width8, ReadModifyWrite: r.rmw, Cycles: 2})
		}
		reg(Encoding{Mnemonic: r.mn, Mode: ModeIndexed, Opcode: r.idx, OperandSize: 1, Width: Width8, ReadModifyWrite: r.rmw, Cycles: 6})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeExtended, Opcode: r.ext, OperandSize: 2, Width: Width8, ReadModifyWrite: r.rmw, Cycles: 6})
	}
	// JMP isn't inherent in any form and has no accumulator form.
	delete(byMnemonic["jmp"], ModeInherent)
}

func registerIndexWordOps() {
	// No additional entries: LDX/STX/CPX/LDS/STS are registered alongside
	// the accumulator rows above since they share those opcode columns.
}

// registerMemoryImmediateBitOps registers the HD6303-specific
// AND/OR/EOR/TEST-immediate-with-memory instructions. Each takes an
// immediate mask byte followed by a direct or indexed address byte.
func registerMemoryImmediateBitOps() {
	type row struct {
		mn       string
		dir, idx byte
	}
	rows := []row{
		{"aim", 0x71, 0x61},
		{"oim", 0x72, 0x62},
		{"eim", 0x75, 0x65},
		{"tim", 0x7B, 0x6B},
	}
	for _, r := range rows {
		rmw := r.mn != "tim"
		reg(Encoding{Mnemonic: r.mn, Mode: ModeDirect, Opcode: r.dir, OperandSize: 1, ExtraImm: true, Width: Width8, ReadModifyWrite: rmw, Cycles: 6})
		reg(Encoding{Mnemonic: r.mn, Mode: ModeIndexed, Opcode: r.idx, OperandSize: 1, ExtraImm: true, Width: Width8, ReadModifyWrite: rmw, Cycles: 7})
	}
}
