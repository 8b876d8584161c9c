package build

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon6303/orgtool/asm"
	"github.com/halcyon6303/orgtool/cc"
	"github.com/halcyon6303/orgtool/machine"
	"github.com/halcyon6303/orgtool/pack"
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
)

const (
	loadBase  = uint32(0x0400)
	runBudget = 300_000
)

// runC compiles C sources, assembles the result, loads the bytes into a
// fresh CM machine's RAM, and runs from the entry point until the cycle
// budget expires.
func runC(t *testing.T, externals map[byte]machine.ExternalFunc, sources ...string) *machine.Machine {
	t.Helper()

	ccSources := make([]cc.Source, len(sources))
	for i, s := range sources {
		ccSources[i] = cc.Source{Name: "t" + string(rune('0'+i)) + ".c", Text: s}
	}
	res := CompileMultiC(ccSources, nil, "CM", CompileOptions{})
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())

	asmRes, bundle := Assemble(res.Assembly, nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        loadBase,
		EntrySymbol: res.EntrySymbol,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())

	m := machine.New(machine.ModelCM, externals)
	for i, b := range asmRes.Object.Code {
		m.Bus.Write(uint16(loadBase)+uint16(i), b)
	}
	m.CPU.PC = uint16(asmRes.Object.Entry)
	m.CPU.SP = 0x1F00
	m.Run(runBudget)
	return m
}

func TestEndToEndCharArithmetic(t *testing.T) {
	m := runC(t, nil, `
void main() {
	char a;
	char b;
	char c;
	a = 'A';
	b = ' ';
	c = a + b;
	putchar(c);
}
`)
	rows := m.DisplayText()
	assert.Equal(t, byte('a'), rows[0][0], "'A' + ' ' is lowercase 'a'")
}

func TestEndToEndSizeofStruct(t *testing.T) {
	m := runC(t, nil, `
struct P { int x; int y; };
void main() {
	print_int(sizeof(struct P));
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "4 "), "row 0 = %q", rows[0])
}

func TestEndToEndCounter(t *testing.T) {
	m := runC(t, nil, `
int count = 0;
void main() {
	count = count + 1;
	count = count + 1;
	count = count + 1;
	count = count - 1;
	print_int(count);
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "2 "), "row 0 = %q", rows[0])
}

func TestEndToEndExternalProcedure(t *testing.T) {
	externals := map[byte]machine.ExternalFunc{
		machine.FirstExternalSelector: func(args [4]uint16) (uint16, error) {
			return args[0] + args[1], nil
		},
	}
	m := runC(t, externals, `
external int ADDNUM(int a, int b);
void main() {
	print_int(ADDNUM(10, 32));
}
`)
	rows := m.DisplayText()
	assert.Contains(t, rows[0], "42")
}

func TestEndToEndSoftwareMultiplyDivide(t *testing.T) {
	m := runC(t, nil, `
void main() {
	int a;
	int b;
	a = 22;
	b = 7;
	print_int(a * b);
	putchar(' ');
	print_int(a / b);
	putchar(' ');
	print_int(a % b);
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "154 3 1"), "row 0 = %q", rows[0])
}

func TestEndToEndShifts(t *testing.T) {
	m := runC(t, nil, `
void main() {
	int v;
	int n;
	v = 3;
	n = 4;
	print_int(v << n);
	putchar(' ');
	print_int(v << 2);
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "48 12"), "row 0 = %q", rows[0])
}

func TestEndToEndControlFlow(t *testing.T) {
	m := runC(t, nil, `
int fib(int n) {
	int a;
	int b;
	int tmp;
	int i;
	a = 0;
	b = 1;
	i = 0;
	while (i < n) {
		tmp = a + b;
		a = b;
		b = tmp;
		i = i + 1;
	}
	return a;
}
void main() {
	print_int(fib(10));
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "55 "), "row 0 = %q", rows[0])
}

func TestEndToEndSwitch(t *testing.T) {
	m := runC(t, nil, `
int pick(int v) {
	switch (v) {
	case 1:
		return 10;
	case 2:
		return 20;
	default:
		return 0;
	}
}
void main() {
	print_int(pick(2) + pick(1) + pick(9));
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "30 "), "row 0 = %q", rows[0])
}

func TestEndToEndArraysAndPointers(t *testing.T) {
	m := runC(t, nil, `
int sum(int *vals, int n) {
	int total;
	int i;
	total = 0;
	i = 0;
	while (i < n) {
		total = total + vals[i];
		i = i + 1;
	}
	return total;
}
void main() {
	int nums[4];
	nums[0] = 3;
	nums[1] = 5;
	nums[2] = 7;
	nums[3] = 11;
	print_int(sum(nums, 4));
}
`)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "26 "), "row 0 = %q", rows[0])
}

func TestEndToEndMultiFileBuild(t *testing.T) {
	lib := `
int double_it(int v) {
	return v * 2;
}
`
	main := `
int double_it(int v);
void main() {
	print_int(double_it(21));
}
`
	m := runC(t, nil, main, lib)
	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "42 "), "row 0 = %q", rows[0])
}

func TestEndToEndHelloString(t *testing.T) {
	m := runC(t, nil, `
void show(char *s) {
	int i;
	i = 0;
	while (s[i] != 0) {
		putchar(s[i]);
		i = i + 1;
	}
}
void main() {
	show("Hello, Psion!");
}
`)
	rows := m.DisplayText()
	assert.Equal(t, "Hello, Psion!   ", rows[0])
	assert.Equal(t, strings.Repeat(" ", 16), rows[1])
}

func TestEndToEndKeyScan(t *testing.T) {
	res := CompileMultiC([]cc.Source{{Name: "t.c", Text: `
void main() {
	char k;
	k = keyscan();
	while (k == 0) {
		k = keyscan();
	}
	print_int(k);
}
`}}, nil, "CM", CompileOptions{})
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())

	asmRes, bundle := Assemble(res.Assembly, nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        loadBase,
		EntrySymbol: res.EntrySymbol,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())

	m := machine.New(machine.ModelCM, nil)
	for i, b := range asmRes.Object.Code {
		m.Bus.Write(uint16(loadBase)+uint16(i), b)
	}
	m.CPU.PC = uint16(asmRes.Object.Entry)
	m.CPU.SP = 0x1F00
	m.TapKey(keyboard.KeyPlus, 1_000_000)
	m.Run(runBudget)

	rows := m.DisplayText()
	assert.True(t, strings.HasPrefix(rows[0], "8 "), "row 0 = %q (scan code of '+')", rows[0])
}

// relocSource prints "AB" via two internal subroutine calls whose operands
// need fixing up when the image moves.
const relocSource = `
	org $0200
start
	lds #$1e00
	jsr emita
	jsr emitb
idle
	wai
	bra idle
emita
	ldd #$0041
	bra emit
emitb
	ldd #$0042
emit
	pshb
	psha
	ldab #1
	swi
	fcb 0
	ins
	ins
	rts
`

func runImageAt(t *testing.T, image []byte, at uint16) *machine.Machine {
	t.Helper()
	m := machine.New(machine.ModelCM, nil)
	for i, b := range image {
		m.Bus.Write(at+uint16(i), b)
	}
	m.CPU.PC = at
	m.CPU.SP = 0x1D00
	m.Run(200_000)
	return m
}

func TestSelfRelocationRunsAtTwoBases(t *testing.T) {
	res, bundle := Assemble(relocSource, nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        0x0200,
		Relocatable: true,
		EntrySymbol: "start",
	})
	require.False(t, bundle.HasErrors(), bundle.Error())
	require.Len(t, res.Object.Fixups, 2, "exactly the two JSR operands need fixups")

	m1 := runImageAt(t, res.Object.Code, 0x0200)
	m2 := runImageAt(t, res.Object.Code, 0x0300)

	rows1 := m1.DisplayText()
	rows2 := m2.DisplayText()
	assert.True(t, strings.HasPrefix(rows1[0], "AB"), "row 0 = %q", rows1[0])
	assert.Equal(t, rows1, rows2, "identical output from both load addresses")
}

func TestAssembleProducesListingAndDebug(t *testing.T) {
	res, bundle := Assemble("\torg $0100\nstart\n\tnop\n\trts\n", nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        0x0100,
		EntrySymbol: "start",
		WantListing: true,
		WantDebug:   true,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Contains(t, res.Listing, "0100")
	assert.Contains(t, res.Listing, "nop")
	assert.Contains(t, res.Debug, "target: CM")
	assert.Contains(t, res.Debug, "relocatable: false")
}

func TestPackSurfaceRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x39, 0x20, 0xFE}
	img, bundle := PackCreate([]pack.Record{
		{Name: "DEMO", Type: pack.RecordProcedure, Payload: payload},
	}, pack.Size8K)
	require.Nil(t, bundle)

	dir, bundle := PackInspect(img)
	require.Nil(t, bundle)
	require.Len(t, dir, 1)
	assert.Equal(t, "DEMO", dir[0].Name)

	got, bundle := PackExtract(img, "demo")
	require.Nil(t, bundle)
	assert.Equal(t, payload, got)
}

func TestEmulatorSurface(t *testing.T) {
	emu, err := NewEmulator("CM", nil)
	require.NoError(t, err)

	img, perr := pack.Create([]pack.Record{
		{Name: "MAIN", Type: pack.RecordProcedure, Payload: []byte{0x01, 0x39}},
	}, pack.Size8K, time.Unix(0, 0))
	require.NoError(t, perr)
	require.NoError(t, emu.LoadPack(img, 0))
	assert.Error(t, emu.LoadPack(img, 9), "slot index out of range")

	rows := emu.DisplayText()
	require.Len(t, rows, 2)
	assert.Equal(t, strings.Repeat(" ", 16), rows[0])
}

func TestFourLineBuildLeavesTwoLineMachineGracefully(t *testing.T) {
	src := `void main() { print_int(4); }`
	res := CompileMultiC([]cc.Source{{Name: "t.c", Text: src}}, nil, "LZ64", CompileOptions{})
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())
	require.Contains(t, res.Assembly, "geombad", "4-line builds carry the geometry guard")

	asmRes, bundle := Assemble(res.Assembly, nil, "LZ64", AssembleOptions{
		Form:        asm.FormObject,
		Base:        loadBase,
		EntrySymbol: res.EntrySymbol,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())

	run := func(model machine.Model) *machine.Machine {
		m := machine.New(model, nil)
		for i, b := range asmRes.Object.Code {
			m.Bus.Write(uint16(loadBase)+uint16(i), b)
		}
		m.CPU.PC = uint16(asmRes.Object.Entry)
		m.CPU.SP = 0x1F00
		m.Run(100_000)
		return m
	}

	two := run(machine.ModelCM)
	assert.Equal(t, strings.Repeat(" ", 16), two.DisplayText()[0], "2-line machine left untouched")
	assert.True(t, two.CPU.Waiting, "parked in WAI instead of crashing")

	four := run(machine.ModelLZ64)
	assert.True(t, strings.HasPrefix(four.DisplayText()[0], "4 "), "row 0 = %q", four.DisplayText()[0])
}

func TestMixedCAndAssemblyBuild(t *testing.T) {
	asmLib := `
blinker
	ldd #7
	rts
`
	main := `
int blinker();
void main() { print_int(blinker()); }
`
	res := BuildProgram([]cc.Source{{Name: "main.c", Text: main}}, []string{asmLib}, nil, "CM", CompileOptions{})
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())

	asmRes, bundle := Assemble(res.Assembly, nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        loadBase,
		EntrySymbol: res.EntrySymbol,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())

	m := machine.New(machine.ModelCM, nil)
	for i, b := range asmRes.Object.Code {
		m.Bus.Write(uint16(loadBase)+uint16(i), b)
	}
	m.CPU.PC = uint16(asmRes.Object.Entry)
	m.CPU.SP = 0x1F00
	m.Run(runBudget)
	assert.True(t, strings.HasPrefix(m.DisplayText()[0], "7 "), "row 0 = %q", m.DisplayText()[0])
}

func TestCompilationIsDeterministic(t *testing.T) {
	src := `
int count = 0;
void main() {
	count = count + 3;
	print_int(count * 5);
}
`
	first := CompileMultiC([]cc.Source{{Name: "t.c", Text: src}}, nil, "CM", CompileOptions{})
	second := CompileMultiC([]cc.Source{{Name: "t.c", Text: src}}, nil, "CM", CompileOptions{})
	require.False(t, first.Bundle.HasErrors())
	assert.Equal(t, first.Assembly, second.Assembly)

	a1, b1 := Assemble(first.Assembly, nil, "CM", AssembleOptions{Form: asm.FormRaw, Base: loadBase})
	a2, b2 := Assemble(second.Assembly, nil, "CM", AssembleOptions{Form: asm.FormRaw, Base: loadBase})
	require.False(t, b1.HasErrors() || b2.HasErrors())
	assert.Equal(t, a1.Object.Bytes, a2.Object.Bytes)
}

func TestDebugSidecarCarriesSymbolsAndLines(t *testing.T) {
	res, bundle := Assemble("\torg $0100\nstart\n\tnop\nloop\n\tbra loop\n", nil, "CM", AssembleOptions{
		Form:        asm.FormObject,
		Base:        0x0100,
		EntrySymbol: "start",
		WantDebug:   true,
	})
	require.False(t, bundle.HasErrors(), bundle.Error())
	assert.Contains(t, res.Debug, "[symbols]")
	assert.Contains(t, res.Debug, "start 0x0100 code")
	assert.Contains(t, res.Debug, "loop 0x0101 code")
	assert.Contains(t, res.Debug, "[lines]")
	assert.Contains(t, res.Debug, "input.asm:3")
}

func TestUnknownModelRejected(t *testing.T) {
	_, bundle := Assemble("\tnop\n", nil, "PDP11", AssembleOptions{})
	assert.True(t, bundle.HasErrors())

	_, err := NewEmulator("PDP11", nil)
	assert.Error(t, err)
}
