package cc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOne(t *testing.T, src string) Result {
	t.Helper()
	return CompileMulti([]Source{{Name: "test.c", Text: src}}, CompileOptions{})
}

func requireClean(t *testing.T, res Result) {
	t.Helper()
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())
}

func TestCompileEmptyMain(t *testing.T) {
	res := compileOne(t, `void main() { }`)
	requireClean(t, res)
	assert.Equal(t, "start", res.EntrySymbol)
	assert.Contains(t, res.Assembly, "\tjsr main")
	assert.Contains(t, res.Assembly, "main\n")
}

func TestMissingMainIsFatal(t *testing.T) {
	res := compileOne(t, `int f() { return 1; }`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "main")
}

func TestDuplicateMainAcrossUnits(t *testing.T) {
	res := CompileMulti([]Source{
		{Name: "a.c", Text: `void main() { }`},
		{Name: "b.c", Text: `void main() { }`},
	}, CompileOptions{})
	assert.True(t, res.Bundle.HasErrors())
}

func TestCharArithmeticSelectsByteOps(t *testing.T) {
	res := compileOne(t, `
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
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\taddb")
	assert.NotContains(t, res.Assembly, "\taddd")
}

func TestMixedWidthArithmeticRejected(t *testing.T) {
	res := compileOne(t, `
void main() {
	char c;
	int i;
	c = 'x';
	i = 0;
	i = c + i;
}
`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "8-bit")
}

func TestMixedWidthWithCastAccepted(t *testing.T) {
	res := compileOne(t, `
void main() {
	char c;
	int i;
	c = 'x';
	i = 0;
	i = (int)c + i;
}
`)
	requireClean(t, res)
}

func TestSizeofStruct(t *testing.T) {
	res := compileOne(t, `
struct P { int x; int y; };
void main() {
	print_int(sizeof(struct P));
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tldd #4")
}

func TestStructOver255BytesRejected(t *testing.T) {
	res := compileOne(t, `
struct Big { char buf[300]; };
void main() { }
`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "255")
}

func TestStructFieldOffsets(t *testing.T) {
	res := compileOne(t, `
struct P { char tag; int x; int y; };
void main() {
	struct P p;
	p.y = 7;
	print_int(p.y);
}
`)
	requireClean(t, res)
	// tag is 1 byte, x is 2, so y sits at offset 3.
	assert.Contains(t, res.Assembly, "\taddd #3")
}

func TestTypedefStructWithoutPrefix(t *testing.T) {
	res := compileOne(t, `
typedef struct Point { int x; int y; } PointT;
PointT origin;
void main() {
	origin.x = 1;
}
`)
	requireClean(t, res)
}

func TestPowerOfTwoMultiplyLowersToShift(t *testing.T) {
	res := compileOne(t, `
void main() {
	int i;
	i = 3;
	i = i * 8;
	print_int(i);
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tasld")
	assert.NotContains(t, res.Assembly, "ccmul16")
}

func TestNonPowerOfTwoMultiplyCallsHelper(t *testing.T) {
	res := compileOne(t, `
void main() {
	int i;
	i = 3;
	i = i * 7;
	print_int(i);
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "jsr ccmul16")
	assert.Contains(t, res.Assembly, "ccmul16\n")
}

func TestShiftByVariableEmitsShiftHelper(t *testing.T) {
	res := compileOne(t, `
void main() {
	int i;
	int n;
	i = 1;
	n = 3;
	i = i << n;
	print_int(i);
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "jsr ccshl")
	assert.Contains(t, res.Assembly, "ccshl\n")
}

func TestStringLiteralsDeduplicated(t *testing.T) {
	res := compileOne(t, `
void show(char *s) { }
void main() {
	show("hi");
	show("hi");
	show("other");
}
`)
	requireClean(t, res)
	assert.Equal(t, 1, strings.Count(res.Assembly, `fcc "hi"`))
	assert.Equal(t, 1, strings.Count(res.Assembly, `fcc "other"`))
}

func TestObjectMacroExpansion(t *testing.T) {
	res := compileOne(t, `
#define LIMIT 5
void main() {
	int i;
	i = LIMIT;
	print_int(i);
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tldd #5")
}

func TestFunctionMacroExpansion(t *testing.T) {
	res := compileOne(t, `
#define TWICE(x) ((x) + (x))
void main() {
	int i;
	i = TWICE(3);
	print_int(i);
}
`)
	requireClean(t, res)
	// Constant folding collapses (3)+(3) to 6.
	assert.Contains(t, res.Assembly, "\tldd #6")
}

func TestConditionalCompilation(t *testing.T) {
	res := CompileMulti([]Source{{Name: "t.c", Text: `
#ifdef FOUR_LINE
void rows() { print_int(4); }
#else
void rows() { print_int(2); }
#endif
void main() { rows(); }
`}}, CompileOptions{Predefined: map[string]string{"FOUR_LINE": "1"}})
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tldd #4")
	assert.NotContains(t, res.Assembly, "\tldd #2\n")
}

func TestMacroSelfRecursionStops(t *testing.T) {
	res := compileOne(t, `
#define X X
void main() {
	int X;
	X = 1;
}
`)
	requireClean(t, res)
}

func TestUndeclaredIdentifierRejected(t *testing.T) {
	res := compileOne(t, `void main() { nowhere = 1; }`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "nowhere")
}

func TestExternSignatureMismatchAcrossUnits(t *testing.T) {
	res := CompileMulti([]Source{
		{Name: "a.c", Text: "int f(int a) { return a; }\nvoid main() { f(1); }"},
		{Name: "b.c", Text: "char f(char a);"},
	}, CompileOptions{})
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "different signature")
}

func TestArrayParamMatchesPointerParam(t *testing.T) {
	res := CompileMulti([]Source{
		{Name: "a.c", Text: "int sum(char *buf);\nvoid main() { }"},
		{Name: "b.c", Text: "int sum(char buf[8]) { return buf[0]; }"},
	}, CompileOptions{})
	require.False(t, res.Bundle.HasErrors(), res.Bundle.Error())
}

func TestExternalDeclarationAssignsSelectors(t *testing.T) {
	res := compileOne(t, `
external int ADDNUM(int a, int b);
void main() {
	print_int(ADDNUM(10, 32));
}
`)
	requireClean(t, res)
	// The external trap selector space starts at 16.
	assert.Contains(t, res.Assembly, "\tfcb 16")
	assert.Contains(t, res.Assembly, "\tswi")
}

func TestExternalNameOverEightCharsRejected(t *testing.T) {
	res := compileOne(t, `
external int LONGNAMED(int a);
void main() {
	LONGNAMED(1);
}
`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "8-character")
}

func TestExternalNameAtEightCharsAccepted(t *testing.T) {
	res := compileOne(t, `
external int EXACTLY8(int a);
void main() {
	print_int(EXACTLY8(1));
}
`)
	requireClean(t, res)
}

func TestExternalOverFourArgsRejected(t *testing.T) {
	res := compileOne(t, `
external int MANY(int a, int b, int c, int d, int e);
void main() {
	MANY(1, 2, 3, 4, 5);
}
`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "4-argument")
}

func TestGlobalInitialisers(t *testing.T) {
	res := compileOne(t, `
int count = 2;
char flag = 1;
int bare;
void main() { print_int(count); }
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "count fdb 2")
	assert.Contains(t, res.Assembly, "flag fcb 1")
	assert.Contains(t, res.Assembly, "bare rmb 2")
}

func TestLibraryModeOrdering(t *testing.T) {
	res := CompileMulti([]Source{
		{Name: "main.c", Text: "int helper(int v);\nvoid main() { print_int(helper(1)); }"},
		{Name: "lib.c", Text: "int helper(int v) { return v; }"},
	}, CompileOptions{})
	requireClean(t, res)
	// Library text precedes the main unit and its runtime entry.
	helperAt := strings.Index(res.Assembly, "helper\n")
	mainAt := strings.Index(res.Assembly, "main\n")
	startAt := strings.Index(res.Assembly, "start\n")
	require.True(t, helperAt >= 0 && mainAt >= 0 && startAt >= 0)
	assert.Less(t, helperAt, mainAt)
	assert.Less(t, mainAt, startAt)
}

func TestGotoAndLabels(t *testing.T) {
	res := compileOne(t, `
void main() {
	int i;
	i = 0;
again:
	i = i + 1;
	if (i < 3) goto again;
	print_int(i);
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "main_again")
}

func TestSwitchLowersToCompareChain(t *testing.T) {
	res := compileOne(t, `
void main() {
	int v;
	v = 2;
	switch (v) {
	case 1:
		print_int(10);
		break;
	case 2:
		print_int(20);
		break;
	default:
		print_int(0);
	}
}
`)
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tsubd #1")
	assert.Contains(t, res.Assembly, "\tsubd #2")
}

func TestForInitDeclarationRejected(t *testing.T) {
	res := compileOne(t, `
void main() {
	for (int i = 0; ; ) { break; }
}
`)
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "for initialiser")
}

func TestTrapInitEmittedOnceInMain(t *testing.T) {
	res := CompileMulti([]Source{
		{Name: "main.c", Text: "void main() { }"},
		{Name: "lib.c", Text: "int helper(int v) { return v; }"},
	}, CompileOptions{})
	requireClean(t, res)
	assert.Equal(t, 1, strings.Count(res.Assembly, "\tfcb 4"))
}

func TestIncludeResolution(t *testing.T) {
	inc := fakeIncluder{files: map[string]string{"defs.h": "#define ANSWER 42\n"}}
	res := CompileMulti([]Source{{Name: "t.c", Text: `
#include "defs.h"
void main() { print_int(ANSWER); }
`}}, CompileOptions{Includer: inc})
	requireClean(t, res)
	assert.Contains(t, res.Assembly, "\tldd #42")
}

func TestIncludeNotFoundIsFatal(t *testing.T) {
	inc := fakeIncluder{files: map[string]string{}}
	res := CompileMulti([]Source{{Name: "t.c", Text: `
#include "missing.h"
void main() { }
`}}, CompileOptions{Includer: inc})
	assert.True(t, res.Bundle.HasErrors())
	assert.Contains(t, res.Bundle.Error(), "missing.h")
}

type fakeIncluder struct {
	files map[string]string
}

func (f fakeIncluder) Read(name string, system bool) (string, string, bool) {
	text, ok := f.files[name]
	return text, name, ok
}
