package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyms struct {
	vals map[string]int64
	here int64
}

func (f fakeSyms) Lookup(name string) (int64, bool) { v, ok := f.vals[name]; return v, ok }
func (f fakeSyms) Here() int64                       { return f.here }

func TestEvalArithmetic(t *testing.T) {
	syms := fakeSyms{vals: map[string]int64{}}
	n := Binary("+", Const(2), Binary("*", Const(3), Const(4)))
	v, err := Eval(n, syms)
	require.NoError(t, err)
	assert.EqualValues(t, 14, v)
}

func TestEvalHighLow(t *testing.T) {
	syms := fakeSyms{}
	v, err := Eval(Unary("high", Const(0x1234)), syms)
	require.NoError(t, err)
	assert.EqualValues(t, 0x12, v)

	v, err = Eval(Unary("low", Const(0x1234)), syms)
	require.NoError(t, err)
	assert.EqualValues(t, 0x34, v)
}

func TestEvalHere(t *testing.T) {
	syms := fakeSyms{here: 0x8000}
	v, err := Eval(Here(), syms)
	require.NoError(t, err)
	assert.EqualValues(t, -32768, v, "0x8000 wraps to a negative 16-bit signed value")
}

func TestEvalWrapAround(t *testing.T) {
	syms := fakeSyms{}
	v, err := Eval(Binary("+", Const(0x7FFF), Const(1)), syms)
	require.NoError(t, err)
	assert.EqualValues(t, -32768, v)
}

func TestEvalDivisionByZeroIsFatal(t *testing.T) {
	syms := fakeSyms{}
	_, err := Eval(Binary("/", Const(10), Const(0)), syms)
	assert.ErrorContains(t, err, "division by zero")

	_, err = Eval(Binary("%", Const(10), Const(0)), syms)
	assert.ErrorContains(t, err, "modulo by zero")
}

func TestEvalUndefinedSymbol(t *testing.T) {
	syms := fakeSyms{vals: map[string]int64{}}
	_, err := Eval(Sym("missing"), syms)
	var undef *ErrUndefined
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "missing", undef.Name)
}

func TestEvalBitwiseAndShift(t *testing.T) {
	syms := fakeSyms{}
	cases := []struct {
		op       string
		l, r     int64
		expected int64
	}{
		{"&", 0xFF, 0x0F, 0x0F},
		{"|", 0xF0, 0x0F, 0xFF},
		{"^", 0xFF, 0x0F, 0xF0},
		{"<<", 1, 4, 16},
		{">>", 16, 4, 1},
	}
	for _, c := range cases {
		v, err := Eval(Binary(c.op, Const(c.l), Const(c.r)), syms)
		require.NoError(t, err)
		assert.EqualValues(t, c.expected, v, c.op)
	}
}

func TestEvalSymbolReference(t *testing.T) {
	syms := fakeSyms{vals: map[string]int64{"loop": 0x0200}}
	v, err := Eval(Sym("loop"), syms)
	require.NoError(t, err)
	assert.EqualValues(t, 0x0200, v)
}

func TestParseNumericBases(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"42", 42},
		{"$2A", 42},
		{"0x2A", 42},
		{"%101010", 42},
		{"0b101010", 42},
		{"@52", 42},
		{"0o52", 42},
		{"'A'", 65},
		{"'\\n'", 10},
	}
	for _, c := range cases {
		n, err := Parse(c.text)
		require.NoError(t, err, c.text)
		v, err := Eval(n, fakeSyms{})
		require.NoError(t, err, c.text)
		assert.EqualValues(t, c.want, v, c.text)
	}
}

func TestParsePrecedenceAndParens(t *testing.T) {
	n, err := Parse("2+3*4")
	require.NoError(t, err)
	v, err := Eval(n, fakeSyms{})
	require.NoError(t, err)
	assert.EqualValues(t, 14, v)

	n, err = Parse("(2+3)*4")
	require.NoError(t, err)
	v, err = Eval(n, fakeSyms{})
	require.NoError(t, err)
	assert.EqualValues(t, 20, v)
}

func TestParseHereToken(t *testing.T) {
	n, err := Parse("*+2")
	require.NoError(t, err)
	v, err := Eval(n, fakeSyms{here: 0x0100})
	require.NoError(t, err)
	assert.EqualValues(t, 0x0102, v)
}

func TestParseHighLowFunctions(t *testing.T) {
	n, err := Parse("high($1234)")
	require.NoError(t, err)
	v, err := Eval(n, fakeSyms{})
	require.NoError(t, err)
	assert.EqualValues(t, 0x12, v)

	n, err = Parse("low($1234)+1")
	require.NoError(t, err)
	v, err = Eval(n, fakeSyms{})
	require.NoError(t, err)
	assert.EqualValues(t, 0x35, v)
}
