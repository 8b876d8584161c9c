package lcd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMasker records mask/restore calls the way the CPU hook would.
type fakeMasker struct {
	masked   int
	restored []byte
}

func (m *fakeMasker) MaskInterrupts() byte      { m.masked++; return 0x55 }
func (m *fakeMasker) RestoreInterrupts(v byte)  { m.restored = append(m.restored, v) }

func newTestLCD() (*Controller, *fakeMasker) {
	m := &fakeMasker{}
	return New(Geometry{Rows: 2, Cols: 16}, Mode2Line, m), m
}

func TestPutCharAdvancesAndWraps(t *testing.T) {
	c, _ := newTestLCD()
	for _, ch := range []byte("Hello") {
		c.PutChar(ch)
	}
	rows := c.TextRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Hello           ", rows[0])

	// Fill to the end of row 0; the next write lands on row 1.
	for i := 5; i < 16; i++ {
		c.PutChar('.')
	}
	c.PutChar('X')
	rows = c.TextRows()
	assert.Equal(t, byte('X'), rows[1][0])
}

func TestClearBlanksAndHomes(t *testing.T) {
	c, _ := newTestLCD()
	c.PutChar('A')
	c.Clear()
	rows := c.TextRows()
	assert.Equal(t, "                ", rows[0])
	c.PutChar('B')
	assert.Equal(t, byte('B'), c.TextRows()[0][0])
}

func TestUnprintableRendersBlankInTextView(t *testing.T) {
	c, _ := newTestLCD()
	c.PutChar(0x05)
	assert.Equal(t, byte(' '), c.TextRows()[0][0])
}

func TestGlyphWriteSequenceMasksAndRestores(t *testing.T) {
	c, m := newTestLCD()
	c.BeginGlyphWrite(2)
	assert.Equal(t, 1, m.masked)
	for i := 0; i < glyphBytes; i++ {
		c.WriteGlyphByte(byte(0x10 + i))
	}
	require.Len(t, m.restored, 1)
	assert.Equal(t, byte(0x55), m.restored[0], "previous mask state restored verbatim")

	g := c.Glyph(2)
	assert.Equal(t, byte(0x10), g[0])
	assert.Equal(t, byte(0x17), g[7])
}

func TestGlyphBytesMaskedToFivePixels(t *testing.T) {
	c, _ := newTestLCD()
	c.BeginGlyphWrite(0)
	c.WriteGlyphByte(0xFF)
	c.AbortGlyphWrite()
	assert.Equal(t, byte(0x1F), c.Glyph(0)[0])
}

func TestAbortRestoresMaskEvenWithNoWrites(t *testing.T) {
	c, m := newTestLCD()
	c.BeginGlyphWrite(1)
	c.AbortGlyphWrite()
	require.Len(t, m.restored, 1)
	assert.Equal(t, byte(0x55), m.restored[0])

	// A second abort without a sequence in flight does nothing.
	c.AbortGlyphWrite()
	assert.Len(t, m.restored, 1)
}

func TestRenderDimensions(t *testing.T) {
	c, _ := newTestLCD()
	opts := PixelOptions{Scale: 2, PixelGap: 1, CharGap: 3, Bezel: 4}
	img := c.Render(opts)
	cellW := 5*2 + 1*4
	cellH := 8*2 + 1*7
	wantW := 8 + 16*cellW + 15*3
	wantH := 8 + 2*cellH + 1*3
	assert.Equal(t, wantW, img.Bounds().Dx())
	assert.Equal(t, wantH, img.Bounds().Dy())
}

func TestRenderDrawsUserGlyphPixels(t *testing.T) {
	c, _ := newTestLCD()
	c.BeginGlyphWrite(0)
	for i := 0; i < glyphBytes; i++ {
		c.WriteGlyphByte(0x1F) // all five pixels on in every row
	}
	c.PutChar(0) // glyph 0 at row 0, col 0
	img := c.Render(PixelOptions{Scale: 1})
	fg := img.RGBAAt(0, 0)
	bg := img.RGBAAt(img.Bounds().Dx()-1, img.Bounds().Dy()-1)
	assert.NotEqual(t, bg, fg, "glyph pixel drawn in the foreground colour")
}
