// Package lcd models the character-cell LCD controller:
// cursor position and visibility, 2-line vs 4-line display mode, the
// character cell grid, and 8-entry user-defined-glyph RAM. A pixel
// rendering view is built on golang.org/x/image's basicfont face.
package lcd

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Mode selects the controller's addressing/compatibility behaviour.
type Mode int

const (
	Mode2Line Mode = iota
	Mode4Line
)

// Geometry describes a display's fixed row/column count.
type Geometry struct {
	Rows, Cols int
}

const glyphCount = 8
const glyphBytes = 8

// Controller is one LCD controller instance: its text grid, cursor, and
// user-defined-glyph RAM. It is not safe for concurrent use from more than
// one goroutine without external synchronisation beyond the glyph-RAM
// write serialisation it performs itself.
type Controller struct {
	mu sync.Mutex

	geom Geometry
	mode Mode

	cells       [][]byte // [row][col], raw character codes
	cursorRow   int
	cursorCol   int
	cursorOn    bool

	glyphs      [glyphCount][glyphBytes]byte
	glyphWriteI int // which byte of the glyph currently being written
	glyphIndex  int
	glyphActive bool
	// interruptMask captures the mask level in effect while a glyph write
	// sequence is in progress, so it can be restored verbatim even if the
	// sequence is aborted.
	savedMask   byte
	maskCtl     InterruptMasker
}

// InterruptMasker lets the controller mask/restore CPU interrupts around a
// glyph-RAM write sequence without importing the cpu package directly.
type InterruptMasker interface {
	MaskInterrupts() (previous byte)
	RestoreInterrupts(previous byte)
}

// New creates a controller for the given geometry and starting mode.
func New(geom Geometry, mode Mode, masker InterruptMasker) *Controller {
	cells := make([][]byte, geom.Rows)
	for i := range cells {
		row := make([]byte, geom.Cols)
		for j := range row {
			row[j] = ' '
		}
		cells[i] = row
	}
	return &Controller{geom: geom, mode: mode, cells: cells, maskCtl: masker}
}

// Size reports the display geometry.
func (c *Controller) Size() (rows, cols int) {
	return c.geom.Rows, c.geom.Cols
}

// Clear blanks the display and homes the cursor.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.cells {
		for i := range row {
			row[i] = ' '
		}
	}
	c.cursorRow, c.cursorCol = 0, 0
}

// SetCursor moves the cursor, clamped to the visible grid.
func (c *Controller) SetCursor(row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorRow = clamp(row, 0, c.geom.Rows-1)
	c.cursorCol = clamp(col, 0, c.geom.Cols-1)
}

// SetCursorVisible toggles cursor visibility for the pixel view.
func (c *Controller) SetCursorVisible(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorOn = v
}

// PutChar writes one character at the cursor and advances it, wrapping to
// the next row (and back to row 0 past the last) the way a real
// auto-increment write does.
func (c *Controller) PutChar(ch byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells[c.cursorRow][c.cursorCol] = ch
	c.cursorCol++
	if c.cursorCol >= c.geom.Cols {
		c.cursorCol = 0
		c.cursorRow++
		if c.cursorRow >= c.geom.Rows {
			c.cursorRow = 0
		}
	}
}

// TextRows renders the current grid row-major, one string per row.
func (c *Controller) TextRows() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cells))
	for i, row := range c.cells {
		var b strings.Builder
		for _, ch := range row {
			if ch < 0x20 || ch >= 0x80 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(ch)
			}
		}
		out[i] = b.String()
	}
	return out
}

// BeginGlyphWrite starts a user-defined-glyph RAM write sequence for
// glyphIndex (0-7), masking interrupts for its duration. EndGlyphWrite (or
// AbortGlyphWrite) must be called to restore the previous mask state,
// and the previous mask state is restored even when the sequence is
// abandoned partway.
func (c *Controller) BeginGlyphWrite(glyphIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.glyphActive {
		c.restoreMaskLocked()
	}
	c.glyphIndex = glyphIndex % glyphCount
	c.glyphWriteI = 0
	c.glyphActive = true
	if c.maskCtl != nil {
		c.savedMask = c.maskCtl.MaskInterrupts()
	}
}

// WriteGlyphByte writes the next byte of the glyph currently being defined
// (5 pixels per row in the low bits), restoring
// the saved interrupt mask on the final byte of the sequence.
func (c *Controller) WriteGlyphByte(v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.glyphActive || c.glyphWriteI >= glyphBytes {
		return
	}
	c.glyphs[c.glyphIndex][c.glyphWriteI] = v & 0x1F
	c.glyphWriteI++
	if c.glyphWriteI == glyphBytes {
		c.glyphActive = false
		c.restoreMaskLocked()
	}
}

// AbortGlyphWrite ends a glyph write sequence early, still restoring the
// interrupt mask that was in effect before BeginGlyphWrite.
func (c *Controller) AbortGlyphWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.glyphActive {
		c.glyphActive = false
		c.restoreMaskLocked()
	}
}

func (c *Controller) restoreMaskLocked() {
	if c.maskCtl != nil {
		c.maskCtl.RestoreInterrupts(c.savedMask)
	}
}

// Glyph returns the 8-byte definition for user glyph i.
func (c *Controller) Glyph(i int) [glyphBytes]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.glyphs[i%glyphCount]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PixelOptions configures the bitmap rendering in Render.
type PixelOptions struct {
	Scale      int
	PixelGap   int
	CharGap    int
	Bezel      int
	Background color.Color
	Foreground color.Color
}

// defaultOptions fills in zero-valued fields with sane defaults.
func (o PixelOptions) withDefaults() PixelOptions {
	if o.Scale <= 0 {
		o.Scale = 3
	}
	if o.Background == nil {
		o.Background = color.Gray{Y: 180}
	}
	if o.Foreground == nil {
		o.Foreground = color.Gray{Y: 20}
	}
	return o
}

// Glyph-RAM cells are 5 pixels wide by 8 rows tall.
const cellCols, cellRows = 5, 8

// Render draws the current display (text glyphs via basicfont, user glyphs
// from glyph RAM) into an RGBA image, honouring the configured scale and
// gaps.
func (c *Controller) Render(opts PixelOptions) *image.RGBA {
	opts = opts.withDefaults()
	c.mu.Lock()
	rows, cols := c.geom.Rows, c.geom.Cols
	grid := make([][]byte, rows)
	for i, row := range c.cells {
		grid[i] = append([]byte(nil), row...)
	}
	glyphs := c.glyphs
	c.mu.Unlock()

	cellW := (cellCols*opts.Scale + opts.PixelGap*(cellCols-1))
	cellH := (cellRows*opts.Scale + opts.PixelGap*(cellRows-1))
	width := opts.Bezel*2 + cols*cellW + (cols-1)*opts.CharGap
	height := opts.Bezel*2 + rows*cellH + (rows-1)*opts.CharGap

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			ox := opts.Bezel + col*(cellW+opts.CharGap)
			oy := opts.Bezel + r*(cellH+opts.CharGap)
			drawCell(img, face, &glyphs, grid[r][col], ox, oy, opts)
		}
	}
	return img
}

// drawCell renders one character cell at (ox, oy). Printable ASCII draws
// through basicfont; a user-glyph index in 0-7 draws its glyph-RAM bit
// pattern as scaled pixel blocks; anything else renders blank.
func drawCell(dst *image.RGBA, face font.Face, glyphs *[glyphCount][glyphBytes]byte, ch byte, ox, oy int, opts PixelOptions) {
	if ch >= 0x20 && ch < 0x80 {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(opts.Foreground),
			Face: face,
			Dot:  fixed.P(ox, oy+(int(face.Metrics().Ascent)>>6)),
		}
		d.DrawString(string(rune(ch)))
		return
	}
	if int(ch) >= glyphCount {
		return
	}
	for gy := 0; gy < cellRows; gy++ {
		rowBits := glyphs[ch][gy]
		for gx := 0; gx < cellCols; gx++ {
			if rowBits&(1<<(cellCols-1-gx)) == 0 {
				continue
			}
			px := ox + gx*(opts.Scale+opts.PixelGap)
			py := oy + gy*(opts.Scale+opts.PixelGap)
			block := image.Rect(px, py, px+opts.Scale, py+opts.Scale)
			draw.Draw(dst, block, image.NewUniform(opts.Foreground), image.Point{}, draw.Src)
		}
	}
}
