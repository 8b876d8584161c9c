package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBundleSortsByPosition(t *testing.T) {
	b := &Bundle{}
	b.Errorf(Pos{File: "b.c", Line: 3, Col: 1}, "third")
	b.Errorf(Pos{File: "a.c", Line: 9, Col: 2}, "second")
	b.Errorf(Pos{File: "a.c", Line: 2, Col: 7}, "first")

	items := b.Items()
	assert.Equal(t, "first", items[0].Message)
	assert.Equal(t, "second", items[1].Message)
	assert.Equal(t, "third", items[2].Message)
}

func TestHasErrorsIgnoresNotes(t *testing.T) {
	b := &Bundle{}
	b.Addf(Pos{}, Note, "just context")
	b.Addf(Pos{}, Warning, "heads up")
	assert.False(t, b.HasErrors())
	b.Errorf(Pos{}, "boom")
	assert.True(t, b.HasErrors())
}

func TestRenderOneLinePerIssue(t *testing.T) {
	b := &Bundle{}
	b.Errorf(Pos{File: "x.asm", Line: 4, Col: 2}, "undefined symbol: foo")
	out := b.Error()
	assert.Equal(t, 1, strings.Count(out, "\n")+1)
	assert.Contains(t, out, "x.asm:4:2")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "undefined symbol: foo")
}

func TestMergeAccumulates(t *testing.T) {
	a := &Bundle{}
	a.Errorf(Pos{Line: 1}, "one")
	b := &Bundle{}
	b.Errorf(Pos{Line: 2}, "two")
	a.Merge(b)
	assert.Len(t, a.Items(), 2)
}
