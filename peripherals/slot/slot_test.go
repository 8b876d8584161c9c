package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon6303/orgtool/pack"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	img, err := pack.Create([]pack.Record{
		{Name: "MAIN", Type: pack.RecordProcedure, Payload: []byte{0x01, 0x39}},
	}, pack.Size8K, time.Unix(0, 0))
	require.NoError(t, err)
	return img
}

func TestLoadValidatesImage(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Load(0, testImage(t)))

	err := b.Load(1, []byte("garbage"))
	assert.Error(t, err)

	err = b.Load(3, testImage(t))
	assert.Error(t, err, "slot index out of range")
}

func TestReadInsideAndOutsideImage(t *testing.T) {
	b := NewBank()
	img := testImage(t)
	require.NoError(t, b.Load(0, img))

	assert.Equal(t, img[0], b.Read(0, 0))
	assert.Equal(t, img[100], b.Read(0, 100))
	assert.Equal(t, byte(0xFF), b.Read(0, uint32(len(img))), "past-end reads as erased flash")
	assert.Equal(t, byte(0xFF), b.Read(1, 0), "empty slot reads as erased flash")
}

func TestDirectoryScansRecords(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Load(2, testImage(t)))

	dir, err := b.Directory(2)
	require.NoError(t, err)
	require.Len(t, dir, 1)
	assert.Equal(t, "MAIN", dir[0].Name)

	_, err = b.Directory(0)
	assert.Error(t, err, "empty slot has no directory")
}

func TestEject(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Load(0, testImage(t)))
	b.Eject(0)
	assert.Equal(t, byte(0xFF), b.Read(0, 0))
	assert.Zero(t, b.Len(0))
}
