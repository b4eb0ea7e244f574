package regfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSet8(t *testing.T) {
	var f File
	f.Set8(5, 0x42)
	assert.Equal(t, byte(0x42), f.Get8(5))
}

func TestGetSet16RoundTrip(t *testing.T) {
	var f File
	for i := byte(0); i < 31; i += 2 {
		f.Set16(i, 0xBEEF)
		assert.Equal(t, uint16(0xBEEF), f.Get16(i), "pair at %d", i)
	}
}

func TestGet16IsLittleEndian(t *testing.T) {
	var f File
	f.Set8(0, 0xCD)
	f.Set8(1, 0xAB)
	assert.Equal(t, uint16(0xABCD), f.Get16(0))
}

func TestPairAliases(t *testing.T) {
	var f File
	f.SetX(0x1234)
	assert.Equal(t, uint16(0x1234), f.X())
	assert.Equal(t, byte(0x34), f.Get8(X))
	assert.Equal(t, byte(0x12), f.Get8(X+1))

	f.SetY(0x5678)
	assert.Equal(t, uint16(0x5678), f.Y())

	f.SetZ(0x9abc)
	assert.Equal(t, uint16(0x9abc), f.Z())
}
