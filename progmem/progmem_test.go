package progmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadBytesAndByteAt(t *testing.T) {
	m := New()
	err := m.LoadBytes([]byte{0x05, 0xE0, 0x11, 0xE0})
	assert.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, byte(0x05), m.ByteAt(0))
	assert.Equal(t, byte(0xE0), m.ByteAt(1))
	assert.Equal(t, byte(0x11), m.ByteAt(2))
	assert.Equal(t, byte(0xE0), m.ByteAt(3))
}

func TestLoadBytesOddLength(t *testing.T) {
	m := New()
	err := m.LoadBytes([]byte{0x01})
	assert.Error(t, err)
}

func TestByteAtOutOfRangeReturnsZero(t *testing.T) {
	m := New()
	_ = m.LoadBytes([]byte{0x00, 0x00})
	assert.Equal(t, byte(0), m.ByteAt(100))
}

func TestLoadWords(t *testing.T) {
	m := New()
	m.LoadWords([]uint16{0xE005, 0xE011})
	assert.Equal(t, uint16(0xE005), m.WordAt(0))
	assert.Equal(t, byte(0x05), m.ByteAt(0))
	assert.Equal(t, byte(0xE0), m.ByteAt(1))
}

func TestWordsAt(t *testing.T) {
	m := New()
	m.LoadWords([]uint16{1, 2, 3})
	assert.Equal(t, []uint16{2, 3}, m.WordsAt(1))
	assert.Nil(t, m.WordsAt(10))
}
