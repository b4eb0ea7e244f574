// Package regfile implements the AVR general-purpose register file: 32
// 8-bit cells, with even-odd pairs additionally readable/writable as
// little-endian 16-bit words.
package regfile

// Aliased pair indices, matching the AVR manual's X/Y/Z pointer registers.
const (
	X = 26
	Y = 28
	Z = 30
)

// File holds the 32 general-purpose registers r0..r31.
type File struct {
	r [32]byte
}

// Get8 returns register i.
func (f *File) Get8(i byte) byte {
	return f.r[i]
}

// Set8 sets register i.
func (f *File) Set8(i byte, val byte) {
	f.r[i] = val
}

// Get16 reads the little-endian 16-bit pair (r[i], r[i+1]). i should be
// even; the caller is responsible for pair alignment, as in the original
// implementation.
func (f *File) Get16(i byte) uint16 {
	return uint16(f.Get8(i)) | uint16(f.Get8(i+1))<<8
}

// Set16 writes the little-endian 16-bit pair (r[i], r[i+1]).
func (f *File) Set16(i byte, val uint16) {
	f.Set8(i, byte(val&0xff))
	f.Set8(i+1, byte(val>>8))
}

// X returns the X pointer register pair.
func (f *File) X() uint16 { return f.Get16(X) }

// Y returns the Y pointer register pair.
func (f *File) Y() uint16 { return f.Get16(Y) }

// Z returns the Z pointer register pair.
func (f *File) Z() uint16 { return f.Get16(Z) }

// SetX sets the X pointer register pair.
func (f *File) SetX(val uint16) { f.Set16(X, val) }

// SetY sets the Y pointer register pair.
func (f *File) SetY(val uint16) { f.Set16(Y, val) }

// SetZ sets the Z pointer register pair.
func (f *File) SetZ(val uint16) { f.Set16(Z, val) }
