package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"avre/regfile"
)

func TestDecodeNOP(t *testing.T) {
	ins, n, err := Decode([]uint16{0x0000})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, NOP, ins.Op)
}

func TestDecodeLDI(t *testing.T) {
	// LDI r17, 0x05 -> 1110 0000 0001 0101 = 0xE015
	ins, n, err := Decode([]uint16{0xE015})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, LDI, ins.Op)
	assert.Equal(t, byte(17), ins.Rd)
	assert.Equal(t, uint16(0x05), ins.K)
}

func TestDecodeMOVW(t *testing.T) {
	// MOVW r4, r2 -> d=2 (pair index, reg 4), r=1 (pair index, reg 2)
	ins, n, err := Decode([]uint16{0x0121})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, MOVW, ins.Op)
	assert.Equal(t, byte(4), ins.Rd)
	assert.Equal(t, byte(2), ins.Rr)
}

func TestDecodeTwoRegisterForm(t *testing.T) {
	// ADD r1, r0 -> 0000 11 0 0 0001 0000 = 0x0C10
	ins, n, err := Decode([]uint16{0x0C10})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ADD, ins.Op)
	assert.Equal(t, byte(1), ins.Rd)
	assert.Equal(t, byte(0), ins.Rr)
}

func TestDecodeADIW(t *testing.T) {
	// ADIW r24, 1 -> 1001 0110 00 00 0001 = 0x9601
	ins, n, err := Decode([]uint16{0x9601})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ADIW, ins.Op)
	assert.Equal(t, byte(24), ins.Rd)
	assert.Equal(t, uint16(1), ins.K)
}

func TestDecodeINOUT(t *testing.T) {
	// OUT 0x3F (SREG), r16 -> 1011 1 11 10000 1111 = 0xBF0F
	ins, n, err := Decode([]uint16{0xBF0F})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, OUT, ins.Op)
	assert.Equal(t, byte(16), ins.Rr)
	assert.Equal(t, uint16(0x3F), ins.K)
}

func TestDecodeLDXPostInc(t *testing.T) {
	// LD r5, X+ -> 1001 000d dddd1101, d=5: 1001 0000 0101 1101 = 0x905D
	ins, n, err := Decode([]uint16{0x905D})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, LD, ins.Op)
	assert.Equal(t, byte(5), ins.Rd)
	assert.Equal(t, byte(regfile.X), ins.Mem.Base)
	assert.Equal(t, UpdatePostInc, ins.Mem.Update)
}

func TestDecodeLDDYDisplacement(t *testing.T) {
	// LDD r2, Y+3: q=3 (0b000011), base=Y(bit3=1), d=2
	// 10 q5 0 q4 q3 0(ldst) d dddd 1(Y) qqq
	// q=3 -> q5=0 q4=0 q3=0 q2=0 q1=1 q0=1
	w := uint16(0)
	w |= 1 << 15
	w |= 0 << 13 // q5
	w |= 0 << 11 // q4
	w |= 0 << 10 // q3
	w |= 0 << 9  // ldst = LDD
	w |= 0 << 8  // reg MSB (d=2 -> 00010, MSB=0)
	w |= 2 << 4  // reg low4
	w |= 1 << 3  // base = Y
	w |= 3       // q2..q0 = 3
	ins, n, err := Decode([]uint16{w})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, LDD, ins.Op)
	assert.Equal(t, byte(2), ins.Rd)
	assert.Equal(t, byte(regfile.Y), ins.Mem.Base)
	assert.Equal(t, int16(3), ins.Mem.Displacement)
}

func TestDecodeSTDZDisplacement(t *testing.T) {
	w := uint16(0)
	w |= 1 << 15
	w |= 1 << 9 // ldst = STD
	w |= 5 << 4 // reg low4 (r=5)
	w |= 0 << 3 // base = Z
	w |= 2      // q = 2
	ins, n, err := Decode([]uint16{w})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, STD, ins.Op)
	assert.Equal(t, byte(5), ins.Rr)
	assert.Equal(t, byte(regfile.Z), ins.Mem.Base)
	assert.Equal(t, int16(2), ins.Mem.Displacement)
}

func TestDecodeLDSAndSTS(t *testing.T) {
	ins, n, err := Decode([]uint16{0x9000, 0x0150}) // LDS r0, 0x0150
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, LDS, ins.Op)
	assert.Equal(t, byte(0), ins.Rd)
	assert.Equal(t, uint16(0x0150), ins.K)
	assert.Equal(t, 4, ins.ByteSize())

	_, _, err = Decode([]uint16{0x9000})
	assert.Error(t, err)
}

func TestDecodeJMPAndCALL(t *testing.T) {
	// JMP 0x000100 -> addr=0x80 words; word1=0x940C, word2=0x0080
	ins, n, err := Decode([]uint16{0x940C, 0x0080})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, JMP, ins.Op)
	assert.Equal(t, uint32(0x0080), ins.Addr)
	assert.Equal(t, 4, ins.ByteSize())

	ins, _, err = Decode([]uint16{0x940E, 0x1234})
	assert.NoError(t, err)
	assert.Equal(t, CALL, ins.Op)
	assert.Equal(t, uint32(0x1234), ins.Addr)
}

func TestDecodeRJMPNegativeOffset(t *testing.T) {
	// RJMP -2 (self-loop / halt idiom): 0xCFFF
	ins, n, err := Decode([]uint16{0xCFFF})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, RJMP, ins.Op)
	assert.Equal(t, int32(-1), ins.WordOffset)
}

func TestDecodeBranches(t *testing.T) {
	// BREQ +4 words: BRBS s=1(Z), k=4 -> 1111 00 0000100 001 = 0xF021
	ins, _, err := Decode([]uint16{0xF021})
	assert.NoError(t, err)
	assert.Equal(t, BRANCH, ins.Op)
	assert.Equal(t, uint8(1), ins.FlagBit)
	assert.False(t, ins.Negate)
	assert.Equal(t, int32(4), ins.WordOffset)

	// BRNE: BRBC s=1 -> 0xF421 pattern with k=4
	ins, _, err = Decode([]uint16{0xF401 | (4 << 3)})
	assert.NoError(t, err)
	assert.Equal(t, BRANCH, ins.Op)
	assert.Equal(t, uint8(1), ins.FlagBit)
	assert.True(t, ins.Negate)
}

func TestDecodeSBRCAndBLD(t *testing.T) {
	// SBRC r3, bit 2 -> 1111 110 00011 0 010 = 0xFC32
	ins, _, err := Decode([]uint16{0xFC32})
	assert.NoError(t, err)
	assert.Equal(t, SBRC, ins.Op)
	assert.Equal(t, byte(3), ins.Rr)
	assert.Equal(t, uint8(2), ins.Bit)

	// BLD r5, bit 1 -> 1111 100 00101 0 001 = 0xF851
	ins, _, err = Decode([]uint16{0xF851})
	assert.NoError(t, err)
	assert.Equal(t, BLD, ins.Op)
	assert.Equal(t, byte(5), ins.Rd)
	assert.Equal(t, uint8(1), ins.Bit)
}

func TestDecodeSetClrFlag(t *testing.T) {
	ins, _, err := Decode([]uint16{0x9408}) // SEC
	assert.NoError(t, err)
	assert.Equal(t, SetFlag, ins.Op)
	assert.Equal(t, uint8(0), ins.FlagBit)

	ins, _, err = Decode([]uint16{0x94F8}) // CLI
	assert.NoError(t, err)
	assert.Equal(t, ClrFlag, ins.Op)
	assert.Equal(t, uint8(7), ins.FlagBit)
}

func TestDecodeRETAndRETI(t *testing.T) {
	ins, n, err := Decode([]uint16{0x9508})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, RET, ins.Op)

	ins, _, err = Decode([]uint16{0x9518})
	assert.NoError(t, err)
	assert.Equal(t, RETI, ins.Op)
}

func TestDecodeUnrecognizedOpcode(t *testing.T) {
	_, _, err := Decode([]uint16{0x9404}) // reserved nibble 0100 in the 1001010 group
	assert.Error(t, err)
}

func TestDecodeEmptyStream(t *testing.T) {
	_, _, err := Decode(nil)
	assert.Error(t, err)
}
