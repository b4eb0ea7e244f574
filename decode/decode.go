package decode

import (
	"fmt"

	"avre/mask"
	"avre/regfile"
)

// exact holds the zero-operand opcodes: full 16-bit literal matches, tried
// before any of the masked patterns below.
var exact = map[uint16]Kind{
	0x0000: NOP,
	0x9508: RET,
	0x9518: RETI,
	0x9409: EIJMP,
	0x9519: EICALL,
	0x95C8: LPM,
	0x95D8: ELPM,
}

// Decode reads the instruction beginning at words[0], returning it along
// with its size in words (1 or 2, matching Instruction.ByteSize()/2). words
// must contain at least one element; a two-word opcode that runs off the
// end of the slice is reported as an error rather than silently truncated.
func Decode(words []uint16) (Instruction, int, error) {
	if len(words) == 0 {
		return Instruction{}, 0, fmt.Errorf("decode: empty instruction stream")
	}
	w := words[0]

	if op, ok := exact[w]; ok {
		return Instruction{Op: op}, 1, nil
	}

	switch {
	case w&0xFF00 == 0x0100: // MOVW
		d := mask.Bits(w, 4, 7)
		r := mask.Bits(w, 0, 3)
		return Instruction{Op: MOVW, Rd: byte(d * 2), Rr: byte(r * 2)}, 1, nil

	case w&0xFC00 == 0x9C00: // MUL
		return twoReg(MUL, w), 1, nil

	case w&0xFC00 == 0x0C00:
		return twoReg(ADD, w), 1, nil
	case w&0xFC00 == 0x1C00:
		return twoReg(ADC, w), 1, nil
	case w&0xFC00 == 0x1800:
		return twoReg(SUB, w), 1, nil
	case w&0xFC00 == 0x0800:
		return twoReg(SBC, w), 1, nil
	case w&0xFC00 == 0x1400:
		return twoReg(CP, w), 1, nil
	case w&0xFC00 == 0x0400:
		return twoReg(CPC, w), 1, nil
	case w&0xFC00 == 0x1000:
		return twoReg(CPSE, w), 1, nil
	case w&0xFC00 == 0x2000:
		return twoReg(AND, w), 1, nil
	case w&0xFC00 == 0x2800:
		return twoReg(OR, w), 1, nil
	case w&0xFC00 == 0x2400:
		return twoReg(EOR, w), 1, nil
	case w&0xFC00 == 0x2C00:
		return twoReg(MOV, w), 1, nil

	case w&0xF000 == 0x5000: // SUBI
		return immOp(SUBI, w), 1, nil
	case w&0xF000 == 0x4000:
		return immOp(SBCI, w), 1, nil
	case w&0xF000 == 0x3000:
		return immOp(CPI, w), 1, nil
	case w&0xF000 == 0x7000:
		return immOp(ANDI, w), 1, nil
	case w&0xF000 == 0x6000:
		return immOp(ORI, w), 1, nil
	case w&0xF000 == 0xE000:
		return immOp(LDI, w), 1, nil

	case w&0xFE0F == 0x9400: // COM
		return oneReg(COM, w), 1, nil
	case w&0xFE0F == 0x9401:
		return oneReg(NEG, w), 1, nil
	case w&0xFE0F == 0x9402:
		return oneReg(SWAP, w), 1, nil
	case w&0xFE0F == 0x9403:
		return oneReg(INC, w), 1, nil
	case w&0xFE0F == 0x9405:
		return oneReg(ASR, w), 1, nil
	case w&0xFE0F == 0x9406:
		return oneReg(LSR, w), 1, nil
	case w&0xFE0F == 0x9407:
		return oneReg(ROR, w), 1, nil
	case w&0xFE0F == 0x940A:
		return oneReg(DEC, w), 1, nil

	case w&0xFF00 == 0x9600: // ADIW
		return widePair(ADIW, w), 1, nil
	case w&0xFF00 == 0x9700:
		return widePair(SBIW, w), 1, nil

	case w&0xFE0F == 0x920F: // PUSH
		return oneReg(PUSH, w), 1, nil
	case w&0xFE0F == 0x900F:
		return oneReg(POP, w), 1, nil

	case w&0xF800 == 0xB800: // OUT
		port := (mask.Bits(w, 9, 10) << 4) | mask.Bits(w, 0, 3)
		r := regPair(mask.Bit(w, 8), mask.Bits(w, 4, 7))
		return Instruction{Op: OUT, Rr: r, K: port}, 1, nil
	case w&0xF800 == 0xB000: // IN
		port := (mask.Bits(w, 9, 10) << 4) | mask.Bits(w, 0, 3)
		d := regPair(mask.Bit(w, 8), mask.Bits(w, 4, 7))
		return Instruction{Op: IN, Rd: d, K: port}, 1, nil

	case w&0xFE0F == 0x9004: // LPM Rd,Z
		return Instruction{Op: LPMReg, Rd: oneRegIndex(w), Mem: MemOperand{Base: regfile.Z}}, 1, nil
	case w&0xFE0F == 0x9005: // LPM Rd,Z+
		return Instruction{Op: LPMReg, Rd: oneRegIndex(w), Mem: MemOperand{Base: regfile.Z, Update: UpdatePostInc}}, 1, nil
	case w&0xFE0F == 0x9006: // ELPM Rd,Z
		return Instruction{Op: ELPMReg, Rd: oneRegIndex(w), Mem: MemOperand{Base: regfile.Z, Extended: true}}, 1, nil
	case w&0xFE0F == 0x9007: // ELPM Rd,Z+
		return Instruction{Op: ELPMReg, Rd: oneRegIndex(w), Mem: MemOperand{Base: regfile.Z, Update: UpdatePostInc, Extended: true}}, 1, nil

	case w&0xFE0F == 0x9000: // LDS Rd,k
		if len(words) < 2 {
			return Instruction{}, 0, fmt.Errorf("decode: LDS at truncated stream, missing extension word")
		}
		return Instruction{Op: LDS, Rd: oneRegIndex(w), K: words[1]}, 2, nil
	case w&0xFE0F == 0x9200: // STS k,Rr
		if len(words) < 2 {
			return Instruction{}, 0, fmt.Errorf("decode: STS at truncated stream, missing extension word")
		}
		return Instruction{Op: STS, Rr: oneRegIndex(w), K: words[1]}, 2, nil

	case w&0xFE0F == 0x900C: // LD Rd,X
		return ldReg(LD, w, regfile.X, UpdateNone), 1, nil
	case w&0xFE0F == 0x900D: // LD Rd,X+
		return ldReg(LD, w, regfile.X, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x900E: // LD Rd,-X
		return ldReg(LD, w, regfile.X, UpdatePreDec), 1, nil
	case w&0xFE0F == 0x8008: // LD Rd,Y
		return ldReg(LD, w, regfile.Y, UpdateNone), 1, nil
	case w&0xFE0F == 0x9009: // LD Rd,Y+
		return ldReg(LD, w, regfile.Y, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x900A: // LD Rd,-Y
		return ldReg(LD, w, regfile.Y, UpdatePreDec), 1, nil
	case w&0xFE0F == 0x8000: // LD Rd,Z
		return ldReg(LD, w, regfile.Z, UpdateNone), 1, nil
	case w&0xFE0F == 0x9001: // LD Rd,Z+
		return ldReg(LD, w, regfile.Z, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x9002: // LD Rd,-Z
		return ldReg(LD, w, regfile.Z, UpdatePreDec), 1, nil

	case w&0xFE0F == 0x920C: // ST X,Rr
		return stReg(ST, w, regfile.X, UpdateNone), 1, nil
	case w&0xFE0F == 0x920D: // ST X+,Rr
		return stReg(ST, w, regfile.X, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x920E: // ST -X,Rr
		return stReg(ST, w, regfile.X, UpdatePreDec), 1, nil
	case w&0xFE0F == 0x8208: // ST Y,Rr
		return stReg(ST, w, regfile.Y, UpdateNone), 1, nil
	case w&0xFE0F == 0x9209: // ST Y+,Rr
		return stReg(ST, w, regfile.Y, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x920A: // ST -Y,Rr
		return stReg(ST, w, regfile.Y, UpdatePreDec), 1, nil
	case w&0xFE0F == 0x8200: // ST Z,Rr
		return stReg(ST, w, regfile.Z, UpdateNone), 1, nil
	case w&0xFE0F == 0x9201: // ST Z+,Rr
		return stReg(ST, w, regfile.Z, UpdatePostInc), 1, nil
	case w&0xFE0F == 0x9202: // ST -Z,Rr
		return stReg(ST, w, regfile.Z, UpdatePreDec), 1, nil

	case w&0xD200 == 0x8000: // LDD Rd,Y+q / LDD Rd,Z+q
		return lddSttd(LDD, w), 1, nil
	case w&0xD200 == 0x8200: // STD Y+q,Rr / STD Z+q,Rr
		return lddSttd(STD, w), 1, nil

	case w&0xF000 == 0xC000: // RJMP
		return Instruction{Op: RJMP, WordOffset: mask.SignExtend(uint32(mask.Bits(w, 0, 11)), 12)}, 1, nil
	case w&0xF000 == 0xD000: // RCALL
		return Instruction{Op: RCALL, WordOffset: mask.SignExtend(uint32(mask.Bits(w, 0, 11)), 12)}, 1, nil

	case w&0xFE0E == 0x940C: // JMP
		if len(words) < 2 {
			return Instruction{}, 0, fmt.Errorf("decode: JMP at truncated stream, missing extension word")
		}
		return Instruction{Op: JMP, Addr: longAddr(w, words[1])}, 2, nil
	case w&0xFE0E == 0x940E: // CALL
		if len(words) < 2 {
			return Instruction{}, 0, fmt.Errorf("decode: CALL at truncated stream, missing extension word")
		}
		return Instruction{Op: CALL, Addr: longAddr(w, words[1])}, 2, nil

	case w&0xFC00 == 0xF000: // BRBS
		return branch(w, false), 1, nil
	case w&0xFC00 == 0xF400: // BRBC
		return branch(w, true), 1, nil

	case w&0xFE08 == 0xFC00: // SBRC
		return skipBit(SBRC, w), 1, nil
	case w&0xFE08 == 0xFE00: // SBRS
		return skipBit(SBRS, w), 1, nil
	case w&0xFE08 == 0xFA00: // BST
		return skipBit(BST, w), 1, nil
	case w&0xFE08 == 0xF800: // BLD
		return skipBit(BLD, w), 1, nil

	case w&0xFF8F == 0x9408: // BSET
		return Instruction{Op: SetFlag, FlagBit: uint8(mask.Bits(w, 4, 6))}, 1, nil
	case w&0xFF8F == 0x9488: // BCLR
		return Instruction{Op: ClrFlag, FlagBit: uint8(mask.Bits(w, 4, 6))}, 1, nil
	}

	return Instruction{}, 0, fmt.Errorf("decode: unrecognized opcode %#04x", w)
}

func twoReg(op Kind, w uint16) Instruction {
	d := regPair(mask.Bit(w, 8), mask.Bits(w, 4, 7))
	r := regPair(mask.Bit(w, 9), mask.Bits(w, 0, 3))
	return Instruction{Op: op, Rd: d, Rr: r}
}

func oneRegIndex(w uint16) byte {
	return regPair(mask.Bit(w, 8), mask.Bits(w, 4, 7))
}

func oneReg(op Kind, w uint16) Instruction {
	return Instruction{Op: op, Rd: oneRegIndex(w)}
}

func immOp(op Kind, w uint16) Instruction {
	k := (mask.Bits(w, 8, 11) << 4) | mask.Bits(w, 0, 3)
	d := 16 + byte(mask.Bits(w, 4, 7))
	return Instruction{Op: op, Rd: d, K: k}
}

func widePair(op Kind, w uint16) Instruction {
	k := (mask.Bits(w, 6, 7) << 4) | mask.Bits(w, 0, 3)
	d := 24 + byte(mask.Bits(w, 4, 5))*2
	return Instruction{Op: op, Rd: d, K: k}
}

func ldReg(op Kind, w uint16, base byte, u Update) Instruction {
	return Instruction{Op: op, Rd: oneRegIndex(w), Mem: MemOperand{Base: base, Update: u, Extended: true}}
}

func stReg(op Kind, w uint16, base byte, u Update) Instruction {
	return Instruction{Op: op, Rr: oneRegIndex(w), Mem: MemOperand{Base: base, Update: u, Extended: true}}
}

// lddSttd decodes the common LDD/STD displacement form; op selects which
// operand (Rd for LDD, Rr for STD) the register field fills.
func lddSttd(op Kind, w uint16) Instruction {
	q5 := mask.Bit(w, 13)
	q4 := mask.Bit(w, 11)
	q3 := mask.Bit(w, 10)
	q210 := mask.Bits(w, 0, 2)
	q := uint16(0)
	if q5 {
		q |= 1 << 5
	}
	if q4 {
		q |= 1 << 4
	}
	if q3 {
		q |= 1 << 3
	}
	q |= q210

	base := byte(regfile.Z)
	if mask.Bit(w, 3) {
		base = regfile.Y
	}
	reg := oneRegIndex(w)
	mem := MemOperand{Base: base, Displacement: int16(q), Extended: true}
	if op == LDD {
		return Instruction{Op: LDD, Rd: reg, Mem: mem}
	}
	return Instruction{Op: STD, Rr: reg, Mem: mem}
}

func longAddr(w0, w1 uint16) uint32 {
	high5 := uint32(regPair(mask.Bit(w0, 8), mask.Bits(w0, 4, 7)))
	bit16 := uint32(0)
	if mask.Bit(w0, 0) {
		bit16 = 1
	}
	return (high5 << 17) | (bit16 << 16) | uint32(w1)
}

// branch decodes BRBS (negate=false) / BRBC (negate=true): a 7-bit signed
// word offset and a 3-bit SREG bit index, in the same 0..7 ordering as
// sreg.SReg.Byte.
func branch(w uint16, negate bool) Instruction {
	k := mask.Bits(w, 3, 9)
	s := uint8(mask.Bits(w, 0, 2))
	return Instruction{
		Op:         BRANCH,
		FlagBit:    s,
		Negate:     negate,
		WordOffset: mask.SignExtend(uint32(k), 7),
	}
}

func skipBit(op Kind, w uint16) Instruction {
	reg := oneRegIndex(w)
	bit := uint8(mask.Bits(w, 0, 2))
	switch op {
	case SBRC, SBRS, BST:
		return Instruction{Op: op, Rr: reg, Bit: bit}
	default: // BLD
		return Instruction{Op: op, Rd: reg, Bit: bit}
	}
}
