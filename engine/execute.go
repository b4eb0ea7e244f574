package engine

import (
	"avre/decode"
	"avre/regfile"
)

func (e *Engine) pairValue(base byte) uint16 {
	switch base {
	case regfile.X:
		return e.Regs.X()
	case regfile.Y:
		return e.Regs.Y()
	case regfile.Z:
		return e.Regs.Z()
	default:
		return 0
	}
}

func (e *Engine) setPairValue(base byte, v uint16) {
	switch base {
	case regfile.X:
		e.Regs.SetX(v)
	case regfile.Y:
		e.Regs.SetY(v)
	case regfile.Z:
		e.Regs.SetZ(v)
	}
}

func (e *Engine) extendedValue(base byte) uint32 {
	return uint32(e.pairValue(base)) | uint32(e.IO.RampByte(base))<<16
}

func (e *Engine) setExtendedValue(base byte, v uint32) {
	e.setPairValue(base, uint16(v))
	e.IO.SetRampByte(base, byte(v>>16))
}

// resolveMem computes the effective address for a memory operand, applying
// pre-decrement immediately and returning a finish func that applies
// post-increment once the caller has performed its access.
func (e *Engine) resolveMem(m decode.MemOperand) (addr uint32, finish func()) {
	if m.Extended {
		base := e.extendedValue(m.Base)
		if m.Update == decode.UpdatePreDec {
			base = (base - 1) & 0xFFFFFF
			e.setExtendedValue(m.Base, base)
		}
		addr = uint32(int64(base)+int64(m.Displacement)) & 0xFFFFFF
		finish = func() {
			if m.Update == decode.UpdatePostInc {
				e.setExtendedValue(m.Base, (base+1)&0xFFFFFF)
			}
		}
		return addr, finish
	}

	base := e.pairValue(m.Base)
	if m.Update == decode.UpdatePreDec {
		base--
		e.setPairValue(m.Base, base)
	}
	addr = uint32(int32(base) + int32(m.Displacement))
	finish = func() {
		if m.Update == decode.UpdatePostInc {
			e.setPairValue(m.Base, base+1)
		}
	}
	return addr, finish
}

func carryIn(s bool) byte {
	if s {
		return 1
	}
	return 0
}

// execute dispatches a decoded instruction, returning the (possibly
// overridden) next program counter. nextPC enters already set to the
// fall-through address; only control-flow opcodes need to change it.
func (e *Engine) execute(insn decode.Instruction, nextPC uint32) (uint32, error) {
	switch insn.Op {
	case decode.NOP:

	case decode.LDI:
		e.Regs.Set8(insn.Rd, byte(insn.K))
	case decode.MOV:
		e.Regs.Set8(insn.Rd, e.Regs.Get8(insn.Rr))
	case decode.MOVW:
		e.Regs.Set16(insn.Rd, e.Regs.Get16(insn.Rr))

	case decode.ANDI:
		r := e.Regs.Get8(insn.Rd) & byte(insn.K)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyLogical(r)
	case decode.ORI:
		r := e.Regs.Get8(insn.Rd) | byte(insn.K)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyLogical(r)
	case decode.AND:
		r := e.Regs.Get8(insn.Rd) & e.Regs.Get8(insn.Rr)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyLogical(r)
	case decode.OR:
		r := e.Regs.Get8(insn.Rd) | e.Regs.Get8(insn.Rr)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyLogical(r)
	case decode.EOR:
		r := e.Regs.Get8(insn.Rd) ^ e.Regs.Get8(insn.Rr)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyLogical(r)

	case decode.LSR:
		before := e.Regs.Get8(insn.Rd)
		after := before >> 1
		e.Regs.Set8(insn.Rd, after)
		e.SREG.ApplyShift(before, after)
	case decode.ASR:
		before := e.Regs.Get8(insn.Rd)
		after := byte(int8(before) >> 1)
		e.Regs.Set8(insn.Rd, after)
		e.SREG.ApplyShift(before, after)
	case decode.ROR:
		before := e.Regs.Get8(insn.Rd)
		after := before >> 1
		if e.SREG.C {
			after |= 0x80
		}
		e.Regs.Set8(insn.Rd, after)
		e.SREG.ApplyShift(before, after)
	case decode.SWAP:
		v := e.Regs.Get8(insn.Rd)
		e.Regs.Set8(insn.Rd, v<<4|v>>4)

	case decode.ADD:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		r := rd + rr
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyAdd(rd, rr, r)
	case decode.ADC:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		r := rd + rr + carryIn(e.SREG.C)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyAdd(rd, rr, r)

	case decode.CP:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		e.SREG.ApplySub(rd, rr, rd-rr, false)
	case decode.CPI:
		rd, k := e.Regs.Get8(insn.Rd), byte(insn.K)
		e.SREG.ApplySub(rd, k, rd-k, false)
	case decode.CPC:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		c := carryIn(e.SREG.C)
		e.SREG.ApplySub(rd, rr, rd-rr-c, true)

	case decode.SUB:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		r := rd - rr
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplySub(rd, rr, r, false)
	case decode.SUBI:
		rd, k := e.Regs.Get8(insn.Rd), byte(insn.K)
		r := rd - k
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplySub(rd, k, r, false)
	case decode.SBC:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		c := carryIn(e.SREG.C)
		r := rd - rr - c
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplySub(rd, rr, r, true)
	case decode.SBCI:
		rd, k := e.Regs.Get8(insn.Rd), byte(insn.K)
		c := carryIn(e.SREG.C)
		r := rd - k - c
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplySub(rd, k, r, true)

	case decode.ADIW:
		before := e.Regs.Get16(insn.Rd)
		r := before + insn.K
		e.Regs.Set16(insn.Rd, r)
		e.SREG.ApplyAdiw(before, r)
	case decode.SBIW:
		before := e.Regs.Get16(insn.Rd)
		r := before - insn.K
		e.Regs.Set16(insn.Rd, r)
		e.SREG.ApplySbiw(before, r)

	case decode.INC:
		before := e.Regs.Get8(insn.Rd)
		e.Regs.Set8(insn.Rd, before+1)
		e.SREG.ApplyInc(before)
	case decode.DEC:
		before := e.Regs.Get8(insn.Rd)
		e.Regs.Set8(insn.Rd, before-1)
		e.SREG.ApplyDec(before)
	case decode.COM:
		r := ^e.Regs.Get8(insn.Rd)
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyCom(r)
	case decode.NEG:
		before := e.Regs.Get8(insn.Rd)
		r := -before
		e.Regs.Set8(insn.Rd, r)
		e.SREG.ApplyNeg(before, r)
	case decode.MUL:
		rd, rr := e.Regs.Get8(insn.Rd), e.Regs.Get8(insn.Rr)
		product := uint16(rd) * uint16(rr)
		e.Regs.Set16(0, product)
		e.SREG.ApplyMul(product)

	case decode.IN:
		e.Regs.Set8(insn.Rd, e.IO.Read8(uint32(insn.K)))
	case decode.OUT:
		e.IO.Write8(uint32(insn.K), e.Regs.Get8(insn.Rr))

	case decode.LPM:
		e.Regs.Set8(0, e.Mem.ByteAt(uint32(e.Regs.Z())))
	case decode.LPMReg:
		addr, finish := e.resolveMem(insn.Mem)
		e.Regs.Set8(insn.Rd, e.Mem.ByteAt(addr))
		finish()
	case decode.ELPM:
		e.Regs.Set8(0, e.Mem.ByteAt(e.extendedValue(regfile.Z)))
	case decode.ELPMReg:
		addr, finish := e.resolveMem(insn.Mem)
		e.Regs.Set8(insn.Rd, e.Mem.ByteAt(addr))
		finish()

	case decode.LD, decode.LDD:
		addr, finish := e.resolveMem(insn.Mem)
		e.Regs.Set8(insn.Rd, e.IO.Read8(addr))
		finish()
	case decode.ST, decode.STD:
		addr, finish := e.resolveMem(insn.Mem)
		e.IO.Write8(addr, e.Regs.Get8(insn.Rr))
		finish()
	case decode.LDS:
		e.Regs.Set8(insn.Rd, e.IO.Read8(uint32(insn.K)))
	case decode.STS:
		e.IO.Write8(uint32(insn.K), e.Regs.Get8(insn.Rr))

	case decode.PUSH:
		e.IO.Push8(e.Regs.Get8(insn.Rd))
	case decode.POP:
		e.Regs.Set8(insn.Rd, e.IO.Pop8())

	case decode.JMP:
		nextPC = insn.Addr * 2
	case decode.RJMP:
		nextPC = uint32(int64(nextPC) + int64(insn.WordOffset)*2)
		if insn.WordOffset == -1 && !e.SREG.I {
			e.halted = true
		}
	case decode.CALL:
		e.pushCall(nextPC, insn.Addr*2)
		nextPC = insn.Addr * 2
	case decode.RCALL:
		target := uint32(int64(nextPC) + int64(insn.WordOffset)*2)
		e.pushCall(nextPC, target)
		nextPC = target
	case decode.EIJMP:
		nextPC = (uint32(e.IO.EIND())<<16 | uint32(e.Regs.Z())) * 2
	case decode.EICALL:
		target := (uint32(e.IO.EIND())<<16 | uint32(e.Regs.Z())) * 2
		e.pushCall(nextPC, target)
		nextPC = target
	case decode.RET:
		nextPC = e.IO.Pop24() << 1
		e.pruneCallStack()
	case decode.RETI:
		nextPC = e.IO.Pop24() << 1
		e.SREG.I = true
		e.pruneCallStack()

	case decode.BRANCH:
		bit := e.SREG.Byte()&(1<<insn.FlagBit) != 0
		taken := bit
		if insn.Negate {
			taken = !bit
		}
		if taken {
			nextPC = uint32(int64(nextPC) + int64(insn.WordOffset)*2)
		}

	case decode.SBRC:
		e.skipNext = e.Regs.Get8(insn.Rr)&(1<<insn.Bit) == 0
	case decode.SBRS:
		e.skipNext = e.Regs.Get8(insn.Rr)&(1<<insn.Bit) != 0
	case decode.CPSE:
		e.skipNext = e.Regs.Get8(insn.Rd) == e.Regs.Get8(insn.Rr)

	case decode.BST:
		e.SREG.T = e.Regs.Get8(insn.Rr)&(1<<insn.Bit) != 0
	case decode.BLD:
		v := e.Regs.Get8(insn.Rd)
		if e.SREG.T {
			v |= 1 << insn.Bit
		} else {
			v &^= 1 << insn.Bit
		}
		e.Regs.Set8(insn.Rd, v)

	case decode.SetFlag:
		e.SREG.SetByte(e.SREG.Byte() | 1<<insn.FlagBit)
	case decode.ClrFlag:
		e.SREG.SetByte(e.SREG.Byte() &^ (1 << insn.FlagBit))

	default:
		return nextPC, e.fatal("<unhandled-kind>", "decoded instruction has no execute case")
	}

	return nextPC, nil
}

// pushCall records a shadow call-stack frame and pushes the word-scaled
// return address.
func (e *Engine) pushCall(returnPC, target uint32) {
	e.CallStack = append(e.CallStack, Frame{
		SPAtCall: e.IO.SP(),
		CallerPC: e.PC,
		CalleePC: target,
	})
	e.IO.Push24(returnPC >> 1)
}

// pruneCallStack discards shadow frames whose recorded stack pointer is at
// or below the current one: stale frames left behind by a completed return,
// or by an "rcall .+0" idiom that only allocated stack space.
func (e *Engine) pruneCallStack() {
	sp := e.IO.SP()
	kept := e.CallStack[:0]
	for _, f := range e.CallStack {
		if f.SPAtCall > sp {
			kept = append(kept, f)
		}
	}
	e.CallStack = kept
}
