// Package iomem implements the unified 24-bit I/O-and-data address space: a
// handful of memory-mapped registers (RAMP/EIND/SP/SREG, a status-only
// oscillator register, a minimal RTC, a USART) backed by a sparse data store
// for every other address, including the low addresses below SRAMStart where
// the stack lives at reset (SP = 0). Unlike the teacher's fixed 64 kB Bus,
// this address space is wide enough (2^24 bytes, to cover RAMPx-extended
// addressing) that a backing array would be wasteful; cells are allocated
// lazily, the way the reference implementation's single flat `data_mem`
// backs everything but the named registers.
package iomem

import (
	"fmt"

	"avre/sreg"
)

// Addresses of the memory-mapped registers this space recognizes by name.
const (
	AddrRAMPD = 0x38
	AddrRAMPX = 0x39
	AddrRAMPY = 0x3A
	AddrRAMPZ = 0x3B
	AddrEIND  = 0x3C
	AddrSPL   = 0x3D
	AddrSPH   = 0x3E
	AddrSREG  = 0x3F

	AddrOSCStatus = 0x51

	AddrRTCControl = 0x401
	AddrRTCLow     = 0x408
	AddrRTCHigh    = 0x409

	AddrUSARTData   = 0x08A0
	AddrUSARTStatus = 0x08A1

	// SRAMStart is where the spec's data model names the space "ordinary
	// SRAM"; it is not a boundary the backing store itself enforces (data
	// below it, such as the stack, is backed the same way).
	SRAMStart = 0x2000
)

// Space is the flat byte-addressable I/O-and-data memory. It does not own
// the register file or program memory; it owns the status register mirror,
// the RAMP/EIND/SP bytes, the RTC and USART peripherals, and the backing
// store for every other address in the 2^24 data space.
type Space struct {
	sreg *sreg.SReg

	rampd, rampx, rampy, rampz byte
	eind                       byte
	spl, sph                   byte

	rtc uint16

	usartInput  []byte
	usartOutput []byte

	data map[uint32]byte
}

// New returns an I/O-and-data space backed by the given status register. The
// status register is owned by the caller (typically the execution engine);
// Space only mirrors it through the SREG address.
func New(s *sreg.SReg) *Space {
	return &Space{sreg: s, data: make(map[uint32]byte)}
}

// SP returns the current 16-bit stack pointer.
func (sp *Space) SP() uint16 {
	return uint16(sp.spl) | uint16(sp.sph)<<8
}

// SetSP sets the 16-bit stack pointer.
func (sp *Space) SetSP(v uint16) {
	sp.spl = byte(v)
	sp.sph = byte(v >> 8)
}

// RampByte returns the extended-addressing high byte for the named pair
// register (regfile.X/Y/Z, or the special RAMPD case for direct addressing).
func (sp *Space) RampByte(base byte) byte {
	switch base {
	case 26: // regfile.X
		return sp.rampx
	case 28: // regfile.Y
		return sp.rampy
	case 30: // regfile.Z
		return sp.rampz
	default:
		return sp.rampd
	}
}

// SetRampByte sets the extended-addressing high byte for the named pair
// register.
func (sp *Space) SetRampByte(base byte, v byte) {
	switch base {
	case 26:
		sp.rampx = v
	case 28:
		sp.rampy = v
	case 30:
		sp.rampz = v
	default:
		sp.rampd = v
	}
}

// EIND returns the high byte used to extend indirect jump/call targets.
func (sp *Space) EIND() byte { return sp.eind }

// UsartOutputLog returns the full sequence of bytes written to the USART
// data register so far.
func (sp *Space) UsartOutputLog() []byte {
	return append([]byte(nil), sp.usartOutput...)
}

// LoadUsartInput appends bytes to the USART input FIFO, to be consumed by
// subsequent reads of the USART data register.
func (sp *Space) LoadUsartInput(b []byte) {
	sp.usartInput = append(sp.usartInput, b...)
}

// Read8 reads one byte from the space, dispatching to the appropriate
// memory-mapped register or to SRAM.
func (sp *Space) Read8(addr uint32) byte {
	switch addr {
	case AddrRAMPD:
		return sp.rampd
	case AddrRAMPX:
		return sp.rampx
	case AddrRAMPY:
		return sp.rampy
	case AddrRAMPZ:
		return sp.rampz
	case AddrEIND:
		return sp.eind
	case AddrSPL:
		return sp.spl
	case AddrSPH:
		return sp.sph
	case AddrSREG:
		return sp.sreg.Byte()
	case AddrOSCStatus:
		return 0xFF
	case AddrRTCControl:
		return 0
	case AddrRTCLow:
		sp.rtc += 1000
		return byte(sp.rtc)
	case AddrRTCHigh:
		return byte(sp.rtc >> 8)
	case AddrUSARTData:
		if len(sp.usartInput) == 0 {
			fmt.Printf("WARNING: USART data read with empty input FIFO\n")
			return 0
		}
		b := sp.usartInput[0]
		sp.usartInput = sp.usartInput[1:]
		return b
	case AddrUSARTStatus:
		var status byte = 1 << 5
		if len(sp.usartInput) > 0 {
			status |= 1 << 7
		}
		return status
	}
	return sp.data[addr]
}

// Write8 writes one byte to the space, dispatching to the appropriate
// memory-mapped register or to SRAM.
func (sp *Space) Write8(addr uint32, v byte) {
	switch addr {
	case AddrRAMPD:
		sp.rampd = v
	case AddrRAMPX:
		sp.rampx = v
	case AddrRAMPY:
		sp.rampy = v
	case AddrRAMPZ:
		sp.rampz = v
	case AddrEIND:
		sp.eind = v
	case AddrSPL:
		sp.spl = v
	case AddrSPH:
		sp.sph = v
	case AddrSREG:
		sp.sreg.SetByte(v)
	case AddrUSARTData:
		sp.usartOutput = append(sp.usartOutput, v)
		if v == '\n' || v == '\t' || v == '\r' || v == '\f' || (v >= 0x20 && v < 0x7F) {
			fmt.Printf("%c", v)
		}
	case AddrUSARTStatus, AddrOSCStatus, AddrRTCControl, AddrRTCLow, AddrRTCHigh:
		// status-only registers; writes are accepted and discarded
	default:
		sp.data[addr] = v
	}
}

// PeekSRAM reads addr without dispatch warnings or RTC/USART side effects,
// for diagnostic views that scan an address range (the TUI page table).
// Named registers below SRAMStart are not reflected here; ordinary data
// cells, including ones below SRAMStart such as the stack, read back their
// real contents.
func (sp *Space) PeekSRAM(addr uint32) byte {
	return sp.data[addr]
}

// Read16 reads a little-endian 16-bit value at addr, consuming addr then
// addr+1.
func (sp *Space) Read16(addr uint32) uint16 {
	lo := sp.Read8(addr)
	hi := sp.Read8(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// Write16 writes a little-endian 16-bit value at addr, writing addr then
// addr+1.
func (sp *Space) Write16(addr uint32, v uint16) {
	sp.Write8(addr, byte(v))
	sp.Write8(addr+1, byte(v>>8))
}

// Push8 stores v at the current stack pointer, then decrements it.
func (sp *Space) Push8(v byte) {
	sp.Write8(uint32(sp.SP()), v)
	sp.SetSP(sp.SP() - 1)
}

// Pop8 increments the stack pointer, then returns the byte stored there.
func (sp *Space) Pop8() byte {
	sp.SetSP(sp.SP() + 1)
	return sp.Read8(uint32(sp.SP()))
}

// Push24 pushes a 24-bit value as three successive Push8 calls: low, mid,
// high.
func (sp *Space) Push24(v uint32) {
	sp.Push8(byte(v))
	sp.Push8(byte(v >> 8))
	sp.Push8(byte(v >> 16))
}

// Pop24 reverses Push24.
func (sp *Space) Pop24() uint32 {
	hi := sp.Pop8()
	mid := sp.Pop8()
	lo := sp.Pop8()
	return uint32(lo) | uint32(mid)<<8 | uint32(hi)<<16
}
