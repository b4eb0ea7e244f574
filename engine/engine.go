// Package engine implements the fetch/decode/execute core: it owns the
// register file, status register, I/O memory, program memory, the call
// stack shadow, and the program counter, and drives them one instruction at
// a time. It is the AVR analogue of the teacher's Cpu.tick/Cpu.loop pair,
// generalized from a fixed-cycle NES dispatch table to the branch-heavy,
// variable-width AVR instruction set.
package engine

import (
	"context"
	"fmt"
	"os"

	"avre/decode"
	"avre/iomem"
	"avre/progmem"
	"avre/regfile"
	"avre/sreg"

	"github.com/davecgh/go-spew/spew"
)

// Frame is one entry of the call-stack shadow: purely informational,
// never consulted for control flow.
type Frame struct {
	SPAtCall  uint16
	CallerPC  uint32
	CalleePC  uint32
}

// FatalError reports an unrecoverable condition encountered mid-run: a
// decode failure, an opcode the engine does not implement, or an
// addressing precondition violation. The engine has already dumped state
// by the time this is returned.
type FatalError struct {
	Opcode string
	PC     uint32
	Count  uint64
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("engine: fatal at pc=%#06x (insn #%d): %s (%s)", e.PC, e.Count, e.Reason, e.Opcode)
}

// Engine holds the complete architectural state of one AVR core.
type Engine struct {
	Regs regfile.File
	SREG sreg.SReg
	Mem  *progmem.Memory
	IO   *iomem.Space

	PC       uint32 // byte address
	skipNext bool
	halted   bool
	count    uint64

	CallStack []Frame

	// Signals, when non-nil, is polled (non-blocking) at the top of every
	// step; receipt of a signal triggers a diagnostic dump but otherwise
	// does not affect machine state.
	Signals <-chan os.Signal
}

// New returns a freshly reset engine wrapping the given program image.
func New(mem *progmem.Memory) *Engine {
	e := &Engine{Mem: mem}
	e.IO = iomem.New(&e.SREG)
	e.Reset()
	return e
}

// Reset restores the engine to its power-on state: PC = 0, not halted, zero
// instructions executed. Register and I/O contents are left as-is, matching
// the reference implementation's reset semantics (only control state, not
// general memory, is reinitialized).
func (e *Engine) Reset() {
	e.PC = 0
	e.skipNext = false
	e.halted = false
	e.count = 0
	e.CallStack = nil
}

// Halted reports whether the engine has reached the idiomatic
// __stop_program self-loop.
func (e *Engine) Halted() bool { return e.halted }

// InstructionCount returns the number of instructions committed so far.
func (e *Engine) InstructionCount() uint64 { return e.count }

// Step executes exactly one instruction, then dumps the resulting state.
func (e *Engine) Step() error {
	if err := e.step(); err != nil {
		return err
	}
	e.DumpState()
	return nil
}

// StepQuiet executes exactly one instruction without printing a diagnostic
// dump, for callers (the interactive debugger) that render their own view of
// the resulting state.
func (e *Engine) StepQuiet() error {
	return e.step()
}

// Run executes until halted or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for !e.halted {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

// Until executes until halted, ctx is cancelled, or PC equals targetPC at
// an instruction boundary.
func (e *Engine) Until(ctx context.Context, targetPC uint32) error {
	for !e.halted && e.PC != targetPC {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) pollSignal() {
	if e.Signals == nil {
		return
	}
	select {
	case <-e.Signals:
		e.DumpState()
	default:
	}
}

// step is the single fetch/decode/execute primitive that Step/Run/Until all
// drive.
func (e *Engine) step() error {
	e.pollSignal()

	wordIndex := e.PC >> 1
	words := e.Mem.WordsAt(wordIndex)
	if len(words) == 0 {
		return e.fatal("<end-of-image>", "program counter ran past the end of program memory")
	}

	insn, wordLen, err := decode.Decode(words)
	if err != nil {
		return e.fatal(fmt.Sprintf("%#04x", words[0]), err.Error())
	}
	byteSize := uint32(wordLen * 2)
	nextPC := e.PC + byteSize

	if e.skipNext {
		e.skipNext = false
	} else {
		newNextPC, err := e.execute(insn, nextPC)
		if err != nil {
			return err
		}
		nextPC = newNextPC
	}

	e.PC = nextPC
	e.count++
	return nil
}

func (e *Engine) fatal(opcode, reason string) error {
	e.DumpState()
	return &FatalError{Opcode: opcode, PC: e.PC, Count: e.count, Reason: reason}
}

// DumpState prints a full diagnostic snapshot: PC, the decoded instruction at
// PC, SP, SREG letters, all 32 registers in 8-byte rows, the 24-bit
// (RAMPx-extended) X/Y/Z, the call-stack shadow, and the 16 bytes at the top
// of the stack. It never alters machine state.
func (e *Engine) DumpState() {
	fmt.Printf("--- state @ pc=%#06x insn#%d ---\n", e.PC, e.count)
	if words := e.Mem.WordsAt(e.PC >> 1); len(words) > 0 {
		if insn, _, err := decode.Decode(words); err == nil {
			fmt.Printf("insn: %s", spew.Sdump(insn))
		} else {
			fmt.Printf("insn: %v\n", err)
		}
	}
	fmt.Printf("SREG: %s  SP: %#04x\n", e.SREG.String(), e.IO.SP())
	for row := 0; row < 32; row += 8 {
		fmt.Printf("r%-2d:", row)
		for i := 0; i < 8; i++ {
			fmt.Printf(" %02x", e.Regs.Get8(byte(row+i)))
		}
		fmt.Println()
	}
	fmt.Printf("X: %#06x  Y: %#06x  Z: %#06x\n",
		e.extendedValue(regfile.X), e.extendedValue(regfile.Y), e.extendedValue(regfile.Z))
	fmt.Println(spew.Sdump(e.CallStack))
	sp := e.IO.SP()
	fmt.Print("stack:")
	for i := uint16(0); i < 16; i++ {
		fmt.Printf(" %02x", e.IO.Read8(uint32(sp+i)))
	}
	fmt.Println()
}
