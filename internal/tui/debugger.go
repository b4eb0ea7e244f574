// Package tui implements the interactive step debugger behind `avre debug`.
// It is a direct generalization of the teacher's NES page-table model: the
// same page-table-plus-status-panel layout, widened from a 64 KB fixed Bus
// to a scrollable window into the engine's 2^24 I/O-and-data space, and a
// register/flag panel that speaks AVR's eight independent SREG flags instead
// of the 6502's packed P register.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"avre/decode"
	"avre/engine"
)

const pageRows = 5

type model struct {
	eng *engine.Engine

	offset uint32 // first address shown in the SRAM page table
	prevPC uint32
	err    error
}

// New returns a debugger model wrapping an already-loaded engine, viewing
// the SRAM window starting just past the I/O register space.
func New(e *engine.Engine) model {
	return model{eng: e, offset: 0x2000}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "j":
			if m.eng.Halted() {
				return m, nil
			}
			m.prevPC = m.eng.PC
			if err := m.eng.StepQuiet(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		case "down":
			m.offset += 16 * pageRows
		case "up":
			if m.offset >= 16*pageRows {
				m.offset -= 16 * pageRows
			}
		}
	}
	return m, nil
}

// renderPage renders one 16-byte row of the SRAM window as a line.
func (m model) renderPage(start uint32) string {
	s := fmt.Sprintf("%06x | ", start)
	for i := uint32(0); i < 16; i++ {
		addr := start + i
		b := m.eng.IO.PeekSRAM(addr)
		if addr == uint32(m.eng.IO.SP()) {
			s += fmt.Sprintf("[%02x] ", b)
		} else {
			s += fmt.Sprintf(" %02x  ", b)
		}
	}
	return s
}

func (m model) pageTable() string {
	header := "addr   | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf("  %01x  ", b)
	}
	lines := []string{header}
	for row := 0; row < pageRows; row++ {
		lines = append(lines, m.renderPage(m.offset+uint32(row*16)))
	}
	return strings.Join(lines, "\n")
}

func (m model) status() string {
	var flags string
	for _, f := range m.eng.SREG.String() {
		if f == '.' {
			flags += "  "
		} else {
			flags += string(f) + " "
		}
	}

	var regs strings.Builder
	for row := 0; row < 32; row += 8 {
		fmt.Fprintf(&regs, "r%-2d:", row)
		for i := 0; i < 8; i++ {
			fmt.Fprintf(&regs, " %02x", m.eng.Regs.Get8(byte(row+i)))
		}
		regs.WriteByte('\n')
	}

	return fmt.Sprintf(`
PC: %#06x (was %#06x)
SP: %#04x  insn#: %d  halted: %v
X: %#04x  Y: %#04x  Z: %#04x
call depth: %d

%s
C Z N V S H T I
%s`,
		m.eng.PC, m.prevPC,
		m.eng.IO.SP(), m.eng.InstructionCount(), m.eng.Halted(),
		m.eng.Regs.X(), m.eng.Regs.Y(), m.eng.Regs.Z(),
		len(m.eng.CallStack),
		regs.String(),
		flags,
	)
}

func (m model) currentInstruction() string {
	wordIndex := m.eng.PC >> 1
	words := m.eng.Mem.WordsAt(wordIndex)
	if len(words) == 0 {
		return "<end of image>"
	}
	insn, _, err := decode.Decode(words)
	if err != nil {
		return err.Error()
	}
	return spew.Sdump(insn)
}

func (m model) View() string {
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			m.status(),
		),
		"",
		m.currentInstruction(),
		"space/j: step   up/down: scroll SRAM window   q: quit",
	)
	if m.err != nil {
		body += fmt.Sprintf("\nerror: %v\n", m.err)
	}
	return body
}

// Run starts the interactive debugger against an already-loaded engine and
// blocks until the user quits.
func Run(e *engine.Engine) error {
	p := tea.NewProgram(New(e))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
