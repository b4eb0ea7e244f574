package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"avre/engine"
	"avre/progmem"
)

func newModelWithWords(words []uint16) model {
	mem := progmem.New()
	mem.LoadWords(words)
	return New(engine.New(mem))
}

func TestPageTableShowsStackPointerCell(t *testing.T) {
	m := newModelWithWords([]uint16{0xCFFF})
	m.eng.IO.SetSP(0x2003)
	out := m.pageTable()
	assert.Contains(t, out, "addr   |")
	assert.Contains(t, out, "[00]")
}

func TestStatusShowsFlagLetters(t *testing.T) {
	m := newModelWithWords([]uint16{0xCFFF})
	out := m.status()
	assert.Contains(t, out, "C Z N V S H T I")
	assert.Contains(t, out, "r0 :")
}

func TestCurrentInstructionDumpsDecodedOpcode(t *testing.T) {
	m := newModelWithWords([]uint16{0xE005})
	out := m.currentInstruction()
	assert.Contains(t, out, "LDI")
}

func TestUpdateStepsOnSpace(t *testing.T) {
	m := newModelWithWords([]uint16{0xE005, 0xCFFF})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Nil(t, cmd)
	nm := next.(model)
	assert.Equal(t, uint32(2), nm.eng.PC)
	assert.Equal(t, byte(5), nm.eng.Regs.Get8(16))
}

func TestUpdateQuitsOnQ(t *testing.T) {
	m := newModelWithWords([]uint16{0xCFFF})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
}
