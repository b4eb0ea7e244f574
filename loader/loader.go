// Package loader reads a raw firmware image off disk into program memory.
package loader

import (
	"fmt"
	"os"

	"avre/progmem"
)

// LoadFile reads path as a raw little-endian program image and loads it into
// a fresh progmem.Memory.
func LoadFile(path string) (*progmem.Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	mem := progmem.New()
	if err := mem.LoadBytes(b); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return mem, nil
}

// LoadUsartInputFile reads path as a raw byte stream to pre-load into the
// engine's USART input FIFO, via the iomem.Space the caller owns.
func LoadUsartInputFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading usart input %s: %w", path, err)
	}
	return b, nil
}
