package zipfmt

import (
	"hash"
	"hash/crc32"
)

// CRC32Accumulator wraps the IEEE 802.3 (reflected, 0xEDB88320) CRC-32 used
// by every ZIP record, exposing incremental Write and a final Sum32.
//
// The zero value is not ready for use; construct with NewCRC32Accumulator.
type CRC32Accumulator struct {
	h hash.Hash32
}

// NewCRC32Accumulator returns a ready-to-use accumulator. Sum32 on an
// accumulator that never saw a Write returns 0, the CRC-32 of empty input.
func NewCRC32Accumulator() *CRC32Accumulator {
	return &CRC32Accumulator{h: crc32.NewIEEE()}
}

// Write feeds bytes into the running CRC. It never returns an error.
func (c *CRC32Accumulator) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Sum32 returns the CRC-32 of all bytes written so far.
func (c *CRC32Accumulator) Sum32() uint32 {
	return c.h.Sum32()
}

// Reset clears the accumulator back to its initial state.
func (c *CRC32Accumulator) Reset() {
	c.h.Reset()
}
