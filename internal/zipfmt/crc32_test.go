package zipfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32Accumulator_EmptyInputIsZero(t *testing.T) {
	c := NewCRC32Accumulator()
	assert.Equal(t, uint32(0), c.Sum32())
}

func TestCRC32Accumulator_KnownValue(t *testing.T) {
	c := NewCRC32Accumulator()
	_, err := c.Write([]byte("Hello, World!"))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0xec4ac3d0), c.Sum32())
}

func TestCRC32Accumulator_IncrementalMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	oneShot := NewCRC32Accumulator()
	_, _ = oneShot.Write(data)

	incremental := NewCRC32Accumulator()
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		_, _ = incremental.Write(data[i:end])
	}

	assert.Equal(t, oneShot.Sum32(), incremental.Sum32())
}

func TestCRC32Accumulator_Reset(t *testing.T) {
	c := NewCRC32Accumulator()
	_, _ = c.Write([]byte("data"))
	assert.NotEqual(t, uint32(0), c.Sum32())

	c.Reset()
	assert.Equal(t, uint32(0), c.Sum32())
}
