package zipstream

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeName_UTF8FlagTakesPrecedence(t *testing.T) {
	name := decodeName([]byte("café.txt"), 0x0800, nil)
	assert.Equal(t, "café.txt", name)
}

func TestDecodeName_CP437Fallback(t *testing.T) {
	// 0x87 is 'ç' in CP437; without the UTF-8 flag or a Unicode Path extra
	// field, the name must fall back to CP437.
	name := decodeName([]byte{'c', 0x87, 'a'}, 0, nil)
	assert.Equal(t, "cça", name)
}

// patternReader streams n deterministic bytes (i % 256) without ever
// materializing the whole sequence in memory.
type patternReader struct {
	remaining int64
	pos       int64
}

func (p *patternReader) Read(b []byte) (int, error) {
	if p.remaining <= 0 {
		return 0, io.EOF
	}
	n := int64(len(b))
	if n > p.remaining {
		n = p.remaining
	}
	for i := int64(0); i < n; i++ {
		b[i] = byte((p.pos + i) % 256)
	}
	p.pos += n
	p.remaining -= n
	return int(n), nil
}

func TestEntry_LargeStoredEntryRoundTrips(t *testing.T) {
	const size = 50 * 1024 * 1024 // 50 MiB

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), Entry{
		Name: "big.bin",
		Open: func() (io.Reader, error) {
			return &patternReader{remaining: size}, nil
		},
	}))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	for f, err := range r.Entries() {
		require.NoError(t, err)
		assert.EqualValues(t, size, f.Size())

		got, err := f.Bytes()
		require.NoError(t, err)
		assert.Len(t, got, size)

		want := make([]byte, 1024)
		for i := range want {
			want[i] = byte(i % 256)
		}
		assert.Equal(t, want, got[:1024])

		wantTail := make([]byte, 1024)
		for i := range wantTail {
			wantTail[i] = byte((size - 1024 + i) % 256)
		}
		assert.Equal(t, wantTail, got[len(got)-1024:])
	}
}

func TestEntry_TimestampFidelity(t *testing.T) {
	written := time.Date(2024, time.June, 15, 9, 30, 21, 0, time.Local)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), Entry{
		Name:         "timed.txt",
		LastModified: written,
		Open: func() (io.Reader, error) {
			return bytes.NewReader([]byte("x")), nil
		},
	}))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	for f, err := range r.Entries() {
		require.NoError(t, err)
		assert.WithinDuration(t, written, f.LastModified(), 2*time.Second)
	}
}

func TestEntry_RawBytesMatchesStoredBytesForStore(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), stringEntry("raw.txt", "raw content")))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	for f, err := range r.Entries() {
		require.NoError(t, err)
		raw, err := f.RawBytes()
		require.NoError(t, err)
		assert.Equal(t, []byte("raw content"), raw)
	}
}
