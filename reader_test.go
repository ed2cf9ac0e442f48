package zipstream

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader_InvalidBlobFails(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5}), 5)
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestNewReader_EmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.EqualValues(t, 0, r.EntryCount())

	count := 0
	for range r.Entries() {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestReader_IndependentAndIdempotentReads(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), stringEntry("a.txt", "alpha content")))
	require.NoError(t, w.Add(context.Background(), stringEntry("b.txt", "beta content")))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var files []*File
	for f, err := range r.Entries() {
		require.NoError(t, err)
		files = append(files, f)
	}
	require.Len(t, files, 2)

	// Idempotence: repeated reads of the same handle agree.
	first, err := files[0].Bytes()
	require.NoError(t, err)
	second, err := files[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Independence: reading file[1] does not disturb file[0]'s view.
	otherText, err := files[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "beta content", otherText)

	thirdRead, err := files[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, thirdRead)
}

func TestReader_WriteToStreamsDecodedContent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), stringEntry("stream.txt", strings.Repeat("ab", 1000))))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var out bytes.Buffer
	for f, err := range r.Entries() {
		require.NoError(t, err)
		n, err := f.WriteTo(context.Background(), &out)
		require.NoError(t, err)
		assert.EqualValues(t, 2000, n)
	}

	assert.Equal(t, strings.Repeat("ab", 1000), out.String())
}

func TestReader_FileAccessorReconstructsEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), stringEntry("reconstructed.txt", "payload")))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	for f, err := range r.Entries() {
		require.NoError(t, err)
		df, err := f.File()
		require.NoError(t, err)
		assert.Equal(t, "reconstructed.txt", df.Name)
		assert.Equal(t, []byte("payload"), df.Bytes)
	}
}

func TestReader_SetNameAndLastModifiedAreInMemoryOnly(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Add(context.Background(), stringEntry("rename-me.txt", "x")))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	for f, err := range r.Entries() {
		require.NoError(t, err)
		require.NoError(t, f.SetName("renamed.txt"))
		assert.Equal(t, "renamed.txt", f.Name())
		assert.ErrorIs(t, f.SetName("  "), ErrTypeError)

		moved := time.Date(2001, time.February, 3, 4, 5, 6, 0, time.Local)
		require.NoError(t, f.SetLastModified(moved))
		assert.Equal(t, moved, f.LastModified())
		assert.ErrorIs(t, f.SetLastModified(time.Time{}), ErrTypeError)
	}

	// Re-reading the archive from scratch shows the on-disk name and
	// timestamp are untouched.
	r2, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	for f, err := range r2.Entries() {
		require.NoError(t, err)
		assert.Equal(t, "rename-me.txt", f.Name())
		assert.WithinDuration(t, time.Date(2024, time.March, 17, 13, 37, 0, 0, time.Local), f.LastModified(), 2*time.Second)
	}
}
