package zipstream

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"encoding/binary"

	"github.com/klauspost/compress/flate"

	"github.com/nguyengg/zipstream/internal/zipfmt"
)

// DecodedFile is the reconstructed "file" view of an entry: its name,
// timestamp, and fully decoded content.
type DecodedFile struct {
	Name         string
	LastModified time.Time
	Bytes        []byte
}

// File is a lazy handle onto one central directory record. Its scalar
// fields (name, size, crc32, ...) are decoded eagerly when the Reader
// walks the central directory; its content is only fetched from the blob
// when Bytes, Text, Open, RawBytes, WriteTo, or File is called.
//
// Multiple reads of the same File are independent and idempotent: none of
// them mutate the underlying blob, and File itself holds no read cursor.
type File struct {
	reader *Reader

	name         string
	comment      string
	lastModified time.Time
	method       uint16
	flags        uint16
	crc32        uint32

	size           uint64
	compressedSize uint64
	offset         uint64
	externalAttrs  uint32
	directory      bool
	zip64          bool
	extra          []byte

	dataStartResolved bool
	dataStart         int64
	dataStartErr      error
}

// Name returns the entry's decoded path.
func (f *File) Name() string { return f.name }

// SetName overrides the in-memory name without touching the underlying
// blob.
func (f *File) SetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("entry name must not be empty: %w", ErrTypeError)
	}
	f.name = name
	return nil
}

// Comment returns the entry's stored comment, if any.
func (f *File) Comment() string { return f.comment }

// LastModified returns the entry's timestamp, reconstructed from the
// MS-DOS date/time fields (local time, ±2s resolution).
func (f *File) LastModified() time.Time { return f.lastModified }

// SetLastModified overrides the in-memory timestamp without touching the
// underlying blob.
func (f *File) SetLastModified(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("last-modified must not be the zero time: %w", ErrTypeError)
	}
	f.lastModified = t
	return nil
}

// Size returns the uncompressed size, promoted through the ZIP64 extra
// field when the classic field held the sentinel.
func (f *File) Size() uint64 { return f.size }

// CompressedSize returns the compressed (on-wire) size.
func (f *File) CompressedSize() uint64 { return f.compressedSize }

// CRC32 returns the CRC-32 of the uncompressed bytes recorded by the
// writer.
func (f *File) CRC32() uint32 { return f.crc32 }

// CompressionMethod returns the method recorded in the central directory.
// Only 0 (STORE) and 8 (DEFLATE) can be decoded by Open.
func (f *File) CompressionMethod() uint16 { return f.method }

// Offset returns the absolute byte offset of this entry's local file
// header within the blob.
func (f *File) Offset() uint64 { return f.offset }

// Directory reports whether this entry represents a directory: either the
// external-attributes directory bit is set, or the entry is empty and its
// name ends with "/".
func (f *File) Directory() bool { return f.directory }

// Encrypted reports whether the general-purpose encryption bit is set.
// The codec never decrypts entries; this is informational only.
func (f *File) Encrypted() bool { return f.flags&zipfmt.FlagEncrypted != 0 }

// ZIP64 reports whether this entry's classic uncompressed-size field held
// the 32-bit sentinel, i.e. its uncompressed size overflowed 32 bits. An
// entry whose only overflowing quantity is its offset reports false.
func (f *File) ZIP64() bool { return f.zip64 }

// ensureDataStart resolves and caches the absolute offset of this entry's
// data, re-reading the local file header's name/extra lengths since they
// are not guaranteed to match the central directory's.
func (f *File) ensureDataStart() error {
	if f.dataStartResolved {
		return f.dataStartErr
	}
	f.dataStartResolved = true

	var lengths [4]byte
	if _, err := f.reader.ra.ReadAt(lengths[:], int64(f.offset)+26); err != nil {
		f.dataStartErr = fmt.Errorf("read local file header lengths for %q error: %w", f.name, err)
		return f.dataStartErr
	}

	nameLen := binary.LittleEndian.Uint16(lengths[0:2])
	extraLen := binary.LittleEndian.Uint16(lengths[2:4])
	f.dataStart = int64(f.offset) + zipfmt.LocalFileHeaderFixedSize + int64(nameLen) + int64(extraLen)
	return nil
}

// RawBytes returns the entry's stored (possibly compressed) bytes exactly
// as they appear in the blob, with no decompression applied.
func (f *File) RawBytes() ([]byte, error) {
	if err := f.ensureDataStart(); err != nil {
		return nil, err
	}

	buf := make([]byte, f.compressedSize)
	if _, err := io.ReadFull(io.NewSectionReader(f.reader.ra, f.dataStart, int64(f.compressedSize)), buf); err != nil {
		return nil, fmt.Errorf("read raw bytes for %q error: %w", f.name, err)
	}
	return buf, nil
}

// Open returns a stream of the entry's decoded content: the raw section
// passed through unchanged for STORE, or through a DEFLATE decompressor
// for method 8. The caller must Close the returned reader.
func (f *File) Open() (io.ReadCloser, error) {
	if err := f.ensureDataStart(); err != nil {
		return nil, err
	}

	sr := io.NewSectionReader(f.reader.ra, f.dataStart, int64(f.compressedSize))

	switch f.method {
	case zipfmt.MethodStore:
		return io.NopCloser(sr), nil
	case zipfmt.MethodDeflate:
		return flate.NewReader(sr), nil
	default:
		return nil, fmt.Errorf("entry %q uses compression method %d: %w", f.name, f.method, ErrUnsupportedMethod)
	}
}

// Bytes decodes and returns the entry's full content. Calling Bytes
// repeatedly returns byte-equal results each time, since Open always
// re-opens a fresh section of the blob.
func (f *File) Bytes() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decode entry %q error: %w", f.name, err)
	}
	return b, nil
}

// Text decodes the entry's content and returns it as a string.
func (f *File) Text() (string, error) {
	b, err := f.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// File reconstructs a DecodedFile carrying this entry's name, timestamp,
// and fully decoded bytes.
func (f *File) File() (*DecodedFile, error) {
	b, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	return &DecodedFile{Name: f.name, LastModified: f.lastModified, Bytes: b}, nil
}

// WriteTo streams the entry's decoded content to w, reporting progress
// through the Reader's ProgressReporter and honoring ctx cancellation
// between chunks.
func (f *File) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	pr := f.reader.progress
	buf := make([]byte, f.reader.bufferSize)

	total, err := copyBufferWithContext(ctx, w, rc, buf, nil, func(n int64) {
		if pr != nil {
			pr(f.name, n, false)
		}
	})
	if err != nil {
		return total, fmt.Errorf("write entry %q error: %w", f.name, err)
	}
	if pr != nil {
		pr(f.name, total, true)
	}
	return total, nil
}

// decodeName applies the name-decoding precedence: UTF-8 flag, then the
// Info-ZIP Unicode Path extra field, then CP437 as a last resort.
func decodeName(nameBytes []byte, flags uint16, extra []byte) string {
	if flags&zipfmt.FlagUTF8 != 0 {
		return string(nameBytes)
	}

	if payload, ok := zipfmt.FindExtraField(extra, zipfmt.TagUnicodePath); ok && len(payload) >= 5 && payload[0] == zipfmt.TagUnicodePathV {
		return string(payload[5:])
	}

	return decodeCP437(nameBytes)
}

// decodeCP437 decodes IBM PC code page 437, the legacy default for entry
// names written without the UTF-8 flag. Bytes below 0x80 are already
// ASCII; bytes 0x80-0xFF are mapped through cp437HighTable.
func decodeCP437(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(cp437HighTable[c-0x80])
		}
	}
	return sb.String()
}

// cp437HighTable holds code points 0x80-0xFF of IBM PC code page 437.
var cp437HighTable = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', '¢', '£', '¥', '₧', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', '╡', '╢', '╖', '╕', '╣', '║', '╗', '╝', '╜', '╛', '┐',
	'└', '┴', '┬', '├', '─', '┼', '╞', '╟', '╚', '╔', '╩', '╦', '╠', '═', '╬', '╧',
	'╨', '╤', '╥', '╙', '╘', '╒', '╓', '╫', '╪', '┘', '┌', '█', '▄', '▌', '▐', '▀',
	'α', 'ß', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ', 'Φ', 'Θ', 'Ω', 'δ', '∞', 'φ', 'ε', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈', '°', '∙', '·', '√', 'ⁿ', '²', '■', ' ',
}
