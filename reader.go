package zipstream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"github.com/valyala/bytebufferpool"

	"github.com/nguyengg/zipstream/internal/zipfmt"
)

// maxEOCDSearch is the widest window the reader will tail-scan looking for
// the end-of-central-directory signature: the record itself plus the
// largest possible archive comment (64 KiB - 1).
const maxEOCDSearch = zipfmt.EOCDFixedSize + 65535

// ReaderOptions customises a Reader.
type ReaderOptions struct {
	// ProgressReporter is invoked while streaming an entry's content via
	// File.WriteTo. Defaults to DefaultProgressReporter.
	ProgressReporter ProgressReporter

	// BufferSize is the size of the copy buffer used by File.WriteTo.
	// Defaults to DefaultBufferSize.
	BufferSize int
}

// Reader is a lazy central-directory parser over a random-access,
// length-known blob. Constructing one locates and validates the
// end-of-central-directory record (following the ZIP64 locator when
// present); iterating Entries is what actually walks the central
// directory, one record at a time.
//
// A Reader is safe to share across goroutines that each iterate Entries or
// read from independent File handles; the underlying blob is read-only.
type Reader struct {
	ra   io.ReaderAt
	size int64

	cdOffset   uint64
	cdSize     uint64
	entryCount uint64

	progress   ProgressReporter
	bufferSize int
}

// NewReader parses the end-of-central-directory record (and, if present,
// its ZIP64 locator/record) out of the tail of ra. size is the total
// length of the blob ra reads from.
func NewReader(ra io.ReaderAt, size int64, optFns ...func(*ReaderOptions)) (*Reader, error) {
	opts := &ReaderOptions{
		ProgressReporter: DefaultProgressReporter,
		BufferSize:       DefaultBufferSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if size < zipfmt.EOCDFixedSize {
		return nil, fmt.Errorf("blob of %d bytes is too small to hold an end-of-central-directory record: %w", size, ErrBadFormat)
	}

	r := &Reader{
		ra:         ra,
		size:       size,
		progress:   opts.ProgressReporter,
		bufferSize: opts.BufferSize,
	}

	if err := r.locateEOCD(); err != nil {
		return nil, err
	}

	return r, nil
}

// locateEOCD tail-scans for the end-of-central-directory signature: first
// the bare 22-byte record, then a growing window up to 22+65535 bytes to
// account for an archive comment, always trusting the right-most signature
// match in whatever window was read.
func (r *Reader) locateEOCD() error {
	windowSize := int64(zipfmt.EOCDFixedSize)
	var window []byte
	var windowStart int64
	found := false

	for {
		if windowSize > r.size {
			windowSize = r.size
		}
		windowStart = r.size - windowSize
		window = make([]byte, windowSize)
		if _, err := r.ra.ReadAt(window, windowStart); err != nil && err != io.EOF {
			return fmt.Errorf("read end-of-central-directory search window error: %w", err)
		}

		if idx := bytes.LastIndex(window, zipfmt.EOCDSigBytes); idx >= 0 {
			windowStart += int64(idx)
			window = window[idx:]
			found = true
			break
		}

		if windowSize == r.size || windowSize >= maxEOCDSearch {
			break
		}
		windowSize = maxEOCDSearch
	}

	if !found {
		return fmt.Errorf("no end-of-central-directory signature found: %w", ErrBadFormat)
	}
	if int64(len(window)) < zipfmt.EOCDFixedSize {
		return fmt.Errorf("truncated end-of-central-directory record: %w", ErrBadFormat)
	}

	entryCount := uint64(binary.LittleEndian.Uint16(window[10:12]))
	cdSize := uint64(binary.LittleEndian.Uint32(window[12:16]))
	cdOffset := uint64(binary.LittleEndian.Uint32(window[16:20]))

	if cdOffset == uint64(zipfmt.Sentinel32) {
		var err error
		entryCount, cdSize, cdOffset, err = r.resolveZIP64EOCD(windowStart)
		if err != nil {
			return err
		}
	}

	if cdOffset > uint64(r.size) || int64(cdOffset)+int64(cdSize) > r.size {
		return fmt.Errorf("central directory [%d, %d) extends beyond the %d-byte blob: %w", cdOffset, cdOffset+cdSize, r.size, ErrBadFormat)
	}

	r.entryCount = entryCount
	r.cdSize = cdSize
	r.cdOffset = cdOffset
	return nil
}

// resolveZIP64EOCD reads the ZIP64 locator immediately preceding the
// classic EOCD, then the ZIP64 EOCD record it points to, returning the
// 64-bit entry count, central-directory size, and central-directory
// offset that override the classic EOCD's sentinel-valued fields.
func (r *Reader) resolveZIP64EOCD(eocdOffset int64) (entryCount, cdSize, cdOffset uint64, err error) {
	locatorOffset := eocdOffset - zipfmt.ZIP64LocatorSize
	if locatorOffset < 0 {
		return 0, 0, 0, fmt.Errorf("zip64 end-of-central-directory locator would start before the blob: %w", ErrBadFormat)
	}

	loc := make([]byte, zipfmt.ZIP64LocatorSize)
	if _, err = r.ra.ReadAt(loc, locatorOffset); err != nil {
		return 0, 0, 0, fmt.Errorf("read zip64 end-of-central-directory locator error: %w", err)
	}
	if binary.LittleEndian.Uint32(loc[0:4]) != zipfmt.SigZIP64Locator {
		return 0, 0, 0, fmt.Errorf("zip64 end-of-central-directory locator signature mismatch: %w", ErrBadFormat)
	}

	zip64EOCDOffset := int64(binary.LittleEndian.Uint64(loc[8:16]))
	if zip64EOCDOffset < 0 || zip64EOCDOffset+zipfmt.ZIP64EOCDFixedSize > r.size {
		return 0, 0, 0, fmt.Errorf("zip64 end-of-central-directory record would extend beyond the blob: %w", ErrBadFormat)
	}

	rec := make([]byte, zipfmt.ZIP64EOCDFixedSize)
	if _, err = r.ra.ReadAt(rec, zip64EOCDOffset); err != nil {
		return 0, 0, 0, fmt.Errorf("read zip64 end-of-central-directory record error: %w", err)
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != zipfmt.SigZIP64EOCD {
		return 0, 0, 0, fmt.Errorf("zip64 end-of-central-directory record signature mismatch: %w", ErrBadFormat)
	}

	entryCount = binary.LittleEndian.Uint64(rec[32:40])
	cdSize = binary.LittleEndian.Uint64(rec[40:48])
	cdOffset = binary.LittleEndian.Uint64(rec[48:56])
	return entryCount, cdSize, cdOffset, nil
}

// EntryCount returns the number of entries recorded in the
// end-of-central-directory (or ZIP64 EOCD) without walking the central
// directory itself.
func (r *Reader) EntryCount() uint64 {
	return r.entryCount
}

// Size returns the total length of the underlying blob.
func (r *Reader) Size() int64 {
	return r.size
}

// Entries lazily walks the central directory, yielding one File handle per
// record in the order the writer accepted them. The iterator stops and
// yields a final (nil, err) pair the moment a record fails to parse or its
// span would extend past the central directory slab.
//
// A single bytebufferpool.ByteBuffer backs the fixed and variable-length
// reads for every record; each yielded File copies out only the bytes it
// needs to outlive that reuse.
func (r *Reader) Entries() iter.Seq2[*File, error] {
	return func(yield func(*File, error) bool) {
		cursor := int64(r.cdOffset)
		end := int64(r.cdOffset + r.cdSize)

		bb := bytebufferpool.Get()
		defer bytebufferpool.Put(bb)

		for cursor < end {
			f, n, err := r.readCentralHeader(bb, cursor, end)
			if err != nil {
				yield(nil, err)
				return
			}

			cursor += n

			if !yield(f, nil) {
				return
			}
		}
	}
}

// readCentralHeader decodes one central directory record starting at
// cursor, returning the constructed File and the number of bytes it
// occupied (46 + nameLen + extraLen + commentLen).
func (r *Reader) readCentralHeader(bb *bytebufferpool.ByteBuffer, cursor, end int64) (*File, int64, error) {
	hdr, err := r.readInto(bb, zipfmt.CentralFileHeaderFixedSize, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("read central directory header at offset %d error: %w", cursor, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != zipfmt.SigCentralHeader {
		return nil, 0, fmt.Errorf("central directory header signature mismatch at offset %d: %w", cursor, ErrBadFormat)
	}

	flags := binary.LittleEndian.Uint16(hdr[8:10])
	method := binary.LittleEndian.Uint16(hdr[10:12])
	modTime := binary.LittleEndian.Uint16(hdr[12:14])
	modDate := binary.LittleEndian.Uint16(hdr[14:16])
	crc := binary.LittleEndian.Uint32(hdr[16:20])
	compressed32 := binary.LittleEndian.Uint32(hdr[20:24])
	uncompressed32 := binary.LittleEndian.Uint32(hdr[24:28])
	nameLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(hdr[32:34]))
	externalAttrs := binary.LittleEndian.Uint32(hdr[38:42])
	localOffset32 := binary.LittleEndian.Uint32(hdr[42:46])

	tailLen := nameLen + extraLen + commentLen
	recordLen := int64(zipfmt.CentralFileHeaderFixedSize) + int64(tailLen)
	if cursor+recordLen > end {
		return nil, 0, fmt.Errorf("central directory entry at offset %d extends beyond the central directory: %w", cursor, ErrBadFormat)
	}

	tail, err := r.readInto(bb, tailLen, cursor+zipfmt.CentralFileHeaderFixedSize)
	if err != nil {
		return nil, 0, fmt.Errorf("read central directory entry tail at offset %d error: %w", cursor, err)
	}

	nameBytes := append([]byte(nil), tail[:nameLen]...)
	extra := append([]byte(nil), tail[nameLen:nameLen+extraLen]...)
	comment := append([]byte(nil), tail[nameLen+extraLen:]...)

	size, compressedSize, localOffset := uint64(uncompressed32), uint64(compressed32), uint64(localOffset32)
	if payload, ok := zipfmt.FindExtraField(extra, zipfmt.TagZIP64); ok {
		fields, ferr := zipfmt.DecodeZIP64Fields(payload,
			uncompressed32 == zipfmt.Sentinel32,
			compressed32 == zipfmt.Sentinel32,
			localOffset32 == zipfmt.Sentinel32,
			false,
		)
		if ferr != nil {
			return nil, 0, fmt.Errorf("decode zip64 extra field for entry at offset %d error: %w", cursor, ferr)
		}
		if fields.UncompressedSize != nil {
			size = *fields.UncompressedSize
		}
		if fields.CompressedSize != nil {
			compressedSize = *fields.CompressedSize
		}
		if fields.LocalOffset != nil {
			localOffset = *fields.LocalOffset
		}
	}

	name := decodeName(nameBytes, flags, extra)

	f := &File{
		reader:         r,
		name:           name,
		comment:        string(comment),
		lastModified:   zipfmt.UnpackModified(modDate, modTime),
		method:         method,
		flags:          flags,
		crc32:          crc,
		size:           size,
		compressedSize: compressedSize,
		offset:         localOffset,
		externalAttrs:  externalAttrs,
		zip64:          uncompressed32 == zipfmt.Sentinel32,
		extra:          extra,
	}
	f.directory = externalAttrs&(1<<4) != 0 || (size == 0 && hasTrailingSlash(name))

	return f, recordLen, nil
}

// readInto grows (or reuses) bb's backing array to exactly n bytes and
// fills it from ra at offset, returning the slice. The returned slice
// aliases bb's backing array and is only valid until the next call to
// readInto with the same bb.
func (r *Reader) readInto(bb *bytebufferpool.ByteBuffer, n int, offset int64) ([]byte, error) {
	if n == 0 {
		bb.B = bb.B[:0]
		return bb.B, nil
	}
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
	} else {
		bb.B = bb.B[:n]
	}
	if _, err := r.ra.ReadAt(bb.B, offset); err != nil {
		return nil, err
	}
	return bb.B, nil
}

func hasTrailingSlash(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
