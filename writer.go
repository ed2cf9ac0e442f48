package zipstream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/nguyengg/zipstream/internal/zipfmt"
)

// DefaultBufferSize is the default size of the buffer used to copy an
// entry's stream into the archive.
const DefaultBufferSize = 32 * 1024

// Entry describes one archive member to be written.
//
// Open is called at most once, lazily, only if the entry is not a
// directory. It may return nil content by returning io.EOF immediately on
// the first Read; the resulting entry round-trips as a zero-byte file.
type Entry struct {
	// Name must be non-empty and unique within the archive. Leading and
	// trailing whitespace is trimmed before the uniqueness check.
	Name string

	// LastModified defaults to time.Now() if zero.
	LastModified time.Time

	// Directory forces Name to end with "/" and skips reading Open
	// entirely, even if it is set.
	Directory bool

	// Comment is stored in the central directory record for this entry.
	Comment string

	// Open lazily produces the entry's content. May be nil for an empty
	// file or a directory.
	Open func() (io.Reader, error)
}

// WriterOptions customises a Writer.
type WriterOptions struct {
	// ProgressReporter is invoked while copying each entry's stream.
	// Defaults to DefaultProgressReporter.
	ProgressReporter ProgressReporter

	// BufferSize is the size of the copy buffer used for every entry.
	// Defaults to DefaultBufferSize.
	BufferSize int
}

// record is the writer's per-entry bookkeeping, accumulated while an entry
// streams and flushed into its central directory header at Close.
type record struct {
	nameBytes    []byte
	commentBytes []byte
	modified     time.Time
	localOffset  uint64
	compressed   uint64
	uncompressed uint64
	crc32        uint32
	directory    bool
	zip64        bool
}

// Writer transforms a sequence of Entry values into a well-formed ZIP byte
// stream written to the underlying io.Writer. The zero value is not ready
// for use; construct with NewWriter.
//
// Writer is not safe for concurrent use: entries must be added one at a
// time, each fully consumed before the next is started, and Close must be
// called exactly once after the last Add.
type Writer struct {
	w       io.Writer
	offset  uint64
	names   map[string]struct{}
	records []*record

	progress   ProgressReporter
	bufferSize int
	buf        []byte
}

// NewWriter returns a Writer that emits a ZIP archive to w.
func NewWriter(w io.Writer, optFns ...func(*WriterOptions)) *Writer {
	opts := &WriterOptions{
		ProgressReporter: DefaultProgressReporter,
		BufferSize:       DefaultBufferSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	return &Writer{
		w:          w,
		names:      make(map[string]struct{}),
		progress:   opts.ProgressReporter,
		bufferSize: opts.BufferSize,
	}
}

// write tracks Writer.offset alongside every raw write to the underlying
// io.Writer, mirroring other_examples' zipStoreWriter.write.
func (zw *Writer) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := zw.w.Write(p)
	zw.offset += uint64(n)
	if err != nil {
		return fmt.Errorf("write archive bytes error: %w", err)
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Add normalizes, then streams, one entry into the archive: local header
// (data-descriptor bit set) → data, CRC-accumulated → data descriptor.
//
// Returns ErrDuplicateName if e.Name (after trimming) was already accepted.
// Any error from e.Open or from reading its stream is returned wrapped; the
// partial archive written so far must be discarded by the caller.
func (zw *Writer) Add(ctx context.Context, e Entry) error {
	name := strings.TrimSpace(e.Name)
	if e.Directory && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if _, dup := zw.names[name]; dup {
		return fmt.Errorf("add entry %q: %w", name, ErrDuplicateName)
	}
	zw.names[name] = struct{}{}

	modified := e.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}

	nameBytes := []byte(name)
	localOffset := zw.offset

	date, tm := zipfmt.PackModified(modified)

	// version-needed is advisory in the local header: the central
	// directory, written at flush time once every entry's final size is
	// known, is what a conformant reader trusts. We can only know ahead of
	// streaming whether the offset itself has already overflowed 32 bits.
	versionNeeded := uint16(zipfmt.VersionDefault)
	if localOffset > uint64(zipfmt.Sentinel32) {
		versionNeeded = zipfmt.VersionZIP64
	}

	flags := uint16(zipfmt.FlagDataDescriptor | zipfmt.FlagUTF8)

	hdr := make([]byte, zipfmt.LocalFileHeaderFixedSize)
	binary.LittleEndian.PutUint32(hdr[0:4], zipfmt.SigLocalFileHeader)
	binary.LittleEndian.PutUint16(hdr[4:6], versionNeeded)
	binary.LittleEndian.PutUint16(hdr[6:8], flags)
	binary.LittleEndian.PutUint16(hdr[8:10], zipfmt.MethodStore)
	binary.LittleEndian.PutUint16(hdr[10:12], tm)
	binary.LittleEndian.PutUint16(hdr[12:14], date)
	// crc32, compressed, uncompressed stay 0: overwritten by the data descriptor.
	binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(nameBytes)))
	// extra-length stays 0.

	if err := zw.write(hdr); err != nil {
		return err
	}
	if err := zw.write(nameBytes); err != nil {
		return err
	}

	rec := &record{
		nameBytes:    nameBytes,
		commentBytes: []byte(e.Comment),
		modified:     modified,
		localOffset:  localOffset,
		directory:    e.Directory,
	}

	if !e.Directory && e.Open != nil {
		src, err := e.Open()
		if err != nil {
			return fmt.Errorf("open entry %q source error: %w", name, err)
		}

		if err = zw.stream(ctx, name, src, rec); err != nil {
			return fmt.Errorf("stream entry %q error: %w", name, err)
		}
	}

	rec.zip64 = rec.compressed > uint64(zipfmt.Sentinel32) ||
		rec.uncompressed > uint64(zipfmt.Sentinel32) ||
		rec.localOffset > uint64(zipfmt.Sentinel32)

	if err := zw.writeDataDescriptor(rec); err != nil {
		return err
	}

	zw.records = append(zw.records, rec)
	return nil
}

// stream copies src into the archive (STORE: bytes are forwarded
// unchanged) while accumulating CRC-32 and lengths into rec.
func (zw *Writer) stream(ctx context.Context, name string, src io.Reader, rec *record) error {
	if zw.buf == nil {
		zw.buf = make([]byte, zw.bufferSize)
	}

	crc := zipfmt.NewCRC32Accumulator()
	pr := zw.progress

	total, err := copyBufferWithContext(ctx, writerFunc(func(p []byte) (int, error) {
		if werr := zw.write(p); werr != nil {
			return 0, werr
		}
		return len(p), nil
	}), src, zw.buf, func(chunk []byte) {
		_, _ = crc.Write(chunk)
	}, func(n int64) {
		if pr != nil {
			pr(name, n, false)
		}
	})
	if err != nil {
		return err
	}

	rec.crc32 = crc.Sum32()
	rec.compressed = uint64(total)
	rec.uncompressed = uint64(total)

	if pr != nil {
		pr(name, total, true)
	}
	return nil
}

// writerFunc adapts a func(p []byte) (int, error) to io.Writer.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// writeDataDescriptor emits the 16- or 24-byte trailer: 24 bytes with
// 64-bit sizes when the entry turned out ZIP64, 16 bytes with 32-bit sizes
// otherwise.
func (zw *Writer) writeDataDescriptor(rec *record) error {
	if rec.zip64 {
		dd := make([]byte, zipfmt.DataDescriptorZIP64Size)
		binary.LittleEndian.PutUint32(dd[0:4], zipfmt.SigDataDescriptor)
		binary.LittleEndian.PutUint32(dd[4:8], rec.crc32)
		binary.LittleEndian.PutUint64(dd[8:16], rec.compressed)
		binary.LittleEndian.PutUint64(dd[16:24], rec.uncompressed)
		return zw.write(dd)
	}

	dd := make([]byte, zipfmt.DataDescriptorFixedSize)
	binary.LittleEndian.PutUint32(dd[0:4], zipfmt.SigDataDescriptor)
	binary.LittleEndian.PutUint32(dd[4:8], rec.crc32)
	binary.LittleEndian.PutUint32(dd[8:12], uint32(rec.compressed))
	binary.LittleEndian.PutUint32(dd[12:16], uint32(rec.uncompressed))
	return zw.write(dd)
}

// AddAll drains an iterator of entries via Add, stopping at the first
// error (including one reported by the iterator itself), then calls
// Close. Callers that need finer control should call Add and Close
// directly.
func (zw *Writer) AddAll(ctx context.Context, entries iter.Seq2[Entry, error]) error {
	for e, err := range entries {
		if err != nil {
			return err
		}
		if err = zw.Add(ctx, e); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Close emits the central directory and terminators (ZIP64 EOCD + locator
// when the archive is promoted, then the classic EOCD always).
func (zw *Writer) Close() error {
	cdStart := zw.offset

	for _, rec := range zw.records {
		if err := zw.writeCentralHeader(rec); err != nil {
			return err
		}
	}

	cdSize := zw.offset - cdStart
	count := len(zw.records)

	promoted := cdStart > uint64(zipfmt.Sentinel32) ||
		cdSize > uint64(zipfmt.Sentinel32) ||
		count > int(zipfmt.Sentinel16)
	if !promoted {
		for _, rec := range zw.records {
			if rec.zip64 {
				promoted = true
				break
			}
		}
	}

	if promoted {
		if err := zw.writeZIP64EOCD(cdStart, cdSize, count); err != nil {
			return err
		}
	}

	return zw.writeEOCD(cdStart, cdSize, count, promoted)
}

func (zw *Writer) writeCentralHeader(rec *record) error {
	versionNeeded := uint16(zipfmt.VersionDefault)
	if rec.zip64 {
		versionNeeded = zipfmt.VersionZIP64
	}

	flags := uint16(zipfmt.FlagDataDescriptor | zipfmt.FlagUTF8)
	date, tm := zipfmt.PackModified(rec.modified)

	compressed, uncompressed, localOffset := uint32(rec.compressed), uint32(rec.uncompressed), uint32(rec.localOffset)

	var fields zipfmt.ZIP64Fields
	if rec.uncompressed > uint64(zipfmt.Sentinel32) {
		uncompressed = zipfmt.Sentinel32
		v := rec.uncompressed
		fields.UncompressedSize = &v
	}
	if rec.compressed > uint64(zipfmt.Sentinel32) {
		compressed = zipfmt.Sentinel32
		v := rec.compressed
		fields.CompressedSize = &v
	}
	if rec.localOffset > uint64(zipfmt.Sentinel32) {
		localOffset = zipfmt.Sentinel32
		v := rec.localOffset
		fields.LocalOffset = &v
	}

	var extra []byte
	if rec.zip64 {
		extra = fields.ExtraField()
	}

	externalAttrs := uint32(0)
	if rec.directory {
		externalAttrs = 1 << 4
	}

	hdr := make([]byte, zipfmt.CentralFileHeaderFixedSize)
	binary.LittleEndian.PutUint32(hdr[0:4], zipfmt.SigCentralHeader)
	binary.LittleEndian.PutUint16(hdr[4:6], versionNeeded) // version-made-by mirrors version-needed
	binary.LittleEndian.PutUint16(hdr[6:8], versionNeeded)
	binary.LittleEndian.PutUint16(hdr[8:10], flags)
	binary.LittleEndian.PutUint16(hdr[10:12], zipfmt.MethodStore)
	binary.LittleEndian.PutUint16(hdr[12:14], tm)
	binary.LittleEndian.PutUint16(hdr[14:16], date)
	binary.LittleEndian.PutUint32(hdr[16:20], rec.crc32)
	binary.LittleEndian.PutUint32(hdr[20:24], compressed)
	binary.LittleEndian.PutUint32(hdr[24:28], uncompressed)
	binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(rec.nameBytes)))
	binary.LittleEndian.PutUint16(hdr[30:32], uint16(len(extra)))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(len(rec.commentBytes)))
	// disk-number-start stays 0.
	// internal-attrs stays 0.
	binary.LittleEndian.PutUint32(hdr[38:42], externalAttrs)
	binary.LittleEndian.PutUint32(hdr[42:46], localOffset)

	if err := zw.write(hdr); err != nil {
		return err
	}
	if err := zw.write(rec.nameBytes); err != nil {
		return err
	}
	if err := zw.write(extra); err != nil {
		return err
	}
	return zw.write(rec.commentBytes)
}

func (zw *Writer) writeZIP64EOCD(cdStart, cdSize uint64, count int) error {
	rec := make([]byte, zipfmt.ZIP64EOCDFixedSize)
	binary.LittleEndian.PutUint32(rec[0:4], zipfmt.SigZIP64EOCD)
	binary.LittleEndian.PutUint64(rec[4:12], uint64(zipfmt.ZIP64EOCDRecordSize))
	binary.LittleEndian.PutUint16(rec[12:14], zipfmt.VersionZIP64)
	binary.LittleEndian.PutUint16(rec[14:16], zipfmt.VersionZIP64)
	// this-disk, disk-with-CD stay 0.
	binary.LittleEndian.PutUint64(rec[24:32], uint64(count))
	binary.LittleEndian.PutUint64(rec[32:40], uint64(count))
	binary.LittleEndian.PutUint64(rec[40:48], cdSize)
	binary.LittleEndian.PutUint64(rec[48:56], cdStart)

	locatorOffset := zw.offset
	if err := zw.write(rec); err != nil {
		return err
	}

	loc := make([]byte, zipfmt.ZIP64LocatorSize)
	binary.LittleEndian.PutUint32(loc[0:4], zipfmt.SigZIP64Locator)
	// disk-with-zip64-EOCD stays 0.
	binary.LittleEndian.PutUint64(loc[8:16], locatorOffset)
	binary.LittleEndian.PutUint32(loc[16:20], 1)
	return zw.write(loc)
}

func (zw *Writer) writeEOCD(cdStart, cdSize uint64, count int, promoted bool) error {
	eocd := make([]byte, zipfmt.EOCDFixedSize)
	binary.LittleEndian.PutUint32(eocd[0:4], zipfmt.SigEOCD)
	// this-disk, disk-with-CD stay 0.

	entries16, cdSize32, cdStart32 := uint16(count), uint32(cdSize), uint32(cdStart)
	if promoted {
		entries16, cdSize32, cdStart32 = zipfmt.Sentinel16, zipfmt.Sentinel32, zipfmt.Sentinel32
	}

	binary.LittleEndian.PutUint16(eocd[8:10], entries16)
	binary.LittleEndian.PutUint16(eocd[10:12], entries16)
	binary.LittleEndian.PutUint32(eocd[12:16], cdSize32)
	binary.LittleEndian.PutUint32(eocd[16:20], cdStart32)
	// comment-length stays 0: no archive comment.

	return zw.write(eocd)
}
