package zipfmt

import (
	"encoding/binary"
	"fmt"
)

// ZIP64Fields is the decoded, positional content of a 0x0001 extra field.
//
// Only the fields whose matching classic 32-bit counterpart held Sentinel32
// are present in the wire encoding, always in this order: uncompressed
// size, compressed size, local header offset, disk-start number. A reader
// must know which classic fields were sentinels *before* it can parse this
// payload; an encoder must know the real values exceed 32 bits before it
// decides which fields to include.
type ZIP64Fields struct {
	UncompressedSize *uint64
	CompressedSize   *uint64
	LocalOffset      *uint64
	DiskStart        *uint32
}

// Encode serializes the present fields (in positional order) as the
// payload of a 0x0001 extra field, NOT including the tag/size header.
func (z ZIP64Fields) Encode() []byte {
	buf := make([]byte, 0, 28)
	var tmp8 [8]byte
	var tmp4 [4]byte

	if z.UncompressedSize != nil {
		binary.LittleEndian.PutUint64(tmp8[:], *z.UncompressedSize)
		buf = append(buf, tmp8[:]...)
	}
	if z.CompressedSize != nil {
		binary.LittleEndian.PutUint64(tmp8[:], *z.CompressedSize)
		buf = append(buf, tmp8[:]...)
	}
	if z.LocalOffset != nil {
		binary.LittleEndian.PutUint64(tmp8[:], *z.LocalOffset)
		buf = append(buf, tmp8[:]...)
	}
	if z.DiskStart != nil {
		binary.LittleEndian.PutUint32(tmp4[:], *z.DiskStart)
		buf = append(buf, tmp4[:]...)
	}

	return buf
}

// ExtraField wraps Encode with the 0x0001 tag and payload-size header, ready
// to be appended to a central directory record's extra field area.
func (z ZIP64Fields) ExtraField() []byte {
	payload := z.Encode()

	b := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(b[0:2], TagZIP64)
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(payload)))
	copy(b[4:], payload)
	return b
}

// DecodeZIP64Fields decodes the payload of a 0x0001 extra field (tag/size
// header already stripped) given which classic fields were sentinels, in
// the fixed positional order (uncompressed, compressed, local-offset,
// disk-start).
func DecodeZIP64Fields(payload []byte, hasUncompressed, hasCompressed, hasLocalOffset, hasDiskStart bool) (ZIP64Fields, error) {
	var z ZIP64Fields
	off := 0

	need := func(n int) error {
		if off+n > len(payload) {
			return fmt.Errorf("zip64 extra field: need %d more bytes at offset %d, have %d total", n, off, len(payload))
		}
		return nil
	}

	if hasUncompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := binary.LittleEndian.Uint64(payload[off : off+8])
		z.UncompressedSize = &v
		off += 8
	}
	if hasCompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := binary.LittleEndian.Uint64(payload[off : off+8])
		z.CompressedSize = &v
		off += 8
	}
	if hasLocalOffset {
		if err := need(8); err != nil {
			return z, err
		}
		v := binary.LittleEndian.Uint64(payload[off : off+8])
		z.LocalOffset = &v
		off += 8
	}
	if hasDiskStart {
		if err := need(4); err != nil {
			return z, err
		}
		v := binary.LittleEndian.Uint32(payload[off : off+4])
		z.DiskStart = &v
		off += 4
	}

	return z, nil
}

// FindExtraField scans a concatenated extra-field blob (as stored on an
// entry) for the payload matching the given tag. ok is false if the tag is
// not present.
func FindExtraField(extra []byte, tag uint16) (payload []byte, ok bool) {
	for len(extra) >= 4 {
		t := binary.LittleEndian.Uint16(extra[0:2])
		size := binary.LittleEndian.Uint16(extra[2:4])
		if int(size) > len(extra)-4 {
			return nil, false
		}

		body := extra[4 : 4+int(size)]
		if t == tag {
			return body, true
		}

		extra = extra[4+int(size):]
	}

	return nil, false
}
