// Package zipfmt holds the binary layout constants shared by the writer and
// reader halves of the codec: signatures, sentinels, extra-field tags, and
// the fixed-size portions of the local, central, and end-of-central-directory
// records.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format) for the on-wire layout
// this package encodes.
package zipfmt

import "encoding/binary"

// Signature values, little-endian on the wire.
const (
	SigLocalFileHeader = 0x04034b50
	SigDataDescriptor  = 0x08074b50
	SigCentralHeader   = 0x02014b50
	SigEOCD            = 0x06054b50
	SigZIP64EOCD       = 0x06064b50
	SigZIP64Locator    = 0x07064b50
)

// Sentinels that signal "the real value lives in the ZIP64 extra field".
const (
	Sentinel32 uint32 = 0xFFFFFFFF
	Sentinel16 uint16 = 0xFFFF
)

// Extra field tags.
const (
	TagZIP64        = 0x0001
	TagUnicodePath  = 0x7075
	TagUnicodePathV = 1 // version byte expected in the 0x7075 payload
)

// Compression methods understood by this codec.
const (
	MethodStore   = 0
	MethodDeflate = 8
)

// General-purpose bit flags.
const (
	FlagDataDescriptor = 0x0008
	FlagUTF8           = 0x0800
	FlagEncrypted      = 0x0001
)

// Version-needed-to-extract values.
const (
	VersionDefault = 20
	VersionZIP64   = 45
)

// Fixed sizes of the non-variable portion of each record, in bytes.
const (
	LocalFileHeaderFixedSize   = 30
	DataDescriptorFixedSize    = 16 // signature + crc32 + 2x uint32 sizes
	DataDescriptorZIP64Size    = 24 // signature + crc32 + 2x uint64 sizes
	CentralFileHeaderFixedSize = 46
	EOCDFixedSize              = 22
	ZIP64EOCDFixedSize         = 56
	ZIP64LocatorSize           = 20
	ZIP64EOCDRecordSize        = ZIP64EOCDFixedSize - 12 // "size of zip64 EOCD record" field, excludes sig+itself
)

// PutUint32Sig returns the 4-byte little-endian encoding of a signature,
// suitable for use with bytes.Index/bytes.LastIndex.
func PutUint32Sig(sig uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, sig)
	return b
}

var (
	LocalFileHeaderSigBytes = PutUint32Sig(SigLocalFileHeader)
	DataDescriptorSigBytes  = PutUint32Sig(SigDataDescriptor)
	CentralHeaderSigBytes   = PutUint32Sig(SigCentralHeader)
	EOCDSigBytes            = PutUint32Sig(SigEOCD)
	ZIP64EOCDSigBytes       = PutUint32Sig(SigZIP64EOCD)
	ZIP64LocatorSigBytes    = PutUint32Sig(SigZIP64Locator)
)
