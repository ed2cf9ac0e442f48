// Package zipstream is a streaming ZIP codec with full ZIP64 support.
//
// Writer consumes a sequence of entries whose content length is unknown in
// advance and emits a spec-compliant archive byte stream, promoting itself
// to ZIP64 on the fly as offsets and sizes demand it. Reader is a lazy
// central-directory parser over a random-access blob: it locates the
// end-of-central-directory record, follows the ZIP64 locator when present,
// and hands back entries that only read their data when asked.
//
// The codec speaks PKWARE APPNOTE 6.3.x with ZIP64 extensions, single disk,
// method 0 (STORE) on write and methods 0 and 8 (DEFLATE) on read. It does
// not implement multi-disk archives, encryption, or in-place modification
// of existing archives.
package zipstream
