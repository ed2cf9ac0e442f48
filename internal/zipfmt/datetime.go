package zipfmt

import "time"

// PackModified packs a time.Time into the MS-DOS date/time pair used by
// local and central directory headers.
//
// Year is clamped to [1980, 2107]; seconds have 2-second resolution via
// integer seconds>>1, never a floating seconds/2 (floating division rounds
// differently at odd-second boundaries and corrupts the low bit).
func PackModified(t time.Time) (date, tm uint16) {
	if t.IsZero() {
		t = time.Now()
	}

	t = t.Local()

	year := t.Year()
	switch {
	case year < 1980:
		year = 1980
	case year > 2107:
		year = 2107
	}

	date = uint16((year-1980)<<9 | int(t.Month())<<5 | t.Day())
	tm = uint16(t.Hour()<<11 | t.Minute()<<5 | (t.Second() >> 1))
	return
}

// UnpackModified converts an MS-DOS date/time pair into a time.Time in the
// local zone. The resolution is 2s.
func UnpackModified(date, tm uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month((date>>5)&0xf),
		int(date&0x1f),
		int(tm>>11),
		int((tm>>5)&0x3f),
		int(tm&0x1f)*2,
		0,
		time.Local,
	)
}
