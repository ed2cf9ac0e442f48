package zipfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackModified_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
	}{
		{"epoch-ish", time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)},
		{"ordinary", time.Date(2024, time.March, 17, 13, 37, 42, 0, time.Local)},
		{"odd second rounds down", time.Date(2024, time.March, 17, 13, 37, 43, 0, time.Local)},
		{"clamped upper year", time.Date(2200, time.December, 31, 23, 59, 58, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, tm := PackModified(tt.in)
			got := UnpackModified(date, tm)

			want := tt.in
			if want.Year() > 2107 {
				want = time.Date(2107, want.Month(), want.Day(), want.Hour(), want.Minute(), want.Second(), 0, time.Local)
			}

			assert.WithinDuration(t, want, got, 2*time.Second)
		})
	}
}

func TestPackModified_ZeroTimeUsesNow(t *testing.T) {
	date, tm := PackModified(time.Time{})
	got := UnpackModified(date, tm)
	assert.WithinDuration(t, time.Now(), got, 2*time.Second)
}

func TestPackModified_YearClamped(t *testing.T) {
	date, _ := PackModified(time.Date(1900, time.January, 1, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 1980, int(date>>9)+1980)

	date, _ = PackModified(time.Date(3000, time.January, 1, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 2107, int(date>>9)+1980)
}
