package zipstream

import (
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// ProgressReporter is called to report progress while an entry's bytes are
// being written (Writer.Add) or read (File.WriteTo).
//
//   - name: the entry name being processed.
//   - written: cumulative bytes processed for this entry so far.
//   - done: true exactly once, when the entry has been fully processed.
//
// It is called with done false after every chunk copied, then once with
// done true after the last chunk; an empty stream gets only the done call.
// Writer.Add makes no call for an entry it does not stream (a directory, or
// an entry with a nil Open).
type ProgressReporter func(name string, written int64, done bool)

// DefaultProgressReporter logs a line via log.Printf only when an entry
// finishes.
func DefaultProgressReporter(name string, written int64, done bool) {
	if done {
		log.Printf(`zipstream: processed "%s" (%s)`, name, humanize.Bytes(uint64(written)))
	}
}

// newProgressBar returns a byte-denominated progress bar: throttled to one
// render per second, full terminal width, with a spinner while size is
// unknown (size < 0).
func newProgressBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(1*time.Second),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// NewProgressBarReporter returns a ProgressReporter backed by a
// progressbar.ProgressBar sized to expectedTotal (pass -1 if unknown, which
// renders a spinner instead of a percentage).
func NewProgressBarReporter(expectedTotal int64, description string) ProgressReporter {
	bar := newProgressBar(expectedTotal, description)

	var previousWritten int64
	return func(name string, written int64, done bool) {
		_ = bar.Add64(written - previousWritten)
		previousWritten = written

		if done {
			previousWritten = 0
			if expectedTotal >= 0 {
				_ = bar.Finish()
			}
		}
	}
}
