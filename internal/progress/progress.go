// Package progress renders terminal progress for long-running commands.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for file processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(label string) *Tracker {
	return NewSpinnerTo(os.Stderr, label)
}

// NewSpinnerTo creates a spinner that draws on w.
func NewSpinnerTo(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return NewTrackerTo(os.Stderr, label, total)
}

// NewTrackerTo creates a progress bar that draws on w.
func NewTrackerTo(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	_ = t.bar.Add(1)
}

// Analysis returns an analyzer tracker that advances this bar. The bar adopts
// the total of each stage as the stage begins.
func (t *Tracker) Analysis() *analyzer.Tracker {
	return analyzer.NewTracker(func(p analyzer.Progress) {
		if p.Total > 0 && t.bar.GetMax() != p.Total {
			t.bar.ChangeMax(p.Total)
		}
		desc := fmt.Sprintf("%s %s", t.label, p.Stage)
		if p.Item != "" {
			desc += " " + filepath.Base(p.Item)
		}
		t.bar.Describe(desc)
		_ = t.bar.Set(p.Current)
	})
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishSkipped clears the bar and prints a skip message.
func (t *Tracker) FinishSkipped(reason string) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
