package crawler

import (
	"fmt"
	"io"
)

// ProgressReporter streams one symbol per classified link and a newline per
// finished page.
type ProgressReporter struct {
	w io.Writer
}

// NewProgressReporter writes progress to w. A nil writer discards it.
func NewProgressReporter(w io.Writer) *ProgressReporter {
	if w == nil {
		w = io.Discard
	}
	return &ProgressReporter{w: w}
}

// Link reports one classification.
func (p *ProgressReporter) Link(c Classification) {
	_, _ = io.WriteString(p.w, c.Symbol())
}

// PageDone ends the current page line.
func (p *ProgressReporter) PageDone(term string, page, links int) {
	_, _ = fmt.Fprintf(p.w, " [%s p%d: %d links]\n", term, page, links)
}
