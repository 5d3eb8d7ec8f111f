package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	barWidth    = 30
	maxItemName = 40
	lineWidth   = 100
)

// Progress renders a single \r-overwritten progress line. When disabled
// (output is not a terminal) every method is a no-op; the per-file log
// lines already give enough breadcrumbs in piped output.
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	label   string
	total   int64
	done    int64
	count   bool // Show [done/total] (item counts) rather than byte sizes.
}

// NewProgress returns a bar over total units. count selects "[3/10]" style
// counters; otherwise done/total are shown as byte sizes.
func NewProgress(w io.Writer, enabled bool, label string, total int64, count bool) *Progress {
	return &Progress{w: w, enabled: enabled, label: label, total: total, count: count}
}

// Add advances the bar by n units and redraws it with item as the current
// file name.
func (p *Progress) Add(n int64, item string) {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	if p.total > 0 && p.done > p.total {
		p.done = p.total
	}
	_, _ = io.WriteString(p.w, "\r"+p.render(item))
}

// Clear wipes the progress line so regular log output starts clean.
func (p *Progress) Clear() {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, "\r"+strings.Repeat(" ", lineWidth)+"\r")
}

func (p *Progress) render(item string) string {
	var pct float64
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	filled := int(pct / 100 * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var counter string
	switch {
	case p.total <= 0 && p.count:
		counter = fmt.Sprintf("[%d]", p.done)
	case p.total <= 0:
		// Unknown size, e.g. a download without Content-Length.
		counter = fmt.Sprintf("[%s]", FormatBytes(p.done))
	case p.count:
		counter = fmt.Sprintf("[%d/%d]", p.done, p.total)
	default:
		counter = fmt.Sprintf("[%s/%s]", FormatBytes(p.done), FormatBytes(p.total))
	}

	if utf8.RuneCountInString(item) > maxItemName {
		r := []rune(item)
		item = string(r[:maxItemName-1]) + "…"
	}

	line := fmt.Sprintf("  %s [%s] %5.1f%% %s %s", p.label, bar, pct, counter, item)
	if n := utf8.RuneCountInString(line); n < lineWidth {
		line += strings.Repeat(" ", lineWidth-n)
	}
	return line
}
