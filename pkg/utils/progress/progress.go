package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charlie0129/mklndir/pkg/utils/size"
)

var (
	SpeedSmoothingTime = 5 * time.Second
)

// Stats is a point-in-time snapshot of an engine's counters. Engines expose
// a getter and Progress polls it on every tick.
type Stats struct {
	EntriesVisited int64 // Tree entries reached so far, directories included.
	FilesProcessed int64 // Files hardlinked or verified so far.
	BytesProcessed int64 // Source bytes behind the processed files.
	Failures       int64 // Entries that could not be processed.
}

type Progress struct {
	mu  *sync.Mutex
	out io.Writer

	updatePeriod time.Duration

	statsGetter func() Stats // Function to get the current stats.

	stats         Stats
	lastStats     Stats // lastStats before screen is updated
	lastUpdated   time.Time
	drewSomething bool
}

func New(out io.Writer, updatePeriod time.Duration) *Progress {
	return &Progress{
		mu:           &sync.Mutex{},
		out:          out,
		updatePeriod: updatePeriod,
	}
}

// Write implements the io.Writer interface for Progress, so Progress can be
// used as an output for loggers, to avoid progress display issues when
// logs appear the same time as the progress line is updated.
func (p *Progress) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Erase current progress text, and move to line start.
	_, _ = fmt.Fprint(p.out, "\033[2K\r")

	// Write the new text.
	n, err := p.out.Write(b)
	if err != nil {
		return n, err
	}

	// Make sure it ends in a newline so progress can be displayed on a new line.
	if n > 0 && b[n-1] != '\n' {
		_, _ = fmt.Fprintln(p.out)
	}

	return n, nil
}

// Start redraws the progress line on every tick until ctx is cancelled.
// Nothing is drawn until SetStatsGetter has been called, so the terminal
// stays clean during setup and any interactive prompts.
func (p *Progress) Start(ctx context.Context) {
	t := time.NewTicker(p.updatePeriod)
	defer t.Stop()

out:
	for {
		select {
		case <-ctx.Done():
			break out
		case <-t.C:
			p.mu.Lock()
			if p.statsGetter == nil {
				p.mu.Unlock()
				continue
			}
			p.update(p.statsGetter())
			_, _ = fmt.Fprint(p.out, "\033[2K\r"+p.formatStats())
			p.drewSomething = true
			p.mu.Unlock()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drewSomething {
		// Move past the progress line so the final output starts clean.
		_, _ = fmt.Fprintln(p.out)
	}
}

func (p *Progress) SetStatsGetter(f func() Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsGetter = f
}

func (p *Progress) update(stats Stats) {
	p.stats = stats
}

// lock before calling
func (p *Progress) formatStats() string {
	timeDiff := time.Since(p.lastUpdated)
	timeDiffSeconds := timeDiff.Seconds()

	ret := fmt.Sprintf("%s %s, at %s/s  |  %s %s visited",
		size.FormatNumber(p.stats.FilesProcessed),
		singularOrPlural(p.stats.FilesProcessed, "file", "files"),
		size.FormatNumber(int64(float64(p.stats.FilesProcessed-p.lastStats.FilesProcessed)/timeDiffSeconds)),
		//
		size.FormatNumber(p.stats.EntriesVisited),
		singularOrPlural(p.stats.EntriesVisited, "entry", "entries"),
	)

	if p.stats.BytesProcessed > 0 {
		ret += fmt.Sprintf("  |  %s shared", size.FormatBytes(p.stats.BytesProcessed))
	}

	if p.stats.Failures > 0 {
		ret += fmt.Sprintf("  |  %s failed", size.FormatNumber(p.stats.Failures))
	}

	needSpeedRecalculation := timeDiff > SpeedSmoothingTime
	if needSpeedRecalculation {
		p.lastStats = p.stats
		p.lastUpdated = time.Now()
	}

	return ret
}

func singularOrPlural(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
