package runner

import (
	"fmt"
	"sync"
	"time"

	"visualcheck/types"
)

// progressTracker prints periodic progress while a batch run is going.
type progressTracker struct {
	mu         sync.Mutex
	processed  int
	matched    int
	mismatched int
	errors     int
	total      int
	ticker     *time.Ticker
	done       chan bool
}

func newProgressTracker(total int) *progressTracker {
	tracker := &progressTracker{
		ticker: time.NewTicker(500 * time.Millisecond),
		done:   make(chan bool),
		total:  total,
	}
	go tracker.display()
	return tracker
}

func (p *progressTracker) display() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rProgress: %d/%d (Mismatches: %d, Errors: %d)",
					p.processed, p.total, p.mismatched, p.errors)
			} else {
				fmt.Printf("\rProgress: %d/%d (Mismatches: %d)",
					p.processed, p.total, p.mismatched)
			}
			p.mu.Unlock()
		}
	}
}

func (p *progressTracker) record(result types.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	switch {
	case result.Error != nil:
		p.errors++
	case result.Match:
		p.matched++
	default:
		p.mismatched++
	}
}

func (p *progressTracker) stop() {
	p.ticker.Stop()
	p.done <- true
}
