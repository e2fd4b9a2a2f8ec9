package main

import (
	"os"
	"time"
)

// statsReporter prints a summary of the live stats at a fixed interval until
// stop is closed. While sessions are still writing it sees an eventually
// consistent snapshot; that's fine for a progress display. Quiet until the
// first request lands.
func statsReporter(stats *Stats, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := stats.Snapshot()
			if snap.Requests == 0 {
				continue
			}
			snap.WriteSummary(os.Stdout, false)
		}
	}
}
