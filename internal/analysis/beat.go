// SPDX-License-Identifier: MIT
package analysis

import "time"

// BeatDetector flags sudden spikes in low-band energy relative to a short
// rolling average. There are no absolute thresholds, so it adapts to the
// ambient volume. State is owned by the caller and injected into each
// extraction call; the detector is not safe for concurrent use.
type BeatDetector struct {
	debounce    time.Duration // Minimum time between reported beats.
	energyRatio float64       // Spike ratio over the rolling average.
	maxHistory  int           // Bounded energy history length.

	lastBeat time.Time
	history  []float64
}

// NewBeatDetector creates a detector with the given debounce interval,
// spike ratio and history bound.
func NewBeatDetector(debounce time.Duration, energyRatio float64, maxHistory int) *BeatDetector {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &BeatDetector{
		debounce:    debounce,
		energyRatio: energyRatio,
		maxHistory:  maxHistory,
		history:     make([]float64, 0, maxHistory),
	}
}

// Detect records the current low-band energy and reports whether it
// constitutes a beat: the energy must exceed the rolling average by the
// configured ratio, and the previous beat must be at least the debounce
// interval in the past. The current energy is pushed before the average is
// taken, so a lone spike competes against itself.
func (d *BeatDetector) Detect(energy float64, now time.Time) bool {
	if len(d.history) == d.maxHistory {
		copy(d.history, d.history[1:])
		d.history = d.history[:d.maxHistory-1]
	}
	d.history = append(d.history, energy)

	var sum float64
	for _, e := range d.history {
		sum += e
	}
	avg := sum / float64(len(d.history))

	if energy > avg*d.energyRatio && now.Sub(d.lastBeat) > d.debounce {
		d.lastBeat = now
		return true
	}
	return false
}

// HistoryLen returns the number of energy samples currently retained.
func (d *BeatDetector) HistoryLen() int {
	return len(d.history)
}

// LastBeat returns the timestamp of the most recently reported beat.
// Zero if no beat has been reported yet.
func (d *BeatDetector) LastBeat() time.Time {
	return d.lastBeat
}
