// SPDX-License-Identifier: MIT
//
// Package analysis turns byte frequency snapshots into normalized audio
// metrics (amplitude, band energies, peaks, beat flag) and the derived
// visual parameters that drive the motion engine. Detection thresholds are
// heuristic, tuned for visual effect rather than audio-engineering accuracy.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SnapshotBins is the expected snapshot length: an FFT size of 512 yields
// 256 frequency bins. Band index ranges below assume this layout.
const SnapshotBins = 256

// Band index boundaries (inclusive) within a 256-bin snapshot.
const (
	lowBandEnd  = 10
	midBandEnd  = 100
	highBandEnd = 255
	peakFloor   = 0.5 // Normalized value a local maximum must exceed.
)

// ErrShortSnapshot is returned when a snapshot has fewer bins than the band
// layout requires. Failing fast here beats propagating NaN into the visuals.
var ErrShortSnapshot = errors.New("analysis: snapshot shorter than expected bin count")

// BandEnergy holds the mean normalized energy of the three frequency bands.
type BandEnergy struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Peak is a strict local maximum in the normalized snapshot.
type Peak struct {
	Bin   int     `json:"bin"`
	Value float64 `json:"value"`
}

// Metrics is the per-tick extraction result. Derived fresh on every call;
// only the injected BeatDetector carries state across ticks.
type Metrics struct {
	Amplitude float64    `json:"amplitude"`
	Bands     BandEnergy `json:"bands"`
	Peaks     []Peak     `json:"peaks,omitempty"`
	Beat      bool       `json:"beat"`
}

// VisualParams bridge raw metrics to motion and appearance controls.
type VisualParams struct {
	Intensity      float64 `json:"intensity"`
	Speed          float64 `json:"speed"`
	ColorIntensity float64 `json:"colorIntensity"`
	PatternSize    float64 `json:"patternSize"`
	Complexity     float64 `json:"complexity"`
}

// Extract computes metrics and visual parameters from one frequency snapshot.
// The snapshot is consumed, not retained. The detector carries the rolling
// beat state between calls; now is the timestamp used for beat debouncing.
func Extract(snapshot []byte, detector *BeatDetector, now time.Time) (Metrics, VisualParams, error) {
	if len(snapshot) < SnapshotBins {
		return Metrics{}, VisualParams{}, fmt.Errorf("%w: got %d bins, want >= %d",
			ErrShortSnapshot, len(snapshot), SnapshotBins)
	}

	var m Metrics

	var total float64
	for _, b := range snapshot {
		total += float64(b) / 255.0
	}
	m.Amplitude = total / float64(len(snapshot))

	m.Bands.Low = bandMean(snapshot, 0, lowBandEnd)
	m.Bands.Mid = bandMean(snapshot, lowBandEnd+1, midBandEnd)
	m.Bands.High = bandMean(snapshot, midBandEnd+1, highBandEnd)

	// Strict local maxima over the interior bins. Plateaus never qualify.
	for i := 1; i < len(snapshot)-1; i++ {
		v := float64(snapshot[i]) / 255.0
		if snapshot[i] > snapshot[i-1] && snapshot[i] > snapshot[i+1] && v > peakFloor {
			m.Peaks = append(m.Peaks, Peak{Bin: i, Value: v})
		}
	}

	m.Beat = detector.Detect(m.Bands.Low, now)

	return m, deriveVisual(m), nil
}

// bandMean returns the mean normalized value of snapshot[lo..hi], with hi
// clamped to the snapshot length.
func bandMean(snapshot []byte, lo, hi int) float64 {
	if hi > len(snapshot)-1 {
		hi = len(snapshot) - 1
	}
	if lo > hi {
		return 0
	}
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += float64(snapshot[i]) / 255.0
	}
	return sum / float64(hi-lo+1)
}

// deriveVisual maps metrics to visual control parameters. The curves are
// tuned by eye: intensity grows superlinearly with amplitude, speed is a
// binary beat kick, the remaining three track their bands linearly.
func deriveVisual(m Metrics) VisualParams {
	p := VisualParams{
		Intensity:      math.Pow(m.Amplitude*2, 1.5),
		Speed:          1.0,
		ColorIntensity: m.Bands.High * 1.5,
		PatternSize:    1 + m.Bands.Low*0.5,
		Complexity:     1 + m.Bands.Mid*2,
	}
	if m.Beat {
		p.Speed = 1.5
	}
	return p
}
