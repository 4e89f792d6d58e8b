// SPDX-License-Identifier: MIT
package motion

import "viz/internal/analysis"

// Damping factors that attenuate how hard the audio pushes each base
// parameter around its neutral value of 1.0.
const (
	speedDamping     = 0.3
	intensityDamping = 0.5
	sizeDamping      = 0.3
)

// Modulation is a damped multiplicative adjustment applied to the user-set
// base parameters, derived from live audio on every analysis tick. All
// factors are 1.0 when no audio is flowing.
type Modulation struct {
	Speed     float64
	Intensity float64
	Size      float64
}

// Neutral returns the identity modulation, used at startup and whenever
// listening stops so the animation degrades to unmodulated motion.
func Neutral() Modulation {
	return Modulation{Speed: 1, Intensity: 1, Size: 1}
}

// Modulate derives a damped modulation from the extractor's visual
// parameters: each factor is pulled toward its parameter by the damping,
// leaving the rest at neutral.
func Modulate(p analysis.VisualParams) Modulation {
	return Modulation{
		Speed:     1 + (p.Speed-1)*speedDamping,
		Intensity: 1 + (p.Intensity-1)*intensityDamping,
		Size:      1 + (p.PatternSize-1)*sizeDamping,
	}
}
