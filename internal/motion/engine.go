// SPDX-License-Identifier: MIT
package motion

import (
	"math"

	"viz/internal/config"
)

// State tracks playback of the wave effect and the monotonic frame counter.
// The frame counter is the only time source the engine knows about.
type State struct {
	Playing bool
	Frame   int64
}

// Params are the user-set base motion parameters, adjusted via bounded
// sliders. Values outside the slider bounds are clamped by Clamp.
type Params struct {
	FlowSpeed     float64
	ColorSpeed    float64
	WaveIntensity float64
	PatternSize   float64
}

// Clamp returns a copy of p with every parameter forced into its slider range.
func (p Params) Clamp() Params {
	p.FlowSpeed = clamp(p.FlowSpeed, config.MinFlowSpeed, config.MaxFlowSpeed)
	p.ColorSpeed = clamp(p.ColorSpeed, config.MinColorSpeed, config.MaxColorSpeed)
	p.WaveIntensity = clamp(p.WaveIntensity, config.MinWaveIntensity, config.MaxWaveIntensity)
	p.PatternSize = clamp(p.PatternSize, config.MinPatternSize, config.MaxPatternSize)
	return p
}

// Tick advances every vertex by one frame and increments the frame counter.
// Position is fully recomputed from three terms:
//
//   - a ring anchor that slowly rotates and breathes with the pattern size,
//   - a per-vertex Lissajous drift seeded by the vertex's own traits,
//   - a positional ripple, active only while the effect is playing.
//
// The ripple phase deliberately ignores the speed multiplier so the ripple
// cadence stays decoupled from the flow cadence.
func Tick(f *Field, s *State, p Params, m Modulation) {
	effSpeed := p.FlowSpeed * m.Speed
	effIntensity := p.WaveIntensity * m.Intensity
	effSize := p.PatternSize * m.Size

	t := float64(s.Frame) * 0.02 * effSpeed
	waveTime := float64(s.Frame) * 0.01

	cx, cy := f.Width/2, f.Height/2
	slice := 2 * math.Pi / float64(len(f.Vertices))

	for i := range f.Vertices {
		v := &f.Vertices[i]

		angle := t*0.2 + float64(i)*slice
		centerX := cx + math.Cos(angle)*ringRadius*effSize
		centerY := cy + math.Sin(angle)*ringRadius*effSize

		flowX := math.Sin(t*v.Frequency+v.Phase) * 100 * v.Amplitude
		flowY := math.Cos(t*1.3*v.Frequency+v.Phase) * 100 * v.Amplitude

		// The ripple feeds the previous position back in, so both offsets
		// are computed before the vertex moves.
		var waveX, waveY float64
		if s.Playing {
			waveX = math.Sin(waveTime+v.Y*0.02) * 50 * effIntensity
			waveY = math.Cos(waveTime+v.X*0.02) * 50 * effIntensity
		}

		v.X = centerX + flowX + waveX
		v.Y = centerY + flowY + waveY

		v.Hue = math.Mod(v.Hue+p.ColorSpeed, 360)
		v.Phase += 0.02 * effSpeed
	}

	s.Frame++
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
