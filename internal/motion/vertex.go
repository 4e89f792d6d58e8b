// SPDX-License-Identifier: MIT
/*
Package motion owns the animated vertex field and its per-frame update.
The update is a closed-form function of the frame counter, the user
parameters and the latest audio modulation; it never reads the wall clock,
which keeps the animation deterministic and decoupled from display jitter.
*/
package motion

import (
	"math"
	"math/rand"
)

// Ring radius the vertex anchors orbit on, before pattern-size scaling.
const ringRadius = 200

// Vertex is one animated point. Position and color are rewritten on every
// tick; the random motion traits (Phase seed, Amplitude, Frequency) are
// fixed at creation. Velocity is retained for renderers that expect it but
// plays no part in the closed-form motion.
type Vertex struct {
	X, Y      float64
	VX, VY    float64
	Phase     float64 // Accumulates without wrapping; only consumed by trig.
	Hue       float64 // Degrees, always reduced modulo 360.
	Amplitude float64 // Flow drift scale, >= 1.
	Frequency float64 // Flow drift rate.
}

// Field is a fixed set of vertices on a logical canvas. Created once at
// startup and mutated in place by Tick.
type Field struct {
	Vertices []Vertex
	Width    float64
	Height   float64
}

// NewField creates count vertices evenly spaced on a ring around the canvas
// center. The per-vertex motion traits are drawn from a seeded source so a
// given seed always produces the same animation.
func NewField(count int, width, height float64, seed int64) *Field {
	rng := rand.New(rand.NewSource(seed))
	cx, cy := width/2, height/2

	vertices := make([]Vertex, count)
	for i := range vertices {
		angle := float64(i) * 2 * math.Pi / float64(count)
		vertices[i] = Vertex{
			X:         cx + math.Cos(angle)*ringRadius,
			Y:         cy + math.Sin(angle)*ringRadius,
			Phase:     rng.Float64() * 2 * math.Pi,
			Hue:       rng.Float64() * 360,
			Amplitude: 1 + rng.Float64(),
			Frequency: 0.5 + rng.Float64()*1.5,
		}
	}

	return &Field{
		Vertices: vertices,
		Width:    width,
		Height:   height,
	}
}
