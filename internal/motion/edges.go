// SPDX-License-Identifier: MIT
package motion

import "math"

// Edge visibility constants: opacity fades linearly to zero at
// maxLinkDistance, and edges below the opacity floor are not emitted.
const (
	maxLinkDistance = 300.0
	minEdgeOpacity  = 0.1
)

// Edge connects two vertices by index, with the derived stroke attributes.
// Edges are recomputed from scratch every frame, never stored.
type Edge struct {
	A, B    int
	Hue     float64
	Opacity float64
	Width   float64
}

// AppendEdges derives the visible edges for the field and appends them to
// dst, returning the extended slice. Passing the previous frame's slice
// (reset to length zero) avoids per-frame allocation.
//
// This is an O(V^2) pass over every unordered vertex pair. At the default
// 24 vertices that is 276 pairs per frame; the configured vertex cap keeps
// it from growing past what brute force can sustain.
func AppendEdges(dst []Edge, f *Field) []Edge {
	for i := 0; i < len(f.Vertices); i++ {
		for j := i + 1; j < len(f.Vertices); j++ {
			a, b := &f.Vertices[i], &f.Vertices[j]
			dist := math.Hypot(a.X-b.X, a.Y-b.Y)

			opacity := clamp(1-dist/maxLinkDistance, 0, 1)
			if opacity <= minEdgeOpacity {
				continue
			}

			dst = append(dst, Edge{
				A:       i,
				B:       j,
				Hue:     (a.Hue + b.Hue) / 2,
				Opacity: opacity,
				Width:   math.Max(1, 4*opacity),
			})
		}
	}
	return dst
}

// Edges derives the visible edges for the field into a fresh slice.
func Edges(f *Field) []Edge {
	return AppendEdges(nil, f)
}
