// SPDX-License-Identifier: MIT
package scene

import "viz/internal/motion"

// VertexFrame is one rendered point: cartesian position plus hue. The
// viewer fills in saturation/lightness itself.
type VertexFrame struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Hue float64 `json:"hue"`
}

// EdgeFrame is one rendered line with its stroke attributes.
type EdgeFrame struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Hue     float64 `json:"hue"`
	Opacity float64 `json:"opacity"`
	Width   float64 `json:"width"`
}

// Frame is the per-tick scene snapshot broadcast to viewer clients.
type Frame struct {
	Type      string        `json:"type"` // Always "frame".
	Number    int64         `json:"frame"`
	Playing   bool          `json:"playing"`
	Listening bool          `json:"listening"`
	Width     float64       `json:"width"`
	Height    float64       `json:"height"`
	Vertices  []VertexFrame `json:"vertices"`
	Edges     []EdgeFrame   `json:"edges"`
}

// buildFrame assembles a Frame from the field's current geometry, reusing
// the frame's slices across ticks.
func buildFrame(dst *Frame, f *motion.Field, edges []motion.Edge, number int64, playing, listening bool) {
	dst.Type = "frame"
	dst.Number = number
	dst.Playing = playing
	dst.Listening = listening
	dst.Width = f.Width
	dst.Height = f.Height

	dst.Vertices = dst.Vertices[:0]
	for i := range f.Vertices {
		v := &f.Vertices[i]
		dst.Vertices = append(dst.Vertices, VertexFrame{X: v.X, Y: v.Y, Hue: v.Hue})
	}

	dst.Edges = dst.Edges[:0]
	for _, e := range edges {
		a, b := &f.Vertices[e.A], &f.Vertices[e.B]
		dst.Edges = append(dst.Edges, EdgeFrame{
			X1: a.X, Y1: a.Y,
			X2: b.X, Y2: b.Y,
			Hue:     e.Hue,
			Opacity: e.Opacity,
			Width:   e.Width,
		})
	}
}
