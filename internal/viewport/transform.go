// Package viewport maps between screen pixels and world coordinates.
package viewport

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"habitat/internal/model"
)

const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 5.0
	// ExtendedMaxScale is the upper zoom bound used by the detail-heavy variant.
	ExtendedMaxScale = 10.0
)

// Transform holds the pan offset and zoom of the canvas.
// screen = world*scale + offset.
type Transform struct {
	offset   r2.Vec
	scale    float64
	size     r2.Vec
	minScale float64
	maxScale float64
}

// New creates a transform for a viewport of the given pixel size at scale 1.
func New(width, height, minScale, maxScale float64) *Transform {
	t := &Transform{scale: 1, size: r2.Vec{X: width, Y: height}}
	t.SetBounds(minScale, maxScale)
	return t
}

// SetBounds replaces the zoom bounds and re-clamps the current scale.
// Non-positive or inverted bounds fall back to the defaults.
func (t *Transform) SetBounds(minScale, maxScale float64) {
	if minScale <= 0 {
		minScale = DefaultMinScale
	}
	if maxScale < minScale {
		maxScale = DefaultMaxScale
		if maxScale < minScale {
			maxScale = minScale
		}
	}
	t.minScale, t.maxScale = minScale, maxScale
	t.scale = t.Clamp(t.scale)
}

// Bounds returns the zoom bounds.
func (t *Transform) Bounds() (float64, float64) {
	return t.minScale, t.maxScale
}

// Clamp limits z to the zoom bounds.
func (t *Transform) Clamp(z float64) float64 {
	if math.IsNaN(z) {
		return t.scale
	}
	return math.Max(t.minScale, math.Min(t.maxScale, z))
}

func (t *Transform) Scale() float64 { return t.scale }

func (t *Transform) Offset() r2.Vec { return t.offset }

func (t *Transform) Size() r2.Vec { return t.size }

// Center returns the screen-space center of the viewport.
func (t *Transform) Center() r2.Vec {
	return r2.Scale(0.5, t.size)
}

// ScreenToWorld converts a screen point to world coordinates.
func (t *Transform) ScreenToWorld(s r2.Vec) r2.Vec {
	z := t.scale
	if z == 0 {
		z = 1
	}
	return r2.Scale(1/z, r2.Sub(s, t.offset))
}

// WorldToScreen converts a world point to screen coordinates.
func (t *Transform) WorldToScreen(w r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(t.scale, w), t.offset)
}

// PanBy shifts the offset by d screen pixels.
func (t *Transform) PanBy(d r2.Vec) {
	t.offset = r2.Add(t.offset, d)
}

// SetOffset replaces the offset.
func (t *Transform) SetOffset(o r2.Vec) {
	t.offset = o
}

// ZoomAt changes the scale to z, keeping the world point under the screen
// point s fixed. The new scale is clamped first.
func (t *Transform) ZoomAt(s r2.Vec, z float64) {
	anchor := t.ScreenToWorld(s)
	z = t.Clamp(z)
	t.offset = r2.Sub(s, r2.Scale(z, anchor))
	t.scale = z
}

// CenterOn moves the offset so that world point p is drawn at the viewport center.
func (t *Transform) CenterOn(p r2.Vec) {
	t.offset = r2.Sub(t.Center(), r2.Scale(t.scale, p))
}

// ResetTo restores scale 1 and centers on p.
func (t *Transform) ResetTo(p r2.Vec) {
	t.scale = t.Clamp(1)
	t.CenterOn(p)
}

// Resize records the viewport pixel size.
func (t *Transform) Resize(width, height float64) {
	t.size = r2.Vec{X: width, Y: height}
}

// State returns a copy of the transform for frames.
func (t *Transform) State() model.TransformState {
	return model.TransformState{
		OffsetX: t.offset.X,
		OffsetY: t.offset.Y,
		Scale:   t.scale,
		Width:   t.size.X,
		Height:  t.size.Y,
	}
}
