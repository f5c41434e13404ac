package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestScreenWorldRoundTrip(t *testing.T) {
	tr := New(800, 600, DefaultMinScale, DefaultMaxScale)
	tr.SetOffset(r2.Vec{X: 40, Y: -25})
	tr.ZoomAt(r2.Vec{}, 2.5)

	w := r2.Vec{X: 123.5, Y: -77}
	back := tr.ScreenToWorld(tr.WorldToScreen(w))
	assert.InDelta(t, w.X, back.X, 1e-9)
	assert.InDelta(t, w.Y, back.Y, 1e-9)
}

func TestZoomAtKeepsCursorAnchored(t *testing.T) {
	tests := []struct {
		name   string
		cursor r2.Vec
		zoom   float64
	}{
		{"zoom in", r2.Vec{X: 200, Y: 150}, 1.7},
		{"zoom out", r2.Vec{X: 10, Y: 590}, 0.4},
		{"clamped high", r2.Vec{X: 400, Y: 300}, 50},
		{"clamped low", r2.Vec{X: 0, Y: 0}, 0.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(800, 600, DefaultMinScale, DefaultMaxScale)
			tr.PanBy(r2.Vec{X: -300, Y: 80})
			before := tr.ScreenToWorld(tt.cursor)
			tr.ZoomAt(tt.cursor, tt.zoom)
			after := tr.ScreenToWorld(tt.cursor)
			assert.InDelta(t, before.X, after.X, 1e-9)
			assert.InDelta(t, before.Y, after.Y, 1e-9)
		})
	}
}

func TestZoomClamp(t *testing.T) {
	tr := New(800, 600, DefaultMinScale, DefaultMaxScale)
	tr.ZoomAt(r2.Vec{}, 7)
	assert.Equal(t, DefaultMaxScale, tr.Scale())
	tr.ZoomAt(r2.Vec{}, -3)
	assert.Equal(t, DefaultMinScale, tr.Scale())

	tr.SetBounds(DefaultMinScale, ExtendedMaxScale)
	tr.ZoomAt(r2.Vec{}, 7)
	assert.Equal(t, 7.0, tr.Scale())
}

func TestZoomSequence(t *testing.T) {
	tr := New(800, 600, DefaultMinScale, DefaultMaxScale)
	for _, d := range []float64{0.1, 0.1, -0.3} {
		tr.ZoomAt(r2.Vec{X: 100, Y: 100}, tr.Scale()+d)
	}
	assert.InDelta(t, 0.9, tr.Scale(), 1e-9)
}

func TestCenterOnAndReset(t *testing.T) {
	tr := New(800, 600, DefaultMinScale, DefaultMaxScale)
	tr.ZoomAt(r2.Vec{X: 13, Y: 17}, 2)

	p := r2.Vec{X: 1000, Y: 1000}
	tr.CenterOn(p)
	s := tr.WorldToScreen(p)
	assert.InDelta(t, 400, s.X, 1e-9)
	assert.InDelta(t, 300, s.Y, 1e-9)
	assert.Equal(t, 2.0, tr.Scale())

	tr.ResetTo(p)
	assert.Equal(t, 1.0, tr.Scale())
	assert.Equal(t, r2.Vec{X: -600, Y: -700}, tr.Offset())
}

func TestSetBoundsFallsBack(t *testing.T) {
	tr := New(10, 10, 0, -1)
	lo, hi := tr.Bounds()
	assert.Equal(t, DefaultMinScale, lo)
	assert.Equal(t, DefaultMaxScale, hi)
}

func TestState(t *testing.T) {
	tr := New(640, 480, DefaultMinScale, DefaultMaxScale)
	tr.PanBy(r2.Vec{X: 5, Y: 6})
	st := tr.State()
	assert.Equal(t, 5.0, st.OffsetX)
	assert.Equal(t, 6.0, st.OffsetY)
	assert.Equal(t, 1.0, st.Scale)
	assert.Equal(t, 640.0, st.Width)
}
