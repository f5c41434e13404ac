// Package layout decides where newly created nodes appear.
package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Config tunes ring placement.
type Config struct {
	Radius      float64
	MinDistance float64
	AngleStep   float64
	RadiusStep  float64
	MaxAttempts int
}

// DefaultConfig returns the standard ring placement tunables.
func DefaultConfig() Config {
	return Config{
		Radius:      300,
		MinDistance: 150,
		AngleStep:   0.5,
		RadiusStep:  50,
		MaxAttempts: 10,
	}
}

// Placer positions a batch of children on a ring around their parent.
type Placer struct {
	cfg Config
}

// NewPlacer creates a placer. Zero fields in cfg take their default values.
func NewPlacer(cfg Config) *Placer {
	def := DefaultConfig()
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = def.MinDistance
	}
	if cfg.AngleStep == 0 {
		cfg.AngleStep = def.AngleStep
	}
	if cfg.RadiusStep <= 0 {
		cfg.RadiusStep = def.RadiusStep
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Placer{cfg: cfg}
}

func (p *Placer) Config() Config { return p.cfg }

// Place returns count positions spaced evenly on a ring around parent.
// A candidate closer than MinDistance to a node already placed in this batch
// or to any existing node is rotated and pushed outward, at most MaxAttempts
// times. After that the last candidate is used even if it still collides.
func (p *Placer) Place(parent r2.Vec, existing []r2.Vec, count int) []r2.Vec {
	if count <= 0 {
		return nil
	}
	placed := make([]r2.Vec, 0, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		radius := p.cfg.Radius
		pos := polar(parent, radius, angle)
		for attempt := 0; attempt < p.cfg.MaxAttempts && p.collides(pos, placed, existing); attempt++ {
			angle += p.cfg.AngleStep
			radius += p.cfg.RadiusStep
			pos = polar(parent, radius, angle)
		}
		placed = append(placed, pos)
	}
	return placed
}

// Seed lays out a root batch: a single node sits on center, larger batches
// form a ring around it.
func (p *Placer) Seed(center r2.Vec, existing []r2.Vec, count int) []r2.Vec {
	if count == 1 {
		return []r2.Vec{center}
	}
	return p.Place(center, existing, count)
}

func (p *Placer) collides(pos r2.Vec, sets ...[]r2.Vec) bool {
	for _, set := range sets {
		for _, q := range set {
			if r2.Norm(r2.Sub(pos, q)) < p.cfg.MinDistance {
				return true
			}
		}
	}
	return false
}

func polar(origin r2.Vec, radius, angle float64) r2.Vec {
	return r2.Add(origin, r2.Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)})
}

// Relocate pushes a parent away from its own parent so the new children get
// room: the result is grandparent + 2*(parent - grandparent). Coincident
// points return parent unchanged.
func Relocate(parent, grandparent r2.Vec) r2.Vec {
	d := r2.Sub(parent, grandparent)
	if r2.Norm(d) == 0 {
		return parent
	}
	return r2.Add(grandparent, r2.Scale(2, d))
}
