// Package physics spreads overlapping nodes apart with pairwise repulsion.
package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"habitat/internal/model"
)

// Config tunes the repulsion forces.
type Config struct {
	Force             float64
	MinDistance       float64
	ParentForce       float64
	ParentMinDistance float64
	Damping           float64
}

// DefaultConfig returns the standard repulsion tunables.
func DefaultConfig() Config {
	return Config{
		Force:             50000,
		MinDistance:       100,
		ParentForce:       500000,
		ParentMinDistance: 200,
		Damping:           0.9,
	}
}

// Body is one node as seen by the simulator.
type Body struct {
	ID     int
	Pos    r2.Vec
	Parent bool
}

// Graph is the part of the node store the simulator reads and moves.
type Graph interface {
	Nodes() []model.Node
	HasChildren(id int) bool
	SetPosition(id int, p model.Position) error
}

// Simulator applies one repulsion pass per tick.
type Simulator struct {
	cfg Config
}

func NewSimulator(cfg Config) *Simulator {
	return &Simulator{cfg: cfg}
}

func (s *Simulator) Config() Config { return s.cfg }

// SetConfig replaces the tunables between ticks.
func (s *Simulator) SetConfig(cfg Config) { s.cfg = cfg }

// Step pushes apart every pair of bodies closer than their minimum distance.
// Pairs where both bodies are parents use the stronger parent force and the
// larger parent spacing. Bodies are updated in place as pairs are visited, so
// later pairs see earlier displacements. Coincident pairs are skipped.
// It returns the number of pairs that moved.
func (s *Simulator) Step(bodies []Body) int {
	moved := 0
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := &bodies[i], &bodies[j]
			force, minDist := s.cfg.Force, s.cfg.MinDistance
			if a.Parent && b.Parent {
				force, minDist = s.cfg.ParentForce, s.cfg.ParentMinDistance
			}
			delta := r2.Sub(b.Pos, a.Pos)
			d := r2.Norm(delta)
			if d == 0 || d >= minDist {
				continue
			}
			f := force / (d * d)
			push := r2.Scale(f*s.cfg.Damping/d, delta)
			a.Pos = r2.Sub(a.Pos, push)
			b.Pos = r2.Add(b.Pos, push)
			moved++
		}
	}
	return moved
}

// Tick runs one step over the graph and writes moved positions back.
func (s *Simulator) Tick(g Graph) (int, error) {
	nodes := g.Nodes()
	bodies := make([]Body, len(nodes))
	for i, n := range nodes {
		bodies[i] = Body{ID: n.ID, Pos: n.Position.Vec(), Parent: g.HasChildren(n.ID)}
	}
	moved := s.Step(bodies)
	if moved == 0 {
		return 0, nil
	}
	for i, b := range bodies {
		if b.Pos == nodes[i].Position.Vec() {
			continue
		}
		if err := g.SetPosition(b.ID, model.PositionOf(b.Pos)); err != nil {
			return moved, fmt.Errorf("failed to move node %d: %w", b.ID, err)
		}
	}
	return moved, nil
}
