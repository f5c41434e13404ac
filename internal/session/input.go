package session

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"habitat/internal/event"
	"habitat/internal/graph"
	"habitat/internal/log"
)

// update runs fn on the executor and publishes a frame when fn reports a change.
func (s *Session) update(fn func() (bool, error)) error {
	return s.run(func() error {
		changed, err := fn()
		if err != nil {
			return err
		}
		if changed {
			s.publish()
		}
		return nil
	})
}

// Pan moves the canvas by a screen-space delta.
func (s *Session) Pan(dx, dy float64) error {
	return s.update(func() (bool, error) {
		s.view.PanBy(r2.Vec{X: dx, Y: dy})
		return true, nil
	})
}

// ZoomAt sets the scale, keeping the world point under (x, y) in place.
func (s *Session) ZoomAt(x, y, scale float64) error {
	return s.update(func() (bool, error) {
		s.view.ZoomAt(r2.Vec{X: x, Y: y}, scale)
		return true, nil
	})
}

// Wheel applies one wheel notch at the cursor.
func (s *Session) Wheel(x, y, deltaY float64) error {
	return s.update(func() (bool, error) {
		return s.ctrl.Wheel(r2.Vec{X: x, Y: y}, deltaY), nil
	})
}

// KeyDown handles a pressed key. Held pan keys start the key loop.
func (s *Session) KeyDown(key string) error {
	return s.update(func() (bool, error) {
		changed := s.ctrl.KeyDown(key)
		if s.ctrl.Tick() {
			s.keyLoop.Start()
			changed = true
		}
		return changed, nil
	})
}

// KeyUp releases a key. The key loop stops itself once nothing is held.
func (s *Session) KeyUp(key string) error {
	return s.update(func() (bool, error) {
		s.ctrl.KeyUp(key)
		return false, nil
	})
}

// Blur releases every held key.
func (s *Session) Blur() error {
	return s.update(func() (bool, error) {
		s.ctrl.Blur()
		s.keyLoop.Stop()
		return false, nil
	})
}

// MouseDown arms canvas panning at screen point (x, y).
func (s *Session) MouseDown(x, y float64) error {
	return s.update(func() (bool, error) {
		s.ctrl.MouseDown(r2.Vec{X: x, Y: y})
		return false, nil
	})
}

// NodeMouseDown arms dragging of node id.
func (s *Session) NodeMouseDown(id int, x, y float64) error {
	return s.update(func() (bool, error) {
		if _, ok := s.store.Node(id); !ok {
			return false, fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		s.ctrl.NodeMouseDown(id, r2.Vec{X: x, Y: y})
		return false, nil
	})
}

// MouseMove pans or drags, whichever is armed.
func (s *Session) MouseMove(x, y float64) error {
	return s.update(func() (bool, error) {
		if !s.ctrl.Dragging() {
			return false, nil
		}
		return true, s.ctrl.MouseMove(r2.Vec{X: x, Y: y})
	})
}

func (s *Session) MouseUp() error {
	return s.update(func() (bool, error) {
		s.ctrl.MouseUp()
		return false, nil
	})
}

func (s *Session) MouseLeave() error {
	return s.update(func() (bool, error) {
		s.ctrl.MouseLeave()
		return false, nil
	})
}

// Drag moves node id by a screen-space delta in one gesture.
func (s *Session) Drag(id int, dx, dy float64) error {
	return s.update(func() (bool, error) {
		if _, ok := s.store.Node(id); !ok {
			return false, fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		z := s.view.Scale()
		return true, s.store.MoveBy(id, dx/z, dy/z)
	})
}

// Center centers the view on node id.
func (s *Session) Center(id int) error {
	return s.update(func() (bool, error) {
		n, ok := s.store.Node(id)
		if !ok {
			return false, fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		s.view.CenterOn(n.Position.Vec())
		return true, nil
	})
}

// Reset returns to scale 1 centered on the Current node or the first node.
func (s *Session) Reset() error {
	return s.update(func() (bool, error) {
		if s.store.Len() == 0 {
			return false, ErrNoFocus
		}
		if n, ok := s.store.Current(); ok {
			s.view.ResetTo(n.Position.Vec())
			return true, nil
		}
		s.view.ResetTo(s.store.Nodes()[0].Position.Vec())
		return true, nil
	})
}

// Resize sets the viewport's pixel size.
func (s *Session) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport size %gx%g", width, height)
	}
	return s.update(func() (bool, error) {
		s.view.Resize(width, height)
		return true, nil
	})
}

// SetPhysics starts or stops the repulsion loop.
func (s *Session) SetPhysics(on bool) error {
	return s.update(func() (bool, error) {
		if s.physicsOn == on {
			return false, nil
		}
		s.physicsOn = on
		if on {
			s.physicsLoop.Start()
		} else {
			s.physicsLoop.Stop()
		}
		s.events.Publish(event.Event{Type: event.PhysicsToggled, Data: on})
		s.logger.Info(s.ctx, "Physics toggled", log.Fields{"enabled": on})
		return true, nil
	})
}

// StepPhysics runs n repulsion ticks immediately and reports how many pair
// updates they made.
func (s *Session) StepPhysics(n int) (int, error) {
	total := 0
	err := s.update(func() (bool, error) {
		for i := 0; i < n; i++ {
			moved, err := s.sim.Tick(s.store)
			total += moved
			if err != nil {
				return total > 0, err
			}
		}
		return total > 0, nil
	})
	return total, err
}

// Physics reports whether the repulsion loop is running.
func (s *Session) Physics() bool {
	var on bool
	_ = s.run(func() error {
		on = s.physicsOn
		return nil
	})
	return on
}
