// Package controller turns raw pointer, wheel and keyboard input into
// viewport and node changes.
package controller

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"habitat/internal/model"
	"habitat/internal/viewport"
)

// Config tunes input handling.
type Config struct {
	WheelStep     float64
	KeyZoomStep   float64
	PanSpeed      float64
	DragThreshold float64
}

// DefaultConfig returns the standard input tunables.
func DefaultConfig() Config {
	return Config{
		WheelStep:     0.1,
		KeyZoomStep:   0.1,
		PanSpeed:      10,
		DragThreshold: 3,
	}
}

// ClickAction is the outcome of clicking a node.
type ClickAction int

const (
	ActionIgnore ClickAction = iota
	ActionOpenDetail
	ActionActivate
)

func (a ClickAction) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionOpenDetail:
		return "open-detail"
	case ActionActivate:
		return "activate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Direction is a held pan direction.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// Mover moves a node by a world-space delta.
type Mover interface {
	MoveBy(id int, dx, dy float64) error
}

const noNode = -1

// Controller holds only transient input state. The canvas and nodes it
// changes belong to the viewport transform and the node store.
type Controller struct {
	cfg   Config
	view  *viewport.Transform
	nodes Mover

	panning    bool
	dragStart  r2.Vec
	lastOffset r2.Vec

	dragNode    int
	lastPointer r2.Vec

	pressAt       r2.Vec
	travel        float64
	suppressClick bool

	held map[Direction]bool
}

// New creates a controller acting on view and nodes.
func New(cfg Config, view *viewport.Transform, nodes Mover) *Controller {
	return &Controller{
		cfg:      cfg,
		view:     view,
		nodes:    nodes,
		dragNode: noNode,
		held:     make(map[Direction]bool),
	}
}

func (c *Controller) Config() Config { return c.cfg }

// SetConfig replaces the input tunables.
func (c *Controller) SetConfig(cfg Config) { c.cfg = cfg }

// MouseDown starts panning the canvas.
func (c *Controller) MouseDown(p r2.Vec) {
	c.panning = true
	c.dragStart = p
	c.lastOffset = c.view.Offset()
	c.press(p)
}

// NodeMouseDown starts dragging a node. The canvas does not pan.
func (c *Controller) NodeMouseDown(id int, p r2.Vec) {
	c.panning = false
	c.dragNode = id
	c.lastPointer = p
	c.press(p)
}

func (c *Controller) press(p r2.Vec) {
	c.pressAt = p
	c.travel = 0
	c.suppressClick = false
}

// MouseMove pans the canvas or drags the held node.
func (c *Controller) MouseMove(p r2.Vec) error {
	switch {
	case c.dragNode != noNode:
		d := r2.Scale(1/c.view.Scale(), r2.Sub(p, c.lastPointer))
		c.lastPointer = p
		c.track(p)
		if err := c.nodes.MoveBy(c.dragNode, d.X, d.Y); err != nil {
			c.dragNode = noNode
			return fmt.Errorf("failed to drag node: %w", err)
		}
	case c.panning:
		c.view.SetOffset(r2.Add(c.lastOffset, r2.Sub(p, c.dragStart)))
		c.track(p)
	}
	return nil
}

func (c *Controller) track(p r2.Vec) {
	if d := r2.Norm(r2.Sub(p, c.pressAt)); d > c.travel {
		c.travel = d
	}
}

// MouseUp ends panning or node drag. A drag that travelled past the
// threshold swallows the click that follows it.
func (c *Controller) MouseUp() {
	if c.Dragging() && c.travel > c.cfg.DragThreshold {
		c.suppressClick = true
	}
	c.release()
}

// MouseLeave ends any drag without affecting the next click.
func (c *Controller) MouseLeave() {
	c.release()
}

func (c *Controller) release() {
	c.panning = false
	c.dragNode = noNode
}

// Dragging reports whether a pan or node drag is active.
func (c *Controller) Dragging() bool {
	return c.panning || c.dragNode != noNode
}

// DraggedNode returns the node being dragged, if any.
func (c *Controller) DraggedNode() (int, bool) {
	return c.dragNode, c.dragNode != noNode
}

// Wheel zooms one step about the cursor. It reports whether the view changed.
func (c *Controller) Wheel(p r2.Vec, deltaY float64) bool {
	if deltaY == 0 {
		return false
	}
	step := c.cfg.WheelStep
	if deltaY > 0 {
		step = -step
	}
	c.view.ZoomAt(p, c.view.Scale()+step)
	return true
}

// KeyDown handles a key press. It reports whether the key was consumed, in
// which case the host should suppress its default scrolling.
func (c *Controller) KeyDown(key string) bool {
	if dir, ok := directionOf(key); ok {
		c.held[dir] = true
		return true
	}
	switch key {
	case "+", "=":
		c.view.ZoomAt(c.view.Center(), c.view.Scale()+c.cfg.KeyZoomStep)
		return true
	case "-", "_":
		c.view.ZoomAt(c.view.Center(), c.view.Scale()-c.cfg.KeyZoomStep)
		return true
	}
	return false
}

// KeyUp releases a held direction key.
func (c *Controller) KeyUp(key string) {
	if dir, ok := directionOf(key); ok {
		delete(c.held, dir)
	}
}

// Blur releases every held key.
func (c *Controller) Blur() {
	clear(c.held)
}

// Held reports whether a direction is held.
func (c *Controller) Held(dir Direction) bool {
	return c.held[dir]
}

func directionOf(key string) (Direction, bool) {
	switch strings.ToLower(key) {
	case "w", "arrowup", "up":
		return DirUp, true
	case "s", "arrowdown", "down":
		return DirDown, true
	case "a", "arrowleft", "left":
		return DirLeft, true
	case "d", "arrowright", "right":
		return DirRight, true
	}
	return 0, false
}

// Tick pans by PanSpeed for every held direction. Holding up moves the
// content down, which reveals what lies above. It reports whether the view moved.
func (c *Controller) Tick() bool {
	var d r2.Vec
	if c.held[DirUp] {
		d.Y += c.cfg.PanSpeed
	}
	if c.held[DirDown] {
		d.Y -= c.cfg.PanSpeed
	}
	if c.held[DirLeft] {
		d.X += c.cfg.PanSpeed
	}
	if c.held[DirRight] {
		d.X -= c.cfg.PanSpeed
	}
	if d == (r2.Vec{}) {
		return false
	}
	c.view.PanBy(d)
	return true
}

// Click decides what clicking n does. A click that ends a real drag is
// ignored, and so is any click on a burrowed node.
func (c *Controller) Click(n model.Node) ClickAction {
	if c.suppressClick {
		c.suppressClick = false
		return ActionIgnore
	}
	if c.Dragging() && c.travel > c.cfg.DragThreshold {
		return ActionIgnore
	}
	switch n.State {
	case model.StateBurrowed:
		return ActionIgnore
	case model.StateVisited:
		return ActionOpenDetail
	default:
		return ActionActivate
	}
}
