// Package model defines the data structures used throughout the Habitat engine.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// NoParent is the ParentID of a root node.
const NoParent = -1

// NodeState is the lifecycle state of an exploration node.
type NodeState string

const (
	StateUnvisited NodeState = "unvisited"
	StateCurrent   NodeState = "current"
	StateVisited   NodeState = "visited"
	StateBurrowed  NodeState = "burrowed"
)

// Valid reports whether s is one of the known node states.
func (s NodeState) Valid() bool {
	switch s {
	case StateUnvisited, StateCurrent, StateVisited, StateBurrowed:
		return true
	}
	return false
}

// ExpansionState tracks whether a node's children have been requested.
type ExpansionState int

const (
	ExpansionNotStarted ExpansionState = iota
	ExpansionInFlight
	ExpansionDone
)

func (e ExpansionState) String() string {
	switch e {
	case ExpansionNotStarted:
		return "not-started"
	case ExpansionInFlight:
		return "in-flight"
	case ExpansionDone:
		return "done"
	default:
		return fmt.Sprintf("expansion(%d)", int(e))
	}
}

// Position is a point in world coordinates.
type Position struct {
	X float64 `json:"x" xml:"x,attr"`
	Y float64 `json:"y" xml:"y,attr"`
}

// Vec converts the position to a gonum vector.
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// PositionOf converts a gonum vector to a position.
func PositionOf(v r2.Vec) Position {
	return Position{X: v.X, Y: v.Y}
}

// Node is a single exploration node on the canvas.
type Node struct {
	ID          int            `json:"id" xml:"id,attr"`
	ParentID    int            `json:"parent_id" xml:"parent_id,attr"`
	Label       string         `json:"label" xml:"label"`
	Description string         `json:"description,omitempty" xml:"description,omitempty"`
	Depth       int            `json:"depth" xml:"depth,attr"`
	State       NodeState      `json:"state" xml:"state,attr"`
	IsFaded     bool           `json:"is_faded" xml:"faded,attr"`
	Position    Position       `json:"position" xml:"position"`
	Expansion   ExpansionState `json:"-" xml:"-"`
}

// IsRoot reports whether the node starts a tree.
func (n Node) IsRoot() bool {
	return n.ParentID == NoParent
}

// NodeInfo carries the fields needed to create a node in a batch.
type NodeInfo struct {
	Label       string
	Description string
	Position    Position
}

// Connection is a directed parent to child edge.
type Connection struct {
	From int `json:"from" xml:"from,attr"`
	To   int `json:"to" xml:"to,attr"`
}
