// Package graph owns the canonical set of exploration nodes and their
// parent to child connections.
//
// A Store is not safe for concurrent use. The session serializes every
// mutation onto one goroutine.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"habitat/internal/model"
)

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrAlreadyExpanded   = errors.New("node already has children")
	ErrEmptyBatch        = errors.New("empty batch")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
)

const noCurrent = -1

// Store holds nodes, connections, the Current marker and a generation
// counter that changes whenever the whole tree is replaced.
type Store struct {
	nodes       map[int]*model.Node
	order       []int
	children    map[int][]int
	connections []model.Connection
	nextID      int
	current     int
	generation  uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nodes:    make(map[int]*model.Node),
		children: make(map[int][]int),
		current:  noCurrent,
	}
}

// Generation identifies the current tree. It increases on every reset or replace.
func (s *Store) Generation() uint64 { return s.generation }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.order) }

// CreateBatch creates one node per item as children of parentID, or as roots
// when parentID is model.NoParent. A parent gets its children exactly once.
func (s *Store) CreateBatch(parentID int, items []model.NodeInfo) ([]model.Node, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}

	depth := 0
	var parent *model.Node
	if parentID != model.NoParent {
		var ok bool
		parent, ok = s.nodes[parentID]
		if !ok {
			return nil, fmt.Errorf("parent %d: %w", parentID, ErrNodeNotFound)
		}
		if len(s.children[parentID]) > 0 {
			return nil, fmt.Errorf("parent %d: %w", parentID, ErrAlreadyExpanded)
		}
		depth = parent.Depth + 1
	}

	created := make([]model.Node, 0, len(items))
	for _, item := range items {
		n := &model.Node{
			ID:          s.nextID,
			ParentID:    parentID,
			Label:       item.Label,
			Description: item.Description,
			Depth:       depth,
			State:       model.StateUnvisited,
			Position:    item.Position,
		}
		s.nextID++
		s.insert(n)
		created = append(created, *n)
	}

	if parent != nil {
		parent.Expansion = model.ExpansionDone
	}
	return created, nil
}

func (s *Store) insert(n *model.Node) {
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	if n.ParentID != model.NoParent {
		s.children[n.ParentID] = append(s.children[n.ParentID], n.ID)
		s.connections = append(s.connections, model.Connection{From: n.ParentID, To: n.ID})
	}
}

// SetState moves a node through its lifecycle:
// unvisited -> current, current -> visited, and anything but burrowed -> burrowed.
// Promoting a node to current demotes the previous current node and fades the
// promoted node's siblings.
func (s *Store) SetState(id int, to model.NodeState) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	if !to.Valid() {
		return fmt.Errorf("node %d to %q: %w", id, to, ErrInvalidTransition)
	}
	if n.State == to {
		return nil
	}
	if n.State == model.StateBurrowed {
		return fmt.Errorf("node %d is burrowed: %w", id, ErrInvalidTransition)
	}

	switch to {
	case model.StateCurrent:
		if n.State != model.StateUnvisited {
			return fmt.Errorf("node %d %s to %s: %w", id, n.State, to, ErrInvalidTransition)
		}
		if prev, ok := s.nodes[s.current]; ok {
			prev.State = model.StateVisited
		}
		n.State = model.StateCurrent
		n.IsFaded = false
		s.current = id
		for _, sib := range s.siblingIDs(n) {
			s.nodes[sib].IsFaded = true
		}
	case model.StateVisited:
		if n.State != model.StateCurrent {
			return fmt.Errorf("node %d %s to %s: %w", id, n.State, to, ErrInvalidTransition)
		}
		n.State = model.StateVisited
		s.current = noCurrent
	case model.StateBurrowed:
		if s.current == id {
			s.current = noCurrent
		}
		n.State = model.StateBurrowed
		n.IsFaded = false
	default:
		return fmt.Errorf("node %d %s to %s: %w", id, n.State, to, ErrInvalidTransition)
	}
	return nil
}

// MarkBurrowed makes a node terminal.
func (s *Store) MarkBurrowed(id int) error {
	return s.SetState(id, model.StateBurrowed)
}

// ResetToSeed discards every node and starts a new tree from items.
// Node ids keep increasing across resets.
func (s *Store) ResetToSeed(items []model.NodeInfo) ([]model.Node, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	s.clear()
	return s.CreateBatch(model.NoParent, items)
}

func (s *Store) clear() {
	s.nodes = make(map[int]*model.Node)
	s.order = nil
	s.children = make(map[int][]int)
	s.connections = nil
	s.current = noCurrent
	s.generation++
}

// Replace installs a previously saved tree. Connections are rebuilt from the
// parent links and the id counter moves past the largest restored id.
func (s *Store) Replace(nodes []model.Node) error {
	if err := validate(nodes); err != nil {
		return err
	}

	sorted := make([]model.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Depth != sorted[j].Depth {
			return sorted[i].Depth < sorted[j].Depth
		}
		return sorted[i].ID < sorted[j].ID
	})

	s.clear()
	for i := range sorted {
		n := sorted[i]
		n.Expansion = model.ExpansionNotStarted
		s.insert(&n)
		if n.State == model.StateCurrent {
			s.current = n.ID
		}
		if n.ID >= s.nextID {
			s.nextID = n.ID + 1
		}
	}
	for id := range s.children {
		s.nodes[id].Expansion = model.ExpansionDone
	}
	return nil
}

// validate checks that nodes form a forest with consistent depths and at
// most one current node.
func validate(nodes []model.Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes: %w", ErrInvalidSnapshot)
	}
	byID := make(map[int]model.Node, len(nodes))
	currents := 0
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("duplicate node id %d: %w", n.ID, ErrInvalidSnapshot)
		}
		if n.ID < 0 {
			return fmt.Errorf("negative node id %d: %w", n.ID, ErrInvalidSnapshot)
		}
		if !n.State.Valid() {
			return fmt.Errorf("node %d has state %q: %w", n.ID, n.State, ErrInvalidSnapshot)
		}
		if n.State == model.StateCurrent {
			currents++
		}
		byID[n.ID] = n
	}
	if currents > 1 {
		return fmt.Errorf("%d current nodes: %w", currents, ErrInvalidSnapshot)
	}
	for _, n := range nodes {
		if n.ParentID == model.NoParent {
			if n.Depth != 0 {
				return fmt.Errorf("root %d at depth %d: %w", n.ID, n.Depth, ErrInvalidSnapshot)
			}
			continue
		}
		p, ok := byID[n.ParentID]
		if !ok {
			return fmt.Errorf("node %d has missing parent %d: %w", n.ID, n.ParentID, ErrInvalidSnapshot)
		}
		// Depth strictly increasing along parent links rules out cycles.
		if n.Depth != p.Depth+1 {
			return fmt.Errorf("node %d at depth %d under parent at depth %d: %w", n.ID, n.Depth, p.Depth, ErrInvalidSnapshot)
		}
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id int) (model.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in creation order.
func (s *Store) Nodes() []model.Node {
	out := make([]model.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.nodes[id])
	}
	return out
}

// Connections returns a copy of the connection list.
func (s *Store) Connections() []model.Connection {
	out := make([]model.Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// Current returns the node in the current state, if any.
func (s *Store) Current() (model.Node, bool) {
	return s.Node(s.current)
}

// HasChildren reports whether the node has been expanded.
func (s *Store) HasChildren(id int) bool {
	return len(s.children[id]) > 0
}

// ChildrenOf returns the node's children in creation order.
func (s *Store) ChildrenOf(id int) []model.Node {
	ids := s.children[id]
	out := make([]model.Node, 0, len(ids))
	for _, c := range ids {
		out = append(out, *s.nodes[c])
	}
	return out
}

// Siblings returns the nodes sharing id's parent, excluding id itself.
func (s *Store) Siblings(id int) []model.Node {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	ids := s.siblingIDs(n)
	out := make([]model.Node, 0, len(ids))
	for _, sib := range ids {
		out = append(out, *s.nodes[sib])
	}
	return out
}

func (s *Store) siblingIDs(n *model.Node) []int {
	var ids []int
	if n.ParentID == model.NoParent {
		for _, id := range s.order {
			if id != n.ID && s.nodes[id].ParentID == model.NoParent {
				ids = append(ids, id)
			}
		}
		return ids
	}
	for _, id := range s.children[n.ParentID] {
		if id != n.ID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Path returns the labels from the node's root down to the node.
func (s *Store) Path(id int) []string {
	var path []string
	for n, ok := s.nodes[id]; ok; n, ok = s.nodes[n.ParentID] {
		path = append(path, n.Label)
		if n.ParentID == model.NoParent {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Labels returns every node label in creation order.
func (s *Store) Labels() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Label)
	}
	return out
}

// SetPosition moves a node to p.
func (s *Store) SetPosition(id int, p model.Position) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	n.Position = p
	return nil
}

// MoveBy translates a node by (dx, dy) world units.
func (s *Store) MoveBy(id int, dx, dy float64) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	n.Position.X += dx
	n.Position.Y += dy
	return nil
}

// SetExpansion records the expansion progress of a node.
func (s *Store) SetExpansion(id int, e model.ExpansionState) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	n.Expansion = e
	return nil
}

// Expansion returns the expansion progress of a node.
func (s *Store) Expansion(id int) (model.ExpansionState, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return model.ExpansionNotStarted, false
	}
	return n.Expansion, true
}
