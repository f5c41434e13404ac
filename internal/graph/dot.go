package graph

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"habitat/internal/model"
)

var stateColors = map[model.NodeState]string{
	model.StateUnvisited: "gray40",
	model.StateCurrent:   "darkgreen",
	model.StateVisited:   "steelblue",
	model.StateBurrowed:  "darkorange3",
}

type dotNode struct {
	node model.Node
}

func (n dotNode) ID() int64 { return int64(n.node.ID) }

func (n dotNode) DOTID() string { return fmt.Sprintf("n%d", n.node.ID) }

func (n dotNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "label", Value: n.node.Label},
		{Key: "color", Value: stateColors[n.node.State]},
	}
	if n.node.IsFaded {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

type attributes []encoding.Attribute

func (a attributes) Attributes() []encoding.Attribute { return a }

type dotGraph struct {
	*simple.DirectedGraph
	name string
}

func (g dotGraph) DOTID() string { return g.name }

func (dotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return attributes{{Key: "rankdir", Value: "LR"}},
		attributes{{Key: "shape", Value: "box"}},
		attributes(nil)
}

// MarshalDOT renders the tree as a Graphviz digraph.
func (s *Store) MarshalDOT(name string) ([]byte, error) {
	g := dotGraph{DirectedGraph: simple.NewDirectedGraph(), name: name}
	for _, id := range s.order {
		g.AddNode(dotNode{node: *s.nodes[id]})
	}
	for _, c := range s.connections {
		g.SetEdge(simple.Edge{F: g.Node(int64(c.From)), T: g.Node(int64(c.To))})
	}
	data, err := dot.Marshal(g, "", "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return data, nil
}
