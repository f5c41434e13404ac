package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"habitat/internal/model"
)

// TreeUI prints exploration trees and saved holes.
type TreeUI struct {
	visualizer *Visualizer
}

func NewTreeUI(w io.Writer, useColor bool) *TreeUI {
	return &TreeUI{visualizer: NewVisualizer(w, useColor)}
}

func stateTag(n model.Node) string {
	switch {
	case n.State == model.StateCurrent:
		return "{{current}}"
	case n.State == model.StateBurrowed:
		return "{{burrow}}"
	case n.IsFaded:
		return "{{faded}}"
	case n.State == model.StateVisited:
		return "{{visited}}"
	default:
		return "{{fresh}}"
	}
}

func stateMark(s model.NodeState) string {
	switch s {
	case model.StateCurrent:
		return "*"
	case model.StateVisited:
		return "+"
	case model.StateBurrowed:
		return "x"
	default:
		return "o"
	}
}

// TreeView prints every tree of the forest, roots in id order.
func (tui *TreeUI) TreeView(nodes []model.Node, showID bool) {
	if len(nodes) == 0 {
		tui.visualizer.Println("No nodes to display")
		return
	}
	for _, line := range visualizeTree(nodes, showID) {
		tui.visualizer.PrintMultiColoredLine(line)
	}
}

func visualizeTree(nodes []model.Node, showID bool) []string {
	var output []string
	children := make(map[int][]model.Node)
	var roots []model.Node
	for _, n := range nodes {
		if n.IsRoot() {
			roots = append(roots, n)
		} else {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	byID := func(s []model.Node) {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}
	byID(roots)

	var build func(n model.Node, prefix string, isLast, isRoot bool)
	build = func(n model.Node, prefix string, isLast, isRoot bool) {
		var line strings.Builder
		line.WriteString(prefix)
		if !isRoot {
			if isLast {
				line.WriteString("{{branch}}└── {{default}}")
				prefix += "    "
			} else {
				line.WriteString("{{branch}}├── {{default}}")
				prefix += "{{branch}}│   {{default}}"
			}
		}
		line.WriteString(fmt.Sprintf("%s%s %s{{default}}", stateTag(n), stateMark(n.State), n.Label))
		if showID {
			line.WriteString(fmt.Sprintf(" {{id}}[%d]{{default}}", n.ID))
		}
		output = append(output, line.String())

		kids := children[n.ID]
		byID(kids)
		for i, k := range kids {
			build(k, prefix, i == len(kids)-1, false)
		}
	}
	for _, r := range roots {
		build(r, "", true, true)
	}
	return output
}

// NodeDetail prints one node with its path and children.
func (tui *TreeUI) NodeDetail(n model.Node, path []string, children []model.Node) {
	v := tui.visualizer
	v.PrintMultiColoredLine(fmt.Sprintf("{{label}}%s{{default}} {{id}}[%d]{{default}}", n.Label, n.ID))
	if n.Description != "" {
		v.Println(n.Description)
	}
	v.Printf("state: %s  depth: %d  position: (%.1f, %.1f)\n", n.State, n.Depth, n.Position.X, n.Position.Y)
	if len(path) > 0 {
		v.Println("path: " + strings.Join(path, " > "))
	}
	for _, c := range children {
		v.PrintMultiColoredLine(fmt.Sprintf("  %s%s %s{{default}} {{id}}[%d]{{default}}", stateTag(c), stateMark(c.State), c.Label, c.ID))
	}
}

// HoleList prints saved holes and marks the live one.
func (tui *TreeUI) HoleList(holes []model.HoleInfo, current string) {
	if len(holes) == 0 {
		tui.visualizer.Println("No saved holes")
		return
	}
	tui.visualizer.Println("Saved holes:")
	for _, h := range holes {
		mark := " "
		tag := "{{default}}"
		if h.Key == current {
			mark, tag = "*", "{{current}}"
		}
		tui.visualizer.PrintMultiColoredLine(fmt.Sprintf("%s %s%s{{default}} {{id}}(%d nodes, %s){{default}}",
			mark, tag, h.Key, h.NodeCount, h.Updated.Format(time.DateTime)))
	}
}

// FrameStatus prints a one-line summary of a frame.
func (tui *TreeUI) FrameStatus(f model.Frame) {
	physics := "off"
	if f.Physics {
		physics = "on"
	}
	tui.visualizer.Printf("hole %s  nodes %d  scale %.2f  offset (%.1f, %.1f)  physics %s\n",
		f.Hole, len(f.Nodes), f.Transform.Scale, f.Transform.OffsetX, f.Transform.OffsetY, physics)
}

// Error prints err in the error color.
func (tui *TreeUI) Error(err error) {
	tui.visualizer.PrintMultiColoredLine("{{error}}Error: " + err.Error())
}

// Success prints msg in the success color.
func (tui *TreeUI) Success(msg string) {
	tui.visualizer.PrintMultiColoredLine("{{ok}}" + msg)
}
