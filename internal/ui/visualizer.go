// Package ui renders trees, holes and frames as colored terminal text.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	colorDefault = color.New(color.Reset)
	colorBranch  = color.New(color.FgYellow, color.Faint)
	colorID      = color.New(color.FgHiBlack)
	colorCurrent = color.New(color.FgHiGreen, color.Bold)
	colorVisited = color.New(color.FgCyan)
	colorFresh   = color.New(color.FgWhite)
	colorFaded   = color.New(color.FgHiBlack)
	colorBurrow  = color.New(color.FgMagenta, color.CrossedOut)
	colorError   = color.New(color.FgRed)
	colorOK      = color.New(color.FgGreen)
	colorLabel   = color.New(color.FgHiYellow)
)

// colorTags maps the inline markers used by PrintMultiColoredLine.
var colorTags = map[string]*color.Color{
	"{{default}}": colorDefault,
	"{{branch}}":  colorBranch,
	"{{id}}":      colorID,
	"{{current}}": colorCurrent,
	"{{visited}}": colorVisited,
	"{{fresh}}":   colorFresh,
	"{{faded}}":   colorFaded,
	"{{burrow}}":  colorBurrow,
	"{{error}}":   colorError,
	"{{ok}}":      colorOK,
	"{{label}}":   colorLabel,
}

type Visualizer struct {
	writer   io.Writer
	useColor bool
}

func NewVisualizer(w io.Writer, useColor bool) *Visualizer {
	return &Visualizer{writer: w, useColor: useColor}
}

func (v *Visualizer) Print(message string) {
	fmt.Fprint(v.writer, message)
}

func (v *Visualizer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(v.writer, format, args...)
}

func (v *Visualizer) Println(message string) {
	fmt.Fprintln(v.writer, message)
}

func (v *Visualizer) PrintColored(message string, c *color.Color) {
	if v.useColor && c != colorDefault {
		c.Fprint(v.writer, message)
		return
	}
	fmt.Fprint(v.writer, message)
}

// PrintMultiColoredLine prints a line containing {{tag}} markers. Each marker
// colors the text up to the next marker.
func (v *Visualizer) PrintMultiColoredLine(line string) {
	current := colorDefault
	for len(line) > 0 {
		start := strings.Index(line, "{{")
		if start == -1 {
			v.PrintColored(line, current)
			break
		}
		if start > 0 {
			v.PrintColored(line[:start], current)
		}
		end := strings.Index(line[start:], "}}")
		if end == -1 {
			v.PrintColored(line[start:], current)
			break
		}
		tag := line[start : start+end+2]
		if c, ok := colorTags[tag]; ok {
			current = c
		} else {
			v.PrintColored(tag, current)
		}
		line = line[start+end+2:]
	}
	v.Println("")
}
