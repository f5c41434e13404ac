package model

import (
	"encoding/xml"
	"time"
)

// Hole is a saved rabbit hole: every node of a tree at the moment it was stored.
type Hole struct {
	XMLName xml.Name  `json:"-" xml:"hole"`
	Key     string    `json:"key" xml:"key,attr"`
	Nodes   []Node    `json:"nodes" xml:"nodes>node"`
	Created time.Time `json:"created" xml:"created,attr"`
	Updated time.Time `json:"updated" xml:"updated,attr"`
}

// HoleInfo contains summary information about a saved hole.
type HoleInfo struct {
	Key       string
	NodeCount int
	Checksum  string
	Updated   time.Time
}

// Topic is one record returned by a topic provider.
type Topic struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	RichContent any    `json:"richContent,omitempty" yaml:"rich_content,omitempty"`
}
