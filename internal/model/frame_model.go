package model

// TransformState is a read-only copy of the viewport transform.
type TransformState struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Frame is everything a renderer needs to draw one frame.
type Frame struct {
	Sequence    uint64         `json:"sequence"`
	Generation  uint64         `json:"generation"`
	Hole        string         `json:"hole"`
	Physics     bool           `json:"physics"`
	Nodes       []Node         `json:"nodes"`
	Connections []Connection   `json:"connections"`
	Transform   TransformState `json:"transform"`
}
