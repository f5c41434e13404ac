package model

// Config is the complete application configuration.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`
	Seed     SeedConfig     `json:"seed"`
	Layout   LayoutConfig   `json:"layout"`
	Physics  PhysicsConfig  `json:"physics"`
	Viewport ViewportConfig `json:"viewport"`
	Controls ControlsConfig `json:"controls"`
	Provider ProviderConfig `json:"provider"`
	Stream   StreamConfig   `json:"stream"`
}

// DatabaseConfig locates the snapshot database.
type DatabaseConfig struct {
	Type string `json:"type"`
	Dir  string `json:"dir"`
	File string `json:"file"`
}

// LogConfig names the log folder and files.
type LogConfig struct {
	Folder     string `json:"folder"`
	CommandLog string `json:"command_log"`
	ErrorLog   string `json:"error_log"`
	InfoLog    string `json:"info_log"`
	Level      string `json:"level"`
}

// SeedConfig describes how a new hole is started.
type SeedConfig struct {
	Topic string  `json:"topic"`
	Count int     `json:"count"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Hole  string  `json:"hole"`
}

// LayoutConfig tunes child placement.
type LayoutConfig struct {
	Radius      float64 `json:"radius"`
	MinDistance float64 `json:"min_distance"`
	AngleStep   float64 `json:"angle_step"`
	RadiusStep  float64 `json:"radius_step"`
	MaxAttempts int     `json:"max_attempts"`
	Relocate    bool    `json:"relocate"`
}

// PhysicsConfig tunes the repulsion simulator.
type PhysicsConfig struct {
	Enabled           bool    `json:"enabled"`
	FrameMillis       int     `json:"frame_millis"`
	Force             float64 `json:"force"`
	MinDistance       float64 `json:"min_distance"`
	ParentForce       float64 `json:"parent_force"`
	ParentMinDistance float64 `json:"parent_min_distance"`
	Damping           float64 `json:"damping"`
}

// ViewportConfig sets the initial canvas size and zoom bounds.
type ViewportConfig struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	MinScale float64 `json:"min_scale"`
	MaxScale float64 `json:"max_scale"`
}

// ControlsConfig tunes pointer and keyboard input.
type ControlsConfig struct {
	WheelStep     float64 `json:"wheel_step"`
	KeyZoomStep   float64 `json:"key_zoom_step"`
	PanSpeed      float64 `json:"pan_speed"`
	DragThreshold float64 `json:"drag_threshold"`
}

// ProviderConfig selects and configures the topic provider.
type ProviderConfig struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Catalog    string `json:"catalog"`
	TimeoutSec int    `json:"timeout_sec"`
	ChildCount int    `json:"child_count"`
}

// StreamConfig configures the websocket frame stream.
type StreamConfig struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}
