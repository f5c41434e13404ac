package model

// Command represents a user command with its scope, operation, and arguments
type Command struct {
	Scope     string   `json:"scope"`
	Operation string   `json:"operation"`
	Args      []string `json:"args,omitempty"`
}
