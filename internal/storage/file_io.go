package storage

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"habitat/internal/model"
)

// FormatFromPath picks an export format from a file extension.
func FormatFromPath(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// FileExport writes a hole to a file in the specified format (JSON or XML).
func FileExport(hole *model.Hole, filename, format string) error {
	if hole == nil || len(hole.Nodes) == 0 {
		return fmt.Errorf("hole has no nodes")
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(hole, "", "  ")
	case "xml":
		data, err = xml.MarshalIndent(hole, "", "  ")
		data = append([]byte(xml.Header), data...)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal hole: %w", err)
	}

	return WriteFile(filename, data)
}

// WriteFile writes data to filename, creating parent directories.
func WriteFile(filename string, data []byte) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// FileImport reads a hole from a file in the specified format (JSON or XML).
func FileImport(filename, format string) (*model.Hole, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var hole model.Hole
	switch format {
	case "json":
		err = json.Unmarshal(data, &hole)
	case "xml":
		err = xml.Unmarshal(data, &hole)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if len(hole.Nodes) == 0 {
		return nil, fmt.Errorf("file %s contains no nodes", filename)
	}
	if hole.Key == "" {
		hole.Key = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return &hole, nil
}
