package relays

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the relays file
type Loader struct {
	filePath string
}

// NewLoader creates a new relays file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the relays file
func (l *Loader) Load() (FileConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read relays file: %w", err)
	}

	return Parse(data)
}

// Parse decodes relays file content.
func Parse(data []byte) (FileConfig, error) {
	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse relays yaml: %w", err)
	}
	return config, nil
}
