package relays

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/restreamer/internal/config"
)

// FileConfig is the top-level structure of the relays file.
// Streamers are kept as raw nodes so that one malformed entry can be
// skipped without rejecting the whole file.
type FileConfig struct {
	LogLevel     LogLevel    `yaml:"log-level,omitempty"`
	Port         int         `yaml:"port,omitempty"`
	LoopbackOnly bool        `yaml:"loopback-only,omitempty"`
	Target       string      `yaml:"target,omitempty"` // default target template, may contain {key}
	Source       string      `yaml:"source,omitempty"` // single-streamer shorthand
	Key          string      `yaml:"key,omitempty"`    // single-streamer shorthand
	Streamers    []yaml.Node `yaml:"streamers,omitempty"`
}

// Settings extracts the global settings of the file.
func (fc FileConfig) Settings() config.FileSettings {
	return config.FileSettings{
		LogLevel:     string(fc.LogLevel),
		Port:         fc.Port,
		LoopbackOnly: fc.LoopbackOnly,
	}
}

// StreamerProps contains the properties of one streamer entry.
type StreamerProps struct {
	Source      string `yaml:"source"`
	Target      string `yaml:"target,omitempty"`
	Key         string `yaml:"key,omitempty"`
	Description string `yaml:"description,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// LogLevel is a level name, or a verbosity number where 1 logs errors
// only and 4 or more logs everything. Zero or less keeps the default.
type LogLevel string

var verbosityLevels = []LogLevel{"", "error", "warn", "info", "debug"}

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: log-level must be a name or a number", value.Line)
	}
	if value.ShortTag() == "!!int" {
		n, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid log-level %q: %w", value.Line, value.Value, err)
		}
		switch {
		case n <= 0:
			*l = ""
		case n >= len(verbosityLevels):
			*l = verbosityLevels[len(verbosityLevels)-1]
		default:
			*l = verbosityLevels[n]
		}
		return nil
	}
	*l = LogLevel(value.Value)
	return nil
}
