package relays

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "restreamer.yaml")

	yamlContent := `---
log-level: debug
port: 4100
loopback-only: true
target: rtmp://ingest.example/input/{key}
streamers:
  - source: rtsp://cam1/stream
    key: k1
    description: Front door
  - source: rtsp://cam2/stream
    target: srt://relay.example:7000
    enabled: false
`

	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	loader := NewLoader(yamlPath)
	config, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.LogLevel != "debug" || config.Port != 4100 || !config.LoopbackOnly {
		t.Errorf("Load() globals = %+v", config)
	}
	if config.Target != "rtmp://ingest.example/input/{key}" {
		t.Errorf("Load() target = %q", config.Target)
	}
	if len(config.Streamers) != 2 {
		t.Fatalf("Load() streamers = %d, want 2", len(config.Streamers))
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	loader := NewLoader("/nonexistent/path/restreamer.yaml")
	_, err := loader.Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("streamers: [source: {"))
	if err == nil {
		t.Error("Parse() with malformed yaml should return error")
	}
}

func TestParseNumericLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"log-level: 0":       "",
		"log-level: -2":      "",
		"log-level: 1":       "error",
		"log-level: 2":       "warn",
		"log-level: 3":       "info",
		"log-level: 4":       "debug",
		"log-level: 9":       "debug",
		"log-level: warn":    "warn",
		"log-level: \"3\"": "3",
	}
	for in, want := range tests {
		fc, err := Parse([]byte(in + "\nsource: rtsp://cam/s\n"))
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", in, err)
		}
		if fc.LogLevel != want {
			t.Errorf("Parse(%q) log level = %q, want %q", in, fc.LogLevel, want)
		}
		if got := fc.Settings().LogLevel; got != string(want) {
			t.Errorf("Parse(%q) settings log level = %q, want %q", in, got, want)
		}
	}
}

func TestParseRejectsStructuredLogLevel(t *testing.T) {
	if _, err := Parse([]byte("log-level: [debug]\n")); err == nil {
		t.Error("Parse() with a list log-level should return error")
	}
}
