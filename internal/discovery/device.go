package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LoadOrCreateDeviceID returns the device id persisted at path, creating
// a new one when the file is missing or does not hold a valid uuid. An
// empty path yields a fresh id every run.
func LoadOrCreateDeviceID(path string) (string, error) {
	if path == "" {
		return uuid.NewString(), nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id.String(), nil
		}
	case !os.IsNotExist(err):
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create device id dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write device id: %w", err)
	}
	return id, nil
}
