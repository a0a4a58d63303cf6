package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// record is the on-disk shape of the identity file.
type record struct {
	UpdatedAt time.Time         `yaml:"updated_at"`
	Relays    []domain.Identity `yaml:"relays"`
}

// Store keeps the identity record in a YAML file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Backend() string { return "file" }

// Load reads the record. A missing file is an empty record.
func (s *Store) Load(_ context.Context) ([]domain.Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse identity file %s: %w", s.path, err)
	}
	return rec.Relays, nil
}

// Save writes the record through a temp file and rename so a crash never
// leaves a truncated record behind.
func (s *Store) Save(_ context.Context, identities []domain.Identity) error {
	data, err := yaml.Marshal(record{UpdatedAt: time.Now().UTC(), Relays: identities})
	if err != nil {
		return fmt.Errorf("failed to marshal identities: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".identities-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp identity file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace identity file: %w", err)
	}
	return nil
}

// Ping reports whether the state directory is usable.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}
