package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
	ids, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSaveThenLoadRoundTripsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identities.yaml")
	s := NewStore(path)
	ctx := context.Background()

	want := []domain.Identity{
		{ID: "b", Source: "rtsp://b", Target: "rtmp://x/b"},
		{ID: "a", Source: "rtsp://a", Target: "rtmp://x/a"},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Save replaces the whole record.
	require.NoError(t, s.Save(ctx, want[:1]))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want[:1], got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relays: [id: {"), 0o644))

	_, err := NewStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, NewStore(filepath.Join(dir, "identities.yaml")).Ping(context.Background()))
	assert.Error(t, NewStore(filepath.Join(dir, "nope", "identities.yaml")).Ping(context.Background()))
}
