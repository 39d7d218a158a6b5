package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ns.db")

	s, err := Create(dbPath, DefaultBusyTimeout)
	require.NoError(t, err)

	version, err := s.Bun().GetSchemaInfo(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
	require.NoError(t, s.Close())

	// Create refuses an existing database.
	_, err = Create(dbPath, DefaultBusyTimeout)
	require.Error(t, err)

	// Open accepts it.
	s, err = Open(dbPath, DefaultBusyTimeout)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, dbPath, s.Path())

	count, err := s.Bun().CountContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count, "a fresh namespace has no containers")
}

func TestGetBusyTimeout(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvBusyTimeout, "")
		assert.Equal(t, DefaultBusyTimeout, GetBusyTimeout(0))
	})

	t.Run("configured", func(t *testing.T) {
		t.Setenv(EnvBusyTimeout, "")
		assert.Equal(t, 5000, GetBusyTimeout(5000))
	})

	t.Run("env_override", func(t *testing.T) {
		t.Setenv(EnvBusyTimeout, "1234")
		assert.Equal(t, 1234, GetBusyTimeout(5000))
	})

	t.Run("env_garbage_ignored", func(t *testing.T) {
		t.Setenv(EnvBusyTimeout, "soon")
		assert.Equal(t, 5000, GetBusyTimeout(5000))
	})
}
