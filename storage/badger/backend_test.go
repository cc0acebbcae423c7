package badger

import (
	"context"
	"testing"

	"github.com/poiesic/sibyl/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir() + "/nested/db"
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestBackendPing(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Ping(context.Background()))

	require.NoError(t, backend.Close())
	assert.ErrorIs(t, backend.Ping(context.Background()), storage.ErrStorageClosed)
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"router", "wifi"}, NameTokens("WiFi Router"))
	assert.Equal(t, []string{"2", "error", "x"}, NameTokens("error-2 / x / error"))
	assert.Empty(t, NameTokens("  --  "))
}
