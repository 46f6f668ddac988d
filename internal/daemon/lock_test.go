package daemon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLock_Exclusive(t *testing.T) {
	// Given: a lock held by one daemon
	path := filepath.Join(t.TempDir(), "run", "daemon.lock")
	first := NewInstanceLock(path)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	// When: a second daemon tries the same lock
	second := NewInstanceLock(path)
	acquired, err = second.TryLock()

	// Then: it is refused until the first releases
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, first.Unlock())
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestInstanceLock_UnlockWithoutLock(t *testing.T) {
	l := NewInstanceLock(filepath.Join(t.TempDir(), "daemon.lock"))
	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
}
