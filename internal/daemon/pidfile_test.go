package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePID(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestPIDFile_WriteRead(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nested", "test.pid")

	pf := NewPIDFile(pidPath)
	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, pidPath, pf.Path())
}

func TestPIDFile_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", "12345", 12345, false},
		{"trailing newline", "12345\n", 12345, false},
		{"not a number", "not-a-number", 0, true},
		{"zero", "0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "test.pid")
			writePID(t, pidPath, tt.content)

			pid, err := NewPIDFile(pidPath).Read()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestPIDFile_Read_NotExists(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))
	_, err := pf.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_Remove(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	writePID(t, pidPath, "12345")

	pf := NewPIDFile(pidPath)
	require.NoError(t, pf.Remove())
	_, err := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))

	// Removing again is not an error
	require.NoError(t, pf.Remove())
}

func TestPIDFile_IsRunning(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"current process", strconv.Itoa(os.Getpid()), true},
		// PID 4194304 is above the maximum PID on typical systems
		{"stale pid", "4194304", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "test.pid")
			writePID(t, pidPath, tt.content)
			assert.Equal(t, tt.want, NewPIDFile(pidPath).IsRunning())
		})
	}

	assert.False(t, NewPIDFile(filepath.Join(t.TempDir(), "none.pid")).IsRunning())
}

func TestPIDFile_Signal(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	writePID(t, pidPath, strconv.Itoa(os.Getpid()))
	require.NoError(t, NewPIDFile(pidPath).Signal(syscall.Signal(0)))

	writePID(t, pidPath, "4194304")
	require.Error(t, NewPIDFile(pidPath).Signal(syscall.Signal(0)))
}

func TestPIDFile_Claim(t *testing.T) {
	t.Run("replaces a stale pid", func(t *testing.T) {
		pidPath := filepath.Join(t.TempDir(), "test.pid")
		writePID(t, pidPath, "4194304")

		pf := NewPIDFile(pidPath)
		require.NoError(t, pf.Claim())
		pid, err := pf.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("replaces garbage", func(t *testing.T) {
		pidPath := filepath.Join(t.TempDir(), "test.pid")
		writePID(t, pidPath, "garbage")
		require.NoError(t, NewPIDFile(pidPath).Claim())
	})

	t.Run("refuses a live process", func(t *testing.T) {
		pidPath := filepath.Join(t.TempDir(), "test.pid")
		writePID(t, pidPath, "1")

		err := NewPIDFile(pidPath).Claim()
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})
}
