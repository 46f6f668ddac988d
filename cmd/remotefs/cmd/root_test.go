package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

func TestRootCmd_HasCommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// Then: every command is registered
	for _, name := range []string{
		"daemon", "stat", "ls", "cat", "put", "rm", "mv", "cp", "mkdir", "watch", "config", "version",
	} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	debug := root.PersistentFlags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)

	socket := root.PersistentFlags().Lookup("socket")
	require.NotNil(t, socket)
	assert.Equal(t, "", socket.DefValue)
}

func TestResourceArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want vfs.URI
	}{
		{"relative path", "docs/a.txt", vfs.URI{Scheme: vfs.SchemeFile, Path: "/docs/a.txt"}},
		{"absolute path", "/docs/a.txt", vfs.URI{Scheme: vfs.SchemeFile, Path: "/docs/a.txt"}},
		{"dot segments cannot escape", "../../etc/passwd", vfs.URI{Scheme: vfs.SchemeFile, Path: "/etc/passwd"}},
		{"root", ".", vfs.URI{Scheme: vfs.SchemeFile, Path: "/"}},
		{"uri", "file:///srv/x", vfs.URI{Scheme: vfs.SchemeFile, Path: "/srv/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resourceArg(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resourceArg("")
	assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeInvalidInput))
}

func TestPrintError(t *testing.T) {
	// Given: a file system error
	buf := &bytes.Buffer{}

	// When: printing it
	printError(buf, fserrors.FileNotFound("/missing", nil))

	// Then: its code is shown
	assert.Contains(t, buf.String(), fserrors.ErrCodeFileNotFound)

	// When: printing a plain error
	buf.Reset()
	printError(buf, errors.New("unknown flag: --nope"))

	// Then: it is shown as is
	assert.Equal(t, "Error: unknown flag: --nope\n", buf.String())
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "", "frobnicate")
	assert.Error(t, err)
}
