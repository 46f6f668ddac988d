package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

func TestPutThenCat(t *testing.T) {
	// Given: a running daemon
	root, socket := startDaemon(t)

	// When: writing stdin to a file
	_, err := run(t, socket, "hello world\n", "put", "hello.txt")
	require.NoError(t, err)

	// Then: the file exists on disk
	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(data))

	// And: cat streams it back across several chunks
	out, err := run(t, socket, "", "cat", "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestCat_Range(t *testing.T) {
	root, socket := startDaemon(t)
	writeFile(t, filepath.Join(root, "data.txt"), "hello world\n")

	out, err := run(t, socket, "", "cat", "--offset", "6", "--length", "5", "data.txt")

	require.NoError(t, err)
	assert.Equal(t, "world", out)
}

func TestCat_MissingFile(t *testing.T) {
	// Given: a running daemon and no such file
	_, socket := startDaemon(t)

	// When: reading it
	_, err := run(t, socket, "", "cat", "missing.txt")

	// Then: the remote error code survives the stream
	require.Error(t, err)
	assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeFileNotFound), "got %v", err)
}

func TestPut_NoClobber(t *testing.T) {
	root, socket := startDaemon(t)
	writeFile(t, filepath.Join(root, "keep.txt"), "original")

	_, err := run(t, socket, "replacement", "put", "--no-clobber", "keep.txt")

	require.Error(t, err)
	assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeFileExists), "got %v", err)
	data, err := os.ReadFile(filepath.Join(root, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestStat(t *testing.T) {
	// Given: a file on the served root
	root, socket := startDaemon(t)
	writeFile(t, filepath.Join(root, "docs", "a.txt"), "12345")

	// When: stat as text
	out, err := run(t, socket, "", "stat", "docs/a.txt")

	// Then: type, size and resource are printed
	require.NoError(t, err)
	assert.Contains(t, out, "file:///docs/a.txt")
	assert.Contains(t, out, "5 B")

	// When: stat as JSON
	out, err = run(t, socket, "", "stat", "--json", "docs")
	require.NoError(t, err)

	// Then: the wire form is printed
	var st vfs.Stat
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Type.IsDir())
}

func TestLs_SortsEntries(t *testing.T) {
	root, socket := startDaemon(t)
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	require.NoError(t, os.Mkdir(filepath.Join(root, "c"), 0o755))

	out, err := run(t, socket, "", "ls")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "a.txt"))
	assert.True(t, strings.HasSuffix(lines[1], "b.txt"))
	assert.True(t, strings.HasSuffix(lines[2], "c/"))
}

func TestMkdirCpMvRm(t *testing.T) {
	// Given: a running daemon with one file
	root, socket := startDaemon(t)
	writeFile(t, filepath.Join(root, "src.txt"), "payload")

	// When: creating a directory
	_, err := run(t, socket, "", "mkdir", "dir")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "dir"))

	// When: copying the file into it
	_, err = run(t, socket, "", "cp", "src.txt", "dir/copy.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "dir", "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// When: moving onto an existing file without --force
	_, err = run(t, socket, "", "mv", "src.txt", "dir/copy.txt")

	// Then: the move is refused
	require.Error(t, err)
	assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeFileExists), "got %v", err)

	// When: moving with --force
	_, err = run(t, socket, "", "mv", "-f", "src.txt", "dir/copy.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "src.txt"))

	// When: deleting the directory without -r
	_, err = run(t, socket, "", "rm", "dir")

	// Then: it fails and the directory stays
	require.Error(t, err)
	assert.DirExists(t, filepath.Join(root, "dir"))

	// When: deleting recursively
	_, err = run(t, socket, "", "rm", "-r", "dir")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "dir"))
}

func TestFileCommands_DaemonUnavailable(t *testing.T) {
	// Given: nothing listens on the socket
	isolate(t)
	socket, _ := uniquePaths(t)

	// When: running a file command
	_, err := run(t, socket, "", "stat", "a.txt")

	// Then: the transport error is reported
	require.Error(t, err)
	assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeUnavailable), "got %v", err)
}
