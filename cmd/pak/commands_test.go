package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with the given args and returns its
// combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, content, 0o644))
	}
}

func TestPackListUnpack(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{
		"sub/a.txt": []byte("hello"),
		"b.bin":     {0x00, 0x00, 0x00, 0x00},
	})

	archive := filepath.Join(t.TempDir(), "test.pak")

	out, err := runCommand(t, "pack", archive, src, "--mount", "Dungeons/Content")
	require.NoError(t, err)
	assert.Contains(t, out, "packed 2 entries")

	out, err = runCommand(t, "list", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "mount: Dungeons/Content")
	assert.Contains(t, out, "sub/a.txt")
	assert.Contains(t, out, "b.bin")
	assert.Contains(t, out, "2 entries")

	dest := t.TempDir()
	out, err = runCommand(t, "unpack", archive, dest)
	require.NoError(t, err)
	assert.Contains(t, out, "extracted 2 entries")

	got, err := os.ReadFile(filepath.Join(dest, "sub", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestPackCompressed(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{
		"big.txt": bytes.Repeat([]byte("squeeze "), 10_000),
	})

	archive := filepath.Join(t.TempDir(), "test.pak")
	_, err := runCommand(t, "pack", archive, src, "--compress", "--workers", "2")
	require.NoError(t, err)

	out, err := runCommand(t, "list", archive, "--long")
	require.NoError(t, err)
	assert.Contains(t, out, "zstd")
	assert.Contains(t, out, "big.txt")
}

func TestUnpackSingleEntry(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
	})

	archive := filepath.Join(t.TempDir(), "test.pak")
	_, err := runCommand(t, "pack", archive, src)
	require.NoError(t, err)

	dest := t.TempDir()
	_, err = runCommand(t, "unpack", archive, dest, "--entry", "a.txt")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dest, "a.txt"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dest, "b.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestListNotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pak")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("junk"), 100), 0o644))

	_, err := runCommand(t, "list", path)
	require.Error(t, err)
}

func TestPackMissingSource(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "test.pak")
	_, err := runCommand(t, "pack", archive, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	_, statErr := os.Stat(archive)
	assert.True(t, os.IsNotExist(statErr), "failed pack must not create the archive")
}
