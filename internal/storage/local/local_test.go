package local

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_WriteCopyOpen(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemory()

	require.NoError(t, fsys.MkdirAll(ctx, "/root/a", 0o755))
	require.NoError(t, fsys.WriteFrom(ctx, "/root/a/src.txt", strings.NewReader("hello")))
	require.NoError(t, fsys.Copy(ctx, "/root/a/src.txt", "/root/a/dst.txt"))

	ok, err := fsys.Exists(ctx, "/root/a/src.txt.tmp")
	require.NoError(t, err)
	assert.False(t, ok, "temp file should be renamed away")

	rc, err := fsys.Open(ctx, "/root/a/dst.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFS_RenameRemoveChmod(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemory()
	require.NoError(t, afero.WriteFile(fsys.Afero(), "/root/x.bin", []byte("x"), 0o644))

	require.NoError(t, fsys.Chmod(ctx, "/root/x.bin", 0o600))
	info, err := fsys.Afero().Stat("/root/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().String())

	require.NoError(t, fsys.Rename(ctx, "/root/x.bin", "/root/y.bin"))
	ok, _ := fsys.Exists(ctx, "/root/x.bin")
	assert.False(t, ok)

	require.NoError(t, fsys.Remove(ctx, "/root/y.bin"))
	ok, _ = fsys.Exists(ctx, "/root/y.bin")
	assert.False(t, ok)
}

func TestFS_GlobAndList(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemory()
	for _, name := range []string{"/d/a.jpg", "/d/a.thumb.jpg", "/d/b.png"} {
		require.NoError(t, afero.WriteFile(fsys.Afero(), name, []byte(name), 0o644))
	}
	require.NoError(t, fsys.Afero().MkdirAll("/d/sub", 0o755))

	matches, err := fsys.Glob(ctx, "/d/a.*.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/a.thumb.jpg"}, matches)

	entries, err := fsys.List(ctx, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotEqual(t, "/d/sub", e.Path)
		assert.Equal(t, int64(len(e.Path)), e.Size)
		assert.WithinDuration(t, time.Now(), e.ModTime, time.Minute)
	}

	entries, err = fsys.List(ctx, "/missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFS_OpenMissing(t *testing.T) {
	_, err := NewMemory().Open(context.Background(), "/nope.txt")
	require.ErrorContains(t, err, "file not found: /nope.txt")
}

func TestFS_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fsys := NewMemory()

	_, err := fsys.Exists(ctx, "/a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, fsys.WriteFrom(ctx, "/a", strings.NewReader("a")), context.Canceled)
	assert.ErrorIs(t, fsys.Rename(ctx, "/a", "/b"), context.Canceled)
}
