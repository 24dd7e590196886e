package local

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// 70-byte 1x1 PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(Config{RootPath: dir})
	require.NoError(t, err)
	return b, dir
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	missing := filepath.Join(t.TempDir(), "missing")
	_, err = New(Config{RootPath: missing})
	assert.Error(t, err)

	b, err := New(Config{RootPath: missing, CreateDirs: true})
	require.NoError(t, err)
	assert.DirExists(t, missing)
	assert.Equal(t, "local", b.Type())

	file := filepath.Join(t.TempDir(), "f")
	writeFile(t, file, nil)
	_, err = New(Config{RootPath: file})
	assert.Error(t, err)
}

func TestList_RoundTrip(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), bytes.Repeat([]byte("x"), 42))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder1"), 0o755))
	writeFile(t, filepath.Join(dir, ".env"), []byte("PORT=PLACEHOLDER"))

	entries, err := b.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byName := map[string]models.DirEntry{}
	for _, e := range entries {
		assert.NotEmpty(t, e.Name)
		assert.Contains(t, []string{models.TypeFile, models.TypeFolder}, e.Type)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, e.Modified)
		if e.Type == models.TypeFile {
			assert.True(t, e.Size.Known())
		} else {
			assert.Equal(t, models.NoSize, e.Size)
		}
		byName[e.Name] = e
	}

	assert.Equal(t, models.Size(42), byName["a.txt"].Size)
	assert.Equal(t, models.TypeFile, byName["a.txt"].Type)
	assert.Equal(t, models.TypeFolder, byName["folder1"].Type)
	assert.Contains(t, byName, ".env")
}

func TestList_ModifiedIsUTCDate(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("UTC+8", 8*60*60)
	t.Cleanup(func() { time.Local = saved })

	b, dir := newTestBackend(t)
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, []byte("a"))
	mtime := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(file, mtime, mtime))

	entries, err := b.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-01", entries[0].Modified)
}

func TestList_Errors(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))

	_, err := b.List(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.List(ctx, "a.txt")
	assert.ErrorIs(t, err, storage.ErrNotDirectory)

	_, err = b.List(ctx, "../../etc")
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
}

func TestList_SiblingDirectoryUnreachable(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "sandbox")
	evil := filepath.Join(parent, "sandbox-evil")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFile(t, filepath.Join(evil, "secret.txt"), []byte("secret"))

	b, err := New(Config{RootPath: root})
	require.NoError(t, err)

	for _, p := range []string{"../sandbox-evil", "../sandbox-evil/secret.txt", "x/../../sandbox-evil/secret.txt"} {
		_, err := b.List(context.Background(), p)
		assert.ErrorIs(t, err, storage.ErrAccessDenied, p)
		_, err = b.Open(context.Background(), p)
		assert.ErrorIs(t, err, storage.ErrAccessDenied, p)
	}
}

func TestOpen_BinaryFidelity(t *testing.T) {
	b, dir := newTestBackend(t)
	png, err := base64.StdEncoding.DecodeString(pngBase64)
	require.NoError(t, err)
	require.Len(t, png, 70)
	writeFile(t, filepath.Join(dir, "img", "pixel.png"), png)

	c, err := b.Open(context.Background(), "img/pixel.png")
	require.NoError(t, err)
	defer c.Close()

	got, err := io.ReadAll(c.Body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(png, got))
	assert.Equal(t, int64(70), c.Size)
	assert.Equal(t, "pixel.png", c.Name)

	_, ok := c.Seeker()
	assert.True(t, ok)
}

func TestOpen_Dotfile(t *testing.T) {
	b, dir := newTestBackend(t)
	writeFile(t, filepath.Join(dir, ".env"), []byte("PORT=PLACEHOLDER"))

	c, err := b.Open(context.Background(), ".env")
	require.NoError(t, err)
	defer c.Close()

	got, err := io.ReadAll(c.Body)
	require.NoError(t, err)
	assert.Equal(t, "PORT=PLACEHOLDER", string(got))
}

func TestOpen_DirectoryAndMissing(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))

	_, err := b.Open(context.Background(), "docs")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.Open(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.Open(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "tree", "sub", "b.txt"), []byte("b"))

	require.NoError(t, b.Delete(ctx, "a.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))

	require.NoError(t, b.Delete(ctx, "tree"))
	assert.NoDirExists(t, filepath.Join(dir, "tree"))

	assert.ErrorIs(t, b.Delete(ctx, "a.txt"), storage.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, "../outside"), storage.ErrAccessDenied)
}

func TestDelete_RootForbidden(t *testing.T) {
	b, dir := newTestBackend(t)
	for _, p := range []string{"", ".", "/", "a/..", "./"} {
		assert.ErrorIs(t, b.Delete(context.Background(), p), storage.ErrForbidden, p)
	}
	assert.DirExists(t, dir)
}

func TestRename(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))

	require.NoError(t, b.Rename(ctx, "a.txt", "docs/moved.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
	data, err := os.ReadFile(filepath.Join(dir, "docs", "moved.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestRename_Conflict(t *testing.T) {
	b, dir := newTestBackend(t)
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("alpha"))
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("beta"))

	err := b.Rename(context.Background(), "a.txt", "b.txt")
	assert.ErrorIs(t, err, storage.ErrConflict)

	a, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	bb, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(a))
	assert.Equal(t, "beta", string(bb))
}

func TestRename_Errors(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))

	assert.ErrorIs(t, b.Rename(ctx, "missing.txt", "x.txt"), storage.ErrNotFound)
	assert.ErrorIs(t, b.Rename(ctx, "a.txt", "../x.txt"), storage.ErrAccessDenied)
	assert.ErrorIs(t, b.Rename(ctx, "../x.txt", "a.txt"), storage.ErrAccessDenied)
	assert.ErrorIs(t, b.Rename(ctx, "a.txt", "nodir/x.txt"), storage.ErrNotFound)
	assert.ErrorIs(t, b.Rename(ctx, "", "x"), storage.ErrForbidden)
	assert.ErrorIs(t, b.Rename(ctx, "docs", "docs/inner"), storage.ErrForbidden)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestDiskUsage(t *testing.T) {
	b, _ := newTestBackend(t)
	u, err := b.DiskUsage()
	if err != nil {
		assert.ErrorIs(t, err, storage.ErrUnsupported)
		return
	}
	assert.Greater(t, u.TotalBytes, uint64(0))
	assert.LessOrEqual(t, u.AvailBytes, u.TotalBytes)
}

func TestStat(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), []byte("abc"))

	e, err := b.Stat(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", e.Name)
	assert.Equal(t, models.Size(3), e.Size)

	e, err = b.Stat(ctx, "")
	require.NoError(t, err)
	assert.True(t, e.IsFolder())
	assert.Empty(t, e.Name)

	_, err = b.Stat(ctx, "docs/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.Stat(ctx, "../x")
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
}
