package content

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return New(t.TempDir(), testLogger())
}

func TestStore_ResolveRejectsEscape(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Resolve("../etc/passwd")
	require.Error(t, err)

	_, err = store.Resolve("..")
	require.Error(t, err)
}

func TestStore_CreateFileWritesBodyAndCreatesParents(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateFile("a/b/c.txt", []byte("hello"), false)
	require.NoError(t, err)

	abs, err := store.Resolve("a/b/c.txt")
	require.NoError(t, err)

	body, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestStore_CreateFileTruncatesExisting(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateFile("f.txt", []byte("0123456789"), false))
	require.NoError(t, store.CreateFile("f.txt", []byte("ab"), true))

	abs, err := store.Resolve("f.txt")
	require.NoError(t, err)

	body, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(body))
}

// Per §4.4/§7 class 5, a write failure is tolerated the same way a missing
// source or pre-existing target is: logged, not returned, so the caller
// still records the change in the change log regardless of whether the
// filesystem write actually succeeded.
func TestStore_CreateFileWriteFailureIsTolerated(t *testing.T) {
	store := newTestStore(t)

	// "blocker" is a file, so MkdirAll("blocker/nested") fails with ENOTDIR.
	require.NoError(t, store.CreateFile("blocker", []byte("x"), false))

	err := store.CreateFile("blocker/nested/f.txt", []byte("y"), false)
	assert.NoError(t, err)
}

func TestStore_OpenFileReturnsSize(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("f.txt", []byte("12345"), false))

	f, size, err := store.OpenFile("f.txt")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(5), size)
}

func TestStore_DeleteFileMissingIsTolerated(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteFile("does-not-exist.txt")
	assert.NoError(t, err)
}

func TestStore_DeleteFileRemovesExisting(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("f.txt", []byte("x"), false))

	require.NoError(t, store.DeleteFile("f.txt"))

	abs, err := store.Resolve("f.txt")
	require.NoError(t, err)
	_, statErr := os.Stat(abs)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_MoveFileRenames(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("old.txt", []byte("x"), false))

	require.NoError(t, store.MoveFile("old.txt", "sub/new.txt"))

	abs, err := store.Resolve("sub/new.txt")
	require.NoError(t, err)
	body, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "x", string(body))
}

func TestStore_MoveFileMissingSourceIsTolerated(t *testing.T) {
	store := newTestStore(t)

	err := store.MoveFile("missing.txt", "dest.txt")
	assert.NoError(t, err)
}

func TestStore_CreateDirectoryMakesTree(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateDirectory("a/b/c"))

	abs, err := store.Resolve("a/b/c")
	require.NoError(t, err)
	info, err := os.Stat(abs)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_CreateDirectoryAlreadyExistsIsTolerated(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateDirectory("a"))

	err := store.CreateDirectory("a")
	assert.NoError(t, err)
}

func TestStore_DeleteDirectoryRemovesRecursively(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("dir/nested/f.txt", []byte("x"), false))

	require.NoError(t, store.DeleteDirectory("dir"))

	abs, err := store.Resolve("dir")
	require.NoError(t, err)
	_, statErr := os.Stat(abs)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_DeleteDirectoryMissingIsTolerated(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteDirectory("missing")
	assert.NoError(t, err)
}

func TestStore_MoveDirectoryRenamesTree(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("src/f.txt", []byte("x"), false))

	require.NoError(t, store.MoveDirectory("src", "dst"))

	abs, err := store.Resolve(filepath.Join("dst", "f.txt"))
	require.NoError(t, err)
	_, err = os.Stat(abs)
	assert.NoError(t, err)
}

func TestStore_StatReturnsSize(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateFile("f.txt", []byte("12345678"), false))

	size, err := store.Stat("f.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}
