package fsys_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docstore/pkg/fsys"
)

func TestFault_FailNextIsOneShot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	fault := fsys.NewFault(fsys.NewReal())
	boom := errors.New("boom")
	fault.FailNext(fsys.OpOpen, boom)

	_, err := fault.Open(path)
	require.ErrorIs(t, err, boom)
	assert.True(t, fsys.IsInjected(err))

	f, err := fault.Open(path)
	require.NoError(t, err, "one-shot failure must not repeat")

	t.Cleanup(func() { _ = f.Close() })
}

func TestFault_StickyFailsUntilCleared(t *testing.T) {
	t.Parallel()

	fault := fsys.NewFault(fsys.NewReal())
	boom := errors.New("readonly")
	fault.SetSticky(fsys.OpMkdirAll, boom)

	dir := filepath.Join(t.TempDir(), "sub")

	require.ErrorIs(t, fault.MkdirAll(dir, 0o755), boom)
	require.ErrorIs(t, fault.MkdirAll(dir, 0o755), boom)

	fault.ClearSticky(fsys.OpMkdirAll)
	require.NoError(t, fault.MkdirAll(dir, 0o755))
}

func TestFault_CountsEveryAttempt(t *testing.T) {
	t.Parallel()

	fault := fsys.NewFault(fsys.NewReal())
	fault.FailNext(fsys.OpStat, errors.New("nope"))

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, _ = fault.Stat(path)
	_, _ = fault.Stat(path)

	assert.Equal(t, 2, fault.Count(fsys.OpStat), "failed and successful attempts both count")
}

func TestFault_FileOpsIntercepted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	fault := fsys.NewFault(fsys.NewReal())

	f, err := fault.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)

	boom := errors.New("disk full")
	fault.FailNext(fsys.OpWrite, boom)

	_, err = f.Write([]byte("x"))
	require.ErrorIs(t, err, boom)

	// The next write goes through.
	_, err = f.Write([]byte("y"))
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
	assert.Positive(t, fault.Count(fsys.OpSync))
	assert.Positive(t, fault.Count(fsys.OpClose))
}

func TestFault_RealErrorsPassThroughUnmarked(t *testing.T) {
	t.Parallel()

	fault := fsys.NewFault(fsys.NewReal())

	_, err := fault.Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "real errors keep their identity")
	assert.False(t, fsys.IsInjected(err))
}

func TestReal_ExistsAndAtomicWrite(t *testing.T) {
	t.Parallel()

	real := fsys.NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "value.bin")

	exists, err := real.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, real.WriteFileAtomic(path, []byte("payload")))

	exists, err = real.Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := real.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No temp litter left behind.
	entries, err := real.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "value.bin", entries[0].Name())
}

func TestReal_RenameIsAtomicReplace(t *testing.T) {
	t.Parallel()

	real := fsys.NewReal()
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")

	require.NoError(t, os.WriteFile(oldPath, []byte("from"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("to"), 0o644))

	require.NoError(t, real.Rename(oldPath, newPath))

	data, err := real.ReadFile(newPath)
	require.NoError(t, err)
	assert.Equal(t, "from", string(data))

	exists, err := real.Exists(oldPath)
	require.NoError(t, err)
	assert.False(t, exists)
}
