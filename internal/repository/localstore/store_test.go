package localstore

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/outfit-studio/internal/errs"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_SaveLoadRemove(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	var got []record
	ok, err := s.Load(SlotProjects, &got)
	require.NoError(t, err)
	require.False(t, ok)

	in := []record{{Name: "a", Count: 1}, {Name: "b", Count: 2}}
	require.NoError(t, s.Save(SlotProjects, in))

	ok, err = s.Load(SlotProjects, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, got)

	info, err := os.Stat(filepath.Join(s.Dir(), "projects.json"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Remove(SlotProjects))
	require.NoError(t, s.Remove(SlotProjects))
	ok, err = s.Load(SlotProjects, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(SlotUsers, []record{{Name: "u", Count: i}}))
	}
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "users.json", entries[0].Name())
}

func TestStore_QuotaExceeded_KeepsPreviousContent(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir(), 64)
	require.NoError(t, err)

	small := record{Name: "ok"}
	require.NoError(t, s.Save(SlotSession, small))

	err = s.Save(SlotSession, record{Name: strings.Repeat("x", 100)})
	require.ErrorIs(t, err, errs.ErrCapacity)

	var got record
	ok, err := s.Load(SlotSession, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, small, got)
}

func TestStore_DiskFullMapsToCapacity(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	s.writeFile = func(path string, _ []byte) error {
		return &fs.PathError{Op: "write", Path: path, Err: syscall.ENOSPC}
	}
	require.ErrorIs(t, s.Save(SlotUsers, []record{}), errs.ErrCapacity)

	s.writeFile = func(path string, _ []byte) error {
		return &fs.PathError{Op: "write", Path: path, Err: syscall.EACCES}
	}
	err = s.Save(SlotUsers, []record{})
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrCapacity)
}

func TestStore_CorruptSlot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := New(dir, 0)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o600))

	var got []record
	_, err = s.Load(SlotUsers, &got)
	require.Error(t, err)
}

func TestStore_RejectsBadSlotNames(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape", "a/b"} {
		require.ErrorIs(t, s.Save(name, 1), errs.ErrValidation, name)
	}
	_, err = New("", 0)
	require.ErrorIs(t, err, errs.ErrValidation)
}
