package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_Load_MissingFileReturnsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing", "token.json"))
	data, err := s.Load()
	require.NoError(t, err)
	require.Len(t, data, 0)
}

func TestStore_Save_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "token.json")
	s := NewStore(path)
	require.NoError(t, s.Save([]byte(`{"access_token":"x"}`)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := s.Load()
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"x"}`, string(data))
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, s.Delete())
	require.NoError(t, s.Save([]byte("{}")))
	require.NoError(t, s.Delete())

	data, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, data)
}
