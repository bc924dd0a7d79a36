package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotMissingFileReturnsEmptyHash(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "tx1")
	hash, err := s.SnapshotFile(filepath.Join(root, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "", hash)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "hooks", "fmt.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(`{"name":"fmt"}`), 0o644))

	s := NewStore(root, "tx1")
	hash, err := s.SnapshotFile(target)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.NoError(t, os.WriteFile(target, []byte(`corrupted`), 0o644))
	require.NoError(t, s.Restore(target, hash))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"fmt"}`, string(got))
}

func TestRestoreEmptyHashRemovesFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "hooks", "fmt.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(`{}`), 0o644))

	s := NewStore(root, "tx1")
	require.NoError(t, s.Restore(target, ""))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreIsIdempotent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "hooks", "fmt.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(`{"name":"fmt"}`), 0o644))

	s := NewStore(root, "tx1")
	hash, err := s.SnapshotFile(target)
	require.NoError(t, err)

	require.NoError(t, s.Restore(target, hash))
	require.NoError(t, s.Restore(target, hash))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"fmt"}`, string(got))
}

func TestGCRemovesBackupDir(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "hooks", "fmt.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(`{}`), 0o644))

	s := NewStore(root, "tx1")
	_, err := s.SnapshotFile(target)
	require.NoError(t, err)

	require.NoError(t, s.GC())
	_, statErr := os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(statErr))
}
