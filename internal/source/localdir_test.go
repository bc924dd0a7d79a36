package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roivaz/pacc/internal/kinds"
)

func TestLocalDirScansHookAndAgent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fmt.json"),
		[]byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer.md"),
		[]byte("---\nname: reviewer\ndescription: reviews code\n---\nBody text\n"), 0o644))

	candidates, err := NewLocalDir(dir).Scan()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	byName := map[string]kinds.Candidate{}
	for _, c := range candidates {
		byName[c.LogicalName] = c
	}
	assert.Equal(t, kinds.KindHook, byName["fmt"].Kind)
	assert.Equal(t, kinds.KindAgent, byName["reviewer"].Kind)
	assert.NotEmpty(t, byName["fmt"].ContentHash)
}

func TestLocalDirScansPluginDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"),
		[]byte(`{"name":"bundle","version":"1.0.0","components":["fmt.json"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fmt.json"),
		[]byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))

	candidates, err := NewLocalDir(dir).Scan()
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, kinds.KindPlugin, candidates[0].Kind)
	assert.Equal(t, "bundle", candidates[0].LogicalName)
	require.Len(t, candidates[0].Components, 1)
	assert.Equal(t, kinds.KindHook, candidates[0].Components[0].Kind)
}

func TestContentHashNormalizesLineEndings(t *testing.T) {
	unix := []byte("line1\nline2\n")
	windows := []byte("line1\r\nline2\r\n")
	assert.Equal(t, contentHash(unix), contentHash(windows))
}

func TestContentHashStripsUTF8BOM(t *testing.T) {
	plain := []byte("line1\nline2\n")
	bomPrefixed := append([]byte{0xEF, 0xBB, 0xBF}, plain...)
	assert.Equal(t, contentHash(plain), contentHash(bomPrefixed))
}

func TestLocalDirScanRejectsDuplicateLogicalNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fmt.json"),
		[]byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fmt2.json"),
		[]byte(`{"name":"fmt","eventTypes":["PostToolUse"]}`), 0o644))

	_, err := NewLocalDir(dir).Scan()
	require.Error(t, err)
	var dupErr *DuplicateInSourceError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "fmt", dupErr.LogicalName)
}
