package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOnEmptyScopeReturnsEmptyDocuments(t *testing.T) {
	root := t.TempDir()
	docs, err := Load(root)
	require.NoError(t, err)
	assert.Empty(t, docs.Prefs.Hooks)
	assert.Empty(t, docs.Prefs.EnabledPlugins)
}

func TestStageCommitRoundTrip(t *testing.T) {
	root := t.TempDir()
	docs, err := Load(root)
	require.NoError(t, err)

	patch := NewPatch()
	patch.UpsertHooks["fmt"] = json.RawMessage(`{"eventTypes":["PreToolUse"]}`)
	patch.StateUpserts[StateKey{Kind: "hooks", Name: "fmt"}] = StateRecord{
		InstallPath: "hooks/fmt.json", Origin: "local", InstalledAt: "2026-07-29T00:00:00Z",
	}
	patch.HashUpserts[StateKey{Kind: "hooks", Name: "fmt"}] = "deadbeef"

	next, err := Merge(docs, patch, Fail)
	require.NoError(t, err)

	sw, err := Stage(root, next)
	require.NoError(t, err)
	require.NoError(t, Commit(sw))

	reloaded, err := Load(root)
	require.NoError(t, err)
	assert.Contains(t, reloaded.Prefs.Hooks, "fmt")
	assert.Equal(t, "deadbeef", reloaded.Hashes.Hooks["fmt"])
	assert.Equal(t, "hooks/fmt.json", reloaded.State.Hooks["fmt"].InstallPath)

	// Round-trip law: load . commit(stage(load(s), empty_patch)) == load(s).
	emptyPatch := NewPatch()
	same, err := Merge(reloaded, emptyPatch, Fail)
	require.NoError(t, err)
	sw2, err := Stage(root, same)
	require.NoError(t, err)
	require.NoError(t, Commit(sw2))
	reloaded2, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, reloaded, reloaded2)
}

func TestMergeFailStrategyReportsConflict(t *testing.T) {
	current := Documents{Prefs: emptyPrefs(), State: emptyState(), Hashes: emptyHashes()}
	current.Prefs.Hooks["fmt"] = json.RawMessage(`{"eventTypes":["PreToolUse"]}`)

	patch := NewPatch()
	patch.UpsertHooks["fmt"] = json.RawMessage(`{"eventTypes":["PostToolUse"]}`)

	_, err := Merge(current, patch, Fail)
	require.Error(t, err)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestMergeIdenticalHashIsIdempotentNoConflict(t *testing.T) {
	current := Documents{Prefs: emptyPrefs(), State: emptyState(), Hashes: emptyHashes()}
	current.Prefs.Hooks["fmt"] = json.RawMessage(`{"eventTypes":["PreToolUse"]}`)

	patch := NewPatch()
	patch.UpsertHooks["fmt"] = json.RawMessage(`{"eventTypes": ["PreToolUse"]}`) // same value, different spacing

	next, err := Merge(current, patch, Fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventTypes":["PreToolUse"]}`, string(next.Prefs.Hooks["fmt"]))
}

func TestDedupePluginsPreservesOrderAndDrops(t *testing.T) {
	got := dedupePlugins([]string{"a/x", "b/y"}, []string{"b/y", "c/z"}, []string{"a/x"})
	assert.Equal(t, []string{"b/y", "c/z"}, got)
}

func TestAtomicWriteLeavesNoTempOnSuccess(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "preferences.json")
	require.NoError(t, atomicWrite(dest, []byte("{}\n")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "preferences.json", entries[0].Name())
}
