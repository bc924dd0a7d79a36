package txn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roivaz/pacc/internal/backup"
	"github.com/roivaz/pacc/internal/store"
)

func installFmtHookPlan(t *testing.T, scopeRoot, sourcePath string) *Plan {
	t.Helper()
	patch := store.NewPatch()
	patch.UpsertHooks["fmt"] = json.RawMessage(`{"name":"fmt","eventTypes":["PreToolUse"]}`)
	patch.StateUpserts[store.StateKey{Kind: "hooks", Name: "fmt"}] = store.StateRecord{
		InstallPath: filepath.Join(scopeRoot, "hooks", "fmt.json"),
		Origin:      "local",
		InstalledAt: "2026-07-30T00:00:00Z",
	}

	return &Plan{
		ID:        uuid.NewString(),
		Scope:     "project",
		ScopeRoot: scopeRoot,
		Strategy:  store.PreferIncoming,
		Patch:     patch,
		Steps: []Step{
			{Kind: StepAcquireLock},
			{Kind: StepSnapshotDocument},
			{Kind: StepEnsureDirectory, RelPath: "hooks"},
			{Kind: StepSnapshotFile, RelPath: filepath.Join("hooks", "fmt.json")},
			{Kind: StepCopyFile, RelPath: filepath.Join("hooks", "fmt.json"), SourcePath: sourcePath},
			{Kind: StepStageDocumentPatch},
			{Kind: StepCommitDocuments},
			{Kind: StepRunPostValidation},
			{Kind: StepReleaseLock},
		},
	}
}

func TestExecuteCommitsNewHook(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "fmt.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))

	plan := installFmtHookPlan(t, scopeRoot, src)
	orch := NewOrchestrator(scopeRoot, time.Second)

	result, err := orch.Execute(plan)
	require.NoError(t, err)
	require.Equal(t, ResultCommitted, result.Kind)
	assert.Contains(t, result.Installed, "hooks/fmt")

	installed, err := os.ReadFile(filepath.Join(scopeRoot, "hooks", "fmt.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fmt","eventTypes":["PreToolUse"]}`, string(installed))

	docs, err := store.Load(scopeRoot)
	require.NoError(t, err)
	assert.Contains(t, docs.Prefs.Hooks, "fmt")
	assert.Contains(t, docs.State.Hooks, "fmt")

	_, statErr := os.Stat(filepath.Join(scopeRoot, "engine", "journal", plan.ID))
	assert.True(t, os.IsNotExist(statErr), "journal dir should be cleaned up after commit")

	// Lock must be released: a second acquire should succeed immediately.
	lock := NewScopeLock(scopeRoot)
	require.NoError(t, lock.Acquire(0))
	require.NoError(t, lock.Release())
}

func TestExecuteRollsBackBeforeCommit(t *testing.T) {
	scopeRoot := t.TempDir()
	plan := installFmtHookPlan(t, scopeRoot, filepath.Join(t.TempDir(), "missing.json"))

	orch := NewOrchestrator(scopeRoot, time.Second)
	result, err := orch.Execute(plan)
	require.NoError(t, err)
	assert.Equal(t, ResultAborted, result.Kind)
	assert.Equal(t, StepCopyFile, result.Phase)

	_, statErr := os.Stat(filepath.Join(scopeRoot, "hooks", "fmt.json"))
	assert.True(t, os.IsNotExist(statErr))

	docs, err := store.Load(scopeRoot)
	require.NoError(t, err)
	assert.NotContains(t, docs.Prefs.Hooks, "fmt")

	lock := NewScopeLock(scopeRoot)
	require.NoError(t, lock.Acquire(0))
	require.NoError(t, lock.Release())
}

func TestRecoverRollsBackUnfinishedTransaction(t *testing.T) {
	scopeRoot := t.TempDir()
	target := filepath.Join(scopeRoot, "hooks", "fmt.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(`{"name":"fmt"}`), 0o644))

	txID := uuid.NewString()
	// A crashed process's flock is released by the kernel when its file
	// descriptor closes; simulate that by acquiring and releasing rather
	// than holding it across the Recover call below, which re-acquires it
	// itself.
	lock := NewScopeLock(scopeRoot)
	require.NoError(t, lock.Acquire(time.Second))
	require.NoError(t, lock.Release())

	j := NewJournal(scopeRoot, "project", txID)
	bs := backup.NewStore(scopeRoot, txID)
	hash, err := bs.SnapshotFile(target)
	require.NoError(t, err)
	require.NoError(t, j.Append(JournalEntry{
		StepIndex: 0,
		Kind:      StepSnapshotFile,
		Completed: true,
		Reversible: ReversibleAction{
			Kind:       "restoreFile",
			RelPath:    target,
			BackupHash: hash,
		},
	}))

	// Simulate a crash mid-write: corrupt the file without a matching
	// journal entry to mark it done.
	require.NoError(t, os.WriteFile(target, []byte(`corrupted`), 0o644))

	orch := NewOrchestrator(scopeRoot, time.Second)
	results, err := orch.Recover()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultRecovered, results[0].Kind)
	assert.Equal(t, RecoveryRolledBack, results[0].Action)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fmt"}`, string(got))

	_, statErr := os.Stat(filepath.Join(scopeRoot, "engine", "journal", txID))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecoverRestoresAllDocumentsAfterPartialCommit(t *testing.T) {
	scopeRoot := t.TempDir()
	paths := store.DocumentPaths(scopeRoot)
	origPrefs := []byte(`{"hooks":{}}` + "\n")
	origState := []byte(`{"hooks":{}}` + "\n")
	origHashes := []byte(`{"hooks":{}}` + "\n")
	require.NoError(t, os.WriteFile(paths.Prefs, origPrefs, 0o644))
	require.NoError(t, os.WriteFile(paths.State, origState, 0o644))
	require.NoError(t, os.WriteFile(paths.Hashes, origHashes, 0o644))

	txID := uuid.NewString()
	j := NewJournal(scopeRoot, "project", txID)
	require.NoError(t, j.Append(JournalEntry{
		StepIndex: 0,
		Kind:      StepSnapshotDocument,
		Completed: true,
		Reversible: ReversibleAction{
			Kind:         "restoreDocs",
			PrefsBefore:  origPrefs,
			StateBefore:  origState,
			HashesBefore: origHashes,
		},
	}))

	// Simulate a crash between Commit's three sequential renames: prefs
	// and state already landed, hashes did not, and CommitDocuments never
	// got journaled as completed.
	require.NoError(t, os.WriteFile(paths.Prefs, []byte(`{"hooks":{"fmt":{}}}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.State, []byte(`{"hooks":{"fmt":{}}}`+"\n"), 0o644))

	orch := NewOrchestrator(scopeRoot, time.Second)
	results, err := orch.Recover()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, RecoveryRolledBack, results[0].Action)

	gotPrefs, err := os.ReadFile(paths.Prefs)
	require.NoError(t, err)
	assert.Equal(t, origPrefs, gotPrefs)

	gotState, err := os.ReadFile(paths.State)
	require.NoError(t, err)
	assert.Equal(t, origState, gotState)

	gotHashes, err := os.ReadFile(paths.Hashes)
	require.NoError(t, err)
	assert.Equal(t, origHashes, gotHashes)
}

func TestRecoverRollsForwardWhenDocumentsAlreadyCommitted(t *testing.T) {
	scopeRoot := t.TempDir()
	txID := uuid.NewString()

	j := NewJournal(scopeRoot, "project", txID)
	require.NoError(t, j.Append(JournalEntry{StepIndex: 0, Kind: StepCommitDocuments, Completed: true}))

	orch := NewOrchestrator(scopeRoot, time.Second)
	results, err := orch.Recover()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, RecoveryRolledForward, results[0].Action)

	_, statErr := os.Stat(filepath.Join(scopeRoot, "engine", "journal", txID))
	assert.True(t, os.IsNotExist(statErr))
}
