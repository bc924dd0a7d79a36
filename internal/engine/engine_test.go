package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/source"
	"github.com/roivaz/pacc/internal/store"
	"github.com/roivaz/pacc/internal/txn"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInstallThenListRoundTrip(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "fmt.json"),
		[]byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "reviewer.md"),
		[]byte("---\nname: reviewer\ndescription: reviews diffs\n---\nBody\n"), 0o644))

	candidates, err := source.NewLocalDir(srcDir).Scan()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	e := New(scopeRoot, kinds.ScopeProject, false, false, time.Second).
		WithClock(fixedClock(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)))

	result, err := e.Install(candidates, store.PreferIncoming)
	require.NoError(t, err)
	require.Equal(t, txn.ResultCommitted, result.Kind)

	records, err := e.List()
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]kinds.InstalledRecord{}
	for _, r := range records {
		byName[r.LogicalName] = r
	}
	assert.Equal(t, kinds.KindHook, byName["fmt"].Kind)
	assert.Equal(t, kinds.KindAgent, byName["reviewer"].Kind)
	assert.NotEmpty(t, byName["reviewer"].InstallPath)

	installed, err := os.ReadFile(filepath.Join(scopeRoot, "agents", "reviewer.md"))
	require.NoError(t, err)
	assert.Contains(t, string(installed), "reviews diffs")
}

func TestInstallRejectsInvalidCandidateWithoutForce(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "broken.md"), []byte("no front matter here\n"), 0o644))
	// Force structural detection toward Agent by hand-building the candidate,
	// since LocalDir would classify undecorated Markdown as a Command (which
	// tolerates missing metadata) rather than an Agent.
	candidate := kinds.Candidate{
		SourcePath:  filepath.Join(srcDir, "broken.md"),
		Kind:        kinds.KindAgent,
		LogicalName: "broken",
		Body:        []byte("no front matter here\n"),
	}

	e := New(scopeRoot, kinds.ScopeProject, false, false, time.Second)
	result, err := e.Install([]kinds.Candidate{candidate}, store.PreferIncoming)
	require.NoError(t, err)
	assert.Equal(t, txn.ResultAborted, result.Kind)
	assert.NotEmpty(t, result.Diagnostics)

	_, statErr := os.Stat(filepath.Join(scopeRoot, "agents", "broken.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstallRejectsConflictingContentHashWithoutForce(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	hookPath := filepath.Join(srcDir, "fmt.json")
	require.NoError(t, os.WriteFile(hookPath, []byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))

	e := New(scopeRoot, kinds.ScopeProject, false, false, time.Second)
	candidates, err := source.NewLocalDir(srcDir).Scan()
	require.NoError(t, err)
	result, err := e.Install(candidates, store.PreferIncoming)
	require.NoError(t, err)
	require.Equal(t, txn.ResultCommitted, result.Kind)

	require.NoError(t, os.WriteFile(hookPath, []byte(`{"name":"fmt","eventTypes":["PostToolUse"]}`), 0o644))
	conflicting, err := source.NewLocalDir(srcDir).Scan()
	require.NoError(t, err)

	result, err = e.Install(conflicting, store.PreferIncoming)
	require.NoError(t, err)
	assert.Equal(t, txn.ResultAborted, result.Kind)
	require.NotEmpty(t, result.Diagnostics)
	assert.Contains(t, result.Diagnostics[0], "CONFLICT_EXISTS")

	docs, err := store.Load(scopeRoot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fmt","eventTypes":["PreToolUse"]}`, string(docs.Prefs.Hooks["fmt"]))

	forced := New(scopeRoot, kinds.ScopeProject, false, true, time.Second)
	result, err = forced.Install(conflicting, store.PreferIncoming)
	require.NoError(t, err)
	require.Equal(t, txn.ResultCommitted, result.Kind)

	docs, err = store.Load(scopeRoot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fmt","eventTypes":["PostToolUse"]}`, string(docs.Prefs.Hooks["fmt"]))
}

func TestInstallIsIdempotentOnIdenticalHash(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "fmt.json"),
		[]byte(`{"name":"fmt","eventTypes":["PreToolUse"]}`), 0o644))

	e := New(scopeRoot, kinds.ScopeProject, false, false, time.Second)
	candidates, err := source.NewLocalDir(srcDir).Scan()
	require.NoError(t, err)

	_, err = e.Install(candidates, store.PreferIncoming)
	require.NoError(t, err)

	result, err := e.Install(candidates, store.PreferIncoming)
	require.NoError(t, err)
	assert.Equal(t, txn.ResultCommitted, result.Kind)
}

func TestRemoveDeletesFileAndDocumentEntry(t *testing.T) {
	scopeRoot := t.TempDir()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "reviewer.md"),
		[]byte("---\nname: reviewer\ndescription: reviews diffs\n---\nBody\n"), 0o644))
	candidates, err := source.NewLocalDir(srcDir).Scan()
	require.NoError(t, err)

	e := New(scopeRoot, kinds.ScopeProject, false, false, time.Second)
	_, err = e.Install(candidates, store.PreferIncoming)
	require.NoError(t, err)

	result, err := e.Remove([]kinds.Key{{Kind: kinds.KindAgent, LogicalName: "reviewer"}})
	require.NoError(t, err)
	require.Equal(t, txn.ResultCommitted, result.Kind)

	records, err := e.List()
	require.NoError(t, err)
	assert.Len(t, records, 0)

	_, statErr := os.Stat(filepath.Join(scopeRoot, "agents", "reviewer.md"))
	assert.True(t, os.IsNotExist(statErr))
}
