// Package txn is the transaction orchestrator (spec §4.5, §5, §6): the
// component that turns a Plan into durable, crash-recoverable changes to
// a scope root. Every mutating step is journaled before it takes effect;
// a journal entry with no matching after-fingerprint marks the last thing
// a crashed process was doing, and Recover uses that to decide whether to
// roll back or roll forward.
package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roivaz/pacc/internal/backup"
	"github.com/roivaz/pacc/internal/store"
)

// Orchestrator executes and recovers Plans against one scope root.
type Orchestrator struct {
	scopeRoot  string
	lockBudget time.Duration
}

func NewOrchestrator(scopeRoot string, lockBudget time.Duration) *Orchestrator {
	return &Orchestrator{scopeRoot: scopeRoot, lockBudget: lockBudget}
}

// execState is the orchestrator's working state across one Execute call:
// the scope lock, the backup store, the journal, and the documents carried
// from SnapshotDocument through StageDocumentPatch to CommitDocuments.
type execState struct {
	lock        *ScopeLock
	backupStore *backup.Store
	journal     *Journal
	staged      store.StagedWrite
	preDocs     store.Documents
	committed   bool
}

// Execute runs plan's steps in order, journaling each one (snapshots
// before any mutation, mutating steps once their effect is done). If an
// error occurs before StepCommitDocuments completes, Execute rolls the
// scope back to its pre-transaction state and returns an Aborted result.
// If it occurs after, the documents are already durably committed;
// Execute releases the lock, reports Committed and surfaces the failure
// as a diagnostic instead of undoing work that already landed.
func (o *Orchestrator) Execute(plan *Plan) (TransactionResult, error) {
	if plan.Empty {
		// spec §8 boundary behavior: an empty candidate set still takes and
		// releases the lock, but writes no journal — there is nothing to
		// make crash-recoverable since no document or file is touched.
		lock := NewScopeLock(o.scopeRoot)
		if err := lock.Acquire(o.lockBudget); err != nil {
			return aborted(StepAcquireLock, err.Error()), nil
		}
		if err := lock.Release(); err != nil {
			return aborted(StepReleaseLock, err.Error()), err
		}
		return committed(nil, nil, nil), nil
	}

	st := &execState{
		lock:        NewScopeLock(o.scopeRoot),
		backupStore: backup.NewStore(o.scopeRoot, plan.ID),
		journal:     NewJournal(o.scopeRoot, plan.Scope, plan.ID),
	}

	for i, step := range plan.Steps {
		if err := o.runStep(st, plan, i, step); err != nil {
			if st.committed {
				// Documents already landed; nothing left to roll back.
				_ = st.lock.Release()
				installed, updated, removed := summarizePatch(plan.Patch)
				result := committed(installed, updated, removed)
				result.Diagnostics = []string{fmt.Sprintf("%s: %s", step.Kind, err.Error())}
				return result, nil
			}
			if rerr := o.rollback(st); rerr != nil {
				return aborted(step.Kind, err.Error(), rerr.Error()), rerr
			}
			return aborted(step.Kind, err.Error()), nil
		}
	}

	installed, updated, removed := summarizePatch(plan.Patch)
	if err := st.backupStore.GC(); err != nil {
		return committed(installed, updated, removed), nil
	}
	os.RemoveAll(st.journal.Dir())

	return committed(installed, updated, removed), nil
}

func (o *Orchestrator) runStep(st *execState, plan *Plan, index int, step Step) error {
	switch step.Kind {
	case StepAcquireLock:
		if err := st.lock.Acquire(o.lockBudget); err != nil {
			return err
		}
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepSnapshotDocument:
		docs, err := store.Load(o.scopeRoot)
		if err != nil {
			return fmt.Errorf("snapshot documents: %w", err)
		}
		st.preDocs = docs

		paths := store.DocumentPaths(o.scopeRoot)
		prefsBefore, err := readOptional(paths.Prefs)
		if err != nil {
			return fmt.Errorf("snapshot documents: %w", err)
		}
		stateBefore, err := readOptional(paths.State)
		if err != nil {
			return fmt.Errorf("snapshot documents: %w", err)
		}
		hashesBefore, err := readOptional(paths.Hashes)
		if err != nil {
			return fmt.Errorf("snapshot documents: %w", err)
		}

		entry := JournalEntry{
			StepIndex: index,
			Kind:      step.Kind,
			Reversible: ReversibleAction{
				Kind:         "restoreDocs",
				PrefsBefore:  prefsBefore,
				StateBefore:  stateBefore,
				HashesBefore: hashesBefore,
			},
		}
		if err := st.journal.Append(entry); err != nil {
			return err
		}
		return st.journal.Complete(index, "")

	case StepSnapshotFile:
		abs := filepath.Join(o.scopeRoot, step.RelPath)
		hash, err := st.backupStore.SnapshotFile(abs)
		if err != nil {
			return err
		}
		entry := JournalEntry{
			StepIndex: index,
			Kind:      step.Kind,
			Reversible: ReversibleAction{
				Kind:       "restoreFile",
				RelPath:    abs,
				BackupHash: hash,
			},
		}
		if err := st.journal.Append(entry); err != nil {
			return err
		}
		return st.journal.Complete(index, hash)

	case StepEnsureDirectory:
		abs := filepath.Join(o.scopeRoot, step.RelPath)
		existedBefore := dirExists(abs)
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return err
		}
		reversibleKind := ""
		if !existedBefore {
			reversibleKind = "rmdir"
		}
		entry := JournalEntry{
			StepIndex:  index,
			Kind:       step.Kind,
			Reversible: ReversibleAction{Kind: reversibleKind, RelPath: abs},
		}
		if err := st.journal.Append(entry); err != nil {
			return err
		}
		return st.journal.Complete(index, "")

	case StepCopyFile:
		dest := filepath.Join(o.scopeRoot, step.RelPath)
		if sameHash(dest, step.ExpectedHash) {
			return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})
		}
		if err := copyFileAtomic(step.SourcePath, dest); err != nil {
			return err
		}
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepRemoveFile:
		abs := filepath.Join(o.scopeRoot, step.RelPath)
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepStageDocumentPatch:
		next, err := store.Merge(st.preDocs, plan.Patch, plan.Strategy)
		if err != nil {
			return fmt.Errorf("stage document patch: %w", err)
		}
		staged, err := store.Stage(o.scopeRoot, next)
		if err != nil {
			return err
		}
		st.staged = staged
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepCommitDocuments:
		if err := store.Commit(st.staged); err != nil {
			return err
		}
		st.committed = true
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepRunPostValidation:
		// Records the step in the journal; validation is not re-run here.
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	case StepReleaseLock:
		if err := st.lock.Release(); err != nil {
			return err
		}
		return st.journal.Append(JournalEntry{StepIndex: index, Kind: step.Kind, Completed: true})

	default:
		return fmt.Errorf("txn: unknown step kind %q", step.Kind)
	}
}

func (o *Orchestrator) rollback(st *execState) error {
	if err := replay(o.scopeRoot, st.backupStore, st.journal.Entries); err != nil {
		return err
	}
	if err := st.backupStore.GC(); err != nil {
		return err
	}
	os.RemoveAll(st.journal.Dir())
	return st.lock.Release()
}

// Recover scans scopeRoot for journals left by a prior, unfinished
// transaction and resolves each one: if the journal's entries show
// StepCommitDocuments completed, the transaction already landed and
// recovery rolls forward (just finishes cleanup); otherwise it rolls back
// via the same replay logic Execute uses on a live failure. Spec §4.5
// requires recovery to "re-acquire the lock, and replay reversals" before
// touching anything, so every transaction's cleanup runs under the same
// scope lock a fresh transaction's own AcquireLock step would contend on.
func (o *Orchestrator) Recover() ([]TransactionResult, error) {
	txIDs, err := ListPendingTxIDs(o.scopeRoot)
	if err != nil {
		return nil, err
	}
	var results []TransactionResult
	for _, txID := range txIDs {
		j, err := LoadJournal(o.scopeRoot, txID)
		if err != nil {
			return results, fmt.Errorf("recover %s: load journal: %w", txID, err)
		}
		bs := backup.NewStore(o.scopeRoot, txID)
		lock := NewScopeLock(o.scopeRoot)
		if err := lock.Acquire(o.lockBudget); err != nil {
			return results, fmt.Errorf("recover %s: acquire lock: %w", txID, err)
		}

		if commitDocumentsCompleted(j.Entries) {
			bs.GC()
			os.RemoveAll(j.Dir())
			lock.Release()
			results = append(results, recovered(txID, RecoveryRolledForward))
			continue
		}

		if err := replay(o.scopeRoot, bs, j.Entries); err != nil {
			lock.Release()
			return results, fmt.Errorf("recover %s: replay: %w", txID, err)
		}
		bs.GC()
		os.RemoveAll(j.Dir())
		lock.Release()
		results = append(results, recovered(txID, RecoveryRolledBack))
	}
	return results, nil
}

// readOptional reads path's content, or nil if it does not exist — the
// sentinel a restoreDocs reversal uses to mean "remove on rollback"
// rather than "rewrite to empty content".
func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func commitDocumentsCompleted(entries []JournalEntry) bool {
	for _, e := range entries {
		if e.Kind == StepCommitDocuments && e.Completed {
			return true
		}
	}
	return false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func sameHash(path, expected string) bool {
	if expected == "" {
		return false
	}
	hash, err := fileHash(path)
	return err == nil && hash == expected
}

func summarizePatch(p store.Patch) (installed, updated, removed []string) {
	for name := range p.UpsertHooks {
		installed = append(installed, "hooks/"+name)
	}
	for name := range p.UpsertMcpServers {
		installed = append(installed, "mcpServers/"+name)
	}
	for name := range p.UpsertAgents {
		installed = append(installed, "agents/"+name)
	}
	for name := range p.UpsertCommands {
		installed = append(installed, "commands/"+name)
	}
	removed = append(removed, p.RemoveHooks...)
	removed = append(removed, p.RemoveMcpServers...)
	removed = append(removed, p.RemoveAgents...)
	removed = append(removed, p.RemoveCommands...)
	return installed, updated, removed
}
