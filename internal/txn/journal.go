package txn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roivaz/pacc/internal/backup"
	"github.com/roivaz/pacc/internal/store"
)

// ReversibleAction is the stored reversal for one JournalEntry. Kind
// selects which field(s) apply. For "restoreDocs" the pre-image bytes of
// all three structured-config documents are captured here directly
// rather than in the backup store — they are small and bounded, unlike
// an arbitrary managed file. A nil slice means the document did not
// exist before the transaction (restore means removing it); this
// matters because Commit performs three sequential atomic renames
// (spec §4.5), and a crash between them must still be able to put every
// document back to its pre-transaction bytes, not just the ones that
// were never renamed.
type ReversibleAction struct {
	Kind         string `json:"kind"` // restoreFile | removeFile | rmdir | restoreDocs
	RelPath      string `json:"relPath,omitempty"`
	BackupHash   string `json:"backupHash,omitempty"`
	PrefsBefore  []byte `json:"prefsBefore,omitempty"`
	StateBefore  []byte `json:"stateBefore,omitempty"`
	HashesBefore []byte `json:"hashesBefore,omitempty"`
}

// JournalEntry records one step's before/after fingerprints and its
// reversal (spec §3, §4.4).
type JournalEntry struct {
	StepIndex         int              `json:"stepIndex"`
	Kind              StepKind         `json:"kind"`
	BeforeFingerprint string           `json:"beforeFingerprint,omitempty"`
	AfterFingerprint  string           `json:"afterFingerprint,omitempty"`
	Reversible        ReversibleAction `json:"reversibleAction"`
	Completed         bool             `json:"completed"`
}

// Journal is the durable, append-as-you-go log for one transaction. It is
// flushed to disk after every entry append/update, not just at the end.
type Journal struct {
	TxID    string         `json:"txId"`
	Scope   string         `json:"scope"`
	Entries []JournalEntry `json:"entries"`

	dir string
}

func journalDir(scopeRoot, txID string) string {
	return filepath.Join(scopeRoot, "engine", "journal", txID)
}

func journalPath(scopeRoot, txID string) string {
	return filepath.Join(journalDir(scopeRoot, txID), "journal.json")
}

// NewJournal creates a fresh, empty Journal for a transaction.
func NewJournal(scopeRoot, scope, txID string) *Journal {
	return &Journal{TxID: txID, Scope: scope, dir: journalDir(scopeRoot, txID)}
}

// Append adds entry and flushes the whole journal to disk.
func (j *Journal) Append(entry JournalEntry) error {
	j.Entries = append(j.Entries, entry)
	return j.flush()
}

// Complete marks the most recently appended entry for stepIndex completed
// (with its after-fingerprint) and flushes.
func (j *Journal) Complete(stepIndex int, afterFingerprint string) error {
	for i := range j.Entries {
		if j.Entries[i].StepIndex == stepIndex {
			j.Entries[i].Completed = true
			j.Entries[i].AfterFingerprint = afterFingerprint
		}
	}
	return j.flush()
}

func (j *Journal) flush() error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("txn: mkdir journal dir: %w", err)
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("txn: marshal journal: %w", err)
	}
	tmp := filepath.Join(j.dir, "journal.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("txn: write journal: %w", err)
	}
	return os.Rename(tmp, filepath.Join(j.dir, "journal.json"))
}

// Dir exposes the journal's directory for GC after commit/recovery.
func (j *Journal) Dir() string { return j.dir }

// LoadJournal reads a previously written journal from scopeRoot/txID, if
// present.
func LoadJournal(scopeRoot, txID string) (*Journal, error) {
	path := journalPath(scopeRoot, txID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("txn: parse journal %s: %w", path, err)
	}
	j.dir = journalDir(scopeRoot, txID)
	return &j, nil
}

// ListPendingTxIDs returns transaction IDs with an on-disk journal under
// scopeRoot/engine/journal, in directory listing order (sorted by name,
// which for random transaction IDs does not reflect age).
func ListPendingTxIDs(scopeRoot string) ([]string, error) {
	base := filepath.Join(scopeRoot, "engine", "journal")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// replay walks entries in reverse, applying each completed entry's
// reversal. File-backed reversals go through the backup store (idempotent:
// backup.Restore tolerates being called on an already-restored target);
// restoreDocs rewrites the structured-config documents from the pre-image
// bytes captured at SnapshotDocument time, since CommitDocuments' three
// sequential renames (spec §4.5) mean a crash partway through can leave
// one or two documents already on their post-transaction bytes.
func replay(scopeRoot string, store_ *backup.Store, entries []JournalEntry) error {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.Completed {
			continue
		}
		switch e.Reversible.Kind {
		case "restoreFile":
			if err := store_.Restore(e.Reversible.RelPath, e.Reversible.BackupHash); err != nil {
				return fmt.Errorf("txn: replay restoreFile %s: %w", e.Reversible.RelPath, err)
			}
		case "removeFile":
			if err := os.Remove(e.Reversible.RelPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("txn: replay removeFile %s: %w", e.Reversible.RelPath, err)
			}
		case "rmdir":
			if err := os.Remove(e.Reversible.RelPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("txn: replay rmdir %s: %w", e.Reversible.RelPath, err)
			}
		case "restoreDocs":
			if err := restoreDocuments(scopeRoot, e.Reversible); err != nil {
				return fmt.Errorf("txn: replay restoreDocs: %w", err)
			}
		}
	}
	return nil
}

// restoreDocuments rewrites each of the three structured-config documents
// to its captured pre-image, or removes it if it did not exist before the
// transaction.
func restoreDocuments(scopeRoot string, action ReversibleAction) error {
	paths := store.DocumentPaths(scopeRoot)
	if err := restoreDocBytes(paths.Prefs, action.PrefsBefore); err != nil {
		return err
	}
	if err := restoreDocBytes(paths.State, action.StateBefore); err != nil {
		return err
	}
	if err := restoreDocBytes(paths.Hashes, action.HashesBefore); err != nil {
		return err
	}
	return nil
}

func restoreDocBytes(path string, before []byte) error {
	if before == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	return writeBytesAtomic(path, before)
}
