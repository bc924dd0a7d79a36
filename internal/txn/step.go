package txn

import "github.com/roivaz/pacc/internal/store"

// StepKind enumerates the ten step kinds from spec §4.5.
type StepKind string

const (
	StepAcquireLock        StepKind = "AcquireLock"
	StepSnapshotDocument   StepKind = "SnapshotDocument"
	StepSnapshotFile       StepKind = "SnapshotFile"
	StepEnsureDirectory    StepKind = "EnsureDirectory"
	StepCopyFile           StepKind = "CopyFile"
	StepRemoveFile         StepKind = "RemoveFile"
	StepStageDocumentPatch StepKind = "StageDocumentPatch"
	StepCommitDocuments    StepKind = "CommitDocuments"
	StepRunPostValidation  StepKind = "RunPostValidation"
	StepReleaseLock        StepKind = "ReleaseLock"
)

// Step is one entry in a Plan. Only the fields relevant to Kind are set;
// this mirrors a tagged union without needing Go generics or reflection
// to (de)serialize it into the journal.
type Step struct {
	Kind StepKind `json:"kind"`

	// RelPath is scope-root-relative: EnsureDirectory's directory,
	// RemoveFile/SnapshotFile/CopyFile's destination.
	RelPath string `json:"relPath,omitempty"`

	// SourcePath is CopyFile's already-canonicalized source (outside the
	// scope root, typically under a source adapter's staging directory).
	SourcePath string `json:"sourcePath,omitempty"`

	// ExpectedHash is CopyFile's expected post-copy content hash; if the
	// destination already has this hash, the copy is skipped (spec §4.5).
	ExpectedHash string `json:"expectedHash,omitempty"`
}

// Plan is the ordered, finite sequence of Steps the orchestrator will
// execute, plus the data a StageDocumentPatch/CommitDocuments pair needs.
type Plan struct {
	ID        string
	Scope     string
	ScopeRoot string
	Steps     []Step
	Patch     store.Patch
	Strategy  store.Strategy

	// Empty reports the boundary case from spec §8: an empty candidate
	// set still takes/releases the lock but writes no journal.
	Empty bool
}
