package txn

// ResultKind discriminates the three shapes a transaction can end in
// (spec §6).
type ResultKind string

const (
	ResultCommitted ResultKind = "Committed"
	ResultAborted   ResultKind = "Aborted"
	ResultRecovered ResultKind = "Recovered"
)

// RecoveryAction names what Recover actually did with a prior, unfinished
// transaction it found on disk.
type RecoveryAction string

const (
	RecoveryRolledBack  RecoveryAction = "RolledBack"
	RecoveryRolledForward RecoveryAction = "RolledForward"
)

// TransactionResult is the single return type for every mutating engine
// operation (spec §6): exactly one of its Kind-selected fields is
// meaningful.
type TransactionResult struct {
	Kind ResultKind

	// Committed
	Installed []string
	Updated   []string
	Removed   []string

	// Aborted (a Committed result also uses Diagnostics when a step after
	// CommitDocuments failed)
	Phase       StepKind
	Reason      string
	Diagnostics []string

	// Recovered
	PriorTxID string
	Action    RecoveryAction
}

func committed(installed, updated, removed []string) TransactionResult {
	return TransactionResult{Kind: ResultCommitted, Installed: installed, Updated: updated, Removed: removed}
}

func aborted(phase StepKind, reason string, diagnostics ...string) TransactionResult {
	return TransactionResult{Kind: ResultAborted, Phase: phase, Reason: reason, Diagnostics: diagnostics}
}

func recovered(priorTxID string, action RecoveryAction) TransactionResult {
	return TransactionResult{Kind: ResultRecovered, PriorTxID: priorTxID, Action: action}
}
