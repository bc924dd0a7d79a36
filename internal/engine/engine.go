// Package engine is the top-level facade (spec §4, §6): it wires the
// path-safety kernel, the validation pipeline, the structured-config
// store and the transaction orchestrator together behind five operations
// — Install, Remove, Update, List, Sync. The four mutating ones each return
// a single txn.TransactionResult; List returns the installed records.
package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/logging"
	"github.com/roivaz/pacc/internal/pathsafe"
	"github.com/roivaz/pacc/internal/source"
	"github.com/roivaz/pacc/internal/store"
	"github.com/roivaz/pacc/internal/txn"
	"github.com/roivaz/pacc/internal/validate"
)

// Engine binds every component to one scope root.
type Engine struct {
	ScopeRoot  string
	Scope      kinds.Scope
	Strict     bool
	Force      bool
	LockBudget time.Duration
	Log        logging.Logger

	now func() time.Time
}

// New constructs an Engine for scopeRoot. now defaults to time.Now; tests
// may override it via WithClock.
func New(scopeRoot string, scope kinds.Scope, strict, force bool, lockBudget time.Duration) *Engine {
	log := logging.New(logging.DefaultLogger("info")).WithName("engine").WithValues("scope", string(scope), "scopeRoot", scopeRoot)
	return &Engine{ScopeRoot: scopeRoot, Scope: scope, Strict: strict, Force: force, LockBudget: lockBudget, Log: log, now: time.Now}
}

// WithClock overrides the Engine's notion of "now" (tests only).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

// ValidateCandidates runs the validation pipeline over a flattened
// candidate set (plugins' components included) and reports whether, under
// Strict, every report is OK.
func (e *Engine) ValidateCandidates(candidates []kinds.Candidate) (map[string]kinds.ValidationReport, bool) {
	pipeline := validate.NewPipeline(e.Strict)
	return pipeline.ValidateAll(flatten(candidates))
}

func flatten(candidates []kinds.Candidate) []kinds.Candidate {
	out := make([]kinds.Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c)
		if c.Kind == kinds.KindPlugin {
			out = append(out, flatten(c.Components)...)
		}
	}
	return out
}

// Install validates candidates, builds a Plan and executes it. If any
// candidate fails validation and Force is not set, Install aborts before
// ever touching the scope lock. If any candidate would overwrite an
// existing Installed Record with a different content_hash and Force is
// not set, Install aborts with CONFLICT_EXISTS before any snapshot is
// taken (spec §4.5's conflict policy).
func (e *Engine) Install(candidates []kinds.Candidate, strategy store.Strategy) (txn.TransactionResult, error) {
	return e.install(candidates, strategy, e.Force)
}

// Update reinstalls candidates regardless of whether their content_hash
// differs from what is already on record — overwriting on purpose is the
// whole point of "update" as opposed to "install", so the hash-conflict
// check that guards Install is always satisfied here; validation and
// Force still gate the usual way.
func (e *Engine) Update(candidates []kinds.Candidate) (txn.TransactionResult, error) {
	return e.install(candidates, store.PreferIncoming, true)
}

func (e *Engine) install(candidates []kinds.Candidate, strategy store.Strategy, allowConflict bool) (txn.TransactionResult, error) {
	e.Log.Info("install requested", "candidates", len(candidates))
	reports, ok := e.ValidateCandidates(candidates)
	if !ok && !e.Force {
		e.Log.Info("install rejected: validation failed")
		return abortedFromReports(reports), nil
	}

	docs, err := store.Load(e.ScopeRoot)
	if err != nil {
		return txn.TransactionResult{}, err
	}
	if diagnostics := detectConflicts(docs, candidates); len(diagnostics) > 0 && !allowConflict {
		e.Log.Info("install rejected: conflict exists", "conflicts", len(diagnostics))
		return txn.TransactionResult{
			Kind:        txn.ResultAborted,
			Reason:      "content hash conflict",
			Diagnostics: diagnostics,
		}, nil
	}

	plan, err := e.buildInstallPlan(candidates, strategy)
	if err != nil {
		return txn.TransactionResult{}, err
	}
	orch := txn.NewOrchestrator(e.ScopeRoot, e.LockBudget)
	result, err := orch.Execute(plan)
	if err == nil {
		e.logResult("install", result)
	}
	return result, err
}

// detectConflicts compares each non-plugin candidate's content_hash
// against the hash already on record for the same Kind/logical_name.
// Identical hashes (including "not installed yet") are not conflicts —
// only a mismatch is (spec §4.5, §8 boundary behavior).
func detectConflicts(docs store.Documents, candidates []kinds.Candidate) []string {
	var diagnostics []string
	for _, c := range flatten(candidates) {
		if c.Kind == kinds.KindPlugin {
			continue
		}
		existing, ok := existingHashFor(docs, c.Kind, c.LogicalName)
		if !ok || existing == c.ContentHash {
			continue
		}
		diagnostics = append(diagnostics, fmt.Sprintf(
			"%s/%s: CONFLICT_EXISTS: existing content_hash %s, incoming %s",
			c.Kind, c.LogicalName, existing, c.ContentHash))
	}
	return diagnostics
}

func existingHashFor(docs store.Documents, kind kinds.Kind, name string) (string, bool) {
	var m map[string]string
	switch kind {
	case kinds.KindHook:
		m = docs.Hashes.Hooks
	case kinds.KindMcpServer:
		m = docs.Hashes.McpServers
	case kinds.KindAgent:
		m = docs.Hashes.Agents
	case kinds.KindCommand:
		m = docs.Hashes.Commands
	default:
		return "", false
	}
	h, ok := m[name]
	return h, ok
}

func (e *Engine) logResult(op string, result txn.TransactionResult) {
	switch result.Kind {
	case txn.ResultCommitted:
		e.Log.Info(op+" committed", "installed", len(result.Installed), "updated", len(result.Updated), "removed", len(result.Removed))
	case txn.ResultAborted:
		e.Log.Info(op+" aborted", "phase", result.Phase, "reason", result.Reason)
	}
}

// Remove deletes the named InstalledRecords from this scope.
func (e *Engine) Remove(keys []kinds.Key) (txn.TransactionResult, error) {
	e.Log.Info("remove requested", "keys", len(keys))
	plan, err := e.buildRemovePlan(keys)
	if err != nil {
		return txn.TransactionResult{}, err
	}
	orch := txn.NewOrchestrator(e.ScopeRoot, e.LockBudget)
	result, err := orch.Execute(plan)
	if err == nil {
		e.logResult("remove", result)
	}
	return result, err
}

// List returns every InstalledRecord currently on record in this scope.
func (e *Engine) List() ([]kinds.InstalledRecord, error) {
	docs, err := store.Load(e.ScopeRoot)
	if err != nil {
		return nil, err
	}
	var out []kinds.InstalledRecord
	appendKind := func(kind kinds.Kind, records map[string]store.StateRecord, hashes map[string]string) {
		for name, rec := range records {
			out = append(out, kinds.InstalledRecord{
				Kind:        kind,
				LogicalName: name,
				Scope:       e.Scope,
				InstallPath: rec.InstallPath,
				Origin:      kinds.Origin(rec.Origin),
				OriginRef:   rec.OriginRef,
				ContentHash: hashes[name],
				InstalledAt: rec.InstalledAt,
				Version:     rec.Version,
			})
		}
	}
	appendKind(kinds.KindHook, docs.State.Hooks, docs.Hashes.Hooks)
	appendKind(kinds.KindMcpServer, docs.State.McpServers, docs.Hashes.McpServers)
	appendKind(kinds.KindAgent, docs.State.Agents, docs.Hashes.Agents)
	appendKind(kinds.KindCommand, docs.State.Commands, docs.Hashes.Commands)
	return out, nil
}

// Sync resolves a team-sync document and installs every entry it names,
// using PreferIncoming and always overwriting differing content so the
// checked-in document is authoritative for the scope (spec's supplemented
// team-sync feature) — the same overwrite-on-purpose semantics as Update.
func (e *Engine) Sync(doc source.SyncDoc) (txn.TransactionResult, error) {
	candidates, err := doc.Resolve()
	if err != nil {
		return txn.TransactionResult{}, err
	}
	return e.install(candidates, store.PreferIncoming, true)
}

// Recover runs crash recovery for this scope root before any new
// transaction starts (spec §6's Recovered result).
func (e *Engine) Recover() ([]txn.TransactionResult, error) {
	orch := txn.NewOrchestrator(e.ScopeRoot, e.LockBudget)
	return orch.Recover()
}

func abortedFromReports(reports map[string]kinds.ValidationReport) txn.TransactionResult {
	var diagnostics []string
	for path, report := range reports {
		for _, issue := range report.Errors {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %s: %s", path, issue.Code, issue.Message))
		}
	}
	return txn.TransactionResult{
		Kind:        txn.ResultAborted,
		Reason:      "validation failed",
		Diagnostics: diagnostics,
	}
}

func (e *Engine) buildInstallPlan(candidates []kinds.Candidate, strategy store.Strategy) (*txn.Plan, error) {
	patch := store.NewPatch()
	var steps []txn.Step

	for _, c := range flatten(candidates) {
		if c.Kind == kinds.KindPlugin {
			continue // plugins carry no document entry of their own; see EnabledPluginsAdd below
		}
		if err := e.addCandidateToPatch(&patch, &steps, c); err != nil {
			return nil, err
		}
	}
	for _, c := range candidates {
		if c.Kind == kinds.KindPlugin {
			patch.EnabledPluginsAdd = append(patch.EnabledPluginsAdd, c.LogicalName)
		}
	}

	return e.assemblePlan(patch, steps, strategy), nil
}

func (e *Engine) addCandidateToPatch(patch *store.Patch, steps *[]txn.Step, c kinds.Candidate) error {
	key := store.StateKey{Kind: string(c.Kind), Name: c.LogicalName}
	installPath := ""

	switch c.Kind {
	case kinds.KindHook:
		patch.UpsertHooks[c.LogicalName] = json.RawMessage(c.Body)
	case kinds.KindMcpServer:
		patch.UpsertMcpServers[c.LogicalName] = json.RawMessage(c.Body)
	case kinds.KindAgent, kinds.KindCommand:
		relPath := filepath.Join(string(c.Kind), c.LogicalName+fileExtFor(c.Kind))
		if _, err := pathsafe.ScopedJoin(e.ScopeRoot, string(c.Kind), c.LogicalName+fileExtFor(c.Kind)); err != nil {
			return fmt.Errorf("engine: install path for %s/%s: %w", c.Kind, c.LogicalName, err)
		}
		installPath = filepath.ToSlash(relPath)
		doc, err := json.Marshal(map[string]any{"path": installPath})
		if err != nil {
			return err
		}
		if c.Kind == kinds.KindAgent {
			patch.UpsertAgents[c.LogicalName] = doc
		} else {
			patch.UpsertCommands[c.LogicalName] = doc
		}
		*steps = append(*steps,
			txn.Step{Kind: txn.StepEnsureDirectory, RelPath: filepath.Join(string(c.Kind))},
			txn.Step{Kind: txn.StepSnapshotFile, RelPath: relPath},
			txn.Step{Kind: txn.StepCopyFile, RelPath: relPath, SourcePath: c.SourcePath, ExpectedHash: c.ContentHash},
		)
	default:
		return fmt.Errorf("engine: cannot install candidate of kind %q directly", c.Kind)
	}

	patch.StateUpserts[key] = store.StateRecord{
		InstallPath: installPath,
		Origin:      originFor(c),
		OriginRef:   originRefFor(c),
		InstalledAt: e.clock().UTC().Format(time.RFC3339),
		Version:     c.DeclaredVersion,
	}
	patch.HashUpserts[key] = c.ContentHash
	return nil
}

func fileExtFor(k kinds.Kind) string {
	if k == kinds.KindAgent || k == kinds.KindCommand {
		return ".md"
	}
	return ".json"
}

func originFor(c kinds.Candidate) string {
	if ref, ok := c.Metadata["originRef"]; ok {
		if _, isStr := ref.(string); isStr {
			return string(kinds.OriginGit)
		}
	}
	return string(kinds.OriginLocal)
}

func originRefFor(c kinds.Candidate) string {
	if ref, ok := c.Metadata["originRef"].(string); ok {
		return ref
	}
	return ""
}

func (e *Engine) buildRemovePlan(keys []kinds.Key) (*txn.Plan, error) {
	docs, err := store.Load(e.ScopeRoot)
	if err != nil {
		return nil, err
	}
	patch := store.NewPatch()
	var steps []txn.Step

	for _, k := range keys {
		stateKey := store.StateKey{Kind: string(k.Kind), Name: k.LogicalName}
		patch.StateRemoves = append(patch.StateRemoves, stateKey)
		switch k.Kind {
		case kinds.KindHook:
			patch.RemoveHooks = append(patch.RemoveHooks, k.LogicalName)
		case kinds.KindMcpServer:
			patch.RemoveMcpServers = append(patch.RemoveMcpServers, k.LogicalName)
		case kinds.KindAgent, kinds.KindCommand:
			if k.Kind == kinds.KindAgent {
				patch.RemoveAgents = append(patch.RemoveAgents, k.LogicalName)
			} else {
				patch.RemoveCommands = append(patch.RemoveCommands, k.LogicalName)
			}
			rec := stateRecordFor(docs, k)
			if rec.InstallPath != "" {
				abs, err := pathsafe.ValidateInstallPath(e.ScopeRoot, rec.InstallPath)
				if err != nil {
					return nil, fmt.Errorf("engine: remove %s/%s: %w", k.Kind, k.LogicalName, err)
				}
				rel, err := pathsafe.RelativeWithin(e.ScopeRoot, abs)
				if err != nil {
					return nil, fmt.Errorf("engine: remove %s/%s: %w", k.Kind, k.LogicalName, err)
				}
				steps = append(steps,
					txn.Step{Kind: txn.StepSnapshotFile, RelPath: rel},
					txn.Step{Kind: txn.StepRemoveFile, RelPath: rel},
				)
			}
		}
	}

	return e.assemblePlan(patch, steps, store.PreferIncoming), nil
}

func stateRecordFor(docs store.Documents, k kinds.Key) store.StateRecord {
	switch k.Kind {
	case kinds.KindHook:
		return docs.State.Hooks[k.LogicalName]
	case kinds.KindMcpServer:
		return docs.State.McpServers[k.LogicalName]
	case kinds.KindAgent:
		return docs.State.Agents[k.LogicalName]
	case kinds.KindCommand:
		return docs.State.Commands[k.LogicalName]
	default:
		return store.StateRecord{}
	}
}

func (e *Engine) assemblePlan(patch store.Patch, fileSteps []txn.Step, strategy store.Strategy) *txn.Plan {
	plan := &txn.Plan{
		ID:        uuid.NewString(),
		Scope:     string(e.Scope),
		ScopeRoot: e.ScopeRoot,
		Patch:     patch,
		Strategy:  strategy,
	}
	if patch.IsEmpty() {
		plan.Empty = true
		plan.Steps = []txn.Step{{Kind: txn.StepAcquireLock}, {Kind: txn.StepReleaseLock}}
		return plan
	}
	steps := []txn.Step{{Kind: txn.StepAcquireLock}, {Kind: txn.StepSnapshotDocument}}
	steps = append(steps, fileSteps...)
	steps = append(steps,
		txn.Step{Kind: txn.StepStageDocumentPatch},
		txn.Step{Kind: txn.StepCommitDocuments},
		txn.Step{Kind: txn.StepRunPostValidation},
		txn.Step{Kind: txn.StepReleaseLock},
	)
	plan.Steps = steps
	return plan
}
