package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roivaz/pacc/internal/pathsafe"
	"github.com/tidwall/gjson"
)

const (
	prefsFileName  = "preferences.json"
	stateFileName  = "engine-state.json"
	hashesFileName = "hashes.json"
)

// Paths returns the well-known document paths under a scope root.
type Paths struct {
	Prefs  string
	State  string
	Hashes string
}

func DocumentPaths(scopeRoot string) Paths {
	return Paths{
		Prefs:  filepath.Join(scopeRoot, prefsFileName),
		State:  filepath.Join(scopeRoot, stateFileName),
		Hashes: filepath.Join(scopeRoot, hashesFileName),
	}
}

// Documents bundles the two structured-config documents plus their hash
// sidecar — everything Load returns and Stage/Commit operate on together.
type Documents struct {
	Prefs  Prefs
	State  State
	Hashes Hashes
}

// Load reads and parses both documents (and the hashes sidecar) for a
// scope root, canonicalizing every path-valued field against it so a
// tampered document cannot walk the engine out of scope (spec §4.1, §4.3).
func Load(scopeRoot string) (Documents, error) {
	paths := DocumentPaths(scopeRoot)

	prefs, err := readPrefs(paths.Prefs)
	if err != nil {
		return Documents{}, fmt.Errorf("load preferences: %w", err)
	}
	if err := canonicalizePathFields(scopeRoot, prefs); err != nil {
		return Documents{}, err
	}

	state, err := readState(paths.State)
	if err != nil {
		return Documents{}, fmt.Errorf("load engine state: %w", err)
	}
	for _, rec := range allStateRecords(state) {
		if _, err := pathsafe.Canonicalize(scopeRoot, rec.InstallPath, 0); err != nil {
			return Documents{}, fmt.Errorf("engine state installPath %q: %w", rec.InstallPath, err)
		}
	}

	hashes, err := readHashes(paths.Hashes)
	if err != nil {
		return Documents{}, fmt.Errorf("load hashes: %w", err)
	}

	return Documents{Prefs: prefs, State: state, Hashes: hashes}, nil
}

func readPrefs(path string) (Prefs, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyPrefs(), nil
	}
	if err != nil {
		return Prefs{}, err
	}
	p := emptyPrefs()
	if err := json.Unmarshal(b, &p); err != nil {
		return Prefs{}, fmt.Errorf("%s: %w", path, err)
	}
	fillNilMaps(&p)
	return p, nil
}

func readState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyState(), nil
	}
	if err != nil {
		return State{}, err
	}
	s := emptyState()
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func readHashes(path string) (Hashes, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyHashes(), nil
	}
	if err != nil {
		return Hashes{}, err
	}
	h := emptyHashes()
	if err := json.Unmarshal(b, &h); err != nil {
		return Hashes{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func fillNilMaps(p *Prefs) {
	if p.Hooks == nil {
		p.Hooks = map[string]json.RawMessage{}
	}
	if p.McpServers == nil {
		p.McpServers = map[string]json.RawMessage{}
	}
	if p.Agents == nil {
		p.Agents = map[string]json.RawMessage{}
	}
	if p.Commands == nil {
		p.Commands = map[string]json.RawMessage{}
	}
	if p.EnabledPlugins == nil {
		p.EnabledPlugins = []string{}
	}
}

// canonicalizePathFields walks agents[*].path and commands[*].path — the
// only caller-visible path-valued fields in preferences.json — and
// verifies each resolves within scopeRoot.
func canonicalizePathFields(scopeRoot string, p Prefs) error {
	for name, raw := range p.Agents {
		if path := gjson.GetBytes(raw, "path").String(); path != "" {
			if _, err := pathsafe.Canonicalize(scopeRoot, path, 0); err != nil {
				return fmt.Errorf("agents.%s.path: %w", name, err)
			}
		}
	}
	for name, raw := range p.Commands {
		if path := gjson.GetBytes(raw, "path").String(); path != "" {
			if _, err := pathsafe.Canonicalize(scopeRoot, path, 0); err != nil {
				return fmt.Errorf("commands.%s.path: %w", name, err)
			}
		}
	}
	return nil
}

func allStateRecords(s State) []StateRecord {
	out := make([]StateRecord, 0, len(s.Hooks)+len(s.McpServers)+len(s.Agents)+len(s.Commands))
	for _, r := range s.Hooks {
		out = append(out, r)
	}
	for _, r := range s.McpServers {
		out = append(out, r)
	}
	for _, r := range s.Agents {
		out = append(out, r)
	}
	for _, r := range s.Commands {
		out = append(out, r)
	}
	return out
}
