// Package store is the structured-config store (spec §4.3): atomic load,
// merge and write of the two JSON documents that live under each scope
// root, plus the content-hash sidecar.
package store

import "encoding/json"

// Prefs is the user preferences document (spec §6).
type Prefs struct {
	Hooks          map[string]json.RawMessage `json:"hooks"`
	McpServers     map[string]json.RawMessage `json:"mcpServers"`
	Agents         map[string]json.RawMessage `json:"agents"`
	Commands       map[string]json.RawMessage `json:"commands"`
	EnabledPlugins []string                   `json:"enabledPlugins"`
}

func emptyPrefs() Prefs {
	return Prefs{
		Hooks:          map[string]json.RawMessage{},
		McpServers:     map[string]json.RawMessage{},
		Agents:         map[string]json.RawMessage{},
		Commands:       map[string]json.RawMessage{},
		EnabledPlugins: []string{},
	}
}

// StateRecord mirrors kinds.InstalledRecord minus the content hash, which
// is stored in the separate hashes sidecar (spec §4.3).
type StateRecord struct {
	InstallPath string `json:"installPath"`
	Origin      string `json:"origin"`
	OriginRef   string `json:"originRef,omitempty"`
	InstalledAt string `json:"installedAt"`
	Version     string `json:"version,omitempty"`
}

// State is the engine-state document (spec §6).
type State struct {
	Hooks      map[string]StateRecord `json:"hooks"`
	McpServers map[string]StateRecord `json:"mcpServers"`
	Agents     map[string]StateRecord `json:"agents"`
	Commands   map[string]StateRecord `json:"commands"`
}

func emptyState() State {
	return State{
		Hooks:      map[string]StateRecord{},
		McpServers: map[string]StateRecord{},
		Agents:     map[string]StateRecord{},
		Commands:   map[string]StateRecord{},
	}
}

// Hashes is the content-hash sidecar, keyed the same way as State.
type Hashes struct {
	Hooks      map[string]string `json:"hooks"`
	McpServers map[string]string `json:"mcpServers"`
	Agents     map[string]string `json:"agents"`
	Commands   map[string]string `json:"commands"`
}

func emptyHashes() Hashes {
	return Hashes{
		Hooks:      map[string]string{},
		McpServers: map[string]string{},
		Agents:     map[string]string{},
		Commands:   map[string]string{},
	}
}

// Strategy resolves a scalar conflict during Merge.
type Strategy string

const (
	PreferExisting Strategy = "PreferExisting"
	PreferIncoming Strategy = "PreferIncoming"
	Fail           Strategy = "Fail"
)

// Patch is a proposed change to a Prefs/State pair: upserts for Kind/name
// and the accompanying removals. Kind-specific maps mirror Prefs' own
// field layout so Merge can walk them uniformly.
type Patch struct {
	UpsertHooks      map[string]json.RawMessage
	UpsertMcpServers map[string]json.RawMessage
	UpsertAgents     map[string]json.RawMessage
	UpsertCommands   map[string]json.RawMessage

	RemoveHooks      []string
	RemoveMcpServers []string
	RemoveAgents     []string
	RemoveCommands   []string

	StateUpserts map[StateKey]StateRecord
	HashUpserts  map[StateKey]string
	StateRemoves []StateKey

	EnabledPluginsAdd    []string
	EnabledPluginsRemove []string
}

// StateKey addresses a single (kind, logical_name) entry across State and
// Hashes, mirroring kinds.Key.
type StateKey struct {
	Kind string
	Name string
}

// NewPatch returns a Patch with all maps initialized, ready to populate.
func NewPatch() Patch {
	return Patch{
		UpsertHooks:      map[string]json.RawMessage{},
		UpsertMcpServers: map[string]json.RawMessage{},
		UpsertAgents:     map[string]json.RawMessage{},
		UpsertCommands:   map[string]json.RawMessage{},
		StateUpserts:     map[StateKey]StateRecord{},
		HashUpserts:      map[StateKey]string{},
	}
}

// IsEmpty reports whether the patch would change anything (spec §8's
// "empty candidate set -> no-op commit").
func (p Patch) IsEmpty() bool {
	return len(p.UpsertHooks) == 0 && len(p.UpsertMcpServers) == 0 &&
		len(p.UpsertAgents) == 0 && len(p.UpsertCommands) == 0 &&
		len(p.RemoveHooks) == 0 && len(p.RemoveMcpServers) == 0 &&
		len(p.RemoveAgents) == 0 && len(p.RemoveCommands) == 0 &&
		len(p.StateUpserts) == 0 && len(p.StateRemoves) == 0 &&
		len(p.EnabledPluginsAdd) == 0 && len(p.EnabledPluginsRemove) == 0
}
